package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bundleKeeper/internal/model"
)

// Store persists bundles and submission results.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS position_bundles (
	mint          TEXT PRIMARY KEY,
	address       TEXT NOT NULL,
	token_account TEXT NOT NULL,
	owner         TEXT NOT NULL,
	signature     TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS submissions (
	run              TEXT NOT NULL,
	tx_index         INTEGER NOT NULL,
	description      TEXT NOT NULL,
	position_indices INTEGER[] NOT NULL,
	signature        TEXT,
	attempted        BOOLEAN NOT NULL,
	success          BOOLEAN NOT NULL,
	error            TEXT,
	submitted_at     TIMESTAMPTZ,
	confirmed_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run, tx_index)
);`

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// PutSubmissions inserts or updates the results of a run.
func (s *Store) PutSubmissions(ctx context.Context, run string, results []model.SubmissionResult) error {
	if len(results) == 0 {
		return nil
	}
	if run == "" {
		return fmt.Errorf("run id required")
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		indices := make([]int32, len(r.PositionIndices))
		for i, idx := range r.PositionIndices {
			indices[i] = int32(idx)
		}
		batch.Queue(`
			INSERT INTO submissions (
				run, tx_index, description, position_indices, signature,
				attempted, success, error, submitted_at, confirmed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (run, tx_index)
			DO UPDATE SET
				signature = EXCLUDED.signature,
				attempted = EXCLUDED.attempted,
				success = EXCLUDED.success,
				error = EXCLUDED.error,
				submitted_at = EXCLUDED.submitted_at,
				confirmed_at = EXCLUDED.confirmed_at
		`,
			run,
			r.Index,
			r.Description,
			indices,
			nullable(r.Signature),
			r.Attempted,
			r.Success,
			nullable(r.Error),
			nullableTime(r.SubmittedAt),
			nullableTime(r.ConfirmedAt),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutBundle inserts or updates a bundle record.
func (s *Store) PutBundle(ctx context.Context, b model.BundleRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO position_bundles (mint, address, token_account, owner, signature, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (mint) DO UPDATE
		SET signature = EXCLUDED.signature, updated_at = now()
	`, b.Mint.String(), b.Address.String(), b.TokenAccount.String(), b.Owner.String(), nullable(b.Signature), b.CreatedAt)
	return err
}

// Bundles returns the bundles owned by owner, newest first.
func (s *Store) Bundles(ctx context.Context, owner solana.PublicKey) ([]model.BundleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mint, address, token_account, owner, COALESCE(signature, ''), created_at
		FROM position_bundles WHERE owner = $1 ORDER BY created_at DESC
	`, owner.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BundleRecord
	for rows.Next() {
		var mint, address, tokenAccount, ownerKey string
		var rec model.BundleRecord
		if err := rows.Scan(&mint, &address, &tokenAccount, &ownerKey, &rec.Signature, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
			return nil, fmt.Errorf("bundle mint %q: %w", mint, err)
		}
		if rec.Address, err = solana.PublicKeyFromBase58(address); err != nil {
			return nil, fmt.Errorf("bundle address %q: %w", address, err)
		}
		if rec.TokenAccount, err = solana.PublicKeyFromBase58(tokenAccount); err != nil {
			return nil, fmt.Errorf("bundle token account %q: %w", tokenAccount, err)
		}
		if rec.Owner, err = solana.PublicKeyFromBase58(ownerKey); err != nil {
			return nil, fmt.Errorf("bundle owner %q: %w", ownerKey, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
