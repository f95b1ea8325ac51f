package storage

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundleKeeper/internal/model"
)

func TestJsonlJournalAppendsAndReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	j := NewJsonlJournal(path)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	results := []model.SubmissionResult{
		{Index: 0, Description: "Open positions: 0, 1, 2", PositionIndices: []int{0, 1, 2}, Signature: "sig0", Attempted: true, Success: true},
		{Index: 1, Description: "Open positions: 3", PositionIndices: []int{3}, Attempted: true, Error: "boom", Err: errors.New("boom")},
	}
	require.NoError(t, j.PutSubmissions(context.Background(), "run-1", results))
	require.NoError(t, j.PutSubmissions(context.Background(), "run-1", nil))

	mint := solana.NewWallet().PublicKey()
	require.NoError(t, j.PutBundle(context.Background(), model.BundleRecord{Mint: mint, Signature: "sig-bundle"}))

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, KindSubmission, entries[0].Kind)
	assert.Equal(t, "run-1", entries[0].Run)
	assert.True(t, entries[0].RecordedAt.Equal(fixed))
	require.NotNil(t, entries[0].Submission)
	assert.Equal(t, []int{0, 1, 2}, entries[0].Submission.PositionIndices)
	assert.Equal(t, "boom", entries[1].Submission.Error)
	assert.Nil(t, entries[1].Submission.Err)

	assert.Equal(t, KindBundle, entries[2].Kind)
	require.NotNil(t, entries[2].Bundle)
	assert.Equal(t, mint, entries[2].Bundle.Mint)
}

func TestReadJournalMissingFile(t *testing.T) {
	entries, err := ReadJournal(filepath.Join(t.TempDir(), "none.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadJournalRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"kind\":\"bundle\"}\nnot json\n"), 0o644))
	_, err := ReadJournal(path)
	assert.ErrorContains(t, err, "line 2")
}

type failingJournal struct{ err error }

func (f failingJournal) PutSubmissions(context.Context, string, []model.SubmissionResult) error {
	return f.err
}
func (f failingJournal) PutBundle(context.Context, model.BundleRecord) error { return f.err }

func TestMultiCombinesErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	errA := errors.New("a down")
	errB := errors.New("b down")
	m := Multi{failingJournal{errA}, nil, NewJsonlJournal(path), failingJournal{errB}}

	err := m.PutBundle(context.Background(), model.BundleRecord{})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	entries, err := ReadJournal(path)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.NoError(t, Multi{NewJsonlJournal(path)}.PutSubmissions(context.Background(), "r", []model.SubmissionResult{{Index: 0}}))
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "snap"))
	addr := solana.NewWallet().PublicKey()

	_, ok, err := store.LoadPool(addr)
	require.NoError(t, err)
	assert.False(t, ok)

	pool := model.Pool{
		Address:          addr,
		TokenMintA:       solana.WrappedSol,
		SymbolA:          "SOL",
		DecimalsA:        9,
		TickSpacing:      64,
		TickCurrentIndex: -23028,
		Liquidity:        big.NewInt(123456789),
		SqrtPrice:        new(big.Int).Lsh(big.NewInt(3), 70),
	}
	require.NoError(t, store.SavePool(pool))

	got, ok, err := store.LoadPool(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pool.Address, got.Address)
	assert.Equal(t, pool.TokenMintA, got.TokenMintA)
	assert.Equal(t, pool.TickCurrentIndex, got.TickCurrentIndex)
	assert.Equal(t, 0, pool.SqrtPrice.Cmp(got.SqrtPrice))
	assert.Equal(t, 0, pool.Liquidity.Cmp(got.Liquidity))

	_, err = os.Stat(store.path(addr) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
