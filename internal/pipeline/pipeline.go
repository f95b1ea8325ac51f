// Package pipeline signs a run of transactions in bulk and submits them one
// at a time, confirming each before the next.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"bundleKeeper/internal/model"
)

// Signer signs an ordered list of transactions and returns them in the same order.
type Signer interface {
	PublicKey() solana.PublicKey
	SignAll(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error)
}

// RPC is the chain capability the loop needs.
type RPC interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error)
	BlockHeight(ctx context.Context) (uint64, error)
}

// ProgressFunc is called after each confirmed transaction.
type ProgressFunc func(completed, total int, signature solana.Signature, description string)

// Submission is one unsigned transaction and what it does.
type Submission struct {
	Transaction          *solana.Transaction
	Description          string
	PositionIndices      []int
	LastValidBlockHeight uint64
}

var (
	errBlockhashExpired = errors.New("blockhash expired before confirmation")
	errConfirmTimeout   = errors.New("confirmation timed out")
)

// Options controls pacing and failure handling.
type Options struct {
	Policy         model.FailurePolicy
	Delay          time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

const (
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 700 * time.Millisecond
	EmptyPositionDelay    = 1000 * time.Millisecond
	LiquidityDelay        = 1500 * time.Millisecond
)

// Pipeline runs submissions.
type Pipeline struct {
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// New creates a pipeline. Both arguments may be nil.
func New(logger *zap.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger, metrics: metrics, now: time.Now}
}

// Execute signs every transaction with one SignAll call, then sends and
// confirms them in order. Results are returned in submission order even when
// the run stops early; unsent transactions have Attempted set to false.
func (p *Pipeline) Execute(ctx context.Context, subs []Submission, signer Signer, client RPC, opts Options, onProgress ProgressFunc) ([]model.SubmissionResult, error) {
	opts = withDefaults(opts)
	results := make([]model.SubmissionResult, len(subs))
	for i, s := range subs {
		results[i] = model.SubmissionResult{Index: i, Description: s.Description, PositionIndices: s.PositionIndices}
	}
	if len(subs) == 0 {
		return results, nil
	}
	if client == nil {
		return results, fmt.Errorf("%w: rpc client is nil", model.ErrInvalidParameter)
	}

	signed, err := p.signAll(ctx, subs, signer)
	if err != nil {
		p.markNotAttempted(results)
		return results, err
	}

	total := len(signed)
	completed := 0
	for i, tx := range signed {
		if i > 0 && opts.Delay > 0 {
			if err := sleep(ctx, opts.Delay); err != nil {
				p.markNotAttempted(results[i:])
				return results, fmt.Errorf("submission cancelled after %d of %d: %w", i, total, err)
			}
		}
		if err := ctx.Err(); err != nil {
			p.markNotAttempted(results[i:])
			return results, fmt.Errorf("submission cancelled after %d of %d: %w", i, total, err)
		}

		res := &results[i]
		res.Attempted = true
		res.SubmittedAt = p.now()
		res.Signature = tx.Signatures[0].String()

		err := p.submitOne(ctx, client, tx, subs[i].LastValidBlockHeight, opts)
		if err != nil {
			if ctx.Err() != nil {
				res.Err = err
				res.Error = err.Error()
				p.markNotAttempted(results[i+1:])
				return results, fmt.Errorf("submission cancelled after %d of %d: %w", i, total, ctx.Err())
			}
			batchErr := &model.BatchError{
				Kind:            model.ErrSubmission,
				Description:     subs[i].Description,
				PositionIndices: subs[i].PositionIndices,
				Err:             err,
			}
			res.Err = batchErr
			res.Error = err.Error()
			p.metrics.observe(outcomeFailed)
			p.logger.Warn("transaction failed",
				zap.Int("index", i),
				zap.String("description", subs[i].Description),
				zap.String("signature", res.Signature),
				zap.Error(err),
			)
			if opts.Policy == model.AbortOnFirstError {
				p.markNotAttempted(results[i+1:])
				return results, batchErr
			}
			continue
		}

		res.Success = true
		res.ConfirmedAt = p.now()
		completed++
		p.metrics.observe(outcomeConfirmed)
		p.metrics.observeConfirm(res.ConfirmedAt.Sub(res.SubmittedAt))
		p.logger.Info("transaction confirmed",
			zap.Int("index", i),
			zap.Int("completed", completed),
			zap.Int("total", total),
			zap.String("description", subs[i].Description),
			zap.String("signature", res.Signature),
		)
		p.report(onProgress, completed, total, tx.Signatures[0], subs[i].Description)
	}
	return results, nil
}

func (p *Pipeline) signAll(ctx context.Context, subs []Submission, signer Signer) ([]*solana.Transaction, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", model.ErrSigningRejected)
	}
	unsigned := make([]*solana.Transaction, len(subs))
	messages := make([][]byte, len(subs))
	for i, s := range subs {
		if s.Transaction == nil {
			return nil, fmt.Errorf("%w: transaction %d is nil", model.ErrInvalidParameter, i)
		}
		msg, err := s.Transaction.Message.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("%w: encode transaction %d: %w", model.ErrInvalidParameter, i, err)
		}
		unsigned[i] = s.Transaction
		messages[i] = msg
	}

	done := p.metrics.signTimer()
	signed, err := signer.SignAll(ctx, unsigned)
	done()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSigningRejected, err)
	}
	if len(signed) != len(unsigned) {
		return nil, fmt.Errorf("%w: signer returned %d transactions for %d", model.ErrSigningRejected, len(signed), len(unsigned))
	}
	for i, tx := range signed {
		if tx == nil || len(tx.Signatures) == 0 || tx.Signatures[0] == (solana.Signature{}) {
			return nil, fmt.Errorf("%w: transaction %d is not signed", model.ErrSigningRejected, i)
		}
		msg, err := tx.Message.MarshalBinary()
		if err != nil || !bytes.Equal(msg, messages[i]) {
			return nil, fmt.Errorf("%w: transaction %d changed or out of order", model.ErrSigningRejected, i)
		}
	}
	p.logger.Info("transactions signed", zap.Int("count", len(signed)))
	return signed, nil
}

func (p *Pipeline) submitOne(ctx context.Context, client RPC, tx *solana.Transaction, lastValid uint64, opts Options) error {
	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if sig != tx.Signatures[0] {
		p.logger.Warn("rpc returned unexpected signature",
			zap.Stringer("expected", tx.Signatures[0]),
			zap.Stringer("got", sig),
		)
	}
	return p.confirm(ctx, client, tx.Signatures[0], lastValid, opts)
}

// confirm polls until sig is confirmed, fails on chain, its blockhash
// expires, or ConfirmTimeout elapses.
func (p *Pipeline) confirm(ctx context.Context, client RPC, sig solana.Signature, lastValid uint64, opts Options) error {
	confirmCtx, cancel := context.WithTimeout(ctx, opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := client.SignatureStatus(confirmCtx, sig)
		switch {
		case err != nil:
			p.logger.Debug("signature status", zap.Stringer("signature", sig), zap.Error(err))
		case status != nil && status.Err != nil:
			return fmt.Errorf("transaction failed on chain: %v", status.Err)
		case status != nil && (status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized):
			return nil
		}

		if lastValid > 0 {
			height, err := client.BlockHeight(confirmCtx)
			if err == nil && height > lastValid {
				return errBlockhashExpired
			}
		}

		select {
		case <-confirmCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w after %s", errConfirmTimeout, opts.ConfirmTimeout)
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) report(onProgress ProgressFunc, completed, total int, sig solana.Signature, description string) {
	if onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("progress callback panicked", zap.Any("panic", r))
		}
	}()
	onProgress(completed, total, sig, description)
}

func (p *Pipeline) markNotAttempted(results []model.SubmissionResult) {
	for i := range results {
		results[i].Attempted = false
		p.metrics.observe(outcomeNotStarted)
	}
}

func withDefaults(opts Options) Options {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return opts
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
