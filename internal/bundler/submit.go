package bundler

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/pipeline"
	"bundleKeeper/internal/txbuild"
	"bundleKeeper/internal/whirlpool"
)

// SubmitOptions tunes the submission loop. Zero values select defaults; the
// failure policy comes from the plan.
type SubmitOptions struct {
	Delay          time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Submit builds the plan's transactions against one fresh blockhash, signs
// them in one call and submits them in order.
func (s *Session) Submit(ctx context.Context, plan model.PlanResult, signer pipeline.Signer, opts SubmitOptions, onProgress pipeline.ProgressFunc) (model.SubmissionSummary, error) {
	results, err := s.execute(ctx, plan.Batches, plan.Policy, signer, opts, onProgress)
	if !plan.Pool.Address.IsZero() {
		s.pools.Invalidate(plan.Pool.Address)
	}
	return model.NewSubmissionSummary(results), err
}

func (s *Session) execute(ctx context.Context, batches []model.TransactionBatch, policy model.FailurePolicy, signer pipeline.Signer, opts SubmitOptions, onProgress pipeline.ProgressFunc) ([]model.SubmissionResult, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: no signer", model.ErrSigningRejected)
	}
	bh, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := txbuild.Build(batches, signer.PublicKey(), bh.Hash)
	if err != nil {
		return nil, err
	}

	subs := make([]pipeline.Submission, len(txs))
	moves := false
	for i, tx := range txs {
		subs[i] = pipeline.Submission{
			Transaction:          tx,
			Description:          batches[i].Description,
			PositionIndices:      batches[i].PositionIndices,
			LastValidBlockHeight: bh.LastValidBlockHeight,
		}
		for _, ix := range batches[i].Instructions {
			if ix.Kind() == model.KindIncreaseLiquidity || ix.Kind() == model.KindExternal {
				moves = true
			}
		}
	}

	delay := pipeline.EmptyPositionDelay
	if moves {
		delay = pipeline.LiquidityDelay
	}
	if opts.Delay > 0 {
		delay = opts.Delay
	}

	run := uuid.New().String()
	s.logger.Info("submitting",
		zap.String("run", run),
		zap.Int("transactions", len(subs)),
		zap.Stringer("policy", policy),
		zap.Duration("delay", delay),
	)
	results, err := s.pipeline.Execute(ctx, subs, signer, s.chain, pipeline.Options{
		Policy:         policy,
		Delay:          delay,
		ConfirmTimeout: opts.ConfirmTimeout,
		PollInterval:   opts.PollInterval,
	}, onProgress)

	if s.journal != nil {
		// The caller's context may already be cancelled; the journal still
		// gets what happened.
		if jerr := s.journal.PutSubmissions(context.WithoutCancel(ctx), run, results); jerr != nil {
			s.logger.Warn("journal submissions", zap.String("run", run), zap.Error(jerr))
		}
	}
	return results, err
}

// InitializeBundle creates a position bundle whose NFT is mint. signer must
// hold both the owner's key and mint.
func (s *Session) InitializeBundle(ctx context.Context, mint solana.PrivateKey, signer pipeline.Signer, opts SubmitOptions) (model.BundleRecord, error) {
	if signer == nil {
		return model.BundleRecord{}, fmt.Errorf("%w: no signer", model.ErrSigningRejected)
	}
	if len(mint) != 64 {
		return model.BundleRecord{}, fmt.Errorf("%w: bundle mint key must be 64 bytes", model.ErrInvalidParameter)
	}
	owner := signer.PublicKey()
	mintKey := mint.PublicKey()
	bundleAddr, err := whirlpool.PositionBundleAddress(mintKey)
	if err != nil {
		return model.BundleRecord{}, err
	}
	tokenAccount, err := whirlpool.AssociatedTokenAddress(owner, mintKey, solana.TokenProgramID)
	if err != nil {
		return model.BundleRecord{}, err
	}
	ix, err := whirlpool.InitializePositionBundle(whirlpool.InitializePositionBundleAccounts{
		PositionBundle:     bundleAddr,
		BundleMint:         mintKey,
		BundleTokenAccount: tokenAccount,
		Owner:              owner,
		Funder:             owner,
	})
	if err != nil {
		return model.BundleRecord{}, err
	}

	batch := model.TransactionBatch{
		Instructions: []model.Instruction{model.ExternalInstruction{Label: "initialize position bundle", Instruction: ix}},
		Description:  "Initialize position bundle " + mintKey.String(),
	}
	results, err := s.execute(ctx, []model.TransactionBatch{batch}, model.AbortOnFirstError, signer, opts, nil)
	if err != nil {
		return model.BundleRecord{}, err
	}
	if len(results) != 1 || !results[0].Success {
		return model.BundleRecord{}, fmt.Errorf("%w: bundle initialization did not confirm", model.ErrSubmission)
	}

	rec := model.BundleRecord{
		Mint:         mintKey,
		Address:      bundleAddr,
		TokenAccount: tokenAccount,
		Owner:        owner,
		Signature:    results[0].Signature,
		CreatedAt:    s.now().UTC(),
	}
	if s.journal != nil {
		if err := s.journal.PutBundle(context.WithoutCancel(ctx), rec); err != nil {
			s.logger.Warn("journal bundle", zap.Stringer("mint", mintKey), zap.Error(err))
		}
	}
	s.logger.Info("position bundle created",
		zap.Stringer("mint", mintKey),
		zap.Stringer("bundle", bundleAddr),
		zap.String("signature", rec.Signature),
	)
	return rec, nil
}
