// Package batcher groups per-position instructions into transaction-sized batches.
package batcher

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bundleKeeper/internal/model"
)

// Chunk sizes and compute limits that keep one batch inside a transaction.
const (
	LiquidityChunkSize       = 2
	LiquidityComputeUnits    = 1_000_000
	OpenChunkSize            = 3
	OpenComputeUnits         = 800_000
	AddLiquidityChunkSize    = 3
	AddLiquidityComputeUnits = 800_000
)

// ErrSkipPosition tells the batcher to leave a position out without failing.
var ErrSkipPosition = errors.New("skip position")

// PositionSource produces the instructions for one planned position.
type PositionSource interface {
	OpenPosition(plan model.PositionPlan) (model.Instruction, error)
	IncreaseLiquidity(plan model.PositionPlan) (model.Instruction, error)
}

// Options selects what each batch does.
type Options struct {
	ChunkSize        int
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	OpenPositions    bool
	AddLiquidity     bool
	// RequireInRange drops plans whose range does not hold the current price.
	RequireInRange bool
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be > 0", model.ErrInvalidParameter)
	}
	if o.ComputeUnitLimit == 0 {
		return fmt.Errorf("%w: compute unit limit must be > 0", model.ErrInvalidParameter)
	}
	if !o.OpenPositions && !o.AddLiquidity {
		return fmt.Errorf("%w: batch must open positions or add liquidity", model.ErrInvalidParameter)
	}
	return nil
}

// Result is the batching outcome.
type Result struct {
	Batches []model.TransactionBatch
	// Skipped lists plan indices that produced no instructions.
	Skipped []int
}

// Positions counts the positions materialized across all batches.
func (r Result) Positions() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.PositionIndices)
	}
	return n
}

// Batcher builds transaction batches.
type Batcher struct {
	logger *zap.Logger
}

// New creates a batcher.
func New(logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{logger: logger}
}

// Batch partitions plans into consecutive chunks and builds one batch per
// chunk that still holds at least one position.
func (b *Batcher) Batch(plans []model.PositionPlan, opts Options, src PositionSource) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	if src == nil {
		return Result{}, fmt.Errorf("%w: position source is nil", model.ErrInvalidParameter)
	}
	chunks, err := SplitChunks(len(plans), opts.ChunkSize)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", model.ErrInvalidParameter, err)
	}

	res := Result{Batches: make([]model.TransactionBatch, 0, len(chunks)), Skipped: make([]int, 0)}
	for _, c := range chunks {
		batch := model.TransactionBatch{
			Instructions: []model.Instruction{model.ComputeBudgetInstruction{
				UnitLimit:              opts.ComputeUnitLimit,
				UnitPriceMicroLamports: opts.ComputeUnitPrice,
			}},
		}
		for _, plan := range plans[c.From : c.To+1] {
			if opts.RequireInRange && !plan.InRange {
				res.Skipped = append(res.Skipped, plan.Index)
				continue
			}
			ixs, err := b.positionInstructions(plan, opts, src)
			if errors.Is(err, ErrSkipPosition) {
				b.logger.Warn("position skipped",
					zap.Int("index", plan.Index),
					zap.Int32("tick_lower", plan.TickLower),
					zap.Int32("tick_upper", plan.TickUpper),
					zap.Error(err),
				)
				res.Skipped = append(res.Skipped, plan.Index)
				continue
			}
			if err != nil {
				return Result{}, fmt.Errorf("position %d: %w", plan.Index, err)
			}
			batch.Instructions = append(batch.Instructions, ixs...)
			batch.PositionIndices = append(batch.PositionIndices, plan.Index)
		}
		if batch.Substantive() == 0 {
			continue
		}
		batch.Description = describe(opts, batch.PositionIndices)
		res.Batches = append(res.Batches, batch)
	}
	return res, nil
}

func (b *Batcher) positionInstructions(plan model.PositionPlan, opts Options, src PositionSource) ([]model.Instruction, error) {
	ixs := make([]model.Instruction, 0, 2)
	if opts.OpenPositions {
		ix, err := src.OpenPosition(plan)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, ix)
	}
	if opts.AddLiquidity {
		ix, err := src.IncreaseLiquidity(plan)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, ix)
	}
	return ixs, nil
}

func describe(opts Options, indices []int) string {
	list := model.JoinIndices(indices)
	switch {
	case opts.OpenPositions && opts.AddLiquidity:
		return "Open + Add liquidity: positions " + list
	case opts.OpenPositions:
		return "Open positions: " + list
	default:
		return "Add liquidity: positions " + list
	}
}
