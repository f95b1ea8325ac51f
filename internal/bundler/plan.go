package bundler

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"bundleKeeper/internal/allocator"
	"bundleKeeper/internal/batcher"
	"bundleKeeper/internal/chain"
	"bundleKeeper/internal/model"
	"bundleKeeper/internal/planner"
	"bundleKeeper/internal/quote"
	"bundleKeeper/internal/whirlpool"
)

// PlanRequest parameterizes every planning entry point. Zero values of the
// batching fields select the defaults of the operation.
type PlanRequest struct {
	Pool          solana.PublicKey
	BundleMint    solana.PublicKey
	Owner         solana.PublicKey
	StartIndex    int
	PositionCount int
	RangePercent  float64
	// Amount is the SOL budget in lamports for operations that deposit.
	Amount      uint64
	SlippageBps uint16

	ChunkSize         int
	ComputeUnitLimit  uint32
	ComputeUnitPrice  uint64
	Policy            *model.FailurePolicy
	IncludeOutOfRange bool
}

var bigOne = big.NewInt(1)

type mode struct {
	chunkSize    int
	computeUnits uint32
	policy       model.FailurePolicy
	open         bool
	liquidity    bool
}

var (
	createMode       = mode{batcher.LiquidityChunkSize, batcher.LiquidityComputeUnits, model.AbortOnFirstError, true, true}
	openMode         = mode{batcher.OpenChunkSize, batcher.OpenComputeUnits, model.ContinueOnError, true, false}
	addLiquidityMode = mode{batcher.AddLiquidityChunkSize, batcher.AddLiquidityComputeUnits, model.AbortOnFirstError, false, true}
)

func (r PlanRequest) batchOptions(m mode, requireInRange bool) batcher.Options {
	opts := batcher.Options{
		ChunkSize:        m.chunkSize,
		ComputeUnitLimit: m.computeUnits,
		ComputeUnitPrice: r.ComputeUnitPrice,
		OpenPositions:    m.open,
		AddLiquidity:     m.liquidity,
		RequireInRange:   requireInRange,
	}
	if r.ChunkSize > 0 {
		opts.ChunkSize = r.ChunkSize
	}
	if r.ComputeUnitLimit > 0 {
		opts.ComputeUnitLimit = r.ComputeUnitLimit
	}
	return opts
}

func (r PlanRequest) policy(m mode) model.FailurePolicy {
	if r.Policy != nil {
		return *r.Policy
	}
	return m.policy
}

// PlanCreate plans opening PositionCount positions around the current price
// and depositing Amount into the ones that hold it, after swapping half of
// the SOL budget into the pool's other token.
func (s *Session) PlanCreate(ctx context.Context, req PlanRequest) (model.PlanResult, error) {
	pool, plans, err := s.planSlots(ctx, req)
	if err != nil {
		return model.PlanResult{}, err
	}
	if req.Amount == 0 {
		return model.PlanResult{}, fmt.Errorf("%w: deposit amount is required", model.ErrInvalidParameter)
	}
	inRange := planner.InRangeIndices(plans)
	if len(inRange) == 0 {
		return model.PlanResult{}, fmt.Errorf("%w: no planned position holds the current price", model.ErrInvalidParameter)
	}

	alloc, err := allocator.New(s.quoter, s.logger.Named("allocator")).Allocate(ctx, allocator.Request{
		Total:         req.Amount,
		PositionCount: len(inRange),
		Pool:          pool,
		Owner:         req.Owner,
		SlippageBps:   req.SlippageBps,
	})
	if err != nil {
		return model.PlanResult{}, err
	}

	src, err := newPositionSource(pool, req.BundleMint, req.Owner)
	if err != nil {
		return model.PlanResult{}, err
	}
	src.withAmounts(alloc.TokenAPerPosition, alloc.TokenBPerPosition, req.SlippageBps)
	if err := s.markMissingTickArrays(ctx, src, plans); err != nil {
		return model.PlanResult{}, err
	}

	res, err := s.batcher.Batch(plans, req.batchOptions(createMode, true), src)
	if err != nil {
		return model.PlanResult{}, err
	}
	batches := res.Batches
	if alloc.SwapBatch != nil {
		batches = append([]model.TransactionBatch{*alloc.SwapBatch}, batches...)
	}
	return s.result(pool, plans, batches, res, &alloc, req.policy(createMode)), nil
}

// PlanOpen plans opening empty positions. Slots whose range does not hold
// the current price are skipped unless IncludeOutOfRange is set.
func (s *Session) PlanOpen(ctx context.Context, req PlanRequest) (model.PlanResult, error) {
	pool, plans, err := s.planSlots(ctx, req)
	if err != nil {
		return model.PlanResult{}, err
	}
	src, err := newPositionSource(pool, req.BundleMint, req.Owner)
	if err != nil {
		return model.PlanResult{}, err
	}
	res, err := s.batcher.Batch(plans, req.batchOptions(openMode, !req.IncludeOutOfRange), src)
	if err != nil {
		return model.PlanResult{}, err
	}
	return s.result(pool, plans, res.Batches, res, nil, req.policy(openMode)), nil
}

// PlanAddLiquidity plans deposits into positions that already exist in the
// bundle, keeping their stored ranges.
func (s *Session) PlanAddLiquidity(ctx context.Context, req PlanRequest, indices []int) (model.PlanResult, error) {
	if len(indices) == 0 {
		return model.PlanResult{}, fmt.Errorf("%w: no positions selected", model.ErrInvalidParameter)
	}
	if req.Amount == 0 {
		return model.PlanResult{}, fmt.Errorf("%w: deposit amount is required", model.ErrInvalidParameter)
	}
	indices = sortedUnique(indices)

	bundle, err := s.bundle(ctx, req.BundleMint)
	if err != nil {
		return model.PlanResult{}, err
	}
	var empty []int
	for _, idx := range indices {
		if !bundle.Bitmap.IsOccupied(idx) {
			empty = append(empty, idx)
		}
	}
	if len(empty) > 0 {
		return model.PlanResult{}, fmt.Errorf("%w: bundle slots %s are not open", model.ErrInvalidParameter, model.JoinIndices(empty))
	}

	positions, err := s.positions(ctx, req.BundleMint, indices)
	if err != nil {
		return model.PlanResult{}, err
	}
	pool, err := s.RefreshPool(ctx, req.Pool)
	if err != nil {
		return model.PlanResult{}, err
	}

	plans := make([]model.PositionPlan, len(indices))
	for i, pos := range positions {
		if !pos.Whirlpool.Equals(pool.Address) {
			return model.PlanResult{}, fmt.Errorf("%w: position %d belongs to pool %s", model.ErrInvalidParameter, indices[i], pos.Whirlpool)
		}
		inRange, err := quote.IsInRange(pool.SqrtPrice, pos.TickLowerIndex, pos.TickUpperIndex)
		if err != nil {
			return model.PlanResult{}, fmt.Errorf("position %d: %w", indices[i], err)
		}
		plans[i] = model.PositionPlan{Index: indices[i], TickLower: pos.TickLowerIndex, TickUpper: pos.TickUpperIndex, InRange: inRange}
	}
	inRange := planner.InRangeIndices(plans)
	if len(inRange) == 0 {
		return model.PlanResult{}, fmt.Errorf("%w: none of positions %s holds the current price", model.ErrInvalidParameter, model.JoinIndices(indices))
	}

	alloc, err := allocator.New(s.quoter, s.logger.Named("allocator")).Allocate(ctx, allocator.Request{
		Total:         req.Amount,
		PositionCount: len(inRange),
		Pool:          pool,
		Owner:         req.Owner,
		SlippageBps:   req.SlippageBps,
	})
	if err != nil {
		return model.PlanResult{}, err
	}

	src, err := newPositionSource(pool, req.BundleMint, req.Owner)
	if err != nil {
		return model.PlanResult{}, err
	}
	src.withAmounts(alloc.TokenAPerPosition, alloc.TokenBPerPosition, req.SlippageBps)
	if err := s.markMissingTickArrays(ctx, src, plans); err != nil {
		return model.PlanResult{}, err
	}

	res, err := s.batcher.Batch(plans, req.batchOptions(addLiquidityMode, true), src)
	if err != nil {
		return model.PlanResult{}, err
	}
	batches := res.Batches
	if alloc.SwapBatch != nil {
		batches = append([]model.TransactionBatch{*alloc.SwapBatch}, batches...)
	}
	return s.result(pool, plans, batches, res, &alloc, req.policy(addLiquidityMode)), nil
}

// planSlots refreshes the pool, guards the requested slots against the
// bundle's occupancy and computes their ranges.
func (s *Session) planSlots(ctx context.Context, req PlanRequest) (model.Pool, []model.PositionPlan, error) {
	params := planner.Params{
		StartIndex:    req.StartIndex,
		PositionCount: req.PositionCount,
		RangePercent:  req.RangePercent,
		TickSpacing:   1,
		SqrtPrice:     bigOne,
	}
	// Reject bad counts before any network call.
	if err := params.Validate(); err != nil {
		return model.Pool{}, nil, err
	}
	if _, err := bundleAccounts(req.Pool, req.BundleMint, req.Owner); err != nil {
		return model.Pool{}, nil, err
	}

	pool, err := s.RefreshPool(ctx, req.Pool)
	if err != nil {
		return model.Pool{}, nil, err
	}
	if err := s.checkOccupancy(ctx, req.BundleMint, req.StartIndex, req.PositionCount); err != nil {
		return model.Pool{}, nil, err
	}

	params.SqrtPrice = pool.SqrtPrice
	params.TickSpacing = pool.TickSpacing
	params.DecimalsA = pool.DecimalsA
	params.DecimalsB = pool.DecimalsB
	plans, err := planner.Plan(params)
	if err != nil {
		return model.Pool{}, nil, err
	}
	s.logger.Info("positions planned",
		zap.Stringer("pool", pool.Address),
		zap.Int("start_index", req.StartIndex),
		zap.Int("count", len(plans)),
		zap.Int("in_range", len(planner.InRangeIndices(plans))),
	)
	return pool, plans, nil
}

// checkOccupancy fails when any requested slot is already open. A bundle
// that does not exist yet has no open slots.
func (s *Session) checkOccupancy(ctx context.Context, bundleMint solana.PublicKey, start, count int) error {
	bundle, err := s.bundle(ctx, bundleMint)
	if errors.Is(err, chain.ErrAccountNotFound) {
		s.logger.Warn("position bundle not found, skipping occupancy check", zap.Stringer("bundle_mint", bundleMint))
		return nil
	}
	if err != nil {
		return err
	}
	var taken []int
	for i := start; i < start+count; i++ {
		if bundle.Bitmap.IsOccupied(i) {
			taken = append(taken, i)
		}
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: bundle slots %s are already open", model.ErrInvalidParameter, model.JoinIndices(taken))
	}
	return nil
}

// markMissingTickArrays records which tick arrays needed by in-range plans
// do not exist, so their deposits are skipped instead of failing on chain.
func (s *Session) markMissingTickArrays(ctx context.Context, src *positionSource, plans []model.PositionPlan) error {
	seen := map[solana.PublicKey]bool{}
	var addrs []solana.PublicKey
	for _, plan := range plans {
		if !plan.InRange {
			continue
		}
		lower, upper, err := src.tickArrays(plan)
		if err != nil {
			return err
		}
		for _, a := range []solana.PublicKey{lower, upper} {
			if !seen[a] {
				seen[a] = true
				addrs = append(addrs, a)
			}
		}
	}
	if len(addrs) == 0 {
		return nil
	}
	accounts, err := s.chain.GetAccounts(ctx, addrs)
	if err != nil {
		return err
	}
	for i, acct := range accounts {
		if acct == nil {
			src.missingArrays[addrs[i]] = true
			s.logger.Warn("tick array not initialized", zap.Stringer("tick_array", addrs[i]))
		}
	}
	return nil
}

func (s *Session) bundle(ctx context.Context, bundleMint solana.PublicKey) (*whirlpool.PositionBundle, error) {
	addr, err := whirlpool.PositionBundleAddress(bundleMint)
	if err != nil {
		return nil, err
	}
	return s.chain.PositionBundle(ctx, addr)
}

// positions reads the bundled positions at indices; all must exist.
func (s *Session) positions(ctx context.Context, bundleMint solana.PublicKey, indices []int) ([]*whirlpool.Position, error) {
	addrs := make([]solana.PublicKey, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= model.BundleSize {
			return nil, fmt.Errorf("%w: bundle index %d", model.ErrInvalidParameter, idx)
		}
		addr, err := whirlpool.BundledPositionAddress(bundleMint, uint16(idx))
		if err != nil {
			return nil, err
		}
		addrs[i] = addr
	}
	positions, err := s.chain.Positions(ctx, addrs)
	if err != nil {
		return nil, err
	}
	if len(positions) != len(addrs) {
		return nil, fmt.Errorf("%w: read %d positions, got %d", model.ErrStateFetch, len(addrs), len(positions))
	}
	for i, pos := range positions {
		if pos == nil {
			return nil, fmt.Errorf("%w: %w position %d (%s)", model.ErrStateFetch, chain.ErrAccountNotFound, indices[i], addrs[i])
		}
	}
	return positions, nil
}

func (s *Session) result(pool model.Pool, plans []model.PositionPlan, batches []model.TransactionBatch, res batcher.Result, alloc *model.AllocationResult, policy model.FailurePolicy) model.PlanResult {
	skipped := append([]int(nil), res.Skipped...)
	sort.Ints(skipped)
	return model.PlanResult{
		Pool:           pool,
		Plans:          plans,
		Batches:        batches,
		TotalBatches:   len(batches),
		TotalPositions: res.Positions(),
		CurrentPrice:   quote.PriceFromSqrtPrice(pool.SqrtPrice, pool.DecimalsA, pool.DecimalsB),
		SkippedIndices: skipped,
		Allocation:     alloc,
		Policy:         policy,
	}
}

func sortedUnique(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
