package bundler

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/quote"
	"bundleKeeper/internal/whirlpool"
)

// Auto-expand parameters.
const (
	ExpandThresholdSpacings = 3
	ExpandPositions         = 10
	ExpandRangePercent      = 0.001
)

// BundleOccupancy decodes which slots of a bundle are open.
func (s *Session) BundleOccupancy(ctx context.Context, bundleMint solana.PublicKey) (model.BundleOccupancy, error) {
	addr, err := whirlpool.PositionBundleAddress(bundleMint)
	if err != nil {
		return model.BundleOccupancy{}, err
	}
	bundle, err := s.chain.PositionBundle(ctx, addr)
	if err != nil {
		return model.BundleOccupancy{}, err
	}
	occupied := bundle.Bitmap.Occupied()
	occ := model.BundleOccupancy{
		Mint:      bundleMint,
		Address:   addr,
		Occupied:  occupied,
		Count:     len(occupied),
		FirstFree: bundle.Bitmap.FirstFree(),
	}
	if len(occupied) > 0 {
		positions, err := s.positions(ctx, bundleMint, occupied[:1])
		if err != nil {
			return model.BundleOccupancy{}, err
		}
		pool := positions[0].Whirlpool
		occ.Pool = &pool
	}
	return occ, nil
}

// PositionInfo reports the range and state of one bundled position.
func (s *Session) PositionInfo(ctx context.Context, bundleMint solana.PublicKey, index int) (model.PositionInfo, error) {
	positions, err := s.positions(ctx, bundleMint, []int{index})
	if err != nil {
		return model.PositionInfo{}, err
	}
	pool, err := s.Pool(ctx, positions[0].Whirlpool)
	if err != nil {
		return model.PositionInfo{}, err
	}
	addr, err := whirlpool.BundledPositionAddress(bundleMint, uint16(index))
	if err != nil {
		return model.PositionInfo{}, err
	}
	return positionInfo(pool, addr, index, positions[0])
}

func positionInfo(pool model.Pool, addr solana.PublicKey, index int, pos *whirlpool.Position) (model.PositionInfo, error) {
	inRange, err := quote.IsInRange(pool.SqrtPrice, pos.TickLowerIndex, pos.TickUpperIndex)
	if err != nil {
		return model.PositionInfo{}, fmt.Errorf("position %d: %w", index, err)
	}
	return model.PositionInfo{
		Address:     addr,
		BundleIndex: index,
		Whirlpool:   pos.Whirlpool,
		TickLower:   pos.TickLowerIndex,
		TickUpper:   pos.TickUpperIndex,
		LowerPrice:  quote.TickToPrice(pos.TickLowerIndex, pool.DecimalsA, pool.DecimalsB),
		UpperPrice:  quote.TickToPrice(pos.TickUpperIndex, pool.DecimalsA, pool.DecimalsB),
		Liquidity:   pos.Liquidity.Big(),
		InRange:     inRange,
	}, nil
}

// RebalanceRequest selects the bundle to check and how an expansion is planned.
type RebalanceRequest struct {
	BundleMint       solana.PublicKey
	Owner            solana.PublicKey
	ComputeUnitPrice uint64
}

// Rebalance checks every open position of a bundle against the current
// price. When the price is within ExpandThresholdSpacings tick spacings of
// the covered range's edge it plans ExpandPositions new empty positions
// after the highest open slot.
func (s *Session) Rebalance(ctx context.Context, req RebalanceRequest) (model.RebalanceReport, error) {
	occ, err := s.BundleOccupancy(ctx, req.BundleMint)
	if err != nil {
		return model.RebalanceReport{}, err
	}
	if occ.Count == 0 || occ.Pool == nil {
		return model.RebalanceReport{}, fmt.Errorf("%w: bundle %s has no open positions", model.ErrInvalidParameter, req.BundleMint)
	}

	positions, err := s.positions(ctx, req.BundleMint, occ.Occupied)
	if err != nil {
		return model.RebalanceReport{}, err
	}
	pool, err := s.RefreshPool(ctx, *occ.Pool)
	if err != nil {
		return model.RebalanceReport{}, err
	}

	report := model.RebalanceReport{
		Pool:         pool.Address,
		CurrentTick:  pool.TickCurrentIndex,
		CurrentPrice: quote.PriceFromSqrtPrice(pool.SqrtPrice, pool.DecimalsA, pool.DecimalsB),
		Positions:    make([]model.PositionInfo, 0, len(positions)),
		InRange:      make([]int, 0),
	}
	first := true
	for i, pos := range positions {
		if !pos.Whirlpool.Equals(pool.Address) {
			s.logger.Warn("position in another pool ignored",
				zap.Int("index", occ.Occupied[i]),
				zap.Stringer("pool", pos.Whirlpool),
			)
			continue
		}
		addr, err := whirlpool.BundledPositionAddress(req.BundleMint, uint16(occ.Occupied[i]))
		if err != nil {
			return model.RebalanceReport{}, err
		}
		info, err := positionInfo(pool, addr, occ.Occupied[i], pos)
		if err != nil {
			return model.RebalanceReport{}, err
		}
		report.Positions = append(report.Positions, info)
		if info.InRange {
			report.InRange = append(report.InRange, info.BundleIndex)
		}
		if first || info.TickLower < report.LowestTick {
			report.LowestTick = info.TickLower
		}
		if first || info.TickUpper > report.HighestTick {
			report.HighestTick = info.TickUpper
		}
		first = false
	}

	margin := int32(ExpandThresholdSpacings) * int32(pool.TickSpacing)
	report.NeedsExpand = pool.TickCurrentIndex <= report.LowestTick+margin ||
		pool.TickCurrentIndex >= report.HighestTick-margin
	if !report.NeedsExpand {
		return report, nil
	}

	start := occ.Occupied[len(occ.Occupied)-1] + 1
	count := min(ExpandPositions, model.BundleSize-start)
	if count <= 0 {
		s.logger.Warn("bundle is full up to the last slot, cannot expand", zap.Stringer("bundle_mint", req.BundleMint))
		return report, nil
	}
	expansion, err := s.PlanOpen(ctx, PlanRequest{
		Pool:              pool.Address,
		BundleMint:        req.BundleMint,
		Owner:             req.Owner,
		StartIndex:        start,
		PositionCount:     count,
		RangePercent:      ExpandRangePercent,
		ComputeUnitPrice:  req.ComputeUnitPrice,
		IncludeOutOfRange: true,
	})
	if err != nil {
		return model.RebalanceReport{}, fmt.Errorf("plan expansion: %w", err)
	}
	report.Expansion = &expansion
	s.logger.Info("expansion planned",
		zap.Int("start_index", start),
		zap.Int("count", count),
		zap.Int32("current_tick", pool.TickCurrentIndex),
		zap.Int32("lowest_tick", report.LowestTick),
		zap.Int32("highest_tick", report.HighestTick),
	)
	return report, nil
}
