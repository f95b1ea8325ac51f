// Package planner computes the tick range of every requested bundle slot.
package planner

import (
	"fmt"
	"math"
	"math/big"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/quote"
)

// Params describes one planning request.
type Params struct {
	SqrtPrice     *big.Int
	DecimalsA     uint8
	DecimalsB     uint8
	TickSpacing   uint16
	StartIndex    int
	PositionCount int
	RangePercent  float64
}

// Validate checks counts, percentages and the slot window.
func (p Params) Validate() error {
	if p.PositionCount <= 0 {
		return fmt.Errorf("%w: position count must be > 0, got %d", model.ErrInvalidParameter, p.PositionCount)
	}
	if !(p.RangePercent > 0) || math.IsInf(p.RangePercent, 0) {
		return fmt.Errorf("%w: range percent must be > 0, got %v", model.ErrInvalidParameter, p.RangePercent)
	}
	if p.TickSpacing == 0 {
		return fmt.Errorf("%w: tick spacing must be > 0", model.ErrInvalidParameter)
	}
	if p.StartIndex < 0 || p.StartIndex+p.PositionCount > model.BundleSize {
		return fmt.Errorf("%w: slots %d..%d exceed bundle capacity %d", model.ErrInvalidParameter,
			p.StartIndex, p.StartIndex+p.PositionCount-1, model.BundleSize)
	}
	if p.SqrtPrice == nil || p.SqrtPrice.Sign() <= 0 {
		return fmt.Errorf("%w: pool sqrt price is not set", model.ErrInvalidParameter)
	}
	return nil
}

// OffsetMultiplier is the relative distance of slot j's lower bound from the
// current price. Offsets are centred on n/2 so the ranges bracket the price.
func OffsetMultiplier(j, n int, rangePercent float64) float64 {
	return (float64(j) - float64(n)/2) * rangePercent
}

// Plan returns one PositionPlan per requested slot, in slot order. Any
// conversion failure aborts the whole plan.
func Plan(p Params) ([]model.PositionPlan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	price := quote.PriceFromSqrtPrice(p.SqrtPrice, p.DecimalsA, p.DecimalsB)
	spacing := int32(p.TickSpacing)

	plans := make([]model.PositionPlan, 0, p.PositionCount)
	for j := 0; j < p.PositionCount; j++ {
		offset := OffsetMultiplier(j, p.PositionCount, p.RangePercent)
		targetLower := price * (1 + offset)
		targetUpper := price * (1 + offset + p.RangePercent)

		rawLower, err := quote.TickFromPrice(targetLower, p.DecimalsA, p.DecimalsB)
		if err != nil {
			return nil, fmt.Errorf("position %d lower bound: %w", p.StartIndex+j, err)
		}
		rawUpper, err := quote.TickFromPrice(targetUpper, p.DecimalsA, p.DecimalsB)
		if err != nil {
			return nil, fmt.Errorf("position %d upper bound: %w", p.StartIndex+j, err)
		}

		tickLower := quote.FloorToSpacing(rawLower, p.TickSpacing)
		tickUpper := quote.CeilToSpacing(rawUpper, p.TickSpacing)
		if tickUpper <= tickLower {
			tickUpper = tickLower + spacing
		}

		inRange, err := quote.IsInRange(p.SqrtPrice, tickLower, tickUpper)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", p.StartIndex+j, err)
		}
		plans = append(plans, model.PositionPlan{
			Index:     p.StartIndex + j,
			TickLower: tickLower,
			TickUpper: tickUpper,
			InRange:   inRange,
		})
	}
	return plans, nil
}

// InRangeIndices lists the slots whose range contains the current price.
func InRangeIndices(plans []model.PositionPlan) []int {
	out := make([]int, 0, len(plans))
	for _, p := range plans {
		if p.InRange {
			out = append(out, p.Index)
		}
	}
	return out
}

// SkippedIndices lists the slots excluded because they are out of range.
func SkippedIndices(plans []model.PositionPlan) []int {
	out := make([]int, 0)
	for _, p := range plans {
		if !p.InRange {
			out = append(out, p.Index)
		}
	}
	return out
}
