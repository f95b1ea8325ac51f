package quote

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"bundleKeeper/internal/model"
)

// FeeRateDenominator is the unit of whirlpool fee rates (hundredths of a bp).
const FeeRateDenominator = 1_000_000

// SwapEstimate is the result of EstimateSwap.
type SwapEstimate struct {
	AmountOut      uint64
	MinimumOut     uint64
	SqrtPriceAfter *big.Int
}

// EstimateSwap prices an exact-input swap against the pool's active
// liquidity without crossing ticks. It is accurate while the swap stays
// inside the current initialized range, which holds for the sizes the
// allocator uses; larger swaps are protected by the minimum output.
func EstimateSwap(liquidity, sqrtPrice *big.Int, feeRate uint16, amountIn uint64, aToB bool, slippageBps uint16) (SwapEstimate, error) {
	if slippageBps > MaxSlippageBps {
		return SwapEstimate{}, fmt.Errorf("%w: slippage %d bps above %d", model.ErrInvalidParameter, slippageBps, MaxSlippageBps)
	}
	if amountIn == 0 {
		return SwapEstimate{}, fmt.Errorf("%w: swap amount is zero", model.ErrInvalidParameter)
	}
	if uint32(feeRate) >= FeeRateDenominator {
		return SwapEstimate{}, fmt.Errorf("%w: fee rate %d", model.ErrInvalidParameter, feeRate)
	}
	l, err := toU256(liquidity)
	if err != nil {
		return SwapEstimate{}, err
	}
	if l.IsZero() {
		return SwapEstimate{}, fmt.Errorf("%w: pool has no active liquidity", model.ErrSwapQuote)
	}
	sp, err := toU256(sqrtPrice)
	if err != nil {
		return SwapEstimate{}, err
	}
	if sp.Lt(MinSqrtPrice) || sp.Gt(MaxSqrtPrice) {
		return SwapEstimate{}, fmt.Errorf("%w: sqrt price %s out of bounds", model.ErrInvalidParameter, sqrtPrice)
	}

	net, err := mulDiv(uint256.NewInt(amountIn), uint256.NewInt(FeeRateDenominator-uint64(feeRate)), uint256.NewInt(FeeRateDenominator))
	if err != nil {
		return SwapEstimate{}, err
	}
	lq := new(uint256.Int).Lsh(l, 64)

	var next, out *uint256.Int
	if aToB {
		// next = L*s / (L + net*s), all in Q64.
		den := new(uint256.Int).Mul(net, sp)
		den.Add(den, lq)
		if next, err = mulDivRoundingUp(lq, sp, den); err != nil {
			return SwapEstimate{}, err
		}
		if next.Lt(MinSqrtPrice) {
			return SwapEstimate{}, fmt.Errorf("%w: swap exhausts active liquidity", model.ErrSwapQuote)
		}
		if out, err = mulDiv(l, new(uint256.Int).Sub(sp, next), q64); err != nil {
			return SwapEstimate{}, err
		}
	} else {
		delta, err := mulDiv(net, q64, l)
		if err != nil {
			return SwapEstimate{}, err
		}
		next = new(uint256.Int).Add(sp, delta)
		if next.Gt(MaxSqrtPrice) {
			return SwapEstimate{}, fmt.Errorf("%w: swap exhausts active liquidity", model.ErrSwapQuote)
		}
		t, err := mulDiv(lq, delta, next)
		if err != nil {
			return SwapEstimate{}, err
		}
		out = new(uint256.Int).Div(t, sp)
	}
	if !out.IsUint64() {
		return SwapEstimate{}, fmt.Errorf("%w: swap output %s exceeds u64", model.ErrMathOverflow, out.Dec())
	}
	minOut, err := mulDiv(out, uint256.NewInt(uint64(MaxSlippageBps-slippageBps)), uint256.NewInt(MaxSlippageBps))
	if err != nil {
		return SwapEstimate{}, err
	}
	return SwapEstimate{
		AmountOut:      out.Uint64(),
		MinimumOut:     minOut.Uint64(),
		SqrtPriceAfter: next.ToBig(),
	}, nil
}

// SwapSqrtPriceLimit is the price bound passed to the program for an
// unrestricted swap in the given direction.
func SwapSqrtPriceLimit(aToB bool) *big.Int {
	if aToB {
		return MinSqrtPrice.ToBig()
	}
	return MaxSqrtPrice.ToBig()
}
