package quote

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundleKeeper/internal/model"
)

func TestEstimateSwapAtParity(t *testing.T) {
	sqrt := new(big.Int).Lsh(big.NewInt(1), 64)
	liquidity := big.NewInt(1_000_000_000_000)

	for _, aToB := range []bool{true, false} {
		est, err := EstimateSwap(liquidity, sqrt, 0, 1000, aToB, 100)
		require.NoError(t, err)
		assert.LessOrEqual(t, est.AmountOut, uint64(1000))
		assert.GreaterOrEqual(t, est.AmountOut, uint64(998))
		assert.LessOrEqual(t, est.MinimumOut, est.AmountOut*99/100)
		if aToB {
			assert.Equal(t, -1, est.SqrtPriceAfter.Cmp(sqrt))
		} else {
			assert.Equal(t, 1, est.SqrtPriceAfter.Cmp(sqrt))
		}
	}
}

func TestEstimateSwapChargesFee(t *testing.T) {
	sqrt := new(big.Int).Lsh(big.NewInt(1), 64)
	liquidity := big.NewInt(1_000_000_000_000)

	noFee, err := EstimateSwap(liquidity, sqrt, 0, 1_000_000, true, 0)
	require.NoError(t, err)
	withFee, err := EstimateSwap(liquidity, sqrt, 3000, 1_000_000, true, 0)
	require.NoError(t, err)
	assert.Less(t, withFee.AmountOut, noFee.AmountOut)
	assert.InDelta(t, float64(noFee.AmountOut)*0.997, float64(withFee.AmountOut), 2)
	assert.Equal(t, withFee.AmountOut, withFee.MinimumOut)
}

func TestEstimateSwapFollowsPrice(t *testing.T) {
	// price 100: one A buys about 100 B.
	sqrt := new(big.Int).Lsh(big.NewInt(10), 64)
	liquidity := big.NewInt(1_000_000_000_000)

	est, err := EstimateSwap(liquidity, sqrt, 0, 1_000, true, 0)
	require.NoError(t, err)
	assert.InDelta(t, 100_000, float64(est.AmountOut), 2)

	est, err = EstimateSwap(liquidity, sqrt, 0, 100_000, false, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1_000, float64(est.AmountOut), 2)
}

func TestEstimateSwapErrors(t *testing.T) {
	sqrt := new(big.Int).Lsh(big.NewInt(1), 64)

	_, err := EstimateSwap(big.NewInt(0), sqrt, 0, 10, true, 0)
	assert.ErrorIs(t, err, model.ErrSwapQuote)

	_, err = EstimateSwap(big.NewInt(1), sqrt, 0, 0, true, 0)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	_, err = EstimateSwap(big.NewInt(1), sqrt, 0, 10, true, 10_001)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)

	_, err = EstimateSwap(big.NewInt(1), big.NewInt(1), 0, 10, true, 0)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestSwapSqrtPriceLimit(t *testing.T) {
	assert.Equal(t, "4295048016", SwapSqrtPriceLimit(true).String())
	assert.Equal(t, "79226673515401279992447579055", SwapSqrtPriceLimit(false).String())
}
