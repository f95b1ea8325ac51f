package quote

import (
	"fmt"
	"math"
	"math/big"

	"bundleKeeper/internal/model"
)

const floatPrec = 256

var (
	logBase   = math.Log(1.0001)
	two64     = new(big.Float).SetPrec(floatPrec).SetMantExp(big.NewFloat(1), 64)
	tickSlack = 1e-9
)

// PriceFromSqrtPrice converts a Q64.64 square-root price into a price of
// token A quoted in token B, adjusted for decimals.
func PriceFromSqrtPrice(sqrtPrice *big.Int, decimalsA, decimalsB uint8) float64 {
	f := RawPriceFromSqrtPrice(sqrtPrice)
	f.Mul(f, pow10(int(decimalsA)-int(decimalsB)))
	p, _ := f.Float64()
	return p
}

// RawPriceFromSqrtPrice returns (sqrtPrice / 2^64)^2 in base units.
func RawPriceFromSqrtPrice(sqrtPrice *big.Int) *big.Float {
	f := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPrice)
	f.Quo(f, two64)
	return f.Mul(f, f)
}

// TickFromPrice maps a decimal-adjusted price to the tick at or below it.
func TickFromPrice(price float64, decimalsA, decimalsB uint8) (int32, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: price %v", model.ErrInvalidParameter, price)
	}
	raw := math.Log(price)/logBase - float64(int(decimalsA)-int(decimalsB))*math.Ln10/logBase
	tick := math.Floor(raw + tickSlack)
	if tick < float64(MinTick) || tick > float64(MaxTick) {
		return 0, fmt.Errorf("%w: price %v maps to tick %.0f", model.ErrMathOverflow, price, tick)
	}
	return int32(tick), nil
}

// TickToPrice is the decimal-adjusted price at tick.
func TickToPrice(tick int32, decimalsA, decimalsB uint8) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow10(int(decimalsA)-int(decimalsB))
}

// IsInRange reports whether the tick implied by sqrtPrice lies in [tickLower, tickUpper).
func IsInRange(sqrtPrice *big.Int, tickLower, tickUpper int32) (bool, error) {
	if tickLower >= tickUpper {
		return false, fmt.Errorf("%w: lower %d >= upper %d", model.ErrInvalidRange, tickLower, tickUpper)
	}
	if _, err := toU256(sqrtPrice); err != nil {
		return false, err
	}
	lower, err := SqrtPriceAtTick(tickLower)
	if err != nil {
		return false, err
	}
	upper, err := SqrtPriceAtTick(tickUpper)
	if err != nil {
		return false, err
	}
	return sqrtPrice.Cmp(lower) >= 0 && sqrtPrice.Cmp(upper) < 0, nil
}

func pow10(exp int) *big.Float {
	f := new(big.Float).SetPrec(floatPrec).SetInt64(1)
	ten := new(big.Float).SetPrec(floatPrec).SetInt64(10)
	if exp >= 0 {
		for i := 0; i < exp; i++ {
			f.Mul(f, ten)
		}
		return f
	}
	for i := 0; i < -exp; i++ {
		f.Quo(f, ten)
	}
	return f
}
