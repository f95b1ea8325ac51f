package quote

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"bundleKeeper/internal/model"
)

// Side names one token of a pool.
type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "B"
	}
	return "A"
}

// MaxSlippageBps is 100%.
const MaxSlippageBps = 10_000

// LiquidityQuote is the result of QuoteLiquidityForAmount.
type LiquidityQuote struct {
	Liquidity *big.Int
	TokenEstA uint64
	TokenEstB uint64
	TokenMaxA uint64
	TokenMaxB uint64
}

// IsZero reports whether the quote adds no liquidity.
func (q LiquidityQuote) IsZero() bool {
	return q.Liquidity == nil || q.Liquidity.Sign() == 0
}

// QuoteLiquidityForAmount computes the liquidity obtainable from amount of
// one side and the slippage-padded maxima of both sides needed to deposit it.
// A position priced entirely in the other side yields a zero quote.
func QuoteLiquidityForAmount(side Side, amount uint64, slippageBps uint16, sqrtPrice *big.Int, tickLower, tickUpper int32) (LiquidityQuote, error) {
	if tickLower >= tickUpper {
		return LiquidityQuote{}, fmt.Errorf("%w: lower %d >= upper %d", model.ErrInvalidRange, tickLower, tickUpper)
	}
	if slippageBps > MaxSlippageBps {
		return LiquidityQuote{}, fmt.Errorf("%w: slippage %d bps", model.ErrInvalidParameter, slippageBps)
	}
	cur, err := toU256(sqrtPrice)
	if err != nil {
		return LiquidityQuote{}, err
	}
	var sqrtLower, sqrtUpper uint256.Int
	if err := sqrtPriceAtTick(&sqrtLower, tickLower); err != nil {
		return LiquidityQuote{}, err
	}
	if err := sqrtPriceAtTick(&sqrtUpper, tickUpper); err != nil {
		return LiquidityQuote{}, err
	}

	zero := LiquidityQuote{Liquidity: new(big.Int)}
	amt := uint256.NewInt(amount)

	var liquidity *uint256.Int
	switch side {
	case SideA:
		if !cur.Lt(&sqrtUpper) {
			return zero, nil
		}
		liquidity, err = liquidityFromA(amt, maxU256(cur, &sqrtLower), &sqrtUpper)
	case SideB:
		if !cur.Gt(&sqrtLower) {
			return zero, nil
		}
		liquidity, err = liquidityFromB(amt, &sqrtLower, minU256(cur, &sqrtUpper))
	default:
		return LiquidityQuote{}, fmt.Errorf("%w: side %d", model.ErrInvalidParameter, side)
	}
	if err != nil {
		return LiquidityQuote{}, err
	}
	if liquidity.BitLen() > 128 {
		return LiquidityQuote{}, fmt.Errorf("%w: liquidity exceeds u128", model.ErrMathOverflow)
	}
	if liquidity.IsZero() {
		return zero, nil
	}

	q := LiquidityQuote{Liquidity: liquidity.ToBig()}
	if cur.Lt(&sqrtUpper) {
		est, err := amountAFromLiquidity(liquidity, maxU256(cur, &sqrtLower), &sqrtUpper)
		if err != nil {
			return LiquidityQuote{}, err
		}
		if q.TokenEstA, q.TokenMaxA, err = withSlippage(est, slippageBps); err != nil {
			return LiquidityQuote{}, err
		}
	}
	if cur.Gt(&sqrtLower) {
		est, err := amountBFromLiquidity(liquidity, &sqrtLower, minU256(cur, &sqrtUpper))
		if err != nil {
			return LiquidityQuote{}, err
		}
		if q.TokenEstB, q.TokenMaxB, err = withSlippage(est, slippageBps); err != nil {
			return LiquidityQuote{}, err
		}
	}
	return q, nil
}

// L = amount * lower * upper / ((upper - lower) * 2^64)
func liquidityFromA(amount, lower, upper *uint256.Int) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(upper, lower)
	if diff.IsZero() {
		return new(uint256.Int), nil
	}
	num := new(uint256.Int).Mul(amount, lower)
	den := new(uint256.Int).Mul(diff, q64)
	return mulDiv(num, upper, den)
}

// L = amount * 2^64 / (upper - lower)
func liquidityFromB(amount, lower, upper *uint256.Int) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(upper, lower)
	if diff.IsZero() {
		return new(uint256.Int), nil
	}
	return mulDiv(amount, q64, diff)
}

// A = ceil(L * (upper - lower) * 2^64 / (lower * upper))
func amountAFromLiquidity(liquidity, lower, upper *uint256.Int) (*uint256.Int, error) {
	num := new(uint256.Int).Mul(liquidity, new(uint256.Int).Sub(upper, lower))
	den := new(uint256.Int).Mul(lower, upper)
	return mulDivRoundingUp(num, q64, den)
}

// B = ceil(L * (upper - lower) / 2^64)
func amountBFromLiquidity(liquidity, lower, upper *uint256.Int) (*uint256.Int, error) {
	return mulDivRoundingUp(liquidity, new(uint256.Int).Sub(upper, lower), q64)
}

func withSlippage(est *uint256.Int, bps uint16) (uint64, uint64, error) {
	if !est.IsUint64() {
		return 0, 0, fmt.Errorf("%w: token amount %s exceeds u64", model.ErrMathOverflow, est.Dec())
	}
	padded, err := mulDivRoundingUp(est, uint256.NewInt(uint64(MaxSlippageBps)+uint64(bps)), uint256.NewInt(MaxSlippageBps))
	if err != nil {
		return 0, 0, err
	}
	if !padded.IsUint64() {
		return 0, 0, fmt.Errorf("%w: padded amount %s exceeds u64", model.ErrMathOverflow, padded.Dec())
	}
	return est.Uint64(), padded.Uint64(), nil
}

func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", model.ErrMathOverflow)
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, fmt.Errorf("%w: mulDiv result exceeds 256 bits", model.ErrMathOverflow)
	}
	return z, nil
}

func mulDivRoundingUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := mulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if !new(uint256.Int).MulMod(x, y, d).IsZero() {
		z.Add(z, one)
	}
	return z, nil
}

func maxU256(a, b *uint256.Int) *uint256.Int {
	if a.Gt(b) {
		return a
	}
	return b
}

func minU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
