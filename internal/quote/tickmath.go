package quote

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"bundleKeeper/internal/model"
)

const (
	// MinTick and MaxTick bound whirlpool tick indices.
	MinTick int32 = -443636
	MaxTick int32 = 443636

	// TickArraySize is the number of ticks stored per tick array account.
	TickArraySize = 88
)

var (
	one = uint256.NewInt(1)
	q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

	// MinSqrtPrice and MaxSqrtPrice are the program's Q64.64 bounds,
	// the square-root prices of MinTick and MaxTick.
	MinSqrtPrice = uint256.NewInt(4295048016)
	MaxSqrtPrice = uint256.MustFromDecimal("79226673515401279992447579055")

	// sqrt(1.0001^(2^i)) in Q96.96 for i = 0..18, with 1.0 at index 1.
	positiveRatios = [20]*uint256.Int{
		uint256.MustFromDecimal("79232123823359799118286999567"),
		uint256.MustFromDecimal("79228162514264337593543950336"),
		uint256.MustFromDecimal("79236085330515764027303304731"),
		uint256.MustFromDecimal("79244008939048815603706035061"),
		uint256.MustFromDecimal("79259858533276714757314932305"),
		uint256.MustFromDecimal("79291567232598584799939703904"),
		uint256.MustFromDecimal("79355022692464371645785046466"),
		uint256.MustFromDecimal("79482085999252804386437311141"),
		uint256.MustFromDecimal("79736823300114093921829183326"),
		uint256.MustFromDecimal("80248749790819932309965073892"),
		uint256.MustFromDecimal("81282483887344747381513967011"),
		uint256.MustFromDecimal("83390072131320151908154831281"),
		uint256.MustFromDecimal("87770609709833776024991924138"),
		uint256.MustFromDecimal("97234110755111693312479820773"),
		uint256.MustFromDecimal("119332217159966728226237229890"),
		uint256.MustFromDecimal("179736315981702064433883588727"),
		uint256.MustFromDecimal("407748233172238350107850275304"),
		uint256.MustFromDecimal("2098478828474011932436660412517"),
		uint256.MustFromDecimal("55581415166113811149459800483533"),
		uint256.MustFromDecimal("38992368544603139932233054999993551"),
	}

	// sqrt(1.0001^-(2^i)) in Q64.64, same layout.
	negativeRatios = [20]*uint256.Int{
		uint256.MustFromDecimal("18445821805675392311"),
		uint256.MustFromDecimal("18446744073709551616"),
		uint256.MustFromDecimal("18444899583751176498"),
		uint256.MustFromDecimal("18443055278223354162"),
		uint256.MustFromDecimal("18439367220385604838"),
		uint256.MustFromDecimal("18431993317065449817"),
		uint256.MustFromDecimal("18417254355718160513"),
		uint256.MustFromDecimal("18387811781193591352"),
		uint256.MustFromDecimal("18329067761203520168"),
		uint256.MustFromDecimal("18212142134806087854"),
		uint256.MustFromDecimal("17980523815641551639"),
		uint256.MustFromDecimal("17526086738831147013"),
		uint256.MustFromDecimal("16651378430235024244"),
		uint256.MustFromDecimal("15030750278693429944"),
		uint256.MustFromDecimal("12247334978882834399"),
		uint256.MustFromDecimal("8131365268884726200"),
		uint256.MustFromDecimal("3584323654723342297"),
		uint256.MustFromDecimal("696457651847595233"),
		uint256.MustFromDecimal("26294789957452057"),
		uint256.MustFromDecimal("37481735321082"),
	}
)

var ratioPool = sync.Pool{
	New: func() any {
		return new(uint256.Int)
	},
}

// sqrtPriceAtTick computes sqrt(1.0001^tick) as Q64.64, truncating the way
// the program does. Positive ticks multiply in Q96.96 and drop 32 bits at
// the end; negative ticks stay in Q64.64 throughout.
func sqrtPriceAtTick(dest *uint256.Int, tick int32) error {
	if tick < MinTick || tick > MaxTick {
		return fmt.Errorf("%w: tick %d outside [%d, %d]", model.ErrMathOverflow, tick, MinTick, MaxTick)
	}

	ratio := ratioPool.Get().(*uint256.Int)
	defer ratioPool.Put(ratio)

	table, shift, absTick := &positiveRatios, uint(96), int64(tick)
	if tick < 0 {
		table, shift, absTick = &negativeRatios, 64, -absTick
	}

	if absTick&0x1 != 0 {
		ratio.Set(table[0])
	} else {
		ratio.Set(table[1])
	}
	for i := 2; i < len(table); i++ {
		if absTick&(1<<(i-1)) != 0 {
			ratio.Mul(ratio, table[i])
			ratio.Rsh(ratio, shift)
		}
	}

	if tick >= 0 {
		ratio.Rsh(ratio, 32)
	}
	dest.Set(ratio)
	return nil
}

// SqrtPriceAtTick returns the Q64.64 square-root price of tick.
func SqrtPriceAtTick(tick int32) (*big.Int, error) {
	var v uint256.Int
	if err := sqrtPriceAtTick(&v, tick); err != nil {
		return nil, err
	}
	return v.ToBig(), nil
}

// TickAtSqrtPrice returns the greatest tick whose square-root price is <= sqrtPrice.
func TickAtSqrtPrice(sqrtPrice *big.Int) (int32, error) {
	target, err := toU256(sqrtPrice)
	if err != nil {
		return 0, err
	}
	if target.Lt(MinSqrtPrice) || target.Gt(MaxSqrtPrice) {
		return 0, fmt.Errorf("%w: sqrt price %s outside [%s, %s]", model.ErrMathOverflow,
			sqrtPrice, MinSqrtPrice.Dec(), MaxSqrtPrice.Dec())
	}

	low, high := MinTick, MaxTick
	tick := MinTick
	var mid uint256.Int
	for low <= high {
		m := low + (high-low)/2
		if err := sqrtPriceAtTick(&mid, m); err != nil {
			return 0, err
		}
		if !mid.Gt(target) {
			tick = m
			low = m + 1
		} else {
			high = m - 1
		}
	}
	return tick, nil
}

// FloorToSpacing snaps tick down to a multiple of spacing.
func FloorToSpacing(tick int32, spacing uint16) int32 {
	s := int32(spacing)
	return floorDiv(tick, s) * s
}

// CeilToSpacing snaps tick up to a multiple of spacing.
func CeilToSpacing(tick int32, spacing uint16) int32 {
	s := int32(spacing)
	q := floorDiv(tick, s)
	if q*s != tick {
		q++
	}
	return q * s
}

// TickArrayStart is the start index of the tick array containing tick.
func TickArrayStart(tick int32, spacing uint16) int32 {
	width := int32(spacing) * TickArraySize
	return floorDiv(tick, width) * width
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative or missing value", model.ErrInvalidParameter)
	}
	u, overflow := uint256.FromBig(v)
	if overflow || u.BitLen() > 128 {
		return nil, fmt.Errorf("%w: %s exceeds 128 bits", model.ErrMathOverflow, v)
	}
	return u, nil
}
