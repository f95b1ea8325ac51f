package quote

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqrtPriceAtTickZero(t *testing.T) {
	got, err := SqrtPriceAtTick(0)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(new(big.Int).Lsh(big.NewInt(1), 64)))
}

func TestSqrtPriceAtTickProgramValues(t *testing.T) {
	tests := []struct {
		tick int32
		want string
	}{
		{tick: MinTick, want: "4295048016"},
		{tick: -64, want: "18387811781193591352"},
		{tick: -1, want: "18445821805675392311"},
		{tick: 1, want: "18447666387855959850"},
		{tick: 64, want: "18505865242158250041"},
		{tick: MaxTick, want: "79226673515401279992447579055"},
	}
	for _, tt := range tests {
		got, err := SqrtPriceAtTick(tt.tick)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.String(), "tick %d", tt.tick)
	}
	assert.Equal(t, "4295048016", MinSqrtPrice.Dec())
	assert.Equal(t, "79226673515401279992447579055", MaxSqrtPrice.Dec())
}

func TestTickAtSqrtPriceBounds(t *testing.T) {
	got, err := TickAtSqrtPrice(MaxSqrtPrice.ToBig())
	require.NoError(t, err)
	assert.Equal(t, MaxTick, got)

	got, err = TickAtSqrtPrice(MinSqrtPrice.ToBig())
	require.NoError(t, err)
	assert.Equal(t, MinTick, got)

	_, err = TickAtSqrtPrice(new(big.Int).Add(MaxSqrtPrice.ToBig(), big.NewInt(1)))
	require.Error(t, err)
	_, err = TickAtSqrtPrice(new(big.Int).Sub(MinSqrtPrice.ToBig(), big.NewInt(1)))
	require.Error(t, err)
}

func TestSqrtPriceAtTickMonotonic(t *testing.T) {
	prev, err := SqrtPriceAtTick(MinTick)
	require.NoError(t, err)
	for _, tick := range []int32{-300000, -46054, -1, 0, 1, 64, 46054, 300000, MaxTick} {
		cur, err := SqrtPriceAtTick(tick)
		require.NoError(t, err)
		assert.Equal(t, 1, cur.Cmp(prev), "tick %d", tick)
		prev = cur
	}
}

func TestSqrtPriceAtTickOutOfBounds(t *testing.T) {
	_, err := SqrtPriceAtTick(MaxTick + 1)
	require.Error(t, err)
	_, err = SqrtPriceAtTick(MinTick - 1)
	require.Error(t, err)
}

func TestTickAtSqrtPriceRoundTrip(t *testing.T) {
	for _, tick := range []int32{MinTick, -200000, -12345, -1, 0, 1, 777, 46054, 200000, MaxTick - 1, MaxTick} {
		sqrt, err := SqrtPriceAtTick(tick)
		require.NoError(t, err)

		got, err := TickAtSqrtPrice(sqrt)
		require.NoError(t, err)
		assert.Equal(t, tick, got)

		// one below the boundary belongs to the previous tick
		if tick > MinTick {
			below := new(big.Int).Sub(sqrt, big.NewInt(1))
			got, err = TickAtSqrtPrice(below)
			require.NoError(t, err)
			assert.Equal(t, tick-1, got)
		}
	}
}

func TestSpacingSnaps(t *testing.T) {
	tests := []struct {
		tick       int32
		floor, cei int32
	}{
		{tick: 0, floor: 0, cei: 0},
		{tick: 45953, floor: 45952, cei: 46016},
		{tick: 64, floor: 64, cei: 64},
		{tick: -1, floor: -64, cei: 0},
		{tick: -65, floor: -128, cei: -64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.floor, FloorToSpacing(tt.tick, 64), "floor %d", tt.tick)
		assert.Equal(t, tt.cei, CeilToSpacing(tt.tick, 64), "ceil %d", tt.tick)
	}
}

func TestTickArrayStart(t *testing.T) {
	assert.Equal(t, int32(0), TickArrayStart(0, 64))
	assert.Equal(t, int32(45056), TickArrayStart(46054, 64))
	assert.Equal(t, int32(-5632), TickArrayStart(-1, 64))
	assert.Equal(t, int32(-88), TickArrayStart(-88, 1))
}
