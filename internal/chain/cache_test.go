package chain

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundleKeeper/internal/model"
)

func TestPoolCacheInvalidate(t *testing.T) {
	a := solana.MustPublicKeyFromBase58("Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE")
	b := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	cache := NewPoolCache()
	cache.Set(model.Pool{Address: a, TickSpacing: 64})
	cache.Set(model.Pool{Address: b, TickSpacing: 1})

	got, ok := cache.Get(a)
	require.True(t, ok)
	assert.Equal(t, uint16(64), got.TickSpacing)

	cache.Invalidate(a)
	_, ok = cache.Get(a)
	assert.False(t, ok, "pool should be invalidated")

	got, ok = cache.Get(b)
	require.True(t, ok)
	assert.Equal(t, uint16(1), got.TickSpacing)
}

func TestMintCache(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	cache := NewMintCache()
	_, ok := cache.Get(mint)
	assert.False(t, ok)

	cache.Set(mint, MintInfo{Decimals: 9, TokenProgram: solana.TokenProgramID})
	info, ok := cache.Get(mint)
	require.True(t, ok)
	assert.Equal(t, uint8(9), info.Decimals)
	assert.Equal(t, solana.TokenProgramID, info.TokenProgram)
}
