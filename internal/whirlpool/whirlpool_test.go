package whirlpool

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

var (
	testMint  = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testPool  = solana.MustPublicKeyFromBase58("Czfq3xZZDmsdGdUyrNLtRhGc47cXcZtLG4crryfu44zE")
	testOwner = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
)

func TestOpenBundledPositionEncoding(t *testing.T) {
	ix, err := OpenBundledPosition(7, -128, 64, OpenBundledPositionAccounts{
		BundledPosition: testMint, PositionBundle: testMint, BundleTokenAccount: testMint,
		BundleAuthority: testOwner, Whirlpool: testPool, Funder: testOwner,
	})
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)

	want := []byte{169, 113, 126, 171, 213, 172, 212, 49, 7, 0}
	want = binary.LittleEndian.AppendUint32(want, uint32(0xffffff80))
	want = binary.LittleEndian.AppendUint32(want, 64)
	assert.Equal(t, want, data)
	assert.Equal(t, ProgramID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 8)
	assert.True(t, accounts[3].IsSigner, "bundle authority signs")
	assert.False(t, accounts[3].IsWritable, "bundle authority is read-only")
	assert.True(t, accounts[5].IsSigner, "funder signs")
	assert.True(t, accounts[5].IsWritable, "funder pays rent")
}

func TestIncreaseLiquidityV2Encoding(t *testing.T) {
	liq := uint128.New(5, 1)
	ix, err := IncreaseLiquidityV2(liq, 1000, 2000, IncreaseLiquidityAccounts{PositionAuthority: testOwner})
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)

	require.Len(t, data, 8+16+8+8+1)
	assert.Equal(t, []byte{133, 29, 89, 223, 69, 238, 176, 10}, data[:8])
	assert.Equal(t, liq, uint128.FromBytes(data[8:24]))
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[24:]))
	assert.Equal(t, uint64(2000), binary.LittleEndian.Uint64(data[32:]))
	assert.Equal(t, byte(0), data[40], "remaining accounts info is None")

	accounts := ix.Accounts()
	require.Len(t, accounts, 15)
	assert.Equal(t, solana.TokenProgramID, accounts[1].PublicKey, "empty token program defaults to spl-token")
	assert.Equal(t, MemoProgramID, accounts[3].PublicKey)
}

func TestBundledPositionAddress(t *testing.T) {
	a, err := BundledPositionAddress(testMint, 1)
	require.NoError(t, err)
	b, err := BundledPositionAddress(testMint, 1)
	require.NoError(t, err)
	c, err := BundledPositionAddress(testMint, 2)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	bundle, err := PositionBundleAddress(testMint)
	require.NoError(t, err)
	assert.NotEqual(t, a, bundle)
}

func TestDecodeWhirlpool(t *testing.T) {
	data := make([]byte, 653)
	copy(data, whirlpoolAccountDisc[:])
	binary.LittleEndian.PutUint16(data[tickSpacingOffset:], 64)
	binary.LittleEndian.PutUint16(data[feeRateOffset:], 3000)
	sqrt := uint128.From64(10).Lsh(64)
	sqrt.PutBytes(data[sqrtPriceOffset:])
	tick := int32(-46054)
	binary.LittleEndian.PutUint32(data[tickCurrentOffset:], uint32(tick))
	copy(data[mintAOffset:], testMint.Bytes())
	copy(data[mintBOffset:], testOwner.Bytes())

	pool, err := DecodeWhirlpool(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(64), pool.TickSpacing)
	assert.Equal(t, uint16(3000), pool.FeeRate)
	assert.Equal(t, tick, pool.TickCurrentIndex)
	assert.Equal(t, sqrt, pool.SqrtPrice)
	assert.Equal(t, testMint, pool.TokenMintA)
	assert.Equal(t, testOwner, pool.TokenMintB)

	data[0] ^= 0xff
	_, err = DecodeWhirlpool(data)
	assert.Error(t, err, "discriminator")
	_, err = DecodeWhirlpool(data[:100])
	assert.Error(t, err, "length")
}

func TestDecodePosition(t *testing.T) {
	buf := new(bytes.Buffer)
	buf.Write(positionAccountDisc[:])
	buf.Write(testPool.Bytes())
	buf.Write(testMint.Bytes())
	var liq [16]byte
	uint128.From64(42).PutBytes(liq[:])
	buf.Write(liq[:])
	_ = binary.Write(buf, binary.LittleEndian, int32(-640))
	_ = binary.Write(buf, binary.LittleEndian, int32(640))
	buf.Write(make([]byte, 100))

	pos, err := DecodePosition(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, &Position{
		Whirlpool:      testPool,
		PositionMint:   testMint,
		Liquidity:      uint128.From64(42),
		TickLowerIndex: -640,
		TickUpperIndex: 640,
	}, pos)
}

func TestBitmap(t *testing.T) {
	var bm Bitmap
	for _, i := range []int{0, 1, 2, 9, 64, 255} {
		bm.Set(i)
	}

	assert.Equal(t, []int{0, 1, 2, 9, 64, 255}, bm.Occupied())
	assert.Equal(t, 6, bm.Count())
	assert.Equal(t, 3, bm.FirstFree())
	assert.True(t, bm.IsOccupied(9))
	assert.False(t, bm.IsOccupied(10))
	assert.False(t, bm.IsOccupied(300))
	assert.Equal(t, byte(0x02), bm[1])
	assert.Equal(t, byte(0x80), bm[31])

	var full Bitmap
	for i := range full {
		full[i] = 0xff
	}
	assert.Equal(t, -1, full.FirstFree())
}

func TestDecodePositionBundle(t *testing.T) {
	data := make([]byte, bundleMinLen)
	copy(data, positionBundleAccountDisc[:])
	copy(data[bundleMintOffset:], testMint.Bytes())
	data[bundleBitmapOffset] = 0x05

	pb, err := DecodePositionBundle(data)
	require.NoError(t, err)
	assert.Equal(t, testMint, pb.Mint)
	assert.Equal(t, []int{0, 2}, pb.Bitmap.Occupied())
}
