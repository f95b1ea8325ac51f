package swap

import (
	"context"
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/whirlpool"
)

var (
	usdcMint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	poolAddr  = solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ")
	ownerAddr = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

func solUSDCPool() model.Pool {
	return model.Pool{
		Address:          poolAddr,
		TokenMintA:       solana.WrappedSol,
		TokenMintB:       usdcMint,
		TokenVaultA:      solana.MustPublicKeyFromBase58("3YQm7ujtXWJU2e9jhp2QGHpnn1ShXn12QjvzMvDgabpX"),
		TokenVaultB:      solana.MustPublicKeyFromBase58("2JTw1fE2wz1SymWUQ7UqpVtrTuKjcd6mWwYwUJUCh2rq"),
		TokenProgramA:    solana.TokenProgramID,
		TokenProgramB:    solana.TokenProgramID,
		DecimalsA:        9,
		DecimalsB:        6,
		TickSpacing:      64,
		TickCurrentIndex: 0,
		FeeRate:          3000,
		Liquidity:        big.NewInt(1_000_000_000_000),
		SqrtPrice:        new(big.Int).Lsh(big.NewInt(1), 64),
	}
}

func labels(ixs []model.Instruction) []string {
	out := make([]string, len(ixs))
	for i, ix := range ixs {
		out[i] = ix.(model.ExternalInstruction).Label
	}
	return out
}

func TestSwapInstructionsWrapsSOL(t *testing.T) {
	q := NewWhirlpoolQuoter(nil)
	res, err := q.SwapInstructions(context.Background(), Request{
		Pool:        solUSDCPool(),
		InputMint:   solana.WrappedSol,
		Amount:      1_000_000,
		SlippageBps: 100,
		Owner:       ownerAddr,
		WrapExtra:   500_000,
	})
	require.NoError(t, err)
	assert.True(t, res.AToB)
	assert.Equal(t, []string{"create wsol account", "wrap sol", "sync native", "create output account", "swap"}, labels(res.Instructions))
	assert.Greater(t, res.EstimatedOut, uint64(990_000))
	assert.Less(t, res.MinimumOut, res.EstimatedOut)

	transfer := res.Instructions[1].(model.ExternalInstruction).Instruction
	data, err := transfer.Data()
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint64(1_500_000), binary.LittleEndian.Uint64(data[4:]))

	swapIx := res.Instructions[4].(model.ExternalInstruction).Instruction
	assert.Equal(t, whirlpool.ProgramID, swapIx.ProgramID())
	data, err = swapIx.Data()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, res.MinimumOut, binary.LittleEndian.Uint64(data[16:24]))
	assert.Equal(t, byte(1), data[40], "amount is input")
	assert.Equal(t, byte(1), data[41], "a to b")
	assert.Equal(t, "4295048016", uint128.FromBytes(data[24:40]).String())
}

func TestSwapInstructionsSOLAsTokenB(t *testing.T) {
	pool := solUSDCPool()
	pool.TokenMintA, pool.TokenMintB = usdcMint, solana.WrappedSol
	pool.TokenVaultA, pool.TokenVaultB = pool.TokenVaultB, pool.TokenVaultA

	q := NewWhirlpoolQuoter(nil)
	res, err := q.SwapInstructions(context.Background(), Request{
		Pool:        pool,
		InputMint:   solana.WrappedSol,
		Amount:      1_000_000,
		SlippageBps: 100,
		Owner:       ownerAddr,
	})
	require.NoError(t, err)
	assert.False(t, res.AToB)
	require.Len(t, res.Instructions, 5)

	data, err := res.Instructions[4].(model.ExternalInstruction).Instruction.Data()
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[41], "b to a")
	// the program rejects limits above its max sqrt price
	assert.Equal(t, "79226673515401279992447579055", uint128.FromBytes(data[24:40]).String())
}

func TestSwapInstructionsTokenInput(t *testing.T) {
	q := NewWhirlpoolQuoter(nil)
	res, err := q.SwapInstructions(context.Background(), Request{
		Pool:      solUSDCPool(),
		InputMint: usdcMint,
		Amount:    1_000_000,
		Owner:     ownerAddr,
	})
	require.NoError(t, err)
	assert.False(t, res.AToB)
	assert.Equal(t, []string{"create output account", "swap"}, labels(res.Instructions))
}

func TestSwapInstructionsErrors(t *testing.T) {
	q := NewWhirlpoolQuoter(nil)

	_, err := q.SwapInstructions(context.Background(), Request{
		Pool: solUSDCPool(), InputMint: ownerAddr, Amount: 1, Owner: ownerAddr,
	})
	assert.ErrorIs(t, err, model.ErrSwapQuote)

	empty := solUSDCPool()
	empty.Liquidity = big.NewInt(0)
	_, err = q.SwapInstructions(context.Background(), Request{
		Pool: empty, InputMint: solana.WrappedSol, Amount: 1, Owner: ownerAddr,
	})
	assert.ErrorIs(t, err, model.ErrSwapQuote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = q.SwapInstructions(ctx, Request{Pool: solUSDCPool(), InputMint: solana.WrappedSol, Amount: 1, Owner: ownerAddr})
	assert.ErrorIs(t, err, model.ErrSwapQuote)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTickArrays(t *testing.T) {
	want := func(starts ...int32) [3]solana.PublicKey {
		var out [3]solana.PublicKey
		for i, s := range starts {
			addr, err := whirlpool.TickArrayAddress(poolAddr, s)
			require.NoError(t, err)
			out[i] = addr
		}
		return out
	}

	got, err := TickArrays(poolAddr, 0, 64, true)
	require.NoError(t, err)
	assert.Equal(t, want(0, -5632, -11264), got)

	got, err = TickArrays(poolAddr, -1, 64, false)
	require.NoError(t, err)
	assert.Equal(t, want(0, 5632, 11264), got)

	got, err = TickArrays(poolAddr, 439000, 64, false)
	require.NoError(t, err)
	assert.Equal(t, want(433664, 439296, 439296), got)
}

func TestWrapSOL(t *testing.T) {
	ixs, ata, err := WrapSOL(ownerAddr, 42)
	require.NoError(t, err)
	require.Len(t, ixs, 3)
	expected, _, err := solana.FindAssociatedTokenAddress(ownerAddr, solana.WrappedSol)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	assert.Equal(t, solana.SystemProgramID, ixs[1].ProgramID())
	assert.Equal(t, solana.TokenProgramID, ixs[2].ProgramID())
}
