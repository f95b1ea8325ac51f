package allocator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/swap"
)

var (
	usdc  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	bonk  = solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
	owner = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

type fakeQuoter struct {
	got swap.Request
	out uint64
	err error
}

func (f *fakeQuoter) SwapInstructions(ctx context.Context, req swap.Request) (swap.Quote, error) {
	f.got = req
	if f.err != nil {
		return swap.Quote{}, f.err
	}
	return swap.Quote{
		Instructions: []model.Instruction{model.ExternalInstruction{Label: "swap"}},
		EstimatedOut: f.out,
	}, nil
}

// raw price 100 (B per A).
func pool(mintA, mintB solana.PublicKey) model.Pool {
	return model.Pool{
		TokenMintA: mintA,
		TokenMintB: mintB,
		SqrtPrice:  new(big.Int).Lsh(big.NewInt(10), 64),
	}
}

func TestAllocateSOLAsTokenA(t *testing.T) {
	q := &fakeQuoter{out: 100_000_000}
	res, err := New(q, nil).Allocate(context.Background(), Request{
		Total: 2_000_000_000, PositionCount: 4, Pool: pool(solana.WrappedSol, usdc), Owner: owner, SlippageBps: 50,
	})
	require.NoError(t, err)

	assert.Equal(t, solana.WrappedSol, q.got.InputMint)
	assert.Equal(t, uint64(1_000_000_000), q.got.Amount)
	assert.Equal(t, uint64(1_000_000_000), q.got.WrapExtra)
	assert.Equal(t, uint16(50), q.got.SlippageBps)

	assert.Equal(t, uint64(250_000_000), res.TokenAPerPosition)
	assert.Equal(t, uint64(25_000_000), res.TokenBPerPosition)
	assert.False(t, res.Estimated)
	require.NotNil(t, res.SwapBatch)
	assert.Equal(t, "Swap 1 SOL -> Token B", res.SwapBatch.Description)
	require.Len(t, res.SwapBatch.Instructions, 2)
	assert.Equal(t, model.ComputeBudgetInstruction{UnitLimit: SwapComputeUnits}, res.SwapBatch.Instructions[0])
	assert.Empty(t, res.SwapBatch.PositionIndices)
}

func TestAllocateSOLAsTokenB(t *testing.T) {
	q := &fakeQuoter{out: 3_000_000}
	res, err := New(q, nil).Allocate(context.Background(), Request{
		Total: 1_500_000_001, PositionCount: 3, Pool: pool(bonk, solana.WrappedSol), Owner: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), res.TokenAPerPosition)
	assert.Equal(t, uint64(250_000_000), res.TokenBPerPosition)
	require.NotNil(t, res.SwapBatch)
	assert.Equal(t, "Swap 0.75 SOL -> Token A", res.SwapBatch.Description)
}

func TestAllocateFallsBackToPrice(t *testing.T) {
	quoteErr := fmt.Errorf("%w: no route", model.ErrSwapQuote)

	res, err := New(&fakeQuoter{err: quoteErr}, nil).Allocate(context.Background(), Request{
		Total: 2_000_000_000, PositionCount: 4, Pool: pool(solana.WrappedSol, usdc), Owner: owner,
	})
	require.NoError(t, err)
	assert.True(t, res.Estimated)
	assert.Equal(t, uint64(250_000_000), res.TokenAPerPosition)
	assert.Equal(t, uint64(25_000_000_000), res.TokenBPerPosition)

	// deposits still spend wrapped SOL, so the fallback wraps it up front
	require.NotNil(t, res.SwapBatch)
	assert.Equal(t, "Wrap 1 SOL", res.SwapBatch.Description)
	require.Len(t, res.SwapBatch.Instructions, 4)
	assert.Equal(t, model.ComputeBudgetInstruction{UnitLimit: WrapComputeUnits}, res.SwapBatch.Instructions[0])
	transfer := res.SwapBatch.Instructions[2].(model.ExternalInstruction)
	assert.Equal(t, "wrap sol", transfer.Label)
	data, err := transfer.Instruction.Data()
	require.NoError(t, err)
	require.Len(t, data, 12)
	assert.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[4:]))

	res, err = New(&fakeQuoter{err: quoteErr}, nil).Allocate(context.Background(), Request{
		Total: 2_000_000_000, PositionCount: 4, Pool: pool(bonk, solana.WrappedSol), Owner: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), res.TokenAPerPosition)
	assert.Equal(t, uint64(250_000_000), res.TokenBPerPosition)
	require.NotNil(t, res.SwapBatch)
	assert.Equal(t, "Wrap 1 SOL", res.SwapBatch.Description)

	res, err = New(nil, nil).Allocate(context.Background(), Request{
		Total: 2_000_000_000, PositionCount: 4, Pool: pool(solana.WrappedSol, usdc), Owner: owner,
	})
	require.NoError(t, err)
	assert.True(t, res.Estimated)
}

func TestAllocateCancelledDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeQuoter{err: context.Canceled}, nil).Allocate(ctx, Request{
		Total: 2_000_000_000, PositionCount: 4, Pool: pool(solana.WrappedSol, usdc), Owner: owner,
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAllocateInvalid(t *testing.T) {
	cases := []struct {
		name string
		req  Request
	}{
		{name: "no positions", req: Request{Total: 10, Pool: pool(solana.WrappedSol, usdc)}},
		{name: "no sol side", req: Request{Total: 10, PositionCount: 1, Pool: pool(bonk, usdc)}},
		{name: "dust", req: Request{Total: 3, PositionCount: 4, Pool: pool(solana.WrappedSol, usdc)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&fakeQuoter{}, nil).Allocate(context.Background(), tc.req)
			assert.ErrorIs(t, err, model.ErrInvalidParameter)
		})
	}
}
