// Package swap quotes single-pool whirlpool swaps and builds their
// instructions.
package swap

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/quote"
	"bundleKeeper/internal/whirlpool"
)

// Request describes an exact-input swap through Pool.
type Request struct {
	Pool        model.Pool
	InputMint   solana.PublicKey
	Amount      uint64
	SlippageBps uint16
	Owner       solana.PublicKey
	// WrapExtra is native SOL left wrapped in the owner's account after a
	// SOL-input swap, for deposits that follow.
	WrapExtra uint64
}

// Quote is a priced swap and the instructions that perform it.
type Quote struct {
	Instructions []model.Instruction
	EstimatedOut uint64
	MinimumOut   uint64
	AToB         bool
}

// Quoter turns a swap request into instructions.
type Quoter interface {
	SwapInstructions(ctx context.Context, req Request) (Quote, error)
}

// WhirlpoolQuoter swaps directly through the pool being funded.
type WhirlpoolQuoter struct {
	logger *zap.Logger
}

func NewWhirlpoolQuoter(logger *zap.Logger) *WhirlpoolQuoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhirlpoolQuoter{logger: logger}
}

// SwapInstructions implements Quoter. Every error wraps model.ErrSwapQuote.
func (q *WhirlpoolQuoter) SwapInstructions(ctx context.Context, req Request) (Quote, error) {
	if err := ctx.Err(); err != nil {
		return Quote{}, fmt.Errorf("%w: %w", model.ErrSwapQuote, err)
	}
	out, err := q.build(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %w", model.ErrSwapQuote, err)
	}
	q.logger.Debug("swap quoted",
		zap.Stringer("pool", req.Pool.Address),
		zap.Bool("a_to_b", out.AToB),
		zap.Uint64("amount_in", req.Amount),
		zap.Uint64("estimated_out", out.EstimatedOut),
		zap.Uint64("minimum_out", out.MinimumOut),
	)
	return out, nil
}

func (q *WhirlpoolQuoter) build(req Request) (Quote, error) {
	pool := req.Pool
	var aToB bool
	switch {
	case req.InputMint.Equals(pool.TokenMintA):
		aToB = true
	case req.InputMint.Equals(pool.TokenMintB):
		aToB = false
	default:
		return Quote{}, fmt.Errorf("mint %s is not in pool %s", req.InputMint, pool.Address)
	}
	if req.Owner.IsZero() {
		return Quote{}, fmt.Errorf("%w: owner is required", model.ErrInvalidParameter)
	}
	if pool.TickSpacing == 0 {
		return Quote{}, fmt.Errorf("%w: pool tick spacing is zero", model.ErrInvalidParameter)
	}

	est, err := quote.EstimateSwap(pool.Liquidity, pool.SqrtPrice, pool.FeeRate, req.Amount, aToB, req.SlippageBps)
	if err != nil {
		return Quote{}, err
	}

	var ixs []model.Instruction
	external := func(label string, ix solana.Instruction) {
		ixs = append(ixs, model.ExternalInstruction{Label: label, Instruction: ix})
	}

	if req.InputMint.Equals(solana.WrappedSol) {
		wrap, _, err := WrapSOL(req.Owner, req.Amount+req.WrapExtra)
		if err != nil {
			return Quote{}, err
		}
		external("create wsol account", wrap[0])
		external("wrap sol", wrap[1])
		external("sync native", wrap[2])
	}

	ownerA, err := whirlpool.AssociatedTokenAddress(req.Owner, pool.TokenMintA, pool.TokenProgramA)
	if err != nil {
		return Quote{}, err
	}
	ownerB, err := whirlpool.AssociatedTokenAddress(req.Owner, pool.TokenMintB, pool.TokenProgramB)
	if err != nil {
		return Quote{}, err
	}
	outMint, outProgram := pool.TokenMintB, pool.TokenProgramB
	if !aToB {
		outMint, outProgram = pool.TokenMintA, pool.TokenProgramA
	}
	createOut, _, err := CreateAssociatedTokenAccountIdempotent(req.Owner, req.Owner, outMint, outProgram)
	if err != nil {
		return Quote{}, err
	}
	external("create output account", createOut)

	arrays, err := TickArrays(pool.Address, pool.TickCurrentIndex, pool.TickSpacing, aToB)
	if err != nil {
		return Quote{}, err
	}
	oracle, err := whirlpool.OracleAddress(pool.Address)
	if err != nil {
		return Quote{}, err
	}
	ix, err := whirlpool.SwapV2(whirlpool.SwapArgs{
		Amount:                 req.Amount,
		OtherAmountThreshold:   est.MinimumOut,
		SqrtPriceLimit:         uint128.FromBig(quote.SwapSqrtPriceLimit(aToB)),
		AmountSpecifiedIsInput: true,
		AToB:                   aToB,
	}, whirlpool.SwapAccounts{
		TokenProgramA:      pool.TokenProgramA,
		TokenProgramB:      pool.TokenProgramB,
		TokenAuthority:     req.Owner,
		Whirlpool:          pool.Address,
		TokenMintA:         pool.TokenMintA,
		TokenMintB:         pool.TokenMintB,
		TokenOwnerAccountA: ownerA,
		TokenVaultA:        pool.TokenVaultA,
		TokenOwnerAccountB: ownerB,
		TokenVaultB:        pool.TokenVaultB,
		TickArray0:         arrays[0],
		TickArray1:         arrays[1],
		TickArray2:         arrays[2],
		Oracle:             oracle,
	})
	if err != nil {
		return Quote{}, err
	}
	external("swap", ix)

	return Quote{
		Instructions: ixs,
		EstimatedOut: est.AmountOut,
		MinimumOut:   est.MinimumOut,
		AToB:         aToB,
	}, nil
}

// TickArrays returns the three tick arrays a swap starting at tickCurrent
// walks through, repeating the last one at the edge of the tick range.
func TickArrays(pool solana.PublicKey, tickCurrent int32, spacing uint16, aToB bool) ([3]solana.PublicKey, error) {
	var out [3]solana.PublicKey
	shift := int32(0)
	if !aToB {
		shift = int32(spacing)
	}
	width := int32(spacing) * quote.TickArraySize
	minStart := quote.TickArrayStart(quote.MinTick, spacing)
	maxStart := quote.TickArrayStart(quote.MaxTick, spacing)

	start := quote.TickArrayStart(tickCurrent+shift, spacing)
	for i := range out {
		if start < minStart {
			start = minStart
		}
		if start > maxStart {
			start = maxStart
		}
		addr, err := whirlpool.TickArrayAddress(pool, start)
		if err != nil {
			return out, err
		}
		out[i] = addr
		if aToB {
			start -= width
		} else {
			start += width
		}
	}
	return out, nil
}
