// Package allocator splits a native SOL budget between the two sides of a
// pool, converting half through a swap.
package allocator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/swap"
)

// SwapComputeUnits is the compute budget of the swap transaction.
const SwapComputeUnits = 400_000

// WrapComputeUnits is the compute budget of the wrap-only transaction sent
// when the swap cannot be quoted.
const WrapComputeUnits = 50_000

const solDecimals = 9

// Request is a funding split for PositionCount positions.
type Request struct {
	Total         uint64
	PositionCount int
	Pool          model.Pool
	Owner         solana.PublicKey
	SlippageBps   uint16
}

// Allocator computes per-position token amounts.
type Allocator struct {
	quoter swap.Quoter
	logger *zap.Logger
}

func New(quoter swap.Quoter, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{quoter: quoter, logger: logger}
}

// Allocate keeps half of Total in SOL and swaps the other half into the
// pool's other token. When the swap cannot be quoted it falls back to the
// current price and returns a batch that only wraps the SOL the deposits
// spend.
func (a *Allocator) Allocate(ctx context.Context, req Request) (model.AllocationResult, error) {
	if req.PositionCount <= 0 {
		return model.AllocationResult{}, fmt.Errorf("%w: position count must be positive", model.ErrInvalidParameter)
	}
	solIsA := req.Pool.TokenMintA.Equals(solana.WrappedSol)
	solIsB := req.Pool.TokenMintB.Equals(solana.WrappedSol)
	if !solIsA && !solIsB {
		return model.AllocationResult{}, fmt.Errorf("%w: pool %s has no SOL side", model.ErrInvalidParameter, req.Pool.Address)
	}

	n := uint64(req.PositionCount)
	half := req.Total / 2
	solPerPosition := half / n
	if solPerPosition == 0 {
		return model.AllocationResult{}, fmt.Errorf("%w: %d lamports is too little for %d positions", model.ErrInvalidParameter, req.Total, n)
	}

	otherSide := "Token B"
	if solIsB {
		otherSide = "Token A"
	}

	var other uint64
	var swapBatch *model.TransactionBatch
	estimated := false

	q, quoteErr := a.quote(ctx, req, half, solPerPosition*n)
	var err error
	switch {
	case quoteErr == nil:
		other = q.EstimatedOut / n
		ixs := append([]model.Instruction{model.ComputeBudgetInstruction{UnitLimit: SwapComputeUnits}}, q.Instructions...)
		swapBatch = &model.TransactionBatch{
			Instructions: ixs,
			Description:  fmt.Sprintf("Swap %s SOL -> %s", formatSOL(half), otherSide),
		}
	case ctx.Err() != nil:
		return model.AllocationResult{}, quoteErr
	default:
		other, err = fallback(req.Pool.SqrtPrice, solPerPosition, solIsA)
		if err != nil {
			return model.AllocationResult{}, err
		}
		estimated = true
		if swapBatch, err = wrapBatch(req.Owner, solPerPosition*n); err != nil {
			return model.AllocationResult{}, err
		}
		a.logger.Warn("swap quote failed, using current price",
			zap.Stringer("pool", req.Pool.Address),
			zap.String("swap_sol", formatSOL(half)),
			zap.Uint64("other_per_position", other),
			zap.Error(quoteErr),
		)
	}

	res := model.AllocationResult{SwapBatch: swapBatch, Estimated: estimated}
	if solIsA {
		res.TokenAPerPosition, res.TokenBPerPosition = solPerPosition, other
	} else {
		res.TokenAPerPosition, res.TokenBPerPosition = other, solPerPosition
	}
	return res, nil
}

// wrapBatch funds the owner's wrapped SOL account for the SOL side of every
// deposit, the part of the swap transaction that does not need a quote.
func wrapBatch(owner solana.PublicKey, lamports uint64) (*model.TransactionBatch, error) {
	wrap, _, err := swap.WrapSOL(owner, lamports)
	if err != nil {
		return nil, err
	}
	ixs := []model.Instruction{model.ComputeBudgetInstruction{UnitLimit: WrapComputeUnits}}
	for i, label := range []string{"create wsol account", "wrap sol", "sync native"} {
		ixs = append(ixs, model.ExternalInstruction{Label: label, Instruction: wrap[i]})
	}
	return &model.TransactionBatch{
		Instructions: ixs,
		Description:  fmt.Sprintf("Wrap %s SOL", formatSOL(lamports)),
	}, nil
}

func (a *Allocator) quote(ctx context.Context, req Request, amount, keepWrapped uint64) (swap.Quote, error) {
	if a.quoter == nil {
		return swap.Quote{}, fmt.Errorf("%w: no swap quoter", model.ErrSwapQuote)
	}
	return a.quoter.SwapInstructions(ctx, swap.Request{
		Pool:        req.Pool,
		InputMint:   solana.WrappedSol,
		Amount:      amount,
		SlippageBps: req.SlippageBps,
		Owner:       req.Owner,
		WrapExtra:   keepWrapped,
	})
}

var q128 = new(big.Int).Lsh(big.NewInt(1), 128)

// fallback converts solPerPosition into the other token at the raw price
// (sqrtPrice / 2^64)^2, which is B per A in base units.
func fallback(sqrtPrice *big.Int, solPerPosition uint64, solIsA bool) (uint64, error) {
	if sqrtPrice == nil || sqrtPrice.Sign() <= 0 {
		return 0, fmt.Errorf("%w: pool sqrt price is not set", model.ErrInvalidParameter)
	}
	priceX128 := new(big.Int).Mul(sqrtPrice, sqrtPrice)
	amount := new(big.Int).SetUint64(solPerPosition)
	if solIsA {
		amount.Mul(amount, priceX128).Quo(amount, q128)
	} else {
		amount.Mul(amount, q128).Quo(amount, priceX128)
	}
	if !amount.IsUint64() {
		return 0, fmt.Errorf("%w: fallback amount %s exceeds u64", model.ErrMathOverflow, amount)
	}
	return amount.Uint64(), nil
}

func formatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -solDecimals).String()
}
