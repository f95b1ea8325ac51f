package bundler

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bundleKeeper/internal/batcher"
	"bundleKeeper/internal/model"
	"bundleKeeper/internal/quote"
	"bundleKeeper/internal/whirlpool"
)

// positionSource builds the per-position instructions for one pool and bundle.
type positionSource struct {
	pool        model.Pool
	bundle      model.BundleAccounts
	poolAccts   model.PoolAccounts
	ownerA      solana.PublicKey
	ownerB      solana.PublicKey
	amountA     uint64
	amountB     uint64
	slippageBps uint16
	// missingArrays holds tick arrays known not to exist yet.
	missingArrays map[solana.PublicKey]bool
}

func newPositionSource(pool model.Pool, bundleMint, owner solana.PublicKey) (*positionSource, error) {
	bundle, err := bundleAccounts(pool.Address, bundleMint, owner)
	if err != nil {
		return nil, err
	}
	ownerA, err := whirlpool.AssociatedTokenAddress(owner, pool.TokenMintA, pool.TokenProgramA)
	if err != nil {
		return nil, err
	}
	ownerB, err := whirlpool.AssociatedTokenAddress(owner, pool.TokenMintB, pool.TokenProgramB)
	if err != nil {
		return nil, err
	}
	return &positionSource{
		pool:   pool,
		bundle: bundle,
		poolAccts: model.PoolAccounts{
			Whirlpool:     pool.Address,
			TokenMintA:    pool.TokenMintA,
			TokenMintB:    pool.TokenMintB,
			TokenVaultA:   pool.TokenVaultA,
			TokenVaultB:   pool.TokenVaultB,
			TokenProgramA: pool.TokenProgramA,
			TokenProgramB: pool.TokenProgramB,
		},
		ownerA:        ownerA,
		ownerB:        ownerB,
		missingArrays: map[solana.PublicKey]bool{},
	}, nil
}

func bundleAccounts(pool, bundleMint, owner solana.PublicKey) (model.BundleAccounts, error) {
	if bundleMint.IsZero() {
		return model.BundleAccounts{}, fmt.Errorf("%w: bundle mint is required", model.ErrInvalidParameter)
	}
	if owner.IsZero() {
		return model.BundleAccounts{}, fmt.Errorf("%w: owner is required", model.ErrInvalidParameter)
	}
	bundle, err := whirlpool.PositionBundleAddress(bundleMint)
	if err != nil {
		return model.BundleAccounts{}, err
	}
	tokenAccount, err := whirlpool.AssociatedTokenAddress(owner, bundleMint, solana.TokenProgramID)
	if err != nil {
		return model.BundleAccounts{}, err
	}
	return model.BundleAccounts{
		Whirlpool:          pool,
		BundleMint:         bundleMint,
		PositionBundle:     bundle,
		BundleTokenAccount: tokenAccount,
		Authority:          owner,
		Funder:             owner,
	}, nil
}

func (p *positionSource) withAmounts(a, b uint64, slippageBps uint16) *positionSource {
	p.amountA, p.amountB, p.slippageBps = a, b, slippageBps
	return p
}

func (p *positionSource) OpenPosition(plan model.PositionPlan) (model.Instruction, error) {
	if plan.Index < 0 || plan.Index >= model.BundleSize {
		return nil, fmt.Errorf("%w: bundle index %d", model.ErrInvalidParameter, plan.Index)
	}
	return model.OpenPositionInstruction{
		Bundle:      p.bundle,
		BundleIndex: uint16(plan.Index),
		TickLower:   plan.TickLower,
		TickUpper:   plan.TickUpper,
	}, nil
}

// IncreaseLiquidity deposits the lesser of the liquidity each side's
// per-position amount can buy.
func (p *positionSource) IncreaseLiquidity(plan model.PositionPlan) (model.Instruction, error) {
	if plan.Index < 0 || plan.Index >= model.BundleSize {
		return nil, fmt.Errorf("%w: bundle index %d", model.ErrInvalidParameter, plan.Index)
	}
	lowerArray, upperArray, err := p.tickArrays(plan)
	if err != nil {
		return nil, err
	}
	if p.missingArrays[lowerArray] || p.missingArrays[upperArray] {
		return nil, fmt.Errorf("%w: tick array not initialized", batcher.ErrSkipPosition)
	}

	q, err := p.quote(plan)
	if err != nil {
		return nil, err
	}
	if q.IsZero() {
		return nil, fmt.Errorf("%w: quote gives zero liquidity", batcher.ErrSkipPosition)
	}
	return model.IncreaseLiquidityInstruction{
		Bundle:         p.bundle,
		Pool:           p.poolAccts,
		BundleIndex:    uint16(plan.Index),
		TickLower:      plan.TickLower,
		TickUpper:      plan.TickUpper,
		OwnerAccountA:  p.ownerA,
		OwnerAccountB:  p.ownerB,
		TickArrayLower: lowerArray,
		TickArrayUpper: upperArray,
		Liquidity:      q.Liquidity,
		TokenMaxA:      q.TokenMaxA,
		TokenMaxB:      q.TokenMaxB,
	}, nil
}

func (p *positionSource) quote(plan model.PositionPlan) (quote.LiquidityQuote, error) {
	var best quote.LiquidityQuote
	found := false
	for _, side := range []struct {
		side   quote.Side
		amount uint64
	}{{quote.SideA, p.amountA}, {quote.SideB, p.amountB}} {
		if side.amount == 0 {
			continue
		}
		q, err := quote.QuoteLiquidityForAmount(side.side, side.amount, p.slippageBps, p.pool.SqrtPrice, plan.TickLower, plan.TickUpper)
		if err != nil {
			return quote.LiquidityQuote{}, err
		}
		if q.IsZero() {
			continue
		}
		if !found || q.Liquidity.Cmp(best.Liquidity) < 0 {
			best, found = q, true
		}
	}
	return best, nil
}

func (p *positionSource) tickArrays(plan model.PositionPlan) (solana.PublicKey, solana.PublicKey, error) {
	lower, err := whirlpool.TickArrayAddress(p.pool.Address, quote.TickArrayStart(plan.TickLower, p.pool.TickSpacing))
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	upper, err := whirlpool.TickArrayAddress(p.pool.Address, quote.TickArrayStart(plan.TickUpper, p.pool.TickSpacing))
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return lower, upper, nil
}
