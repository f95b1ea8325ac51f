// Package bundler plans and submits batched operations on Orca position
// bundles. A Session carries the chain client and the caches one operator
// session needs.
package bundler

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"bundleKeeper/internal/batcher"
	"bundleKeeper/internal/chain"
	"bundleKeeper/internal/model"
	"bundleKeeper/internal/pipeline"
	"bundleKeeper/internal/quote"
	"bundleKeeper/internal/storage"
	"bundleKeeper/internal/swap"
	"bundleKeeper/internal/whirlpool"
)

// Chain is the chain capability a Session reads and writes through.
// *chain.Client implements it.
type Chain interface {
	pipeline.RPC
	GetAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*chain.Account, error)
	Whirlpool(ctx context.Context, address solana.PublicKey) (*whirlpool.Whirlpool, error)
	Positions(ctx context.Context, addresses []solana.PublicKey) ([]*whirlpool.Position, error)
	PositionBundle(ctx context.Context, address solana.PublicKey) (*whirlpool.PositionBundle, error)
	Mint(ctx context.Context, address solana.PublicKey) (chain.MintInfo, error)
	LatestBlockhash(ctx context.Context) (chain.Blockhash, error)
}

// Options are the optional collaborators of a Session.
type Options struct {
	Logger       *zap.Logger
	Quoter       swap.Quoter
	Journal      storage.Journal
	Snapshots    *storage.SnapshotStore
	Metrics      *pipeline.Metrics
	TokenSymbols map[string]string
}

// Session owns the chain client and caches for one operator session.
type Session struct {
	chain     Chain
	pools     *chain.PoolCache
	mints     *chain.MintCache
	quoter    swap.Quoter
	batcher   *batcher.Batcher
	pipeline  *pipeline.Pipeline
	journal   storage.Journal
	snapshots *storage.SnapshotStore
	symbols   map[solana.PublicKey]string
	logger    *zap.Logger
	now       func() time.Time
}

// NewSession creates a session over c.
func NewSession(c Chain, opts Options) (*Session, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: chain client is nil", model.ErrInvalidParameter)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	symbols, err := tokenSymbols(opts.TokenSymbols)
	if err != nil {
		return nil, err
	}
	quoter := opts.Quoter
	if quoter == nil {
		quoter = swap.NewWhirlpoolQuoter(logger.Named("swap"))
	}
	return &Session{
		chain:     c,
		pools:     chain.NewPoolCache(),
		mints:     chain.NewMintCache(),
		quoter:    quoter,
		batcher:   batcher.New(logger.Named("batcher")),
		pipeline:  pipeline.New(logger.Named("pipeline"), opts.Metrics),
		journal:   opts.Journal,
		snapshots: opts.Snapshots,
		symbols:   symbols,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Pool returns the pool at address, from the cache when present.
func (s *Session) Pool(ctx context.Context, address solana.PublicKey) (model.Pool, error) {
	if pool, ok := s.pools.Get(address); ok {
		return pool, nil
	}
	return s.RefreshPool(ctx, address)
}

// RefreshPool drops any cached copy of the pool and reads it again.
func (s *Session) RefreshPool(ctx context.Context, address solana.PublicKey) (model.Pool, error) {
	s.pools.Invalidate(address)

	wp, err := s.chain.Whirlpool(ctx, address)
	if err != nil {
		return model.Pool{}, err
	}
	mintA, err := s.mint(ctx, wp.TokenMintA)
	if err != nil {
		return model.Pool{}, err
	}
	mintB, err := s.mint(ctx, wp.TokenMintB)
	if err != nil {
		return model.Pool{}, err
	}

	pool := model.Pool{
		Address:          address,
		Config:           wp.Config,
		TokenMintA:       wp.TokenMintA,
		TokenMintB:       wp.TokenMintB,
		TokenVaultA:      wp.TokenVaultA,
		TokenVaultB:      wp.TokenVaultB,
		TokenProgramA:    mintA.TokenProgram,
		TokenProgramB:    mintB.TokenProgram,
		SymbolA:          s.Symbol(wp.TokenMintA),
		SymbolB:          s.Symbol(wp.TokenMintB),
		DecimalsA:        mintA.Decimals,
		DecimalsB:        mintB.Decimals,
		TickSpacing:      wp.TickSpacing,
		TickCurrentIndex: wp.TickCurrentIndex,
		FeeRate:          wp.FeeRate,
		Liquidity:        wp.Liquidity.Big(),
		SqrtPrice:        wp.SqrtPrice.Big(),
		FetchedAt:        s.now().UTC(),
	}
	s.pools.Set(pool)

	if s.snapshots != nil {
		if err := s.snapshots.SavePool(pool); err != nil {
			s.logger.Warn("save pool snapshot", zap.Stringer("pool", address), zap.Error(err))
		}
	}
	s.logger.Debug("pool loaded",
		zap.Stringer("pool", address),
		zap.Int32("tick", pool.TickCurrentIndex),
		zap.Uint16("tick_spacing", pool.TickSpacing),
	)
	return pool, nil
}

// InvalidatePool drops the cached copy of a pool.
func (s *Session) InvalidatePool(address solana.PublicKey) {
	s.pools.Invalidate(address)
}

func (s *Session) mint(ctx context.Context, address solana.PublicKey) (chain.MintInfo, error) {
	if info, ok := s.mints.Get(address); ok {
		return info, nil
	}
	info, err := s.chain.Mint(ctx, address)
	if err != nil {
		return chain.MintInfo{}, err
	}
	s.mints.Set(address, info)
	return info, nil
}

// PoolInfo returns the printable state of a pool.
func (s *Session) PoolInfo(ctx context.Context, address solana.PublicKey) (model.PoolSummary, error) {
	pool, err := s.Pool(ctx, address)
	if err != nil {
		return model.PoolSummary{}, err
	}
	return model.PoolSummary{
		Pool:         pool,
		CurrentPrice: quote.PriceFromSqrtPrice(pool.SqrtPrice, pool.DecimalsA, pool.DecimalsB),
		FeePercent:   float64(pool.FeeRate) / 10_000,
	}, nil
}
