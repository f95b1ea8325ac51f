package chain

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"bundleKeeper/internal/model"
)

// MintInfo is what the planner needs to know about a token mint.
type MintInfo struct {
	Decimals     uint8
	TokenProgram solana.PublicKey
}

// MintCache caches mint info by address. Mint decimals never change, so
// entries are never dropped.
type MintCache struct {
	mu   sync.RWMutex
	data map[solana.PublicKey]MintInfo
}

func NewMintCache() *MintCache {
	return &MintCache{data: make(map[solana.PublicKey]MintInfo)}
}

func (c *MintCache) Get(mint solana.PublicKey) (MintInfo, bool) {
	c.mu.RLock()
	info, ok := c.data[mint]
	c.mu.RUnlock()
	return info, ok
}

func (c *MintCache) Set(mint solana.PublicKey, info MintInfo) {
	c.mu.Lock()
	c.data[mint] = info
	c.mu.Unlock()
}

// PoolCache memoizes pool snapshots until they are invalidated.
type PoolCache struct {
	mu   sync.RWMutex
	data map[solana.PublicKey]model.Pool
}

func NewPoolCache() *PoolCache {
	return &PoolCache{data: make(map[solana.PublicKey]model.Pool)}
}

func (c *PoolCache) Get(address solana.PublicKey) (model.Pool, bool) {
	c.mu.RLock()
	pool, ok := c.data[address]
	c.mu.RUnlock()
	return pool, ok
}

func (c *PoolCache) Set(pool model.Pool) {
	c.mu.Lock()
	c.data[pool.Address] = pool
	c.mu.Unlock()
}

// Invalidate drops one pool.
func (c *PoolCache) Invalidate(address solana.PublicKey) {
	c.mu.Lock()
	delete(c.data, address)
	c.mu.Unlock()
}
