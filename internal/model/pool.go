package model

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Pool is a whirlpool snapshot taken for one planning run.
type Pool struct {
	Address          solana.PublicKey `json:"address"`
	Config           solana.PublicKey `json:"config"`
	TokenMintA       solana.PublicKey `json:"token_mint_a"`
	TokenMintB       solana.PublicKey `json:"token_mint_b"`
	TokenVaultA      solana.PublicKey `json:"token_vault_a"`
	TokenVaultB      solana.PublicKey `json:"token_vault_b"`
	TokenProgramA    solana.PublicKey `json:"token_program_a"`
	TokenProgramB    solana.PublicKey `json:"token_program_b"`
	SymbolA          string           `json:"symbol_a"`
	SymbolB          string           `json:"symbol_b"`
	DecimalsA        uint8            `json:"decimals_a"`
	DecimalsB        uint8            `json:"decimals_b"`
	TickSpacing      uint16           `json:"tick_spacing"`
	TickCurrentIndex int32            `json:"tick_current_index"`
	FeeRate          uint16           `json:"fee_rate"`
	Liquidity        *big.Int         `json:"liquidity"`
	SqrtPrice        *big.Int         `json:"sqrt_price"`
	FetchedAt        time.Time        `json:"fetched_at"`
}

// PoolSummary is the printable view of a pool.
type PoolSummary struct {
	Pool         Pool    `json:"pool"`
	CurrentPrice float64 `json:"current_price"`
	FeePercent   float64 `json:"fee_percent"`
}
