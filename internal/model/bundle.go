package model

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
)

// BundleSize is the number of slots in a position bundle.
const BundleSize = 256

// BundleRecord describes an initialized position bundle.
type BundleRecord struct {
	Mint         solana.PublicKey `json:"mint"`
	Address      solana.PublicKey `json:"address"`
	TokenAccount solana.PublicKey `json:"token_account"`
	Owner        solana.PublicKey `json:"owner"`
	Signature    string           `json:"signature,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// BundleOccupancy is the decoded occupancy bitmap of a bundle.
type BundleOccupancy struct {
	Mint      solana.PublicKey  `json:"mint"`
	Address   solana.PublicKey  `json:"address"`
	Occupied  []int             `json:"occupied"`
	Count     int               `json:"count"`
	FirstFree int               `json:"first_free"`
	Pool      *solana.PublicKey `json:"pool,omitempty"`
}

// PositionInfo is the state of one bundled position.
type PositionInfo struct {
	Address     solana.PublicKey `json:"address"`
	BundleIndex int              `json:"bundle_index"`
	Whirlpool   solana.PublicKey `json:"whirlpool"`
	TickLower   int32            `json:"tick_lower"`
	TickUpper   int32            `json:"tick_upper"`
	LowerPrice  float64          `json:"lower_price"`
	UpperPrice  float64          `json:"upper_price"`
	Liquidity   *big.Int         `json:"liquidity"`
	InRange     bool             `json:"in_range"`
}

// RebalanceReport summarizes a bundle against the current pool price.
type RebalanceReport struct {
	Pool         solana.PublicKey `json:"pool"`
	CurrentTick  int32            `json:"current_tick"`
	CurrentPrice float64          `json:"current_price"`
	Positions    []PositionInfo   `json:"positions"`
	InRange      []int            `json:"in_range"`
	LowestTick   int32            `json:"lowest_tick"`
	HighestTick  int32            `json:"highest_tick"`
	NeedsExpand  bool             `json:"needs_expand"`
	Expansion    *PlanResult      `json:"expansion,omitempty"`
}
