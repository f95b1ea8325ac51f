package model

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// InstructionKind tags the variants of Instruction.
type InstructionKind uint8

const (
	KindComputeBudget InstructionKind = iota + 1
	KindOpenPosition
	KindIncreaseLiquidity
	KindExternal
)

func (k InstructionKind) String() string {
	switch k {
	case KindComputeBudget:
		return "compute_budget"
	case KindOpenPosition:
		return "open_position"
	case KindIncreaseLiquidity:
		return "increase_liquidity"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Instruction is one step of a batch before it is encoded for the chain.
type Instruction interface {
	Kind() InstructionKind
}

// BundleAccounts identifies a position bundle and who acts on it.
type BundleAccounts struct {
	Whirlpool          solana.PublicKey
	BundleMint         solana.PublicKey
	PositionBundle     solana.PublicKey
	BundleTokenAccount solana.PublicKey
	Authority          solana.PublicKey
	Funder             solana.PublicKey
}

// PoolAccounts are the pool-side accounts used when moving liquidity.
type PoolAccounts struct {
	Whirlpool     solana.PublicKey
	TokenMintA    solana.PublicKey
	TokenMintB    solana.PublicKey
	TokenVaultA   solana.PublicKey
	TokenVaultB   solana.PublicKey
	TokenProgramA solana.PublicKey
	TokenProgramB solana.PublicKey
}

// ComputeBudgetInstruction sets the transaction compute unit limit and,
// when UnitPriceMicroLamports is non-zero, its priority fee.
type ComputeBudgetInstruction struct {
	UnitLimit              uint32
	UnitPriceMicroLamports uint64
}

func (ComputeBudgetInstruction) Kind() InstructionKind { return KindComputeBudget }

// OpenPositionInstruction opens bundle slot BundleIndex with the given ticks.
type OpenPositionInstruction struct {
	Bundle      BundleAccounts
	BundleIndex uint16
	TickLower   int32
	TickUpper   int32
}

func (OpenPositionInstruction) Kind() InstructionKind { return KindOpenPosition }

// IncreaseLiquidityInstruction deposits liquidity into bundle slot BundleIndex.
type IncreaseLiquidityInstruction struct {
	Bundle         BundleAccounts
	Pool           PoolAccounts
	BundleIndex    uint16
	TickLower      int32
	TickUpper      int32
	OwnerAccountA  solana.PublicKey
	OwnerAccountB  solana.PublicKey
	TickArrayLower solana.PublicKey
	TickArrayUpper solana.PublicKey
	Liquidity      *big.Int
	TokenMaxA      uint64
	TokenMaxB      uint64
}

func (IncreaseLiquidityInstruction) Kind() InstructionKind { return KindIncreaseLiquidity }

// ExternalInstruction carries an already-encoded instruction produced by a
// collaborator such as the swap quoter.
type ExternalInstruction struct {
	Label       string
	Instruction solana.Instruction
}

func (ExternalInstruction) Kind() InstructionKind { return KindExternal }
