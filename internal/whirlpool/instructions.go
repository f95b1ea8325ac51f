package whirlpool

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// InitializePositionBundleAccounts are the accounts of initialize_position_bundle.
type InitializePositionBundleAccounts struct {
	PositionBundle     solana.PublicKey
	BundleMint         solana.PublicKey
	BundleTokenAccount solana.PublicKey
	Owner              solana.PublicKey
	Funder             solana.PublicKey
}

// InitializePositionBundle creates a bundle account; BundleMint must sign.
func InitializePositionBundle(a InitializePositionBundleAccounts) (solana.Instruction, error) {
	data, err := encodeArgs(initializePositionBundleDisc)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(a.PositionBundle, true, false),
		solana.NewAccountMeta(a.BundleMint, true, true),
		solana.NewAccountMeta(a.BundleTokenAccount, true, false),
		solana.NewAccountMeta(a.Owner, false, false),
		solana.NewAccountMeta(a.Funder, true, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// OpenBundledPositionAccounts are the accounts of open_bundled_position.
type OpenBundledPositionAccounts struct {
	BundledPosition    solana.PublicKey
	PositionBundle     solana.PublicKey
	BundleTokenAccount solana.PublicKey
	BundleAuthority    solana.PublicKey
	Whirlpool          solana.PublicKey
	Funder             solana.PublicKey
}

// OpenBundledPosition opens bundle slot index with the given tick range.
func OpenBundledPosition(index uint16, tickLower, tickUpper int32, a OpenBundledPositionAccounts) (solana.Instruction, error) {
	data, err := encodeArgs(openBundledPositionDisc, index, tickLower, tickUpper)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(a.BundledPosition, true, false),
		solana.NewAccountMeta(a.PositionBundle, true, false),
		solana.NewAccountMeta(a.BundleTokenAccount, false, false),
		solana.NewAccountMeta(a.BundleAuthority, false, true),
		solana.NewAccountMeta(a.Whirlpool, false, false),
		solana.NewAccountMeta(a.Funder, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// IncreaseLiquidityAccounts are the accounts of increase_liquidity_v2.
type IncreaseLiquidityAccounts struct {
	Whirlpool            solana.PublicKey
	TokenProgramA        solana.PublicKey
	TokenProgramB        solana.PublicKey
	PositionAuthority    solana.PublicKey
	Position             solana.PublicKey
	PositionTokenAccount solana.PublicKey
	TokenMintA           solana.PublicKey
	TokenMintB           solana.PublicKey
	TokenOwnerAccountA   solana.PublicKey
	TokenOwnerAccountB   solana.PublicKey
	TokenVaultA          solana.PublicKey
	TokenVaultB          solana.PublicKey
	TickArrayLower       solana.PublicKey
	TickArrayUpper       solana.PublicKey
}

// IncreaseLiquidityV2 deposits liquidity into a position, spending at most
// tokenMaxA and tokenMaxB.
func IncreaseLiquidityV2(liquidity uint128.Uint128, tokenMaxA, tokenMaxB uint64, a IncreaseLiquidityAccounts) (solana.Instruction, error) {
	data, err := encodeArgs(increaseLiquidityV2Disc, liquidity.Lo, liquidity.Hi, tokenMaxA, tokenMaxB, none{})
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Whirlpool, true, false),
		solana.NewAccountMeta(programOrDefault(a.TokenProgramA), false, false),
		solana.NewAccountMeta(programOrDefault(a.TokenProgramB), false, false),
		solana.NewAccountMeta(MemoProgramID, false, false),
		solana.NewAccountMeta(a.PositionAuthority, false, true),
		solana.NewAccountMeta(a.Position, true, false),
		solana.NewAccountMeta(a.PositionTokenAccount, false, false),
		solana.NewAccountMeta(a.TokenMintA, false, false),
		solana.NewAccountMeta(a.TokenMintB, false, false),
		solana.NewAccountMeta(a.TokenOwnerAccountA, true, false),
		solana.NewAccountMeta(a.TokenOwnerAccountB, true, false),
		solana.NewAccountMeta(a.TokenVaultA, true, false),
		solana.NewAccountMeta(a.TokenVaultB, true, false),
		solana.NewAccountMeta(a.TickArrayLower, true, false),
		solana.NewAccountMeta(a.TickArrayUpper, true, false),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// SwapArgs are the arguments of swap_v2.
type SwapArgs struct {
	Amount                 uint64
	OtherAmountThreshold   uint64
	SqrtPriceLimit         uint128.Uint128
	AmountSpecifiedIsInput bool
	AToB                   bool
}

// SwapAccounts are the accounts of swap_v2.
type SwapAccounts struct {
	TokenProgramA      solana.PublicKey
	TokenProgramB      solana.PublicKey
	TokenAuthority     solana.PublicKey
	Whirlpool          solana.PublicKey
	TokenMintA         solana.PublicKey
	TokenMintB         solana.PublicKey
	TokenOwnerAccountA solana.PublicKey
	TokenVaultA        solana.PublicKey
	TokenOwnerAccountB solana.PublicKey
	TokenVaultB        solana.PublicKey
	TickArray0         solana.PublicKey
	TickArray1         solana.PublicKey
	TickArray2         solana.PublicKey
	Oracle             solana.PublicKey
}

// SwapV2 swaps through a single whirlpool.
func SwapV2(args SwapArgs, a SwapAccounts) (solana.Instruction, error) {
	data, err := encodeArgs(swapV2Disc,
		args.Amount,
		args.OtherAmountThreshold,
		args.SqrtPriceLimit.Lo,
		args.SqrtPriceLimit.Hi,
		args.AmountSpecifiedIsInput,
		args.AToB,
		none{},
	)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(programOrDefault(a.TokenProgramA), false, false),
		solana.NewAccountMeta(programOrDefault(a.TokenProgramB), false, false),
		solana.NewAccountMeta(MemoProgramID, false, false),
		solana.NewAccountMeta(a.TokenAuthority, false, true),
		solana.NewAccountMeta(a.Whirlpool, true, false),
		solana.NewAccountMeta(a.TokenMintA, false, false),
		solana.NewAccountMeta(a.TokenMintB, false, false),
		solana.NewAccountMeta(a.TokenOwnerAccountA, true, false),
		solana.NewAccountMeta(a.TokenVaultA, true, false),
		solana.NewAccountMeta(a.TokenOwnerAccountB, true, false),
		solana.NewAccountMeta(a.TokenVaultB, true, false),
		solana.NewAccountMeta(a.TickArray0, true, false),
		solana.NewAccountMeta(a.TickArray1, true, false),
		solana.NewAccountMeta(a.TickArray2, true, false),
		solana.NewAccountMeta(a.Oracle, true, false),
	}
	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// none encodes an absent Option.
type none struct{}

func encodeArgs(disc [8]byte, args ...any) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, fmt.Errorf("write discriminator: %w", err)
	}
	for i, arg := range args {
		if _, ok := arg.(none); ok {
			if err := enc.WriteOption(false); err != nil {
				return nil, fmt.Errorf("encode arg %d: %w", i, err)
			}
			continue
		}
		if err := enc.Encode(arg); err != nil {
			return nil, fmt.Errorf("encode arg %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func programOrDefault(p solana.PublicKey) solana.PublicKey {
	if p.IsZero() {
		return solana.TokenProgramID
	}
	return p
}
