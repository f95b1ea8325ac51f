package swap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"bundleKeeper/internal/whirlpool"
)

// CreateAssociatedTokenAccountIdempotent creates owner's token account for
// mint if it does not exist yet.
func CreateAssociatedTokenAccountIdempotent(payer, owner, mint, tokenProgram solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	if tokenProgram.IsZero() {
		tokenProgram = solana.TokenProgramID
	}
	ata, err := whirlpool.AssociatedTokenAddress(owner, mint, tokenProgram)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	// 1 selects CreateIdempotent.
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1}), ata, nil
}

// WrapSOL moves lamports from owner into its wrapped SOL account, creating
// the account first when needed.
func WrapSOL(owner solana.PublicKey, lamports uint64) ([]solana.Instruction, solana.PublicKey, error) {
	create, ata, err := CreateAssociatedTokenAccountIdempotent(owner, owner, solana.WrappedSol, solana.TokenProgramID)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("wrap sol: %w", err)
	}
	transfer, err := system.NewTransferInstruction(lamports, owner, ata).ValidateAndBuild()
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("wrap sol transfer: %w", err)
	}
	sync, err := token.NewSyncNativeInstruction(ata).ValidateAndBuild()
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("wrap sol sync: %w", err)
	}
	return []solana.Instruction{create, transfer, sync}, ata, nil
}
