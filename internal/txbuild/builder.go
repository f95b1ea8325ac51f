// Package txbuild turns instruction batches into unsigned transactions.
package txbuild

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"lukechampine.com/uint128"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/whirlpool"
)

// MaxTransactionSize is the packet limit for a serialized transaction.
const MaxTransactionSize = 1232

const signatureSize = 64

// Build creates one unsigned transaction per batch, all sharing blockhash.
func Build(batches []model.TransactionBatch, feePayer solana.PublicKey, blockhash solana.Hash) ([]*solana.Transaction, error) {
	if feePayer.IsZero() {
		return nil, fmt.Errorf("%w: fee payer is required", model.ErrInvalidParameter)
	}
	txs := make([]*solana.Transaction, 0, len(batches))
	for _, batch := range batches {
		tx, err := BuildOne(batch, feePayer, blockhash)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// BuildOne creates the transaction for a single batch.
func BuildOne(batch model.TransactionBatch, feePayer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	fail := func(kind, err error) error {
		return &model.BatchError{Kind: kind, Description: batch.Description, PositionIndices: batch.PositionIndices, Err: err}
	}

	ixs := make([]solana.Instruction, 0, len(batch.Instructions)+1)
	for _, ix := range batch.Instructions {
		encoded, err := Instructions(ix)
		if err != nil {
			return nil, fail(model.ErrInvalidParameter, err)
		}
		ixs = append(ixs, encoded...)
	}
	if len(ixs) == 0 {
		return nil, fail(model.ErrInvalidParameter, fmt.Errorf("batch has no instructions"))
	}

	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fail(model.ErrInvalidParameter, err)
	}
	size, err := EncodedSize(tx)
	if err != nil {
		return nil, fail(model.ErrInvalidParameter, err)
	}
	if size > MaxTransactionSize {
		return nil, fail(model.ErrInvalidParameter, fmt.Errorf("transaction is %d bytes, limit %d", size, MaxTransactionSize))
	}
	return tx, nil
}

// EncodedSize is the wire size of tx once every required signature is present.
func EncodedSize(tx *solana.Transaction) (int, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, err
	}
	sigs := int(tx.Message.Header.NumRequiredSignatures)
	return compactLen(sigs) + sigs*signatureSize + len(msg), nil
}

func compactLen(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	default:
		return 3
	}
}

// Instructions encodes one tagged instruction. A compute budget instruction
// expands to a limit and, when priced, a unit price instruction.
func Instructions(ix model.Instruction) ([]solana.Instruction, error) {
	switch v := ix.(type) {
	case model.ComputeBudgetInstruction:
		return computeBudget(v)
	case model.OpenPositionInstruction:
		out, err := openPosition(v)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{out}, nil
	case model.IncreaseLiquidityInstruction:
		out, err := increaseLiquidity(v)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{out}, nil
	case model.ExternalInstruction:
		if v.Instruction == nil {
			return nil, fmt.Errorf("external instruction %q is empty", v.Label)
		}
		return []solana.Instruction{v.Instruction}, nil
	case nil:
		return nil, fmt.Errorf("nil instruction")
	default:
		return nil, fmt.Errorf("unsupported instruction kind %s (%T)", ix.Kind(), ix)
	}
}

func computeBudget(v model.ComputeBudgetInstruction) ([]solana.Instruction, error) {
	limit, err := computebudget.NewSetComputeUnitLimitInstruction(v.UnitLimit).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("compute unit limit: %w", err)
	}
	out := []solana.Instruction{limit}
	if v.UnitPriceMicroLamports > 0 {
		price, err := computebudget.NewSetComputeUnitPriceInstruction(v.UnitPriceMicroLamports).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("compute unit price: %w", err)
		}
		out = append(out, price)
	}
	return out, nil
}

func openPosition(v model.OpenPositionInstruction) (solana.Instruction, error) {
	position, err := whirlpool.BundledPositionAddress(v.Bundle.BundleMint, v.BundleIndex)
	if err != nil {
		return nil, err
	}
	funder := v.Bundle.Funder
	if funder.IsZero() {
		funder = v.Bundle.Authority
	}
	return whirlpool.OpenBundledPosition(v.BundleIndex, v.TickLower, v.TickUpper, whirlpool.OpenBundledPositionAccounts{
		BundledPosition:    position,
		PositionBundle:     v.Bundle.PositionBundle,
		BundleTokenAccount: v.Bundle.BundleTokenAccount,
		BundleAuthority:    v.Bundle.Authority,
		Whirlpool:          v.Bundle.Whirlpool,
		Funder:             funder,
	})
}

func increaseLiquidity(v model.IncreaseLiquidityInstruction) (solana.Instruction, error) {
	liquidity, err := toUint128(v.Liquidity)
	if err != nil {
		return nil, err
	}
	position, err := whirlpool.BundledPositionAddress(v.Bundle.BundleMint, v.BundleIndex)
	if err != nil {
		return nil, err
	}
	return whirlpool.IncreaseLiquidityV2(liquidity, v.TokenMaxA, v.TokenMaxB, whirlpool.IncreaseLiquidityAccounts{
		Whirlpool:            v.Pool.Whirlpool,
		TokenProgramA:        v.Pool.TokenProgramA,
		TokenProgramB:        v.Pool.TokenProgramB,
		PositionAuthority:    v.Bundle.Authority,
		Position:             position,
		PositionTokenAccount: v.Bundle.BundleTokenAccount,
		TokenMintA:           v.Pool.TokenMintA,
		TokenMintB:           v.Pool.TokenMintB,
		TokenOwnerAccountA:   v.OwnerAccountA,
		TokenOwnerAccountB:   v.OwnerAccountB,
		TokenVaultA:          v.Pool.TokenVaultA,
		TokenVaultB:          v.Pool.TokenVaultB,
		TickArrayLower:       v.TickArrayLower,
		TickArrayUpper:       v.TickArrayUpper,
	})
}

func toUint128(v *big.Int) (uint128.Uint128, error) {
	if v == nil || v.Sign() <= 0 {
		return uint128.Zero, fmt.Errorf("%w: liquidity must be positive", model.ErrInvalidParameter)
	}
	if v.BitLen() > 128 {
		return uint128.Zero, fmt.Errorf("%w: liquidity %s exceeds u128", model.ErrMathOverflow, v)
	}
	return uint128.FromBig(v), nil
}
