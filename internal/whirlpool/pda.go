package whirlpool

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
)

// PositionBundleAddress derives the bundle account for bundleMint.
func PositionBundleAddress(bundleMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("position_bundle"),
		bundleMint.Bytes(),
	}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive position bundle: %w", err)
	}
	return addr, nil
}

// BundledPositionAddress derives the position account of one bundle slot.
// The index seed is its decimal string, not a binary integer.
func BundledPositionAddress(bundleMint solana.PublicKey, index uint16) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("bundled_position"),
		bundleMint.Bytes(),
		[]byte(strconv.Itoa(int(index))),
	}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive bundled position %d: %w", index, err)
	}
	return addr, nil
}

// TickArrayAddress derives the tick array account starting at startTick.
func TickArrayAddress(pool solana.PublicKey, startTick int32) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("tick_array"),
		pool.Bytes(),
		[]byte(strconv.Itoa(int(startTick))),
	}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive tick array %d: %w", startTick, err)
	}
	return addr, nil
}

// OracleAddress derives the oracle account of a pool.
func OracleAddress(pool solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("oracle"),
		pool.Bytes(),
	}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive oracle: %w", err)
	}
	return addr, nil
}

// AssociatedTokenAddress returns the associated token account of owner for
// mint under tokenProgram.
func AssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	if tokenProgram.IsZero() || tokenProgram.Equals(solana.TokenProgramID) {
		addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("derive ata: %w", err)
		}
		return addr, nil
	}
	addr, _, err := solana.FindProgramAddress([][]byte{
		owner.Bytes(),
		tokenProgram.Bytes(),
		mint.Bytes(),
	}, solana.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive ata: %w", err)
	}
	return addr, nil
}
