package whirlpool

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID is the Orca Whirlpool program.
	ProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	// MemoProgramID is required by the v2 liquidity instructions.
	MemoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)

var (
	initializePositionBundleDisc = anchorInstructionDiscriminator("initialize_position_bundle")
	openBundledPositionDisc      = anchorInstructionDiscriminator("open_bundled_position")
	increaseLiquidityV2Disc      = anchorInstructionDiscriminator("increase_liquidity_v2")
	swapV2Disc                   = anchorInstructionDiscriminator("swap_v2")

	whirlpoolAccountDisc      = anchorAccountDiscriminator("Whirlpool")
	positionAccountDisc       = anchorAccountDiscriminator("Position")
	positionBundleAccountDisc = anchorAccountDiscriminator("PositionBundle")
)

func anchorInstructionDiscriminator(name string) [8]byte {
	return discriminator("global:" + name)
}

func anchorAccountDiscriminator(name string) [8]byte {
	return discriminator("account:" + name)
}

func discriminator(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
