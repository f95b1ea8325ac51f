package whirlpool

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

const (
	discriminatorLen = 8

	configOffset      = discriminatorLen
	tickSpacingOffset = configOffset + 32 + 1
	feeRateOffset     = tickSpacingOffset + 2 + 2
	liquidityOffset   = feeRateOffset + 2 + 2
	sqrtPriceOffset   = liquidityOffset + 16
	tickCurrentOffset = sqrtPriceOffset + 16
	mintAOffset       = tickCurrentOffset + 4 + 8 + 8
	vaultAOffset      = mintAOffset + 32
	mintBOffset       = vaultAOffset + 32 + 16
	vaultBOffset      = mintBOffset + 32
	whirlpoolMinLen   = vaultBOffset + 32

	bundleMintOffset   = discriminatorLen
	bundleBitmapOffset = bundleMintOffset + 32
	bundleMinLen       = bundleBitmapOffset + 32

	mintDecimalsOffset = 44
	mintMinLen         = 82
)

// Whirlpool holds the pool fields needed for planning.
type Whirlpool struct {
	Config           solana.PublicKey
	TickSpacing      uint16
	FeeRate          uint16
	ProtocolFeeRate  uint16
	Liquidity        uint128.Uint128
	SqrtPrice        uint128.Uint128
	TickCurrentIndex int32
	TokenMintA       solana.PublicKey
	TokenVaultA      solana.PublicKey
	TokenMintB       solana.PublicKey
	TokenVaultB      solana.PublicKey
}

// DecodeWhirlpool parses raw whirlpool account data.
func DecodeWhirlpool(data []byte) (*Whirlpool, error) {
	if len(data) < whirlpoolMinLen {
		return nil, fmt.Errorf("whirlpool account too short: have %d want >= %d", len(data), whirlpoolMinLen)
	}
	if !bytes.Equal(data[:discriminatorLen], whirlpoolAccountDisc[:]) {
		return nil, fmt.Errorf("account is not a whirlpool")
	}
	return &Whirlpool{
		Config:           solana.PublicKeyFromBytes(data[configOffset : configOffset+32]),
		TickSpacing:      binary.LittleEndian.Uint16(data[tickSpacingOffset:]),
		FeeRate:          binary.LittleEndian.Uint16(data[feeRateOffset:]),
		ProtocolFeeRate:  binary.LittleEndian.Uint16(data[feeRateOffset+2:]),
		Liquidity:        uint128.FromBytes(data[liquidityOffset : liquidityOffset+16]),
		SqrtPrice:        uint128.FromBytes(data[sqrtPriceOffset : sqrtPriceOffset+16]),
		TickCurrentIndex: int32(binary.LittleEndian.Uint32(data[tickCurrentOffset:])),
		TokenMintA:       solana.PublicKeyFromBytes(data[mintAOffset : mintAOffset+32]),
		TokenVaultA:      solana.PublicKeyFromBytes(data[vaultAOffset : vaultAOffset+32]),
		TokenMintB:       solana.PublicKeyFromBytes(data[mintBOffset : mintBOffset+32]),
		TokenVaultB:      solana.PublicKeyFromBytes(data[vaultBOffset : vaultBOffset+32]),
	}, nil
}

// Position is the leading part of a position account.
type Position struct {
	Whirlpool      solana.PublicKey
	PositionMint   solana.PublicKey
	Liquidity      uint128.Uint128
	TickLowerIndex int32
	TickUpperIndex int32
}

type positionLayout struct {
	Discriminator  [8]byte
	Whirlpool      solana.PublicKey
	PositionMint   solana.PublicKey
	Liquidity      [16]byte
	TickLowerIndex int32
	TickUpperIndex int32
}

// DecodePosition parses raw position account data.
func DecodePosition(data []byte) (*Position, error) {
	var raw positionLayout
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	if raw.Discriminator != positionAccountDisc {
		return nil, fmt.Errorf("account is not a position")
	}
	return &Position{
		Whirlpool:      raw.Whirlpool,
		PositionMint:   raw.PositionMint,
		Liquidity:      uint128.FromBytes(raw.Liquidity[:]),
		TickLowerIndex: raw.TickLowerIndex,
		TickUpperIndex: raw.TickUpperIndex,
	}, nil
}

// PositionBundle is a decoded position bundle account.
type PositionBundle struct {
	Mint   solana.PublicKey
	Bitmap Bitmap
}

// DecodePositionBundle parses raw position bundle account data.
func DecodePositionBundle(data []byte) (*PositionBundle, error) {
	if len(data) < bundleMinLen {
		return nil, fmt.Errorf("position bundle account too short: have %d want >= %d", len(data), bundleMinLen)
	}
	if !bytes.Equal(data[:discriminatorLen], positionBundleAccountDisc[:]) {
		return nil, fmt.Errorf("account is not a position bundle")
	}
	pb := &PositionBundle{Mint: solana.PublicKeyFromBytes(data[bundleMintOffset : bundleMintOffset+32])}
	copy(pb.Bitmap[:], data[bundleBitmapOffset:bundleMinLen])
	return pb, nil
}

// DecodeMintDecimals reads the decimals of an SPL mint account.
func DecodeMintDecimals(data []byte) (uint8, error) {
	if len(data) < mintMinLen {
		return 0, fmt.Errorf("mint account too short: have %d want >= %d", len(data), mintMinLen)
	}
	return data[mintDecimalsOffset], nil
}
