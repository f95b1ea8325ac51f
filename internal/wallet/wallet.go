// Package wallet signs transactions with local keypairs.
package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bundleKeeper/internal/model"
)

// KeypairSigner holds the fee payer key and any extra keys a run needs,
// such as a freshly generated bundle mint.
type KeypairSigner struct {
	payer solana.PrivateKey
	keys  map[solana.PublicKey]solana.PrivateKey
}

func NewKeypairSigner(payer solana.PrivateKey, extra ...solana.PrivateKey) (*KeypairSigner, error) {
	if len(payer) != 64 {
		return nil, fmt.Errorf("%w: payer key must be 64 bytes, got %d", model.ErrInvalidParameter, len(payer))
	}
	s := &KeypairSigner{payer: payer, keys: map[solana.PublicKey]solana.PrivateKey{payer.PublicKey(): payer}}
	for _, k := range extra {
		if len(k) != 64 {
			return nil, fmt.Errorf("%w: extra key must be 64 bytes, got %d", model.ErrInvalidParameter, len(k))
		}
		s.keys[k.PublicKey()] = k
	}
	return s, nil
}

// LoadKeypairSigner reads a solana-keygen JSON file.
func LoadKeypairSigner(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairSigner(key)
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.payer.PublicKey()
}

// With returns a copy that also signs with extra.
func (s *KeypairSigner) With(extra ...solana.PrivateKey) (*KeypairSigner, error) {
	return NewKeypairSigner(s.payer, append(s.Extra(), extra...)...)
}

// Extra returns the non-payer keys.
func (s *KeypairSigner) Extra() []solana.PrivateKey {
	payer := s.payer.PublicKey()
	out := make([]solana.PrivateKey, 0, len(s.keys)-1)
	for pk, k := range s.keys {
		if pk != payer {
			out = append(out, k)
		}
	}
	return out
}

// SignAll signs each transaction in place and returns them in input order.
func (s *KeypairSigner) SignAll(ctx context.Context, txs []*solana.Transaction) ([]*solana.Transaction, error) {
	getter := func(pk solana.PublicKey) *solana.PrivateKey {
		k, ok := s.keys[pk]
		if !ok {
			return nil
		}
		return &k
	}
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := tx.Sign(getter); err != nil {
			return nil, fmt.Errorf("sign transaction %d: %w", i, err)
		}
	}
	return txs, nil
}
