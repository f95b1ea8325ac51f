package bundler

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"bundleKeeper/internal/model"
)

var knownTokens = map[solana.PublicKey]string{
	solana.WrappedSol: "SOL",
	solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"): "USDC",
	solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"): "USDT",
	solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"): "BONK",
	solana.MustPublicKeyFromBase58("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"):  "mSOL",
	solana.MustPublicKeyFromBase58("JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"):  "JUP",
}

func tokenSymbols(overrides map[string]string) (map[solana.PublicKey]string, error) {
	out := make(map[solana.PublicKey]string, len(knownTokens)+len(overrides))
	for k, v := range knownTokens {
		out[k] = v
	}
	for mint, symbol := range overrides {
		pk, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, fmt.Errorf("%w: token symbol mint %q: %w", model.ErrInvalidParameter, mint, err)
		}
		out[pk] = symbol
	}
	return out, nil
}

// Symbol returns the ticker of mint, or a shortened address when unknown.
func (s *Session) Symbol(mint solana.PublicKey) string {
	if sym, ok := s.symbols[mint]; ok {
		return sym
	}
	str := mint.String()
	if len(str) > 8 {
		return str[:4] + ".." + str[len(str)-4:]
	}
	return str
}
