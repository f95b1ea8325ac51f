package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"bundleKeeper/internal/model"
	"bundleKeeper/internal/whirlpool"
)

// ErrAccountNotFound is returned when an account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// Client wraps the Solana RPC client and decodes whirlpool accounts.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithCommitment sets the commitment used for reads and preflight.
func WithCommitment(commitment rpc.CommitmentType) Option {
	return func(c *Client) {
		if commitment != "" {
			c.commitment = commitment
		}
	}
}

// WithRetry sets how read calls are retried.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = baseDelay
	}
}

// WithRPCClient replaces the underlying RPC client.
func WithRPCClient(client *rpc.Client) Option {
	return func(c *Client) {
		c.rpc = client
	}
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(rpcURL string, opts ...Option) (*Client, error) {
	c := &Client{
		commitment: rpc.CommitmentConfirmed,
		maxRetries: 3,
		retryDelay: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rpc == nil {
		if rpcURL == "" {
			return nil, fmt.Errorf("rpc url is required")
		}
		c.rpc = rpc.New(rpcURL)
	}
	return c, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpc != nil {
		_ = c.rpc.Close()
	}
}

// Account is raw account data with its owning program.
type Account struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

// GetAccount reads one account.
func (c *Client) GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error) {
	var out *rpc.GetAccountInfoResult
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		var err error
		out, err = c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Commitment: c.commitment,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w %s", model.ErrStateFetch, ErrAccountNotFound, address)
		}
		return nil, fmt.Errorf("%w: get account %s: %w", model.ErrStateFetch, address, err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: %w %s", model.ErrStateFetch, ErrAccountNotFound, address)
	}
	return &Account{
		Address: address,
		Owner:   out.Value.Owner,
		Data:    out.Value.Data.GetBinary(),
	}, nil
}

// maxMultipleAccounts is the getMultipleAccounts limit per request.
const maxMultipleAccounts = 100

// GetAccounts reads several accounts, maxMultipleAccounts per request.
// Missing accounts are nil.
func (c *Client) GetAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*Account, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	accounts := make([]*Account, 0, len(addresses))
	for from := 0; from < len(addresses); from += maxMultipleAccounts {
		to := min(from+maxMultipleAccounts, len(addresses))
		page, err := c.getAccounts(ctx, addresses[from:to])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, page...)
	}
	return accounts, nil
}

func (c *Client) getAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*Account, error) {
	var out *rpc.GetMultipleAccountsResult
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		var err error
		out, err = c.rpc.GetMultipleAccountsWithOpts(ctx, addresses, &rpc.GetMultipleAccountsOpts{
			Commitment: c.commitment,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get %d accounts: %w", model.ErrStateFetch, len(addresses), err)
	}
	if out == nil || len(out.Value) != len(addresses) {
		return nil, fmt.Errorf("%w: get %d accounts: short response", model.ErrStateFetch, len(addresses))
	}
	accounts := make([]*Account, len(addresses))
	for i, v := range out.Value {
		if v == nil {
			continue
		}
		accounts[i] = &Account{Address: addresses[i], Owner: v.Owner, Data: v.Data.GetBinary()}
	}
	return accounts, nil
}

// Whirlpool reads and decodes a pool account.
func (c *Client) Whirlpool(ctx context.Context, address solana.PublicKey) (*whirlpool.Whirlpool, error) {
	acct, err := c.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	pool, err := whirlpool.DecodeWhirlpool(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrStateFetch, address, err)
	}
	return pool, nil
}

// Positions reads several position accounts in one call. Missing accounts
// are nil.
func (c *Client) Positions(ctx context.Context, addresses []solana.PublicKey) ([]*whirlpool.Position, error) {
	accounts, err := c.GetAccounts(ctx, addresses)
	if err != nil {
		return nil, err
	}
	out := make([]*whirlpool.Position, len(accounts))
	for i, acct := range accounts {
		if acct == nil {
			continue
		}
		pos, err := whirlpool.DecodePosition(acct.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", model.ErrStateFetch, acct.Address, err)
		}
		out[i] = pos
	}
	return out, nil
}

// PositionBundle reads and decodes a position bundle account.
func (c *Client) PositionBundle(ctx context.Context, address solana.PublicKey) (*whirlpool.PositionBundle, error) {
	acct, err := c.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	pb, err := whirlpool.DecodePositionBundle(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", model.ErrStateFetch, address, err)
	}
	return pb, nil
}

// Mint reads a token mint's decimals and owning token program.
func (c *Client) Mint(ctx context.Context, address solana.PublicKey) (MintInfo, error) {
	acct, err := c.GetAccount(ctx, address)
	if err != nil {
		return MintInfo{}, err
	}
	decimals, err := whirlpool.DecodeMintDecimals(acct.Data)
	if err != nil {
		return MintInfo{}, fmt.Errorf("%w: %s: %w", model.ErrStateFetch, address, err)
	}
	return MintInfo{Decimals: decimals, TokenProgram: acct.Owner}, nil
}

// Blockhash is a recent blockhash and the last block height it is valid for.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// LatestBlockhash fetches a recent blockhash.
func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	var out *rpc.GetLatestBlockhashResult
	err := withRetry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		var err error
		out, err = c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
		return err
	})
	if err != nil {
		return Blockhash{}, fmt.Errorf("%w: latest blockhash: %w", model.ErrStateFetch, err)
	}
	if out == nil || out.Value == nil {
		return Blockhash{}, fmt.Errorf("%w: latest blockhash: empty response", model.ErrStateFetch)
	}
	return Blockhash{Hash: out.Value.Blockhash, LastValidBlockHeight: out.Value.LastValidBlockHeight}, nil
}

// SendTransaction submits a signed transaction once.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
}

// SignatureStatus returns the status of sig, or nil when the cluster has not seen it.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Value) == 0 {
		return nil, nil
	}
	return out.Value[0], nil
}

// BlockHeight returns the current block height.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	return c.rpc.GetBlockHeight(ctx, c.commitment)
}
