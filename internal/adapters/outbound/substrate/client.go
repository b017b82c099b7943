// Package substrate talks to the asset and settlement chains over their
// native JSON-RPC interface.
//
// One Client serves either chain: on the asset chain it answers token owner
// and allowance queries through the unique_* RPC namespace; on the settlement
// chain it reads System.Account storage. Both submit wallet-signed extrinsics
// with author_submitExtrinsic.
package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/bridge"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// Compile-time checks that Client implements the chain ports.
var (
	_ outbound.AssetChain      = (*Client)(nil)
	_ outbound.SettlementChain = (*Client)(nil)
	_ outbound.NFTReader       = (*Client)(nil)
)

// RPCCaller is the subset of *rpc.Client the adapter needs.
type RPCCaller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Config holds configuration for a chain client.
type Config struct {
	// Bridge decodes primary addresses into public keys for storage keys.
	Bridge *bridge.Bridge

	// ExistentialDeposit of the chain, in smallest units. Required when the
	// client serves the settlement chain.
	ExistentialDeposit *big.Int

	// RateLimit is the maximum number of RPC calls per second.
	RateLimit rate.Limit

	// RateBurst is the limiter's burst size.
	RateBurst int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// ConfigDefaults returns the default configuration.
func ConfigDefaults() Config {
	return Config{
		RateLimit: rate.Limit(10),
		RateBurst: 5,
		Logger:    slog.Default(),
	}
}

// Client implements the asset and settlement chain ports over JSON-RPC.
type Client struct {
	config  Config
	rpc     RPCCaller
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a chain client.
func NewClient(config Config, rpc RPCCaller) (*Client, error) {
	if rpc == nil {
		return nil, fmt.Errorf("rpc client is required")
	}
	if config.Bridge == nil {
		return nil, fmt.Errorf("address bridge is required")
	}

	defaults := ConfigDefaults()
	if config.RateLimit == 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateBurst == 0 {
		config.RateBurst = defaults.RateBurst
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	return &Client{
		config:  config,
		rpc:     rpc,
		limiter: rate.NewLimiter(config.RateLimit, config.RateBurst),
		logger:  config.Logger.With("component", "substrate-client"),
	}, nil
}

// GetToken returns the token's owner, or (nil, nil) when it does not exist.
func (c *Client) GetToken(ctx context.Context, ref entity.TokenRef) (*entity.Token, error) {
	var owner *entity.CrossAccountID
	if err := c.call(ctx, &owner, "unique_tokenOwner", ref.CollectionID, ref.TokenID); err != nil {
		return nil, err
	}
	if owner == nil || owner.IsZero() {
		return nil, nil
	}
	return &entity.Token{Ref: ref, Owner: *owner}, nil
}

// Allowance returns how many pieces of ref owner has approved spender to move.
func (c *Client) Allowance(ctx context.Context, ref entity.TokenRef, owner, spender entity.CrossAccountID) (*big.Int, error) {
	var raw json.RawMessage
	if err := c.call(ctx, &raw, "unique_allowance", ref.CollectionID, owner, spender, ref.TokenID); err != nil {
		return nil, err
	}
	return parseQuantity(raw)
}

// Submit broadcasts a signed extrinsic and returns its hash.
func (c *Client) Submit(ctx context.Context, tx *entity.SignedTx) (entity.Receipt, error) {
	if tx == nil || len(tx.Raw) == 0 {
		return entity.Receipt{}, fmt.Errorf("signed transaction is empty")
	}
	var hash string
	if err := c.call(ctx, &hash, "author_submitExtrinsic", hexutil.Encode(tx.Raw)); err != nil {
		return entity.Receipt{}, err
	}
	c.logger.Info("extrinsic submitted", "hash", hash, "call", tx.Tx.Call.Pallet+"."+tx.Tx.Call.Method)
	return entity.Receipt{Hash: hash}, nil
}

// ExistentialDeposit returns the configured existential deposit.
func (c *Client) ExistentialDeposit(ctx context.Context) (*big.Int, error) {
	if c.config.ExistentialDeposit == nil {
		return nil, fmt.Errorf("%w: existential deposit is not configured", entity.ErrDependencyMissing)
	}
	return new(big.Int).Set(c.config.ExistentialDeposit), nil
}

// AvailableBalance returns free minus frozen balance of account.
func (c *Client) AvailableBalance(ctx context.Context, account string) (*big.Int, error) {
	publicKey, err := c.config.Bridge.PublicKey(account)
	if err != nil {
		return nil, err
	}
	var raw *hexutil.Bytes
	if err := c.call(ctx, &raw, "state_getStorage", hexutil.Encode(SystemAccountKey(publicKey))); err != nil {
		return nil, err
	}
	if raw == nil {
		return new(big.Int), nil
	}
	return decodeAvailable(*raw)
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return c.rpc.CallContext(ctx, result, method, args...)
}

// parseQuantity accepts a JSON number, a decimal string or a 0x-prefixed
// hex string.
func parseQuantity(raw json.RawMessage) (*big.Int, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return new(big.Int), nil
	}
	base := 10
	digits := text
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base, digits = 16, text[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, fmt.Errorf("parsing quantity %q", text)
	}
	return v, nil
}
