// Package evm reads market contract state through the asset chain's
// Ethereum-compatible JSON-RPC endpoint.
//
// The reader is polled by every confirmation loop, so all calls go through a
// shared rate limiter.
package evm

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"

	"github.com/archon-research/stl-market/internal/domain/entity"
	"github.com/archon-research/stl-market/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl-market/internal/ports/outbound"
)

// Compile-time check that Contract implements outbound.MarketContract.
var _ outbound.MarketContract = (*Contract)(nil)

// Caller is the subset of *ethclient.Client the reader needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Config holds configuration for the contract reader.
type Config struct {
	// ContractAddress is the market contract.
	ContractAddress common.Address

	// HelpersAddress is the allow-list precompile.
	// Defaults to abis.ContractHelpersAddress.
	HelpersAddress common.Address

	// RateLimit is the maximum number of RPC calls per second.
	RateLimit rate.Limit

	// RateBurst is the limiter's burst size.
	RateBurst int

	// Logger is the structured logger.
	Logger *slog.Logger
}

// ConfigDefaults returns the default configuration. ContractAddress has no default.
func ConfigDefaults() Config {
	return Config{
		HelpersAddress: abis.ContractHelpersAddress,
		RateLimit:      rate.Limit(10),
		RateBurst:      5,
		Logger:         slog.Default(),
	}
}

// Contract implements outbound.MarketContract over eth_call.
type Contract struct {
	config  Config
	caller  Caller
	market  *abi.ABI
	helpers *abi.ABI
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewContract creates a market contract reader.
func NewContract(config Config, caller Caller) (*Contract, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is required")
	}
	if config.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("contract address is required")
	}

	defaults := ConfigDefaults()
	if config.HelpersAddress == (common.Address{}) {
		config.HelpersAddress = defaults.HelpersAddress
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaults.RateLimit
	}
	if config.RateBurst == 0 {
		config.RateBurst = defaults.RateBurst
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	market, err := abis.GetMarketplaceABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load marketplace ABI: %w", err)
	}
	helpers, err := abis.GetContractHelpersABI()
	if err != nil {
		return nil, fmt.Errorf("failed to load contract helpers ABI: %w", err)
	}

	return &Contract{
		config:  config,
		caller:  caller,
		market:  market,
		helpers: helpers,
		limiter: rate.NewLimiter(config.RateLimit, config.RateBurst),
		logger:  config.Logger.With("component", "evm-contract"),
	}, nil
}

// GetOrder reads the ask for (collection, tokenID).
func (c *Contract) GetOrder(ctx context.Context, collection common.Address, tokenID uint32) (entity.Order, error) {
	out, err := c.call(ctx, c.market, c.config.ContractAddress, "getOrder", collection, new(big.Int).SetUint64(uint64(tokenID)))
	if err != nil {
		return entity.Order{}, err
	}
	if len(out) != 7 {
		return entity.Order{}, fmt.Errorf("getOrder returned %d values", len(out))
	}

	price, ok := out[2].(*big.Int)
	if !ok {
		return entity.Order{}, fmt.Errorf("getOrder: unexpected price type %T", out[2])
	}
	owner, ok := out[5].(common.Address)
	if !ok {
		return entity.Order{}, fmt.Errorf("getOrder: unexpected owner type %T", out[5])
	}
	flag, ok := out[6].(uint8)
	if !ok {
		return entity.Order{}, fmt.Errorf("getOrder: unexpected flag type %T", out[6])
	}

	return entity.Order{Owner: owner, Price: price, Active: flag != 0}, nil
}

// DepositOf reads the escrowed balance credited to account.
func (c *Contract) DepositOf(ctx context.Context, account common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.market, c.config.ContractAddress, "balanceKSM", account)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceKSM: unexpected result type %T", out[0])
	}
	return balance, nil
}

// IsAllowListed asks the helpers precompile whether account may call the
// market contract.
func (c *Contract) IsAllowListed(ctx context.Context, account common.Address) (bool, error) {
	out, err := c.call(ctx, c.helpers, c.config.HelpersAddress, "allowed", c.config.ContractAddress, account)
	if err != nil {
		return false, err
	}
	allowed, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("allowed: unexpected result type %T", out[0])
	}
	return allowed, nil
}

// GasPrice returns the node's suggested gas price.
func (c *Contract) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return c.caller.SuggestGasPrice(ctx)
}

func (c *Contract) call(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	out, err := contract.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s response from %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	c.logger.Debug("contract call", "method", method, "to", to.Hex())
	return out, nil
}
