package config

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl-market/internal/pkg/ss58"
)

// Validate checks that all required fields are set and values are valid.
// It does not require RPC endpoints: a simulated run needs none.
func (c *Config) Validate() error {
	if c.SS58Prefix > ss58.MaxPrefix {
		return fmt.Errorf("ss58_prefix must be <= %d, got %d", ss58.MaxPrefix, c.SS58Prefix)
	}

	if c.Market.ContractAddress == "" {
		return errors.New("market.contract_address is required")
	}
	if !common.IsHexAddress(c.Market.ContractAddress) {
		return fmt.Errorf("market.contract_address %q is not an address", c.Market.ContractAddress)
	}
	if !common.IsHexAddress(c.Market.CurrencyCode) {
		return fmt.Errorf("market.currency_code %q is not an address", c.Market.CurrencyCode)
	}
	if c.Market.EscrowAddress == "" {
		return errors.New("market.escrow_address is required")
	}
	if _, _, err := ss58.Decode(c.Market.EscrowAddress); err != nil {
		return fmt.Errorf("market.escrow_address: %w", err)
	}

	if _, err := c.ExistentialDeposit(); err != nil {
		return err
	}
	if c.Settlement.Decimals < 0 || c.Settlement.Decimals > 36 {
		return fmt.Errorf("settlement.decimals must be between 0 and 36, got %d", c.Settlement.Decimals)
	}
	if _, err := c.MinDisplay(); err != nil {
		return err
	}

	if c.Confirm.MaxAttempts < 1 {
		return errors.New("confirm.max_attempts must be >= 1")
	}
	if c.Confirm.Delay < 0 {
		return errors.New("confirm.delay must be >= 0")
	}
	for name, limit := range c.Confirm.Overrides {
		if limit.MaxAttempts < 1 {
			return fmt.Errorf("confirm.overrides.%s.max_attempts must be >= 1", name)
		}
		if limit.Delay < 0 {
			return fmt.Errorf("confirm.overrides.%s.delay must be >= 0", name)
		}
	}

	if c.RPC.RateLimit <= 0 {
		return errors.New("rpc.rate_limit must be > 0")
	}
	if c.RPC.RateBurst < 1 {
		return errors.New("rpc.rate_burst must be >= 1")
	}

	return nil
}
