// Package config handles YAML configuration loading with environment variable
// substitution, and the network list published through NET_<NAME>_* variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the marketctl configuration file.
type Config struct {
	// Network selects an entry of the NET_<NAME>_* network list. Its API
	// endpoint fills Asset.RPCURL when that is empty.
	Network    string           `yaml:"network"`
	SS58Prefix uint16           `yaml:"ss58_prefix"`
	Asset      AssetConfig      `yaml:"asset"`
	Settlement SettlementConfig `yaml:"settlement"`
	Market     MarketConfig     `yaml:"market"`
	Confirm    ConfirmConfig    `yaml:"confirm"`
	RPC        RPCConfig        `yaml:"rpc"`
	Events     EventsConfig     `yaml:"events"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// AssetConfig describes the chain that holds the NFTs.
type AssetConfig struct {
	RPCURL    string `yaml:"rpc_url"`
	EVMRPCURL string `yaml:"evm_rpc_url"`
}

// SettlementConfig describes the chain that holds escrow balances.
type SettlementConfig struct {
	RPCURL string `yaml:"rpc_url"`
	// ExistentialDeposit in smallest units, as a decimal string.
	ExistentialDeposit string `yaml:"existential_deposit"`
	Decimals           int32  `yaml:"decimals"`
	Symbol             string `yaml:"symbol"`
	// MinDisplay is the smallest positive amount shown, e.g. "0.000001".
	MinDisplay string `yaml:"min_display"`
}

// MarketConfig locates the market contract and its escrow account.
type MarketConfig struct {
	ContractAddress string `yaml:"contract_address"`
	EscrowAddress   string `yaml:"escrow_address"`
	CurrencyCode    string `yaml:"currency_code"`
	GasLimit        uint64 `yaml:"gas_limit"`
}

// ConfirmConfig bounds confirmation polling. Overrides are keyed by
// operation name (e.g. "buy_token").
type ConfirmConfig struct {
	MaxAttempts int                     `yaml:"max_attempts"`
	Delay       time.Duration           `yaml:"delay"`
	Overrides   map[string]ConfirmLimit `yaml:"overrides"`
}

// ConfirmLimit is a per-operation polling budget.
type ConfirmLimit struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// RPCConfig rate-limits every RPC client.
type RPCConfig struct {
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// EventsConfig enables publication of stage events to SNS.
type EventsConfig struct {
	SNSTopicARN string `yaml:"sns_topic_arn"`
	Region      string `yaml:"region"`
}

// TelemetryConfig enables OTLP metric export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data after expanding ${VAR} references.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// Defaults returns a configuration holding only default values.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ExistentialDeposit parses Settlement.ExistentialDeposit. It must be the
// settlement chain's positive minimum balance: whitelisting pays exactly this
// amount to escrow.
func (c *Config) ExistentialDeposit() (*big.Int, error) {
	if c.Settlement.ExistentialDeposit == "" {
		return nil, errors.New("settlement.existential_deposit is required")
	}
	v, ok := new(big.Int).SetString(c.Settlement.ExistentialDeposit, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("settlement.existential_deposit %q is not a positive integer", c.Settlement.ExistentialDeposit)
	}
	return v, nil
}

// MinDisplay parses Settlement.MinDisplay.
func (c *Config) MinDisplay() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Settlement.MinDisplay)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("settlement.min_display %q: %w", c.Settlement.MinDisplay, err)
	}
	return d, nil
}
