package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSS58Prefix         = 42
	DefaultDecimals           = 12
	DefaultSymbol             = "KSM"
	DefaultMinDisplay         = "0.000001"
	DefaultCurrencyCode       = "0x0000000000000000000000000000000000000001"
	DefaultGasLimit           = 2_500_000
	DefaultConfirmAttempts    = 100
	DefaultConfirmDelay       = 2 * time.Second
	DefaultRateLimit          = 10
	DefaultRateBurst          = 5
	DefaultServiceName        = "marketctl"
)

func (c *Config) applyDefaults() {
	if c.SS58Prefix == 0 {
		c.SS58Prefix = DefaultSS58Prefix
	}

	if c.Settlement.Decimals == 0 {
		c.Settlement.Decimals = DefaultDecimals
	}
	if c.Settlement.Symbol == "" {
		c.Settlement.Symbol = DefaultSymbol
	}
	if c.Settlement.MinDisplay == "" {
		c.Settlement.MinDisplay = DefaultMinDisplay
	}

	if c.Market.CurrencyCode == "" {
		c.Market.CurrencyCode = DefaultCurrencyCode
	}
	if c.Market.GasLimit == 0 {
		c.Market.GasLimit = DefaultGasLimit
	}

	if c.Confirm.MaxAttempts == 0 {
		c.Confirm.MaxAttempts = DefaultConfirmAttempts
	}
	if c.Confirm.Delay == 0 {
		c.Confirm.Delay = DefaultConfirmDelay
	}
	for name, limit := range c.Confirm.Overrides {
		if limit.MaxAttempts == 0 {
			limit.MaxAttempts = c.Confirm.MaxAttempts
		}
		if limit.Delay == 0 {
			limit.Delay = c.Confirm.Delay
		}
		c.Confirm.Overrides[name] = limit
	}

	if c.RPC.RateLimit == 0 {
		c.RPC.RateLimit = DefaultRateLimit
	}
	if c.RPC.RateBurst == 0 {
		c.RPC.RateBurst = DefaultRateBurst
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}
