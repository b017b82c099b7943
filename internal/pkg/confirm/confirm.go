// Package confirm turns "submit now, observe later" into a bounded wait.
//
// A submitted transaction has no reliable completion signal across the two
// ledgers, so callers describe the state they expect to see as a predicate and
// Until re-evaluates it at a fixed interval until it holds or the attempt
// budget is spent.
package confirm

import (
	"context"
	"fmt"
	"time"

	"github.com/archon-research/stl-market/internal/domain/entity"
)

const (
	DefaultMaxAttempts = 100
	DefaultDelay       = 2 * time.Second
)

// Config holds the attempt budget for one wait.
type Config struct {
	// MaxAttempts is the number of predicate evaluations before giving up.
	MaxAttempts int

	// Delay is the fixed pause between two evaluations. It does not grow.
	Delay time.Duration

	// OnAttempt is called after every evaluation that did not confirm
	// (optional, for logging/metrics). attempt is 1-indexed.
	OnAttempt func(attempt int)
}

// ConfigDefaults returns the budget used when a caller has no override:
// 100 attempts two seconds apart.
func ConfigDefaults() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// Predicate reports whether the awaited state is visible on chain. A non-nil
// error means the state could not be read at all.
type Predicate func(ctx context.Context) (bool, error)

// Until evaluates predicate sequentially until it returns true.
//
// It returns nil on the first true result. Predicate errors are returned
// immediately and unchanged; a failed read is not the same as "not yet". After
// MaxAttempts evaluations without success it returns an error wrapping
// entity.ErrConfirmationTimeout. There is no pause after the final attempt.
func Until(ctx context.Context, cfg Config, predicate Predicate) error {
	defaults := ConfigDefaults()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = defaults.Delay
	}

	for attempt := 1; ; attempt++ {
		ok, err := predicate(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if cfg.OnAttempt != nil {
			cfg.OnAttempt(attempt)
		}
		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts", entity.ErrConfirmationTimeout, attempt)
		}

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("awaiting confirmation: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
