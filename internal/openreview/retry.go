package openreview

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines how transient request failures are retried.
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay" jsonschema:"type=string"`
	MaxDelay      time.Duration `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay" jsonschema:"type=string"`
	BackoffFactor float64       `mapstructure:"backoff_factor" json:"backoff_factor" yaml:"backoff_factor"`
	Jitter        bool          `mapstructure:"jitter" json:"jitter" yaml:"jitter"`
}

// DefaultRetryConfig returns the retry settings used when none are configured.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Retrier repeats an operation while it fails with a TransientError.
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a retrier. A nil config uses DefaultRetryConfig.
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}

	cfg := *config
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Retrier{config: &cfg}
}

// NextDelay calculates the delay before the given attempt is repeated.
func (r *Retrier) NextDelay(attempt int, lastErr error) time.Duration {
	var transient *TransientError
	if errors.As(lastErr, &transient) && transient.RetryAfter > 0 {
		return min(transient.RetryAfter, r.config.MaxDelay)
	}

	delay := time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1)))
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter {
		delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
	}

	return delay
}

// ShouldRetry determines if the failed attempt should be repeated.
func (r *Retrier) ShouldRetry(attempt int, err error) bool {
	return attempt < r.config.MaxAttempts && IsTransient(err)
}

// Execute runs operation until it succeeds, fails permanently, runs out of
// attempts, or ctx is done.
func (r *Retrier) Execute(ctx context.Context, operation func(context.Context) error) error {
	var lastErr error

	attempt := 1
	for ; attempt <= r.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Int("attempt", attempt).
					Msg("Request succeeded after retries")
			}
			return nil
		}

		lastErr = err

		if !r.ShouldRetry(attempt, err) {
			break
		}

		delay := r.NextDelay(attempt, err)

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.config.MaxAttempts).
			Dur("delay", delay).
			Msg("Request failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	if attempt > 1 && IsTransient(lastErr) {
		return fmt.Errorf("request failed after %d attempts: %w", attempt, lastErr)
	}

	return lastErr
}
