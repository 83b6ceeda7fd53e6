// Package reliability retries short infrastructure calls such as audit
// writes and object-storage requests.
package reliability

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial attempt)
	MaxAttempts int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Multiplier for exponential backoff
	Multiplier float64
	// Jitter adds randomness to delay calculations, as a fraction of the delay
	Jitter float64
	// ShouldRetry decides whether an error is worth another attempt
	ShouldRetry func(err error) bool
	// OnRetry is called before each retry attempt
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns a configuration suited to a request path: a few
// quick attempts and no long sleeps.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     250 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier <= 0 {
		c.Multiplier = d.Multiplier
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = d.Jitter
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = func(err error) bool { return err != nil }
	}
	return c
}

// NextDelay returns the backoff before retry number attempt (0-indexed).
func (c RetryConfig) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	c = c.withDefaults()

	delay := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		delay += (rand.Float64() - 0.5) * 2 * delay * c.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Retry runs operation until it succeeds, ShouldRetry rejects the error,
// the attempts run out, or ctx is done. It returns the last error.
func Retry(ctx context.Context, config RetryConfig, operation func(context.Context) error) error {
	config = config.withDefaults()

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= config.MaxAttempts-1 || !config.ShouldRetry(err) {
			break
		}

		delay := config.NextDelay(attempt)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
