// Package retry re-runs operations that fail transiently, such as a gadget
// finder killed by the OOM killer halfway through a large binary.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines how the delay grows between attempts.
type BackoffStrategy int

const (
	// BackoffExponential uses exponential backoff: base * 2^(attempt-1)
	BackoffExponential BackoffStrategy = iota

	// BackoffLinear uses linear backoff: base * attempt
	BackoffLinear

	// BackoffConstant uses constant backoff: base (no increase)
	BackoffConstant
)

// DefaultBaseInterval is the delay before the first retry.
const DefaultBaseInterval = 2 * time.Second

// BackoffConfig configures the backoff behavior.
type BackoffConfig struct {
	// Strategy is the backoff strategy to use.
	// Default is BackoffExponential.
	Strategy BackoffStrategy

	// BaseInterval is the base interval for backoff calculation.
	BaseInterval time.Duration

	// MaxInterval is the maximum interval between retries.
	MaxInterval time.Duration

	// Jitter adds randomness so parallel workers do not retry in lockstep.
	// Value between 0.0 (no jitter) and 1.0 (full jitter).
	Jitter float64
}

// DefaultBackoffConfig returns a BackoffConfig with default values.
func DefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		Strategy:     BackoffExponential,
		BaseInterval: DefaultBaseInterval,
		MaxInterval:  time.Minute,
		Jitter:       0.1,
	}
}

// Interval returns the delay before retry number attempts (1-based).
func (c *BackoffConfig) Interval(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	var interval time.Duration

	switch c.Strategy {
	case BackoffLinear:
		interval = c.BaseInterval * time.Duration(attempts)

	case BackoffConstant:
		interval = c.BaseInterval

	default:
		multiplier := math.Pow(2, float64(attempts-1))
		interval = time.Duration(float64(c.BaseInterval) * multiplier)
	}

	// Cap at max interval
	if c.MaxInterval > 0 && interval > c.MaxInterval {
		interval = c.MaxInterval
	}

	if c.Jitter > 0 {
		interval = c.applyJitter(interval)
	}

	return interval
}

func (c *BackoffConfig) applyJitter(interval time.Duration) time.Duration {
	jitter := min(c.Jitter, 1)

	// For jitter=0.1 the result lies in [0.9, 1.1] * interval
	jitterRange := float64(interval) * jitter
	jitterValue := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(interval) + jitterValue)
}

// Schedule returns the delays before each of maxAttempts retries, without
// jitter. Useful for logging the expected worst case.
func (c *BackoffConfig) Schedule(maxAttempts int) []time.Duration {
	if maxAttempts <= 0 {
		return nil
	}

	noJitter := *c
	noJitter.Jitter = 0

	schedule := make([]time.Duration, maxAttempts)
	for i := range maxAttempts {
		schedule[i] = noJitter.Interval(i + 1)
	}
	return schedule
}

// Policy decides how often and when an operation is retried.
type Policy struct {
	// Retries is the number of retries after the first attempt.
	Retries int

	// Backoff computes the delay between attempts (nil = DefaultBackoffConfig).
	Backoff *BackoffConfig

	// Retryable reports whether err is worth another attempt (nil = any error).
	Retryable func(err error) bool

	// OnRetry is called before each retry with the 1-based retry number.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do calls fn until it succeeds, returns a non-retryable error, the retries
// run out or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultBackoffConfig()
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.Retries || ctx.Err() != nil {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}

		delay := backoff.Interval(attempt + 1)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
