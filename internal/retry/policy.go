// Package retry runs fallible operations under exponential backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

const (
	// MinDelay is the floor applied to every computed delay.
	MinDelay = 100 * time.Millisecond
	// JitterFraction is the +/- spread applied when jitter is enabled.
	JitterFraction = 0.25
)

// Policy configures how many times and how quickly an operation is retried.
type Policy struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Jitter     bool          `mapstructure:"jitter"`
	// AttemptTimeout bounds each attempt when positive.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		Jitter:         true,
		AttemptTimeout: 20 * time.Second,
	}
}

// Validate rejects policies that cannot produce a sane delay.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("retry policy: max_retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("retry policy: base_delay must be positive, got %s", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("retry policy: max_delay %s is below base_delay %s", p.MaxDelay, p.BaseDelay)
	}
	if p.MaxDelay < MinDelay {
		return fmt.Errorf("retry policy: max_delay %s is below the %s delay floor", p.MaxDelay, MinDelay)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("retry policy: attempt_timeout must not be negative, got %s", p.AttemptTimeout)
	}
	return nil
}

// Delay returns the wait before retry n (0-based): base*2^n clamped to [MinDelay, MaxDelay],
// then spread by +/- JitterFraction when jitter is on and clamped again. rnd must return values
// in [0,1); nil disables jitter.
func (p Policy) Delay(n int, rnd func() float64) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(n))
	d = p.clamp(d)
	if p.Jitter && rnd != nil {
		d *= 1 + (rnd()*2-1)*JitterFraction
		d = p.clamp(d)
	}
	return time.Duration(d)
}

// clamp assumes a validated policy, so MinDelay <= MaxDelay.
func (p Policy) clamp(d float64) float64 {
	switch {
	case math.IsNaN(d) || d < float64(MinDelay):
		return float64(MinDelay)
	case d > float64(p.MaxDelay):
		return float64(p.MaxDelay)
	default:
		return d
	}
}

func (p Policy) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.AttemptTimeout > 0 {
		return context.WithTimeout(ctx, p.AttemptTimeout)
	}
	return context.WithCancel(ctx)
}

// Predicate decides whether an error is worth another attempt.
type Predicate func(error) bool

// IsNetworkError is the default predicate: fetch errors marked retryable, net.Error values
// and attempt deadlines are retried; cancellation and everything else are not.
func IsNetworkError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fetchErr *enrich.FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.StatusCode > 0 || fetchErr.Err == nil {
			return fetchErr.Retryable
		}
		if fetchErr.Retryable {
			return true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Always retries every error.
func Always(err error) bool {
	return err != nil
}
