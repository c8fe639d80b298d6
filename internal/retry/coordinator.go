package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
)

// Operation is a unit of work the Coordinator may run more than once.
type Operation func(ctx context.Context) error

// Coordinator executes operations under a Policy and logs every retry.
type Coordinator struct {
	logger *zap.Logger
	rnd    func() float64
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRand overrides the jitter source; fn must return values in [0,1).
func WithRand(fn func() float64) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.rnd = fn
		}
	}
}

// New creates a Coordinator. A nil logger discards retry logs.
func New(logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{logger: logger, rnd: rand.Float64}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs op until it succeeds, pred rejects its error, or policy.MaxRetries retries
// have been spent. Exhaustion returns *enrich.ExhaustedRetriesError wrapping the last error.
func (c *Coordinator) Execute(ctx context.Context, name string, policy Policy, pred Predicate, op Operation) error {
	_, err := Do(ctx, c, name, policy, pred, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Execute for operations that return a value.
func Do[T any](
	ctx context.Context,
	c *Coordinator,
	name string,
	policy Policy,
	pred Predicate,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}
	if pred == nil {
		pred = IsNetworkError
	}

	var (
		retries   int
		exhausted bool
		last      error
	)
	backoff := goretry.BackoffFunc(func() (time.Duration, bool) {
		if retries >= policy.MaxRetries {
			exhausted = true
			return 0, true
		}
		delay := policy.Delay(retries, c.rnd)
		retries++
		c.logger.Warn("retrying operation",
			zap.String("operation", name),
			zap.Int("attempt", retries),
			zap.Int("max_retries", policy.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(last),
		)
		metrics.ObserveRetry(name, delay)
		return delay, false
	})

	v, err := goretry.DoValue(ctx, backoff, func(ctx context.Context) (T, error) {
		attemptCtx, cancel := policy.attemptContext(ctx)
		defer cancel()

		v, err := op(attemptCtx)
		if err == nil {
			return v, nil
		}
		last = err
		if ctx.Err() != nil {
			return zero, err
		}
		if pred(err) || attemptTimedOut(attemptCtx, err) {
			return zero, goretry.RetryableError(err)
		}
		return zero, err
	})
	if err == nil {
		return v, nil
	}
	if exhausted {
		c.logger.Warn("operation exhausted retries",
			zap.String("operation", name),
			zap.Int("attempts", retries+1),
			zap.Error(err),
		)
		return zero, &enrich.ExhaustedRetriesError{Attempts: retries + 1, Last: err}
	}
	return zero, err
}

// attemptTimedOut reports whether err came from the per-attempt deadline rather than the caller.
func attemptTimedOut(attemptCtx context.Context, err error) bool {
	return errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && errors.Is(err, context.DeadlineExceeded)
}
