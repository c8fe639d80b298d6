package retry

import (
	"context"
	"fmt"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// Runner captures a policy and predicate once and applies them to many operations.
type Runner struct {
	coordinator *Coordinator
	name        string
	policy      Policy
	pred        Predicate
}

// Wrap validates policy up front and returns a Runner bound to it.
func (c *Coordinator) Wrap(name string, policy Policy, pred Predicate) (*Runner, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("wrap %s: %w", name, err)
	}
	if pred == nil {
		pred = IsNetworkError
	}
	return &Runner{coordinator: c, name: name, policy: policy, pred: pred}, nil
}

// Policy returns the captured policy.
func (r *Runner) Policy() Policy {
	return r.policy
}

// Run executes op under the captured policy.
func (r *Runner) Run(ctx context.Context, op Operation) error {
	return r.coordinator.Execute(ctx, r.name, r.policy, r.pred, op)
}

// RunValue executes a value-returning op under the runner's policy.
func RunValue[T any](ctx context.Context, r *Runner, op func(ctx context.Context) (T, error)) (T, error) {
	return Do(ctx, r.coordinator, r.name, r.policy, r.pred, op)
}

// Fetcher decorates a PageFetcher so every Fetch runs under the runner's policy.
func (r *Runner) Fetcher(next enrich.PageFetcher) enrich.PageFetcher {
	return enrich.FetcherFunc(func(ctx context.Context, url string) (enrich.Page, error) {
		return RunValue(ctx, r, func(ctx context.Context) (enrich.Page, error) {
			return next.Fetch(ctx, url)
		})
	})
}
