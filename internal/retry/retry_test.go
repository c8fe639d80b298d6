package retry

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

func fastPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   MinDelay,
	}
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultPolicy().Validate())
	require.NoError(t, fastPolicy(0).Validate())

	bad := []Policy{
		{MaxRetries: -1, BaseDelay: time.Second, MaxDelay: time.Second},
		{MaxRetries: 1, BaseDelay: 0, MaxDelay: time.Second},
		{MaxRetries: 1, BaseDelay: 2 * time.Second, MaxDelay: time.Second},
		{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Second, AttemptTimeout: -time.Second},
		{MaxRetries: 1, BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond},
	}
	for _, p := range bad {
		require.Error(t, p.Validate(), "%+v", p)
	}

	err := Policy{BaseDelay: time.Millisecond, MaxDelay: MinDelay - time.Millisecond}.Validate()
	require.ErrorContains(t, err, "delay floor")
}

func TestPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := Policy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	require.Equal(t, time.Second, p.Delay(0, nil))
	require.Equal(t, 2*time.Second, p.Delay(1, nil))
	require.Equal(t, 4*time.Second, p.Delay(2, nil))
	require.Equal(t, 5*time.Second, p.Delay(3, nil))
	require.Equal(t, 5*time.Second, p.Delay(200, nil))

	tiny := Policy{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}
	require.Equal(t, MinDelay, tiny.Delay(0, nil))

	p.Jitter = true
	require.Equal(t, 1500*time.Millisecond, p.Delay(1, func() float64 { return 0 }))
	require.Equal(t, 2*time.Second, p.Delay(1, func() float64 { return 0.5 }))
	require.Equal(t, 5*time.Second, p.Delay(3, func() float64 { return 0.999 }))

	for n := 0; n < 12; n++ {
		for _, r := range []float64{0, 0.25, 0.5, 0.75, 0.9999} {
			d := p.Delay(n, func() float64 { return r })
			require.GreaterOrEqual(t, d, MinDelay)
			require.LessOrEqual(t, d, p.MaxDelay)
		}
	}
}

func TestExecute_SucceedsAfterNFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	c := New(zap.New(core))
	policy := fastPolicy(3)

	const failures = 2
	var calls int32
	got, err := Do(context.Background(), c, "lookup", policy, Always, func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) <= failures {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.EqualValues(t, failures+1, atomic.LoadInt32(&calls))

	entries := logs.FilterMessage("retrying operation").All()
	require.Len(t, entries, failures)
	for i, e := range entries {
		fields := e.ContextMap()
		require.EqualValues(t, i+1, fields["attempt"])
		delay, ok := fields["delay"].(time.Duration)
		require.True(t, ok)
		require.GreaterOrEqual(t, delay, MinDelay)
		require.LessOrEqual(t, delay, policy.MaxDelay)
	}
}

func TestExecute_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()

	c := New(nil)
	permanent := errors.New("permanent")
	var calls int
	err := c.Execute(context.Background(), "lookup", fastPolicy(5), func(error) bool { return false },
		func(context.Context) error {
			calls++
			return permanent
		})
	require.ErrorIs(t, err, permanent)
	require.NotErrorIs(t, err, enrich.ErrExhaustedRetries)
	require.Equal(t, 1, calls)
}

func TestExecute_ExhaustedRetries(t *testing.T) {
	t.Parallel()

	c := New(nil)
	boom := enrich.NewStatusError("https://acme.edu", 503)
	var calls int
	err := c.Execute(context.Background(), "lookup", fastPolicy(2), nil, func(context.Context) error {
		calls++
		return boom
	})
	require.Equal(t, 3, calls)
	require.ErrorIs(t, err, enrich.ErrExhaustedRetries)

	var exhausted *enrich.ExhaustedRetriesError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)

	var fetchErr *enrich.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 503, fetchErr.StatusCode)
}

func TestExecute_ZeroRetries(t *testing.T) {
	t.Parallel()

	c := New(nil)
	var calls int
	err := c.Execute(context.Background(), "lookup", fastPolicy(0), Always, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, enrich.ErrExhaustedRetries)
}

func TestExecute_InvalidPolicyFailsBeforeRunning(t *testing.T) {
	t.Parallel()

	c := New(nil)
	called := false
	err := c.Execute(context.Background(), "lookup", Policy{MaxRetries: 1}, nil, func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
}

func TestExecute_ParentCancellationIsNotRetried(t *testing.T) {
	t.Parallel()

	c := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := c.Execute(ctx, "lookup", fastPolicy(5), Always, func(context.Context) error {
		calls++
		cancel()
		return errors.New("interrupted")
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, enrich.ErrExhaustedRetries)
	require.Equal(t, 1, calls)
}

func TestExecute_AttemptTimeoutIsRetried(t *testing.T) {
	t.Parallel()

	c := New(nil)
	policy := fastPolicy(2)
	policy.AttemptTimeout = 20 * time.Millisecond

	var calls int
	err := c.Execute(context.Background(), "lookup", policy, func(error) bool { return false },
		func(ctx context.Context) error {
			calls++
			if calls == 1 {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestIsNetworkError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"503", enrich.NewStatusError("u", 503), true},
		{"429", enrich.NewStatusError("u", 429), true},
		{"404", enrich.NewStatusError("u", 404), false},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, true},
		{"transport", &enrich.FetchError{URL: "u", Err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, true},
		{"marked", &enrich.FetchError{URL: "u", Retryable: true, Err: errors.New("reset")}, true},
		{"unmarked", &enrich.FetchError{URL: "u", Err: errors.New("bad body")}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, IsNetworkError(tc.err), tc.name)
	}
}

func TestRunner_ReappliesPolicy(t *testing.T) {
	t.Parallel()

	c := New(nil)
	_, err := c.Wrap("fetch", Policy{}, nil)
	require.Error(t, err)

	r, err := c.Wrap("fetch", fastPolicy(1), nil)
	require.NoError(t, err)
	require.Equal(t, 1, r.Policy().MaxRetries)

	var calls int
	fetcher := r.Fetcher(enrich.FetcherFunc(func(_ context.Context, url string) (enrich.Page, error) {
		calls++
		if calls == 1 {
			return enrich.Page{}, enrich.NewStatusError(url, 502)
		}
		return enrich.Page{URL: url, StatusCode: 200, Text: "hello"}, nil
	}))
	page, err := fetcher.Fetch(context.Background(), "https://acme.edu")
	require.NoError(t, err)
	require.Equal(t, "hello", page.Text)
	require.Equal(t, 2, calls)

	err = r.Run(context.Background(), func(context.Context) error {
		return enrich.NewStatusError("https://acme.edu/x", 404)
	})
	var fetchErr *enrich.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.NotErrorIs(t, err, enrich.ErrExhaustedRetries)
}
