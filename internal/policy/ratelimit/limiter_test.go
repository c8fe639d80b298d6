package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

func TestLimiter_WaitSpacesRequestsPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{HostRPS: 10, HostBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://acme.edu/a"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://acme.edu/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{HostRPS: 1, HostBurst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.org/1"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.org/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_DisabledWhenRateUnset(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 20 {
		require.NoError(t, l.Wait(ctx, "https://acme.edu/"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_FetcherHonorsCancellation(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := enrich.FetcherFunc(func(_ context.Context, url string) (enrich.Page, error) {
		calls.Add(1)
		return enrich.Page{URL: url, StatusCode: 200}, nil
	})
	l := New(Config{HostRPS: 0.01, HostBurst: 1})
	f := l.Fetcher(next)

	page, err := f.Fetch(context.Background(), "https://acme.edu/faculty/jane")
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, "https://acme.edu/faculty/john")
	require.Error(t, err)
	var fetchErr *enrich.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.False(t, fetchErr.Retryable)
	require.Equal(t, int32(1), calls.Load())
}
