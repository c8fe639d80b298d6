package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

const facultyPage = `<!doctype html>
<html>
<head><title>  Jane Doe | Department of Psychology </title>
<style>body { color: red }</style></head>
<body>
  <script>var tracking = "Doe";</script>
  <h1>Jane Doe</h1>
  <p>Professor of
     Psychology</p>
</body>
</html>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/faculty/jane-doe", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Seen-UA", r.UserAgent())
		_, _ = w.Write([]byte(facultyPage))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Jane   Doe\nresearch"))
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/faculty/jane-doe", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/busy", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_ExtractsTitleAndText(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f := New(Config{UserAgent: "linkenricher-test", Timeout: time.Second})

	page, err := f.Fetch(context.Background(), srv.URL+"/faculty/jane-doe")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "Jane Doe | Department of Psychology", page.Title)
	require.Equal(t, "Jane Doe Professor of Psychology", page.Text)
	require.NotContains(t, page.Text, "tracking")
	require.Equal(t, srv.URL+"/faculty/jane-doe", page.URL)
}

func TestFetch_SameURLTwice(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f := New(Config{})
	for range 2 {
		page, err := f.Fetch(context.Background(), srv.URL+"/faculty/jane-doe")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, page.StatusCode)
	}
}

func TestFetch_PlainText(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	page, err := New(Config{}).Fetch(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	require.Empty(t, page.Title)
	require.Equal(t, "Jane Doe research", page.Text)
}

func TestFetch_FollowsRedirects(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	page, err := New(Config{}).Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, page.Title, "Jane Doe")
	require.Equal(t, srv.URL+"/old", page.URL)
}

func TestFetch_StatusErrors(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	f := New(Config{})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	var fetchErr *enrich.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	require.False(t, fetchErr.Retryable)

	_, err = f.Fetch(context.Background(), srv.URL+"/busy")
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	require.True(t, fetchErr.Retryable)
}

func TestFetch_ConnectionRefusedIsRetryable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Fetch(context.Background(), addr+"/faculty/jane-doe")
	var fetchErr *enrich.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Zero(t, fetchErr.StatusCode)
	require.True(t, fetchErr.Retryable)
}

func TestFetch_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(Config{Timeout: 5 * time.Second}).Fetch(ctx, srv.URL+"/slow")
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
	var fetchErr *enrich.FetchError
	require.True(t, errors.As(err, &fetchErr))
}

func TestBuildCollector(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := New(Config{UserAgent: "coverage-agent", RespectRobots: true, MaxBodyBytes: 1024})
	collector := f.buildCollector(ctx)
	require.Equal(t, "coverage-agent", collector.UserAgent)
	require.False(t, collector.IgnoreRobotsTxt)
	require.True(t, collector.AllowURLRevisit)
	require.Equal(t, 1024, collector.MaxBodySize)

	collector = New(Config{}).buildCollector(ctx)
	require.True(t, collector.IgnoreRobotsTxt)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var (
		page     enrich.Page
		fetchErr error
	)
	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://acme.edu/faculty/jane-doe", time.Now(), &page, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("<html><head><title>Jane</title></head><body>Doe</body></html>"),
		Headers:    &http.Header{"Content-Type": {"text/html"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://acme.edu/faculty/jane-doe/")},
	})
	require.Equal(t, "Jane", page.Title)
	require.Equal(t, "Doe", page.Text)
	require.Equal(t, "https://acme.edu/faculty/jane-doe/", page.FinalURL)

	hooks.onError(&colly.Response{StatusCode: http.StatusTooManyRequests}, errors.New("Too Many Requests"))
	var fe *enrich.FetchError
	require.True(t, errors.As(fetchErr, &fe))
	require.True(t, fe.Retryable)

	hooks.onError(nil, colly.ErrRobotsTxtBlocked)
	require.True(t, errors.As(fetchErr, &fe))
	require.False(t, fe.Retryable)
	require.ErrorIs(t, fetchErr, colly.ErrRobotsTxtBlocked)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
