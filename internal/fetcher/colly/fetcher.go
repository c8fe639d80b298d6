// Package collyfetcher implements enrich.PageFetcher using gocolly, extracting title and
// visible text with goquery.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// MaxBodyBytes caps the downloaded body; zero keeps colly's default.
	MaxBodyBytes int `mapstructure:"max_body_bytes"`
}

// Fetcher implements enrich.PageFetcher with a Colly collector per request.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch performs a single GET, following redirects. Non-2xx responses and transport failures
// are returned as *enrich.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (enrich.Page, error) {
	var (
		page     enrich.Page
		fetchErr error
	)
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, url, time.Now(), &page, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		status := 0
		var fe *enrich.FetchError
		if errors.As(err, &fe) {
			status = fe.StatusCode
		}
		metrics.ObserveFetch(metrics.SanitizeSite(url), status)
		return enrich.Page{}, err
	}
	metrics.ObserveFetch(metrics.SanitizeSite(url), page.StatusCode)
	return page, nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	url string,
	start time.Time,
	page *enrich.Page,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		title, text := extract(r)
		*page = enrich.Page{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Title:      title,
			Text:       text,
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			*fetchErr = enrich.NewStatusError(url, r.StatusCode)
			return
		}
		*fetchErr = &enrich.FetchError{URL: url, Err: err, Retryable: transient(err)}
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &enrich.FetchError{URL: url, Err: ctx.Err()}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return &enrich.FetchError{URL: url, Err: fmt.Errorf("colly visit: %w", err), Retryable: transient(err)}
		}
		return nil
	}
}

// extract returns the page title and whitespace-collapsed visible text. Non-HTML text bodies
// are returned as-is.
func extract(r *colly.Response) (title, text string) {
	contentType := ""
	if r.Headers != nil {
		contentType = strings.ToLower(r.Headers.Get("Content-Type"))
	}
	if strings.HasPrefix(contentType, "text/plain") {
		return "", collapse(string(r.Body))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return "", collapse(string(r.Body))
	}
	title = collapse(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, template").Remove()
	text = collapse(doc.Find("body").Text())
	if text == "" {
		text = collapse(doc.Text())
	}
	return title, text
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, colly.ErrRobotsTxtBlocked) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
