// Package app builds the run context for one enrichment run: the shared strategy cache, the
// default retry policy and every collaborator, constructed once and passed explicitly.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/classify"
	"github.com/JakeFAU/profile-link-enricher/internal/config"
	"github.com/JakeFAU/profile-link-enricher/internal/discovery"
	"github.com/JakeFAU/profile-link-enricher/internal/dispatcher"
	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	collyfetcher "github.com/JakeFAU/profile-link-enricher/internal/fetcher/colly"
	pagehash "github.com/JakeFAU/profile-link-enricher/internal/hash/sha256"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
	"github.com/JakeFAU/profile-link-enricher/internal/policy/ratelimit"
	"github.com/JakeFAU/profile-link-enricher/internal/retry"
	"github.com/JakeFAU/profile-link-enricher/internal/score"
	searchmemory "github.com/JakeFAU/profile-link-enricher/internal/search/memory"
	"github.com/JakeFAU/profile-link-enricher/internal/storage/local"
	"github.com/JakeFAU/profile-link-enricher/internal/storage/postgres"
	"github.com/JakeFAU/profile-link-enricher/internal/strategy"
	"github.com/JakeFAU/profile-link-enricher/internal/worker"
)

// App holds the long-lived services of one run.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	cache      *strategy.Cache
	runner     *retry.Runner
	classifier *classify.Classifier
	discoverer *discovery.Discoverer
	worker     *worker.Worker
	dispatcher *dispatcher.Dispatcher
	sink       enrich.ResultSink
	reports    enrich.ReportStore
	metricsSrv *http.Server
}

type options struct {
	fetcher   enrich.PageFetcher
	search    enrich.SearchProvider
	sink      enrich.ResultSink
	reports   enrich.ReportStore
	clock     enrich.Clock
	ids       enrich.IDGenerator
	retryRand func() float64
}

// Option replaces a collaborator that would otherwise be built from configuration.
type Option func(*options)

// WithFetcher replaces the colly page fetcher. Politeness and retry still wrap it.
func WithFetcher(f enrich.PageFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithSearch replaces the configured search provider.
func WithSearch(s enrich.SearchProvider) Option {
	return func(o *options) { o.search = s }
}

// WithSink replaces the output directory writer.
func WithSink(s enrich.ResultSink) Option {
	return func(o *options) { o.sink = s }
}

// WithReportStore replaces the Postgres report store.
func WithReportStore(r enrich.ReportStore) Option {
	return func(o *options) { o.reports = r }
}

// WithClock sets the clock used for report timestamps.
func WithClock(c enrich.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator sets the run ID generator.
func WithIDGenerator(g enrich.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithRetryRand sets the jitter source of the retry coordinator.
func WithRetryRand(fn func() float64) Option {
	return func(o *options) { o.retryRand = fn }
}

// New wires every component from cfg. It fails fast on invalid configuration or an unreachable
// report database, before any record is processed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	a := &App{cfg: cfg, logger: logger, cache: strategy.NewCache()}

	var coordOpts []retry.Option
	if o.retryRand != nil {
		coordOpts = append(coordOpts, retry.WithRand(o.retryRand))
	}
	runner, err := retry.New(logger.Named("retry"), coordOpts...).Wrap("fetch", cfg.Retry, retry.IsNetworkError)
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	a.runner = runner

	base := o.fetcher
	if base == nil {
		base = collyfetcher.New(cfg.Fetch.Collector())
	}
	fetcher := runner.Fetcher(ratelimit.New(cfg.Fetch.Politeness()).Fetcher(base))

	search := o.search
	if search == nil && cfg.Search.Provider == config.SearchMemory {
		provider, err := searchmemory.Load(cfg.Search.Fixtures, cfg.Search.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("search provider: %w", err)
		}
		search = provider
	}

	a.classifier = classify.New(cfg.Classifier, logger.Named("classifier"))
	a.discoverer, err = discovery.New(cfg.Discovery, discovery.Deps{
		Classifier: a.classifier,
		Scorer:     score.New(cfg.Scoring.Directory, cfg.Scoring.Lab),
		Fetcher:    fetcher,
		Cache:      a.cache,
		Search:     search,
		Hasher:     pagehash.New(),
		Logger:     logger.Named("discovery"),
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	a.worker = worker.New(a.classifier, fetcher, a.discoverer, cfg.Worker, logger.Named("worker"))
	a.dispatcher = dispatcher.New(logger.Named("dispatcher"),
		dispatcher.WithClock(o.clock),
		dispatcher.WithIDGenerator(o.ids),
	)

	a.sink = o.sink
	if a.sink == nil && cfg.Output.BaseDir != "" {
		if a.sink, err = local.New(cfg.Output); err != nil {
			return nil, fmt.Errorf("output: %w", err)
		}
	}

	a.reports = o.reports
	if a.reports == nil && cfg.Report.DSN != "" {
		store, err := postgres.NewReportStore(ctx, cfg.Report)
		if err != nil {
			return nil, fmt.Errorf("report store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("report store: %w", err)
		}
		a.reports = store
	}

	if cfg.Metrics.Addr != "" {
		a.startMetrics(cfg.Metrics.Addr)
	}
	logger.Info("run context ready",
		zap.Int("max_concurrency", cfg.Batch.MaxConcurrency),
		zap.Int("max_retries", cfg.Retry.MaxRetries),
		zap.Bool("check_accessibility", cfg.Worker.CheckAccessibility),
		zap.Bool("search", search != nil),
		zap.Bool("report_store", a.reports != nil),
	)
	return a, nil
}

// Logger returns the run's logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Cache returns the strategy cache shared by every record of the run.
func (a *App) Cache() *strategy.Cache {
	return a.cache
}

// RetryPolicy returns the default retry policy applied to fetches.
func (a *App) RetryPolicy() retry.Policy {
	return a.runner.Policy()
}

// Classify classifies a single URL with the configured rules.
func (a *App) Classify(raw string) enrich.ClassificationResult {
	return a.classifier.Classify(raw)
}

// Process runs the batch without persisting anything. A maxConcurrency of 0 uses
// batch.max_concurrency; a negative one is an error.
func (a *App) Process(
	ctx context.Context,
	records []enrich.Record,
	maxConcurrency int,
) ([]enrich.EnrichedRecord, enrich.BatchReport, error) {
	if maxConcurrency < 0 {
		return nil, enrich.BatchReport{}, fmt.Errorf("max concurrency must not be negative, got %d", maxConcurrency)
	}
	if maxConcurrency == 0 {
		maxConcurrency = a.cfg.Batch.MaxConcurrency
	}
	results, report, err := a.dispatcher.ProcessBatch(ctx, records, a.worker.Process, maxConcurrency)
	if err != nil {
		return nil, enrich.BatchReport{}, fmt.Errorf("process batch: %w", err)
	}
	return results, report, nil
}

// Run processes the batch and persists results and report to the configured sinks. Persistence
// failures are returned together, after every sink has been tried; results and report are
// returned regardless.
func (a *App) Run(
	ctx context.Context,
	records []enrich.Record,
	maxConcurrency int,
) ([]enrich.EnrichedRecord, enrich.BatchReport, error) {
	results, report, err := a.Process(ctx, records, maxConcurrency)
	if err != nil {
		return nil, report, err
	}

	var errs []error
	if a.sink != nil {
		if uri, err := a.sink.WriteResults(ctx, results); err != nil {
			errs = append(errs, fmt.Errorf("write results: %w", err))
		} else {
			a.logger.Info("results written", zap.String("uri", uri))
		}
		if uri, err := a.sink.WriteReport(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		} else {
			a.logger.Info("report written", zap.String("uri", uri))
		}
	}
	if a.reports != nil {
		if err := a.reports.SaveReport(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("save report: %w", err))
		}
	}
	return results, report, errors.Join(errs...)
}

func (a *App) startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		a.logger.Info("starting metrics server", zap.String("addr", addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Close releases the report store and stops the metrics server.
func (a *App) Close() {
	a.logger.Info("shutting down run context")
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	if a.reports != nil {
		a.reports.Close()
	}
	_ = a.logger.Sync() //nolint:errcheck // best-effort flush
}
