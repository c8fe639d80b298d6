// Package dispatcher fans a batch of records out to the per-record pipeline with bounded
// concurrency and aggregates the outcome into a BatchReport.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/profile-link-enricher/internal/clock/system"
	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/id/uuid"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
)

// RecordFunc runs the pipeline for one record. worker.Worker.Process satisfies it.
type RecordFunc func(ctx context.Context, index int, rec enrich.Record) (enrich.EnrichedRecord, error)

// Dispatcher runs batches.
type Dispatcher struct {
	logger *zap.Logger
	clock  enrich.Clock
	ids    enrich.IDGenerator
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the clock used for report timestamps.
func WithClock(c enrich.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithIDGenerator overrides the run ID generator.
func WithIDGenerator(g enrich.IDGenerator) Option {
	return func(d *Dispatcher) {
		if g != nil {
			d.ids = g
		}
	}
}

// New creates a Dispatcher.
func New(logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessBatch runs op for every record with at most maxConcurrency in flight. Results keep
// input order. A record whose op fails or panics keeps its original value with state FAILED
// and is listed in the report's errors; it never aborts its siblings. The returned error is
// only set for invalid arguments, before any record is processed.
func (d *Dispatcher) ProcessBatch(
	ctx context.Context,
	records []enrich.Record,
	op RecordFunc,
	maxConcurrency int,
) ([]enrich.EnrichedRecord, enrich.BatchReport, error) {
	if maxConcurrency <= 0 {
		return nil, enrich.BatchReport{}, fmt.Errorf("dispatcher: max concurrency must be positive, got %d", maxConcurrency)
	}
	if op == nil {
		return nil, enrich.BatchReport{}, errors.New("dispatcher: record operation is required")
	}

	runID, err := d.ids.NewID()
	if err != nil {
		d.logger.Warn("run id generation failed", zap.Error(err))
	}
	started := d.clock.Now()
	logger := d.logger.With(zap.String("run_id", runID))
	logger.Info("batch started", zap.Int("records", len(records)), zap.Int("max_concurrency", maxConcurrency))

	results := make([]enrich.EnrichedRecord, len(records))
	failures := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, rec := range records {
		g.Go(func() error {
			out, err := d.runOne(gctx, i, rec, op)
			if err != nil {
				failures[i] = err
				out = failedRecord(i, rec)
			}
			results[i] = out
			return nil
		})
	}
	// Units never return errors; failures are collected per slot.
	_ = g.Wait()

	report := BuildReport(results, failures)
	report.RunID = runID
	report.StartedAt = started
	report.FinishedAt = d.clock.Now()
	metrics.ObserveBatch(report.FinishedAt.Sub(started))

	logger.Info("batch finished",
		zap.Int("records", report.TotalRecords),
		zap.Int("replaced", report.ReplacedCount),
		zap.Int("flagged", report.FlaggedCount),
		zap.Int("errors", len(report.Errors)),
		zap.Duration("duration", report.FinishedAt.Sub(started)),
	)
	return results, report, nil
}

func (d *Dispatcher) runOne(ctx context.Context, index int, rec enrich.Record, op RecordFunc) (out enrich.EnrichedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("record panicked", zap.Int("index", index), zap.Any("panic", r))
			err = fmt.Errorf("record %d panicked: %v", index, r)
		}
	}()
	return op(ctx, index, rec)
}

func failedRecord(index int, rec enrich.Record) enrich.EnrichedRecord {
	return enrich.EnrichedRecord{
		Index:  index,
		Record: rec.Clone(),
		State:  enrich.StateFailed,
	}
}

// BuildReport aggregates settled results in one pass. failures[i] is the error of record i, if
// any; failed records contribute only to Errors.
func BuildReport(results []enrich.EnrichedRecord, failures []error) enrich.BatchReport {
	report := enrich.BatchReport{
		TotalRecords: len(results),
		CountsByType: make(map[enrich.LinkType]int),
		Errors:       []enrich.BatchItemError{},
	}
	for i, res := range results {
		if i < len(failures) && failures[i] != nil {
			report.Errors = append(report.Errors, enrich.BatchItemError{Index: i, Message: failures[i].Error()})
			continue
		}
		for _, c := range res.Classifications {
			report.CountsByType[c.LinkType]++
			if c.Accessible() {
				report.AccessibleCount++
			}
		}
		report.ReplacedCount += len(res.Replacements)
		if res.NeedsManualReview {
			report.FlaggedCount++
		}
	}
	return report
}
