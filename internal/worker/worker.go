// Package worker runs the enrichment pipeline for a single record.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/discovery"
	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	// CheckAccessibility fetches every non-social link to see whether it still resolves.
	CheckAccessibility bool `mapstructure:"check_accessibility"`
	// FillMissing runs discovery for empty link fields as well as low-quality ones.
	FillMissing bool `mapstructure:"fill_missing"`
	// RecordTimeout bounds the whole pipeline of one record when positive.
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

// Discoverer proposes ranked replacement candidates for an entity.
type Discoverer interface {
	Discover(ctx context.Context, entity discovery.EntityInfo) ([]enrich.CandidateLink, error)
	Threshold() float64
}

// Worker classifies, checks and repairs the link fields of one record at a time.
// It holds no per-record state and is safe for concurrent use.
type Worker struct {
	classifier discovery.Classifier
	fetcher    enrich.PageFetcher
	discoverer Discoverer
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker. fetcher should already apply the retry policy; a nil fetcher
// disables accessibility checks and a nil discoverer disables replacement.
func New(
	classifier discovery.Classifier,
	fetcher enrich.PageFetcher,
	discoverer Discoverer,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		classifier: classifier,
		fetcher:    fetcher,
		discoverer: discoverer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process runs the record through
// RAW -> CLASSIFIED -> (ACCESSIBLE_CHECKED | SKIPPED) -> (CANDIDATE_DISCOVERY | DONE) ->
// (REPLACED | FLAGGED) -> DONE. Any error leaves the returned record in FAILED.
func (w *Worker) Process(ctx context.Context, index int, rec enrich.Record) (enrich.EnrichedRecord, error) {
	metrics.IncActiveRecords()
	defer metrics.DecActiveRecords()

	if w.cfg.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.RecordTimeout)
		defer cancel()
	}

	out := enrich.EnrichedRecord{
		Index:           index,
		Record:          rec.Clone(),
		Classifications: make(map[enrich.LinkField]enrich.ClassificationResult),
		State:           enrich.StateRaw,
	}
	if err := w.run(ctx, &out); err != nil {
		out.State = enrich.StateFailed
		metrics.ObserveRecord(string(enrich.StateFailed))
		w.logger.Warn("record failed", zap.Int("index", index), zap.String("name", rec.Name), zap.Error(err))
		return out, err
	}
	metrics.ObserveRecord(string(out.State))
	return out, nil
}

func (w *Worker) run(ctx context.Context, out *enrich.EnrichedRecord) error {
	if w.classifier == nil {
		return errors.New("no classifier configured")
	}
	for _, field := range out.Record.Populated() {
		out.Classifications[field] = w.classifier.Classify(out.Record.Get(field))
	}
	if err := w.advance(out, enrich.StateClassified); err != nil {
		return err
	}

	if w.cfg.CheckAccessibility && w.fetcher != nil {
		if err := w.checkAccessibility(ctx, out); err != nil {
			return err
		}
		if err := w.advance(out, enrich.StateAccessibleChecked); err != nil {
			return err
		}
	} else if err := w.advance(out, enrich.StateSkipped); err != nil {
		return err
	}

	targets := w.replacementTargets(out)
	if len(targets) == 0 {
		return w.advance(out, enrich.StateDone)
	}
	if w.discoverer == nil {
		return w.flagWithoutDiscovery(out, targets)
	}

	if err := w.advance(out, enrich.StateCandidateDiscovery); err != nil {
		return err
	}
	ranked, err := w.discoverer.Discover(ctx, discovery.EntityFromRecord(out.Record))
	if err != nil {
		return fmt.Errorf("candidate discovery: %w", err)
	}
	w.applyReplacements(out, targets, ranked)

	next := enrich.StateReplaced
	if out.NeedsManualReview || len(out.Replacements) == 0 {
		next = enrich.StateFlagged
	}
	if err := w.advance(out, next); err != nil {
		return err
	}
	return w.advance(out, enrich.StateDone)
}

// flagWithoutDiscovery flags populated low-quality fields when replacement is disabled. A flagged
// record still passes through CANDIDATE_DISCOVERY, with no candidates, on its way to FLAGGED.
func (w *Worker) flagWithoutDiscovery(out *enrich.EnrichedRecord, targets []enrich.LinkField) error {
	for _, field := range targets {
		if _, populated := out.Classifications[field]; populated {
			out.NeedsManualReview = true
		}
	}
	if !out.NeedsManualReview {
		return w.advance(out, enrich.StateDone)
	}
	for _, next := range []enrich.RecordState{enrich.StateCandidateDiscovery, enrich.StateFlagged, enrich.StateDone} {
		if err := w.advance(out, next); err != nil {
			return err
		}
	}
	return nil
}

// checkAccessibility fetches each populated, fetchable link. A permanent failure marks the link
// inaccessible; exhausted retries or cancellation fail the record.
func (w *Worker) checkAccessibility(ctx context.Context, out *enrich.EnrichedRecord) error {
	for _, field := range enrich.LinkFields {
		result, ok := out.Classifications[field]
		if !ok {
			continue
		}
		switch result.LinkType {
		case enrich.LinkTypeSocialMedia, enrich.LinkTypeInvalid:
			continue
		}
		url := out.Record.Get(field)
		page, err := w.fetcher.Fetch(ctx, url)
		switch {
		case err == nil:
			result = result.WithAccessibility(true)
			if result.Title == "" {
				result.Title = page.Title
			}
		case errors.Is(err, enrich.ErrExhaustedRetries):
			return fmt.Errorf("check %s %s: %w", field, url, err)
		case ctx.Err() != nil:
			return fmt.Errorf("check %s %s: %w", field, url, ctx.Err())
		default:
			result = result.WithAccessibility(false)
			result.Error = err.Error()
		}
		out.Classifications[field] = result
	}
	return nil
}

func (w *Worker) replacementTargets(out *enrich.EnrichedRecord) []enrich.LinkField {
	var targets []enrich.LinkField
	for _, field := range enrich.LinkFields {
		result, populated := out.Classifications[field]
		switch {
		case populated && discovery.NeedsReplacement(result):
			targets = append(targets, field)
		case !populated && w.cfg.FillMissing:
			targets = append(targets, field)
		}
	}
	return targets
}

func (w *Worker) applyReplacements(out *enrich.EnrichedRecord, targets []enrich.LinkField, ranked []enrich.CandidateLink) {
	used := make(map[string]bool, len(targets))
	for _, field := range targets {
		current, populated := out.Classifications[field]
		if !populated {
			current = enrich.ClassificationResult{}
		}
		decision := discovery.Decide(field, current, ranked, w.discoverer.Threshold(), used)
		if !decision.Replace {
			if populated {
				out.NeedsManualReview = true
			}
			w.logger.Debug("field left unchanged",
				zap.Int("index", out.Index),
				zap.String("field", string(field)),
				zap.String("reason", decision.Reason),
			)
			continue
		}

		cand := decision.Candidate
		used[strings.ToLower(cand.URL)] = true
		out.Replacements = append(out.Replacements, enrich.Replacement{
			Field:     field,
			OldURL:    out.Record.Get(field),
			NewURL:    cand.URL,
			Candidate: cand,
		})
		out.Record = out.Record.With(field, cand.URL)

		out.Classifications[field] = enrich.ClassificationResult{
			LinkType:   cand.LinkType,
			Confidence: clamp01(cand.Combined - cand.Score),
			Title:      cand.Title,
		}.WithAccessibility(true)

		w.logger.Info("link replaced",
			zap.Int("index", out.Index),
			zap.String("field", string(field)),
			zap.String("old_url", out.Replacements[len(out.Replacements)-1].OldURL),
			zap.String("new_url", cand.URL),
			zap.String("source", string(cand.Source)),
			zap.Float64("combined", cand.Combined),
		)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
