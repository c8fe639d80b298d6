package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
	"github.com/JakeFAU/profile-link-enricher/internal/score"
	"github.com/JakeFAU/profile-link-enricher/internal/strategy"
)

// Config tunes candidate generation, validation and replacement.
type Config struct {
	AcceptanceThreshold  float64        `mapstructure:"acceptance_threshold"`
	MaxValidations       int            `mapstructure:"max_validations"`
	StopAfterAccepted    int            `mapstructure:"stop_after_accepted"`
	MinNameTokens        int            `mapstructure:"min_name_tokens"`
	MaxPatternCandidates int            `mapstructure:"max_pattern_candidates"`
	MaxSearchResults     int            `mapstructure:"max_search_results"`
	EnablePlatformSearch bool           `mapstructure:"enable_platform_search"`
	PathTemplates        []PathTemplate `mapstructure:"path_templates"`
	Platforms            []Platform     `mapstructure:"platforms"`
}

// DefaultConfig returns the discovery defaults.
func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold:  1.0,
		MaxValidations:       24,
		StopAfterAccepted:    3,
		MinNameTokens:        2,
		MaxPatternCandidates: 12,
		MaxSearchResults:     5,
		EnablePlatformSearch: true,
		PathTemplates:        DefaultPathTemplates(),
		Platforms:            DefaultPlatforms(),
	}
}

// Validate checks the configuration before any discovery runs.
func (c Config) Validate() error {
	if c.AcceptanceThreshold < 0 {
		return fmt.Errorf("discovery: acceptance_threshold must not be negative")
	}
	if c.MaxValidations < 0 || c.StopAfterAccepted < 0 || c.MaxPatternCandidates < 0 || c.MaxSearchResults < 0 {
		return fmt.Errorf("discovery: limits must not be negative")
	}
	seen := make(map[string]struct{})
	for _, tpl := range c.PathTemplates {
		if tpl.ID == "" || !strings.Contains(tpl.Path, "{slug}") {
			return fmt.Errorf("discovery: path template %q needs an id and a {slug} placeholder", tpl.Path)
		}
		if _, dup := seen[tpl.ID]; dup {
			return fmt.Errorf("discovery: duplicate strategy id %q", tpl.ID)
		}
		seen[tpl.ID] = struct{}{}
	}
	for _, p := range c.Platforms {
		if p.ID == "" || !strings.Contains(p.QueryURL, "{query}") {
			return fmt.Errorf("discovery: platform %q needs an id and a {query} placeholder", p.QueryURL)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("discovery: duplicate strategy id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// PageHasher fingerprints a fetched page; an empty fingerprint is never a duplicate.
type PageHasher interface {
	Fingerprint(page enrich.Page) string
}

// Deps are the collaborators a Discoverer needs. Search and Hasher are optional.
type Deps struct {
	Classifier Classifier
	Scorer     *score.Scorer
	// Fetcher should already apply the retry policy.
	Fetcher enrich.PageFetcher
	Cache   *strategy.Cache
	Search  enrich.SearchProvider
	Hasher  PageHasher
	Logger  *zap.Logger
}

// Discoverer generates, validates and ranks replacement candidates for one entity at a time.
type Discoverer struct {
	cfg        Config
	classifier Classifier
	scorer     *score.Scorer
	validator  *Validator
	cache      *strategy.Cache
	search     enrich.SearchProvider
	hasher     PageHasher
	logger     *zap.Logger
}

// New wires a Discoverer.
func New(cfg Config, deps Deps) (*Discoverer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Classifier == nil || deps.Scorer == nil || deps.Fetcher == nil {
		return nil, errors.New("discovery: classifier, scorer and fetcher are required")
	}
	if deps.Cache == nil {
		deps.Cache = strategy.NewCache()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Discoverer{
		cfg:        cfg,
		classifier: deps.Classifier,
		scorer:     deps.Scorer,
		validator:  NewValidator(deps.Fetcher, cfg.MinNameTokens, nil),
		cache:      deps.Cache,
		search:     deps.Search,
		hasher:     deps.Hasher,
		logger:     deps.Logger,
	}, nil
}

// Threshold returns the acceptance threshold used by Decide.
func (d *Discoverer) Threshold() float64 {
	return d.cfg.AcceptanceThreshold
}

// Discover returns accepted candidates, best first. Per-candidate failures are logged and
// skipped; only cancellation of ctx is returned as an error.
func (d *Discoverer) Discover(ctx context.Context, entity EntityInfo) ([]enrich.CandidateLink, error) {
	candidates := dedupe(append(append(
		d.patternCandidates(entity),
		d.platformCandidates(entity)...),
		d.externalCandidates(ctx, entity)...))
	host := entity.Host()

	var accepted []enrich.CandidateLink
	seen := make(map[string]string)
	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("discover %q: %w", entity.Name, err)
		}
		if d.cfg.MaxValidations > 0 && i >= d.cfg.MaxValidations {
			break
		}
		page, err := d.validator.Validate(ctx, cand, entity)
		if err != nil {
			outcome := "error"
			if errors.Is(err, enrich.ErrValidationRejected) {
				outcome = "rejected"
			}
			metrics.ObserveCandidate(string(cand.Source), outcome)
			d.logger.Debug("candidate discarded",
				zap.String("url", cand.URL),
				zap.String("source", string(cand.Source)),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
			continue
		}
		if fp := d.fingerprint(page); fp != "" {
			if first, dup := seen[fp]; dup {
				metrics.ObserveCandidate(string(cand.Source), "duplicate")
				d.logger.Debug("candidate is a duplicate page",
					zap.String("url", cand.URL),
					zap.String("same_as", first),
				)
				continue
			}
			seen[fp] = cand.URL
		}
		metrics.ObserveCandidate(string(cand.Source), "accepted")
		if page.Title != "" {
			cand.Title = page.Title
		}
		accepted = append(accepted, cand)
		d.recordSuccess(host, cand)
		if d.cfg.StopAfterAccepted > 0 && len(accepted) >= d.cfg.StopAfterAccepted {
			break
		}
	}

	ranked := Rank(accepted, d.classifier, d.scorer, entity)
	d.logger.Debug("discovery finished",
		zap.String("entity", entity.Name),
		zap.Int("generated", len(candidates)),
		zap.Int("accepted", len(ranked)),
	)
	return ranked, nil
}

func (d *Discoverer) fingerprint(page enrich.Page) string {
	if d.hasher == nil {
		return ""
	}
	return d.hasher.Fingerprint(page)
}

func (d *Discoverer) recordSuccess(host string, cand enrich.CandidateLink) {
	switch cand.Source {
	case enrich.SourcePattern:
		d.cache.RecordSuccess(host, cand.StrategyID)
	case enrich.SourcePlatformSearch:
		d.cache.RecordSuccess(platformCacheKey(host), cand.StrategyID)
	}
}

func dedupe(candidates []enrich.CandidateLink) []enrich.CandidateLink {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key, err := enrich.NormalizeURL(c.URL)
		if err != nil {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
