// Package config loads and validates enricher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/profile-link-enricher/internal/classify"
	"github.com/JakeFAU/profile-link-enricher/internal/discovery"
	collyfetcher "github.com/JakeFAU/profile-link-enricher/internal/fetcher/colly"
	"github.com/JakeFAU/profile-link-enricher/internal/logging"
	"github.com/JakeFAU/profile-link-enricher/internal/policy/ratelimit"
	"github.com/JakeFAU/profile-link-enricher/internal/retry"
	"github.com/JakeFAU/profile-link-enricher/internal/score"
	"github.com/JakeFAU/profile-link-enricher/internal/storage/local"
	"github.com/JakeFAU/profile-link-enricher/internal/storage/postgres"
	"github.com/JakeFAU/profile-link-enricher/internal/worker"
)

// EnvPrefix prefixes every environment override, e.g. LINKENRICHER_BATCH_MAX_CONCURRENCY.
const EnvPrefix = "LINKENRICHER"

// Search provider names.
const (
	SearchNone   = "none"
	SearchMemory = "memory"
)

// Config captures all enricher configuration knobs loaded via Viper.
type Config struct {
	Batch     BatchConfig      `mapstructure:"batch"`
	Retry     retry.Policy     `mapstructure:"retry"`
	Fetch     FetchConfig      `mapstructure:"fetch"`
	Discovery discovery.Config `mapstructure:"discovery"`
	Worker    worker.Config    `mapstructure:"worker"`
	Search    SearchConfig     `mapstructure:"search"`
	Output    local.Config     `mapstructure:"output"`
	Report    postgres.Config  `mapstructure:"report"`
	Logging   logging.Config   `mapstructure:"logging"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`

	// Classifier and Scoring are decoded as overlays on the built-in tables.
	Classifier classify.Rules `mapstructure:"-"`
	Scoring    ScoringConfig  `mapstructure:"-"`
}

// BatchConfig governs the orchestrator.
type BatchConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// FetchConfig configures the page fetcher and its per-host politeness.
type FetchConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
	HostRPS       float64       `mapstructure:"host_rps"`
	HostBurst     int           `mapstructure:"host_burst"`
}

// Collector returns the colly fetcher settings.
func (f FetchConfig) Collector() collyfetcher.Config {
	return collyfetcher.Config{
		UserAgent:     f.UserAgent,
		RespectRobots: f.RespectRobots,
		Timeout:       f.Timeout,
		MaxBodyBytes:  f.MaxBodyBytes,
	}
}

// Politeness returns the per-host rate limit settings.
func (f FetchConfig) Politeness() ratelimit.Config {
	return ratelimit.Config{HostRPS: f.HostRPS, HostBurst: f.HostBurst}
}

// SearchConfig selects the optional external search provider.
type SearchConfig struct {
	Provider   string `mapstructure:"provider"`
	Fixtures   string `mapstructure:"fixtures"`
	MaxResults int    `mapstructure:"max_results"`
}

// MetricsConfig controls the Prometheus endpoint; an empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScoringConfig holds the two score profiles after overrides.
type ScoringConfig struct {
	Directory score.Profile
	Lab       score.Profile
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Discovery.PathTemplates) == 0 {
		cfg.Discovery.PathTemplates = discovery.DefaultPathTemplates()
	}
	if len(cfg.Discovery.Platforms) == 0 {
		cfg.Discovery.Platforms = discovery.DefaultPlatforms()
	}

	rules, err := classify.LoadRules(v, "classifier")
	if err != nil {
		return Config{}, err
	}
	cfg.Classifier = rules

	if cfg.Scoring.Directory, err = score.LoadProfile(v, "scoring.directory", score.ProfileDirectory); err != nil {
		return Config{}, err
	}
	if cfg.Scoring.Lab, err = score.LoadProfile(v, "scoring.lab", score.ProfileLab); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration Load produces with no file and no environment.
func Default() Config {
	return Config{
		Batch:      BatchConfig{MaxConcurrency: 4},
		Retry:      retry.DefaultPolicy(),
		Fetch:      defaultFetch(),
		Discovery:  discovery.DefaultConfig(),
		Worker:     worker.Config{CheckAccessibility: true, RecordTimeout: 2 * time.Minute},
		Search:     SearchConfig{Provider: SearchNone, MaxResults: 5},
		Output:     local.Config{BaseDir: "out"},
		Report:     postgres.Config{Table: "enrichment_reports"},
		Logging:    logging.Config{Development: true},
		Classifier: classify.DefaultRules(),
		Scoring:    ScoringConfig{Directory: score.DirectoryProfile(), Lab: score.LabProfile()},
	}
}

func defaultFetch() FetchConfig {
	return FetchConfig{
		UserAgent:    "linkenricher/0.1 (+https://github.com/JakeFAU/profile-link-enricher)",
		Timeout:      15 * time.Second,
		MaxBodyBytes: 2 << 20,
		HostRPS:      1,
		HostBurst:    2,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("batch.max_concurrency", d.Batch.MaxConcurrency)
	v.SetDefault("retry.max_retries", d.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.jitter", d.Retry.Jitter)
	v.SetDefault("retry.attempt_timeout", d.Retry.AttemptTimeout)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.max_body_bytes", d.Fetch.MaxBodyBytes)
	v.SetDefault("fetch.host_rps", d.Fetch.HostRPS)
	v.SetDefault("fetch.host_burst", d.Fetch.HostBurst)
	v.SetDefault("discovery.acceptance_threshold", d.Discovery.AcceptanceThreshold)
	v.SetDefault("discovery.max_validations", d.Discovery.MaxValidations)
	v.SetDefault("discovery.stop_after_accepted", d.Discovery.StopAfterAccepted)
	v.SetDefault("discovery.min_name_tokens", d.Discovery.MinNameTokens)
	v.SetDefault("discovery.max_pattern_candidates", d.Discovery.MaxPatternCandidates)
	v.SetDefault("discovery.max_search_results", d.Discovery.MaxSearchResults)
	v.SetDefault("discovery.enable_platform_search", d.Discovery.EnablePlatformSearch)
	v.SetDefault("worker.check_accessibility", d.Worker.CheckAccessibility)
	v.SetDefault("worker.fill_missing", d.Worker.FillMissing)
	v.SetDefault("worker.record_timeout", d.Worker.RecordTimeout)
	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.fixtures", "")
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("output.dir", d.Output.BaseDir)
	v.SetDefault("report.postgres_dsn", "")
	v.SetDefault("report.table", d.Report.Table)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Batch.MaxConcurrency <= 0 {
		return fmt.Errorf("batch.max_concurrency must be > 0")
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Fetch.HostRPS < 0 || c.Fetch.HostBurst < 0 {
		return fmt.Errorf("fetch.host_rps and fetch.host_burst must not be negative")
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if c.Worker.RecordTimeout < 0 {
		return fmt.Errorf("worker.record_timeout must not be negative")
	}
	switch c.Search.Provider {
	case "", SearchNone:
	case SearchMemory:
		if c.Search.Fixtures == "" {
			return fmt.Errorf("search.fixtures must be set when search.provider is %q", SearchMemory)
		}
	default:
		return fmt.Errorf("unknown search.provider %q", c.Search.Provider)
	}
	return nil
}
