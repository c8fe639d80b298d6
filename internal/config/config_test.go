package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	want := Default()
	require.Equal(t, want.Batch, cfg.Batch)
	require.Equal(t, want.Retry, cfg.Retry)
	require.Equal(t, want.Fetch, cfg.Fetch)
	require.Equal(t, want.Worker, cfg.Worker)
	require.Equal(t, want.Search, cfg.Search)
	require.Equal(t, want.Output, cfg.Output)
	require.Equal(t, want.Report, cfg.Report)
	require.InDelta(t, 1.0, cfg.Discovery.AcceptanceThreshold, 1e-9)
	require.Len(t, cfg.Discovery.PathTemplates, 5)
	require.Len(t, cfg.Discovery.Platforms, 4)
	require.Equal(t, want.Classifier.Social.Confidence, cfg.Classifier.Social.Confidence)
	require.Equal(t, want.Scoring.Directory.Cap, cfg.Scoring.Directory.Cap)
	require.Equal(t, "lab", cfg.Scoring.Lab.Name)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
batch:
  max_concurrency: 8
retry:
  max_retries: 5
  base_delay: 250ms
  max_delay: 4s
  jitter: false
  attempt_timeout: 3s
fetch:
  user_agent: test-agent
  timeout: 5s
  host_rps: 2.5
  host_burst: 4
discovery:
  acceptance_threshold: 1.4
  max_validations: 10
  path_templates:
    - id: path:scholars
      path: /scholars/{slug}
      link_type: university_profile
worker:
  check_accessibility: false
  fill_missing: true
  record_timeout: 45s
search:
  provider: memory
  fixtures: /tmp/search.json
output:
  dir: /tmp/enriched
report:
  postgres_dsn: postgres://u@localhost/db
  table: runs
logging:
  development: false
  level: warn
metrics:
  addr: ":9102"
scoring:
  directory:
    cap: 3.0
classifier:
  social:
    confidence: 0.95
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Batch.MaxConcurrency)
	require.Equal(t, 5, cfg.Retry.MaxRetries)
	require.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	require.Equal(t, 4*time.Second, cfg.Retry.MaxDelay)
	require.False(t, cfg.Retry.Jitter)
	require.Equal(t, 3*time.Second, cfg.Retry.AttemptTimeout)

	require.Equal(t, "test-agent", cfg.Fetch.Collector().UserAgent)
	require.Equal(t, 5*time.Second, cfg.Fetch.Collector().Timeout)
	require.InDelta(t, 2.5, cfg.Fetch.Politeness().HostRPS, 1e-9)
	require.Equal(t, 4, cfg.Fetch.Politeness().HostBurst)

	require.InDelta(t, 1.4, cfg.Discovery.AcceptanceThreshold, 1e-9)
	require.Equal(t, 10, cfg.Discovery.MaxValidations)
	require.Equal(t, 3, cfg.Discovery.StopAfterAccepted)
	require.Len(t, cfg.Discovery.PathTemplates, 1)
	require.Equal(t, enrich.LinkTypeUniversityProfile, cfg.Discovery.PathTemplates[0].LinkType)
	require.Len(t, cfg.Discovery.Platforms, 4)

	require.False(t, cfg.Worker.CheckAccessibility)
	require.True(t, cfg.Worker.FillMissing)
	require.Equal(t, 45*time.Second, cfg.Worker.RecordTimeout)

	require.Equal(t, SearchMemory, cfg.Search.Provider)
	require.Equal(t, "/tmp/enriched", cfg.Output.BaseDir)
	require.Equal(t, "postgres://u@localhost/db", cfg.Report.DSN)
	require.Equal(t, "runs", cfg.Report.Table)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, ":9102", cfg.Metrics.Addr)

	require.InDelta(t, 3.0, cfg.Scoring.Directory.Cap, 1e-9)
	require.InDelta(t, 0.95, cfg.Classifier.Social.Confidence, 1e-9)
	require.NotEmpty(t, cfg.Classifier.Social.Entries)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LINKENRICHER_BATCH_MAX_CONCURRENCY", "2")
	t.Setenv("LINKENRICHER_RETRY_MAX_RETRIES", "0")
	t.Setenv("LINKENRICHER_OUTPUT_DIR", "/var/out")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Batch.MaxConcurrency)
	require.Zero(t, cfg.Retry.MaxRetries)
	require.Equal(t, "/var/out", cfg.Output.BaseDir)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "batch:\n  max_concurrency: 0\n"))
	require.ErrorContains(t, err, "batch.max_concurrency")

	_, err = Load(writeConfig(t, "scoring:\n  lab:\n    cap: -1\n"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "invalid concurrency",
			mutate: func(c *Config) { c.Batch.MaxConcurrency = 0 },
			want:   "batch.max_concurrency",
		},
		{
			name:   "invalid retry policy",
			mutate: func(c *Config) { c.Retry.MaxDelay = c.Retry.BaseDelay / 2 },
			want:   "retry",
		},
		{
			name:   "invalid fetch timeout",
			mutate: func(c *Config) { c.Fetch.Timeout = 0 },
			want:   "fetch.timeout",
		},
		{
			name:   "negative host rate",
			mutate: func(c *Config) { c.Fetch.HostRPS = -1 },
			want:   "fetch.host_rps",
		},
		{
			name:   "invalid discovery",
			mutate: func(c *Config) { c.Discovery.AcceptanceThreshold = -0.5 },
			want:   "acceptance_threshold",
		},
		{
			name:   "negative record timeout",
			mutate: func(c *Config) { c.Worker.RecordTimeout = -time.Second },
			want:   "worker.record_timeout",
		},
		{
			name:   "memory search without fixtures",
			mutate: func(c *Config) { c.Search.Provider = SearchMemory },
			want:   "search.fixtures",
		},
		{
			name:   "unknown search provider",
			mutate: func(c *Config) { c.Search.Provider = "bing" },
			want:   "unknown search.provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	require.NoError(t, Default().Validate())
}
