// Package postgres stores batch reports in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

const defaultTable = "enrichment_reports"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for report rows.
type Config struct {
	DSN             string        `mapstructure:"postgres_dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ReportStore writes one row per batch run.
type ReportStore struct {
	pool  execCloser
	table string
}

// NewReportStore connects to Postgres using cfg.
func NewReportStore(ctx context.Context, cfg Config) (*ReportStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("report.postgres_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ReportStore{pool: pool, table: table}, nil
}

// NewReportStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewReportStoreWithPool(pool execCloser, table string) (*ReportStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ReportStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ReportStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the report table when it does not exist.
func (s *ReportStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id           TEXT PRIMARY KEY,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL,
	total_records    INTEGER NOT NULL,
	accessible_count INTEGER NOT NULL,
	replaced_count   INTEGER NOT NULL,
	flagged_count    INTEGER NOT NULL,
	error_count      INTEGER NOT NULL,
	counts_by_type   JSONB NOT NULL,
	errors           JSONB NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create report table: %w", err)
	}
	return nil
}

// SaveReport inserts the report, replacing any earlier row for the same run.
func (s *ReportStore) SaveReport(ctx context.Context, report enrich.BatchReport) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("report store is not configured")
	}
	if report.RunID == "" {
		return fmt.Errorf("report run id is required")
	}
	counts := report.CountsByType
	if counts == nil {
		counts = map[enrich.LinkType]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	errs := report.Errors
	if errs == nil {
		errs = []enrich.BatchItemError{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	started_at,
	finished_at,
	total_records,
	accessible_count,
	replaced_count,
	flagged_count,
	error_count,
	counts_by_type,
	errors
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (run_id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	total_records = EXCLUDED.total_records,
	accessible_count = EXCLUDED.accessible_count,
	replaced_count = EXCLUDED.replaced_count,
	flagged_count = EXCLUDED.flagged_count,
	error_count = EXCLUDED.error_count,
	counts_by_type = EXCLUDED.counts_by_type,
	errors = EXCLUDED.errors`, s.table)

	args := []any{
		report.RunID,
		report.StartedAt,
		report.FinishedAt,
		report.TotalRecords,
		report.AccessibleCount,
		report.ReplacedCount,
		report.FlaggedCount,
		len(errs),
		countsJSON,
		errorsJSON,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
