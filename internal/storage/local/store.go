// Package local reads input records from and writes batch output to the local filesystem.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// Output file names inside the base directory.
const (
	ResultsFile = "enriched.json"
	ReportFile  = "report.json"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory the output files are written to.
	BaseDir string `mapstructure:"dir" yaml:"dir"`
}

// Store writes batch artifacts as indented JSON files.
type Store struct {
	baseDir string
}

// New creates a Store, creating BaseDir when needed and checking it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// WriteResults writes the enriched records to enriched.json.
func (s *Store) WriteResults(ctx context.Context, results []enrich.EnrichedRecord) (string, error) {
	if results == nil {
		results = []enrich.EnrichedRecord{}
	}
	return s.PutJSON(ctx, ResultsFile, results)
}

// WriteReport writes the batch report to report.json.
func (s *Store) WriteReport(ctx context.Context, report enrich.BatchReport) (string, error) {
	return s.PutJSON(ctx, ReportFile, report)
}

// PutJSON encodes v to name inside the base directory and returns a file:// URI. The write
// goes to a temporary file first so readers never see a partial document.
func (s *Store) PutJSON(ctx context.Context, name string, v any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}

	fullPath := filepath.Join(s.baseDir, name)
	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return "file://" + fullPath, nil
}

// ReadRecords decodes a JSON array of input records from path.
func ReadRecords(path string) ([]enrich.Record, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied input path.
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []enrich.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
