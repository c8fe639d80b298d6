// Package memory keeps batch output in memory, for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// Sink stores the last written results and every written report.
type Sink struct {
	mu      sync.RWMutex
	results []enrich.EnrichedRecord
	reports []enrich.BatchReport
}

// NewSink creates an empty Sink.
func NewSink() *Sink {
	return &Sink{}
}

// WriteResults keeps a copy of results and returns a pseudo URI.
func (s *Sink) WriteResults(ctx context.Context, results []enrich.EnrichedRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]enrich.EnrichedRecord(nil), results...)
	return "memory://results", nil
}

// WriteReport appends report and returns a pseudo URI.
func (s *Sink) WriteReport(ctx context.Context, report enrich.BatchReport) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return fmt.Sprintf("memory://reports/%d", len(s.reports)-1), nil
}

// Results returns the last written results.
func (s *Sink) Results() []enrich.EnrichedRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]enrich.EnrichedRecord(nil), s.results...)
}

// Reports returns every written report, oldest first.
func (s *Sink) Reports() []enrich.BatchReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]enrich.BatchReport(nil), s.reports...)
}
