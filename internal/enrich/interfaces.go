package enrich

import (
	"context"
	"time"
)

// PageFetcher retrieves a URL and returns its extracted title and text.
// Implementations may follow redirects and must return *FetchError on failure.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// SearchProvider returns ranked results for a free-text query.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, url string) (Page, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (Page, error) {
	return f(ctx, url)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces batch run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// ResultSink persists the outcome of a batch and returns where each artifact went.
type ResultSink interface {
	WriteResults(ctx context.Context, results []EnrichedRecord) (string, error)
	WriteReport(ctx context.Context, report BatchReport) (string, error)
}

// ReportStore records batch reports for later querying.
type ReportStore interface {
	SaveReport(ctx context.Context, report BatchReport) error
	Close()
}
