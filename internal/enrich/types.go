// Package enrich defines the core types shared across the link enrichment subsystems.
package enrich

import "time"

// LinkType is the closed set of categories a URL can be classified into.
type LinkType string

// Link types produced by the classifier.
const (
	LinkTypeSocialMedia       LinkType = "social_media"
	LinkTypeGoogleScholar     LinkType = "google_scholar"
	LinkTypeAcademicProfile   LinkType = "academic_profile"
	LinkTypePublication       LinkType = "publication"
	LinkTypeLabWebsite        LinkType = "lab_website"
	LinkTypeUniversityProfile LinkType = "university_profile"
	LinkTypePersonalWebsite   LinkType = "personal_website"
	LinkTypeUnknown           LinkType = "unknown"
	LinkTypeInvalid           LinkType = "invalid"
)

// AllLinkTypes lists every link type in report order.
var AllLinkTypes = []LinkType{
	LinkTypeSocialMedia,
	LinkTypeGoogleScholar,
	LinkTypeAcademicProfile,
	LinkTypePublication,
	LinkTypeLabWebsite,
	LinkTypeUniversityProfile,
	LinkTypePersonalWebsite,
	LinkTypeUnknown,
	LinkTypeInvalid,
}

// ClassificationResult is the outcome of classifying one URL.
type ClassificationResult struct {
	LinkType   LinkType `json:"link_type"`
	Confidence float64  `json:"confidence"`
	// IsAccessible is nil when accessibility was never checked.
	IsAccessible *bool  `json:"is_accessible,omitempty"`
	Title        string `json:"title,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Accessible reports whether the link was checked and found reachable.
func (c ClassificationResult) Accessible() bool {
	return c.IsAccessible != nil && *c.IsAccessible
}

// Inaccessible reports whether the link was checked and found unreachable.
func (c ClassificationResult) Inaccessible() bool {
	return c.IsAccessible != nil && !*c.IsAccessible
}

// WithAccessibility returns a copy carrying the accessibility verdict.
func (c ClassificationResult) WithAccessibility(ok bool) ClassificationResult {
	v := ok
	c.IsAccessible = &v
	return c
}

// CandidateSource identifies which generation strategy proposed a candidate.
type CandidateSource string

// Candidate sources, in tie-break priority order.
const (
	SourcePattern        CandidateSource = "pattern"
	SourcePlatformSearch CandidateSource = "platform-search"
	SourceExternalSearch CandidateSource = "external-search"
)

// Priority returns the tie-break rank of the source; lower wins.
func (s CandidateSource) Priority() int {
	switch s {
	case SourcePattern:
		return 0
	case SourcePlatformSearch:
		return 1
	case SourceExternalSearch:
		return 2
	default:
		return 3
	}
}

// CandidateLink is a not-yet-validated alternative URL for a low-quality field.
type CandidateLink struct {
	URL           string          `json:"url"`
	Source        CandidateSource `json:"source"`
	RawConfidence float64         `json:"raw_confidence"`
	// LinkType is the type the generator expects the page to be, if any.
	LinkType   LinkType `json:"link_type,omitempty"`
	StrategyID string   `json:"strategy_id,omitempty"`
	Title      string   `json:"title,omitempty"`
	Score      float64  `json:"score"`
	Combined   float64  `json:"combined"`
}

// Page is the text and metadata a PageFetcher extracted from a URL.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Title      string
	Text       string
	Duration   time.Duration
}

// SearchResult is one ranked hit returned by a SearchProvider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// RecordState tracks where a record is in the enrichment pipeline.
type RecordState string

// Record pipeline states.
const (
	StateRaw                RecordState = "RAW"
	StateClassified         RecordState = "CLASSIFIED"
	StateAccessibleChecked  RecordState = "ACCESSIBLE_CHECKED"
	StateSkipped            RecordState = "SKIPPED"
	StateCandidateDiscovery RecordState = "CANDIDATE_DISCOVERY"
	StateReplaced           RecordState = "REPLACED"
	StateFlagged            RecordState = "FLAGGED"
	StateDone               RecordState = "DONE"
	StateFailed             RecordState = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s RecordState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Replacement records a field whose value was swapped for a discovered candidate.
type Replacement struct {
	Field     LinkField     `json:"field"`
	OldURL    string        `json:"old_url"`
	NewURL    string        `json:"new_url"`
	Candidate CandidateLink `json:"candidate"`
}

// EnrichedRecord is the per-record output of the pipeline.
type EnrichedRecord struct {
	Index             int                                `json:"index"`
	Record            Record                             `json:"record"`
	Classifications   map[LinkField]ClassificationResult `json:"classifications,omitempty"`
	Replacements      []Replacement                      `json:"replacements,omitempty"`
	NeedsManualReview bool                               `json:"needs_manual_review"`
	State             RecordState                        `json:"state"`
}

// BatchItemError is a record-level failure absorbed into the batch report.
type BatchItemError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BatchReport summarises one ProcessBatch call.
type BatchReport struct {
	RunID           string           `json:"run_id,omitempty"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	TotalRecords    int              `json:"total_records"`
	CountsByType    map[LinkType]int `json:"counts_by_type"`
	AccessibleCount int              `json:"accessible_count"`
	ReplacedCount   int              `json:"replaced_count"`
	FlaggedCount    int              `json:"flagged_count"`
	Errors          []BatchItemError `json:"errors"`
}
