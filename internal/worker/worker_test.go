package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/profile-link-enricher/internal/classify"
	"github.com/JakeFAU/profile-link-enricher/internal/discovery"
	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]enrich.Page
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (enrich.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return enrich.Page{}, err
	}
	if page, ok := f.pages[url]; ok {
		page.StatusCode = 200
		return page, nil
	}
	return enrich.Page{}, enrich.NewStatusError(url, 404)
}

type fakeDiscoverer struct {
	candidates []enrich.CandidateLink
	err        error
	threshold  float64
	calls      int
	lastEntity discovery.EntityInfo
}

func (d *fakeDiscoverer) Discover(_ context.Context, entity discovery.EntityInfo) ([]enrich.CandidateLink, error) {
	d.calls++
	d.lastEntity = entity
	return d.candidates, d.err
}

func (d *fakeDiscoverer) Threshold() float64 {
	return d.threshold
}

func facultyCandidate(combined float64) enrich.CandidateLink {
	return enrich.CandidateLink{
		URL:      "https://acme.edu/faculty/jane-doe",
		Source:   enrich.SourcePattern,
		LinkType: enrich.LinkTypeUniversityProfile,
		Title:    "Jane Doe",
		Score:    combined - 0.85,
		Combined: combined,
	}
}

func TestWorker_GoodLinksSkipDiscovery(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{threshold: 1}
	w := New(classify.NewDefault(), nil, disc, Config{}, zap.NewNop())

	rec := enrich.Record{
		Name:       "Jane Doe",
		ProfileURL: "https://acme.edu/faculty/jane-doe",
		ScholarURL: "https://scholar.google.com/citations?user=abc",
	}
	out, err := w.Process(context.Background(), 7, rec)
	require.NoError(t, err)
	require.Equal(t, 7, out.Index)
	require.Equal(t, enrich.StateDone, out.State)
	require.Len(t, out.Classifications, 2)
	require.Equal(t, enrich.LinkTypeUniversityProfile, out.Classifications[enrich.FieldProfileURL].LinkType)
	require.Equal(t, enrich.LinkTypeGoogleScholar, out.Classifications[enrich.FieldScholarURL].LinkType)
	require.Nil(t, out.Classifications[enrich.FieldProfileURL].IsAccessible)
	require.Zero(t, disc.calls)
	require.False(t, out.NeedsManualReview)
}

func TestWorker_InaccessibleLinkIsReplaced(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]enrich.Page{
		"https://acme.edu/labs/cognition": {Title: "Cognition Lab"},
	}}
	disc := &fakeDiscoverer{threshold: 1, candidates: []enrich.CandidateLink{facultyCandidate(2.05)}}
	w := New(classify.NewDefault(), fetcher, disc, Config{CheckAccessibility: true}, nil)

	rec := enrich.Record{
		Name:         "Jane Doe",
		Organization: "Acme University",
		ProfileURL:   "https://acme.edu/faculty/jdoe-old",
		LabWebsite:   "https://acme.edu/labs/cognition",
		Extra:        map[string]any{"id": "42"},
	}
	out, err := w.Process(context.Background(), 0, rec)
	require.NoError(t, err)
	require.Equal(t, enrich.StateDone, out.State)
	require.Equal(t, 1, disc.calls)
	require.Equal(t, "Jane Doe", disc.lastEntity.Name)

	lab := out.Classifications[enrich.FieldLabWebsite]
	require.True(t, lab.Accessible())
	require.Equal(t, "Cognition Lab", lab.Title)

	require.Equal(t, "https://acme.edu/faculty/jane-doe", out.Record.ProfileURL)
	require.Len(t, out.Replacements, 1)
	require.Equal(t, "https://acme.edu/faculty/jdoe-old", out.Replacements[0].OldURL)
	require.Equal(t, enrich.SourcePattern, out.Replacements[0].Candidate.Source)
	profile := out.Classifications[enrich.FieldProfileURL]
	require.True(t, profile.Accessible())
	require.InDelta(t, 0.85, profile.Confidence, 1e-9)
	require.False(t, out.NeedsManualReview)
	require.Equal(t, "42", out.Record.Extra["id"])

	require.Equal(t, "https://acme.edu/faculty/jdoe-old", rec.ProfileURL, "input record must not be mutated")
	require.ElementsMatch(t,
		[]string{"https://acme.edu/faculty/jdoe-old", "https://acme.edu/labs/cognition"},
		fetcher.calls)
}

func TestWorker_SocialBelowThresholdIsFlagged(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	disc := &fakeDiscoverer{threshold: 1.5, candidates: []enrich.CandidateLink{facultyCandidate(1.2)}}
	w := New(classify.NewDefault(), fetcher, disc, Config{CheckAccessibility: true}, nil)

	out, err := w.Process(context.Background(), 0, enrich.Record{
		Name:       "Jane Doe",
		ProfileURL: "https://www.linkedin.com/in/janedoe",
	})
	require.NoError(t, err)
	require.Equal(t, enrich.StateDone, out.State)
	require.True(t, out.NeedsManualReview)
	require.Empty(t, out.Replacements)
	require.Equal(t, "https://www.linkedin.com/in/janedoe", out.Record.ProfileURL)
	require.Equal(t, enrich.LinkTypeSocialMedia, out.Classifications[enrich.FieldProfileURL].LinkType)
	require.Empty(t, fetcher.calls, "social links are never fetched")
}

// loggedStates returns the target states logged by a worker, in order.
func loggedStates(logs *observer.ObservedLogs) []enrich.RecordState {
	var out []enrich.RecordState
	for _, entry := range logs.FilterMessage("record transition").All() {
		out = append(out, enrich.RecordState(entry.ContextMap()["to"].(string)))
	}
	return out
}

func TestWorker_NoDiscovererFlagsLowQuality(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	w := New(classify.NewDefault(), nil, nil, Config{}, zap.New(core))
	out, err := w.Process(context.Background(), 0, enrich.Record{ProfileURL: "not a url"})
	require.NoError(t, err)
	require.True(t, out.NeedsManualReview)
	require.Equal(t, enrich.StateDone, out.State)
	require.Equal(t, enrich.LinkTypeInvalid, out.Classifications[enrich.FieldProfileURL].LinkType)
	require.Equal(t, []enrich.RecordState{
		enrich.StateClassified,
		enrich.StateSkipped,
		enrich.StateCandidateDiscovery,
		enrich.StateFlagged,
		enrich.StateDone,
	}, loggedStates(logs))
}

func TestWorker_NoDiscovererLeavesMissingFieldsUnflagged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	w := New(classify.NewDefault(), nil, nil, Config{FillMissing: true}, zap.New(core))
	out, err := w.Process(context.Background(), 0, enrich.Record{Name: "Jane Doe"})
	require.NoError(t, err)
	require.False(t, out.NeedsManualReview)
	require.Equal(t, []enrich.RecordState{enrich.StateClassified, enrich.StateSkipped, enrich.StateDone}, loggedStates(logs))
}

func TestWorker_FillMissing(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{threshold: 1, candidates: []enrich.CandidateLink{facultyCandidate(2)}}
	w := New(classify.NewDefault(), nil, disc, Config{FillMissing: true}, nil)

	out, err := w.Process(context.Background(), 0, enrich.Record{Name: "Jane Doe", Organization: "Acme University"})
	require.NoError(t, err)
	require.Equal(t, "https://acme.edu/faculty/jane-doe", out.Record.ProfileURL)
	require.Len(t, out.Replacements, 1)
	require.Empty(t, out.Replacements[0].OldURL)
	require.False(t, out.NeedsManualReview)
}

func TestWorker_ExhaustedRetriesFailRecord(t *testing.T) {
	t.Parallel()

	down := "https://down.example.org/jane"
	fetcher := &fakeFetcher{errs: map[string]error{
		down: &enrich.ExhaustedRetriesError{Attempts: 3, Last: enrich.NewStatusError(down, 503)},
	}}
	w := New(classify.NewDefault(), fetcher, &fakeDiscoverer{threshold: 1}, Config{CheckAccessibility: true}, nil)

	out, err := w.Process(context.Background(), 2, enrich.Record{PersonalWebsite: down})
	require.Error(t, err)
	require.ErrorIs(t, err, enrich.ErrExhaustedRetries)
	require.Equal(t, enrich.StateFailed, out.State)
	require.Equal(t, 2, out.Index)
}

func TestWorker_DiscoveryErrorFailsRecord(t *testing.T) {
	t.Parallel()

	disc := &fakeDiscoverer{threshold: 1, err: context.DeadlineExceeded}
	w := New(classify.NewDefault(), nil, disc, Config{}, nil)

	out, err := w.Process(context.Background(), 0, enrich.Record{Name: "Jane", ProfileURL: "https://x.com/jane"})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, enrich.StateFailed, out.State)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := [][2]enrich.RecordState{
		{enrich.StateRaw, enrich.StateClassified},
		{enrich.StateClassified, enrich.StateAccessibleChecked},
		{enrich.StateClassified, enrich.StateSkipped},
		{enrich.StateSkipped, enrich.StateDone},
		{enrich.StateAccessibleChecked, enrich.StateCandidateDiscovery},
		{enrich.StateCandidateDiscovery, enrich.StateReplaced},
		{enrich.StateCandidateDiscovery, enrich.StateFlagged},
		{enrich.StateFlagged, enrich.StateDone},
		{enrich.StateRaw, enrich.StateFailed},
		{enrich.StateCandidateDiscovery, enrich.StateFailed},
	}
	for _, tr := range allowed {
		require.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]enrich.RecordState{
		{enrich.StateRaw, enrich.StateDone},
		{enrich.StateClassified, enrich.StateCandidateDiscovery},
		{enrich.StateReplaced, enrich.StateFlagged},
		{enrich.StateDone, enrich.StateFailed},
		{enrich.StateFailed, enrich.StateRaw},
	}
	for _, tr := range denied {
		require.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}
