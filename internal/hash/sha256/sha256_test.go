package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	h := New()
	page := enrich.Page{URL: "https://acme.edu/faculty/jane-doe", Title: "Jane Doe", Text: "Professor of Psychology"}
	got := h.Fingerprint(page)
	require.Len(t, got, 64)
	require.Equal(t, got, h.Fingerprint(page))

	redirected := enrich.Page{URL: "https://acme.edu/faculty/jdoe", Title: " jane  doe", Text: "professor of\npsychology "}
	require.Equal(t, got, h.Fingerprint(redirected))

	require.NotEqual(t, got, h.Fingerprint(enrich.Page{Title: "Jane Doe", Text: "Lecturer"}))
	require.NotEqual(t, h.Fingerprint(enrich.Page{Title: "ab", Text: "c"}), h.Fingerprint(enrich.Page{Title: "a", Text: "bc"}))
	require.Empty(t, h.Fingerprint(enrich.Page{URL: "https://acme.edu/empty"}))
}
