package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// DefaultCorroboration lists, per expected link type, words of which at least one must appear
// on an accepted page.
func DefaultCorroboration() map[enrich.LinkType][]string {
	return map[enrich.LinkType][]string{
		enrich.LinkTypeGoogleScholar:     {"citations", "cited", "scholar", "research", "publications"},
		enrich.LinkTypeAcademicProfile:   {"research", "citation", "citations", "publications", "orcid", "works"},
		enrich.LinkTypePublication:       {"abstract", "doi", "journal", "citation"},
		enrich.LinkTypeUniversityProfile: {"faculty", "professor", "department", "lecturer", "staff", "research"},
		enrich.LinkTypePersonalWebsite:   {"professor", "faculty", "research", "publications", "cv"},
		enrich.LinkTypeLabWebsite:        {"lab", "laboratory", "research", "group", "members"},
	}
}

// Validator fetches candidates and checks the page actually belongs to the entity.
type Validator struct {
	fetcher       enrich.PageFetcher
	minNameTokens int
	corroboration map[enrich.LinkType][]string
}

// NewValidator builds a Validator. fetcher should already apply the retry policy.
func NewValidator(fetcher enrich.PageFetcher, minNameTokens int, corroboration map[enrich.LinkType][]string) *Validator {
	if minNameTokens <= 0 {
		minNameTokens = 2
	}
	if corroboration == nil {
		corroboration = DefaultCorroboration()
	}
	return &Validator{fetcher: fetcher, minNameTokens: minNameTokens, corroboration: corroboration}
}

// Validate returns the fetched page when the candidate is accepted. A fetched page that fails
// the content checks yields *enrich.ValidationError; fetch failures are returned as-is.
func (v *Validator) Validate(ctx context.Context, cand enrich.CandidateLink, entity EntityInfo) (enrich.Page, error) {
	page, err := v.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		return enrich.Page{}, fmt.Errorf("validate %s: %w", cand.URL, err)
	}
	if page.StatusCode != 0 && (page.StatusCode < 200 || page.StatusCode > 299) {
		return enrich.Page{}, enrich.NewStatusError(cand.URL, page.StatusCode)
	}

	words := wordSet(page.Title + " " + page.Text)
	tokens := NameTokens(entity.Name)
	if len(tokens) == 0 {
		return enrich.Page{}, &enrich.ValidationError{URL: cand.URL, Reason: "entity has no name tokens"}
	}
	need := v.minNameTokens
	if len(tokens) < need {
		need = len(tokens)
	}
	// A slug such as /faculty/jane-doe names the person too, but at least one token must
	// appear on the page itself.
	slug := urlWords(cand.URL, page.FinalURL)
	found, onPage := 0, 0
	for _, tok := range tokens {
		if _, ok := words[tok]; ok {
			found++
			onPage++
			continue
		}
		if _, ok := slug[tok]; ok {
			found++
		}
	}
	if found < need || onPage == 0 {
		return enrich.Page{}, &enrich.ValidationError{
			URL:    cand.URL,
			Reason: fmt.Sprintf("found %d of %d required name tokens", found, need),
		}
	}

	if keywords := v.corroboration[cand.LinkType]; cand.LinkType != "" && len(keywords) > 0 {
		if !anyWord(words, keywords) {
			return enrich.Page{}, &enrich.ValidationError{
				URL:    cand.URL,
				Reason: fmt.Sprintf("no %s keyword on page", cand.LinkType),
			}
		}
	}
	return page, nil
}

func wordSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '\'' && r < 0x80
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
		// Hyphenated names also count word by word.
		if strings.ContainsRune(f, '-') {
			for _, part := range strings.Split(f, "-") {
				if part != "" {
					out[part] = struct{}{}
				}
			}
		}
	}
	return out
}

// urlWords returns the lowercased path words of every parseable URL in raws.
func urlWords(raws ...string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, raw := range raws {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, f := range strings.FieldsFunc(strings.ToLower(u.Path), func(r rune) bool {
			return (r < 'a' || r > 'z') && (r < '0' || r > '9')
		}) {
			out[f] = struct{}{}
		}
	}
	return out
}

func anyWord(words map[string]struct{}, keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := words[strings.ToLower(kw)]; ok {
			return true
		}
	}
	return false
}
