package discovery

import (
	"cmp"
	"slices"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/score"
)

// Classifier is the URL classifier discovery ranks with.
type Classifier interface {
	Classify(raw string) enrich.ClassificationResult
}

// Rank scores accepted candidates and sorts them best first. Combined is the classifier
// confidence plus the scorer output; ties go to the shorter URL, then to the source priority.
// An untyped candidate takes the classifier's type; a typed one keeps its type and falls back
// to its raw confidence when the classifier disagrees.
func Rank(
	candidates []enrich.CandidateLink,
	classifier Classifier,
	scorer *score.Scorer,
	entity EntityInfo,
) []enrich.CandidateLink {
	ctx := score.Context{Entity: entity.Name, Department: entity.Department}
	out := make([]enrich.CandidateLink, 0, len(candidates))
	for _, c := range candidates {
		result := classifier.Classify(c.URL)
		confidence := result.Confidence
		switch {
		case c.LinkType == "":
			c.LinkType = result.LinkType
		case c.LinkType != result.LinkType:
			confidence = c.RawConfidence
		}
		c.Score = scorer.Score(scorer.ProfileFor(c.LinkType), c.Title, c.URL, ctx)
		c.Combined = confidence + c.Score
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b enrich.CandidateLink) int {
		if c := cmp.Compare(b.Combined, a.Combined); c != 0 {
			return c
		}
		if c := cmp.Compare(len(a.URL), len(b.URL)); c != 0 {
			return c
		}
		return cmp.Compare(a.Source.Priority(), b.Source.Priority())
	})
	return out
}
