package discovery

import (
	"strings"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// NeedsReplacement reports whether a field's current classification is low quality:
// social media, unknown, invalid, or checked and found unreachable.
func NeedsReplacement(c enrich.ClassificationResult) bool {
	switch c.LinkType {
	case enrich.LinkTypeSocialMedia, enrich.LinkTypeUnknown, enrich.LinkTypeInvalid:
		return true
	}
	return c.Inaccessible()
}

// Decision is the replacement verdict for one field.
type Decision struct {
	Replace   bool
	Candidate enrich.CandidateLink
	Reason    string
}

// Decide picks the replacement for field from ranked candidates (best first). Social-media and
// unknown links are only replaced when the best compatible candidate's combined score exceeds
// threshold; invalid, missing or unreachable links take any compatible candidate. URLs in used
// were already given to another field.
func Decide(
	field enrich.LinkField,
	current enrich.ClassificationResult,
	ranked []enrich.CandidateLink,
	threshold float64,
	used map[string]bool,
) Decision {
	var (
		top   enrich.CandidateLink
		found bool
	)
	for _, c := range ranked {
		if used[strings.ToLower(c.URL)] || !field.Accepts(c.LinkType) {
			continue
		}
		top, found = c, true
		break
	}
	if !found {
		return Decision{Reason: "no compatible candidate"}
	}
	switch current.LinkType {
	case enrich.LinkTypeSocialMedia, enrich.LinkTypeUnknown:
		if top.Combined > threshold {
			return Decision{Replace: true, Candidate: top, Reason: "candidate above threshold"}
		}
		return Decision{Candidate: top, Reason: "best candidate below threshold"}
	default:
		return Decision{Replace: true, Candidate: top, Reason: "current link unusable"}
	}
}
