package score

import (
	"net/url"
	"strings"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// Context names what the caller is looking for; matching strings earn a target bonus.
type Context struct {
	Entity     string
	Department string
}

// Scorer scores labels and URLs against the directory and lab profiles.
type Scorer struct {
	directory Profile
	lab       Profile
}

// New creates a Scorer over the given profiles.
func New(directory, lab Profile) *Scorer {
	return &Scorer{directory: directory, lab: lab}
}

// NewDefault creates a Scorer over the built-in profiles.
func NewDefault() *Scorer {
	return New(DirectoryProfile(), LabProfile())
}

// ProfileFor picks the profile used to judge a candidate of the given type.
func (s *Scorer) ProfileFor(t enrich.LinkType) Profile {
	if t == enrich.LinkTypeLabWebsite {
		return s.lab
	}
	return s.directory
}

// Score returns a non-negative candidacy score capped at the profile cap. It is pure.
func (s *Scorer) Score(p Profile, label, rawURL string, c Context) float64 {
	lowerLabel := strings.ToLower(label)
	labelTokens := tokenSet(lowerLabel)
	host, path := splitURL(rawURL)
	pathTokens := tokenSet(path)

	total := authority(p.Authority, host)
	total += capped(countMatches(labelTokens, p.Keywords), p.KeywordWeight, p.KeywordCap)
	total += firstPathBonus(p.PathPatterns, path)
	total += capped(countMatches(labelTokens, p.Indicators)+countMatches(pathTokens, p.Indicators),
		p.IndicatorWeight, p.IndicatorCap)
	if containsAny(lowerLabel, p.Phrases) {
		total += p.PhraseBonus
	}
	total -= lengthPenalty(p, len(label))
	total -= float64(countMatches(labelTokens, p.Negatives)+countMatches(pathTokens, p.Negatives)) *
		p.NegativePenalty
	for _, target := range []string{c.Entity, c.Department} {
		total += targetBonus(p, target, lowerLabel, labelTokens, strings.ToLower(rawURL), pathTokens)
	}

	switch {
	case total < 0:
		return 0
	case p.Cap > 0 && total > p.Cap:
		return p.Cap
	default:
		return total
	}
}

func authority(a Authority, host string) float64 {
	labels := strings.Split(host, ".")
	n := len(labels)
	if host == "" || n < 2 {
		return a.Other
	}
	tld, second := labels[n-1], labels[n-2]
	switch {
	case tld == "edu" || second == "edu":
		return a.Edu
	case tld == "org" || second == "ac":
		return a.OrgOrAc
	case tld == "gov" || second == "gov":
		return a.Gov
	default:
		return a.Other
	}
}

func capped(matches int, weight, ceiling float64) float64 {
	v := float64(matches) * weight
	if ceiling > 0 && v > ceiling {
		return ceiling
	}
	return v
}

func countMatches(tokens map[string]struct{}, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if _, ok := tokens[strings.ToLower(kw)]; ok {
			n++
		}
	}
	return n
}

func firstPathBonus(patterns []PathPattern, path string) float64 {
	padded := path + "/"
	for _, pp := range patterns {
		if pp.Pattern != "" && strings.Contains(padded, strings.ToLower(pp.Pattern)) {
			return pp.Bonus
		}
	}
	return 0
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func lengthPenalty(p Profile, n int) float64 {
	switch {
	case p.VeryLongLabel > 0 && n > p.VeryLongLabel:
		return p.VeryLongLabelPenalty
	case p.LongLabel > 0 && n > p.LongLabel:
		return p.LongLabelPenalty
	default:
		return 0
	}
}

// targetBonus rewards an exact phrase (or URL slug) match over a partial word match.
func targetBonus(p Profile, target, label string, labelTokens map[string]struct{}, lowerURL string,
	pathTokens map[string]struct{},
) float64 {
	words := strings.Fields(strings.ToLower(target))
	if len(words) == 0 {
		return 0
	}
	if len(words) == 1 {
		if hasToken(labelTokens, words[0]) || hasToken(pathTokens, words[0]) {
			return p.TargetExactBonus
		}
		return 0
	}
	if strings.Contains(label, strings.Join(words, " ")) {
		return p.TargetExactBonus
	}
	for _, sep := range []string{"-", "_", ".", ""} {
		if strings.Contains(lowerURL, strings.Join(words, sep)) {
			return p.TargetExactBonus
		}
	}
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if hasToken(labelTokens, w) || hasToken(pathTokens, w) {
			return p.TargetPartialBonus
		}
	}
	return 0
}

func hasToken(tokens map[string]struct{}, w string) bool {
	_, ok := tokens[w]
	return ok
}

func splitURL(raw string) (host, path string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), strings.ToLower(u.Path)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
