// Package discovery proposes, validates and ranks replacement links for low-quality fields.
package discovery

import (
	"strings"
	"unicode"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// EntityInfo is the context discovery works from.
type EntityInfo struct {
	Name         string
	Organization string
	Department   string
	// Domain is the institution host; derived from Organization when empty.
	Domain    string
	Interests []string
}

// EntityFromRecord extracts the discovery context from a record.
func EntityFromRecord(r enrich.Record) EntityInfo {
	return EntityInfo{
		Name:         r.Name,
		Organization: r.Organization,
		Department:   r.Department,
		Domain:       r.Domain,
		Interests:    r.Interests,
	}
}

// Host returns the institution host, explicit or derived.
func (e EntityInfo) Host() string {
	if h := enrich.HostOf(e.Domain); h != "" {
		return h
	}
	return DeriveDomain(e.Organization)
}

var honorifics = map[string]struct{}{
	"dr": {}, "prof": {}, "professor": {}, "mr": {}, "mrs": {}, "ms": {}, "miss": {},
	"phd": {}, "md": {}, "jr": {}, "sr": {}, "ii": {}, "iii": {},
}

// NameTokens lowercases a person's name into matchable tokens, dropping titles and initials.
func NameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-' && r != '\''
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-'")
		if len(f) < 2 {
			continue
		}
		if _, skip := honorifics[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

// NameVariants returns URL slugs for a name, most common directory form first: hyphen, first
// initial plus last, concatenated, dot, underscore, last only.
func NameVariants(name string) []string {
	tokens := slugTokens(NameTokens(name))
	switch len(tokens) {
	case 0:
		return nil
	case 1:
		return tokens
	}
	first, last := tokens[0], tokens[len(tokens)-1]
	candidates := []string{
		first + "-" + last,
		first[:1] + last,
		first + last,
		first + "." + last,
		first + "_" + last,
		last,
	}
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func slugTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		var b strings.Builder
		for _, r := range t {
			if r >= 'a' && r <= 'z' {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			out = append(out, b.String())
		}
	}
	return out
}

var (
	orgStopwords = map[string]struct{}{
		"of": {}, "the": {}, "at": {}, "and": {}, "for": {}, "in": {}, "de": {},
	}
	orgGeneric = map[string]struct{}{
		"university": {}, "college": {}, "institute": {}, "school": {}, "academy": {},
	}
)

// DeriveDomain guesses an institution host from its name: "Acme University" gives acme.edu,
// "Massachusetts Institute of Technology" gives mit.edu. It returns "" when nothing usable remains.
func DeriveDomain(org string) string {
	var significant, core []string
	for _, w := range strings.FieldsFunc(strings.ToLower(org), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if _, stop := orgStopwords[w]; stop {
			continue
		}
		if !isASCIIWord(w) {
			return ""
		}
		significant = append(significant, w)
		if _, generic := orgGeneric[w]; !generic {
			core = append(core, w)
		}
	}
	switch {
	case len(core) == 0:
		return ""
	case len(core) == 1:
		return core[0] + ".edu"
	default:
		var b strings.Builder
		for _, w := range significant {
			b.WriteByte(w[0])
		}
		return b.String() + ".edu"
	}
}

func isASCIIWord(w string) bool {
	for _, r := range w {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return w != ""
}
