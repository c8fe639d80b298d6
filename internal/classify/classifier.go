package classify

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
)

// target is a parsed, lowercased view of a URL that rules match against.
type target struct {
	host   string
	path   string
	tokens map[string]struct{}
}

// rule is one ordered predicate of the classifier; the first match wins.
type rule struct {
	name  string
	match func(t target) (enrich.LinkType, float64, bool)
}

// Classifier is a pure URL classifier driven by Rules.
type Classifier struct {
	rules  []rule
	final  Outcome
	logger *zap.Logger
}

// New compiles rules into an ordered rule list.
func New(rules Rules, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiled := []rule{tableRule(rules.Social)}
	for _, table := range rules.Platforms {
		compiled = append(compiled, tableRule(table))
	}
	compiled = append(compiled,
		academicRule(rules.AcademicSuffixes, rules.PathRules, rules.AcademicDefault),
		nameLikeRule(rules.NameLike),
	)
	return &Classifier{
		rules:  compiled,
		final:  rules.Fallback,
		logger: logger,
	}
}

// NewDefault builds a Classifier over DefaultRules with a no-op logger.
func NewDefault() *Classifier {
	return New(DefaultRules(), nil)
}

// Classify assigns exactly one link type to raw. It never performs I/O and never fails:
// empty or malformed input yields an invalid result with zero confidence.
func (c *Classifier) Classify(raw string) enrich.ClassificationResult {
	t, ok := parseTarget(raw)
	if !ok {
		metrics.ObserveClassification(string(enrich.LinkTypeInvalid))
		return enrich.ClassificationResult{
			LinkType:   enrich.LinkTypeInvalid,
			Confidence: 0,
			Error:      "malformed or empty url",
		}
	}
	for _, r := range c.rules {
		linkType, confidence, matched := r.match(t)
		if !matched {
			continue
		}
		c.logger.Debug("url classified",
			zap.String("url", raw),
			zap.String("rule", r.name),
			zap.String("link_type", string(linkType)),
			zap.Float64("confidence", confidence),
		)
		metrics.ObserveClassification(string(linkType))
		return enrich.ClassificationResult{LinkType: linkType, Confidence: clamp01(confidence)}
	}
	metrics.ObserveClassification(string(c.final.LinkType))
	return enrich.ClassificationResult{LinkType: c.final.LinkType, Confidence: clamp01(c.final.Confidence)}
}

func tableRule(table DomainTable) rule {
	type entry struct {
		host       string
		pathPrefix string
	}
	entries := make([]entry, 0, len(table.Entries))
	for _, raw := range table.Entries {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		host, rest, _ := strings.Cut(raw, "/")
		e := entry{host: strings.TrimPrefix(host, "www.")}
		if rest != "" {
			e.pathPrefix = "/" + rest
		}
		entries = append(entries, e)
	}
	return rule{
		name: table.Name,
		match: func(t target) (enrich.LinkType, float64, bool) {
			for _, e := range entries {
				if !hostMatches(t.host, e.host) {
					continue
				}
				if e.pathPrefix != "" && !strings.HasPrefix(t.path, e.pathPrefix) {
					continue
				}
				return table.LinkType, table.Confidence, true
			}
			return "", 0, false
		},
	}
}

func academicRule(suffixes []string, pathRules []PathRule, fallback Outcome) rule {
	return rule{
		name: "academic",
		match: func(t target) (enrich.LinkType, float64, bool) {
			if !hasAnySuffix(t.host, suffixes) {
				return "", 0, false
			}
			for _, pr := range pathRules {
				if !pathRuleMatches(t, pr) {
					continue
				}
				if len(pr.BoostKeywords) > 0 && anyToken(t, pr.BoostKeywords) {
					return pr.LinkType, pr.BoostConfidence, true
				}
				return pr.LinkType, pr.Confidence, true
			}
			return fallback.LinkType, fallback.Confidence, true
		},
	}
}

func nameLikeRule(cfg NameLikeHost) rule {
	return rule{
		name: "name-like-host",
		match: func(t target) (enrich.LinkType, float64, bool) {
			if label, ok := hostingLabel(t.host, cfg.HostingSuffixes); ok {
				if isNameLike(label, cfg) {
					return enrich.LinkTypePersonalWebsite, cfg.Confidence, true
				}
				return "", 0, false
			}
			for _, h := range cfg.NonPersonalHosts {
				if hostMatches(t.host, strings.TrimPrefix(strings.ToLower(h), "www.")) {
					return "", 0, false
				}
			}
			labels := strings.Split(t.host, ".")
			if cfg.MaxHostLabels > 0 && len(labels) > cfg.MaxHostLabels {
				return "", 0, false
			}
			label := registrableLabel(labels)
			if !cfg.SingleTokenLabels && !isMultiToken(label) {
				return "", 0, false
			}
			if isNameLike(label, cfg) {
				return enrich.LinkTypePersonalWebsite, cfg.Confidence, true
			}
			return "", 0, false
		},
	}
}

func pathRuleMatches(t target, pr PathRule) bool {
	if anyToken(t, pr.Keywords) {
		return true
	}
	padded := t.path + "/"
	for _, m := range pr.Markers {
		if m != "" && strings.Contains(padded, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func anyToken(t target, keywords []string) bool {
	for _, kw := range keywords {
		if _, ok := t.tokens[strings.ToLower(kw)]; ok {
			return true
		}
	}
	return false
}

func hostMatches(host, entry string) bool {
	return host == entry || strings.HasSuffix(host, "."+entry)
}

func hasAnySuffix(host string, suffixes []string) bool {
	for _, s := range suffixes {
		s = strings.TrimPrefix(strings.ToLower(s), ".")
		if s != "" && strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

func hostingLabel(host string, suffixes []string) (string, bool) {
	for _, s := range suffixes {
		s = strings.ToLower(s)
		if strings.HasSuffix(host, "."+s) {
			sub := strings.TrimSuffix(host, "."+s)
			parts := strings.Split(sub, ".")
			return parts[len(parts)-1], true
		}
	}
	return "", false
}

var secondLevelLabels = map[string]struct{}{
	"co": {}, "com": {}, "org": {}, "net": {}, "ac": {}, "edu": {}, "gov": {},
}

// registrableLabel picks the label a person would register, e.g. "janedoe" in
// "janedoe.co.uk" or "janedoe.com".
func registrableLabel(labels []string) string {
	n := len(labels)
	if n < 2 {
		return ""
	}
	if n >= 3 {
		if _, ok := secondLevelLabels[labels[n-2]]; ok {
			return labels[n-3]
		}
	}
	return labels[n-2]
}

// isMultiToken reports whether label reads as several hyphen-separated words, e.g. "jane-doe".
func isMultiToken(label string) bool {
	parts := strings.Split(label, "-")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func isNameLike(label string, cfg NameLikeHost) bool {
	if len(label) < cfg.MinLabelLength || (cfg.MaxLabelLength > 0 && len(label) > cfg.MaxLabelLength) {
		return false
	}
	for _, r := range label {
		if (r < 'a' || r > 'z') && r != '-' {
			return false
		}
	}
	for _, term := range cfg.GenericTerms {
		if term != "" && strings.Contains(label, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func parseTarget(raw string) (target, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return target{}, false
	}
	if !strings.Contains(s, "://") {
		// mailto:, javascript: and bare host:port forms are not profile links.
		head, _, _ := strings.Cut(s, "/")
		if strings.Contains(head, ":") {
			return target{}, false
		}
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return target{}, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return target{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !validHost(host) {
		return target{}, false
	}
	path := strings.ToLower(u.Path)
	return target{host: host, path: path, tokens: tokenize(path)}, true
}

func validHost(host string) bool {
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
				return false
			}
		}
	}
	return true
}

func tokenize(path string) map[string]struct{} {
	fields := strings.FieldsFunc(path, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
