// Package classify maps raw URL strings to link types using ordered, data-driven rule tables.
package classify

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// DomainTable assigns a link type to a set of host entries. An entry is either a bare host
// ("orcid.org", matched on label boundaries) or a host plus path prefix
// ("semanticscholar.org/author").
type DomainTable struct {
	Name       string          `mapstructure:"name"`
	Entries    []string        `mapstructure:"entries"`
	LinkType   enrich.LinkType `mapstructure:"link_type"`
	Confidence float64         `mapstructure:"confidence"`
}

// PathRule sub-classifies academic-domain URLs by path tokens or substrings.
type PathRule struct {
	Name     string          `mapstructure:"name"`
	Keywords []string        `mapstructure:"keywords"`
	Markers  []string        `mapstructure:"markers"`
	LinkType enrich.LinkType `mapstructure:"link_type"`
	// Confidence applies on a plain match; BoostConfidence when a boost keyword is also present.
	Confidence      float64  `mapstructure:"confidence"`
	BoostKeywords   []string `mapstructure:"boost_keywords"`
	BoostConfidence float64  `mapstructure:"boost_confidence"`
}

// Outcome is a fixed link type and confidence.
type Outcome struct {
	LinkType   enrich.LinkType `mapstructure:"link_type"`
	Confidence float64         `mapstructure:"confidence"`
}

// NameLikeHost configures the personal-website heuristic for non-academic hosts.
type NameLikeHost struct {
	MinLabelLength int      `mapstructure:"min_label_length"`
	MaxLabelLength int      `mapstructure:"max_label_length"`
	MaxHostLabels  int      `mapstructure:"max_host_labels"`
	GenericTerms   []string `mapstructure:"generic_terms"`
	// HostingSuffixes are personal hosting platforms; the subdomain is the name label.
	HostingSuffixes []string `mapstructure:"hosting_suffixes"`
	// NonPersonalHosts never count as personal websites, whatever their label looks like.
	NonPersonalHosts []string `mapstructure:"non_personal_hosts"`
	// SingleTokenLabels lets an unhyphenated label such as "janedoe" count as name-like outside
	// the hosting suffixes. Off by default: "google" and "janedoe" cannot be told apart.
	SingleTokenLabels bool    `mapstructure:"single_token_labels"`
	Confidence        float64 `mapstructure:"confidence"`
}

// Rules is the complete rule data consumed by the Classifier.
type Rules struct {
	Social           DomainTable   `mapstructure:"social"`
	Platforms        []DomainTable `mapstructure:"platforms"`
	AcademicSuffixes []string      `mapstructure:"academic_suffixes"`
	PathRules        []PathRule    `mapstructure:"path_rules"`
	AcademicDefault  Outcome       `mapstructure:"academic_default"`
	NameLike         NameLikeHost  `mapstructure:"name_like"`
	Fallback         Outcome       `mapstructure:"fallback"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	return Rules{
		Social: DomainTable{
			Name: "social",
			Entries: []string{
				"linkedin.com", "twitter.com", "x.com", "facebook.com", "fb.com",
				"instagram.com", "youtube.com", "tiktok.com", "threads.net",
				"bsky.app", "mastodon.social", "reddit.com", "pinterest.com",
			},
			LinkType:   enrich.LinkTypeSocialMedia,
			Confidence: 0.9,
		},
		Platforms: []DomainTable{
			{
				Name: "citation-index",
				Entries: []string{
					"scholar.google.com", "scholar.google.co.uk", "scholar.google.de",
					"scholar.google.ca", "scholar.google.com.au", "scholar.google.fr",
				},
				LinkType:   enrich.LinkTypeGoogleScholar,
				Confidence: 0.95,
			},
			// Paper entries precede the registry so host-wide registry entries keep their paper paths.
			{
				Name: "paper-repository",
				Entries: []string{
					"arxiv.org", "biorxiv.org", "medrxiv.org", "doi.org",
					"pubmed.ncbi.nlm.nih.gov", "ncbi.nlm.nih.gov", "ieeexplore.ieee.org",
					"dl.acm.org", "link.springer.com", "sciencedirect.com", "nature.com",
					"jstor.org", "semanticscholar.org/paper", "papers.ssrn.com", "openreview.net",
					"plos.org", "wiley.com",
				},
				LinkType:   enrich.LinkTypePublication,
				Confidence: 0.8,
			},
			{
				Name: "researcher-registry",
				Entries: []string{
					"orcid.org", "researchgate.net", "academia.edu",
					"semanticscholar.org/author", "scopus.com/authid", "publons.com",
					"webofscience.com", "researcherid.com", "dblp.org/pid",
					"loop.frontiersin.org", "mathgenealogy.org", "ssrn.com/author",
					"semanticscholar.org",
				},
				LinkType:   enrich.LinkTypeAcademicProfile,
				Confidence: 0.9,
			},
		},
		AcademicSuffixes: []string{
			"edu", "ac.uk", "edu.au", "ac.jp", "edu.cn", "ac.cn", "ac.kr", "ac.in",
			"edu.sg", "ac.nz", "ac.za", "edu.hk", "ac.il", "ac.at", "edu.br", "edu.mx",
			"ac.be", "edu.tw", "ac.th",
		},
		PathRules: []PathRule{
			{
				Name: "lab",
				Keywords: []string{
					"lab", "labs", "laboratory", "laboratories", "center", "centre",
					"centers", "institute", "group", "groups",
				},
				LinkType:   enrich.LinkTypeLabWebsite,
				Confidence: 0.85,
				BoostKeywords: []string{
					"cognitive", "cognition", "neuroscience", "neuro", "computational",
					"psychology", "biology", "physics", "chemistry", "robotics", "vision",
					"language", "genomics", "learning", "brain", "ai",
				},
				BoostConfidence: 0.9,
			},
			{
				Name: "directory",
				Keywords: []string{
					"faculty", "people", "staff", "directory", "profile", "profiles",
					"person", "persons", "members", "team", "bio",
				},
				LinkType:   enrich.LinkTypeUniversityProfile,
				Confidence: 0.85,
			},
			{
				Name:       "personal",
				Markers:    []string{"~", "/personal/", "/users/", "/homes/", "/home/"},
				LinkType:   enrich.LinkTypePersonalWebsite,
				Confidence: 0.9,
			},
		},
		AcademicDefault: Outcome{LinkType: enrich.LinkTypeUniversityProfile, Confidence: 0.6},
		NameLike: NameLikeHost{
			MinLabelLength: 3,
			MaxLabelLength: 20,
			MaxHostLabels:  3,
			GenericTerms: []string{
				"shop", "store", "news", "corp", "inc", "company", "media", "online",
				"services", "solutions", "group", "global", "digital", "mail", "app",
			},
			HostingSuffixes: []string{"github.io", "netlify.app", "wordpress.com", "gitlab.io"},
			NonPersonalHosts: []string{
				"google.com", "amazon.com", "github.com", "gitlab.com", "bitbucket.org",
				"wikipedia.org", "medium.com", "substack.com", "blogspot.com", "wordpress.com",
				"microsoft.com", "apple.com", "yahoo.com", "bing.com", "duckduckgo.com",
				"dropbox.com", "archive.org", "about.me", "wix.com", "squarespace.com",
			},
			Confidence: 0.7,
		},
		Fallback: Outcome{LinkType: enrich.LinkTypeUnknown, Confidence: 0.3},
	}
}

// Merge overlays every non-empty value of o onto r.
func (r Rules) Merge(o Rules) Rules {
	if len(o.Social.Entries) > 0 {
		r.Social.Entries = o.Social.Entries
	}
	if o.Social.Confidence > 0 {
		r.Social.Confidence = o.Social.Confidence
	}
	if len(o.Platforms) > 0 {
		r.Platforms = o.Platforms
	}
	if len(o.AcademicSuffixes) > 0 {
		r.AcademicSuffixes = o.AcademicSuffixes
	}
	if len(o.PathRules) > 0 {
		r.PathRules = o.PathRules
	}
	if o.AcademicDefault.LinkType != "" {
		r.AcademicDefault = o.AcademicDefault
	}
	r.NameLike = mergeNameLike(r.NameLike, o.NameLike)
	if o.Fallback.LinkType != "" {
		r.Fallback = o.Fallback
	}
	return r
}

func mergeNameLike(base, o NameLikeHost) NameLikeHost {
	if o.MinLabelLength > 0 {
		base.MinLabelLength = o.MinLabelLength
	}
	if o.MaxLabelLength > 0 {
		base.MaxLabelLength = o.MaxLabelLength
	}
	if o.MaxHostLabels > 0 {
		base.MaxHostLabels = o.MaxHostLabels
	}
	if len(o.GenericTerms) > 0 {
		base.GenericTerms = o.GenericTerms
	}
	if len(o.HostingSuffixes) > 0 {
		base.HostingSuffixes = o.HostingSuffixes
	}
	if len(o.NonPersonalHosts) > 0 {
		base.NonPersonalHosts = o.NonPersonalHosts
	}
	if o.SingleTokenLabels {
		base.SingleTokenLabels = true
	}
	if o.Confidence > 0 {
		base.Confidence = o.Confidence
	}
	return base
}

// Validate rejects confidences outside [0,1] and tables without a link type.
func (r Rules) Validate() error {
	check := func(name string, c float64) error {
		if c < 0 || c > 1 {
			return fmt.Errorf("classifier %s confidence %v must be within [0,1]", name, c)
		}
		return nil
	}
	if err := check("social", r.Social.Confidence); err != nil {
		return err
	}
	for _, p := range r.Platforms {
		if p.LinkType == "" {
			return fmt.Errorf("classifier platform table %q needs a link_type", p.Name)
		}
		if err := check(p.Name, p.Confidence); err != nil {
			return err
		}
	}
	for _, p := range r.PathRules {
		if p.LinkType == "" {
			return fmt.Errorf("classifier path rule %q needs a link_type", p.Name)
		}
		if err := check(p.Name, p.Confidence); err != nil {
			return err
		}
		if err := check(p.Name+" boost", p.BoostConfidence); err != nil {
			return err
		}
	}
	if err := check("academic default", r.AcademicDefault.Confidence); err != nil {
		return err
	}
	if err := check("name-like", r.NameLike.Confidence); err != nil {
		return err
	}
	return check("fallback", r.Fallback.Confidence)
}

// LoadRules returns DefaultRules overlaid with anything configured under key.
func LoadRules(v *viper.Viper, key string) (Rules, error) {
	rules := DefaultRules()
	if v == nil || !v.IsSet(key) {
		return rules, nil
	}
	var override Rules
	if err := v.UnmarshalKey(key, &override); err != nil {
		return Rules{}, fmt.Errorf("decode classifier rules: %w", err)
	}
	rules = rules.Merge(override)
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}
