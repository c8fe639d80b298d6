// Package score ranks candidate links with weighted, profile-driven heuristics.
package score

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Profile names shipped with the scorer.
const (
	ProfileDirectory = "directory"
	ProfileLab       = "lab"
)

// Authority holds the domain-authority bonus per host class.
type Authority struct {
	Edu     float64 `mapstructure:"edu"`
	OrgOrAc float64 `mapstructure:"org_or_ac"`
	Gov     float64 `mapstructure:"gov"`
	Other   float64 `mapstructure:"other"`
}

// PathPattern is a lowercase URL path substring and the bonus it earns.
type PathPattern struct {
	Pattern string  `mapstructure:"pattern"`
	Bonus   float64 `mapstructure:"bonus"`
}

// Profile is a named set of weighted rules. PathPatterns are ordered by specificity and only
// the first match counts.
type Profile struct {
	Name      string    `mapstructure:"name"`
	Authority Authority `mapstructure:"authority"`

	Keywords      []string `mapstructure:"keywords"`
	KeywordWeight float64  `mapstructure:"keyword_weight"`
	KeywordCap    float64  `mapstructure:"keyword_cap"`

	PathPatterns []PathPattern `mapstructure:"path_patterns"`

	Indicators      []string `mapstructure:"indicators"`
	IndicatorWeight float64  `mapstructure:"indicator_weight"`
	IndicatorCap    float64  `mapstructure:"indicator_cap"`

	Phrases     []string `mapstructure:"phrases"`
	PhraseBonus float64  `mapstructure:"phrase_bonus"`

	LongLabel            int     `mapstructure:"long_label"`
	LongLabelPenalty     float64 `mapstructure:"long_label_penalty"`
	VeryLongLabel        int     `mapstructure:"very_long_label"`
	VeryLongLabelPenalty float64 `mapstructure:"very_long_label_penalty"`

	Negatives       []string `mapstructure:"negatives"`
	NegativePenalty float64  `mapstructure:"negative_penalty"`

	TargetExactBonus   float64 `mapstructure:"target_exact_bonus"`
	TargetPartialBonus float64 `mapstructure:"target_partial_bonus"`

	Cap float64 `mapstructure:"cap"`
}

var defaultNegatives = []string{
	"contact", "login", "signin", "admin", "apply", "admissions", "donate", "calendar",
	"events", "news", "facebook", "twitter", "linkedin", "instagram", "share", "subscribe",
}

// DirectoryProfile judges faculty and people directory pages.
func DirectoryProfile() Profile {
	return Profile{
		Name:      ProfileDirectory,
		Authority: Authority{Edu: 0.3, OrgOrAc: 0.2, Gov: 0.15},
		Keywords: []string{
			"faculty", "people", "staff", "directory", "profile", "profiles", "professor",
			"department", "members", "team", "researchers", "bio",
		},
		KeywordWeight: 0.1,
		KeywordCap:    0.4,
		PathPatterns: []PathPattern{
			{Pattern: "/faculty/", Bonus: 0.4},
			{Pattern: "/people/", Bonus: 0.35},
			{Pattern: "/profiles/", Bonus: 0.35},
			{Pattern: "/directory/", Bonus: 0.3},
			{Pattern: "/staff/", Bonus: 0.3},
			{Pattern: "/~", Bonus: 0.25},
			{Pattern: "/about", Bonus: 0.1},
		},
		Indicators: []string{
			"research", "publications", "teaching", "phd", "lecturer", "emeritus", "cv",
		},
		IndicatorWeight: 0.05,
		IndicatorCap:    0.2,
		Phrases: []string{
			"faculty directory", "meet our faculty", "our faculty", "people directory",
			"faculty and staff", "faculty profile",
		},
		PhraseBonus:          0.3,
		LongLabel:            100,
		LongLabelPenalty:     0.1,
		VeryLongLabel:        200,
		VeryLongLabelPenalty: 0.3,
		Negatives:            defaultNegatives,
		NegativePenalty:      0.2,
		TargetExactBonus:     0.5,
		TargetPartialBonus:   0.2,
		Cap:                  2.0,
	}
}

// LabProfile judges lab and research-group sites.
func LabProfile() Profile {
	return Profile{
		Name:      ProfileLab,
		Authority: Authority{Edu: 0.3, OrgOrAc: 0.2, Gov: 0.15},
		Keywords: []string{
			"lab", "labs", "laboratory", "center", "centre", "institute", "group", "research",
		},
		KeywordWeight: 0.1,
		KeywordCap:    0.4,
		PathPatterns: []PathPattern{
			{Pattern: "/labs/", Bonus: 0.4},
			{Pattern: "/lab/", Bonus: 0.4},
			{Pattern: "/research/", Bonus: 0.3},
			{Pattern: "/groups/", Bonus: 0.3},
			{Pattern: "/centers/", Bonus: 0.25},
			{Pattern: "/institute", Bonus: 0.25},
		},
		Indicators: []string{
			"cognitive", "cognition", "neuroscience", "computational", "biology", "physics",
			"chemistry", "robotics", "genomics", "learning", "vision", "language",
		},
		IndicatorWeight: 0.05,
		IndicatorCap:    0.25,
		Phrases: []string{
			"visit our lab", "join our lab", "our lab", "research group", "lab website",
			"our research",
		},
		PhraseBonus:          0.3,
		LongLabel:            100,
		LongLabelPenalty:     0.1,
		VeryLongLabel:        200,
		VeryLongLabelPenalty: 0.3,
		Negatives:            defaultNegatives,
		NegativePenalty:      0.2,
		TargetExactBonus:     0.5,
		TargetPartialBonus:   0.2,
		Cap:                  2.0,
	}
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileDirectory:
		return DirectoryProfile(), true
	case ProfileLab:
		return LabProfile(), true
	default:
		return Profile{}, false
	}
}

// Validate rejects profiles that could produce negative bonuses or an empty range.
func (p Profile) Validate() error {
	if p.Cap <= 0 {
		return fmt.Errorf("score profile %q: cap must be positive", p.Name)
	}
	for name, w := range map[string]float64{
		"keyword_weight":          p.KeywordWeight,
		"keyword_cap":             p.KeywordCap,
		"indicator_weight":        p.IndicatorWeight,
		"indicator_cap":           p.IndicatorCap,
		"phrase_bonus":            p.PhraseBonus,
		"long_label_penalty":      p.LongLabelPenalty,
		"very_long_label_penalty": p.VeryLongLabelPenalty,
		"negative_penalty":        p.NegativePenalty,
		"target_exact_bonus":      p.TargetExactBonus,
		"target_partial_bonus":    p.TargetPartialBonus,
	} {
		if w < 0 {
			return fmt.Errorf("score profile %q: %s must not be negative", p.Name, name)
		}
	}
	for _, pp := range p.PathPatterns {
		if pp.Bonus < 0 {
			return fmt.Errorf("score profile %q: path pattern %q has a negative bonus", p.Name, pp.Pattern)
		}
	}
	return nil
}

// merge overlays the non-zero values of o onto p.
func (p Profile) merge(o Profile) Profile {
	if o.Authority != (Authority{}) {
		p.Authority = o.Authority
	}
	if len(o.Keywords) > 0 {
		p.Keywords = o.Keywords
	}
	p.KeywordWeight = pick(p.KeywordWeight, o.KeywordWeight)
	p.KeywordCap = pick(p.KeywordCap, o.KeywordCap)
	if len(o.PathPatterns) > 0 {
		p.PathPatterns = o.PathPatterns
	}
	if len(o.Indicators) > 0 {
		p.Indicators = o.Indicators
	}
	p.IndicatorWeight = pick(p.IndicatorWeight, o.IndicatorWeight)
	p.IndicatorCap = pick(p.IndicatorCap, o.IndicatorCap)
	if len(o.Phrases) > 0 {
		p.Phrases = o.Phrases
	}
	p.PhraseBonus = pick(p.PhraseBonus, o.PhraseBonus)
	if o.LongLabel > 0 {
		p.LongLabel = o.LongLabel
	}
	p.LongLabelPenalty = pick(p.LongLabelPenalty, o.LongLabelPenalty)
	if o.VeryLongLabel > 0 {
		p.VeryLongLabel = o.VeryLongLabel
	}
	p.VeryLongLabelPenalty = pick(p.VeryLongLabelPenalty, o.VeryLongLabelPenalty)
	if len(o.Negatives) > 0 {
		p.Negatives = o.Negatives
	}
	p.NegativePenalty = pick(p.NegativePenalty, o.NegativePenalty)
	p.TargetExactBonus = pick(p.TargetExactBonus, o.TargetExactBonus)
	p.TargetPartialBonus = pick(p.TargetPartialBonus, o.TargetPartialBonus)
	p.Cap = pick(p.Cap, o.Cap)
	return p
}

func pick(base, override float64) float64 {
	if override != 0 {
		return override
	}
	return base
}

// LoadProfile returns the named built-in profile overlaid with anything configured under key.
func LoadProfile(v *viper.Viper, key, name string) (Profile, error) {
	p, ok := ProfileByName(name)
	if !ok {
		return Profile{}, fmt.Errorf("unknown score profile %q", name)
	}
	if v == nil || !v.IsSet(key) {
		return p, nil
	}
	var override Profile
	if err := v.UnmarshalKey(key, &override); err != nil {
		return Profile{}, fmt.Errorf("decode score profile %q: %w", name, err)
	}
	p = p.merge(override)
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}
