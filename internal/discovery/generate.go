package discovery

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// PathTemplate is one pattern-construction strategy; "{slug}" is replaced by a name variant.
type PathTemplate struct {
	ID       string          `mapstructure:"id"`
	Path     string          `mapstructure:"path"`
	LinkType enrich.LinkType `mapstructure:"link_type"`
}

// DefaultPathTemplates returns the built-in directory paths in default priority order.
func DefaultPathTemplates() []PathTemplate {
	return []PathTemplate{
		{ID: "path:faculty", Path: "/faculty/{slug}", LinkType: enrich.LinkTypeUniversityProfile},
		{ID: "path:people", Path: "/people/{slug}", LinkType: enrich.LinkTypeUniversityProfile},
		{ID: "path:profiles", Path: "/profiles/{slug}", LinkType: enrich.LinkTypeUniversityProfile},
		{ID: "path:directory", Path: "/directory/{slug}", LinkType: enrich.LinkTypeUniversityProfile},
		{ID: "path:tilde", Path: "/~{slug}", LinkType: enrich.LinkTypePersonalWebsite},
	}
}

// Platform is one platform-search strategy: a query URL on an academic platform.
type Platform struct {
	ID string `mapstructure:"id"`
	// QueryURL contains "{query}", replaced by the escaped search terms.
	QueryURL string          `mapstructure:"query_url"`
	LinkType enrich.LinkType `mapstructure:"link_type"`
}

// DefaultPlatforms returns the built-in platform searches in default priority order.
func DefaultPlatforms() []Platform {
	return []Platform{
		{
			ID:       "platform:google_scholar",
			QueryURL: "https://scholar.google.com/citations?view_op=search_authors&mauthors={query}",
			LinkType: enrich.LinkTypeGoogleScholar,
		},
		{
			ID:       "platform:orcid",
			QueryURL: "https://orcid.org/orcid-search/search?searchQuery={query}",
			LinkType: enrich.LinkTypeAcademicProfile,
		},
		{
			ID:       "platform:researchgate",
			QueryURL: "https://www.researchgate.net/search/researcher?q={query}",
			LinkType: enrich.LinkTypeAcademicProfile,
		},
		{
			ID:       "platform:semantic_scholar",
			QueryURL: "https://www.semanticscholar.org/search?q={query}",
			LinkType: enrich.LinkTypeAcademicProfile,
		},
	}
}

// platformCacheKey keeps platform preferences apart from the host's path preference.
func platformCacheKey(host string) string {
	return "platform@" + host
}

func (d *Discoverer) patternCandidates(entity EntityInfo) []enrich.CandidateLink {
	host := entity.Host()
	variants := NameVariants(entity.Name)
	if host == "" || len(variants) == 0 {
		return nil
	}
	byID := make(map[string]PathTemplate, len(d.cfg.PathTemplates))
	ids := make([]string, 0, len(d.cfg.PathTemplates))
	for _, tpl := range d.cfg.PathTemplates {
		byID[tpl.ID] = tpl
		ids = append(ids, tpl.ID)
	}

	// Variant-major: every template gets its most likely slugs before any gets its rarer ones,
	// and within one variant the cache-preferred template comes first.
	order := d.cache.Order(host, ids)
	var out []enrich.CandidateLink
	for i, slug := range variants {
		for _, id := range order {
			if d.cfg.MaxPatternCandidates > 0 && len(out) >= d.cfg.MaxPatternCandidates {
				return out
			}
			tpl := byID[id]
			out = append(out, enrich.CandidateLink{
				URL:           "https://" + host + strings.ReplaceAll(tpl.Path, "{slug}", slug),
				Source:        enrich.SourcePattern,
				RawConfidence: decay(0.7, i),
				LinkType:      tpl.LinkType,
				StrategyID:    tpl.ID,
			})
		}
	}
	return out
}

func (d *Discoverer) platformCandidates(entity EntityInfo) []enrich.CandidateLink {
	if !d.cfg.EnablePlatformSearch {
		return nil
	}
	terms := strings.TrimSpace(strings.Join(NameTokens(entity.Name), " "))
	if terms == "" {
		return nil
	}
	if entity.Organization != "" {
		terms += " " + entity.Organization
	}
	query := url.QueryEscape(terms)

	byID := make(map[string]Platform, len(d.cfg.Platforms))
	ids := make([]string, 0, len(d.cfg.Platforms))
	for _, p := range d.cfg.Platforms {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	out := make([]enrich.CandidateLink, 0, len(ids))
	for _, id := range d.cache.Order(platformCacheKey(entity.Host()), ids) {
		p := byID[id]
		out = append(out, enrich.CandidateLink{
			URL:           strings.ReplaceAll(p.QueryURL, "{query}", query),
			Source:        enrich.SourcePlatformSearch,
			RawConfidence: 0.6,
			LinkType:      p.LinkType,
			StrategyID:    p.ID,
		})
	}
	return out
}

// externalCandidates turns search hits into untyped candidates, dropping social and invalid links.
func (d *Discoverer) externalCandidates(ctx context.Context, entity EntityInfo) []enrich.CandidateLink {
	if d.search == nil || strings.TrimSpace(entity.Name) == "" {
		return nil
	}
	query := strings.Join(strings.Fields(entity.Name+" "+entity.Organization+" "+entity.Department), " ")
	results, err := d.search.Search(ctx, query)
	if err != nil {
		d.logger.Warn("external search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	var out []enrich.CandidateLink
	for _, r := range results {
		if d.cfg.MaxSearchResults > 0 && len(out) >= d.cfg.MaxSearchResults {
			break
		}
		switch d.classifier.Classify(r.URL).LinkType {
		case enrich.LinkTypeSocialMedia, enrich.LinkTypeInvalid:
			continue
		}
		out = append(out, enrich.CandidateLink{
			URL:           r.URL,
			Source:        enrich.SourceExternalSearch,
			RawConfidence: decay(0.5, len(out)),
			Title:         r.Title,
			StrategyID:    "search:external",
		})
	}
	return out
}

func decay(start float64, rank int) float64 {
	v := start - 0.05*float64(rank)
	if v < 0.1 {
		return 0.1
	}
	return v
}
