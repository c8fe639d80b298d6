// Package strategy remembers which discovery strategy last worked for each domain.
package strategy

import (
	"strings"
	"sync"

	"github.com/JakeFAU/profile-link-enricher/internal/metrics"
)

// Cache maps a domain to the id of its last successful strategy. The last writer wins.
type Cache struct {
	preferred sync.Map
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Preferred returns the strategy id recorded for domain, if any.
func (c *Cache) Preferred(domain string) (string, bool) {
	key := normalize(domain)
	if key == "" {
		return "", false
	}
	v, ok := c.preferred.Load(key)
	metrics.ObserveStrategyLookup(ok)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// RecordSuccess overwrites the preferred strategy for domain.
func (c *Cache) RecordSuccess(domain, strategyID string) {
	key := normalize(domain)
	if key == "" || strategyID == "" {
		return
	}
	c.preferred.Store(key, strategyID)
}

// Order returns defaults with the preferred strategy for domain moved to the front.
// The rest keep their default order; a preferred id missing from defaults is ignored.
func (c *Cache) Order(domain string, defaults []string) []string {
	out := make([]string, 0, len(defaults))
	preferred, ok := c.Preferred(domain)
	if !ok || !contains(defaults, preferred) {
		return append(out, defaults...)
	}
	out = append(out, preferred)
	for _, id := range defaults {
		if id != preferred {
			out = append(out, id)
		}
	}
	return out
}

// Len reports how many domains have a preferred strategy.
func (c *Cache) Len() int {
	n := 0
	c.preferred.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func normalize(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
