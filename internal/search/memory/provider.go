// Package memory implements an in-process SearchProvider over a fixed result set, for offline
// runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// Provider ranks its stored results by how many query words each one mentions.
type Provider struct {
	mu      sync.RWMutex
	results []enrich.SearchResult
	limit   int
}

// New creates an empty Provider returning at most limit hits per query (0 means no limit).
func New(limit int) *Provider {
	return &Provider{limit: limit}
}

// Load reads a JSON array of search results from path into a new Provider.
func Load(path string, limit int) (*Provider, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied fixture path.
	if err != nil {
		return nil, fmt.Errorf("read search fixtures: %w", err)
	}
	var results []enrich.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode search fixtures: %w", err)
	}
	p := New(limit)
	p.Add(results...)
	return p, nil
}

// Add stores results.
func (p *Provider) Add(results ...enrich.SearchResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, results...)
}

// Search returns stored results matching at least one query word, most matches first.
// Ties keep insertion order.
func (p *Provider) Search(ctx context.Context, query string) ([]enrich.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	type hit struct {
		result enrich.SearchResult
		score  int
	}
	var hits []hit
	for _, r := range p.results {
		haystack := strings.ToLower(r.URL + " " + r.Title + " " + r.Snippet)
		score := 0
		for _, w := range words {
			if strings.Contains(haystack, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{result: r, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]enrich.SearchResult, 0, len(hits))
	for _, h := range hits {
		if p.limit > 0 && len(out) >= p.limit {
			break
		}
		out = append(out, h.result)
	}
	return out, nil
}
