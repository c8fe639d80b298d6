// Package sha256 fingerprints fetched pages so one page served under several URLs is
// recognised as the same page.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/JakeFAU/profile-link-enricher/internal/enrich"
)

// Hasher implements discovery.PageHasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Fingerprint returns the hex digest of the page's case-folded, whitespace-collapsed title and
// text. A page with neither has no fingerprint.
func (h *Hasher) Fingerprint(page enrich.Page) string {
	title := strings.Join(strings.Fields(strings.ToLower(page.Title)), " ")
	text := strings.Join(strings.Fields(strings.ToLower(page.Text)), " ")
	if title == "" && text == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(title + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
