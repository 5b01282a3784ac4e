package cart

import (
	"net/url"
	"strings"
)

// DefaultCartSegment is the path fragment of the store's cart page.
const DefaultCartSegment = "/my-cart"

// Gate decides whether a page is the cart page the heuristics were tuned for.
// The test is a case-insensitive substring match on the URL path; nothing
// else about the page is inspected.
type Gate struct {
	segment string
}

// NewGate returns a Gate for the given path segment. An empty segment
// falls back to DefaultCartSegment.
func NewGate(segment string) Gate {
	if segment == "" {
		segment = DefaultCartSegment
	}
	return Gate{segment: strings.ToLower(segment)}
}

// Segment returns the lower-cased path segment the gate matches.
func (g Gate) Segment() string { return g.segment }

// IsCartPage reports whether path contains the cart segment.
func (g Gate) IsCartPage(path string) bool {
	return strings.Contains(strings.ToLower(path), g.segment)
}

// IsCartURL parses rawURL and applies IsCartPage to its path.
// Unparseable URLs are never cart pages.
func (g Gate) IsCartURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return g.IsCartPage(u.Path)
}
