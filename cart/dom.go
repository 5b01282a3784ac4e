package cart

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// clean collapses all whitespace runs (including NBSP) to single spaces.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textOf returns the concatenated text content of n, like DOM textContent.
func textOf(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

// hasDescendant reports whether any element below n has the given tag.
func hasDescendant(n *html.Node, tag string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return true
		}
		if hasDescendant(c, tag) {
			return true
		}
	}
	return false
}

// looksLikeRow reports whether n contains both an image and a price, the
// shape of a rendered cart line.
func looksLikeRow(n *html.Node) bool {
	return hasDescendant(n, "img") && pricePattern.MatchString(clean(textOf(n)))
}

// climbToRow walks up from start at most maxHops parents and returns the
// first ancestor that looks like a cart line, or nil. The climb never
// reaches a node in roots, so rows stay strictly inside the scope.
func climbToRow(start *html.Node, roots map[*html.Node]bool, maxHops int) *html.Node {
	if start == nil || roots[start] {
		return nil
	}
	node := start
	for i := 0; i < maxHops; i++ {
		node = node.Parent
		if node == nil || node.Type != html.ElementNode || roots[node] {
			return nil
		}
		if looksLikeRow(node) {
			return node
		}
	}
	return nil
}

// nodeSet indexes the nodes of a selection.
func nodeSet(s *goquery.Selection) map[*html.Node]bool {
	set := make(map[*html.Node]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		set[n] = true
	}
	return set
}

// uniqueInDocumentOrder drops repeated nodes and sorts the rest by their
// position in the tree.
func uniqueInDocumentOrder(nodes []*html.Node) []*html.Node {
	if len(nodes) == 0 {
		return nil
	}

	wanted := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		wanted[n] = true
	}

	top := nodes[0]
	for top.Parent != nil {
		top = top.Parent
	}

	ordered := make([]*html.Node, 0, len(wanted))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if wanted[n] {
			ordered = append(ordered, n)
			delete(wanted, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(top)

	// Nodes detached from the first node's tree keep their input order.
	for _, n := range nodes {
		if wanted[n] {
			ordered = append(ordered, n)
			delete(wanted, n)
		}
	}
	return ordered
}
