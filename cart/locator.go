package cart

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Locator finds item containers below root. Implementations must be pure
// functions of the tree and return nodes that are descendants of root.
type Locator interface {
	Name() string
	Locate(root *goquery.Selection) []*html.Node
}

// Strategy names reported in scrape results.
const (
	StrategyAttribute = "attribute"
	StrategyStepper   = "stepper"
	StrategyImage     = "image"
)

const (
	stepperClimbHops = 8
	imageClimbHops   = 10

	// Product photos are at least this many pixels on each side; smaller
	// images are icons and badges.
	minImageSide = 40
)

var (
	productNameSel = cascadia.MustCompile("[data-product-name]")
	clickableSel   = cascadia.MustCompile("button, [role='button']")
	stepperBoxSel  = cascadia.MustCompile("div, span")
	imageSel       = cascadia.MustCompile("img")

	anyNumber = regexp.MustCompile(`\b\d+\b`)
)

// DefaultLocators returns the locator cascade in priority order.
func DefaultLocators() Cascade {
	return Cascade{AttributeLocator{}, StepperLocator{}, ImageLocator{}}
}

// Cascade runs locators in order; the first one that finds anything wins.
type Cascade []Locator

// Locate returns the winning strategy name and its containers, unique and
// in document order. Both are empty when no locator matches.
func (c Cascade) Locate(root *goquery.Selection) (string, []*html.Node) {
	for _, l := range c {
		if nodes := uniqueInDocumentOrder(l.Locate(root)); len(nodes) > 0 {
			return l.Name(), nodes
		}
	}
	return "", nil
}

// AttributeLocator selects elements that carry a data-product-name
// attribute. It is exact when the markup cooperates.
type AttributeLocator struct{}

func (AttributeLocator) Name() string { return StrategyAttribute }

func (AttributeLocator) Locate(root *goquery.Selection) []*html.Node {
	return root.FindMatcher(productNameSel).Nodes
}

// StepperLocator anchors on quantity steppers: a decrement and increment
// control around a small number. Each stepper is walked up to the nearest
// ancestor that holds both an image and a price.
type StepperLocator struct{}

func (StepperLocator) Name() string { return StrategyStepper }

func (StepperLocator) Locate(root *goquery.Selection) []*html.Node {
	var rows []*html.Node
	roots := nodeSet(root)
	addRow := func(group *goquery.Selection) {
		if _, ok := stepperQuantity(clean(group.Text())); !ok {
			return
		}
		if row := climbToRow(group.Get(0), roots, stepperClimbHops); row != nil {
			rows = append(rows, row)
		}
	}

	// Labelled controls first.
	root.FindMatcher(clickableSel).Each(func(_ int, btn *goquery.Selection) {
		if !isDecrement(btn) {
			return
		}
		group := btn.Parent()
		if group.Length() == 0 {
			return
		}
		hasInc := false
		group.FindMatcher(clickableSel).EachWithBreak(func(_ int, b *goquery.Selection) bool {
			hasInc = isIncrement(b)
			return !hasInc
		})
		if hasInc {
			addRow(group)
		}
	})
	if len(rows) > 0 {
		return rows
	}

	// Unlabelled steppers: a box with two or more controls and a bare number.
	root.FindMatcher(stepperBoxSel).Each(func(_ int, box *goquery.Selection) {
		text := clean(box.Text())
		if !anyNumber.MatchString(text) || pricePattern.MatchString(text) {
			return
		}
		if box.FindMatcher(clickableSel).Length() < 2 {
			return
		}
		addRow(box)
	})
	return rows
}

func isDecrement(s *goquery.Selection) bool {
	label := strings.ToLower(s.AttrOr("aria-label", ""))
	if containsAny(label, "decrease", "minus", "diminuer") {
		return true
	}
	switch clean(s.Text()) {
	case "-", "−", "–":
		return true
	}
	return false
}

func isIncrement(s *goquery.Selection) bool {
	label := strings.ToLower(s.AttrOr("aria-label", ""))
	if containsAny(label, "increase", "plus", "augmenter") {
		return true
	}
	return clean(s.Text()) == "+"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ImageLocator anchors on product photos and climbs to the nearest
// ancestor that also shows a price.
type ImageLocator struct{}

func (ImageLocator) Name() string { return StrategyImage }

func (ImageLocator) Locate(root *goquery.Selection) []*html.Node {
	var rows []*html.Node
	roots := nodeSet(root)
	root.FindMatcher(imageSel).Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}
		if tooSmall(img, "width") || tooSmall(img, "height") {
			return
		}
		if row := climbToRow(img.Get(0), roots, imageClimbHops); row != nil {
			rows = append(rows, row)
		}
	})
	return rows
}

// tooSmall reports whether a declared dimension is below minImageSide.
// Undeclared or unparseable sizes pass.
func tooSmall(img *goquery.Selection, attr string) bool {
	v, ok := img.Attr(attr)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return false
	}
	return n < minImageSide
}
