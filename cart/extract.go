package cart

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/mealmajor/cartsync/models"
)

const maxStepperQuantity = 99

var (
	headingSel     = cascadia.MustCompile(".head__title, h2, h3, h4")
	productLinkSel = cascadia.MustCompile("a[href*='/product/'], a[href*='/item/'], a[href*='/p/']")
	candidateSel   = cascadia.MustCompile("a, span, p, div")
	qtyAttrSel     = cascadia.MustCompile("[data-qty]")
	cartEntrySel   = cascadia.MustCompile("[data-cart-entry]")
	qtyInputSel    = cascadia.MustCompile("input[type='number'], input[name*='qty'], input[name*='quantity']")
	unitDetailsSel = cascadia.MustCompile(".head__unit-details")
	unitFactorSel  = cascadia.MustCompile(".unit-factor")
	qualifierSel   = cascadia.MustCompile("abbr")

	smallNumber   = regexp.MustCompile(`\b\d+\b`)
	// A pack size: a number, possibly decimal, directly followed by a unit.
	// Group 1 is the number, group 2 the unit.
	sizePattern = regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d+(?:[.,]\d+)?)\s*(kg|g|ml|l|lb|oz)\b`)
)

// Extractor turns one item container into a ScrapedItem.
type Extractor struct{}

// Extract reads name, quantity and unit details from c. It returns nil
// when no acceptable name can be found; every other field has a fallback.
func (e Extractor) Extract(c *goquery.Selection, rep *report) *models.ScrapedItem {
	name := e.name(c, rep)
	if name == "" {
		rep.warnf("container skipped: no acceptable product name")
		return nil
	}

	item := &models.ScrapedItem{
		Name:     name,
		Quantity: e.quantity(c, name, rep),
	}
	item.UnitFactor, item.Unit, item.UnitQualifier = e.unitDetails(c, name, rep)
	return item
}

func (e Extractor) name(c *goquery.Selection, rep *report) string {
	if v, ok := attrSelf(c, "data-product-name"); ok {
		if v = clean(v); IsAcceptableName(v) {
			return v
		}
		rep.warnf("data-product-name %q rejected by name filter", v)
	}

	var heading string
	c.FindMatcher(headingSel).EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if t := clean(h.Text()); IsAcceptableName(t) {
			heading = t
			return false
		}
		return true
	})
	if heading != "" {
		return heading
	}

	var link string
	c.FindMatcher(productLinkSel).Each(func(_ int, a *goquery.Selection) {
		if t := clean(a.Text()); IsAcceptableName(t) && len(t) > len(link) {
			link = t
		}
	})
	if link != "" {
		return link
	}

	var candidates []string
	c.FindMatcher(candidateSel).Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.Text())
	})
	return bestScored(candidates)
}

// quantity tries, in order, data-qty, the JSON cart entry, a numeric input
// and the visible stepper value. Anything else yields 1.
func (e Extractor) quantity(c *goquery.Selection, name string, rep *report) int {
	if v, ok := attrSelfOrDescendant(c, "data-qty", qtyAttrSel); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
		rep.warnf("%s: invalid data-qty %q", name, v)
	}

	if v, ok := attrSelfOrDescendant(c, "data-cart-entry", cartEntrySel); ok {
		var entry struct {
			Quantity json.Number `json:"quantity"`
		}
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			if n, err := strconv.Atoi(entry.Quantity.String()); err == nil && n > 0 {
				return n
			}
		}
		rep.warnf("%s: unreadable data-cart-entry", name)
	}

	if in := c.FindMatcher(qtyInputSel).First(); in.Length() > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(in.AttrOr("value", ""))); err == nil && n > 0 {
			return n
		}
	}

	if n, ok := stepperValue(c); ok {
		return n
	}

	rep.warnf("%s: quantity not found, defaulting to 1", name)
	return 1
}

// stepperValue looks for the most local box holding two or more controls
// and a small number, ignoring anything that shows a price.
func stepperValue(c *goquery.Selection) (int, bool) {
	var boxes []string
	consider := func(s *goquery.Selection) {
		if s.FindMatcher(clickableSel).Length() < 2 {
			return
		}
		text := clean(s.Text())
		if pricePattern.MatchString(text) {
			return
		}
		boxes = append(boxes, text)
	}
	consider(c)
	c.FindMatcher(stepperBoxSel).Each(func(_ int, s *goquery.Selection) { consider(s) })

	sort.SliceStable(boxes, func(i, j int) bool { return len(boxes[i]) < len(boxes[j]) })
	for _, text := range boxes {
		if n, ok := stepperQuantity(text); ok {
			return n, true
		}
	}
	return 0, false
}

// stepperQuantity returns the first plausible cart quantity in text.
func stepperQuantity(text string) (int, bool) {
	for _, m := range smallNumber.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err == nil && n > 0 && n <= maxStepperQuantity {
			return n, true
		}
	}
	return 0, false
}

// unitDetails parses the "(190 g avg.)" block. All parts are optional.
func (e Extractor) unitDetails(c *goquery.Selection, name string, rep *report) (factor int, unit, qualifier string) {
	details := c.FindMatcher(unitDetailsSel).First()
	if details.Length() == 0 {
		return 0, "", ""
	}
	text := clean(details.Text())
	if text == "" {
		return 0, "", ""
	}

	if f := details.FindMatcher(unitFactorSel).First(); f.Length() > 0 {
		v := clean(f.Text())
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			factor = n
		} else {
			rep.warnf("%s: invalid unit factor %q", name, v)
		}
	}

	loc := sizePattern.FindStringSubmatchIndex(text)
	if loc != nil {
		unit = strings.ToLower(text[loc[4]:loc[5]])
		if factor == 0 {
			magnitude := text[loc[2]:loc[3]]
			if n, err := strconv.Atoi(magnitude); err == nil && n > 0 {
				factor = n
			} else {
				rep.warnf("%s: unusable unit magnitude %q", name, magnitude)
			}
		}
	}

	if q := details.FindMatcher(qualifierSel).First(); q.Length() > 0 {
		qualifier = clean(q.Text())
	} else if loc != nil {
		if rest := strings.Fields(strings.Trim(text[loc[5]:], "() ")); len(rest) > 0 {
			qualifier = strings.TrimRight(rest[0], ")")
		}
	}

	if factor == 0 && unit == "" {
		rep.warnf("%s: unit details %q not understood", name, text)
	}
	return factor, unit, qualifier
}

// attrSelf returns an attribute of the container element itself.
func attrSelf(c *goquery.Selection, attr string) (string, bool) {
	return c.First().Attr(attr)
}

// attrSelfOrDescendant prefers the container's own attribute and falls
// back to the first descendant carrying it.
func attrSelfOrDescendant(c *goquery.Selection, attr string, sel cascadia.Selector) (string, bool) {
	if v, ok := attrSelf(c, attr); ok {
		return v, true
	}
	return c.FindMatcher(sel).First().Attr(attr)
}
