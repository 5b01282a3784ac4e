package cart

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minNameLen = 3
	maxNameLen = 90

	// Names longer than this must carry a size or count to be trusted.
	longNameLen = 40
)

// blockedPhrases are lower-case fragments of site chrome, promotions and
// error banners that surround the cart lines.
var blockedPhrases = []string{
	"skip to content",
	"your time slot",
	"reserved",
	"savings",
	"enroll",
	"my cart",
	"product is in the cart",
	"decrease quantity",
	"increase quantity",
	"trigger",
	"you may also be interested",
	"important",
	"newsletter",
	"delivery pass",
	"substitution",
	"metro",
	"close",
	"error occurred",
	"for a better browsing",
	"specify an option",
	"free shipping",
	"activated",
	"tip amount",
	"remains unchanged",
	"could not be deleted",
	"browsing experience",
	"add the product",
	"immediately activated",
	"irrésistible",
	"the item could",
	"experience, th",
	"take our survey",
}

var blockedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^the `),
	regexp.MustCompile(`(?i)experience`),
	regexp.MustCompile(`(?i)specify.*option`),
	regexp.MustCompile(`(?i)shipping`),
	regexp.MustCompile(`(?i)deleted?`),
	regexp.MustCompile(`(?i)unchanged`),
	regexp.MustCompile(`(?i)activated?`),
	regexp.MustCompile(`(?i)tip\s+amount`),
	regexp.MustCompile(`(?i)for\s+a\s+better`),
	regexp.MustCompile(`(?i)could\s+not\s+be`),
	regexp.MustCompile(`(?i)immediately\s+activated`),
	regexp.MustCompile(`\.\.\.\s*$`),
	regexp.MustCompile(`^['"]`),
	regexp.MustCompile(`(?i)irrésistible`),
	regexp.MustCompile(`(?i)adobo`),
	regexp.MustCompile(`(?i)chipotle`),
	regexp.MustCompile(`(?i)^for\s+`),
	regexp.MustCompile(`(?i)browsing`),
}

var (
	pricePattern     = regexp.MustCompile(`\$\s*\d`)
	letterPattern    = regexp.MustCompile(`[a-zA-Z]`)
	sectionCount     = regexp.MustCompile(`\(\d+\)`)
	measurePattern   = regexp.MustCompile(`(?i)\d+\s*(g|ml|kg|l|oz|lb|pack|count|ct|%)`)
	sentencePattern  = regexp.MustCompile(`^[A-Z][^.!?]*[.!?]\s*$`)
	imperativePrefix = regexp.MustCompile(`(?i)^(please|click|select|choose|add|remove|update)`)
)

// IsAcceptableName reports whether s could plausibly be a product name.
// The check runs on the cleaned form of s, so IsAcceptableName(s) and
// IsAcceptableName(clean(s)) always agree.
func IsAcceptableName(s string) bool {
	s = clean(s)

	n := utf8.RuneCountInString(s)
	if n < minNameLen || n > maxNameLen {
		return false
	}
	if !letterPattern.MatchString(s) || pricePattern.MatchString(s) {
		return false
	}
	if strings.HasSuffix(s, "...") || strings.HasSuffix(s, "…") || strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "'") {
		return false
	}

	lower := strings.ToLower(s)
	for _, phrase := range blockedPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	for _, re := range blockedPatterns {
		if re.MatchString(s) {
			return false
		}
	}

	// "Dairy & Eggs (4)" style section headers.
	if strings.Contains(s, "&") && sectionCount.MatchString(s) {
		return false
	}
	if n > longNameLen && !measurePattern.MatchString(s) {
		return false
	}
	if sentencePattern.MatchString(s) || imperativePrefix.MatchString(s) {
		return false
	}
	return true
}
