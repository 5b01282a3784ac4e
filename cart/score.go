package cart

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	sizeMarker = regexp.MustCompile(`(?i)\d+\s*(g|ml|kg|l|oz|lb|pack|count|ct)\b`)
	foodTerms  = regexp.MustCompile(`(?i)cheese|sauce|banana|orange|bread|milk|yogurt|chicken|beef|pasta|rice|blend|tacos|nachos|cheddar|shredded`)
)

// scoreName ranks a candidate name. Callers filter with IsAcceptableName
// first; the score only orders survivors.
func scoreName(s string) int {
	score := 0

	words := len(strings.Fields(s))
	if words > 6 {
		words = 6
	}
	score += words * 5

	var upper, lower bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	switch {
	case upper && lower:
		score += 15
	case upper:
		score -= 25
	}

	if sizeMarker.MatchString(s) {
		score += 30
	}
	if foodTerms.MatchString(s) {
		score += 20
	}

	if strings.Contains(s, "&") {
		score -= 15
	}
	if sectionCount.MatchString(s) {
		score -= 15
	}

	if n := utf8.RuneCountInString(s); n >= 8 && n <= 55 {
		score += 10
	}
	return score
}

// bestScored returns the highest scoring acceptable candidate. Ties keep
// the earliest candidate.
func bestScored(candidates []string) string {
	best, bestScore := "", 0
	for _, c := range candidates {
		c = clean(c)
		if !IsAcceptableName(c) {
			continue
		}
		if s := scoreName(c); best == "" || s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}
