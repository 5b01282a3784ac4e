package cart

import (
	"strings"
	"testing"
)

func TestIsAcceptableName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain product", "Organic Bananas", true},
		{"with size", "Natrel Milk 2% 2 L", true},
		{"padded whitespace", "  Organic \n  Bananas ", true},
		{"long with size", "Extra Creamy Old Fashioned Vanilla Ice Cream Tub 1.5 L", true},
		{"price", "$12.99", false},
		{"price with space", "Sale $ 3", false},
		{"too short", "ab", false},
		{"too long", strings.Repeat("Cheddar ", 12) + "200 g", false},
		{"no letters", "12345", false},
		{"site chrome", "Skip to content", false},
		{"stepper label", "Decrease quantity", false},
		{"section header", "Dairy & Eggs (4)", false},
		{"error banner", "The item could not be deleted", false},
		{"imperative", "Add to cart", false},
		{"prompt", "Please select an option", false},
		{"shipping promo", "Free shipping on orders over 50", false},
		{"sentence", "Your order will arrive soon.", false},
		{"truncated", "Loading...", false},
		{"ellipsis", "Président's Choice Butter…", false},
		{"quoted", `"Best seller"`, false},
		{"banner brand", "Compliments Chipotle Mayo", false},
		{"long without size", "Extra Creamy Old Fashioned Vanilla Bean Ice Cream Family", false},
		{"leading for", "For the whole family", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAcceptableName(tt.in); got != tt.want {
				t.Errorf("IsAcceptableName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsAcceptableName_StableUnderClean(t *testing.T) {
	inputs := []string{
		"Organic Bananas",
		"  Organic Bananas  ",
		"\tDairy &  Eggs (4)\n",
		"Your order   will arrive soon.",
		"ab ",
		"  x  y  ",
	}
	for _, in := range inputs {
		if IsAcceptableName(in) != IsAcceptableName(clean(in)) {
			t.Errorf("IsAcceptableName(%q) disagrees with its cleaned form %q", in, clean(in))
		}
	}
}

func TestScoreName_PrefersProductLikeText(t *testing.T) {
	if a, b := scoreName("Kraft Peanut Butter 1 kg"), scoreName("PEANUT BUTTER"); a <= b {
		t.Errorf("mixed case with size scored %d, all caps scored %d", a, b)
	}
	if a, b := scoreName("Shredded Cheddar Cheese 320 g"), scoreName("Weekly flyer"); a <= b {
		t.Errorf("food term scored %d, generic text scored %d", a, b)
	}
}

func TestBestScored(t *testing.T) {
	got := bestScored([]string{"$12.99", "Remove", "Kraft Peanut Butter 1 kg", "Peanut"})
	if got != "Kraft Peanut Butter 1 kg" {
		t.Errorf("bestScored = %q", got)
	}
	if got := bestScored([]string{"$1.00", "Skip to content"}); got != "" {
		t.Errorf("bestScored over rejected candidates = %q, want empty", got)
	}
}
