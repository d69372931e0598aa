package source

import (
	"regexp"
	"strconv"
	"strings"
)

// usdToRub is the fixed, deliberately approximate conversion rate applied to
// budgets quoted in dollars. Precision does not matter here: the value only
// feeds threshold comparisons measured in tens of thousands of rubles.
const usdToRub = 90

var (
	numberRe    = regexp.MustCompile(`\d+`)
	thousandsRe = regexp.MustCompile(`,(\d{3})`)
	shorthandRe = regexp.MustCompile(`(\d+)\s*[кk]`)
)

// ParseBudget extracts a best-effort integer ruble value from a
// human-readable budget string. Returns 0 when no amount can be recovered
// ("Договорная", empty, prose-only).
//
// Handles thousands separators (space, NBSP, comma), currency markers
// (₽/руб/$/usd), and the "15к"/"15k" shorthand. For ranges it takes the
// lower bound (first number).
func ParseBudget(text string) int {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0
	}

	usd := strings.Contains(t, "$") || strings.Contains(t, "usd")

	// Collapse separators so "45 000" and "45,000" read as one number.
	t = strings.ReplaceAll(t, " ", "")
	t = strings.ReplaceAll(t, " ", "")
	t = thousandsRe.ReplaceAllString(t, "$1")

	value := 0
	if m := shorthandRe.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		value = n * 1000
	} else if m := numberRe.FindString(t); m != "" {
		value, _ = strconv.Atoi(m)
	}

	if usd {
		value *= usdToRub
	}
	return value
}
