package extract

import (
	"regexp"
	"strings"
)

// MaxNumberLength bounds an accepted section number. Longer tokens are
// almost always heading text or addresses swallowed by a loose pattern.
const MaxNumberLength = 30

// Rule pairs a section-number pattern with the function that splits a match
// into the number and the text following it.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	// Split returns the raw number and the remainder of the line. ok is false
	// when the match is not a section header after all.
	Split func(match []string) (number string, rest string, ok bool)
}

// NewRule compiles a line-anchored rule whose first group is the number and
// second group the remainder.
func NewRule(name string, pattern string) Rule {
	return Rule{
		Name:    name,
		Pattern: regexp.MustCompile(`(?s)^` + pattern),
		Split:   splitNumberAndRest,
	}
}

// DefaultRules returns the built-in rules in priority order. The first rule
// that matches a line decides where its number ends.
func DefaultRules() []Rule {
	return []Rule{
		NewRule("section-symbol", `(?:§+\s*)([\d\-\.a-zA-Z:]+)\s*[.\-–—:\s]+(.*)`),
		NewRule("section-upper", `SECTION\s+([\d\-\.a-zA-Z:]+)\s*[.\-–—:\s]+(.*)`),
		NewRule("nevada-citation", `NRS\s+([\d\.]+[A-Z]?)\s+(.*)`),
		NewRule("section-word", `Sec(?:tion)?\.?\s*([\d\-\.a-zA-Z:]+)\s*[.\-–—:\s]+(.*)`),
		NewRule("dashed-numeric", `([\d]+[\-\.]\d[\d\-\.a-zA-Z]*)\s*[.\-–—:\s]+(.*)`),
		NewRule("citation-code", `(\d{1,3}\.\d{3,}[a-zA-Z]?)\s*[.\s]+(.*)`),
		NewRule("article", `Art(?:icle)?\.?\s*([\d\-\.a-zA-Z]+)\s*[.\-–—:\s]+(.*)`),
	}
}

var romanNumeralPattern = regexp.MustCompile(`^[IVXLCDM]+$`)

func splitNumberAndRest(match []string) (string, string, bool) {
	if len(match) < 3 {
		return "", "", false
	}
	number := match[1]
	if !plausibleNumber(CleanSectionNumber(number)) {
		return "", "", false
	}
	return number, match[2], true
}

// plausibleNumber rejects tokens such as "retary" that a "Sec" prefix pulls
// out of ordinary words. A number carries a digit or is a Roman numeral.
func plausibleNumber(number string) bool {
	if strings.ContainsAny(number, "0123456789") {
		return true
	}
	return romanNumeralPattern.MatchString(number)
}
