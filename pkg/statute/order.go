package statute

import (
	"sort"
	"strings"
	"unicode"
)

// numberToken is one run of a section number: either all digits or none.
type numberToken struct {
	text    string
	numeric bool
}

func tokenizeNumber(number string) []numberToken {
	var tokens []numberToken
	var current strings.Builder
	currentNumeric := false

	for _, character := range number {
		isDigit := unicode.IsDigit(character)
		if current.Len() > 0 && isDigit != currentNumeric {
			tokens = append(tokens, numberToken{text: current.String(), numeric: currentNumeric})
			current.Reset()
		}
		currentNumeric = isDigit
		current.WriteRune(character)
	}
	if current.Len() > 0 {
		tokens = append(tokens, numberToken{text: current.String(), numeric: currentNumeric})
	}
	return tokens
}

// compareDigitRuns compares two digit strings by value without converting,
// so arbitrarily long runs cannot overflow.
func compareDigitRuns(left string, right string) int {
	left = strings.TrimLeft(left, "0")
	right = strings.TrimLeft(right, "0")
	if len(left) != len(right) {
		if len(left) < len(right) {
			return -1
		}
		return 1
	}
	return strings.Compare(left, right)
}

// CompareNumbers orders section numbers naturally: digit runs compare by
// value and sort ahead of text runs in the same position, text runs compare
// lexically, and a number that is a prefix of another sorts first. So "1-2"
// precedes "1-10", which precedes "1-101a".
func CompareNumbers(left string, right string) int {
	leftTokens := tokenizeNumber(left)
	rightTokens := tokenizeNumber(right)

	for index := 0; index < len(leftTokens) && index < len(rightTokens); index++ {
		leftToken := leftTokens[index]
		rightToken := rightTokens[index]

		switch {
		case leftToken.numeric && rightToken.numeric:
			if result := compareDigitRuns(leftToken.text, rightToken.text); result != 0 {
				return result
			}
		case leftToken.numeric:
			return -1
		case rightToken.numeric:
			return 1
		default:
			if result := strings.Compare(leftToken.text, rightToken.text); result != 0 {
				return result
			}
		}
	}

	switch {
	case len(leftTokens) < len(rightTokens):
		return -1
	case len(leftTokens) > len(rightTokens):
		return 1
	}
	// "01" and "1" tie on value; fall back to bytes for a total order.
	return strings.Compare(left, right)
}

// SortSections orders sections by number in place.
func SortSections(sections []Section) {
	sort.SliceStable(sections, func(i, j int) bool {
		return CompareNumbers(sections[i].Number, sections[j].Number) < 0
	})
}

// SortChapters orders chapters by number in place.
func SortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return CompareNumbers(chapters[i].Number, chapters[j].Number) < 0
	})
}

// SortTitles orders titles by number in place.
func SortTitles(titles []Title) {
	sort.SliceStable(titles, func(i, j int) bool {
		return CompareNumbers(titles[i].Number, titles[j].Number) < 0
	})
}
