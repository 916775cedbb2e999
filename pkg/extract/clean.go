package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	reBreak          = regexp.MustCompile(`(?i)<br\s*/?>`)
	reParagraphOpen  = regexp.MustCompile(`(?i)<p\b[^>]*>`)
	reParagraphClose = regexp.MustCompile(`(?i)</p>`)
	reTag            = regexp.MustCompile(`<[^>]+>`)
	reHorizontalRun  = regexp.MustCompile(`[ \t\f\v]+`)
	reLinePadding    = regexp.MustCompile(` *\n *`)
	reMultiNewline   = regexp.MustCompile(`\n{3,}`)
	reAnyWhitespace  = regexp.MustCompile(`\s+`)
)

// StripHTML removes markup from a fragment, turning <br> into a line break
// and <p> into a paragraph break, then decodes entities.
func StripHTML(text string) string {
	text = reBreak.ReplaceAllString(text, "\n")
	text = reParagraphOpen.ReplaceAllString(text, "\n\n")
	text = reParagraphClose.ReplaceAllString(text, "")
	text = reTag.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}

// NormalizeWhitespace collapses horizontal whitespace, strips padding around
// line breaks, and allows at most one blank line between paragraphs.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = reHorizontalRun.ReplaceAllString(text, " ")
	text = reLinePadding.ReplaceAllString(text, "\n")
	text = reMultiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// CleanText strips markup and normalizes whitespace.
func CleanText(text string) string {
	return NormalizeWhitespace(StripHTML(text))
}

// CleanSectionNumber removes section symbols, collapses inner whitespace, and
// drops trailing separator punctuation, so "§ 1-1-10." becomes "1-1-10".
func CleanSectionNumber(number string) string {
	number = strings.ReplaceAll(number, "§", "")
	number = reAnyWhitespace.ReplaceAllString(number, " ")
	number = strings.TrimSpace(number)
	return strings.TrimRight(number, ".-:")
}
