// Package extract recovers statute sections from HTML whose markup schema is
// not known in advance, trying a fixed sequence of heuristic strategies.
package extract

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/coolbeans/statutes/pkg/statute"
)

const (
	// MinLineLength is the shortest line considered as a section header.
	MinLineLength = 5

	// MaxHeadingLength caps a heading taken from the first line of a match.
	MaxHeadingLength = 300

	// LongHeadingLength is the heading length past which a run-on heading is
	// split at its first period beyond LongHeadingSplitOffset.
	LongHeadingLength      = 150
	LongHeadingSplitOffset = 30

	// MaxSiblingBlocks bounds body collection after a heading element.
	MaxSiblingBlocks = 50
)

// Strategy is one way of finding sections in a document.
type Strategy struct {
	Name    string
	Extract func(engine *Engine, document *goquery.Document) []statute.Section
}

// Engine extracts sections using ordered rules and strategies. It holds no
// per-document state and is safe for concurrent use.
type Engine struct {
	rules      []Rule
	strategies []Strategy
}

// NewEngine creates an engine with the default rules followed by any extra
// rules given.
func NewEngine(extraRules ...Rule) *Engine {
	return &Engine{
		rules:      append(DefaultRules(), extraRules...),
		strategies: DefaultStrategies(),
	}
}

// Rules returns a copy of the engine's rules in priority order.
func (engine *Engine) Rules() []Rule {
	return append([]Rule(nil), engine.rules...)
}

// DefaultStrategies returns the fallback order: explicit section containers,
// numbered lines, numbered heading elements, then the page as one section.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "structured", Extract: (*Engine).extractStructured},
		{Name: "lines", Extract: (*Engine).extractLines},
		{Name: "headings", Extract: (*Engine).extractHeadings},
		{Name: "whole-document", Extract: (*Engine).extractWholeDocument},
	}
}

// Extract returns the sections of the first strategy that finds any. An
// empty result is normal for pages that carry no statute text.
func (engine *Engine) Extract(document *goquery.Document) []statute.Section {
	sections, _ := engine.ExtractWithStrategy(document)
	return sections
}

// ExtractWithStrategy is Extract that also names the strategy that produced
// the sections, or "" when none did.
func (engine *Engine) ExtractWithStrategy(document *goquery.Document) ([]statute.Section, string) {
	for _, strategy := range engine.strategies {
		if sections := strategy.Extract(engine, document); len(sections) > 0 {
			return sections, strategy.Name
		}
	}
	return nil, ""
}

// ExtractHTML parses a document and extracts its sections.
func (engine *Engine) ExtractHTML(reader io.Reader) ([]statute.Section, error) {
	document, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return engine.Extract(document), nil
}

// matchLine runs the rules against one line. matched reports whether any rule
// claimed the line; number and rest are only meaningful when it did.
func (engine *Engine) matchLine(line string) (number string, rest string, matched bool) {
	for _, rule := range engine.rules {
		match := rule.Pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		rawNumber, remainder, ok := rule.Split(match)
		if !ok {
			continue
		}
		return CleanSectionNumber(rawNumber), remainder, true
	}
	return "", "", false
}

// numberTracker enforces per-document number acceptance.
type numberTracker map[string]bool

// accept records number and reports whether it may start a section.
// Duplicates and overlong numbers are refused.
func (seen numberTracker) accept(number string) bool {
	if number == "" || seen[number] || utf8.RuneCountInString(number) > MaxNumberLength {
		return false
	}
	seen[number] = true
	return true
}

var sentenceBreakPattern = regexp.MustCompile(`\.\s+["“(]?\p{Lu}`)

// splitHeading takes the heading from the first line of rest. A run-on
// heading longer than LongHeadingLength is cut at its first period past
// LongHeadingSplitOffset. A line with no following body is cut at its first
// sentence break, so "Short title. This chapter..." yields a heading and a
// body. Text cut from the heading leads the returned body.
func splitHeading(rest string) (heading string, body string) {
	firstLine, remainder, _ := strings.Cut(rest, "\n")
	heading = strings.TrimSpace(firstLine)
	body = strings.TrimSpace(remainder)

	cut := -1
	if utf8.RuneCountInString(heading) > LongHeadingLength {
		offset := byteOffsetOfRune(heading, LongHeadingSplitOffset)
		if dot := strings.Index(heading[offset:], "."); dot >= 0 {
			cut = offset + dot + 1
		}
	}
	if cut < 0 && body == "" {
		if location := sentenceBreakPattern.FindStringIndex(heading); location != nil {
			cut = location[0] + 1
		}
	}

	if cut >= 0 {
		tail := strings.TrimSpace(heading[cut:])
		heading = strings.TrimSpace(heading[:cut])
		if body != "" {
			tail += "\n" + body
		}
		body = strings.TrimSpace(tail)
	}
	return truncateRunes(heading, MaxHeadingLength), body
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return text[:byteOffsetOfRune(text, limit)]
}

func byteOffsetOfRune(text string, runeIndex int) int {
	count := 0
	for offset := range text {
		if count == runeIndex {
			return offset
		}
		count++
	}
	return len(text)
}

// AttachSourceURL sets sourceURL on sections that have none.
func AttachSourceURL(sections []statute.Section, sourceURL string) {
	for index := range sections {
		if sections[index].SourceURL == "" {
			sections[index].SourceURL = sourceURL
		}
	}
}
