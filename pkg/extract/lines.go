package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// textLine is one visual line of a document: text between two block
// boundaries or <br> elements.
type textLine struct {
	text string
	// candidate is true when the line's nearest block ancestor is one that
	// may carry a section number.
	candidate bool
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "body": true,
	"center": true, "dd": true, "details": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "form": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tbody": true, "td": true, "tfoot": true,
	"th": true, "thead": true, "tr": true, "ul": true,
}

// candidateTags are the block elements whose lines are tried against the
// section number rules. Inline span/b/strong inherit from their block.
var candidateTags = map[string]bool{
	"p": true, "div": true, "li": true, "td": true,
	"h2": true, "h3": true, "h4": true, "h5": true,
	"dt": true, "dd": true,
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"head": true, "nav": true, "footer": true, "iframe": true, "svg": true,
}

var skippedClasses = []string{"breadcrumb", "pagination", "sidebar"}

type lineCollector struct {
	lines      []textLine
	current    strings.Builder
	blockStack []string
	excluded   map[*html.Node]bool
}

func newLineCollector(excluded ...*html.Node) *lineCollector {
	collector := &lineCollector{excluded: make(map[*html.Node]bool, len(excluded))}
	for _, node := range excluded {
		collector.excluded[node] = true
	}
	return collector
}

// collectLines walks the node trees in document order and returns their
// non-empty lines.
func collectLines(nodes []*html.Node, excluded ...*html.Node) []textLine {
	collector := newLineCollector(excluded...)
	for _, node := range nodes {
		collector.walk(node)
	}
	collector.flush()
	return collector.lines
}

// nodeText returns the text of the nodes with one line per visual line.
func nodeText(nodes []*html.Node, excluded ...*html.Node) string {
	return joinLines(collectLines(nodes, excluded...))
}

func joinLines(lines []textLine) string {
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		texts = append(texts, line.text)
	}
	return strings.Join(texts, "\n")
}

func (collector *lineCollector) flush() {
	text := NormalizeWhitespace(collector.current.String())
	collector.current.Reset()
	if text == "" {
		return
	}

	candidate := false
	if depth := len(collector.blockStack); depth > 0 {
		candidate = candidateTags[collector.blockStack[depth-1]]
	}
	for _, part := range strings.Split(text, "\n") {
		if part = strings.TrimSpace(part); part != "" {
			collector.lines = append(collector.lines, textLine{text: part, candidate: candidate})
		}
	}
}

func (collector *lineCollector) walk(node *html.Node) {
	if collector.excluded[node] {
		return
	}

	switch node.Type {
	case html.TextNode:
		collector.current.WriteString(node.Data)
		return
	case html.DocumentNode:
		collector.walkChildren(node)
		return
	case html.ElementNode:
	default:
		return
	}

	tag := strings.ToLower(node.Data)
	if skippedTags[tag] || hasSkippedClass(node) {
		return
	}
	if tag == "br" {
		collector.flush()
		return
	}

	if blockTags[tag] {
		collector.flush()
		collector.blockStack = append(collector.blockStack, tag)
		collector.walkChildren(node)
		collector.flush()
		collector.blockStack = collector.blockStack[:len(collector.blockStack)-1]
		return
	}

	startsLine := strings.TrimSpace(collector.current.String()) == ""
	collector.walkChildren(node)

	// A bold lead-in ending in a period is a catchline: "§ 5. Short title."
	if startsLine && (tag == "b" || tag == "strong") &&
		strings.HasSuffix(strings.TrimSpace(collector.current.String()), ".") {
		collector.flush()
	}
}

func (collector *lineCollector) walkChildren(node *html.Node) {
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collector.walk(child)
	}
}

func hasSkippedClass(node *html.Node) bool {
	for _, attribute := range node.Attr {
		if attribute.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attribute.Val) {
			for _, skipped := range skippedClasses {
				if class == skipped {
					return true
				}
			}
		}
	}
	return false
}
