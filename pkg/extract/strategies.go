package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/coolbeans/statutes/pkg/statute"
	"golang.org/x/net/html"
)

const (
	sectionContainerSelector = "div.codes-section, div.statute-section, section.statute"
	containerNoiseSelector   = "nav, .pagination, .breadcrumb, .sidebar, script, style"
	historySelector          = ".history, .source-note"
	headingSelector          = "h1, h2, h3, h4, h5"
	contentSelector          = ".codes-body, .content, main, article"
)

var (
	structuredHeadingPattern = regexp.MustCompile(`(?s)^(?:§|Section)\s*([\d\-\.a-zA-Z]+)\s*[-.\s]*(.*)`)
	headingSeparatorPattern  = regexp.MustCompile(`\s*[-–—.]\s*`)
)

// extractStructured reads sections from containers the publisher marks as
// sections, taking number and heading from the container's heading element.
func (engine *Engine) extractStructured(document *goquery.Document) []statute.Section {
	var sections []statute.Section
	seen := numberTracker{}

	document.Find(sectionContainerSelector).Each(func(_ int, container *goquery.Selection) {
		container = container.Clone()
		container.Find(containerNoiseSelector).Remove()

		headingElement := container.Find("h2, h3, h4").First()
		if headingElement.Length() == 0 {
			return
		}
		number, heading := splitStructuredHeading(nodeText(headingElement.Nodes))
		if !seen.accept(number) {
			return
		}
		headingElement.Remove()

		section := statute.NewSection(number, heading, "")

		historyElement := container.Find(historySelector).First()
		if historyElement.Length() > 0 {
			section.History = NormalizeWhitespace(nodeText(historyElement.Nodes))
			historyElement.Remove()
		}

		container.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			href := link.AttrOr("href", "")
			if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
				section.SourceURL = href
				return false
			}
			return true
		})

		section.Text = NormalizeWhitespace(nodeText(container.Nodes))
		sections = append(sections, section)
	})

	return sections
}

// splitStructuredHeading returns "" as the number when the heading carries
// no plausible section number.
func splitStructuredHeading(headingText string) (string, string) {
	headingText = strings.TrimSpace(headingText)
	number, heading := "", ""
	if match := structuredHeadingPattern.FindStringSubmatch(headingText); match != nil {
		number, heading = CleanSectionNumber(match[1]), strings.TrimSpace(match[2])
	} else {
		parts := headingSeparatorPattern.Split(headingText, 2)
		number = CleanSectionNumber(parts[0])
		if len(parts) > 1 {
			heading = strings.TrimSpace(parts[1])
		}
	}
	if !plausibleNumber(number) {
		return "", heading
	}
	return number, heading
}

// extractLines walks the document's lines in order. A candidate line matching
// a rule opens a section; following lines up to the next accepted or refused
// header become its body.
func (engine *Engine) extractLines(document *goquery.Document) []statute.Section {
	var sections []statute.Section
	var bodyLines []string
	open := false
	seen := numberTracker{}

	closeSection := func() {
		if !open {
			return
		}
		current := &sections[len(sections)-1]
		current.Text = NormalizeWhitespace(strings.Join(append([]string{current.Text}, bodyLines...), "\n"))
		bodyLines = nil
		open = false
	}

	for _, line := range collectLines(document.Nodes) {
		if line.candidate && utf8.RuneCountInString(line.text) >= MinLineLength {
			if number, rest, matched := engine.matchLine(line.text); matched {
				closeSection()
				if !seen.accept(number) {
					continue
				}
				heading, body := splitHeading(rest)
				sections = append(sections, statute.NewSection(number, heading, body))
				open = true
				continue
			}
		}
		if open {
			bodyLines = append(bodyLines, line.text)
		}
	}
	closeSection()

	return sections
}

// extractHeadings looks for numbered heading elements and collects body text
// from the sibling blocks that follow each one. A heading with no body is not
// taken as a section.
func (engine *Engine) extractHeadings(document *goquery.Document) []statute.Section {
	var sections []statute.Section
	seen := numberTracker{}

	document.Find(headingSelector).Each(func(_ int, headingElement *goquery.Selection) {
		number, rest, matched := engine.matchLine(nodeText(headingElement.Nodes))
		if !matched {
			return
		}

		var bodyParts []string
		for sibling := headingElement.Next(); sibling.Length() > 0 && !sibling.Is(headingSelector); sibling = sibling.Next() {
			if text := nodeText(sibling.Nodes); text != "" {
				bodyParts = append(bodyParts, text)
			}
			if len(bodyParts) >= MaxSiblingBlocks {
				break
			}
		}
		if len(bodyParts) == 0 || !seen.accept(number) {
			return
		}

		heading, leading := splitHeading(rest)
		if leading != "" {
			bodyParts = append([]string{leading}, bodyParts...)
		}
		sections = append(sections, statute.NewSection(number, heading, NormalizeWhitespace(strings.Join(bodyParts, "\n"))))
	})

	return sections
}

// extractWholeDocument treats the page as a single section named by its first
// heading, with the main content area as body.
func (engine *Engine) extractWholeDocument(document *goquery.Document) []statute.Section {
	headingElement := document.Find("h1").First()
	if headingElement.Length() == 0 {
		headingElement = document.Find(headingSelector).First()
	}
	if headingElement.Length() == 0 {
		return nil
	}

	number, rest, matched := engine.matchLine(nodeText(headingElement.Nodes))
	if !matched || !(numberTracker{}).accept(number) {
		return nil
	}

	body := document.Find(contentSelector).First()
	if body.Length() == 0 {
		body = document.Find("body")
	}
	excluded := append([]*html.Node(nil), headingElement.Nodes...)
	text := NormalizeWhitespace(nodeText(body.Nodes, excluded...))
	if text == "" {
		return nil
	}

	heading, _ := splitHeading(rest)
	return []statute.Section{statute.NewSection(number, heading, text)}
}
