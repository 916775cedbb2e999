package bulk

import (
	"io"

	"github.com/coolbeans/statutes/pkg/extract"
	"github.com/coolbeans/statutes/pkg/statute"
)

// ParseNestedXML reads a single-file code in which sections sit inside
// chapter (or article) elements inside title elements. Numbers and headings
// come from <num>/<heading> children or number/heading attributes. A title
// whose sections are not wrapped in chapters gets one "General Provisions"
// chapter.
func ParseNestedXML(reader io.Reader) ([]statute.Title, error) {
	root, err := parseXMLTree(reader)
	if err != nil {
		return nil, err
	}

	titleNodes := root.descendants("title")
	if root.name == "title" || len(titleNodes) == 0 {
		titleNodes = []*xmlNode{root}
	}

	var titles []statute.Title
	for _, titleNode := range titleNodes {
		number, heading := nodeLabel(titleNode)
		titleKey := number
		if titleKey == "" {
			titleKey = heading
		}
		title := statute.Title{ID: statute.TitleID(titleKey), Number: number, Heading: heading}

		chapterNodes := titleNode.descendants("chapter")
		if len(chapterNodes) == 0 {
			chapterNodes = titleNode.descendants("article")
		}
		for _, chapterNode := range chapterNodes {
			chapterNumber, chapterHeading := nodeLabel(chapterNode)
			chapterKey := chapterNumber
			if chapterKey == "" {
				chapterKey = chapterHeading
			}
			title.AddChapter(statute.Chapter{
				ID:       statute.ChapterID(chapterKey),
				Number:   chapterNumber,
				Heading:  chapterHeading,
				Sections: nestedSections(chapterNode),
			})
		}

		if len(title.Chapters) == 0 {
			chapter := statute.NewChapter("1", "General Provisions")
			chapter.Sections = nestedSections(titleNode)
			title.AddChapter(chapter)
		}
		if len(title.Chapters) > 0 {
			titles = append(titles, title)
		}
	}

	return titles, nil
}

func nestedSections(parent *xmlNode) []statute.Section {
	var sections []statute.Section
	for _, sectionNode := range parent.descendants("section") {
		number := sectionNode.childText("num")
		if number == "" {
			number = sectionNode.attr("number")
		}
		number = extract.CleanSectionNumber(number)
		if number == "" {
			continue
		}
		sections = append(sections, statute.NewSection(number,
			sectionNode.childText("heading"),
			extract.NormalizeWhitespace(sectionBodyText(sectionNode))))
	}
	return sections
}

// sectionBodyText is the section's text without its number and heading.
func sectionBodyText(sectionNode *xmlNode) string {
	body := &xmlNode{name: sectionNode.name}
	for _, item := range sectionNode.items {
		if item.node != nil && (item.node.name == "num" || item.node.name == "heading") {
			continue
		}
		body.items = append(body.items, item)
	}
	return body.innerText()
}

func nodeLabel(node *xmlNode) (string, string) {
	number := node.childText("num")
	if number == "" {
		number = node.attr("number")
	}
	heading := node.childText("heading")
	if heading == "" {
		heading = node.attr("heading")
	}
	return number, heading
}
