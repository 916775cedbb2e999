package bulk

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/coolbeans/statutes/pkg/extract"
	"github.com/coolbeans/statutes/pkg/statute"
)

// SectionLayout describes an archive that stores one XML file per section
// under titles/<n>/sections/*.xml, with an optional titles/<n>/index.xml
// carrying the title heading.
type SectionLayout struct {
	// SectionURLBase, when set, yields each section's source URL as
	// SectionURLBase + number + ".html".
	SectionURLBase string
	Logger         *slog.Logger
}

var reLeadingDigits = regexp.MustCompile(`^\d+`)

// ParseSectionXML reads one section file. It reports false when the file
// has no section number.
func ParseSectionXML(reader io.Reader) (statute.Section, bool, error) {
	root, err := parseXMLTree(reader)
	if err != nil {
		return statute.Section{}, false, err
	}

	number := root.childText("num")
	if number == "" {
		return statute.Section{}, false, nil
	}

	var parts []string
	collectSectionText(root, &parts, 0)

	section := statute.NewSection(number, root.childText("heading"),
		extract.NormalizeWhitespace(strings.Join(parts, "\n\n")))
	section.History = sectionHistory(root)
	return section, true, nil
}

// collectSectionText gathers <text> and numbered <para> content, indenting
// nested paragraphs by depth.
func collectSectionText(node *xmlNode, parts *[]string, depth int) {
	indent := strings.Repeat("  ", max(0, depth-1))

	switch node.name {
	case "text":
		if text := node.innerText(); text != "" {
			*parts = append(*parts, indent+text)
		}
	case "para":
		paragraphNumber := node.childText("num")
		if paragraphNumber != "" {
			paragraphNumber += " "
		}
		if text := node.childText("text"); text != "" {
			*parts = append(*parts, indent+paragraphNumber+text)
		}
		for _, nested := range node.childrenNamed("para") {
			collectSectionText(nested, parts, depth+1)
		}
	case "section", "container":
		for _, child := range node.children {
			collectSectionText(child, parts, depth)
		}
	}
}

func sectionHistory(root *xmlNode) string {
	annotations := root.child("annotations")
	if annotations == nil {
		return ""
	}
	var entries []string
	for _, annotation := range annotations.childrenNamed("annotation") {
		if annotation.attr("type") != "History" {
			continue
		}
		if text := annotation.innerText(); text != "" {
			entries = append(entries, text)
		}
	}
	return strings.Join(entries, "; ")
}

// ChapterForSection derives the chapter from a section number of the form
// <title>-<digits>...: up to three digits give the first digit, longer runs
// drop the last two ("1-101" is chapter 1, "1-1501" is chapter 15).
func ChapterForSection(number string) string {
	_, remainder, found := strings.Cut(number, "-")
	if !found {
		return "1"
	}
	digits := reLeadingDigits.FindString(remainder)
	switch {
	case digits == "":
		return "1"
	case len(digits) <= 3:
		return digits[:1]
	default:
		return digits[:len(digits)-2]
	}
}

// FindTitlesDir locates the directory holding numbered title directories.
func FindTitlesDir(root string) (string, bool) {
	candidates := []string{
		filepath.Join(root, "us", "dc", "council", "code", "titles"),
		filepath.Join(root, "dc", "council", "code", "titles"),
	}
	for _, candidate := range candidates {
		if isDir(candidate) {
			return candidate, true
		}
	}

	var found string
	filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if entry.IsDir() && entry.Name() == "titles" && isDir(filepath.Join(path, "1")) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}

// ParseTitles parses every title directory under titlesDir. Unreadable
// section files are logged and skipped.
func (layout SectionLayout) ParseTitles(titlesDir string) ([]statute.Title, error) {
	entries, err := os.ReadDir(titlesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read titles directory: %w", err)
	}

	var titles []statute.Title
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		title, err := layout.parseTitle(filepath.Join(titlesDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if len(title.Chapters) > 0 {
			titles = append(titles, title)
		}
	}

	statute.SortTitles(titles)
	return titles, nil
}

func (layout SectionLayout) parseTitle(titleDir string) (statute.Title, error) {
	titleNumber := filepath.Base(titleDir)
	heading := titleHeading(filepath.Join(titleDir, "index.xml"))
	if heading == "" {
		heading = "Title " + titleNumber
	}
	title := statute.NewTitle(titleNumber, heading)

	sectionFiles, err := filepath.Glob(filepath.Join(titleDir, "sections", "*.xml"))
	if err != nil {
		return title, fmt.Errorf("failed to list sections of title %s: %w", titleNumber, err)
	}

	chapters := make(map[string]*statute.Chapter)
	var chapterOrder []string
	for _, sectionFile := range sectionFiles {
		section, ok := layout.parseSectionFile(sectionFile)
		if !ok {
			continue
		}
		chapterNumber := ChapterForSection(section.Number)
		chapter, exists := chapters[chapterNumber]
		if !exists {
			created := statute.NewChapter(chapterNumber, "Chapter "+chapterNumber)
			chapter = &created
			chapters[chapterNumber] = chapter
			chapterOrder = append(chapterOrder, chapterNumber)
		}
		chapter.Sections = append(chapter.Sections, section)
	}

	for _, chapterNumber := range chapterOrder {
		chapter := chapters[chapterNumber]
		statute.SortSections(chapter.Sections)
		title.AddChapter(*chapter)
	}
	statute.SortChapters(title.Chapters)
	return title, nil
}

func (layout SectionLayout) parseSectionFile(sectionFile string) (statute.Section, bool) {
	logger := layout.Logger
	if logger == nil {
		logger = slog.Default()
	}

	file, err := os.Open(sectionFile)
	if err != nil {
		logger.Warn("failed to open section file", "path", sectionFile, "error", err)
		return statute.Section{}, false
	}
	defer file.Close()

	section, ok, err := ParseSectionXML(file)
	if err != nil {
		logger.Warn("failed to parse section file", "path", sectionFile, "error", err)
		return statute.Section{}, false
	}
	if ok && layout.SectionURLBase != "" {
		section.SourceURL = layout.SectionURLBase + section.Number + ".html"
	}
	return section, ok
}

func titleHeading(indexPath string) string {
	file, err := os.Open(indexPath)
	if err != nil {
		return ""
	}
	defer file.Close()

	root, err := parseXMLTree(file)
	if err != nil {
		return ""
	}
	if headings := root.descendants("heading"); len(headings) > 0 {
		return headings[0].innerText()
	}
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
