package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coolbeans/statutes/pkg/extract"
	"github.com/coolbeans/statutes/pkg/statute"
)

const (
	landingPage   = "index.html"
	pageIndexFile = "pages.json"
	maxSlugLength = 60
)

// pageIndex maps a page's slash-separated path relative to the raw
// directory to the URL it was fetched from.
type pageIndex map[string]string

func loadPageIndex(rawDir string) (pageIndex, error) {
	data, err := os.ReadFile(filepath.Join(rawDir, pageIndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return pageIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page index: %w", err)
	}

	pages := pageIndex{}
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse page index: %w", err)
	}
	return pages, nil
}

func (pages pageIndex) save(rawDir string) error {
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal page index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(rawDir, pageIndexFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write page index: %w", err)
	}
	return nil
}

// hasPages reports whether rawDir holds any HTML page besides its landing
// index. A crawl that stopped after the landing page is not complete.
func hasPages(rawDir string) bool {
	found := false
	filepath.WalkDir(rawDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() || !isHTMLFile(entry.Name()) {
			return nil
		}
		if filepath.Dir(path) == filepath.Clean(rawDir) && entry.Name() == landingPage {
			return nil
		}
		found = true
		return filepath.SkipAll
	})
	return found
}

func isHTMLFile(name string) bool {
	extension := strings.ToLower(filepath.Ext(name))
	return extension == ".html" || extension == ".htm"
}

// pageParser turns a directory of saved pages into titles: each
// subdirectory is a title and each page inside it a chapter. A title
// directory with only its landing page becomes a single chapter, and pages
// at the top level become single-chapter titles.
type pageParser struct {
	engine *extract.Engine
	logger *slog.Logger
	pages  pageIndex
	rawDir string
}

func (parser pageParser) parse() ([]statute.Title, error) {
	entries, err := os.ReadDir(parser.rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw directory: %w", err)
	}

	var titles []statute.Title
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		title, err := parser.parseTitleDir(entry.Name())
		if err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isHTMLFile(name) || name == landingPage {
			continue
		}
		number := strings.TrimSuffix(name, filepath.Ext(name))
		title := statute.NewTitle(number, headingFromSlug(number))
		chapter := statute.NewChapter(number, headingFromSlug(number))
		chapter.Sections = parser.parsePage(name)
		title.AddChapter(chapter)
		titles = append(titles, title)
	}

	titles = statute.MergeTitles(titles)
	for index := range titles {
		statute.SortChapters(titles[index].Chapters)
	}
	statute.SortTitles(titles)
	return titles, nil
}

func (parser pageParser) parseTitleDir(dirName string) (statute.Title, error) {
	title := statute.NewTitle(dirName, headingFromSlug(dirName))

	entries, err := os.ReadDir(filepath.Join(parser.rawDir, dirName))
	if err != nil {
		return title, fmt.Errorf("failed to read title directory %s: %w", dirName, err)
	}

	hasLanding := false
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isHTMLFile(name) {
			continue
		}
		if name == landingPage {
			hasLanding = true
			continue
		}
		number := strings.TrimSuffix(name, filepath.Ext(name))
		chapter := statute.NewChapter(number, headingFromSlug(number))
		chapter.Sections = parser.parsePage(dirName + "/" + name)
		title.AddChapter(chapter)
	}

	if len(title.Chapters) == 0 && hasLanding {
		chapter := statute.NewChapter(dirName, headingFromSlug(dirName))
		chapter.Sections = parser.parsePage(dirName + "/" + landingPage)
		title.AddChapter(chapter)
	}
	return title, nil
}

// parsePage extracts one page's sections. A page that cannot be read or
// parsed is logged and yields nothing.
func (parser pageParser) parsePage(relativePath string) []statute.Section {
	file, err := os.Open(filepath.Join(parser.rawDir, filepath.FromSlash(relativePath)))
	if err != nil {
		parser.logger.Warn("skipping unreadable page", "page", relativePath, "error", err)
		return nil
	}
	defer file.Close()

	sections, err := parser.engine.ExtractHTML(file)
	if err != nil {
		parser.logger.Warn("skipping unparseable page", "page", relativePath, "error", err)
		return nil
	}
	if pageURL := parser.pages[relativePath]; pageURL != "" {
		extract.AttachSourceURL(sections, pageURL)
	}
	return sections
}

// headingFromSlug turns "title-12" into "Title 12".
func headingFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for index, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[index] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

// pageSlug names a saved page or directory after its link text, falling
// back when the text yields nothing and de-duplicating against used.
func pageSlug(text string, fallback string, used map[string]bool) string {
	slug := fallback
	if strings.TrimSpace(text) != "" {
		if candidate := statute.Slugify(text); candidate != "unknown" {
			slug = candidate
		}
	}
	if utf8.RuneCountInString(slug) > maxSlugLength {
		slug = string([]rune(slug)[:maxSlugLength])
		slug = strings.TrimRight(slug, "-.")
	}
	if slug == "" || slug == "index" {
		slug = fallback
	}

	unique := slug
	for suffix := 2; used[unique]; suffix++ {
		unique = fmt.Sprintf("%s-%d", slug, suffix)
	}
	used[unique] = true
	return unique
}
