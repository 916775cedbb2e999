package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/statute"
)

const (
	// MaxTitleLinks caps links followed from the landing page.
	MaxTitleLinks = 200

	// MaxChapterLinks caps links followed from each title page.
	MaxChapterLinks = 300
)

// OfficialHTML crawls a legislature website two levels deep: the landing
// page links to title pages, which link to chapter pages. Pages are stored
// as <raw>/<key>/official_html/<title-slug>/<chapter-slug>.html.
//
// Options:
//   - title_link_pattern: regexp a landing-page link must match
//   - chapter_link_pattern: regexp a title-page link must match
type OfficialHTML struct {
	jurisdiction   config.Jurisdiction
	env            Env
	titlePattern   *regexp.Regexp
	chapterPattern *regexp.Regexp
}

// NewOfficialHTML is the Factory for official_html jurisdictions.
func NewOfficialHTML(jurisdiction config.Jurisdiction, env Env) (Ingestor, error) {
	if jurisdiction.URL == "" {
		return nil, fmt.Errorf("%w: jurisdiction %s: url is required for %s", config.ErrInvalidConfig, jurisdiction.Key, KindOfficialHTML)
	}

	collector := &OfficialHTML{jurisdiction: jurisdiction, env: env}
	var err error
	if collector.titlePattern, err = optionPattern(jurisdiction, "title_link_pattern"); err != nil {
		return nil, err
	}
	if collector.chapterPattern, err = optionPattern(jurisdiction, "chapter_link_pattern"); err != nil {
		return nil, err
	}
	return collector, nil
}

func optionPattern(jurisdiction config.Jurisdiction, name string) (*regexp.Regexp, error) {
	expression := jurisdiction.Option(name, "")
	if expression == "" {
		return nil, nil
	}
	pattern, err := regexp.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: jurisdiction %s: option %s: %w", config.ErrInvalidConfig, jurisdiction.Key, name, err)
	}
	return pattern, nil
}

// RawDir is where crawled pages are stored.
func (collector *OfficialHTML) RawDir() string {
	return filepath.Join(collector.env.RawDir, collector.jurisdiction.Key, KindOfficialHTML)
}

type crawlTarget struct {
	URL          string
	RelativePath string
}

// Fetch crawls the site unless pages from an earlier crawl are present.
// Failed title or chapter pages are logged and left out; only a failure to
// fetch the landing page fails the crawl.
func (collector *OfficialHTML) Fetch(ctx context.Context) (string, error) {
	rawDir := collector.RawDir()
	logger := collector.env.Logger.With("state", collector.jurisdiction.Key)

	if hasPages(rawDir) {
		logger.Info("reusing crawled pages", "dir", rawDir)
		return rawDir, nil
	}
	if collector.env.Client == nil {
		return "", fmt.Errorf("no fetch client configured for %s", collector.jurisdiction.Key)
	}
	if err := os.MkdirAll(rawDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create raw directory: %w", err)
	}

	baseURL := collector.jurisdiction.URL
	landingHTML, err := collector.env.Client.FetchText(ctx, baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch landing page: %w", err)
	}

	pages := pageIndex{}
	var pagesMutex sync.Mutex
	savePage := func(target crawlTarget, html string) error {
		pagePath := filepath.Join(rawDir, filepath.FromSlash(target.RelativePath))
		if err := os.MkdirAll(filepath.Dir(pagePath), 0755); err != nil {
			return fmt.Errorf("failed to create page directory: %w", err)
		}
		if err := os.WriteFile(pagePath, []byte(html), 0644); err != nil {
			return fmt.Errorf("failed to write page: %w", err)
		}
		pagesMutex.Lock()
		pages[target.RelativePath] = target.URL
		pagesMutex.Unlock()
		return nil
	}

	if err := savePage(crawlTarget{URL: baseURL, RelativePath: landingPage}, landingHTML); err != nil {
		return "", err
	}

	titleLinks := FindCodeLinks(landingHTML, baseURL, collector.titlePattern, MaxTitleLinks)
	logger.Info("found title links", "count", len(titleLinks))

	titleTargets := make(map[string]crawlTarget, len(titleLinks))
	titleURLs := make([]string, 0, len(titleLinks))
	usedDirs := map[string]bool{}
	for index, link := range titleLinks {
		dirName := pageSlug(link.Text, fmt.Sprintf("item-%d", index), usedDirs)
		titleTargets[link.URL] = crawlTarget{URL: link.URL, RelativePath: dirName + "/" + landingPage}
		titleURLs = append(titleURLs, link.URL)
	}

	chapterLinks := make(map[string][]Link, len(titleLinks))
	titleFailures, err := FetchAll(ctx, titleURLs, collector.env.Workers, func(ctx context.Context, titleURL string) error {
		html, err := collector.env.Client.FetchText(ctx, titleURL)
		if err != nil {
			return err
		}
		if err := savePage(titleTargets[titleURL], html); err != nil {
			return err
		}
		links := FindCodeLinks(html, titleURL, collector.chapterPattern, MaxChapterLinks)
		pagesMutex.Lock()
		chapterLinks[titleURL] = links
		pagesMutex.Unlock()
		return nil
	})
	for _, failure := range titleFailures {
		logger.Warn("skipping title page", "url", failure.URL, "error", failure.Err)
	}
	if err != nil {
		return "", err
	}

	chapterTargets := make(map[string]crawlTarget)
	var chapterURLs []string
	for _, titleURL := range titleURLs {
		dirName := path.Dir(titleTargets[titleURL].RelativePath)
		usedNames := map[string]bool{"index": true}
		for index, link := range chapterLinks[titleURL] {
			if _, seen := chapterTargets[link.URL]; seen || titleTargets[link.URL].URL != "" {
				continue
			}
			name := pageSlug(link.Text, fmt.Sprintf("sub-%d", index), usedNames)
			chapterTargets[link.URL] = crawlTarget{URL: link.URL, RelativePath: dirName + "/" + name + ".html"}
			chapterURLs = append(chapterURLs, link.URL)
		}
	}

	chapterFailures, err := FetchAll(ctx, chapterURLs, collector.env.Workers, func(ctx context.Context, chapterURL string) error {
		html, err := collector.env.Client.FetchText(ctx, chapterURL)
		if err != nil {
			return err
		}
		return savePage(chapterTargets[chapterURL], html)
	})
	for _, failure := range chapterFailures {
		logger.Debug("skipping chapter page", "url", failure.URL, "error", failure.Err)
	}

	if saveErr := pages.save(rawDir); saveErr != nil {
		return "", saveErr
	}
	if err != nil {
		return "", err
	}

	logger.Info("crawl complete",
		"titles", len(titleURLs)-len(titleFailures),
		"chapters", len(chapterURLs)-len(chapterFailures),
		"failed", len(titleFailures)+len(chapterFailures))
	return rawDir, nil
}

// Parse reads the crawled pages into a tree.
func (collector *OfficialHTML) Parse(rawDir string) (*statute.Code, error) {
	return parseSavedPages(collector.jurisdiction, collector.env, rawDir)
}

func parseSavedPages(jurisdiction config.Jurisdiction, env Env, rawDir string) (*statute.Code, error) {
	if !hasPages(rawDir) {
		return nil, fmt.Errorf("%w: %s", ErrNoRawMaterial, rawDir)
	}

	pages, err := loadPageIndex(rawDir)
	if err != nil {
		return nil, err
	}

	parser := pageParser{
		engine: env.Engine,
		logger: env.Logger.With("state", jurisdiction.Key),
		pages:  pages,
		rawDir: rawDir,
	}
	titles, err := parser.parse()
	if err != nil {
		return nil, err
	}

	code := newCode(jurisdiction)
	for _, title := range titles {
		code.AddTitle(title)
	}
	return code, nil
}

// Link is a navigation link found on a statute page.
type Link struct {
	URL  string
	Text string
}

// FindCodeLinks returns the statute navigation links of a page, resolved
// against pageURL, in document order. Only links on the page's host are
// kept, fragments are dropped, and duplicates and self-links are skipped.
// With a pattern, a link is kept when its href or resolved URL matches;
// without one, it is kept when it points at an .htm/.html page or lies
// under the page's own path. At most limit links are returned.
func FindCodeLinks(html string, pageURL string, pattern *regexp.Regexp, limit int) []Link {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	document, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	baseDir := base.Path
	if !strings.HasSuffix(baseDir, "/") {
		baseDir = path.Dir(baseDir)
		if !strings.HasSuffix(baseDir, "/") {
			baseDir += "/"
		}
	}
	self := strings.TrimRight(base.String(), "/")

	seen := map[string]bool{}
	var links []Link
	document.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		text := strings.Join(strings.Fields(anchor.Text()), " ")
		if textLength := utf8.RuneCountInString(text); textLength < 2 || textLength > 300 {
			return true
		}
		lowerHref := strings.ToLower(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(lowerHref, "javascript:") || strings.HasPrefix(lowerHref, "mailto:") {
			return true
		}

		reference, err := url.Parse(href)
		if err != nil {
			return true
		}
		resolved := base.ResolveReference(reference)
		resolved.Fragment = ""
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return true
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			return true
		}

		full := resolved.String()
		normalized := strings.TrimRight(full, "/")
		if normalized == self || seen[normalized] {
			return true
		}

		if pattern != nil {
			if !pattern.MatchString(href) && !pattern.MatchString(full) {
				return true
			}
		} else {
			lowerPath := strings.ToLower(resolved.Path)
			isPage := strings.HasSuffix(lowerPath, ".htm") || strings.HasSuffix(lowerPath, ".html")
			if !isPage && !strings.HasPrefix(resolved.Path, baseDir) {
				return true
			}
		}

		seen[normalized] = true
		links = append(links, Link{URL: full, Text: text})
		return limit <= 0 || len(links) < limit
	})
	return links
}
