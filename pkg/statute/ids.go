package statute

import (
	"regexp"
	"strings"
)

var (
	slugInvalidPattern   = regexp.MustCompile(`[^\w\s.-]`)
	slugSeparatorPattern = regexp.MustCompile(`[\s_]+`)
	slugDashRunPattern   = regexp.MustCompile(`-+`)
)

// Slugify turns free-form text into a lowercase, dash-separated identifier.
// Dots survive so that "1-206.01" and "1-20601" stay distinct. Text with no
// usable characters yields "unknown".
func Slugify(text string) string {
	slug := strings.TrimSpace(strings.ToLower(text))
	slug = slugInvalidPattern.ReplaceAllString(slug, "")
	slug = slugSeparatorPattern.ReplaceAllString(slug, "-")
	slug = slugDashRunPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-.")
	if slug == "" {
		return "unknown"
	}
	return slug
}

// SectionID returns the stable identifier for a section number.
func SectionID(number string) string {
	return "section-" + Slugify(number)
}

// ChapterID returns the stable identifier for a chapter number.
func ChapterID(number string) string {
	return "chapter-" + Slugify(number)
}

// TitleID returns the stable identifier for a title number.
func TitleID(number string) string {
	return "title-" + Slugify(number)
}
