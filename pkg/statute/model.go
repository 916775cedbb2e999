// Package statute defines the canonical Title → Chapter → Section tree that
// every ingestion source is normalized into.
package statute

import "time"

// Section is the atomic unit of law. Text may be empty for a stub section
// whose body is recovered by a later backfill pass.
type Section struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Heading   string `json:"heading"`
	Text      string `json:"text"`
	History   string `json:"history"`
	SourceURL string `json:"source_url"`
}

// IsStub reports whether the section still awaits body text.
func (section Section) IsStub() bool {
	return section.Text == ""
}

// Chapter is an ordered run of sections under one subdivision.
type Chapter struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Heading  string    `json:"heading"`
	Sections []Section `json:"sections"`
}

// Title is an ordered run of chapters.
type Title struct {
	ID       string    `json:"id"`
	Number   string    `json:"number"`
	Heading  string    `json:"heading"`
	Chapters []Chapter `json:"chapters"`
}

// Level names one tier of a jurisdiction's hierarchy, e.g. {"title", "Division"}.
type Level struct {
	Level string `json:"level"`
	Label string `json:"label"`
}

// DefaultStructure is the title/chapter/section labelling used when a
// jurisdiction does not declare its own.
func DefaultStructure() []Level {
	return []Level{
		{Level: "title", Label: "Title"},
		{Level: "chapter", Label: "Chapter"},
		{Level: "section", Label: "Section"},
	}
}

// Code is the root of one jurisdiction's canonical tree. It is built fresh by
// each ingestion run and treated as read-only once handed to a writer.
type Code struct {
	State       string
	StateAbbr   string
	CodeName    string
	Source      string
	SourceURL   string
	Year        int
	LastUpdated time.Time
	Structure   []Level
	Titles      []Title
}

// Counts holds aggregate node counts for a tree.
type Counts struct {
	Titles   int `json:"titles"`
	Chapters int `json:"chapters"`
	Sections int `json:"sections"`
}

// NewSection builds a section whose identifier is derived from its number.
func NewSection(number string, heading string, text string) Section {
	return Section{
		ID:      SectionID(number),
		Number:  number,
		Heading: heading,
		Text:    text,
	}
}

// NewChapter builds an empty chapter whose identifier is derived from its number.
func NewChapter(number string, heading string) Chapter {
	return Chapter{ID: ChapterID(number), Number: number, Heading: heading}
}

// NewTitle builds an empty title whose identifier is derived from its number.
func NewTitle(number string, heading string) Title {
	return Title{ID: TitleID(number), Number: number, Heading: heading}
}

// AddChapter appends the chapter unless it has no sections.
func (title *Title) AddChapter(chapter Chapter) bool {
	if len(chapter.Sections) == 0 {
		return false
	}
	title.Chapters = append(title.Chapters, chapter)
	return true
}

// SectionCount returns the number of sections across all chapters.
func (title Title) SectionCount() int {
	total := 0
	for _, chapter := range title.Chapters {
		total += len(chapter.Sections)
	}
	return total
}

// AddTitle appends the title after dropping its empty chapters, unless
// nothing remains.
func (code *Code) AddTitle(title Title) bool {
	title.Chapters = pruneChapters(title.Chapters)
	if len(title.Chapters) == 0 {
		return false
	}
	code.Titles = append(code.Titles, title)
	return true
}

// Prune removes empty chapters and titles that were attached directly.
func (code *Code) Prune() {
	kept := code.Titles[:0]
	for _, title := range code.Titles {
		title.Chapters = pruneChapters(title.Chapters)
		if len(title.Chapters) > 0 {
			kept = append(kept, title)
		}
	}
	code.Titles = kept
}

func pruneChapters(chapters []Chapter) []Chapter {
	kept := make([]Chapter, 0, len(chapters))
	for _, chapter := range chapters {
		if len(chapter.Sections) > 0 {
			kept = append(kept, chapter)
		}
	}
	return kept
}

// Counts returns the number of titles, chapters, and sections in the tree.
func (code *Code) Counts() Counts {
	counts := Counts{Titles: len(code.Titles)}
	for _, title := range code.Titles {
		counts.Chapters += len(title.Chapters)
		counts.Sections += title.SectionCount()
	}
	return counts
}

// EnsureLastUpdated stamps the tree with now when no timestamp was set.
func (code *Code) EnsureLastUpdated(now time.Time) {
	if code.LastUpdated.IsZero() {
		code.LastUpdated = now
	}
}

// EnsureStructure fills in the default level labels when none were declared.
func (code *Code) EnsureStructure() {
	if len(code.Structure) == 0 {
		code.Structure = DefaultStructure()
	}
}

// Stubs returns pointers to every section that has no text yet.
func (code *Code) Stubs() []*Section {
	var stubs []*Section
	for titleIndex := range code.Titles {
		chapters := code.Titles[titleIndex].Chapters
		for chapterIndex := range chapters {
			sections := chapters[chapterIndex].Sections
			for sectionIndex := range sections {
				if sections[sectionIndex].IsStub() {
					stubs = append(stubs, &sections[sectionIndex])
				}
			}
		}
	}
	return stubs
}
