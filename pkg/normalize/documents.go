// Package normalize writes a canonical statute tree to disk as the published
// layout: a manifest and table of contents per jurisdiction, one content
// file per chapter, and a master index across jurisdictions.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/coolbeans/statutes/pkg/statute"
)

// Manifest summarizes one jurisdiction's code.
type Manifest struct {
	State       string          `json:"state"`
	StateAbbr   string          `json:"state_abbr"`
	CodeName    string          `json:"code_name"`
	Source      string          `json:"source"`
	SourceURL   string          `json:"source_url"`
	LastUpdated time.Time       `json:"last_updated"`
	Year        int             `json:"year"`
	Structure   []statute.Level `json:"structure"`
	Stats       statute.Counts  `json:"stats"`
}

// TOC is the table of contents: the tree without section text.
type TOC struct {
	State    string     `json:"state"`
	Children []TOCTitle `json:"children"`
}

type TOCTitle struct {
	ID       string       `json:"id"`
	Number   string       `json:"number"`
	Heading  string       `json:"heading"`
	Children []TOCChapter `json:"children"`
}

type TOCChapter struct {
	ID           string       `json:"id"`
	Number       string       `json:"number"`
	Heading      string       `json:"heading"`
	SectionCount int          `json:"section_count"`
	Children     []TOCSection `json:"children"`
}

type TOCSection struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Heading string `json:"heading"`
}

// Content is the full text of one chapter.
type Content struct {
	State    string            `json:"state"`
	Path     string            `json:"path"`
	Sections []statute.Section `json:"sections"`
}

// ContentFile pairs a chapter's content with its path relative to the
// jurisdiction's content directory.
type ContentFile struct {
	RelativePath string
	Content      Content
}

// BuildManifest summarizes code.
func BuildManifest(code *statute.Code) Manifest {
	structure := code.Structure
	if len(structure) == 0 {
		structure = statute.DefaultStructure()
	}
	return Manifest{
		State:       code.State,
		StateAbbr:   code.StateAbbr,
		CodeName:    code.CodeName,
		Source:      code.Source,
		SourceURL:   code.SourceURL,
		LastUpdated: code.LastUpdated,
		Year:        code.Year,
		Structure:   structure,
		Stats:       code.Counts(),
	}
}

// BuildTOC lists every node of code without section text.
func BuildTOC(code *statute.Code) TOC {
	toc := TOC{State: code.State, Children: make([]TOCTitle, 0, len(code.Titles))}
	for _, title := range code.Titles {
		titleNode := TOCTitle{
			ID:       title.ID,
			Number:   title.Number,
			Heading:  title.Heading,
			Children: make([]TOCChapter, 0, len(title.Chapters)),
		}
		for _, chapter := range title.Chapters {
			chapterNode := TOCChapter{
				ID:           chapter.ID,
				Number:       chapter.Number,
				Heading:      chapter.Heading,
				SectionCount: len(chapter.Sections),
				Children:     make([]TOCSection, 0, len(chapter.Sections)),
			}
			for _, section := range chapter.Sections {
				chapterNode.Children = append(chapterNode.Children, TOCSection{
					ID:      section.ID,
					Number:  section.Number,
					Heading: section.Heading,
				})
			}
			titleNode.Children = append(titleNode.Children, chapterNode)
		}
		toc.Children = append(toc.Children, titleNode)
	}
	return toc
}

// ContentPath is a chapter's path relative to the content directory,
// without extension: "<title id>/<chapter id>".
func ContentPath(title statute.Title, chapter statute.Chapter) string {
	return path.Join(title.ID, chapter.ID)
}

// BuildContent produces one content file per chapter.
func BuildContent(code *statute.Code) []ContentFile {
	var files []ContentFile
	for _, title := range code.Titles {
		for _, chapter := range title.Chapters {
			contentPath := ContentPath(title, chapter)
			files = append(files, ContentFile{
				RelativePath: contentPath + ".json",
				Content: Content{
					State:    code.State,
					Path:     contentPath,
					Sections: chapter.Sections,
				},
			})
		}
	}
	return files
}

// LoadContent reads a content file. A missing file returns an error
// satisfying os.IsNotExist.
func LoadContent(contentPath string) (*Content, error) {
	data, err := os.ReadFile(contentPath)
	if err != nil {
		return nil, err
	}
	content := &Content{}
	if err := json.Unmarshal(data, content); err != nil {
		return nil, fmt.Errorf("failed to parse content file %s: %w", contentPath, err)
	}
	return content, nil
}

// marshalDocument renders v as indented JSON without HTML escaping, so
// statute text keeps "<", ">" and "&" readable.
func marshalDocument(v any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
