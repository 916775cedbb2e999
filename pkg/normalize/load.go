package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coolbeans/statutes/pkg/statute"
)

// LoadCode rebuilds a published jurisdiction from its manifest, table of
// contents, and content files. A chapter whose content file is missing is
// left out.
func (writer *Writer) LoadCode(state string) (*statute.Code, error) {
	stateDir := writer.StateDir(state)

	var manifest Manifest
	if err := readDocument(filepath.Join(stateDir, manifestFileName), &manifest); err != nil {
		return nil, err
	}
	var toc TOC
	if err := readDocument(filepath.Join(stateDir, tocFileName), &toc); err != nil {
		return nil, err
	}

	code := &statute.Code{
		State:       manifest.State,
		StateAbbr:   manifest.StateAbbr,
		CodeName:    manifest.CodeName,
		Source:      manifest.Source,
		SourceURL:   manifest.SourceURL,
		Year:        manifest.Year,
		LastUpdated: manifest.LastUpdated,
		Structure:   manifest.Structure,
	}

	contentDir := filepath.Join(stateDir, contentDirName)
	for _, titleNode := range toc.Children {
		title := statute.Title{ID: titleNode.ID, Number: titleNode.Number, Heading: titleNode.Heading}
		for _, chapterNode := range titleNode.Children {
			chapter := statute.Chapter{ID: chapterNode.ID, Number: chapterNode.Number, Heading: chapterNode.Heading}
			content, err := LoadContent(filepath.Join(contentDir, titleNode.ID, chapterNode.ID+".json"))
			if os.IsNotExist(err) {
				writer.Logger.Warn("missing content file", "state", state, "title", title.ID, "chapter", chapter.ID)
				continue
			}
			if err != nil {
				return nil, err
			}
			chapter.Sections = content.Sections
			title.AddChapter(chapter)
		}
		code.AddTitle(title)
	}
	return code, nil
}

func readDocument(documentPath string, target any) error {
	data, err := os.ReadFile(documentPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", documentPath, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse %s: %w", documentPath, err)
	}
	return nil
}
