package normalize

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/statutes/pkg/atomicfile"
	"github.com/coolbeans/statutes/pkg/statute"
)

const (
	manifestFileName  = "manifest.json"
	tocFileName       = "toc.json"
	checksumsFileName = "checksums.json"
	contentDirName    = "content"
)

// WriteResult reports what one Write did.
type WriteResult struct {
	StateDir string
	Manifest Manifest
	// Written and Unchanged count chapter content files.
	Written   int
	Unchanged int
	// MergedSections counts sections that already existed on disk and were
	// updated by this pass.
	MergedSections int
}

// Writer publishes codes under DataDir/<state>/.
type Writer struct {
	DataDir string
	Logger  *slog.Logger
	now     func() time.Time
}

// NewWriter creates a Writer rooted at dataDir.
func NewWriter(dataDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{DataDir: dataDir, Logger: logger, now: time.Now}
}

// StateDir is the output directory for one jurisdiction.
func (writer *Writer) StateDir(state string) string {
	return filepath.Join(writer.DataDir, state)
}

// Write merges code with any content already published for the same
// jurisdiction, then writes the manifest, the table of contents, and every
// chapter whose content changed. code itself is not modified.
func (writer *Writer) Write(code *statute.Code) (*WriteResult, error) {
	if code.State == "" {
		return nil, fmt.Errorf("failed to write code: state is empty")
	}

	stateDir := writer.StateDir(code.State)
	contentDir := filepath.Join(stateDir, contentDirName)
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	merged, mergedSections, err := mergeWithPublished(code, contentDir)
	if err != nil {
		return nil, err
	}
	merged.EnsureLastUpdated(writer.now().UTC())
	merged.EnsureStructure()

	detector, err := LoadChangeDetector(filepath.Join(stateDir, checksumsFileName))
	if err != nil {
		return nil, err
	}

	result := &WriteResult{StateDir: stateDir, MergedSections: mergedSections}
	for _, file := range BuildContent(merged) {
		data, err := marshalDocument(file.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", file.RelativePath, err)
		}

		contentPath := filepath.Join(contentDir, filepath.FromSlash(file.RelativePath))
		digest := Digest(data)
		if !detector.HasChanged(file.RelativePath, digest) && fileExists(contentPath) {
			result.Unchanged++
			continue
		}

		if err := os.MkdirAll(filepath.Dir(contentPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", file.RelativePath, err)
		}
		if err := atomicfile.WriteFile(contentPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.RelativePath, err)
		}
		detector.Update(file.RelativePath, digest)
		result.Written++
	}

	result.Manifest = BuildManifest(merged)
	if err := writeDocument(filepath.Join(stateDir, manifestFileName), result.Manifest); err != nil {
		return nil, err
	}
	if err := writeDocument(filepath.Join(stateDir, tocFileName), BuildTOC(merged)); err != nil {
		return nil, err
	}
	if err := detector.Save(); err != nil {
		return nil, err
	}

	writer.Logger.Info("wrote jurisdiction",
		"state", code.State,
		"titles", result.Manifest.Stats.Titles,
		"chapters", result.Manifest.Stats.Chapters,
		"sections", result.Manifest.Stats.Sections,
		"written", result.Written,
		"unchanged", result.Unchanged,
		"merged_sections", result.MergedSections)
	return result, nil
}

// mergeWithPublished returns a copy of code in which every chapter that
// already has a content file on disk carries the union of the published and
// incoming sections. Published sections keep their order and are updated
// with statute.MergeSection; new sections are appended.
func mergeWithPublished(code *statute.Code, contentDir string) (*statute.Code, int, error) {
	merged := *code
	merged.Titles = make([]statute.Title, len(code.Titles))
	mergedSections := 0

	for titleIndex, title := range code.Titles {
		title.Chapters = append([]statute.Chapter(nil), title.Chapters...)
		for chapterIndex, chapter := range title.Chapters {
			contentPath := filepath.Join(contentDir, filepath.FromSlash(ContentPath(title, chapter))+".json")
			published, err := LoadContent(contentPath)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, 0, err
			}

			before := sectionsByID(published.Sections)
			chapter.Sections = statute.MergeSections(published.Sections, chapter.Sections)
			for _, section := range chapter.Sections {
				if previous, existed := before[section.ID]; existed && previous != section {
					mergedSections++
				}
			}
			title.Chapters[chapterIndex] = chapter
		}
		merged.Titles[titleIndex] = title
	}

	return &merged, mergedSections, nil
}

func sectionsByID(sections []statute.Section) map[string]statute.Section {
	byID := make(map[string]statute.Section, len(sections))
	for _, section := range sections {
		byID[section.ID] = section
	}
	return byID
}

func writeDocument(documentPath string, document any) error {
	data, err := marshalDocument(document)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(documentPath), err)
	}
	if err := atomicfile.WriteFile(documentPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", documentPath, err)
	}
	return nil
}

func fileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
