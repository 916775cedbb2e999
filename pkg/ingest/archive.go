package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/coolbeans/statutes/pkg/bulk"
	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/statute"
)

// XMLArchive downloads a ZIP or tar.gz archive of XML statute files and
// parses it. Archives with titles/<n>/sections/*.xml are read one section
// per file; otherwise every .xml file is read as a nested
// title/chapter/section document.
//
// Options:
//   - section_url_base: prefix for per-section source URLs
//   - archive_org_base: Internet Archive host used to resolve item pages
type XMLArchive struct {
	jurisdiction config.Jurisdiction
	env          Env
}

// NewXMLArchive is the Factory for xml_archive jurisdictions.
func NewXMLArchive(jurisdiction config.Jurisdiction, env Env) (Ingestor, error) {
	if jurisdiction.URL == "" {
		return nil, fmt.Errorf("%w: jurisdiction %s: url is required for %s", config.ErrInvalidConfig, jurisdiction.Key, KindXMLArchive)
	}
	return &XMLArchive{jurisdiction: jurisdiction, env: env}, nil
}

func (collector *XMLArchive) baseDir() string {
	return filepath.Join(collector.env.RawDir, collector.jurisdiction.Key, KindXMLArchive)
}

// RawDir is the directory the archive is extracted into.
func (collector *XMLArchive) RawDir() string {
	return filepath.Join(collector.baseDir(), "extracted")
}

// Fetch downloads and extracts the archive unless an earlier extraction is
// present.
func (collector *XMLArchive) Fetch(ctx context.Context) (string, error) {
	extractDir := collector.RawDir()
	logger := collector.env.Logger.With("state", collector.jurisdiction.Key)

	if !isEmptyDir(extractDir) {
		logger.Info("reusing extracted archive", "dir", extractDir)
		return extractDir, nil
	}
	if collector.env.Client == nil {
		return "", fmt.Errorf("no fetch client configured for %s", collector.jurisdiction.Key)
	}

	options := []bulk.DownloaderOption{bulk.WithDownloadLogger(logger)}
	if archiveOrgBase := collector.jurisdiction.Option("archive_org_base", ""); archiveOrgBase != "" {
		options = append(options, bulk.WithArchiveOrgBase(archiveOrgBase))
	}
	downloader, err := bulk.NewDownloader(collector.env.Client, filepath.Join(collector.baseDir(), "downloads"), options...)
	if err != nil {
		return "", err
	}

	download, err := downloader.Download(ctx, collector.jurisdiction.Key, collector.jurisdiction.URL)
	if err != nil {
		return "", err
	}

	result, err := bulk.ExtractArchive(download.Record.LocalPath, extractDir)
	if err != nil {
		return "", err
	}
	if result.Rejected > 0 {
		logger.Warn("rejected unsafe archive entries", "count", result.Rejected)
	}
	logger.Info("extracted archive", "format", result.Format, "files", len(result.Files))
	return extractDir, nil
}

// Parse reads the extracted XML into a tree.
func (collector *XMLArchive) Parse(rawDir string) (*statute.Code, error) {
	if isEmptyDir(rawDir) {
		return nil, fmt.Errorf("%w: %s", ErrNoRawMaterial, rawDir)
	}
	logger := collector.env.Logger.With("state", collector.jurisdiction.Key)

	var titles []statute.Title
	if titlesDir, found := bulk.FindTitlesDir(rawDir); found {
		layout := bulk.SectionLayout{
			SectionURLBase: collector.jurisdiction.Option("section_url_base", ""),
			Logger:         logger,
		}
		parsed, err := layout.ParseTitles(titlesDir)
		if err != nil {
			return nil, err
		}
		titles = parsed
	} else {
		parsed, err := parseNestedFiles(rawDir, logger.Warn)
		if err != nil {
			return nil, err
		}
		titles = parsed
	}

	code := newCode(collector.jurisdiction)
	for _, title := range titles {
		code.AddTitle(title)
	}
	return code, nil
}

// parseNestedFiles reads every .xml file under rawDir as a nested document.
// Files that fail to parse are reported through warn and skipped.
func parseNestedFiles(rawDir string, warn func(message string, args ...any)) ([]statute.Title, error) {
	var titles []statute.Title
	err := filepath.WalkDir(rawDir, func(filePath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(filePath), ".xml") {
			return nil
		}

		file, err := os.Open(filePath)
		if err != nil {
			warn("skipping unreadable XML file", "file", filePath, "error", err)
			return nil
		}
		defer file.Close()

		parsed, err := bulk.ParseNestedXML(file)
		if err != nil {
			warn("skipping unparseable XML file", "file", filePath, "error", err)
			return nil
		}
		titles = append(titles, parsed...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", rawDir, err)
	}

	titles = statute.MergeTitles(titles)
	for index := range titles {
		statute.SortChapters(titles[index].Chapters)
	}
	statute.SortTitles(titles)
	return titles, nil
}

func isEmptyDir(directory string) bool {
	entries, err := os.ReadDir(directory)
	return err != nil || len(entries) == 0
}
