package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const defaultArchiveOrgBase = "https://archive.org"

// iaItemMetadata is the subset of the Internet Archive metadata response
// used to pick a file.
type iaItemMetadata struct {
	Files []iaFile `json:"files"`
}

type iaFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Size   string `json:"size"`
}

// archiveItemIdentifier extracts the item identifier from an Internet
// Archive details URL, e.g. https://archive.org/details/gov.ky.code.
func archiveItemIdentifier(itemURL string) (string, bool) {
	parsedURL, err := url.Parse(itemURL)
	if err != nil || !strings.HasSuffix(parsedURL.Hostname(), "archive.org") {
		return "", false
	}
	segments := strings.Split(strings.Trim(parsedURL.Path, "/"), "/")
	if len(segments) != 2 || segments[0] != "details" || segments[1] == "" {
		return "", false
	}
	return segments[1], true
}

// resolve turns an item details URL into a direct archive download URL.
// Other URLs are returned unchanged.
func (downloader *Downloader) resolve(ctx context.Context, archiveURL string) (string, error) {
	identifier, isItem := archiveItemIdentifier(archiveURL)
	if !isItem {
		return archiveURL, nil
	}

	metadataURL := fmt.Sprintf("%s/metadata/%s", downloader.archiveOrgBase, identifier)
	body, err := downloader.fetcher.FetchBytes(ctx, metadataURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch metadata for %s: %w", identifier, err)
	}

	var itemMetadata iaItemMetadata
	if err := json.Unmarshal(body, &itemMetadata); err != nil {
		return "", fmt.Errorf("failed to parse metadata for %s: %w", identifier, err)
	}

	fileName := findBestArchiveFile(itemMetadata.Files)
	if fileName == "" {
		return "", fmt.Errorf("no suitable archive file found for %s", identifier)
	}

	return fmt.Sprintf("%s/download/%s/%s", downloader.archiveOrgBase, identifier, url.PathEscape(fileName)), nil
}

// findBestArchiveFile prefers tar.gz over zip.
func findBestArchiveFile(files []iaFile) string {
	var tarGzFile, zipFile string

	for _, file := range files {
		nameLower := strings.ToLower(file.Name)
		switch {
		case strings.HasSuffix(nameLower, ".tar.gz") || strings.HasSuffix(nameLower, ".tgz"):
			if tarGzFile == "" {
				tarGzFile = file.Name
			}
		case strings.HasSuffix(nameLower, ".zip"):
			if zipFile == "" {
				zipFile = file.Name
			}
		}
	}

	if tarGzFile != "" {
		return tarGzFile
	}
	return zipFile
}
