package bulk

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// BytesFetcher retrieves a binary body. *fetch.Client satisfies it, so
// archive downloads share the cache, rate limiter, and retry policy of
// page fetches.
type BytesFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// DownloadResult is the outcome of one Download call.
type DownloadResult struct {
	Record  *DownloadRecord
	Skipped bool
}

// Downloader stores bulk archives under a directory and tracks them in a
// manifest for reuse across runs.
type Downloader struct {
	fetcher        BytesFetcher
	directory      string
	archiveOrgBase string
	logger         *slog.Logger

	mutex        sync.Mutex
	manifest     *DownloadManifest
	manifestPath string
}

// DownloaderOption customizes a Downloader.
type DownloaderOption func(*Downloader)

// WithArchiveOrgBase points Internet Archive item lookups at another host.
func WithArchiveOrgBase(baseURL string) DownloaderOption {
	return func(downloader *Downloader) { downloader.archiveOrgBase = baseURL }
}

// WithDownloadLogger sets the structured logger.
func WithDownloadLogger(logger *slog.Logger) DownloaderOption {
	return func(downloader *Downloader) { downloader.logger = logger }
}

// NewDownloader creates a Downloader rooted at directory, loading any
// existing manifest.
func NewDownloader(fetcher BytesFetcher, directory string, options ...DownloaderOption) (*Downloader, error) {
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	manifestPath := filepath.Join(directory, "manifest.json")
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	downloader := &Downloader{
		fetcher:        fetcher,
		directory:      directory,
		archiveOrgBase: defaultArchiveOrgBase,
		manifest:       manifest,
		manifestPath:   manifestPath,
	}
	for _, option := range options {
		option(downloader)
	}
	if downloader.logger == nil {
		downloader.logger = slog.Default()
	}
	return downloader, nil
}

// Download fetches the archive at archiveURL for jurisdiction. An Internet
// Archive item page is first resolved to its best archive file. Archives
// already recorded for the jurisdiction and intact on disk are not fetched
// again.
func (downloader *Downloader) Download(ctx context.Context, jurisdiction string, archiveURL string) (*DownloadResult, error) {
	resolvedURL, err := downloader.resolve(ctx, archiveURL)
	if err != nil {
		return nil, err
	}

	downloader.mutex.Lock()
	record, found := downloader.manifest.Lookup(jurisdiction, resolvedURL)
	downloader.mutex.Unlock()
	if found {
		downloader.logger.Info("reusing downloaded archive", "jurisdiction", jurisdiction, "path", record.LocalPath)
		return &DownloadResult{Record: record, Skipped: true}, nil
	}

	body, err := downloader.fetcher.FetchBytes(ctx, resolvedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download archive %s: %w", resolvedURL, err)
	}

	localPath := filepath.Join(downloader.directory, jurisdiction, archiveFileName(resolvedURL))
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	if err := os.WriteFile(localPath, body, 0644); err != nil {
		return nil, fmt.Errorf("failed to write archive %s: %w", localPath, err)
	}

	digest := blake3.Sum256(body)
	record = &DownloadRecord{
		Jurisdiction: jurisdiction,
		URL:          resolvedURL,
		LocalPath:    localPath,
		SizeBytes:    int64(len(body)),
		Digest:       hex.EncodeToString(digest[:]),
		DownloadedAt: time.Now().UTC(),
	}

	downloader.mutex.Lock()
	defer downloader.mutex.Unlock()
	downloader.manifest.Record(record)
	if err := downloader.manifest.Save(downloader.manifestPath); err != nil {
		return nil, err
	}

	downloader.logger.Info("downloaded archive",
		"jurisdiction", jurisdiction, "url", resolvedURL, "bytes", record.SizeBytes)
	return &DownloadResult{Record: record}, nil
}

// Manifest returns the underlying download manifest.
func (downloader *Downloader) Manifest() *DownloadManifest {
	return downloader.manifest
}

func archiveFileName(archiveURL string) string {
	parsedURL, err := url.Parse(archiveURL)
	if err != nil {
		return "archive"
	}
	name := path.Base(parsedURL.Path)
	if name == "." || name == "/" || name == "" {
		return "archive"
	}
	return name
}
