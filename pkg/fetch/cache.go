package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/statutes/pkg/atomicfile"
)

// BodyKind distinguishes text and binary cache entries, which are stored
// under different file suffixes.
type BodyKind string

const (
	// TextBody is a decoded page body.
	TextBody BodyKind = "text"

	// BinaryBody is an opaque download such as an archive.
	BinaryBody BodyKind = "binary"
)

func (kind BodyKind) suffix() string {
	if kind == BinaryBody {
		return ".bin"
	}
	return ".txt"
}

// Cache is a disk cache of fetched responses, content-addressed by a SHA-256
// hash of the request URL. Each body file has a sibling metadata file
// recording when and with what status it was fetched. Writes go through a
// temporary file and rename, so concurrent writers of one URL leave the last
// complete write in place.
type Cache struct {
	cacheDir string
	cacheTTL time.Duration
	now      func() time.Time
}

// CacheMetadata is the sidecar record stored next to each cached body.
type CacheMetadata struct {
	URL        string    `json:"url"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"status_code"`
	Kind       BodyKind  `json:"kind"`
}

// NewCache creates a cache in the given directory with the specified TTL.
// Creates the directory if it does not exist. A non-positive TTL uses
// DefaultCacheTTL.
func NewCache(cacheDir string, cacheTTL time.Duration) (*Cache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", cacheDir, err)
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	return &Cache{
		cacheDir: cacheDir,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}, nil
}

// Dir returns the cache directory.
func (cache *Cache) Dir() string {
	return cache.cacheDir
}

// Get returns the cached text body for url if present and younger than the TTL.
func (cache *Cache) Get(url string) ([]byte, bool) {
	return cache.get(TextBody, url)
}

// Put stores a text body for url.
func (cache *Cache) Put(url string, body []byte, statusCode int) error {
	return cache.put(TextBody, url, body, statusCode)
}

// GetBinary returns the cached binary body for url if present and fresh.
func (cache *Cache) GetBinary(url string) ([]byte, bool) {
	return cache.get(BinaryBody, url)
}

// PutBinary stores a binary body for url.
func (cache *Cache) PutBinary(url string, body []byte, statusCode int) error {
	return cache.put(BinaryBody, url, body, statusCode)
}

// Metadata returns the sidecar record for url regardless of its age.
func (cache *Cache) Metadata(url string) (CacheMetadata, bool) {
	data, err := os.ReadFile(cache.metadataPath(url))
	if err != nil {
		return CacheMetadata{}, false
	}
	var metadata CacheMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return CacheMetadata{}, false
	}
	return metadata, true
}

func (cache *Cache) get(kind BodyKind, url string) ([]byte, bool) {
	metadata, found := cache.Metadata(url)
	if !found || metadata.Kind != kind {
		return nil, false
	}
	if cache.now().Sub(metadata.Timestamp) > cache.cacheTTL {
		return nil, false
	}

	body, err := os.ReadFile(cache.bodyPath(kind, url))
	if err != nil {
		return nil, false
	}
	return body, true
}

// put writes the body before the metadata; the metadata acts as the commit
// record that makes the entry visible.
func (cache *Cache) put(kind BodyKind, url string, body []byte, statusCode int) error {
	if err := atomicfile.WriteFile(cache.bodyPath(kind, url), body, 0o644); err != nil {
		return err
	}

	metadata := CacheMetadata{
		URL:        url,
		Timestamp:  cache.now().UTC(),
		StatusCode: statusCode,
		Kind:       kind,
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}
	return atomicfile.WriteFile(cache.metadataPath(url), data, 0o644)
}

// keyFor returns the SHA-256 hash of the URL, used as the cache filename stem.
func (cache *Cache) keyFor(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}

func (cache *Cache) bodyPath(kind BodyKind, url string) string {
	return filepath.Join(cache.cacheDir, cache.keyFor(url)+kind.suffix())
}

func (cache *Cache) metadataPath(url string) string {
	return filepath.Join(cache.cacheDir, cache.keyFor(url)+".meta.json")
}
