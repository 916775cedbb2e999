package bulk

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/coolbeans/statutes/pkg/atomicfile"
	"github.com/zeebo/blake3"
)

const manifestVersion = "2"

// DownloadManifest tracks the current archive of each jurisdiction. A
// jurisdiction whose configured URL changes gets a new record that
// supersedes the old one.
type DownloadManifest struct {
	Version   string                     `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Archives  map[string]*DownloadRecord `json:"archives"`
}

// DownloadRecord describes one archive on disk.
type DownloadRecord struct {
	Jurisdiction string    `json:"jurisdiction"`
	URL          string    `json:"url"`
	LocalPath    string    `json:"local_path"`
	SizeBytes    int64     `json:"size_bytes"`
	Digest       string    `json:"digest"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// LoadManifest reads a download manifest. A missing file, or one written by
// an older layout, yields an empty manifest.
func LoadManifest(manifestPath string) (*DownloadManifest, error) {
	empty := &DownloadManifest{Version: manifestVersion, Archives: map[string]*DownloadRecord{}}

	data, err := os.ReadFile(manifestPath)
	if os.IsNotExist(err) {
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest DownloadManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
	}
	if manifest.Version != manifestVersion || manifest.Archives == nil {
		return empty, nil
	}
	return &manifest, nil
}

// Save writes the manifest through a temporary file and rename.
func (manifest *DownloadManifest) Save(manifestPath string) error {
	manifest.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(manifestPath), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	if err := atomicfile.WriteFile(manifestPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Record makes record the current archive of its jurisdiction.
func (manifest *DownloadManifest) Record(record *DownloadRecord) {
	manifest.Archives[record.Jurisdiction] = record
}

// Lookup returns the jurisdiction's archive when it was downloaded from
// archiveURL and the file on disk still has the recorded size and digest.
func (manifest *DownloadManifest) Lookup(jurisdiction string, archiveURL string) (*DownloadRecord, bool) {
	record, exists := manifest.Archives[jurisdiction]
	if !exists || record.URL != archiveURL {
		return nil, false
	}
	info, err := os.Stat(record.LocalPath)
	if err != nil || info.Size() != record.SizeBytes {
		return nil, false
	}
	digest, err := fileDigest(record.LocalPath)
	if err != nil || digest != record.Digest {
		return nil, false
	}
	return record, true
}

// Records lists the current archives sorted by jurisdiction.
func (manifest *DownloadManifest) Records() []*DownloadRecord {
	records := make([]*DownloadRecord, 0, len(manifest.Archives))
	for _, record := range manifest.Archives {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Jurisdiction < records[j].Jurisdiction
	})
	return records
}

func fileDigest(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
