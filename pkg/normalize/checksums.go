package normalize

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coolbeans/statutes/pkg/atomicfile"
	"github.com/zeebo/blake3"
)

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChangeDetector remembers the digest last written for each key, so
// unchanged outputs can be skipped on the next run.
type ChangeDetector struct {
	checksumPath string
	checksums    map[string]string
}

// LoadChangeDetector reads checksumPath if it exists.
func LoadChangeDetector(checksumPath string) (*ChangeDetector, error) {
	detector := &ChangeDetector{checksumPath: checksumPath, checksums: make(map[string]string)}

	data, err := os.ReadFile(checksumPath)
	if err != nil {
		if os.IsNotExist(err) {
			return detector, nil
		}
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}
	if err := json.Unmarshal(data, &detector.checksums); err != nil {
		return nil, fmt.Errorf("failed to parse checksums %s: %w", checksumPath, err)
	}
	return detector, nil
}

// HasChanged reports whether digest differs from the one recorded for key.
func (detector *ChangeDetector) HasChanged(key string, digest string) bool {
	return detector.checksums[key] != digest
}

// Update records digest for key.
func (detector *ChangeDetector) Update(key string, digest string) {
	detector.checksums[key] = digest
}

// Save persists the recorded digests.
func (detector *ChangeDetector) Save() error {
	data, err := marshalDocument(detector.checksums)
	if err != nil {
		return fmt.Errorf("failed to marshal checksums: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(detector.checksumPath), 0755); err != nil {
		return fmt.Errorf("failed to create checksum directory: %w", err)
	}
	return atomicfile.WriteFile(detector.checksumPath, data, 0o644)
}
