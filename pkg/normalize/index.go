package normalize

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/coolbeans/statutes/pkg/statute"
)

// IndexEntry summarizes one jurisdiction in the master index.
type IndexEntry struct {
	State       string         `json:"state"`
	StateAbbr   string         `json:"state_abbr"`
	CodeName    string         `json:"code_name"`
	Source      string         `json:"source"`
	LastUpdated time.Time      `json:"last_updated"`
	Stats       statute.Counts `json:"stats"`
}

// Index lists every published jurisdiction, sorted by state.
type Index struct {
	States []IndexEntry `json:"states"`
}

func entryFromManifest(manifest Manifest) IndexEntry {
	return IndexEntry{
		State:       manifest.State,
		StateAbbr:   manifest.StateAbbr,
		CodeName:    manifest.CodeName,
		Source:      manifest.Source,
		LastUpdated: manifest.LastUpdated,
		Stats:       manifest.Stats,
	}
}

// LoadIndex reads the master index. A missing file yields an empty index.
func LoadIndex(indexPath string) (*Index, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{}, nil
		}
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	index := &Index{}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, fmt.Errorf("failed to parse index %s: %w", indexPath, err)
	}
	return index, nil
}

// UpdateIndex replaces or adds the entries for the given manifests, keeping
// entries for other jurisdictions.
func UpdateIndex(indexPath string, manifests ...Manifest) (*Index, error) {
	index, err := LoadIndex(indexPath)
	if err != nil {
		return nil, err
	}

	positions := make(map[string]int, len(index.States))
	for position, entry := range index.States {
		positions[entry.State] = position
	}
	for _, manifest := range manifests {
		entry := entryFromManifest(manifest)
		if position, exists := positions[entry.State]; exists {
			index.States[position] = entry
			continue
		}
		positions[entry.State] = len(index.States)
		index.States = append(index.States, entry)
	}

	return index, saveIndex(indexPath, index)
}

// RebuildIndex regenerates the master index from every
// <dataDir>/<state>/manifest.json.
func RebuildIndex(dataDir string, indexPath string) (*Index, error) {
	manifestPaths, err := filepath.Glob(filepath.Join(dataDir, "*", manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	index := &Index{States: []IndexEntry{}}
	for _, manifestPath := range manifestPaths {
		data, err := os.ReadFile(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
		}
		index.States = append(index.States, entryFromManifest(manifest))
	}

	return index, saveIndex(indexPath, index)
}

func saveIndex(indexPath string, index *Index) error {
	sort.Slice(index.States, func(i, j int) bool {
		return index.States[i].State < index.States[j].State
	})
	if index.States == nil {
		index.States = []IndexEntry{}
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	return writeDocument(indexPath, index)
}
