// Package ingest turns configured jurisdictions into canonical statute trees.
//
// Every source kind implements the two-phase Ingestor contract: Fetch
// acquires and caches raw material, Parse turns that material into a
// statute.Code without touching the network. A Registry maps source kinds to
// collector factories and a Batch drives many jurisdictions with per-
// jurisdiction failure isolation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/statute"
)

// ErrNoRawMaterial is returned by Parse when the raw location holds nothing
// the collector can read.
var ErrNoRawMaterial = errors.New("no raw material")

// Ingestor is the contract every source collector implements.
type Ingestor interface {
	// Fetch acquires raw material and returns the location Parse reads.
	// Re-running it is safe; complete prior material is reused.
	Fetch(ctx context.Context) (string, error)

	// Parse builds the canonical tree from raw material only.
	Parse(rawDir string) (*statute.Code, error)
}

// RawLocator is implemented by collectors that can name their raw location
// without fetching, which parse-only runs rely on.
type RawLocator interface {
	RawDir() string
}

// Ingest runs Fetch then Parse and logs the resulting counts.
func Ingest(ctx context.Context, ingestor Ingestor, logger *slog.Logger) (*statute.Code, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rawDir, err := ingestor.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	code, err := ingestor.Parse(rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawDir, err)
	}

	counts := code.Counts()
	logger.Info("ingested",
		"state", code.State,
		"titles", counts.Titles,
		"chapters", counts.Chapters,
		"sections", counts.Sections)
	return code, nil
}

// ParseOnly parses previously fetched material without network access.
func ParseOnly(ingestor Ingestor) (*statute.Code, error) {
	locator, ok := ingestor.(RawLocator)
	if !ok {
		return nil, fmt.Errorf("collector %T cannot locate raw material without fetching", ingestor)
	}
	return ingestor.Parse(locator.RawDir())
}

// newCode starts a tree carrying the jurisdiction's identity.
func newCode(jurisdiction config.Jurisdiction) *statute.Code {
	return &statute.Code{
		State:     jurisdiction.Key,
		StateAbbr: jurisdiction.Abbr,
		CodeName:  jurisdiction.CodeName,
		Source:    jurisdiction.Source,
		SourceURL: jurisdiction.URL,
		Year:      jurisdiction.Year,
		Structure: jurisdiction.StructureLevels(),
	}
}
