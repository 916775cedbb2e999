package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/statute"
)

// LocalHTML reads pages a state delivered out of band. The directory comes
// from the raw_dir option and defaults to <raw>/<key>/local_html; it is laid
// out like an official_html crawl. Nothing is fetched.
type LocalHTML struct {
	jurisdiction config.Jurisdiction
	env          Env
	directory    string
}

// NewLocalHTML is the Factory for local_html jurisdictions.
func NewLocalHTML(jurisdiction config.Jurisdiction, env Env) (Ingestor, error) {
	directory := jurisdiction.Option("raw_dir", "")
	if directory == "" {
		directory = filepath.Join(env.RawDir, jurisdiction.Key, KindLocalHTML)
	}
	return &LocalHTML{jurisdiction: jurisdiction, env: env, directory: directory}, nil
}

// RawDir is the configured page directory.
func (collector *LocalHTML) RawDir() string {
	return collector.directory
}

// Fetch only checks that the pages are present.
func (collector *LocalHTML) Fetch(ctx context.Context) (string, error) {
	if !hasPages(collector.directory) {
		return "", fmt.Errorf("%w: %s", ErrNoRawMaterial, collector.directory)
	}
	return collector.directory, nil
}

// Parse reads the pages into a tree.
func (collector *LocalHTML) Parse(rawDir string) (*statute.Code, error) {
	return parseSavedPages(collector.jurisdiction, collector.env, rawDir)
}
