package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/extract"
)

// ErrUnknownSource is returned for a source kind with no registered collector.
var ErrUnknownSource = errors.New("unknown source kind")

// Built-in source kinds.
const (
	KindOfficialHTML = "official_html"
	KindXMLArchive   = "xml_archive"
	KindLocalHTML    = "local_html"
)

// Fetcher is the subset of *fetch.Client collectors use.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Env bundles the collaborators shared by collectors of one run.
type Env struct {
	// Client fetches remote material. Collectors that never fetch accept nil.
	Client Fetcher

	// RawDir is the root under which raw material is stored, usually
	// cache/raw.
	RawDir string

	Logger *slog.Logger

	// Workers bounds concurrent fetches within one jurisdiction.
	Workers int

	// Engine extracts sections from HTML pages.
	Engine *extract.Engine
}

func (env Env) withDefaults() Env {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Workers <= 0 {
		env.Workers = config.DefaultWorkers
	}
	if env.Engine == nil {
		env.Engine = extract.NewEngine()
	}
	return env
}

// Factory builds the collector for one jurisdiction.
type Factory func(jurisdiction config.Jurisdiction, env Env) (Ingestor, error)

// Registry maps source kinds to collector factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry creates a registry holding the built-in collectors.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.mustRegister(KindOfficialHTML, NewOfficialHTML)
	registry.mustRegister(KindXMLArchive, NewXMLArchive)
	registry.mustRegister(KindLocalHTML, NewLocalHTML)
	return registry
}

func (registry *Registry) mustRegister(kind string, factory Factory) {
	if err := registry.Register(kind, factory); err != nil {
		panic(err)
	}
}

// Register adds a factory for kind.
func (registry *Registry) Register(kind string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("source kind cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for %q cannot be nil", kind)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.factories[kind]; exists {
		return fmt.Errorf("source kind %q already registered", kind)
	}
	registry.factories[kind] = factory
	return nil
}

// New builds the collector for jurisdiction.
func (registry *Registry) New(jurisdiction config.Jurisdiction, env Env) (Ingestor, error) {
	registry.mu.RLock()
	factory, exists := registry.factories[jurisdiction.Source]
	registry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q for %s", ErrUnknownSource, jurisdiction.Source, jurisdiction.Key)
	}
	return factory(jurisdiction, env.withDefaults())
}

// Kinds lists the registered source kinds in sorted order.
func (registry *Registry) Kinds() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	kinds := make([]string, 0, len(registry.factories))
	for kind := range registry.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks that every configured jurisdiction names a registered
// source kind, so a batch fails before doing any work.
func (registry *Registry) Validate(cfg *config.Config) error {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	var errs []error
	for _, jurisdiction := range cfg.Jurisdictions {
		if _, exists := registry.factories[jurisdiction.Source]; !exists {
			errs = append(errs, fmt.Errorf("%w: %q for %s", ErrUnknownSource, jurisdiction.Source, jurisdiction.Key))
		}
	}
	return errors.Join(errs...)
}
