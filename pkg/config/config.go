// Package config loads the jurisdiction source registry: which collector
// serves each jurisdiction, where its material lives, and the fetch and
// output defaults shared by every run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/coolbeans/statutes/pkg/fetch"
	"github.com/coolbeans/statutes/pkg/statute"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when the configuration file is malformed or
// misses a required field.
var ErrInvalidConfig = errors.New("invalid config")

const (
	DefaultCacheDir = "cache"
	DefaultDataDir  = "data/states"
	DefaultWorkers  = 4
)

// Duration is a time.Duration written in YAML as a Go duration string ("7d"
// is not accepted; use "168h").
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "90s" or "168h".
func (duration *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*duration = Duration(parsed)
	return nil
}

// Defaults holds settings shared by every jurisdiction.
type Defaults struct {
	CacheDir          string   `yaml:"cache_dir"`
	DataDir           string   `yaml:"data_dir"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	CacheTTL          Duration `yaml:"cache_ttl"`
	MaxAttempts       int      `yaml:"max_attempts"`
	RetryBaseDelay    Duration `yaml:"retry_base_delay"`
	Timeout           Duration `yaml:"timeout"`
	Workers           int      `yaml:"workers"`
	UserAgent         string   `yaml:"user_agent"`
}

// Level labels one tier of a jurisdiction's hierarchy.
type Level struct {
	Level string `yaml:"level"`
	Label string `yaml:"label"`
}

// Jurisdiction configures one code-publishing entity.
type Jurisdiction struct {
	// Key is the jurisdiction slug used for directories, e.g. "alabama".
	Key      string `yaml:"key"`
	Name     string `yaml:"name"`
	Abbr     string `yaml:"abbr"`
	CodeName string `yaml:"code_name"`

	// Source names the collector kind, e.g. "official_html".
	Source string `yaml:"source"`
	URL    string `yaml:"url"`
	Year   int    `yaml:"year"`

	Structure []Level `yaml:"structure,omitempty"`

	// RequestsPerSecond overrides the default rate for this host.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`

	// Options is passed to the collector unchanged.
	Options map[string]string `yaml:"options,omitempty"`
}

// Config is the parsed source registry.
type Config struct {
	Defaults      Defaults       `yaml:"defaults"`
	Jurisdictions []Jurisdiction `yaml:"jurisdictions"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration, applying defaults.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse: %w", ErrInvalidConfig, err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (config *Config) applyDefaults() {
	defaults := &config.Defaults
	if defaults.CacheDir == "" {
		defaults.CacheDir = DefaultCacheDir
	}
	if defaults.DataDir == "" {
		defaults.DataDir = DefaultDataDir
	}
	if defaults.Workers <= 0 {
		defaults.Workers = DefaultWorkers
	}
	if defaults.UserAgent == "" {
		defaults.UserAgent = fetch.DefaultUserAgent
	}
	if defaults.CacheTTL == 0 {
		defaults.CacheTTL = Duration(fetch.DefaultCacheTTL)
	}
	if defaults.RetryBaseDelay == 0 {
		defaults.RetryBaseDelay = Duration(fetch.DefaultRetryBaseDelay)
	}
	if defaults.Timeout == 0 {
		defaults.Timeout = Duration(fetch.DefaultFetchTimeout)
	}
	if defaults.MaxAttempts <= 0 {
		defaults.MaxAttempts = fetch.DefaultMaxAttempts
	}
	if defaults.RequestsPerSecond <= 0 {
		defaults.RequestsPerSecond = fetch.DefaultRequestsPerSecond
	}
}

func (config *Config) validate() error {
	if config.Defaults.Burst < 0 {
		return fmt.Errorf("%w: defaults: burst must not be negative", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(config.Jurisdictions))
	for index, jurisdiction := range config.Jurisdictions {
		if jurisdiction.Key == "" {
			return fmt.Errorf("%w: jurisdiction %d: key is required", ErrInvalidConfig, index)
		}
		if seen[jurisdiction.Key] {
			return fmt.Errorf("%w: jurisdiction %s: duplicate key", ErrInvalidConfig, jurisdiction.Key)
		}
		seen[jurisdiction.Key] = true

		if jurisdiction.Source == "" {
			return fmt.Errorf("%w: jurisdiction %s: source is required", ErrInvalidConfig, jurisdiction.Key)
		}
		if jurisdiction.RequestsPerSecond < 0 {
			return fmt.Errorf("%w: jurisdiction %s: requests_per_second must not be negative", ErrInvalidConfig, jurisdiction.Key)
		}
		for _, level := range jurisdiction.Structure {
			if level.Level == "" || level.Label == "" {
				return fmt.Errorf("%w: jurisdiction %s: structure levels need level and label", ErrInvalidConfig, jurisdiction.Key)
			}
		}
	}
	return nil
}

// Jurisdiction returns the entry with the given key.
func (config *Config) Jurisdiction(key string) (Jurisdiction, bool) {
	for _, jurisdiction := range config.Jurisdictions {
		if jurisdiction.Key == key {
			return jurisdiction, true
		}
	}
	return Jurisdiction{}, false
}

// Keys lists jurisdiction keys in file order.
func (config *Config) Keys() []string {
	keys := make([]string, 0, len(config.Jurisdictions))
	for _, jurisdiction := range config.Jurisdictions {
		keys = append(keys, jurisdiction.Key)
	}
	return keys
}

// IndexPath is the master index location, a sibling of the data directory.
func (config *Config) IndexPath() string {
	return filepath.Join(filepath.Dir(filepath.Clean(config.Defaults.DataDir)), "index.json")
}

// RawDir is the root under which collectors store raw material.
func (config *Config) RawDir() string {
	return filepath.Join(config.Defaults.CacheDir, "raw")
}

// ClientConfig builds the fetch configuration for a jurisdiction, applying
// its rate override.
func (config *Config) ClientConfig(jurisdiction Jurisdiction) fetch.ClientConfig {
	defaults := config.Defaults
	rate := defaults.RequestsPerSecond
	if jurisdiction.RequestsPerSecond > 0 {
		rate = jurisdiction.RequestsPerSecond
	}
	return fetch.ClientConfig{
		UserAgent:         defaults.UserAgent,
		Timeout:           time.Duration(defaults.Timeout),
		RequestsPerSecond: rate,
		Burst:             defaults.Burst,
		CacheDir:          filepath.Join(defaults.CacheDir, "http"),
		CacheTTL:          time.Duration(defaults.CacheTTL),
		MaxAttempts:       defaults.MaxAttempts,
		RetryBaseDelay:    time.Duration(defaults.RetryBaseDelay),
	}
}

// StructureLevels returns the declared level labels, or the default
// title/chapter/section labelling.
func (jurisdiction Jurisdiction) StructureLevels() []statute.Level {
	if len(jurisdiction.Structure) == 0 {
		return statute.DefaultStructure()
	}
	levels := make([]statute.Level, 0, len(jurisdiction.Structure))
	for _, level := range jurisdiction.Structure {
		levels = append(levels, statute.Level{Level: level.Level, Label: level.Label})
	}
	return levels
}

// Option returns a collector option, or fallback when it is unset.
func (jurisdiction Jurisdiction) Option(name string, fallback string) string {
	if value, exists := jurisdiction.Options[name]; exists && value != "" {
		return value
	}
	return fallback
}
