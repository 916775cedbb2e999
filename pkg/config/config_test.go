package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coolbeans/statutes/pkg/fetch"
	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
defaults:
  cache_dir: /var/cache/statutes
  data_dir: /srv/data/states
  requests_per_second: 1.5
  cache_ttl: 72h
  retry_base_delay: 2s
  workers: 8
jurisdictions:
  - key: alabama
    name: Alabama
    abbr: AL
    code_name: Code of Alabama
    source: official_html
    url: https://alison.legislature.state.al.us/code-of-alabama
    year: 2024
    requests_per_second: 0.5
    options:
      link_selector: "a.title-link"
  - key: district-of-columbia
    name: District of Columbia
    abbr: DC
    code_name: District of Columbia Official Code
    source: xml_archive
    url: https://github.com/DCCouncil/law-xml-codified/archive/refs/heads/master.zip
    structure:
      - {level: title, label: Title}
      - {level: chapter, label: Chapter}
      - {level: section, label: Section}
`

func TestParse_AppliesDefaultsAndOverrides(t *testing.T) {
	config, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "/var/cache/statutes", config.Defaults.CacheDir)
	assert.Equal(t, 8, config.Defaults.Workers)
	assert.Equal(t, Duration(72*time.Hour), config.Defaults.CacheTTL)
	assert.Equal(t, fetch.DefaultMaxAttempts, config.Defaults.MaxAttempts)
	assert.Equal(t, fetch.DefaultUserAgent, config.Defaults.UserAgent)
	assert.Equal(t, []string{"alabama", "district-of-columbia"}, config.Keys())
	assert.Equal(t, "/srv/data/index.json", config.IndexPath())
	assert.Equal(t, "/var/cache/statutes/raw", config.RawDir())

	alabama, found := config.Jurisdiction("alabama")
	require.True(t, found)
	assert.Equal(t, "a.title-link", alabama.Option("link_selector", "a"))
	assert.Equal(t, "a", alabama.Option("missing", "a"))
	assert.Equal(t, statute.DefaultStructure(), alabama.StructureLevels())

	clientConfig := config.ClientConfig(alabama)
	assert.Equal(t, 0.5, clientConfig.RequestsPerSecond)
	assert.Equal(t, 2*time.Second, clientConfig.RetryBaseDelay)
	assert.Equal(t, 72*time.Hour, clientConfig.CacheTTL)
	assert.Equal(t, filepath.Join("/var/cache/statutes", "http"), clientConfig.CacheDir)

	dc, found := config.Jurisdiction("district-of-columbia")
	require.True(t, found)
	assert.Equal(t, 1.5, config.ClientConfig(dc).RequestsPerSecond)
	assert.Len(t, dc.StructureLevels(), 3)

	_, found = config.Jurisdiction("atlantis")
	assert.False(t, found)
}

func TestParse_EmptyUsesBuiltInDefaults(t *testing.T) {
	config, err := Parse([]byte("jurisdictions: []\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultCacheDir, config.Defaults.CacheDir)
	assert.Equal(t, DefaultDataDir, config.Defaults.DataDir)
	assert.Equal(t, DefaultWorkers, config.Defaults.Workers)
	assert.Equal(t, Duration(fetch.DefaultCacheTTL), config.Defaults.CacheTTL)
	assert.Equal(t, "data/index.json", config.IndexPath())
}

func TestParse_Invalid(t *testing.T) {
	testCases := []struct {
		name     string
		document string
	}{
		{"malformed yaml", "defaults: [unclosed"},
		{"bad duration", "defaults:\n  cache_ttl: 7d\n"},
		{"missing key", "jurisdictions:\n  - source: official_html\n"},
		{"missing source", "jurisdictions:\n  - key: ohio\n"},
		{"duplicate key", "jurisdictions:\n  - {key: ohio, source: a}\n  - {key: ohio, source: b}\n"},
		{"negative rate", "jurisdictions:\n  - {key: ohio, source: a, requests_per_second: -1}\n"},
		{"incomplete structure", "jurisdictions:\n  - key: ohio\n    source: a\n    structure: [{level: title}]\n"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Parse([]byte(testCase.document))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(sampleConfig), 0644))

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Len(t, config.Jurisdictions, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
