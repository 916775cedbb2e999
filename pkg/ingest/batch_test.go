package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/normalize"
	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchConfig(t *testing.T, jurisdictions ...config.Jurisdiction) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Defaults: config.Defaults{
			CacheDir: filepath.Join(root, "cache"),
			DataDir:  filepath.Join(root, "data", "states"),
			Workers:  2,
		},
		Jurisdictions: jurisdictions,
	}
}

func fixedClients(fetchers map[string]*fakeFetcher) ClientFactory {
	return func(jurisdiction config.Jurisdiction) (Fetcher, error) {
		fetcher, exists := fetchers[jurisdiction.Key]
		if !exists {
			return nil, errors.New("no client for " + jurisdiction.Key)
		}
		return fetcher, nil
	}
}

func TestBatch_IsolatesJurisdictionFailures(t *testing.T) {
	cfg := batchConfig(t,
		config.Jurisdiction{Key: "example", Abbr: "EX", Source: KindOfficialHTML, URL: landingURL},
		config.Jurisdiction{Key: "unreachable", Source: KindOfficialHTML, URL: "https://down.example.gov/"},
	)
	batch := NewBatch(cfg,
		WithBatchLogger(quietLogger()),
		WithClientFactory(fixedClients(map[string]*fakeFetcher{
			"example":     crawlFetcher(),
			"unreachable": {},
		})))

	report, err := batch.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, statute.Counts{Titles: 1, Chapters: 1, Sections: 2}, report.Totals)
	require.Len(t, report.Jurisdictions, 2)

	succeeded := report.Jurisdictions[0]
	assert.Equal(t, "example", succeeded.Key)
	assert.Equal(t, StatusSucceeded, succeeded.Status)
	assert.Equal(t, 1, succeeded.Written)

	failed := report.Jurisdictions[1]
	assert.Equal(t, "unreachable", failed.Key)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "landing page")

	assert.FileExists(t, filepath.Join(cfg.Defaults.DataDir, "example", "manifest.json"))
	index, err := normalize.LoadIndex(cfg.IndexPath())
	require.NoError(t, err)
	require.Len(t, index.States, 1)
	assert.Equal(t, "example", index.States[0].State)
	assert.Equal(t, 2, index.States[0].Stats.Sections)
}

func TestBatch_SkipFetchParsesCachedMaterial(t *testing.T) {
	cfg := batchConfig(t, config.Jurisdiction{Key: "example", Source: KindOfficialHTML, URL: landingURL})

	first := NewBatch(cfg,
		WithBatchLogger(quietLogger()),
		WithClientFactory(fixedClients(map[string]*fakeFetcher{"example": crawlFetcher()})))
	_, err := first.Run(context.Background(), "example")
	require.NoError(t, err)

	parseOnly := NewBatch(cfg,
		WithBatchLogger(quietLogger()),
		WithSkipFetch(true),
		WithClientFactory(func(config.Jurisdiction) (Fetcher, error) {
			t.Error("parse-only run must not build a fetch client")
			return nil, errors.New("unexpected")
		}))
	report, err := parseOnly.Run(context.Background(), "example")
	require.NoError(t, err)

	require.Len(t, report.Jurisdictions, 1)
	result := report.Jurisdictions[0]
	assert.Equal(t, StatusSucceeded, result.Status, result.Error)
	assert.Equal(t, 0, result.Written)
	assert.Equal(t, 1, result.Unchanged)
}

func TestBatch_ConfigurationErrorsFailFast(t *testing.T) {
	cfg := batchConfig(t,
		config.Jurisdiction{Key: "example", Source: KindOfficialHTML, URL: landingURL},
		config.Jurisdiction{Key: "guam", Source: "carrier_pigeon"},
	)
	fetcher := crawlFetcher()
	batch := NewBatch(cfg,
		WithBatchLogger(quietLogger()),
		WithClientFactory(fixedClients(map[string]*fakeFetcher{"example": fetcher})))

	report, err := batch.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Nil(t, report)
	assert.Zero(t, fetcher.requestCount())

	valid := NewBatch(batchConfig(t, config.Jurisdiction{Key: "example", Source: KindOfficialHTML, URL: landingURL}),
		WithBatchLogger(quietLogger()))
	_, err = valid.Run(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrUnknownJurisdiction)
}

func TestBatch_BackfillPublished(t *testing.T) {
	cfg := batchConfig(t, config.Jurisdiction{Key: "alabama", Source: KindOfficialHTML, URL: landingURL})
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://law.example.gov/1-1-1": `<html><body><p>§ 1-1-1. Definitions.</p><p>Words have their ordinary meaning.</p></body></html>`,
	}}
	batch := NewBatch(cfg,
		WithBatchLogger(quietLogger()),
		WithClientFactory(fixedClients(map[string]*fakeFetcher{"alabama": fetcher})))

	published := stubCode(stubSection("1-1-1", "https://law.example.gov/1-1-1"))
	_, err := batch.Writer().Write(published)
	require.NoError(t, err)

	result, err := batch.BackfillPublished(context.Background(), "alabama")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Backfill.Filled)
	assert.Equal(t, 1, result.Written)

	reloaded, err := batch.Writer().LoadCode("alabama")
	require.NoError(t, err)
	assert.Empty(t, reloaded.Stubs())
	assert.Equal(t, "Words have their ordinary meaning.", reloaded.Titles[0].Chapters[0].Sections[0].Text)

	index, err := normalize.LoadIndex(cfg.IndexPath())
	require.NoError(t, err)
	require.Len(t, index.States, 1)
}
