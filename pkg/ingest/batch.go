package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/extract"
	"github.com/coolbeans/statutes/pkg/fetch"
	"github.com/coolbeans/statutes/pkg/normalize"
	"github.com/coolbeans/statutes/pkg/statute"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownJurisdiction is returned when a requested key is not configured.
var ErrUnknownJurisdiction = errors.New("unknown jurisdiction")

// ClientFactory builds the fetch client for one jurisdiction.
type ClientFactory func(jurisdiction config.Jurisdiction) (Fetcher, error)

// Batch ingests many jurisdictions. Each jurisdiction is fetched, parsed,
// optionally backfilled, and written in isolation: its failure is recorded
// in the report and never stops the others.
type Batch struct {
	config       *config.Config
	registry     *Registry
	writer       *normalize.Writer
	engine       *extract.Engine
	newClient    ClientFactory
	metrics      *fetch.Metrics
	logger       *slog.Logger
	workers      int
	fetchWorkers int
	skipFetch    bool
	backfill     bool
	now          func() time.Time
}

// BatchOption customizes a Batch.
type BatchOption func(*Batch)

// WithRegistry replaces the default collector registry.
func WithRegistry(registry *Registry) BatchOption {
	return func(batch *Batch) { batch.registry = registry }
}

// WithClientFactory replaces how fetch clients are built.
func WithClientFactory(factory ClientFactory) BatchOption {
	return func(batch *Batch) { batch.newClient = factory }
}

// WithFetchMetrics records fetch events of the default clients.
func WithFetchMetrics(metrics *fetch.Metrics) BatchOption {
	return func(batch *Batch) { batch.metrics = metrics }
}

// WithBatchLogger sets the structured logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(batch *Batch) { batch.logger = logger }
}

// WithWorkers bounds how many jurisdictions run at once.
func WithWorkers(workers int) BatchOption {
	return func(batch *Batch) { batch.workers = workers }
}

// WithFetchWorkers bounds concurrent fetches within one jurisdiction.
func WithFetchWorkers(workers int) BatchOption {
	return func(batch *Batch) { batch.fetchWorkers = workers }
}

// WithSkipFetch parses previously fetched material only.
func WithSkipFetch(skipFetch bool) BatchOption {
	return func(batch *Batch) { batch.skipFetch = skipFetch }
}

// WithBackfill runs a backfill pass over stub sections before writing.
func WithBackfill(backfill bool) BatchOption {
	return func(batch *Batch) { batch.backfill = backfill }
}

// WithEngine replaces the default extraction engine.
func WithEngine(engine *extract.Engine) BatchOption {
	return func(batch *Batch) { batch.engine = engine }
}

// NewBatch creates a Batch for cfg.
func NewBatch(cfg *config.Config, options ...BatchOption) *Batch {
	batch := &Batch{
		config:       cfg,
		workers:      cfg.Defaults.Workers,
		fetchWorkers: cfg.Defaults.Workers,
		now:          time.Now,
	}
	for _, option := range options {
		option(batch)
	}

	if batch.logger == nil {
		batch.logger = slog.Default()
	}
	if batch.registry == nil {
		batch.registry = DefaultRegistry()
	}
	if batch.engine == nil {
		batch.engine = extract.NewEngine()
	}
	if batch.workers <= 0 {
		batch.workers = config.DefaultWorkers
	}
	if batch.fetchWorkers <= 0 {
		batch.fetchWorkers = config.DefaultWorkers
	}
	if batch.newClient == nil {
		batch.newClient = batch.defaultClient
	}
	batch.writer = normalize.NewWriter(cfg.Defaults.DataDir, batch.logger)
	return batch
}

func (batch *Batch) defaultClient(jurisdiction config.Jurisdiction) (Fetcher, error) {
	client, err := fetch.NewClient(batch.config.ClientConfig(jurisdiction),
		fetch.WithLogger(batch.logger.With("state", jurisdiction.Key)),
		fetch.WithMetrics(batch.metrics))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Writer returns the writer publishing this batch's output.
func (batch *Batch) Writer() *normalize.Writer {
	return batch.writer
}

// Run ingests the jurisdictions named by keys, or every configured one when
// keys is empty, and updates the master index with those that succeeded.
// Configuration errors fail the run before any work starts.
func (batch *Batch) Run(ctx context.Context, keys ...string) (*Report, error) {
	if err := batch.registry.Validate(batch.config); err != nil {
		return nil, err
	}
	jurisdictions, err := batch.selectJurisdictions(keys)
	if err != nil {
		return nil, err
	}

	report := NewReport(uuid.NewString(), batch.skipFetch)
	report.StartedAt = batch.now().UTC()
	logger := batch.logger.With("run_id", report.RunID)
	logger.Info("starting batch", "jurisdictions", len(jurisdictions), "workers", batch.workers, "skip_fetch", batch.skipFetch)

	results := make([]JurisdictionReport, len(jurisdictions))
	manifests := make([]*normalize.Manifest, len(jurisdictions))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(batch.workers)
	for index, jurisdiction := range jurisdictions {
		group.Go(func() error {
			results[index], manifests[index] = batch.runJurisdiction(groupCtx, jurisdiction, logger)
			return nil
		})
	}
	_ = group.Wait()

	var published []normalize.Manifest
	for index, result := range results {
		report.Record(result)
		if manifests[index] != nil {
			published = append(published, *manifests[index])
		}
	}
	report.FinishedAt = batch.now().UTC()

	if len(published) > 0 {
		if _, err := normalize.UpdateIndex(batch.config.IndexPath(), published...); err != nil {
			return report, err
		}
	}

	logger.Info("batch complete",
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"sections", report.Totals.Sections)
	return report, nil
}

func (batch *Batch) selectJurisdictions(keys []string) ([]config.Jurisdiction, error) {
	if len(keys) == 0 {
		return batch.config.Jurisdictions, nil
	}
	jurisdictions := make([]config.Jurisdiction, 0, len(keys))
	for _, key := range keys {
		jurisdiction, found := batch.config.Jurisdiction(key)
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, key)
		}
		jurisdictions = append(jurisdictions, jurisdiction)
	}
	return jurisdictions, nil
}

func (batch *Batch) runJurisdiction(ctx context.Context, jurisdiction config.Jurisdiction, logger *slog.Logger) (JurisdictionReport, *normalize.Manifest) {
	started := batch.now()
	logger = logger.With("state", jurisdiction.Key)
	result := JurisdictionReport{Key: jurisdiction.Key, Source: jurisdiction.Source}

	fail := func(err error) (JurisdictionReport, *normalize.Manifest) {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.Duration = batch.now().Sub(started)
		logger.Error("jurisdiction failed", "error", err)
		return result, nil
	}

	var client Fetcher
	if !batch.skipFetch || batch.backfill {
		var err error
		if client, err = batch.newClient(jurisdiction); err != nil {
			return fail(fmt.Errorf("failed to create fetch client: %w", err))
		}
	}

	ingestor, err := batch.registry.New(jurisdiction, Env{
		Client:  client,
		RawDir:  batch.config.RawDir(),
		Logger:  logger,
		Workers: batch.fetchWorkers,
		Engine:  batch.engine,
	})
	if err != nil {
		return fail(err)
	}

	var code *statute.Code
	if batch.skipFetch {
		code, err = ParseOnly(ingestor)
	} else {
		code, err = Ingest(ctx, ingestor, logger)
	}
	if err != nil {
		return fail(err)
	}

	if batch.backfill {
		backfilled, err := Backfill(ctx, code, client, batch.engine, batch.fetchWorkers)
		if err != nil {
			logger.Warn("backfill incomplete", "error", err)
		}
		result.Backfill = backfilled
		logger.Info("backfilled stubs", "stubs", backfilled.Stubs, "filled", backfilled.Filled, "failed_pages", backfilled.FailedPages)
	}

	written, err := batch.writer.Write(code)
	if err != nil {
		return fail(err)
	}

	result.Status = StatusSucceeded
	result.Stats = written.Manifest.Stats
	result.Written = written.Written
	result.Unchanged = written.Unchanged
	result.MergedSections = written.MergedSections
	result.Duration = batch.now().Sub(started)
	return result, &written.Manifest
}

// BackfillPublished fills stub sections of an already published
// jurisdiction from their source pages and republishes it.
func (batch *Batch) BackfillPublished(ctx context.Context, key string) (*JurisdictionReport, error) {
	jurisdiction, found := batch.config.Jurisdiction(key)
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, key)
	}
	started := batch.now()
	logger := batch.logger.With("state", key)

	code, err := batch.writer.LoadCode(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load published %s: %w", key, err)
	}
	client, err := batch.newClient(jurisdiction)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch client: %w", err)
	}

	backfilled, backfillErr := Backfill(ctx, code, client, batch.engine, batch.fetchWorkers)
	if backfillErr != nil {
		logger.Warn("backfill incomplete", "error", backfillErr)
	}

	written, err := batch.writer.Write(code)
	if err != nil {
		return nil, err
	}
	if _, err := normalize.UpdateIndex(batch.config.IndexPath(), written.Manifest); err != nil {
		return nil, err
	}

	return &JurisdictionReport{
		Key:            key,
		Source:         jurisdiction.Source,
		Status:         StatusSucceeded,
		Stats:          written.Manifest.Stats,
		Written:        written.Written,
		Unchanged:      written.Unchanged,
		MergedSections: written.MergedSections,
		Backfill:       backfilled,
		Duration:       batch.now().Sub(started),
	}, backfillErr
}
