package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coolbeans/statutes/pkg/config"
	"github.com/coolbeans/statutes/pkg/fetch"
	"github.com/coolbeans/statutes/pkg/ingest"
	"github.com/coolbeans/statutes/pkg/normalize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "statutes",
		Short: "Statute ingestion pipeline",
		Long: `Statutes collects state and territorial codes from their publishers
and normalizes them into one canonical title/chapter/section layout.

Each configured jurisdiction names a source kind:
  - official_html: crawl the legislature website
  - xml_archive:   download and parse a bulk XML archive
  - local_html:    read pages delivered out of band

Output per jurisdiction: manifest.json, toc.json, and one content file
per chapter, plus a master index across jurisdictions.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "sources.yaml", "Source registry file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(sourcesCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [jurisdiction...]",
		Short: "Fetch, parse, and publish jurisdictions",
		Long: `Fetch raw material for each jurisdiction, parse it into the canonical
tree, and publish it. With no arguments every configured jurisdiction is
ingested. A failing jurisdiction is reported and does not stop the others.

Examples:
  statutes ingest
  statutes ingest alabama district-of-columbia --workers 2
  statutes ingest --skip-fetch --format json
  statutes ingest alabama --backfill --metrics-file metrics.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			skipFetch, _ := cmd.Flags().GetBool("skip-fetch")
			return runBatch(cmd, args, skipFetch)
		},
	}

	addBatchFlags(cmd)
	cmd.Flags().Bool("skip-fetch", false, "Parse previously fetched material only")
	cmd.Flags().Bool("backfill", false, "Fetch source pages of stub sections before publishing")
	cmd.Flags().String("metrics-file", "", "Write fetch metrics in Prometheus text format to this file")

	return cmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <jurisdiction...>",
		Short: "Parse cached raw material and publish it without fetching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, true)
		},
	}

	addBatchFlags(cmd)
	return cmd
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", 0, "Jurisdictions processed in parallel (default: config workers)")
	cmd.Flags().Int("fetch-workers", 0, "Concurrent fetches per jurisdiction (default: config workers)")
	cmd.Flags().String("format", "table", "Report format (table, json)")
}

func runBatch(cmd *cobra.Command, args []string, skipFetch bool) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	workers, _ := cmd.Flags().GetInt("workers")
	fetchWorkers, _ := cmd.Flags().GetInt("fetch-workers")
	outputFormat, _ := cmd.Flags().GetString("format")
	backfill := false
	if cmd.Flags().Lookup("backfill") != nil {
		backfill, _ = cmd.Flags().GetBool("backfill")
	}
	metricsFile := ""
	if cmd.Flags().Lookup("metrics-file") != nil {
		metricsFile, _ = cmd.Flags().GetString("metrics-file")
	}

	registry := prometheus.NewRegistry()
	metrics, err := fetch.NewMetrics(registry)
	if err != nil {
		return err
	}

	options := []ingest.BatchOption{
		ingest.WithBatchLogger(logger),
		ingest.WithFetchMetrics(metrics),
		ingest.WithSkipFetch(skipFetch),
		ingest.WithBackfill(backfill),
	}
	if workers > 0 {
		options = append(options, ingest.WithWorkers(workers))
	}
	if fetchWorkers > 0 {
		options = append(options, ingest.WithFetchWorkers(fetchWorkers))
	}

	batch := ingest.NewBatch(cfg, options...)
	report, err := batch.Run(cmd.Context(), args...)
	if report != nil {
		fmt.Println(report.Format(outputFormat))
	}
	if err != nil {
		return err
	}

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d jurisdiction(s) failed", report.Failed, len(report.Jurisdictions))
	}
	return nil
}

func backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill <jurisdiction>",
		Short: "Fill stub sections of a published jurisdiction from their source pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fetchWorkers, _ := cmd.Flags().GetInt("fetch-workers")

			options := []ingest.BatchOption{ingest.WithBatchLogger(logger)}
			if fetchWorkers > 0 {
				options = append(options, ingest.WithFetchWorkers(fetchWorkers))
			}
			batch := ingest.NewBatch(cfg, options...)

			result, err := batch.BackfillPublished(cmd.Context(), args[0])
			if result != nil {
				fmt.Printf("Backfill of %s:\n", result.Key)
				fmt.Printf("  Stubs:        %d\n", result.Backfill.Stubs)
				fmt.Printf("  Pages:        %d\n", result.Backfill.Pages)
				fmt.Printf("  Filled:       %d\n", result.Backfill.Filled)
				fmt.Printf("  Failed pages: %d\n", result.Backfill.FailedPages)
				fmt.Printf("  Sections:     %d\n", result.Stats.Sections)
			}
			return err
		},
	}

	cmd.Flags().Int("fetch-workers", 0, "Concurrent fetches (default: config workers)")
	return cmd
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the master index from published manifests",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			index, err := normalize.RebuildIndex(cfg.Defaults.DataDir, cfg.IndexPath())
			if err != nil {
				return fmt.Errorf("failed to rebuild index: %w", err)
			}

			total := 0
			for _, entry := range index.States {
				total += entry.Stats.Sections
			}
			fmt.Printf("Index written to %s\n", cfg.IndexPath())
			fmt.Printf("  Jurisdictions: %d\n", len(index.States))
			fmt.Printf("  Sections:      %d\n", total)
			return nil
		},
	}
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured jurisdictions and registered source kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			registry := ingest.DefaultRegistry()

			fmt.Printf("Source kinds: %s\n\n", strings.Join(registry.Kinds(), ", "))
			fmt.Printf("  %-24s %-6s %-14s %s\n", "Jurisdiction", "Abbr", "Source", "URL")
			fmt.Printf("  %-24s %-6s %-14s %s\n", "------------", "----", "------", "---")
			for _, jurisdiction := range cfg.Jurisdictions {
				fmt.Printf("  %-24s %-6s %-14s %s\n",
					jurisdiction.Key, jurisdiction.Abbr, jurisdiction.Source, jurisdiction.URL)
			}

			if err := registry.Validate(cfg); err != nil {
				return err
			}
			return nil
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")

	logger, err := newLogger(logLevel, logFormat)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	handlerOptions := &slog.HandlerOptions{Level: slogLevel}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOptions)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOptions)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", format)
	}
}
