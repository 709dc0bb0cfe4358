// Package main implements the sync-core pipeline CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/config"
	// Import backends package to register all backends
	_ "github.com/ecotrack/sync-core/internal/adapter/backends"
)

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "path to the configuration file")
		backend      = flag.String("backend", "", "backend override (default: from config)")
		resultsTable = flag.String("results-table", "Results", "destination table for filtered observations")
		insertGeo    = flag.Bool("insert-geo", false, "serialize the geometry column to well-known text")
		replace      = flag.Bool("replace", false, "clear the destination table before uploading")
		clearOnly    = flag.String("clear", "", "comma-separated tables to clear, then exit")
		skipLand     = flag.Bool("skip-land", false, "skip the land data download step")
		listBackends = flag.Bool("list-backends", false, "print registered backends and exit")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if *listBackends {
		ids := adapter.DefaultRegistry().List()
		sort.Strings(ids)
		for _, id := range ids {
			desc, _ := adapter.DefaultRegistry().Describe(id)
			fmt.Printf("%-16s %s\n", id, desc.Description)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("loading configuration failed", "error", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := adapter.Create(cfg.Backend, cfg, log)
	if err != nil {
		log.Error("creating backend failed", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *clearOnly != "" {
		tables := strings.Split(*clearOnly, ",")
		for i := range tables {
			tables[i] = strings.TrimSpace(tables[i])
		}
		result, err := a.ClearTables(ctx, tables)
		if err != nil {
			log.Error("clearing failed", "stuck", result.Stuck, "error", err)
			os.Exit(1)
		}
		log.Info("tables cleared", "tables", result.Cleared, "attempts", result.Attempts)
		return
	}

	if err := run(ctx, a, log, *resultsTable, *insertGeo, *replace, *skipLand); err != nil {
		log.Error("sync failed", "error", err)
		os.Exit(1)
	}
}

// run drives the sequential pipeline: land data, observations, upload.
func run(ctx context.Context, a adapter.DataAdapter, log *slog.Logger, resultsTable string, insertGeo, replace, skipLand bool) error {
	if !skipLand {
		land, err := a.DownloadLandData(ctx, nil)
		if err != nil {
			return fmt.Errorf("downloading land data: %w", err)
		}
		log.Info("land data downloaded", "plots", len(land))
	}

	obs, err := a.DownloadObservations(ctx)
	if err != nil {
		return fmt.Errorf("downloading observations: %w", err)
	}
	log.Info("observations filtered", "records", len(obs))

	result, err := a.UploadResults(ctx, obs, resultsTable, adapter.UploadOptions{
		InsertGeo: insertGeo,
		DeleteAll: replace,
	})
	if err != nil {
		return fmt.Errorf("uploading results: %w", err)
	}
	log.Info("results uploaded",
		"records", result.RecordsSent,
		"batches", result.BatchesSent,
		"failed_batches", len(result.Failures))
	if !result.AllSucceeded() {
		return fmt.Errorf("upload finished with %d failed batch(es)", len(result.Failures))
	}
	return nil
}
