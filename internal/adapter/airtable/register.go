package airtable

import (
	"log/slog"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/config"
	"github.com/ecotrack/sync-core/internal/landfiles"
)

// init registers the Airtable factory with the global backend registry.
func init() {
	adapter.Register("airtable", &adapter.Descriptor{
		ID:          "airtable",
		Title:       "Airtable",
		Description: "Remote tabular API backend with paginated fetch, linked-record resolution, batched upload, and webhook-triggered clearing",
	}, func(cfg *config.Config, log *slog.Logger) (adapter.DataAdapter, error) {
		store, err := landfiles.NewStore(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		files := landfiles.NewDownloader(store, cfg.Storage.KMLDir, cfg.Storage.ShapefileDir, log)
		return New(cfg, files, log)
	})
}
