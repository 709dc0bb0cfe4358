package jdbc

import (
	"log/slog"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/config"
	"github.com/ecotrack/sync-core/internal/landfiles"
)

// init registers the PostgreSQL factory with the global backend registry.
func init() {
	adapter.Register("jdbc.postgres", &adapter.Descriptor{
		ID:          "jdbc.postgres",
		Title:       "PostgreSQL",
		Description: "Relational backend over database/sql with batched inserts and synchronous clearing",
	}, func(cfg *config.Config, log *slog.Logger) (adapter.DataAdapter, error) {
		store, err := landfiles.NewStore(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		files := landfiles.NewDownloader(store, cfg.Storage.KMLDir, cfg.Storage.ShapefileDir, log)
		return New(cfg, files, log)
	})
}
