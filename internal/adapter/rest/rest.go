// Package rest reserves the generic REST backend slot. The variant is part
// of the closed backend set but has no implementation; selecting it fails at
// configuration time rather than partway through a run.
package rest

import (
	"log/slog"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/config"
)

// init registers the placeholder factory with the global backend registry.
func init() {
	adapter.Register("rest.generic", &adapter.Descriptor{
		ID:          "rest.generic",
		Title:       "Generic REST",
		Description: "Reserved backend slot; not implemented",
	}, func(cfg *config.Config, log *slog.Logger) (adapter.DataAdapter, error) {
		return nil, adapter.ErrNotImplemented
	})
}
