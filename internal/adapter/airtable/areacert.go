package airtable

import (
	"context"

	"github.com/ecotrack/sync-core/internal/tabular"
)

// GetAreaCertifier fetches the land table and projects it to the per-plot
// certified area. Plots without a certified figure report zero.
func (a *Adapter) GetAreaCertifier(ctx context.Context) ([]tabular.Record, error) {
	records, err := a.fetchAll(ctx, a.client, a.cfg.LandTable)
	if err != nil {
		return nil, err
	}
	out := make([]tabular.Record, 0, len(records))
	for _, rec := range records {
		area := rec.Fields["area_certifier"]
		if area == nil {
			area = 0.0
		}
		out = append(out, tabular.Record{ID: rec.ID, Fields: map[string]any{
			"plot_id":        padPlotID(rec.Fields["plot_id"]),
			"area_certifier": area,
		}})
	}
	return out, nil
}
