package airtable

import (
	"context"
	"strconv"
	"strings"

	"github.com/ecotrack/sync-core/internal/observations"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// =============================================================================
// OBSERVATIONS DOWNLOAD
// =============================================================================

// DownloadObservations fetches the observations table and applies the
// quality filter pipeline, resolving linked species names on demand.
func (a *Adapter) DownloadObservations(ctx context.Context) ([]tabular.Record, error) {
	records, err := a.fetchAll(ctx, a.client, a.cfg.ObservationsTable)
	if err != nil {
		return nil, err
	}
	a.logEvent(ctx, "Total observations fetched:", strconv.Itoa(len(records)))

	speciesCache := tabular.NewCache()
	filter := observations.Filter{
		Resolve: func(ctx context.Context, speciesID string) (any, bool) {
			v, ok := a.resolveFrom(ctx, a.client, a.cfg.ObservationsTable, speciesID, "species_name_common_es", speciesCache)
			if !ok || v == nil {
				return nil, false
			}
			s, _ := tabular.First(v).(string)
			return s, s != ""
		},
	}

	filtered, stats, err := filter.Apply(ctx, records)
	if err != nil {
		return nil, err
	}

	a.logEvent(ctx, "Observations with integrity score:", strconv.Itoa(stats.WithScore))
	a.logEvent(ctx, "Observations within radius:", strconv.Itoa(stats.RadiusOK))
	a.logEvent(ctx, "Observations in western hemisphere:", strconv.Itoa(stats.LongitudeOK))
	a.logEvent(ctx, "Observations within age window:", strconv.Itoa(stats.Recent))
	a.logEvent(ctx, "Observations without source:", strconv.Itoa(stats.WithoutSource))
	a.logEvent(ctx, "Distinct integrity scores:", joinFloats(stats.Scores))

	return filtered, nil
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}
