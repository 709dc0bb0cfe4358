package airtable

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/adapter/http"
	"github.com/ecotrack/sync-core/internal/geo"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// GeometryField is the column carrying plot or observation geometry.
const GeometryField = "geometry"

// =============================================================================
// BATCH UPLOADER
// =============================================================================

// uploadPayload is the write-call body shape.
type uploadPayload struct {
	Records []uploadRecord `json:"records"`
}

type uploadRecord struct {
	Fields map[string]any `json:"fields"`
}

// UploadResults writes records to a results table in ordered batches of at
// most ten, pacing submissions to respect the API's per-minute rate limit.
// Best-effort: a rejected batch lands in the result's failure list and the
// remaining batches are still submitted.
func (a *Adapter) UploadResults(ctx context.Context, records []tabular.Record, table string, opts adapter.UploadOptions) (*adapter.UploadResult, error) {
	if opts.DeleteAll {
		if _, err := a.ClearTables(ctx, []string{table}); err != nil {
			return nil, fmt.Errorf("clearing %s before upload: %w", table, err)
		}
	}

	prepared := make([]tabular.Record, len(records))
	for i, rec := range records {
		prepared[i] = tabular.Record{ID: rec.ID, Fields: prepareFields(rec.Fields, opts.InsertGeo)}
	}

	result := &adapter.UploadResult{}
	path := tablePath(a.cfg.ResultsBaseID, table)
	for i, batch := range tabular.Batches(prepared, tabular.MaxBatchSize) {
		payload := uploadPayload{Records: make([]uploadRecord, len(batch))}
		for j, rec := range batch {
			payload.Records[j] = uploadRecord{Fields: rec.Fields}
		}

		_, err := a.results.Post(ctx, path, payload)
		result.BatchesSent++
		if err != nil {
			failure := adapter.BatchFailure{Batch: i, Detail: err.Error()}
			var httpErr *http.HTTPError
			if errors.As(err, &httpErr) {
				failure.StatusCode = httpErr.StatusCode
				failure.Detail = httpErr.Message
			}
			result.Failures = append(result.Failures, failure)
			a.log.Error("batch write failed", "table", table, "batch", i, "error", err)
		} else {
			result.RecordsSent += len(batch)
		}

		a.sleep(ctx, a.pacing.BatchPace())
	}

	return result, nil
}

// prepareFields shapes one record for the wire: the geometry column becomes
// well-known text or is dropped, date/time and free-form values become plain
// text, and missing values become the empty string.
func prepareFields(fields map[string]any, insertGeo bool) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == GeometryField {
			if !insertGeo {
				continue
			}
			if g, ok := v.(geo.Geometry); ok {
				out[k] = g.WKT()
				continue
			}
		}
		out[k] = tabular.CoerceValue(v)
	}
	return out
}
