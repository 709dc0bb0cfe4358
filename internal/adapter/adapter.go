// Package adapter defines the data-source contract every sync-core backend
// must implement, together with the registry the concrete backends register
// themselves in.
//
// Architecture:
//
//	DataAdapter - the capability interface callers drive the sync through
//	Registry    - closed set of backend variants selected at configuration time
//	errors.go   - the error taxonomy shared by all backends
//
// Backends: "airtable" (remote tabular API, fully implemented),
// "jdbc.postgres" (relational), "rest.generic" (template, statically
// excluded from creation).
package adapter

import (
	"context"

	"github.com/ecotrack/sync-core/internal/tabular"
)

// DataAdapter is the contract between the pipeline and a tabular backend.
// Implementations are driven by a single sequential caller; no operation
// runs concurrently with another on one adapter instance.
type DataAdapter interface {
	// DownloadLandData fetches land-plot metadata and downloads the plots'
	// geometry attachments (KML files, zipped shapefiles) to the configured
	// store. Returns one metadata record per plot that carried geometry.
	DownloadLandData(ctx context.Context, req *LandDataRequest) ([]tabular.Record, error)

	// DownloadObservations fetches observation records and applies the
	// domain filtering/derivation pass.
	DownloadObservations(ctx context.Context) ([]tabular.Record, error)

	// UploadResults writes records to the named destination table in
	// rate-limited batches. Best-effort: individual batch failures are
	// reported in the result and do not abort the remaining batches.
	UploadResults(ctx context.Context, records []tabular.Record, table string, opts UploadOptions) (*UploadResult, error)

	// LogEvent appends a structured (event, info) row to the backend's log
	// table.
	LogEvent(ctx context.Context, event, info string) error

	// ClearTables empties the named tables. Idempotent; clearing an
	// already-empty table costs only the trigger calls.
	ClearTables(ctx context.Context, tables []string) (*ClearResult, error)

	// GetAreaCertifier returns the plot_id/area_certifier projection of the
	// land table. Missing certifier values are reported as 0.
	GetAreaCertifier(ctx context.Context) ([]tabular.Record, error)

	// ResolveLinked dereferences a foreign record id to one of its fields,
	// memoized in cache. A nil cache uses the adapter's default cache.
	// Fails softly: a broken reference yields (nil, false), never an abort.
	ResolveLinked(ctx context.Context, recordID, field string, cache *tabular.Cache) (any, bool)

	// Close releases backend resources.
	Close() error
}

// LandDataRequest overrides where downloaded geometry artifacts land.
// A nil request uses the configured defaults.
type LandDataRequest struct {
	KMLDir       string
	ShapefileDir string
}

// UploadOptions controls one UploadResults call.
type UploadOptions struct {
	// InsertGeo serializes the geometry column to well-known text. When
	// false the column is dropped entirely; its absence is not an error.
	InsertGeo bool

	// DeleteAll clears the destination table before writing.
	DeleteAll bool
}

// BatchFailure records one non-success batch write.
type BatchFailure struct {
	Batch      int // zero-based index within the upload call
	StatusCode int
	Detail     string
}

// UploadResult reports what an upload actually achieved. Callers decide
// whether a partial upload is fatal.
type UploadResult struct {
	RecordsSent int
	BatchesSent int
	Failures    []BatchFailure
}

// AllSucceeded reports whether every batch was accepted.
func (r *UploadResult) AllSucceeded() bool {
	return len(r.Failures) == 0
}

// ClearResult reports the outcome of a clear cycle.
type ClearResult struct {
	// Attempts is the number of trigger-and-verify rounds performed.
	Attempts int

	// Cleared lists tables verified empty.
	Cleared []string

	// Stuck lists tables still non-empty after the final attempt.
	Stuck []string
}

// AllCleared reports whether every requested table verified empty.
func (r *ClearResult) AllCleared() bool {
	return len(r.Stuck) == 0
}
