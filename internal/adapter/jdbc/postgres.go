// Package jdbc implements the relational backend over database/sql.
//
// The schema mirrors the remote tabular layout: a land table with per-plot
// geometry URLs and certifier areas, an observations table feeding the
// filtering pass, a species table for name resolution, and a log table for
// event rows.
package jdbc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/config"
	"github.com/ecotrack/sync-core/internal/geo"
	"github.com/ecotrack/sync-core/internal/landfiles"
	"github.com/ecotrack/sync-core/internal/observations"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// Ensure interface compliance
var _ adapter.DataAdapter = (*Adapter)(nil)

// Adapter is the PostgreSQL backend.
type Adapter struct {
	cfg    *config.PostgresConfig
	pacing config.PacingConfig
	db     *sql.DB
	files  *landfiles.Downloader
	log    *slog.Logger
	runID  string

	// defaultCache serves ResolveLinked calls that pass a nil cache.
	defaultCache *tabular.Cache
}

// New opens the database and verifies the connection.
func New(cfg *config.Config, files *landfiles.Downloader, log *slog.Logger) (*Adapter, error) {
	pg := &cfg.Postgres
	if pg.DSN == "" {
		return nil, &config.ValidationError{Field: "postgres.dsn", Message: "required"}
	}
	if pg.LandTable == "" || pg.ObservationsTable == "" {
		return nil, &config.ValidationError{Field: "postgres", Message: "land_table and observations_table required"}
	}

	db, err := sql.Open("postgres", pg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()

	return &Adapter{
		cfg:          pg,
		pacing:       cfg.Pacing,
		db:           db,
		files:        files,
		log:          log.With("backend", "jdbc.postgres", "run_id", runID),
		runID:        runID,
		defaultCache: tabular.NewCache(),
	}, nil
}

// Close releases database resources.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// =============================================================================
// FETCHING
// =============================================================================

// fetchTable reads a whole table into records. The "id" column, when
// present, becomes the record id; remaining columns become fields.
func (a *Adapter) fetchTable(ctx context.Context, table string) ([]tabular.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s", pq.QuoteIdentifier(table))
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &adapter.RemoteError{Op: "fetch", Table: table, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &adapter.RemoteError{Op: "fetch", Table: table, Err: err}
	}

	var records []tabular.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &adapter.RemoteError{Op: "fetch", Table: table, Err: err}
		}

		rec := tabular.Record{Fields: make(map[string]any, len(cols))}
		for i, col := range cols {
			v := normalizeValue(values[i])
			if col == "id" {
				rec.ID = fmt.Sprint(v)
				continue
			}
			if v != nil {
				rec.Fields[col] = v
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &adapter.RemoteError{Op: "fetch", Table: table, Err: err}
	}

	a.log.Debug("fetched table", "table", table, "records", len(records))
	return records, nil
}

// normalizeValue maps driver types onto the field value domain.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

// =============================================================================
// LAND DATA
// =============================================================================

// DownloadLandData reads the land table and downloads each plot's geometry
// artifacts. The relational schema stores the pod code and biodiversity
// project id denormalized on the row, so no reference resolution is needed.
func (a *Adapter) DownloadLandData(ctx context.Context, req *adapter.LandDataRequest) ([]tabular.Record, error) {
	files := a.files
	if req != nil && (req.KMLDir != "" || req.ShapefileDir != "") {
		kmlDir, shpDir := a.files.KMLPrefix, a.files.ShapePrefix
		if req.KMLDir != "" {
			kmlDir = req.KMLDir
		}
		if req.ShapefileDir != "" {
			shpDir = req.ShapefileDir
		}
		files = landfiles.NewDownloader(a.files.Store, kmlDir, shpDir, a.log)
	}
	if err := files.Reset(ctx); err != nil {
		return nil, fmt.Errorf("resetting artifact store: %w", err)
	}

	records, err := a.fetchTable(ctx, a.cfg.LandTable)
	if err != nil {
		return nil, err
	}

	var metadata []tabular.Record
	var kmlDownloaded, shpDownloaded int
	for _, rec := range records {
		kmlURL, _ := rec.Fields["kml_url"].(string)
		shpURL, _ := rec.Fields["shapefile_url"].(string)
		if kmlURL == "" && shpURL == "" {
			continue
		}
		plotID := padPlotID(rec.Fields["plot_id"])

		if kmlURL != "" {
			if err := files.FetchKML(ctx, plotID, kmlURL); err != nil {
				a.log.Error("kml download failed", "plot_id", plotID, "error", err)
			} else {
				kmlDownloaded++
			}
		}
		if shpURL != "" {
			err := files.FetchShapefile(ctx, plotID, shpURL)
			var bad *landfiles.ErrBadArchive
			switch {
			case errors.As(err, &bad):
				a.log.Error("invalid shapefile archive", "plot_id", plotID, "error", err)
			case err != nil:
				a.log.Error("shapefile download failed", "plot_id", plotID, "error", err)
			default:
				shpDownloaded++
			}
		}

		area := rec.Fields["area_certifier"]
		if area == nil {
			area = 0.0
		}
		metadata = append(metadata, tabular.Record{ID: rec.ID, Fields: map[string]any{
			"plot_id":              plotID,
			"POD":                  textField(rec.Fields["pod_code"]),
			"project_biodiversity": textField(rec.Fields["project_id"]),
			"area_certifier":       area,
		}})
	}

	a.logEvent(ctx, "Total records with KML or shapefile:", fmt.Sprint(len(metadata)))
	a.logEvent(ctx, "Total KMLs downloaded:", fmt.Sprint(kmlDownloaded))
	a.logEvent(ctx, "Total shapefiles downloaded:", fmt.Sprint(shpDownloaded))
	return metadata, nil
}

func textField(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func padPlotID(v any) string {
	s := textField(v)
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		s = fmt.Sprint(int64(f))
	}
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// =============================================================================
// OBSERVATIONS
// =============================================================================

// DownloadObservations reads the observations table and applies the quality
// filter, resolving species names from the species table.
func (a *Adapter) DownloadObservations(ctx context.Context) ([]tabular.Record, error) {
	records, err := a.fetchTable(ctx, a.cfg.ObservationsTable)
	if err != nil {
		return nil, err
	}
	a.logEvent(ctx, "Total observations fetched:", fmt.Sprint(len(records)))

	speciesCache := tabular.NewCache()
	filter := observations.Filter{
		Resolve: func(ctx context.Context, speciesID string) (any, bool) {
			return a.resolveFrom(ctx, a.cfg.SpeciesTable, speciesID, "species_name_common_es", speciesCache)
		},
	}
	filtered, stats, err := filter.Apply(ctx, records)
	if err != nil {
		return nil, err
	}

	a.logEvent(ctx, "Observations with integrity score:", fmt.Sprint(stats.WithScore))
	a.logEvent(ctx, "Observations within age window:", fmt.Sprint(stats.Recent))
	return filtered, nil
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ResolveLinked dereferences a row id in the land table to one of its
// columns, memoized in cache.
func (a *Adapter) ResolveLinked(ctx context.Context, recordID, field string, cache *tabular.Cache) (any, bool) {
	return a.resolveFrom(ctx, a.cfg.LandTable, recordID, field, cache)
}

func (a *Adapter) resolveFrom(ctx context.Context, table, recordID, field string, cache *tabular.Cache) (any, bool) {
	if cache == nil {
		cache = a.defaultCache
	}
	if v, ok := cache.Get(recordID, field); ok {
		return v, true
	}
	if table == "" || !validIdentifier(field) {
		a.log.Warn("linked record lookup rejected",
			"error", &adapter.UnresolvedReference{RecordID: recordID, Field: field})
		return nil, false
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1",
		pq.QuoteIdentifier(field), pq.QuoteIdentifier(table))
	var v any
	if err := a.db.QueryRowContext(ctx, query, recordID).Scan(&v); err != nil {
		a.log.Warn("linked record lookup failed",
			"error", &adapter.UnresolvedReference{RecordID: recordID, Field: field, Err: err})
		return nil, false
	}
	v = normalizeValue(v)
	cache.Put(recordID, field, v)
	return v, true
}

// validIdentifier accepts plain SQL identifiers only; field names arrive
// from record data and must never smuggle SQL.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// =============================================================================
// UPLOADING
// =============================================================================

// UploadResults inserts records in multi-row statements of at most ten,
// pacing between batches. A failed statement lands in the failure list and
// the remaining batches still run.
func (a *Adapter) UploadResults(ctx context.Context, records []tabular.Record, table string, opts adapter.UploadOptions) (*adapter.UploadResult, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
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
	for i, batch := range tabular.Batches(prepared, tabular.MaxBatchSize) {
		query, args, err := insertStatement(table, batch)
		if err != nil {
			result.BatchesSent++
			result.Failures = append(result.Failures, adapter.BatchFailure{Batch: i, Detail: err.Error()})
			continue
		}

		_, err = a.db.ExecContext(ctx, query, args...)
		result.BatchesSent++
		if err != nil {
			result.Failures = append(result.Failures, adapter.BatchFailure{Batch: i, Detail: err.Error()})
			a.log.Error("batch insert failed", "table", table, "batch", i, "error", err)
		} else {
			result.RecordsSent += len(batch)
		}

		if d := a.pacing.BatchPace(); d > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}
	return result, nil
}

func prepareFields(fields map[string]any, insertGeo bool) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "geometry" {
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

// insertStatement builds one multi-row INSERT for a batch. Columns come from
// the first record, sorted for stable statements; records missing a column
// insert NULL.
func insertStatement(table string, batch []tabular.Record) (string, []any, error) {
	if len(batch) == 0 {
		return "", nil, fmt.Errorf("empty batch")
	}
	cols := make([]string, 0, len(batch[0].Fields))
	for col := range batch[0].Fields {
		if !validIdentifier(col) {
			return "", nil, fmt.Errorf("invalid column name %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ",
		pq.QuoteIdentifier(table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(batch)*len(cols))
	for i, rec := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j, col := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", len(args)+1)
			v, ok := rec.Fields[col]
			if !ok {
				v = nil
			}
			args = append(args, v)
		}
		sb.WriteString(")")
	}
	return sb.String(), args, nil
}

// =============================================================================
// CLEARING AND LOGGING
// =============================================================================

// ClearTables deletes every row of the named tables. Deletion is
// synchronous here, so one attempt always settles the outcome.
func (a *Adapter) ClearTables(ctx context.Context, tables []string) (*adapter.ClearResult, error) {
	result := &adapter.ClearResult{Attempts: 1}
	for _, table := range tables {
		if !validIdentifier(table) {
			result.Stuck = append(result.Stuck, table)
			continue
		}
		if _, err := a.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", pq.QuoteIdentifier(table))); err != nil {
			a.log.Error("clear failed", "table", table, "error", err)
			result.Stuck = append(result.Stuck, table)
			continue
		}
		result.Cleared = append(result.Cleared, table)
	}
	if len(result.Stuck) > 0 {
		return result, fmt.Errorf("clear tables: %d table(s) failed: %v", len(result.Stuck), result.Stuck)
	}
	return result, nil
}

// LogEvent appends an (event, info) row to the log table.
func (a *Adapter) LogEvent(ctx context.Context, event, info string) error {
	query := fmt.Sprintf("INSERT INTO %s (event, info, logged_at) VALUES ($1, $2, $3)",
		pq.QuoteIdentifier(a.cfg.LogTable))
	if _, err := a.db.ExecContext(ctx, query, event, info, time.Now().UTC()); err != nil {
		return fmt.Errorf("log event %q: %w", event, err)
	}
	return nil
}

func (a *Adapter) logEvent(ctx context.Context, event, info string) {
	if err := a.LogEvent(ctx, event, info); err != nil {
		a.log.Warn("log event failed", "event", event, "error", err)
	}
}

// =============================================================================
// AREA CERTIFIER
// =============================================================================

// GetAreaCertifier projects the land table to per-plot certified areas.
func (a *Adapter) GetAreaCertifier(ctx context.Context) ([]tabular.Record, error) {
	query := fmt.Sprintf("SELECT id, plot_id, area_certifier FROM %s", pq.QuoteIdentifier(a.cfg.LandTable))
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &adapter.RemoteError{Op: "fetch", Table: a.cfg.LandTable, Err: err}
	}
	defer rows.Close()

	var out []tabular.Record
	for rows.Next() {
		// Scan into any: plot ids arrive as integers or text depending on
		// the schema, and a missing area is NULL.
		var id, plot, area any
		if err := rows.Scan(&id, &plot, &area); err != nil {
			return nil, &adapter.RemoteError{Op: "fetch", Table: a.cfg.LandTable, Err: err}
		}
		out = append(out, areaRecord(id, plot, area))
	}
	if err := rows.Err(); err != nil {
		return nil, &adapter.RemoteError{Op: "fetch", Table: a.cfg.LandTable, Err: err}
	}
	return out, nil
}

// areaRecord shapes one scanned land row into the projection record.
func areaRecord(id, plot, area any) tabular.Record {
	f, _ := normalizeValue(area).(float64)
	return tabular.Record{ID: textField(normalizeValue(id)), Fields: map[string]any{
		"plot_id":        padPlotID(normalizeValue(plot)),
		"area_certifier": f,
	}}
}
