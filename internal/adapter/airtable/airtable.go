// Package airtable implements the remote-tabular-API backend: exhaustive
// paginated fetching, cached linked-record resolution, batched rate-limited
// uploads, and webhook-triggered table clearing with bounded verification
// retries.
package airtable

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/adapter/http"
	"github.com/ecotrack/sync-core/internal/config"
	"github.com/ecotrack/sync-core/internal/landfiles"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// Ensure interface compliance
var _ adapter.DataAdapter = (*Adapter)(nil)

// Adapter is the Airtable backend. It is driven by a single sequential
// caller; the only state shared across calls is the configuration and the
// default resolution cache.
type Adapter struct {
	cfg    *config.AirtableConfig
	pacing config.PacingConfig

	// client authenticates against the source bases, results against the
	// results base. They may share a token.
	client  *http.Client
	results *http.Client

	files *landfiles.Downloader
	log   *slog.Logger
	runID string

	// defaultCache serves ResolveLinked calls that pass a nil cache and is
	// primed with the fields of every record the fetcher sees.
	defaultCache *tabular.Cache
}

// New creates the Airtable backend from the loaded configuration.
func New(cfg *config.Config, files *landfiles.Downloader, log *slog.Logger) (*Adapter, error) {
	at := &cfg.Airtable
	if at.Token == "" {
		return nil, &config.ValidationError{Field: "airtable.token", Message: "required"}
	}
	if at.LandTable.BaseID == "" || at.LandTable.Table == "" {
		return nil, &config.ValidationError{Field: "airtable.land_table", Message: "base_id and table required"}
	}
	if at.ObservationsTable.BaseID == "" || at.ObservationsTable.Table == "" {
		return nil, &config.ValidationError{Field: "airtable.observations_table", Message: "base_id and table required"}
	}
	if at.ResultsBaseID == "" {
		return nil, &config.ValidationError{Field: "airtable.results_base_id", Message: "required"}
	}

	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()
	log = log.With("backend", "airtable", "run_id", runID)

	return &Adapter{
		cfg:          at,
		pacing:       cfg.Pacing,
		client:       newAPIClient(at.APIBaseURL, at.Token),
		results:      newAPIClient(at.APIBaseURL, at.ResultsToken),
		files:        files,
		log:          log,
		runID:        runID,
		defaultCache: tabular.NewCache(),
	}, nil
}

func newAPIClient(baseURL, token string) *http.Client {
	httpCfg := http.DefaultClientConfig()
	httpCfg.BaseURL = baseURL
	httpCfg.Auth = http.BearerToken{Token: token}
	httpCfg.Headers["Content-Type"] = "application/json"
	return http.NewClient(httpCfg)
}

// Close releases backend resources. The HTTP clients need no cleanup.
func (a *Adapter) Close() error {
	return nil
}

// LogEvent appends a (Event, Info) row to the configured log table by
// recursing into UploadResults with the fixed two-column shape.
func (a *Adapter) LogEvent(ctx context.Context, event, info string) error {
	rec := tabular.Record{Fields: map[string]any{
		"Event": event,
		"Info":  info,
	}}
	result, err := a.UploadResults(ctx, []tabular.Record{rec}, a.cfg.LogTable, adapter.UploadOptions{})
	if err != nil {
		return fmt.Errorf("log event %q: %w", event, err)
	}
	if !result.AllSucceeded() {
		return fmt.Errorf("log event %q: batch rejected: %s", event, result.Failures[0].Detail)
	}
	return nil
}

// logEvent records an event without failing the surrounding operation; a
// broken log table must not sink a sync run.
func (a *Adapter) logEvent(ctx context.Context, event, info string) {
	if err := a.LogEvent(ctx, event, info); err != nil {
		a.log.Warn("log event failed", "event", event, "error", err)
	}
}

// tablePath builds the API path for a table within a base.
func tablePath(baseID, table string) string {
	return "/" + url.PathEscape(baseID) + "/" + url.PathEscape(table)
}

// sleep pauses for the pacing interval, bailing early on cancellation.
func (a *Adapter) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
