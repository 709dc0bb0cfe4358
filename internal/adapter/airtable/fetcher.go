package airtable

import (
	"context"
	"errors"
	"net/url"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/adapter/http"
	"github.com/ecotrack/sync-core/internal/config"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// =============================================================================
// PAGINATED FETCHER
// =============================================================================

// recordsEnvelope is the listing response shape shared by page fetches and
// emptiness probes.
type recordsEnvelope struct {
	Records []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
}

// fetchAll exhaustively retrieves a table, following continuation tokens
// until a response omits one. Any non-success page aborts the whole fetch;
// no partial result is returned. Fetched fields are primed into the default
// resolution cache, so resolving an id the fetcher already saw needs no
// further network call.
func (a *Adapter) fetchAll(ctx context.Context, client *http.Client, ref config.TableRef) ([]tabular.Record, error) {
	query := url.Values{}
	if ref.View != "" {
		query.Set("view", ref.View)
	}
	paginator := http.NewCursorPaginator(tablePath(ref.BaseID, ref.Table), query)

	var all []tabular.Record
	req := paginator.FirstPage()
	for req != nil {
		resp, err := client.Do(ctx, req)
		if err != nil {
			return nil, remoteError("fetch", ref.Table, err)
		}

		var envelope recordsEnvelope
		if err := resp.JSON(&envelope); err != nil {
			return nil, &adapter.RemoteError{Op: "fetch", Table: ref.Table, Err: err}
		}
		for _, r := range envelope.Records {
			rec := tabular.Record{ID: r.ID, Fields: r.Fields}
			all = append(all, rec)
			a.primeCache(rec)
		}

		req, err = paginator.NextPage(resp)
		if err != nil {
			return nil, &adapter.RemoteError{Op: "fetch", Table: ref.Table, Err: err}
		}
	}

	a.log.Debug("fetched table", "table", ref.Table, "records", len(all), "pages", paginator.Pages())
	return all, nil
}

// primeCache memoizes a fetched record's fields for the resolver.
func (a *Adapter) primeCache(rec tabular.Record) {
	for field, v := range rec.Fields {
		a.defaultCache.Put(rec.ID, field, v)
	}
}

// remoteError shapes a transport failure into the fetch-phase taxonomy.
func remoteError(op, table string, err error) *adapter.RemoteError {
	var httpErr *http.HTTPError
	if errors.As(err, &httpErr) {
		return &adapter.RemoteError{
			Op:         op,
			Table:      table,
			StatusCode: httpErr.StatusCode,
			Detail:     httpErr.Message,
			Err:        err,
		}
	}
	return &adapter.RemoteError{Op: op, Table: table, Err: err}
}
