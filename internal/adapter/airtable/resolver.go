package airtable

import (
	"context"

	"github.com/ecotrack/sync-core/internal/adapter"
	"github.com/ecotrack/sync-core/internal/adapter/http"
	"github.com/ecotrack/sync-core/internal/config"
	"github.com/ecotrack/sync-core/internal/tabular"
)

// =============================================================================
// LINKED-RECORD RESOLVER
// =============================================================================

// ResolveLinked dereferences a foreign record id in the land table to one of
// its fields. The same foreign id is looked up repeatedly across many local
// rows, so hits are memoized; the cache key is the compound (id, field) so
// two different field lookups of one id never collide.
func (a *Adapter) ResolveLinked(ctx context.Context, recordID, field string, cache *tabular.Cache) (any, bool) {
	return a.resolveFrom(ctx, a.client, a.cfg.LandTable, recordID, field, cache)
}

// resolveFrom resolves against an arbitrary table. Fails softly: a fetch
// failure or absent field is reported and yields no value rather than
// aborting the caller's resolution pass.
func (a *Adapter) resolveFrom(ctx context.Context, client *http.Client, ref config.TableRef, recordID, field string, cache *tabular.Cache) (any, bool) {
	if cache == nil {
		cache = a.defaultCache
	}
	if v, ok := cache.Get(recordID, field); ok {
		return v, true
	}
	// Records the fetcher already saw are primed into the default cache.
	if cache != a.defaultCache {
		if v, ok := a.defaultCache.Get(recordID, field); ok {
			cache.Put(recordID, field, v)
			return v, true
		}
	}

	resp, err := client.Get(ctx, tablePath(ref.BaseID, ref.Table)+"/"+recordID, nil)
	if err != nil {
		ref := &adapter.UnresolvedReference{RecordID: recordID, Field: field, Err: err}
		a.log.Warn("linked record fetch failed", "error", ref)
		return nil, false
	}

	var body struct {
		Fields map[string]any `json:"fields"`
	}
	if err := resp.JSON(&body); err != nil {
		ref := &adapter.UnresolvedReference{RecordID: recordID, Field: field, Err: err}
		a.log.Warn("linked record decode failed", "error", ref)
		return nil, false
	}

	v, ok := body.Fields[field]
	if !ok {
		a.log.Warn("linked record field absent",
			"error", &adapter.UnresolvedReference{RecordID: recordID, Field: field})
		return nil, false
	}

	cache.Put(recordID, field, v)
	return v, true
}
