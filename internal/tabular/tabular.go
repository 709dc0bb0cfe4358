// Package tabular defines the value types shared by every sync-core
// component: records fetched from or written to a tabular backend, the
// pages a paginated API returns them in, the memoization cache used for
// linked-record resolution, and batch partitioning for rate-limited writes.
package tabular

import (
	"fmt"
	"time"
)

// Record is a single row of a remote table: an opaque identifier plus a
// mapping from field name to a dynamically typed value (string, float64,
// []any or nil, as produced by JSON decoding). Fetched records are treated
// as immutable; derive new records for upload instead of mutating in place.
type Record struct {
	ID     string
	Fields map[string]any
}

// Clone returns a record with a fresh Fields map so the original stays
// untouched when the copy is reshaped for upload.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Fields: fields}
}

// Page is one response of a paginated listing: a finite ordered sequence of
// records plus an optional continuation token. An empty Offset signals the
// final page. The token is opaque and is never parsed or computed locally.
type Page struct {
	Records []Record
	Offset  string
}

// MaxBatchSize is the largest number of records the remote API accepts in
// one write call.
const MaxBatchSize = 10

// Batches partitions records into ordered slices of at most size records.
// Batches share backing storage with the input slice; callers must not
// append to them.
func Batches(records []Record, size int) [][]Record {
	if size <= 0 {
		size = MaxBatchSize
	}
	if len(records) == 0 {
		return nil
	}
	out := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// =============================================================================
// LINKED-RECORD CACHE
// =============================================================================

type cacheKey struct {
	recordID string
	field    string
}

// Cache memoizes resolved linked-record values. Keys are the compound
// (record id, field name) so two lookups of the same id under different
// fields occupy distinct slots. Entries are write-once: the first value
// stored for a key wins for the cache's lifetime.
//
// Caches are request-scoped and assume the single sequential writer of the
// adapter model; there is no locking.
type Cache struct {
	values map[cacheKey]any
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{values: make(map[cacheKey]any)}
}

// Get returns the cached value for (recordID, field) and whether it exists.
func (c *Cache) Get(recordID, field string) (any, bool) {
	v, ok := c.values[cacheKey{recordID, field}]
	return v, ok
}

// Put stores the value for (recordID, field). An existing entry is never
// overwritten.
func (c *Cache) Put(recordID, field string, value any) {
	key := cacheKey{recordID, field}
	if _, ok := c.values[key]; ok {
		return
	}
	c.values[key] = value
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.values)
}

// =============================================================================
// VALUE COERCION
// =============================================================================

// TimeLayout is the textual form date/time values take on upload.
const TimeLayout = "2006-01-02 15:04:05"

// CoerceValue maps a field value to the shape the remote API accepts:
// date/time values and free-form values become plain text, missing values
// become the empty string (the API has no native null), and numeric and
// boolean values pass through unchanged.
func CoerceValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(TimeLayout)
	case bool, int, int32, int64, float32, float64:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// CoerceFields returns a copy of fields with every value passed through
// CoerceValue.
func CoerceFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = CoerceValue(v)
	}
	return out
}

// First unwraps single-element list values, a shape linked-record fields
// commonly arrive in. Non-list values are returned as-is; empty lists
// return nil.
func First(v any) any {
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return v
}
