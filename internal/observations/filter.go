// Package observations applies the domain filtering and derivation pass to
// raw observation records fetched from a backend.
package observations

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ecotrack/sync-core/internal/tabular"
)

// Field names of the derived output records.
const (
	FieldEcoID      = "eco_id"
	FieldEcoDate    = "eco_date"
	FieldNameCommon = "name_common"
	FieldNameLatin  = "name_latin"
	FieldRadius     = "radius"
	FieldScore      = "score"
	FieldLat        = "lat"
	FieldLong       = "long"
	FieldSource     = "iNaturalist"
)

// DefaultMaxAge drops observations older than ten years.
const DefaultMaxAge = 10 * 365 * 24 * time.Hour

// ResolveFunc dereferences a species record id to its common name. A false
// return means the reference could not be resolved; the row keeps its
// locally derived name.
type ResolveFunc func(ctx context.Context, recordID string) (any, bool)

// Stats counts the rows surviving each filtering step.
type Stats struct {
	Fetched       int
	WithScore     int
	RadiusOK      int
	LongitudeOK   int
	Recent        int
	WithoutSource int
	Scores        []float64 // distinct, descending
	Radii         []float64 // distinct, descending
}

// Filter derives and filters observation rows.
type Filter struct {
	// Now anchors the age cutoff; zero means time.Now().
	Now time.Time

	// MaxAge is the oldest observation kept (default: DefaultMaxAge).
	MaxAge time.Duration

	// Resolve fetches the linked species common name. Nil disables the
	// lookup.
	Resolve ResolveFunc
}

// Apply runs the pass over raw records and returns the derived rows, newest
// first, together with per-step counts.
func (f *Filter) Apply(ctx context.Context, records []tabular.Record) ([]tabular.Record, *Stats, error) {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	maxAge := f.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := now.Add(-maxAge)

	stats := &Stats{Fetched: len(records)}
	scores := map[float64]bool{}
	radii := map[float64]bool{}

	type row struct {
		rec  tabular.Record
		date time.Time
	}
	var kept []row

	for _, rec := range records {
		fields := rec.Fields

		if fields["integrity_score"] == nil {
			continue
		}
		stats.WithScore++

		score := maxOf(fields["integrity_score"])
		radius := round2(maxOf(fields["calc_radius"]))
		if radius <= 0 {
			continue
		}
		stats.RadiusOK++

		long, ok := asFloat(fields["eco_long"])
		if !ok || long >= 0 {
			continue
		}
		stats.LongitudeOK++

		date, ok := parseDate(fields["eco_date"])
		if !ok || date.Before(cutoff) {
			continue
		}
		stats.Recent++

		nameCommon := textOf(fields["name_common_es"])
		if nameCommon == "" && f.Resolve != nil {
			if id, ok := tabular.First(fields["species_type"]).(string); ok && id != "" {
				if v, ok := f.Resolve(ctx, id); ok {
					nameCommon = textOf(v)
				}
			}
		}

		source := fields["iNaturalist"]
		if source == nil || source == "" {
			stats.WithoutSource++
		}

		scores[score] = true
		radii[radius] = true

		lat, _ := asFloat(fields["eco_lat"])
		kept = append(kept, row{
			rec: tabular.Record{ID: rec.ID, Fields: map[string]any{
				FieldEcoID:      fields["# ECO"],
				FieldEcoDate:    date,
				FieldNameCommon: nameCommon,
				FieldNameLatin:  textOf(fields["name_latin"]),
				FieldRadius:     radius,
				FieldScore:      score,
				FieldLat:        lat,
				FieldLong:       long,
				FieldSource:     source,
			}},
			date: date,
		})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].date.After(kept[j].date)
	})

	out := make([]tabular.Record, len(kept))
	for i, r := range kept {
		out[i] = r.rec
	}
	stats.Scores = sortedDesc(scores)
	stats.Radii = sortedDesc(radii)
	return out, stats, nil
}

// textOf derives a display string: a single-element list unwraps to its
// element, longer lists stringify whole, nil becomes empty.
func textOf(v any) string {
	if list, ok := v.([]any); ok {
		if len(list) != 1 {
			return fmt.Sprint(list)
		}
		v = list[0]
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// maxOf returns the largest numeric element of a list value, or the value
// itself when scalar.
func maxOf(v any) float64 {
	if list, ok := v.([]any); ok {
		best := math.Inf(-1)
		for _, item := range list {
			if f, ok := asFloat(item); ok && f > best {
				best = f
			}
		}
		if math.IsInf(best, -1) {
			return 0
		}
		return best
	}
	f, _ := asFloat(v)
	return f
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
}

func parseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func sortedDesc(set map[float64]bool) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
