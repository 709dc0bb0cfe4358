package tabular

import (
	"testing"
	"time"
)

func TestBatches_Partitioning(t *testing.T) {
	records := make([]Record, 23)
	for i := range records {
		records[i] = Record{ID: string(rune('a' + i))}
	}

	batches := Batches(records, MaxBatchSize)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}

	sizes := []int{10, 10, 3}
	for i, want := range sizes {
		if len(batches[i]) != want {
			t.Errorf("batch %d: expected %d records, got %d", i, want, len(batches[i]))
		}
	}

	// Order is preserved across the batch boundary.
	if batches[1][0].ID != records[10].ID {
		t.Errorf("batch 1 does not start at record 10")
	}
	if batches[2][2].ID != records[22].ID {
		t.Errorf("last batch does not end at record 22")
	}
}

func TestBatches_Empty(t *testing.T) {
	if got := Batches(nil, 10); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestBatches_DefaultSize(t *testing.T) {
	records := make([]Record, 11)
	batches := Batches(records, 0)
	if len(batches) != 2 {
		t.Fatalf("expected default size %d to yield 2 batches, got %d", MaxBatchSize, len(batches))
	}
}

func TestCache_CompoundKey(t *testing.T) {
	cache := NewCache()

	cache.Put("rec1", "CODE", "POD-7")
	cache.Put("rec1", "project_id", "PRJ-1")

	v, ok := cache.Get("rec1", "CODE")
	if !ok || v != "POD-7" {
		t.Errorf("expected POD-7 for (rec1, CODE), got %v ok=%v", v, ok)
	}
	v, ok = cache.Get("rec1", "project_id")
	if !ok || v != "PRJ-1" {
		t.Errorf("expected PRJ-1 for (rec1, project_id), got %v ok=%v", v, ok)
	}
	if _, ok := cache.Get("rec2", "CODE"); ok {
		t.Error("unexpected hit for unknown record id")
	}
}

func TestCache_WriteOnce(t *testing.T) {
	cache := NewCache()
	cache.Put("rec1", "CODE", "first")
	cache.Put("rec1", "CODE", "second")

	v, _ := cache.Get("rec1", "CODE")
	if v != "first" {
		t.Errorf("cache entry was overwritten: got %v", v)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", cache.Len())
	}
}

func TestCoerceValue(t *testing.T) {
	when := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil becomes empty string", nil, ""},
		{"string passes through", "hello", "hello"},
		{"time formats as text", when, "2024-03-15 09:30:00"},
		{"float passes through", 4.5, 4.5},
		{"int passes through", 7, 7},
		{"bool passes through", true, true},
		{"list stringifies", []any{"a", "b"}, "[a b]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CoerceValue(tc.in); got != tc.want {
				t.Errorf("CoerceValue(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestCoerceFields_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{"a": nil, "b": "x"}
	out := CoerceFields(in)

	if in["a"] != nil {
		t.Error("input map was mutated")
	}
	if out["a"] != "" {
		t.Errorf("expected empty string, got %v", out["a"])
	}
}

func TestFirst(t *testing.T) {
	if got := First([]any{"only"}); got != "only" {
		t.Errorf("expected single element unwrap, got %v", got)
	}
	if got := First([]any{}); got != nil {
		t.Errorf("expected nil for empty list, got %v", got)
	}
	if got := First("plain"); got != "plain" {
		t.Errorf("expected pass-through, got %v", got)
	}
}

func TestRecord_Clone(t *testing.T) {
	orig := Record{ID: "r1", Fields: map[string]any{"a": 1}}
	copy := orig.Clone()
	copy.Fields["a"] = 2

	if orig.Fields["a"] != 1 {
		t.Error("clone shares field map with original")
	}
}
