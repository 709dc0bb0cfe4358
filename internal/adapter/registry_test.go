package adapter_test

import (
	"errors"
	"log/slog"
	"sort"
	"testing"

	"github.com/ecotrack/sync-core/internal/adapter"
	_ "github.com/ecotrack/sync-core/internal/adapter/backends"
	"github.com/ecotrack/sync-core/internal/config"
)

func TestDefaultRegistryHoldsClosedBackendSet(t *testing.T) {
	ids := adapter.DefaultRegistry().List()
	sort.Strings(ids)
	want := []string{"airtable", "jdbc.postgres", "rest.generic"}
	if len(ids) != len(want) {
		t.Fatalf("registered backends = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("backend %d = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestCreateUnknownBackend(t *testing.T) {
	if _, err := adapter.Create("mongo", &config.Config{}, slog.Default()); err == nil {
		t.Fatal("expected error for unregistered backend")
	}
}

func TestCreateRESTGenericNotImplemented(t *testing.T) {
	_, err := adapter.Create("rest.generic", &config.Config{}, slog.Default())
	if !errors.Is(err, adapter.ErrNotImplemented) {
		t.Fatalf("err = %v, want ErrNotImplemented", err)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := adapter.NewRegistry()
	factory := func(cfg *config.Config, log *slog.Logger) (adapter.DataAdapter, error) {
		return nil, nil
	}
	r.Register("x", &adapter.Descriptor{ID: "x"}, factory)

	defer func() {
		if recover() == nil {
			t.Fatal("duplicate registration did not panic")
		}
	}()
	r.Register("x", &adapter.Descriptor{ID: "x"}, factory)
}

func TestDescribe(t *testing.T) {
	desc, ok := adapter.DefaultRegistry().Describe("airtable")
	if !ok || desc.Title == "" {
		t.Fatalf("Describe(airtable) = %+v, %v", desc, ok)
	}
	if _, ok := adapter.DefaultRegistry().Describe("nope"); ok {
		t.Error("Describe of unknown id reported ok")
	}
}
