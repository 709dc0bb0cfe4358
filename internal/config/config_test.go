package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
backend: airtable
airtable:
  token: pat_source
  land_table:
    base_id: appLand
    table: land_plots
    view: viwActive
  attachment_field: kml_polygon
  observations_table:
    base_id: appObs
    table: observations
    view: viwScored
  results_base_id: appResults
  delete_webhooks:
    results_obs: https://hooks.example.com/clear/results_obs
storage:
  kind: local
pacing:
  batch_pace_ms: 200
  clear_max_attempts: 4
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Airtable.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("api base url default missing: %q", cfg.Airtable.APIBaseURL)
	}
	if cfg.Airtable.ResultsToken != "pat_source" {
		t.Errorf("results token should fall back to token, got %q", cfg.Airtable.ResultsToken)
	}
	if cfg.Airtable.LogTable != "Logs" {
		t.Errorf("log table default missing: %q", cfg.Airtable.LogTable)
	}
	if cfg.Storage.KMLDir != "KML" || cfg.Storage.ShapefileDir != "SHPoriginal" {
		t.Errorf("storage dir defaults missing: %q %q", cfg.Storage.KMLDir, cfg.Storage.ShapefileDir)
	}
}

func TestLoad_PacingValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.Pacing.BatchPace(); got != 200*time.Millisecond {
		t.Errorf("BatchPace = %v", got)
	}
	if got := cfg.Pacing.ClearSettle(); got != 5*time.Second {
		t.Errorf("ClearSettle default = %v", got)
	}
	if got := cfg.Pacing.ClearFinalWait(); got != 10*time.Second {
		t.Errorf("ClearFinalWait default = %v", got)
	}
	if got := cfg.Pacing.MaxClearAttempts(); got != 4 {
		t.Errorf("MaxClearAttempts = %d", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_AIRTABLE_TOKEN", "pat_from_env")
	t.Setenv("SYNC_BACKEND", "jdbc.postgres")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Airtable.Token != "pat_from_env" {
		t.Errorf("env token override not applied: %q", cfg.Airtable.Token)
	}
	if cfg.Backend != "jdbc.postgres" {
		t.Errorf("env backend override not applied: %q", cfg.Backend)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg.Airtable.Token = ""
	cfg.Airtable.ResultsToken = ""
	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing token")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestValidate_S3NeedsEndpointAndBucket(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Storage.Kind = "s3"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for empty s3 config")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
