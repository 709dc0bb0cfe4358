// Package config loads sync-core configuration from a YAML file with
// environment-variable overrides for credentials and backend selection.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIBaseURL is the production endpoint of the remote tabular API.
const DefaultAPIBaseURL = "https://api.airtable.com/v0"

// Config is the root configuration.
type Config struct {
	// Backend selects the variant: "airtable", "jdbc.postgres", "rest.generic".
	Backend string `yaml:"backend"`

	Airtable AirtableConfig `yaml:"airtable"`
	Postgres PostgresConfig `yaml:"postgres"`
	Storage  StorageConfig  `yaml:"storage"`
	Pacing   PacingConfig   `yaml:"pacing"`
}

// TableRef names a table within a base, optionally narrowed to a view.
type TableRef struct {
	BaseID string `yaml:"base_id"`
	Table  string `yaml:"table"`
	View   string `yaml:"view,omitempty"`
}

// AirtableConfig configures the remote tabular API backend.
type AirtableConfig struct {
	// APIBaseURL overrides the API endpoint (tests point it at a stub).
	APIBaseURL string `yaml:"api_base_url,omitempty"`

	// Token is the personal access token for source bases.
	Token string `yaml:"token"`

	// ResultsToken is the token for the results base; falls back to Token.
	ResultsToken string `yaml:"results_token,omitempty"`

	// LandTable holds land-plot rows with geometry attachments.
	LandTable TableRef `yaml:"land_table"`

	// AttachmentField is the land-table field carrying the KML attachment.
	AttachmentField string `yaml:"attachment_field"`

	// ObservationsTable holds raw observation rows.
	ObservationsTable TableRef `yaml:"observations_table"`

	// ResultsBaseID is the base uploads and clears operate on.
	ResultsBaseID string `yaml:"results_base_id"`

	// LogTable receives LogEvent rows (default: "Logs").
	LogTable string `yaml:"log_table,omitempty"`

	// DeleteWebhooks maps a results table name to its asynchronous
	// deletion-trigger URL.
	DeleteWebhooks map[string]string `yaml:"delete_webhooks,omitempty"`
}

// PostgresConfig configures the relational backend.
type PostgresConfig struct {
	DSN               string `yaml:"dsn"`
	LandTable         string `yaml:"land_table"`
	ObservationsTable string `yaml:"observations_table"`
	SpeciesTable      string `yaml:"species_table"`
	LogTable          string `yaml:"log_table,omitempty"`
}

// StorageConfig selects where downloaded geometry artifacts are stored.
type StorageConfig struct {
	// Kind is "local" (default) or "s3".
	Kind string `yaml:"kind,omitempty"`

	// KMLDir / ShapefileDir are the local directories (or object key
	// prefixes) the artifacts land under.
	KMLDir       string `yaml:"kml_dir,omitempty"`
	ShapefileDir string `yaml:"shapefile_dir,omitempty"`

	S3 S3Config `yaml:"s3,omitempty"`
}

// S3Config configures the MinIO/S3 object store.
type S3Config struct {
	EndpointURL     string `yaml:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region,omitempty"`
	UseSSL          bool   `yaml:"use_ssl,omitempty"`
}

// PacingConfig tunes the static admission-control intervals. Zero values
// take the production defaults; tests shrink them.
type PacingConfig struct {
	BatchPaceMillis      int `yaml:"batch_pace_ms,omitempty"`
	ClearSettleMillis    int `yaml:"clear_settle_ms,omitempty"`
	ClearFinalWaitMillis int `yaml:"clear_final_wait_ms,omitempty"`
	ClearMaxAttempts     int `yaml:"clear_max_attempts,omitempty"`
}

// BatchPace is the fixed interval between batch submissions.
func (p PacingConfig) BatchPace() time.Duration {
	return millis(p.BatchPaceMillis, 200*time.Millisecond)
}

// ClearSettle is the wait between deletion triggers and verification.
func (p PacingConfig) ClearSettle() time.Duration {
	return millis(p.ClearSettleMillis, 5*time.Second)
}

// ClearFinalWait is the wait before a clear cycle returns.
func (p PacingConfig) ClearFinalWait() time.Duration {
	return millis(p.ClearFinalWaitMillis, 10*time.Second)
}

// MaxClearAttempts bounds the trigger-and-verify rounds.
func (p PacingConfig) MaxClearAttempts() int {
	if p.ClearMaxAttempts <= 0 {
		return 3
	}
	return p.ClearMaxAttempts
}

func millis(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

// Load reads the config file at path and applies environment overrides and
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend = getEnv("SYNC_BACKEND", c.Backend)
	c.Airtable.Token = getEnv("SYNC_AIRTABLE_TOKEN", c.Airtable.Token)
	c.Airtable.ResultsToken = getEnv("SYNC_AIRTABLE_RESULTS_TOKEN", c.Airtable.ResultsToken)
	c.Postgres.DSN = getEnv("SYNC_POSTGRES_DSN", c.Postgres.DSN)
	c.Storage.S3.AccessKeyID = getEnv("SYNC_S3_ACCESS_KEY_ID", c.Storage.S3.AccessKeyID)
	c.Storage.S3.SecretAccessKey = getEnv("SYNC_S3_SECRET_ACCESS_KEY", c.Storage.S3.SecretAccessKey)
	c.Pacing.ClearMaxAttempts = getEnvInt("SYNC_CLEAR_MAX_ATTEMPTS", c.Pacing.ClearMaxAttempts)
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = "airtable"
	}
	if c.Airtable.APIBaseURL == "" {
		c.Airtable.APIBaseURL = DefaultAPIBaseURL
	}
	if c.Airtable.ResultsToken == "" {
		c.Airtable.ResultsToken = c.Airtable.Token
	}
	if c.Airtable.LogTable == "" {
		c.Airtable.LogTable = "Logs"
	}
	if c.Postgres.LogTable == "" {
		c.Postgres.LogTable = "logs"
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = "local"
	}
	if c.Storage.KMLDir == "" {
		c.Storage.KMLDir = "KML"
	}
	if c.Storage.ShapefileDir == "" {
		c.Storage.ShapefileDir = "SHPoriginal"
	}
}

// Validate checks the parts of the configuration the selected backend needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case "airtable":
		if c.Airtable.Token == "" {
			return &ValidationError{Field: "airtable.token", Message: "required"}
		}
		if c.Airtable.LandTable.BaseID == "" || c.Airtable.LandTable.Table == "" {
			return &ValidationError{Field: "airtable.land_table", Message: "base_id and table required"}
		}
		if c.Airtable.ObservationsTable.BaseID == "" || c.Airtable.ObservationsTable.Table == "" {
			return &ValidationError{Field: "airtable.observations_table", Message: "base_id and table required"}
		}
		if c.Airtable.ResultsBaseID == "" {
			return &ValidationError{Field: "airtable.results_base_id", Message: "required"}
		}
	case "jdbc.postgres":
		if c.Postgres.DSN == "" {
			return &ValidationError{Field: "postgres.dsn", Message: "required"}
		}
	}
	if c.Storage.Kind == "s3" {
		if c.Storage.S3.EndpointURL == "" {
			return &ValidationError{Field: "storage.s3.endpoint_url", Message: "required"}
		}
		if c.Storage.S3.Bucket == "" {
			return &ValidationError{Field: "storage.s3.bucket", Message: "required"}
		}
	}
	return nil
}

// ValidationError reports an invalid or missing configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
