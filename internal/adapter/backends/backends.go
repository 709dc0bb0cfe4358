// Package backends registers all sync-core backends.
package backends

import (
	// Import all backends to register them
	_ "github.com/ecotrack/sync-core/internal/adapter/airtable"
	_ "github.com/ecotrack/sync-core/internal/adapter/jdbc"
	_ "github.com/ecotrack/sync-core/internal/adapter/rest"
)

// All imports trigger init() functions that register backends.
