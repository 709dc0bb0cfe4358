package airtable

import (
	"context"
	"fmt"

	"github.com/ecotrack/sync-core/internal/adapter"
)

// =============================================================================
// TABLE CLEARER
// =============================================================================

// ClearTables empties the named results tables through their asynchronous
// deletion webhooks and verifies the outcome. Deletion is eventually
// consistent: the webhook only acknowledges acceptance, so each round fires
// the trigger, waits a settle interval, then probes each table's first page
// for emptiness. Tables still non-empty are retried in a bounded loop with
// the settle interval doubling each round; tables that never empty are
// reported in the result instead of being retried forever.
func (a *Adapter) ClearTables(ctx context.Context, tables []string) (*adapter.ClearResult, error) {
	result := &adapter.ClearResult{}
	remaining := append([]string(nil), tables...)
	settle := a.pacing.ClearSettle()
	maxAttempts := a.pacing.MaxClearAttempts()

	for attempt := 1; attempt <= maxAttempts && len(remaining) > 0; attempt++ {
		result.Attempts = attempt

		// Fire each trigger twice. The endpoint gives no delivery
		// confirmation, so the second call hedges against a dropped request.
		for pass := 0; pass < 2; pass++ {
			for _, table := range remaining {
				a.triggerDelete(ctx, table)
			}
		}

		a.sleep(ctx, settle)

		var stuck []string
		for _, table := range remaining {
			empty, err := a.tableEmpty(ctx, table)
			switch {
			case err != nil:
				a.log.Warn("clear verification failed", "table", table, "error", err)
				stuck = append(stuck, table)
			case !empty:
				stuck = append(stuck, table)
			default:
				result.Cleared = append(result.Cleared, table)
			}
		}
		remaining = stuck
		settle *= 2
	}

	result.Stuck = remaining
	a.sleep(ctx, a.pacing.ClearFinalWait())

	if len(remaining) > 0 {
		return result, fmt.Errorf("clear tables: %d table(s) still non-empty after %d attempt(s): %v",
			len(remaining), result.Attempts, remaining)
	}
	return result, nil
}

// triggerDelete fires the table's deletion webhook. Fire-and-forget: a 2xx
// means accepted, not completed, and failures are only logged.
func (a *Adapter) triggerDelete(ctx context.Context, table string) {
	hook := a.cfg.DeleteWebhooks[table]
	if hook == "" {
		a.log.Warn("no deletion webhook configured", "table", table)
		return
	}
	if _, err := a.results.PostURL(ctx, hook, map[string]any{}); err != nil {
		a.log.Warn("deletion trigger failed", "table", table, "error", err)
	}
}

// tableEmpty probes only the first page; any record at all means non-empty.
func (a *Adapter) tableEmpty(ctx context.Context, table string) (bool, error) {
	resp, err := a.results.Get(ctx, tablePath(a.cfg.ResultsBaseID, table), nil)
	if err != nil {
		return false, remoteError("verify", table, err)
	}
	var envelope recordsEnvelope
	if err := resp.JSON(&envelope); err != nil {
		return false, &adapter.RemoteError{Op: "verify", Table: table, Err: err}
	}
	return len(envelope.Records) == 0, nil
}
