// ABOUTME: Retention sweep for expired cache entries and old terminal queue items
// ABOUTME: Failures are logged, never raised; sweep problems must not block normal work

package engine

import "context"

// Cleanup purges expired cache entries and completed/failed queue items
// older than the retention window. Pending and processing items are never
// touched regardless of age. It runs once at engine construction and
// periodically when StartSweeper is active; hosts may also call it directly.
func (e *Engine) Cleanup(ctx context.Context) {
	now := e.now()

	expired, err := e.store.DeleteExpiredCacheEntries(ctx, now)
	if err != nil {
		e.logger.Warn("sweeping expired cache entries failed", "error", err)
	} else if expired > 0 {
		e.logger.Debug("swept expired cache entries", "count", expired)
	}

	cutoff := now.Add(-e.retention)
	retired, err := e.store.DeleteTerminalQueueItemsBefore(ctx, cutoff)
	if err != nil {
		e.logger.Warn("sweeping terminal queue items failed", "error", err)
	} else if retired > 0 {
		e.logger.Debug("swept terminal queue items", "count", retired, "cutoff", cutoff)
	}
}
