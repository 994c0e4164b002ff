// ABOUTME: SQLite persistence for TTL-bound cache entries
// ABOUTME: Upsert/get/delete plus bulk expiry used by the retention sweeper

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertCacheEntry inserts or replaces the entry for (entry.Store, entry.ID).
func (s *SQLiteStore) UpsertCacheEntry(ctx context.Context, entry *CacheEntry) error {
	if entry.Store == "" || entry.ID == "" {
		return fmt.Errorf("cache entry requires store and id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (store, id, payload, expires_at, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(store, id) DO UPDATE SET
			payload = excluded.payload,
			expires_at = excluded.expires_at,
			last_updated = excluded.last_updated
	`, entry.Store, entry.ID, string(entry.Payload),
		formatTime(entry.ExpiresAt), formatTime(entry.LastUpdated))

	return err
}

// GetCacheEntry returns the entry for (store, id), or ErrNotFound.
// Expiry is not evaluated here; that is the caller's concern.
func (s *SQLiteStore) GetCacheEntry(ctx context.Context, store, id string) (*CacheEntry, error) {
	var e CacheEntry
	var payload, expiresAt, lastUpdated string

	err := s.db.QueryRowContext(ctx, `
		SELECT store, id, payload, expires_at, last_updated
		FROM cache_entries
		WHERE store = ? AND id = ?
	`, store, id).Scan(&e.Store, &e.ID, &payload, &expiresAt, &lastUpdated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Payload = []byte(payload)
	e.ExpiresAt = parseTime(expiresAt)
	e.LastUpdated = parseTime(lastUpdated)
	return &e, nil
}

// DeleteCacheEntry removes the entry for (store, id). Deleting a missing
// entry is not an error.
func (s *SQLiteStore) DeleteCacheEntry(ctx context.Context, store, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE store = ? AND id = ?
	`, store, id)
	return err
}

// DeleteExpiredCacheEntries removes all entries whose expiry is at or before
// now, returning the number deleted.
func (s *SQLiteStore) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM cache_entries WHERE expires_at <= ?
	`, formatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearCacheEntries removes every cache entry.
func (s *SQLiteStore) ClearCacheEntries(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	return err
}
