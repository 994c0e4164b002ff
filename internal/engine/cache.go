// ABOUTME: Read-through TTL cache operations over the store
// ABOUTME: Best-effort semantics: storage faults degrade to cache misses, never errors

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/guildpost/guildpost/internal/store"
)

// SetCache stores a response snapshot under (cacheStore, id) with the given
// TTL. A non-positive ttl uses the engine default (one hour). An empty id
// gets a generated one, which is returned. The cache is best-effort: all
// failures are logged and swallowed.
func (e *Engine) SetCache(ctx context.Context, cacheStore, id string, v any, ttl ...time.Duration) string {
	if id == "" {
		id = uuid.New().String()
	}

	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.Warn("cache set skipped, payload not serializable", "store", cacheStore, "id", id, "error", err)
		return id
	}

	effectiveTTL := e.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		effectiveTTL = ttl[0]
	}

	now := e.now()
	entry := &store.CacheEntry{
		Store:       cacheStore,
		ID:          id,
		Payload:     payload,
		ExpiresAt:   now.Add(effectiveTTL),
		LastUpdated: now,
	}
	if err := e.store.UpsertCacheEntry(ctx, entry); err != nil {
		e.logger.Warn("cache set failed", "store", cacheStore, "id", id, "error", err)
	}
	return id
}

// GetCache returns the cached payload for (cacheStore, id) and true, or nil
// and false when the entry is absent, expired, or unreadable. An expired
// entry is deleted as a side effect before reporting the miss.
func (e *Engine) GetCache(ctx context.Context, cacheStore, id string) (json.RawMessage, bool) {
	entry, err := e.store.GetCacheEntry(ctx, cacheStore, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		e.logger.Warn("cache read failed, treating as miss", "store", cacheStore, "id", id, "error", err)
		return nil, false
	}

	if entry.Expired(e.now()) {
		// Lazy expiry: deletion is idempotent, so concurrent readers are safe.
		if err := e.store.DeleteCacheEntry(ctx, cacheStore, id); err != nil {
			e.logger.Warn("deleting expired cache entry failed", "store", cacheStore, "id", id, "error", err)
		}
		return nil, false
	}

	return entry.Payload, true
}

// GetCacheInto unmarshals the cached payload for (cacheStore, id) into v.
// It reports false on a miss or on a payload that does not decode into v.
func (e *Engine) GetCacheInto(ctx context.Context, cacheStore, id string, v any) bool {
	payload, ok := e.GetCache(ctx, cacheStore, id)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		e.logger.Warn("cache payload does not decode, treating as miss", "store", cacheStore, "id", id, "error", err)
		return false
	}
	return true
}

// DeleteCache removes the entry for (cacheStore, id). Removal of a missing
// entry is a no-op; failures are logged and swallowed.
func (e *Engine) DeleteCache(ctx context.Context, cacheStore, id string) {
	if err := e.store.DeleteCacheEntry(ctx, cacheStore, id); err != nil {
		e.logger.Warn("cache delete failed", "store", cacheStore, "id", id, "error", err)
	}
}
