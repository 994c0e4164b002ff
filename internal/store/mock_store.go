// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	cache    map[string]*CacheEntry      // keyed by "store:id"
	queue    map[int64]*QueueItem        // keyed by queue id
	nextID   int64                       // next queue id
	messages map[string]*Message         // keyed by message ID
	sessions map[string]*GameSession     // keyed by session ID
	library  map[string]*GameLibraryItem // keyed by item ID
	users    map[string]*UserSnapshot    // keyed by user ID
	appState map[string]json.RawMessage  // keyed by state key

	// FailWrites makes every mutating call return this error, for testing
	// the engine's swallow-and-log paths.
	FailWrites error
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		cache:    make(map[string]*CacheEntry),
		queue:    make(map[int64]*QueueItem),
		nextID:   1,
		messages: make(map[string]*Message),
		sessions: make(map[string]*GameSession),
		library:  make(map[string]*GameLibraryItem),
		users:    make(map[string]*UserSnapshot),
		appState: make(map[string]json.RawMessage),
	}
}

func cacheKey(store, id string) string { return store + ":" + id }

// UpsertCacheEntry stores a copy of the entry.
func (m *MockStore) UpsertCacheEntry(ctx context.Context, entry *CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	e := *entry
	e.Payload = append(json.RawMessage(nil), entry.Payload...)
	m.cache[cacheKey(e.Store, e.ID)] = &e
	return nil
}

// GetCacheEntry retrieves a copy of the entry, or ErrNotFound.
func (m *MockStore) GetCacheEntry(ctx context.Context, store, id string) (*CacheEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.cache[cacheKey(store, id)]
	if !ok {
		return nil, ErrNotFound
	}
	e := *entry
	e.Payload = append(json.RawMessage(nil), entry.Payload...)
	return &e, nil
}

// DeleteCacheEntry removes the entry if present.
func (m *MockStore) DeleteCacheEntry(ctx context.Context, store, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	delete(m.cache, cacheKey(store, id))
	return nil
}

// DeleteExpiredCacheEntries removes entries expired at now.
func (m *MockStore) DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}

	var deleted int64
	for key, entry := range m.cache {
		if entry.Expired(now) {
			delete(m.cache, key)
			deleted++
		}
	}
	return deleted, nil
}

// ClearCacheEntries removes all cache entries.
func (m *MockStore) ClearCacheEntries(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*CacheEntry)
	return nil
}

// EnqueueItem appends a queue item with the next id.
func (m *MockStore) EnqueueItem(ctx context.Context, item *QueueItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}

	if item.Status == "" {
		item.Status = QueueStatusPending
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	item.ID = m.nextID
	m.nextID++

	i := copyQueueItem(item)
	m.queue[item.ID] = i
	return item.ID, nil
}

// GetQueueItem retrieves a copy of the item, or ErrNotFound.
func (m *MockStore) GetQueueItem(ctx context.Context, id int64) (*QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.queue[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyQueueItem(item), nil
}

// PendingQueueItems returns eligible pending items in drain order.
func (m *MockStore) PendingQueueItems(ctx context.Context, now time.Time) ([]*QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*QueueItem
	for _, item := range m.queue {
		if item.Status != QueueStatusPending {
			continue
		}
		if !item.NextAttemptAt.IsZero() && item.NextAttemptAt.After(now) {
			continue
		}
		items = append(items, copyQueueItem(item))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		if !items[i].EnqueuedAt.Equal(items[j].EnqueuedAt) {
			return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// MarkQueueItemProcessing claims a pending item.
func (m *MockStore) MarkQueueItemProcessing(ctx context.Context, id int64) error {
	return m.transition(id, QueueStatusPending, func(item *QueueItem) {
		item.Status = QueueStatusProcessing
	})
}

// CompleteQueueItem retires a processing item as completed.
func (m *MockStore) CompleteQueueItem(ctx context.Context, id int64) error {
	return m.transition(id, QueueStatusProcessing, func(item *QueueItem) {
		item.Status = QueueStatusCompleted
		item.LastError = ""
	})
}

// RequeueQueueItem returns a processing item to pending for another attempt.
func (m *MockStore) RequeueQueueItem(ctx context.Context, id int64, retryCount int, lastError string, nextAttemptAt time.Time) error {
	return m.transition(id, QueueStatusProcessing, func(item *QueueItem) {
		item.Status = QueueStatusPending
		item.RetryCount = retryCount
		item.LastError = lastError
		item.NextAttemptAt = nextAttemptAt
	})
}

// FailQueueItem retires a processing item as failed.
func (m *MockStore) FailQueueItem(ctx context.Context, id int64, retryCount int, lastError string) error {
	return m.transition(id, QueueStatusProcessing, func(item *QueueItem) {
		item.Status = QueueStatusFailed
		item.RetryCount = retryCount
		item.LastError = lastError
	})
}

func (m *MockStore) transition(id int64, from string, apply func(*QueueItem)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	item, ok := m.queue[id]
	if !ok || item.Status != from {
		return ErrNotFound
	}
	apply(item)
	return nil
}

// CountQueueItems counts items with the given status (all when empty).
func (m *MockStore) CountQueueItems(ctx context.Context, status string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if status == "" {
		return len(m.queue), nil
	}
	var count int
	for _, item := range m.queue {
		if item.Status == status {
			count++
		}
	}
	return count, nil
}

// DeleteTerminalQueueItemsBefore removes old completed/failed items.
func (m *MockStore) DeleteTerminalQueueItemsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return 0, m.FailWrites
	}

	var deleted int64
	for id, item := range m.queue {
		terminal := item.Status == QueueStatusCompleted || item.Status == QueueStatusFailed
		if terminal && item.EnqueuedAt.Before(cutoff) {
			delete(m.queue, id)
			deleted++
		}
	}
	return deleted, nil
}

// SaveMessage stores a copy of the message, generating an id if absent.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	c := *msg
	m.messages[c.ID] = &c
	return nil
}

// GetMessages returns a conversation's messages, newest first.
func (m *MockStore) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var messages []*Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			c := *msg
			messages = append(messages, &c)
		}
	}
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SentAt.After(messages[j].SentAt)
	})

	if offset >= len(messages) {
		return nil, nil
	}
	messages = messages[offset:]
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// SaveGameSession stores a copy of the session, generating an id if absent.
func (m *MockStore) SaveGameSession(ctx context.Context, session *GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.LastUpdated = time.Now()
	c := *session
	c.Participants = append([]string(nil), session.Participants...)
	m.sessions[c.ID] = &c
	return nil
}

// ListGameSessions returns sessions narrowed by host/game, by start time ascending.
func (m *MockStore) ListGameSessions(ctx context.Context, hostID, gameID string) ([]*GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*GameSession
	for _, sess := range m.sessions {
		if hostID != "" && sess.HostID != hostID {
			continue
		}
		if gameID != "" && sess.GameID != gameID {
			continue
		}
		c := *sess
		c.Participants = append([]string(nil), sess.Participants...)
		sessions = append(sessions, &c)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartsAt.Before(sessions[j].StartsAt)
	})
	return sessions, nil
}

// SaveGameLibraryItem stores a copy of the item, generating an id if absent.
func (m *MockStore) SaveGameLibraryItem(ctx context.Context, item *GameLibraryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	item.LastUpdated = time.Now()
	c := *item
	m.library[c.ID] = &c
	return nil
}

// GetGameLibrary returns a user's library, most recently added first.
func (m *MockStore) GetGameLibrary(ctx context.Context, userID string) ([]*GameLibraryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*GameLibraryItem
	for _, item := range m.library {
		if item.UserID == userID {
			c := *item
			items = append(items, &c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items, nil
}

// SaveUser stores a copy of the snapshot.
func (m *MockStore) SaveUser(ctx context.Context, user *UserSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	user.LastUpdated = time.Now()
	c := *user
	m.users[c.ID] = &c
	return nil
}

// GetUser retrieves a copy of the snapshot, or ErrNotFound.
func (m *MockStore) GetUser(ctx context.Context, id string) (*UserSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *user
	return &c, nil
}

// SetAppState stores a copy of the value under key.
func (m *MockStore) SetAppState(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	m.appState[key] = append(json.RawMessage(nil), value...)
	return nil
}

// GetAppState retrieves the value under key, or ErrNotFound.
func (m *MockStore) GetAppState(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.appState[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), value...), nil
}

// DeleteAppState removes the value under key, if any.
func (m *MockStore) DeleteAppState(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.appState, key)
	return nil
}

// ClearDomainData wipes domain stores and the cache, never the queue.
func (m *MockStore) ClearDomainData(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}

	m.messages = make(map[string]*Message)
	m.sessions = make(map[string]*GameSession)
	m.library = make(map[string]*GameLibraryItem)
	m.users = make(map[string]*UserSnapshot)
	m.appState = make(map[string]json.RawMessage)
	m.cache = make(map[string]*CacheEntry)
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

func copyQueueItem(item *QueueItem) *QueueItem {
	c := *item
	c.Body = append(json.RawMessage(nil), item.Body...)
	if item.Headers != nil {
		c.Headers = make(map[string]string, len(item.Headers))
		for k, v := range item.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}
