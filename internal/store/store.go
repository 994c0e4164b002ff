// ABOUTME: Store interface and data types for guildpost persistence
// ABOUTME: Defines cache entries, queue items, domain records and the Store interface

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// CacheEntry is a TTL-bound snapshot of a previously fetched API response.
// Entries are keyed by (Store, ID) and are disposable: an expired entry is
// treated as absent and deleted lazily on access or by the sweeper.
type CacheEntry struct {
	Store       string
	ID          string
	Payload     json.RawMessage
	ExpiresAt   time.Time
	LastUpdated time.Time
}

// Expired reports whether the entry should be treated as absent at the given time.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// QueueStatus constants for queue item states
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// QueueItem is a durable record of a mutation the client intends to deliver
// to the backend. Items move pending -> processing -> completed, back to
// pending on a retryable failure, or to failed once retries are exhausted.
type QueueItem struct {
	ID            int64
	URL           string
	Method        string
	Body          json.RawMessage
	Headers       map[string]string
	EnqueuedAt    time.Time
	RetryCount    int
	Priority      int
	Status        string
	LastError     string
	NextAttemptAt time.Time // zero means immediately eligible
}

// Message is a chat message stored for offline reads.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	SentAt         time.Time
}

// GameSession is a scheduled play session.
type GameSession struct {
	ID           string
	GameID       string
	HostID       string
	Participants []string
	StartsAt     time.Time
	Status       string
	LastUpdated  time.Time
}

// GameLibraryItem is one game in a user's library.
type GameLibraryItem struct {
	ID          string
	UserID      string
	GameID      string
	Title       string
	AddedAt     time.Time
	LastUpdated time.Time
}

// UserSnapshot is a locally cached copy of a user profile. Unlike cache
// entries it has no TTL; it is a durable local fact refreshed on write.
type UserSnapshot struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	LastUpdated time.Time
}

// Store defines the interface for guildpost persistence
type Store interface {
	// Cache entries
	UpsertCacheEntry(ctx context.Context, entry *CacheEntry) error
	GetCacheEntry(ctx context.Context, store, id string) (*CacheEntry, error)
	DeleteCacheEntry(ctx context.Context, store, id string) error
	DeleteExpiredCacheEntries(ctx context.Context, now time.Time) (int64, error)
	ClearCacheEntries(ctx context.Context) error

	// Sync queue
	EnqueueItem(ctx context.Context, item *QueueItem) (int64, error)
	GetQueueItem(ctx context.Context, id int64) (*QueueItem, error)
	PendingQueueItems(ctx context.Context, now time.Time) ([]*QueueItem, error)
	MarkQueueItemProcessing(ctx context.Context, id int64) error
	CompleteQueueItem(ctx context.Context, id int64) error
	RequeueQueueItem(ctx context.Context, id int64, retryCount int, lastError string, nextAttemptAt time.Time) error
	FailQueueItem(ctx context.Context, id int64, retryCount int, lastError string) error
	CountQueueItems(ctx context.Context, status string) (int, error)
	DeleteTerminalQueueItemsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error)

	// Game sessions
	SaveGameSession(ctx context.Context, session *GameSession) error
	ListGameSessions(ctx context.Context, hostID, gameID string) ([]*GameSession, error)

	// Game library
	SaveGameLibraryItem(ctx context.Context, item *GameLibraryItem) error
	GetGameLibrary(ctx context.Context, userID string) ([]*GameLibraryItem, error)

	// User snapshots
	SaveUser(ctx context.Context, user *UserSnapshot) error
	GetUser(ctx context.Context, id string) (*UserSnapshot, error)

	// App state key/value pairs
	SetAppState(ctx context.Context, key string, value json.RawMessage) error
	GetAppState(ctx context.Context, key string) (json.RawMessage, error)
	DeleteAppState(ctx context.Context, key string) error

	// ClearDomainData wipes all domain stores and the cache. The sync queue
	// is deliberately left intact: pending work survives a local reset.
	ClearDomainData(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
