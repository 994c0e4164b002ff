// ABOUTME: Typed domain record operations: messages, sessions, library, users, app state
// ABOUTME: Reads degrade to empty results on storage faults; availability over strictness

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guildpost/guildpost/internal/store"
)

// SessionFilters narrows GetGameSessions results. HostID and GameID are
// pushed down to the store; ParticipantID and FutureOnly are evaluated in
// memory because the store cannot express them against the participant list.
type SessionFilters struct {
	HostID        string
	GameID        string
	ParticipantID string
	FutureOnly    bool
	Limit         int
	Offset        int
}

// StoreMessage saves a message for offline reads and returns its id.
func (e *Engine) StoreMessage(ctx context.Context, msg *store.Message) (string, error) {
	if msg.ConversationID == "" {
		return "", fmt.Errorf("message requires a conversation id")
	}
	if err := e.store.SaveMessage(ctx, msg); err != nil {
		return "", fmt.Errorf("storing message: %w", err)
	}
	return msg.ID, nil
}

// GetMessages returns a conversation's messages, newest first. Storage
// faults are logged and yield an empty result.
func (e *Engine) GetMessages(ctx context.Context, conversationID string, limit, offset int) []*store.Message {
	messages, err := e.store.GetMessages(ctx, conversationID, limit, offset)
	if err != nil {
		e.logger.Warn("reading messages failed, returning none", "conversation", conversationID, "error", err)
		return nil
	}
	return messages
}

// StoreGameLibraryItem saves a library item and returns its id.
func (e *Engine) StoreGameLibraryItem(ctx context.Context, item *store.GameLibraryItem) (string, error) {
	if item.UserID == "" {
		return "", fmt.Errorf("library item requires a user id")
	}
	if err := e.store.SaveGameLibraryItem(ctx, item); err != nil {
		return "", fmt.Errorf("storing library item: %w", err)
	}
	return item.ID, nil
}

// GetGameLibrary returns a user's library. Storage faults yield an empty result.
func (e *Engine) GetGameLibrary(ctx context.Context, userID string) []*store.GameLibraryItem {
	items, err := e.store.GetGameLibrary(ctx, userID)
	if err != nil {
		e.logger.Warn("reading game library failed, returning none", "user", userID, "error", err)
		return nil
	}
	return items
}

// StoreGameSession saves a session and returns its id.
func (e *Engine) StoreGameSession(ctx context.Context, session *store.GameSession) (string, error) {
	if session.GameID == "" {
		return "", fmt.Errorf("session requires a game id")
	}
	if err := e.store.SaveGameSession(ctx, session); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return session.ID, nil
}

// GetGameSessions returns sessions matching the filters, sorted by start
// time ascending and paginated. Storage faults yield an empty result.
func (e *Engine) GetGameSessions(ctx context.Context, filters SessionFilters) []*store.GameSession {
	sessions, err := e.store.ListGameSessions(ctx, filters.HostID, filters.GameID)
	if err != nil {
		e.logger.Warn("reading sessions failed, returning none", "error", err)
		return nil
	}

	// Participant membership and future-only live outside the store's
	// query surface, so they are post-filters over the fetched rows.
	now := e.now()
	filtered := sessions[:0]
	for _, sess := range sessions {
		if filters.ParticipantID != "" && !hasParticipant(sess, filters.ParticipantID) {
			continue
		}
		if filters.FutureOnly && !sess.StartsAt.After(now) {
			continue
		}
		filtered = append(filtered, sess)
	}

	if filters.Offset > 0 {
		if filters.Offset >= len(filtered) {
			return nil
		}
		filtered = filtered[filters.Offset:]
	}
	if filters.Limit > 0 && len(filtered) > filters.Limit {
		filtered = filtered[:filters.Limit]
	}
	return filtered
}

func hasParticipant(sess *store.GameSession, userID string) bool {
	if sess.HostID == userID {
		return true
	}
	for _, p := range sess.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// SaveUserSnapshot stores a durable local copy of a user profile.
func (e *Engine) SaveUserSnapshot(ctx context.Context, user *store.UserSnapshot) error {
	if user.ID == "" {
		return fmt.Errorf("user snapshot requires an id")
	}
	if err := e.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("storing user snapshot: %w", err)
	}
	return nil
}

// GetUserSnapshot returns the locally cached profile for a user, or nil when
// absent or unreadable.
func (e *Engine) GetUserSnapshot(ctx context.Context, id string) *store.UserSnapshot {
	user, err := e.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		e.logger.Warn("reading user snapshot failed, returning none", "user", id, "error", err)
		return nil
	}
	return user
}

// SaveAppState stores an arbitrary value under a key.
func (e *Engine) SaveAppState(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling app state %q: %w", key, err)
	}
	if err := e.store.SetAppState(ctx, key, payload); err != nil {
		return fmt.Errorf("storing app state %q: %w", key, err)
	}
	return nil
}

// GetAppState returns the raw value stored under key and true, or nil and
// false when absent or unreadable.
func (e *Engine) GetAppState(ctx context.Context, key string) (json.RawMessage, bool) {
	value, err := e.store.GetAppState(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		e.logger.Warn("reading app state failed, returning none", "key", key, "error", err)
		return nil, false
	}
	return value, true
}
