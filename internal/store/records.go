// ABOUTME: SQLite persistence for domain records: messages, game sessions,
// ABOUTME: game library items, user snapshots, and app-state key/value pairs

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveMessage upserts a message, generating an id if absent.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, sent_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			sender_id = excluded.sender_id,
			content = excluded.content,
			sent_at = excluded.sent_at
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, formatTime(msg.SentAt))

	return err
}

// GetMessages returns messages for a conversation, newest first.
func (s *SQLiteStore) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, sent_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var m Message
		var sentAt string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &sentAt); err != nil {
			return nil, err
		}
		m.SentAt = parseTime(sentAt)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// SaveGameSession upserts a session, generating an id if absent.
func (s *SQLiteStore) SaveGameSession(ctx context.Context, session *GameSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.LastUpdated = time.Now()

	var participantsJSON *string
	if len(session.Participants) > 0 {
		b, err := json.Marshal(session.Participants)
		if err != nil {
			return fmt.Errorf("marshaling participants: %w", err)
		}
		str := string(b)
		participantsJSON = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_sessions (id, game_id, host_id, participants, starts_at, status, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			game_id = excluded.game_id,
			host_id = excluded.host_id,
			participants = excluded.participants,
			starts_at = excluded.starts_at,
			status = excluded.status,
			last_updated = excluded.last_updated
	`, session.ID, session.GameID, session.HostID, participantsJSON,
		formatTime(session.StartsAt), nullIfEmpty(session.Status), formatTime(session.LastUpdated))

	return err
}

// ListGameSessions returns sessions narrowed by host and/or game id, sorted
// by start time ascending. Participant and future-only predicates cannot be
// expressed against the stored JSON, so callers filter those in memory.
func (s *SQLiteStore) ListGameSessions(ctx context.Context, hostID, gameID string) ([]*GameSession, error) {
	var args []any
	query := `
		SELECT id, game_id, host_id, participants, starts_at, status, last_updated
		FROM game_sessions WHERE 1=1`

	if hostID != "" {
		query += ` AND host_id = ?`
		args = append(args, hostID)
	}
	if gameID != "" {
		query += ` AND game_id = ?`
		args = append(args, gameID)
	}

	query += ` ORDER BY starts_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []*GameSession
	for rows.Next() {
		var sess GameSession
		var participants, status sql.NullString
		var startsAt, lastUpdated string
		if err := rows.Scan(&sess.ID, &sess.GameID, &sess.HostID, &participants,
			&startsAt, &status, &lastUpdated); err != nil {
			return nil, err
		}
		if participants.Valid {
			_ = json.Unmarshal([]byte(participants.String), &sess.Participants) // Best effort: invalid JSON leaves participants empty
		}
		if status.Valid {
			sess.Status = status.String
		}
		sess.StartsAt = parseTime(startsAt)
		sess.LastUpdated = parseTime(lastUpdated)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// SaveGameLibraryItem upserts a library item, generating an id if absent.
func (s *SQLiteStore) SaveGameLibraryItem(ctx context.Context, item *GameLibraryItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	item.LastUpdated = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_library (id, user_id, game_id, title, added_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			game_id = excluded.game_id,
			title = excluded.title,
			added_at = excluded.added_at,
			last_updated = excluded.last_updated
	`, item.ID, item.UserID, item.GameID, item.Title,
		formatTime(item.AddedAt), formatTime(item.LastUpdated))

	return err
}

// GetGameLibrary returns a user's library items, most recently added first.
func (s *SQLiteStore) GetGameLibrary(ctx context.Context, userID string) ([]*GameLibraryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, game_id, title, added_at, last_updated
		FROM game_library
		WHERE user_id = ?
		ORDER BY added_at DESC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*GameLibraryItem
	for rows.Next() {
		var item GameLibraryItem
		var addedAt, lastUpdated string
		if err := rows.Scan(&item.ID, &item.UserID, &item.GameID, &item.Title, &addedAt, &lastUpdated); err != nil {
			return nil, err
		}
		item.AddedAt = parseTime(addedAt)
		item.LastUpdated = parseTime(lastUpdated)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// SaveUser upserts a user snapshot.
func (s *SQLiteStore) SaveUser(ctx context.Context, user *UserSnapshot) error {
	if user.ID == "" {
		return fmt.Errorf("user snapshot requires an id")
	}
	user.LastUpdated = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, avatar_url, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			last_updated = excluded.last_updated
	`, user.ID, user.Username, nullIfEmpty(user.DisplayName),
		nullIfEmpty(user.AvatarURL), formatTime(user.LastUpdated))

	return err
}

// GetUser returns the snapshot for a user id, or ErrNotFound.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*UserSnapshot, error) {
	var u UserSnapshot
	var displayName, avatarURL sql.NullString
	var lastUpdated string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, avatar_url, last_updated
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Username, &displayName, &avatarURL, &lastUpdated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if displayName.Valid {
		u.DisplayName = displayName.String
	}
	if avatarURL.Valid {
		u.AvatarURL = avatarURL.String
	}
	u.LastUpdated = parseTime(lastUpdated)
	return &u, nil
}

// SetAppState stores an opaque value under a key.
func (s *SQLiteStore) SetAppState(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return fmt.Errorf("app state requires a key")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(value), formatTime(time.Now()))

	return err
}

// GetAppState returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetAppState(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM app_state WHERE key = ?
	`, key).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// DeleteAppState removes the value stored under key, if any.
func (s *SQLiteStore) DeleteAppState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, key)
	return err
}

// ClearDomainData wipes the domain tables and the cache. The sync queue is
// left intact so pending mutations survive a local reset.
func (s *SQLiteStore) ClearDomainData(ctx context.Context) error {
	tables := []string{"messages", "game_sessions", "game_library", "users", "app_state", "cache_entries"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}
