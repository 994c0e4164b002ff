// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides cache/queue/domain persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS cache_entries (
			store        TEXT NOT NULL,
			id           TEXT NOT NULL,
			payload      TEXT NOT NULL,
			expires_at   TEXT NOT NULL,
			last_updated TEXT NOT NULL,
			PRIMARY KEY (store, id)
		);

		CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);

		CREATE TABLE IF NOT EXISTS sync_queue (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			url             TEXT NOT NULL,
			method          TEXT NOT NULL,
			body            TEXT,
			headers         TEXT,
			enqueued_at     TEXT NOT NULL,
			retry_count     INTEGER NOT NULL DEFAULT 0,
			priority        INTEGER NOT NULL DEFAULT 1,
			status          TEXT NOT NULL DEFAULT 'pending',
			last_error      TEXT,
			next_attempt_at TEXT,

			CHECK (status IN ('pending', 'processing', 'completed', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_queue_status
			ON sync_queue(status, priority DESC, enqueued_at);

		CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			content         TEXT NOT NULL,
			sent_at         TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, sent_at);

		CREATE TABLE IF NOT EXISTS game_sessions (
			id           TEXT PRIMARY KEY,
			game_id      TEXT NOT NULL,
			host_id      TEXT NOT NULL,
			participants TEXT,
			starts_at    TEXT NOT NULL,
			status       TEXT,
			last_updated TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_host ON game_sessions(host_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_game ON game_sessions(game_id);
		CREATE INDEX IF NOT EXISTS idx_sessions_starts ON game_sessions(starts_at);

		CREATE TABLE IF NOT EXISTS game_library (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			game_id      TEXT NOT NULL,
			title        TEXT NOT NULL,
			added_at     TEXT NOT NULL,
			last_updated TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_library_user ON game_library(user_id);

		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			username     TEXT NOT NULL,
			display_name TEXT,
			avatar_url   TEXT,
			last_updated TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS app_state (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// formatTime serializes a timestamp for storage. Zero times are stored as
// the empty string so they round-trip as zero.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime is the inverse of formatTime. Unparseable values yield the zero time.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
