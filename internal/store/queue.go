// ABOUTME: SQLite persistence for the durable sync queue
// ABOUTME: Enqueue, ordered pending selection, status transitions, retention delete

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EnqueueItem appends a new queue item and returns its assigned id.
// Zero-value status and enqueue time are filled in.
func (s *SQLiteStore) EnqueueItem(ctx context.Context, item *QueueItem) (int64, error) {
	if item.Status == "" {
		item.Status = QueueStatusPending
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}

	var headersJSON *string
	if len(item.Headers) > 0 {
		b, err := json.Marshal(item.Headers)
		if err != nil {
			return 0, fmt.Errorf("marshaling headers: %w", err)
		}
		str := string(b)
		headersJSON = &str
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (url, method, body, headers, enqueued_at, retry_count, priority, status, last_error, next_attempt_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.URL, item.Method, string(item.Body), headersJSON,
		formatTime(item.EnqueuedAt), item.RetryCount, item.Priority,
		item.Status, nullIfEmpty(item.LastError), formatTime(item.NextAttemptAt))
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	item.ID = id
	return id, nil
}

// GetQueueItem returns the item with the given id, or ErrNotFound.
func (s *SQLiteStore) GetQueueItem(ctx context.Context, id int64) (*QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, method, body, headers, enqueued_at, retry_count, priority, status, last_error, next_attempt_at
		FROM sync_queue WHERE id = ?
	`, id)

	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// PendingQueueItems returns all pending items eligible at now, ordered by
// priority descending, then enqueue time ascending, then id ascending. This
// ordering is the replay contract: urgency first, age breaks ties.
func (s *SQLiteStore) PendingQueueItems(ctx context.Context, now time.Time) ([]*QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, method, body, headers, enqueued_at, retry_count, priority, status, last_error, next_attempt_at
		FROM sync_queue
		WHERE status = ? AND (next_attempt_at IS NULL OR next_attempt_at = '' OR next_attempt_at <= ?)
		ORDER BY priority DESC, enqueued_at ASC, id ASC
	`, QueueStatusPending, formatTime(now))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkQueueItemProcessing transitions a pending item to processing. It fails
// with ErrNotFound if the item is missing or not pending, so two drains can
// never both claim the same item.
func (s *SQLiteStore) MarkQueueItemProcessing(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ? WHERE id = ? AND status = ?
	`, QueueStatusProcessing, id, QueueStatusPending)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CompleteQueueItem transitions a processing item to completed.
func (s *SQLiteStore) CompleteQueueItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, last_error = NULL WHERE id = ? AND status = ?
	`, QueueStatusCompleted, id, QueueStatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// RequeueQueueItem moves a processing item back to pending with an updated
// retry count, recorded error and next eligibility time.
func (s *SQLiteStore) RequeueQueueItem(ctx context.Context, id int64, retryCount int, lastError string, nextAttemptAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, retry_count = ?, last_error = ?, next_attempt_at = ?
		WHERE id = ? AND status = ?
	`, QueueStatusPending, retryCount, lastError, formatTime(nextAttemptAt), id, QueueStatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FailQueueItem transitions a processing item to the terminal failed state.
func (s *SQLiteStore) FailQueueItem(ctx context.Context, id int64, retryCount int, lastError string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_queue SET status = ?, retry_count = ?, last_error = ?
		WHERE id = ? AND status = ?
	`, QueueStatusFailed, retryCount, lastError, id, QueueStatusProcessing)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CountQueueItems returns the number of items with the given status, or all
// items when status is empty.
func (s *SQLiteStore) CountQueueItems(ctx context.Context, status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE status = ?`, status).Scan(&count)
	}
	return count, err
}

// DeleteTerminalQueueItemsBefore removes completed and failed items enqueued
// before the cutoff. Pending and processing items are never touched.
func (s *SQLiteStore) DeleteTerminalQueueItemsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_queue
		WHERE status IN (?, ?) AND enqueued_at < ?
	`, QueueStatusCompleted, QueueStatusFailed, formatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scanner abstracts sql.Row and sql.Rows for scanQueueItem.
type scanner interface {
	Scan(dest ...any) error
}

func scanQueueItem(row scanner) (*QueueItem, error) {
	var item QueueItem
	var body, headers, lastError sql.NullString
	var enqueuedAt, nextAttemptAt sql.NullString

	err := row.Scan(&item.ID, &item.URL, &item.Method, &body, &headers,
		&enqueuedAt, &item.RetryCount, &item.Priority, &item.Status,
		&lastError, &nextAttemptAt)
	if err != nil {
		return nil, err
	}

	if body.Valid && body.String != "" {
		item.Body = []byte(body.String)
	}
	if headers.Valid && headers.String != "" {
		_ = json.Unmarshal([]byte(headers.String), &item.Headers) // Best effort: invalid JSON leaves headers empty
	}
	if lastError.Valid {
		item.LastError = lastError.String
	}
	if enqueuedAt.Valid {
		item.EnqueuedAt = parseTime(enqueuedAt.String)
	}
	if nextAttemptAt.Valid {
		item.NextAttemptAt = parseTime(nextAttemptAt.String)
	}
	return &item, nil
}

// requireRow converts a zero-row UPDATE into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
