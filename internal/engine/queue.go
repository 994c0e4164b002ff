// ABOUTME: Durable mutation queue and sequential reconciliation loop
// ABOUTME: Drains pending items one at a time with retry accounting and terminal states

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guildpost/guildpost/internal/store"
)

// QueueCounts reports the number of items in each queue state, for hosts
// that surface "sync failed" UI by polling.
type QueueCounts struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// AddToQueue appends a pending mutation destined for the backend and returns
// its id. The write is a durable commit: delivery happens later, and callers
// never wait for it. If the engine is online, a drain is kicked off
// asynchronously.
func (e *Engine) AddToQueue(ctx context.Context, url, method string, body any, headers map[string]string, priority int) (int64, error) {
	var payload json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling queue body: %w", err)
		}
		payload = b
	}
	if priority <= 0 {
		priority = 1
	}

	item := &store.QueueItem{
		URL:        url,
		Method:     method,
		Body:       payload,
		Headers:    headers,
		EnqueuedAt: e.now(),
		Priority:   priority,
		Status:     store.QueueStatusPending,
	}
	id, err := e.store.EnqueueItem(ctx, item)
	if err != nil {
		return 0, fmt.Errorf("enqueueing mutation: %w", err)
	}

	e.logger.Debug("mutation queued", "id", id, "method", method, "url", url, "priority", priority)

	if e.Online() {
		go e.ProcessPendingQueue(context.Background())
	}
	return id, nil
}

// ProcessPendingQueue drains pending queue items against the backend. It is
// a no-op when offline or when a drain is already running, so redundant
// calls are safe. Items are processed strictly one at a time, highest
// priority first and oldest first within a priority, which keeps offline
// edits replaying in a deterministic, mostly-FIFO order.
func (e *Engine) ProcessPendingQueue(ctx context.Context) {
	if !e.Online() {
		return
	}
	if !e.draining.CompareAndSwap(false, true) {
		return
	}
	defer e.draining.Store(false)

	items, err := e.store.PendingQueueItems(ctx, e.now())
	if err != nil {
		e.logger.Error("selecting pending queue items failed", "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	e.logger.Info("draining sync queue", "pending", len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			return
		}
		if !e.Online() {
			// Connectivity dropped mid-drain; remaining items stay pending.
			return
		}
		e.processItem(ctx, item)
	}
}

// processItem performs one delivery attempt for a single queue item and
// records the resulting state transition.
func (e *Engine) processItem(ctx context.Context, item *store.QueueItem) {
	if err := e.store.MarkQueueItemProcessing(ctx, item.ID); err != nil {
		// Another drain claimed it first, or it is gone. Either way it is
		// not ours to process.
		e.logger.Debug("queue item not claimable", "id", item.ID, "error", err)
		return
	}

	if reason := validateItem(item); reason != "" {
		verr := &ValidationError{Reason: reason}
		e.logger.Warn("queue item invalid, failing permanently", "id", item.ID, "reason", reason)
		if err := e.store.FailQueueItem(ctx, item.ID, item.RetryCount, verr.Error()); err != nil {
			e.logger.Error("recording validation failure failed", "id", item.ID, "error", err)
		}
		return
	}

	sendErr := e.deliver(ctx, item)
	if sendErr == nil {
		if err := e.store.CompleteQueueItem(ctx, item.ID); err != nil {
			e.logger.Error("marking queue item completed failed", "id", item.ID, "error", err)
		} else {
			e.logger.Info("mutation delivered", "id", item.ID, "method", item.Method, "url", item.URL)
		}
		return
	}

	retries := item.RetryCount + 1
	if !retryable(sendErr) {
		if err := e.store.FailQueueItem(ctx, item.ID, item.RetryCount, sendErr.Error()); err != nil {
			e.logger.Error("marking queue item failed failed", "id", item.ID, "error", err)
		}
		return
	}

	if retries < e.maxRetries {
		next := e.now().Add(e.backoff.ForAttempt(retries))
		e.logger.Warn("mutation delivery failed, will retry",
			"id", item.ID, "attempt", retries, "max_retries", e.maxRetries, "error", sendErr)
		if err := e.store.RequeueQueueItem(ctx, item.ID, retries, sendErr.Error(), next); err != nil {
			e.logger.Error("requeueing item failed", "id", item.ID, "error", err)
		}
		return
	}

	e.logger.Error("mutation delivery failed permanently, retries exhausted",
		"id", item.ID, "retries", retries, "error", sendErr)
	if err := e.store.FailQueueItem(ctx, item.ID, retries, sendErr.Error()); err != nil {
		e.logger.Error("marking queue item failed failed", "id", item.ID, "error", err)
	}
}

// deliver performs the network call for an item, classifying the outcome.
func (e *Engine) deliver(ctx context.Context, item *store.QueueItem) error {
	resp, err := e.sender.Send(ctx, Request{
		Method:  item.Method,
		URL:     item.URL,
		Headers: item.Headers,
		Body:    item.Body,
	})
	if err != nil {
		return &NetworkError{Err: err}
	}
	if !resp.OK {
		return &RemoteError{Status: resp.Status, Body: string(resp.Data)}
	}
	return nil
}

// validateItem returns a non-empty reason when the item can never be sent.
func validateItem(item *store.QueueItem) string {
	if item.URL == "" {
		return "missing url"
	}
	if item.Method == "" {
		return "missing method"
	}
	return ""
}

// QueueStatus returns per-state item counts.
func (e *Engine) QueueStatus(ctx context.Context) (QueueCounts, error) {
	var counts QueueCounts
	for status, dst := range map[string]*int{
		store.QueueStatusPending:    &counts.Pending,
		store.QueueStatusProcessing: &counts.Processing,
		store.QueueStatusCompleted:  &counts.Completed,
		store.QueueStatusFailed:     &counts.Failed,
	} {
		n, err := e.store.CountQueueItems(ctx, status)
		if err != nil {
			return counts, fmt.Errorf("counting %s items: %w", status, err)
		}
		*dst = n
	}
	return counts, nil
}

// QueueItem returns a single queue item by id, for hosts inspecting failures.
func (e *Engine) QueueItem(ctx context.Context, id int64) (*store.QueueItem, error) {
	return e.store.GetQueueItem(ctx, id)
}
