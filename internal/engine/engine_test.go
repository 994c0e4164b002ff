// ABOUTME: Shared test helpers and engine lifecycle tests
// ABOUTME: Provides the fake clock and scriptable sender used across engine tests

package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildpost/guildpost/internal/store"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSender records requests and answers them with a scriptable response.
type fakeSender struct {
	mu       sync.Mutex
	requests []Request

	// respond produces the outcome for each request. Defaults to success.
	respond func(req Request) (*Response, error)

	// inflight tracks concurrent Send calls to verify the single-in-flight
	// invariant.
	inflight    int
	maxInflight int

	// delay stretches each Send so drains overlap in concurrency tests.
	delay time.Duration
}

func (f *fakeSender) Send(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	respond := f.respond
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if respond != nil {
		return respond(req)
	}
	return &Response{OK: true, Status: 200}, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

var testStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine builds an engine over a mock store with a fake clock and
// sender, quiet logging, and the given extra options.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.MockStore, *fakeClock, *fakeSender) {
	t.Helper()

	mock := store.NewMockStore()
	clock := newFakeClock(testStart)
	sender := &fakeSender{}

	base := []Option{
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	eng := New(mock, sender, append(base, opts...)...)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, mock, clock, sender
}

func TestNew_Defaults(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	assert.Equal(t, DefaultMaxRetries, eng.maxRetries)
	assert.Equal(t, DefaultTTL, eng.defaultTTL)
	assert.Equal(t, DefaultRetention, eng.retention)
	assert.False(t, eng.Online(), "engine must start offline")
}

func TestNew_RunsInitialSweep(t *testing.T) {
	mock := store.NewMockStore()
	clock := newFakeClock(testStart)
	ctx := context.Background()

	// Seed an already expired entry before the engine exists.
	require.NoError(t, mock.UpsertCacheEntry(ctx, &store.CacheEntry{
		Store:     "games",
		ID:        "stale",
		Payload:   []byte(`1`),
		ExpiresAt: testStart.Add(-time.Minute),
	}))

	eng := New(mock, &fakeSender{},
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer eng.Close()

	_, err := mock.GetCacheEntry(ctx, "games", "stale")
	assert.ErrorIs(t, err, store.ErrNotFound, "construction should sweep expired entries")
}

func TestSetOnline_TriggersDrain(t *testing.T) {
	eng, mock, _, sender := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.AddToQueue(ctx, "/messages", "POST", map[string]string{"content": "hi"}, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, sender.calls(), "offline enqueue must not send")

	eng.SetOnline(true)

	require.Eventually(t, func() bool {
		n, err := mock.CountQueueItems(ctx, store.QueueStatusCompleted)
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sender.calls())
}

func TestClearAllData_PreservesQueue(t *testing.T) {
	eng, mock, _, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.StoreMessage(ctx, &store.Message{ConversationID: "c", SenderID: "u", Content: "x"})
	require.NoError(t, err)
	eng.SetCache(ctx, "games", "g1", map[string]int{"v": 1})
	id, err := eng.AddToQueue(ctx, "/messages", "POST", nil, nil, 1)
	require.NoError(t, err)

	require.NoError(t, eng.ClearAllData(ctx))

	assert.Empty(t, eng.GetMessages(ctx, "c", 10, 0))
	_, ok := eng.GetCache(ctx, "games", "g1")
	assert.False(t, ok)

	item, err := mock.GetQueueItem(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, store.QueueStatusPending, item.Status)
}

func TestStartSweeper_PeriodicallyCleans(t *testing.T) {
	eng, mock, clock, _ := newTestEngine(t)
	ctx := context.Background()

	eng.SetCache(ctx, "games", "short", map[string]int{"v": 1}, time.Minute)
	clock.Advance(2 * time.Minute)

	eng.StartSweeper(5 * time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := mock.GetCacheEntry(ctx, "games", "short")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestClose_Idempotent(t *testing.T) {
	eng, _, _, _ := newTestEngine(t)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
}
