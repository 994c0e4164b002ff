// ABOUTME: Engine facade wiring the cache, queue, domain stores and sweeper
// ABOUTME: Constructed explicitly by the host app; no package-level instance exists

package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guildpost/guildpost/internal/store"
)

// Defaults for engine tuning knobs.
const (
	DefaultMaxRetries = 5
	DefaultTTL        = time.Hour
	DefaultRetention  = 7 * 24 * time.Hour
)

// Engine is the offline-first sync engine. It owns the local store
// exclusively; the host application must never write to the underlying
// database directly.
type Engine struct {
	store      store.Store
	sender     Sender
	logger     *slog.Logger
	clock      Clock
	maxRetries int
	defaultTTL time.Duration
	retention  time.Duration
	backoff    *Backoff

	// online tracks the host-reported connectivity state.
	online atomic.Bool

	// draining guards ProcessPendingQueue against re-entrant invocation.
	// Multiple triggers (new enqueue, connectivity restored, manual call)
	// may race to start a drain; only one may run at a time so that exactly
	// one queue item is ever in flight.
	draining atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	sweepWG   sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock injects a clock, for deterministic expiry in tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithMaxRetries sets how many delivery attempts a queue item gets before it
// is failed permanently.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithDefaultTTL sets the cache TTL used when SetCache is called with a
// non-positive ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.defaultTTL = ttl
		}
	}
}

// WithRetention sets how long terminal queue items are kept before the
// sweeper removes them.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

// WithBackoff sets the inter-attempt backoff for requeued items. Without it
// a requeued item is immediately eligible for the next drain pass.
func WithBackoff(b *Backoff) Option {
	return func(e *Engine) {
		e.backoff = b
	}
}

// New constructs an Engine over the given store and network sender and runs
// an initial retention sweep. The engine starts offline; the host signals
// connectivity via SetOnline.
func New(st store.Store, sender Sender, opts ...Option) *Engine {
	e := &Engine{
		store:      st,
		sender:     sender,
		logger:     slog.Default().With("component", "engine"),
		clock:      time.Now,
		maxRetries: DefaultMaxRetries,
		defaultTTL: DefaultTTL,
		retention:  DefaultRetention,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.Cleanup(context.Background())
	return e
}

// SetOnline records the host-reported connectivity state. A transition to
// online kicks the reconciliation loop.
func (e *Engine) SetOnline(online bool) {
	was := e.online.Swap(online)
	if online && !was {
		e.logger.Info("connectivity restored, draining queue")
		go e.ProcessPendingQueue(context.Background())
	}
}

// Online reports the last connectivity state set by the host.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// StartSweeper runs Cleanup periodically until Close is called.
func (e *Engine) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}

	e.sweepWG.Add(1)
	go func() {
		defer e.sweepWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.Cleanup(context.Background())
			case <-e.done:
				return
			}
		}
	}()
}

// ClearAllData wipes the domain stores and the cache. The mutation queue is
// preserved: pending work must survive a local data reset or logout.
func (e *Engine) ClearAllData(ctx context.Context) error {
	if err := e.store.ClearDomainData(ctx); err != nil {
		e.logger.Error("clearing local data failed", "error", err)
		return err
	}
	e.logger.Info("local data cleared, sync queue preserved")
	return nil
}

// Close stops the sweeper and closes the underlying store. It is safe to
// call multiple times.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		e.sweepWG.Wait()
		err = e.store.Close()
	})
	return err
}

func (e *Engine) now() time.Time {
	return e.clock()
}
