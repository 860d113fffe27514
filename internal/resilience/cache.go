// Package resilience keeps remote reads usable while the backend is down.
//
// A Cache remembers the last live answer per key. When a fetch fails with
// apperr.Unavailable, Query serves that answer marked Stale, or a synthetic
// placeholder marked Synthetic, instead of failing. Any other error passes
// through untouched.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/singleflight"

	"github.com/example/roadside-matching/internal/apperr"
	"github.com/example/roadside-matching/internal/observability"
)

type Source string

const (
	Live      Source = "live"
	Stale     Source = "stale"
	Synthetic Source = "synthetic"
)

// Degraded reports whether the data did not come from a live fetch.
func (s Source) Degraded() bool { return s != Live }

// Result is what Query hands back: the data and where it came from.
type Result[T any] struct {
	Data      T
	Source    Source
	FetchedAt time.Time
}

func (r Result[T]) Degraded() bool { return r.Source.Degraded() }

// Snapshot is the persisted form of a live answer.
type Snapshot struct {
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// SnapshotStore is an optional second tier that outlives the process.
type SnapshotStore interface {
	Save(ctx context.Context, key string, snap Snapshot) error
	Load(ctx context.Context, key string) (Snapshot, bool, error)
}

type entry struct {
	data      any
	fetchedAt time.Time
}

// Cache holds last-known-good answers. Create one per client with NewCache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	flight  singleflight.Group

	maxStale     time.Duration
	fetchTimeout time.Duration
	snapshots    SnapshotStore
	clock        clock.Clock
	logger       *slog.Logger
}

// DefaultFetchTimeout bounds a shared fetch once it no longer follows the
// caller's context.
const DefaultFetchTimeout = 15 * time.Second

type Option func(*Cache)

// WithMaxStale bounds how old a stale answer may be. Zero means no bound.
func WithMaxStale(d time.Duration) Option { return func(c *Cache) { c.maxStale = d } }

// WithFetchTimeout bounds each shared fetch. A fetch that runs out of time
// counts as unavailable.
func WithFetchTimeout(d time.Duration) Option { return func(c *Cache) { c.fetchTimeout = d } }

func WithSnapshots(s SnapshotStore) Option { return func(c *Cache) { c.snapshots = s } }

func WithClock(clk clock.Clock) Option { return func(c *Cache) { c.clock = clk } }

func WithLogger(l *slog.Logger) Option { return func(c *Cache) { c.logger = l } }

func NewCache(opts ...Option) *Cache {
	c := &Cache{
		entries:      make(map[string]entry),
		fetchTimeout: DefaultFetchTimeout,
		clock:        clock.WallClock,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Forget drops key from the in-memory tier.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of keys held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) put(ctx context.Context, key string, data any, at time.Time) {
	c.mu.Lock()
	c.entries[key] = entry{data: data, fetchedAt: at}
	c.mu.Unlock()

	if c.snapshots == nil {
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "snapshot encode failed", "key", key, "error", err)
		return
	}
	if err := c.snapshots.Save(ctx, key, Snapshot{Data: b, FetchedAt: at}); err != nil {
		c.logger.WarnContext(ctx, "snapshot save failed", "key", key, "error", err)
	}
}

func (c *Cache) fresh(at time.Time) bool {
	return c.maxStale <= 0 || c.clock.Now().Sub(at) <= c.maxStale
}

// Query runs fetch under key. Concurrent queries for the same key share a
// single fetch, which is detached from any one caller's cancellation and
// bounded by the fetch timeout instead. A live answer replaces whatever was
// cached. When fetch fails as unavailable the last live answer is returned
// as Stale; failing that, synth (if non-nil) supplies a Synthetic answer,
// which is never cached.
func Query[T any](ctx context.Context, c *Cache, key string, fetch func(context.Context) (T, error), synth func() T) (Result[T], error) {
	ch := c.flight.DoChan(key, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if c.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.fetchTimeout)
			defer cancel()
		}
		data, err := fetch(fctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = apperr.WrapUnavailable(err, "fetch %q timed out", key)
			}
			return nil, err
		}
		now := c.clock.Now()
		c.put(fctx, key, data, now)
		return Result[T]{Data: data, Source: Live, FetchedAt: now}, nil
	})
	var v any
	var err error
	select {
	case r := <-ch:
		v, err = r.Val, r.Err
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	}
	if err == nil {
		res, ok := v.(Result[T])
		if !ok {
			return Result[T]{}, fmt.Errorf("resilience: key %q shared by different result types", key)
		}
		observability.CacheResults.WithLabelValues(string(Live)).Inc()
		return res, nil
	}
	if !errors.Is(err, apperr.Unavailable) {
		return Result[T]{}, err
	}

	if data, at, ok := lastKnown[T](ctx, c, key); ok {
		observability.CacheResults.WithLabelValues(string(Stale)).Inc()
		c.logger.InfoContext(ctx, "serving stale result", "key", key, "fetched_at", at, "cause", err)
		return Result[T]{Data: data, Source: Stale, FetchedAt: at}, nil
	}
	if synth != nil {
		observability.CacheResults.WithLabelValues(string(Synthetic)).Inc()
		c.logger.InfoContext(ctx, "serving synthetic result", "key", key, "cause", err)
		return Result[T]{Data: synth(), Source: Synthetic, FetchedAt: c.clock.Now()}, nil
	}
	observability.CacheResults.WithLabelValues("miss").Inc()
	return Result[T]{}, err
}

func lastKnown[T any](ctx context.Context, c *Cache, key string) (T, time.Time, bool) {
	var zero T
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		data, typed := e.data.(T)
		if typed && c.fresh(e.fetchedAt) {
			return data, e.fetchedAt, true
		}
		return zero, time.Time{}, false
	}

	if c.snapshots == nil {
		return zero, time.Time{}, false
	}
	snap, found, err := c.snapshots.Load(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "snapshot load failed", "key", key, "error", err)
		return zero, time.Time{}, false
	}
	if !found || !c.fresh(snap.FetchedAt) {
		return zero, time.Time{}, false
	}
	var data T
	if err := json.Unmarshal(snap.Data, &data); err != nil {
		c.logger.WarnContext(ctx, "snapshot decode failed", "key", key, "error", err)
		return zero, time.Time{}, false
	}
	return data, snap.FetchedAt, true
}
