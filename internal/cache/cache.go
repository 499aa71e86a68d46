// Package cache is the keyed store of server-derived data: staleness
// windows, request de-duplication, prefix invalidation, and a disuse
// garbage collector. Views read strictly from it; loaders guarantee data
// is present before a view renders.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lt-jshipley/appcore/internal/core/domain"
	"github.com/lt-jshipley/appcore/internal/metrics"
)

// State is the lifecycle phase of a cache entry.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateFresh    State = "fresh"
	StateStale    State = "stale"
	StateError    State = "error"
)

// Fetcher produces the value for a key. Read fetchers may be retried per
// the configured policy; mutations must never go through a Fetcher.
type Fetcher func(ctx context.Context) (any, error)

// Snapshot is what subscribers receive on every entry transition.
type Snapshot struct {
	Key       Key
	State     State
	Data      any
	FetchedAt time.Time
	Err       error
}

// Config carries the tunable windows. Zero durations fall back to the
// suggested defaults; ReadRetries of zero genuinely means no retries.
type Config struct {
	StaleAfter  time.Duration
	GCAfter     time.Duration
	ReadRetries int
}

const (
	defaultStaleAfter = 5 * time.Minute
	defaultGCAfter    = 30 * time.Minute
)

type entry struct {
	key       Key
	state     State
	data      any
	hasData   bool
	fetchedAt time.Time
	err       error

	// fetching tracks an in-flight fetch separately from state: a stale
	// entry stays externally stale (and servable) while revalidating.
	fetching bool
	// gen is bumped by Invalidate; a fetch that started under an older gen
	// lands already-stale instead of masking the invalidation.
	gen int
	// fetcher is the last fetcher seen for this key, kept so invalidation
	// can refetch eagerly for subscribed entries.
	fetcher Fetcher

	lastAccess time.Time
	subs       map[int]chan Snapshot
	nextSub    int
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{Key: e.key, State: e.state, Data: e.data, FetchedAt: e.fetchedAt, Err: e.err}
}

// Cache implements the remote data cache. All entry mutation happens under
// one mutex; fetch network time is spent outside it.
type Cache struct {
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
}

// New builds a Cache. Run must be started separately for garbage
// collection to happen.
func New(cfg Config, log zerolog.Logger) *Cache {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.GCAfter <= 0 {
		cfg.GCAfter = defaultGCAfter
	}
	return &Cache{
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Ensure returns the value for key, fetching it if needed.
//
//   - fresh entry: returned immediately, no network.
//   - stale entry (or fresh past its window): returned immediately while a
//     background refetch replaces it.
//   - anything else: awaits the fetcher (joining an in-flight fetch for the
//     same key instead of starting a second one).
func (c *Cache) Ensure(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	now := c.now()

	c.mu.Lock()
	e := c.entryLocked(key)
	e.lastAccess = now
	e.fetcher = fetch

	if e.state == StateFresh && now.Sub(e.fetchedAt) < c.cfg.StaleAfter {
		data := e.data
		c.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues("fresh").Inc()
		return data, nil
	}

	if e.state == StateFresh || e.state == StateStale {
		if e.state == StateFresh {
			e.state = StateStale
			c.notifyLocked(e)
		}
		data := e.data
		inFlight := e.fetching
		c.mu.Unlock()
		metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		if !inFlight {
			// Detached from the caller's cancellation: the caller already
			// has its value, the refetch only feeds the cache.
			go c.refetch(context.WithoutCancel(ctx), key, fetch)
		}
		return data, nil
	}

	c.mu.Unlock()
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	return c.fetch(ctx, key, fetch)
}

// Subscribe returns a channel of entry snapshots for reactive consumers,
// primed with the current snapshot, plus an unsubscribe func. Delivery is
// best-effort latest-wins: a slow consumer loses intermediate snapshots,
// never the most recent one.
func (c *Cache) Subscribe(key Key) (<-chan Snapshot, func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.lastAccess = c.now()

	ch := make(chan Snapshot, 8)
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshot()
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.entries[key.String()]; ok {
			if _, live := cur.subs[id]; live {
				delete(cur.subs, id)
				close(ch)
			}
		}
	}
}

// Invalidate marks every entry whose key starts with prefix as stale.
// Entries with live subscribers refetch eagerly; the rest wait for their
// next Ensure. An in-flight fetch that started before the invalidation is
// not cancelled — its result lands already marked stale.
func (c *Cache) Invalidate(prefix Key) {
	type job struct {
		key   Key
		fetch Fetcher
	}
	var eager []job

	c.mu.Lock()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.gen++
		switch {
		case e.state == StateFresh:
			e.state = StateStale
		case e.state == StateError && e.hasData:
			e.state = StateStale
		case e.state == StateError:
			e.state = StateIdle
		}
		c.notifyLocked(e)
		if len(e.subs) > 0 && e.fetcher != nil && !e.fetching {
			eager = append(eager, job{key: e.key, fetch: e.fetcher})
		}
	}
	c.mu.Unlock()

	for _, j := range eager {
		go c.refetch(context.Background(), j.key, j.fetch)
	}
}

// Run drives the garbage collector until ctx is cancelled. Entries with no
// subscribers that have not been touched for the GC window are evicted.
func (c *Cache) Run(ctx context.Context) {
	interval := c.cfg.GCAfter / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Cache) collect() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for ks, e := range c.entries {
		if len(e.subs) == 0 && !e.fetching && now.Sub(e.lastAccess) > c.cfg.GCAfter {
			delete(c.entries, ks)
			metrics.CacheEvictionsTotal.Inc()
		}
	}
}

// fetch runs the fetcher through singleflight so concurrent callers for
// one key share a single network operation.
func (c *Cache) fetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		return c.runFetch(ctx, key, fetch)
	})
	if shared {
		metrics.CacheDedupTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheDedupTotal.WithLabelValues("miss").Inc()
	}
	return v, err
}

func (c *Cache) refetch(ctx context.Context, key Key, fetch Fetcher) {
	if _, err := c.fetch(ctx, key, fetch); err != nil {
		c.log.Warn().Err(err).Stringer("key", key).Msg("background refetch failed")
	}
}

func (c *Cache) runFetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	gen := e.gen
	e.fetching = true
	if !e.hasData {
		e.state = StateFetching
		c.notifyLocked(e)
	}
	c.mu.Unlock()

	var v any
	var err error
	for attempt := 0; ; attempt++ {
		v, err = fetch(ctx)
		if err == nil || attempt >= c.cfg.ReadRetries || !c.retryable(ctx, err) {
			break
		}
		c.log.Debug().Err(err).Stringer("key", key).Int("attempt", attempt+1).Msg("retrying read fetch")
	}

	now := c.now()
	c.mu.Lock()
	e = c.entryLocked(key)
	e.fetching = false
	if err != nil {
		e.state = StateError
		e.err = err
	} else {
		e.data = v
		e.hasData = true
		e.fetchedAt = now
		e.err = nil
		if e.gen != gen {
			// Invalidated while in flight: the result is servable but must
			// not pass for current.
			e.state = StateStale
		} else {
			e.state = StateFresh
		}
	}
	c.notifyLocked(e)
	c.mu.Unlock()

	return v, err
}

// retryable: 4xx protocol failures cannot be helped by retrying, and a
// dead caller context makes retrying pointless. Everything else (transport
// failures, 5xx) gets the configured retry budget.
func (c *Cache) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return !apiErr.IsClientError()
	}
	return true
}

func (c *Cache) entryLocked(key Key) *entry {
	ks := key.String()
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{
			key:        key,
			state:      StateIdle,
			lastAccess: c.now(),
			subs:       make(map[int]chan Snapshot),
		}
		c.entries[ks] = e
	}
	return e
}

// notifyLocked pushes the entry's snapshot to every subscriber, dropping
// the oldest buffered snapshot when a consumer lags.
func (c *Cache) notifyLocked(e *entry) {
	snap := e.snapshot()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Ensure is the typed wrapper over Cache.Ensure for callers that know the
// value type behind a key.
func Ensure[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.Ensure(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: key %s holds %T", key, v)
	}
	return t, nil
}
