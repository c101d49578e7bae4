package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ishworii/jobboard/internal/adapter/metrics"
)

// Fetcher performs the backend call behind a query or mutation.
type Fetcher func(ctx context.Context) (any, error)

// State is the freshness state of an entry.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateFresh   State = "fresh"
	StateStale   State = "stale"
	StateError   State = "error"
)

// Snapshot is a point-in-time view of one entry. Value holds the last
// successfully fetched value and survives loading, stale and error states.
type Snapshot struct {
	Key       Key
	State     State
	Value     any
	HasValue  bool
	Err       error
	UpdatedAt time.Time
}

type entry struct {
	key        Key
	value      any
	hasValue   bool
	state      State
	err        error
	updatedAt  time.Time
	lastAccess time.Time
	generation uint64
	loading    bool
	fetch      Fetcher
	subs       map[*Subscription]struct{}
}

// Config holds cache timings. Zero StaleTime makes every query refetch
// (still deduplicated); zero Retention disables eviction.
type Config struct {
	StaleTime time.Duration
	Retention time.Duration
}

// Cache is safe for concurrent use.
type Cache struct {
	cfg     Config
	clock   clockwork.Clock
	metrics *metrics.CacheMetrics
	group   singleflight.Group

	mu      sync.Mutex
	entries map[Key]*entry
	seq     uint64 // source of entry generations, unique across the cache lifetime
}

// New creates a cache. m may be nil.
func New(cfg Config, clock clockwork.Clock, m *metrics.CacheMetrics) *Cache {
	return &Cache{
		cfg:     cfg,
		clock:   clock,
		metrics: m,
		entries: make(map[Key]*entry),
	}
}

// Query returns the cached value for key while it is fresh, joins an
// in-flight fetch for key, or starts one. The fetch runs detached from ctx:
// a caller that gives up gets ctx.Err() while the fetch still lands in the
// cache.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	c.mu.Lock()
	e := c.getOrCreate(key)
	e.lastAccess = c.clock.Now()
	e.fetch = fetch

	if c.isFresh(e) {
		v := e.value
		c.mu.Unlock()
		c.count(func(m *metrics.CacheMetrics) { m.Hits.WithLabelValues(key.op).Inc() })
		return v, nil
	}

	if e.loading {
		c.count(func(m *metrics.CacheMetrics) { m.Joined.WithLabelValues(key.op).Inc() })
	} else {
		c.count(func(m *metrics.CacheMetrics) { m.Misses.WithLabelValues(key.op).Inc() })
	}
	ch := c.startLocked(ctx, e)
	c.mu.Unlock()

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the current snapshot of key without fetching. Found is false
// when no entry exists.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, State: StateIdle}, false
	}
	return c.snapshotLocked(e), true
}

// Mutate runs fetch unconditionally. On success every entry matched by one
// of affected is marked stale and subscribed entries are re-fetched; on
// failure the cache is left untouched.
func (c *Cache) Mutate(ctx context.Context, fetch Fetcher, affected ...Key) (any, error) {
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.Invalidate(ctx, affected...)
	return v, nil
}

// Invalidate marks every entry matched by keys stale. In-flight fetches for
// those entries are superseded and their results discarded.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) {
	var refetch []*entry

	c.mu.Lock()
	for _, e := range c.entries {
		if !matchesAny(keys, e.key) {
			continue
		}
		e.generation = c.nextGenLocked()
		e.loading = false
		if e.hasValue || e.state == StateError || e.state == StateLoading {
			e.state = StateStale
		}
		c.count(func(m *metrics.CacheMetrics) { m.Invalidations.WithLabelValues(e.key.op).Inc() })

		if len(e.subs) > 0 && e.fetch != nil {
			refetch = append(refetch, e)
		} else {
			c.notifyLocked(e)
		}
	}

	refreshCtx := context.WithoutCancel(ctx)
	for _, e := range refetch {
		c.startLocked(refreshCtx, e)
	}
	c.mu.Unlock()
	if len(refetch) > 0 {
		slog.DebugContext(ctx, "Refetching subscribed cache entries", "count", len(refetch))
	}
}

// Clear drops every cached value. Entries with live subscribers are reset to
// idle so their subscribers see the reset; all others are removed. Fetchers
// are dropped too: they may close over credentials that are no longer valid,
// so a cleared entry is only fetched again by a new Query.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if len(e.subs) == 0 {
			delete(c.entries, k)
			continue
		}
		e.generation = c.nextGenLocked()
		e.loading = false
		e.value = nil
		e.hasValue = false
		e.err = nil
		e.fetch = nil
		e.state = StateIdle
		e.updatedAt = time.Time{}
		c.notifyLocked(e)
	}
	c.updateSizeLocked()
}

// Subscribe registers interest in key. The subscription receives a snapshot
// on every state change; only the latest undelivered snapshot is kept.
func (c *Cache) Subscribe(key Key) *Subscription {
	sub := &Subscription{
		key:   key,
		cache: c,
		ch:    make(chan Snapshot, 1),
	}

	c.mu.Lock()
	e := c.getOrCreate(key)
	e.subs[sub] = struct{}{}
	e.lastAccess = c.clock.Now()
	c.mu.Unlock()
	return sub
}

// Refetch starts a fetch for a subscribed key using its last fetcher, unless
// the entry is fresh or already loading. It does not wait for the result.
func (c *Cache) Refetch(ctx context.Context, key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.fetch == nil || e.loading || c.isFresh(e) {
		c.mu.Unlock()
		return
	}
	c.startLocked(context.WithoutCancel(ctx), e)
	c.mu.Unlock()
}

// EvictExpired removes entries with no subscribers and nothing in flight
// whose last access is older than the retention window. It returns the
// number of evicted entries.
func (c *Cache) EvictExpired() int {
	if c.cfg.Retention <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for k, e := range c.entries {
		if len(e.subs) > 0 || e.loading {
			continue
		}
		if now.Sub(e.lastAccess) > c.cfg.Retention {
			delete(c.entries, k)
			evicted++
		}
	}
	if evicted > 0 {
		c.count(func(m *metrics.CacheMetrics) { m.Evictions.Add(float64(evicted)) })
		c.updateSizeLocked()
	}
	return evicted
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartEvictionTimer runs EvictExpired every interval on the cache clock.
// Returns a stop function that should be deferred.
func (c *Cache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if evicted := c.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted idle cache entries", "count", evicted, "remaining", c.Len())
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// startLocked marks e loading (unless it already is) and returns the shared
// result channel for e's current generation.
func (c *Cache) startLocked(ctx context.Context, e *entry) <-chan singleflight.Result {
	if !e.loading {
		e.loading = true
		e.state = StateLoading
		c.notifyLocked(e)
	}

	key, gen, fetch := e.key, e.generation, e.fetch
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.id+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		return c.load(fetchCtx, key, gen, fetch)
	})
	return ch
}

func (c *Cache) load(ctx context.Context, key Key, gen uint64, fetch Fetcher) (v any, err error) {
	// A late joiner may start a new flight after the previous one already
	// landed for this generation.
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.generation == gen && c.isFresh(e) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("querycache: fetch for %s panicked: %v", key, r)
			c.settle(key, gen, nil, err)
		}
	}()

	v, err = fetch(ctx)
	c.settle(key, gen, v, err)
	return v, err
}

func (c *Cache) settle(key Key, gen uint64, v any, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || e.generation != gen {
		c.mu.Unlock()
		c.count(func(m *metrics.CacheMetrics) { m.Discarded.Inc() })
		slog.Debug("Discarded superseded fetch result", "key", key.id)
		return
	}

	e.loading = false
	if err != nil {
		e.state = StateError
		e.err = err
	} else {
		e.value = v
		e.hasValue = true
		e.err = nil
		e.state = StateFresh
		e.updatedAt = c.clock.Now()
	}
	c.notifyLocked(e)
	c.mu.Unlock()
}

func (c *Cache) getOrCreate(key Key) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{
			key:        key,
			state:      StateIdle,
			generation: c.nextGenLocked(),
			subs:       make(map[*Subscription]struct{}),
		}
		c.entries[key] = e
		c.updateSizeLocked()
	}
	return e
}

func (c *Cache) nextGenLocked() uint64 {
	c.seq++
	return c.seq
}

func (c *Cache) isFresh(e *entry) bool {
	return e.state == StateFresh && c.clock.Since(e.updatedAt) < c.cfg.StaleTime
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	state := e.state
	if state == StateFresh && !c.isFresh(e) {
		state = StateStale
	}
	return Snapshot{
		Key:       e.key,
		State:     state,
		Value:     e.value,
		HasValue:  e.hasValue,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
	}
}

func (c *Cache) updateSizeLocked() {
	c.count(func(m *metrics.CacheMetrics) { m.Entries.Set(float64(len(c.entries))) })
}

func (c *Cache) count(fn func(m *metrics.CacheMetrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}

func (c *Cache) unsubscribe(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[sub.key]; ok {
		delete(e.subs, sub)
		e.lastAccess = c.clock.Now()
	}
}

func matchesAny(keys []Key, k Key) bool {
	for _, affected := range keys {
		if affected.Matches(k) {
			return true
		}
	}
	return false
}
