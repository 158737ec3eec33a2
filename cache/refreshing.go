package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// LoadFunc produces the value for a key. On a periodic refresh the previous
// value is supplied so the loader can decide incremental behaviour; hasPrev is
// false only on the initial synchronous load.
type LoadFunc[K comparable, V any] func(ctx context.Context, key K, prev V, hasPrev bool) (V, error)

// CommitFunc decides whether a freshly loaded value replaces the cached one.
// Returning false keeps the previous value. Callers hook "value meaningfully
// changed" side effects here; the hook must not block the key's lock for long.
type CommitFunc[K comparable, V any] func(key K, prev V, next V, hasPrev bool) bool

// Refreshing memoizes one value per key and reconciles it in the background,
// one refresh loop per key. Only one load is ever in flight per key; readers
// observe either the previous value or the committed new one.
type Refreshing[K comparable, V any] struct {
	ctx      context.Context
	interval time.Duration
	load     LoadFunc[K, V]
	commit   CommitFunc[K, V]
	log      logr.Logger

	// mu guards map mutation only, never a load.
	mu     sync.Mutex
	locks  map[K]*sync.Mutex
	values map[K]V
}

// NewRefreshing builds a refreshing cache. The context bounds every background
// refresh loop the cache ever starts. A nil commit function commits
// unconditionally.
func NewRefreshing[K comparable, V any](
	ctx context.Context,
	interval time.Duration,
	load LoadFunc[K, V],
	commit CommitFunc[K, V],
	log logr.Logger,
) *Refreshing[K, V] {
	return &Refreshing[K, V]{
		ctx:      ctx,
		interval: interval,
		load:     load,
		commit:   commit,
		log:      log,
		locks:    make(map[K]*sync.Mutex),
		values:   make(map[K]V),
	}
}

// Get returns the cached value for key, loading it synchronously on first
// access. Concurrent first-time callers for the same key block on the same
// load; exactly one loader invocation happens.
func (c *Refreshing[K, V]) Get(ctx context.Context, key K) (V, error) {
	if value, ok := c.value(key); ok {
		return value, nil
	}
	return c.loadAndStore(ctx, key)
}

func (c *Refreshing[K, V]) loadAndStore(ctx context.Context, key K) (V, error) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have completed the load while this one waited.
	if value, ok := c.value(key); ok {
		return value, nil
	}

	var zero V
	value, err := c.load(ctx, key, zero, false)
	if err != nil {
		return zero, err
	}
	c.setValue(key, value)
	return value, nil
}

// lockFor returns the key's lock, creating it at most once for the process
// lifetime. Creating the lock also starts the key's refresh loop, so the loop
// runs no matter which entry point touches the key first. The short structural
// lock covers only the map lookup-or-create.
func (c *Refreshing[K, V]) lockFor(key K) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lock, ok := c.locks[key]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	c.locks[key] = lock
	go c.refreshLoop(key)
	return lock
}

func (c *Refreshing[K, V]) value(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	return value, ok
}

func (c *Refreshing[K, V]) setValue(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Refresh runs one reconciliation for key immediately, through the same
// commit-decision path as the background loop. It blocks until the cycle
// completes.
func (c *Refreshing[K, V]) Refresh(key K) {
	c.refresh(key)
}

func (c *Refreshing[K, V]) refreshLoop(key K) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.refresh(key)
		}
	}
}

// refresh runs one reconciliation under the key's lock. A failing loader keeps
// the previous value and never takes the loop down.
func (c *Refreshing[K, V]) refresh(key K) {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	prev, hasPrev := c.value(key)
	next, err := c.load(c.ctx, key, prev, hasPrev)
	if err != nil {
		c.log.Error(err, "refresh failed, keeping previous value", "key", key)
		return
	}

	if c.commit == nil || c.commit(key, prev, next, hasPrev) {
		c.setValue(key, next)
	}
}
