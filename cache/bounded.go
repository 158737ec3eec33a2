package cache

import (
	"sync"
	"time"

	"github.com/brotherdetjr/deltabanana/faults"
)

// Bounded is a fixed-capacity mapping with per-entry inactivity expiry.
// When full and nothing has expired, Put fails with a CapacityError instead
// of evicting a live entry, so callers can signal backpressure upstream.
type Bounded[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[K]boundedEntry[V]
}

type boundedEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func NewBounded[K comparable, V any](maxSize int, ttl time.Duration) *Bounded[K, V] {
	return &Bounded[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[K]boundedEntry[V]),
	}
}

// Put stores value under key and restarts the key's inactivity window.
// Inserting a new key into a full cache reaps expired entries first and
// returns a CapacityError if none could be reclaimed; existing entries are
// left unmodified in that case.
func (c *Bounded[K, V]) Put(key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, ok := c.entries[key]; !ok {
		if len(c.entries) >= c.maxSize {
			c.reap(now)
		}
		if len(c.entries) >= c.maxSize {
			return faults.NewTypedError(faults.CapacityError, "session cache is full", nil)
		}
	}
	c.entries[key] = boundedEntry[V]{value: value, expiresAt: now.Add(c.ttl)}
	return nil
}

func (c *Bounded[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !time.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return entry.value, true
}

func (c *Bounded[K, V]) Contains(key K) bool {
	_, ok := c.Get(key)
	return ok
}

// Len reports the number of live entries.
func (c *Bounded[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reap(time.Now())
	return len(c.entries)
}

// reap removes expired entries; callers hold c.mu.
func (c *Bounded[K, V]) reap(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
