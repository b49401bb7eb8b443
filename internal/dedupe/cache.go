// ABOUTME: Thread-safe TTL cache for dropping resent realtime send frames
// ABOUTME: Keys are sender id plus client message id; oldest keys are evicted at capacity

package dedupe

import (
	"container/list"
	"strconv"
	"sync"
	"time"
)

// Defaults used when New is given non-positive values.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 10000
)

// Key builds the cache key for a client-supplied message id. Ids are scoped
// per sender so two clients picking the same id do not collide.
func Key(senderID int64, clientMessageID string) string {
	return strconv.FormatInt(senderID, 10) + ":" + clientMessageID
}

type entry struct {
	markedAt time.Time
	element  *list.Element
}

// Cache remembers recently seen keys for a fixed TTL, holding at most
// maxEntries. Insertion order is kept in a list so eviction is O(1).
type Cache struct {
	mu         sync.Mutex
	seen       map[string]*entry
	order      *list.List // oldest at front
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a cache and starts its background sweeper. Call Close to stop it.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &Cache{
		seen:       make(map[string]*entry),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.sweep(sweepInterval(ttl))
	return c
}

func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), time.Minute)
}

// CheckAndMark reports whether key was already seen within the TTL. A new or
// expired key is marked and false is returned, in one atomic step.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.seen[key]; ok {
		if now.Sub(e.markedAt) < c.ttl {
			return true
		}
		e.markedAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.seen[key] = &entry{markedAt: now, element: c.order.PushBack(key)}
	return false
}

// Forget removes key so that a retry after a failed send is accepted.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		c.order.Remove(e.element)
		delete(c.seen, key)
	}
}

// Len returns the number of keys currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

// removeExpired drops expired keys from the front of the list. Keys are
// re-pushed to the back on refresh, so the list is ordered by markedAt.
func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(c.seen[key].markedAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

// Close stops the background sweeper. It is safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
