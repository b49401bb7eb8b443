// ABOUTME: Tests for the dedupe cache used to drop resent realtime frames.
// ABOUTME: Validates TTL expiration, size limits, eviction, forgetting, sweeping, and concurrency safety.

package dedupe

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, maxEntries int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, maxEntries)
	c.now = clock.Now
	return c, clock
}

func TestKey(t *testing.T) {
	assert.Equal(t, "3:abc", Key(3, "abc"))
	assert.NotEqual(t, Key(3, "abc"), Key(5, "abc"))
}

func TestCache_CheckAndMark(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	assert.False(t, c.CheckAndMark("k"), "first sighting is new")
	assert.True(t, c.CheckAndMark("k"), "second sighting is a duplicate")
	assert.False(t, c.CheckAndMark("other"))
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)
	defer c.Close()

	c.CheckAndMark("k")
	clock.Advance(59 * time.Second)
	assert.True(t, c.CheckAndMark("k"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.CheckAndMark("k"), "expired key is accepted and re-marked")
	assert.True(t, c.CheckAndMark("k"))
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	c, _ := newTestCache(time.Minute, 3)
	defer c.Close()

	for _, k := range []string{"a", "b", "c", "d"} {
		c.CheckAndMark(k)
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.CheckAndMark("a"), "oldest key was evicted")
	assert.True(t, c.CheckAndMark("d"))
}

func TestCache_Forget(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)
	defer c.Close()

	c.CheckAndMark("k")
	c.Forget("k")
	c.Forget("never-marked")

	assert.Equal(t, 0, c.Len())
	assert.False(t, c.CheckAndMark("k"))
}

func TestCache_RemoveExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)
	defer c.Close()

	c.CheckAndMark("old")
	clock.Advance(30 * time.Second)
	c.CheckAndMark("new")
	clock.Advance(45 * time.Second)

	c.removeExpired()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.CheckAndMark("new"))
}

func TestCache_Defaults(t *testing.T) {
	c := New(0, 0)
	defer c.Close()

	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, DefaultMaxEntries, c.maxEntries)
	assert.Equal(t, time.Minute, sweepInterval(DefaultTTL))
	assert.Equal(t, time.Second, sweepInterval(time.Millisecond))
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestCache_ConcurrentCheckAndMark(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			for i := range 50 {
				if !c.CheckAndMark("key-" + strconv.Itoa(i)) {
					fresh.Add(1)
				}
			}
		})
	}
	wg.Wait()

	assert.Equal(t, int32(50), fresh.Load(), "each key is new exactly once")
}
