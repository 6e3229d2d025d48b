package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/webpeel/webpeel/models"
)

// State describes what a cache lookup found.
type State int

const (
	// Miss means no usable entry exists.
	Miss State = iota

	// Fresh means the entry is inside the fresh window and can be served
	// as-is.
	Fresh

	// Stale means the entry is past the fresh window but not yet expired:
	// serve it, then refresh in the background.
	Stale
)

// entry holds a cached result with its storage timestamp.
type entry struct {
	result   *models.FetchResult
	storedAt time.Time
}

// Cache is an in-memory response cache with a fresh window and a stale
// horizon. Entries inside the fresh window are served directly; entries
// between the fresh window and the stale horizon are served stale (the
// orchestrator revalidates them in the background); older entries are
// treated as misses and evicted. Safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	freshFor   time.Duration
	staleFor   time.Duration

	revalMu      sync.Mutex
	revalidating map[string]struct{}

	done chan struct{}
}

// New creates a Cache. freshFor is the window in which entries are served
// without revalidation; staleFor is the total lifetime after which entries
// are evicted. A background goroutine prunes expired entries every 5 minutes.
func New(maxEntries int, freshFor, staleFor time.Duration) *Cache {
	c := &Cache{
		store:        make(map[string]*entry),
		maxEntries:   maxEntries,
		freshFor:     freshFor,
		staleFor:     staleFor,
		revalidating: make(map[string]struct{}),
		done:         make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key generates a cache key from the URL.
func Key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

// Get retrieves a cached result and its freshness state.
func (c *Cache) Get(key string) (*models.FetchResult, State) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, Miss
	}

	age := time.Since(e.storedAt)
	switch {
	case age <= c.freshFor:
		return e.result, Fresh
	case age <= c.staleFor:
		return e.result, Stale
	default:
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return nil, Miss
	}
}

// Set stores a result. If the cache is at capacity, a random entry is
// evicted to make room (map iteration order is random in Go).
func (c *Cache) Set(key string, result *models.FetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		result:   result,
		storedAt: time.Now(),
	}
}

// MarkRevalidating is a try-lock: it returns true for at most one caller
// per key until DoneRevalidating releases it. Losers should skip their
// background refresh — someone else is already on it.
func (c *Cache) MarkRevalidating(key string) bool {
	c.revalMu.Lock()
	defer c.revalMu.Unlock()
	if _, busy := c.revalidating[key]; busy {
		return false
	}
	c.revalidating[key] = struct{}{}
	return true
}

// DoneRevalidating releases the revalidation lock for a key.
func (c *Cache) DoneRevalidating(key string) {
	c.revalMu.Lock()
	delete(c.revalidating, key)
	c.revalMu.Unlock()
}

// Stop terminates the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

// cleanupLoop evicts entries past the stale horizon every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.staleFor)
			c.mu.Lock()
			for k, e := range c.store {
				if e.storedAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
