package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/edgecomet/ssr-gateway/pkg/types"
)

const (
	DefaultMaxEntries = 100
	DefaultMaxAge     = time.Hour
)

// EvictReason tells an eviction hook why an entry left the cache
type EvictReason int

const (
	EvictCapacity EvictReason = iota
	EvictExpired
)

func (r EvictReason) String() string {
	if r == EvictExpired {
		return "expired"
	}
	return "capacity"
}

// Entry is a rendered document stored under its request URI
type Entry struct {
	Key      string
	Value    string
	StoredAt time.Time
}

// Stats is a point-in-time snapshot of cache counters
type Stats struct {
	Hits uint64 `json:"hits"`
	// Misses counts local tier misses; SharedHits of them were then served by the shared tier
	Misses      uint64         `json:"misses"`
	SharedHits  uint64         `json:"shared_hits"`
	Evictions   uint64         `json:"evictions"`
	Expirations uint64         `json:"expirations"`
	Entries     int            `json:"entries"`
	Capacity    int            `json:"capacity"`
	MaxAge      types.Duration `json:"max_age"`
}

type Option func(*PageCache)

// WithMaxEntries sets the capacity; values below 1 keep the default
func WithMaxEntries(n int) Option {
	return func(c *PageCache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithMaxAge sets the freshness window; values below 1ns keep the default
func WithMaxAge(d time.Duration) Option {
	return func(c *PageCache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *PageCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvictionHook is called with the lock held; the hook must not call back into the cache
func WithEvictionHook(hook func(key string, reason EvictReason)) Option {
	return func(c *PageCache) {
		c.onEvict = hook
	}
}

// PageCache is a count-bounded LRU of rendered documents with a fixed max age.
// Stale entries answer as misses and are dropped when touched by Get or when
// they reach the LRU tail.
type PageCache struct {
	mu       sync.Mutex
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	capacity int
	maxAge   time.Duration
	now      func() time.Time
	onEvict  func(key string, reason EvictReason)

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

func New(opts ...Option) *PageCache {
	c := &PageCache{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		capacity: DefaultMaxEntries,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the document for key when it is present and fresh
func (c *PageCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return "", false
	}

	entry := el.Value.(*Entry)
	if c.isStale(entry) {
		c.removeElement(el)
		c.expirations++
		c.misses++
		c.notify(key, EvictExpired)
		return "", false
	}

	c.ll.MoveToFront(el)
	c.hits++
	return entry.Value, true
}

// Set stores value under key with a fresh timestamp, overwriting any previous value
func (c *PageCache) Set(key, value string) {
	c.setAt(key, value, c.now())
}

func (c *PageCache) setAt(key, value string, storedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*Entry)
		entry.Value = value
		entry.StoredAt = storedAt
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&Entry{Key: key, Value: value, StoredAt: storedAt})

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		entry := oldest.Value.(*Entry)
		c.removeElement(oldest)
		if c.isStale(entry) {
			c.expirations++
			c.notify(entry.Key, EvictExpired)
		} else {
			c.evictions++
			c.notify(entry.Key, EvictCapacity)
		}
	}
}

// Has reports whether a fresh entry exists without touching recency or counters
func (c *PageCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	return ok && !c.isStale(el.Value.(*Entry))
}

// Delete removes key and reports whether it was stored
func (c *PageCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// Purge drops every entry and returns how many were removed
func (c *PageCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.ll.Len()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	return n
}

// Len counts stored entries, stale ones included
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *PageCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Entries:     c.ll.Len(),
		Capacity:    c.capacity,
		MaxAge:      types.Duration(c.maxAge),
	}
}

func (c *PageCache) MaxAge() time.Duration {
	return c.maxAge
}

func (c *PageCache) isStale(e *Entry) bool {
	return c.now().Sub(e.StoredAt) > c.maxAge
}

func (c *PageCache) removeElement(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*Entry).Key)
}

func (c *PageCache) notify(key string, reason EvictReason) {
	if c.onEvict != nil {
		c.onEvict(key, reason)
	}
}
