// Package querycache implements a small key-value store with
// per-entry TTL and LRU eviction for memoizing read queries, with an
// optional external key-value server as an alternative backend. The
// relational stores in this module do not route their reads through it.
// Grounded on the
// same container/list LRU idiom as the embedding cache and the semantic
// cache — this module's own justified stdlib-only primitive, documented in
// DESIGN.md.
package querycache

import (
	"container/list"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the in-memory cache's capacity default.
const DefaultCapacity = 500

// QueryCache is the contract shared by both the in-process Cache and an external
// key-value-backed implementation satisfy it, selected at wiring time by
// whether an external server is configured.
type QueryCache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	ClearPattern(pattern string) int
	Stats() Stats
}

// Stats reports cache effectiveness.
type Stats struct {
	Size     int
	Capacity int
	Hits     int64
	Misses   int64
	Backend  string
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// Cache is the in-memory LRU+TTL implementation of QueryCache, used whenever
// no external key-value server is configured.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List

	hits   int64
	misses int64
}

// New builds a Cache. capacity of zero selects DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// BuildKey assembles a "<prefix>:<arg1>:<arg2>:..." key from a function
// identity, positional arguments, and keyword arguments sorted by name.
func BuildKey(prefix string, args []any, kwargs map[string]any) string {
	parts := []string{prefix}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	if len(kwargs) > 0 {
		names := make([]string, 0, len(kwargs))
		for k := range kwargs {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			parts = append(parts, fmt.Sprintf("%s=%v", k, kwargs[k]))
		}
	}
	return strings.Join(parts, ":")
}

// Get returns the cached value, if present and unexpired. A value of nil is
// never stored (the same "must never cache null results" rule this cache follows elsewhere).
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeLocked(el)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key with the given TTL (zero means no expiry).
// Setting a nil value is a no-op.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if value == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = exp
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry{key: key, value: value, expiresAt: exp})
	c.items[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeLocked(oldest)
		}
	}
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

// ClearPattern deletes every key matching a shell glob pattern (as
// path.Match interprets it), matching clear_pattern's glob semantics.
func (c *Cache) ClearPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var toRemove []*list.Element
	for key, el := range c.items {
		if matched, _ := path.Match(pattern, key); matched {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.removeLocked(el)
	}
	return len(toRemove)
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
}

// Stats reports current size, capacity, and hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:     c.order.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
		Backend:  "memory",
	}
}

var _ QueryCache = (*Cache)(nil)
