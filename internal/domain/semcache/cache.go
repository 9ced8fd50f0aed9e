package semcache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanqian/ai-helloworld/internal/domain/vectorindex"
)

// DefaultThreshold, DefaultTTL, and DefaultCapacity are the cache's defaults.
const (
	DefaultThreshold = 0.95
	DefaultTTL       = time.Hour
	DefaultCapacity  = 1000
	candidateScan    = 200 // K: bounded candidate set scanned per lookup
)

// Backend optionally persists entries across process restarts, grounded on
// a faq.Store-style interface. A nil backend means cache contents do
// not survive a restart.
type Backend interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, e Entry) error
	DeleteAll(ctx context.Context) error
	Name() string
}

// Cache is the semantic cache: cosine-similarity matching against a
// bounded, TTL'd, LRU-evicted set of prior question/answer pairs.
type Cache struct {
	mu         sync.Mutex
	order      *list.List // front = most recently touched
	elements   map[*list.Element]struct{}
	threshold  float64
	capacity   int
	defaultTTL time.Duration
	backend    Backend

	hits   int64
	misses int64
}

type cacheNode struct {
	entry Entry
}

// New builds a Cache. threshold/capacity/ttl of zero select the
// defaults.
func New(threshold float64, capacity int, defaultTTL time.Duration, backend Backend) *Cache {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Cache{
		order:      list.New(),
		elements:   make(map[*list.Element]struct{}),
		threshold:  threshold,
		capacity:   capacity,
		defaultTTL: defaultTTL,
		backend:    backend,
	}
}

// Warm loads persisted entries from the backend, if any.
func (c *Cache) Warm(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	entries, err := c.backend.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, e := range entries {
		if e.expired(now) || e.Answer == "" {
			continue
		}
		el := c.order.PushFront(&cacheNode{entry: e})
		c.elements[el] = struct{}{}
	}
	return nil
}

// Get scans up to candidateScan live entries,
// compute cosine similarity against each, and return the best match if it
// clears the similarity threshold.
func (c *Cache) Get(ctx context.Context, queryEmbedding []float32, queryText string) (Result, bool) {
	start := time.Now()
	c.mu.Lock()
	c.evictExpiredLocked(start)

	var (
		best      *list.Element
		bestScore float64
		scanned   int
	)
	for el := c.order.Front(); el != nil && scanned < candidateScan; el = el.Next() {
		scanned++
		node := el.Value.(*cacheNode)
		sim := float64(vectorindex.Cosine(node.entry.QuestionEmbedding, queryEmbedding))
		if sim > bestScore {
			bestScore = sim
			best = el
		}
	}

	if best == nil || bestScore < c.threshold {
		atomic.AddInt64(&c.misses, 1)
		c.mu.Unlock()
		return Result{}, false
	}
	atomic.AddInt64(&c.hits, 1)
	node := best.Value.(*cacheNode)
	c.order.MoveToFront(best)
	result := Result{
		Answer:         node.entry.Answer,
		Similarity:     bestScore,
		CachedQuestion: node.entry.QuestionText,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	c.mu.Unlock()
	return result, true
}

// Set stores an entry: TTL defaults to the cache's configured
// default, and LRU-evicts the oldest 10% of entries when at capacity. Never
// stores an empty or null answer.
func (c *Cache) Set(ctx context.Context, queryEmbedding []float32, queryText, answer string, metadata map[string]any) {
	if answer == "" {
		return
	}
	entry := Entry{
		QuestionText:      queryText,
		Answer:            answer,
		QuestionEmbedding: queryEmbedding,
		Metadata:          metadata,
		CreatedAt:         time.Now(),
		TTL:               c.defaultTTL,
	}

	c.mu.Lock()
	el := c.order.PushFront(&cacheNode{entry: entry})
	c.elements[el] = struct{}{}
	c.evictOverCapacityLocked()
	c.mu.Unlock()

	if c.backend != nil {
		_ = c.backend.Save(ctx, entry)
	}
}

// evictExpiredLocked removes entries past their TTL. Caller holds c.mu.
func (c *Cache) evictExpiredLocked(now time.Time) {
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		node := el.Value.(*cacheNode)
		if node.entry.expired(now) {
			c.order.Remove(el)
			delete(c.elements, el)
		}
		el = prev
	}
}

// evictOverCapacityLocked removes the oldest 10% of entries once capacity is
// exceeded. Caller holds c.mu.
func (c *Cache) evictOverCapacityLocked() {
	if c.order.Len() <= c.capacity {
		return
	}
	toEvict := c.capacity / 10
	if toEvict < 1 {
		toEvict = 1
	}
	for i := 0; i < toEvict; i++ {
		oldest := c.order.Back()
		if oldest == nil {
			return
		}
		c.order.Remove(oldest)
		delete(c.elements, oldest)
	}
}

// AdjustThreshold updates the similarity cutoff used by future lookups.
func (c *Cache) AdjustThreshold(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threshold = t
}

// Clear empties the cache, including the persistence backend if present.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.order = list.New()
	c.elements = make(map[*list.Element]struct{})
	c.mu.Unlock()
	if c.backend != nil {
		_ = c.backend.DeleteAll(ctx)
	}
}

// Stats reports hit/miss counters and derived metrics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := c.order.Len()
	threshold := c.threshold
	c.mu.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	backend := "memory"
	if c.backend != nil {
		backend = c.backend.Name()
	}
	return Stats{
		Hits:              hits,
		Misses:            misses,
		HitRate:           hitRate,
		Backend:           backend,
		Size:              size,
		Threshold:         threshold,
		EstimatedSavedUSD: float64(hits) * costPerHitUSD,
	}
}
