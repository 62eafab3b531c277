// Package cache keeps recently read monthly summaries in memory so the
// month-over-month lookup during aggregation does not hit the store for the
// same prior month over and over.
package cache

import (
	"container/list"
	"sync"
	"time"

	"ledgersync/internal/core"
)

// SummaryCache is an LRU cache of persisted monthly summaries with TTL
// expiry. Entries are keyed per user and month.
type SummaryCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type entry struct {
	key       string
	summary   core.MonthlySummary
	expiresAt time.Time
}

func NewSummaryCache(maxSize int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func key(userID, month string) string {
	return userID + "/" + month
}

func (c *SummaryCache) Get(userID, month string) (core.MonthlySummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key(userID, month)]
	if !ok {
		return core.MonthlySummary{}, false
	}
	e := elem.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		return core.MonthlySummary{}, false
	}
	c.lru.MoveToFront(elem)
	return e.summary, true
}

func (c *SummaryCache) Set(userID, month string, s core.MonthlySummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(userID, month)
	e := &entry{key: k, summary: s, expiresAt: time.Now().Add(c.ttl)}

	if elem, ok := c.items[k]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}

	c.items[k] = c.lru.PushFront(e)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Invalidate drops a cached summary after it has been rewritten.
func (c *SummaryCache) Invalidate(userID, month string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key(userID, month)]; ok {
		c.removeElement(elem)
	}
}

func (c *SummaryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *SummaryCache) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(c.items, e.key)
	c.lru.Remove(elem)
}
