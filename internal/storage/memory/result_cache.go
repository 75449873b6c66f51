// Package memory provides the in-process TTL cache for parsed lookup results.
package memory

import (
	"sync"
	"time"

	"github.com/JakeFAU/douban-harvester/internal/clock/system"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Entry is one memoized lookup. Found is false for a cached negative result,
// in which case Value holds the zero value of the lookup's type.
type Entry struct {
	Value     any
	Found     bool
	ExpiresAt time.Time
}

// ResultCache maps operation keys to results until their TTL lapses. Expiry is
// checked lazily on access.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   Clock
}

// NewResultCache constructs a ResultCache. A nil clock uses the system clock.
func NewResultCache(clock Clock) *ResultCache {
	if clock == nil {
		clock = system.New()
	}
	return &ResultCache{
		entries: make(map[string]Entry),
		clock:   clock,
	}
}

// Get returns the live entry for key, if any.
func (c *ResultCache) Get(key string) (Entry, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	if !now.Before(entry.ExpiresAt) {
		c.mu.Lock()
		// Another writer may have refreshed the key since the read.
		if cur, ok := c.entries[key]; ok && !now.Before(cur.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

// Set stores a positive (found) or negative result for ttl. A non-positive
// ttl is ignored.
func (c *ResultCache) Set(key string, value any, found bool, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	entry := Entry{Value: value, Found: found, ExpiresAt: c.clock.Now().Add(ttl)}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
}

// Delete drops key.
func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *ResultCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lookup is a typed Get. hit reports whether a live entry exists; found
// reports whether that entry is positive. A value of the wrong type is
// treated as a miss.
func Lookup[T any](c *ResultCache, key string) (value T, found, hit bool) {
	entry, ok := c.Get(key)
	if !ok {
		return value, false, false
	}
	if entry.Value == nil {
		return value, entry.Found, true
	}
	v, ok := entry.Value.(T)
	if !ok {
		return value, false, false
	}
	return v, entry.Found, true
}
