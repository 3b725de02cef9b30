package service

import (
	"slices"
	"sync"
	"time"

	"github.com/set-night/terranote/internal/domain"
)

// PublishedCache remembers notes by idempotency key for ttl so a repeated
// publish of the same session returns the note already created.
type PublishedCache struct {
	mu      sync.RWMutex
	entries map[string]publishedEntry
	ttl     time.Duration
}

type publishedEntry struct {
	note     domain.Note
	cachedAt time.Time
}

func NewPublishedCache(ttl time.Duration) *PublishedCache {
	return &PublishedCache{ttl: ttl, entries: make(map[string]publishedEntry)}
}

func (c *PublishedCache) Get(key string) *domain.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.cachedAt) > c.ttl {
		return nil
	}
	note := detachNote(e.note)
	return &note
}

func (c *PublishedCache) Set(key string, note domain.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.cachedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = publishedEntry{note: detachNote(note), cachedAt: now}
}

// detachNote copies the comment slice so cached notes never alias a caller's.
func detachNote(n domain.Note) domain.Note {
	n.Comments = slices.Clone(n.Comments)
	return n
}

func (c *PublishedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
