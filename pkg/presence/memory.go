package presence

import (
	"context"
	"sync"
	"time"

	"github.com/mahaj/supportdesk/pkg/model"
)

type entryKey struct {
	conversationID int64
	role           model.Role
}

type entry struct {
	onlineUntil time.Time
	typingUntil time.Time
}

// MemoryCache is a lazy-expiry map. Reads ignore expired flags and Sweep
// drops entries whose flags have both lapsed.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[entryKey]*entry
	ttl     TTL
	now     func() time.Time
}

func NewMemoryCache(ttl TTL) *MemoryCache {
	return &MemoryCache{
		entries: make(map[entryKey]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) entry(k entryKey) *entry {
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	return e
}

func (c *MemoryCache) Touch(ctx context.Context, conversationID int64, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(entryKey{conversationID, role}).onlineUntil = c.now().Add(c.ttl.Online)
	return nil
}

func (c *MemoryCache) SetTyping(ctx context.Context, conversationID int64, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e := c.entry(entryKey{conversationID, role})
	e.typingUntil = now.Add(c.ttl.Typing)
	e.onlineUntil = now.Add(c.ttl.Online)
	return nil
}

func (c *MemoryCache) Snapshot(ctx context.Context, conversationID int64, role model.Role) (model.Presence, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := model.Presence{Role: role}
	e, ok := c.entries[entryKey{conversationID, role}]
	if !ok {
		return p, nil
	}
	now := c.now()
	p.Online = now.Before(e.onlineUntil)
	p.Typing = now.Before(e.typingUntil)
	return p, nil
}

// Sweep removes fully expired entries and returns how many were dropped.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	dropped := 0
	for k, e := range c.entries {
		if !now.Before(e.onlineUntil) && !now.Before(e.typingUntil) {
			delete(c.entries, k)
			dropped++
		}
	}
	return dropped
}

// Run sweeps on every interval until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
