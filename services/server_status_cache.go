package services

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
)

// ServerStatusCache — ограниченный TTL-кэш статусов cs2-серверов.
// Часы внедряются, чтобы тесты управляли истечением детерминированно.
type ServerStatusCache struct {
	mu         sync.Mutex
	entries    map[int]serverStatusEntry
	ttl        time.Duration
	maxEntries int
	clock      clockwork.Clock
}

type serverStatusEntry struct {
	status    models.TournamentStatus
	expiresAt time.Time
}

func NewServerStatusCache(ttl time.Duration, maxEntries int, clock clockwork.Clock) *ServerStatusCache {
	return &ServerStatusCache{
		entries:    make(map[int]serverStatusEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clock,
	}
}

func (c *ServerStatusCache) Get(id int) (models.TournamentStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return "", false
	}
	if c.clock.Now().After(entry.expiresAt) {
		delete(c.entries, id)
		return "", false
	}
	return entry.status, true
}

func (c *ServerStatusCache) Set(id int, status models.TournamentStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[id] = serverStatusEntry{
		status:    status,
		expiresAt: now.Add(c.ttl),
	}
}

func (c *ServerStatusCache) Invalidate(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// evictLocked сначала выбрасывает просроченные записи; если все живые,
// уступает место запись с ближайшим сроком.
func (c *ServerStatusCache) evictLocked(now time.Time) {
	for id, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	oldestID := 0
	var oldest time.Time
	first := true
	for id, entry := range c.entries {
		if first || entry.expiresAt.Before(oldest) {
			oldestID = id
			oldest = entry.expiresAt
			first = false
		}
	}
	delete(c.entries, oldestID)
}
