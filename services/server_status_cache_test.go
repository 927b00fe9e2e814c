package services

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
)

func TestServerStatusCacheTTL(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	cache := NewServerStatusCache(30*time.Second, 16, clock)

	cache.Set(1, models.StatusActive)
	if status, ok := cache.Get(1); !ok || status != models.StatusActive {
		t.Fatalf("Get right after Set = (%s, %v)", status, ok)
	}

	clock.Advance(29 * time.Second)
	if _, ok := cache.Get(1); !ok {
		t.Error("entry expired before its TTL")
	}

	clock.Advance(2 * time.Second)
	if status, ok := cache.Get(1); ok {
		t.Errorf("expired entry still served: %s", status)
	}
}

func TestServerStatusCacheInvalidate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	cache := NewServerStatusCache(time.Minute, 16, clock)

	cache.Set(1, models.StatusInactive)
	cache.Invalidate(1)
	if _, ok := cache.Get(1); ok {
		t.Error("invalidated entry still served")
	}
}

func TestServerStatusCacheBounded(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	cache := NewServerStatusCache(time.Minute, 4, clock)

	for id := 1; id <= 4; id++ {
		cache.Set(id, models.StatusActive)
		clock.Advance(time.Second)
	}

	// Кэш полон, все записи живые: вытесняется запись с ближайшим сроком.
	cache.Set(5, models.StatusInactive)
	if _, ok := cache.Get(1); ok {
		t.Error("oldest live entry not evicted")
	}
	for id := 2; id <= 5; id++ {
		if _, ok := cache.Get(id); !ok {
			t.Errorf("entry %d evicted unexpectedly", id)
		}
	}
}

func TestServerStatusCachePrefersExpiredEviction(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
	cache := NewServerStatusCache(10*time.Second, 3, clock)

	cache.Set(1, models.StatusActive)
	clock.Advance(11 * time.Second) // запись 1 просрочена
	cache.Set(2, models.StatusActive)
	cache.Set(3, models.StatusActive)

	cache.Set(4, models.StatusActive)
	if _, ok := cache.Get(2); !ok {
		t.Error("live entry evicted while an expired one was available")
	}
	if _, ok := cache.Get(3); !ok {
		t.Error("live entry evicted while an expired one was available")
	}
	if _, ok := cache.Get(4); !ok {
		t.Error("fresh entry missing")
	}
}
