package weather

import (
	"context"
	"sync"
	"time"

	"github.com/example/territory-run/internal/models"
)

// Source is anything that can resolve the latest reading for a territory.
type Source interface {
	Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error)
}

// Cache is a tiny in-memory TTL cache in front of a Source, keyed by
// territory. Bonus calculation hits the lookup on every completion; weather
// changes on the scale of minutes.
type Cache struct {
	source Source
	ttl    time.Duration

	mu    sync.RWMutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	reading models.WeatherReading
	found   bool
	ts      time.Time
}

func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{source: source, ttl: ttl, store: make(map[string]cacheEntry)}
}

func (c *Cache) Latest(ctx context.Context, territoryID string) (models.WeatherReading, bool, error) {
	c.mu.RLock()
	e, ok := c.store[territoryID]
	c.mu.RUnlock()
	if ok && time.Since(e.ts) <= c.ttl {
		return e.reading, e.found, nil
	}

	reading, found, err := c.source.Latest(ctx, territoryID)
	if err != nil {
		return models.WeatherReading{}, false, err
	}
	c.mu.Lock()
	c.store[territoryID] = cacheEntry{reading: reading, found: found, ts: time.Now()}
	c.mu.Unlock()
	return reading, found, nil
}
