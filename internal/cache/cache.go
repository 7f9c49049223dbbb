// Package cache stores scraped climate records with a freshness TTL and keeps
// them past expiry so callers can fall back to stale data.
package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// DefaultRetention is how long entries are kept past their TTL for stale fallback.
const DefaultRetention = 7 * 24 * time.Hour

// Cache defines the interface for climate record caching implementations.
// Get returns a record only while it is fresh. GetStale returns a record whose
// FetchedAt is within maxStaleAge, fresh or not. Set stores a record with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.ClimateRecord, bool, error)
	GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.ClimateRecord, bool, error)
	Set(ctx context.Context, key string, value models.ClimateRecord, ttl time.Duration) error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping() error
}

// entry is the stored form shared by every backend.
type entry struct {
	Record    models.ClimateRecord `json:"record"`
	ExpiresAt time.Time            `json:"expiresAt"`
}

func (e entry) fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

func (e entry) withinStaleAge(now time.Time, maxStaleAge time.Duration) bool {
	return now.Sub(e.Record.FetchedAt) <= maxStaleAge
}

// stale returns the record marked stale when it is past its TTL.
func (e entry) stale(now time.Time) models.ClimateRecord {
	rec := e.Record
	rec.Stale = !e.fresh(now)
	return rec
}

// NormalizeKey lowercases and collapses whitespace so "New  York" and "new york" share an entry.
func NormalizeKey(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}

// InMemoryCache implements Cache on a go-cache store. Safe for concurrent use.
type InMemoryCache struct {
	store  *gocache.Cache
	retain time.Duration
	now    func() time.Time
}

// NewInMemoryCache creates a new in-memory cache that keeps entries for
// retain past their TTL. Zero retain uses DefaultRetention.
func NewInMemoryCache(retain time.Duration) *InMemoryCache {
	if retain <= 0 {
		retain = DefaultRetention
	}
	return &InMemoryCache{
		store:  gocache.New(gocache.NoExpiration, time.Hour),
		retain: retain,
		now:    time.Now,
	}
}

// Get retrieves the record for key if present and not expired.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ClimateRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ClimateRecord{}, false, err
	}
	e, ok := c.lookup(key)
	if !ok || !e.fresh(c.now()) {
		return models.ClimateRecord{}, false, nil
	}
	return e.Record, true, nil
}

// GetStale retrieves the record for key if it was fetched within maxStaleAge.
func (c *InMemoryCache) GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.ClimateRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ClimateRecord{}, false, err
	}
	e, ok := c.lookup(key)
	now := c.now()
	if !ok || !e.withinStaleAge(now, maxStaleAge) {
		return models.ClimateRecord{}, false, nil
	}
	return e.stale(now), true, nil
}

// Set stores the record. The backing item lives for ttl plus the retention window.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ClimateRecord, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.Set(key, entry{Record: value, ExpiresAt: c.now().Add(ttl)}, ttl+c.retain)
	return nil
}

// Len returns the number of stored entries, fresh or stale.
func (c *InMemoryCache) Len() int {
	return c.store.ItemCount()
}

func (c *InMemoryCache) lookup(key string) (entry, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return entry{}, false
	}
	e, ok := v.(entry)
	return e, ok
}
