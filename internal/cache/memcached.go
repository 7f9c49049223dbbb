package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

const keyPrefix = "climate:"

// maxRelativeExp is the longest expiration memcached treats as relative (30 days).
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedCache implements Cache using memcached.
type MemcachedCache struct {
	client *memcache.Client
	retain time.Duration
	now    func() time.Time
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero. Items are kept for
// retain past their TTL.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, retain time.Duration) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if retain <= 0 {
		retain = DefaultRetention
	}
	return &MemcachedCache{client: client, retain: retain, now: time.Now}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key builds a memcached-safe key: no spaces or control characters, at most 250 bytes.
func (c *MemcachedCache) key(k string) string {
	k = strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, k)
	k = keyPrefix + k
	if len(k) > 250 {
		k = k[:250]
	}
	return k
}

func (c *MemcachedCache) load(ctx context.Context, key string) (entry, bool, error) {
	if ctx.Err() != nil {
		return entry{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return entry{}, false, nil
		}
		return entry{}, false, err
	}
	var e entry
	if err := json.Unmarshal(item.Value, &e); err != nil {
		return entry{}, false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return e, true, nil
}

// Get implements Cache.Get. Returns false, nil on cache miss or expiry; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.ClimateRecord, bool, error) {
	e, ok, err := c.load(ctx, key)
	if err != nil || !ok || !e.fresh(c.now()) {
		return models.ClimateRecord{}, false, err
	}
	return e.Record, true, nil
}

// GetStale implements Cache.GetStale.
func (c *MemcachedCache) GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.ClimateRecord, bool, error) {
	e, ok, err := c.load(ctx, key)
	now := c.now()
	if err != nil || !ok || !e.withinStaleAge(now, maxStaleAge) {
		return models.ClimateRecord{}, false, err
	}
	return e.stale(now), true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.ClimateRecord, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(entry{Record: value, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		return err
	}
	expSec := int64((ttl + c.retain).Seconds())
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = maxRelativeExp
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: int32(expSec),
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
