package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

// FileCache implements Cache as a JSON file on disk. Reads are served from
// memory; each Set rewrites the file atomically.
type FileCache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]entry
	retain  time.Duration
	now     func() time.Time
}

// NewFileCache loads path if it exists. A missing file starts an empty cache.
func NewFileCache(path string, retain time.Duration) (*FileCache, error) {
	if path == "" {
		return nil, fmt.Errorf("file cache path is required")
	}
	if retain <= 0 {
		retain = DefaultRetention
	}
	c := &FileCache{
		path:    filepath.Clean(path),
		entries: make(map[string]entry),
		retain:  retain,
		now:     time.Now,
	}

	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse cache file %s: %w", c.path, err)
	}
	return c, nil
}

// Get implements Cache.Get.
func (c *FileCache) Get(ctx context.Context, key string) (models.ClimateRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ClimateRecord{}, false, err
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.fresh(c.now()) {
		return models.ClimateRecord{}, false, nil
	}
	return e.Record, true, nil
}

// GetStale implements Cache.GetStale.
func (c *FileCache) GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.ClimateRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ClimateRecord{}, false, err
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	now := c.now()
	if !ok || !e.withinStaleAge(now, maxStaleAge) {
		return models.ClimateRecord{}, false, nil
	}
	return e.stale(now), true, nil
}

// Set stores the record, drops entries past retention and rewrites the file.
func (c *FileCache) Set(ctx context.Context, key string, value models.ClimateRecord, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry{Record: value, ExpiresAt: now.Add(ttl)}
	for k, e := range c.entries {
		if now.After(e.ExpiresAt.Add(c.retain)) {
			delete(c.entries, k)
		}
	}
	return c.writeLocked()
}

// writeLocked writes entries to a temp file in the same directory and renames it over path.
func (c *FileCache) writeLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache file: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
