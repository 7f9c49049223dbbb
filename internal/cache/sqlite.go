package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS climate_cache (
	city       TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`

// SQLiteCache implements Cache on a SQLite database file.
type SQLiteCache struct {
	db     *sql.DB
	retain time.Duration
	now    func() time.Time
}

// NewSQLiteCache opens (creating if needed) the database at path.
func NewSQLiteCache(path string, retain time.Duration) (*SQLiteCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite cache path is required")
	}
	if retain <= 0 {
		retain = DefaultRetention
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &SQLiteCache{db: db, retain: retain, now: time.Now}, nil
}

func (c *SQLiteCache) load(ctx context.Context, key string) (entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return entry{}, false, err
	}
	var (
		raw       string
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT record, expires_at FROM climate_cache WHERE city = ?`, key,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entry{}, false, nil
	}
	if err != nil {
		return entry{}, false, fmt.Errorf("sqlite cache get: %w", err)
	}
	var rec models.ClimateRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return entry{}, false, fmt.Errorf("unmarshal cache entry: %w", err)
	}
	return entry{Record: rec, ExpiresAt: time.UnixMilli(expiresAt)}, true, nil
}

// Get implements Cache.Get.
func (c *SQLiteCache) Get(ctx context.Context, key string) (models.ClimateRecord, bool, error) {
	e, ok, err := c.load(ctx, key)
	if err != nil || !ok || !e.fresh(c.now()) {
		return models.ClimateRecord{}, false, err
	}
	return e.Record, true, nil
}

// GetStale implements Cache.GetStale.
func (c *SQLiteCache) GetStale(ctx context.Context, key string, maxStaleAge time.Duration) (models.ClimateRecord, bool, error) {
	e, ok, err := c.load(ctx, key)
	now := c.now()
	if err != nil || !ok || !e.withinStaleAge(now, maxStaleAge) {
		return models.ClimateRecord{}, false, err
	}
	return e.stale(now), true, nil
}

// Set upserts the record and deletes rows past retention.
func (c *SQLiteCache) Set(ctx context.Context, key string, value models.ClimateRecord, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	now := c.now()
	_, err = c.db.ExecContext(ctx, `
INSERT INTO climate_cache (city, record, fetched_at, expires_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(city) DO UPDATE SET
	record = excluded.record,
	fetched_at = excluded.fetched_at,
	expires_at = excluded.expires_at
`,
		key,
		string(raw),
		value.FetchedAt.UTC().UnixMilli(),
		now.Add(ttl).UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite cache set: %w", err)
	}

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM climate_cache WHERE expires_at < ?`, now.Add(-c.retain).UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("sqlite cache prune: %w", err)
	}
	return nil
}

// Ping checks the database connection. Used for health checks.
func (c *SQLiteCache) Ping() error {
	return c.db.Ping()
}

// Close releases the database.
func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
