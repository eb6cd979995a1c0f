// Package imagecache is a cost-bounded, durable cache for downloaded
// thumbnails, keyed by remote URL. Cost is byte size; when the budget is
// exceeded the oldest-inserted entries are evicted first. It is a pure
// cache: total data loss is tolerable and every entry can be rebuilt from
// the network.
package imagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// Cache stores image bytes in its own sqlite file, separate from the core
// database. Mutations serialize through a single writer lock so concurrent
// inserts cannot race the eviction scan; reads observe consistent rows.
type Cache struct {
	db      *sql.DB
	maxCost int64

	mu sync.Mutex
}

// Open opens (or creates) the cache database at path. maxCost <= 0 disables
// caching: Put becomes a no-op and Get always misses.
func Open(path string, maxCost int64) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS images (
		url_key TEXT PRIMARY KEY,
		bytes   BLOB NOT NULL,
		cost    INTEGER NOT NULL,
		seq     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_seq ON images(seq);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create image cache schema: %w", err)
	}

	return &Cache{db: db, maxCost: maxCost}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores data under urlKey, replacing any previous entry for the same
// key, then evicts oldest-inserted entries until the total cost is back
// under budget.
func (c *Cache) Put(ctx context.Context, urlKey string, data []byte) error {
	if c.maxCost <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := `INSERT OR REPLACE INTO images (url_key, bytes, cost, seq)
			VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM images))`
	if _, err := c.db.ExecContext(ctx, query, urlKey, data, int64(len(data))); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}

	return c.evictLocked(ctx)
}

// evictLocked removes oldest entries until sum(cost) <= maxCost. The caller
// must hold the writer lock.
func (c *Cache) evictLocked(ctx context.Context) error {
	for {
		var total int64
		if err := c.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(cost), 0) FROM images`).Scan(&total); err != nil {
			return fmt.Errorf("failed to read cache cost: %w", err)
		}
		if total <= c.maxCost {
			return nil
		}

		res, err := c.db.ExecContext(ctx,
			`DELETE FROM images WHERE seq = (SELECT MIN(seq) FROM images)`)
		if err != nil {
			return fmt.Errorf("failed to evict image: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
	}
}

// Get returns the cached bytes for urlKey, or (nil, false) on miss. It never
// triggers a network fetch.
func (c *Cache) Get(ctx context.Context, urlKey string) ([]byte, bool) {
	// entries persisted under an earlier, larger budget must not hit
	// once caching is disabled
	if c.maxCost <= 0 {
		return nil, false
	}

	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT bytes FROM images WHERE url_key = ?`, urlKey).Scan(&data)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			// treat any read failure as a miss; the cache must never fail callers
			return nil, false
		}
		return nil, false
	}
	return data, true
}

// Remove drops the entry for urlKey, if present.
func (c *Cache) Remove(ctx context.Context, urlKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM images WHERE url_key = ?`, urlKey); err != nil {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// TotalCost reports the current sum of entry costs.
func (c *Cache) TotalCost(ctx context.Context) (int64, error) {
	var total int64
	err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost), 0) FROM images`).Scan(&total)
	return total, err
}
