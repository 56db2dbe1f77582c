package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/debuck1718/smartstudent/internal/model"
)

// AssetStore holds named, versioned asset caches.
type AssetStore struct {
	db *sql.DB
}

func NewAssetStore(db *sql.DB) *AssetStore {
	return &AssetStore{db: db}
}

// Open creates the named cache if it does not exist yet.
func (s *AssetStore) Open(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO asset_caches (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("open cache %q: %w", name, err)
	}
	return nil
}

// PutAll stores every response in a single transaction. Either all entries
// land or none do.
func (s *AssetStore) PutAll(ctx context.Context, name string, entries []model.CachedResponse) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO asset_caches (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("open cache %q: %w", name, err)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cached_assets (cache_name, request_key, status, content_type, body)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(cache_name, request_key) DO UPDATE SET
			   status = excluded.status, content_type = excluded.content_type,
			   body = excluded.body, stored_at = CURRENT_TIMESTAMP`,
			name, e.Key, e.Status, e.ContentType, e.Body,
		)
		if err != nil {
			return fmt.Errorf("put %q: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Match returns the response stored under key in the named cache, or nil.
func (s *AssetStore) Match(ctx context.Context, name, key string) (*model.CachedResponse, error) {
	var r model.CachedResponse
	err := s.db.QueryRowContext(ctx,
		`SELECT cache_name, request_key, status, content_type, body, stored_at
		 FROM cached_assets WHERE cache_name = ? AND request_key = ?`, name, key,
	).Scan(&r.Cache, &r.Key, &r.Status, &r.ContentType, &r.Body, &r.StoredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match %q: %w", key, err)
	}
	return &r, nil
}

// Names lists every cache version present.
func (s *AssetStore) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM asset_caches ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan cache name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// RequestKeys lists the keys stored in the named cache.
func (s *AssetStore) RequestKeys(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_key FROM cached_assets WHERE cache_name = ? ORDER BY request_key`, name)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete drops the named cache and its entries. It reports whether the cache existed.
func (s *AssetStore) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cached_assets WHERE cache_name = ?`, name); err != nil {
		return false, fmt.Errorf("delete cache entries: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM asset_caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete cache: %w", err)
	}
	n, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}
