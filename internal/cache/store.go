// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache persists search result pages in a SQLite table keyed by a
// deterministic composite of the resolved query and pagination tuple.
// Entries expire a fixed TTL after write; expired rows read as misses and
// are overwritten in place on the next write.
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

	_ "github.com/mattn/go-sqlite3"

	"github.com/evidencemed/evidence-gateway/pkg/types"
)

// Store manages the search_cache SQLite table.
type Store struct {
	db  *sql.DB
	ttl time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewStore opens or creates the cache database at cfg.Path, creating the
// schema if needed.
func NewStore(cfg types.CacheConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = types.DefaultCacheTTL
	}

	s := &Store{db: db, ttl: ttl, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS search_cache (
			cache_key TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			condition_id TEXT NOT NULL DEFAULT '',
			articles TEXT NOT NULL,
			total_count INTEGER NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_search_cache_expires_at ON search_cache(expires_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Key derives the cache key for a (query, condition, pageSize, page)
// tuple. The query is case-folded and trimmed so casing and whitespace
// variants of the same expression share an entry; the remaining fields are
// joined with a separator none of them produce.
func Key(query, condition string, pageSize, page int) string {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(condition))
	return fmt.Sprintf("%s|%s|%d|%d", q, c, pageSize, page)
}

// Get returns the entry for key, or nil when the key is absent or the
// entry has expired. Callers cannot distinguish the two cases.
func (s *Store) Get(ctx context.Context, key string) (*types.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT query, condition_id, articles, total_count, expires_at
		 FROM search_cache WHERE cache_key = ?`, key)

	var (
		entry        types.CacheEntry
		articlesJSON string
		expiresAt    string
	)
	err := row.Scan(&entry.Query, &entry.Condition, &articlesJSON, &entry.TotalCount, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	entry.Key = key
	entry.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		// An unreadable deadline is treated as already expired.
		return nil, nil
	}
	if entry.Expired(s.now()) {
		return nil, nil
	}

	if err := json.Unmarshal([]byte(articlesJSON), &entry.Articles); err != nil {
		return nil, fmt.Errorf("decoding cached articles: %w", err)
	}
	return &entry, nil
}

// Upsert writes an entry, replacing any existing row with the same key in
// a single statement. Concurrent writers race benignly: each writes a
// complete row, so last-write-wins leaves no partial state. The expiry
// deadline is computed here from the store TTL; any value already on the
// entry is ignored.
func (s *Store) Upsert(ctx context.Context, entry *types.CacheEntry) error {
	articlesJSON, err := json.Marshal(entry.Articles)
	if err != nil {
		return fmt.Errorf("encoding articles: %w", err)
	}

	entry.ExpiresAt = s.now().Add(s.ttl).Truncate(time.Second)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_cache (cache_key, query, condition_id, articles, total_count, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			query=excluded.query, condition_id=excluded.condition_id,
			articles=excluded.articles, total_count=excluded.total_count,
			expires_at=excluded.expires_at`,
		entry.Key, entry.Query, entry.Condition, string(articlesJSON),
		entry.TotalCount, entry.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting cache entry: %w", err)
	}
	return nil
}

// PruneExpired deletes rows past their deadline and reports how many were
// removed. Reads never return expired rows, so pruning is purely table
// maintenance.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM search_cache WHERE expires_at < ?`,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
