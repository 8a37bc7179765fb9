package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLite backed cache for travel-minute lookups. Keys are expected to be
// normalized by the caller. Entries older than the retention window are
// reported as misses; a fresh Put supersedes the stale row.
type SqliteTravelCache struct {
	DB        *sql.DB
	Retention time.Duration

	now func() time.Time
}

func NewSqliteTravelCache(db *sql.DB, retention time.Duration) *SqliteTravelCache {
	return &SqliteTravelCache{DB: db, Retention: retention, now: time.Now}
}

// Get returns the cached minute value for key when a fresh entry exists.
func (s *SqliteTravelCache) Get(ctx context.Context, key string) (int, bool, error) {
	if s.DB == nil {
		return 0, false, errors.New("travel cache: db is nil")
	}
	if key == "" {
		return 0, false, errors.New("get travel cache: key must not be empty")
	}

	cutoff := s.now().Add(-s.Retention).Unix()

	q := `
	SELECT minutes
    FROM travel_cache
    WHERE cache_key = ?
        AND created_at >= ?;
	`

	var minutes int
	err := s.DB.QueryRowContext(ctx, q, key, cutoff).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get travel cache: query travel_cache table: %w", err)
	}

	return minutes, true, nil
}

// Put stores a fresh entry for key. The origin/destination columns are kept
// for inspection; the key alone drives lookups.
func (s *SqliteTravelCache) Put(ctx context.Context, key string, minutes int) error {
	return s.PutPair(ctx, key, "", "", minutes)
}

// PutPair stores a fresh entry along with the raw origin and destination.
func (s *SqliteTravelCache) PutPair(ctx context.Context, key, origin, destination string, minutes int) error {
	if s.DB == nil {
		return errors.New("travel cache: db is nil")
	}
	if key == "" {
		return errors.New("insert travel cache: key must not be empty")
	}

	q := `
	INSERT OR REPLACE INTO travel_cache (
        cache_key,
        origin,
        destination,
        minutes,
        created_at
    )
    VALUES (?, ?, ?, ?, ?);
	`

	if _, err := s.DB.ExecContext(ctx, q, key, origin, destination, minutes, s.now().Unix()); err != nil {
		return fmt.Errorf("insert travel cache key=%q: %w", key, err)
	}

	return nil
}

// Prune removes entries older than the retention window.
func (s *SqliteTravelCache) Prune(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("travel cache: db is nil")
	}

	cutoff := s.now().Add(-s.Retention).Unix()
	res, err := s.DB.ExecContext(ctx, `DELETE FROM travel_cache WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune travel cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
