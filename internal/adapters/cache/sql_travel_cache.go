package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"techroute-service/internal/platform/obs"
)

// SQLTravelCache is the Postgres-backed travel-minute cache.
type SQLTravelCache struct {
	DB        *sql.DB
	Retention time.Duration
}

func NewSQLTravelCache(db *sql.DB, retention time.Duration) *SQLTravelCache {
	return &SQLTravelCache{DB: db, Retention: retention}
}

// Get returns the cached minute value for key when a fresh entry exists.
func (s *SQLTravelCache) Get(ctx context.Context, key string) (_ int, _ bool, err error) {
	defer obs.Time(ctx, "travel.cache.Get")(&err)

	if s.DB == nil {
		return 0, false, errors.New("travel cache: db is nil")
	}
	if key == "" {
		return 0, false, errors.New("get travel cache: key must not be empty")
	}

	q := `
	SELECT minutes
    FROM travel_cache
    WHERE cache_key = $1
        AND created_at >= now() - $2::interval;
	`

	interval := fmt.Sprintf("%d seconds", int(s.Retention.Seconds()))

	var minutes int
	err = s.DB.QueryRowContext(ctx, q, key, interval).Scan(&minutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get travel cache: query travel_cache table: %w", err)
	}

	return minutes, true, nil
}

// Put stores a fresh entry for key, superseding any previous one.
func (s *SQLTravelCache) Put(ctx context.Context, key string, minutes int) error {
	return s.PutPair(ctx, key, "", "", minutes)
}

// PutPair stores a fresh entry along with the raw origin and destination.
func (s *SQLTravelCache) PutPair(ctx context.Context, key, origin, destination string, minutes int) error {
	if s.DB == nil {
		return errors.New("travel cache: db is nil")
	}
	if key == "" {
		return errors.New("insert travel cache: key must not be empty")
	}

	q := `
	INSERT INTO travel_cache (cache_key, origin, destination, minutes, created_at)
    VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (cache_key) DO UPDATE
	SET origin = EXCLUDED.origin,
		destination = EXCLUDED.destination,
		minutes = EXCLUDED.minutes,
		created_at = EXCLUDED.created_at;
	`

	if _, err := s.DB.ExecContext(ctx, q, key, origin, destination, minutes); err != nil {
		return fmt.Errorf("insert travel cache key=%q: %w", key, err)
	}

	return nil
}

// Prune deletes entries older than the retention window and reports how many
// rows went away.
func (s *SQLTravelCache) Prune(ctx context.Context) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("travel cache: db is nil")
	}

	q := `DELETE FROM travel_cache WHERE created_at < now() - $1::interval;`
	interval := fmt.Sprintf("%d seconds", int(s.Retention.Seconds()))

	res, err := s.DB.ExecContext(ctx, q, interval)
	if err != nil {
		return 0, fmt.Errorf("prune travel cache: %w", err)
	}
	return res.RowsAffected()
}
