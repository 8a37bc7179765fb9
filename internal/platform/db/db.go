package db

import (
	"database/sql"
	"fmt"
	"time"
)

// Open connects to the Postgres cache store via the pgx stdlib driver.
// Pool sizing is modest: the scheduler is a single-process, mostly-serial
// workload and the cache tables see short point queries only.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return db, nil
}
