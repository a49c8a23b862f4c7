package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const pingTimeout = 10 * time.Second

// Pool bounds a connection pool. Monitors poll once per interval and the admin search
// runs on demand, so neither needs many connections.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

var (
	// MonitorPool serves one monitor's batch reads.
	MonitorPool = Pool{MaxOpen: 4, MaxIdle: 2, MaxLifetime: 30 * time.Minute, MaxIdleTime: 5 * time.Minute}
	// SearchPool serves party lookups from the contact editor.
	SearchPool = Pool{MaxOpen: 2, MaxIdle: 1, MaxLifetime: 30 * time.Minute, MaxIdleTime: time.Minute}
)

func (p Pool) apply(db *sql.DB) {
	db.SetMaxOpenConns(p.MaxOpen)
	db.SetMaxIdleConns(p.MaxIdle)
	db.SetConnMaxLifetime(p.MaxLifetime)
	db.SetConnMaxIdleTime(p.MaxIdleTime)
}

// NewPostgresConnection opens a pool against dsn and fails unless the server answers a
// ping within pingTimeout.
func NewPostgresConnection(ctx context.Context, dsn string, pool Pool) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	pool.apply(db)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
