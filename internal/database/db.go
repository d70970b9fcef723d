package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/monmiam/internal/config"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
	pingTimeout     = 5 * time.Second
)

// NewConnection opens the pool and waits for Postgres to answer, retrying
// while the database container is still starting.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}

		select {
		case <-time.After(connectDelay):
		case <-ctx.Done():
			db.Close()
			return nil, fmt.Errorf("ping database: %w", ctx.Err())
		}
	}

	db.Close()
	return nil, fmt.Errorf("ping database after %d attempts: %w", connectAttempts, err)
}
