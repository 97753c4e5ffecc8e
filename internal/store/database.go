// Package store is the PostgreSQL persistence layer for collected matches.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database wraps the match database connection.
type Database struct {
	conn *sql.DB
}

// NewDatabase opens and verifies a connection.
func NewDatabase(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{conn: db}, nil
}

// Close closes the database connection.
func (db *Database) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for queries.
func (db *Database) DB() *sql.DB {
	return db.conn
}

// EnsureSchema creates the matches table if it does not exist. The natural
// key (match_date, home, away) is the primary key: the store itself rejects
// duplicate inserts even when two overlapping runs race.
func (db *Database) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS matches (
			match_date        DATE NOT NULL,
			home              TEXT NOT NULL,
			away              TEXT NOT NULL,
			league            TEXT NOT NULL,
			h_goals_ft        INTEGER NOT NULL DEFAULT 0,
			a_goals_ft        INTEGER NOT NULL DEFAULT 0,
			h_goals_ht        INTEGER NOT NULL DEFAULT 0,
			a_goals_ht        INTEGER NOT NULL DEFAULT 0,
			h_shots           INTEGER NOT NULL DEFAULT 0,
			a_shots           INTEGER NOT NULL DEFAULT 0,
			h_shots_on_target INTEGER NOT NULL DEFAULT 0,
			a_shots_on_target INTEGER NOT NULL DEFAULT 0,
			h_attacks         INTEGER NOT NULL DEFAULT 0,
			a_attacks         INTEGER NOT NULL DEFAULT 0,
			h_corners         INTEGER NOT NULL DEFAULT 0,
			a_corners         INTEGER NOT NULL DEFAULT 0,
			odd_home          DOUBLE PRECISION NOT NULL DEFAULT 0,
			odd_draw          DOUBLE PRECISION NOT NULL DEFAULT 0,
			odd_away          DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (match_date, home, away)
		)
	`
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensuring matches schema: %w", err)
	}
	return nil
}

// HealthCheck pings the database with a short bound.
func (db *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return db.conn.PingContext(ctx)
}
