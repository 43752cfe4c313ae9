package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenDB opens a pooled pgx connection and pings it.
func OpenDB(ctx context.Context, dsn string, development bool) (*sql.DB, error) {
	db, err := sql.Open("pgx", PrepareDSN(dsn, development))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// PrepareDSN disables SSL for local development and, elsewhere, switches to
// the simple query protocol so transaction poolers like pgbouncer work.
func PrepareDSN(dsn string, development bool) string {
	isURL := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	sep := func() string {
		switch {
		case !isURL:
			return " "
		case strings.Contains(dsn, "?"):
			return "&"
		default:
			return "?"
		}
	}
	if development && !strings.Contains(dsn, "sslmode") {
		dsn += sep() + "sslmode=disable"
	}
	if !development && !strings.Contains(dsn, "prefer_simple_protocol") {
		dsn += sep() + "prefer_simple_protocol=true"
	}
	return dsn
}
