// Package sqlite implements the SQLite storage backend using database/sql.
// It is the default engine: a pure-Go driver, a single file (or :memory:)
// database, and strftime-based period extraction for the reports.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// SQLite driver; pure Go, no cgo required.
	_ "modernc.org/sqlite"

	"salestrends/internal/storage"
)

func init() {
	storage.Register("sqlite", func(ctx context.Context, dsn string) (*storage.Store, error) {
		db, err := Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return storage.NewStore(db, Dialect()), nil
	})
}

// Open opens a SQLite handle for the given DSN and verifies it with a short
// ping. DSN may be a file path, ":memory:", or a file: URI.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single pooled connection keeps :memory: databases stable (each new
	// connection would otherwise see a fresh empty database) and serializes
	// writes, which is all this single-invoker batch workload needs.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return db, nil
}

// Dialect returns the SQLite dialect. Dates are stored as ISO text and the
// period components come from strftime, cast to integers.
func Dialect() storage.Dialect {
	return storage.Dialect{
		Name:        "sqlite",
		DateType:    "TEXT",
		Placeholder: func(int) string { return "?" },
		YearExpr: func(col string) string {
			return fmt.Sprintf("CAST(strftime('%%Y', %s) AS INTEGER)", col)
		},
		MonthExpr: func(col string) string {
			return fmt.Sprintf("CAST(strftime('%%m', %s) AS INTEGER)", col)
		},
		Round2: func(expr string) string {
			return fmt.Sprintf("ROUND(%s, 2)", expr)
		},
	}
}
