// Package postgres implements the Postgres storage backend using pgx v5
// through its database/sql driver, so the generic store plumbing is shared
// with the sqlite backend. The workload is a small batch insert per run, not
// a bulk COPY stream, so the stdlib driver is sufficient.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Postgres driver (pgx v5, database/sql compatibility layer).
	_ "github.com/jackc/pgx/v5/stdlib"

	"salestrends/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, dsn string) (*storage.Store, error) {
		db, err := Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return storage.NewStore(db, Dialect()), nil
	})
}

// Open opens a Postgres handle for the given DSN and verifies it with a
// short ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Dialect returns the Postgres dialect. Dates are stored as DATE and the
// period components come from EXTRACT. ROUND on a float sum requires a
// numeric cast; the result is cast back so drivers scan a float64.
func Dialect() storage.Dialect {
	return storage.Dialect{
		Name:        "postgres",
		DateType:    "DATE",
		Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		YearExpr: func(col string) string {
			return fmt.Sprintf("EXTRACT(YEAR FROM %s)::int", col)
		},
		MonthExpr: func(col string) string {
			return fmt.Sprintf("EXTRACT(MONTH FROM %s)::int", col)
		},
		Round2: func(expr string) string {
			return fmt.Sprintf("ROUND((%s)::numeric, 2)::double precision", expr)
		},
	}
}
