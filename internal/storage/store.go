// Package storage contains storage-agnostic contracts for the staging and
// fact relations: a Store wrapping database/sql with a per-engine Dialect,
// a backend factory, and DDL/insert helpers shared by all backends.
//
// Backends (sqlite, postgres) register themselves with the factory in their
// package init, so callers select an engine by config kind without importing
// the concrete package directly.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Dialect captures the small set of SQL differences between supported
// engines. Period extraction and rounding live here so report SQL can be
// assembled once and run against any registered backend.
type Dialect struct {
	// Name identifies the engine, e.g. "sqlite".
	Name string

	// DateType is the column type used for the fact date key
	// ("TEXT" for sqlite, "DATE" for postgres). Values are always bound as
	// ISO "YYYY-MM-01" strings; both engines accept that form.
	DateType string

	// Placeholder renders the n-th (1-based) bind parameter: "?" or "$n".
	Placeholder func(n int) string

	// YearExpr and MonthExpr render SQL extracting the integer year/month
	// components from a date column.
	YearExpr  func(col string) string
	MonthExpr func(col string) string

	// Round2 renders SQL rounding a numeric expression to two decimal
	// places, yielding a float the driver scans as float64.
	Round2 func(expr string) string
}

// Column describes one column of a managed table.
type Column struct {
	Name    string
	SQLType string
	NotNull bool
}

// Store is a relational sink/source for the pipeline, pairing an open
// database handle with its dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore wraps an open handle with its dialect. Backends call this from
// their registered open functions.
func NewStore(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB exposes the underlying handle for read queries (reports, staging
// read-back).
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the engine dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Exec executes an arbitrary SQL statement (typically DDL).
func (s *Store) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", s.dialect.Name, err)
	}
	return nil
}

// ReplaceTable drops the named table if it exists and recreates it from the
// column definitions. This is the drop-and-reload primitive both relations
// use on every run.
func (s *Store) ReplaceTable(ctx context.Context, table string, cols []Column) error {
	if err := s.Exec(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(table)); err != nil {
		return fmt.Errorf("drop %s: %w", table, err)
	}
	ddl, err := BuildCreateTableSQL(table, cols)
	if err != nil {
		return err
	}
	if err := s.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// InsertRows inserts the given rows into table using a single transaction
// and a prepared INSERT statement. It returns the number of rows inserted.
// len(row) must equal len(columns) for every row.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: InsertRows: columns must not be empty", s.dialect.Name)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
		placeholders[i] = s.dialect.Placeholder(i + 1)
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", s.dialect.Name, err)
	}
	stmt, err := tx.PrepareContext(ctx, stmtSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("%s: prepare insert: %w", s.dialect.Name, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("%s: InsertRows: row length %d != columns length %d",
				s.dialect.Name, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return inserted, fmt.Errorf("%s: insert into %s: %w", s.dialect.Name, table, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("%s: commit: %w", s.dialect.Name, err)
	}
	return inserted, nil
}

// EnsureFactIndexes builds the lookup structures on the fact relation: one
// index on the date key, one on the product key. Invoked on every load cycle;
// the statements are idempotent, and since the fact table is recreated per
// run the indexes are in fact rebuilt each time.
func (s *Store) EnsureFactIndexes(ctx context.Context, factTable string) error {
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			QuoteIdent("idx_"+factTable+"_order_date"), QuoteIdent(factTable), QuoteIdent("order_date")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			QuoteIdent("idx_"+factTable+"_product_id"), QuoteIdent(factTable), QuoteIdent("product_id")),
	}
	for _, stmt := range stmts {
		if err := s.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("index %s: %w", factTable, err)
		}
	}
	return nil
}

// BuildCreateTableSQL returns a CREATE TABLE statement of the form:
//
//	CREATE TABLE "table" (
//	  "col1" TYPE NOT NULL,
//	  "col2" TYPE
//	);
//
// Identifiers are double-quoted, which both supported engines accept.
func BuildCreateTableSQL(table string, cols []Column) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", fmt.Errorf("ddl: table name must not be empty")
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", table)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		var sb strings.Builder
		sb.WriteString(QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if c.NotNull {
			sb.WriteString(" NOT NULL")
		}
		parts = append(parts, sb.String())
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		QuoteIdent(table),
		strings.Join(parts, ",\n  "),
	), nil
}

// QuoteIdent double-quotes an SQL identifier, escaping embedded quotes.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// OpenFunc opens a Store for a DSN. Backends register one per kind.
type OpenFunc func(ctx context.Context, dsn string) (*Store, error)

var (
	regMu    sync.RWMutex
	registry = map[string]OpenFunc{}
)

// Register installs a backend open function under kind. It panics on
// duplicate registration, which indicates a programming error.
func Register(kind string, fn OpenFunc) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("storage: duplicate registration for kind %q", kind))
	}
	registry[kind] = fn
}

// Open opens a Store using the backend registered under kind.
func Open(ctx context.Context, kind, dsn string) (*Store, error) {
	regMu.RLock()
	fn, ok := registry[kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %s)",
			kind, strings.Join(registeredKinds(), ", "))
	}
	return fn(ctx, dsn)
}

func registeredKinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
