// Package report implements the four read-only aggregate queries over the
// fact relation. Every query groups by the (year, month) period extracted
// from the date key, returns an ordered result slice, and is a pure function
// of the fact table's current contents: re-running any query without an
// intervening load returns identical results. A failed query is returned to
// the caller and does not affect the other reports.
package report

import (
	"context"
	"database/sql"
	"fmt"

	"salestrends/internal/storage"
)

// Engine runs the reports against one fact table.
type Engine struct {
	store *storage.Store
	table string
}

// NewEngine binds an engine to the store and fact table name.
func NewEngine(store *storage.Store, factTable string) *Engine {
	return &Engine{store: store, table: factTable}
}

// MonthlyRow is one period of the monthly revenue/volume reports (Q1, Q2).
type MonthlyRow struct {
	Year  int
	Month int

	// Revenue is SUM(COALESCE(amount, 0)) rounded to two decimals.
	Revenue float64

	// OrderCount counts all rows in the period, including null-amount rows.
	OrderCount int64
}

// TopPeriodRow is one period of the top-N report (Q3).
type TopPeriodRow struct {
	Year    int
	Month   int
	Revenue float64
}

// NullSensitivityRow is one period of the null-handling comparison (Q4).
type NullSensitivityRow struct {
	Year  int
	Month int

	// SumSkippingNulls is SUM(amount): nulls are skipped, and the value is
	// itself NULL when every amount in the period is null.
	SumSkippingNulls sql.NullFloat64

	// SumTreatingNullsAsZero is SUM(COALESCE(amount, 0)).
	SumTreatingNullsAsZero float64

	// TotalOrders is COUNT(*); OrdersWithAmount is COUNT(amount).
	TotalOrders      int64
	OrdersWithAmount int64
}

// MonthlyRevenue reports total revenue (nulls as zero) and order volume for
// every period present in the data, ascending by year then month.
func (e *Engine) MonthlyRevenue(ctx context.Context) ([]MonthlyRow, error) {
	d := e.store.Dialect()
	yearExpr := d.YearExpr("order_date")
	monthExpr := d.MonthExpr("order_date")

	q := fmt.Sprintf(`
SELECT %s AS year,
       %s AS month,
       %s AS monthly_revenue,
       COUNT(*) AS order_count
FROM %s
GROUP BY %s, %s
ORDER BY year, month`,
		yearExpr, monthExpr,
		d.Round2("SUM(COALESCE(amount, 0))"),
		storage.QuoteIdent(e.table),
		yearExpr, monthExpr,
	)

	return e.scanMonthly(ctx, q)
}

// MonthlyRevenueForYear is the same aggregation restricted to one extracted
// year, ascending by month.
func (e *Engine) MonthlyRevenueForYear(ctx context.Context, year int) ([]MonthlyRow, error) {
	d := e.store.Dialect()
	yearExpr := d.YearExpr("order_date")
	monthExpr := d.MonthExpr("order_date")

	q := fmt.Sprintf(`
SELECT %s AS year,
       %s AS month,
       %s AS monthly_revenue,
       COUNT(*) AS order_count
FROM %s
WHERE %s = %s
GROUP BY %s, %s
ORDER BY month`,
		yearExpr, monthExpr,
		d.Round2("SUM(COALESCE(amount, 0))"),
		storage.QuoteIdent(e.table),
		yearExpr, d.Placeholder(1),
		yearExpr, monthExpr,
	)

	return e.scanMonthly(ctx, q, year)
}

// TopPeriods reports the n periods with the highest revenue (nulls as zero).
// Ties break deterministically: revenue descending, then year ascending,
// then month ascending.
func (e *Engine) TopPeriods(ctx context.Context, n int) ([]TopPeriodRow, error) {
	d := e.store.Dialect()

	q := fmt.Sprintf(`
WITH monthly AS (
    SELECT %s AS year,
           %s AS month,
           SUM(COALESCE(amount, 0)) AS monthly_revenue
    FROM %s
    GROUP BY %s, %s
)
SELECT year, month, %s AS monthly_revenue
FROM monthly
ORDER BY monthly.monthly_revenue DESC, year, month
LIMIT %s`,
		d.YearExpr("order_date"), d.MonthExpr("order_date"),
		storage.QuoteIdent(e.table),
		d.YearExpr("order_date"), d.MonthExpr("order_date"),
		d.Round2("monthly_revenue"),
		d.Placeholder(1),
	)

	rows, err := e.store.DB().QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("report: top periods: %w", err)
	}
	defer rows.Close()

	var out []TopPeriodRow
	for rows.Next() {
		var r TopPeriodRow
		if err := rows.Scan(&r.Year, &r.Month, &r.Revenue); err != nil {
			return nil, fmt.Errorf("report: top periods: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: top periods: %w", err)
	}
	return out, nil
}

// NullSensitivity reports, per period, the null-skipping and coalesce-to-zero
// revenue sums side by side, plus total row count versus non-null-amount row
// count, ascending by year then month.
func (e *Engine) NullSensitivity(ctx context.Context) ([]NullSensitivityRow, error) {
	d := e.store.Dialect()
	yearExpr := d.YearExpr("order_date")
	monthExpr := d.MonthExpr("order_date")

	q := fmt.Sprintf(`
SELECT %s AS year,
       %s AS month,
       %s AS sum_skipping_nulls,
       %s AS sum_treating_nulls_as_zero,
       COUNT(*) AS total_orders,
       COUNT(amount) AS orders_with_amount
FROM %s
GROUP BY %s, %s
ORDER BY year, month`,
		yearExpr, monthExpr,
		d.Round2("SUM(amount)"),
		d.Round2("SUM(COALESCE(amount, 0))"),
		storage.QuoteIdent(e.table),
		yearExpr, monthExpr,
	)

	rows, err := e.store.DB().QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("report: null sensitivity: %w", err)
	}
	defer rows.Close()

	var out []NullSensitivityRow
	for rows.Next() {
		var r NullSensitivityRow
		if err := rows.Scan(&r.Year, &r.Month, &r.SumSkippingNulls, &r.SumTreatingNullsAsZero,
			&r.TotalOrders, &r.OrdersWithAmount); err != nil {
			return nil, fmt.Errorf("report: null sensitivity: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: null sensitivity: %w", err)
	}
	return out, nil
}

func (e *Engine) scanMonthly(ctx context.Context, q string, args ...any) ([]MonthlyRow, error) {
	rows, err := e.store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("report: monthly revenue: %w", err)
	}
	defer rows.Close()

	var out []MonthlyRow
	for rows.Next() {
		var r MonthlyRow
		if err := rows.Scan(&r.Year, &r.Month, &r.Revenue, &r.OrderCount); err != nil {
			return nil, fmt.Errorf("report: monthly revenue: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: monthly revenue: %w", err)
	}
	return out, nil
}
