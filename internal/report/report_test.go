package report

import (
	"context"
	"math"
	"reflect"
	"testing"

	"salestrends/internal/storage"
	"salestrends/internal/storage/sqlite"
)

func newMemStore(tb testing.TB) *storage.Store {
	tb.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	store := storage.NewStore(db, sqlite.Dialect())
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// fact is a seeded fact row; amount nil means NULL.
type fact struct {
	orderID int64
	date    string
	amount  any
	product string
}

func seedFacts(tb testing.TB, store *storage.Store, facts []fact) *Engine {
	tb.Helper()
	ctx := context.Background()

	cols := []storage.Column{
		{Name: "order_id", SQLType: "INTEGER", NotNull: true},
		{Name: "order_date", SQLType: "TEXT", NotNull: true},
		{Name: "amount", SQLType: "REAL"},
		{Name: "product_id", SQLType: "TEXT", NotNull: true},
	}
	if err := store.ReplaceTable(ctx, "online_sales", cols); err != nil {
		tb.Fatalf("create facts: %v", err)
	}
	rows := make([][]any, len(facts))
	for i, f := range facts {
		rows[i] = []any{f.orderID, f.date, f.amount, f.product}
	}
	colNames := []string{"order_id", "order_date", "amount", "product_id"}
	if _, err := store.InsertRows(ctx, "online_sales", colNames, rows); err != nil {
		tb.Fatalf("seed facts: %v", err)
	}
	if err := store.EnsureFactIndexes(ctx, "online_sales"); err != nil {
		tb.Fatalf("indexes: %v", err)
	}
	return NewEngine(store, "online_sales")
}

// standardFacts spans two years with a null amount mixed in.
func standardFacts() []fact {
	return []fact{
		{10100, "2003-01-01", 100.0, "P1"},
		{10101, "2003-01-01", 50.0, "P2"},
		{10102, "2003-01-01", nil, "P1"}, // null amount, counted but not summed
		{10103, "2003-02-01", 200.0, "P1"},
		{10104, "2004-01-01", 400.0, "P3"},
		{10105, "2004-02-01", 150.0, "P2"},
		{10106, "2004-02-01", 250.0, "P3"},
	}
}

func TestMonthlyRevenueOrderingAndTotals(t *testing.T) {
	e := seedFacts(t, newMemStore(t), standardFacts())
	ctx := context.Background()

	rows, err := e.MonthlyRevenue(ctx)
	if err != nil {
		t.Fatalf("MonthlyRevenue: %v", err)
	}

	want := []MonthlyRow{
		{2003, 1, 150.00, 3}, // null treated as zero for revenue, counted in volume
		{2003, 2, 200.00, 1},
		{2004, 1, 400.00, 1},
		{2004, 2, 400.00, 2},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("MonthlyRevenue = %+v, want %+v", rows, want)
	}

	// Property: summed report revenue equals COALESCE-sum over the whole
	// fact relation.
	var total float64
	for _, r := range rows {
		total += r.Revenue
	}
	var factTotal float64
	err = e.store.DB().QueryRow(
		`SELECT SUM(COALESCE(amount, 0)) FROM "online_sales"`).Scan(&factTotal)
	if err != nil {
		t.Fatalf("fact total: %v", err)
	}
	if math.Abs(total-factTotal) > 1e-9 {
		t.Fatalf("report total %v != fact total %v", total, factTotal)
	}
}

func TestMonthlyRevenueForYearIsSubsetOfAll(t *testing.T) {
	e := seedFacts(t, newMemStore(t), standardFacts())
	ctx := context.Background()

	all, err := e.MonthlyRevenue(ctx)
	if err != nil {
		t.Fatalf("MonthlyRevenue: %v", err)
	}
	filtered, err := e.MonthlyRevenueForYear(ctx, 2004)
	if err != nil {
		t.Fatalf("MonthlyRevenueForYear: %v", err)
	}

	var want []MonthlyRow
	for _, r := range all {
		if r.Year == 2004 {
			want = append(want, r)
		}
	}
	if !reflect.DeepEqual(filtered, want) {
		t.Fatalf("year filter = %+v, want subset %+v", filtered, want)
	}
}

func TestMonthlyRevenueForYearAbsentYear(t *testing.T) {
	e := seedFacts(t, newMemStore(t), standardFacts())

	rows, err := e.MonthlyRevenueForYear(context.Background(), 1999)
	if err != nil {
		t.Fatalf("MonthlyRevenueForYear: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("absent year returned %+v", rows)
	}
}

func TestTopPeriodsLimitAndOrder(t *testing.T) {
	e := seedFacts(t, newMemStore(t), standardFacts())

	top, err := e.TopPeriods(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopPeriods: %v", err)
	}
	want := []TopPeriodRow{
		{2004, 1, 400.00},
		{2004, 2, 400.00},
		{2003, 2, 200.00},
	}
	if !reflect.DeepEqual(top, want) {
		t.Fatalf("TopPeriods = %+v, want %+v", top, want)
	}
}

func TestTopPeriodsTieBreak(t *testing.T) {
	// Three periods with identical revenue: order must be year asc, month asc.
	e := seedFacts(t, newMemStore(t), []fact{
		{1, "2004-03-01", 100.0, "P1"},
		{2, "2003-07-01", 100.0, "P1"},
		{3, "2004-01-01", 100.0, "P1"},
	})

	top, err := e.TopPeriods(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopPeriods: %v", err)
	}
	want := []TopPeriodRow{
		{2003, 7, 100.00},
		{2004, 1, 100.00},
		{2004, 3, 100.00},
	}
	if !reflect.DeepEqual(top, want) {
		t.Fatalf("tie-break order = %+v, want %+v", top, want)
	}
}

func TestTopPeriodsFewerThanN(t *testing.T) {
	e := seedFacts(t, newMemStore(t), []fact{
		{1, "2003-01-01", 10.0, "P1"},
	})
	top, err := e.TopPeriods(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopPeriods: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("rows = %d, want 1", len(top))
	}
}

func TestNullSensitivityScenario(t *testing.T) {
	// Period with amounts [100, null, 50]: both sums are 150, but only two
	// rows carry an amount.
	e := seedFacts(t, newMemStore(t), []fact{
		{1, "2003-01-01", 100.0, "P1"},
		{2, "2003-01-01", nil, "P2"},
		{3, "2003-01-01", 50.0, "P3"},
	})

	rows, err := e.NullSensitivity(context.Background())
	if err != nil {
		t.Fatalf("NullSensitivity: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	r := rows[0]
	if !r.SumSkippingNulls.Valid || r.SumSkippingNulls.Float64 != 150.00 {
		t.Errorf("sum_skipping_nulls = %+v, want 150.00", r.SumSkippingNulls)
	}
	if r.SumTreatingNullsAsZero != 150.00 {
		t.Errorf("sum_treating_nulls_as_zero = %v, want 150.00", r.SumTreatingNullsAsZero)
	}
	if r.TotalOrders != 3 || r.OrdersWithAmount != 2 {
		t.Errorf("counts = %d/%d, want 3/2", r.TotalOrders, r.OrdersWithAmount)
	}
}

func TestNullSensitivityAllNullPeriod(t *testing.T) {
	e := seedFacts(t, newMemStore(t), []fact{
		{1, "2003-01-01", nil, "P1"},
		{2, "2003-01-01", nil, "P2"},
	})

	rows, err := e.NullSensitivity(context.Background())
	if err != nil {
		t.Fatalf("NullSensitivity: %v", err)
	}
	r := rows[0]
	if r.SumSkippingNulls.Valid {
		t.Errorf("sum_skipping_nulls = %+v, want NULL", r.SumSkippingNulls)
	}
	if r.SumTreatingNullsAsZero != 0 {
		t.Errorf("sum_treating_nulls_as_zero = %v, want 0", r.SumTreatingNullsAsZero)
	}
	if r.TotalOrders != 2 || r.OrdersWithAmount != 0 {
		t.Errorf("counts = %d/%d, want 2/0", r.TotalOrders, r.OrdersWithAmount)
	}
}

func TestNullSensitivityNoNullsMatches(t *testing.T) {
	e := seedFacts(t, newMemStore(t), []fact{
		{1, "2003-01-01", 10.0, "P1"},
		{2, "2003-01-01", 20.0, "P2"},
	})

	rows, err := e.NullSensitivity(context.Background())
	if err != nil {
		t.Fatalf("NullSensitivity: %v", err)
	}
	r := rows[0]
	if !r.SumSkippingNulls.Valid || r.SumSkippingNulls.Float64 != r.SumTreatingNullsAsZero {
		t.Fatalf("sums diverge with no nulls: %+v vs %v", r.SumSkippingNulls, r.SumTreatingNullsAsZero)
	}
	if r.TotalOrders != r.OrdersWithAmount {
		t.Fatalf("counts diverge with no nulls: %d vs %d", r.TotalOrders, r.OrdersWithAmount)
	}
}

func TestQueriesArePure(t *testing.T) {
	e := seedFacts(t, newMemStore(t), standardFacts())
	ctx := context.Background()

	first, err := e.MonthlyRevenue(ctx)
	if err != nil {
		t.Fatalf("MonthlyRevenue: %v", err)
	}
	second, err := e.MonthlyRevenue(ctx)
	if err != nil {
		t.Fatalf("MonthlyRevenue: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-run diverged: %+v vs %+v", first, second)
	}
}

func TestQueryAgainstMissingTableFails(t *testing.T) {
	store := newMemStore(t)
	e := NewEngine(store, "nowhere")
	if _, err := e.MonthlyRevenue(context.Background()); err == nil {
		t.Fatal("query against a missing fact table succeeded")
	}
}
