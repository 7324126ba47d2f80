// Package normalize projects the all-text staging relation into the typed
// fact relation. Each staging row either becomes exactly one fact row or is
// rejected with a reason; rejections never abort the run.
//
// The order date is always composed from the integer YEAR_ID and MONTH_ID
// fields as the first of the month. The free-text ORDERDATE field carries
// mixed formats in real exports and is deliberately never parsed.
package normalize

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"strconv"

	"salestrends/internal/staging"
	"salestrends/internal/storage"
)

// Fact is one normalized order line.
type Fact struct {
	// OrderID is the integer order number.
	OrderID int64

	// OrderDate is the first-of-month date key, ISO "YYYY-MM-01".
	OrderDate string

	// Amount is the sales amount; invalid (not NULL-flagged) when the
	// source field was empty. It is never zero-coerced here; treating
	// absent amounts as zero is a reporting-time choice.
	Amount sql.NullFloat64

	// ProductID is the product code, copied verbatim. May be empty.
	ProductID string
}

// Rejection reasons.
const (
	ReasonBadOrderNumber = "bad_order_number"
	ReasonBadYear        = "bad_year"
	ReasonBadMonth       = "bad_month"
	ReasonBadAmount      = "bad_amount"
)

// Rejection records one staging row that failed normalization.
type Rejection struct {
	// Line is the source line number of the rejected row.
	Line int64

	// OrderNumber is the raw order-number text as staged.
	OrderNumber string

	// Reason is one of the Reason* constants.
	Reason string
}

// Result summarizes one fact reload.
type Result struct {
	// Facts is the number of rows written to the fact relation.
	Facts int64

	// Rejections holds one entry per staging row that failed normalization,
	// in source order.
	Rejections []Rejection
}

// RejectionsByReason tallies rejections per reason.
func (r Result) RejectionsByReason() map[string]int {
	if len(r.Rejections) == 0 {
		return nil
	}
	m := make(map[string]int)
	for _, rej := range r.Rejections {
		m[rej.Reason]++
	}
	return m
}

// Normalizer transforms the staging relation into the fact relation with
// drop-and-reload semantics.
type Normalizer struct {
	// StagingTable is read in full, ordered by source line.
	StagingTable string

	// FactTable is dropped and recreated, then filled.
	FactTable string

	// RejectionTable, when non-empty, is dropped, recreated, and filled
	// with one row per rejection.
	RejectionTable string
}

// factColumns is the ordered fact insert column list.
var factColumns = []string{"order_id", "order_date", "amount", "product_id"}

// factTableColumns returns the fact table definition for the store's dialect
// (the date key type differs per engine).
func factTableColumns(d storage.Dialect) []storage.Column {
	return []storage.Column{
		{Name: "order_id", SQLType: "INTEGER", NotNull: true},
		{Name: "order_date", SQLType: d.DateType, NotNull: true},
		{Name: "amount", SQLType: "REAL"},
		{Name: "product_id", SQLType: "TEXT", NotNull: true},
	}
}

// rejectionTableColumns returns the rejection log definition.
func rejectionTableColumns() []storage.Column {
	return []storage.Column{
		{Name: "src_line", SQLType: "INTEGER", NotNull: true},
		{Name: "order_number", SQLType: "TEXT"},
		{Name: "reason", SQLType: "TEXT", NotNull: true},
	}
}

const insertBatchSize = 500

// Reload reads the staging relation back in source order, normalizes each
// row, and replaces the fact relation with the surviving rows. Rejected rows
// are returned (and persisted when a rejection table is configured).
func (n *Normalizer) Reload(ctx context.Context, store *storage.Store) (Result, error) {
	var res Result

	rows, err := n.readStaging(ctx, store)
	if err != nil {
		return res, err
	}

	if err := store.ReplaceTable(ctx, n.FactTable, factTableColumns(store.Dialect())); err != nil {
		return res, fmt.Errorf("normalize: %w", err)
	}

	batch := make([][]any, 0, insertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := store.InsertRows(ctx, n.FactTable, factColumns, batch)
		res.Facts += inserted
		batch = batch[:0]
		return err
	}

	for _, sr := range rows {
		fact, rej := normalizeRow(sr)
		if rej != nil {
			res.Rejections = append(res.Rejections, *rej)
			continue
		}

		var amount any
		if fact.Amount.Valid {
			amount = fact.Amount.Float64
		}
		batch = append(batch, []any{fact.OrderID, fact.OrderDate, amount, fact.ProductID})

		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return res, fmt.Errorf("normalize: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("normalize: %w", err)
	}

	if n.RejectionTable != "" {
		if err := n.writeRejections(ctx, store, res.Rejections); err != nil {
			return res, err
		}
	}

	log.Printf("normalize: reloaded table=%s facts=%d rejected=%d",
		n.FactTable, res.Facts, len(res.Rejections))
	return res, nil
}

// stagingRow is the subset of staging fields normalization needs, plus
// provenance.
type stagingRow struct {
	Line        int64
	OrderNumber sql.NullString
	YearID      sql.NullString
	MonthID     sql.NullString
	Sales       sql.NullString
	ProductCode sql.NullString
}

// readStaging fetches the staging rows in source order. Only the columns the
// fact transform consumes are read; the rest of the staging relation exists
// for provenance and is discardable after this pass.
func (n *Normalizer) readStaging(ctx context.Context, store *storage.Store) ([]stagingRow, error) {
	q := fmt.Sprintf(
		"SELECT %s, %s, %s, %s, %s, %s FROM %s ORDER BY %s",
		storage.QuoteIdent(staging.LineColumn),
		storage.QuoteIdent("ORDERNUMBER"),
		storage.QuoteIdent("YEAR_ID"),
		storage.QuoteIdent("MONTH_ID"),
		storage.QuoteIdent("SALES"),
		storage.QuoteIdent("PRODUCTCODE"),
		storage.QuoteIdent(n.StagingTable),
		storage.QuoteIdent(staging.LineColumn),
	)

	dbRows, err := store.DB().QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("normalize: read staging: %w", err)
	}
	defer dbRows.Close()

	var out []stagingRow
	for dbRows.Next() {
		var sr stagingRow
		if err := dbRows.Scan(&sr.Line, &sr.OrderNumber, &sr.YearID, &sr.MonthID, &sr.Sales, &sr.ProductCode); err != nil {
			return nil, fmt.Errorf("normalize: scan staging: %w", err)
		}
		out = append(out, sr)
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("normalize: read staging: %w", err)
	}
	return out, nil
}

// normalizeRow applies the typed projection to one staging row. It returns
// either the fact or a rejection, never both.
func normalizeRow(sr stagingRow) (Fact, *Rejection) {
	reject := func(reason string) (Fact, *Rejection) {
		return Fact{}, &Rejection{Line: sr.Line, OrderNumber: sr.OrderNumber.String, Reason: reason}
	}

	orderID, err := strconv.ParseInt(sr.OrderNumber.String, 10, 64)
	if !sr.OrderNumber.Valid || err != nil {
		return reject(ReasonBadOrderNumber)
	}

	year, err := strconv.Atoi(sr.YearID.String)
	if !sr.YearID.Valid || err != nil || year < 1000 || year > 9999 {
		return reject(ReasonBadYear)
	}
	month, err := strconv.Atoi(sr.MonthID.String)
	if !sr.MonthID.Valid || err != nil || month < 1 || month > 12 {
		return reject(ReasonBadMonth)
	}

	var amount sql.NullFloat64
	if sr.Sales.Valid && sr.Sales.String != "" {
		v, err := strconv.ParseFloat(sr.Sales.String, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return reject(ReasonBadAmount)
		}
		amount = sql.NullFloat64{Float64: v, Valid: true}
	}

	return Fact{
		OrderID:   orderID,
		OrderDate: fmt.Sprintf("%04d-%02d-01", year, month),
		Amount:    amount,
		ProductID: sr.ProductCode.String,
	}, nil
}

// writeRejections replaces the rejection log with this run's rejections.
func (n *Normalizer) writeRejections(ctx context.Context, store *storage.Store, rejs []Rejection) error {
	if err := store.ReplaceTable(ctx, n.RejectionTable, rejectionTableColumns()); err != nil {
		return fmt.Errorf("normalize: rejection log: %w", err)
	}
	if len(rejs) == 0 {
		return nil
	}
	rows := make([][]any, len(rejs))
	for i, r := range rejs {
		rows[i] = []any{r.Line, r.OrderNumber, r.Reason}
	}
	if _, err := store.InsertRows(ctx, n.RejectionTable, []string{"src_line", "order_number", "reason"}, rows); err != nil {
		return fmt.Errorf("normalize: rejection log: %w", err)
	}
	return nil
}
