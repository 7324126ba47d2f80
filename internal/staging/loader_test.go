package staging

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"

	"salestrends/internal/storage"
	"salestrends/internal/storage/sqlite"
)

// memSource feeds the loader from a string, standing in for the file source.
type memSource struct{ data string }

func (m memSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(m.data)), nil
}

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

// sampleRow renders one source line. Only the fields the pipeline cares about
// vary; the rest carry fixed plausible values.
func sampleRow(orderNum, sales, monthID, yearID, product string) string {
	fields := map[string]string{
		"ORDERNUMBER":      orderNum,
		"QUANTITYORDERED":  "30",
		"PRICEEACH":        "95.70",
		"ORDERLINENUMBER":  "2",
		"SALES":            sales,
		"ORDERDATE":        "2/24/2003 0:00",
		"STATUS":           "Shipped",
		"QTR_ID":           "1",
		"MONTH_ID":         monthID,
		"YEAR_ID":          yearID,
		"PRODUCTLINE":      "Motorcycles",
		"MSRP":             "95",
		"PRODUCTCODE":      product,
		"CUSTOMERNAME":     "Land of Toys Inc.",
		"PHONE":            "2125557818",
		"ADDRESSLINE1":     "897 Long Airport Avenue",
		"ADDRESSLINE2":     "",
		"CITY":             "NYC",
		"STATE":            "NY",
		"POSTALCODE":       "10022",
		"COUNTRY":          "USA",
		"TERRITORY":        "NA",
		"CONTACTLASTNAME":  "Yu",
		"CONTACTFIRSTNAME": "Kwai",
		"DEALSIZE":         "Small",
	}
	vals := make([]string, len(Columns))
	for i, c := range Columns {
		vals[i] = fields[c]
	}
	return strings.Join(vals, ",")
}

func sampleCSV(rows ...string) string {
	return strings.Join(append([]string{strings.Join(Columns, ",")}, rows...), "\n") + "\n"
}

func newLoader(data string) *Loader {
	return &Loader{
		Src:      memSource{data: data},
		Table:    "sales_staging",
		Encoding: "auto",
	}
}

func TestReloadStagesAllText(t *testing.T) {
	store := newMemStore(t)
	csv := sampleCSV(
		sampleRow("10107", "2871.00", "2", "2003", "S10_1678"),
		sampleRow("10121", "", "5", "2003", "S10_1949"),
	)

	res, err := newLoader(csv).Reload(context.Background(), store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if res.Staged != 2 || res.Skipped != 0 {
		t.Fatalf("staged=%d skipped=%d, want 2/0", res.Staged, res.Skipped)
	}
	if res.Checksum == 0 {
		t.Error("checksum not computed")
	}

	var orderNum string
	var sales sql.NullString
	err = store.DB().QueryRow(
		`SELECT "ORDERNUMBER", "SALES" FROM "sales_staging" WHERE "src_line" = 3`,
	).Scan(&orderNum, &sales)
	if err != nil {
		t.Fatalf("query staging: %v", err)
	}
	if orderNum != "10121" {
		t.Errorf("ORDERNUMBER = %q, want 10121", orderNum)
	}
	// Empty source fields stage as NULL, not zero: typing is not this layer's job.
	if sales.Valid {
		t.Errorf("empty SALES staged as %q, want NULL", sales.String)
	}
}

func TestReloadDropsEmbeddedHeaderRow(t *testing.T) {
	store := newMemStore(t)
	csv := sampleCSV(
		sampleRow("10107", "2871.00", "2", "2003", "S10_1678"),
		strings.Join(Columns, ","), // the header again, as a data row
	)

	res, err := newLoader(csv).Reload(context.Background(), store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if res.Staged != 1 {
		t.Errorf("staged = %d, want 1", res.Staged)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
}

func TestReloadReplacesPriorData(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	big := sampleCSV(
		sampleRow("10107", "2871.00", "2", "2003", "S10_1678"),
		sampleRow("10121", "2765.90", "5", "2003", "S10_1949"),
		sampleRow("10134", "3884.34", "7", "2003", "S10_2016"),
	)
	if _, err := newLoader(big).Reload(ctx, store); err != nil {
		t.Fatalf("first Reload: %v", err)
	}

	small := sampleCSV(sampleRow("10168", "3746.70", "10", "2003", "S10_4698"))
	res, err := newLoader(small).Reload(ctx, store)
	if err != nil {
		t.Fatalf("second Reload: %v", err)
	}
	if res.Staged != 1 {
		t.Fatalf("staged = %d, want 1", res.Staged)
	}

	var n int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM "sales_staging"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows after reload = %d, want 1 (drop-and-reload, not append)", n)
	}
}

func TestReloadChecksumStableAcrossRuns(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	csv := sampleCSV(sampleRow("10107", "2871.00", "2", "2003", "S10_1678"))

	first, err := newLoader(csv).Reload(ctx, store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	second, err := newLoader(csv).Reload(ctx, store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if first.Checksum != second.Checksum {
		t.Errorf("checksums differ across identical runs: %x vs %x", first.Checksum, second.Checksum)
	}

	other, err := newLoader(sampleCSV(sampleRow("10999", "1.00", "1", "2004", "S10_0001"))).Reload(ctx, store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if other.Checksum == first.Checksum {
		t.Error("different sources produced the same checksum")
	}
}

func TestReloadRejectsForeignSchema(t *testing.T) {
	store := newMemStore(t)
	csv := "id,name\n1,widget\n"

	if _, err := newLoader(csv).Reload(context.Background(), store); err == nil {
		t.Fatal("Reload accepted a source with a foreign header")
	}
}

func TestReloadRejectsForeignSchemaWithoutRows(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	// Stage real data first so we can observe that a failed header check
	// leaves the staging relation untouched.
	good := sampleCSV(sampleRow("10107", "2871.00", "2", "2003", "S10_1678"))
	if _, err := newLoader(good).Reload(ctx, store); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	// Foreign header, zero data rows: still fatal, before any DDL runs.
	if _, err := newLoader("id,name\n").Reload(ctx, store); err == nil {
		t.Fatal("Reload accepted a foreign header with no data rows")
	}

	var n int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM "sales_staging"`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("staging rows after failed reload = %d, want 1 (prior data kept)", n)
	}
}

func TestReloadSkipsMalformedRows(t *testing.T) {
	store := newMemStore(t)
	csv := sampleCSV(
		sampleRow("10107", "2871.00", "2", "2003", "S10_1678"),
		"only,three,fields",
	)

	res, err := newLoader(csv).Reload(context.Background(), store)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if res.Staged != 1 || res.Skipped != 1 {
		t.Fatalf("staged=%d skipped=%d, want 1/1", res.Staged, res.Skipped)
	}
}
