// Package staging implements the raw loader: it reads the delimited sales
// export into an all-text staging relation whose columns mirror the source
// header verbatim. No numeric or date validation happens here; typing is the
// normalizer's concern.
package staging

import "salestrends/internal/storage"

// Columns is the fixed source schema of the sales export, in file order.
// These names are used both as CSV header keys and as staging column names.
var Columns = []string{
	"ORDERNUMBER",
	"QUANTITYORDERED",
	"PRICEEACH",
	"ORDERLINENUMBER",
	"SALES",
	"ORDERDATE",
	"STATUS",
	"QTR_ID",
	"MONTH_ID",
	"YEAR_ID",
	"PRODUCTLINE",
	"MSRP",
	"PRODUCTCODE",
	"CUSTOMERNAME",
	"PHONE",
	"ADDRESSLINE1",
	"ADDRESSLINE2",
	"CITY",
	"STATE",
	"POSTALCODE",
	"COUNTRY",
	"TERRITORY",
	"CONTACTLASTNAME",
	"CONTACTFIRSTNAME",
	"DEALSIZE",
}

// LineColumn is the provenance column recording the source line number of
// each staged row. It sits alongside (not among) the verbatim source columns
// and lets the normalizer report rejections by source line.
const LineColumn = "src_line"

// TableColumns returns the staging table definition: the provenance line
// column followed by one nullable TEXT column per source field.
func TableColumns() []storage.Column {
	cols := make([]storage.Column, 0, len(Columns)+1)
	cols = append(cols, storage.Column{Name: LineColumn, SQLType: "INTEGER", NotNull: true})
	for _, c := range Columns {
		cols = append(cols, storage.Column{Name: c, SQLType: "TEXT"})
	}
	return cols
}

// insertColumns is the ordered column list used for staging inserts.
func insertColumns() []string {
	cols := make([]string, 0, len(Columns)+1)
	cols = append(cols, LineColumn)
	cols = append(cols, Columns...)
	return cols
}

// headerIdentity maps each verbatim header to itself so the parser keeps the
// source names instead of lowercasing them.
func headerIdentity() map[string]string {
	m := make(map[string]string, len(Columns))
	for _, c := range Columns {
		m[c] = c
	}
	return m
}
