// Package csv implements a CSV parser for delimited sales exports. It reads
// row by row, soft-fails malformed lines with a skip count, and returns the
// parsed rows with their source line numbers.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"salestrends/internal/records"
)

// Options configures the CSV parser behavior. All fields are optional;
// sensible defaults are applied when a field is zero.
type Options struct {
	// HasHeader indicates whether the first row contains column headers.
	HasHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// ExpectedFields, when > 0, enforces a fixed field count per record.
	// Rows with a different width are skipped (soft-fail) and counted.
	ExpectedFields int

	// HeaderMap maps source header names to canonical keys. Headers absent
	// from the map are lowercased with spaces replaced by underscores.
	// Only applies when HasHeader is true.
	HeaderMap map[string]string

	// RequiredColumns, when non-empty, lists canonical keys that must all be
	// present in the (normalized) header; a miss fails the parse outright,
	// even for a source with no data rows. Only applies when HasHeader is
	// true.
	RequiredColumns []string
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Row is one parsed data row plus its 1-based line number in the source
// (the header, when present, is line 1).
type Row struct {
	Line   int
	Record records.Record
}

// logLimit caps per-row skip logging so a pathological file cannot flood
// the log; skips are still counted past the limit.
const logLimit = 400

// Parse consumes CSV records from r and returns the parsed rows along with
// the number of rows that were skipped due to parse errors or field-count
// mismatches.
func (p *Parser) Parse(r io.Reader) ([]Row, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1 // enforce width ourselves so bad rows soft-fail
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = p.opt.TrimSpace

	var headers []string
	var out []Row
	var skipped int

	line := 0
	if p.opt.HasHeader {
		line++
		h, err := cr.Read()
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
		if err := checkRequired(headers, p.opt.RequiredColumns); err != nil {
			return nil, 0, err
		}
	} else if p.opt.ExpectedFields > 0 {
		headers = make([]string, p.opt.ExpectedFields)
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i)
		}
	}

	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < logLimit {
				log.Printf("skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}

		// Enforce expected width when known.
		if len(headers) > 0 && len(row) != len(headers) {
			if skipped < logLimit {
				log.Printf("skipping row %d: incorrect number of fields (expected %d, got %d)",
					line, len(headers), len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[keyFor(i, headers)] = emptyToNil(val)
		}
		out = append(out, Row{Line: line, Record: rec})
	}

	return out, skipped, nil
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// checkRequired verifies every required column name appears in the
// normalized header.
func checkRequired(headers, required []string) error {
	if len(required) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(headers))
	for _, h := range headers {
		seen[h] = true
	}
	for _, c := range required {
		if !seen[c] {
			return fmt.Errorf("csv header missing required column %s", c)
		}
	}
	return nil
}

// normalizeHeaders produces canonical header keys using HeaderMap (when
// provided) and simple normalization (lowercase, spaces to underscores). It
// also strips a UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if opt.HeaderMap != nil {
			if m, ok := opt.HeaderMap[c]; ok {
				res[i] = m
				continue
			}
		}
		res[i] = strings.ReplaceAll(strings.ToLower(c), " ", "_")
	}
	return res
}
