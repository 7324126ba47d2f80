package staging

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/zeebo/xxh3"

	"salestrends/internal/parser/csv"
	"salestrends/internal/storage"
)

// Source is anything the loader can pull raw bytes from. The file datasource
// satisfies it; tests may substitute an in-memory source.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Loader reads a delimited source into the staging relation with
// drop-and-reload semantics: any prior staging data is replaced in full.
type Loader struct {
	// Src supplies the raw bytes.
	Src Source

	// Table is the staging table name.
	Table string

	// Delimiter is the field separator; ',' when zero.
	Delimiter rune

	// Encoding names the source charset ("auto", "utf-8", "latin-1",
	// "windows-1252").
	Encoding string
}

// Result summarizes one staging reload.
type Result struct {
	// Staged is the number of rows written to the staging relation.
	Staged int64

	// Skipped counts source rows discarded before staging: malformed lines,
	// width mismatches, and accidental embedded header rows.
	Skipped int

	// Checksum is the xxh3 hash of the raw source bytes. Two runs over
	// byte-identical input report the same checksum.
	Checksum uint64
}

// insertBatchSize bounds the rows bound per prepared-statement transaction.
const insertBatchSize = 500

// Reload replaces the staging relation with the current contents of the
// source. An unreadable source or a header that does not match the known
// sales export schema is fatal; individual malformed rows are skipped and
// counted.
func (l *Loader) Reload(ctx context.Context, store *storage.Store) (Result, error) {
	var res Result

	rc, err := l.Src.Open(ctx)
	if err != nil {
		return res, fmt.Errorf("staging: %w", err)
	}
	defer rc.Close()

	// Checksum the raw bytes as they stream past, before any decoding.
	hasher := xxh3.New()
	tee := io.TeeReader(rc, hasher)

	decoded, err := csv.DecodeReader(tee, l.Encoding)
	if err != nil {
		return res, fmt.Errorf("staging: %w", err)
	}

	// The header contract is enforced by the parser before any staging DDL
	// runs: a source whose header is not the sales export schema is fatal,
	// even when it carries no data rows.
	p := csv.NewParser(csv.Options{
		HasHeader:       true,
		Comma:           l.Delimiter,
		TrimSpace:       true,
		ExpectedFields:  len(Columns),
		HeaderMap:       headerIdentity(),
		RequiredColumns: Columns,
	})
	rows, skipped, err := p.Parse(decoded)
	if err != nil {
		return res, fmt.Errorf("staging: %w", err)
	}
	res.Skipped = skipped

	if err := store.ReplaceTable(ctx, l.Table, TableColumns()); err != nil {
		return res, fmt.Errorf("staging: %w", err)
	}

	cols := insertColumns()
	batch := make([][]any, 0, insertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := store.InsertRows(ctx, l.Table, cols, batch)
		res.Staged += n
		batch = batch[:0]
		return err
	}

	for _, row := range rows {
		// An accidental header line ingested as data echoes the column name
		// in the order-number field; discard it.
		if row.Record.String(Columns[0]) == Columns[0] {
			log.Printf("staging: dropping embedded header row at line %d", row.Line)
			res.Skipped++
			continue
		}

		vals := make([]any, 0, len(cols))
		vals = append(vals, row.Line)
		for _, c := range Columns {
			vals = append(vals, row.Record[c])
		}
		batch = append(batch, vals)

		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return res, fmt.Errorf("staging: %w", err)
			}
		}
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("staging: %w", err)
	}

	res.Checksum = hasher.Sum64()
	log.Printf("staging: reloaded table=%s staged=%d skipped=%d checksum=%016x",
		l.Table, res.Staged, res.Skipped, res.Checksum)
	return res, nil
}
