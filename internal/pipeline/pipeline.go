// Package pipeline orchestrates one load run: stage the raw export,
// normalize it into the fact relation, and build the fact indexes. The run
// is linear and synchronous; it either completes or fails outright. Per-row
// normalization failures never abort the run; they are counted (and
// optionally persisted) instead.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"salestrends/internal/config"
	"salestrends/internal/datasource/file"
	"salestrends/internal/metrics"
	"salestrends/internal/normalize"
	"salestrends/internal/staging"
	"salestrends/internal/storage"
)

// Summary reports what one run did. It replaces the implicit side effects of
// a script with an explicit result: rows loaded and rows rejected are first-
// class outputs.
type Summary struct {
	// SourceChecksum is the xxh3 hash of the raw source bytes.
	SourceChecksum uint64

	// StagedRows / SkippedSourceRows come from the raw load.
	StagedRows        int64
	SkippedSourceRows int

	// FactRows / RejectedRows come from normalization.
	FactRows     int64
	RejectedRows int

	// RejectionsByReason tallies rejected rows per reason; nil when none.
	RejectionsByReason map[string]int

	// Elapsed is the wall-clock duration of the whole run.
	Elapsed time.Duration
}

// Run executes the full load against the configured storage backend and
// returns the run summary. The store is opened and closed inside Run; report
// queries open their own handle via OpenStore afterwards.
func Run(ctx context.Context, cfg config.Pipeline) (Summary, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return Summary{}, err
	}
	defer store.Close()
	return RunWithStore(ctx, cfg, store)
}

// OpenStore opens the storage backend selected by the config.
func OpenStore(ctx context.Context, cfg config.Pipeline) (*storage.Store, error) {
	store, err := storage.Open(ctx, cfg.Storage.Kind, cfg.Storage.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	return store, nil
}

// RunWithStore executes the full load against an already-open store. The
// caller keeps ownership of the store.
func RunWithStore(ctx context.Context, cfg config.Pipeline, store *storage.Store) (Summary, error) {
	start := time.Now()
	var sum Summary

	delim := ','
	if cfg.Source.Delimiter != "" {
		delim = []rune(cfg.Source.Delimiter)[0]
	}

	loader := &staging.Loader{
		Src:       file.NewLocal(cfg.Source.File.Path),
		Table:     cfg.Storage.DB.StagingTable,
		Delimiter: delim,
		Encoding:  cfg.Source.Encoding,
	}

	stageStart := time.Now()
	stageRes, err := loader.Reload(ctx, store)
	metrics.RecordStage(cfg.Job, "stage_raw", err, time.Since(stageStart))
	if err != nil {
		return sum, fmt.Errorf("pipeline: %w", err)
	}
	sum.SourceChecksum = stageRes.Checksum
	sum.StagedRows = stageRes.Staged
	sum.SkippedSourceRows = stageRes.Skipped
	metrics.RecordRows(cfg.Job, "staged", stageRes.Staged)
	metrics.RecordRows(cfg.Job, "skipped", int64(stageRes.Skipped))

	norm := &normalize.Normalizer{
		StagingTable:   cfg.Storage.DB.StagingTable,
		FactTable:      cfg.Storage.DB.FactTable,
		RejectionTable: cfg.Storage.DB.RejectionTable,
	}

	normStart := time.Now()
	normRes, err := norm.Reload(ctx, store)
	metrics.RecordStage(cfg.Job, "normalize", err, time.Since(normStart))
	if err != nil {
		return sum, fmt.Errorf("pipeline: %w", err)
	}
	sum.FactRows = normRes.Facts
	sum.RejectedRows = len(normRes.Rejections)
	sum.RejectionsByReason = normRes.RejectionsByReason()
	metrics.RecordRows(cfg.Job, "facts", normRes.Facts)
	metrics.RecordRows(cfg.Job, "rejected", int64(len(normRes.Rejections)))

	idxStart := time.Now()
	err = store.EnsureFactIndexes(ctx, cfg.Storage.DB.FactTable)
	metrics.RecordStage(cfg.Job, "index", err, time.Since(idxStart))
	if err != nil {
		return sum, fmt.Errorf("pipeline: %w", err)
	}

	sum.Elapsed = time.Since(start)
	return sum, nil
}
