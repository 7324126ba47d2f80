// Package config defines the canonical, JSON-serializable configuration model
// for the sales trend pipeline. It is intentionally small, explicit, and
// dependency-free so that a run can be described by a single file on disk and
// passed through the program without additional glue code.
//
// Example:
//
//	{
//	  "job":    "sales_trends",
//	  "source": { "kind": "file", "file": { "path": "sales_data_sample.csv" },
//	              "delimiter": ",", "encoding": "auto" },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "online_sales.db" } },
//	  "reports": { "year": 2004, "top_n": 3 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is the top-level object decoded from a config file. It describes
// one full load-and-report run.
type Pipeline struct {
	// Job names the run; it is used for metrics labeling and log lines.
	Job string `json:"job"`

	// Source describes where the delimited sales export comes from.
	Source Source `json:"source"`

	// Storage describes the relational engine holding the staging and fact
	// relations.
	Storage Storage `json:"storage"`

	// Reports carries caller-supplied query parameters.
	Reports Reports `json:"reports"`
}

// Source identifies the data source. Only local files are supported; the
// kind field exists so additional sources can be added without reshaping
// the config.
type Source struct {
	// Kind selects the source implementation. Current value: "file".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`

	// Delimiter is the field separator. Defaults to ",".
	Delimiter string `json:"delimiter"`

	// Encoding names the source charset: "utf-8", "latin-1",
	// "windows-1252", or "auto" (default) to detect between them.
	Encoding string `json:"encoding"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is the local filesystem path to the input file.
	Path string `json:"path"`
}

// Storage selects the engine used to persist the staging and fact relations.
type Storage struct {
	// Kind selects the storage backend registered with the storage factory.
	// Current values: "sqlite", "postgres".
	Kind string `json:"kind"`

	// DB configures the selected backend.
	DB DBConfig `json:"db"`
}

// DBConfig configures the relational sink.
type DBConfig struct {
	// DSN is the connection string, passed to the backend driver. For
	// sqlite this may be a plain file path or ":memory:".
	DSN string `json:"dsn"`

	// StagingTable is the name of the all-text staging relation.
	// Defaults to "sales_staging".
	StagingTable string `json:"staging_table"`

	// FactTable is the name of the typed fact relation.
	// Defaults to "online_sales".
	FactTable string `json:"fact_table"`

	// RejectionTable, when non-empty, names a table that receives one row
	// per rejected source row (line, raw order number, reason). Leave empty
	// to keep rejection accounting in the run summary only.
	RejectionTable string `json:"rejection_table"`
}

// Reports carries the caller-supplied report parameters.
type Reports struct {
	// Year is the filter for the single-year monthly report.
	// Defaults to 2004.
	Year int `json:"year"`

	// TopN is the row limit for the top-periods report. Defaults to 3.
	TopN int `json:"top_n"`
}

// Defaults applied by ApplyDefaults.
const (
	DefaultStagingTable = "sales_staging"
	DefaultFactTable    = "online_sales"
	DefaultYear         = 2004
	DefaultTopN         = 3
	DefaultDelimiter    = ","
	DefaultEncoding     = "auto"
)

// ApplyDefaults fills zero-valued optional fields in place. It never
// overrides a value the user set.
func (p *Pipeline) ApplyDefaults() {
	if p.Source.Delimiter == "" {
		p.Source.Delimiter = DefaultDelimiter
	}
	if p.Source.Encoding == "" {
		p.Source.Encoding = DefaultEncoding
	}
	if p.Storage.DB.StagingTable == "" {
		p.Storage.DB.StagingTable = DefaultStagingTable
	}
	if p.Storage.DB.FactTable == "" {
		p.Storage.DB.FactTable = DefaultFactTable
	}
	if p.Reports.Year == 0 {
		p.Reports.Year = DefaultYear
	}
	if p.Reports.TopN == 0 {
		p.Reports.TopN = DefaultTopN
	}
}

// Load reads and decodes a pipeline config file and applies defaults.
// Validation is a separate step; see Validate.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode config %s: %w", path, err)
	}
	p.ApplyDefaults()
	return p, nil
}
