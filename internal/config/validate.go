// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "reports.top_n"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownEncodings are the charset names the loader understands.
var knownEncodings = map[string]bool{
	"auto":         true,
	"utf-8":        true,
	"latin-1":      true,
	"iso-8859-1":   true,
	"windows-1252": true,
	"cp1252":       true,
}

// knownStorageKinds mirrors the backends registered with the storage factory.
var knownStorageKinds = map[string]bool{
	"sqlite":   true,
	"postgres": true,
}

// Validate performs static validation of a Pipeline. It does not mutate the
// pipeline; callers may decide whether to treat warnings as fatal.
func (p Pipeline) Validate() []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}

	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateReports(p.Reports)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch strings.TrimSpace(s.Kind) {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a path",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; expected \"file\"", s.Kind),
		})
	}

	if len([]rune(s.Delimiter)) > 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.delimiter",
			Message:  fmt.Sprintf("delimiter must be a single character, got %q", s.Delimiter),
		})
	}

	if s.Encoding != "" && !knownEncodings[strings.ToLower(s.Encoding)] {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.encoding",
			Message:  fmt.Sprintf("unknown encoding %q", s.Encoding),
		})
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
	} else if !knownStorageKinds[s.Kind] {
		// Unknown kinds are warnings for forward compatibility; the storage
		// factory gives the authoritative answer at open time.
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}

	if s.DB.StagingTable == s.DB.FactTable && s.DB.StagingTable != "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.fact_table",
			Message:  "staging and fact tables must differ; both are dropped and recreated per run",
		})
	}

	return issues
}

func validateReports(r Reports) []Issue {
	var issues []Issue

	if r.Year != 0 && (r.Year < 1000 || r.Year > 9999) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reports.year",
			Message:  fmt.Sprintf("year must be a 4-digit value, got %d", r.Year),
		})
	}
	if r.TopN < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "reports.top_n",
			Message:  fmt.Sprintf("top_n must not be negative, got %d", r.TopN),
		})
	}

	return issues
}
