// Package config defines the pipeline configuration the cresval binary
// loads, plus structural validation that runs before any file is touched.
package config

import (
	"fmt"
	"os"

	"cresval/internal/schema"
	"cresval/internal/textenc"
)

func knownEncoding(name string) bool {
	_, err := textenc.Parse(name)
	return err == nil
}

func knownSchema(name string) bool {
	_, err := schema.Lookup(name)
	return err == nil
}

// Pipeline is the JSON configuration for one batch run.
type Pipeline struct {
	// Job names the run for logs and metric tags.
	Job string `json:"job"`

	Source  Source  `json:"source"`
	Repair  Repair  `json:"repair"`
	Schema  string  `json:"schema"`
	Output  Output  `json:"output"`
	Storage Storage `json:"storage"`
	Runtime Runtime `json:"runtime"`
}

// Source locates the raw extract files.
type Source struct {
	// Dir is the directory holding raw .txt extracts.
	Dir string `json:"dir"`
	// Glob filters files within Dir. Defaults to "*.txt" (a matching
	// upper-case variant is always included).
	Glob string `json:"glob,omitempty"`
}

// Repair configures the column-count analysis and repair passes.
type Repair struct {
	// Delimiter is the single-rune field separator. Defaults to ";".
	Delimiter string `json:"delimiter,omitempty"`
	// Encoding is the expected input encoding. Defaults to "utf-8"; decode
	// failures fall back per pass.
	Encoding string `json:"encoding,omitempty"`
	// WidthPolicy picks the expected-width estimator: "adopted" (default),
	// "most_frequent", or "maximum".
	WidthPolicy string `json:"width_policy,omitempty"`
	// Options holds open-ended knobs (header "markers", "progress_every").
	Options Options `json:"options,omitempty"`
}

// Output holds the destination directories.
type Output struct {
	CSVDir      string `json:"csv_dir"`
	ParquetDir  string `json:"parquet_dir"`
	RejectedDir string `json:"rejected_dir"`
}

// Storage configures the optional database load. An empty Kind skips loading.
type Storage struct {
	Kind  string `json:"kind,omitempty"`
	DSN   string `json:"dsn,omitempty"`
	Table string `json:"table,omitempty"`
}

// Runtime holds execution knobs that change no output.
type Runtime struct {
	// ProgressEvery is the progress-log interval in lines. <= 0 uses the
	// repair pass default.
	ProgressEvery int `json:"progress_every,omitempty"`
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one finding from ValidatePipeline.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// ApplyDefaults fills the blanks a hand-written config usually leaves.
func (p *Pipeline) ApplyDefaults() {
	if p.Job == "" {
		p.Job = "cresval"
	}
	if p.Source.Glob == "" {
		p.Source.Glob = "*.txt"
	}
	if p.Repair.Delimiter == "" {
		p.Repair.Delimiter = ";"
	}
	if p.Repair.Encoding == "" {
		p.Repair.Encoding = "utf-8"
	}
	if p.Repair.WidthPolicy == "" {
		p.Repair.WidthPolicy = "adopted"
	}
	if p.Schema == "" {
		p.Schema = "cnrps"
	}
	if p.Storage.Kind != "" && p.Storage.Table == "" {
		p.Storage.Table = p.Schema
	}
}

// ValidatePipeline checks a pipeline for structural problems. It returns all
// findings rather than stopping at the first; the caller decides whether any
// SeverityError aborts the run. Call after ApplyDefaults.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	errf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityError, path, fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		issues = append(issues, Issue{SeverityWarn, path, fmt.Sprintf(format, a...)})
	}

	if p.Source.Dir == "" {
		errf("source.dir", "missing source directory")
	} else if fi, err := os.Stat(p.Source.Dir); err != nil {
		errf("source.dir", "cannot stat %q: %v", p.Source.Dir, err)
	} else if !fi.IsDir() {
		errf("source.dir", "%q is not a directory", p.Source.Dir)
	}

	switch n := len([]rune(p.Repair.Delimiter)); n {
	case 0:
		errf("repair.delimiter", "missing delimiter")
	case 1:
		// ok
	default:
		errf("repair.delimiter", "delimiter must be a single character, got %q", p.Repair.Delimiter)
	}

	if !knownEncoding(p.Repair.Encoding) {
		errf("repair.encoding", "unsupported encoding %q", p.Repair.Encoding)
	}

	switch p.Repair.WidthPolicy {
	case "adopted", "most_frequent", "maximum":
	default:
		errf("repair.width_policy", "unknown width policy %q", p.Repair.WidthPolicy)
	}

	if !knownSchema(p.Schema) {
		errf("schema", "unknown schema %q", p.Schema)
	}

	if p.Output.CSVDir == "" {
		warnf("output.csv_dir", "not set; repaired files go next to the source")
	}

	if p.Storage.Kind != "" && p.Storage.DSN == "" {
		errf("storage.dsn", "storage.kind=%q set but dsn is empty", p.Storage.Kind)
	}

	return issues
}

// HasError reports whether any issue is fatal.
func HasError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
