// Package runner orchestrates a batch over a directory of raw extracts:
// convert, analyze, locate anomalies, record rejects, repair, validate,
// export, and optionally load.
//
// Per-file failures never abort the batch. Each file ends in exactly one
// status (ok, corrected, warnings, errors) and the summary reports all four
// buckets; the exit code is the caller's decision.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cresval/internal/config"
	"cresval/internal/convert"
	"cresval/internal/export"
	"cresval/internal/metrics"
	"cresval/internal/repair"
	"cresval/internal/schema"
	"cresval/internal/storage"
	"cresval/internal/validate"
)

// Status is the terminal state of one processed file.
type Status string

const (
	// StatusOK: no anomalies found, validation clean.
	StatusOK Status = "ok"
	// StatusCorrected: anomalies were found and repaired, validation clean.
	StatusCorrected Status = "corrected"
	// StatusWarnings: processing finished but validation reported problems.
	StatusWarnings Status = "warnings"
	// StatusErrors: a processing step failed for this file.
	StatusErrors Status = "errors"
)

// FileResult records everything the batch did to one source file.
type FileResult struct {
	Source   string
	CSV      string
	Parquet  string
	Rejected string

	Status    Status
	Expected  int
	Anomalous int
	Repair    repair.RepairStats
	Report    validate.Report
	Loaded    int64

	Err error
}

// Summary aggregates a batch run.
type Summary struct {
	Results []FileResult
}

// Count returns the number of files that ended in st.
func (s Summary) Count(st Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == st {
			n++
		}
	}
	return n
}

// Failed reports whether any file ended in StatusErrors.
func (s Summary) Failed() bool { return s.Count(StatusErrors) > 0 }

// Runner executes batches for one pipeline configuration.
type Runner struct {
	cfg    config.Pipeline
	logger *slog.Logger

	// Correct enables the repair/export path. When false the batch only
	// analyzes and validates, leaving files untouched.
	Correct bool
}

// New builds a Runner. Call cfg.ApplyDefaults and config.ValidatePipeline
// first; the runner assumes a structurally valid pipeline.
func New(cfg config.Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger, Correct: true}
}

// Run processes every matching source file and returns the batch summary.
// The returned error covers batch-level failures only (bad storage config,
// unreadable source dir); per-file failures land in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	files, err := r.discover()
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		r.logger.Info("no source files found",
			"dir", r.cfg.Source.Dir, "glob", r.cfg.Source.Glob)
		return Summary{}, nil
	}

	contract, err := schema.Lookup(r.cfg.Schema)
	if err != nil {
		return Summary{}, err
	}

	var loader storage.Loader
	if r.cfg.Storage.Kind != "" {
		loader, err = storage.New(ctx, storage.Config{
			Kind: r.cfg.Storage.Kind,
			DSN:  r.cfg.Storage.DSN,
		})
		if err != nil {
			return Summary{}, fmt.Errorf("storage init: %w", err)
		}
		defer loader.Close()

		if err := loader.EnsureTable(ctx, r.cfg.Storage.Table, export.ContractColumns(contract)); err != nil {
			return Summary{}, fmt.Errorf("storage init: %w", err)
		}
	}

	workDir, err := os.MkdirTemp("", "cresval-*")
	if err != nil {
		return Summary{}, err
	}
	defer os.RemoveAll(workDir)

	r.logger.Info("batch starting", "job", r.cfg.Job, "files", len(files))

	var sum Summary
	for _, src := range files {
		start := time.Now()
		res := r.processFile(ctx, src, workDir, contract, loader)
		sum.Results = append(sum.Results, res)

		metrics.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"status": string(res.Status)})
		metrics.ObserveHistogram(metrics.FileDurationSeconds,
			time.Since(start).Seconds(), metrics.Labels{"status": string(res.Status)})

		if res.Err != nil {
			r.logger.Error("file failed", "file", filepath.Base(src), "error", res.Err)
		}
	}

	r.logger.Info("batch finished",
		"job", r.cfg.Job,
		"files", len(sum.Results),
		"ok", sum.Count(StatusOK),
		"corrected", sum.Count(StatusCorrected),
		"warnings", sum.Count(StatusWarnings),
		"errors", sum.Count(StatusErrors))
	return sum, nil
}

// discover lists source files matching the configured glob, including the
// upper-case extension variant the agencies sometimes ship.
func (r *Runner) discover() ([]string, error) {
	if _, err := os.Stat(r.cfg.Source.Dir); err != nil {
		return nil, fmt.Errorf("source dir: %w", err)
	}

	seen := map[string]bool{}
	var files []string
	for _, glob := range []string{r.cfg.Source.Glob, strings.ToUpper(r.cfg.Source.Glob)} {
		matches, err := filepath.Glob(filepath.Join(r.cfg.Source.Dir, glob))
		if err != nil {
			return nil, fmt.Errorf("bad glob %q: %w", glob, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *Runner) repairOptions(log *slog.Logger) repair.Options {
	progress := r.cfg.Runtime.ProgressEvery
	if progress <= 0 {
		progress = r.cfg.Repair.Options.Int("progress_every", 0)
	}
	return repair.Options{
		Delimiter:     r.delimiter(),
		Markers:       r.cfg.Repair.Options.StringSlice("markers"),
		ProgressEvery: progress,
		Logger:        log,
	}
}

func (r *Runner) delimiter() rune {
	return []rune(r.cfg.Repair.Delimiter)[0]
}

func (r *Runner) outDir(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(r.cfg.Source.Dir, fallback)
}

func (r *Runner) processFile(ctx context.Context, src, workDir string, contract schema.Contract, loader storage.Loader) FileResult {
	res := FileResult{Source: src, Status: StatusErrors}
	log := r.logger.With("file", filepath.Base(src))
	stem := strings.TrimSuffix(convert.CSVName(src), ".csv")

	fail := func(err error) FileResult {
		res.Err = err
		return res
	}

	// Working copy: decoded once, UTF-8 from here on.
	enc, err := convert.SniffEncoding(src)
	if err != nil {
		return fail(err)
	}
	work := filepath.Join(workDir, convert.CSVName(src))
	if err := convert.TxtToCSV(src, work, enc); err != nil {
		return fail(err)
	}
	log.Info("converted", "encoding", enc.String())

	opts := r.repairOptions(log)

	a, err := repair.Analyze(work, opts)
	if err != nil {
		return fail(err)
	}
	res.Expected = r.expectedWidth(a)
	metrics.IncCounter(metrics.LinesTotal, float64(a.DataLines), metrics.Labels{"kind": "analyzed"})
	log.Info("analyzed", "expected_columns", res.Expected,
		"data_lines", a.DataLines, "distinct_widths", len(a.Distribution))

	anomalous, err := repair.Locate(work, opts, res.Expected)
	if err != nil {
		return fail(err)
	}
	res.Anomalous = len(anomalous)
	if res.Anomalous > 0 {
		sample := repair.SortedLines(anomalous)
		if len(sample) > 10 {
			sample = sample[:10]
		}
		log.Warn("anomalous lines found", "count", res.Anomalous, "first_lines", sample)

		res.Rejected = filepath.Join(r.outDir(r.cfg.Output.RejectedDir, "rejected"),
			"rejected_"+stem+".csv")
		n, err := repair.CollectRejected(work, res.Rejected, opts, anomalous)
		if err != nil {
			// The review file is a side channel; losing it is not fatal.
			log.Warn("could not save rejected lines", "error", err)
			res.Rejected = ""
		} else {
			metrics.IncCounter(metrics.LinesTotal, float64(n), metrics.Labels{"kind": "rejected"})
		}
	}

	validated := work
	if r.Correct {
		res.CSV = filepath.Join(r.outDir(r.cfg.Output.CSVDir, "csv"), "corrected_"+stem+".csv")
		st, err := repair.Repair(work, res.CSV, opts, res.Expected)
		if err != nil {
			return fail(err)
		}
		res.Repair = st
		validated = res.CSV
		metrics.IncCounter(metrics.LinesTotal, float64(st.LinesMerged), metrics.Labels{"kind": "merged"})
	}

	rep, err := validate.File(validated, r.delimiter(), contract, log)
	if err != nil {
		return fail(err)
	}
	res.Report = rep

	if r.Correct {
		res.Parquet = filepath.Join(r.outDir(r.cfg.Output.ParquetDir, "parquet"), stem+".parquet")
		est, err := export.CSVToParquet(validated, res.Parquet, r.delimiter(), log)
		if err != nil {
			return fail(err)
		}
		metrics.IncCounter(metrics.LinesTotal, float64(est.Rows), metrics.Labels{"kind": "exported"})
	}

	if loader != nil {
		n, err := loader.LoadCSV(ctx, validated, r.delimiter(),
			r.cfg.Storage.Table, export.ContractColumns(contract))
		if err != nil {
			return fail(fmt.Errorf("load: %w", err))
		}
		res.Loaded = n
		metrics.IncCounter(metrics.LinesTotal, float64(n), metrics.Labels{"kind": "loaded"})
		log.Info("loaded", "table", r.cfg.Storage.Table, "rows", n)
	}

	res.Err = nil
	switch {
	case !rep.OK:
		res.Status = StatusWarnings
	case res.Anomalous > 0 || res.Repair.LinesMerged > 0:
		res.Status = StatusCorrected
	default:
		res.Status = StatusOK
	}
	return res
}

func (r *Runner) expectedWidth(a repair.Analysis) int {
	switch r.cfg.Repair.WidthPolicy {
	case "most_frequent":
		return a.Expected(repair.PolicyMostFrequent)
	case "maximum":
		return a.Expected(repair.PolicyMaximum)
	default:
		return a.AdoptedWidth()
	}
}
