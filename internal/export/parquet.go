// Package export writes repaired extracts to parquet for the analytics
// side of the house.
//
// Every column is exported as an optional UTF-8 byte array: the extracts are
// validated as text and the downstream warehouse does its own typing, so the
// export stays faithful to the repaired file instead of re-inferring types.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"cresval/internal/schema"
)

// ExportStats summarizes one parquet export.
type ExportStats struct {
	// Rows is the number of data rows written.
	Rows int64
	// Columns is the width of the parquet schema, taken from the CSV header.
	Columns int
	// Padded and Truncated count rows that did not match the header width and
	// were adjusted to fit.
	Padded, Truncated int64
}

// parallelism for the parquet writer's marshalling goroutines.
const writerParallelism = 4

// CSVToParquet converts the repaired CSV at csvPath into a snappy-compressed
// parquet file. Column names come from the CSV header, normalized to
// parquet-safe identifiers; an unnamed column gets a positional name. Rows
// narrower than the header are padded with nulls and wider rows are
// truncated, both counted in the stats.
func CSVToParquet(csvPath, parquetPath string, delim rune, logger *slog.Logger) (ExportStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return ExportStats{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return ExportStats{}, fmt.Errorf("export %s: no header row", csvPath)
	}
	if err != nil {
		return ExportStats{}, fmt.Errorf("export %s: %w", csvPath, err)
	}

	meta := make([]string, len(header))
	for i, h := range header {
		meta[i] = fmt.Sprintf(
			"name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL",
			columnName(h, i))
	}

	if err := os.MkdirAll(filepath.Dir(parquetPath), 0o755); err != nil {
		return ExportStats{}, err
	}
	fw, err := local.NewLocalFileWriter(parquetPath)
	if err != nil {
		return ExportStats{}, fmt.Errorf("create %s: %w", parquetPath, err)
	}
	pw, err := writer.NewCSVWriter(meta, fw, writerParallelism)
	if err != nil {
		fw.Close()
		return ExportStats{}, fmt.Errorf("parquet writer %s: %w", parquetPath, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	st := ExportStats{Columns: len(header)}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fw.Close()
			return ExportStats{}, fmt.Errorf("export %s: %w", csvPath, err)
		}

		row := make([]*string, len(header))
		switch {
		case len(rec) < len(header):
			st.Padded++
		case len(rec) > len(header):
			st.Truncated++
			rec = rec[:len(header)]
		}
		for i := range rec {
			v := rec[i]
			row[i] = &v
		}
		// Missing trailing cells stay nil (parquet null).

		if err := pw.WriteString(row); err != nil {
			fw.Close()
			return ExportStats{}, fmt.Errorf("export %s: %w", csvPath, err)
		}
		st.Rows++
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return ExportStats{}, fmt.Errorf("finalize %s: %w", parquetPath, err)
	}
	if err := fw.Close(); err != nil {
		return ExportStats{}, err
	}

	logger.Info("parquet export complete",
		"src", csvPath, "dst", parquetPath,
		"rows", st.Rows, "columns", st.Columns,
		"padded", st.Padded, "truncated", st.Truncated)
	return st, nil
}

// ContractColumns renders a contract as load-ready column names, used when a
// storage backend needs an explicit column list.
func ContractColumns(c schema.Contract) []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

// columnName normalizes a header cell to a parquet-safe identifier.
func columnName(h string, pos int) string {
	h = strings.TrimSpace(h)
	for _, cut := range []string{" ", ".", ";", "-", "/"} {
		h = strings.ReplaceAll(h, cut, "_")
	}
	if h == "" {
		return fmt.Sprintf("column_%d", pos)
	}
	return strings.ToLower(h)
}
