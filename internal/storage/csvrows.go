package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultBatchSize is the number of rows handed to a backend per insert
// batch. Large enough to amortize round trips, small enough to keep
// statements and memory bounded.
const DefaultBatchSize = 1000

// BatchCSV streams the CSV at path and invokes fn with successive batches of
// rows shaped to the given column list. It exists so every backend shares one
// header-mapping and batching implementation and differs only in how a batch
// becomes an INSERT.
//
// The first record must be a header; its names map to columns
// case-insensitively. A column absent from the header, or a cell missing from
// a short row, loads as nil. Returns the total number of rows delivered.
func BatchCSV(path string, delim rune, columns []string, batchSize int, fn func(rows [][]any) error) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("load %s: no header row", path)
	}
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}

	idx := make([]int, len(columns))
	byName := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byName[key]; !dup {
			byName[key] = i
		}
	}
	for i, c := range columns {
		if j, ok := byName[strings.ToLower(c)]; ok {
			idx[i] = j
		} else {
			idx[i] = -1
		}
	}

	var (
		total int64
		batch [][]any
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		total += int64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, fmt.Errorf("load %s: %w", path, err)
		}

		row := make([]any, len(columns))
		for i, j := range idx {
			if j < 0 || j >= len(rec) {
				continue
			}
			row[i] = rec[j]
		}
		batch = append(batch, row)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
