// Package validate checks repaired extracts against a column contract.
//
// Validation is a reporting stage: contract violations are counted and
// logged, never raised as errors. Only an unreadable file fails the call.
// This keeps one bad extract from stopping a batch while still surfacing
// every data problem in the run summary.
package validate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cresval/internal/schema"
)

// Report summarizes one validation run.
type Report struct {
	// OK is true when every contract column was found, at least one row
	// survived filtering, and no field errors were counted.
	OK bool

	// Rows is the number of data rows examined.
	Rows int

	// Skipped counts rows dropped because their date_naissance value does not
	// look like a date at all. These are merge artifacts, not data errors.
	Skipped int

	// Warnings counts required numeric values that were missing or
	// unparseable and treated as zero.
	Warnings int

	// Errors maps field name to the number of rows violating that field's
	// contract.
	Errors map[string]int

	// MissingColumns lists contract fields absent from the file header.
	MissingColumns []string
}

// ErrorCount returns the total number of field violations.
func (r Report) ErrorCount() int {
	n := 0
	for _, c := range r.Errors {
		n += c
	}
	return n
}

// dateLike is the loose test used to filter rows, not to validate dates: a
// row whose birth-date cell does not even contain day/month/year digits is a
// leftover repair artifact and is excluded from validation.
var dateLike = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)

// filterField is the column whose shape decides whether a row is validated
// at all.
const filterField = "date_naissance"

// File streams the CSV at path and validates every row against the contract.
//
// The first record is treated as a header when it starts with an empty field
// or mentions the registration-number column; header names map columns to
// contract fields case-insensitively. A file without a usable header cannot
// be validated and reports every contract column missing.
func File(path string, delim rune, contract schema.Contract, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rep := Report{Errors: make(map[string]int)}

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return missingAll(rep, contract), nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("validate %s: %w", path, err)
	}

	if !looksLikeHeader(first) {
		logger.Warn("no header detected, cannot map columns", "path", path)
		return missingAll(rep, contract), nil
	}

	cols := make(map[string]int, len(first))
	for i, name := range first {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	for _, fld := range contract.Fields {
		if _, ok := cols[fld.Name]; !ok {
			rep.MissingColumns = append(rep.MissingColumns, fld.Name)
		}
	}
	if len(rep.MissingColumns) > 0 {
		logger.Warn("contract columns missing from header",
			"path", path, "missing", rep.MissingColumns)
		return rep, nil
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Report{}, fmt.Errorf("validate %s: %w", path, err)
		}
		rep.Rows++

		cell := func(name string) string {
			i := cols[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		if _, hasFilter := contract.Field(filterField); hasFilter {
			if !dateLike.MatchString(expandTwoDigitYear(cell(filterField))) {
				rep.Skipped++
				continue
			}
		}

		for _, fld := range contract.Fields {
			checkField(fld, cell(fld.Name), &rep)
		}
	}

	if rep.Skipped > 0 {
		logger.Warn("rows with non-date birth date skipped",
			"path", path, "skipped", rep.Skipped)
	}
	if rep.Warnings > 0 {
		logger.Warn("required numeric values coerced to zero",
			"path", path, "coerced", rep.Warnings)
	}
	for name, n := range rep.Errors {
		logger.Warn("contract violations", "path", path, "field", name, "rows", n)
	}

	rep.OK = len(rep.MissingColumns) == 0 && rep.Rows-rep.Skipped > 0 && rep.ErrorCount() == 0
	return rep, nil
}

func missingAll(rep Report, contract schema.Contract) Report {
	for _, fld := range contract.Fields {
		rep.MissingColumns = append(rep.MissingColumns, fld.Name)
	}
	return rep
}

// looksLikeHeader applies the same heuristic as the repair passes, adapted to
// an already-split record: an empty leading field (the extracts start with
// the delimiter) or any column naming the registration number.
func looksLikeHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	if strings.TrimSpace(rec[0]) == "" {
		return true
	}
	for _, c := range rec {
		if strings.Contains(strings.ToLower(c), "matricul") {
			return true
		}
	}
	return false
}

func checkField(fld schema.Field, v string, rep *Report) {
	switch fld.Type {
	case schema.TypeBigint:
		if v == "" || !isInt(v) {
			if fld.Required {
				// Treated as zero downstream.
				rep.Warnings++
			}
			// Nullable numerics coerce silently, like the legacy loader.
			return
		}
	case schema.TypeDate:
		v = expandTwoDigitYear(v)
		if v == "" {
			if !fld.Nullable {
				rep.Errors[fld.Name]++
			}
			return
		}
		if !validDate(fld, v) {
			rep.Errors[fld.Name]++
		}
	case schema.TypeBoolean:
		if v == "" {
			if !fld.Nullable {
				rep.Errors[fld.Name]++
			}
			return
		}
		low := strings.ToLower(v)
		for _, s := range fld.Truthy {
			if low == s {
				return
			}
		}
		for _, s := range fld.Falsy {
			if low == s {
				return
			}
		}
		rep.Errors[fld.Name]++
	}
	// Text accepts anything, empty included.
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	if err == nil {
		return true
	}
	// Exports sometimes render integers as "123.0".
	fv, ferr := strconv.ParseFloat(v, 64)
	return ferr == nil && fv == float64(int64(fv))
}

// expandTwoDigitYear turns JJ/MM/AA into JJ/MM/AAAA with a pivot at 50:
// years below 50 land in 2000+, the rest in 1900+. Values in any other shape
// pass through untouched.
func expandTwoDigitYear(v string) string {
	parts := strings.Split(v, "/")
	if len(parts) != 3 || len(parts[2]) != 2 {
		return v
	}
	yy, err := strconv.Atoi(parts[2])
	if err != nil {
		return v
	}
	century := 1900
	if yy < 50 {
		century = 2000
	}
	return fmt.Sprintf("%s/%s/%d", parts[0], parts[1], century+yy)
}

// validDate requires the exact layout, a real calendar date, and a year
// inside the contract's bounds.
func validDate(fld schema.Field, v string) bool {
	t, err := time.Parse(fld.Layout, v)
	if err != nil {
		return false
	}
	// time.Parse normalizes some invalid inputs; reformatting catches them.
	if t.Format(fld.Layout) != v {
		return false
	}
	y := t.Year()
	if fld.MinYear != 0 && y <= fld.MinYear {
		return false
	}
	if fld.MaxYear != 0 && y > fld.MaxYear {
		return false
	}
	return true
}
