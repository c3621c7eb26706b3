package repair

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cresval/internal/textenc"
)

// RepairStats summarizes one repair pass.
type RepairStats struct {
	// LinesWritten is the number of records written to the output, header
	// included.
	LinesWritten int
	// LinesMerged is the number of output records assembled from more than
	// one physical input line.
	LinesMerged int
	// Encoding is the encoding the pass succeeded under; the output file is
	// written in the same encoding.
	Encoding textenc.Encoding
}

// mergeState is the state of the record buffer between physical lines.
//
// Transitions:
//
//	empty        --line-->  accumulating (buffer = line)
//	accumulating --line-->  width >= expected: flush buffer, buffer = line
//	accumulating --line-->  width <  expected: buffer += " " + line
//	accumulating --EOF-->   flush buffer as-is (regardless of width)
type mergeState int

const (
	stateEmpty mergeState = iota
	stateAccumulating
)

// merger assembles physical lines into logical records of the expected field
// count. It holds no I/O so the merge/no-merge boundary is unit-testable in
// isolation.
type merger struct {
	expected int
	delim    rune

	state mergeState
	buf   string
	depth int
}

// step consumes one non-blank physical line. If consuming it completes the
// previous record, that record is returned with ok=true; merged reports
// whether it was assembled from more than one physical line.
//
// A buffer at or above the expected width flushes; over-width buffers cannot
// be repaired by merging and flush as-is.
func (m *merger) step(line string) (rec string, merged, ok bool) {
	if m.state == stateEmpty {
		m.buf, m.depth, m.state = line, 1, stateAccumulating
		return "", false, false
	}

	if CountFields(m.buf, m.delim) >= m.expected {
		rec, merged, ok = m.buf, m.depth > 1, true
		m.buf, m.depth = line, 1
		return rec, merged, ok
	}

	m.buf += " " + line
	m.depth++
	return "", false, false
}

// finish returns the trailing record left in the buffer at end of input, if
// any. It is flushed regardless of width: a truncated final record is better
// preserved than dropped.
func (m *merger) finish() (rec string, merged, ok bool) {
	if m.state == stateAccumulating && strings.TrimSpace(m.buf) != "" {
		return m.buf, m.depth > 1, true
	}
	return "", false, false
}

// adjustHeader drops the header's trailing field when the header is exactly
// one field wider than the first data line. The surplus column is an artifact
// of a leading empty label column; its last cell is either empty or
// duplicates the data's last cell.
//
// This is a heuristic: a legitimately wider header whose last column carries
// meaning would be trimmed too. Known approximation, preserved from the
// legacy behavior.
func adjustHeader(header, firstData string, delim rune) (string, bool) {
	hp := splitFields(header, delim)
	dp := splitFields(firstData, delim)
	if len(hp) != len(dp)+1 {
		return header, false
	}
	return strings.Join(hp[:len(hp)-1], string(delim)), true
}

// Repair streams src, merges under-width lines into full records, and writes
// the repaired file to dst (created or truncated; parent directories are
// created as needed).
//
// Guarantees:
//   - Record content and order are preserved; the only transformations are
//     newline-to-space at merge points and the one-time header trim.
//   - The output carries the same delimiter and the same encoding the input
//     resolved to.
//
// A decode error mid-stream discards the partial output and restarts the
// whole read-transform-write pass under the fallback encoding.
func Repair(src, dst string, o Options, expected int) (RepairStats, error) {
	o = o.withDefaults()
	if expected < 1 {
		return RepairStats{}, fmt.Errorf("repair: expected width must be >= 1, got %d", expected)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return RepairStats{}, err
	}

	st, err := repairOnce(src, dst, o, o.Encoding, expected)
	if err != nil && textenc.IsDecodeError(err) && o.Encoding != textenc.Fallback() {
		o.Logger.Debug("decode error, restarting repair under fallback encoding",
			"src", src, "fallback", textenc.Fallback().String())
		st, err = repairOnce(src, dst, o, textenc.Fallback(), expected)
	}
	if err != nil {
		if textenc.IsDecodeError(err) {
			return RepairStats{}, &UnreadableFileError{Path: src, Err: err}
		}
		return RepairStats{}, err
	}

	o.Logger.Info("repair pass complete",
		"src", src, "dst", dst,
		"lines_written", st.LinesWritten, "lines_merged", st.LinesMerged,
		"encoding", st.Encoding.String())
	return st, nil
}

func repairOnce(src, dst string, o Options, enc textenc.Encoding, expected int) (RepairStats, error) {
	out, err := os.Create(dst)
	if err != nil {
		return RepairStats{}, err
	}
	defer out.Close()

	encw := textenc.NewWriter(out, enc)
	w := bufio.NewWriterSize(encw, 128*1024)

	st := RepairStats{Encoding: enc}
	m := &merger{expected: expected, delim: o.Delimiter}

	var (
		pendingHeader string
		haveHeader    bool
		sawFirst      bool
	)

	writeRec := func(rec string, merged bool) error {
		if _, err := w.WriteString(rec); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		st.LinesWritten++
		if merged {
			st.LinesMerged++
		}
		return nil
	}

	err = scanLines(src, enc, func(n int, line string) error {
		if strings.TrimSpace(line) == "" {
			return nil
		}

		if !sawFirst {
			sawFirst = true
			if isHeader(line, o.Delimiter, o.Markers) {
				// Held aside until the first data line settles its width.
				pendingHeader = line
				haveHeader = true
				return nil
			}
		}

		if haveHeader {
			adjusted, trimmed := adjustHeader(pendingHeader, line, o.Delimiter)
			if trimmed {
				o.Logger.Info("header trimmed to data width",
					"src", src, "line", n,
					"header_width", CountFields(pendingHeader, o.Delimiter),
					"data_width", CountFields(line, o.Delimiter))
			}
			if err := writeRec(adjusted, false); err != nil {
				return err
			}
			haveHeader = false
		}

		if rec, merged, ok := m.step(line); ok {
			if err := writeRec(rec, merged); err != nil {
				return err
			}
		}

		if st.LinesWritten > 0 && st.LinesWritten%o.ProgressEvery == 0 {
			o.Logger.Debug("repair pass", "src", src,
				"lines_written", st.LinesWritten, "lines_merged", st.LinesMerged)
		}
		return nil
	})
	if err != nil {
		return RepairStats{}, err
	}

	if rec, merged, ok := m.finish(); ok {
		if err := writeRec(rec, merged); err != nil {
			return RepairStats{}, err
		}
	}
	// Header-only file: nothing compared it against a data line, emit as-is.
	if haveHeader {
		if err := writeRec(pendingHeader, false); err != nil {
			return RepairStats{}, err
		}
	}

	if err := w.Flush(); err != nil {
		return RepairStats{}, err
	}
	if err := encw.Close(); err != nil {
		return RepairStats{}, err
	}
	return st, out.Close()
}
