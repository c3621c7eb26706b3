package repair

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"cresval/internal/textenc"
)

// CollectRejected writes the anomalous lines of src to dst for manual review,
// before the repair pass rewrites them. Returns the number of rejected lines
// written (header excluded).
//
// The set is built from the anomaly map: every anomalous line, plus the line
// immediately after it when that one is anomalous too, so merged pairs stay
// adjacent in the review file. Each line appears at most once, in file order.
// The source's first line is written first as a header when it is non-blank.
//
// Unlike the streaming passes, this one materializes the whole file: the
// anomaly map indexes physical line numbers, and random access beats a second
// bookkeeping pass for review-sized rejection sets. The output is always
// UTF-8 regardless of the source encoding.
//
// When the anomaly map is empty no file is created.
func CollectRejected(src, dst string, o Options, anomalous LineWidths) (int, error) {
	o = o.withDefaults()

	if len(anomalous) == 0 {
		o.Logger.Debug("no rejected lines to save", "src", src)
		return 0, nil
	}

	lines, err := readAllLines(src, o.Encoding)
	if err != nil && textenc.IsDecodeError(err) && o.Encoding != textenc.Fallback() {
		lines, err = readAllLines(src, textenc.Fallback())
	}
	if err != nil {
		if textenc.IsDecodeError(err) {
			return 0, &UnreadableFileError{Path: src, Err: err}
		}
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		w.WriteString(lines[0])
		w.WriteByte('\n')
	}

	written := 0
	seen := make(map[int]bool, len(anomalous))
	emit := func(n int) {
		if seen[n] {
			return
		}
		seen[n] = true
		if line := lines[n-1]; strings.TrimSpace(line) != "" {
			w.WriteString(line)
			w.WriteByte('\n')
			written++
		}
	}
	for i := range lines {
		n := i + 1
		if _, ok := anomalous[n]; !ok {
			continue
		}
		emit(n)
		if _, ok := anomalous[n+1]; ok && n+1 <= len(lines) {
			emit(n + 1)
		}
	}

	if err := w.Flush(); err != nil {
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}

	o.Logger.Info("rejected lines saved", "src", src, "dst", dst, "lines", written)
	return written, nil
}

// readAllLines loads every physical line of path under enc, terminators
// stripped, preserving blanks so indexes match physical line numbers.
func readAllLines(path string, enc textenc.Encoding) ([]string, error) {
	var lines []string
	err := scanLines(path, enc, func(n int, line string) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}
