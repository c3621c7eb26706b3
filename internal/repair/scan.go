// Package repair finds and fixes lines with the wrong field count in
// delimited extracts. It works in independent streaming passes over the same
// file: Analyze builds the field-count distribution and settles the expected
// width, Locate flags the lines that miss it, CollectRejected saves those
// lines for review, and Repair merges under-width fragments back into whole
// records.
package repair

import (
	"bufio"
	"errors"
	"log/slog"
	"os"
	"strings"

	"cresval/internal/textenc"
)

// Options carries the knobs shared by every pass over an extract file.
//
// The zero value is not usable directly; withDefaults fills in the delimiter,
// header markers, progress interval, and logger. Callers normally populate
// Delimiter and Encoding from the pipeline config and leave the rest alone.
type Options struct {
	// Delimiter is the single field separator (commonly ';').
	Delimiter rune

	// Encoding is the requested text encoding. A decode failure under it
	// restarts the whole pass under textenc.Fallback().
	Encoding textenc.Encoding

	// Markers are the lowercase substrings that identify a header line
	// (together with the leading-delimiter test). Defaults to the identifier
	// field names of the pension extracts.
	Markers []string

	// ProgressEvery controls coarse progress logging: one debug line every N
	// data lines. <= 0 means the default (100000).
	ProgressEvery int

	// Logger receives progress and summary output. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Delimiter == 0 {
		o.Delimiter = ';'
	}
	if len(o.Markers) == 0 {
		o.Markers = []string{"matricul", "cin"}
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 100000
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// isHeader implements the header heuristic: the line starts with the
// configured delimiter (or literally with ';') AND its lowercase text
// contains at least one marker substring.
func isHeader(line string, delim rune, markers []string) bool {
	if !strings.HasPrefix(line, string(delim)) && !strings.HasPrefix(line, ";") {
		return false
	}
	low := strings.ToLower(line)
	for _, m := range markers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// scanLines streams path line by line under enc, invoking fn with the 1-based
// physical line number and the line text (terminators stripped). Blank lines
// ARE passed through; each pass applies its own skip rule so that line
// numbers stay aligned with the raw file.
//
// The file handle is scoped to this call and closed on every return path.
// Decode errors from the encoding layer are returned as-is so the caller can
// classify them with textenc.IsDecodeError and restart under the fallback.
func scanLines(path string, enc textenc.Encoding, fn func(n int, line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(textenc.NewReader(bufio.NewReaderSize(f, 128*1024), enc))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, strings.TrimRight(sc.Text(), "\r")); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}
			return err
		}
	}
	return sc.Err()
}

// errStopScan is returned from a scan callback to end the pass early without
// reporting an error (used by passes that only need the file prefix).
var errStopScan = errors.New("repair: stop scan")
