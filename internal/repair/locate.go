package repair

import (
	"sort"
	"strings"

	"cresval/internal/textenc"
)

// LineWidths maps a 1-based physical line number to the (incorrect) field
// count observed there.
type LineWidths map[int]int

// SortedLines returns the line numbers in ascending order, the canonical view
// used by reporting and by the rejection recorder.
func SortedLines(lw LineWidths) []int {
	out := make([]int, 0, len(lw))
	for n := range lw {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Locate re-streams path and records every physical line whose field count
// differs from expected.
//
// This is an independent pass: it shares no state with Analyze and applies
// the same blank-line skip and header classification on its own. The header
// is tolerated at expected+1 (the benign leading-label case) and recorded as
// anomalous only when its width matches neither expected nor expected+1.
// Decode errors restart the pass under the fallback encoding, as in Analyze.
func Locate(path string, o Options, expected int) (LineWidths, error) {
	o = o.withDefaults()

	lw, err := locateOnce(path, o, o.Encoding, expected)
	if err != nil && textenc.IsDecodeError(err) && o.Encoding != textenc.Fallback() {
		o.Logger.Debug("decode error, retrying anomaly pass under fallback encoding",
			"path", path, "fallback", textenc.Fallback().String())
		lw, err = locateOnce(path, o, textenc.Fallback(), expected)
	}
	if err != nil {
		if textenc.IsDecodeError(err) {
			return nil, &UnreadableFileError{Path: path, Err: err}
		}
		return nil, err
	}
	return lw, nil
}

func locateOnce(path string, o Options, enc textenc.Encoding, expected int) (LineWidths, error) {
	lw := make(LineWidths)
	sawFirst := false
	dataLines := 0

	err := scanLines(path, enc, func(n int, line string) error {
		if strings.TrimSpace(line) == "" {
			return nil
		}

		if !sawFirst {
			sawFirst = true
			if isHeader(line, o.Delimiter, o.Markers) {
				w := CountFields(line, o.Delimiter)
				if w != expected && w != expected+1 {
					lw[n] = w
				}
				return nil
			}
		}

		dataLines++
		if w := CountFields(line, o.Delimiter); w != expected {
			lw[n] = w
		}

		if dataLines%o.ProgressEvery == 0 {
			o.Logger.Debug("anomaly pass", "path", path, "lines", dataLines, "anomalous", len(lw))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lw, nil
}
