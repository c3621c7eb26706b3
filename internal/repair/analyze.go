package repair

import (
	"strings"

	"cresval/internal/textenc"
)

// WidthPolicy selects how the expected field count is derived from the
// observed distribution.
type WidthPolicy int

const (
	// PolicyMostFrequent picks the width with the highest frequency; ties are
	// broken by first occurrence in file order.
	PolicyMostFrequent WidthPolicy = iota
	// PolicyMaximum picks the largest width observed, regardless of frequency.
	PolicyMaximum
)

// Analysis is the result of the first streaming pass over an extract file:
// a frequency distribution of per-line field counts, with the header (if one
// was detected) kept out of the distribution.
//
// Analysis is a plain value; re-running Analyze on an unmodified file yields
// an identical result.
type Analysis struct {
	// Distribution maps field count -> number of data lines with that count.
	Distribution map[int]int

	// HeaderWidth is the header's own field count, or 0 if no header line was
	// detected. A header one wider than the data is normal for these extracts
	// (leading empty label column) and is not an anomaly.
	HeaderWidth int

	// DataLines is the number of lines counted into Distribution.
	DataLines int

	// EmptyLines counts the blank/whitespace-only lines that were skipped.
	EmptyLines int

	// Encoding is the encoding the pass actually succeeded under (the
	// requested one, or the fallback after a decode error).
	Encoding textenc.Encoding

	// widthOrder records each width in order of first appearance, for
	// deterministic tie-breaking under PolicyMostFrequent.
	widthOrder []int
}

// Expected resolves the expected field count under the given policy.
// Returns 0 if the distribution is empty.
func (a Analysis) Expected(policy WidthPolicy) int {
	if len(a.Distribution) == 0 {
		return 0
	}
	switch policy {
	case PolicyMaximum:
		max := 0
		for w := range a.Distribution {
			if w > max {
				max = w
			}
		}
		return max
	default:
		best, bestN := 0, -1
		for _, w := range a.widthOrder {
			if n := a.Distribution[w]; n > bestN {
				best, bestN = w, n
			}
		}
		return best
	}
}

// AdoptedWidth is the width the repair pass works toward: the larger of the
// most-frequent and the maximum estimates. Under-counting (columns merged
// away by a stray newline) is the dominant failure mode, so the wider
// estimate is trusted.
func (a Analysis) AdoptedWidth() int {
	freq := a.Expected(PolicyMostFrequent)
	if max := a.Expected(PolicyMaximum); max > freq {
		return max
	}
	return freq
}

// Analyze streams path once and builds the field-count distribution.
//
// The first non-empty line is tested against the header heuristic; a header's
// width is recorded separately and excluded from the distribution. Blank
// lines are skipped. A decode error under the requested encoding restarts
// the entire pass under the fallback encoding; encodings are never mixed
// within one pass.
//
// Errors:
//   - *EmptyInputError if no data lines were counted.
//   - *UnreadableFileError if the fallback pass also fails to decode.
//   - Underlying I/O errors otherwise.
func Analyze(path string, o Options) (Analysis, error) {
	o = o.withDefaults()

	a, err := analyzeOnce(path, o, o.Encoding)
	if err != nil && textenc.IsDecodeError(err) && o.Encoding != textenc.Fallback() {
		o.Logger.Debug("decode error, retrying analysis under fallback encoding",
			"path", path, "fallback", textenc.Fallback().String())
		a, err = analyzeOnce(path, o, textenc.Fallback())
		if err != nil && textenc.IsDecodeError(err) {
			return Analysis{}, &UnreadableFileError{Path: path, Err: err}
		}
	}
	if err != nil {
		if textenc.IsDecodeError(err) {
			return Analysis{}, &UnreadableFileError{Path: path, Err: err}
		}
		return Analysis{}, err
	}

	if len(a.Distribution) == 0 {
		return Analysis{}, &EmptyInputError{Path: path}
	}

	if a.HeaderWidth != 0 && a.HeaderWidth == a.AdoptedWidth()+1 {
		o.Logger.Debug("header one column wider than data (normal for these extracts)",
			"path", path, "header_width", a.HeaderWidth, "data_width", a.AdoptedWidth())
	}
	return a, nil
}

func analyzeOnce(path string, o Options, enc textenc.Encoding) (Analysis, error) {
	a := Analysis{
		Distribution: make(map[int]int),
		Encoding:     enc,
	}
	sawFirst := false

	err := scanLines(path, enc, func(n int, line string) error {
		if strings.TrimSpace(line) == "" {
			a.EmptyLines++
			return nil
		}

		if !sawFirst {
			sawFirst = true
			if isHeader(line, o.Delimiter, o.Markers) {
				a.HeaderWidth = CountFields(line, o.Delimiter)
				return nil
			}
		}

		w := CountFields(line, o.Delimiter)
		if a.Distribution[w] == 0 {
			a.widthOrder = append(a.widthOrder, w)
		}
		a.Distribution[w]++
		a.DataLines++

		if a.DataLines%o.ProgressEvery == 0 {
			o.Logger.Debug("analysis pass", "path", path, "lines", a.DataLines)
		}
		return nil
	})
	if err != nil {
		return Analysis{}, err
	}
	return a, nil
}
