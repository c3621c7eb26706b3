// Package textenc provides the small, closed set of text encodings the
// pipeline accepts, plus reader/writer constructors that decode and encode
// through them.
//
// Design constraints:
//   - Encodings are a closed enumeration, not open-ended string matching.
//     The legacy extracts are either UTF-8 or a single-byte Western encoding;
//     anything else is a configuration error caught before I/O starts.
//   - The UTF-8 path must FAIL on invalid bytes (strict decode). Silent
//     replacement would hide the corruption the fallback chain exists for.
//   - The fallback encoding (Latin-1) accepts every byte value, so a retry
//     under it can never raise a decode error.
package textenc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding identifies one supported text encoding.
type Encoding int

const (
	// UTF8 is the default encoding for modern extracts. Strictly validated.
	UTF8 Encoding = iota
	// Latin1 (ISO 8859-1) maps every byte to a rune; it is the fallback.
	Latin1
	// Windows1252 covers extracts produced on legacy Windows workstations.
	Windows1252
)

// Parse maps a configuration string onto an Encoding.
//
// Accepted aliases mirror what the legacy tooling accepted. Unknown names
// return an error so a bad config fails fast, before any file is opened.
func Parse(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return Latin1, nil
	case "windows-1252", "cp1252":
		return Windows1252, nil
	default:
		return UTF8, fmt.Errorf("textenc: unsupported encoding %q", name)
	}
}

// String returns the canonical name for the encoding.
func (e Encoding) String() string {
	switch e {
	case Latin1:
		return "latin-1"
	case Windows1252:
		return "windows-1252"
	default:
		return "utf-8"
	}
}

// Fallback returns the byte-preserving encoding used to retry a pass after a
// decode error. Latin-1 decodes every byte, so the retry cannot fail the same
// way.
func Fallback() Encoding { return Latin1 }

// NewReader wraps r so that reads yield UTF-8 text decoded from enc.
//
// For UTF8 the stream is validated rather than converted: the first invalid
// byte surfaces as encoding.ErrInvalidUTF8 from Read, which callers classify
// with IsDecodeError and use to trigger the fallback restart.
func NewReader(r io.Reader, enc Encoding) io.Reader {
	switch enc {
	case Latin1:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	case Windows1252:
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	default:
		return transform.NewReader(r, encoding.UTF8Validator)
	}
}

// NewWriter wraps w so that UTF-8 text written to it is encoded as enc.
// Used when the repaired output must carry the same encoding that the input
// resolved to. Close flushes any transform state; it does not close w.
func NewWriter(w io.Writer, enc Encoding) io.WriteCloser {
	switch enc {
	case Latin1:
		return transform.NewWriter(w, charmap.ISO8859_1.NewEncoder())
	case Windows1252:
		return transform.NewWriter(w, charmap.Windows1252.NewEncoder())
	default:
		return nopWriteCloser{w}
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// IsDecodeError reports whether err is a recoverable decode failure, i.e. one
// that warrants restarting the pass under Fallback().
func IsDecodeError(err error) bool {
	return errors.Is(err, encoding.ErrInvalidUTF8)
}
