// Package convert turns raw .txt extracts into UTF-8 CSV working copies.
//
// The source extracts arrive from several agencies with no agreed encoding,
// so each file is sniffed before conversion. The converted copy is what every
// later pass (analysis, repair, validation, export) reads; after conversion
// the rest of the pipeline only ever sees UTF-8.
package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"cresval/internal/textenc"
)

// sniffLen bounds how much of the file the encoding probe reads.
const sniffLen = 10 * 1024

// SniffEncoding inspects the first 10 KiB of path and decides which supported
// encoding to decode it under. Valid UTF-8 wins; anything else resolves to
// the byte-preserving fallback. An empty file is UTF-8 by definition.
func SniffEncoding(path string) (textenc.Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return textenc.UTF8, err
	}
	defer f.Close()

	sample := make([]byte, sniffLen)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return textenc.UTF8, err
	}
	sample = sample[:n]
	if len(sample) == 0 {
		return textenc.UTF8, nil
	}

	// The probe may cut a multibyte sequence at the 10 KiB boundary; trim the
	// incomplete trailing rune before judging validity.
	if n == sniffLen {
		for i := 0; i < utf8.UTFMax && len(sample) > 0; i++ {
			r, size := utf8.DecodeLastRune(sample)
			if r != utf8.RuneError || size != 1 {
				break
			}
			sample = sample[:len(sample)-1]
		}
	}

	if utf8.Valid(sample) {
		return textenc.UTF8, nil
	}
	return textenc.Fallback(), nil
}

// TxtToCSV copies src to dst, decoding under enc and writing UTF-8. The
// content is not altered in any other way: delimiters, line breaks, and
// anomalies all pass through for the repair stage to deal with. Parent
// directories of dst are created as needed.
func TxtToCSV(src, dst string, enc textenc.Encoding) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, textenc.NewReader(in, enc)); err != nil {
		return fmt.Errorf("convert %s: %w", src, err)
	}
	return out.Close()
}

// CSVName derives the working-copy file name for a source extract: spaces
// become underscores and the extension becomes .csv.
func CSVName(src string) string {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return strings.ReplaceAll(stem, " ", "_") + ".csv"
}
