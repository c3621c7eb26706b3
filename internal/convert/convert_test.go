package convert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cresval/internal/textenc"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestSniffEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content []byte
		want    textenc.Encoding
	}{
		{"ascii", []byte("1;a;b\n"), textenc.UTF8},
		{"utf-8 accents", []byte("1;café;b\n"), textenc.UTF8},
		{"latin-1 accents", []byte("1;caf\xe9;b\n"), textenc.Latin1},
		{"empty file", nil, textenc.UTF8},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := writeTemp(t, "in.txt", tc.content)
			got, err := SniffEncoding(p)
			if err != nil {
				t.Fatalf("SniffEncoding: %v", err)
			}
			if got != tc.want {
				t.Fatalf("SniffEncoding = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestSniffEncoding_BoundarySplitRune: a multibyte character cut by the probe
// window must not push a valid UTF-8 file to the fallback.
func TestSniffEncoding_BoundarySplitRune(t *testing.T) {
	t.Parallel()

	content := make([]byte, 0, sniffLen+2)
	for len(content) < sniffLen-1 {
		content = append(content, 'a')
	}
	content = append(content, []byte("é")...) // straddles the boundary
	p := writeTemp(t, "in.txt", content)

	got, err := SniffEncoding(p)
	if err != nil {
		t.Fatalf("SniffEncoding: %v", err)
	}
	if got != textenc.UTF8 {
		t.Fatalf("SniffEncoding = %v, want UTF8", got)
	}
}

func TestTxtToCSV_Latin1ToUTF8(t *testing.T) {
	t.Parallel()

	src := writeTemp(t, "EXTRAIT 2024.txt", []byte("1;caf\xe9\n"))
	dst := filepath.Join(t.TempDir(), "csv", CSVName(src))

	if err := TxtToCSV(src, dst, textenc.Latin1); err != nil {
		t.Fatalf("TxtToCSV: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != "1;café\n" {
		t.Fatalf("output = %q", b)
	}
	if !strings.HasSuffix(dst, "EXTRAIT_2024.csv") {
		t.Fatalf("CSVName produced %q", dst)
	}
}

func TestTxtToCSV_InvalidUTF8Fails(t *testing.T) {
	t.Parallel()

	src := writeTemp(t, "in.txt", []byte("1;\xff\n"))
	err := TxtToCSV(src, filepath.Join(t.TempDir(), "out.csv"), textenc.UTF8)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if !textenc.IsDecodeError(err) {
		t.Fatalf("IsDecodeError(%v) = false", err)
	}
}

func TestCSVName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"EXTRAIT CNRPS 2024.txt", "EXTRAIT_CNRPS_2024.csv"},
		{"/data/source/plain.TXT", "plain.csv"},
		{"noext", "noext.csv"},
	}
	for _, tc := range tests {
		if got := CSVName(tc.in); got != tc.want {
			t.Fatalf("CSVName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
