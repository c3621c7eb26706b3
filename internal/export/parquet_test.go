package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestCSVToParquet(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "in.csv")
	content := "matricul;cin;date_naissance\n" +
		"100;11111;12/03/1980\n" +
		"101;22222\n" + // short row, padded
		"102;33333;01/01/1990;extra\n" // wide row, truncated
	if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out", "in.parquet")

	st, err := CSVToParquet(src, dst, ';', nil)
	if err != nil {
		t.Fatalf("CSVToParquet: %v", err)
	}
	if st.Rows != 3 || st.Columns != 3 {
		t.Fatalf("stats = %+v", st)
	}
	if st.Padded != 1 || st.Truncated != 1 {
		t.Fatalf("stats = %+v, want one padded and one truncated row", st)
	}

	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("PAR1")) || !bytes.HasSuffix(b, []byte("PAR1")) {
		t.Fatalf("output is not a parquet file (%d bytes)", len(b))
	}
}

func TestCSVToParquet_EmptyFile(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := CSVToParquet(src, filepath.Join(t.TempDir(), "out.parquet"), ';', nil)
	if err == nil {
		t.Fatalf("expected error for file without header")
	}
}

func TestColumnName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		pos  int
		want string
	}{
		{"Matricul", 0, "matricul"},
		{"date naissance", 3, "date_naissance"},
		{"code-indem/1", 4, "code_indem_1"},
		{"", 2, "column_2"},
		{"  ", 5, "column_5"},
	}
	for _, tc := range tests {
		if got := columnName(tc.in, tc.pos); got != tc.want {
			t.Fatalf("columnName(%q, %d) = %q, want %q", tc.in, tc.pos, got, tc.want)
		}
	}
}
