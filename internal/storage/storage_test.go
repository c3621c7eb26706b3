package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type fakeLoader struct{}

func (fakeLoader) EnsureTable(context.Context, string, []string) error { return nil }
func (fakeLoader) LoadCSV(context.Context, string, rune, string, []string) (int64, error) {
	return 0, nil
}
func (fakeLoader) Close() {}

func TestRegisterAndNew(t *testing.T) {
	Register("fake", func(ctx context.Context, cfg Config) (Loader, error) {
		return fakeLoader{}, nil
	})

	l, err := New(context.Background(), Config{Kind: "fake", DSN: "x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Close()

	if _, err := New(context.Background(), Config{Kind: ""}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := New(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("expected error for unregistered kind")
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds() = %v, missing fake", Kinds())
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	f := func(ctx context.Context, cfg Config) (Loader, error) { return fakeLoader{}, nil }
	Register("dup", f)
	Register("dup", f)
}

func TestBatchCSV(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "in.csv")
	content := "Matricul;CIN;sexe\n" +
		"100;1;M\n" +
		"101;2;F\n" +
		"102;3\n" // short row: sexe loads as nil
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var batches [][][]any
	n, err := BatchCSV(p, ';', []string{"matricul", "sexe", "missing"}, 2, func(rows [][]any) error {
		cp := make([][]any, len(rows))
		copy(cp, rows)
		batches = append(batches, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("BatchCSV: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("batch shape = %d batches", len(batches))
	}
	if !reflect.DeepEqual(batches[0][0], []any{"100", "M", nil}) {
		t.Fatalf("first row = %#v", batches[0][0])
	}
	if !reflect.DeepEqual(batches[1][0], []any{"102", nil, nil}) {
		t.Fatalf("short row = %#v", batches[1][0])
	}
}

func TestBatchCSV_NoHeader(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := BatchCSV(p, ';', []string{"a"}, 10, func([][]any) error { return nil }); err == nil {
		t.Fatalf("expected error for empty file")
	}
}
