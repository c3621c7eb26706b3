package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"cresval/internal/storage"
)

// TestLoader_EndToEnd loads a small repaired extract into a file-backed
// database and reads it back.
func TestLoader_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "test.db")

	l, err := New(ctx, storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	cols := []string{"matricul", "cin", "sexe"}
	if err := l.EnsureTable(ctx, "cnrps", cols); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Second call must be a no-op.
	if err := l.EnsureTable(ctx, "cnrps", cols); err != nil {
		t.Fatalf("EnsureTable (again): %v", err)
	}

	csvPath := filepath.Join(dir, "in.csv")
	content := "matricul;cin;sexe\n100;1;M\n101;2;F\n"
	if err := os.WriteFile(csvPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := l.LoadCSV(ctx, csvPath, ';', "cnrps", cols)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded = %d, want 2", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "cnrps"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	var sexe string
	if err := db.QueryRowContext(ctx,
		`SELECT "sexe" FROM "cnrps" WHERE "matricul" = ?`, "101").Scan(&sexe); err != nil {
		t.Fatalf("select: %v", err)
	}
	if sexe != "F" {
		t.Fatalf("sexe = %q, want F", sexe)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	got := buildInsertSQL("t", []string{"a", "b"})
	want := `INSERT INTO "t" ("a", "b") VALUES (?, ?)`
	if got != want {
		t.Fatalf("buildInsertSQL = %q, want %q", got, want)
	}
}
