// Package sqlite implements the storage.Loader interface for SQLite, the
// backend used for local runs and tests where no server is available.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"cresval/internal/storage"
)

type loader struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New creates a SQLite-backed loader. The DSN is a file path or ":memory:".
func New(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &loader{db: db}, nil
}

func (l *loader) Close() { _ = l.db.Close() }

func (l *loader) EnsureTable(ctx context.Context, table string, columns []string) error {
	if _, err := l.db.ExecContext(ctx, buildCreateSQL(table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// LoadCSV inserts each batch inside one transaction. SQLite commits are
// fsync-bound, so per-row autocommit would dominate the load time.
func (l *loader) LoadCSV(ctx context.Context, path string, delim rune, table string, columns []string) (int64, error) {
	return storage.BatchCSV(path, delim, columns, storage.DefaultBatchSize, func(rows [][]any) error {
		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, buildInsertSQL(table, columns))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return err
			}
		}
		if err := stmt.Close(); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func buildCreateSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
		b.WriteString(" TEXT")
	}
	b.WriteString(")")
	return b.String()
}

func buildInsertSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES (")
	for i := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
	}
	b.WriteString(")")
	return b.String()
}

func ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
