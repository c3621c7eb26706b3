// Package mssql implements the storage.Loader interface for Microsoft SQL
// Server, where the fund's reporting warehouse lives.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"cresval/internal/storage"
)

// SQL Server caps parameters per statement at 2100; batches are re-split so
// rows*columns stays under it.
const maxParams = 2000

type loader struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New creates a SQL Server-backed loader from a sqlserver:// DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Loader, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(16)
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

func (l *loader) LoadCSV(ctx context.Context, path string, delim rune, table string, columns []string) (int64, error) {
	rowsPerStmt := maxParams / max(len(columns), 1)
	if rowsPerStmt < 1 {
		rowsPerStmt = 1
	}
	return storage.BatchCSV(path, delim, columns, rowsPerStmt, func(rows [][]any) error {
		query, args := buildInsertSQL(table, columns, rows)
		_, err := l.db.ExecContext(ctx, query, args...)
		return err
	})
}

func buildCreateSQL(table string, columns []string) string {
	var b strings.Builder
	b.WriteString("IF OBJECT_ID(N'")
	b.WriteString(strings.ReplaceAll(table, "'", "''"))
	b.WriteString("', N'U') IS NULL CREATE TABLE ")
	b.WriteString(ident(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
		b.WriteString(" NVARCHAR(MAX)")
	}
	b.WriteString(")")
	return b.String()
}

// buildInsertSQL renders one multi-row INSERT with @pN placeholders. Pure, so
// placeholder numbering is testable without a server.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
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
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(n))
			n++
			args = append(args, row[j])
		}
		b.WriteString(")")
	}
	return b.String(), args
}

func ident(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}
