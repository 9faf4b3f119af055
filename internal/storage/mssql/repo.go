// Package mssql implements the storage.Repository load backend for SQL
// Server.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"countryetl/internal/schema"
	"countryetl/internal/storage"
)

// SQL Server caps a statement at 2100 bound parameters.
const maxBindParams = 2000

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	var cols strings.Builder
	for i, c := range spec.Columns {
		if i > 0 {
			cols.WriteString(", ")
		}
		cols.WriteString(sqlIdent(c.Name))
		cols.WriteByte(' ')
		cols.WriteString(columnDDL(c.Type))
	}

	q := fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(spec.Name, "'", "''"), sqlIdent(spec.Name), cols.String(),
	)
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}
	return nil
}

func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batchRows := maxBindParams / len(columns)
	if batchRows < 1 {
		batchRows = 1
	}

	var total int64
	for start := 0; start < len(rows); start += batchRows {
		end := start + batchRows
		if end > len(rows) {
			end = len(rows)
		}
		n, err := r.insertBatch(ctx, table, columns, rows[start:end])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Repo) insertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 0
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			p++
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
		}
		b.WriteByte(')')
	}

	res, err := r.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("mssql: insert into %s: %w", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func columnDDL(t string) string {
	switch t {
	case schema.TypeInteger:
		return "BIGINT NOT NULL"
	case schema.TypeReal:
		return "FLOAT NOT NULL"
	default:
		return "NVARCHAR(512) NOT NULL"
	}
}

func sqlIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}
