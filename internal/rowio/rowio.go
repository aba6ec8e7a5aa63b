// Package rowio carries rows between two database/sql handles without
// an ORM: generic column-keyed scan on read, multi-row batched INSERT
// on write. Used by both internal/dynamiccopy (full reinsert) and
// internal/incremental (batch append).
package rowio

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Batch is a read result: column names plus each row's values in the
// same order, generic enough to round-trip through any of the three
// supported dialects' native types.
type Batch struct {
	Columns []string
	Rows    [][]any
}

func (b Batch) Len() int { return len(b.Rows) }

// ReadAll runs query (with args) and materializes every row. Used for
// the dynamic-copy path's whole-table read and for the incremental
// path's LIMIT-bounded batch read.
func ReadAll(ctx context.Context, conn *sql.DB, query string, args ...any) (Batch, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return Batch{}, err
	}
	defer rows.Close()
	return scan(rows)
}

func scan(rows *sql.Rows) (Batch, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Batch{}, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Batch{}, err
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return Batch{}, err
	}
	return Batch{Columns: cols, Rows: out}, nil
}

// Placeholders builds the "?"/"$n"-style parameter markers for a
// single row given a dialect's Placeholder function, offset by base
// already-consumed parameters.
func placeholders(n, base int, placeholder func(i int) string) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = placeholder(base + i + 1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// QuoteIdent and Placeholder are the two dialect hooks InsertBatch
// needs; internal/dbgateway.Dialect already satisfies this shape.
type Dialect interface {
	QuoteIdent(name string) string
	Placeholder(i int) string
}

// InsertBatch writes every row in b into table over tx in one
// multi-row INSERT statement. Callers are responsible for the
// transaction boundary (commit/rollback) — this never commits itself,
// so a write failure never leaves a partial batch visible.
func InsertBatch(ctx context.Context, tx *sql.Tx, d Dialect, table string, b Batch) error {
	if b.Len() == 0 {
		return nil
	}

	quotedCols := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		quotedCols[i] = d.QuoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", d.QuoteIdent(table), strings.Join(quotedCols, ", "))

	args := make([]any, 0, len(b.Columns)*b.Len())
	for i, row := range b.Rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(len(b.Columns), len(args), d.Placeholder))
		args = append(args, row...)
	}

	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return err
}
