// Package dynamiccopy refreshes "dynamic" tables — small lookup-like
// tables lacking a monotonic ordering column — by dropping,
// recreating, and bulk-reinserting them from the source on every run.
// A periodic full refresh is cheaper than change tracking for tables
// this small.
package dynamiccopy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jalalmostafa/timeds/internal/dbgateway"
	"github.com/jalalmostafa/timeds/internal/rlog"
	"github.com/jalalmostafa/timeds/internal/rowio"
)

// CopyTable drops table in the target (if present), recreates it from
// the source's structural definition, and reinserts every source row
// — all inside one transaction. On any failure the transaction is
// rolled back; the caller (CopyAll) logs and moves on to the next
// table rather than aborting the whole dynamic pass.
func CopyTable(ctx context.Context, srcConn, tgtConn *sql.DB, srcGw, tgtGw *dbgateway.Gateway, table string) (rows int, err error) {
	batch, err := rowio.ReadAll(ctx, srcConn, fmt.Sprintf("SELECT * FROM %s", srcGw.Dialect().QuoteIdent(table)))
	if err != nil {
		return 0, fmt.Errorf("read source table %s: %w", table, err)
	}

	ddl, err := srcGw.CopyTableDDL(ctx, srcConn, table, table)
	if err != nil {
		return 0, fmt.Errorf("copy ddl for %s: %w", table, err)
	}

	tx, err := tgtConn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx for %s: %w", table, err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tgtGw.Dialect().QuoteIdent(table))); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("drop table %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("recreate table %s: %w", table, err)
	}
	if err := rowio.InsertBatch(ctx, tx, tgtGw.Dialect(), table, batch); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("reinsert rows for %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", table, err)
	}

	return batch.Len(), nil
}

// CopyAll runs CopyTable for every table in tables, logging and
// continuing past any single table's failure (spec.md §4.4).
func CopyAll(ctx context.Context, srcConn, tgtConn *sql.DB, srcGw, tgtGw *dbgateway.Gateway, tables []string, log *rlog.Logger) {
	for _, table := range tables {
		start := time.Now()
		n, err := CopyTable(ctx, srcConn, tgtConn, srcGw, tgtGw, table)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			log.Error(fmt.Sprintf("dynamic copy of %s failed", table), err)
			continue
		}
		log.DynamicRecreated(table)
		log.BatchDynamic(n, elapsed, table)
	}
}
