// Package incremental implements the watermark-resumed batch-copy
// loop: the engineering core of the whole system. For every Ordered
// table it repeatedly reads the current target watermark, fetches the
// next batch from the source strictly beyond it, writes the batch to
// the target in one transaction, and repeats until a batch comes back
// empty.
//
// The strict "order_by > watermark" predicate is deliberate (spec.md
// §4.5): when rows sharing one order_by value are split across a batch
// boundary, the watermark becomes that value and the rows left out of
// the earlier batch are never selected, so they are not copied. This
// is documented, known behavior, not a bug silently papered over — an
// operator who needs every row copied under ties should pick an
// order_by column that is unique in practice (see DESIGN.md's Open
// Question resolutions).
package incremental

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jalalmostafa/timeds/internal/dbgateway"
	"github.com/jalalmostafa/timeds/internal/rlog"
	"github.com/jalalmostafa/timeds/internal/rowio"
)

// transientRetryDelay keeps a persistent transient failure from
// busy-looping the worker goroutine.
const transientRetryDelay = 500 * time.Millisecond

// RunTable drives the batch-copy loop for one Ordered table until the
// source is caught up (an empty batch) or ctx is canceled. It returns
// nil on a clean catch-up, ctx.Err() on cancellation, and a non-nil
// error only for a fatal, non-transient failure the caller should
// treat as this table's per-table error (log, skip, move to the next
// table — spec.md §7).
func RunTable(
	ctx context.Context,
	srcConn, tgtConn *sql.DB,
	srcGw, tgtGw *dbgateway.Gateway,
	sourceTable, targetTable, orderBy string,
	batchSize int,
	log *rlog.Logger,
) error {
	batchNb := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		iterStart := time.Now()

		watermark, has, err := ReadWatermark(ctx, tgtConn, tgtGw, targetTable, orderBy)
		if err != nil {
			if tgtGw.IsTransient(err) {
				log.Warn(fmt.Sprintf("transient watermark read error on %s, retrying", targetTable))
				sleep(ctx, transientRetryDelay)
				continue
			}
			return fmt.Errorf("read watermark for %s: %w", targetTable, err)
		}

		readStart := time.Now()
		batch, err := readBatch(ctx, srcConn, srcGw, sourceTable, orderBy, watermark, has, batchSize)
		readS := time.Since(readStart).Seconds()
		if err != nil {
			if srcGw.IsTransient(err) {
				log.Warn(fmt.Sprintf("transient read error on %s, retrying", sourceTable))
				sleep(ctx, transientRetryDelay)
				continue
			}
			return fmt.Errorf("read batch for %s: %w", sourceTable, err)
		}

		if batch.Len() == 0 {
			return nil
		}

		writeStart := time.Now()
		err = writeBatch(ctx, tgtConn, tgtGw, targetTable, batch)
		writeS := time.Since(writeStart).Seconds()
		if err != nil {
			if tgtGw.IsTransient(err) {
				log.Warn(fmt.Sprintf("transient write error on %s, retrying same batch", targetTable))
				sleep(ctx, transientRetryDelay)
				continue
			}
			// Rolled back already inside writeBatch. Re-read the
			// watermark from the target on the next iteration —
			// never trust the value we just computed.
			log.Error(fmt.Sprintf("batch write failed for %s, rolled back", targetTable), err)
			continue
		}

		batchNb++
		log.BatchInclude(batchNb, batch.Len(), sourceTable, watermark, time.Since(iterStart).Seconds(), readS, writeS)
	}
}

func readBatch(
	ctx context.Context,
	srcConn *sql.DB,
	srcGw *dbgateway.Gateway,
	table, orderBy string,
	watermark any,
	hasWatermark bool,
	batchSize int,
) (rowio.Batch, error) {
	d := srcGw.Dialect()
	quotedTable := d.QuoteIdent(table)
	quotedOrderBy := d.QuoteIdent(orderBy)

	if !hasWatermark {
		q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC LIMIT %d", quotedTable, quotedOrderBy, batchSize)
		return rowio.ReadAll(ctx, srcConn, q)
	}

	q := fmt.Sprintf("SELECT * FROM %s WHERE %s > %s ORDER BY %s ASC LIMIT %d",
		quotedTable, quotedOrderBy, d.Placeholder(1), quotedOrderBy, batchSize)
	return rowio.ReadAll(ctx, srcConn, q, watermark)
}

func writeBatch(ctx context.Context, tgtConn *sql.DB, tgtGw *dbgateway.Gateway, table string, batch rowio.Batch) error {
	tx, err := tgtConn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := rowio.InsertBatch(ctx, tx, tgtGw.Dialect(), table, batch); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
