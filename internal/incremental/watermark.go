package incremental

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jalalmostafa/timeds/internal/dbgateway"
)

// ReadWatermark returns the maximum orderBy value currently present in
// the target table, re-read fresh on every call — the cached
// watermark is never trusted across failures (spec.md §4.5). The
// second return is false when the target table is empty, in which
// case the caller must copy from the beginning of the source.
func ReadWatermark(ctx context.Context, tgtConn *sql.DB, gw *dbgateway.Gateway, table, orderBy string) (any, bool, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT 1",
		gw.Dialect().QuoteIdent(orderBy), gw.Dialect().QuoteIdent(table), gw.Dialect().QuoteIdent(orderBy))

	var v any
	err := tgtConn.QueryRowContext(ctx, q).Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case v == nil:
		// The column itself holds SQL NULL for every row (degenerate,
		// but not our problem to prevent): treat like an empty table.
		return nil, false, nil
	default:
		return v, true, nil
	}
}
