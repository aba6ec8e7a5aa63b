// Package worker runs one replication pass over one (source schema,
// target schema) pair: reflect both sides, classify the source's
// tables, and run whichever of the views/dynamic/incremental passes
// the run mode calls for.
package worker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jalalmostafa/timeds/internal/classify"
	"github.com/jalalmostafa/timeds/internal/config"
	"github.com/jalalmostafa/timeds/internal/dbgateway"
	"github.com/jalalmostafa/timeds/internal/dynamiccopy"
	"github.com/jalalmostafa/timeds/internal/incremental"
	"github.com/jalalmostafa/timeds/internal/materializer"
	"github.com/jalalmostafa/timeds/internal/rlog"
)

// Context owns everything one (source_db, target_db) worker needs: an
// open connection and gateway on each side, the rule that selected
// this schema pair, and a logger already scoped to {scheme, db}.
type Context struct {
	Scheme string

	SourceDB, TargetDB string
	SrcConn, TgtConn   *sql.DB
	SrcGw, TgtGw       *dbgateway.Gateway

	Rule      *config.DatabaseRule
	BatchSize int
	Log       *rlog.Logger

	// OnlyDynamicAndViews, when true, skips the incremental pass
	// (spec.md's -d / --only-dynamic-and-views mode).
	OnlyDynamicAndViews bool
}

func (wc *Context) batchSize() int {
	if wc.BatchSize > 0 {
		return wc.BatchSize
	}
	return config.DefaultBatchSize
}

// Run executes one full pass for wc.SourceDB -> wc.TargetDB (whose
// database the caller has already ensured): ensure the target's
// Ordered tables exist, run the views pass, run the
// dynamic-copy pass, and — unless OnlyDynamicAndViews is set — run the
// incremental pass over every Ordered table. Per-table failures are
// logged and skipped; Run only returns an error for something that
// prevents the whole pair from proceeding (reflection, classification
// input).
func (wc *Context) Run(ctx context.Context) error {
	wc.Log.ReflectingSource(wc.SourceDB, wc.SrcGw.DisplayURL(wc.SourceDB))
	srcRef, err := wc.SrcGw.Reflect(ctx, wc.SrcConn, wc.SourceDB)
	if err != nil {
		return fmt.Errorf("reflect source %s: %w", wc.SourceDB, err)
	}

	wc.Log.ReflectingTarget(wc.TargetDB, wc.TgtGw.DisplayURL(wc.TargetDB))
	tgtRef, err := wc.TgtGw.Reflect(ctx, wc.TgtConn, wc.TargetDB)
	if err != nil {
		return fmt.Errorf("reflect target %s: %w", wc.TargetDB, err)
	}

	viewNames := make(map[string]bool, len(srcRef.Views))
	for _, v := range srcRef.Views {
		viewNames[v] = true
	}
	allSource := append(append([]string{}, srcRef.Tables...), srcRef.Views...)
	result := classify.Classify(allSource, viewNames, wc.Rule)

	for _, table := range result.Ordered {
		if err := materializer.EnsureTable(ctx, wc.SrcConn, wc.TgtConn, wc.SrcGw, wc.TgtGw, table, tgtRef.Tables); err != nil {
			wc.Log.Error(fmt.Sprintf("ensure table %s failed", table), err)
			continue
		}
	}

	materializer.EnsureViews(ctx, wc.SrcConn, wc.TgtConn, wc.SrcGw, wc.TgtGw, wc.SourceDB, result.Views, tgtRef.Views, wc.Log)

	dynamiccopy.CopyAll(ctx, wc.SrcConn, wc.TgtConn, wc.SrcGw, wc.TgtGw, result.Dynamic, wc.Log)

	if wc.OnlyDynamicAndViews {
		return nil
	}

	orderBy := wc.Rule.OrderBy
	if orderBy == "" {
		orderBy = config.DefaultOrderBy
	}

	for _, table := range result.Ordered {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := incremental.RunTable(ctx, wc.SrcConn, wc.TgtConn, wc.SrcGw, wc.TgtGw, table, table, orderBy, wc.batchSize(), wc.Log); err != nil {
			wc.Log.Error(fmt.Sprintf("incremental run for %s failed", table), err)
			continue
		}
	}

	return nil
}
