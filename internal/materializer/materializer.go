// Package materializer creates missing target databases, tables, and
// views. It never drops or alters an existing target table or view
// outside the dynamic-copy path (internal/dynamiccopy) — schema
// divergence between source and target is the operator's problem.
package materializer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/jalalmostafa/timeds/internal/dbgateway"
	"github.com/jalalmostafa/timeds/internal/rlog"
)

// EnsureDatabase creates the target database over admin if it does
// not already exist. Idempotent.
func EnsureDatabase(ctx context.Context, gw *dbgateway.Gateway, admin *sql.DB, name string, log *rlog.Logger) error {
	exists, err := gw.DatabaseExists(ctx, admin, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := gw.CreateDatabase(ctx, admin, name); err != nil {
		return err
	}
	log.DatabaseCreated(name)
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// EnsureTable creates sourceTable in the target database if a table
// of the same name is not already present in targetTables, copying
// the source's structural definition. The CREATE TABLE statement is
// built by the source gateway, so the storage options applied are the
// source dialect's; no conversion to the target dialect is made. An
// existing table is left unchanged (no ALTER).
func EnsureTable(
	ctx context.Context,
	srcConn, tgtConn *sql.DB,
	srcGw, tgtGw *dbgateway.Gateway,
	sourceTable string,
	targetTables []string,
) error {
	if contains(targetTables, sourceTable) {
		return nil
	}
	ddl, err := srcGw.CopyTableDDL(ctx, srcConn, sourceTable, sourceTable)
	if err != nil {
		return fmt.Errorf("copy ddl for %s: %w", sourceTable, err)
	}
	if _, err := tgtConn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", sourceTable, err)
	}
	return nil
}

var selectRE = regexp.MustCompile(`(?is)select`)

// stripToSelect removes any leading prefix up to and including the
// first case-insensitive occurrence of SELECT, per spec.md §4.2: some
// engines return "CREATE VIEW ... AS SELECT ..." for a view's
// definition, others return just the SELECT. Prefer introspecting
// through a driver API that already separates the two where one
// exists (spec.md §9); this is the documented fallback.
func stripToSelect(definition string) string {
	loc := selectRE.FindStringIndex(definition)
	if loc == nil {
		return strings.TrimSpace(definition)
	}
	return strings.TrimSpace(definition[loc[0]:])
}

// EnsureView creates view in the target if absent, fetching the
// source's definition text and re-wrapping the SELECT body in a
// CREATE VIEW statement executed inside a transaction.
func EnsureView(
	ctx context.Context,
	srcConn, tgtConn *sql.DB,
	srcGw, tgtGw *dbgateway.Gateway,
	sourceSchema, view string,
	targetViews []string,
) error {
	if contains(targetViews, view) {
		return nil
	}

	def, err := srcGw.ViewDefinition(ctx, srcConn, sourceSchema, view)
	if err != nil {
		return fmt.Errorf("fetch view definition for %s: %w", view, err)
	}
	body := stripToSelect(def)

	tx, err := tgtConn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for view %s: %w", view, err)
	}
	stmt := fmt.Sprintf("CREATE VIEW %s AS %s", tgtGw.Dialect().QuoteIdent(view), body)
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		tx.Rollback()
		return fmt.Errorf("create view %s: %w", view, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit view %s: %w", view, err)
	}
	return nil
}

// EnsureViews ensures every view in views exists in the target,
// logging and continuing past any single view's failure (spec.md
// §4.2): one bad view definition must not block the rest of the
// views pass.
func EnsureViews(
	ctx context.Context,
	srcConn, tgtConn *sql.DB,
	srcGw, tgtGw *dbgateway.Gateway,
	sourceSchema string,
	views []string,
	targetViews []string,
	log *rlog.Logger,
) {
	for _, v := range views {
		if err := EnsureView(ctx, srcConn, tgtConn, srcGw, tgtGw, sourceSchema, v, targetViews); err != nil {
			log.Error("ensure view failed", err)
			continue
		}
		if !contains(targetViews, v) {
			log.ViewCreated(v)
		}
	}
}
