// Package testutil backs the sqlite-based end-to-end tests described
// in SPEC_FULL.md's test-tooling section: a real lightweight engine
// standing in for a driver-agnostic source/target pair, grounded on
// the teacher's own internal/storage/sqlite/test_helpers.go pattern.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/jalalmostafa/timeds/internal/config"
	"github.com/jalalmostafa/timeds/internal/dbgateway"
)

// Pair is an opened source/target sqlite file pair plus their gateways.
type Pair struct {
	SrcConn, TgtConn *sql.DB
	SrcGw, TgtGw     *dbgateway.Gateway
}

// NewPair opens two independent sqlite files in a temp directory.
func NewPair(t *testing.T) Pair {
	t.Helper()
	dir := t.TempDir()

	srcGw, err := dbgateway.New(config.HostConfig{Driver: "sqlite", Host: filepath.Join(dir, "src.db")})
	if err != nil {
		t.Fatalf("dbgateway.New(src): %v", err)
	}
	tgtGw, err := dbgateway.New(config.HostConfig{Driver: "sqlite", Host: filepath.Join(dir, "tgt.db")})
	if err != nil {
		t.Fatalf("dbgateway.New(tgt): %v", err)
	}

	ctx := context.Background()
	srcConn, err := srcGw.Open(ctx, "")
	if err != nil {
		t.Fatalf("open src: %v", err)
	}
	tgtConn, err := tgtGw.Open(ctx, "")
	if err != nil {
		t.Fatalf("open tgt: %v", err)
	}
	t.Cleanup(func() { srcConn.Close(); tgtConn.Close() })

	return Pair{SrcConn: srcConn, TgtConn: tgtConn, SrcGw: srcGw, TgtGw: tgtGw}
}

// MustExec runs stmt against db, failing the test on error.
func MustExec(t *testing.T, db *sql.DB, stmt string, args ...any) {
	t.Helper()
	if _, err := db.Exec(stmt, args...); err != nil {
		t.Fatalf("exec %q: %v", stmt, err)
	}
}

// RowCount returns the row count of table on db.
func RowCount(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
