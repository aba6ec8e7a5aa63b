package materializer

import (
	"context"
	"strings"
	"testing"

	"github.com/jalalmostafa/timeds/internal/rlog"
	"github.com/jalalmostafa/timeds/internal/testutil"
)

func TestEnsureDatabaseIdempotent(t *testing.T) {
	p := testutil.NewPair(t)
	log := rlog.New().With("s", "db_a")
	ctx := context.Background()

	admin, err := p.TgtGw.OpenAdmin(ctx)
	if err != nil {
		t.Fatalf("OpenAdmin: %v", err)
	}
	defer admin.Close()

	if err := EnsureDatabase(ctx, p.TgtGw, admin, "anything", log); err != nil {
		t.Fatalf("first EnsureDatabase() error = %v", err)
	}
	if err := EnsureDatabase(ctx, p.TgtGw, admin, "anything", log); err != nil {
		t.Fatalf("second EnsureDatabase() error = %v", err)
	}
}

func TestEnsureTableCreatesMissing(t *testing.T) {
	p := testutil.NewPair(t)
	ctx := context.Background()

	testutil.MustExec(t, p.SrcConn, `CREATE TABLE events ("Time" INTEGER, payload TEXT)`)

	if err := EnsureTable(ctx, p.SrcConn, p.TgtConn, p.SrcGw, p.TgtGw, "events", nil); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if n := testutil.RowCount(t, p.TgtConn, "events"); n != 0 {
		t.Errorf("target rows = %d, want 0 (table created, no data copied)", n)
	}
}

func TestEnsureTableLeavesExistingAlone(t *testing.T) {
	p := testutil.NewPair(t)
	ctx := context.Background()

	testutil.MustExec(t, p.SrcConn, `CREATE TABLE events ("Time" INTEGER, payload TEXT)`)
	testutil.MustExec(t, p.TgtConn, `CREATE TABLE events ("Time" INTEGER)`)
	testutil.MustExec(t, p.TgtConn, `INSERT INTO events ("Time") VALUES (1)`)

	if err := EnsureTable(ctx, p.SrcConn, p.TgtConn, p.SrcGw, p.TgtGw, "events", []string{"events"}); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if n := testutil.RowCount(t, p.TgtConn, "events"); n != 1 {
		t.Errorf("target rows = %d, want 1 (existing table untouched)", n)
	}
}

func TestEnsureViewCreatesFromSourceDefinition(t *testing.T) {
	p := testutil.NewPair(t)
	ctx := context.Background()

	testutil.MustExec(t, p.SrcConn, `CREATE TABLE events ("Time" INTEGER, payload TEXT)`)
	testutil.MustExec(t, p.SrcConn, `INSERT INTO events ("Time", payload) VALUES (1, 'a')`)
	testutil.MustExec(t, p.SrcConn, `CREATE VIEW recent AS SELECT * FROM events WHERE "Time" > 0`)
	testutil.MustExec(t, p.TgtConn, `CREATE TABLE events ("Time" INTEGER, payload TEXT)`)
	testutil.MustExec(t, p.TgtConn, `INSERT INTO events ("Time", payload) VALUES (1, 'a')`)

	if err := EnsureView(ctx, p.SrcConn, p.TgtConn, p.SrcGw, p.TgtGw, "main", "recent", nil); err != nil {
		t.Fatalf("EnsureView() error = %v", err)
	}

	var n int
	if err := p.TgtConn.QueryRow(`SELECT COUNT(*) FROM recent`).Scan(&n); err != nil {
		t.Fatalf("query created view: %v", err)
	}
	if n != 1 {
		t.Errorf("view row count = %d, want 1", n)
	}
}

func TestEnsureViewsSkipsFailureAndContinues(t *testing.T) {
	p := testutil.NewPair(t)
	ctx := context.Background()

	testutil.MustExec(t, p.SrcConn, `CREATE TABLE events ("Time" INTEGER)`)
	testutil.MustExec(t, p.SrcConn, `CREATE VIEW good_view AS SELECT * FROM events`)
	testutil.MustExec(t, p.TgtConn, `CREATE TABLE events ("Time" INTEGER)`)

	log := rlog.New().With("s", "db_a")
	views := []string{"missing_view", "good_view"}
	EnsureViews(ctx, p.SrcConn, p.TgtConn, p.SrcGw, p.TgtGw, "main", views, nil, log)

	rows, err := p.TgtConn.Query(`SELECT name FROM sqlite_master WHERE type = 'view'`)
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	defer rows.Close()
	var found []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan view name: %v", err)
		}
		found = append(found, name)
	}
	if len(found) != 1 || found[0] != "good_view" {
		t.Errorf("views in target = %v, want only [good_view]", found)
	}
}

func TestStripToSelectDropsCreateViewPrefix(t *testing.T) {
	got := stripToSelect("CREATE VIEW v AS SELECT * FROM t")
	if !strings.HasPrefix(strings.ToUpper(got), "SELECT") {
		t.Errorf("stripToSelect() = %q, want it to start with SELECT", got)
	}
}

func TestStripToSelectLeavesBareSelectAlone(t *testing.T) {
	got := stripToSelect("  select * from t  ")
	if got != "select * from t" {
		t.Errorf("stripToSelect() = %q, want trimmed bare select", got)
	}
}
