// Package dbgateway builds connection URLs, opens pooled engines, and
// introspects schemas/tables/views for the three supported drivers
// (mysql, postgres, sqlite) behind one driver-agnostic surface.
package dbgateway

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/jalalmostafa/timeds/internal/config"
)

// PoolRecycle is the maximum lifetime of a pooled connection; older
// connections are closed and replaced on next use. Long-running
// workers that idle for hours between batches on quiescent tables
// must not hold a stale connection — see spec.md §4.1 and §9.
const PoolRecycle = 2 * time.Hour

// Gateway opens and introspects one host (source or target).
type Gateway struct {
	host config.HostConfig
	dlct dialect
}

// New returns a Gateway bound to a host descriptor's driver.
func New(host config.HostConfig) (*Gateway, error) {
	d, err := dialectFor(host.Driver)
	if err != nil {
		return nil, err
	}
	return &Gateway{host: host, dlct: d}, nil
}

// Dialect exposes the dialect-specific behavior internal/materializer
// needs (storage-option suffixes, identifier quoting).
type Dialect interface {
	CreateTableSuffix() string
	QuoteIdent(name string) string
	// Placeholder returns the parameter marker for the i-th (1-based)
	// bound argument in a statement: "?" for mysql/sqlite, "$i" for
	// postgres.
	Placeholder(i int) string
}

func (g *Gateway) Dialect() Dialect { return gatewayDialect{g.dlct} }

type gatewayDialect struct{ d dialect }

func (gd gatewayDialect) CreateTableSuffix() string     { return gd.d.createTableSuffix() }
func (gd gatewayDialect) QuoteIdent(name string) string { return gd.d.quoteIdent(name) }
func (gd gatewayDialect) Placeholder(i int) string      { return gd.d.placeholder(i) }

// Open opens a pooled connection scoped to database. Pools replace
// connections older than PoolRecycle to survive server-side idle
// timeouts.
func (g *Gateway) Open(ctx context.Context, database string) (*sql.DB, error) {
	dsn, err := g.dlct.dsn(g.host, database)
	if err != nil {
		return nil, err
	}
	return g.open(ctx, dsn)
}

// OpenAdmin opens an administrative connection with no database
// selected, suitable for listing schemas.
func (g *Gateway) OpenAdmin(ctx context.Context) (*sql.DB, error) {
	dsn, err := g.dlct.adminDSN(g.host)
	if err != nil {
		return nil, err
	}
	return g.open(ctx, dsn)
}

// DisplayURL renders this gateway's connection target the way an
// operator reads it in logs, with the password masked (spec.md §4.1).
func (g *Gateway) DisplayURL(database string) string {
	return DisplayURL(g.host, database)
}

func (g *Gateway) open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(g.dlct.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", g.dlct.driverName(), err)
	}
	db.SetConnMaxLifetime(PoolRecycle)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", g.dlct.driverName(), err)
	}
	return db, nil
}

// ListSchemas returns schema names on the host matching pattern. A
// nil pattern matches everything.
func (g *Gateway) ListSchemas(ctx context.Context, admin *sql.DB, pattern *regexp.Regexp) ([]string, error) {
	all, err := g.dlct.listSchemas(ctx, admin)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	if pattern == nil {
		return all, nil
	}
	var out []string
	for _, s := range all {
		if pattern.MatchString(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Reflected is a consistent-for-one-call snapshot of a schema's
// tables and views. Callers re-introspect explicitly rather than
// caching, per spec.md §4.1.
type Reflected struct {
	Tables []string
	Views  []string
}

// Reflect introspects every table and view in schema over conn (which
// must already be scoped to that database).
func (g *Gateway) Reflect(ctx context.Context, conn *sql.DB, schema string) (Reflected, error) {
	tables, views, err := g.dlct.listTablesAndViews(ctx, conn, schema)
	if err != nil {
		return Reflected{}, fmt.Errorf("reflect %s: %w", schema, err)
	}
	return Reflected{Tables: tables, Views: views}, nil
}

// ViewDefinition fetches a view's SELECT body as the driver reports
// it (may or may not include the CREATE VIEW ... AS prefix).
func (g *Gateway) ViewDefinition(ctx context.Context, conn *sql.DB, schema, view string) (string, error) {
	def, err := g.dlct.viewDefinition(ctx, conn, schema, view)
	if err != nil {
		return "", fmt.Errorf("view definition %s.%s: %w", schema, view, err)
	}
	return def, nil
}

// DatabaseExists reports whether name appears in the host's schema
// list, as seen over admin.
func (g *Gateway) DatabaseExists(ctx context.Context, admin *sql.DB, name string) (bool, error) {
	schemas, err := g.dlct.listSchemas(ctx, admin)
	if err != nil {
		return false, fmt.Errorf("list schemas: %w", err)
	}
	for _, s := range schemas {
		if s == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateDatabase creates a database over admin. A no-op for sqlite,
// where opening the file is what creates it.
func (g *Gateway) CreateDatabase(ctx context.Context, admin *sql.DB, name string) error {
	stmt := g.dlct.createDatabaseSQL(name)
	if stmt == "" {
		return nil
	}
	if _, err := admin.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}

// IsTransient classifies a connection-level error (pool disconnect,
// server gone away) as transient per spec.md §4.5's failure table:
// transient errors are retried, not rolled back and reported as fatal.
func (g *Gateway) IsTransient(err error) bool {
	return g.dlct.isTransient(err)
}
