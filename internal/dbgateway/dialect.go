package dbgateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/jalalmostafa/timeds/internal/config"
)

// dialect hides the three supported drivers' differing DSN grammar,
// system catalogues, and storage-option syntax behind one surface.
// internal/materializer consumes CreateTableSuffix/QuoteIdent through
// the exported Dialect wrapper in gateway.go.
type dialect interface {
	driverName() string
	adminDSN(h config.HostConfig) (string, error)
	dsn(h config.HostConfig, database string) (string, error)
	listSchemas(ctx context.Context, db *sql.DB) ([]string, error)
	listTablesAndViews(ctx context.Context, db *sql.DB, schema string) (tables, views []string, err error)
	viewDefinition(ctx context.Context, db *sql.DB, schema, view string) (string, error)
	createTableSuffix() string
	quoteIdent(name string) string
	isTransient(err error) bool
	createDatabaseSQL(name string) string
	placeholder(i int) string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "mysql":
		return mysqlDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
}

// ---- mysql ----

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) adminDSN(h config.HostConfig) (string, error) {
	return mysqlDialect{}.dsn(h, "")
}

func (mysqlDialect) dsn(h config.HostConfig, database string) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = h.Username
	cfg.Passwd = h.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", h.Host, h.Port)
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (mysqlDialect) listSchemas(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema','mysql','performance_schema','sys')`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (mysqlDialect) listTablesAndViews(ctx context.Context, db *sql.DB, schema string) ([]string, []string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = ?`, schema)
	if err != nil {
		return nil, nil, err
	}
	return scanTablesAndViews(rows, "VIEW")
}

func (mysqlDialect) viewDefinition(ctx context.Context, db *sql.DB, schema, view string) (string, error) {
	var def string
	err := db.QueryRowContext(ctx,
		`SELECT view_definition FROM information_schema.views WHERE table_schema = ? AND table_name = ?`,
		schema, view).Scan(&def)
	return def, err
}

func (mysqlDialect) createTableSuffix() string { return " ENGINE=InnoDB" }

func (d mysqlDialect) createDatabaseSQL(name string) string {
	return "CREATE DATABASE IF NOT EXISTS " + d.quoteIdent(name)
}

func (mysqlDialect) quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) placeholder(int) string { return "?" }

// mysqlTransientErrors are the server error numbers that mean "the
// connection or server is temporarily unavailable," as opposed to a
// query-level failure the caller should treat as fatal: 1053 (server
// shutdown in progress), 2006 (server has gone away), 2013 (lost
// connection during query).
var mysqlTransientErrors = map[uint16]bool{
	1053: true,
	2006: true,
	2013: true,
}

func (mysqlDialect) isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		return mysqlTransientErrors[merr.Number]
	}
	return false
}

// ---- postgres ----

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "postgres" }

func (postgresDialect) adminDSN(h config.HostConfig) (string, error) {
	return postgresDialect{}.dsn(h, "postgres")
}

func (postgresDialect) dsn(h config.HostConfig, database string) (string, error) {
	if database == "" {
		database = "postgres"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		h.Host, h.Port, h.Username, h.Password, database), nil
}

func (postgresDialect) listSchemas(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT datname FROM pg_database WHERE NOT datistemplate`)
	if err != nil {
		return nil, err
	}
	return scanStrings(rows)
}

func (postgresDialect) listTablesAndViews(ctx context.Context, db *sql.DB, schema string) ([]string, []string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = $1`, "public")
	_ = schema // postgres schema selection happens via the dbname in the DSN; "schema" here is the database
	if err != nil {
		return nil, nil, err
	}
	return scanTablesAndViews(rows, "VIEW")
}

func (postgresDialect) viewDefinition(ctx context.Context, db *sql.DB, schema, view string) (string, error) {
	_ = schema
	var def string
	err := db.QueryRowContext(ctx,
		`SELECT view_definition FROM information_schema.views WHERE table_schema = 'public' AND table_name = $1`,
		view).Scan(&def)
	return def, err
}

func (postgresDialect) createTableSuffix() string { return "" }

func (d postgresDialect) createDatabaseSQL(name string) string {
	return "CREATE DATABASE " + d.quoteIdent(name)
}

func (postgresDialect) quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (postgresDialect) isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var perr *pq.Error
	if errors.As(err, &perr) {
		switch perr.Code.Class() {
		// Class 08 (connection exception) and class 57 (operator
		// intervention: admin_shutdown, crash_shutdown,
		// cannot_connect_now) both mean the connection, not the
		// statement, is the problem.
		case "08", "57":
			return true
		}
	}
	return false
}

// ---- sqlite ----

// sqliteDialect backs lightweight/test targets via the pure-Go
// ncruces/go-sqlite3 driver. A sqlite "schema" is the database file
// itself; there is no server-wide catalogue to enumerate, so
// listSchemas returns the single attached database name.
type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite3" }

func (sqliteDialect) adminDSN(h config.HostConfig) (string, error) {
	return "file:" + h.Host + "?mode=memory&cache=shared", nil
}

func (sqliteDialect) dsn(h config.HostConfig, database string) (string, error) {
	path := h.Host
	if database != "" {
		path = database
	}
	return "file:" + path, nil
}

func (sqliteDialect) listSchemas(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `PRAGMA database_list`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var seq int
		var name, file string
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sqliteDialect) listTablesAndViews(ctx context.Context, db *sql.DB, schema string) ([]string, []string, error) {
	_ = schema
	rows, err := db.QueryContext(ctx,
		`SELECT name, type FROM sqlite_master WHERE type IN ('table','view') AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, nil, err
	}
	return scanTablesAndViews(rows, "view")
}

func (sqliteDialect) viewDefinition(ctx context.Context, db *sql.DB, schema, view string) (string, error) {
	_ = schema
	var def string
	err := db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'view' AND name = ?`, view).Scan(&def)
	return def, err
}

func (sqliteDialect) createTableSuffix() string { return "" }

// sqlite has no CREATE DATABASE statement; opening the file creates
// it, so EnsureDatabase treats sqlite as always "already existing".
func (sqliteDialect) createDatabaseSQL(name string) string { return "" }

func (sqliteDialect) quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.BUSY, sqlite3.LOCKED:
			return true
		}
	}
	return false
}

// ---- shared scan helpers ----

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanTablesAndViews(rows *sql.Rows, viewTypeTag string) ([]string, []string, error) {
	defer rows.Close()
	var tables, views []string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, nil, err
		}
		if strings.EqualFold(kind, viewTypeTag) {
			views = append(views, name)
		} else {
			tables = append(tables, name)
		}
	}
	return tables, views, rows.Err()
}
