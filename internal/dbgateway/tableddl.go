package dbgateway

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// CopyTableDDL reflects the structural definition (columns, types,
// primary/unique keys) of sourceTable on srcConn and returns a
// CREATE TABLE statement for targetTable, with this gateway's dialect
// storage options applied. No cross-engine type rewriting is
// attempted beyond what reflection yields (spec.md §1 non-goals):
// native type strings are copied verbatim. For postgres the statement
// carries columns, types, NOT NULL, defaults and the primary key only;
// unique constraints are not copied.
func (g *Gateway) CopyTableDDL(ctx context.Context, srcConn *sql.DB, sourceTable, targetTable string) (string, error) {
	return g.dlct.copyTableDDL(ctx, srcConn, sourceTable, targetTable)
}

var mysqlCreateTableNameRE = regexp.MustCompile("(?i)^CREATE TABLE `[^`]+`")
var mysqlEngineClauseRE = regexp.MustCompile(`(?i)\)\s*ENGINE=\w+`)

func (d mysqlDialect) copyTableDDL(ctx context.Context, conn *sql.DB, sourceTable, targetTable string) (string, error) {
	var name, ddl string
	err := conn.QueryRowContext(ctx, "SHOW CREATE TABLE "+d.quoteIdent(sourceTable)).Scan(&name, &ddl)
	if err != nil {
		return "", fmt.Errorf("show create table %s: %w", sourceTable, err)
	}

	ddl = mysqlCreateTableNameRE.ReplaceAllString(ddl,
		"CREATE TABLE IF NOT EXISTS "+d.quoteIdent(targetTable))

	if mysqlEngineClauseRE.MatchString(ddl) {
		ddl = mysqlEngineClauseRE.ReplaceAllStringFunc(ddl, func(string) string {
			return ")" + d.createTableSuffix()
		})
	} else {
		ddl += d.createTableSuffix()
	}
	return ddl, nil
}

func (d postgresDialect) copyTableDDL(ctx context.Context, conn *sql.DB, sourceTable, targetTable string) (string, error) {
	cols, err := postgresColumns(ctx, conn, sourceTable)
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s has no columns or does not exist", sourceTable)
	}

	pk, err := postgresPrimaryKey(ctx, conn, sourceTable)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", d.quoteIdent(targetTable))
	parts := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		parts = append(parts, "  "+d.quoteIdent(c.name)+" "+c.columnDDL())
	}
	if len(pk) > 0 {
		quoted := make([]string, len(pk))
		for i, c := range pk {
			quoted[i] = d.quoteIdent(c)
		}
		parts = append(parts, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	b.WriteString(strings.Join(parts, ",\n"))
	b.WriteString("\n)")
	return b.String(), nil
}

func (d sqliteDialect) copyTableDDL(ctx context.Context, conn *sql.DB, sourceTable, targetTable string) (string, error) {
	var ddl string
	err := conn.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, sourceTable).Scan(&ddl)
	if err != nil {
		return "", fmt.Errorf("read sqlite_master for %s: %w", sourceTable, err)
	}
	re := regexp.MustCompile(`(?i)^CREATE TABLE\s+"?` + regexp.QuoteMeta(sourceTable) + `"?`)
	if !re.MatchString(ddl) {
		re = regexp.MustCompile(`(?i)^CREATE TABLE\s+\S+`)
	}
	return re.ReplaceAllString(ddl, "CREATE TABLE IF NOT EXISTS "+d.quoteIdent(targetTable)), nil
}

type pgColumn struct {
	name     string
	dataType string
	maxLen   sql.NullInt64
	nullable bool
	dflt     sql.NullString
}

func (c pgColumn) columnDDL() string {
	t := c.dataType
	if c.maxLen.Valid && (t == "character varying" || t == "character") {
		t = fmt.Sprintf("%s(%d)", t, c.maxLen.Int64)
	}
	parts := []string{t}
	if !c.nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.dflt.Valid {
		parts = append(parts, "DEFAULT "+c.dflt.String)
	}
	return strings.Join(parts, " ")
}

func postgresColumns(ctx context.Context, conn *sql.DB, table string) ([]pgColumn, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT column_name, data_type, character_maximum_length,
		       is_nullable = 'YES', column_default
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []pgColumn
	for rows.Next() {
		var c pgColumn
		if err := rows.Scan(&c.name, &c.dataType, &c.maxLen, &c.nullable, &c.dflt); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func postgresPrimaryKey(ctx context.Context, conn *sql.DB, table string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = 'public' AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("read primary key of %s: %w", table, err)
	}
	return scanStrings(rows)
}
