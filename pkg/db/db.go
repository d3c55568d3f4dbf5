package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Dialect captures the SQL differences between the supported backends.
type Dialect struct {
	// Driver is the database/sql driver name.
	Driver string
	// IDColumn declares the auto-incrementing primary key.
	IDColumn string
	// WordType is the column type used for headwords.
	WordType string
	// IfNotExists is true when the backend's tables and indices are created
	// with IF NOT EXISTS. Without it PrepareSchema fails on existing objects.
	IfNotExists bool
	// IndexIfNotExists is true when CREATE INDEX accepts IF NOT EXISTS.
	IndexIfNotExists bool
	// DropIndexIfExists is true when indices can be dropped independently of
	// their table with DROP INDEX IF EXISTS.
	DropIndexIfExists bool
	// IndexPrefix, if non-zero, limits indexed text columns to a prefix length.
	IndexPrefix int
	// Dollar placeholders ($1, $2) instead of ?.
	Dollar bool
}

var (
	SQLite = Dialect{
		Driver:            "sqlite3",
		IDColumn:          "id INTEGER PRIMARY KEY AUTOINCREMENT",
		WordType:          "TEXT COLLATE NOCASE",
		DropIndexIfExists: true,
	}
	Postgres = Dialect{
		Driver:            "postgres",
		IDColumn:          "id SERIAL PRIMARY KEY",
		WordType:          "TEXT",
		IfNotExists:       true,
		IndexIfNotExists:  true,
		DropIndexIfExists: true,
		Dollar:            true,
	}
	MySQL = Dialect{
		Driver:      "mysql",
		IDColumn:    "id BIGINT AUTO_INCREMENT PRIMARY KEY",
		WordType:    "TEXT",
		IfNotExists: true,
		IndexPrefix: 191,
	}
)

// DialectFor returns the dialect registered under a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case SQLite.Driver:
		return SQLite, nil
	case Postgres.Driver:
		return Postgres, nil
	case MySQL.Driver:
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
}

// Placeholders returns n bind parameters for the dialect.
func (d Dialect) Placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		if d.Dollar {
			ps[i] = fmt.Sprintf("$%d", i+1)
		} else {
			ps[i] = "?"
		}
	}
	return strings.Join(ps, ", ")
}

func (d Dialect) createTable(table string, columns []string) string {
	ine := ""
	if d.IfNotExists {
		ine = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (\n\t%s\n)", ine, table, strings.Join(append([]string{d.IDColumn}, columns...), ",\n\t"))
}

func (d Dialect) createIndex(name, table, column string) string {
	ine := ""
	if d.IndexIfNotExists {
		ine = "IF NOT EXISTS "
	}
	if d.IndexPrefix > 0 {
		column = fmt.Sprintf("%s(%d)", column, d.IndexPrefix)
	}
	return fmt.Sprintf("CREATE INDEX %s%s ON %s (%s)", ine, name, table, column)
}

func (d Dialect) dropStatements(tables []string) []string {
	var stmts []string
	if d.DropIndexIfExists {
		for _, t := range tables {
			for _, c := range indexedColumns(t) {
				stmts = append(stmts, "DROP INDEX IF EXISTS "+indexName(t, c))
			}
		}
	}
	for _, t := range tables {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+t)
	}
	return stmts
}

// indexedColumns lists the columns BuildIndices indexes on table. Entry
// tables also get a part of speech index.
func indexedColumns(table string) []string {
	if table == TableWords {
		return []string{"word"}
	}
	return []string{"word", "part_of_speech"}
}

func indexName(table, column string) string {
	return "index_" + table + "_" + column
}

// Open connects to dsn with the dialect's driver and verifies the connection.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	conn, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", d.Driver)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "connecting to %s database", d.Driver)
	}
	return conn, nil
}

// execAll runs statements in order, stopping at the first failure.
func execAll(ctx context.Context, db DBExecutor, stmts []string) error {
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, s); err != nil {
			return errors.Wrapf(err, "executing %q", firstLine(s))
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
