package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/japaniel/wiktload/pkg/dictionary"
	"github.com/japaniel/wiktload/pkg/metrics"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Layout selects how entries are spread over tables.
type Layout string

const (
	LayoutSingle      Layout = "single"
	LayoutPartitioned Layout = "partitioned"
)

// Partition names the target of an InsertEntries call.
type Partition int

const (
	PartitionAll Partition = iota
	PartitionLower
	PartitionUpper
)

func (p Partition) String() string {
	switch p {
	case PartitionAll:
		return "all"
	case PartitionLower:
		return "lower"
	case PartitionUpper:
		return "upper"
	}
	return fmt.Sprintf("Partition(%d)", int(p))
}

const (
	TableEntries = "entries"
	TableLower   = "entries_lower"
	TableUpper   = "entries_upper"
	TableWords   = "entry_words"
)

// Sink receives the ordered output of a run. Calls must follow the order
// PrepareSchema, InsertEntries, InsertWords, BuildIndices.
type Sink interface {
	Layout() Layout
	PrepareSchema(ctx context.Context) error
	InsertEntries(ctx context.Context, part Partition, entries []dictionary.Entry) error
	InsertWords(ctx context.Context, words []string) error
	BuildIndices(ctx context.Context) error
}

// Options configures a SQLSink. It is fixed at construction.
type Options struct {
	Dialect      Dialect
	Layout       Layout
	BatchSize    int
	DropExisting bool
}

// SQLSink is the Sink for every supported SQL backend.
type SQLSink struct {
	db   *sql.DB
	opts Options

	// Logger, if set, receives per-operation failures. Defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics, if set, counts committed rows per table.
	Metrics *metrics.Metrics
}

var _ Sink = (*SQLSink)(nil)

// NewSQLSink returns a sink writing to conn.
func NewSQLSink(conn *sql.DB, opts Options) *SQLSink {
	if opts.Layout == "" {
		opts.Layout = LayoutSingle
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	return &SQLSink{db: conn, opts: opts}
}

func (s *SQLSink) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *SQLSink) Layout() Layout { return s.opts.Layout }

// EntryTables returns the entry tables for the sink's layout.
func (s *SQLSink) EntryTables() []string {
	if s.opts.Layout == LayoutPartitioned {
		return []string{TableLower, TableUpper}
	}
	return []string{TableEntries}
}

func (s *SQLSink) tables() []string {
	return append(s.EntryTables(), TableWords)
}

func (s *SQLSink) schemaStatements() []string {
	d := s.opts.Dialect
	var stmts []string
	if s.opts.DropExisting {
		stmts = append(stmts, d.dropStatements(s.tables())...)
	}
	for _, t := range s.EntryTables() {
		stmts = append(stmts, d.createTable(t, entryColumnDefs(d)))
	}
	stmts = append(stmts, d.createTable(TableWords, []string{"word " + d.WordType + " NOT NULL"}))
	return stmts
}

// PrepareSchema creates the entry and word tables. Backends without
// CREATE ... IF NOT EXISTS fail when the tables already exist, unless
// DropExisting is set.
func (s *SQLSink) PrepareSchema(ctx context.Context) error {
	if err := execAll(ctx, s.db, s.schemaStatements()); err != nil {
		s.logger().Error("preparing schema", zap.Error(err))
		return errors.Wrap(err, "preparing schema")
	}
	s.logger().Debug("schema ready", zap.Strings("tables", s.tables()))
	return nil
}

func (s *SQLSink) tableFor(part Partition) (string, error) {
	switch {
	case part == PartitionAll && s.opts.Layout == LayoutSingle:
		return TableEntries, nil
	case part == PartitionLower && s.opts.Layout == LayoutPartitioned:
		return TableLower, nil
	case part == PartitionUpper && s.opts.Layout == LayoutPartitioned:
		return TableUpper, nil
	}
	return "", fmt.Errorf("partition %s not valid for %s layout", part, s.opts.Layout)
}

func (s *SQLSink) insertSQL(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), s.opts.Dialect.Placeholders(len(columns)))
}

// InsertEntries writes entries to the partition's table in the given order.
func (s *SQLSink) InsertEntries(ctx context.Context, part Partition, entries []dictionary.Entry) error {
	table, err := s.tableFor(part)
	if err != nil {
		return err
	}
	query := s.insertSQL(table, entryColumns)
	rows := make([][]interface{}, len(entries))
	for i, e := range entries {
		rows[i] = entryArgs(e)
	}
	return s.insertRows(ctx, table, query, rows)
}

// InsertWords writes the distinct headword list, one row per word.
func (s *SQLSink) InsertWords(ctx context.Context, words []string) error {
	query := s.insertSQL(TableWords, []string{"word"})
	rows := make([][]interface{}, len(words))
	for i, w := range words {
		rows[i] = []interface{}{w}
	}
	return s.insertRows(ctx, TableWords, query, rows)
}

func (s *SQLSink) insertRows(ctx context.Context, table, query string, rows [][]interface{}) error {
	log := s.logger().With(zap.String("table", table))
	bw := NewBatchWriter(s.db, s.opts.BatchSize, 0)
	bw.OnError = func(err error) {
		log.Error("batch insert failed", zap.Error(err))
	}

	var submitErr error
	for _, args := range rows {
		if err := ctx.Err(); err != nil {
			submitErr = err
			break
		}
		err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, query, args...)
			return err
		})
		if err != nil {
			submitErr = err
			break
		}
	}
	closeErr := bw.Close()

	committed := bw.Committed()
	s.Metrics.AddRows(table, int(committed))
	log.Debug("rows inserted", zap.Int64("committed", committed), zap.Int("total", len(rows)))

	if closeErr != nil {
		return errors.Wrapf(closeErr, "inserting into %s", table)
	}
	if submitErr != nil {
		return errors.Wrapf(submitErr, "inserting into %s", table)
	}
	return nil
}

// BuildIndices creates the headword index on every table and the part of
// speech index on the entry tables.
func (s *SQLSink) BuildIndices(ctx context.Context) error {
	var stmts []string
	for _, t := range s.tables() {
		for _, c := range indexedColumns(t) {
			stmts = append(stmts, s.opts.Dialect.createIndex(indexName(t, c), t, c))
		}
	}
	if err := execAll(ctx, s.db, stmts); err != nil {
		s.logger().Error("building indices", zap.Error(err))
		return errors.Wrap(err, "building indices")
	}
	return nil
}

// LookupWord returns the stored entries of table whose headword matches
// word under the column's collation, in insertion order.
func (s *SQLSink) LookupWord(ctx context.Context, table, word string) ([]dictionary.Entry, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE word = %s ORDER BY id",
		strings.Join(entryColumns, ", "), table, s.opts.Dialect.Placeholders(1))
	rows, err := s.db.QueryContext(ctx, query, word)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	defer rows.Close()

	var out []dictionary.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Words returns the stored headword list in insertion order.
func (s *SQLSink) Words(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT word FROM "+TableWords+" ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "querying words")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Count returns the number of rows in table.
func (s *SQLSink) Count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting %s", table)
	}
	return n, nil
}
