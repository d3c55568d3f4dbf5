package db

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/japaniel/wiktload/pkg/dictionary"
	"github.com/japaniel/wiktload/pkg/metrics"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSink(t *testing.T, layout Layout) *SQLSink {
	t.Helper()
	return NewSQLSink(setupTestDB(t), Options{Dialect: SQLite, Layout: layout, BatchSize: 2})
}

func strp(s string) *string { return &s }

func testEntry(word, pos string) dictionary.Entry {
	return dictionary.Entry{
		Word:         word,
		PartOfSpeech: pos,
		Definitions:  []string{"a definition of " + word},
	}
}

func TestPrepareSchemaFailsWhenTablesExist(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutSingle)
	require.NoError(t, s.PrepareSchema(ctx))
	err := s.PrepareSchema(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestPrepareSchemaDropExisting(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	first := NewSQLSink(conn, Options{Dialect: SQLite})
	require.NoError(t, first.PrepareSchema(ctx))
	require.NoError(t, first.InsertWords(ctx, []string{"stale"}))
	require.NoError(t, first.BuildIndices(ctx))

	again := NewSQLSink(conn, Options{Dialect: SQLite, DropExisting: true})
	require.NoError(t, again.PrepareSchema(ctx))
	n, err := again.Count(ctx, TableWords)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInsertEntriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutSingle)
	require.NoError(t, s.PrepareSchema(ctx))

	want := dictionary.Entry{
		Word:          "run",
		PartOfSpeech:  "Verb",
		Etymology:     strp("From Old English rinnan."),
		Pronunciation: strp("/ɹʌn/"),
		Plural:        nil,
		Tenses:        []string{"runs", "running", "ran"},
		Definitions:   []string{"To move swiftly.", "To flow."},
		Examples:      []string{"She runs every day."},
		Synonyms:      []string{"dash", "sprint"},
		Meronyms:      []string{"stride"},
		Derived:       []string{"runner", "runway"},
		Related:       []string{"race"},
		Homophones:    []string{},
		Forms:         []string{"runs", "running", "ran"},
	}
	entries := []dictionary.Entry{want, testEntry("walk", "Verb"), testEntry("swim", "Verb")}
	require.NoError(t, s.InsertEntries(ctx, PartitionAll, entries))

	got, err := s.LookupWord(ctx, TableEntries, "run")
	require.NoError(t, err)
	require.Len(t, got, 1)
	if diff := cmp.Diff(want, got[0], cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	n, err := s.Count(ctx, TableEntries)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLookupWordIsCaseInsensitiveOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutSingle)
	require.NoError(t, s.PrepareSchema(ctx))
	require.NoError(t, s.InsertEntries(ctx, PartitionAll, []dictionary.Entry{
		testEntry("Run", "Verb"), testEntry("run", "Noun"),
	}))

	got, err := s.LookupWord(ctx, TableEntries, "RUN")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Run", got[0].Word)
	assert.Equal(t, "run", got[1].Word)
}

func TestInsertWordsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutSingle)
	reg := prometheus.NewRegistry()
	s.Metrics = metrics.New(reg)
	require.NoError(t, s.PrepareSchema(ctx))

	words := []string{"apple", "Banana", "cherry", "date", "elder"}
	require.NoError(t, s.InsertWords(ctx, words))

	got, err := s.Words(ctx)
	require.NoError(t, err)
	assert.Equal(t, words, got)
	assert.Equal(t, 5.0, testutil.ToFloat64(s.Metrics.RowsInserted.WithLabelValues(TableWords)))
}

func TestPartitionedLayout(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutPartitioned)
	require.NoError(t, s.PrepareSchema(ctx))

	lower := []dictionary.Entry{testEntry("apple", "Noun"), testEntry("kite", "Noun")}
	upper := []dictionary.Entry{testEntry("m", "Letter"), testEntry("zebra", "Noun"), testEntry("zoo", "Noun")}
	require.NoError(t, s.InsertEntries(ctx, PartitionLower, lower))
	require.NoError(t, s.InsertEntries(ctx, PartitionUpper, upper))
	require.NoError(t, s.InsertWords(ctx, []string{"apple", "kite", "m", "zebra", "zoo"}))
	require.NoError(t, s.BuildIndices(ctx))

	for table, want := range map[string]int{TableLower: 2, TableUpper: 3, TableWords: 5} {
		n, err := s.Count(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	err := s.InsertEntries(ctx, PartitionAll, lower)
	assert.Error(t, err)
}

func TestSingleLayoutRejectsPartitions(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutSingle)
	require.NoError(t, s.PrepareSchema(ctx))
	assert.Error(t, s.InsertEntries(ctx, PartitionLower, nil))
	assert.Error(t, s.InsertEntries(ctx, PartitionUpper, nil))
}

func TestBuildIndices(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutPartitioned)
	require.NoError(t, s.PrepareSchema(ctx))
	require.NoError(t, s.BuildIndices(ctx))

	indices := map[string][]string{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tbl_name, name FROM sqlite_master WHERE type = 'index' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var table, name string
		require.NoError(t, rows.Scan(&table, &name))
		indices[table] = append(indices[table], name)
	}
	require.NoError(t, rows.Err())

	assert.Equal(t, map[string][]string{
		TableLower: {"index_entries_lower_part_of_speech", "index_entries_lower_word"},
		TableUpper: {"index_entries_upper_part_of_speech", "index_entries_upper_word"},
		TableWords: {"index_entry_words_word"},
	}, indices)
}

func TestPartOfSpeechIndexIsDroppedWithTables(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t)
	first := NewSQLSink(conn, Options{Dialect: SQLite})
	require.NoError(t, first.PrepareSchema(ctx))
	require.NoError(t, first.BuildIndices(ctx))

	again := NewSQLSink(conn, Options{Dialect: SQLite, DropExisting: true})
	require.NoError(t, again.PrepareSchema(ctx))
	require.NoError(t, again.BuildIndices(ctx))

	pg := NewSQLSink(nil, Options{Dialect: Postgres, DropExisting: true})
	assert.Equal(t, []string{
		"DROP INDEX IF EXISTS index_entries_word",
		"DROP INDEX IF EXISTS index_entries_part_of_speech",
		"DROP INDEX IF EXISTS index_entry_words_word",
	}, pg.schemaStatements()[:3])
}

func TestInsertWithoutSchemaFails(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t, LayoutSingle)
	reg := prometheus.NewRegistry()
	s.Metrics = metrics.New(reg)

	err := s.InsertEntries(ctx, PartitionAll, []dictionary.Entry{testEntry("a", "Noun")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entries")
	assert.Equal(t, 0.0, testutil.ToFloat64(s.Metrics.RowsInserted.WithLabelValues(TableEntries)))
}

func TestInsertStopsOnCanceledContext(t *testing.T) {
	s := newTestSink(t, LayoutSingle)
	require.NoError(t, s.PrepareSchema(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.InsertWords(ctx, []string{"a", "b", "c"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestServerDialectStatements(t *testing.T) {
	pg := NewSQLSink(nil, Options{Dialect: Postgres, Layout: LayoutPartitioned, DropExisting: true})
	stmts := pg.schemaStatements()
	assert.Equal(t, "DROP INDEX IF EXISTS index_entries_lower_word", stmts[0])
	assert.Contains(t, stmts, "DROP TABLE IF EXISTS entry_words")
	assert.True(t, strings.HasPrefix(stmts[len(stmts)-1], "CREATE TABLE IF NOT EXISTS entry_words"))
	assert.Contains(t, stmts[len(stmts)-2], "id SERIAL PRIMARY KEY")
	assert.Equal(t, "INSERT INTO entry_words (word) VALUES ($1)", pg.insertSQL(TableWords, []string{"word"}))
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS index_entries_upper_word ON entries_upper (word)",
		Postgres.createIndex(indexName(TableUpper, "word"), TableUpper, "word"))

	my := NewSQLSink(nil, Options{Dialect: MySQL, DropExisting: true})
	stmts = my.schemaStatements()
	assert.Equal(t, []string{"DROP TABLE IF EXISTS entries", "DROP TABLE IF EXISTS entry_words"}, stmts[:2])
	assert.True(t, strings.HasPrefix(stmts[2], "CREATE TABLE IF NOT EXISTS entries ("))
	assert.Equal(t, "CREATE INDEX index_entries_word ON entries (word(191))",
		MySQL.createIndex(indexName(TableEntries, "word"), TableEntries, "word"))
	assert.Equal(t, "CREATE INDEX index_entries_part_of_speech ON entries (part_of_speech(191))",
		MySQL.createIndex(indexName(TableEntries, "part_of_speech"), TableEntries, "part_of_speech"))
	assert.Equal(t, "?, ?, ?", MySQL.Placeholders(3))
}

func TestSQLiteSchemaIsFailFast(t *testing.T) {
	s := NewSQLSink(nil, Options{Dialect: SQLite})
	for _, stmt := range s.schemaStatements() {
		assert.NotContains(t, stmt, "IF NOT EXISTS")
	}
	assert.Contains(t, s.schemaStatements()[0], "word TEXT COLLATE NOCASE NOT NULL")
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"sqlite3", "postgres", "mysql"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, name, d.Driver)
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
}

func TestEncodeList(t *testing.T) {
	assert.Equal(t, "[]", EncodeList(nil))
	assert.Equal(t, "[]", EncodeList([]string{}))
	assert.Equal(t, `["a","b \"c\""]`, EncodeList([]string{"a", `b "c"`}))

	got, err := DecodeList(`["a","b \"c\""]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", `b "c"`}, got)

	got, err = DecodeList("")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = DecodeList("[")
	assert.Error(t, err)
}
