package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/japaniel/wiktload/pkg/config"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capture returns a runFunc that records the configuration it was given.
func capture(got *config.Config) runFunc {
	return func(ctx context.Context, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
		*got = cfg
		return nil
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "wiktload.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
workers = 3
batch-size = 7
policy = "skip"
layout = "partitioned"
`), 0o644))
	t.Setenv("WIKTLOAD_BATCH_SIZE", "42")
	t.Setenv("WIKTLOAD_LAYOUT", "single")

	var got config.Config
	cmd := newRootCommand(nil, io.Discard, io.Discard, capture(&got))
	cmd.SetArgs([]string{"--config", cfgPath, "--layout", "partitioned", "--driver", "postgres", "--dsn", "postgres://localhost/w"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 3, got.Workers)                // file
	assert.Equal(t, 42, got.BatchSize)             // env over file
	assert.Equal(t, config.PolicySkip, got.Policy) // file
	assert.Equal(t, "partitioned", got.Layout)     // flag over env
	assert.Equal(t, "postgres", got.Driver)        // flag
	assert.Equal(t, "m", got.Boundary)             // default
	assert.Equal(t, config.Default().Input, got.Input)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	called := false
	run := func(ctx context.Context, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
		called = true
		return nil
	}
	cmd := newRootCommand(nil, io.Discard, io.Discard, run)
	cmd.SetArgs([]string{"--policy", "retry"})
	require.Error(t, cmd.Execute())
	assert.False(t, called)
}

func TestMissingConfigFile(t *testing.T) {
	var got config.Config
	cmd := newRootCommand(nil, io.Discard, io.Discard, capture(&got))
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

const dump = `{"word":"apple","pos":"noun","senses":[{"glosses":["a fruit"]}]}
{"word":"Run","pos":"verb","senses":[{"glosses":["to move quickly"]}]}
{"word":"run","pos":"noun","senses":[{"glosses":["an act of running"]}],"sounds":[{"ipa":"/ɹʌn/"}]}
{"word":"ghost","pos":"noun","senses":[]}
{"word":"zebra","pos":"noun","senses":[{"glosses":["a striped horse"]}]}
{"word":"m","pos":"character","senses":[{"glosses":["the letter m"]}]}
`

func countRows(t *testing.T, dsn, table string) int {
	t.Helper()
	conn, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestLoadIntoSQLite(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dump.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(dump), 0o644))
	dsn := filepath.Join(dir, "wiktionary.db")

	var logs bytes.Buffer
	cmd := NewRootCommand(nil, io.Discard, &logs)
	cmd.SetArgs([]string{"--input", input, "--dsn", dsn, "--log-format", "json", "--workers", "2"})
	require.NoError(t, cmd.Execute(), logs.String())

	assert.Equal(t, 5, countRows(t, dsn, "entries"))
	assert.Equal(t, 5, countRows(t, dsn, "entry_words"))
	assert.Contains(t, logs.String(), `"run_id"`)
	assert.Contains(t, logs.String(), `"msg":"done"`)

	// The table already exists and sqlite creates tables without IF NOT EXISTS.
	cmd = NewRootCommand(nil, io.Discard, io.Discard)
	cmd.SetArgs([]string{"--input", input, "--dsn", dsn})
	require.Error(t, cmd.Execute())

	cmd = NewRootCommand(nil, io.Discard, io.Discard)
	cmd.SetArgs([]string{"--input", input, "--dsn", dsn, "--drop-existing", "--layout", "partitioned"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, 1, countRows(t, dsn, "entries_lower"))
	assert.Equal(t, 4, countRows(t, dsn, "entries_upper"))
}

func TestLoadMissingBoundaryCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dump.jsonl")
	var noM []string
	for _, line := range strings.Split(strings.TrimSpace(dump), "\n") {
		if !strings.Contains(line, `"word":"m"`) {
			noM = append(noM, line)
		}
	}
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(noM, "\n")), 0o644))
	dsn := filepath.Join(dir, "wiktionary.db")

	var stderr bytes.Buffer
	cmd := NewRootCommand(nil, io.Discard, &stderr)
	cmd.SetArgs([]string{"--input", input, "--dsn", dsn, "--layout", "partitioned"})
	require.Error(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "boundary")

	conn, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestLoadFromStdin(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "wiktionary.db")
	cmd := NewRootCommand(strings.NewReader(dump), io.Discard, io.Discard)
	cmd.SetArgs([]string{"--input", "-", "--dsn", dsn, "--dump-url", "https://example.invalid/dump.jsonl"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 5, countRows(t, dsn, "entries"))
	assert.Equal(t, 5, countRows(t, dsn, "entry_words"))
}

func TestLoadMissingInput(t *testing.T) {
	dir := t.TempDir()
	cmd := NewRootCommand(nil, io.Discard, io.Discard)
	cmd.SetArgs([]string{"--input", filepath.Join(dir, "absent.jsonl"), "--dsn", filepath.Join(dir, "w.db")})
	require.Error(t, cmd.Execute())
}
