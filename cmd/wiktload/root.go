package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/japaniel/wiktload/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "WIKTLOAD"

// runFunc performs a load with a validated configuration.
type runFunc func(ctx context.Context, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) error

// NewRootCommand returns the wiktload command. stdin supplies the dump when
// --input is "-".
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	return newRootCommand(stdin, stdout, stderr, load)
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer, run runFunc) *cobra.Command {
	cfg := config.Default()
	var configFile string

	rc := &cobra.Command{
		Use:   "wiktload",
		Short: "wiktload - load a wiktextract dump into a SQL database",
		Long: `wiktload reads a wiktextract JSON dump (JSON Lines, concatenated
values or a single array, optionally gzipped), normalizes every record
into a dictionary entry, orders the entries and bulk loads them into
SQLite, PostgreSQL or MySQL.

Every flag can also be set with a WIKTLOAD_ environment variable
(--batch-size is WIKTLOAD_BATCH_SIZE) or in a config file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			return setAllConfig(v, cmd.Flags(), envPrefix)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg, cmd.InOrStdin(), stdout, stderr)
		},
	}

	flags := rc.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file (format chosen by extension: .toml, .yaml, .json)")
	flags.StringVarP(&cfg.Input, "input", "i", cfg.Input, "Dump to load, or - for standard input; .gz files are decompressed")
	flags.StringVar(&cfg.DumpURL, "dump-url", cfg.DumpURL, "Download the dump from this URL when the input file is missing")
	flags.StringVar(&cfg.Driver, "driver", cfg.Driver, "Database driver: sqlite3, postgres or mysql")
	flags.StringVar(&cfg.DSN, "dsn", cfg.DSN, "Database data source name")
	flags.StringVar(&cfg.Layout, "layout", cfg.Layout, "Table layout: single or partitioned")
	flags.StringVar(&cfg.Boundary, "boundary", cfg.Boundary, "Headword that starts the upper partition")
	flags.BoolVar(&cfg.DropExisting, "drop-existing", cfg.DropExisting, "Drop existing tables before loading")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Rows per insert transaction")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Normalization workers")
	flags.StringVar(&cfg.Policy, "policy", cfg.Policy, "Bad record policy: abort or skip")
	flags.BoolVar(&cfg.FoldCaseWords, "fold-case-words", cfg.FoldCaseWords, "Keep one headword per case-insensitive spelling in the word table")
	flags.BoolVar(&cfg.ExactTieBreak, "exact-tie-break", cfg.ExactTieBreak, "Order same-class headwords that differ only by case by exact spelling")
	flags.BoolVar(&cfg.Readings, "readings", cfg.Readings, "Add kana readings for Japanese headwords")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve prometheus metrics on this address during the run")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setAllConfig takes a FlagSet to be the definition of all configuration
// options, as well as their defaults. It then reads from the command line, the
// environment, and a config file (if specified), and applies the configuration
// in that priority order. Since each flag in the set contains a pointer to
// where its value should be stored, setAllConfig can directly modify the value
// of each config variable.
//
// setAllConfig looks for environment variables which are capitalized versions
// of the flag names with dashes replaced by underscores, and prefixed with
// envPrefix plus an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %v", c, err)
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			// Flags set on the command line win.
			return
		}
		if err := f.Value.Set(v.GetString(f.Name)); err != nil {
			flagErr = fmt.Errorf("invalid value for %s: %v", f.Name, err)
		}
	})
	return flagErr
}
