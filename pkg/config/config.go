// Package config holds the settings for one load run.
package config

import (
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const (
	LayoutSingle      = "single"
	LayoutPartitioned = "partitioned"

	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

// StdinInput as Input reads an uncompressed dump from standard input.
const StdinInput = "-"

// Config is built once at startup and passed by value; nothing in the
// program mutates it afterwards.
type Config struct {
	// Input is the dump path, or StdinInput to read standard input. Files
	// ending in .gz are decompressed.
	Input string `validate:"required"`
	// DumpURL, when set, is downloaded to Input if Input does not exist.
	DumpURL string `validate:"omitempty,url"`

	Driver       string `validate:"required,oneof=sqlite3 postgres mysql"`
	DSN          string `validate:"required"`
	Layout       string `validate:"required,oneof=single partitioned"`
	Boundary     string `validate:"required_if=Layout partitioned"`
	DropExisting bool

	BatchSize     int    `validate:"min=1"`
	Workers       int    `validate:"min=1"`
	Policy        string `validate:"required,oneof=abort skip"`
	FoldCaseWords bool
	ExactTieBreak bool
	Readings      bool

	MetricsAddr string
	LogLevel    string `validate:"required,oneof=debug info warn error"`
	LogFormat   string `validate:"required,oneof=json console"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Input:     "kaikki.org-dictionary-English.jsonl",
		Driver:    "sqlite3",
		DSN:       "wiktionary.db",
		Layout:    LayoutSingle,
		Boundary:  "m",
		BatchSize: 5000,
		Workers:   runtime.NumCPU(),
		Policy:    PolicyAbort,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

var validate = validator.New()

// Validate checks field values and combinations.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}
