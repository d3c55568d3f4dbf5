package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/japaniel/wiktload/pkg/config"
	"github.com/japaniel/wiktload/pkg/db"
	"github.com/japaniel/wiktload/pkg/dictionary"
	"github.com/japaniel/wiktload/pkg/ingest"
	"github.com/japaniel/wiktload/pkg/metrics"
	"github.com/japaniel/wiktload/pkg/reading"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the run logger. Console output is meant for people,
// json for log collectors.
func newLogger(cfg config.Config, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	if cfg.LogFormat == "json" {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zap.New(core).With(zap.String("run_id", uuid.NewString())), nil
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// openInput returns the dump source: stdin for StdinInput, otherwise the
// file at cfg.Input, downloaded first when DumpURL is set.
func openInput(ctx context.Context, cfg config.Config, stdin io.Reader, log *zap.Logger) (dictionary.Source, error) {
	if cfg.Input == config.StdinInput {
		return dictionary.NewJSONSource(stdin), nil
	}
	if cfg.DumpURL != "" {
		log.Info("checking dump", zap.String("path", cfg.Input), zap.String("url", cfg.DumpURL))
		if err := dictionary.EnsureDump(ctx, cfg.Input, cfg.DumpURL); err != nil {
			return nil, err
		}
	}
	fs, err := dictionary.OpenSource(cfg.Input)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// load runs one complete load described by cfg.
func load(ctx context.Context, cfg config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	log, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, reg, log)
		defer stop()
	}

	src, err := openInput(ctx, cfg, stdin, log)
	if err != nil {
		return err
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	dialect, err := db.DialectFor(cfg.Driver)
	if err != nil {
		return err
	}
	conn, err := db.Open(ctx, dialect, cfg.DSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	sink := db.NewSQLSink(conn, db.Options{
		Dialect:      dialect,
		Layout:       db.Layout(cfg.Layout),
		BatchSize:    cfg.BatchSize,
		DropExisting: cfg.DropExisting,
	})
	sink.Logger = log.Named("sink")
	sink.Metrics = m

	ig := ingest.FromConfig(cfg)
	ig.Logger = log.Named("ingest")
	ig.Metrics = m
	ig.OnProgress = func(n int) {
		log.Info("progress", zap.Int("records", n))
	}
	if cfg.Readings {
		a, err := reading.NewAnnotator()
		if err != nil {
			return err
		}
		ig.Annotator = a
	}

	log.Info("loading",
		zap.String("input", cfg.Input),
		zap.String("driver", cfg.Driver),
		zap.String("layout", cfg.Layout),
		zap.Int("workers", cfg.Workers),
		zap.String("policy", cfg.Policy))
	start := time.Now()
	stats, err := ig.Run(ctx, src, sink)
	if err != nil {
		log.Error("load failed", zap.Error(err), zap.Object("stats", stats))
		return err
	}
	log.Info("done", zap.Object("stats", stats), zap.Duration("elapsed", time.Since(start)))
	return nil
}
