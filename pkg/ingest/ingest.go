// Package ingest drives a load run: it reads raw records, normalizes them
// on a worker pool, keeps the admissible entries in encounter order, orders
// them and hands the result to a storage sink.
package ingest

import (
	"context"
	"io"
	"time"

	"github.com/japaniel/wiktload/pkg/config"
	"github.com/japaniel/wiktload/pkg/db"
	"github.com/japaniel/wiktload/pkg/dictionary"
	"github.com/japaniel/wiktload/pkg/metrics"
	"github.com/japaniel/wiktload/pkg/order"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// Policy decides what happens to a record that fails normalization.
type Policy string

const (
	// PolicyAbort fails the run on the first bad record.
	PolicyAbort Policy = config.PolicyAbort
	// PolicySkip logs and counts the bad record and continues.
	PolicySkip Policy = config.PolicySkip
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Annotator rewrites an admitted entry before ordering. reading.Annotator
// is the production implementation.
type Annotator interface {
	Annotate(dictionary.Entry) dictionary.Entry
}

// Stats summarizes a run.
type Stats struct {
	Read     int
	Rejected int
	Dropped  int
	Admitted int
	Words    int
	Lower    int
	Upper    int
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Stats) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("read", s.Read)
	enc.AddInt("rejected", s.Rejected)
	enc.AddInt("dropped", s.Dropped)
	enc.AddInt("admitted", s.Admitted)
	enc.AddInt("words", s.Words)
	if s.Lower > 0 || s.Upper > 0 {
		enc.AddInt("lower", s.Lower)
		enc.AddInt("upper", s.Upper)
	}
	return nil
}

// Ingester turns a record source into a loaded sink.
type Ingester struct {
	// Concurrency settings
	Workers int
	Policy  Policy

	// Boundary is the headword the partitioned layout splits at.
	Boundary      string
	FoldCaseWords bool
	ExactTieBreak bool

	// Annotator, if set, is applied to every admitted entry.
	Annotator Annotator

	// Logger receives progress and skipped records. nil means no logging.
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// OnProgress is called periodically with the number of records collected so far.
	OnProgress func(processed int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

const progressEvery = 10000

// NewIngester creates a new Ingester.
func NewIngester() *Ingester {
	return &Ingester{
		Workers:  4, // Default worker count
		Policy:   PolicyAbort,
		Boundary: order.DefaultBoundary,
	}
}

// FromConfig builds an Ingester from the run configuration.
func FromConfig(cfg config.Config) *Ingester {
	ig := NewIngester()
	ig.Workers = cfg.Workers
	ig.Policy = Policy(cfg.Policy)
	ig.Boundary = cfg.Boundary
	ig.FoldCaseWords = cfg.FoldCaseWords
	ig.ExactTieBreak = cfg.ExactTieBreak
	return ig
}

func (ig *Ingester) logger() *zap.Logger {
	if ig.Logger == nil {
		return zap.NewNop()
	}
	return ig.Logger
}

// normalized is the outcome of one record.
type normalized struct {
	index int
	entry dictionary.Entry
	err   error
}

func normalizeAt(index int, raw dictionary.RawRecord) normalized {
	e, err := dictionary.Normalize(raw)
	if err != nil {
		var re *dictionary.RecordError
		if errors.As(err, &re) {
			indexed := *re
			indexed.Index = index
			err = &indexed
		} else {
			err = &dictionary.RecordError{Index: index, Err: err}
		}
		return normalized{index: index, err: err}
	}
	return normalized{index: index, entry: e}
}

// Collect reads src to the end and returns the admissible entries in the
// order their records were read. Under PolicyAbort the first bad record
// fails the call; errors from src always do. On failure no entries are
// returned.
func (ig *Ingester) Collect(ctx context.Context, src dictionary.Source) ([]dictionary.Entry, Stats, error) {
	var stats Stats
	log := ig.logger()

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	results := make(chan normalized, workers*2)

	g, gctx := errgroup.WithContext(ctx)
	wp.Start(gctx)

	// Producer: read records and hand them to the pool.
	var read int
	g.Go(func() error {
		defer close(results)
		defer wp.Close()
		for i := 0; ; i++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := src.Record()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return errors.Wrapf(err, "reading record %d", i)
			}
			read++
			ig.Metrics.IncRead()

			idx := i
			job := func(ctx context.Context) error {
				res := normalizeAt(idx, raw)
				select {
				case results <- res:
				case <-ctx.Done():
				}
				return nil
			}
			if err := wp.SubmitCtx(gctx, job); err != nil {
				return errors.Wrapf(err, "submitting record %d", i)
			}
		}
	})

	// Consumer: restore encounter order and filter.
	var entries []dictionary.Entry
	g.Go(func() error {
		pending := make(map[int]normalized)
		next := 0
		for res := range results {
			pending[res.index] = res
			for {
				item, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++

				if err := ig.accept(log, item, &entries, &stats); err != nil {
					return err
				}
				if ig.OnProgress != nil && next%progressEvery == 0 {
					ig.OnProgress(next)
				}
			}
		}
		return nil
	})

	err := g.Wait()
	stats.Read = read
	if err != nil {
		return nil, stats, err
	}
	if ig.OnProgress != nil {
		ig.OnProgress(read)
	}
	return entries, stats, nil
}

func (ig *Ingester) accept(log *zap.Logger, item normalized, entries *[]dictionary.Entry, stats *Stats) error {
	if item.err != nil {
		stats.Rejected++
		ig.Metrics.IncRejected()
		if ig.Policy != PolicySkip {
			return item.err
		}
		log.Warn("skipping record", zap.Int("index", item.index), zap.Error(item.err))
		return nil
	}
	if !item.entry.Admissible() {
		stats.Dropped++
		ig.Metrics.IncDropped()
		return nil
	}
	stats.Admitted++
	ig.Metrics.IncAdmitted()
	*entries = append(*entries, item.entry)
	return nil
}

func (ig *Ingester) observe(stage string, start time.Time) {
	ig.Metrics.ObserveStage(stage, time.Since(start).Seconds())
}

// Run collects src, orders the entries and loads them into sink. The
// partition boundary is checked before the sink is touched.
func (ig *Ingester) Run(ctx context.Context, src dictionary.Source, sink db.Sink) (Stats, error) {
	log := ig.logger()

	start := time.Now()
	entries, stats, err := ig.Collect(ctx, src)
	ig.observe("collect", start)
	if err != nil {
		return stats, err
	}
	log.Info("records collected", zap.Object("stats", stats), zap.Duration("elapsed", time.Since(start)))

	if ig.Annotator != nil {
		start = time.Now()
		for i := range entries {
			entries[i] = ig.Annotator.Annotate(entries[i])
		}
		ig.observe("annotate", start)
	}

	start = time.Now()
	order.Sort(entries, order.Options{ExactTieBreak: ig.ExactTieBreak})
	words := order.Words(entries)
	if ig.FoldCaseWords {
		words = order.FoldWords(words)
	}
	stats.Words = len(words)
	ig.observe("sort", start)

	partitioned := sink.Layout() == db.LayoutPartitioned
	var lower, upper []dictionary.Entry
	if partitioned {
		boundary := ig.Boundary
		if boundary == "" {
			boundary = order.DefaultBoundary
		}
		lower, upper, err = order.Partition(entries, boundary)
		if err != nil {
			return stats, err
		}
		stats.Lower, stats.Upper = len(lower), len(upper)
	}

	start = time.Now()
	if err := sink.PrepareSchema(ctx); err != nil {
		return stats, err
	}
	if partitioned {
		if err := sink.InsertEntries(ctx, db.PartitionLower, lower); err != nil {
			return stats, err
		}
		if err := sink.InsertEntries(ctx, db.PartitionUpper, upper); err != nil {
			return stats, err
		}
	} else if err := sink.InsertEntries(ctx, db.PartitionAll, entries); err != nil {
		return stats, err
	}
	if err := sink.InsertWords(ctx, words); err != nil {
		return stats, err
	}
	if err := sink.BuildIndices(ctx); err != nil {
		return stats, err
	}
	ig.observe("store", start)

	log.Info("load complete", zap.Object("stats", stats))
	return stats, nil
}
