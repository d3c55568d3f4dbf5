// Package metrics defines the prometheus collectors updated during a load run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wiktload"

// Metrics groups the run's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	RecordsRead     prometheus.Counter
	RecordsRejected prometheus.Counter
	EntriesDropped  prometheus.Counter
	EntriesAdmitted prometheus.Counter
	RowsInserted    *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Raw records read from the dump.",
		}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Records that failed normalization.",
		}),
		EntriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_dropped_total",
			Help:      "Normalized entries without definitions.",
		}),
		EntriesAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_admitted_total",
			Help:      "Entries kept for loading.",
		}),
		RowsInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_inserted_total",
			Help:      "Rows committed to the storage sink, by table.",
		}, []string{"table"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.RecordsRead, m.RecordsRejected, m.EntriesDropped,
			m.EntriesAdmitted, m.RowsInserted, m.StageDuration)
	}
	return m
}

func (m *Metrics) IncRead() {
	if m != nil {
		m.RecordsRead.Inc()
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.RecordsRejected.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.EntriesDropped.Inc()
	}
}

func (m *Metrics) IncAdmitted() {
	if m != nil {
		m.EntriesAdmitted.Inc()
	}
}

func (m *Metrics) AddRows(table string, n int) {
	if m != nil {
		m.RowsInserted.WithLabelValues(table).Add(float64(n))
	}
}

// ObserveStage records how long a stage took, in seconds.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(seconds)
	}
}
