package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Commit results used as label values
const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultRejected  = "rejected"
	ResultError     = "error"
)

// Anchor lookup results used as label values
const (
	AnchorFound    = "found"
	AnchorNone     = "none"
	AnchorFailed   = "failed"
	AnchorCacheHit = "cache_hit"
)

// Recorder owns the sequencer's Prometheus registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	ordersScheduled prometheus.Counter
	commitBatches   *prometheus.CounterVec
	commitRows      *prometheus.CounterVec
	commitDuration  *prometheus.HistogramVec
	anchorLookups   *prometheus.CounterVec
	materialGroups  prometheus.Histogram
}

// NewRecorder creates a recorder with Go and process collectors registered
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		ordersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sequencer_orders_scheduled_total",
			Help: "Orders stamped with a scheduled time.",
		}),
		commitBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_commit_batches_total",
			Help: "Commit batches by mode and result.",
		}, []string{"mode", "result"}),
		commitRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_commit_rows_total",
			Help: "Rows updated by successful commit batches.",
		}, []string{"mode"}),
		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sequencer_commit_duration_seconds",
			Help:    "Duration of commit batches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		anchorLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sequencer_anchor_lookups_total",
			Help: "Anchor lookups by result.",
		}, []string{"result"}),
		materialGroups: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sequencer_material_groups",
			Help:    "Number of material groups per grouping request.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
	}

	registry.MustRegister(
		r.ordersScheduled,
		r.commitBatches,
		r.commitRows,
		r.commitDuration,
		r.anchorLookups,
		r.materialGroups,
	)

	return r
}

// Registry returns the Prometheus registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordScheduled counts orders stamped by the calculator.
// Plant is not a label: its values come from requests.
func (r *Recorder) RecordScheduled(count int) {
	if r == nil || count == 0 {
		return
	}
	r.ordersScheduled.Add(float64(count))
}

// RecordCommit records one commit batch
func (r *Recorder) RecordCommit(mode, result string, rows int, duration time.Duration) {
	if r == nil {
		return
	}
	r.commitBatches.WithLabelValues(mode, result).Inc()
	r.commitDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if result == ResultOK {
		r.commitRows.WithLabelValues(mode).Add(float64(rows))
	}
}

// RecordAnchorLookup counts anchor lookups by result
func (r *Recorder) RecordAnchorLookup(result string) {
	if r == nil {
		return
	}
	r.anchorLookups.WithLabelValues(result).Inc()
}

// RecordGroups observes the size of a grouping result
func (r *Recorder) RecordGroups(count int) {
	if r == nil {
		return
	}
	r.materialGroups.Observe(float64(count))
}
