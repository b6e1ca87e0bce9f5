package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomePartial  = "partial"
	OutcomeError    = "error"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	writeFailures *prometheus.CounterVec
	mergedLines   prometheus.Histogram
	undoDepth     prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "po_operations_total",
			Help:      "Purchase order engine operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		writeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procurement",
			Name:      "po_write_failures_total",
			Help:      "Individual store writes that failed during multi-document operations.",
		}, []string{"operation"}),
		mergedLines: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "procurement",
			Name:      "merged_po_lines",
			Help:      "Number of lines on consolidated purchase orders.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		undoDepth: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "procurement",
			Name:      "amendment_undo_depth",
			Help:      "Undo stack depth of committed amendments.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) WriteFailures(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.writeFailures.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) MergedLines(n int) {
	if m == nil {
		return
	}
	m.mergedLines.Observe(float64(n))
}

func (m *Metrics) UndoDepth(n int) {
	if m == nil {
		return
	}
	m.undoDepth.Observe(float64(n))
}
