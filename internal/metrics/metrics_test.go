package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				out[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Operation("merge", OutcomeOK)
	m.Operation("merge", OutcomePartial)
	m.WriteFailures("merge", 2)
	m.WriteFailures("merge", 0)
	m.MergedLines(5)
	m.UndoDepth(3)

	got := gather(t, reg)
	want := map[string]float64{
		"procurement_po_operations_total":     2,
		"procurement_po_write_failures_total": 2,
		"procurement_merged_po_lines":         1,
		"procurement_amendment_undo_depth":    1,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s: expected %v, got %v", name, v, got[name])
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Operation("merge", OutcomeOK)
	m.WriteFailures("merge", 1)
	m.MergedLines(1)
	m.UndoDepth(1)
}
