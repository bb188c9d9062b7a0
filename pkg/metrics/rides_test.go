package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRideMetricsCountsTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRideMetrics(reg)
	m.Observe(TransitionAccept, OutcomeSuccess)
	m.Observe(TransitionAccept, OutcomeRejected)
	m.Observe(TransitionAccept, OutcomeRejected)
	m.IncQuotaDenied()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	mf := findMetricFamily(mfs, "ride_transitions_total")
	if mf == nil {
		t.Fatal("ride_transitions_total not exported")
	}
	var rejected float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "transition", TransitionAccept) && matchesLabel(metric.GetLabel(), "outcome", OutcomeRejected) {
			rejected = metric.GetCounter().GetValue()
		}
	}
	if rejected != 2 {
		t.Fatalf("expected 2 rejected accepts, got %f", rejected)
	}
	if quota := findMetricFamily(mfs, "ride_accept_quota_denied_total"); quota == nil || quota.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one quota denial")
	}
}

func TestTaskMetricsRecordsResultsAndDrops(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTaskMetrics(reg)
	m.Observe("usage.increment", 10*time.Millisecond, nil)
	m.Observe("usage.increment", 5*time.Millisecond, errors.New("boom"))
	m.IncDropped("notify.new_ride")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "courseshare_async_task_dropped_total", "task", "notify.new_ride"); err != nil || got != 1 {
		t.Fatalf("expected one dropped task, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "courseshare_async_task_duration_seconds", "task", "usage.increment"); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", got, err)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewRideMetrics(nil).Observe(TransitionCreate, OutcomeSuccess)
	NewTaskMetrics(nil).IncDropped("x")
	var m *RideMetrics
	m.IncQuotaDenied()
}

func TestEmptyLabelsRecordAsUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewTaskMetrics(reg).IncDropped("  ")
	NewRideMetrics(reg).Observe("", OutcomeSuccess)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "courseshare_async_task_dropped_total", "task", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected dropped task under unknown, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "ride_transitions_total", "transition", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected transition under unknown, got %f (%v)", got, err)
	}
}
