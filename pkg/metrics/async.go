package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics records best-effort background task executions.
type TaskMetrics struct {
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

// NewTaskMetrics registers the task metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courseshare_async_task_duration_seconds",
		Help:    "Duration of best-effort background tasks in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courseshare_async_task_total",
		Help: "Best-effort background task executions by result.",
	}, []string{"task", "result"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courseshare_async_task_dropped_total",
		Help: "Background tasks dropped because the queue was full or closed.",
	}, []string{"task"})
	reg.MustRegister(duration, results, dropped)
	return &TaskMetrics{duration: duration, results: results, dropped: dropped}
}

// Observe records one completed task.
func (m *TaskMetrics) Observe(task string, elapsed time.Duration, err error) {
	if m == nil || m.results == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.duration.WithLabelValues(normalizeLabel(task)).Observe(elapsed.Seconds())
	m.results.WithLabelValues(normalizeLabel(task), result).Inc()
}

// IncDropped records a task that never ran.
func (m *TaskMetrics) IncDropped(task string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(task)).Inc()
}
