package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// JobQueueMetrics covers the classification job scheduler.
type JobQueueMetrics struct {
	SubmittedTotal prometheus.Counter
	RejectedTotal  *prometheus.CounterVec
	FinishedTotal  *prometheus.CounterVec
	Depth          prometheus.Gauge
	JobDuration    *prometheus.HistogramVec
}

// NewJobQueueMetrics creates the collectors and registers them on registry.
func NewJobQueueMetrics(registry prometheus.Registerer) (*JobQueueMetrics, error) {
	m := &JobQueueMetrics{
		SubmittedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batmap_jobs_submitted_total",
			Help: "Total number of jobs accepted by the scheduler.",
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batmap_jobs_rejected_total",
			Help: "Total number of submissions refused, by reason.",
		}, []string{"reason"}),
		FinishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batmap_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal state, by status.",
		}, []string{"status"}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batmap_jobs_pending",
			Help: "Jobs waiting to be processed.",
		}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batmap_job_duration_seconds",
			Help:    "Time from processing start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		}, []string{"status"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register job queue metrics: %w", err)
	}
	return m, nil
}

// JobSubmitted counts an accepted job and sets the pending depth.
func (m *JobQueueMetrics) JobSubmitted(pending int) {
	m.SubmittedTotal.Inc()
	m.Depth.Set(float64(pending))
}

// JobRejected counts a refused submission.
func (m *JobQueueMetrics) JobRejected(reason string) {
	m.RejectedTotal.WithLabelValues(reason).Inc()
}

// JobFinished counts a terminal job and observes its processing time.
func (m *JobQueueMetrics) JobFinished(status string, seconds float64, pending int) {
	m.FinishedTotal.WithLabelValues(status).Inc()
	m.JobDuration.WithLabelValues(status).Observe(seconds)
	m.Depth.Set(float64(pending))
}

// PendingDepth reads back the depth gauge.
func (m *JobQueueMetrics) PendingDepth() float64 {
	metric := &dto.Metric{}
	if err := m.Depth.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

// Describe implements the prometheus.Collector interface.
func (m *JobQueueMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.SubmittedTotal.Desc()
	m.RejectedTotal.Describe(ch)
	m.FinishedTotal.Describe(ch)
	ch <- m.Depth.Desc()
	m.JobDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *JobQueueMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.SubmittedTotal
	m.RejectedTotal.Collect(ch)
	m.FinishedTotal.Collect(ch)
	ch <- m.Depth
	m.JobDuration.Collect(ch)
}
