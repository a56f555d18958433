package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics covers feature extraction and model inference.
type ClassifierMetrics struct {
	PredictionsTotal   *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	ExtractionDuration prometheus.Histogram
	ModelLoadTotal     *prometheus.CounterVec
	ModelLoaded        prometheus.Gauge
	ErrorsTotal        *prometheus.CounterVec
}

// NewClassifierMetrics creates the collectors and registers them on registry.
func NewClassifierMetrics(registry prometheus.Registerer) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
	}
	return m, nil
}

func (m *ClassifierMetrics) initMetrics() {
	m.PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batmap_predictions_total",
			Help: "Total number of classifications partitioned by predicted label and status.",
		},
		[]string{"label", "status"},
	)
	m.PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "batmap_prediction_duration_seconds",
			Help:    "Time taken by model inference.",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
		},
		[]string{"model"},
	)
	m.ExtractionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batmap_extraction_duration_seconds",
		Help:    "Time taken to compute the feature vector of one recording.",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})
	m.ModelLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batmap_model_load_total",
			Help: "Total number of model load attempts by status.",
		},
		[]string{"status"},
	)
	m.ModelLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "batmap_model_loaded",
		Help: "1 when a model is loaded and classifications can run.",
	})
	m.ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batmap_classifier_errors_total",
			Help: "Total number of classifier errors by operation and category.",
		},
		[]string{"operation", "category"},
	)
}

// RecordPrediction counts one classification and observes its inference time.
func (m *ClassifierMetrics) RecordPrediction(model, label string, seconds float64, err error) {
	if err != nil {
		m.PredictionsTotal.WithLabelValues("", StatusError).Inc()
		return
	}
	m.PredictionsTotal.WithLabelValues(label, StatusSuccess).Inc()
	m.PredictionDuration.WithLabelValues(model).Observe(seconds)
}

// RecordModelLoad counts a load attempt and updates the loaded gauge.
func (m *ClassifierMetrics) RecordModelLoad(err error) {
	if err != nil {
		m.ModelLoadTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.ModelLoadTotal.WithLabelValues(StatusSuccess).Inc()
	m.ModelLoaded.Set(1)
}

// SetModelLoaded sets the loaded gauge.
func (m *ClassifierMetrics) SetModelLoaded(loaded bool) {
	if loaded {
		m.ModelLoaded.Set(1)
	} else {
		m.ModelLoaded.Set(0)
	}
}

// RecordOperation implements Recorder.
func (m *ClassifierMetrics) RecordOperation(operation, status string) {
	switch operation {
	case OpPrediction:
		m.PredictionsTotal.WithLabelValues("", status).Inc()
	case OpModelLoad:
		m.ModelLoadTotal.WithLabelValues(status).Inc()
	}
}

// RecordDuration implements Recorder.
func (m *ClassifierMetrics) RecordDuration(operation string, seconds float64) {
	switch operation {
	case OpExtraction:
		m.ExtractionDuration.Observe(seconds)
	case OpPrediction:
		m.PredictionDuration.WithLabelValues("").Observe(seconds)
	}
}

// RecordError implements Recorder.
func (m *ClassifierMetrics) RecordError(operation, errorType string) {
	m.ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionsTotal.Describe(ch)
	m.PredictionDuration.Describe(ch)
	ch <- m.ExtractionDuration.Desc()
	m.ModelLoadTotal.Describe(ch)
	ch <- m.ModelLoaded.Desc()
	m.ErrorsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ClassifierMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionsTotal.Collect(ch)
	m.PredictionDuration.Collect(ch)
	ch <- m.ExtractionDuration
	m.ModelLoadTotal.Collect(ch)
	ch <- m.ModelLoaded
	m.ErrorsTotal.Collect(ch)
}

var _ Recorder = (*ClassifierMetrics)(nil)
