package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewClassifierMetrics(registry)
	require.NoError(t, err)

	m.RecordPrediction("linear", "Zwergfledermaus", 0.002, nil)
	m.RecordPrediction("linear", "Zwergfledermaus", 0.003, nil)
	m.RecordPrediction("linear", "", 0, errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("Zwergfledermaus", StatusSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("", StatusError)), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PredictionDuration))

	assert.InDelta(t, 0, testutil.ToFloat64(m.ModelLoaded), 0)
	m.RecordModelLoad(nil)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ModelLoaded), 0)
	m.RecordModelLoad(errors.New("missing file"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.ModelLoadTotal.WithLabelValues(StatusError)), 0)
	m.SetModelLoaded(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ModelLoaded), 0)

	m.RecordError(OpPrediction, "model-not-ready")
	assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(OpPrediction, "model-not-ready")), 0)
}

func TestClassifierMetricsDoubleRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewClassifierMetrics(registry)
	require.NoError(t, err)

	_, err = NewClassifierMetrics(registry)
	assert.Error(t, err)
}

func TestJobQueueMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewJobQueueMetrics(registry)
	require.NoError(t, err)

	m.JobSubmitted(1)
	m.JobSubmitted(2)
	assert.InDelta(t, 2, testutil.ToFloat64(m.SubmittedTotal), 0)
	assert.InDelta(t, 2, m.PendingDepth(), 0)

	m.JobFinished("completed", 0.5, 1)
	m.JobFinished("failed", 0.1, 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FinishedTotal.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FinishedTotal.WithLabelValues("failed")), 0)
	assert.InDelta(t, 0, m.PendingDepth(), 0)

	m.JobRejected("full")
	assert.InDelta(t, 1, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("full")), 0)
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(registry)
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)

	m.RecordPublish(256, 5*time.Millisecond, nil)
	m.RecordPublish(0, 0, errors.New("timeout"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.MessagesDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestHTTPMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(registry)
	require.NoError(t, err)

	m.RecordRequest("POST", "/api/v1/classify", 202, 0.01)
	m.RecordRequest("GET", "/api/v1/classify/:id", 404, 0.001)
	m.RecordRateLimited()

	assert.InDelta(t, 1, testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/api/v1/classify", "202")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimited), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestNopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NopRecorder{}
	assert.NotPanics(t, func() {
		r.RecordOperation(OpJob, StatusSuccess)
		r.RecordDuration(OpJob, 1)
		r.RecordError(OpJob, "generic")
	})
}
