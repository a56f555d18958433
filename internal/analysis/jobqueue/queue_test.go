package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewRequiresAction(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilAction)
}

func TestSubmitBeforeStart(t *testing.T) {
	t.Parallel()

	s, err := New(labelAction())
	require.NoError(t, err)

	_, err = s.Submit("call.wav")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueStopped)
	assert.Equal(t, 1, s.Stats().Rejected)
}

func TestSubmitNilPayload(t *testing.T) {
	t.Parallel()

	s := startScheduler(t, labelAction())
	_, err := s.Submit(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilPayload)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestFIFOCompletionOrder(t *testing.T) {
	t.Parallel()

	rec := newFinishRecorder(8)
	s := startScheduler(t, labelAction(), WithCompletionHook(rec.hook))

	var ids []string
	for i := range 6 {
		id, err := s.Submit(fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	snaps := rec.wait(t, len(ids))
	require.Len(t, snaps, len(ids))
	for i, snap := range snaps {
		assert.Equal(t, ids[i], snap.ID, "completion %d out of order", i)
		assert.Equal(t, JobStatusCompleted, snap.Status)
		assert.Equal(t, fmt.Sprintf("job-%d", i), snap.Result.Label)
		if i > 0 {
			assert.False(t, snap.StartedAt.Before(snaps[i-1].CompletedAt),
				"job %d started before job %d finished", i, i-1)
		}
	}
}

func TestQueryUnknownJob(t *testing.T) {
	t.Parallel()

	s := startScheduler(t, labelAction())
	_, err := s.Query("8c1f0f8e-0000-4000-8000-000000000000")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestLifecycleStates(t *testing.T) {
	t.Parallel()

	g := newGate()
	s := startScheduler(t, g.action())

	first, err := s.Submit("first")
	require.NoError(t, err)
	waitForChannel(t, g.started, DefaultTestTimeout, "first job never started")

	second, err := s.Submit("second")
	require.NoError(t, err)

	snap, err := s.Query(first)
	require.NoError(t, err)
	assert.Equal(t, JobStatusProcessing, snap.Status)
	assert.Nil(t, snap.Result)
	assert.True(t, snap.CompletedAt.IsZero())

	snap, err = s.Query(second)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, snap.Status)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Submitted)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Processing)
	assert.True(t, stats.Running)

	close(g.release)
	require.Eventually(t, func() bool {
		snap, err := s.Query(second)
		return err == nil && snap.Status == JobStatusCompleted
	}, DefaultTestTimeout, 5*time.Millisecond)

	assert.Equal(t, 2, s.Stats().Completed)
}

func TestTerminalSnapshotIsStable(t *testing.T) {
	t.Parallel()

	rec := newFinishRecorder(4)
	s := startScheduler(t, labelAction(), WithCompletionHook(rec.hook))

	id, err := s.Submit("stable")
	require.NoError(t, err)
	rec.wait(t, 1)

	before, err := s.Query(id)
	require.NoError(t, err)

	for i := range 3 {
		_, err := s.Submit(i)
		require.NoError(t, err)
	}
	rec.wait(t, 3)

	after, err := s.Query(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, JobStatusCompleted, after.Status)
}

func TestSnapshotDoesNotAliasStoredResult(t *testing.T) {
	t.Parallel()

	action := ActionFunc(func(context.Context, any) (*classifier.Result, error) {
		return &classifier.Result{
			Label:       "Pipistrellus pipistrellus",
			Probability: 0.9,
			Confidence:  classifier.ConfidenceHigh,
			Scores:      []classifier.Score{{Label: "Pipistrellus pipistrellus", Probability: 0.9}},
		}, nil
	})
	rec := newFinishRecorder(1)
	s := startScheduler(t, action, WithCompletionHook(rec.hook))

	id, err := s.Submit("clip")
	require.NoError(t, err)
	hooked := rec.wait(t, 1)[0]

	snap, err := s.Query(id)
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	snap.Result.Label = "tampered"
	snap.Result.Scores[0].Label = "tampered"
	hooked.Result.Label = "tampered"

	again, err := s.Query(id)
	require.NoError(t, err)
	assert.Equal(t, "Pipistrellus pipistrellus", again.Result.Label)
	assert.Equal(t, "Pipistrellus pipistrellus", again.Result.Scores[0].Label)
}

func TestFailingJobsAreIsolated(t *testing.T) {
	t.Parallel()

	decodeErr := errors.New(errors.NewStd("not a RIFF file")).
		Component("audio").
		Category(errors.CategoryDecode).
		Build()

	action := ActionFunc(func(ctx context.Context, payload any) (*classifier.Result, error) {
		switch payload {
		case "error":
			return nil, fmt.Errorf("feature extraction failed")
		case "decode":
			return nil, decodeErr
		case "panic":
			panic("index out of range")
		case "empty":
			return nil, nil
		}
		return labelAction()(ctx, payload)
	})

	rec := newFinishRecorder(8)
	s := startScheduler(t, action, WithCompletionHook(rec.hook))

	payloads := []string{"error", "ok-1", "decode", "panic", "empty", "ok-2"}
	ids := make(map[string]string, len(payloads))
	for _, p := range payloads {
		id, err := s.Submit(p)
		require.NoError(t, err)
		ids[p] = id
	}
	rec.wait(t, len(payloads))

	tests := []struct {
		payload  string
		status   JobStatus
		category errors.ErrorCategory
		message  string
	}{
		{"error", JobStatusFailed, errors.CategoryClassification, "feature extraction failed"},
		{"ok-1", JobStatusCompleted, "", ""},
		{"decode", JobStatusFailed, errors.CategoryDecode, "not a RIFF file"},
		{"panic", JobStatusFailed, errors.CategoryClassification, "index out of range"},
		{"empty", JobStatusFailed, errors.CategoryClassification, "no result"},
		{"ok-2", JobStatusCompleted, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			snap, err := s.Query(ids[tt.payload])
			require.NoError(t, err)
			assert.Equal(t, tt.status, snap.Status)
			if tt.status == JobStatusFailed {
				assert.Nil(t, snap.Result)
				assert.Equal(t, tt.category, snap.ErrorCategory)
				assert.Contains(t, snap.Error, tt.message)
			} else {
				require.NotNil(t, snap.Result)
				assert.Equal(t, tt.payload, snap.Result.Label)
				assert.Empty(t, snap.Error)
			}
			assert.False(t, snap.CompletedAt.IsZero())
		})
	}

	stats := s.Stats()
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 4, stats.Failed)
	assert.True(t, stats.Running, "scheduler survives failing jobs")
}

func TestQueueFull(t *testing.T) {
	t.Parallel()

	g := newGate()
	s := startScheduler(t, g.action(), WithMaxPending(1))
	defer close(g.release)

	_, err := s.Submit("running")
	require.NoError(t, err)
	waitForChannel(t, g.started, DefaultTestTimeout, "job never started")

	_, err = s.Submit("queued")
	require.NoError(t, err)

	_, err = s.Submit("overflow")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
}

func TestRetentionExpiresFinishedJobs(t *testing.T) {
	t.Parallel()

	rec := newFinishRecorder(2)
	s := startScheduler(t, labelAction(),
		WithRetention(20*time.Millisecond),
		WithCompletionHook(rec.hook))

	id, err := s.Submit("short-lived")
	require.NoError(t, err)
	rec.wait(t, 1)

	require.Eventually(t, func() bool {
		_, err := s.Query(id)
		return errors.IsNotFound(err)
	}, DefaultTestTimeout, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return s.Stats().Stored == 0
	}, DefaultTestTimeout, 5*time.Millisecond, "expired job is swept from the store")
}

func TestUnboundedRetentionKeepsJobs(t *testing.T) {
	t.Parallel()

	rec := newFinishRecorder(2)
	s := startScheduler(t, labelAction(), WithCompletionHook(rec.hook))

	id, err := s.Submit("kept")
	require.NoError(t, err)
	rec.wait(t, 1)

	time.Sleep(50 * time.Millisecond)
	snap, err := s.Query(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, snap.Status)
}

func TestStopWaitsForRunningJob(t *testing.T) {
	t.Parallel()

	g := newGate()
	s, err := New(g.action(), WithYieldDelay(testYieldDelay))
	require.NoError(t, err)
	s.Start(context.Background())

	running, err := s.Submit("running")
	require.NoError(t, err)
	waitForChannel(t, g.started, DefaultTestTimeout, "job never started")
	pending, err := s.Submit("pending")
	require.NoError(t, err)

	err = s.Stop(10 * time.Millisecond)
	require.Error(t, err, "stop times out while the action is blocked")
	assert.False(t, s.Running())

	_, err = s.Submit("late")
	assert.ErrorIs(t, err, ErrQueueStopped)

	close(g.release)
	require.Eventually(t, func() bool {
		snap, err := s.Query(running)
		return err == nil && snap.Status == JobStatusCompleted
	}, DefaultTestTimeout, 5*time.Millisecond, "in-flight job is not cancelled")

	snap, err := s.Query(pending)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, snap.Status)

	require.NoError(t, s.Stop(ShortTestTimeout), "second stop is a no-op")
}

func TestRestartAfterTimedOutStopKeepsOneConsumer(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	g := newGate()
	blocked := g.action()
	action := ActionFunc(func(ctx context.Context, payload any) (*classifier.Result, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if payload == "blocked" {
			return blocked(ctx, payload)
		}
		return labelAction()(ctx, payload)
	})

	rec := newFinishRecorder(4)
	s, err := New(action, WithYieldDelay(testYieldDelay), WithCompletionHook(rec.hook))
	require.NoError(t, err)
	s.Start(context.Background())
	t.Cleanup(func() {
		require.NoError(t, s.Stop(DefaultTestTimeout))
	})

	first, err := s.Submit("blocked")
	require.NoError(t, err)
	waitForChannel(t, g.started, DefaultTestTimeout, "job never started")

	require.Error(t, s.Stop(10*time.Millisecond))

	s.Start(context.Background())
	assert.False(t, s.Running(), "restart is refused while the old consumer runs")
	_, err = s.Submit("rejected")
	assert.ErrorIs(t, err, ErrQueueStopped)

	close(g.release)
	rec.wait(t, 1)

	require.Eventually(t, func() bool {
		s.Start(context.Background())
		return s.Running()
	}, DefaultTestTimeout, 5*time.Millisecond, "scheduler restarts once the old consumer exits")

	second, err := s.Submit("second")
	require.NoError(t, err)
	rec.wait(t, 1)

	for _, id := range []string{first, second} {
		snap, err := s.Query(id)
		require.NoError(t, err)
		assert.Equal(t, JobStatusCompleted, snap.Status)
	}
	assert.Equal(t, int32(1), peak.Load(), "jobs never overlap")
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := newFinishRecorder(2)
	s := startScheduler(t, labelAction(), WithCompletionHook(rec.hook))
	s.Start(context.Background())

	_, err := s.Submit("once")
	require.NoError(t, err)
	rec.wait(t, 1)
	assert.Equal(t, 1, s.Stats().Completed)
}

func TestContextCancellationStopsConsumer(t *testing.T) {
	t.Parallel()

	s, err := New(labelAction())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	require.NoError(t, s.Stop(DefaultTestTimeout))
}

func TestSchedulerMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewJobQueueMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	rec := newFinishRecorder(4)
	fail := ActionFunc(func(ctx context.Context, payload any) (*classifier.Result, error) {
		if payload == "bad" {
			return nil, fmt.Errorf("bad payload")
		}
		return labelAction()(ctx, payload)
	})
	s := startScheduler(t, fail, WithMetrics(m), WithCompletionHook(rec.hook))

	for _, p := range []string{"good", "bad", "good"} {
		_, err := s.Submit(p)
		require.NoError(t, err)
	}
	rec.wait(t, 3)

	assert.InDelta(t, 3, testutil.ToFloat64(m.SubmittedTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FinishedTotal.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FinishedTotal.WithLabelValues("failed")), 0)
	assert.InDelta(t, 0, m.PendingDepth(), 0)
}

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 6, 1, 21, 30, 0, 0, time.UTC)

	pending, err := json.Marshal(Snapshot{ID: "abc", Status: JobStatusPending, CreatedAt: created})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobId":"abc","status":"pending","created_at":"2026-06-01T21:30:00Z"}`, string(pending))

	failed, err := json.Marshal(Snapshot{
		ID:            "abc",
		Status:        JobStatusFailed,
		Error:         "model not loaded",
		ErrorCategory: errors.CategoryModelNotReady,
		CreatedAt:     created,
		CompletedAt:   created.Add(time.Second),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobId":"abc","status":"failed","error":"model not loaded",
		"created_at":"2026-06-01T21:30:00Z","completed_at":"2026-06-01T21:30:01Z"}`, string(failed))
}
