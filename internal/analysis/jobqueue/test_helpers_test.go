// test_helpers_test.go - Shared test helpers for jobqueue package
package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Demr1on/batmap-app/internal/classifier"
)

const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second

	// testYieldDelay keeps the inter-job pause observable without slowing tests.
	testYieldDelay = time.Millisecond
)

// waitForChannel waits for a signal on the channel or fails after timeout.
func waitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// startScheduler creates a running scheduler that is stopped on cleanup.
func startScheduler(t *testing.T, action Action, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithYieldDelay(testYieldDelay)}, opts...)
	s, err := New(action, opts...)
	require.NoError(t, err)
	s.Start(context.Background())
	t.Cleanup(func() {
		require.NoError(t, s.Stop(DefaultTestTimeout))
	})
	return s
}

// labelAction returns a result labelled with the payload string.
func labelAction() ActionFunc {
	return func(_ context.Context, payload any) (*classifier.Result, error) {
		return &classifier.Result{
			Label:       fmt.Sprint(payload),
			Probability: 0.9,
			Confidence:  classifier.ConfidenceHigh,
		}, nil
	}
}

// finishRecorder collects terminal snapshots delivered by the completion hook.
type finishRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	ch    chan Snapshot
}

func newFinishRecorder(capacity int) *finishRecorder {
	return &finishRecorder{ch: make(chan Snapshot, capacity)}
}

func (r *finishRecorder) hook(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
	r.ch <- s
}

// wait blocks until n snapshots arrived and returns them in arrival order.
func (r *finishRecorder) wait(t *testing.T, n int) []Snapshot {
	t.Helper()
	for range n {
		select {
		case <-r.ch:
		case <-time.After(DefaultTestTimeout):
			require.FailNow(t, "timed out waiting for job completion")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

// gate blocks an action until released and reports when it has started.
type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) action() ActionFunc {
	next := labelAction()
	return func(ctx context.Context, payload any) (*classifier.Result, error) {
		g.started <- struct{}{}
		<-g.release
		return next(ctx, payload)
	}
}
