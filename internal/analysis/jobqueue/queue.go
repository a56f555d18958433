package jobqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/logger"
	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

// maxSweepInterval bounds how long expired jobs linger in memory after
// they stopped being visible to Query.
const maxSweepInterval = time.Minute

// Scheduler accepts jobs from any goroutine and runs them on a single
// consumer in FIFO order.
type Scheduler struct {
	action     Action
	yieldDelay time.Duration
	maxPending int
	retention  time.Duration
	metrics    *metrics.JobQueueMetrics
	onFinish   func(Snapshot)
	log        logger.Logger

	mu         sync.Mutex
	store      *cache.Cache
	queue      []*Job
	processing *Job
	running    bool
	cancel     context.CancelFunc
	done       chan struct{}
	wake       chan struct{}
	stats      Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithYieldDelay sets the pause after each job. Zero disables it.
func WithYieldDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.yieldDelay = max(d, 0) }
}

// WithMaxPending bounds the number of queued jobs. Zero means unbounded.
func WithMaxPending(n int) Option {
	return func(s *Scheduler) { s.maxPending = max(n, 0) }
}

// WithRetention makes finished jobs expire after d. Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) { s.retention = max(d, 0) }
}

// WithMetrics records submissions and outcomes on m.
func WithMetrics(m *metrics.JobQueueMetrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithCompletionHook calls fn with the terminal snapshot of every job. fn
// runs on the consumer goroutine and delays the next job while it runs.
func WithCompletionHook(fn func(Snapshot)) Option {
	return func(s *Scheduler) { s.onFinish = fn }
}

// New creates a stopped scheduler that runs action for every job.
func New(action Action, opts ...Option) (*Scheduler, error) {
	if action == nil {
		return nil, ErrNilAction
	}
	s := &Scheduler{
		action:     action,
		yieldDelay: DefaultYieldDelay,
		log:        GetLogger(),
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Expiry is swept by the consumer loop; a go-cache janitor would outlive Stop.
	s.store = cache.New(cache.NoExpiration, 0)
	return s, nil
}

// Start launches the consumer. Calling Start on a running scheduler is a
// no-op, as is calling it while the consumer of a timed-out Stop is still
// finishing its job. The consumer stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	if s.consumerAlive() {
		s.log.Warn("job scheduler not restarted, previous consumer still running",
			logger.String("job_id", s.processingID()))
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(loopCtx, s.done)

	s.log.Info("job scheduler started",
		logger.Duration("yield_delay", s.yieldDelay),
		logger.Int("max_pending", s.maxPending),
		logger.Duration("retention", s.retention))
}

// Stop cancels the consumer and waits up to timeout for the job in
// processing to finish. Jobs still pending stay queryable. After a timeout
// the scheduler cannot be restarted until that job returns.
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	pending := len(s.queue)
	s.mu.Unlock()

	select {
	case <-done:
		s.log.Info("job scheduler stopped", logger.Int("pending", pending))
		return nil
	case <-time.After(timeout):
		return errors.Newf("timed out waiting for the running job after %v", timeout).
			Component("jobqueue").
			Category(errors.CategoryJobQueue).
			Build()
	}
}

// consumerAlive reports whether the last consumer goroutine has not exited.
// Callers hold s.mu.
func (s *Scheduler) consumerAlive() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// processingID returns the ID of the job in processing, if any. Callers hold s.mu.
func (s *Scheduler) processingID() string {
	if s.processing == nil {
		return ""
	}
	return s.processing.ID
}

// Running reports whether Submit currently accepts jobs.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Submit registers a pending job for payload and returns its id. It never
// waits for processing.
func (s *Scheduler) Submit(payload any) (string, error) {
	if payload == nil {
		return "", errors.New(ErrNilPayload).
			Component("jobqueue").
			Category(errors.CategoryValidation).
			Build()
	}

	s.mu.Lock()
	if !s.running {
		s.stats.Rejected++
		s.mu.Unlock()
		s.recordRejected("stopped")
		return "", errors.New(ErrQueueStopped).
			Component("jobqueue").
			Category(errors.CategoryJobQueue).
			Build()
	}
	if s.maxPending > 0 && len(s.queue) >= s.maxPending {
		s.stats.Rejected++
		s.mu.Unlock()
		s.recordRejected("full")
		return "", errors.New(ErrQueueFull).
			Component("jobqueue").
			Category(errors.CategoryLimit).
			Context("max_pending", s.maxPending).
			Build()
	}

	job := &Job{
		ID:        uuid.NewString(),
		Payload:   payload,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
	s.store.Set(job.ID, job, cache.NoExpiration)
	s.queue = append(s.queue, job)
	s.stats.Submitted++
	pending := len(s.queue)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.JobSubmitted(pending)
	}
	s.log.Debug("job submitted", logger.String("job_id", job.ID), logger.Int("pending", pending))

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return job.ID, nil
}

// Query returns the current snapshot of job id.
func (s *Scheduler) Query(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.store.Get(id)
	if !ok {
		return Snapshot{}, errors.New(ErrJobNotFound).
			Component("jobqueue").
			Category(errors.CategoryNotFound).
			Context("job_id", id).
			Build()
	}
	return item.(*Job).snapshot(), nil
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Pending = len(s.queue)
	if s.processing != nil {
		st.Processing = 1
	}
	st.Stored = s.store.ItemCount()
	st.Running = s.running
	return st
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var sweep <-chan time.Time
	if s.retention > 0 {
		ticker := time.NewTicker(min(s.retention, maxSweepInterval))
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return
		}

		job := s.dequeue()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			case <-sweep:
				s.store.DeleteExpired()
			}
			continue
		}

		s.execute(ctx, job)

		if s.yieldDelay > 0 {
			timer := time.NewTimer(s.yieldDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

func (s *Scheduler) dequeue() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	job := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]

	job.Status = JobStatusProcessing
	job.StartedAt = time.Now()
	s.processing = job
	return job
}

// execute runs the action outside the lock. Cancellation of ctx does not
// reach the action.
func (s *Scheduler) execute(ctx context.Context, job *Job) {
	s.log.Debug("job started", logger.String("job_id", job.ID))

	result, err := s.invoke(context.WithoutCancel(ctx), job)
	if err == nil && result == nil {
		err = fmt.Errorf("action returned no result")
	}
	if err != nil && errors.CategoryOf(err) == errors.CategoryGeneric {
		err = errors.New(err).
			Component("jobqueue").
			Category(errors.CategoryClassification).
			Context("job_id", job.ID).
			Build()
	}

	s.mu.Lock()
	job.CompletedAt = time.Now()
	job.Payload = nil
	if err != nil {
		job.Status = JobStatusFailed
		job.Err = err
		s.stats.Failed++
	} else {
		job.Status = JobStatusCompleted
		job.Result = result
		s.stats.Completed++
	}
	s.processing = nil
	expiry := cache.NoExpiration
	if s.retention > 0 {
		expiry = s.retention
	}
	s.store.Set(job.ID, job, expiry)
	snap := job.snapshot()
	pending := len(s.queue)
	s.mu.Unlock()

	elapsed := snap.CompletedAt.Sub(snap.StartedAt)
	if s.metrics != nil {
		s.metrics.JobFinished(snap.Status.String(), elapsed.Seconds(), pending)
	}
	if err != nil {
		s.log.Warn("job failed",
			logger.String("job_id", job.ID),
			logger.String("category", string(snap.ErrorCategory)),
			logger.Error(err),
			logger.Duration("elapsed", elapsed))
	} else {
		s.log.Info("job completed",
			logger.String("job_id", job.ID),
			logger.String("label", result.Label),
			logger.Float64("probability", result.Probability),
			logger.Duration("elapsed", elapsed))
	}

	if s.onFinish != nil {
		s.onFinish(snap)
	}
}

func (s *Scheduler) invoke(ctx context.Context, job *Job) (result *classifier.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked",
				logger.String("job_id", job.ID),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			result = nil
			err = errors.Newf("job panicked: %v", r).
				Component("jobqueue").
				Category(errors.CategoryClassification).
				Context("job_id", job.ID).
				Build()
		}
	}()
	return s.action.Execute(ctx, job.Payload)
}

func (s *Scheduler) recordRejected(reason string) {
	if s.metrics != nil {
		s.metrics.JobRejected(reason)
	}
	s.log.Warn("job rejected", logger.String("reason", reason))
}
