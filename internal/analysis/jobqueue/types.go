// Package jobqueue runs classification jobs one at a time in submission
// order and keeps their results queryable by id.
package jobqueue

import (
	"context"
	"time"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
)

// Common errors that can be returned by job queue operations
var (
	ErrNilAction    = errors.NewStd("scheduler requires an action")
	ErrNilPayload   = errors.NewStd("cannot submit an empty payload")
	ErrQueueStopped = errors.NewStd("job queue is not running")
	ErrJobNotFound  = errors.NewStd("job not found")
	ErrQueueFull    = errors.NewStd("job queue is full")
)

// DefaultYieldDelay is the pause between two consecutive jobs.
const DefaultYieldDelay = 100 * time.Millisecond

// Action processes one job payload. The consumer never cancels a running
// action; ctx only carries values.
type Action interface {
	Execute(ctx context.Context, payload any) (*classifier.Result, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, payload any) (*classifier.Result, error)

// Execute implements Action.
func (f ActionFunc) Execute(ctx context.Context, payload any) (*classifier.Result, error) {
	return f(ctx, payload)
}

// JobStatus represents the current status of a job in the queue
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be executed
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates the job is being executed
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the action returned a result
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the action returned an error or panicked
	JobStatusFailed JobStatus = "failed"
)

// String returns a string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
