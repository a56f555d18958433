package jobqueue

import (
	"slices"
	"time"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
)

// Job represents a unit of work in the job queue. Fields are guarded by the
// scheduler mutex.
type Job struct {
	ID          string
	Payload     any // released once the job is terminal
	Status      JobStatus
	Result      *classifier.Result
	Err         error
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Snapshot is a point-in-time copy of a job, safe to hand to callers.
type Snapshot struct {
	ID            string               `json:"jobId"`
	Status        JobStatus            `json:"status"`
	Result        *classifier.Result   `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
	ErrorCategory errors.ErrorCategory `json:"-"`
	CreatedAt     time.Time            `json:"created_at"`
	StartedAt     time.Time            `json:"-"`
	CompletedAt   time.Time            `json:"completed_at,omitzero"`
}

func (j *Job) snapshot() Snapshot {
	s := Snapshot{
		ID:          j.ID,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Result != nil {
		r := *j.Result
		r.Scores = slices.Clone(r.Scores)
		s.Result = &r
	}
	if j.Err != nil {
		s.Error = j.Err.Error()
		s.ErrorCategory = errors.CategoryOf(j.Err)
	}
	return s
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Submitted  int  `json:"submitted"`
	Rejected   int  `json:"rejected"`
	Completed  int  `json:"completed"`
	Failed     int  `json:"failed"`
	Pending    int  `json:"pending"`
	Processing int  `json:"processing"`
	Stored     int  `json:"stored"`
	Running    bool `json:"running"`
}
