package mqtt

import (
	"time"

	"github.com/Demr1on/batmap-app/internal/analysis/jobqueue"
)

// ResultMessage is the payload published for every finished job. The layout
// is flat so broker-side consumers can read it without knowing the HTTP API.
//
// Field names are part of the published contract.
type ResultMessage struct {
	JobID          string             `json:"jobId"`
	Status         jobqueue.JobStatus `json:"status"`
	ClassName      string             `json:"className,omitempty"`
	Probability    float64            `json:"probability,omitempty"`
	Confidence     string             `json:"confidence,omitempty"`
	ProcessingTime float64            `json:"processingTime,omitempty"` // milliseconds
	Error          string             `json:"error,omitempty"`
	ErrorCategory  string             `json:"errorCategory,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	CompletedAt    time.Time          `json:"completedAt"`
}

// NewResultMessage flattens a job snapshot.
func NewResultMessage(snap jobqueue.Snapshot) ResultMessage {
	msg := ResultMessage{
		JobID:         snap.ID,
		Status:        snap.Status,
		Error:         snap.Error,
		ErrorCategory: string(snap.ErrorCategory),
		CreatedAt:     snap.CreatedAt,
		CompletedAt:   snap.CompletedAt,
	}
	if r := snap.Result; r != nil {
		msg.ClassName = r.Label
		msg.Probability = r.Probability
		msg.Confidence = string(r.Confidence)
		msg.ProcessingTime = float64(r.ProcessingTime) / float64(time.Millisecond)
	}
	return msg
}
