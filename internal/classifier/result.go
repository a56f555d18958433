package classifier

import (
	"encoding/json"
	"time"
)

// Confidence is a coarse tier derived from the winning probability.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Tier thresholds, inclusive.
const (
	HighThreshold   = 0.8
	MediumThreshold = 0.6
)

// ConfidenceFor maps a probability to its tier.
func ConfidenceFor(p float64) Confidence {
	switch {
	case p >= HighThreshold:
		return ConfidenceHigh
	case p >= MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Score is one entry of the model distribution.
type Score struct {
	Label       string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Result is the outcome of one classification. It is not modified after
// Classify returns.
type Result struct {
	Label          string
	Probability    float64
	Confidence     Confidence
	ProcessingTime time.Duration
	Scores         []Score
}

type resultJSON struct {
	Label          string     `json:"className"`
	Probability    float64    `json:"probability"`
	Confidence     Confidence `json:"confidence"`
	ProcessingTime float64    `json:"processingTime"` // milliseconds
	Scores         []Score    `json:"scores,omitempty"`
}

// MarshalJSON writes ProcessingTime in milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Label:          r.Label,
		Probability:    r.Probability,
		Confidence:     r.Confidence,
		ProcessingTime: float64(r.ProcessingTime) / float64(time.Millisecond),
		Scores:         r.Scores,
	})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var aux resultJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Result{
		Label:          aux.Label,
		Probability:    aux.Probability,
		Confidence:     aux.Confidence,
		ProcessingTime: time.Duration(aux.ProcessingTime * float64(time.Millisecond)),
		Scores:         aux.Scores,
	}
	return nil
}
