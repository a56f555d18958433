package analysis

import "github.com/Demr1on/batmap-app/internal/errors"

// ErrAnalysisCanceled is returned when the analysis is canceled by the user
var ErrAnalysisCanceled = errors.NewStd("analysis canceled")

// ErrUnsupportedPayload is returned for job payloads that are neither
// encoded audio nor a decoded signal.
var ErrUnsupportedPayload = errors.NewStd("unsupported job payload")
