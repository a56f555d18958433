package api

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Demr1on/batmap-app/internal/analysis/jobqueue"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// AudioFormField is the multipart field carrying the recording.
const AudioFormField = "audio"

// SubmitResponse is returned when a recording has been queued.
type SubmitResponse struct {
	JobID   string             `json:"jobId"`
	Status  jobqueue.JobStatus `json:"status"`
	Message string             `json:"message"`
}

// SubmitClassification handles POST /api/v1/classify. The recording is read
// from the multipart field "audio" or, for any other content type, from the
// raw request body.
func (s *Server) SubmitClassification(c echo.Context) error {
	data, err := s.readAudio(c)
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return s.HandleError(c, err, "Audio file exceeds the upload limit", http.StatusRequestEntityTooLarge)
	}
	if err != nil {
		return s.HandleError(c, err, "Failed to read audio upload", http.StatusBadRequest)
	}
	if len(data) == 0 {
		return s.HandleError(c, nil, "No audio file found", http.StatusBadRequest)
	}

	id, err := s.scheduler.Submit(data)
	if err != nil {
		return s.HandleError(c, err, "Classification queue is not accepting jobs", statusFor(err))
	}

	s.log.Debug("classification job accepted",
		logger.String("job_id", id),
		logger.Int("size_bytes", len(data)),
		logger.String("ip", c.RealIP()))

	return c.JSON(http.StatusAccepted, SubmitResponse{
		JobID:   id,
		Status:  jobqueue.JobStatusPending,
		Message: "Audio file is being processed",
	})
}

// GetClassification handles GET /api/v1/classify/:id and the query form
// GET /api/v1/classify?jobId=.
func (s *Server) GetClassification(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		id = c.QueryParam("jobId")
	}
	if id == "" {
		return s.HandleError(c, nil, "Job ID required", http.StatusBadRequest)
	}

	snap, err := s.scheduler.Query(id)
	if err != nil {
		return s.HandleError(c, err, "Job not found", statusFor(err))
	}
	return c.JSON(http.StatusOK, snap)
}

// QueueStats handles GET /api/v1/queue/stats.
func (s *Server) QueueStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.scheduler.Stats())
}

func (s *Server) readAudio(c echo.Context) ([]byte, error) {
	req := c.Request()
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))

	if strings.HasPrefix(mediaType, "multipart/") {
		fh, err := c.FormFile(AudioFormField)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot open uploaded file %q: %w", fh.Filename, err)
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	if req.Body == nil {
		return nil, nil
	}
	return io.ReadAll(req.Body)
}
