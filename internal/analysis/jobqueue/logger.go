package jobqueue

import (
	"sync"

	"github.com/Demr1on/batmap-app/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the job queue logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("jobqueue")
	})
	return serviceLogger
}
