package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogger(t *testing.T) {
	t.Parallel()

	logger1 := GetLogger()
	logger2 := GetLogger()

	assert.NotNil(t, logger1, "GetLogger returned nil")
	assert.Same(t, logger1, logger2, "GetLogger should return the same module logger")
}
