package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		level    LogLevel
		wantSeen []string
		wantGone []string
	}{
		{"debug shows everything but trace", LogLevelDebug, []string{"dbg", "inf", "wrn", "err"}, []string{"trc"}},
		{"warn hides info", LogLevelWarn, []string{"wrn", "err"}, []string{"dbg", "inf"}},
		{"trace shows trace", LogLevelTrace, []string{"trc", "dbg"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			log := NewWriterLogger(&buf, tt.level).Module("test")
			log.Trace("trc")
			log.Debug("dbg")
			log.Info("inf")
			log.Warn("wrn")
			log.Error("err")

			out := buf.String()
			for _, s := range tt.wantSeen {
				assert.Contains(t, out, "msg="+s)
			}
			for _, s := range tt.wantGone {
				assert.NotContains(t, out, "msg="+s)
			}
		})
	}
}

func TestModuleScopingAndFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelInfo).Module("analysis").Module("jobqueue")
	log.With(String("job_id", "abc")).Info("job completed",
		Float64("probability", 0.123456),
		Duration("elapsed", 1500*time.Millisecond),
		Error(assert.AnError))

	out := buf.String()
	assert.Contains(t, out, "module=analysis.jobqueue")
	assert.Contains(t, out, "job_id=abc")
	assert.Contains(t, out, "probability=0.123")
	assert.Contains(t, out, "elapsed=1.5s")
	assert.Contains(t, out, "error=")
	assert.NotContains(t, out, "time=", "console output carries no timestamp")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelInfo).Module("api")
	ctx := WithTraceID(context.Background(), "trace-42")

	log.WithContext(ctx).Info("request")
	log.WithContext(context.Background()).Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=trace-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "batmap.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"quiet": "error"},
	})
	require.NoError(t, err)

	cl.Module("dsp").Debug("spectrum ready", Int("frames", 3))
	cl.Module("quiet").Info("suppressed")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "spectrum ready", record["msg"])
	assert.Equal(t, "dsp", record["module"])
	assert.InDelta(t, 3, record["frames"], 0)
}

func TestNewCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, traceLevelValue, parseLogLevel("TRACE"))
	assert.Equal(t, parseLogLevel("warn"), parseLogLevel("warning"))
	assert.Equal(t, parseLogLevel("info"), parseLogLevel("bogus"))
}
