package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Demr1on/batmap-app/internal/analysis/jobqueue"
	"github.com/Demr1on/batmap-app/internal/audio"
	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/dsp"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

const testSampleRate = 96000

// biasedModel always prefers the first label with probability e²/(e²+3).
func biasedModel(t *testing.T) *classifier.LinearModel {
	t.Helper()
	weights := make([][]float64, len(classifier.DefaultLabels))
	for i := range weights {
		weights[i] = make([]float64, features.ModelInputSize)
	}
	m, err := classifier.NewLinearModel(classifier.LinearManifest{
		Name:    "biased",
		Labels:  classifier.DefaultLabels,
		Weights: weights,
		Bias:    []float64{2, 0, 0, 0},
	})
	require.NoError(t, err)
	return m
}

func newTestPipeline(t *testing.T, opts ...PipelineOption) *Pipeline {
	t.Helper()
	c := classifier.New(classifier.WithModel(biasedModel(t)))
	return NewPipeline(features.NewExtractor(dsp.FFT{}), c, opts...)
}

func toneSamples(freq float64, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(16000 * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate))
	}
	return out
}

func encodeWAV(t *testing.T, data []int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, testSampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: testSampleRate, NumChannels: 1},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return raw
}

func TestPipelineExecutePayloads(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	wavBytes := encodeWAV(t, toneSamples(40000, 4800))
	sig, err := audio.Decode(wavBytes)
	require.NoError(t, err)

	wantProb := math.Exp(2) / (math.Exp(2) + 3)

	for name, payload := range map[string]any{
		"encoded audio":  wavBytes,
		"signal":         sig,
		"signal pointer": &sig,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			res, err := p.Execute(t.Context(), payload)
			require.NoError(t, err)
			assert.Equal(t, classifier.DefaultLabels[0], res.Label)
			assert.InDelta(t, wantProb, res.Probability, 1e-9)
			assert.Equal(t, classifier.ConfidenceMedium, res.Confidence)
			assert.Len(t, res.Scores, len(classifier.DefaultLabels))
		})
	}
}

func TestPipelineExecuteErrors(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	tests := []struct {
		name     string
		payload  any
		sentinel error
		category errors.ErrorCategory
	}{
		{"unsupported type", 42, ErrUnsupportedPayload, errors.CategoryValidation},
		{"nil signal pointer", (*audio.Signal)(nil), ErrUnsupportedPayload, errors.CategoryValidation},
		{"garbage bytes", []byte("definitely not audio"), audio.ErrDecode, errors.CategoryDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := p.Execute(t.Context(), tt.payload)
			require.Error(t, err)
			require.ErrorIs(t, err, tt.sentinel)
			assert.True(t, errors.IsCategory(err, tt.category), "category %s", errors.CategoryOf(err))
		})
	}
}

func TestPipelineModelNotReady(t *testing.T) {
	t.Parallel()

	p := NewPipeline(features.NewExtractor(dsp.NewDFT()), classifier.New())
	sig, err := audio.NewSignal(make([]float64, 2048), testSampleRate)
	require.NoError(t, err)

	_, err = p.ClassifySignal(t.Context(), sig)
	require.ErrorIs(t, err, classifier.ErrModelNotReady)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelNotReady))
}

func TestPipelineIncomplete(t *testing.T) {
	t.Parallel()

	sig, err := audio.NewSignal([]float64{0.1, 0.2}, testSampleRate)
	require.NoError(t, err)

	_, _, err = NewPipeline(nil, nil).Analyze(t.Context(), sig)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
}

func TestPipelineRecordsMetrics(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewClassifierMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	p := newTestPipeline(t, WithRecorder(m))

	_, err = p.ClassifyAudio(t.Context(), []byte("RIFF"))
	require.Error(t, err)
	_, err = p.ClassifyAudio(t.Context(), encodeWAV(t, toneSamples(25000, 2048)))
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(metrics.OpDecode, string(errors.CategoryDecode))), 0)
	var hist dto.Metric
	require.NoError(t, m.ExtractionDuration.Write(&hist))
	assert.Equal(t, uint64(1), hist.GetHistogram().GetSampleCount(), "only the decoded recording is extracted")
}

func TestPipelineAsSchedulerAction(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)
	done := make(chan jobqueue.Snapshot, 2)
	s, err := jobqueue.New(p,
		jobqueue.WithYieldDelay(time.Millisecond),
		jobqueue.WithCompletionHook(func(snap jobqueue.Snapshot) { done <- snap }))
	require.NoError(t, err)
	s.Start(context.Background())
	t.Cleanup(func() { require.NoError(t, s.Stop(5*time.Second)) })

	good, err := s.Submit(encodeWAV(t, toneSamples(40000, 4800)))
	require.NoError(t, err)
	bad, err := s.Submit([]byte("garbage"))
	require.NoError(t, err)

	for range 2 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			require.FailNow(t, "jobs did not finish")
		}
	}

	snap, err := s.Query(good)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.JobStatusCompleted, snap.Status)
	assert.Equal(t, classifier.DefaultLabels[0], snap.Result.Label)

	snap, err = s.Query(bad)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.JobStatusFailed, snap.Status)
	assert.Equal(t, errors.CategoryDecode, snap.ErrorCategory)
	assert.NotEmpty(t, snap.Error)
}

func TestFileAnalysis(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_call.wav"), encodeWAV(t, toneSamples(40000, 4800)), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_empty.WAV"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("field notes"), 0o600))

	p := newTestPipeline(t)

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, FileAnalysis(t.Context(), p, []string{dir}, &buf, OutputJSON, true))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2, "text files are skipped")

		var ok struct {
			Path     string             `json:"path"`
			Result   *classifier.Result `json:"result"`
			Species  classifier.Species `json:"species"`
			Features map[string]any     `json:"features"`
		}
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
		assert.Equal(t, "a_call.wav", filepath.Base(ok.Path))
		require.NotNil(t, ok.Result)
		assert.Equal(t, classifier.DefaultLabels[0], ok.Result.Label)
		assert.Equal(t, "Pipistrellus pipistrellus", ok.Species.ScientificName)
		assert.Contains(t, ok.Features, "mfcc")

		var failed map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))
		assert.Contains(t, failed["error"], "empty")
		assert.NotContains(t, failed, "result")
	})

	t.Run("csv", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, FileAnalysis(t.Context(), p, []string{dir}, &buf, OutputCSV, false))

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "className", rows[0][1])
		assert.Equal(t, classifier.DefaultLabels[0], rows[1][1])
		assert.Equal(t, "96000", rows[1][5])
		assert.Equal(t, "50", rows[1][6])
		assert.NotEmpty(t, rows[2][7])
	})

	t.Run("table", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, FileAnalysis(t.Context(), p, []string{filepath.Join(dir, "a_call.wav")}, &buf, OutputTable, false))
		out := buf.String()
		assert.Contains(t, out, "CONFIDENCE")
		assert.Contains(t, out, "Common pipistrelle (Pipistrellus pipistrellus)")
		assert.Contains(t, out, "medium")
	})

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()
		err := FileAnalysis(t.Context(), p, []string{dir}, &bytes.Buffer{}, "xml", false)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})
}

func TestFileAnalysisInputs(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t)

	err := FileAnalysis(t.Context(), p, []string{filepath.Join(t.TempDir(), "missing.wav")}, &bytes.Buffer{}, OutputTable, false)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	err = FileAnalysis(t.Context(), p, []string{t.TempDir()}, &bytes.Buffer{}, OutputTable, false)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.wav"), encodeWAV(t, toneSamples(30000, 1024)), 0o600))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err = FileAnalysis(ctx, p, []string{dir}, &bytes.Buffer{}, OutputTable, false)
	assert.ErrorIs(t, err, ErrAnalysisCanceled)
}
