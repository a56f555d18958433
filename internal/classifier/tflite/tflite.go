// Package tflite runs classification models in the TensorFlow Lite format.
package tflite

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
	tflite "github.com/tphakala/go-tflite"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/httpclient"
	"github.com/Demr1on/batmap-app/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the tflite logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("classifier.tflite")
	})
	return serviceLogger
}

// Model wraps a TensorFlow Lite interpreter. The input tensor takes
// features.ModelInputSize float32 values and the output tensor holds one
// probability per label.
type Model struct {
	interpreter *tflite.Interpreter
	labels      []string
	name        string
	threads     int
}

// Loader reads a .tflite file from a path or URL.
type Loader struct {
	Source  string
	Labels  []string // defaults to classifier.DefaultLabels
	Threads int      // 0 selects a count from the host CPU
	Client  *httpclient.Client
}

// Load implements classifier.Loader.
func (l Loader) Load(ctx context.Context) (classifier.Model, error) {
	data, err := classifier.ReadSource(ctx, l.Source, l.Client)
	if err != nil {
		return nil, err
	}

	labels := l.Labels
	if len(labels) == 0 {
		labels = classifier.DefaultLabels
	}
	return New(data, labels, l.Threads, l.Source)
}

// New builds an interpreter from model bytes.
func New(data []byte, labels []string, threads int, name string) (*Model, error) {
	model := tflite.NewModel(data)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier.tflite").
			Category(errors.CategoryModelLoad).
			Context("model_size_bytes", len(data)).
			Build()
	}

	threads = ThreadCount(threads)
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter").
			Component("classifier.tflite").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("classifier.tflite").
			Category(errors.CategoryModelLoad).
			Build()
	}

	m := &Model{
		interpreter: interpreter,
		labels:      append([]string(nil), labels...),
		name:        name,
		threads:     threads,
	}
	if err := m.checkShapes(); err != nil {
		interpreter.Delete()
		return nil, err
	}

	GetLogger().Info("TensorFlow Lite model initialized",
		logger.String("model", name),
		logger.Int("threads", threads),
		logger.Int("labels", len(labels)))
	return m, nil
}

func (m *Model) checkShapes() error {
	in := m.interpreter.GetInputTensor(0)
	out := m.interpreter.GetOutputTensor(0)
	if in == nil || out == nil {
		return errors.Newf("model has no input or output tensor").
			Component("classifier.tflite").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if got := in.Dim(in.NumDims() - 1); got != features.ModelInputSize {
		return errors.Newf("model input has %d values, want %d", got, features.ModelInputSize).
			Component("classifier.tflite").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if got := out.Dim(out.NumDims() - 1); got != len(m.labels) {
		return errors.Newf("model output has %d classes for %d labels", got, len(m.labels)).
			Component("classifier.tflite").
			Category(errors.CategoryModelLoad).
			Build()
	}
	return nil
}

// Name returns the model source.
func (m *Model) Name() string { return m.name }

// Labels implements classifier.Model.
func (m *Model) Labels() []string { return m.labels }

// Predict implements classifier.Model.
func (m *Model) Predict(ctx context.Context, input []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := m.interpreter.GetInputTensor(0)
	if in == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}

	buf := in.Float32s()
	if len(buf) != len(input) {
		return nil, fmt.Errorf("input tensor holds %d values, got %d", len(buf), len(input))
	}
	for i, x := range input {
		buf[i] = float32(x)
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := m.interpreter.GetOutputTensor(0)
	size := out.Dim(out.NumDims() - 1)
	raw := out.Float32s()
	probs := make([]float64, size)
	for i := range probs {
		probs[i] = float64(raw[i])
	}
	return probs, nil
}

// Close implements classifier.Model.
func (m *Model) Close() error {
	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	return nil
}

// ThreadCount returns configured when positive, otherwise the physical core
// count reported by the CPU, bounded by runtime.NumCPU.
func ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured > 0 {
		return min(configured, available)
	}
	if cores := cpuid.CPU.PhysicalCores; cores > 0 {
		return min(cores, available)
	}
	if cores := cpuid.CPU.LogicalCores; cores > 0 {
		return min(cores, available)
	}
	return available
}
