package classifier

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/httpclient"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// LinearManifest is the on-disk form of a LinearModel:
//
//	name: bat-linear-v1
//	labels: [Zwergfledermaus, ...]
//	weights:          # one row of features.ModelInputSize values per label
//	  - [...]
//	bias: [...]
type LinearManifest struct {
	Name    string      `yaml:"name"`
	Labels  []string    `yaml:"labels"`
	Weights [][]float64 `yaml:"weights"`
	Bias    []float64   `yaml:"bias"`
}

// LinearModel is a multinomial logistic regression: softmax(W·x + b).
type LinearModel struct {
	name    string
	labels  []string
	weights [][]float64
	bias    []float64
}

// NewLinearModel validates the manifest shape and returns the model.
func NewLinearModel(m LinearManifest) (*LinearModel, error) {
	if len(m.Labels) == 0 {
		return nil, fmt.Errorf("linear model %q has no labels", m.Name)
	}
	if len(m.Weights) != len(m.Labels) {
		return nil, fmt.Errorf("linear model %q has %d weight rows for %d labels", m.Name, len(m.Weights), len(m.Labels))
	}
	if len(m.Bias) != len(m.Labels) {
		return nil, fmt.Errorf("linear model %q has %d bias terms for %d labels", m.Name, len(m.Bias), len(m.Labels))
	}
	for i, row := range m.Weights {
		if len(row) != features.ModelInputSize {
			return nil, fmt.Errorf("linear model %q: weight row %d has %d values, want %d",
				m.Name, i, len(row), features.ModelInputSize)
		}
	}

	name := m.Name
	if name == "" {
		name = "linear"
	}
	return &LinearModel{
		name:    name,
		labels:  append([]string(nil), m.Labels...),
		weights: m.Weights,
		bias:    append([]float64(nil), m.Bias...),
	}, nil
}

// ParseLinearModel decodes a YAML manifest.
func ParseLinearModel(data []byte) (*LinearModel, error) {
	var m LinearManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse linear model manifest: %w", err)
	}
	return NewLinearModel(m)
}

// Name returns the manifest name.
func (m *LinearModel) Name() string { return m.name }

// Labels implements Model.
func (m *LinearModel) Labels() []string { return m.labels }

// Close implements Model.
func (m *LinearModel) Close() error { return nil }

// Predict implements Model.
func (m *LinearModel) Predict(ctx context.Context, input []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) != features.ModelInputSize {
		return nil, fmt.Errorf("input has %d values, want %d", len(input), features.ModelInputSize)
	}

	logits := make([]float64, len(m.labels))
	for i, row := range m.weights {
		logits[i] = floats.Dot(row, input) + m.bias[i]
	}
	return softmax(logits), nil
}

// softmax normalizes logits in place, shifted by the maximum for stability.
func softmax(logits []float64) []float64 {
	peak := floats.Max(logits)
	for i, z := range logits {
		logits[i] = math.Exp(z - peak)
	}
	floats.Scale(1/floats.Sum(logits), logits)
	return logits
}

// LinearLoader loads a LinearModel manifest from a local path or an
// http(s) URL.
type LinearLoader struct {
	Source string
	Client *httpclient.Client
}

// Load implements Loader.
func (l LinearLoader) Load(ctx context.Context) (Model, error) {
	data, err := ReadSource(ctx, l.Source, l.Client)
	if err != nil {
		return nil, err
	}
	m, err := ParseLinearModel(data)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("source", l.Source).
			Build()
	}
	GetLogger().Debug("linear model manifest parsed", logger.String("model", m.name), logger.String("source", l.Source))
	return m, nil
}

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ReadSource returns the bytes of a model artifact. Local paths may use
// environment variables and a leading ~/.
func ReadSource(ctx context.Context, source string, client *httpclient.Client) ([]byte, error) {
	if source == "" {
		return nil, errors.Newf("no model source configured").
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if IsRemote(source) {
		if client == nil {
			client = httpclient.New(nil)
			defer client.Close()
		}
		return client.Fetch(ctx, source)
	}

	path := os.ExpandEnv(source)
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.New(err).
				Component("classifier").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		path = filepath.Join(home, rest)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from application settings
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return data, nil
}
