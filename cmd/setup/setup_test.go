package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/conf"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
)

func writeLinearManifest(t *testing.T) string {
	t.Helper()

	labels := []string{"Pipistrellus pipistrellus", "Nyctalus noctula"}
	manifest := classifier.LinearManifest{
		Name:    "test-linear",
		Labels:  labels,
		Weights: make([][]float64, len(labels)),
		Bias:    []float64{1, 0},
	}
	for i := range manifest.Weights {
		manifest.Weights[i] = make([]float64, features.ModelInputSize)
	}

	data, err := yaml.Marshal(manifest)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestBuildPipelineStartsNotReady(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{Pipeline: conf.PipelineSettings{Transform: conf.TransformFFT}}
	p, cls, err := BuildPipeline(settings, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.False(t, cls.Ready())
}

func TestBuildPipelineRejectsUnknownTransform(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{Pipeline: conf.PipelineSettings{Transform: "wavelet"}}
	_, _, err := BuildPipeline(settings, nil)
	assert.Error(t, err)
}

func TestLoadModelLinear(t *testing.T) {
	t.Parallel()

	_, cls, err := BuildPipeline(&conf.Settings{}, nil)
	require.NoError(t, err)

	err = LoadModel(t.Context(), cls, &conf.ModelSettings{Type: conf.ModelLinear, Path: writeLinearManifest(t)})
	require.NoError(t, err)
	assert.True(t, cls.Ready())
	assert.Equal(t, []string{"Pipistrellus pipistrellus", "Nyctalus noctula"}, cls.Labels())
}

func TestLoaderErrors(t *testing.T) {
	t.Parallel()

	_, err := Loader(&conf.ModelSettings{Type: conf.ModelLinear})
	assert.ErrorIs(t, err, ErrNoModelSource)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelNotReady))

	_, err = Loader(&conf.ModelSettings{Type: "onnx", Path: "model.onnx"})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadModelMissingFileKeepsClassifierNotReady(t *testing.T) {
	t.Parallel()

	_, cls, err := BuildPipeline(&conf.Settings{}, nil)
	require.NoError(t, err)

	err = LoadModel(t.Context(), cls, &conf.ModelSettings{
		Type: conf.ModelLinear,
		Path: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO) || errors.IsCategory(err, errors.CategoryModelLoad))
	assert.False(t, cls.Ready())
}
