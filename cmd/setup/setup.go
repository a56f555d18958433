// Package setup builds the classification pipeline shared by the CLI
// commands from loaded settings.
package setup

import (
	"context"
	"fmt"

	"github.com/Demr1on/batmap-app/internal/analysis"
	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/classifier/tflite"
	"github.com/Demr1on/batmap-app/internal/conf"
	"github.com/Demr1on/batmap-app/internal/dsp"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/httpclient"
	"github.com/Demr1on/batmap-app/internal/observability"
)

// ErrNoModelSource is returned by LoadModel when neither model.path nor
// model.url is configured.
var ErrNoModelSource = errors.NewStd("no model configured, set model.path or model.url")

// BuildPipeline assembles the extractor, the classifier and the pipeline.
// The classifier starts without a model; call LoadModel to make it ready.
// m may be nil.
func BuildPipeline(settings *conf.Settings, m *observability.Metrics) (*analysis.Pipeline, *classifier.Classifier, error) {
	transformer, err := dsp.NewTransformer(settings.Pipeline.Transform)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating transform engine: %w", err)
	}
	extractor := features.NewExtractor(transformer, features.WithNoiseGate(settings.Pipeline.NoiseGate))

	var clsOpts []classifier.Option
	var pipeOpts []analysis.PipelineOption
	if m != nil {
		clsOpts = append(clsOpts, classifier.WithMetrics(m.Classifier))
		pipeOpts = append(pipeOpts, analysis.WithRecorder(m.Classifier))
	}
	cls := classifier.New(clsOpts...)

	return analysis.NewPipeline(extractor, cls, pipeOpts...), cls, nil
}

// LoadModel loads the configured model into cls.
func LoadModel(ctx context.Context, cls *classifier.Classifier, settings *conf.ModelSettings) error {
	loader, err := Loader(settings)
	if err != nil {
		return err
	}
	return cls.Load(ctx, loader)
}

// Loader returns the loader for the configured model type. model.path wins
// over model.url.
func Loader(settings *conf.ModelSettings) (classifier.Loader, error) {
	source := settings.Path
	if source == "" {
		source = settings.URL
	}
	if source == "" {
		return nil, errors.New(ErrNoModelSource).
			Component("setup").
			Category(errors.CategoryModelNotReady).
			Build()
	}

	var client *httpclient.Client
	if classifier.IsRemote(source) {
		client = httpclient.New(nil)
	}

	switch settings.Type {
	case conf.ModelLinear:
		return closingLoader{classifier.LinearLoader{Source: source, Client: client}, client}, nil
	case conf.ModelTFLite:
		return closingLoader{tflite.Loader{
			Source:  source,
			Labels:  settings.Labels,
			Threads: settings.Threads,
			Client:  client,
		}, client}, nil
	default:
		return nil, errors.Newf("unsupported model type %q", settings.Type).
			Component("setup").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// closingLoader releases the HTTP client once the model has been fetched.
type closingLoader struct {
	classifier.Loader
	client *httpclient.Client
}

func (l closingLoader) Load(ctx context.Context) (classifier.Model, error) {
	if l.client != nil {
		defer l.client.Close()
	}
	return l.Loader.Load(ctx)
}
