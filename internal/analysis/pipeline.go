// Package analysis connects audio decoding, feature extraction and
// classification into the pipeline run by jobs and the command line.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/Demr1on/batmap-app/internal/audio"
	"github.com/Demr1on/batmap-app/internal/classifier"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/features"
	"github.com/Demr1on/batmap-app/internal/logger"
	"github.com/Demr1on/batmap-app/internal/observability/metrics"
)

// Pipeline turns a recording into a classification result. It implements
// jobqueue.Action.
type Pipeline struct {
	extractor  *features.Extractor
	classifier *classifier.Classifier
	recorder   metrics.Recorder
	log        logger.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRecorder records decode and extraction timings.
func WithRecorder(r metrics.Recorder) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// NewPipeline returns a pipeline extracting with e and classifying with c.
func NewPipeline(e *features.Extractor, c *classifier.Classifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		extractor:  e,
		classifier: c,
		recorder:   metrics.NopRecorder{},
		log:        GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute implements jobqueue.Action. The payload is either encoded audio
// ([]byte) or an already decoded audio.Signal.
func (p *Pipeline) Execute(ctx context.Context, payload any) (*classifier.Result, error) {
	switch v := payload.(type) {
	case []byte:
		return p.ClassifyAudio(ctx, v)
	case audio.Signal:
		return p.ClassifySignal(ctx, v)
	case *audio.Signal:
		if v == nil {
			break
		}
		return p.ClassifySignal(ctx, *v)
	}
	return nil, errors.New(ErrUnsupportedPayload).
		Component("analysis").
		Category(errors.CategoryValidation).
		Context("payload_type", fmt.Sprintf("%T", payload)).
		Build()
}

// ClassifyAudio decodes data and classifies the recording.
func (p *Pipeline) ClassifyAudio(ctx context.Context, data []byte) (*classifier.Result, error) {
	sig, err := p.Decode(data)
	if err != nil {
		return nil, err
	}
	return p.ClassifySignal(ctx, sig)
}

// ClassifySignal extracts features from sig and classifies them.
func (p *Pipeline) ClassifySignal(ctx context.Context, sig audio.Signal) (*classifier.Result, error) {
	_, res, err := p.Analyze(ctx, sig)
	return res, err
}

// Decode wraps audio.Decode with timing.
func (p *Pipeline) Decode(data []byte) (audio.Signal, error) {
	start := time.Now()
	sig, err := audio.Decode(data)
	p.recorder.RecordDuration(metrics.OpDecode, time.Since(start).Seconds())
	if err != nil {
		p.recorder.RecordError(metrics.OpDecode, string(errors.CategoryOf(err)))
		return audio.Signal{}, err
	}
	p.recorder.RecordOperation(metrics.OpDecode, metrics.StatusSuccess)
	return sig, nil
}

// Analyze returns the feature vector together with the result.
func (p *Pipeline) Analyze(ctx context.Context, sig audio.Signal) (*features.Vector, *classifier.Result, error) {
	if p.extractor == nil || p.classifier == nil {
		return nil, nil, errors.Newf("pipeline is missing an extractor or classifier").
			Component("analysis").
			Category(errors.CategoryState).
			Build()
	}

	start := time.Now()
	vec, err := p.extractor.Extract(sig)
	p.recorder.RecordDuration(metrics.OpExtraction, time.Since(start).Seconds())
	if err != nil {
		p.recorder.RecordError(metrics.OpExtraction, string(errors.CategoryOf(err)))
		return nil, nil, err
	}
	p.recorder.RecordOperation(metrics.OpExtraction, metrics.StatusSuccess)

	res, err := p.classifier.Classify(ctx, vec)
	if err != nil {
		return vec, nil, err
	}

	p.log.Debug("recording analyzed",
		logger.Int("samples", sig.Len()),
		logger.Int("sample_rate", sig.SampleRate()),
		logger.String("label", res.Label),
		logger.Duration("elapsed", time.Since(start)))
	return vec, res, nil
}
