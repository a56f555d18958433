package features

import (
	"fmt"
	"math"
	"time"

	"github.com/Demr1on/batmap-app/internal/audio"
	"github.com/Demr1on/batmap-app/internal/dsp"
	"github.com/Demr1on/batmap-app/internal/errors"
	"github.com/Demr1on/batmap-app/internal/logger"
)

// Extractor computes feature vectors with a fixed transform engine. It holds
// no per-call state and may be shared.
type Extractor struct {
	transform dsp.Transformer
	noiseGate bool
	log       logger.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithNoiseGate zeroes samples at or below audio.NoiseFloor before any
// feature is computed.
func WithNoiseGate(enabled bool) Option {
	return func(e *Extractor) { e.noiseGate = enabled }
}

// WithLogger overrides the package logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// NewExtractor returns an Extractor using t for all spectra.
func NewExtractor(t dsp.Transformer, opts ...Option) *Extractor {
	e := &Extractor{transform: t, log: GetLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs windowing, the transform and every extractor in a fixed
// sequential order. Non-finite samples are rejected.
func (e *Extractor) Extract(sig audio.Signal) (*Vector, error) {
	if e.transform == nil {
		return nil, errors.Newf("feature extractor has no transform engine").
			Component("features").
			Category(errors.CategoryState).
			Build()
	}
	if i, ok := firstNonFinite(sig.Samples()); ok {
		return nil, errors.New(fmt.Errorf("sample %d is not a finite number", i)).
			Component("features").
			Category(errors.CategoryValidation).
			Context("sample_index", i).
			Build()
	}

	start := time.Now()
	if e.noiseGate {
		sig = audio.NoiseGate(sig, audio.NoiseFloor)
	}

	spec := dsp.Compute(sig, e.transform)
	samples := sig.Samples()
	sr := sig.SampleRate()

	v := &Vector{
		FrequencyRange:    SpectralFrequencyRange(spec, sr),
		DominantFrequency: DominantFrequency(spec, sr),
		CallDuration:      CallDuration(samples, sr),
		CallInterval:      CallInterval(samples, sr),
		AmplitudePattern:  AmplitudePattern(samples),
		SpectralCentroid:  SpectralCentroid(spec),
		SpectralRolloff:   SpectralRolloff(spec),
		MFCC:              MFCC(spec),
		ZeroCrossingRate:  ZeroCrossingRate(samples),
		RMSEnergy:         RMSEnergy(samples),
	}

	e.log.Debug("features extracted",
		logger.String("transform", e.transform.Name()),
		logger.Int("samples", len(samples)),
		logger.Int("frames", len(spec)),
		logger.Float64("dominant_frequency", v.DominantFrequency),
		logger.Duration("elapsed", time.Since(start)))

	return v, nil
}

func firstNonFinite(samples []float64) (int, bool) {
	for i, x := range samples {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i, true
		}
	}
	return 0, false
}
