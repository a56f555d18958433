// Package features computes the bioacoustic feature vector of a recording:
// spectral, temporal and cepstral descriptors plus the fixed-order model
// input built from them.
package features

import (
	"encoding/json"
	"math"
)

// Shape and scaling contracts of the model input. The scaling constants are
// part of the trained model and change only together with it.
const (
	EnvelopeSegments       = 100 // AmplitudePattern length
	CoefficientCount       = 13  // MFCC length
	BandCount              = 26  // linear bands feeding the cosine transform
	ModelEnvelopeValues    = 20  // leading envelope values copied into the model input
	DominantFrequencyScale = 100000.0
	SpectralScale          = 1000.0

	// ModelInputSize is the length of Vector.ModelInput.
	ModelInputSize = 5 + CoefficientCount + ModelEnvelopeValues
)

// SignalThreshold is the magnitude a bin or sample must exceed to count as
// signal in the frequency range and onset detectors.
const SignalThreshold = 0.01

// RolloffFraction is the share of total spectral energy that defines rolloff.
const RolloffFraction = 0.85

// FrequencyRange is the lowest and highest bin frequency above threshold.
// When nothing exceeds the threshold Min is +Inf and Max is 0.
type FrequencyRange struct {
	Min float64
	Max float64
}

// Detected reports whether any bin exceeded the threshold.
func (r FrequencyRange) Detected() bool {
	return !math.IsInf(r.Min, 1)
}

// MarshalJSON encodes the range as [min, max]. JSON has no infinity, so the
// "no signal" range is written as [0, 0].
func (r FrequencyRange) MarshalJSON() ([]byte, error) {
	if !r.Detected() {
		return json.Marshal([2]float64{0, 0})
	}
	return json.Marshal([2]float64{r.Min, r.Max})
}

// UnmarshalJSON decodes [min, max].
func (r *FrequencyRange) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// Vector is the full feature record of one recording.
type Vector struct {
	FrequencyRange    FrequencyRange `json:"frequency_range"`
	DominantFrequency float64        `json:"dominant_frequency"`
	CallDuration      float64        `json:"call_duration"`
	CallInterval      float64        `json:"call_interval"`
	AmplitudePattern  []float64      `json:"amplitude_pattern"`
	SpectralCentroid  float64        `json:"spectral_centroid"`
	SpectralRolloff   int            `json:"spectral_rolloff"`
	MFCC              []float64      `json:"mfcc"`
	ZeroCrossingRate  float64        `json:"zero_crossing_rate"`
	RMSEnergy         float64        `json:"rms_energy"`
}

// ModelInput assembles the inference input:
//
//	[dominant/100000, duration, interval, centroid/1000, rolloff/1000,
//	 mfcc[0:13], amplitude[0:20]]
//
// Missing coefficients or envelope values are zero-filled so the length is
// always ModelInputSize.
func (v *Vector) ModelInput() []float64 {
	out := make([]float64, 0, ModelInputSize)
	out = append(out,
		v.DominantFrequency/DominantFrequencyScale,
		v.CallDuration,
		v.CallInterval,
		v.SpectralCentroid/SpectralScale,
		float64(v.SpectralRolloff)/SpectralScale,
	)
	out = appendFixed(out, v.MFCC, CoefficientCount)
	return appendFixed(out, v.AmplitudePattern, ModelEnvelopeValues)
}

func appendFixed(dst, src []float64, n int) []float64 {
	for i := range n {
		if i < len(src) {
			dst = append(dst, src[i])
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}
