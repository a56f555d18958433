package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CallDuration returns the recording length in seconds.
func CallDuration(samples []float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}

// CallInterval detects call onsets and returns the mean gap between
// consecutive onsets in seconds, or 0 with fewer than two onsets.
//
// An onset is a sample with |x| > SignalThreshold while not inside a call;
// the call ends at the first sample with |x| < SignalThreshold.
func CallInterval(samples []float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}

	var onsets []float64
	inCall := false
	for i, x := range samples {
		a := math.Abs(x)
		switch {
		case !inCall && a > SignalThreshold:
			inCall = true
			onsets = append(onsets, float64(i)/float64(sampleRate))
		case inCall && a < SignalThreshold:
			inCall = false
		}
	}

	if len(onsets) < 2 {
		return 0
	}
	gaps := make([]float64, len(onsets)-1)
	for i := 1; i < len(onsets); i++ {
		gaps[i-1] = onsets[i] - onsets[i-1]
	}
	return stat.Mean(gaps, nil)
}

// AmplitudePattern splits the signal into EnvelopeSegments segments of
// len/EnvelopeSegments samples, the last absorbing the remainder, and returns
// the mean absolute amplitude of each. Empty segments are 0.
func AmplitudePattern(samples []float64) []float64 {
	pattern := make([]float64, EnvelopeSegments)
	step := len(samples) / EnvelopeSegments

	for s := range EnvelopeSegments {
		start := s * step
		end := start + step
		if s == EnvelopeSegments-1 {
			end = len(samples)
		}
		if end <= start {
			continue
		}
		var sum float64
		for _, x := range samples[start:end] {
			sum += math.Abs(x)
		}
		pattern[s] = sum / float64(end-start)
	}
	return pattern
}

// ZeroCrossingRate is the fraction of adjacent sample pairs whose sign class
// (x >= 0 versus x < 0) differs.
func ZeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i] >= 0) != (samples[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// RMSEnergy returns sqrt(mean(x²)), or 0 for an empty signal.
func RMSEnergy(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, x := range samples {
		sum += x * x
	}
	return math.Sqrt(sum / float64(len(samples)))
}
