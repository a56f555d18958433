package features

import (
	"math"

	"github.com/Demr1on/batmap-app/internal/dsp"
)

// SpectralFrequencyRange scans every bin of every frame and tracks the
// frequencies of bins whose magnitude exceeds SignalThreshold.
func SpectralFrequencyRange(spec dsp.Spectrogram, sampleRate int) FrequencyRange {
	r := FrequencyRange{Min: math.Inf(1), Max: 0}
	for _, frame := range spec {
		for i, m := range frame {
			if m <= SignalThreshold {
				continue
			}
			f := dsp.BinFrequency(i, len(frame), sampleRate)
			r.Min = math.Min(r.Min, f)
			r.Max = math.Max(r.Max, f)
		}
	}
	return r
}

// DominantFrequency returns the frequency of the bin with the largest
// magnitude in the whole spectrogram. Ties keep the earliest bin.
func DominantFrequency(spec dsp.Spectrogram, sampleRate int) float64 {
	var maxMag, freq float64
	for _, frame := range spec {
		for i, m := range frame {
			if m > maxMag {
				maxMag = m
				freq = dsp.BinFrequency(i, len(frame), sampleRate)
			}
		}
	}
	return freq
}

// SpectralCentroid is Σ(i·m[i]) / Σ m[i] over all bins of all frames, in bin
// units.
func SpectralCentroid(spec dsp.Spectrogram) float64 {
	var weighted, total float64
	for _, frame := range spec {
		for i, m := range frame {
			weighted += float64(i) * m
			total += m
		}
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// SpectralRolloff accumulates squared magnitudes across frames in order and
// returns the bin index at which the running sum first reaches
// RolloffFraction of the total energy. If the threshold is never reached the
// first frame's length is returned; an empty spectrogram yields 0.
func SpectralRolloff(spec dsp.Spectrogram) int {
	if len(spec) == 0 {
		return 0
	}

	var total float64
	for _, frame := range spec {
		for _, m := range frame {
			total += m * m
		}
	}

	threshold := RolloffFraction * total
	var cumulative float64
	for _, frame := range spec {
		for i, m := range frame {
			cumulative += m * m
			if cumulative >= threshold {
				return i
			}
		}
	}
	return len(spec[0])
}
