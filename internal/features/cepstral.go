package features

import (
	"math"

	"github.com/Demr1on/batmap-app/internal/dsp"
)

// dctBasis[k][n] = cos(π·k·(2n+1) / (2·BandCount))
var dctBasis = func() [CoefficientCount][BandCount]float64 {
	var basis [CoefficientCount][BandCount]float64
	for k := range CoefficientCount {
		for n := range BandCount {
			basis[k][n] = math.Cos(math.Pi * float64(k) * float64(2*n+1) / (2 * BandCount))
		}
	}
	return basis
}()

// MFCC returns the frame-averaged cepstral coefficients. Each spectrum is
// summed into BandCount equal-width linear bands, the band vector is passed
// through a type-II cosine transform and the first CoefficientCount values
// are accumulated. An empty spectrogram yields zeros.
func MFCC(spec dsp.Spectrogram) []float64 {
	coeffs := make([]float64, CoefficientCount)
	if len(spec) == 0 {
		return coeffs
	}

	var bands [BandCount]float64
	for _, frame := range spec {
		linearBands(frame, &bands)
		for k := range CoefficientCount {
			var sum float64
			for n := range BandCount {
				sum += bands[n] * dctBasis[k][n]
			}
			coeffs[k] += sum
		}
	}

	frames := float64(len(spec))
	for k := range coeffs {
		coeffs[k] /= frames
	}
	return coeffs
}

// linearBands sums frame into BandCount bands; band b covers bins
// [⌊b·N/BandCount⌋, ⌊(b+1)·N/BandCount⌋).
func linearBands(frame dsp.Spectrum, bands *[BandCount]float64) {
	n := len(frame)
	for b := range BandCount {
		start := b * n / BandCount
		end := (b + 1) * n / BandCount
		var sum float64
		for _, m := range frame[start:end] {
			sum += m
		}
		bands[b] = sum
	}
}
