package dsp

import (
	"github.com/Demr1on/batmap-app/internal/audio"
)

// Spectrogram is the ordered sequence of frame spectra; index is time order.
// It is empty when the signal is shorter than one window.
type Spectrogram []Spectrum

// Compute transforms every full analysis window of sig, in frame order.
func Compute(sig audio.Signal, t Transformer) Spectrogram {
	frames := audio.FrameCount(sig.Len(), audio.WindowSize, audio.HopSize)
	out := make(Spectrogram, 0, frames)
	for _, frame := range sig.Frames(audio.WindowSize, audio.HopSize) {
		out = append(out, t.Magnitudes(frame))
	}
	return out
}

// BinFrequency returns the frequency assigned to bin i of a spectrum of
// frameLen bins: i·sampleRate/(2·frameLen).
func BinFrequency(i, frameLen, sampleRate int) float64 {
	if frameLen == 0 {
		return 0
	}
	return float64(i) * float64(sampleRate) / (2 * float64(frameLen))
}
