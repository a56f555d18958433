// Package audio holds decoded recordings and the frame windower used by
// feature extraction.
package audio

import (
	"fmt"
	"iter"
	"math"
	"time"
)

// Analysis window geometry shared by the spectral and cepstral extractors.
const (
	WindowSize = 1024 // samples per frame
	HopSize    = 512  // samples between frame starts, 50% overlap
)

// NoiseFloor is the amplitude below which a sample is treated as silence by
// the noise gate.
const NoiseFloor = 0.01

// Signal is a mono recording. It is immutable after construction; Samples
// exposes the backing array and callers must not modify it.
type Signal struct {
	samples    []float64
	sampleRate int
}

// NewSignal copies samples into a new Signal.
func NewSignal(samples []float64, sampleRate int) (Signal, error) {
	if sampleRate <= 0 {
		return Signal{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	owned := make([]float64, len(samples))
	copy(owned, samples)
	return Signal{samples: owned, sampleRate: sampleRate}, nil
}

// Samples returns the sample values in time order.
func (s Signal) Samples() []float64 {
	return s.samples
}

// SampleRate returns samples per second.
func (s Signal) SampleRate() int {
	return s.sampleRate
}

// Len returns the number of samples.
func (s Signal) Len() int {
	return len(s.samples)
}

// Duration returns the length of the recording in time.
func (s Signal) Duration() time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.samples)) / float64(s.sampleRate) * float64(time.Second))
}

// Frames yields (offset, frame) for every full window of size samples,
// advancing by hop. A trailing partial window is never yielded and a signal
// shorter than size yields nothing. Each range over the sequence starts again
// from offset 0. Frames are views into the signal, valid only for the
// duration of the yield.
func (s Signal) Frames(size, hop int) iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		if size <= 0 || hop <= 0 {
			return
		}
		for offset := 0; offset+size <= len(s.samples); offset += hop {
			if !yield(offset, s.samples[offset:offset+size:offset+size]) {
				return
			}
		}
	}
}

// FrameCount returns how many frames Frames yields for a signal of length
// samples: floor((length-size)/hop)+1, or 0 when length < size.
func FrameCount(length, size, hop int) int {
	if size <= 0 || hop <= 0 || length < size {
		return 0
	}
	return (length-size)/hop + 1
}

// NoiseGate returns a copy of s with every sample whose magnitude does not
// exceed threshold set to zero.
func NoiseGate(s Signal, threshold float64) Signal {
	gated := make([]float64, len(s.samples))
	for i, x := range s.samples {
		if math.Abs(x) > threshold {
			gated[i] = x
		}
	}
	return Signal{samples: gated, sampleRate: s.sampleRate}
}
