// Package dsp turns analysis frames into magnitude spectra.
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum holds one magnitude per frequency bin. Its length equals the frame
// length; the mirrored upper half is kept.
type Spectrum []float64

// Transformer computes the magnitude spectrum of a real-valued frame.
// Implementations must be safe for concurrent use.
type Transformer interface {
	Magnitudes(frame []float64) Spectrum
	Name() string
}

// Engine names accepted by NewTransformer.
const (
	EngineDFT = "dft"
	EngineFFT = "fft"
)

// NewTransformer returns the engine registered under name.
func NewTransformer(name string) (Transformer, error) {
	switch strings.ToLower(name) {
	case "", EngineDFT:
		return NewDFT(), nil
	case EngineFFT:
		return FFT{}, nil
	default:
		return nil, fmt.Errorf("unknown transform engine %q", name)
	}
}

// DFT is the direct O(N²) discrete Fourier transform:
//
//	X[k] = Σ x[n]·(cos(-2πkn/N) + i·sin(-2πkn/N))
//
// Twiddle factors are computed once per frame length and reused; the
// summation itself stays quadratic.
type DFT struct {
	mu       sync.RWMutex
	twiddles map[int]*twiddleTable
}

type twiddleTable struct {
	cos []float64
	sin []float64
}

// NewDFT returns a reference transformer with an empty twiddle cache.
func NewDFT() *DFT {
	return &DFT{twiddles: make(map[int]*twiddleTable)}
}

// Name implements Transformer.
func (d *DFT) Name() string { return EngineDFT }

// Magnitudes implements Transformer.
func (d *DFT) Magnitudes(frame []float64) Spectrum {
	n := len(frame)
	out := make(Spectrum, n)
	if n == 0 {
		return out
	}

	tw := d.table(n)
	for k := range n {
		var re, im float64
		// (k·n) mod N indexes the same angle as 2πkn/N
		idx := 0
		for _, x := range frame {
			re += x * tw.cos[idx]
			im += x * tw.sin[idx]
			idx += k
			if idx >= n {
				idx -= n
			}
		}
		out[k] = math.Sqrt(re*re + im*im)
	}
	return out
}

func (d *DFT) table(n int) *twiddleTable {
	d.mu.RLock()
	tw, ok := d.twiddles[n]
	d.mu.RUnlock()
	if ok {
		return tw
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if tw, ok = d.twiddles[n]; ok {
		return tw
	}
	tw = &twiddleTable{cos: make([]float64, n), sin: make([]float64, n)}
	for m := range n {
		angle := -2 * math.Pi * float64(m) / float64(n)
		tw.cos[m] = math.Cos(angle)
		tw.sin[m] = math.Sin(angle)
	}
	d.twiddles[n] = tw
	return tw
}

// FFT computes the same spectrum as DFT with go-dsp's fast transform.
type FFT struct{}

// Name implements Transformer.
func (FFT) Name() string { return EngineFFT }

// Magnitudes implements Transformer.
func (FFT) Magnitudes(frame []float64) Spectrum {
	out := make(Spectrum, len(frame))
	if len(frame) == 0 {
		return out
	}
	for i, c := range fft.FFTReal(frame) {
		out[i] = cmplx.Abs(c)
	}
	return out
}
