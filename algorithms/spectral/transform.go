package spectral

import (
	"fmt"
	"math/cmplx"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/windowing"
)

// Transform computes fixed-size windowed magnitude spectra. The size and
// window are decided at construction so the per-call path allocates nothing
// beyond the output slice and stays predictable inside the audio deadline.
type Transform struct {
	size       int
	sampleRate int
	fft        *FFT
	window     *windowing.Hann
	freqBins   []float64
	buf        []float64
}

// Spectrum holds a single-frame magnitude spectrum (positive frequencies only)
type Spectrum struct {
	Magnitude  []float64 `json:"magnitude"`  // Bin magnitudes, len = size/2 + 1
	FreqBins   []float64 `json:"freq_bins"`  // Center frequency of each bin (Hz)
	SampleRate int       `json:"sample_rate"`
	Size       int       `json:"size"` // FFT size
}

// NewTransform creates a windowed FFT of the given power-of-two size.
func NewTransform(size, sampleRate int) (*Transform, error) {
	if !common.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of two, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	bins := size/2 + 1
	freqBins := make([]float64, bins)
	for i := 0; i < bins; i++ {
		freqBins[i] = float64(i) * float64(sampleRate) / float64(size)
	}

	return &Transform{
		size:       size,
		sampleRate: sampleRate,
		fft:        NewFFT(),
		window:     windowing.NewHann(size, false),
		freqBins:   freqBins,
		buf:        make([]float64, size),
	}, nil
}

// Compute windows the most recent `size` samples and returns the magnitude
// spectrum. Inputs longer than the FFT size use the tail; shorter inputs are
// zero-padded at the end.
func (t *Transform) Compute(samples []float64) (*Spectrum, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty signal")
	}

	if len(samples) >= t.size {
		copy(t.buf, samples[len(samples)-t.size:])
	} else {
		n := copy(t.buf, samples)
		for i := n; i < t.size; i++ {
			t.buf[i] = 0
		}
	}

	if err := t.window.ApplyInPlace(t.buf); err != nil {
		return nil, err
	}

	spectrum := t.fft.Compute(t.buf)

	bins := t.size/2 + 1
	magnitude := make([]float64, bins)
	for i := 0; i < bins; i++ {
		magnitude[i] = cmplx.Abs(spectrum[i])
	}

	return &Spectrum{
		Magnitude:  magnitude,
		FreqBins:   t.freqBins,
		SampleRate: t.sampleRate,
		Size:       t.size,
	}, nil
}

// Size returns the FFT size
func (t *Transform) Size() int {
	return t.size
}

// FreqResolution returns the bin width in Hz
func (t *Transform) FreqResolution() float64 {
	return float64(t.sampleRate) / float64(t.size)
}
