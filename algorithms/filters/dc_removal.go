package filters

import (
	"math"
)

// DCRemoval implements a DC blocking filter (first-order high-pass) applied
// to incoming audio before pitch analysis. Microphone offset shows up as a
// spurious lag-zero correlation and skews the RMS gate, so every chunk runs
// through this first.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio
//     Applications" https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64 // R parameter (0 < R < 1)

	// State variables
	x1 float64 // Previous input sample
	y1 float64 // Previous output sample
}

// NewDCRemoval creates a DC blocker with the standard audio pole location
// (0.995, roughly an 8 Hz cutoff at 44.1 kHz).
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a DC blocker with the given -3dB cutoff.
// The pole location is R = 1 - 2*pi*fc/fs, clamped into (0, 1).
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	r := 1.0 - 2.0*math.Pi*cutoffFreq/float64(sampleRate)
	if r <= 0 {
		r = 0.5
	}
	if r >= 1 {
		r = 0.9999
	}
	return &DCRemoval{poleLocation: r}
}

// ProcessInPlace filters the buffer in place:
// y[n] = x[n] - x[n-1] + R*y[n-1]
func (dc *DCRemoval) ProcessInPlace(samples []float64) {
	for i, x := range samples {
		y := x - dc.x1 + dc.poleLocation*dc.y1
		dc.x1 = x
		dc.y1 = y
		samples[i] = y
	}
}

// Process filters the buffer into a new slice, leaving the input untouched
func (dc *DCRemoval) Process(samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	dc.ProcessInPlace(out)
	return out
}

// Reset clears the filter state
func (dc *DCRemoval) Reset() {
	dc.x1 = 0
	dc.y1 = 0
}
