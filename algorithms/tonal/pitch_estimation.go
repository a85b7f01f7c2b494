package tonal

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
)

// ErrInsufficientSamples is returned when a buffer is too short to cover the
// configured lag range. The caller should skip the frame; this is not fatal.
var ErrInsufficientSamples = errors.New("buffer shorter than twice the maximum lag")

// PitchEstimate is the outcome of analyzing one buffer. A zero Frequency is
// the valid "no discernible pitch" result, not an error.
type PitchEstimate struct {
	Frequency  float64 `json:"frequency"`  // Fundamental in Hz, 0 = unvoiced
	Confidence float64 `json:"confidence"` // 0-1, never negative
}

// Voiced reports whether the estimate carries a usable fundamental
func (pe PitchEstimate) Voiced() bool {
	return pe.Frequency > 0
}

// PitchEstimatorParams contains parameters for the YIN estimator
type PitchEstimatorParams struct {
	SampleRate int `json:"sample_rate"`

	// Frequency search range (Hz); bounds the candidate lag range
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`

	// Absolute threshold on the cumulative mean normalized difference.
	// Lower values demand clearer periodicity.
	ClarityThreshold float64 `json:"clarity_threshold"`

	// Buffers with RMS below this level (dBFS) are reported unvoiced
	MinVolumeDB float64 `json:"min_volume_db"`
}

// DefaultPitchEstimatorParams returns parameters tuned for sung voice
func DefaultPitchEstimatorParams(sampleRate int) PitchEstimatorParams {
	return PitchEstimatorParams{
		SampleRate:       sampleRate,
		MinFreq:          70.0,
		MaxFreq:          1200.0,
		ClarityThreshold: 0.15,
		MinVolumeDB:      -55.0,
	}
}

// PitchEstimator implements YIN fundamental-frequency estimation.
//
// References:
//   - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency
//     estimator for speech and music"
//
// The estimator computes the difference function over candidate lags bounded
// by the configured frequency range, normalizes it into the cumulative mean
// normalized difference function (CMNDF), and takes the first local minimum
// below the clarity threshold. Searching for the first qualifying minimum
// rather than the global one avoids octave-down errors. The chosen lag is
// refined with parabolic interpolation for sub-sample precision.
type PitchEstimator struct {
	params PitchEstimatorParams

	minLag int
	maxLag int

	// Scratch buffers reused across calls to keep the hot path allocation-free
	diff  []float64
	cmndf []float64
}

// NewPitchEstimator creates a YIN estimator with default voice parameters
func NewPitchEstimator(sampleRate int) (*PitchEstimator, error) {
	return NewPitchEstimatorWithParams(DefaultPitchEstimatorParams(sampleRate))
}

// NewPitchEstimatorWithParams creates a YIN estimator with custom parameters
func NewPitchEstimatorWithParams(params PitchEstimatorParams) (*PitchEstimator, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}
	if params.MinFreq <= 0 || params.MinFreq >= params.MaxFreq {
		return nil, fmt.Errorf("invalid frequency range [%.1f, %.1f]", params.MinFreq, params.MaxFreq)
	}
	if params.ClarityThreshold <= 0 || params.ClarityThreshold >= 1 {
		return nil, fmt.Errorf("clarity threshold must be in (0, 1), got %g", params.ClarityThreshold)
	}

	minLag := int(float64(params.SampleRate) / params.MaxFreq)
	if minLag < 2 {
		minLag = 2
	}
	maxLag := int(float64(params.SampleRate)/params.MinFreq) + 1

	if maxLag <= minLag {
		return nil, fmt.Errorf("frequency range [%.1f, %.1f] collapses at %d Hz sample rate",
			params.MinFreq, params.MaxFreq, params.SampleRate)
	}

	return &PitchEstimator{
		params: params,
		minLag: minLag,
		maxLag: maxLag,
		diff:   make([]float64, maxLag+1),
		cmndf:  make([]float64, maxLag+1),
	}, nil
}

// MinBufferSize returns the smallest buffer Estimate accepts
func (pe *PitchEstimator) MinBufferSize() int {
	return 2 * pe.maxLag
}

// Estimate analyzes one buffer and returns a pitch estimate. Unvoiced input
// (silence, noise, NaN/Inf contamination) yields {0, 0}. Buffers shorter than
// MinBufferSize fail with ErrInsufficientSamples.
func (pe *PitchEstimator) Estimate(samples []float64) (PitchEstimate, error) {
	if len(samples) < pe.MinBufferSize() {
		return PitchEstimate{}, fmt.Errorf("%w: got %d samples, need %d",
			ErrInsufficientSamples, len(samples), pe.MinBufferSize())
	}

	// Corrupted input is treated as silence, never propagated
	if common.HasInvalidSamples(samples) {
		return PitchEstimate{}, nil
	}

	if common.AmplitudeToDB(common.RMS(samples)) < pe.params.MinVolumeDB {
		return PitchEstimate{}, nil
	}

	pe.differenceFunction(samples)
	pe.cumulativeMeanNormalize()

	lag := pe.firstQualifyingMinimum()
	if lag < 0 {
		return PitchEstimate{}, nil
	}

	refined := common.ParabolicPeak(pe.cmndf, lag)
	if refined <= 0 {
		return PitchEstimate{}, nil
	}

	frequency := float64(pe.params.SampleRate) / refined
	if frequency < pe.params.MinFreq || frequency > pe.params.MaxFreq {
		return PitchEstimate{}, nil
	}

	return PitchEstimate{
		Frequency:  frequency,
		Confidence: common.Clamp01(1.0 - pe.cmndf[lag]),
	}, nil
}

// differenceFunction fills pe.diff with the YIN difference function over the
// analysis window, using a window length equal to the maximum lag.
func (pe *PitchEstimator) differenceFunction(samples []float64) {
	w := pe.maxLag

	pe.diff[0] = 0
	for tau := 1; tau <= pe.maxLag; tau++ {
		sum := 0.0
		for j := 0; j < w; j++ {
			delta := samples[j] - samples[j+tau]
			sum += delta * delta
		}
		pe.diff[tau] = sum
	}
}

// cumulativeMeanNormalize converts pe.diff into the CMNDF in pe.cmndf
func (pe *PitchEstimator) cumulativeMeanNormalize() {
	pe.cmndf[0] = 1.0

	runningSum := 0.0
	for tau := 1; tau <= pe.maxLag; tau++ {
		runningSum += pe.diff[tau]
		if runningSum == 0 {
			pe.cmndf[tau] = 1.0
			continue
		}
		pe.cmndf[tau] = pe.diff[tau] * float64(tau) / runningSum
	}
}

// firstQualifyingMinimum scans the candidate lag range for the first local
// minimum below the clarity threshold. Returns -1 when none qualifies.
func (pe *PitchEstimator) firstQualifyingMinimum() int {
	for tau := pe.minLag; tau <= pe.maxLag; tau++ {
		if pe.cmndf[tau] >= pe.params.ClarityThreshold {
			continue
		}

		// Walk down to the bottom of this dip
		for tau+1 <= pe.maxLag && pe.cmndf[tau+1] < pe.cmndf[tau] {
			tau++
		}
		return tau
	}

	return -1
}

// GetParameters returns the current parameters
func (pe *PitchEstimator) GetParameters() PitchEstimatorParams {
	return pe.params
}
