package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
)

// Features holds per-frame timbre descriptors derived from the spectrum
type Features struct {
	Brightness  float64 `json:"brightness"`  // Normalized spectral centroid, 0-1
	Breathiness float64 `json:"breathiness"` // High-band noise energy ratio, 0-1
}

// FeatureExtractorParams contains parameters for spectral feature extraction
type FeatureExtractorParams struct {
	FFTSize    int `json:"fft_size"`
	SampleRate int `json:"sample_rate"`

	// Analysis band for the centroid (Hz)
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`

	// Band boundary above which energy counts as breath noise (Hz)
	NoiseFloorFreq float64 `json:"noise_floor_freq"`

	// Gamma curve applied to the normalized centroid. Values below 1 expand
	// the low end where sung vowels live.
	BrightnessGamma float64 `json:"brightness_gamma"`

	// Extract recomputes only every Nth call; intermediate calls return the
	// held-over value. 1 means every call.
	EvalInterval int `json:"eval_interval"`
}

// DefaultFeatureExtractorParams returns parameters tuned for sung voice
func DefaultFeatureExtractorParams(sampleRate int) FeatureExtractorParams {
	return FeatureExtractorParams{
		FFTSize:         2048,
		SampleRate:      sampleRate,
		MinFreq:         80.0,
		MaxFreq:         8000.0,
		NoiseFloorFreq:  4000.0,
		BrightnessGamma: 0.6,
		EvalInterval:    4,
	}
}

// FeatureExtractor derives brightness and breathiness from the magnitude
// spectrum of the most recent frame.
//
// Brightness is the spectral centroid restricted to [MinFreq, MaxFreq],
// normalized into [0,1] and shaped with a gamma curve. Breathiness is the
// fraction of band energy above NoiseFloorFreq.
//
// Both are pure functions of the input window; the only state is the
// hold-over cache used to bound CPU cost when EvalInterval > 1.
type FeatureExtractor struct {
	params    FeatureExtractorParams
	transform *Transform

	// Zero-order hold between evaluations
	held      Features
	callCount int
}

// NewFeatureExtractor creates a feature extractor with the given parameters
func NewFeatureExtractor(params FeatureExtractorParams) (*FeatureExtractor, error) {
	if params.EvalInterval < 1 {
		return nil, fmt.Errorf("eval interval must be >= 1, got %d", params.EvalInterval)
	}
	if params.MinFreq >= params.MaxFreq {
		return nil, fmt.Errorf("min freq (%.1f) must be below max freq (%.1f)", params.MinFreq, params.MaxFreq)
	}
	if params.BrightnessGamma <= 0 {
		return nil, fmt.Errorf("brightness gamma must be positive, got %g", params.BrightnessGamma)
	}

	transform, err := NewTransform(params.FFTSize, params.SampleRate)
	if err != nil {
		return nil, err
	}

	return &FeatureExtractor{
		params:    params,
		transform: transform,
	}, nil
}

// Extract computes features for the given samples. On skipped calls (per
// EvalInterval) the previously computed values are returned unchanged.
func (fe *FeatureExtractor) Extract(samples []float64) (Features, error) {
	fe.callCount++
	if (fe.callCount-1)%fe.params.EvalInterval != 0 {
		return fe.held, nil
	}

	spectrum, err := fe.transform.Compute(samples)
	if err != nil {
		return fe.held, err
	}

	fe.held = Features{
		Brightness:  fe.brightness(spectrum),
		Breathiness: fe.breathiness(spectrum),
	}

	return fe.held, nil
}

// brightness computes the gamma-shaped normalized spectral centroid
func (fe *FeatureExtractor) brightness(spectrum *Spectrum) float64 {
	numerator := 0.0
	denominator := 0.0

	for i, freq := range spectrum.FreqBins {
		if freq < fe.params.MinFreq || freq > fe.params.MaxFreq {
			continue
		}
		numerator += freq * spectrum.Magnitude[i]
		denominator += spectrum.Magnitude[i]
	}

	if denominator == 0 {
		return 0.0
	}

	centroid := numerator / denominator
	normalized := (centroid - fe.params.MinFreq) / (fe.params.MaxFreq - fe.params.MinFreq)

	return common.Clamp01(math.Pow(common.Clamp01(normalized), fe.params.BrightnessGamma))
}

// breathiness computes the high-band to total band energy ratio
func (fe *FeatureExtractor) breathiness(spectrum *Spectrum) float64 {
	noiseEnergy := 0.0
	totalEnergy := 0.0

	for i, freq := range spectrum.FreqBins {
		if freq < fe.params.MinFreq || freq > fe.params.MaxFreq {
			continue
		}
		energy := spectrum.Magnitude[i] * spectrum.Magnitude[i]
		totalEnergy += energy
		if freq >= fe.params.NoiseFloorFreq {
			noiseEnergy += energy
		}
	}

	if totalEnergy == 0 {
		return 0.0
	}

	return common.Clamp01(noiseEnergy / totalEnergy)
}

// Held returns the current hold-over values without recomputing
func (fe *FeatureExtractor) Held() Features {
	return fe.held
}

// Reset clears the hold-over cache and evaluation phase
func (fe *FeatureExtractor) Reset() {
	fe.held = Features{}
	fe.callCount = 0
}

// GetParameters returns the current parameters
func (fe *FeatureExtractor) GetParameters() FeatureExtractorParams {
	return fe.params
}
