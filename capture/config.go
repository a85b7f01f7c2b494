package capture

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
)

// Config is the full, strongly-typed engine configuration. Defaults are
// resolved once through DefaultConfig; Validate runs before any processing
// starts and rejects anything out of range with a descriptive error.
type Config struct {
	// Capture
	SampleRate         int  `json:"sample_rate"`
	QuantumSize        int  `json:"quantum_size"`         // Low-latency mode chunk size
	FallbackBufferSize int  `json:"fallback_buffer_size"` // Buffered mode chunk size
	PreferLowLatency   bool `json:"prefer_low_latency"`
	FrameBuffer        int  `json:"frame_buffer"` // Delivery channel capacity

	// Pitch estimation
	ClarityThreshold float64 `json:"clarity_threshold"`
	MinFrequency     float64 `json:"min_frequency"`
	MaxFrequency     float64 `json:"max_frequency"`
	MinVolumeDB      float64 `json:"min_volume_db"`
	MinConfidence    float64 `json:"min_confidence"`

	// Spectral features
	FFTSize          int     `json:"fft_size"`
	SpectralInterval int     `json:"spectral_interval"` // Evaluate every Nth quantum
	NoiseFloorFreq   float64 `json:"noise_floor_freq"`
	BrightnessGamma  float64 `json:"brightness_gamma"`

	// Articulation
	EnergyThresholdDB  float64       `json:"energy_threshold_db"`
	SilenceThresholdDB float64       `json:"silence_threshold_db"`
	AttackDuration     time.Duration `json:"attack_duration"`
	MinSilenceDuration time.Duration `json:"min_silence_duration"`

	// Smoothing
	PitchProcessNoise     float64 `json:"pitch_process_noise"`     // Kalman Q
	PitchMeasurementNoise float64 `json:"pitch_measurement_noise"` // Kalman R
	VolumeAlpha           float64 `json:"volume_alpha"`
	BrightnessAlpha       float64 `json:"brightness_alpha"`
	BreathinessAlpha      float64 `json:"breathiness_alpha"`

	// Correction
	ScaleRoot       int             `json:"scale_root"`
	ScaleType       tonal.ScaleType `json:"scale_type"`
	AutoTuneEnabled bool            `json:"auto_tune_enabled"`
	AutoTuneSpeed   float64         `json:"auto_tune_speed"`
}

// DefaultConfig returns a fully-populated configuration tuned for live sung
// voice at 48 kHz.
func DefaultConfig() Config {
	return Config{
		SampleRate:         48000,
		QuantumSize:        128,
		FallbackBufferSize: 2048,
		PreferLowLatency:   true,
		FrameBuffer:        64,

		ClarityThreshold: 0.15,
		MinFrequency:     70.0,
		MaxFrequency:     1200.0,
		MinVolumeDB:      -55.0,
		MinConfidence:    0.5,

		FFTSize:          2048,
		SpectralInterval: 4,
		NoiseFloorFreq:   4000.0,
		BrightnessGamma:  0.6,

		EnergyThresholdDB:  -45.0,
		SilenceThresholdDB: -60.0,
		AttackDuration:     30 * time.Millisecond,
		MinSilenceDuration: 150 * time.Millisecond,

		PitchProcessNoise:     0.01,
		PitchMeasurementNoise: 0.1,
		VolumeAlpha:           0.3,
		BrightnessAlpha:       0.25,
		BreathinessAlpha:      0.25,

		ScaleRoot:       0,
		ScaleType:       tonal.ScaleChromatic,
		AutoTuneEnabled: false,
		AutoTuneSpeed:   0.5,
	}
}

// Validate checks every parameter range. It returns the first violation found.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample rate %d outside supported range [8000, 192000]", c.SampleRate)
	}
	if c.QuantumSize <= 0 {
		return fmt.Errorf("quantum size must be positive, got %d", c.QuantumSize)
	}
	if c.FallbackBufferSize < c.QuantumSize {
		return fmt.Errorf("fallback buffer size (%d) must be at least the quantum size (%d)",
			c.FallbackBufferSize, c.QuantumSize)
	}
	if c.FrameBuffer <= 0 {
		return fmt.Errorf("frame buffer must be positive, got %d", c.FrameBuffer)
	}

	if c.ClarityThreshold <= 0 || c.ClarityThreshold >= 1 {
		return fmt.Errorf("clarity threshold must be in (0, 1), got %g", c.ClarityThreshold)
	}
	if c.MinFrequency <= 0 || c.MinFrequency >= c.MaxFrequency {
		return fmt.Errorf("frequency range [%g, %g] invalid: min must be positive and below max",
			c.MinFrequency, c.MaxFrequency)
	}
	if c.MaxFrequency > float64(c.SampleRate)/2 {
		return fmt.Errorf("max frequency %g exceeds Nyquist limit %g",
			c.MaxFrequency, float64(c.SampleRate)/2)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0, 1], got %g", c.MinConfidence)
	}

	if !common.IsPowerOfTwo(c.FFTSize) {
		return fmt.Errorf("fft size must be a power of two, got %d", c.FFTSize)
	}
	if c.SpectralInterval < 1 {
		return fmt.Errorf("spectral interval must be >= 1, got %d", c.SpectralInterval)
	}
	if c.BrightnessGamma <= 0 {
		return fmt.Errorf("brightness gamma must be positive, got %g", c.BrightnessGamma)
	}
	if c.NoiseFloorFreq <= 0 || c.NoiseFloorFreq > float64(c.SampleRate)/2 {
		return fmt.Errorf("noise floor frequency %g outside (0, Nyquist]", c.NoiseFloorFreq)
	}

	if c.SilenceThresholdDB >= c.EnergyThresholdDB {
		return fmt.Errorf("silence threshold (%g dB) must be below energy threshold (%g dB)",
			c.SilenceThresholdDB, c.EnergyThresholdDB)
	}
	if c.AttackDuration < 0 || c.MinSilenceDuration < 0 {
		return fmt.Errorf("articulation durations must be non-negative")
	}

	if c.PitchProcessNoise <= 0 || c.PitchMeasurementNoise <= 0 {
		return fmt.Errorf("kalman noise parameters must be positive, got Q=%g R=%g",
			c.PitchProcessNoise, c.PitchMeasurementNoise)
	}
	for name, alpha := range map[string]float64{
		"volume":      c.VolumeAlpha,
		"brightness":  c.BrightnessAlpha,
		"breathiness": c.BreathinessAlpha,
	} {
		if alpha <= 0 || alpha > 1 {
			return fmt.Errorf("%s alpha must be in (0, 1], got %g", name, alpha)
		}
	}

	if c.ScaleRoot < 0 || c.ScaleRoot > 11 {
		return fmt.Errorf("scale root must be in 0..11, got %d", c.ScaleRoot)
	}
	if _, err := tonal.NewScale(c.ScaleRoot, c.ScaleType); err != nil {
		return err
	}
	if c.AutoTuneSpeed < 0 || c.AutoTuneSpeed > 1 {
		return fmt.Errorf("auto-tune speed must be in [0, 1], got %g", c.AutoTuneSpeed)
	}

	return nil
}

// QuantumDuration returns the wall-clock duration of one low-latency quantum
func (c Config) QuantumDuration() time.Duration {
	return time.Duration(float64(c.QuantumSize) / float64(c.SampleRate) * float64(time.Second))
}

// FallbackDuration returns the wall-clock duration of one fallback buffer
func (c Config) FallbackDuration() time.Duration {
	return time.Duration(float64(c.FallbackBufferSize) / float64(c.SampleRate) * float64(time.Second))
}
