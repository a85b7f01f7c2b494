package capture

import (
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate too low", func(c *Config) { c.SampleRate = 4000 }},
		{"sample rate too high", func(c *Config) { c.SampleRate = 400000 }},
		{"zero quantum", func(c *Config) { c.QuantumSize = 0 }},
		{"fallback below quantum", func(c *Config) { c.FallbackBufferSize = 64 }},
		{"zero frame buffer", func(c *Config) { c.FrameBuffer = 0 }},
		{"clarity at 1", func(c *Config) { c.ClarityThreshold = 1.0 }},
		{"min freq above max", func(c *Config) { c.MinFrequency = 2000 }},
		{"max freq above Nyquist", func(c *Config) { c.MaxFrequency = 30000 }},
		{"confidence above 1", func(c *Config) { c.MinConfidence = 1.5 }},
		{"fft size not power of two", func(c *Config) { c.FFTSize = 1000 }},
		{"zero spectral interval", func(c *Config) { c.SpectralInterval = 0 }},
		{"zero brightness gamma", func(c *Config) { c.BrightnessGamma = 0 }},
		{"noise floor above Nyquist", func(c *Config) { c.NoiseFloorFreq = 30000 }},
		{"silence above energy threshold", func(c *Config) { c.SilenceThresholdDB = -40 }},
		{"negative attack duration", func(c *Config) { c.AttackDuration = -time.Millisecond }},
		{"zero kalman Q", func(c *Config) { c.PitchProcessNoise = 0 }},
		{"volume alpha above 1", func(c *Config) { c.VolumeAlpha = 1.1 }},
		{"breathiness alpha zero", func(c *Config) { c.BreathinessAlpha = 0 }},
		{"scale root out of range", func(c *Config) { c.ScaleRoot = 12 }},
		{"unknown scale type", func(c *Config) { c.ScaleType = tonal.ScaleType("klingon") }},
		{"auto-tune speed above 1", func(c *Config) { c.AutoTuneSpeed = 2.0 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got none", tt.name)
		}
	}
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()

	// 128 samples at 48 kHz is ~2.67 ms; 2048 is ~42.7 ms
	if d := cfg.QuantumDuration(); d < 2600*time.Microsecond || d > 2700*time.Microsecond {
		t.Errorf("QuantumDuration: got %v, want ~2.67ms", d)
	}
	if d := cfg.FallbackDuration(); d < 42*time.Millisecond || d > 43*time.Millisecond {
		t.Errorf("FallbackDuration: got %v, want ~42.7ms", d)
	}
}
