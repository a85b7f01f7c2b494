package capture

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/temporal"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/logging"
)

func sineChunk(freq float64, size, sampleRate int, captureTime time.Time) AudioChunk {
	samples := make([]float64, size)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return AudioChunk{Samples: samples, SampleRate: sampleRate, CaptureTime: captureTime}
}

func silentChunk(size, sampleRate int, captureTime time.Time) AudioChunk {
	return AudioChunk{Samples: make([]float64, size), SampleRate: sampleRate, CaptureTime: captureTime}
}

// A silent gap must clear all pitch memory: the first note after a rest may
// not be smoothed against, or glide from, the pitch sung before the rest.
func TestPipeline_SilentGapClearsPitchState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoTuneEnabled = true
	cfg.AutoTuneSpeed = 1.0 // Slowest glide, most sensitive to stale state

	p, err := newPipeline(cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}

	size := cfg.FallbackBufferSize
	step := cfg.FallbackDuration()
	now := time.Now()

	// Sing A4 long enough to settle into sustain
	var frame ControlFrame
	for iter := 0; iter < 4; iter++ {
		frame, err = p.process(sineChunk(440.0, size, cfg.SampleRate, now))
		if err != nil {
			t.Fatalf("process(440 Hz): %v", err)
		}
		now = now.Add(step)
	}
	if !frame.Voiced() || math.Abs(frame.Frequency-440.0) > 4.4 {
		t.Fatalf("pre-gap frame: got %g Hz voiced=%v, want ~440", frame.Frequency, frame.Voiced())
	}

	// Rest long enough for release to settle into silence
	for rest := 0; rest < 6; rest++ {
		frame, err = p.process(silentChunk(size, cfg.SampleRate, now))
		if err != nil {
			t.Fatalf("process(silence): %v", err)
		}
		now = now.Add(step)
	}
	if frame.Articulation != temporal.StateSilence {
		t.Fatalf("gap frame: articulation %v, want silence", frame.Articulation)
	}
	if frame.Voiced() {
		t.Fatalf("gap frame: voiced at %g Hz, want unvoiced", frame.Frequency)
	}

	// The onset after the rest is a fifth-plus-octave up. Stale Kalman or
	// corrector state would drag the first voiced frame well below the new
	// note; a clean restart locks E5 immediately.
	frame, err = p.process(sineChunk(660.0, size, cfg.SampleRate, now))
	if err != nil {
		t.Fatalf("process(660 Hz): %v", err)
	}
	if !frame.Voiced() {
		t.Fatal("post-gap frame: unvoiced")
	}

	target, _ := tonal.NoteToFrequency("E", 5)
	if math.Abs(frame.Frequency-target) > target*0.01 {
		t.Errorf("post-gap frame: got %g Hz, want within 1%% of %g (E5)", frame.Frequency, target)
	}
	if frame.Frequency < 650.0 {
		t.Errorf("post-gap frame at %g Hz shows glide from the pre-gap pitch", frame.Frequency)
	}
	if frame.NoteName != "E" || frame.Octave != 5 {
		t.Errorf("post-gap note: got %s%d, want E5", frame.NoteName, frame.Octave)
	}
}

func TestPipeline_EmptyChunkRejected(t *testing.T) {
	p, err := newPipeline(DefaultConfig(), &logging.NoOpLogger{})
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}

	if _, err := p.process(AudioChunk{CaptureTime: time.Now()}); err == nil {
		t.Error("empty chunk: expected error")
	}
}

func TestPipeline_WarmUpError(t *testing.T) {
	cfg := DefaultConfig()
	p, err := newPipeline(cfg, &logging.NoOpLogger{})
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}

	// One low-latency quantum cannot fill the analysis window
	_, err = p.process(sineChunk(440.0, cfg.QuantumSize, cfg.SampleRate, time.Now()))
	if !errors.Is(err, tonal.ErrInsufficientSamples) {
		t.Errorf("first quantum: got error %v, want ErrInsufficientSamples", err)
	}
}
