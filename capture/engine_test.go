package capture

import (
	"errors"
	"math"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/temporal"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/logging"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

// fakeSource delivers pre-queued chunks over a buffered channel
type fakeSource struct {
	lowLatency bool
	openErr    error

	chunks    chan AudioChunk
	openedCfg SourceConfig

	openCount  atomic.Int32
	closeCount atomic.Int32
}

func newFakeSource(lowLatency bool) *fakeSource {
	return &fakeSource{
		lowLatency: lowLatency,
		chunks:     make(chan AudioChunk, 256),
	}
}

func (s *fakeSource) Open(cfg SourceConfig) (<-chan AudioChunk, error) {
	s.openCount.Add(1)
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.openedCfg = cfg
	return s.chunks, nil
}

func (s *fakeSource) SupportsLowLatency() bool { return s.lowLatency }

func (s *fakeSource) Close() error {
	s.closeCount.Add(1)
	return nil
}

// pushSine queues n chunks of a sine wave, with capture times advancing by
// one chunk duration per chunk.
func (s *fakeSource) pushSine(freq float64, chunkSize, sampleRate, n int, start time.Time) {
	chunkDur := time.Duration(float64(chunkSize) / float64(sampleRate) * float64(time.Second))
	phase := 0
	for c := 0; c < n; c++ {
		samples := make([]float64, chunkSize)
		for i := range samples {
			samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(phase+i)/float64(sampleRate))
		}
		phase += chunkSize
		s.chunks <- AudioChunk{
			Samples:     samples,
			SampleRate:  sampleRate,
			CaptureTime: start.Add(time.Duration(c) * chunkDur),
		}
	}
}

func collectFrames(t *testing.T, e *Engine, n int, timeout time.Duration) []ControlFrame {
	t.Helper()
	frames := make([]ControlFrame, 0, n)
	deadline := time.After(timeout)
	for len(frames) < n {
		select {
		case f := <-e.Frames():
			frames = append(frames, f)
		case <-deadline:
			t.Fatalf("timed out with %d of %d frames", len(frames), n)
		}
	}
	return frames
}

func TestEngine_FallbackWhenLowLatencyUnsupported(t *testing.T) {
	src := newFakeSource(false)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// Preferring low latency on a source that cannot sustain it must not
	// fail; the engine degrades to buffered mode.
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if got := e.Mode(); got != ModeFallback {
		t.Errorf("Mode: got %v, want fallback", got)
	}
	if src.openedCfg.QuantumSize != DefaultConfig().FallbackBufferSize {
		t.Errorf("opened quantum: got %d, want fallback buffer %d",
			src.openedCfg.QuantumSize, DefaultConfig().FallbackBufferSize)
	}
}

func TestEngine_LowLatencyMode(t *testing.T) {
	src := newFakeSource(true)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if got := e.Mode(); got != ModeLowLatency {
		t.Errorf("Mode: got %v, want low-latency", got)
	}
	if src.openedCfg.QuantumSize != DefaultConfig().QuantumSize {
		t.Errorf("opened quantum: got %d, want %d", src.openedCfg.QuantumSize, DefaultConfig().QuantumSize)
	}
}

func TestEngine_StartIdempotent(t *testing.T) {
	src := newFakeSource(true)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	if err := e.Start(); err != nil {
		t.Errorf("second Start: got %v, want nil no-op", err)
	}
	if got := src.openCount.Load(); got != 1 {
		t.Errorf("source opened %d times, want 1", got)
	}
}

func TestEngine_StopIdempotent(t *testing.T) {
	src := newFakeSource(true)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	e.Stop() // Before start: no-op

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Stop()
	e.Stop()

	if got := src.closeCount.Load(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
	if got := e.Mode(); got != ModeInactive {
		t.Errorf("Mode after stop: got %v, want inactive", got)
	}
}

func TestEngine_OpenErrorMapping(t *testing.T) {
	for _, sentinel := range []error{ErrPermissionDenied, ErrDeviceUnavailable} {
		src := newFakeSource(true)
		src.openErr = sentinel

		e, err := NewEngine(src)
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}

		err = e.Start()
		if !errors.Is(err, sentinel) {
			t.Errorf("Start with %v: got %v, want wrapped sentinel", sentinel, err)
		}
		if got := e.Mode(); got != ModeInactive {
			t.Errorf("Mode after failed start: got %v, want inactive", got)
		}
	}
}

func TestEngine_FrameFlow(t *testing.T) {
	src := newFakeSource(false)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	cfg := DefaultConfig()
	src.pushSine(440.0, cfg.FallbackBufferSize, cfg.SampleRate, 4, time.Now())

	frames := collectFrames(t, e, 4, 2*time.Second)

	for i, f := range frames {
		if f.Sequence != uint64(i) {
			t.Errorf("frame %d: sequence %d, want %d", i, f.Sequence, i)
		}
		if f.Articulation == temporal.StateSilence {
			t.Errorf("frame %d: articulation silence on a loud sine", i)
		}
		if !f.Voiced() {
			t.Errorf("frame %d: unvoiced on a clean 440 Hz sine (conf %g)", i, f.Confidence)
			continue
		}
		if relErr := math.Abs(f.Frequency-440.0) / 440.0; relErr > 0.01 {
			t.Errorf("frame %d: frequency %g, want within 1%% of 440", i, f.Frequency)
		}
		if f.NoteName != "A" || f.Octave != 4 {
			t.Errorf("frame %d: note %s%d, want A4", i, f.NoteName, f.Octave)
		}
	}

	// Later frames come from sustained loudness
	if last := frames[len(frames)-1]; last.Articulation != temporal.StateSustain {
		t.Errorf("last frame: articulation %v, want sustain", last.Articulation)
	}

	s, err := e.LatencyStats()
	if err != nil {
		t.Fatalf("LatencyStats: %v", err)
	}
	if s.Count < 4 {
		t.Errorf("latency sample count: got %d, want >= 4", s.Count)
	}
	if s.Baseline != DefaultConfig().FallbackDuration() {
		t.Errorf("latency baseline: got %v, want %v", s.Baseline, DefaultConfig().FallbackDuration())
	}
}

// In low-latency mode the analysis window needs many quanta of history before
// the first frame can be produced.
func TestEngine_LowLatencyWarmUp(t *testing.T) {
	src := newFakeSource(true)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	cfg := DefaultConfig()
	chunksNeeded := cfg.FFTSize / cfg.QuantumSize // 16 quanta fill the window
	src.pushSine(440.0, cfg.QuantumSize, cfg.SampleRate, chunksNeeded+8, time.Now())

	frames := collectFrames(t, e, 4, 2*time.Second)

	// Warm-up quanta are skipped, not delivered as empty frames
	if frames[0].Sequence != 0 {
		t.Errorf("first frame sequence: got %d, want 0", frames[0].Sequence)
	}
	for i, f := range frames {
		if !f.Voiced() {
			t.Errorf("frame %d: unvoiced after warm-up", i)
			continue
		}
		if relErr := math.Abs(f.Frequency-440.0) / 440.0; relErr > 0.01 {
			t.Errorf("frame %d: frequency %g, want within 1%% of 440", i, f.Frequency)
		}
	}
}

func TestEngine_SilenceProducesUnvoicedFrames(t *testing.T) {
	src := newFakeSource(false)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	cfg := DefaultConfig()
	now := time.Now()
	for c := 0; c < 3; c++ {
		src.chunks <- AudioChunk{
			Samples:     make([]float64, cfg.FallbackBufferSize),
			SampleRate:  cfg.SampleRate,
			CaptureTime: now.Add(time.Duration(c) * cfg.FallbackDuration()),
		}
	}

	frames := collectFrames(t, e, 3, 2*time.Second)
	for i, f := range frames {
		if f.Voiced() {
			t.Errorf("frame %d: voiced on silence (freq %g)", i, f.Frequency)
		}
		if f.Articulation != temporal.StateSilence {
			t.Errorf("frame %d: articulation %v, want silence", i, f.Articulation)
		}
	}
}

func TestEngine_DroppedFramesWhenConsumerStalls(t *testing.T) {
	src := newFakeSource(false)
	cfg := DefaultConfig()
	cfg.FrameBuffer = 1

	e, err := NewEngineWithConfig(src, cfg)
	if err != nil {
		t.Fatalf("NewEngineWithConfig: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	// Nobody reads Frames(): with capacity 1, later frames must be dropped
	src.pushSine(440.0, cfg.FallbackBufferSize, cfg.SampleRate, 5, time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for e.DroppedFrames() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := e.DroppedFrames(); got == 0 {
		t.Error("no frames dropped with a stalled consumer")
	}
}

func TestEngine_SetAutoTuneValidation(t *testing.T) {
	e, err := NewEngine(newFakeSource(true))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.SetAutoTune(true, 2.0); err == nil {
		t.Error("speed 2.0: expected error")
	}
	if err := e.SetAutoTune(true, 0.5); err != nil {
		t.Errorf("speed 0.5: unexpected error: %v", err)
	}
}

func TestEngine_SetScaleValidation(t *testing.T) {
	e, err := NewEngine(newFakeSource(true))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.SetScale(12, tonal.ScaleMajor); err == nil {
		t.Error("root 12: expected error")
	}
	if err := e.SetScale(2, tonal.ScaleType("klingon")); err == nil {
		t.Error("unknown scale type: expected error")
	}
	if err := e.SetScale(9, tonal.ScaleNaturalMinor); err != nil {
		t.Errorf("A minor: unexpected error: %v", err)
	}
}

func TestEngine_ConfigureBeforeStart(t *testing.T) {
	e, err := NewEngine(newFakeSource(true))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	cfg := DefaultConfig()
	cfg.FrameBuffer = 8
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got := cap(e.Frames()); got != 8 {
		t.Errorf("frame channel capacity: got %d, want 8", got)
	}

	cfg.QuantumSize = 0
	if err := e.Configure(cfg); err == nil {
		t.Error("invalid configuration accepted")
	}
}

func TestEngine_ConfigureWhileRunning(t *testing.T) {
	src := newFakeSource(false)
	e, err := NewEngine(src)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	cfg := DefaultConfig()
	cfg.MinConfidence = 0.3
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure while running: %v", err)
	}

	// The staged swap applies at the next quantum; frames keep flowing
	src.pushSine(440.0, cfg.FallbackBufferSize, cfg.SampleRate, 2, time.Now())
	frames := collectFrames(t, e, 2, 2*time.Second)
	if !frames[1].Voiced() {
		t.Error("frame after reconfiguration: unvoiced on a clean sine")
	}
}

func TestEngine_NilSource(t *testing.T) {
	if _, err := NewEngine(nil); err == nil {
		t.Error("nil source: expected error")
	}
}

func TestControlFrame_Voiced(t *testing.T) {
	if (ControlFrame{}).Voiced() {
		t.Error("zero frame reports voiced")
	}
	if !(ControlFrame{Frequency: 440, Confidence: 0.8}).Voiced() {
		t.Error("voiced frame reports unvoiced")
	}
}
