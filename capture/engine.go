package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/stats"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/logging"
)

// Engine owns the capture lifecycle and turns raw audio chunks into a single
// stream of ControlFrames, regardless of which capture mode is active.
//
// One goroutine (the audio context) consumes the source channel and runs the
// whole per-quantum pipeline; consumers read assembled frames from a bounded
// channel that is never allowed to block the audio context — when the
// consumer falls behind, frames are dropped, not queued unboundedly.
// Lifecycle and parameter changes from the consumer context are staged and
// applied at quantum boundaries only; an in-flight quantum is never
// interrupted.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	source  Source
	logger  logging.Logger
	monitor *stats.LatencyMonitor

	running bool
	mode    Mode
	stopCh  chan struct{}
	doneCh  chan struct{}
	frames  chan ControlFrame

	pendingMu sync.Mutex
	pending   []func(*pipeline) *pipeline

	droppedFrames atomic.Uint64
	skippedFrames atomic.Uint64
}

// NewEngine creates an engine with default configuration
func NewEngine(source Source) (*Engine, error) {
	return NewEngineWithConfig(source, DefaultConfig())
}

// NewEngineWithConfig creates an engine with the given configuration
func NewEngineWithConfig(source Source, cfg Config) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("source must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		source:  source,
		logger:  logging.GetGlobalLogger().WithFields(logging.Fields{"component": "capture"}),
		monitor: stats.NewLatencyMonitor(),
		mode:    ModeInactive,
		frames:  make(chan ControlFrame, cfg.FrameBuffer),
	}, nil
}

// Start validates configuration, opens the audio source, picks the capture
// mode, and begins frame emission. The mode decision happens exactly once
// here and is never re-evaluated mid-stream. Calling Start while already
// running is a warning-level no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.logger.Warn("start called while already running; ignoring")
		return nil
	}

	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := newPipeline(e.cfg, e.logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	mode := ModeFallback
	quantum := e.cfg.FallbackBufferSize
	if e.cfg.PreferLowLatency {
		if e.source.SupportsLowLatency() {
			mode = ModeLowLatency
			quantum = e.cfg.QuantumSize
		} else {
			e.logger.Warn("low-latency capture unsupported by source; using buffered fallback mode",
				logging.Fields{"fallback_buffer": e.cfg.FallbackBufferSize})
		}
	}

	chunks, err := e.source.Open(SourceConfig{
		SampleRate:  e.cfg.SampleRate,
		QuantumSize: quantum,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrPermissionDenied):
			return fmt.Errorf("microphone authorization was refused: %w", err)
		case errors.Is(err, ErrDeviceUnavailable):
			return fmt.Errorf("no audio input device could be opened: %w", err)
		default:
			return fmt.Errorf("opening audio source: %w", err)
		}
	}

	baseline := time.Duration(float64(quantum) / float64(e.cfg.SampleRate) * float64(time.Second))
	e.monitor.SetBaseline(baseline)

	e.mode = mode
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})

	go e.run(chunks, p, e.stopCh, e.doneCh)

	e.logger.Info("capture started", logging.Fields{
		"mode":        mode.String(),
		"sample_rate": e.cfg.SampleRate,
		"quantum":     quantum,
		"baseline_ms": float64(baseline) / float64(time.Millisecond),
	})

	return nil
}

// Stop halts frame emission and releases the audio source. Stopping is
// honored at the next quantum boundary; an in-flight quantum completes.
// Safe to call when not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.mode = ModeInactive
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.Unlock()

	close(stopCh)
	<-doneCh

	if err := e.source.Close(); err != nil {
		e.logger.Error(err, "closing audio source")
	}

	e.logger.Info("capture stopped", logging.Fields{
		"dropped_frames": e.droppedFrames.Load(),
		"skipped_frames": e.skippedFrames.Load(),
	})
}

// Configure validates and stores a new configuration. While stopped it
// replaces the stored config along with the delivery channel, so the new
// FrameBuffer capacity takes effect; re-fetch Frames afterwards. While
// running, the processing components are rebuilt and swapped in at the next
// quantum boundary; the capture mode, source, and delivery channel stay as
// chosen at Start.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	e.mu.Lock()
	running := e.running
	e.cfg = cfg
	if !running {
		// Delivery capacity is adjustable until the first Start
		e.frames = make(chan ControlFrame, cfg.FrameBuffer)
	}
	logger := e.logger
	e.mu.Unlock()

	if running {
		replacement, err := newPipeline(cfg, logger)
		if err != nil {
			return fmt.Errorf("building pipeline: %w", err)
		}
		e.stage(func(*pipeline) *pipeline { return replacement })
		logger.Info("configuration staged for next quantum")
	}

	return nil
}

// SetScale updates the correction scale, applied atomically before the next
// quantum.
func (e *Engine) SetScale(root int, scaleType tonal.ScaleType) error {
	scale, err := tonal.NewScale(root, scaleType)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg.ScaleRoot = root
	e.cfg.ScaleType = scaleType
	e.mu.Unlock()

	e.stage(func(p *pipeline) *pipeline {
		p.corrector.SetScale(scale)
		return p
	})

	return nil
}

// SetAutoTune enables or disables pitch correction and sets the retune
// speed, applied atomically before the next quantum.
func (e *Engine) SetAutoTune(enabled bool, speed float64) error {
	if speed < 0 || speed > 1 {
		return fmt.Errorf("auto-tune speed must be in [0, 1], got %g", speed)
	}

	e.mu.Lock()
	e.cfg.AutoTuneEnabled = enabled
	e.cfg.AutoTuneSpeed = speed
	e.mu.Unlock()

	e.stage(func(p *pipeline) *pipeline {
		p.corrector.SetAutoTune(enabled, speed)
		return p
	})

	return nil
}

// Frames returns the frame delivery channel. The channel is never closed by
// the engine and stays valid across Start/Stop cycles; only a Configure call
// made while stopped replaces it (to apply a new FrameBuffer capacity), so
// fetch it after configuration is settled.
func (e *Engine) Frames() <-chan ControlFrame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// Mode reports the active capture mode; ModeInactive when stopped
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// LatencyStats summarizes recent frame latencies. Returns stats.ErrNoSamples
// before the first frame has been delivered.
func (e *Engine) LatencyStats() (stats.LatencyStats, error) {
	return e.monitor.Stats()
}

// SetExternalLatencyEstimate records the synthesis-stage cost reported by the
// downstream collaborator, so LatencyStats can expose an estimated total.
func (e *Engine) SetExternalLatencyEstimate(d time.Duration) {
	e.monitor.SetExternalEstimate(d)
}

// DroppedFrames returns the number of frames discarded because the consumer
// was not keeping up.
func (e *Engine) DroppedFrames() uint64 {
	return e.droppedFrames.Load()
}

// stage enqueues a pipeline mutation for the next quantum boundary
func (e *Engine) stage(fn func(*pipeline) *pipeline) {
	e.pendingMu.Lock()
	e.pending = append(e.pending, fn)
	e.pendingMu.Unlock()
}

// applyPending runs staged mutations. Called only from the audio goroutine,
// between quanta.
func (e *Engine) applyPending(p *pipeline) *pipeline {
	e.pendingMu.Lock()
	pending := e.pending
	e.pending = nil
	e.pendingMu.Unlock()

	for _, fn := range pending {
		p = fn(p)
	}
	return p
}

// run is the audio-processing goroutine: one iteration per quantum
func (e *Engine) run(chunks <-chan AudioChunk, p *pipeline, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case chunk, ok := <-chunks:
			if !ok {
				e.logger.Warn("audio source stream ended")
				return
			}

			p = e.applyPending(p)

			frame, err := p.process(chunk)
			if err != nil {
				// Local hiccup: the frame is skipped, the stream continues
				e.skippedFrames.Add(1)
				e.logger.Debug("frame skipped", logging.Fields{"reason": err.Error()})
				continue
			}

			select {
			case e.frames <- frame:
			default:
				e.droppedFrames.Add(1)
			}

			e.monitor.Record(chunk.CaptureTime, time.Now())
		}
	}
}
