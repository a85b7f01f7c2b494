package capture

import (
	"errors"
	"time"
)

// Device-level failures surfaced from Source implementations. Start wraps
// these with context; match with errors.Is.
var (
	// ErrPermissionDenied means the user refused audio capture authorization
	ErrPermissionDenied = errors.New("audio capture permission denied")

	// ErrDeviceUnavailable means no usable audio source could be opened
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrDeviceDisconnected means the source vanished mid-stream
	ErrDeviceDisconnected = errors.New("audio device disconnected")
)

// Mode identifies the active capture mode
type Mode int

const (
	// ModeInactive means the engine is not running
	ModeInactive Mode = iota

	// ModeLowLatency processes fixed small quanta on a tight deadline
	ModeLowLatency

	// ModeFallback processes larger buffers with relaxed timing and a
	// correspondingly higher baseline latency
	ModeFallback
)

func (m Mode) String() string {
	switch m {
	case ModeInactive:
		return "inactive"
	case ModeLowLatency:
		return "low-latency"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// AudioChunk is one fixed-length block of samples from the source. Chunks are
// owned by their producer and must be treated as read-only downstream; the
// engine copies before filtering in place.
type AudioChunk struct {
	Samples     []float64 `json:"-"`
	SampleRate  int       `json:"sample_rate"`
	CaptureTime time.Time `json:"capture_time"`
}

// SourceConfig tells a Source how to deliver audio
type SourceConfig struct {
	SampleRate  int `json:"sample_rate"`
	QuantumSize int `json:"quantum_size"` // Samples per chunk
}

// Source abstracts the device/audio collaborator. Implementations deliver
// successive AudioChunks at the configured rate and chunk size on the
// returned channel, closing it when the stream ends. Open reports
// authorization and device failures through the sentinel errors above.
type Source interface {
	// Open starts delivery. The returned channel is closed on stream end or
	// device disconnection.
	Open(cfg SourceConfig) (<-chan AudioChunk, error)

	// SupportsLowLatency reports whether the runtime can sustain fixed
	// small-quantum callback processing.
	SupportsLowLatency() bool

	// Close releases the underlying device. Safe to call more than once.
	Close() error
}
