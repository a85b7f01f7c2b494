package stats

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrNoSamples is returned when statistics are requested before any latency
// measurement has been recorded. Callers must not read this as "zero latency".
var ErrNoSamples = errors.New("no latency samples recorded yet")

// DefaultWindowSize is the number of most-recent measurements retained
const DefaultWindowSize = 200

// LatencyStats summarizes the sliding window of per-frame latencies
type LatencyStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`

	// Baseline is the unavoidable buffering delay of the active capture mode
	// (one quantum), reported so fallback mode's higher floor stays visible.
	Baseline time.Duration `json:"baseline"`

	// ExternalEstimate is the collaborator-supplied cost of the synthesis
	// stage outside this pipeline; zero when never supplied.
	ExternalEstimate time.Duration `json:"external_estimate"`

	// EstimatedTotal is Avg + ExternalEstimate, kept separate from the
	// measured values so the two are never conflated.
	EstimatedTotal time.Duration `json:"estimated_total"`
}

// LatencyMonitor keeps a bounded sliding window of end-to-end frame latencies
// (delivery time minus capture time) and answers percentile queries over it.
// Recording is O(1); queries sort a copy of the window.
//
// Safe for concurrent use: the audio path records while consumers query.
type LatencyMonitor struct {
	mu       sync.Mutex
	window   []float64 // Latencies in nanoseconds
	capacity int
	next     int
	full     bool

	baseline time.Duration
	external time.Duration
}

// NewLatencyMonitor creates a monitor with the default window size
func NewLatencyMonitor() *LatencyMonitor {
	m, _ := NewLatencyMonitorWithWindow(DefaultWindowSize)
	return m
}

// NewLatencyMonitorWithWindow creates a monitor retaining the last n samples
func NewLatencyMonitorWithWindow(n int) (*LatencyMonitor, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", n)
	}

	return &LatencyMonitor{
		window:   make([]float64, n),
		capacity: n,
	}, nil
}

// Record stores one measurement from capture and delivery timestamps.
// Non-positive latencies (clock weirdness) are recorded as zero.
func (m *LatencyMonitor) Record(capture, delivery time.Time) {
	m.RecordDuration(delivery.Sub(capture))
}

// RecordDuration stores one latency measurement
func (m *LatencyMonitor) RecordDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	m.window[m.next] = float64(d)
	m.next++
	if m.next == m.capacity {
		m.next = 0
		m.full = true
	}
	m.mu.Unlock()
}

// SetBaseline records the buffering delay of the active capture mode
func (m *LatencyMonitor) SetBaseline(d time.Duration) {
	m.mu.Lock()
	m.baseline = d
	m.mu.Unlock()
}

// SetExternalEstimate records the collaborator-supplied synthesis-stage cost
func (m *LatencyMonitor) SetExternalEstimate(d time.Duration) {
	m.mu.Lock()
	m.external = d
	m.mu.Unlock()
}

// Reset drops all recorded samples, keeping baseline and external estimate
func (m *LatencyMonitor) Reset() {
	m.mu.Lock()
	m.next = 0
	m.full = false
	m.mu.Unlock()
}

// Stats summarizes the current window. Returns ErrNoSamples when empty.
func (m *LatencyMonitor) Stats() (LatencyStats, error) {
	m.mu.Lock()

	count := m.next
	if m.full {
		count = m.capacity
	}

	if count == 0 {
		m.mu.Unlock()
		return LatencyStats{}, ErrNoSamples
	}

	samples := make([]float64, count)
	copy(samples, m.window[:count])
	baseline := m.baseline
	external := m.external

	m.mu.Unlock()

	sort.Float64s(samples)

	s := LatencyStats{
		Count:            count,
		Min:              time.Duration(samples[0]),
		Max:              time.Duration(samples[count-1]),
		Avg:              time.Duration(stat.Mean(samples, nil)),
		P50:              time.Duration(stat.Quantile(0.50, stat.Empirical, samples, nil)),
		P95:              time.Duration(stat.Quantile(0.95, stat.Empirical, samples, nil)),
		P99:              time.Duration(stat.Quantile(0.99, stat.Empirical, samples, nil)),
		Baseline:         baseline,
		ExternalEstimate: external,
	}

	if external > 0 {
		s.EstimatedTotal = s.Avg + external
	}

	return s, nil
}
