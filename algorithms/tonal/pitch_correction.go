package tonal

import (
	"fmt"
	"math"
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/common"
)

// PitchCorrectorParams contains parameters for scale-based pitch correction
type PitchCorrectorParams struct {
	// Numeric clamp applied even when correction is disabled (Hz)
	MinFreq float64 `json:"min_freq"`
	MaxFreq float64 `json:"max_freq"`

	// The locked target only moves once the input deviates from it by more
	// than this many semitones
	HysteresisSemitones float64 `json:"hysteresis_semitones"`

	// Glide time constant at speed=1 (speed=0 snaps instantly)
	MaxGlideTime time.Duration `json:"max_glide_time"`

	// Exponent of the speed-to-tau power-law mapping
	SpeedCurve float64 `json:"speed_curve"`
}

// DefaultPitchCorrectorParams returns parameters matching natural retuning
func DefaultPitchCorrectorParams() PitchCorrectorParams {
	return PitchCorrectorParams{
		MinFreq:             70.0,
		MaxFreq:             1200.0,
		HysteresisSemitones: 0.6,
		MaxGlideTime:        200 * time.Millisecond,
		SpeedCurve:          2.0,
	}
}

// PitchCorrector quantizes a pitch stream onto a scale with hysteresis and
// time-based glide.
//
// The corrector keeps one locked scale degree and only relocks when the input
// drifts more than the hysteresis threshold away from it, so input hovering
// near a note boundary does not flicker between targets. Output converges on
// the locked note exponentially; the time constant comes from a single speed
// knob in [0,1] through a power-law mapping (speed 0 = instant snap, speed 1 =
// slow natural drift). Convergence uses the actual elapsed time between calls,
// so behavior is correct under variable call intervals.
type PitchCorrector struct {
	params  PitchCorrectorParams
	scale   Scale
	enabled bool
	speed   float64

	// Correction state, reset on silence
	outputFreq     float64
	lockedSemitone int // -1 = no lock
	lastUpdate     time.Time
}

// NewPitchCorrector creates a corrector for the given scale
func NewPitchCorrector(params PitchCorrectorParams, scale Scale) (*PitchCorrector, error) {
	if params.MinFreq <= 0 || params.MinFreq >= params.MaxFreq {
		return nil, fmt.Errorf("invalid frequency clamp [%.1f, %.1f]", params.MinFreq, params.MaxFreq)
	}
	if params.HysteresisSemitones < 0 {
		return nil, fmt.Errorf("hysteresis must be non-negative, got %g", params.HysteresisSemitones)
	}
	if params.SpeedCurve <= 0 {
		return nil, fmt.Errorf("speed curve exponent must be positive, got %g", params.SpeedCurve)
	}

	return &PitchCorrector{
		params:         params,
		scale:          scale,
		enabled:        false,
		speed:          0.5,
		lockedSemitone: -1,
	}, nil
}

// SetScale swaps the quantization scale. The current lock is re-evaluated on
// the next voiced input.
func (pc *PitchCorrector) SetScale(scale Scale) {
	pc.scale = scale
	pc.lockedSemitone = -1
}

// SetAutoTune enables or disables correction and sets the retune speed.
// Speed is clamped to [0,1].
func (pc *PitchCorrector) SetAutoTune(enabled bool, speed float64) {
	pc.enabled = enabled
	pc.speed = common.Clamp01(speed)
	if !enabled {
		pc.lockedSemitone = -1
	}
}

// Enabled reports whether correction is active
func (pc *PitchCorrector) Enabled() bool {
	return pc.enabled
}

// LockedSemitone returns the currently locked MIDI note, or -1 when unlocked
func (pc *PitchCorrector) LockedSemitone() int {
	return pc.lockedSemitone
}

// Correct maps one pitch estimate to an output frequency. Unvoiced estimates
// leave the state untouched and return the previous output; zero-confidence
// estimates never move the lock.
func (pc *PitchCorrector) Correct(estimate PitchEstimate, now time.Time) float64 {
	if !estimate.Voiced() {
		return pc.outputFreq
	}

	input := common.Clamp(estimate.Frequency, pc.params.MinFreq, pc.params.MaxFreq)

	if !pc.enabled {
		// Pass-through: no quantization, only the numeric range clamp
		pc.outputFreq = input
		pc.lastUpdate = now
		return pc.outputFreq
	}

	noteNumber := FrequencyToNoteNumber(input)

	if estimate.Confidence > 0 {
		if pc.lockedSemitone < 0 ||
			math.Abs(noteNumber-float64(pc.lockedSemitone)) > pc.params.HysteresisSemitones {
			pc.lockedSemitone = pc.scale.NearestSemitone(noteNumber)
		}
	}

	if pc.lockedSemitone < 0 {
		// No information to quantize against yet
		pc.outputFreq = input
		pc.lastUpdate = now
		return pc.outputFreq
	}

	target := NoteNumberToFrequency(float64(pc.lockedSemitone))
	pc.outputFreq = pc.glide(target, now)
	pc.lastUpdate = now

	return pc.outputFreq
}

// glide moves the output exponentially toward target using elapsed time
func (pc *PitchCorrector) glide(target float64, now time.Time) float64 {
	tau := pc.timeConstant()

	if pc.outputFreq <= 0 || tau <= 0 || pc.lastUpdate.IsZero() {
		return target
	}

	dt := now.Sub(pc.lastUpdate).Seconds()
	if dt <= 0 {
		return pc.outputFreq
	}

	step := 1.0 - math.Exp(-dt/tau)
	return pc.outputFreq + (target-pc.outputFreq)*step
}

// timeConstant maps the speed knob to a glide time constant in seconds
func (pc *PitchCorrector) timeConstant() float64 {
	return math.Pow(pc.speed, pc.params.SpeedCurve) * pc.params.MaxGlideTime.Seconds()
}

// Reset clears the correction state. Call on transition to silence so the
// next onset does not glide from a stale pitch.
func (pc *PitchCorrector) Reset() {
	pc.outputFreq = 0
	pc.lockedSemitone = -1
	pc.lastUpdate = time.Time{}
}
