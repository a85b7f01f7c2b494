package temporal

import (
	"fmt"
	"time"
)

// State is the articulation phase of the incoming voice
type State int

const (
	StateSilence State = iota
	StateAttack
	StateSustain
	StateRelease
)

func (s State) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateAttack:
		return "attack"
	case StateSustain:
		return "sustain"
	case StateRelease:
		return "release"
	default:
		return "unknown"
	}
}

// ArticulationParams contains thresholds and debounce durations for the
// articulation state machine
type ArticulationParams struct {
	// Loudness above this level (dBFS) counts as an active note
	EnergyThresholdDB float64 `json:"energy_threshold_db"`

	// Loudness below this level (dBFS) counts as silence
	SilenceThresholdDB float64 `json:"silence_threshold_db"`

	// Time the signal must stay loud before attack settles into sustain
	AttackDuration time.Duration `json:"attack_duration"`

	// Time the signal must stay quiet before release settles into silence
	MinSilenceDuration time.Duration `json:"min_silence_duration"`
}

// DefaultArticulationParams returns debounce settings suited to sung phrases
func DefaultArticulationParams() ArticulationParams {
	return ArticulationParams{
		EnergyThresholdDB:  -45.0,
		SilenceThresholdDB: -60.0,
		AttackDuration:     30 * time.Millisecond,
		MinSilenceDuration: 150 * time.Millisecond,
	}
}

// ArticulationDetector tracks note articulation from per-frame loudness.
//
// The machine moves through silence -> attack -> sustain -> release ->
// silence. Two thresholds with a gap between them plus two minimum-duration
// guards debounce the rapid toggling a single threshold would produce.
// Re-crossing the energy threshold from any non-silent state restarts the
// attack phase.
type ArticulationDetector struct {
	params ArticulationParams

	state       State
	attackStart time.Time
	quietStart  time.Time // When loudness last dropped below the silence threshold
	haveQuiet   bool
}

// NewArticulationDetector creates a detector in the silence state
func NewArticulationDetector(params ArticulationParams) (*ArticulationDetector, error) {
	if params.SilenceThresholdDB >= params.EnergyThresholdDB {
		return nil, fmt.Errorf("silence threshold (%.1f dB) must be below energy threshold (%.1f dB)",
			params.SilenceThresholdDB, params.EnergyThresholdDB)
	}
	if params.AttackDuration < 0 || params.MinSilenceDuration < 0 {
		return nil, fmt.Errorf("durations must be non-negative")
	}

	return &ArticulationDetector{
		params: params,
		state:  StateSilence,
	}, nil
}

// Process advances the machine with one loudness measurement and returns the
// resulting state.
func (ad *ArticulationDetector) Process(loudnessDB float64, now time.Time) State {
	loud := loudnessDB >= ad.params.EnergyThresholdDB
	quiet := loudnessDB < ad.params.SilenceThresholdDB

	switch ad.state {
	case StateSilence:
		if loud {
			ad.enterAttack(now)
		}

	case StateAttack:
		if loud {
			if now.Sub(ad.attackStart) >= ad.params.AttackDuration {
				ad.state = StateSustain
			}
		} else {
			ad.enterRelease(loudnessDB, now)
		}

	case StateSustain:
		if !loud {
			ad.enterRelease(loudnessDB, now)
		}

	case StateRelease:
		switch {
		case loud:
			// Re-attack before reaching silence
			ad.enterAttack(now)
		case quiet:
			if !ad.haveQuiet {
				ad.quietStart = now
				ad.haveQuiet = true
			}
			if now.Sub(ad.quietStart) >= ad.params.MinSilenceDuration {
				ad.state = StateSilence
				ad.haveQuiet = false
			}
		default:
			// Back between the thresholds; the silence countdown restarts
			ad.haveQuiet = false
		}
	}

	return ad.state
}

func (ad *ArticulationDetector) enterAttack(now time.Time) {
	ad.state = StateAttack
	ad.attackStart = now
	ad.haveQuiet = false
}

func (ad *ArticulationDetector) enterRelease(loudnessDB float64, now time.Time) {
	ad.state = StateRelease
	if loudnessDB < ad.params.SilenceThresholdDB {
		ad.quietStart = now
		ad.haveQuiet = true
	} else {
		ad.haveQuiet = false
	}
}

// State returns the current articulation state
func (ad *ArticulationDetector) State() State {
	return ad.state
}

// Reset returns the machine to silence
func (ad *ArticulationDetector) Reset() {
	ad.state = StateSilence
	ad.attackStart = time.Time{}
	ad.quietStart = time.Time{}
	ad.haveQuiet = false
}
