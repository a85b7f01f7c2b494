package temporal

import (
	"github.com/RyanBlaney/sonido-voice/algorithms/common"
)

// Loudness measures frame loudness as RMS level in dBFS
type Loudness struct {
	floorDB float64
}

// NewLoudness creates a loudness meter with the standard silence floor
func NewLoudness() *Loudness {
	return &Loudness{floorDB: common.SilenceFloorDB}
}

// Measure returns the RMS loudness of the frame in dBFS. Empty or all-zero
// frames measure at the silence floor.
func (l *Loudness) Measure(samples []float64) float64 {
	db := common.AmplitudeToDB(common.RMS(samples))
	if db < l.floorDB {
		return l.floorDB
	}
	return db
}

// Floor returns the silence floor in dBFS
func (l *Loudness) Floor() float64 {
	return l.floorDB
}
