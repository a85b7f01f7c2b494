package capture

import (
	"time"

	"github.com/RyanBlaney/sonido-voice/algorithms/temporal"
)

// ControlFrame is the unit handed to the synthesis collaborator: one per
// processed quantum (or per buffer in fallback mode). Frames are values and
// never mutated after assembly.
type ControlFrame struct {
	// Corrected, smoothed fundamental in Hz; 0 while unvoiced
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`

	// Note resolution of Frequency; empty name while unvoiced
	NoteName string  `json:"note_name"`
	Octave   int     `json:"octave"`
	Cents    float64 `json:"cents"`

	// Smoothed loudness in dBFS
	VolumeDB float64 `json:"volume_db"`

	// Timbre descriptors in [0, 1]
	Brightness  float64 `json:"brightness"`
	Breathiness float64 `json:"breathiness"`

	Articulation temporal.State `json:"articulation"`

	CaptureTime time.Time `json:"capture_time"`
	Sequence    uint64    `json:"sequence"`
}

// Voiced reports whether the frame carries a usable pitch
func (f ControlFrame) Voiced() bool {
	return f.Frequency > 0
}
