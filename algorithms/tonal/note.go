package tonal

import (
	"fmt"
	"math"
)

// ReferencePitch is the tuning reference for A4 in Hz
const ReferencePitch = 440.0

// referenceNoteNumber is the MIDI note number of A4
const referenceNoteNumber = 69.0

// noteNames holds the chromatic pitch class names, C first
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note represents a musical note resolved from a frequency
type Note struct {
	Name      string  `json:"name"`      // Pitch class, e.g. "A", "C#"
	Octave    int     `json:"octave"`    // Scientific pitch octave, A4 = octave 4
	MIDINote  int     `json:"midi_note"` // MIDI note number, A4 = 69
	Frequency float64 `json:"frequency"` // Equal-tempered frequency of the note (Hz)
	Cents     float64 `json:"cents"`     // Deviation of the input from the note (-50..+50)
}

// FrequencyToNoteNumber converts a frequency to a continuous MIDI note number.
// Fractional values express deviation from equal temperament.
func FrequencyToNoteNumber(frequency float64) float64 {
	return referenceNoteNumber + 12.0*math.Log2(frequency/ReferencePitch)
}

// NoteNumberToFrequency converts a (possibly fractional) MIDI note number to Hz
func NoteNumberToFrequency(noteNumber float64) float64 {
	return ReferencePitch * math.Pow(2.0, (noteNumber-referenceNoteNumber)/12.0)
}

// FrequencyToNote resolves a frequency to the nearest equal-tempered note
func FrequencyToNote(frequency float64) (Note, error) {
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return Note{}, fmt.Errorf("frequency must be positive and finite, got %g", frequency)
	}

	noteNumber := FrequencyToNoteNumber(frequency)
	nearest := math.Round(noteNumber)
	midiNote := int(nearest)

	pitchClass := midiNote % 12
	if pitchClass < 0 {
		pitchClass += 12
	}

	return Note{
		Name:      noteNames[pitchClass],
		Octave:    midiNote/12 - 1,
		MIDINote:  midiNote,
		Frequency: NoteNumberToFrequency(nearest),
		Cents:     100.0 * (noteNumber - nearest),
	}, nil
}

// NoteToFrequency returns the equal-tempered frequency of a named note,
// e.g. NoteToFrequency("A", 4) == 440.
func NoteToFrequency(name string, octave int) (float64, error) {
	pitchClass := -1
	for i, n := range noteNames {
		if n == name {
			pitchClass = i
			break
		}
	}
	if pitchClass < 0 {
		return 0, fmt.Errorf("unknown note name %q", name)
	}

	midiNote := (octave+1)*12 + pitchClass
	return NoteNumberToFrequency(float64(midiNote)), nil
}
