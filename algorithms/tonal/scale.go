package tonal

import (
	"fmt"
	"math"
)

// ScaleType names a predefined interval set
type ScaleType string

const (
	ScaleChromatic       ScaleType = "chromatic"
	ScaleMajor           ScaleType = "major"
	ScaleNaturalMinor    ScaleType = "minor"
	ScaleHarmonicMinor   ScaleType = "harmonic_minor"
	ScalePentatonicMajor ScaleType = "pentatonic_major"
	ScalePentatonicMinor ScaleType = "pentatonic_minor"
	ScaleBlues           ScaleType = "blues"
	ScaleDorian          ScaleType = "dorian"
	ScaleMixolydian      ScaleType = "mixolydian"
)

var scaleIntervals = map[ScaleType][]int{
	ScaleChromatic:       {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	ScaleMajor:           {0, 2, 4, 5, 7, 9, 11},
	ScaleNaturalMinor:    {0, 2, 3, 5, 7, 8, 10},
	ScaleHarmonicMinor:   {0, 2, 3, 5, 7, 8, 11},
	ScalePentatonicMajor: {0, 2, 4, 7, 9},
	ScalePentatonicMinor: {0, 3, 5, 7, 10},
	ScaleBlues:           {0, 3, 5, 6, 7, 10},
	ScaleDorian:          {0, 2, 3, 5, 7, 9, 10},
	ScaleMixolydian:      {0, 2, 4, 5, 7, 9, 10},
}

// Scale is a set of admissible pitch classes: a root (0 = C .. 11 = B) plus
// semitone intervals from that root, evaluated modulo 12. Intervals is never
// empty for a Scale built through NewScale or NewScaleFromIntervals.
type Scale struct {
	Root      int       `json:"root"`
	Type      ScaleType `json:"type"`
	Intervals []int     `json:"intervals"`
}

// NewScale builds a scale from a root pitch class and a named type
func NewScale(root int, scaleType ScaleType) (Scale, error) {
	if root < 0 || root > 11 {
		return Scale{}, fmt.Errorf("scale root must be in 0..11, got %d", root)
	}

	intervals, ok := scaleIntervals[scaleType]
	if !ok {
		return Scale{}, fmt.Errorf("unknown scale type %q", scaleType)
	}

	out := make([]int, len(intervals))
	copy(out, intervals)

	return Scale{Root: root, Type: scaleType, Intervals: out}, nil
}

// NewScaleFromIntervals builds a custom scale from explicit intervals
func NewScaleFromIntervals(root int, intervals []int) (Scale, error) {
	if root < 0 || root > 11 {
		return Scale{}, fmt.Errorf("scale root must be in 0..11, got %d", root)
	}
	if len(intervals) == 0 {
		return Scale{}, fmt.Errorf("scale needs at least one interval")
	}

	seen := make(map[int]bool, len(intervals))
	out := make([]int, 0, len(intervals))
	for _, iv := range intervals {
		norm := ((iv % 12) + 12) % 12
		if !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}

	return Scale{Root: root, Type: "custom", Intervals: out}, nil
}

// NearestSemitone finds the in-scale semitone (as an absolute, integral MIDI
// note number) closest to the given continuous note number. Candidates are
// ranked by circular pitch-class distance from the chromatic nearest integer,
// then by absolute distance from the input, then by lower note number.
func (s Scale) NearestSemitone(noteNumber float64) int {
	n := int(math.Round(noteNumber))
	pc := ((n % 12) + 12) % 12

	best := n
	bestCircular := math.MaxInt
	bestDist := math.Inf(1)
	found := false

	consider := func(candidate, circular int) {
		dist := math.Abs(float64(candidate) - noteNumber)
		better := false
		switch {
		case !found:
			better = true
		case circular != bestCircular:
			better = circular < bestCircular
		case math.Abs(dist-bestDist) > 1e-9:
			better = dist < bestDist
		default:
			better = candidate < best
		}
		if better {
			best = candidate
			bestCircular = circular
			bestDist = dist
			found = true
		}
	}

	for _, iv := range s.Intervals {
		spc := (s.Root + iv) % 12

		delta := spc - pc
		if delta > 6 {
			delta -= 12
		} else if delta <= -6 {
			delta += 12
		}

		consider(n+delta, abs(delta))
		if abs(delta) == 6 {
			// A tritone away is reachable in either direction
			consider(n+delta-12, 6)
		}
	}

	return best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Contains reports whether a pitch class (0..11) is in the scale
func (s Scale) Contains(pitchClass int) bool {
	pc := ((pitchClass % 12) + 12) % 12
	for _, iv := range s.Intervals {
		if (s.Root+iv)%12 == pc {
			return true
		}
	}
	return false
}

// ScaleTypes returns the names of all predefined scale types
func ScaleTypes() []ScaleType {
	types := make([]ScaleType, 0, len(scaleIntervals))
	for t := range scaleIntervals {
		types = append(types, t)
	}
	return types
}
