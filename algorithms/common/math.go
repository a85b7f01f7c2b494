package common

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared across algorithms, gonum-backed where it counts.

// SilenceFloorDB is the loudness reported for an all-zero signal.
const SilenceFloorDB = -120.0

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	sumSquares := 0.0
	for _, val := range data {
		sumSquares += val * val
	}

	return math.Sqrt(sumSquares / float64(len(data)))
}

// Clamp limits x to the closed interval [lo, hi]
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 limits x to [0, 1]
func Clamp01(x float64) float64 {
	return Clamp(x, 0.0, 1.0)
}

// AmplitudeToDB converts a linear amplitude (RMS or peak) to dBFS.
// Values at or below zero return SilenceFloorDB.
func AmplitudeToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return SilenceFloorDB
	}
	db := 20.0 * math.Log10(amplitude)
	if db < SilenceFloorDB {
		return SilenceFloorDB
	}
	return db
}

// DBToAmplitude converts dBFS to linear amplitude
func DBToAmplitude(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

// HasInvalidSamples reports whether data contains NaN or Inf values
func HasInvalidSamples(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// IsPowerOfTwo reports whether n is a positive power of two
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// ParabolicPeak refines a discrete peak (or valley) location by fitting a
// parabola through the point and its two neighbors. Returns the fractional
// index of the extremum.
func ParabolicPeak(data []float64, idx int) float64 {
	if idx <= 0 || idx >= len(data)-1 {
		return float64(idx)
	}

	y1 := data[idx-1]
	y2 := data[idx]
	y3 := data[idx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(idx)
	}

	return float64(idx) - b/(2*a)
}
