package filters

import (
	"fmt"
)

// Kalman implements a one-dimensional Kalman filter for smoothing a scalar
// signal such as a pitch track.
//
// References:
//   - Kalman, R.E. (1960). "A New Approach to Linear Filtering and Prediction
//     Problems"
//   - Welch, G., Bishop, G. (2006). "An Introduction to the Kalman Filter"
//
// With a constant-value process model the filter reduces to two steps per
// update: predict (grow the error covariance by the process noise Q) and
// correct (blend in the measurement weighted by the measurement noise R).
// Larger Q tracks faster with less smoothing; larger R smooths harder and
// responds slower.
type Kalman struct {
	processNoise     float64 // Q
	measurementNoise float64 // R

	// State variables
	estimate      float64
	errCovariance float64
	initialized   bool
}

// NewKalman creates a scalar Kalman filter with the given noise parameters
func NewKalman(processNoise, measurementNoise float64) (*Kalman, error) {
	if processNoise <= 0 {
		return nil, fmt.Errorf("process noise must be positive, got %g", processNoise)
	}
	if measurementNoise <= 0 {
		return nil, fmt.Errorf("measurement noise must be positive, got %g", measurementNoise)
	}

	return &Kalman{
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
	}, nil
}

// Update feeds one measurement through the filter and returns the new
// estimate. The first measurement after construction or Reset initializes the
// state directly.
func (k *Kalman) Update(measurement float64) float64 {
	if !k.initialized {
		k.estimate = measurement
		k.errCovariance = 1.0
		k.initialized = true
		return k.estimate
	}

	// Predict
	predicted := k.errCovariance + k.processNoise

	// Correct
	gain := predicted / (predicted + k.measurementNoise)
	k.estimate += gain * (measurement - k.estimate)
	k.errCovariance = (1.0 - gain) * predicted

	return k.estimate
}

// Estimate returns the current estimate without updating
func (k *Kalman) Estimate() float64 {
	return k.estimate
}

// Initialized reports whether the filter holds a state
func (k *Kalman) Initialized() bool {
	return k.initialized
}

// Reset discards the filter state. The next Update re-initializes, so no
// stale value survives across a silent gap.
func (k *Kalman) Reset() {
	k.estimate = 0
	k.errCovariance = 0
	k.initialized = false
}
