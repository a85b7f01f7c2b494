package filters

import (
	"fmt"
)

// EMA implements a first-order exponential moving average:
// y[n] = alpha*x[n] + (1-alpha)*y[n-1]. Alpha 1 passes input through
// unchanged; smaller alpha smooths harder.
type EMA struct {
	alpha float64

	// State variables
	prev   float64
	primed bool
}

// NewEMA creates an exponential moving average filter. Alpha must be in (0, 1].
func NewEMA(alpha float64) (*EMA, error) {
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha must be in (0, 1], got %g", alpha)
	}

	return &EMA{alpha: alpha}, nil
}

// Update feeds one value through the filter and returns the smoothed output.
// The first value after construction or Reset passes through unchanged.
func (e *EMA) Update(x float64) float64 {
	if !e.primed {
		e.prev = x
		e.primed = true
		return x
	}

	e.prev = e.alpha*x + (1.0-e.alpha)*e.prev
	return e.prev
}

// Value returns the last output without updating
func (e *EMA) Value() float64 {
	return e.prev
}

// Alpha returns the smoothing coefficient
func (e *EMA) Alpha() float64 {
	return e.alpha
}

// Reset discards the filter state
func (e *EMA) Reset() {
	e.prev = 0
	e.primed = false
}
