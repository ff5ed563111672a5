package dsp

import (
	"math"
	"math/cmplx"
)

// NCO is a numerically controlled oscillator used to de-rotate a carrier
// frequency offset.
type NCO struct {
	theta  float64 // phase, radians in [-π, π)
	dtheta float64 // frequency, radians per sample
}

// NewNCO creates an oscillator at zero frequency and phase.
func NewNCO() *NCO {
	return &NCO{}
}

// SetFrequency sets the oscillator frequency in radians per sample.
func (n *NCO) SetFrequency(dtheta float64) {
	n.dtheta = dtheta
}

// SetPhase sets the current phase in radians.
func (n *NCO) SetPhase(theta float64) {
	n.theta = wrapPhase(theta)
}

// Step advances the phase by one sample.
func (n *NCO) Step() {
	n.theta = wrapPhase(n.theta + n.dtheta)
}

// MixDown rotates x by the negative of the current phase.
func (n *NCO) MixDown(x complex128) complex128 {
	return x * cmplx.Rect(1, -n.theta)
}

// MixUp rotates x by the current phase.
func (n *NCO) MixUp(x complex128) complex128 {
	return x * cmplx.Rect(1, n.theta)
}

// Reset zeroes phase and frequency.
func (n *NCO) Reset() {
	n.theta = 0
	n.dtheta = 0
}

func wrapPhase(p float64) float64 {
	for p >= math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}
