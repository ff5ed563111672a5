package dsp

import "math"

const (
	agcMinGain = 1e-6
	agcMaxGain = 1e6
)

// AGC tracks the smoothed input energy and derives the gain that would
// bring it to a target level.
type AGC struct {
	target    float64
	bandwidth float64
	energy    float64
	gain      float64
}

// NewAGC creates an AGC driving the signal energy to target. bandwidth is
// the smoothing factor in (0, 1]; out of range values are clamped.
func NewAGC(target, bandwidth float64) *AGC {
	if target <= 0 {
		target = 1
	}
	bandwidth = math.Max(1e-6, math.Min(1, bandwidth))
	a := &AGC{target: target, bandwidth: bandwidth}
	a.Reset()
	return a
}

// Execute updates the energy estimate with x and returns x scaled by the
// current gain.
func (a *AGC) Execute(x complex128) complex128 {
	p := real(x)*real(x) + imag(x)*imag(x)
	a.energy = (1-a.bandwidth)*a.energy + a.bandwidth*p
	if a.energy > 0 {
		a.gain = math.Sqrt(a.target / a.energy)
	} else {
		a.gain = agcMaxGain
	}
	a.gain = math.Max(agcMinGain, math.Min(agcMaxGain, a.gain))
	return x * complex(a.gain, 0)
}

// Gain returns the current gain.
func (a *AGC) Gain() float64 { return a.gain }

// SignalLevel returns the smoothed input energy in dB.
func (a *AGC) SignalLevel() float64 {
	if a.energy <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(a.energy)
}

// Reset restores the initial energy estimate.
func (a *AGC) Reset() {
	a.energy = a.target
	a.gain = 1
}
