package modem

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePilotPhase(t *testing.T) {
	step := math.Pi / PilotSearchSteps
	for _, target := range []float64{1, -1} {
		for _, phi := range []float64{-2.5, -1, -0.3, 0, 0.123, 0.8, 2.9} {
			r := cmplx.Rect(1, phi)
			p := complex(target, 0)
			got := EstimatePilotPhase(p*r, p*r, target)
			assert.InDelta(t, phi, got, step/2+1e-12, "target=%g phi=%g", target, phi)
		}
	}
}

func TestEstimatePilotPhaseUsesHybridSample(t *testing.T) {
	// only the real part of y0 and the imaginary part of y1 matter
	got := EstimatePilotPhase(complex(1, 5), complex(-7, 0), 1)
	assert.Zero(t, got)
}

func TestEstimatePilotPhaseRange(t *testing.T) {
	got := EstimatePilotPhase(-1, -1, 1)
	assert.InDelta(t, math.Pi, math.Abs(got), 1e-12)
}
