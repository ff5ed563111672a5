package filterbank

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testM    = 64
	testm    = 3
	testBeta = 0.9
)

func TestDesignRootFlippedExponential(t *testing.T) {
	h, err := DesignRootFlippedExponential(testM, testm, testBeta)
	require.NoError(t, err)
	require.Len(t, h, 2*testM*testm+1)

	var sum float64
	for i, v := range h {
		sum += v
		assert.InDelta(t, v, h[len(h)-1-i], 1e-12, "tap %d", i)
	}
	assert.InDelta(t, testM, sum, 1e-9)

	// the cascade of two prototypes is Nyquist at the symbol rate
	corr := func(lag int) float64 {
		var c float64
		for i := 0; i+lag < len(h); i++ {
			c += h[i] * h[i+lag]
		}
		return c
	}
	assert.InDelta(t, testM, corr(0), 0.1)
	for j := 1; j <= 2*testm; j++ {
		assert.InDelta(t, 0, corr(j*testM), 0.01*testM, "lag %d", j*testM)
	}
}

func TestDesignRejectsInvalidParameters(t *testing.T) {
	tests := []struct {
		name string
		k, m int
		beta float64
	}{
		{"zero k", 0, 3, 0.5},
		{"zero m", 64, 0, 0.5},
		{"negative beta", 64, 3, -0.1},
		{"beta above one", 64, 3, 1.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DesignRootFlippedExponential(tt.k, tt.m, tt.beta)
			assert.ErrorIs(t, err, ErrInvalidDesign)
		})
	}

	_, err := NewAnalyzer(64, 0, 0.5)
	assert.ErrorIs(t, err, ErrInvalidDesign)
	_, err = NewSynthesizer(64, 3, 2)
	assert.ErrorIs(t, err, ErrInvalidDesign)
}

func TestFlippedExponentialIsComplementary(t *testing.T) {
	const k = 8
	B := 0.5 / k
	for _, beta := range []float64{0.25, 0.5, 0.9, 1} {
		for _, d := range []float64{0, 0.1, 0.3, 0.7, 0.95} {
			delta := d * beta * B
			sum := FlippedExponentialResponse(B-delta, k, beta) + FlippedExponentialResponse(B+delta, k, beta)
			assert.InDelta(t, 1, sum, 1e-12, "beta=%g delta=%g", beta, delta)
		}
		assert.Equal(t, 1.0, FlippedExponentialResponse(0, k, beta))
		assert.Equal(t, 0.0, FlippedExponentialResponse(0.5, k, beta))
	}
	assert.Equal(t, 0.5, FlippedExponentialResponse(B, k, 0))
	assert.Equal(t, 1.0, FlippedExponentialResponse(-B/2, k, 0))
}

func TestAnalyzerSeparatesTone(t *testing.T) {
	a, err := NewAnalyzer(testM, testm, testBeta)
	require.NoError(t, err)

	const k = 5
	n := len(a.h) + 10
	for i := 0; i < n; i++ {
		a.Push(cmplx.Rect(1, 2*math.Pi*k*float64(i)/testM))
	}
	X := make([]complex128, testM)
	a.Run(X)

	// phase is referenced to the newest sample
	want := complex(testM, 0) * cmplx.Rect(1, 2*math.Pi*k*float64(n-1)/testM)
	assert.InDelta(t, 0, cmplx.Abs(X[k]-want), 1e-9)
	for c := range X {
		if c != k {
			assert.Less(t, cmplx.Abs(X[c]), 1.0, "channel %d", c)
		}
	}
}

func TestAnalyzerRunState(t *testing.T) {
	a, err := NewAnalyzer(testM, testm, testBeta)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		a.Push(complex(float64(i%7), -1))
	}
	X := make([]complex128, testM)
	a.Run(X)
	a.SaveRunState()

	st := a.checkpoint()
	assert.Equal(t, uint64(100), st.Samples)
	assert.Equal(t, X, st.Output)

	// the snapshot is a copy
	st.Output[0] = 42
	assert.Equal(t, X[0], a.checkpoint().Output[0])

	a.Clear()
	st = a.checkpoint()
	assert.Zero(t, st.Samples)
	a.Run(X)
	for c := range X {
		assert.Zero(t, X[c])
	}
}

func TestSynthesizerAnalyzerChain(t *testing.T) {
	s, err := NewSynthesizer(testM, testm, testBeta)
	require.NoError(t, err)
	a, err := NewAnalyzer(testM, testm, testBeta)
	require.NoError(t, err)

	const k = 11
	X := make([]complex128, testM)
	X[k] = 1
	out := make([]complex128, testM)
	for sym := 0; sym < 4*testm+2; sym++ {
		s.Execute(X, out)
		for _, x := range out {
			a.Push(x)
		}
	}

	Y := make([]complex128, testM)
	a.Run(Y)
	assert.InDelta(t, testM, cmplx.Abs(Y[k]), 2)
	for c := range Y {
		if c != k {
			assert.Less(t, cmplx.Abs(Y[c]), 3.0, "channel %d", c)
		}
	}
}

func TestSynthesizerClear(t *testing.T) {
	s, err := NewSynthesizer(testM, testm, testBeta)
	require.NoError(t, err)

	X := make([]complex128, testM)
	X[3] = 1 + 1i
	first := make([]complex128, testM)
	s.Execute(X, first)
	s.Execute(X, make([]complex128, testM))

	s.Clear()
	again := make([]complex128, testM)
	s.Execute(X, again)
	assert.Equal(t, first, again)
}

func TestOQAMSynthesizer(t *testing.T) {
	_, err := NewOQAMSynthesizer(63, testm, testBeta)
	assert.ErrorIs(t, err, ErrInvalidDesign)

	q, err := NewOQAMSynthesizer(testM, testm, testBeta)
	require.NoError(t, err)

	out := make([]complex128, testM)
	q.Execute(make([]complex128, testM), out)
	for _, v := range out {
		assert.Zero(t, v)
	}

	X := make([]complex128, testM)
	for k := range X {
		X[k] = complex(float64(k%3)-1, float64(k%2))
	}
	var frame []complex128
	for sym := 0; sym < 3; sym++ {
		q.Execute(X, out)
		frame = append(frame, out...)
	}

	q.Clear()
	var again []complex128
	for sym := 0; sym < 3; sym++ {
		q.Execute(X, out)
		again = append(again, out...)
	}
	assert.Equal(t, frame, again)

	var energy float64
	for _, v := range frame {
		energy += real(v * cmplx.Conj(v))
	}
	assert.Greater(t, energy, 0.0)
}
