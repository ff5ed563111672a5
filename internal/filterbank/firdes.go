// Package filterbank implements the polyphase channelizers used by the
// OQAM receiver and transmitter, and the root-Nyquist prototype filter
// they share.
package filterbank

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
)

// ErrInvalidDesign is returned for out of range prototype parameters.
var ErrInvalidDesign = errors.New("invalid filter design")

// FlippedExponentialResponse returns the Nyquist "flipped exponential"
// frequency response at normalized frequency f for k samples per symbol
// and excess bandwidth beta. Mirrored halves around 1/2k sum to one.
func FlippedExponentialResponse(f float64, k int, beta float64) float64 {
	f = math.Abs(f)
	kf := float64(k)
	B := 0.5 / kf
	f0 := 0.5 * (1 - beta) / kf
	f1 := B
	f2 := 0.5 * (1 + beta) / kf

	if beta <= 0 {
		switch {
		case f < f1:
			return 1
		case f == f1:
			return 0.5
		default:
			return 0
		}
	}

	gamma := math.Ln2 / (beta * B)
	switch {
	case f < f0:
		return 1
	case f < f1:
		return math.Exp(gamma * (B*(1-beta) - f))
	case f < f2:
		return 1 - math.Exp(gamma*(f-(1+beta)*B))
	default:
		return 0
	}
}

// DesignRootFlippedExponential designs a square-root flipped exponential
// prototype of length 2km+1, centered at index km, for k samples per
// symbol, a delay of m symbols and excess bandwidth beta in [0, 1].
func DesignRootFlippedExponential(k, m int, beta float64) ([]float64, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: samples per symbol %d must be at least 1", ErrInvalidDesign, k)
	}
	if m < 1 {
		return nil, fmt.Errorf("%w: filter delay %d must be at least 1", ErrInvalidDesign, m)
	}
	if beta < 0 || beta > 1 {
		return nil, fmt.Errorf("%w: excess bandwidth %g not in [0, 1]", ErrInvalidDesign, beta)
	}

	L := 2*k*m + 1
	H := make([]complex128, L)
	for i := range H {
		f := float64(i) / float64(L)
		if i > L/2 {
			f = float64(L-i) / float64(L)
		}
		H[i] = complex(math.Sqrt(FlippedExponentialResponse(f, k, beta)), 0)
	}

	hh := dsp.NewFFTPlan(L).Inverse(nil, H)

	h := make([]float64, L)
	scale := float64(k) / float64(L)
	for i := range h {
		h[i] = real(hh[(i+k*m+1)%L]) * scale
	}
	return h, nil
}
