package filterbank

import (
	"fmt"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
)

// Synthesizer is a polyphase synthesis channelizer: each call turns one
// vector of M subcarrier values into M output samples.
type Synthesizer struct {
	M int
	m int

	h    []float64
	acc  []complex128
	plan *dsp.FFTPlan
	v    []complex128
}

// NewSynthesizer creates a synthesizer with M channels and a root flipped
// exponential prototype of delay m symbols and excess bandwidth beta.
func NewSynthesizer(M, m int, beta float64) (*Synthesizer, error) {
	h, err := DesignRootFlippedExponential(M, m, beta)
	if err != nil {
		return nil, fmt.Errorf("design synthesizer prototype: %w", err)
	}
	return &Synthesizer{
		M:    M,
		m:    m,
		h:    h,
		acc:  make([]complex128, len(h)),
		plan: dsp.NewFFTPlan(M),
		v:    make([]complex128, M),
	}, nil
}

// Execute synthesizes one symbol X (length M) into out (length M).
func (s *Synthesizer) Execute(X, out []complex128) {
	s.plan.Inverse(s.v, X)
	scale := complex(1/float64(s.M), 0)
	for i := range s.v {
		s.v[i] *= scale
	}

	for j, h := range s.h {
		s.acc[j] += complex(h, 0) * s.v[j%s.M]
	}
	copy(out, s.acc[:s.M])

	n := copy(s.acc, s.acc[s.M:])
	for i := n; i < len(s.acc); i++ {
		s.acc[i] = 0
	}
}

// Clear resets the overlap-add state.
func (s *Synthesizer) Clear() {
	for i := range s.acc {
		s.acc[i] = 0
	}
}
