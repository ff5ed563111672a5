package filterbank

import (
	"fmt"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
)

// OQAMSynthesizer generates offset-QAM multicarrier symbols. Each complex
// subcarrier value is split over two synthesizers: on even subcarriers the
// real part drives path 0 and the imaginary part path 1, on odd
// subcarriers the roles swap. Path 1 is delayed by half a symbol.
type OQAMSynthesizer struct {
	M int

	s0, s1 *Synthesizer
	delay  *dsp.Delay

	x0, x1 []complex128
	y0, y1 []complex128
}

// NewOQAMSynthesizer creates an OQAM synthesizer with M subcarriers.
// M must be even.
func NewOQAMSynthesizer(M, m int, beta float64) (*OQAMSynthesizer, error) {
	if M < 2 || M%2 != 0 {
		return nil, fmt.Errorf("%w: subcarrier count %d must be even", ErrInvalidDesign, M)
	}
	s0, err := NewSynthesizer(M, m, beta)
	if err != nil {
		return nil, err
	}
	s1, err := NewSynthesizer(M, m, beta)
	if err != nil {
		return nil, err
	}
	return &OQAMSynthesizer{
		M:     M,
		s0:    s0,
		s1:    s1,
		delay: dsp.NewDelay(M / 2),
		x0:    make([]complex128, M),
		x1:    make([]complex128, M),
		y0:    make([]complex128, M),
		y1:    make([]complex128, M),
	}, nil
}

// Execute synthesizes one symbol X (length M) into out (length M).
func (q *OQAMSynthesizer) Execute(X, out []complex128) {
	for k, x := range X {
		re := complex(real(x), 0)
		im := complex(0, imag(x))
		if k%2 == 0 {
			q.x0[k], q.x1[k] = re, im
		} else {
			q.x0[k], q.x1[k] = im, re
		}
	}

	q.s0.Execute(q.x0, q.y0)
	q.s1.Execute(q.x1, q.y1)

	for n := range out {
		out[n] = q.y0[n] + q.delay.Read()
		q.delay.Push(q.y1[n])
	}
}

// Clear resets both paths.
func (q *OQAMSynthesizer) Clear() {
	q.s0.Clear()
	q.s1.Clear()
	q.delay.Clear()
}
