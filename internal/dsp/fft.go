package dsp

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTPlan is a reusable complex DFT of a fixed length. Any length is
// supported, not only powers of two.
type FFTPlan struct {
	fft *fourier.CmplxFFT
}

// NewFFTPlan creates a DFT plan for sequences of length n.
func NewFFTPlan(n int) *FFTPlan {
	return &FFTPlan{fft: fourier.NewCmplxFFT(n)}
}

// Forward computes dst[k] = Σ x[j]·exp(-j2πjk/n). dst may be nil.
func (p *FFTPlan) Forward(dst, x []complex128) []complex128 {
	return p.fft.Coefficients(dst, x)
}

// Inverse computes dst[j] = Σ X[k]·exp(+j2πjk/n) without the 1/n factor.
func (p *FFTPlan) Inverse(dst, X []complex128) []complex128 {
	return p.fft.Sequence(dst, X)
}
