package dsp

import "math/cmplx"

// Autocorrelator computes a running correlation of the input against a
// delayed copy of itself:
//
//	rxx[n] = Σ_{k=0}^{window-1} x[n-k]·conj(x[n-k-delay])
type Autocorrelator struct {
	window int
	delay  int
	hist   *Window
}

// NewAutocorrelator creates an autocorrelator integrating over window
// samples at the given lag.
func NewAutocorrelator(window, delay int) *Autocorrelator {
	return &Autocorrelator{
		window: window,
		delay:  delay,
		hist:   NewWindow(window + delay),
	}
}

// Push adds one sample.
func (a *Autocorrelator) Push(x complex128) {
	a.hist.Push(x)
}

// Execute returns the correlation over the current window.
func (a *Autocorrelator) Execute() complex128 {
	var rxx complex128
	for k := 0; k < a.window; k++ {
		rxx += a.hist.At(k) * cmplx.Conj(a.hist.At(k+a.delay))
	}
	return rxx
}

// Clear resets the history to zero.
func (a *Autocorrelator) Clear() {
	a.hist.Clear()
}

// FIRFilter is a complex FIR filter, y[n] = Σ h[i]·x[n-i], built with
// time-reversed conjugate coefficients as a matched filter.
type FIRFilter struct {
	h    []complex128
	hist *Window
}

// NewMatchedFilter creates a filter whose output peaks when the most
// recent len(ref) samples equal ref.
func NewMatchedFilter(ref []complex128) *FIRFilter {
	n := len(ref)
	h := make([]complex128, n)
	for i := range ref {
		h[i] = cmplx.Conj(ref[n-1-i])
	}
	return &FIRFilter{h: h, hist: NewWindow(n)}
}

// Push adds one sample.
func (f *FIRFilter) Push(x complex128) {
	f.hist.Push(x)
}

// Execute returns the filter output for the current history.
func (f *FIRFilter) Execute() complex128 {
	var y complex128
	for i, h := range f.h {
		y += h * f.hist.At(i)
	}
	return y
}

// Clear resets the history to zero.
func (f *FIRFilter) Clear() {
	f.hist.Clear()
}
