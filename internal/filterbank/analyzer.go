package filterbank

import (
	"fmt"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
)

// runState is a checkpoint of an analyzer run.
type runState struct {
	Samples uint64       // samples pushed when the run happened
	Output  []complex128 // channel outputs of the run
}

// Analyzer is a polyphase analysis channelizer splitting a sample stream
// into M subcarriers. Samples are pushed one at a time; Run evaluates the
// M channel outputs for the most recent window on demand.
type Analyzer struct {
	M int
	m int

	h    []float64
	hist *dsp.Window
	plan *dsp.FFTPlan
	v    []complex128
	last []complex128

	samples uint64
	saved   runState
}

// NewAnalyzer creates an analyzer with M channels and a root flipped
// exponential prototype of delay m symbols and excess bandwidth beta.
func NewAnalyzer(M, m int, beta float64) (*Analyzer, error) {
	h, err := DesignRootFlippedExponential(M, m, beta)
	if err != nil {
		return nil, fmt.Errorf("design analyzer prototype: %w", err)
	}
	return &Analyzer{
		M:     M,
		m:     m,
		h:     h,
		hist:  dsp.NewWindow(len(h)),
		plan:  dsp.NewFFTPlan(M),
		v:     make([]complex128, M),
		last:  make([]complex128, M),
		saved: runState{Output: make([]complex128, M)},
	}, nil
}

// Push adds one input sample.
func (a *Analyzer) Push(x complex128) {
	a.hist.Push(x)
	a.samples++
}

// Run writes the M channel outputs into dst.
//
// The phase reference is the newest sample: channel k of a unit tone at
// subcarrier k reads M·exp(j2πkt/M), where t is the index of the
// newest sample.
func (a *Analyzer) Run(dst []complex128) {
	for i := range a.v {
		a.v[i] = 0
	}
	for i, h := range a.h {
		a.v[(a.M-i%a.M)%a.M] += complex(h, 0) * a.hist.At(i)
	}
	a.plan.Forward(a.last, a.v)
	copy(dst, a.last)
}

// SaveRunState checkpoints the most recent run.
func (a *Analyzer) SaveRunState() {
	a.saved.Samples = a.samples
	copy(a.saved.Output, a.last)
}

// checkpoint returns a copy of the last saved run.
func (a *Analyzer) checkpoint() runState {
	out := make([]complex128, len(a.saved.Output))
	copy(out, a.saved.Output)
	return runState{Samples: a.saved.Samples, Output: out}
}

// Clear resets the internal history.
func (a *Analyzer) Clear() {
	a.hist.Clear()
	for i := range a.last {
		a.last[i] = 0
		a.saved.Output[i] = 0
	}
	a.samples = 0
	a.saved.Samples = 0
}
