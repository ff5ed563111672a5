package modem

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
)

// shortPattern has period 16 and unit-magnitude entries, so every
// autocorrelation product is exactly 1.
var shortPattern = [16]complex128{
	1, 1i, -1, -1i, 1, 1, -1i, 1i, -1, 1i, 1, -1, -1i, -1, 1i, 1,
}

// Samples fed before any preamble.
const leadIn = 100

// shortDetectAt is the preamble sample at which the short preamble is
// detected when it follows silence: the lag 32 correlator first exceeds
// 48 at sample 81 and the summed magnitude peaks at 96.
const shortDetectAt = 97

func shortPreamble(n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = shortPattern[i%len(shortPattern)]
	}
	return out
}

// scriptedAnalyzer replays a fixed sequence of outputs, one per Run, and
// zeros once the script is exhausted.
type scriptedAnalyzer struct {
	script [][]complex128
	runs   int
	saves  int
	clears int
}

func (a *scriptedAnalyzer) Push(complex128) {}

func (a *scriptedAnalyzer) Run(dst []complex128) {
	if a.runs < len(a.script) && a.script[a.runs] != nil {
		copy(dst, a.script[a.runs])
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	a.runs++
}

func (a *scriptedAnalyzer) SaveRunState() { a.saves++ }
func (a *scriptedAnalyzer) Clear()        { a.clears++ }

// scriptedFrame drives the synchronizer through a full acquisition with a
// random long preamble waveform and scripted analyzer outputs:
//
//	run 0          first long preamble match
//	run s+1        receive symbol s
//	run m+4        gain estimation (s = m+3)
//	run m+6+q      payload symbol q (s = m+5+q)
type scriptedFrame struct {
	samples []complex128
	longRef []complex128
	a0, a1  *scriptedAnalyzer
	payload [][]complex128
	targets []float64
}

func newScriptedFrame(t *testing.T, cfg Config, sc SubcarrierMap, channel complex128, numSymbols int, seed int64) *scriptedFrame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	m := cfg.FilterDelay

	f := &scriptedFrame{
		longRef: make([]complex128, NumSubcarriers),
		a0:      &scriptedAnalyzer{},
		a1:      &scriptedAnalyzer{},
	}
	for i := range f.longRef {
		f.longRef[i] = cmplx.Rect(1, 2*math.Pi*rng.Float64())
	}

	runs := m + 6 + numSymbols
	f.a0.script = make([][]complex128, runs)
	f.a1.script = make([][]complex128, runs)

	f.a0.script[0] = LongSequence()
	f.a1.script[0] = ShortSequence()

	training := trainingSequence(sc)
	y := make([]complex128, NumSubcarriers)
	for i := range y {
		y[i] = channel * training[i]
	}
	f.a0.script[m+4] = y

	pilots, err := dsp.NewMSequence(pilotSequenceDegree)
	require.NoError(t, err)
	zeta := complex(Zeta, 0)
	for q := 0; q < numSymbols; q++ {
		target := -1.0
		if pilots.Advance() == 1 {
			target = 1
		}
		data := make([]complex128, numData)
		for i := range data {
			data[i] = complex(float64(rng.Intn(4))-1.5, float64(rng.Intn(4))-1.5)
		}
		f.payload = append(f.payload, data)
		f.targets = append(f.targets, target)

		y := make([]complex128, NumSubcarriers)
		j := 0
		for i, st := range sc {
			switch st {
			case Pilot:
				y[i] = channel * zeta * complex(target, 0)
			case Data:
				y[i] = channel * zeta * data[j]
				j++
			}
		}
		f.a0.script[m+6+q] = y
		f.a1.script[m+6+q] = y
	}

	f.samples = make([]complex128, leadIn)
	f.samples = append(f.samples, shortPreamble(shortDetectAt)...)
	f.samples = append(f.samples, f.longRef...)
	f.samples = append(f.samples, f.longRef...)
	f.samples = append(f.samples, make([]complex128, (m+8+numSymbols)*NumSubcarriers)...)
	return f
}

func (f *scriptedFrame) options() []Option {
	return []Option{WithAnalyzers(f.a0, f.a1), WithMatchedFilter(f.longRef)}
}

// recorder captures payload symbols and returns disp after the n-th one.
type recorder struct {
	got   [][]complex128
	after int
	disp  Disposition
	hook  func()
}

func (r *recorder) consume(data []complex128) Disposition {
	r.got = append(r.got, append([]complex128(nil), data...))
	if r.hook != nil {
		r.hook()
	}
	if len(r.got) == r.after {
		return r.disp
	}
	return Continue
}

type eventLog struct {
	BaseObserver
	states  []StateEvent
	gains   []GainEvent
	symbols []SymbolEvent
}

func (e *eventLog) StateChanged(ev StateEvent) { e.states = append(e.states, ev) }
func (e *eventLog) GainEstimated(ev GainEvent) { e.gains = append(e.gains, ev) }
func (e *eventLog) SymbolReceived(ev SymbolEvent) {
	ev.Data = append([]complex128(nil), ev.Data...)
	e.symbols = append(e.symbols, ev)
}
