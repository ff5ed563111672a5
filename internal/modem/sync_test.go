package modem

import (
	"errors"
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewSynchronizerInitialState(t *testing.T) {
	s, err := NewSynchronizer(DefaultConfig(), nil)
	require.NoError(t, err)

	st := s.Status()
	assert.Equal(t, SeekShort, st.State)
	assert.Zero(t, st.Timer)
	assert.Zero(t, st.Samples)
	assert.Zero(t, st.Symbols)
	assert.Zero(t, st.CFO)
	assert.Equal(t, 1.0, st.CoarseGain)
	assert.Zero(t, st.SignalLevel)

	sc := DefaultSubcarriers()
	for i, g := range s.EqualizerGains() {
		if sc[i] == Null {
			assert.Zero(t, g, "subcarrier %d", i)
		} else {
			assert.Equal(t, complex(1, 0), g, "subcarrier %d", i)
		}
	}
	assert.Empty(t, s.UndefinedGains())
}

func TestNewSynchronizerRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero delay", func(c *Config) { c.FilterDelay = 0 }},
		{"negative beta", func(c *Config) { c.ExcessBandwidth = -0.1 }},
		{"beta above one", func(c *Config) { c.ExcessBandwidth = 1.5 }},
		{"rxx threshold zero", func(c *Config) { c.AutoCorrThreshold = 0 }},
		{"rxy threshold one", func(c *Config) { c.CrossCorrThreshold = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewSynchronizer(cfg, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestWithMatchedFilterRejectsWrongLength(t *testing.T) {
	_, err := NewSynchronizer(DefaultConfig(), nil, WithMatchedFilter(make([]complex128, 32)))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSynchronizer(DefaultConfig(), nil, WithAnalyzers(nil, &scriptedAnalyzer{}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResetIsIdempotent(t *testing.T) {
	s, err := NewSynchronizer(DefaultConfig(), nil)
	require.NoError(t, err)

	input := append(make([]complex128, leadIn), shortPreamble(shortDetectAt)...)
	require.NoError(t, s.Execute(input))
	require.Equal(t, SeekLong0, s.State())

	s.Reset()
	first := s.Status()
	gains := s.EqualizerGains()
	s.Reset()
	assert.Equal(t, first, s.Status())
	assert.Equal(t, gains, s.EqualizerGains())
	assert.Equal(t, SeekShort, s.State())
	assert.Zero(t, first.Samples)
}

func TestNoiseNeverLeavesSeekShort(t *testing.T) {
	events := &eventLog{}
	s, err := NewSynchronizer(DefaultConfig(), func([]complex128) Disposition {
		t.Fatal("payload delivered from noise")
		return Continue
	}, WithObserver(events))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	noise := make([]complex128, 20000)
	for i := range noise {
		noise[i] = complex(rng.NormFloat64(), rng.NormFloat64()) * math.Sqrt2 / 2
	}
	require.NoError(t, s.Execute(noise))
	assert.Equal(t, SeekShort, s.State())
	assert.Empty(t, events.states)
}

func TestShortPreambleDetection(t *testing.T) {
	events := &eventLog{}
	s, err := NewSynchronizer(DefaultConfig(), nil, WithObserver(events))
	require.NoError(t, err)

	require.NoError(t, s.Execute(make([]complex128, leadIn)))
	pre := shortPreamble(shortDetectAt)
	require.NoError(t, s.Execute(pre[:shortDetectAt-1]))
	assert.Equal(t, SeekShort, s.State(), "detection must wait for the correlation peak")

	require.NoError(t, s.Execute(pre[shortDetectAt-1:]))
	require.Equal(t, SeekLong0, s.State())
	require.Len(t, events.states, 1)

	ev := events.states[0]
	assert.Equal(t, SeekShort, ev.From)
	assert.Equal(t, SeekLong0, ev.To)
	assert.Equal(t, ReasonDetected, ev.Reason)
	assert.Equal(t, uint64(leadIn+shortDetectAt), ev.Sample)
	assert.Equal(t, 128.0, ev.Metric)
	assert.NotZero(t, ev.Acquisition)
	assert.Zero(t, ev.CFO)

	// one pole smoother from unit energy: silence, then unit magnitude
	energy := 1.0
	for i := 0; i < leadIn; i++ {
		energy *= 0.999
	}
	for i := 0; i < shortDetectAt; i++ {
		energy = 0.999*energy + 0.001
	}
	st := s.Status()
	assert.InDelta(t, 10*math.Log10(energy), st.SignalLevel, 1e-9)
	assert.InDelta(t, 1/math.Sqrt(energy), st.CoarseGain, 1e-9)

	s.Reset()
	assert.Zero(t, s.Status().SignalLevel)
}

func TestCFOEstimateIsLinear(t *testing.T) {
	for _, nu := range []float64{-0.08, -0.02, 0, 0.01, 0.05, 0.09} {
		s, err := NewSynchronizer(DefaultConfig(), nil)
		require.NoError(t, err)

		pre := shortPreamble(320)
		for n := range pre {
			pre[n] *= cmplx.Rect(1, nu*float64(n))
		}
		input := append(make([]complex128, leadIn), pre...)
		input = append(input, make([]complex128, autocorrDelay0)...)
		require.NoError(t, s.Execute(input))

		require.Equal(t, SeekLong0, s.State(), "nu=%g", nu)
		assert.InDelta(t, nu, s.Status().CFO, 1e-9, "nu=%g", nu)
	}
}

func TestEstimateCFOWrapsPhase(t *testing.T) {
	// a lag-16 phase of 3π/4 wraps to -π/4
	got := estimateCFO(cmplx.Rect(1, 3*math.Pi/4))
	assert.InDelta(t, -math.Pi/4*4/NumSubcarriers, got, 1e-12)

	got = estimateCFO(cmplx.Rect(1, -3*math.Pi/4))
	assert.InDelta(t, math.Pi/4*4/NumSubcarriers, got, 1e-12)
}

func TestLong0Timeout(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	events := &eventLog{}
	s, err := NewSynchronizer(DefaultConfig(), nil, WithLogger(zap.New(core)), WithObserver(events))
	require.NoError(t, err)

	input := append(make([]complex128, leadIn), shortPreamble(shortDetectAt)...)
	input = append(input, make([]complex128, long0Timeout)...)
	require.NoError(t, s.Execute(input))
	require.Equal(t, SeekLong0, s.State())
	assert.Equal(t, long0Timeout, s.Status().Timer)

	require.NoError(t, s.Execute([]complex128{0}))
	assert.Equal(t, SeekShort, s.State())
	assert.Zero(t, s.Status().Timer)
	assert.Zero(t, s.Status().Samples)

	require.Len(t, events.states, 2)
	last := events.states[1]
	assert.Equal(t, SeekLong0, last.From)
	assert.Equal(t, SeekShort, last.To)
	assert.Equal(t, ReasonTimeout, last.Reason)
	assert.Equal(t, uint64(leadIn+shortDetectAt+long0Timeout+1), last.Sample)
	assert.Equal(t, 1, logs.FilterMessageSnippet("first long preamble").Len())
}

func TestLong1Timeout(t *testing.T) {
	f := newScriptedFrame(t, DefaultConfig(), DefaultSubcarriers(), 1, 0, 7)
	events := &eventLog{}
	s, err := NewSynchronizer(DefaultConfig(), nil, append(f.options(), WithObserver(events))...)
	require.NoError(t, err)

	input := append(make([]complex128, leadIn), shortPreamble(shortDetectAt)...)
	input = append(input, f.longRef...)
	require.NoError(t, s.Execute(input))
	require.Equal(t, SeekLong1, s.State())
	assert.Equal(t, 1, f.a0.runs, "analyzers run once at the first long preamble")
	x0, x1 := s.LongSequenceSnapshot()
	assert.Equal(t, LongSequence(), x0)
	assert.Equal(t, ShortSequence(), x1)
	assert.Equal(t, (leadIn+shortDetectAt+NumSubcarriers+NumSubcarriers/2)%NumSubcarriers, s.Status().SamplePhase)

	require.NoError(t, s.Execute(make([]complex128, long1Late)))
	require.Equal(t, SeekLong1, s.State())
	require.NoError(t, s.Execute([]complex128{0}))
	assert.Equal(t, SeekShort, s.State())

	last := events.states[len(events.states)-1]
	assert.Equal(t, SeekLong1, last.From)
	assert.Equal(t, ReasonTimeout, last.Reason)
}

func TestManualResetEmitsEvent(t *testing.T) {
	events := &eventLog{}
	s, err := NewSynchronizer(DefaultConfig(), nil, WithObserver(events))
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, events.states, "reset from seek_short is silent")

	input := append(make([]complex128, leadIn), shortPreamble(shortDetectAt)...)
	require.NoError(t, s.Execute(input))
	s.Reset()
	require.Len(t, events.states, 2)
	assert.Equal(t, ReasonManualReset, events.states[1].Reason)
	assert.Equal(t, uint64(leadIn+shortDetectAt), events.states[1].Sample)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := NewSynchronizer(DefaultConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Execute([]complex128{1}), ErrClosed)

	s.Reset()
	assert.True(t, s.Closed())
}

func TestPrint(t *testing.T) {
	s, err := NewSynchronizer(DefaultConfig(), nil)
	require.NoError(t, err)
	out := s.String()
	assert.Contains(t, out, "num subcarriers     :   64")
	assert.Contains(t, out, "m (filter delay)    :   3")
}

func TestTracerReceivesCorrelations(t *testing.T) {
	tr := &traceCounter{}
	s, err := NewSynchronizer(DefaultConfig(), nil, WithObserver(tr))
	require.NoError(t, err)

	require.NoError(t, s.Execute(make([]complex128, 10)))
	assert.Equal(t, 10, tr.counts[TraceInput])
	assert.Equal(t, 10, tr.counts[TraceRxx0])
	assert.Equal(t, 10, tr.counts[TraceRxx1])
	assert.Zero(t, tr.counts[TraceRxy])
}

type traceCounter struct {
	BaseObserver
	counts map[TraceKind]int
}

func (c *traceCounter) Trace(kind TraceKind, _ complex128) {
	if c.counts == nil {
		c.counts = make(map[TraceKind]int)
	}
	c.counts[kind]++
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrInvalidConfig, ErrClosed, ErrAborted, ErrInconsistent}
	for i, a := range all {
		for j, b := range all {
			assert.Equal(t, i == j, errors.Is(a, b))
		}
	}
}
