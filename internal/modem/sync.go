package modem

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
	"github.com/Sangstbk/liquid-dsp/internal/filterbank"
)

// State is the frame acquisition state.
type State int

const (
	SeekShort State = iota
	SeekLong0
	SeekLong1
	Receive
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case SeekShort:
		return "seek_short"
	case SeekLong0:
		return "seek_long0"
	case SeekLong1:
		return "seek_long1"
	case Receive:
		return "receive"
	default:
		return "unknown"
	}
}

// Disposition is returned by the payload consumer.
type Disposition int

const (
	// Continue keeps receiving payload symbols.
	Continue Disposition = iota
	// Resync drops the frame and seeks a new short preamble.
	Resync
	// Abort stops processing; Execute closes the synchronizer and returns ErrAborted.
	Abort
)

// String returns the disposition name.
func (d Disposition) String() string {
	switch d {
	case Continue:
		return "continue"
	case Resync:
		return "resync"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// PayloadFunc consumes one demapped symbol of 48 data values. The slice is
// only valid during the call.
type PayloadFunc func(data []complex128) Disposition

// Analyzer is one path of the dual analysis filterbank.
type Analyzer interface {
	Push(x complex128)
	Run(dst []complex128)
	SaveRunState()
	Clear()
}

// Status is a snapshot of the synchronizer timing and estimates.
type Status struct {
	State       State
	Timer       int
	Samples     uint64
	Symbols     int
	DataSymbols int
	SamplePhase int
	CFO         float64
	// CoarseGain is the AGC gain captured at short-preamble detection. It
	// is stored but not applied.
	CoarseGain float64
	// SignalLevel is the smoothed input energy in dB at the same instant.
	SignalLevel float64
	PilotPhases [numPilot]float64
	Acquisition uuid.UUID
}

// Option configures a Synchronizer.
type Option func(*Synchronizer) error

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithObserver registers an event observer. May be repeated.
func WithObserver(o Observer) Option {
	return func(s *Synchronizer) error {
		if o == nil {
			return nil
		}
		s.observers = append(s.observers, o)
		if t, ok := o.(Tracer); ok {
			s.tracers = append(s.tracers, t)
		}
		return nil
	}
}

// WithAnalyzers replaces the two analysis filterbank paths.
func WithAnalyzers(a0, a1 Analyzer) Option {
	return func(s *Synchronizer) error {
		if a0 == nil || a1 == nil {
			return fmt.Errorf("%w: nil analyzer", ErrInvalidConfig)
		}
		s.ca0, s.ca1 = a0, a1
		return nil
	}
}

// WithMatchedFilter sets the long preamble waveform the matched filter
// correlates against, instead of the synthesized one.
func WithMatchedFilter(ref []complex128) Option {
	return func(s *Synchronizer) error {
		if len(ref) != NumSubcarriers {
			return fmt.Errorf("%w: matched filter reference has %d samples, want %d",
				ErrInvalidConfig, len(ref), NumSubcarriers)
		}
		s.crosscorr = dsp.NewMatchedFilter(ref)
		return nil
	}
}

// WithSubcarriers replaces the subcarrier classification table.
func WithSubcarriers(m SubcarrierMap) Option {
	return func(s *Synchronizer) error {
		if err := m.validate(); err != nil {
			return err
		}
		s.sc = m
		return nil
	}
}

// Synchronizer is the receive-side OQAM frame synchronizer. It is not
// safe for concurrent use; run one instance per receive channel.
type Synchronizer struct {
	cfg       Config
	payload   PayloadFunc
	log       *zap.Logger
	observers []Observer
	tracers   []Tracer
	sc        SubcarrierMap
	s2        []complex128 // training reference

	ca0, ca1       Analyzer
	delay0, delay1 *dsp.Delay
	autocorr0      *dsp.Autocorrelator
	autocorr1      *dsp.Autocorrelator
	crosscorr      *dsp.FIRFilter
	nco            *dsp.NCO
	agc            *dsp.AGC
	pilotSeq       *dsp.MSequence

	x0, x1   []complex128 // analyzer outputs at the first long preamble match
	y0, y1   []complex128 // analyzer outputs of the current symbol
	s1a, s1b []complex128 // analyzer outputs at gain estimation
	data     []complex128

	// running estimates
	gains          []complex128
	undefinedGains []int
	pilotPhases    [numPilot]float64
	rxx0, rxx1     complex128
	rxxMax         float64
	nuHat          float64
	coarseGain     float64
	signalLevel    float64
	acquisition    uuid.UUID

	// timing
	state          State
	timer          int
	numSamples     uint64
	numSymbols     int
	numDataSymbols int
	samplePhase    int

	closed bool
}

// NewSynchronizer creates a synchronizer that delivers payload symbols to
// payload. payload may be nil.
func NewSynchronizer(cfg Config, payload PayloadFunc, opts ...Option) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Synchronizer{
		cfg:       cfg,
		payload:   payload,
		log:       zap.NewNop(),
		sc:        DefaultSubcarriers(),
		delay0:    dsp.NewDelay(NumSubcarriers),
		delay1:    dsp.NewDelay(NumSubcarriers / 2),
		autocorr0: dsp.NewAutocorrelator(autocorrWindow, autocorrDelay0),
		autocorr1: dsp.NewAutocorrelator(autocorrWindow, autocorrDelay1),
		nco:       dsp.NewNCO(),
		agc:       dsp.NewAGC(1, 0.001),
		x0:        make([]complex128, NumSubcarriers),
		x1:        make([]complex128, NumSubcarriers),
		y0:        make([]complex128, NumSubcarriers),
		y1:        make([]complex128, NumSubcarriers),
		s1a:       make([]complex128, NumSubcarriers),
		s1b:       make([]complex128, NumSubcarriers),
		data:      make([]complex128, numData),
		gains:     make([]complex128, NumSubcarriers),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	var err error
	s.pilotSeq, err = dsp.NewMSequence(pilotSequenceDegree)
	if err != nil {
		return nil, fmt.Errorf("create pilot sequence: %w", err)
	}
	s.s2 = trainingSequence(s.sc)

	if s.ca0 == nil {
		a0, err := filterbank.NewAnalyzer(NumSubcarriers, cfg.FilterDelay, cfg.ExcessBandwidth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		a1, err := filterbank.NewAnalyzer(NumSubcarriers, cfg.FilterDelay, cfg.ExcessBandwidth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		s.ca0, s.ca1 = a0, a1
	}
	if s.crosscorr == nil {
		ref, err := longPreambleWaveform(cfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		s.crosscorr = dsp.NewMatchedFilter(ref)
	}

	s.resetState()
	return s, nil
}

// Execute processes samples in order. Loss of lock is handled internally
// and never reported as an error. Execute returns ErrAborted when the
// payload consumer aborted, ErrClosed once the synchronizer is closed, and
// an error wrapping ErrInconsistent on an internal consistency fault.
func (s *Synchronizer) Execute(samples []complex128) error {
	if s.closed {
		return ErrClosed
	}
	for _, x := range samples {
		if err := s.step(x); err != nil {
			return err
		}
		if s.closed {
			return ErrClosed
		}
	}
	return nil
}

func (s *Synchronizer) step(x complex128) error {
	s.numSamples++
	s.trace(TraceInput, x)

	if s.cfg.CompensateCFO && s.state != SeekShort {
		x = s.nco.MixDown(x)
		s.nco.Step()
	}

	x0 := s.delay0.Read()
	x1 := s.delay1.Read()
	s.delay0.Push(x)
	s.delay1.Push(x)
	s.ca0.Push(x0)
	s.ca1.Push(x1)

	switch s.state {
	case SeekShort:
		s.seekShort(x)
	case SeekLong0:
		s.seekLong0(x)
	case SeekLong1:
		s.seekLong1(x)
	case Receive:
		return s.receive()
	}
	return nil
}

// Reset returns the synchronizer to short-preamble search, clearing all
// estimates, timers and filter state. It is safe to call from within the
// payload consumer.
func (s *Synchronizer) Reset() {
	if s.closed {
		return
	}
	s.reset(ReasonManualReset)
}

func (s *Synchronizer) reset(reason Reason) {
	from, n := s.state, s.numSamples
	s.resetState()
	if from != SeekShort {
		s.emitState(from, reason, n, 0)
	}
}

func (s *Synchronizer) resetState() {
	s.pilotSeq.Reset()

	s.autocorr0.Clear()
	s.autocorr1.Clear()
	s.rxx0, s.rxx1 = 0, 0
	s.rxxMax = 0
	s.crosscorr.Clear()

	s.nuHat = 0
	s.nco.Reset()
	s.agc.Reset()

	s.delay0.Clear()
	s.delay1.Clear()
	s.ca0.Clear()
	s.ca1.Clear()

	s.coarseGain = 1
	s.signalLevel = s.agc.SignalLevel()
	for i := range s.gains {
		if s.sc[i] == Null {
			s.gains[i] = 0
		} else {
			s.gains[i] = 1
		}
	}
	s.undefinedGains = s.undefinedGains[:0]
	s.pilotPhases = [numPilot]float64{}

	s.state = SeekShort
	s.timer = 0
	s.numSymbols = 0
	s.numDataSymbols = 0
	s.numSamples = 0
	s.samplePhase = 0
}

// Close releases the synchronizer buffers. Further calls to Execute return
// ErrClosed. Close is idempotent and safe to call from within the payload
// consumer.
func (s *Synchronizer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.x0, s.x1, s.y0, s.y1 = nil, nil, nil, nil
	s.s1a, s.s1b = nil, nil
	s.data = nil
	s.ca0, s.ca1 = nil, nil
	s.crosscorr = nil
	s.autocorr0, s.autocorr1 = nil, nil
	s.delay0, s.delay1 = nil, nil
	return nil
}

// Closed reports whether the synchronizer has been closed.
func (s *Synchronizer) Closed() bool { return s.closed }

// Print writes a human readable configuration summary to w.
func (s *Synchronizer) Print(w io.Writer) {
	fmt.Fprintf(w, "ofdm/oqam frame synchronizer:\n")
	fmt.Fprintf(w, "    num subcarriers     :   %d\n", NumSubcarriers)
	fmt.Fprintf(w, "    m (filter delay)    :   %d\n", s.cfg.FilterDelay)
	fmt.Fprintf(w, "    beta (excess b/w)   :   %8.6f\n", s.cfg.ExcessBandwidth)
	fmt.Fprintf(w, "    rxx threshold       :   %8.6f\n", s.cfg.AutoCorrThreshold)
	fmt.Fprintf(w, "    rxy threshold       :   %8.6f\n", s.cfg.CrossCorrThreshold)
	fmt.Fprintf(w, "    cfo compensation    :   %t\n", s.cfg.CompensateCFO)
}

func (s *Synchronizer) String() string {
	var b strings.Builder
	s.Print(&b)
	return b.String()
}

// Config returns the construction parameters.
func (s *Synchronizer) Config() Config { return s.cfg }

// State returns the current acquisition state.
func (s *Synchronizer) State() State { return s.state }

// Status returns a snapshot of timers and estimates.
func (s *Synchronizer) Status() Status {
	return Status{
		State:       s.state,
		Timer:       s.timer,
		Samples:     s.numSamples,
		Symbols:     s.numSymbols,
		DataSymbols: s.numDataSymbols,
		SamplePhase: s.samplePhase,
		CFO:         s.nuHat,
		CoarseGain:  s.coarseGain,
		SignalLevel: s.signalLevel,
		PilotPhases: s.pilotPhases,
		Acquisition: s.acquisition,
	}
}

// EqualizerGains returns a copy of the per subcarrier equalizer gains.
func (s *Synchronizer) EqualizerGains() []complex128 {
	return cloneVec(s.gains)
}

// UndefinedGains lists the even subcarriers of the last estimate whose
// neighbours were both null; their gain fell back to unity.
func (s *Synchronizer) UndefinedGains() []int {
	out := make([]int, len(s.undefinedGains))
	copy(out, s.undefinedGains)
	return out
}

// TrainingSnapshot returns copies of both analyzer outputs captured at
// the gain estimation symbol.
func (s *Synchronizer) TrainingSnapshot() (path0, path1 []complex128) {
	return cloneVec(s.s1a), cloneVec(s.s1b)
}

// LongSequenceSnapshot returns copies of both analyzer outputs captured at
// the first long-preamble match.
func (s *Synchronizer) LongSequenceSnapshot() (path0, path1 []complex128) {
	return cloneVec(s.x0), cloneVec(s.x1)
}

func (s *Synchronizer) setState(to State, reason Reason, metric float64) {
	from := s.state
	s.state = to
	s.emitState(from, reason, s.numSamples, metric)
}

func (s *Synchronizer) emitState(from State, reason Reason, sample uint64, metric float64) {
	ev := StateEvent{
		From:        from,
		To:          s.state,
		Reason:      reason,
		Sample:      sample,
		Acquisition: s.acquisition,
		CFO:         s.nuHat,
		Metric:      metric,
	}
	for _, o := range s.observers {
		o.StateChanged(ev)
	}
}

func (s *Synchronizer) trace(kind TraceKind, v complex128) {
	for _, t := range s.tracers {
		t.Trace(kind, v)
	}
}

func cloneVec(v []complex128) []complex128 {
	if v == nil {
		return nil
	}
	out := make([]complex128, len(v))
	copy(out, v)
	return out
}
