package modem

import "github.com/google/uuid"

// Reason explains a state transition.
type Reason int

const (
	// ReasonDetected: a preamble stage was detected.
	ReasonDetected Reason = iota
	// ReasonTimeout: a long preamble did not arrive in time.
	ReasonTimeout
	// ReasonConsumerResync: the payload consumer requested a resync.
	ReasonConsumerResync
	// ReasonManualReset: Reset was called.
	ReasonManualReset
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonDetected:
		return "detected"
	case ReasonTimeout:
		return "timeout"
	case ReasonConsumerResync:
		return "consumer_resync"
	case ReasonManualReset:
		return "manual_reset"
	default:
		return "unknown"
	}
}

// StateEvent describes a state transition.
type StateEvent struct {
	From, To    State
	Reason      Reason
	Sample      uint64    // input sample count at the transition
	Acquisition uuid.UUID // frame acquisition, zero before the first detection
	CFO         float64   // carrier offset estimate, radians per sample
	Metric      float64   // correlation magnitude that caused a detection
}

// GainEvent is emitted after channel gain estimation.
type GainEvent struct {
	Acquisition uuid.UUID
	Gains       []complex128 // per subcarrier equalizer gain
	Undefined   []int        // even subcarriers whose neighbours are both null
}

// SymbolEvent is emitted for every demapped payload symbol, before the
// payload consumer runs.
type SymbolEvent struct {
	Acquisition uuid.UUID
	Index       int          // payload symbol index within the frame
	Data        []complex128 // the 48 data values, valid during the call
	PilotPhases [numPilot]float64
}

// Observer receives synchronizer events. Calls are made synchronously from
// Execute and must not retain slices.
type Observer interface {
	StateChanged(StateEvent)
	GainEstimated(GainEvent)
	SymbolReceived(SymbolEvent)
}

// TraceKind identifies a per-sample trace.
type TraceKind int

const (
	TraceInput TraceKind = iota
	TraceRxx0
	TraceRxx1
	TraceRxy
)

// String returns the trace name.
func (k TraceKind) String() string {
	switch k {
	case TraceInput:
		return "x"
	case TraceRxx0:
		return "rxx0"
	case TraceRxx1:
		return "rxx1"
	case TraceRxy:
		return "rxy"
	default:
		return "unknown"
	}
}

// Tracer is implemented by observers that also want per-sample traces.
type Tracer interface {
	Trace(kind TraceKind, v complex128)
}

// BaseObserver implements Observer with no-ops, for embedding.
type BaseObserver struct{}

func (BaseObserver) StateChanged(StateEvent)    {}
func (BaseObserver) GainEstimated(GainEvent)    {}
func (BaseObserver) SymbolReceived(SymbolEvent) {}
