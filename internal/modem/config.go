package modem

import (
	"errors"
	"fmt"
)

// NumSubcarriers is the number of OQAM subcarriers of the waveform.
const NumSubcarriers = 64

const (
	numData  = 48
	numPilot = 4
	numNull  = 12

	autocorrWindow = NumSubcarriers
	autocorrDelay0 = NumSubcarriers / 4
	autocorrDelay1 = NumSubcarriers / 2

	// Samples allowed between short-preamble detection and the first
	// long-preamble match.
	long0Timeout = 10 * NumSubcarriers
	// Acceptance window for the second long-preamble match, in samples
	// after the first.
	long1Early = NumSubcarriers - 2
	long1Late  = NumSubcarriers + 2

	// PilotSearchSteps is the number of phase steps per π of the pilot
	// phase search.
	PilotSearchSteps = 100

	pilotSequenceDegree    = 8
	trainingSequenceDegree = 6
)

var (
	// ErrInvalidConfig is returned when construction parameters are out of range.
	ErrInvalidConfig = errors.New("invalid synchronizer configuration")
	// ErrClosed is returned by Execute once the synchronizer has been closed.
	ErrClosed = errors.New("synchronizer closed")
	// ErrAborted is returned by Execute when the payload consumer aborted.
	ErrAborted = errors.New("payload consumer aborted")
	// ErrInconsistent reports an internal consistency fault.
	ErrInconsistent = errors.New("internal consistency fault")
)

// Config holds the synchronizer construction parameters.
type Config struct {
	// FilterDelay is the analysis filterbank prototype delay in symbols.
	FilterDelay int
	// ExcessBandwidth of the prototype filter.
	ExcessBandwidth float64
	// AutoCorrThreshold is the short-preamble detection threshold as a
	// fraction of the autocorrelation window.
	AutoCorrThreshold float64
	// CrossCorrThreshold is the long-preamble detection threshold as a
	// fraction of the matched filter length.
	CrossCorrThreshold float64
	// CompensateCFO de-rotates the input by the carrier offset estimate
	// once a short preamble has been detected.
	CompensateCFO bool
}

// DefaultConfig returns the standard receiver parameters.
func DefaultConfig() Config {
	return Config{
		FilterDelay:        3,
		ExcessBandwidth:    0.9,
		AutoCorrThreshold:  0.75,
		CrossCorrThreshold: 0.75,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.FilterDelay < 1 {
		return fmt.Errorf("%w: filter delay %d must be at least 1", ErrInvalidConfig, c.FilterDelay)
	}
	if c.ExcessBandwidth < 0 || c.ExcessBandwidth > 1 {
		return fmt.Errorf("%w: excess bandwidth %g not in [0, 1]", ErrInvalidConfig, c.ExcessBandwidth)
	}
	if c.AutoCorrThreshold <= 0 || c.AutoCorrThreshold >= 1 {
		return fmt.Errorf("%w: autocorrelation threshold %g not in (0, 1)", ErrInvalidConfig, c.AutoCorrThreshold)
	}
	if c.CrossCorrThreshold <= 0 || c.CrossCorrThreshold >= 1 {
		return fmt.Errorf("%w: cross-correlation threshold %g not in (0, 1)", ErrInvalidConfig, c.CrossCorrThreshold)
	}
	return nil
}
