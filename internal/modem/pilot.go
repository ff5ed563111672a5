package modem

import (
	"fmt"
	"math"
	"math/cmplx"

	"go.uber.org/zap"
)

// EstimatePilotPhase searches phase offsets from -π to π in steps of
// π/PilotSearchSteps. For each trial φ both observations are rotated by
// -φ, a hybrid sample is formed from the real part of the first and the
// imaginary part of the second, and the φ minimizing the error magnitude
// against target is returned.
func EstimatePilotPhase(y0, y1 complex128, target float64) float64 {
	p := complex(target, 0)
	bestPhi := 0.0
	bestErr := math.Inf(1)
	for i := 0; i <= 2*PilotSearchSteps; i++ {
		phi := math.Pi * float64(i-PilotSearchSteps) / PilotSearchSteps
		g := cmplx.Rect(1, -phi)
		yHat := complex(real(y0*g), imag(y1*g))
		if e := cmplx.Abs(yHat - p); e < bestErr {
			bestErr = e
			bestPhi = phi
		}
	}
	return bestPhi
}

// receivePayload equalizes and demaps the current symbol, estimates the
// pilot phases and hands the data to the payload consumer.
func (s *Synchronizer) receivePayload() error {
	target := -1.0
	if s.pilotSeq.Advance() == 1 {
		target = 1
	}

	for i, g := range s.gains {
		s.y0[i] *= g
		s.y1[i] *= g
	}

	zeta := complex(Zeta, 0)
	j, t := 0, 0
	for i, st := range s.sc {
		switch st {
		case Null:
		case Pilot:
			if t == numPilot {
				return s.fault(fmt.Errorf("%w: more than %d pilot subcarriers", ErrInconsistent, numPilot))
			}
			y0, y1 := s.y0[i], s.y1[i]
			if i%2 == 1 {
				y0, y1 = y1, y0
			}
			s.pilotPhases[t] = EstimatePilotPhase(y0/zeta, y1/zeta, target)
			t++
		case Data:
			if j == numData {
				return s.fault(fmt.Errorf("%w: more than %d data subcarriers", ErrInconsistent, numData))
			}
			var v complex128
			if i%2 == 0 {
				v = complex(real(s.y0[i]), imag(s.y1[i]))
			} else {
				v = complex(real(s.y1[i]), imag(s.y0[i]))
			}
			s.data[j] = v / zeta
			j++
		}
	}
	if j != numData {
		return s.fault(fmt.Errorf("%w: demapped %d data values, want %d", ErrInconsistent, j, numData))
	}

	index := s.numDataSymbols
	s.numDataSymbols++

	ev := SymbolEvent{
		Acquisition: s.acquisition,
		Index:       index,
		Data:        s.data,
		PilotPhases: s.pilotPhases,
	}
	for _, o := range s.observers {
		o.SymbolReceived(ev)
	}
	// an observer may have closed the synchronizer and released s.data
	if s.closed {
		return ErrClosed
	}

	if s.payload == nil {
		return nil
	}
	switch s.payload(s.data) {
	case Resync:
		if s.closed {
			return nil
		}
		s.log.Info("payload consumer requested resync",
			zap.Int("data_symbols", s.numDataSymbols),
			zap.Stringer("acquisition", s.acquisition))
		s.reset(ReasonConsumerResync)
	case Abort:
		_ = s.Close()
		return ErrAborted
	}
	return nil
}

// fault closes the synchronizer on an internal consistency fault.
func (s *Synchronizer) fault(err error) error {
	s.log.Error("synchronizer fault", zap.Error(err))
	_ = s.Close()
	return err
}
