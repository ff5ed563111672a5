package modem

import (
	"math"
	"math/cmplx"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// seekShort looks for the periodic short preamble with two autocorrelators
// at lags N/4 and N/2. Both must exceed the threshold, and the transition
// waits until their summed magnitude stops rising.
func (s *Synchronizer) seekShort(x complex128) {
	s.agc.Execute(x)

	s.autocorr0.Push(x)
	s.autocorr1.Push(x)
	s.rxx0 = s.autocorr0.Execute()
	s.rxx1 = s.autocorr1.Execute()
	s.trace(TraceRxx0, s.rxx0)
	s.trace(TraceRxx1, s.rxx1)

	mag0 := cmplx.Abs(s.rxx0)
	mag1 := cmplx.Abs(s.rxx1)
	threshold := s.cfg.AutoCorrThreshold * autocorrWindow
	if mag0 <= threshold || mag1 <= threshold {
		return
	}

	// hold until the correlation peaks
	if mag0+mag1 > s.rxxMax {
		s.rxxMax = mag0 + mag1
		return
	}

	s.nuHat = estimateCFO(s.rxx0)
	s.nco.SetFrequency(s.nuHat)
	s.coarseGain = s.agc.Gain()
	s.signalLevel = s.agc.SignalLevel()
	s.timer = 0
	s.acquisition = uuid.New()

	s.log.Debug("short preamble detected",
		zap.Uint64("sample", s.numSamples),
		zap.Float64("rxx0", mag0),
		zap.Float64("rxx1", mag1),
		zap.Float64("cfo", s.nuHat),
		zap.Float64("level_db", s.signalLevel),
		zap.Stringer("acquisition", s.acquisition))
	s.setState(SeekLong0, ReasonDetected, mag0+mag1)
}

// estimateCFO converts the phase of the lag N/4 autocorrelation into a
// carrier offset in radians per sample. The phase is wrapped to
// [-π/2, π/2] before scaling.
func estimateCFO(rxx complex128) float64 {
	nu := cmplx.Phase(rxx)
	if nu > math.Pi/2 {
		nu -= math.Pi
	}
	if nu < -math.Pi/2 {
		nu += math.Pi
	}
	return nu * 4 / NumSubcarriers
}

func (s *Synchronizer) crossCorrelate(x complex128) complex128 {
	s.crosscorr.Push(x)
	rxy := s.crosscorr.Execute()
	s.trace(TraceRxy, rxy)
	return rxy
}

// seekLong0 waits for the first long preamble match. On a match the
// analyzer outputs are captured and the symbol sample phase is fixed.
func (s *Synchronizer) seekLong0(x complex128) {
	rxy := s.crossCorrelate(x)

	s.timer++
	if s.timer > long0Timeout {
		s.log.Warn("could not find first long preamble; resetting synchronizer",
			zap.Uint64("sample", s.numSamples),
			zap.Stringer("acquisition", s.acquisition))
		s.reset(ReasonTimeout)
		return
	}

	mag := cmplx.Abs(rxy)
	if mag <= s.cfg.CrossCorrThreshold*NumSubcarriers {
		return
	}

	s.ca0.Run(s.x0)
	s.ca1.Run(s.x1)
	s.samplePhase = int((s.numSamples + NumSubcarriers/2) % NumSubcarriers)
	s.timer = 0

	s.log.Debug("first long preamble detected",
		zap.Uint64("sample", s.numSamples),
		zap.Float64("rxy", mag),
		zap.Int("sample_phase", s.samplePhase))
	s.setState(SeekLong1, ReasonDetected, mag)
}

// seekLong1 expects the second long preamble exactly one symbol after the
// first, within two samples.
func (s *Synchronizer) seekLong1(x complex128) {
	rxy := s.crossCorrelate(x)

	s.timer++
	if s.timer < long1Early {
		return
	}
	if s.timer > long1Late {
		s.log.Warn("could not find second long preamble; resetting synchronizer",
			zap.Uint64("sample", s.numSamples),
			zap.Stringer("acquisition", s.acquisition))
		s.reset(ReasonTimeout)
		return
	}

	mag := cmplx.Abs(rxy)
	if mag <= s.cfg.CrossCorrThreshold*NumSubcarriers {
		return
	}

	s.log.Debug("second long preamble detected",
		zap.Uint64("sample", s.numSamples),
		zap.Float64("rxy", mag),
		zap.Int("timer", s.timer))
	s.setState(Receive, ReasonDetected, mag)
}
