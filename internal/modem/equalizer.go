package modem

import (
	"go.uber.org/zap"
)

// receive runs once per symbol period, at the locked sample phase, and
// dispatches on the symbol index since entering Receive. Outputs up to
// FilterDelay+2 still carry the preamble through the analyzer group delay
// and are dropped.
func (s *Synchronizer) receive() error {
	if int(s.numSamples%NumSubcarriers) != s.samplePhase {
		return nil
	}

	s.ca0.Run(s.y0)
	s.ca1.Run(s.y1)
	s.ca0.SaveRunState()
	s.ca1.SaveRunState()

	m := s.cfg.FilterDelay
	n := s.numSymbols
	s.numSymbols++

	switch {
	case n <= m+2:
		// filterbank drain and first training half
	case n == m+3:
		s.estimateGain(s.y0)
		copy(s.s1a, s.y0)
		copy(s.s1b, s.y1)
	case n == m+4:
		// reserved training slot
	case n > m+4:
		return s.receivePayload()
	}
	return nil
}

// estimateGain computes the per subcarrier equalizer gain from the path 0
// output of the training symbol. Odd subcarriers are zero-forced directly;
// even subcarriers average their non-null odd neighbours.
func (s *Synchronizer) estimateGain(y0 []complex128) {
	s.undefinedGains = s.undefinedGains[:0]

	for j := 0; j < NumSubcarriers; j++ {
		switch {
		case s.sc[j] == Null:
			s.gains[j] = 0
		case j%2 == 1:
			s.gains[j] = 1 / (y0[j] / s.s2[j])
		}
	}

	for j := 0; j < NumSubcarriers; j += 2 {
		if s.sc[j] == Null {
			continue
		}
		var sum complex128
		n := 0
		for _, k := range [2]int{(j + NumSubcarriers - 1) % NumSubcarriers, (j + 1) % NumSubcarriers} {
			if s.sc[k] != Null {
				sum += s.gains[k]
				n++
			}
		}
		if n == 0 {
			s.gains[j] = 1
			s.undefinedGains = append(s.undefinedGains, j)
			s.log.Warn("even subcarrier has no active neighbours; using unity gain",
				zap.Int("subcarrier", j),
				zap.Stringer("acquisition", s.acquisition))
			continue
		}
		s.gains[j] = sum / complex(float64(n), 0)
	}

	ev := GainEvent{
		Acquisition: s.acquisition,
		Gains:       cloneVec(s.gains),
		Undefined:   s.UndefinedGains(),
	}
	for _, o := range s.observers {
		o.GainEstimated(ev)
	}
}
