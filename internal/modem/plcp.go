package modem

import (
	"fmt"
	"math"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
	"github.com/Sangstbk/liquid-dsp/internal/filterbank"
)

// Zeta scales the reference sequences so that a symbol with all 52 active
// subcarriers at unit magnitude has unit average power.
var Zeta = float64(NumSubcarriers) / math.Sqrt(float64(numData+numPilot))

// Short training sequence: 12 tones, every fourth subcarrier, giving a
// period of 16 samples.
var shortTones = map[int]complex128{
	-24: 1 + 1i, -20: -1 - 1i, -16: 1 + 1i, -12: -1 - 1i,
	-8: -1 - 1i, -4: 1 + 1i, 4: -1 - 1i, 8: -1 - 1i,
	12: 1 + 1i, 16: 1 + 1i, 20: 1 + 1i, 24: 1 + 1i,
}

// Long training sequence on subcarriers -26..26.
var longTones = [53]float64{
	1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, 1, 1, 1, -1, -1, 1, 1, -1, 1, -1, 1, 1, 1, 1,
	0,
	1, -1, -1, 1, 1, -1, 1, -1, 1, -1, -1, -1, -1, -1, 1, 1, -1, -1, 1, -1, 1, -1, 1, 1, 1, 1,
}

// ShortSequence returns the short preamble reference S0.
func ShortSequence() []complex128 {
	s := make([]complex128, NumSubcarriers)
	g := complex(math.Sqrt(13.0/6.0)*Zeta, 0)
	for k, v := range shortTones {
		s[(k+NumSubcarriers)%NumSubcarriers] = v * g
	}
	return s
}

// LongSequence returns the long preamble reference S1.
func LongSequence() []complex128 {
	s := make([]complex128, NumSubcarriers)
	for i, v := range longTones {
		k := i - 26
		s[(k+NumSubcarriers)%NumSubcarriers] = complex(v*Zeta, 0)
	}
	return s
}

// TrainingSequence returns the training reference S2 for the standard
// subcarrier table.
func TrainingSequence() []complex128 {
	return trainingSequence(DefaultSubcarriers())
}

// trainingSequence fills the active subcarriers of sc with a ±1 pattern
// drawn from a degree 6 m-sequence.
func trainingSequence(sc SubcarrierMap) []complex128 {
	s := make([]complex128, NumSubcarriers)
	ms, err := dsp.NewMSequence(trainingSequenceDegree)
	if err != nil {
		panic(err) // constant degree
	}
	for i, t := range sc {
		if t == Null {
			continue
		}
		if ms.Advance() == 1 {
			s[i] = complex(Zeta, 0)
		} else {
			s[i] = complex(-Zeta, 0)
		}
	}
	return s
}

// longPreambleWaveform synthesizes one symbol period of the steady-state
// long preamble. The window is taken M/2-1 samples into the last symbol,
// so a matched filter built from it fires M/2-1 samples ahead of an
// analysis symbol boundary; the (n + M/2) mod M sample phase rule then
// lands exactly on the boundary.
func longPreambleWaveform(cfg Config) ([]complex128, error) {
	const M = NumSubcarriers
	q, err := filterbank.NewOQAMSynthesizer(M, cfg.FilterDelay, cfg.ExcessBandwidth)
	if err != nil {
		return nil, fmt.Errorf("create long preamble synthesizer: %w", err)
	}
	s1 := LongSequence()
	tail := make([]complex128, 2*M)
	for i := 0; i < 2*cfg.FilterDelay+1; i++ {
		copy(tail, tail[M:])
		q.Execute(s1, tail[M:])
	}
	ref := make([]complex128, M)
	copy(ref, tail[M/2+1:M/2+1+M])
	return ref, nil
}
