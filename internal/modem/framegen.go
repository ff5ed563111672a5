package modem

import (
	"fmt"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
	"github.com/Sangstbk/liquid-dsp/internal/filterbank"
)

const (
	// DefaultShortSymbols is the number of short preamble symbols per frame.
	DefaultShortSymbols = 10

	longSymbols     = 2
	trainingSymbols = 4
)

// Generator builds OQAM frames the Synchronizer can acquire: a short
// preamble, two long preamble symbols, four training symbols, the payload
// and enough silent symbols to flush the synthesis filters.
type Generator struct {
	cfg          Config
	sc           SubcarrierMap
	ShortSymbols int

	synth    *filterbank.OQAMSynthesizer
	pilotSeq *dsp.MSequence

	s0, s1, training []complex128
}

// NewGenerator creates a frame generator with the same filterbank
// parameters as a receiving Synchronizer.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	synth, err := filterbank.NewOQAMSynthesizer(NumSubcarriers, cfg.FilterDelay, cfg.ExcessBandwidth)
	if err != nil {
		return nil, fmt.Errorf("create frame synthesizer: %w", err)
	}
	h, err := filterbank.DesignRootFlippedExponential(NumSubcarriers, cfg.FilterDelay, cfg.ExcessBandwidth)
	if err != nil {
		return nil, fmt.Errorf("design frame prototype: %w", err)
	}
	pilotSeq, err := dsp.NewMSequence(pilotSequenceDegree)
	if err != nil {
		return nil, fmt.Errorf("create pilot sequence: %w", err)
	}

	g := &Generator{
		cfg:          cfg,
		sc:           DefaultSubcarriers(),
		ShortSymbols: DefaultShortSymbols,
		synth:        synth,
		pilotSeq:     pilotSeq,
		s0:           ShortSequence(),
		s1:           LongSequence(),
	}
	g.training = trainingSymbol(g.sc, h)
	return g, nil
}

// trainingSymbol puts the training reference on the odd subcarriers only.
// The receiver observes odd subcarriers on the analysis path that lags
// the transmitting path by half a symbol, which turns the value negative
// and scales it by the prototype's half-symbol overlap; both are undone
// here so that the receiver sees S2 itself.
func trainingSymbol(sc SubcarrierMap, h []float64) []complex128 {
	const M = NumSubcarriers
	overlap := func(lag int) float64 {
		var c float64
		for i := 0; i+lag < len(h); i++ {
			c += h[i] * h[i+lag]
		}
		return c
	}
	kappa := 2 * (overlap(M/2) + overlap(3*M/2)) / M

	s2 := trainingSequence(sc)
	out := make([]complex128, M)
	for k := 1; k < M; k += 2 {
		out[k] = -s2[k] / complex(kappa, 0)
	}
	return out
}

// Frame synthesizes a complete frame. Every payload symbol must hold
// exactly 48 data values.
func (g *Generator) Frame(payload [][]complex128) ([]complex128, error) {
	for i, p := range payload {
		if len(p) != numData {
			return nil, fmt.Errorf("payload symbol %d has %d values, want %d", i, len(p), numData)
		}
	}

	g.synth.Clear()
	g.pilotSeq.Reset()

	flush := 2*g.cfg.FilterDelay + 2
	total := g.ShortSymbols + longSymbols + trainingSymbols + len(payload) + flush
	out := make([]complex128, total*NumSubcarriers)
	n := 0
	emit := func(X []complex128) {
		g.synth.Execute(X, out[n:n+NumSubcarriers])
		n += NumSubcarriers
	}

	for i := 0; i < g.ShortSymbols; i++ {
		emit(g.s0)
	}
	for i := 0; i < longSymbols; i++ {
		emit(g.s1)
	}
	for i := 0; i < trainingSymbols; i++ {
		emit(g.training)
	}

	X := make([]complex128, NumSubcarriers)
	for _, p := range payload {
		g.mapSymbol(X, p)
		emit(X)
	}

	silence := make([]complex128, NumSubcarriers)
	for i := 0; i < flush; i++ {
		emit(silence)
	}
	return out, nil
}

// mapSymbol places data and pilots on their subcarriers, scaled by Zeta.
func (g *Generator) mapSymbol(X, data []complex128) {
	pilot := complex(-Zeta, 0)
	if g.pilotSeq.Advance() == 1 {
		pilot = complex(Zeta, 0)
	}
	zeta := complex(Zeta, 0)
	j := 0
	for i, st := range g.sc {
		switch st {
		case Null:
			X[i] = 0
		case Pilot:
			X[i] = pilot
		case Data:
			X[i] = data[j] * zeta
			j++
		}
	}
}
