// Package sim measures frame detection and bit error rates by pushing
// generated frames through a channel model into a synchronizer.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/Sangstbk/liquid-dsp/internal/channel"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

const (
	leadInBase   = 400
	leadInJitter = 100
	flushSamples = 100
)

// Config describes a simulation run.
type Config struct {
	Frames          int
	SymbolsPerFrame int
	Modulation      modem.Modulation
	SNRdB           float64
	SignalDB        float64
	CFO             float64 // radians per sample
	Seed            uint64
}

// DefaultConfig returns a short QPSK run at 20 dB SNR.
func DefaultConfig() Config {
	return Config{
		Frames:          100,
		SymbolsPerFrame: 8,
		Modulation:      modem.ModQPSK,
		SNRdB:           20,
		SignalDB:        channel.DefaultSignalDB,
		Seed:            1,
	}
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	if c.Frames < 1 {
		return fmt.Errorf("frame count %d must be positive", c.Frames)
	}
	if c.SymbolsPerFrame < 1 {
		return fmt.Errorf("symbols per frame %d must be positive", c.SymbolsPerFrame)
	}
	if c.Modulation.BitsPerSymbol() == 0 {
		return fmt.Errorf("unsupported modulation %v", c.Modulation)
	}
	return nil
}

// Result accumulates the outcome of a run.
type Result struct {
	Frames   int
	Missed   int // frames that delivered no payload symbol
	Partial  int // frames that delivered some but not all payload symbols
	Symbols  int // payload symbols delivered
	Bits     int // payload bits compared
	BitErrs  int
	errPower float64
	values   int
}

// FER is the fraction of frames missed.
func (r Result) FER() float64 { return ratio(r.Missed, r.Frames) }

// BER is the bit error rate over delivered symbols.
func (r Result) BER() float64 { return ratio(r.BitErrs, r.Bits) }

// EVM is the error vector magnitude over delivered symbols in dB.
func (r Result) EVM() float64 {
	if r.values == 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(r.errPower/float64(r.values))
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// Run executes the simulation. opts are passed to the synchronizer, so
// observers such as a metrics exporter or debug recorder see every frame.
func Run(ctx context.Context, cfg Config, syncCfg modem.Config, log *zap.Logger, opts ...modem.Option) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	gen, err := modem.NewGenerator(syncCfg)
	if err != nil {
		return Result{}, fmt.Errorf("create generator: %w", err)
	}
	params := channel.FromSNR(cfg.SNRdB, cfg.SignalDB)
	params.CFO = cfg.CFO
	params.Seed = cfg.Seed
	ch, err := channel.New(params)
	if err != nil {
		return Result{}, fmt.Errorf("create channel: %w", err)
	}
	constellation, err := modem.NewConstellation(cfg.Modulation)
	if err != nil {
		return Result{}, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))

	var (
		res  Result
		sent [][]complex128
		got  [][]complex128
	)
	consume := func(data []complex128) modem.Disposition {
		got = append(got, append([]complex128(nil), data...))
		if len(got) == len(sent) {
			return modem.Resync
		}
		return modem.Continue
	}
	s, err := modem.NewSynchronizer(syncCfg, consume, append([]modem.Option{modem.WithLogger(log)}, opts...)...)
	if err != nil {
		return Result{}, fmt.Errorf("create synchronizer: %w", err)
	}
	defer s.Close()

	for f := 0; f < cfg.Frames; f++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.Reset()
		ch.Reset()

		bits := make([]byte, cfg.SymbolsPerFrame*constellation.SymbolBits())
		for i := range bits {
			bits[i] = byte(rng.IntN(2))
		}
		if sent, err = constellation.MapPayload(bits); err != nil {
			return res, fmt.Errorf("map frame %d: %w", f, err)
		}
		got = got[:0]

		frame, err := gen.Frame(sent)
		if err != nil {
			return res, fmt.Errorf("generate frame %d: %w", f, err)
		}
		lead := leadInBase + rng.IntN(leadInJitter)
		for _, block := range [][]complex128{ch.Noise(lead), ch.Apply(nil, frame), ch.Noise(flushSamples)} {
			if err := s.Execute(block); err != nil && !errors.Is(err, modem.ErrAborted) {
				return res, fmt.Errorf("execute frame %d: %w", f, err)
			}
		}

		res.Frames++
		if err := res.tally(constellation, bits, sent, got); err != nil {
			return res, fmt.Errorf("tally frame %d: %w", f, err)
		}

		if (f+1)%10 == 0 || f == cfg.Frames-1 {
			log.Info("simulation progress",
				zap.Int("frames", res.Frames),
				zap.Int("missed", res.Missed),
				zap.Float64("fer", res.FER()),
				zap.Float64("ber", res.BER()),
				zap.Float64("evm_db", res.EVM()))
		}
	}
	return res, nil
}

func (r *Result) tally(c *modem.Constellation, bits []byte, sent, got [][]complex128) error {
	switch {
	case len(got) == 0:
		r.Missed++
		return nil
	case len(got) < len(sent):
		r.Partial++
	}
	r.Symbols += len(got)
	n := c.SymbolBits()
	for q := range got {
		have, err := c.DemapSymbol(got[q])
		if err != nil {
			return err
		}
		want := bits[q*n : (q+1)*n]
		for i := range want {
			if want[i] != have[i] {
				r.BitErrs++
			}
		}
		r.Bits += n
		for i := range got[q] {
			e := got[q][i] - sent[q][i]
			r.errPower += real(e)*real(e) + imag(e)*imag(e)
			r.values++
		}
	}
	return nil
}
