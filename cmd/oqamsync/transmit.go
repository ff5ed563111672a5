package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Sangstbk/liquid-dsp/internal/audio"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

func newTransmitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transmit",
		Short: "Play random frames on a stereo I/Q output",
		Long: `Generates frames of random payload and plays them on a two channel
sound card output, left channel in phase and right channel quadrature,
with silence between frames. Useful as a loopback source for listen.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			frames, err := cmd.Flags().GetInt("frames")
			if err != nil {
				return err
			}
			gap, err := cmd.Flags().GetInt("gap")
			if err != nil {
				return err
			}
			if err := audio.Init(); err != nil {
				return fmt.Errorf("initialize audio: %w", err)
			}
			defer func() { err = multierr.Append(err, audio.Terminate()) }()
			return a.runTransmit(cmd.Context(), frames, gap)
		},
	}

	f := cmd.Flags()
	f.String("device", "", "output device name (default device when empty)")
	f.Float64("sample-rate", audio.DefaultSampleRate, "sample rate, Hz")
	f.Int("frames", 10, "number of frames, 0 plays until interrupted")
	f.Int("gap", 4096, "silent samples between frames")
	f.Int("symbols", 8, "payload symbols per frame")
	f.String("modulation", "qpsk", "payload modulation (qpsk, 16qam, 64qam)")
	bindKey(f, "device", "audio.output_device")
	bindKey(f, "sample-rate", "audio.sample_rate")
	bindKey(f, "symbols", "sim.symbols_per_frame")
	bindKey(f, "modulation", "sim.modulation")
	return cmd
}

func (a *app) runTransmit(parent context.Context, frames, gap int) error {
	simCfg, err := a.cfg.ToSim()
	if err != nil {
		return err
	}
	gen, err := modem.NewGenerator(a.cfg.ToModem())
	if err != nil {
		return err
	}
	c, err := modem.NewConstellation(simCfg.Modulation)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(simCfg.Seed, simCfg.Seed+1))

	sink, err := audio.OpenIQSink(a.cfg.OutputStream())
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	silence := make([]complex128, max(gap, 0))
	for n := 0; frames == 0 || n < frames; n++ {
		if ctx.Err() != nil {
			break
		}
		bits := make([]byte, simCfg.SymbolsPerFrame*c.SymbolBits())
		for i := range bits {
			bits[i] = byte(rng.IntN(2))
		}
		payload, err := c.MapPayload(bits)
		if err != nil {
			return err
		}
		frame, err := gen.Frame(payload)
		if err != nil {
			return fmt.Errorf("generate frame %d: %w", n, err)
		}
		if err := sink.Write(frame); err != nil {
			return err
		}
		if err := sink.Write(silence); err != nil {
			return err
		}
		a.log.Debug("frame sent", zap.Int("frame", n), zap.Int("samples", len(frame)))
	}
	a.log.Info("transmit done")
	return nil
}
