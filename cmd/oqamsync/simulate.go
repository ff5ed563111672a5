package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Sangstbk/liquid-dsp/internal/sim"
)

func newSimulateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Measure frame and bit error rates over a simulated channel",
		Long: `Generates random frames, passes them through a channel with complex
gain, carrier offset and white Gaussian noise, and counts the frames the
synchronizer misses and the payload bits it gets wrong.

Examples:
  oqamsync simulate --frames 1000 --snr 12
  oqamsync simulate --cfo 0.01 --compensate-cfo --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSimulate(cmd.Context(), cmd.OutOrStdout())
		},
	}

	def := sim.DefaultConfig()
	f := cmd.Flags()
	f.Int("frames", def.Frames, "number of frames")
	f.Int("symbols", def.SymbolsPerFrame, "payload symbols per frame")
	f.String("modulation", def.Modulation.String(), "payload modulation (qpsk, 16qam, 64qam)")
	f.Float64("snr", def.SNRdB, "signal to noise ratio, dB")
	f.Float64("signal", def.SignalDB, "received signal level, dB")
	f.Float64("cfo", def.CFO, "carrier frequency offset, radians per sample")
	f.Uint64("seed", def.Seed, "random seed")
	f.Bool("compensate-cfo", false, "de-rotate the input by the carrier offset estimate")
	bindKey(f, "frames", "sim.frames")
	bindKey(f, "symbols", "sim.symbols_per_frame")
	bindKey(f, "modulation", "sim.modulation")
	bindKey(f, "snr", "sim.snr_db")
	bindKey(f, "signal", "sim.signal_db")
	bindKey(f, "cfo", "sim.cfo")
	bindKey(f, "seed", "sim.seed")
	bindKey(f, "compensate-cfo", "sync.compensate_cfo")
	addMonitorFlags(f)
	return cmd
}

func (a *app) runSimulate(parent context.Context, out io.Writer) error {
	simCfg, err := a.cfg.ToSim()
	if err != nil {
		return err
	}
	obs := a.newObservers()

	ctx, stop := signalContext(parent)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	a.serve(ctx, g, obs, nil)

	a.log.Info("simulation starting",
		zap.Int("frames", simCfg.Frames),
		zap.Stringer("modulation", simCfg.Modulation),
		zap.Float64("snr_db", simCfg.SNRdB),
		zap.Float64("cfo", simCfg.CFO))

	res, err := sim.Run(ctx, simCfg, a.cfg.ToModem(), a.log.Named("sim"), obs.options()...)
	if errors.Is(err, context.Canceled) {
		a.log.Info("simulation interrupted", zap.Int("frames", res.Frames))
		err = nil
	}
	if err == nil {
		printResult(out, simCfg, res)
		err = a.writeDebug(obs)
	}
	if err == nil && obs.hub != nil {
		a.log.Info("simulation done, monitor serving until interrupted")
		<-ctx.Done()
	}

	// the monitor stops with the context; wait for it on every path
	stop()
	werr := g.Wait()
	if errors.Is(werr, context.Canceled) {
		werr = nil
	}
	return multierr.Append(err, werr)
}

func printResult(w io.Writer, cfg sim.Config, r sim.Result) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "frames        : %d (%d symbols, %v)\n", r.Frames, cfg.SymbolsPerFrame, cfg.Modulation)
	p.Fprintf(w, "snr           : %.1f dB\n", cfg.SNRdB)
	p.Fprintf(w, "missed        : %d\n", r.Missed)
	p.Fprintf(w, "partial       : %d\n", r.Partial)
	p.Fprintf(w, "bits          : %d\n", r.Bits)
	p.Fprintf(w, "bit errors    : %d\n", r.BitErrs)
	p.Fprintf(w, "FER           : %.4e\n", r.FER())
	p.Fprintf(w, "BER           : %.4e\n", r.BER())
	fmt.Fprintf(w, "EVM           : %.2f dB\n", r.EVM())
}
