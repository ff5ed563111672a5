package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sangstbk/liquid-dsp/internal/audio"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

func newListenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Synchronize frames captured from a stereo I/Q input",
		Long: `Captures complex baseband from a two channel sound card input, left
channel in phase and right channel quadrature, and runs the synchronizer
until interrupted. Each frame is resynchronized after --frame-symbols
payload symbols.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := audio.Init(); err != nil {
				return fmt.Errorf("initialize audio: %w", err)
			}
			defer func() { err = multierr.Append(err, audio.Terminate()) }()
			frameSymbols, err := cmd.Flags().GetInt("frame-symbols")
			if err != nil {
				return err
			}
			return a.runListen(cmd.Context(), frameSymbols)
		},
	}

	f := cmd.Flags()
	f.String("device", "", "input device name (default device when empty)")
	f.Float64("sample-rate", audio.DefaultSampleRate, "sample rate, Hz")
	f.Int("frame-symbols", 0, "payload symbols per frame (0 uses sim.symbols_per_frame)")
	f.Bool("compensate-cfo", false, "de-rotate the input by the carrier offset estimate")
	bindKey(f, "device", "audio.input_device")
	bindKey(f, "sample-rate", "audio.sample_rate")
	bindKey(f, "compensate-cfo", "sync.compensate_cfo")
	addMonitorFlags(f)
	return cmd
}

// frameConsumer demaps payload symbols and resynchronizes after a fixed
// number of them.
type frameConsumer struct {
	log           *zap.Logger
	constellation *modem.Constellation
	perFrame      int
	received      int
	frames        int
}

func (c *frameConsumer) consume(data []complex128) modem.Disposition {
	c.received++
	if ce := c.log.Check(zap.DebugLevel, "payload symbol"); ce != nil {
		bits, err := c.constellation.DemapSymbol(data)
		ce.Write(
			zap.Int("frame", c.frames),
			zap.Int("symbol", c.received-1),
			zap.Int("bits", len(bits)),
			zap.Float64("evm_db", c.constellation.DecisionEVM(data)),
			zap.Error(err))
	}
	if c.received < c.perFrame {
		return modem.Continue
	}
	c.log.Info("frame received", zap.Int("frame", c.frames), zap.Int("symbols", c.received))
	c.frames++
	c.received = 0
	return modem.Resync
}

func (a *app) runListen(parent context.Context, frameSymbols int) error {
	simCfg, err := a.cfg.ToSim()
	if err != nil {
		return err
	}
	perFrame := simCfg.SymbolsPerFrame
	if frameSymbols > 0 {
		perFrame = frameSymbols
	}

	constellation, err := modem.NewConstellation(simCfg.Modulation)
	if err != nil {
		return err
	}
	obs := a.newObservers()
	consumer := &frameConsumer{
		log:           a.log.Named("payload"),
		constellation: constellation,
		perFrame:      perFrame,
	}
	opts := append([]modem.Option{modem.WithLogger(a.log.Named("sync"))}, obs.options()...)
	s, err := modem.NewSynchronizer(a.cfg.ToModem(), consumer.consume, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	src, err := audio.OpenIQSource(a.cfg.InputStream())
	if err != nil {
		return err
	}
	defer src.Close()
	if err := src.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	ctx, stop := signalContext(parent)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	a.serve(ctx, g, obs, audio.ListDevices)

	a.log.Info("listening",
		zap.String("device", a.cfg.Audio.InputDevice),
		zap.Float64("sample_rate", a.cfg.Audio.SampleRate),
		zap.Int("frame_symbols", perFrame))

	g.Go(func() error {
		for ctx.Err() == nil {
			samples, err := src.Read()
			if err != nil {
				return err
			}
			if err := s.Execute(samples); err != nil {
				return fmt.Errorf("synchronizer: %w", err)
			}
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.log.Info("listen stopped", zap.Int("frames", consumer.frames))
	return multierr.Append(err, a.writeDebug(obs))
}
