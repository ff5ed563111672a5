package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sangstbk/liquid-dsp/internal/diag"
	"github.com/Sangstbk/liquid-dsp/internal/metrics"
	"github.com/Sangstbk/liquid-dsp/internal/modem"
	"github.com/Sangstbk/liquid-dsp/internal/server"
)

// observers wires the optional observers of a run: Prometheus metrics
// always, the WebSocket monitor and debug recorder when enabled.
type observers struct {
	registry *prometheus.Registry
	metrics  *metrics.Observer
	hub      *server.WSHub
	recorder *diag.Recorder
}

func (a *app) newObservers() *observers {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	o := &observers{registry: reg, metrics: metrics.New(reg)}
	if a.cfg.Server.Enabled {
		o.hub = server.NewWSHub(a.log.Named("monitor"))
	}
	if a.cfg.Debug.Enabled {
		o.recorder = diag.NewRecorder(a.cfg.Debug.BufferLen)
	}
	return o
}

// options returns the synchronizer options registering every observer.
func (o *observers) options() []modem.Option {
	opts := []modem.Option{modem.WithObserver(o.metrics)}
	if o.hub != nil {
		opts = append(opts, modem.WithObserver(o.hub))
	}
	if o.recorder != nil {
		opts = append(opts, modem.WithObserver(o.recorder))
	}
	return opts
}

// serve runs the monitor server in g when enabled.
func (a *app) serve(ctx context.Context, g *errgroup.Group, o *observers, devices server.DeviceLister) {
	if o.hub == nil {
		return
	}
	h := server.NewHandlers(o.hub, a.cfg.ToModem(), devices, a.log.Named("http"))
	srv := server.NewServer(a.cfg.Server.Addr, h, o.registry, a.log.Named("http"))
	g.Go(func() error { return srv.Run(ctx) })
}

// writeDebug exports the recorder when enabled.
func (a *app) writeDebug(o *observers) error {
	if o.recorder == nil {
		return nil
	}
	if err := o.recorder.WriteFile(a.cfg.Debug.File); err != nil {
		return err
	}
	a.log.Info("debug trace written", zap.String("path", a.cfg.Debug.File))
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// addMonitorFlags adds the monitor and debug flags shared by the
// receiving commands.
func addMonitorFlags(fs *pflag.FlagSet) {
	fs.Bool("serve", false, "serve the HTTP/WebSocket monitor and /metrics")
	fs.String("addr", ":8080", "monitor listen address")
	fs.Bool("debug", false, "record traces and write an Octave script on exit")
	fs.String("debug-file", "oqamsync_debug.m", "Octave script path")
	bindKey(fs, "serve", "server.enabled")
	bindKey(fs, "addr", "server.addr")
	bindKey(fs, "debug", "debug.enabled")
	bindKey(fs, "debug-file", "debug.file")
}
