// Package metrics exports synchronizer events as Prometheus metrics.
package metrics

import (
	"math"
	"math/cmplx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

const namespace = "oqamsync"

// Observer implements modem.Observer and records every event in a set of
// Prometheus collectors.
type Observer struct {
	transitions *prometheus.CounterVec // by from, to and reason
	frames      prometheus.Counter     // entries into receive
	symbols     prometheus.Counter     // payload symbols demapped
	state       prometheus.Gauge       // current state as its numeric value
	cfo         prometheus.Gauge       // last carrier offset estimate
	undefined   prometheus.Gauge       // undefined even gains of the last estimate
	gainDB      prometheus.Histogram   // equalizer gain per active subcarrier
	pilotPhase  prometheus.Histogram   // pilot phase estimates
}

var _ modem.Observer = (*Observer)(nil)

// New creates an Observer and registers its collectors with reg. A nil
// reg uses the default registry.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Observer{
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Synchronizer state transitions",
			},
			[]string{"from", "to", "reason"},
		),
		frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_acquired_total",
			Help:      "Frames whose preamble was fully acquired",
		}),
		symbols: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_symbols_total",
			Help:      "Payload symbols delivered to the consumer",
		}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Current state (0 seek_short, 1 seek_long0, 2 seek_long1, 3 receive)",
		}),
		cfo: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cfo_radians_per_sample",
			Help:      "Carrier frequency offset estimate of the last detection",
		}),
		undefined: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "undefined_gains",
			Help:      "Even subcarriers without an active neighbour in the last gain estimate",
		}),
		gainDB: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "equalizer_gain_db",
			Help:      "Equalizer gain magnitude per active subcarrier",
			Buckets:   prometheus.LinearBuckets(-30, 5, 13),
		}),
		pilotPhase: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pilot_phase_radians",
			Help:      "Pilot phase estimates",
			Buckets:   prometheus.LinearBuckets(-math.Pi, math.Pi/8, 17),
		}),
	}
}

// StateChanged implements modem.Observer.
func (o *Observer) StateChanged(ev modem.StateEvent) {
	o.transitions.WithLabelValues(ev.From.String(), ev.To.String(), ev.Reason.String()).Inc()
	o.state.Set(float64(ev.To))
	if ev.Reason == modem.ReasonDetected {
		o.cfo.Set(ev.CFO)
	}
	if ev.To == modem.Receive {
		o.frames.Inc()
	}
}

// GainEstimated implements modem.Observer.
func (o *Observer) GainEstimated(ev modem.GainEvent) {
	o.undefined.Set(float64(len(ev.Undefined)))
	for _, g := range ev.Gains {
		if g == 0 {
			continue
		}
		o.gainDB.Observe(20 * math.Log10(cmplx.Abs(g)))
	}
}

// SymbolReceived implements modem.Observer.
func (o *Observer) SymbolReceived(ev modem.SymbolEvent) {
	o.symbols.Inc()
	for _, p := range ev.PilotPhases {
		o.pilotPhase.Observe(p)
	}
}

// FramesAcquired returns the counter of frames entering receive.
func (o *Observer) FramesAcquired() prometheus.Counter { return o.frames }
