package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sangstbk/liquid-dsp/internal/modem"
)

func TestObserverCountsTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(reg)

	o.StateChanged(modem.StateEvent{From: modem.SeekShort, To: modem.SeekLong0, Reason: modem.ReasonDetected, CFO: 0.01})
	o.StateChanged(modem.StateEvent{From: modem.SeekLong0, To: modem.SeekLong1, Reason: modem.ReasonDetected, CFO: 0.01})
	o.StateChanged(modem.StateEvent{From: modem.SeekLong1, To: modem.Receive, Reason: modem.ReasonDetected, CFO: 0.01})
	o.StateChanged(modem.StateEvent{From: modem.Receive, To: modem.SeekShort, Reason: modem.ReasonConsumerResync})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.frames))
	assert.Equal(t, 0.0, testutil.ToFloat64(o.state))
	assert.Equal(t, 0.01, testutil.ToFloat64(o.cfo))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.transitions.WithLabelValues("receive", "seek_short", "consumer_resync")))
	assert.Equal(t, 4, testutil.CollectAndCount(o.transitions))
}

func TestObserverGainsAndSymbols(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(reg)

	o.GainEstimated(modem.GainEvent{Gains: []complex128{0, 1, 10, 0.1}, Undefined: []int{2}})
	o.SymbolReceived(modem.SymbolEvent{})
	o.SymbolReceived(modem.SymbolEvent{})

	assert.Equal(t, 1.0, testutil.ToFloat64(o.undefined))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.symbols))

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] = h.GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(3), counts["oqamsync_equalizer_gain_db"], "null gains are skipped")
	assert.Equal(t, uint64(8), counts["oqamsync_pilot_phase_radians"])
}

func TestObserverDrivenBySynchronizer(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(reg)
	s, err := modem.NewSynchronizer(modem.DefaultConfig(), nil, modem.WithObserver(o))
	require.NoError(t, err)

	require.NoError(t, s.Execute(make([]complex128, 256)))
	assert.Equal(t, 0, testutil.CollectAndCount(o.transitions))
	assert.Zero(t, testutil.ToFloat64(o.frames))
}
