package modem

import (
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qpsk(t *testing.T) *Constellation {
	t.Helper()
	c, err := NewConstellation(ModQPSK)
	require.NoError(t, err)
	return c
}

func randomPayload(t *testing.T, c *Constellation, numSymbols int, seed int64) ([][]complex128, []byte) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	bits := make([]byte, numSymbols*c.SymbolBits())
	for i := range bits {
		bits[i] = byte(rng.Intn(2))
	}
	payload, err := c.MapPayload(bits)
	require.NoError(t, err)
	return payload, bits
}

// demapFrame demaps every received symbol and returns the bits and the EVM
// against the sent payload.
func demapFrame(t *testing.T, c *Constellation, sent, got [][]complex128) ([]byte, float64) {
	t.Helper()
	require.Len(t, got, len(sent))
	var bits []byte
	var ref, flat []complex128
	for q := range got {
		b, err := c.DemapSymbol(got[q])
		require.NoError(t, err)
		bits = append(bits, b...)
		ref = append(ref, sent[q]...)
		flat = append(flat, got[q]...)
	}
	evm, err := EVM(ref, flat)
	require.NoError(t, err)
	return bits, evm
}

func receiveFrame(t *testing.T, cfg Config, rx []complex128, numSymbols int) [][]complex128 {
	t.Helper()
	rec := &recorder{after: numSymbols, disp: Resync}
	s, err := NewSynchronizer(cfg, rec.consume)
	require.NoError(t, err)
	require.NoError(t, s.Execute(rx))
	require.Len(t, rec.got, numSymbols)
	return rec.got
}

func TestGeneratorFrameLength(t *testing.T) {
	cfg := DefaultConfig()
	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	c := qpsk(t)
	payload, _ := randomPayload(t, c, 3, 1)
	frame, err := g.Frame(payload)
	require.NoError(t, err)

	symbols := DefaultShortSymbols + longSymbols + trainingSymbols + 3 + 2*cfg.FilterDelay + 2
	assert.Len(t, frame, symbols*NumSubcarriers)

	_, err = g.Frame([][]complex128{make([]complex128, numData-1)})
	assert.Error(t, err)
}

func TestGeneratorIsRepeatable(t *testing.T) {
	g, err := NewGenerator(DefaultConfig())
	require.NoError(t, err)

	payload, _ := randomPayload(t, qpsk(t), 2, 2)
	a, err := g.Frame(payload)
	require.NoError(t, err)
	b, err := g.Frame(payload)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFrameRoundTrip(t *testing.T) {
	const numSymbols = 8
	cfg := DefaultConfig()
	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	c := qpsk(t)
	payload, bits := randomPayload(t, c, numSymbols, 3)
	frame, err := g.Frame(payload)
	require.NoError(t, err)

	rx := append(make([]complex128, 150), frame...)
	got := receiveFrame(t, cfg, rx, numSymbols)

	gotBits, evm := demapFrame(t, c, payload, got)
	assert.Less(t, evm, -18.0)
	assert.Equal(t, bits, gotBits)
}

func TestFrameRoundTripWithNoise(t *testing.T) {
	const numSymbols = 6
	cfg := DefaultConfig()
	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	c := qpsk(t)
	payload, bits := randomPayload(t, c, numSymbols, 4)
	frame, err := g.Frame(payload)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(4))
	rx := append(make([]complex128, 150), frame...)
	for i := range rx {
		rx[i] += complex(rng.NormFloat64(), rng.NormFloat64()) * 0.05
	}
	got := receiveFrame(t, cfg, rx, numSymbols)

	gotBits, _ := demapFrame(t, c, payload, got)
	assert.Equal(t, bits, gotBits)
}

func TestFrameRoundTripWithCarrierOffset(t *testing.T) {
	const (
		numSymbols = 6
		nu         = 0.002
	)
	cfg := DefaultConfig()
	cfg.CompensateCFO = true
	g, err := NewGenerator(cfg)
	require.NoError(t, err)

	c := qpsk(t)
	payload, bits := randomPayload(t, c, numSymbols, 5)
	frame, err := g.Frame(payload)
	require.NoError(t, err)

	rx := append(make([]complex128, 150), frame...)
	for n := range rx {
		rx[n] *= cmplx.Rect(1, nu*float64(n))
	}
	got := receiveFrame(t, cfg, rx, numSymbols)

	gotBits, evm := demapFrame(t, c, payload, got)
	assert.Less(t, evm, -18.0)
	assert.Equal(t, bits, gotBits)
}
