// Package channel models the impairments a frame sees between generator
// and synchronizer: complex gain, carrier offset and additive white
// Gaussian noise.
package channel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Sangstbk/liquid-dsp/internal/dsp"
)

// DefaultSignalDB is the received signal level the SNR is referenced to.
// The synchronizer thresholds are absolute, so frames are kept near unit
// power.
const DefaultSignalDB = 0.0

// Params describes a channel.
type Params struct {
	Gain     complex128 // complex channel gain
	NoiseStd float64    // noise standard deviation, per complex sample
	CFO      float64    // carrier frequency offset, radians per sample
	Phase    float64    // initial carrier phase, radians
	Seed     uint64
}

// FromSNR returns channel parameters for an SNR in dB at a signal level
// in dB: the gain is 10^(signal/20) and the noise deviation
// 10^((signal-snr)/20).
func FromSNR(snrDB, signalDB float64) Params {
	return Params{
		Gain:     complex(math.Pow(10, signalDB/20), 0),
		NoiseStd: NoiseStdFromDB(signalDB - snrDB),
	}
}

// NoiseStdFromDB converts a noise power in dB to a standard deviation.
func NoiseStdFromDB(db float64) float64 {
	return math.Pow(10, db/20)
}

// Channel applies Params to a sample stream. Not safe for concurrent use.
type Channel struct {
	p     Params
	nco   *dsp.NCO
	noise distuv.Normal
}

// New creates a channel. The noise sequence is fully determined by Seed.
func New(p Params) (*Channel, error) {
	if p.NoiseStd < 0 || math.IsNaN(p.NoiseStd) {
		return nil, fmt.Errorf("noise deviation %g must be non-negative", p.NoiseStd)
	}
	nco := dsp.NewNCO()
	nco.SetFrequency(p.CFO)
	c := &Channel{
		p:   p,
		nco: nco,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: p.NoiseStd / math.Sqrt2,
			Src:   rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15),
		},
	}
	c.Reset()
	return c, nil
}

// Params returns the channel parameters.
func (c *Channel) Params() Params { return c.p }

// Reset rewinds the carrier phase to the initial phase.
func (c *Channel) Reset() {
	c.nco.Reset()
	c.nco.SetFrequency(c.p.CFO)
	c.nco.SetPhase(c.p.Phase)
}

// Apply writes the impaired src into dst and returns dst. dst may alias
// src; a nil dst is allocated.
func (c *Channel) Apply(dst, src []complex128) []complex128 {
	if dst == nil {
		dst = make([]complex128, len(src))
	}
	for i, x := range src {
		y := c.nco.MixUp(x*c.p.Gain) + c.sample()
		c.nco.Step()
		dst[i] = y
	}
	return dst
}

// Noise returns n samples of channel noise alone.
func (c *Channel) Noise(n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = c.sample()
	}
	return out
}

func (c *Channel) sample() complex128 {
	if c.p.NoiseStd == 0 {
		return 0
	}
	return complex(c.noise.Rand(), c.noise.Rand())
}
