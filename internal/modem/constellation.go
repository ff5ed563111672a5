package modem

import (
	"fmt"
	"math"
	"strings"
)

// Modulation is the square QAM order of the payload data values, given as
// bits per value.
type Modulation int

const (
	ModQPSK  Modulation = 2
	Mod16QAM Modulation = 4
	Mod64QAM Modulation = 6
)

// BitsPerSymbol returns the bits carried by one data value.
func (m Modulation) BitsPerSymbol() int {
	switch m {
	case ModQPSK, Mod16QAM, Mod64QAM:
		return int(m)
	default:
		return 0
	}
}

// String returns the modulation name.
func (m Modulation) String() string {
	switch m {
	case ModQPSK:
		return "QPSK"
	case Mod16QAM:
		return "16-QAM"
	case Mod64QAM:
		return "64-QAM"
	default:
		return "Unknown"
	}
}

// ParseModulation parses a modulation name such as "qpsk" or "16qam".
func ParseModulation(name string) (Modulation, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "qpsk", "4qam":
		return ModQPSK, nil
	case "16qam":
		return Mod16QAM, nil
	case "64qam":
		return Mod64QAM, nil
	default:
		return 0, fmt.Errorf("unknown modulation %q", name)
	}
}

// Constellation maps payload bits onto the 48 data values of one OQAM
// payload symbol and back. Each value carries half its bits on the
// in-phase axis and half on the quadrature axis, each axis a Gray-coded
// PAM at unit average power.
type Constellation struct {
	mod   Modulation
	axis  int     // bits per axis
	span  int     // amplitude levels per axis
	scale float64 // level spacing is 2*scale
}

// NewConstellation creates the constellation of mod.
func NewConstellation(mod Modulation) (*Constellation, error) {
	bps := mod.BitsPerSymbol()
	if bps == 0 {
		return nil, fmt.Errorf("%w: unsupported modulation %d", ErrInvalidConfig, int(mod))
	}
	span := 1 << (bps / 2)
	// average power of a square QAM with odd integer levels: 2(L²-1)/3
	power := 2 * float64(span*span-1) / 3
	return &Constellation{
		mod:   mod,
		axis:  bps / 2,
		span:  span,
		scale: 1 / math.Sqrt(power),
	}, nil
}

// Modulation returns the modulation.
func (c *Constellation) Modulation() Modulation { return c.mod }

// SymbolBits returns the payload bits carried by one OQAM symbol.
func (c *Constellation) SymbolBits() int { return numData * 2 * c.axis }

// MapSymbol maps exactly SymbolBits bits, one per byte, to 48 data values.
func (c *Constellation) MapSymbol(bits []byte) ([]complex128, error) {
	if len(bits) != c.SymbolBits() {
		return nil, fmt.Errorf("payload symbol needs %d bits, got %d", c.SymbolBits(), len(bits))
	}
	out := make([]complex128, numData)
	w := 2 * c.axis
	for k := range out {
		b := bits[k*w : (k+1)*w]
		out[k] = complex(c.level(b[:c.axis]), c.level(b[c.axis:]))
	}
	return out, nil
}

// MapPayload splits bits into payload symbols. The bit count must be a
// whole number of symbols.
func (c *Constellation) MapPayload(bits []byte) ([][]complex128, error) {
	n := c.SymbolBits()
	if len(bits) == 0 || len(bits)%n != 0 {
		return nil, fmt.Errorf("payload of %d bits is not a whole number of %d bit symbols", len(bits), n)
	}
	payload := make([][]complex128, len(bits)/n)
	for q := range payload {
		sym, err := c.MapSymbol(bits[q*n : (q+1)*n])
		if err != nil {
			return nil, err
		}
		payload[q] = sym
	}
	return payload, nil
}

// DemapSymbol makes hard decisions on the 48 data values of a received
// payload symbol.
func (c *Constellation) DemapSymbol(data []complex128) ([]byte, error) {
	if len(data) != numData {
		return nil, fmt.Errorf("payload symbol has %d data values, want %d", len(data), numData)
	}
	bits := make([]byte, 0, c.SymbolBits())
	for _, v := range data {
		bits = c.appendAxis(bits, c.index(real(v)))
		bits = c.appendAxis(bits, c.index(imag(v)))
	}
	return bits, nil
}

// Decide returns the constellation point nearest to v.
func (c *Constellation) Decide(v complex128) complex128 {
	return complex(c.amplitude(c.index(real(v))), c.amplitude(c.index(imag(v))))
}

// DecisionEVM returns the error vector magnitude of data against its own
// hard decisions, in dB. It needs no reference and so works on live input.
func (c *Constellation) DecisionEVM(data []complex128) float64 {
	ref := make([]complex128, len(data))
	for i, v := range data {
		ref[i] = c.Decide(v)
	}
	evm, _ := EVM(ref, data)
	return evm
}

// level maps Gray-coded axis bits to an amplitude.
func (c *Constellation) level(bits []byte) float64 {
	g := 0
	for _, b := range bits {
		g = g<<1 | int(b&1)
	}
	// Gray to binary
	i := g
	for s := g >> 1; s != 0; s >>= 1 {
		i ^= s
	}
	return c.amplitude(i)
}

func (c *Constellation) amplitude(i int) float64 {
	return float64(2*i-c.span+1) * c.scale
}

// index slices an axis value to the nearest level.
func (c *Constellation) index(x float64) int {
	i := int(math.Round((x/c.scale + float64(c.span-1)) / 2))
	return max(0, min(c.span-1, i))
}

func (c *Constellation) appendAxis(bits []byte, i int) []byte {
	g := i ^ i>>1
	for s := c.axis - 1; s >= 0; s-- {
		bits = append(bits, byte(g>>s&1))
	}
	return bits
}

// EVM returns the RMS error vector magnitude of got against ref in dB
// relative to unit power. Empty input gives -Inf.
func EVM(ref, got []complex128) (float64, error) {
	if len(ref) != len(got) {
		return 0, fmt.Errorf("evm over %d reference and %d received values", len(ref), len(got))
	}
	if len(ref) == 0 {
		return math.Inf(-1), nil
	}
	var sum float64
	for i := range ref {
		e := got[i] - ref[i]
		sum += real(e)*real(e) + imag(e)*imag(e)
	}
	return 10 * math.Log10(sum/float64(len(ref))), nil
}
