package dsp

import "fmt"

// Generator polynomials of maximal-length sequences, indexed by degree.
var msequencePoly = map[int]uint32{
	2:  0x7,
	3:  0xB,
	4:  0x13,
	5:  0x25,
	6:  0x43,
	7:  0x83,
	8:  0x11D,
	9:  0x211,
	10: 0x409,
	11: 0x805,
	12: 0x1053,
}

// MSequence is a maximal-length pseudo-noise bit generator (Galois LFSR).
type MSequence struct {
	m     int
	mask  uint32
	state uint32
}

// NewMSequence creates a generator of degree m, 2 <= m <= 12.
func NewMSequence(m int) (*MSequence, error) {
	poly, ok := msequencePoly[m]
	if !ok {
		return nil, fmt.Errorf("msequence degree %d out of range [2, 12]", m)
	}
	s := &MSequence{m: m, mask: poly >> 1}
	s.Reset()
	return s, nil
}

// Period returns 2^m - 1.
func (s *MSequence) Period() int { return 1<<s.m - 1 }

// Advance returns the next output bit.
func (s *MSequence) Advance() uint {
	bit := s.state & 1
	s.state >>= 1
	if bit == 1 {
		s.state ^= s.mask
	}
	return uint(bit)
}

// Reset restores the initial register state.
func (s *MSequence) Reset() {
	s.state = 1
}
