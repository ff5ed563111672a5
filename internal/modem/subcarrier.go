package modem

import "fmt"

// SubcarrierType classifies an OQAM subcarrier.
type SubcarrierType uint8

const (
	Null SubcarrierType = iota
	Pilot
	Data
)

// String returns the type name.
func (t SubcarrierType) String() string {
	switch t {
	case Null:
		return "null"
	case Pilot:
		return "pilot"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// SubcarrierMap assigns a type to each of the 64 subcarriers. It has
// exactly 48 data, 4 pilot and 12 null entries.
type SubcarrierMap [NumSubcarriers]SubcarrierType

// NewSubcarrierMap validates a classification table.
func NewSubcarrierMap(types [NumSubcarriers]SubcarrierType) (SubcarrierMap, error) {
	m := SubcarrierMap(types)
	if err := m.validate(); err != nil {
		return SubcarrierMap{}, err
	}
	return m, nil
}

// DefaultSubcarriers returns the standard table: subcarrier 0 and the
// band edge 27-37 are null, 7, 21, 43 and 57 carry pilots.
func DefaultSubcarriers() SubcarrierMap {
	var m SubcarrierMap
	for i := range m {
		switch {
		case i == 0 || (i >= 27 && i <= 37):
			m[i] = Null
		case i == 7 || i == 21 || i == 43 || i == 57:
			m[i] = Pilot
		default:
			m[i] = Data
		}
	}
	return m
}

// Type returns the type of subcarrier i.
func (m SubcarrierMap) Type(i int) SubcarrierType {
	return m[i]
}

// Count returns the number of subcarriers of type t.
func (m SubcarrierMap) Count(t SubcarrierType) int {
	n := 0
	for _, st := range m {
		if st == t {
			n++
		}
	}
	return n
}

// Indices lists the subcarriers of type t in ascending order.
func (m SubcarrierMap) Indices(t SubcarrierType) []int {
	var out []int
	for i, st := range m {
		if st == t {
			out = append(out, i)
		}
	}
	return out
}

func (m SubcarrierMap) validate() error {
	for i, st := range m {
		if st > Data {
			return fmt.Errorf("%w: subcarrier %d has unknown type %d", ErrInvalidConfig, i, st)
		}
	}
	d, p, n := m.Count(Data), m.Count(Pilot), m.Count(Null)
	if d != numData || p != numPilot || n != numNull {
		return fmt.Errorf("%w: subcarrier map has %d data, %d pilot, %d null (want %d/%d/%d)",
			ErrInvalidConfig, d, p, n, numData, numPilot, numNull)
	}
	return nil
}
