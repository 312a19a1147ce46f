package types

import "encoding/binary"

// ------------------------
// Buttons
// ------------------------

// Button identifies one of the two physical inputs.
type Button uint8

const (
	ButtonA Button = iota
	ButtonB
)

func (b Button) String() string {
	if b == ButtonA {
		return "a"
	}
	return "b"
}

// PressCounts is the press-count pair. It is always passed by value.
type PressCounts struct {
	A uint32 `yaml:"a"`
	B uint32 `yaml:"b"`
}

// Inc returns a copy with the counter for btn advanced by one.
func (p PressCounts) Inc(btn Button) PressCounts {
	if btn == ButtonA {
		p.A++
	} else {
		p.B++
	}
	return p
}

// Covers reports whether every counter in p is >= the matching counter in o.
func (p PressCounts) Covers(o PressCounts) bool { return p.A >= o.A && p.B >= o.B }

// Bytes encodes the presses characteristic: two uint32 little-endian counters.
func (p PressCounts) Bytes() []byte {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[0:4], p.A)
	binary.LittleEndian.PutUint32(b[4:8], p.B)
	return b[:]
}

// DecodePressCounts is the inverse of Bytes.
func DecodePressCounts(b []byte) (PressCounts, bool) {
	if len(b) != 8 {
		return PressCounts{}, false
	}
	return PressCounts{
		A: binary.LittleEndian.Uint32(b[0:4]),
		B: binary.LittleEndian.Uint32(b[4:8]),
	}, true
}
