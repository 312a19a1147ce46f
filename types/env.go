package types

import (
	"encoding/binary"
	"time"

	"presenter-fw/errcode"
)

// ------------------------
// Temperature & sampling
// ------------------------

// Temperature is tenths of °C (e.g. 231 => 23.1°C).
type Temperature int16

// Bytes encodes the characteristic value (int16 little-endian).
func (t Temperature) Bytes() []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(t))
	return b[:]
}

// Sample is one Periodic Sampler measurement as published on the bus.
type Sample struct {
	DeciC Temperature `yaml:"deci_c"`
	TSms  int64       `yaml:"ts_ms"`
}

// DecodeInterval parses a measurement-interval write: signed little-endian
// seconds in 1, 2 or 4 bytes. Sign is preserved so callers can apply their
// own policy to non-positive values.
func DecodeInterval(b []byte) (time.Duration, error) {
	var secs int64
	switch len(b) {
	case 1:
		secs = int64(int8(b[0]))
	case 2:
		secs = int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		secs = int64(int32(binary.LittleEndian.Uint32(b)))
	default:
		return 0, errcode.InvalidPayload
	}
	return time.Duration(secs) * time.Second, nil
}

// EncodeInterval is the stored value of the measurement-interval characteristic.
func EncodeInterval(d time.Duration) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(d/time.Second)))
	return b[:]
}
