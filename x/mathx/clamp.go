package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OrDefault returns d when v is zero (unset), otherwise v unchanged.
// Negative values pass through so validation can reject them.
func OrDefault[T constraints.Integer | constraints.Float](v, d T) T {
	if v == 0 {
		return d
	}
	return v
}

// MilliToDeci converts milli-units to tenths, saturating at the int16 range.
func MilliToDeci(m int32) int16 {
	return int16(Clamp(m/100, -32768, 32767))
}
