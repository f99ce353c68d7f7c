// Package timescale converts between track timescale ticks, time.Duration
// and microsecond timestamps.
package timescale

import (
	"math/bits"
	"time"
)

// ToScale converts a decode time from time.Duration to a specified timescale
func ToScale(t time.Duration, scale uint32) uint64 {
	hi, lo := bits.Mul64(uint64(t), uint64(scale))
	ts, rem := bits.Div64(hi, lo, uint64(time.Second))
	if rem >= uint64(time.Second/2) {
		// round up
		ts++
	}
	return ts
}

// ToDuration converts ticks in a specified timescale to time.Duration
func ToDuration(ts uint64, scale uint32) time.Duration {
	hi, lo := bits.Mul64(ts, uint64(time.Second))
	d, rem := bits.Div64(hi, lo, uint64(scale))
	if rem >= uint64(scale)/2 {
		d++
	}
	return time.Duration(d)
}

// ToMicros converts ticks in a specified timescale to microseconds.
func ToMicros(ts int64, scale uint32) int64 {
	return scaleRound(ts, 1000000, int64(scale))
}

// FromMicros converts a microsecond timestamp back to ticks in a
// specified timescale.
func FromMicros(us int64, scale uint32) int64 {
	return scaleRound(us, int64(scale), 1000000)
}

// scaleRound returns v*num/den rounded half away from zero.
func scaleRound(v, num, den int64) int64 {
	neg := v < 0
	if neg {
		v = -v
	}
	hi, lo := bits.Mul64(uint64(v), uint64(num))
	q, rem := bits.Div64(hi, lo, uint64(den))
	if rem >= uint64(den)/2+uint64(den)%2 {
		q++
	}
	if neg {
		return -int64(q)
	}
	return int64(q)
}
