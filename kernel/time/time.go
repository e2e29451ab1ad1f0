// Package time converts between hardware counter ticks and nanoseconds.
// The counter frequency is only known at boot, so the two conversion
// ratios are built once and kept in reduced form.
package time

import (
	"math/bits"
)

const nanosPerSec = 1000000000

// Ratio is a rational scale factor applied with a 128-bit intermediate,
// so counter values near the top of the 64-bit range do not overflow.
type Ratio struct {
	num uint64
	den uint64
}

// NewRatio returns num/den in lowest terms. den must be non-zero.
func NewRatio(num, den uint64) Ratio {
	d := gcd(num, den)
	if d > 1 {
		num /= d
		den /= d
	}
	return Ratio{num: num, den: den}
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// MulTrunc returns v scaled by the ratio, truncated.
func (r Ratio) MulTrunc(v uint64) uint64 {
	hi, lo := bits.Mul64(v, r.num)
	q, _ := bits.Div64(hi, lo, r.den)
	return q
}

// Inverse returns the reciprocal ratio.
func (r Ratio) Inverse() Ratio {
	return Ratio{num: r.den, den: r.num}
}

// Clock converts between counter ticks and nanoseconds for one counter
// frequency.
type Clock struct {
	ticksToNanos Ratio
	nanosToTicks Ratio
}

// NewClock returns a clock for a counter running at freq ticks per
// second.
func NewClock(freq uint64) *Clock {
	r := NewRatio(nanosPerSec, freq)
	return &Clock{ticksToNanos: r, nanosToTicks: r.Inverse()}
}

// TicksToNanos converts a counter value to nanoseconds.
func (c *Clock) TicksToNanos(ticks uint64) uint64 {
	return c.ticksToNanos.MulTrunc(ticks)
}

// NanosToTicks converts a duration in nanoseconds to counter ticks.
func (c *Clock) NanosToTicks(nanos uint64) uint64 {
	return c.nanosToTicks.MulTrunc(nanos)
}
