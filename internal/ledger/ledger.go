// Package ledger provides the overflow-safe integer arithmetic the betting
// pool accounting is built on. All operations saturate instead of wrapping
// or panicking: sums clamp to MaxUint64, subtraction clamps to zero.
package ledger

import "math/bits"

// BpsDiv is the basis-point divisor: 10_000 bps = 100%.
const BpsDiv = 10_000

// MaxUint64 is the saturation ceiling for all ledger arithmetic.
const MaxUint64 = ^uint64(0)

// SatAdd returns a+b, clamped to MaxUint64.
func SatAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return MaxUint64
	}
	return sum
}

// SatSub returns a-b, clamped to zero.
func SatSub(a, b uint64) uint64 {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0
	}
	return diff
}

// SatAdd32 returns a+b for 32-bit tallies, clamped to MaxUint32.
func SatAdd32(a, b uint32) uint32 {
	sum := a + b
	if sum < a {
		return ^uint32(0)
	}
	return sum
}

// MulDiv returns a*b/d with a 128-bit intermediate product and truncating
// division. If d is zero or the quotient does not fit in 64 bits the result
// saturates to MaxUint64.
func MulDiv(a, b, d uint64) uint64 {
	if d == 0 {
		return MaxUint64
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return MaxUint64
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}

// Cut returns the basis-point cut of amount: amount * bps / 10_000.
func Cut(amount, bps uint64) uint64 {
	return MulDiv(amount, bps, BpsDiv)
}
