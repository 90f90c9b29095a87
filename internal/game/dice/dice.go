// Package dice provides the randomness abstraction used by the duel engine:
// uniform inclusive ranges, probability ratios, and shuffles over a Source.
package dice

import (
	"fmt"
	"math"
)

// Source is the randomness provider for every draw the engine makes.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Ratio is an exact probability expressed as Num chances in Den.
type Ratio struct {
	Num int `yaml:"num" json:"num"`
	Den int `yaml:"den" json:"den"`
}

// Percent returns the ratio n/100.
func Percent(n int) Ratio { return Ratio{Num: n, Den: 100} }

// Validate checks that the ratio describes a probability in [0, 1].
//
// Postcondition: Returns nil iff Den > 0 and 0 <= Num <= Den.
func (r Ratio) Validate() error {
	if r.Den <= 0 {
		return fmt.Errorf("ratio denominator must be > 0, got %d", r.Den)
	}
	if r.Num < 0 || r.Num > r.Den {
		return fmt.Errorf("ratio numerator must be in [0, %d], got %d", r.Den, r.Num)
	}
	return nil
}

// String renders the ratio as a percentage, e.g. "2%".
func (r Ratio) String() string {
	if r.Den <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%g%%", float64(r.Num)*100/float64(r.Den))
}

// Between returns a uniformly distributed int in the inclusive range [lo, hi].
// The bounds are swapped when lo > hi. Any pair of ints is accepted, including
// spans wider than math.MaxInt.
//
// Precondition: src must be non-nil.
// Postcondition: lo <= result <= hi (after swapping).
func Between(src Source, lo, hi int) int {
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo
	}
	// Two's complement: the difference is exact in uint64 for any lo <= hi.
	span := uint64(hi) - uint64(lo)
	if span < math.MaxInt {
		return lo + src.Intn(int(span)+1)
	}
	return int(uint64(lo) + wide(src, span))
}

// wideAttempts bounds rejection sampling in wide. A Source that keeps landing
// in the rejected tail gets a reduced value instead of looping forever.
const wideAttempts = 64

// wide returns a value in [0, span] for spans too large for Intn.
//
// Precondition: span >= math.MaxInt.
func wide(src Source, span uint64) uint64 {
	var v uint64
	for range wideAttempts {
		v = uint64(src.Intn(1<<30))<<60 | uint64(src.Intn(1<<30))<<30 | uint64(src.Intn(1<<30))
		if span == math.MaxUint64 || v <= span {
			return v
		}
	}
	// span+1 > 2^63, so v < 2*(span+1) and one subtraction reduces it.
	return v - (span + 1)
}

// Chance reports true with probability r.Num/r.Den.
// A non-positive numerator never succeeds; Num >= Den always succeeds.
//
// Precondition: src must be non-nil.
func Chance(src Source, r Ratio) bool {
	if r.Num <= 0 || r.Den <= 0 {
		return false
	}
	if r.Num >= r.Den {
		return true
	}
	return src.Intn(r.Den) < r.Num
}

// Coin reports true with probability one half.
func Coin(src Source) bool {
	return src.Intn(2) == 1
}

// Shuffle permutes n elements in place with Fisher-Yates, calling swap to
// exchange elements i and j.
//
// Precondition: src and swap must be non-nil; n >= 0.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		swap(i, j)
	}
}
