// Package shuffle provides the injectable randomness used to permute note
// inputs and outputs before they are committed to a transaction.
package shuffle

import "lukechampine.com/frand"

// Gen returns a uniformly distributed integer in [0, n) for n > 0.
// Tests substitute deterministic generators to make layouts reproducible.
type Gen func(n int) int

// Default draws from frand's fast-key-erasure CSPRNG.
func Default(n int) int {
	return frand.Intn(n)
}

// Identity always picks the last candidate, which leaves every element
// where it was.
func Identity(n int) int {
	return n - 1
}

// Shuffle permutes items in place with a Fisher-Yates walk driven by gen.
func Shuffle[T any](items []T, gen Gen) {
	for i := len(items) - 1; i > 0; i-- {
		j := gen(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// MappedShuffle permutes items in place and records where each element
// went: after the call, items[mapping[k]] is the element that was at
// position k. mapping must have the same length as items.
func MappedShuffle[T any](items []T, mapping []int, gen Gen) {
	if len(mapping) != len(items) {
		panic("shuffle: mapping and items differ in length")
	}
	// inverse[p] is the original position of the element now at p.
	inverse := make([]int, len(items))
	for i := range inverse {
		inverse[i] = i
	}
	for i := len(items) - 1; i > 0; i-- {
		j := gen(i + 1)
		items[i], items[j] = items[j], items[i]
		inverse[i], inverse[j] = inverse[j], inverse[i]
	}
	for p, orig := range inverse {
		mapping[orig] = p
	}
}
