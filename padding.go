package kgs

import (
	"math/rand"
)

const (
	// padAlignment is the required multiple for the device signal length.
	padAlignment = 1024

	// padSentinel parks padding points far outside the supported data
	// range so they are never neighbours of genuine points.
	padSentinel = 999999.0

	// padJitter spreads padding points apart so they do not form a
	// single degenerate cluster.
	padJitter = 0.1

	// maxAbsCoordinate bounds genuine data so it stays clear of the
	// sentinel region.
	maxAbsCoordinate = 1e5
)

// padLength returns the smallest multiple of padAlignment that holds n
// points.
func padLength(n int) int {
	if n%padAlignment == 0 {
		return n
	}
	return (n/padAlignment + 1) * padAlignment
}

// fillPadding writes jittered sentinel values into the padding tail of one
// pointset column. Genuine points occupy indices [0, n).
func fillPadding(col []float32, n int, rng *rand.Rand) {
	for i := n; i < len(col); i++ {
		col[i] = padSentinel + padJitter*float32(rng.Float64())
	}
}
