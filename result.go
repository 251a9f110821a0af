package kgs

import (
	"gonum.org/v1/gonum/stat"
)

// Result holds the outcome of one estimation call.
type Result struct {
	// Values holds one estimate in nats per trial chunk, or one estimate
	// per realisation when LocalValues is set.
	Values []float64

	// Diag holds per-point intermediate search results when ReturnCounts
	// is set, nil otherwise.
	Diag *Diagnostics
}

// Mean returns the average of Values.
func (r *Result) Mean() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return stat.Mean(r.Values, nil)
}

// Diagnostics carries per-point intermediate results of the neighbour and
// range searches, truncated to the true signal length. The MI estimator
// fills CountVar1 and CountVar2; the CMI estimator fills CountCond,
// CountVar1Cond and CountVar2Cond.
type Diagnostics struct {
	// Radii holds each point's Chebyshev distance to its k-th nearest
	// neighbour in the joint space.
	Radii []float32

	// Marginal neighbour counts within each point's radius.
	CountVar1     []int32 // var1 subspace
	CountVar2     []int32 // var2 subspace
	CountCond     []int32 // conditional subspace
	CountVar1Cond []int32 // var1 plus conditional subspace
	CountVar2Cond []int32 // var2 plus conditional subspace
}
