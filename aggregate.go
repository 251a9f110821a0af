package kgs

import (
	"gonum.org/v1/gonum/mathext"
)

// calculateMI converts marginal neighbour counts into MI estimates. Counts
// must be truncated to the true signal length nChunks*chunkLength. The
// result holds one value per chunk, or one per realisation when local is
// set:
//
//	MI = ψ(k) + ψ(N) − ⟨ψ(n_var1+1) + ψ(n_var2+1)⟩
//
// with N the chunk length and the average taken per chunk.
func calculateMI(k, nChunks, chunkLength int, local bool, countVar1, countVar2 []int32) []float64 {
	base := mathext.Digamma(float64(k)) + mathext.Digamma(float64(chunkLength))

	if local {
		out := make([]float64, nChunks*chunkLength)
		for i := range out {
			out[i] = base -
				mathext.Digamma(float64(countVar1[i])+1) -
				mathext.Digamma(float64(countVar2[i])+1)
		}
		return out
	}

	out := make([]float64, nChunks)
	for c := 0; c < nChunks; c++ {
		sum := 0.0
		for i := c * chunkLength; i < (c+1)*chunkLength; i++ {
			sum += mathext.Digamma(float64(countVar1[i]) + 1)
			sum += mathext.Digamma(float64(countVar2[i]) + 1)
		}
		out[c] = base - sum/float64(chunkLength)
	}
	return out
}

// calculateCMI converts neighbour counts into CMI estimates, with the same
// count and result conventions as calculateMI:
//
//	CMI = ψ(k) + ⟨ψ(n_cond+1) − ψ(n_var1cond+1) − ψ(n_var2cond+1)⟩
func calculateCMI(k, nChunks, chunkLength int, local bool, countCond, countVar1Cond, countVar2Cond []int32) []float64 {
	base := mathext.Digamma(float64(k))

	if local {
		out := make([]float64, nChunks*chunkLength)
		for i := range out {
			out[i] = base +
				mathext.Digamma(float64(countCond[i])+1) -
				mathext.Digamma(float64(countVar1Cond[i])+1) -
				mathext.Digamma(float64(countVar2Cond[i])+1)
		}
		return out
	}

	out := make([]float64, nChunks)
	for c := 0; c < nChunks; c++ {
		sum := 0.0
		for i := c * chunkLength; i < (c+1)*chunkLength; i++ {
			sum += mathext.Digamma(float64(countCond[i]) + 1)
			sum -= mathext.Digamma(float64(countVar1Cond[i]) + 1)
			sum -= mathext.Digamma(float64(countVar2Cond[i]) + 1)
		}
		out[c] = base + sum/float64(chunkLength)
	}
	return out
}
