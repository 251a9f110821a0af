package kgs

import (
	"fmt"
)

// bytesPerChunk estimates the device memory cost of one trial chunk: the
// chunk's slice of the pointset, of the distance matrix and of one count
// buffer per marginal, all in 4-byte elements.
func bytesPerChunk(chunkLength, dimPointset, nMarginals, k int) uint64 {
	return 4 * uint64(chunkLength) * uint64(dimPointset+k+nMarginals)
}

// chunksPerRun returns how many trial chunks fit into the device memory
// budget for a single run. The result is capped at nChunks. If not even
// one chunk fits, the estimation cannot proceed on this device.
func chunksPerRun(nChunks, chunkLength, dimPointset, nMarginals, k int, budget uint64) (int, error) {
	cost := bytesPerChunk(chunkLength, dimPointset, nMarginals, k)
	if cost > budget {
		return 0, NewMemoryError("Estimate",
			fmt.Sprintf("a single chunk requires %d bytes but the device memory budget is %d bytes", cost, budget), nil)
	}
	perRun := int(budget / cost)
	if perRun > nChunks {
		perRun = nChunks
	}
	return perRun, nil
}
