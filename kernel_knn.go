package kgs

import (
	"math"
)

// KNNKernel returns the brute-force k-nearest-neighbour kernel bound to its
// buffers. pointset holds the padded pointset in column-major layout, with
// coordinate d of point i at index d*paddedLen+i. distances receives the k
// smallest Chebyshev distances per point in ascending row order, row r of
// point i at index r*paddedLen+i. Row k-1 is the neighbourhood radius used
// by the range searches.
//
// Every work item scans only the candidates of its own trial chunk and
// skips candidates within theilerT of itself, which also excludes the
// point itself.
func (p *Program) KNNKernel(pointset, distances DevicePtr, pointDim, chunkLength, paddedLen, theilerT int) Kernel {
	points := pointset.Float32()
	dist := distances.Float32()
	k := p.k

	return KernelFunc(func(tid ThreadID) {
		gid := tid.Global()
		if gid >= paddedLen {
			return
		}

		var kdist [kernelMaxK]float32
		for i := 0; i < k; i++ {
			kdist[i] = math.MaxFloat32
		}

		chunkBase := gid / chunkLength * chunkLength
		chunkEnd := chunkBase + chunkLength
		if chunkEnd > paddedLen {
			chunkEnd = paddedLen
		}

		for j := chunkBase; j < chunkEnd; j++ {
			sep := j - gid
			if sep < 0 {
				sep = -sep
			}
			if sep <= theilerT {
				continue
			}

			// Chebyshev distance with early exit once the partial
			// maximum can no longer beat the current k-th best.
			r := float32(0)
			for d := 0; d < pointDim; d++ {
				v := points[d*paddedLen+j] - points[d*paddedLen+gid]
				if v < 0 {
					v = -v
				}
				if v > r {
					r = v
					if r >= kdist[k-1] {
						break
					}
				}
			}
			if r >= kdist[k-1] {
				continue
			}

			pos := k - 1
			for pos > 0 && kdist[pos-1] > r {
				kdist[pos] = kdist[pos-1]
				pos--
			}
			kdist[pos] = r
		}

		for i := 0; i < k; i++ {
			dist[i*paddedLen+gid] = kdist[i]
		}
	})
}
