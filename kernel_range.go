package kgs

// RangeKernel returns the brute-force range search kernel bound to its
// buffers. subspace is a column-major view of subDim contiguous marginal
// dimensions of the pointset, radii the per-point neighbourhood radii from
// the k-nearest-neighbour pass, and counts receives per point the number
// of same-chunk candidates whose subspace Chebyshev distance is within
// (inclusive) the point's radius.
//
// The candidate window and Theiler exclusion match KNNKernel exactly, so
// counts and radii always refer to the same candidate set.
func (p *Program) RangeKernel(subspace, radii, counts DevicePtr, subDim, chunkLength, paddedLen, theilerT int) Kernel {
	points := subspace.Float32()
	rad := radii.Float32()
	cnt := counts.Int32()

	return KernelFunc(func(tid ThreadID) {
		gid := tid.Global()
		if gid >= paddedLen {
			return
		}

		radius := rad[gid]
		count := int32(0)

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

			within := true
			r := float32(0)
			for d := 0; d < subDim; d++ {
				v := points[d*paddedLen+j] - points[d*paddedLen+gid]
				if v < 0 {
					v = -v
				}
				if v > r {
					r = v
					if r > radius {
						within = false
						break
					}
				}
			}
			if within {
				count++
			}
		}

		cnt[gid] = count
	})
}
