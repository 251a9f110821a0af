package kgs

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runKernel executes a kernel with the same launch geometry the estimator
// uses for a given chunk length.
func runKernel(t *testing.T, ctx *Context, kernel Kernel, chunkLength, paddedLen int) {
	t.Helper()
	workItems := workGroupSize(ctx.Device(), chunkLength)
	nd := ndRange(paddedLen, workItems)
	require.NoError(t, ctx.Launch(kernel,
		Dim3{X: nd / workItems, Y: 1, Z: 1}, Dim3{X: workItems, Y: 1, Z: 1}))
	require.NoError(t, ctx.Synchronize())
}

// column writes a 1-D pointset into device memory: values in the leading
// positions, jittered sentinels in the padding tail.
func column(d DevicePtr, values []float32) {
	col := d.Float32()
	copy(col, values)
	fillPadding(col, len(values), rand.New(rand.NewSource(1)))
}

func TestBuildProgram(t *testing.T) {
	dev := Devices()[0]

	p, err := BuildProgram(dev, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, p.K())

	_, err = BuildProgram(dev, kernelMaxK)
	assert.NoError(t, err)

	_, err = BuildProgram(dev, kernelMaxK+1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProgramBuild)

	_, err = BuildProgram(dev, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProgramBuild)

	_, err = BuildProgram(nil, 4)
	assert.Error(t, err)
}

func TestKNNKernelTheilerWindow(t *testing.T) {
	ctx := newTestContext(t)

	// 100 points on an integer line. With k=4 and a Theiler window of 4
	// the nearest admissible neighbours of an interior point i are i±5
	// and i±6, so its radius is exactly 6.
	const (
		n           = 100
		k           = 4
		theilerT    = 4
		chunkLength = n
	)
	paddedLen := padLength(n)

	values := make([]float32, n)
	for i := range values {
		values[i] = float32(i)
	}

	pointset, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(pointset)
	column(pointset, values)

	distances, err := ctx.Malloc(k * paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(distances)

	prog, err := BuildProgram(ctx.Device(), k)
	require.NoError(t, err)

	runKernel(t, ctx, prog.KNNKernel(pointset, distances, 1, chunkLength, paddedLen, theilerT),
		chunkLength, paddedLen)

	dist := distances.Float32()
	radius := func(i int) float32 { return dist[(k-1)*paddedLen+i] }

	for i := 0; i < n; i++ {
		assert.GreaterOrEqual(t, radius(i), float32(theilerT+1), "point %d", i)
		// Rows are sorted ascending per point.
		for r := 1; r < k; r++ {
			assert.LessOrEqual(t, dist[(r-1)*paddedLen+i], dist[r*paddedLen+i],
				"point %d row %d", i, r)
		}
	}

	for i := 6; i <= 93; i++ {
		assert.Equal(t, float32(6), radius(i), "interior point %d", i)
	}

	// Boundary points have fewer close admissible neighbours.
	assert.Equal(t, float32(8), radius(0))
	assert.Equal(t, float32(7), radius(5))
	assert.Equal(t, float32(8), radius(n-1))
}

func TestKNNKernelChunkConfinement(t *testing.T) {
	ctx := newTestContext(t)

	// Point 3 of chunk 0 (value 30) is within distance 1 of point 4 of
	// chunk 1 (value 31). Its nearest neighbour must still come from its
	// own chunk.
	values := []float32{0, 10, 20, 30, 31, 41, 51, 61}
	const (
		n           = 8
		chunkLength = 4
		k           = 1
	)
	paddedLen := padLength(n)

	pointset, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(pointset)
	column(pointset, values)

	distances, err := ctx.Malloc(k * paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(distances)

	prog, err := BuildProgram(ctx.Device(), k)
	require.NoError(t, err)

	runKernel(t, ctx, prog.KNNKernel(pointset, distances, 1, chunkLength, paddedLen, 0),
		chunkLength, paddedLen)

	dist := distances.Float32()
	assert.Equal(t, float32(10), dist[3], "chunk 0 point 3")
	assert.Equal(t, float32(10), dist[4], "chunk 1 point 0")
	assert.Equal(t, float32(10), dist[0])
	assert.Equal(t, float32(10), dist[7])
}

func TestKNNKernelChebyshev(t *testing.T) {
	ctx := newTestContext(t)

	// 2-D points a=(0,0), b=(1,3), c=(2,1). Max-coordinate distances:
	// d(a,b)=3, d(a,c)=2, d(b,c)=2.
	const (
		n        = 3
		pointDim = 2
		k        = 1
	)
	paddedLen := padLength(n)

	pointset, err := ctx.Malloc(pointDim * paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(pointset)

	rng := rand.New(rand.NewSource(1))
	col := pointset.Float32()
	copy(col[0:], []float32{0, 1, 2})
	copy(col[paddedLen:], []float32{0, 3, 1})
	fillPadding(col[:paddedLen], n, rng)
	fillPadding(col[paddedLen:], n, rng)

	distances, err := ctx.Malloc(k * paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(distances)

	prog, err := BuildProgram(ctx.Device(), k)
	require.NoError(t, err)

	runKernel(t, ctx, prog.KNNKernel(pointset, distances, pointDim, n, paddedLen, 0),
		n, paddedLen)

	dist := distances.Float32()
	assert.Equal(t, float32(2), dist[0])
	assert.Equal(t, float32(2), dist[1])
	assert.Equal(t, float32(2), dist[2])
}

func TestRangeKernelCounts(t *testing.T) {
	ctx := newTestContext(t)

	values := []float32{0, 1, 2, 4, 8, 16, 32, 64}
	const n = 8
	paddedLen := padLength(n)

	pointset, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(pointset)
	column(pointset, values)

	radii, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(radii)
	rad := radii.Float32()
	for i := range rad {
		rad[i] = 2
	}

	counts, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(counts)

	prog, err := BuildProgram(ctx.Device(), 1)
	require.NoError(t, err)

	runKernel(t, ctx, prog.RangeKernel(pointset, radii, counts, 1, n, paddedLen, 0),
		n, paddedLen)

	// Counting is inclusive: point 0 counts point 2 at distance exactly 2.
	want := []int32{2, 2, 3, 1, 0, 0, 0, 0}
	assert.Equal(t, want, counts.Int32()[:n])
}

func TestRangeKernelMarginalView(t *testing.T) {
	ctx := newTestContext(t)

	// Two dimensions with very different scales. Counting restricted to
	// the second dimension must ignore the first entirely.
	const (
		n        = 4
		pointDim = 2
	)
	paddedLen := padLength(n)

	pointset, err := ctx.Malloc(pointDim * paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(pointset)

	rng := rand.New(rand.NewSource(1))
	col := pointset.Float32()
	copy(col[0:], []float32{0, 100, 200, 300})
	copy(col[paddedLen:], []float32{0, 1, 2, 10})
	fillPadding(col[:paddedLen], n, rng)
	fillPadding(col[paddedLen:], n, rng)

	marginal, err := pointset.SubRegion(paddedLen*4, paddedLen*4)
	require.NoError(t, err)

	radii, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(radii)
	rad := radii.Float32()
	for i := range rad {
		rad[i] = 2
	}

	counts, err := ctx.Malloc(paddedLen * 4)
	require.NoError(t, err)
	defer ctx.Free(counts)

	prog, err := BuildProgram(ctx.Device(), 1)
	require.NoError(t, err)

	runKernel(t, ctx, prog.RangeKernel(marginal, radii, counts, 1, n, paddedLen, 0),
		n, paddedLen)

	assert.Equal(t, []int32{2, 2, 2, 0}, counts.Int32()[:n])
}
