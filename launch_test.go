package kgs

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchCoversGrid(t *testing.T) {
	ctx := newTestContext(t)

	counts := make([]int32, 32)
	kernel := KernelFunc(func(tid ThreadID) {
		atomic.AddInt32(&counts[tid.Global()], 1)
	})

	require.NoError(t, ctx.Launch(kernel, Dim3{X: 4, Y: 1, Z: 1}, Dim3{X: 8, Y: 1, Z: 1}))
	require.NoError(t, ctx.Synchronize())

	for gid, n := range counts {
		assert.Equal(t, int32(1), n, "global id %d", gid)
	}
}

func TestLaunch3DGrid(t *testing.T) {
	ctx := newTestContext(t)

	var mu sync.Mutex
	blocks := make(map[Dim3]int)
	var executions int64

	kernel := KernelFunc(func(tid ThreadID) {
		atomic.AddInt64(&executions, 1)
		mu.Lock()
		blocks[tid.BlockIdx]++
		mu.Unlock()
	})

	grid := Dim3{X: 2, Y: 3, Z: 2}
	block := Dim3{X: 4, Y: 1, Z: 1}
	require.NoError(t, ctx.Launch(kernel, grid, block))
	require.NoError(t, ctx.Synchronize())

	assert.Equal(t, int64(grid.Size()*block.Size()), executions)
	assert.Len(t, blocks, grid.Size())
	for idx, n := range blocks {
		assert.Equal(t, block.Size(), n, "block %v", idx)
	}
}

func TestLaunchBlockValidation(t *testing.T) {
	ctx := newTestContext(t)
	noop := KernelFunc(func(ThreadID) {})

	err := ctx.Launch(noop, Dim3{X: 1, Y: 1, Z: 1}, Dim3{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "work-group size")

	err = ctx.Launch(noop, Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 2048, Y: 1, Z: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceFailure)

	// Rejected launches enqueue nothing.
	assert.NoError(t, ctx.Synchronize())
}

func TestLaunchEmptyGrid(t *testing.T) {
	ctx := newTestContext(t)

	ran := false
	require.NoError(t, ctx.Launch(KernelFunc(func(ThreadID) { ran = true }),
		Dim3{}, Dim3{X: 8, Y: 1, Z: 1}))
	require.NoError(t, ctx.Synchronize())
	assert.False(t, ran)
}

func TestLaunchPanicRecovery(t *testing.T) {
	ctx := newTestContext(t)

	kernel := KernelFunc(func(tid ThreadID) {
		if tid.Global() == 5 {
			panic("boom")
		}
	})

	require.NoError(t, ctx.Launch(kernel, Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 8, Y: 1, Z: 1}))

	err := ctx.Synchronize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeviceFailure))
	assert.Contains(t, err.Error(), "kernel panic: boom")

	// The failure is reported once; the queue stays usable.
	require.NoError(t, ctx.Launch(KernelFunc(func(ThreadID) {}),
		Dim3{X: 1, Y: 1, Z: 1}, Dim3{X: 1, Y: 1, Z: 1}))
	assert.NoError(t, ctx.Synchronize())
}

func TestThreadIDGlobal(t *testing.T) {
	tid := ThreadID{
		BlockIdx:  Dim3{X: 2},
		ThreadIdx: Dim3{X: 3},
		BlockDim:  Dim3{X: 8, Y: 1, Z: 1},
	}
	assert.Equal(t, 19, tid.Global())
}

func TestWorkGroupSize(t *testing.T) {
	dev := &Device{MaxWorkGroupSize: maxWorkGroupSize}

	// Chunks shorter than the device limit use narrow groups.
	assert.Equal(t, 8, workGroupSize(dev, 100))
	assert.Equal(t, 8, workGroupSize(dev, 1023))

	// Longer chunks use wide groups capped at 256.
	assert.Equal(t, 256, workGroupSize(dev, 1024))
	assert.Equal(t, 256, workGroupSize(dev, 50000))

	small := &Device{MaxWorkGroupSize: 128}
	assert.Equal(t, 8, workGroupSize(small, 64))
	assert.Equal(t, 128, workGroupSize(small, 128))
}

func TestNDRange(t *testing.T) {
	assert.Equal(t, 104, ndRange(100, 8))
	assert.Equal(t, 1024, ndRange(1024, 256))
	assert.Equal(t, 1280, ndRange(1025, 256))
	assert.Equal(t, 8, ndRange(1, 8))
}

func TestDim3Size(t *testing.T) {
	assert.Equal(t, 24, Dim3{X: 2, Y: 3, Z: 4}.Size())
	assert.Equal(t, 0, Dim3{}.Size())
}
