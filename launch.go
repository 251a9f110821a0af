package kgs

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Dim3 represents 3D dimensions for grid and work-group configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a work item's position within the execution grid.
type ThreadID struct {
	BlockIdx  Dim3 // Work-group index within the grid
	ThreadIdx Dim3 // Work-item index within the group
	BlockDim  Dim3 // Dimensions of the work group
	GridDim   Dim3 // Dimensions of the grid
}

// Global returns the global work-item index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// Kernel represents a compute kernel executed in parallel across the grid.
// Execute is called concurrently from multiple worker goroutines and must
// be safe for that.
type Kernel interface {
	Execute(tid ThreadID)
}

// KernelFunc is a function launched as a kernel.
type KernelFunc func(tid ThreadID)

// Execute implements Kernel
func (fn KernelFunc) Execute(tid ThreadID) {
	fn(tid)
}

// Launch enqueues a kernel on the context's command queue. The kernel runs
// asynchronously; completion and failure are observed through Synchronize.
// Work groups are distributed over CPU workers while work items within a
// group run sequentially, which maximises cache reuse for the per-group
// candidate windows the kernels scan.
func (c *Context) Launch(kernel Kernel, grid, block Dim3) error {
	blockSize := block.Size()
	if blockSize <= 0 {
		return NewExecutionError("Launch", fmt.Sprintf("invalid work-group size %d", blockSize), nil)
	}
	if blockSize > c.device.MaxWorkGroupSize {
		return NewExecutionError("Launch",
			fmt.Sprintf("work-group size %d exceeds device maximum %d", blockSize, c.device.MaxWorkGroupSize), nil)
	}

	gridSize := grid.Size()
	if gridSize == 0 {
		// Keep queue ordering intact even for empty launches.
		c.queue.Submit(func() error { return nil })
		return nil
	}

	c.queue.Submit(func() error {
		numWorkers := runtime.NumCPU()
		if gridSize < numWorkers {
			numWorkers = gridSize
		}
		blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

		var g errgroup.Group
		for workerID := 0; workerID < numWorkers; workerID++ {
			startBlock := workerID * blocksPerWorker
			endBlock := startBlock + blocksPerWorker
			if endBlock > gridSize {
				endBlock = gridSize
			}

			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = NewExecutionError("Launch", fmt.Sprintf("kernel panic: %v", r), nil)
					}
				}()

				for blockID := startBlock; blockID < endBlock; blockID++ {
					blockIdx := linearTo3D(blockID, grid)
					for threadID := 0; threadID < blockSize; threadID++ {
						kernel.Execute(ThreadID{
							BlockIdx:  blockIdx,
							ThreadIdx: linearTo3D(threadID, block),
							BlockDim:  block,
							GridDim:   grid,
						})
					}
				}
				return nil
			})
		}
		return g.Wait()
	})

	return nil
}

// Synchronize waits for all enqueued commands to complete and reports the
// first failure among them.
func (c *Context) Synchronize() error {
	return c.queue.Finish()
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// workGroupSize picks the work-group width for a launch over trial chunks.
// Short chunks use narrow groups so that several groups cover one chunk
// exactly; long chunks use wide groups up to the hardware preference.
func workGroupSize(dev *Device, chunkLength int) int {
	if chunkLength < dev.MaxWorkGroupSize {
		return 8
	}
	if dev.MaxWorkGroupSize < 256 {
		return dev.MaxWorkGroupSize
	}
	return 256
}

// ndRange rounds n up to a whole number of work groups.
func ndRange(n, workItems int) int {
	if n%workItems == 0 {
		return n
	}
	return (n/workItems + 1) * workItems
}
