package kgs

import (
	"fmt"
)

// kernelMaxK is the neighbour list capacity compiled into the search
// kernel. Each work item keeps its running k smallest distances in a
// fixed-size stack array, so k cannot exceed this at runtime.
const kernelMaxK = 32

// Program holds the compute kernels specialised for one neighbour count,
// analogous to a kernel program built for a device. Kernels obtained from
// the same Program share the embedded k and target the same device.
type Program struct {
	device *Device
	k      int
}

// BuildProgram specialises the neighbour search kernels for k nearest
// neighbours on the given device.
func BuildProgram(dev *Device, k int) (*Program, error) {
	if dev == nil {
		return nil, NewBuildError("BuildProgram", "nil device")
	}
	if k < 1 {
		return nil, NewBuildError("BuildProgram", fmt.Sprintf("k must be at least 1, got %d", k))
	}
	if k > kernelMaxK {
		return nil, NewBuildError("BuildProgram",
			fmt.Sprintf("k=%d exceeds the kernel neighbour list capacity of %d", k, kernelMaxK))
	}
	return &Program{device: dev, k: k}, nil
}

// K returns the neighbour count the program was built for.
func (p *Program) K() int {
	return p.k
}
