package kgs

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sys/cpu"
)

// Device represents a compute device. Here this is the host CPU with its
// cores and available memory, presented through the same capability surface
// a GPU device would expose. Each device has a unique ID.
type Device struct {
	ID               int    // Unique device identifier
	Name             string // Human-readable device name
	GlobalMem        uint64 // Total device memory in bytes
	NumCores         int    // Number of CPU cores
	MaxWorkGroupSize int    // Maximum work items per work group
}

// devices are enumerated once per process.
var (
	deviceList []*Device
	deviceOnce sync.Once
)

// maxWorkGroupSize mirrors the per-block thread limit of current GPUs.
const maxWorkGroupSize = 1024

// defaultSystemMemory is assumed when the platform memory probe fails.
const defaultSystemMemory = 16 * 1024 * 1024 * 1024

// Devices returns all available compute devices. The CPU backend always
// exposes exactly one device with ID 0.
func Devices() []*Device {
	deviceOnce.Do(func() {
		deviceList = []*Device{
			{
				ID:               0,
				Name:             deviceName(),
				GlobalMem:        systemMemory(),
				NumCores:         runtime.NumCPU(),
				MaxWorkGroupSize: maxWorkGroupSize,
			},
		}
	})
	return deviceList
}

// deviceByID selects a device from the enumeration, mirroring platform
// APIs that address devices by ordinal.
func deviceByID(op string, id int) (*Device, error) {
	devs := Devices()
	if len(devs) == 0 {
		return nil, NewDeviceError(op, "no compute device available", nil)
	}
	if id < 0 || id >= len(devs) {
		return nil, NewDeviceError(op,
			fmt.Sprintf("device ID %d out of range, %d device(s) available", id, len(devs)), nil)
	}
	return devs[id], nil
}

// deviceName describes the CPU device including detected SIMD extensions.
func deviceName() string {
	name := "CPU (" + runtime.GOARCH + ")"
	if f := simdFeatures(); f != "" {
		name += " " + f
	}
	return name
}

// simdFeatures returns the widest available vector extension, which is what
// the range search and neighbour kernels benefit from most.
func simdFeatures() string {
	switch {
	case cpu.X86.HasAVX512F:
		return "AVX512"
	case cpu.X86.HasAVX2:
		return "AVX2"
	case cpu.X86.HasAVX:
		return "AVX"
	case cpu.X86.HasSSE42:
		return "SSE4"
	case cpu.ARM64.HasASIMD:
		return "NEON"
	default:
		return ""
	}
}
