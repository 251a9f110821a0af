//go:build linux
// +build linux

package kgs

import (
	"golang.org/x/sys/unix"
)

// systemMemory returns total system memory in bytes, which stands in for
// the global memory of the compute device.
func systemMemory() uint64 {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return defaultSystemMemory
	}
	return uint64(si.Totalram) * uint64(si.Unit)
}
