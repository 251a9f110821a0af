//go:build !linux
// +build !linux

package kgs

// systemMemory returns a conservative default on platforms without a
// supported memory probe.
func systemMemory() uint64 {
	return defaultSystemMemory
}
