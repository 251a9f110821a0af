package kgs

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of a memory transfer. The CPU backend
// has unified memory, so all directions reduce to a copy, but the direction
// is kept in the API for parity with device runtimes.
type MemcpyKind int

const (
	MemcpyHostToDevice MemcpyKind = iota // Host to device transfer
	MemcpyDeviceToHost                   // Device to host transfer
	MemcpyDeviceToDevice                 // Device to device transfer
)

// DevicePtr represents a pointer to device memory. Sub-regions created with
// SubRegion alias the parent allocation, which is how marginal-space views
// and the radius row of the distance matrix are addressed without copies.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously released blocks so that the
// per-sub-run buffer cycle does not thrash the allocator.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

// allocation keeps the backing slice referenced so the memory stays live
// for as long as it is in the pool.
type allocation struct {
	buf  []byte
	ptr  unsafe.Pointer
	size int
	used bool
}

// NewMemoryPool creates a new memory pool for device buffer management.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
	}
}

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, NewMemoryError("Malloc", fmt.Sprintf("invalid allocation size %d", size), nil)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	const alignment = 64 // Cache line size
	alignedSize := (size + alignment - 1) &^ (alignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true

			mp.totalAlloc += int64(alloc.size)
			if mp.totalAlloc > mp.peakAlloc {
				mp.peakAlloc = mp.totalAlloc
			}

			return DevicePtr{ptr: alloc.ptr, size: size}, nil
		}
	}

	buf := make([]byte, alignedSize)
	alloc := &allocation{
		buf:  buf,
		ptr:  unsafe.Pointer(&buf[0]),
		size: alignedSize,
		used: true,
	}
	mp.allocated[uintptr(alloc.ptr)] = alloc

	mp.totalAlloc += int64(alignedSize)
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}

	return DevicePtr{ptr: alloc.ptr, size: size}, nil
}

// Free returns memory to the pool. Only pointers returned by Allocate can
// be freed; sub-regions share their parent's allocation and are released
// by freeing the parent.
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}
	if !alloc.used {
		return NewMemoryError("Free", "double free detected", nil)
	}

	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns current and peak allocation in bytes
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// Context memory methods

// Malloc allocates device memory of the specified size in bytes.
func (c *Context) Malloc(size int) (DevicePtr, error) {
	return c.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero DevicePtr.
func (c *Context) Free(ptr DevicePtr) error {
	return c.memory.Free(ptr)
}

// Memcpy copies memory between host and device. Supported endpoint types
// are DevicePtr, []float32, []int32 and []byte.
func (c *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if size < 0 {
		return NewMemoryError("Memcpy", fmt.Sprintf("invalid copy size %d", size), nil)
	}
	if size == 0 {
		return nil
	}

	dstPtr, dstLen, err := memcpyEndpoint(dst)
	if err != nil {
		return err
	}
	srcPtr, srcLen, err := memcpyEndpoint(src)
	if err != nil {
		return err
	}
	if size > dstLen {
		return NewMemoryError("Memcpy", fmt.Sprintf("copy of %d bytes overflows %d byte destination", size, dstLen), nil)
	}
	if size > srcLen {
		return NewMemoryError("Memcpy", fmt.Sprintf("copy of %d bytes overruns %d byte source", size, srcLen), nil)
	}

	copy(unsafe.Slice((*byte)(dstPtr), size), unsafe.Slice((*byte)(srcPtr), size))
	return nil
}

// memcpyEndpoint resolves a transfer endpoint to a raw pointer and length.
func memcpyEndpoint(v interface{}) (unsafe.Pointer, int, error) {
	switch e := v.(type) {
	case DevicePtr:
		if e.ptr == nil {
			return nil, 0, NewMemoryError("Memcpy", "nil device pointer", nil)
		}
		return e.ptr, e.size, nil
	case []float32:
		if len(e) == 0 {
			return nil, 0, NewMemoryError("Memcpy", "empty host slice", nil)
		}
		return unsafe.Pointer(&e[0]), len(e) * 4, nil
	case []int32:
		if len(e) == 0 {
			return nil, 0, NewMemoryError("Memcpy", "empty host slice", nil)
		}
		return unsafe.Pointer(&e[0]), len(e) * 4, nil
	case []byte:
		if len(e) == 0 {
			return nil, 0, NewMemoryError("Memcpy", "empty host slice", nil)
		}
		return unsafe.Pointer(&e[0]), len(e), nil
	default:
		return nil, 0, NewMemoryError("Memcpy", fmt.Sprintf("unsupported endpoint type: %T", v), nil)
	}
}

// DevicePtr methods

// SubRegion returns a view of the region starting offset bytes into the
// buffer and spanning size bytes. The view shares the parent's memory.
func (d DevicePtr) SubRegion(offset, size int) (DevicePtr, error) {
	if d.ptr == nil {
		return DevicePtr{}, NewMemoryError("SubRegion", "nil device pointer", nil)
	}
	if offset < 0 || size < 0 || offset+size > d.size {
		return DevicePtr{}, NewMemoryError("SubRegion",
			fmt.Sprintf("region [%d, %d) outside buffer of %d bytes", offset, offset+size, d.size), nil)
	}
	return DevicePtr{
		ptr:    unsafe.Pointer(uintptr(d.ptr) + uintptr(offset)),
		size:   size,
		offset: d.offset + offset,
	}, nil
}

// Float32 returns a float32 slice view of the device memory.
// The slice can be used directly for reading and writing data.
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Int32 returns an int32 slice view of the device memory.
func (d DevicePtr) Int32() []int32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*int32)(d.ptr), d.size/4)
}

// Byte returns a byte slice view of the device memory.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}
