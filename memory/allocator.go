// Package memory defines the allocator boundary the scope package and
// the demo workload run on: a minimal Allocate/Free contract over byte
// buffers, a GC-backed implementation, one backed by the manual heap,
// and an auditing wrapper for tests.
package memory

import (
	"errors"

	"github.com/PranshVaishnav/scopedalloc/alloc"
)

var (
	// ErrAllocFailed reports that the backing heap could not satisfy an
	// allocation request.
	ErrAllocFailed = errors.New("memory: allocation failed")
	// ErrInvalidSize reports a negative allocation size.
	ErrInvalidSize = errors.New("memory: invalid size")
)

// Allocator hands out byte buffers and takes them back.
//
// Allocate returns a buffer with len == cap == size, or nil when the
// backing storage is exhausted. Size zero (or negative) yields a valid
// empty buffer that carries no storage. Free must be called exactly
// once per non-empty buffer, with a slice sharing its first element.
type Allocator interface {
	Allocate(size int) []byte
	Free(b []byte)
}

// empty is what every Allocator hands out for size zero.
var empty = make([]byte, 0)

// SystemAllocator allocates from the Go runtime heap. Free is a no-op;
// the garbage collector reclaims the buffer.
type SystemAllocator struct{}

func NewSystemAllocator() *SystemAllocator { return &SystemAllocator{} }

func (*SystemAllocator) Allocate(size int) []byte {
	if size <= 0 {
		return empty
	}
	return make([]byte, size)
}

func (*SystemAllocator) Free([]byte) {}

// HeapAllocator allocates from the manual mmap-backed heap. Its buffers
// are invisible to the garbage collector and leak unless freed.
type HeapAllocator struct{}

func NewHeapAllocator() *HeapAllocator { return &HeapAllocator{} }

func (*HeapAllocator) Allocate(size int) []byte {
	if size <= 0 {
		return empty
	}
	return alloc.NewSlice[byte](size)
}

func (*HeapAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	alloc.ReleaseSlice(b)
}

// DefaultAllocator can be used anywhere an Allocator is required.
var DefaultAllocator Allocator = NewSystemAllocator()
