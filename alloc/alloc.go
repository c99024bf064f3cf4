// Package alloc implements a manual, mmap-backed heap: boundary-tagged
// blocks on a first-fit free list with coalescing, plus per-class free
// lists for small blocks. Storage obtained here is invisible to the
// garbage collector; every New must be paired with a Release, and the
// scope package exists so callers do not write that pairing by hand.
package alloc

import (
	"math"
	"unsafe"
)

var global = newHeap()

// Stats is the lifetime accounting of the heap.
type Stats struct {
	// Acquires and Releases count every successful allocation and the
	// releases paired with them. A balanced workload leaves them equal.
	Acquires uint64
	Releases uint64
	// Live is the number of blocks currently allocated.
	Live int
	// HeapBytes is the total size of the mapped chunks. It drops to
	// zero whenever Live does.
	HeapBytes int
}

// New allocates size bytes of zeroed storage and returns it as a *T.
// It returns nil when the heap cannot satisfy the request. T must not
// contain Go pointers; the collector does not scan this storage.
func New[T any](size int) *T {
	p := global.allocate(size)
	if p == nil {
		return nil
	}
	return (*T)(p)
}

// NewSlice allocates a zeroed slice of length elements. It returns nil
// when the byte size overflows or the heap cannot satisfy the request.
func NewSlice[T any](length int) []T {
	if length <= 0 {
		return []T{}
	}
	var zero T
	elem := int(unsafe.Sizeof(zero))
	if elem > 0 && length > math.MaxInt/elem {
		return nil
	}
	p := global.allocate(length * elem)
	if p == nil {
		return nil
	}
	return unsafe.Slice((*T)(p), length)
}

// Release returns storage obtained from New. Releasing nil, releasing
// twice, or releasing a pointer the heap never produced is a detected
// no-op rather than corruption.
func Release[T any](ptr *T) {
	if ptr == nil {
		return
	}
	global.release(unsafe.Pointer(ptr))
}

// ReleaseSlice returns storage obtained from NewSlice.
func ReleaseSlice[T any](s []T) {
	if len(s) == 0 {
		return
	}
	global.release(unsafe.Pointer(&s[0]))
}

// Sizeof reports the in-memory size of x in bytes.
func Sizeof[T any](x T) int {
	return int(unsafe.Sizeof(x))
}

// ReadStats returns a snapshot of the heap's accounting.
func ReadStats() Stats {
	return global.stats()
}
