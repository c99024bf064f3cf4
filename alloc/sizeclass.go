package alloc

// Small blocks are served from per-class free lists instead of the
// general list, so the common cell-sized allocations never pay for a
// free-list walk. Classes are powers of two from 64 bytes to 8 KiB.

const (
	minClassSize = 64
	maxClassSize = 8192
	numClasses   = 8
)

// sizeToClass returns the index of the smallest class that can hold
// size bytes, or -1 when size falls outside the class range.
func sizeToClass(size int) int {
	if size <= 0 || size > maxClassSize {
		return -1
	}
	c := 0
	for s := minClassSize; s < size; s <<= 1 {
		c++
	}
	return c
}

// classSize returns the block payload size of class c.
func classSize(c int) int {
	return minClassSize << c
}

// classOfExact maps a block payload size back to its class. Blocks that
// are not exactly class-sized (split remainders, coalesced blocks)
// return -1 and go back to the general free list.
func classOfExact(size int) int {
	if size < minClassSize || size > maxClassSize {
		return -1
	}
	if size&(size-1) != 0 {
		return -1
	}
	return sizeToClass(size)
}
