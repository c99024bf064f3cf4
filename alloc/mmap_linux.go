package alloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapChunk asks the kernel for an anonymous, private, read-write
// mapping. The heap has no way to recover from a failed mapping, so a
// syscall error is fatal here; exhaustion at higher layers is reported
// through nil returns instead.
func mapChunk(length int) []byte {
	mem, err := unix.Mmap(-1, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		panic(fmt.Errorf("alloc: mmap %d bytes: %w", length, err))
	}
	return mem
}

func unmapChunk(mem []byte) {
	if err := unix.Munmap(mem); err != nil {
		panic(fmt.Errorf("alloc: munmap: %w", err))
	}
}
