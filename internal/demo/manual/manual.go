// Package manualrun is the explicit-pairing variant of the demo
// workload, kept only as the contrast for the scope-owned runner. Every
// release here is a separate call the author has to place on every exit
// path; the tests demonstrate the leak when one path misses it. Do not
// write new code in this style.
package manualrun

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/PranshVaishnav/scopedalloc/internal/demo"
	"github.com/PranshVaishnav/scopedalloc/memory"
)

type runner struct {
	alloc memory.Allocator
}

// New creates the manual acquire/release runner on top of alloc.
func New(alloc memory.Allocator) demo.Runner {
	return &runner{alloc: alloc}
}

const cellSize = int(unsafe.Sizeof(int(0)))

func (r *runner) UseInteger(out io.Writer) error {
	buf := r.alloc.Allocate(cellSize)
	if buf == nil {
		return memory.ErrAllocFailed
	}
	cell := (*int)(unsafe.Pointer(&buf[0]))
	*cell = demo.CellValue

	if _, err := fmt.Fprintln(out, *cell); err != nil {
		// Early return before Free: this path leaks the cell. The
		// scope-owned runner exists so this cannot happen.
		return fmt.Errorf("emit cell value: %w", err)
	}

	r.alloc.Free(buf)
	return nil
}

func (r *runner) UseBuffer(size int) error {
	if size < 0 {
		return fmt.Errorf("manual buffer: %d bytes: %w", size, memory.ErrInvalidSize)
	}
	buf := r.alloc.Allocate(size)
	if buf == nil {
		return memory.ErrAllocFailed
	}
	if len(buf) != size {
		r.alloc.Free(buf)
		return fmt.Errorf("buffer length %d, requested %d", len(buf), size)
	}
	r.alloc.Free(buf)
	return nil
}
