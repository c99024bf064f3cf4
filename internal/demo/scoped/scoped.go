// Package scopedrun is the scope-owned variant of the demo workload:
// every resource an operation acquires is released by its scope on
// every exit path. There is no release call to forget.
package scopedrun

import (
	"fmt"
	"io"

	"github.com/PranshVaishnav/scopedalloc/internal/demo"
	"github.com/PranshVaishnav/scopedalloc/memory"
	"github.com/PranshVaishnav/scopedalloc/scope"
)

type runner struct {
	alloc memory.Allocator
}

// New creates the scope-owned runner on top of alloc.
func New(alloc memory.Allocator) demo.Runner {
	return &runner{alloc: alloc}
}

func (r *runner) UseInteger(out io.Writer) error {
	s := scope.Enter(r.alloc)
	defer s.Close()

	cell, err := scope.Cell(s, demo.CellValue)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(out, *cell); err != nil {
		// The early return still releases the cell: the scope owns it.
		return fmt.Errorf("emit cell value: %w", err)
	}
	return nil
}

func (r *runner) UseBuffer(size int) error {
	s := scope.Enter(r.alloc)
	defer s.Close()

	buf, err := s.Bytes(size)
	if err != nil {
		return err
	}
	if len(buf) != size {
		return fmt.Errorf("buffer length %d, requested %d", len(buf), size)
	}
	return nil
}
