// Package scope implements scope-bound ownership of allocator-backed
// resources. A Scope collects everything acquired through it and
// releases it all, most recent first, exactly once, when Close runs.
// Binding Close to the owning function with defer guarantees release on
// every exit path, including early returns, with no manual pairing of
// acquire and release calls.
//
//	s := scope.Enter(alloc)
//	defer s.Close()
//	buf, err := s.Bytes(100)
package scope

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/PranshVaishnav/scopedalloc/memory"
)

// ErrClosed reports an acquisition attempted after Close.
var ErrClosed = errors.New("scope: closed")

// Scope owns resources until Close. It is safe for concurrent use,
// though a scope is normally confined to the function that entered it.
type Scope struct {
	alloc memory.Allocator

	mu       sync.Mutex
	cleanups []func()
	closed   bool
}

// Enter opens a scope over alloc. A nil alloc means the default
// allocator. The caller must arrange for Close to run on every exit
// path, normally with defer.
func Enter(alloc memory.Allocator) *Scope {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &Scope{alloc: alloc}
}

// Bytes acquires an owned buffer of exactly size accessible bytes,
// valid until the scope closes. Size zero yields a valid empty buffer;
// a negative size is rejected with memory.ErrInvalidSize.
func (s *Scope) Bytes(size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("scope: %d bytes: %w", size, memory.ErrInvalidSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	b := s.alloc.Allocate(size)
	if b == nil {
		return nil, fmt.Errorf("scope: %d bytes: %w", size, memory.ErrAllocFailed)
	}
	if len(b) > 0 {
		s.cleanups = append(s.cleanups, func() { s.alloc.Free(b) })
	}
	return b, nil
}

// Defer attaches fn to the scope. It runs when the scope closes, before
// the releases of resources acquired earlier.
func (s *Scope) Defer(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cleanups = append(s.cleanups, fn)
	return nil
}

// Closed reports whether Close has run.
func (s *Scope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases everything the scope owns, most recent first. Each
// resource is released exactly once; closing an already-closed scope is
// a no-op.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cleanups := s.cleanups
	s.cleanups = nil
	s.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Cell acquires an owned cell initialized to v, valid until the scope
// closes. The cell lives in allocator storage, so T must not contain Go
// pointers when the scope is backed by the manual heap.
func Cell[T any](s *Scope, v T) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return new(T), nil
	}

	b, err := s.Bytes(size)
	if err != nil {
		return nil, err
	}
	p := (*T)(unsafe.Pointer(&b[0]))
	*p = v
	return p, nil
}
