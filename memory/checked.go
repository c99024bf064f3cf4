package memory

import (
	"sync"
	"unsafe"

	"github.com/eapache/queue"
)

// CheckedAllocator wraps another Allocator and audits the traffic
// flowing through it: every acquire and release is counted, releases of
// buffers it never produced (or already released) are recorded as
// faults instead of being forwarded, and an optional quarantine parks
// released buffers before handing them back to the inner allocator so
// double-release windows stay observable.
//
// Zero-size buffers carry no storage and are not tracked.
type CheckedAllocator struct {
	inner Allocator

	mu          sync.Mutex
	outstanding map[uintptr]int // first-element address -> size
	acquires    uint64
	releases    uint64
	faults      uint64

	quarantine *queue.Queue
	maxParked  int
}

func NewCheckedAllocator(inner Allocator) *CheckedAllocator {
	return &CheckedAllocator{
		inner:       inner,
		outstanding: make(map[uintptr]int),
	}
}

// WithQuarantine parks up to depth released buffers in FIFO order
// before they reach the inner allocator. While a buffer is parked its
// storage cannot be recycled, so a double release or a stale pointer
// shows up as a fault instead of silently aliasing a new allocation.
func (c *CheckedAllocator) WithQuarantine(depth int) *CheckedAllocator {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quarantine = queue.New()
	c.maxParked = depth
	return c
}

func bufKey(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func (c *CheckedAllocator) Allocate(size int) []byte {
	b := c.inner.Allocate(size)
	if len(b) == 0 {
		return b
	}
	c.mu.Lock()
	c.acquires++
	c.outstanding[bufKey(b)] = len(b)
	c.mu.Unlock()
	return b
}

func (c *CheckedAllocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}

	c.mu.Lock()
	key := bufKey(b)
	if _, ok := c.outstanding[key]; !ok {
		c.faults++
		c.mu.Unlock()
		return
	}
	delete(c.outstanding, key)
	c.releases++

	if c.quarantine == nil {
		c.mu.Unlock()
		c.inner.Free(b)
		return
	}

	c.quarantine.Add(b)
	var evicted [][]byte
	for c.quarantine.Length() > c.maxParked {
		evicted = append(evicted, c.quarantine.Remove().([]byte))
	}
	c.mu.Unlock()

	for _, e := range evicted {
		c.inner.Free(e)
	}
}

// Flush forwards every quarantined buffer to the inner allocator.
func (c *CheckedAllocator) Flush() {
	c.mu.Lock()
	var parked [][]byte
	if c.quarantine != nil {
		for c.quarantine.Length() > 0 {
			parked = append(parked, c.quarantine.Remove().([]byte))
		}
	}
	c.mu.Unlock()

	for _, b := range parked {
		c.inner.Free(b)
	}
}

// Acquires counts successful non-empty allocations.
func (c *CheckedAllocator) Acquires() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquires
}

// Releases counts valid releases, including quarantined ones.
func (c *CheckedAllocator) Releases() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releases
}

// Outstanding is the number of acquired buffers not yet released.
func (c *CheckedAllocator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outstanding)
}

// Faults counts rejected releases: double releases and buffers this
// allocator never produced.
func (c *CheckedAllocator) Faults() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.faults
}

// TestingT is the subset of *testing.T that AssertReleased needs.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertReleased fails t when any acquired buffer is still outstanding
// or any release was faulty.
func (c *CheckedAllocator) AssertReleased(t TestingT) {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.outstanding); n != 0 {
		t.Errorf("%d buffer(s) acquired but never released (acquires=%d releases=%d)",
			n, c.acquires, c.releases)
	}
	if c.faults != 0 {
		t.Errorf("%d faulty release(s) recorded", c.faults)
	}
}
