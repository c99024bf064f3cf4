package scope

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/PranshVaishnav/scopedalloc/memory"
)

func TestBytesReleasedOnClose(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())

	s := Enter(checked)
	buf, err := s.Bytes(100)
	require.NoError(t, err)
	require.Len(t, buf, 100)
	require.Equal(t, 1, checked.Outstanding())

	s.Close()
	require.Equal(t, uint64(1), checked.Acquires())
	require.Equal(t, uint64(1), checked.Releases())
	checked.AssertReleased(t)
}

func TestCloseIsIdempotent(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())

	s := Enter(checked)
	_, err := s.Bytes(8)
	require.NoError(t, err)

	s.Close()
	s.Close()
	require.Equal(t, uint64(1), checked.Releases(), "each resource released exactly once")
	require.Zero(t, checked.Faults())
	require.True(t, s.Closed())
}

func TestAcquireAfterClose(t *testing.T) {
	s := Enter(nil)
	s.Close()

	_, err := s.Bytes(8)
	require.ErrorIs(t, err, ErrClosed)

	err = s.Defer(func() {})
	require.ErrorIs(t, err, ErrClosed)
}

func TestBytesBoundaries(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	s := Enter(checked)
	defer s.Close()

	buf, err := s.Bytes(0)
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.Len(t, buf, 0)
	require.Zero(t, checked.Acquires(), "empty buffers carry no storage")

	_, err = s.Bytes(-1)
	require.ErrorIs(t, err, memory.ErrInvalidSize)
}

func TestAllocationFailurePropagates(t *testing.T) {
	s := Enter(exhaustedAllocator{})
	defer s.Close()

	_, err := s.Bytes(8)
	require.ErrorIs(t, err, memory.ErrAllocFailed)
}

func TestCell(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())

	s := Enter(checked)
	cell, err := Cell(s, 42)
	require.NoError(t, err)
	require.Equal(t, 42, *cell)

	s.Close()
	checked.AssertReleased(t)
}

func TestCloseRunsLIFO(t *testing.T) {
	s := Enter(nil)

	var order []string
	require.NoError(t, s.Defer(func() { order = append(order, "first") }))
	require.NoError(t, s.Defer(func() { order = append(order, "second") }))
	s.Close()

	require.Equal(t, []string{"second", "first"}, order)
}

func TestReleaseOnEveryExitPath(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())

	earlyReturn := func() error {
		s := Enter(checked)
		defer s.Close()

		if _, err := s.Bytes(100); err != nil {
			return err
		}
		return errors.New("bail out before the function ends")
	}

	require.Error(t, earlyReturn())
	checked.AssertReleased(t)
}

func TestConcurrentAcquires(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	s := Enter(checked)

	g := new(errgroup.Group)
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				if _, err := s.Bytes(32); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 800, checked.Outstanding())

	s.Close()
	checked.AssertReleased(t)
}

// exhaustedAllocator models a heap with nothing left to give.
type exhaustedAllocator struct{}

func (exhaustedAllocator) Allocate(int) []byte { return nil }
func (exhaustedAllocator) Free([]byte)         {}
