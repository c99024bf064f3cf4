package manualrun

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PranshVaishnav/scopedalloc/internal/demo"
	"github.com/PranshVaishnav/scopedalloc/memory"
)

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("sink unavailable") }

func TestBalancesOnTheHappyPath(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	r := New(checked)

	var out bytes.Buffer
	for i := 0; i < 10; i++ {
		require.NoError(t, demo.Act(r, &out))
	}

	require.Equal(t, checked.Acquires(), checked.Releases())
	checked.AssertReleased(t)
}

// The reason this variant is an anti-pattern: the early return on the
// emit error path runs before the release call, and the cell leaks.
// The scope-owned runner passes the equivalent test.
func TestEarlyReturnLeaks(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	r := New(checked)

	require.Error(t, r.UseInteger(failWriter{}))

	require.Equal(t, uint64(1), checked.Acquires())
	require.Zero(t, checked.Releases())
	require.Equal(t, 1, checked.Outstanding(), "the cell acquired before the early return leaked")
}

func TestBufferBoundaries(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	r := New(checked)

	require.NoError(t, r.UseBuffer(demo.BufferSize))
	require.NoError(t, r.UseBuffer(0))
	require.ErrorIs(t, r.UseBuffer(-1), memory.ErrInvalidSize)
	checked.AssertReleased(t)
}
