package scopedrun

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PranshVaishnav/scopedalloc/alloc"
	"github.com/PranshVaishnav/scopedalloc/internal/demo"
	"github.com/PranshVaishnav/scopedalloc/memory"
)

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("sink unavailable") }

func TestUseIntegerEmits42(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	r := New(checked)

	var out bytes.Buffer
	require.NoError(t, r.UseInteger(&out))
	require.Equal(t, "42\n", out.String())

	require.Equal(t, uint64(1), checked.Acquires())
	require.Equal(t, uint64(1), checked.Releases())
	checked.AssertReleased(t)
}

func TestUseIntegerIsDeterministic(t *testing.T) {
	r := New(memory.NewSystemAllocator())

	for i := 0; i < 100; i++ {
		var out bytes.Buffer
		require.NoError(t, r.UseInteger(&out))
		require.Equal(t, "42\n", out.String())
	}
}

func TestRepeatedRunsDoNotLeak(t *testing.T) {
	for _, n := range []int{1, 10, 1000} {
		checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
		r := New(checked)

		var out bytes.Buffer
		for i := 0; i < n; i++ {
			require.NoError(t, demo.Act(r, &out))
		}

		require.Equal(t, checked.Acquires(), checked.Releases(), "n = %d", n)
		checked.AssertReleased(t)
	}
}

func TestUseBufferBoundaries(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	r := New(checked)

	require.NoError(t, r.UseBuffer(demo.BufferSize))
	require.NoError(t, r.UseBuffer(0))
	require.ErrorIs(t, r.UseBuffer(-1), memory.ErrInvalidSize)
	checked.AssertReleased(t)
}

func TestReleaseOnEmitFailure(t *testing.T) {
	checked := memory.NewCheckedAllocator(memory.NewSystemAllocator())
	r := New(checked)

	require.Error(t, r.UseInteger(failWriter{}))

	// The early return took the error path, but the scope still
	// released the cell.
	require.Equal(t, uint64(1), checked.Acquires())
	require.Equal(t, uint64(1), checked.Releases())
	checked.AssertReleased(t)
}

func TestOnManualHeap(t *testing.T) {
	before := alloc.ReadStats()
	checked := memory.NewCheckedAllocator(memory.NewHeapAllocator())
	r := New(checked)

	var out bytes.Buffer
	for i := 0; i < 10; i++ {
		require.NoError(t, demo.Act(r, &out))
	}

	checked.AssertReleased(t)
	after := alloc.ReadStats()
	require.Equal(t, after.Acquires-before.Acquires, after.Releases-before.Releases)
	require.Equal(t, before.Live, after.Live)
}
