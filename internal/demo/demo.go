// Package demo defines the allocator workload the cmd binaries and the
// lifecycle tests drive: acquire an integer cell, use it, release it,
// and the same for a fixed-size byte buffer.
package demo

import "io"

const (
	// CellValue is the value every integer cell is initialized to.
	CellValue = 42
	// BufferSize is the buffer size Act requests.
	BufferSize = 100
)

// Runner is one lifecycle variant of the workload.
type Runner interface {
	// UseInteger acquires an integer cell holding CellValue, writes the
	// value as a line to out, and releases the cell.
	UseInteger(out io.Writer) error
	// UseBuffer acquires a buffer of exactly size accessible bytes and
	// releases it.
	UseBuffer(size int) error
}

// Act drives one full iteration of the workload against r.
func Act(r Runner, out io.Writer) error {
	if err := r.UseInteger(out); err != nil {
		return err
	}
	return r.UseBuffer(BufferSize)
}
