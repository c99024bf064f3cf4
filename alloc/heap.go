package alloc

import (
	"os"
	"sync"
	"unsafe"
)

// Block layout:
//
//	[header 1 word][payload ...][footer 1 word]
//
// Header and footer both hold the payload size with the low bit marking
// the block as in use (sizes are 8-byte aligned, so the low three bits
// are free for flags). While a block is on a free list, the first two
// payload words hold the prev/next links.

const (
	wordSize  = unsafe.Sizeof(uintptr(0))
	alignment = 8
	flagUsed  = uintptr(0x1)
	// flagClass marks a free block resident on a per-class list. Such
	// blocks are tagged free but must never be merged by coalesce: the
	// class list still points at them, and a merge would leave it
	// handing out storage inside a general free block.
	flagClass = uintptr(0x2)
	flagMask  = uintptr(0x7)

	// A free block must fit the two link words in its payload.
	minPayload = 2 * wordSize
	// Splitting below this leftover payload just fragments the chunk.
	minSplitPayload = 4 * wordSize
)

func align(size int) int {
	return (size + alignment - 1) &^ (alignment - 1)
}

func writeTag(p unsafe.Pointer, size uintptr, used bool) {
	bits := size
	if used {
		bits |= flagUsed
	}
	*(*uintptr)(p) = bits
}

func tagSize(p unsafe.Pointer) uintptr { return *(*uintptr)(p) &^ flagMask }
func tagUsed(p unsafe.Pointer) bool    { return *(*uintptr)(p)&flagUsed != 0 }

func shift(p unsafe.Pointer, delta int) unsafe.Pointer { return unsafe.Add(p, delta) }

func payload(b unsafe.Pointer) unsafe.Pointer { return shift(b, int(wordSize)) }
func footer(b unsafe.Pointer) unsafe.Pointer  { return shift(b, int(wordSize+tagSize(b))) }

func headerOf(data unsafe.Pointer) unsafe.Pointer { return shift(data, -int(wordSize)) }

func markBlock(b unsafe.Pointer, used bool) {
	size := tagSize(b)
	writeTag(b, size, used)
	writeTag(footer(b), size, used)
}

// Free-list links, stored in the payload of free blocks.

func prevFree(b unsafe.Pointer) unsafe.Pointer { return *(*unsafe.Pointer)(payload(b)) }
func nextFree(b unsafe.Pointer) unsafe.Pointer {
	return *(*unsafe.Pointer)(shift(payload(b), int(wordSize)))
}
func setPrevFree(b, prev unsafe.Pointer) { *(*unsafe.Pointer)(payload(b)) = prev }
func setNextFree(b, next unsafe.Pointer) {
	*(*unsafe.Pointer)(shift(payload(b), int(wordSize))) = next
}

// chunk is one mmap-backed region carved into blocks.
type chunk struct {
	mem []byte
}

type heap struct {
	mu       sync.Mutex
	pageSize int
	free     unsafe.Pointer // head of the general free list
	classes  [numClasses]unsafe.Pointer
	chunks   []chunk

	acquires uint64
	releases uint64
	live     int
}

func newHeap() *heap {
	return &heap{pageSize: os.Getpagesize()}
}

// chunkOf returns the index of the chunk containing p, or -1. Adjacency
// is only meaningful within one chunk; separate mappings that happen to
// be contiguous must never coalesce.
func (h *heap) chunkOf(p unsafe.Pointer) int {
	addr := uintptr(p)
	for i := range h.chunks {
		start := uintptr(unsafe.Pointer(&h.chunks[i].mem[0]))
		if addr >= start && addr < start+uintptr(len(h.chunks[i].mem)) {
			return i
		}
	}
	return -1
}

func (h *heap) nextAdj(b unsafe.Pointer) unsafe.Pointer {
	ci := h.chunkOf(b)
	n := shift(b, int(2*wordSize+tagSize(b)))
	if h.chunkOf(n) != ci {
		return nil
	}
	return n
}

func (h *heap) prevAdj(b unsafe.Pointer) unsafe.Pointer {
	ci := h.chunkOf(b)

	// The previous block's footer sits right before this header.
	f := shift(b, -int(wordSize))
	if h.chunkOf(f) != ci {
		return nil
	}
	size := tagSize(f)
	if size == 0 {
		return nil
	}
	p := shift(f, -int(size+wordSize))
	if h.chunkOf(p) != ci {
		return nil
	}
	return p
}

// General free list.

func (h *heap) push(b unsafe.Pointer) {
	setPrevFree(b, nil)
	setNextFree(b, h.free)
	if h.free != nil {
		setPrevFree(h.free, b)
	}
	h.free = b
}

func (h *heap) unlink(b unsafe.Pointer) {
	prev, next := prevFree(b), nextFree(b)
	if prev != nil {
		setNextFree(prev, next)
	} else {
		h.free = next
	}
	if next != nil {
		setPrevFree(next, prev)
	}
}

func setClassResident(b unsafe.Pointer, on bool) {
	if on {
		*(*uintptr)(b) |= flagClass
		*(*uintptr)(footer(b)) |= flagClass
	} else {
		*(*uintptr)(b) &^= flagClass
		*(*uintptr)(footer(b)) &^= flagClass
	}
}

func tagClassResident(p unsafe.Pointer) bool { return *(*uintptr)(p)&flagClass != 0 }

// Per-class free lists. Blocks on these lists keep their exact class
// payload size and are never split or coalesced; the class flag shields
// them from neighbors being coalesced while they sit tagged free.

func (h *heap) pushClass(c int, b unsafe.Pointer) {
	setClassResident(b, true)
	setPrevFree(b, nil)
	setNextFree(b, h.classes[c])
	if h.classes[c] != nil {
		setPrevFree(h.classes[c], b)
	}
	h.classes[c] = b
}

func (h *heap) popClass(c int) unsafe.Pointer {
	b := h.classes[c]
	if b == nil {
		return nil
	}
	next := nextFree(b)
	if next != nil {
		setPrevFree(next, nil)
	}
	h.classes[c] = next
	setClassResident(b, false)
	return b
}

// grow maps a new chunk large enough for a block with payloadNeed
// payload bytes, makes the whole chunk one free block, and returns it.
func (h *heap) grow(payloadNeed int) unsafe.Pointer {
	size := payloadNeed + 2*int(wordSize)
	if rem := size % h.pageSize; rem != 0 {
		size += h.pageSize - rem
	}

	mem := mapChunk(size)
	h.chunks = append(h.chunks, chunk{mem: mem})

	b := unsafe.Pointer(&mem[0])
	writeTag(b, uintptr(size)-2*wordSize, false)
	writeTag(footer(b), uintptr(size)-2*wordSize, false)
	h.push(b)
	return b
}

// findFit walks the general free list first-fit; when nothing fits, the
// heap grows by a fresh chunk.
func (h *heap) findFit(size uintptr) unsafe.Pointer {
	for b := h.free; b != nil; b = nextFree(b) {
		if tagSize(b) >= size {
			return b
		}
	}
	return h.grow(int(size))
}

// reserve takes b off the free list, marks it used, and splits off the
// remainder when it is big enough to be a useful free block.
func (h *heap) reserve(b unsafe.Pointer, size uintptr) {
	h.unlink(b)
	total := tagSize(b)

	if total >= size+2*wordSize+minSplitPayload {
		writeTag(b, size, true)
		writeTag(footer(b), size, true)

		rest := shift(b, int(2*wordSize+size))
		restSize := total - size - 2*wordSize
		writeTag(rest, restSize, false)
		writeTag(footer(rest), restSize, false)
		h.coalesce(rest)
		return
	}

	writeTag(b, total, true)
	writeTag(footer(b), total, true)
}

// coalesce merges b with free neighbors in the same chunk and pushes
// the result onto the general free list.
func (h *heap) coalesce(b unsafe.Pointer) {
	if n := h.nextAdj(b); n != nil && !tagUsed(n) && !tagClassResident(n) {
		h.unlink(n)
		size := tagSize(b) + tagSize(n) + 2*wordSize
		writeTag(b, size, false)
		writeTag(footer(b), size, false)
	}
	if p := h.prevAdj(b); p != nil && !tagUsed(p) && !tagClassResident(p) {
		h.unlink(p)
		size := tagSize(p) + tagSize(b) + 2*wordSize
		writeTag(p, size, false)
		writeTag(footer(p), size, false)
		b = p
	}
	h.push(b)
}

// allocate hands out a pointer to at least size zeroed bytes, or nil
// when the heap cannot satisfy the request.
func (h *heap) allocate(size int) unsafe.Pointer {
	need := align(size)
	if need < int(minPayload) {
		need = int(minPayload)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var b unsafe.Pointer
	if c := sizeToClass(need); c >= 0 {
		need = classSize(c)
		if b = h.popClass(c); b != nil {
			markBlock(b, true)
		}
	}
	if b == nil {
		b = h.findFit(uintptr(need))
		if b == nil {
			return nil
		}
		h.reserve(b, uintptr(need))
	}

	h.acquires++
	h.live++

	data := payload(b)
	if size > 0 {
		clear(unsafe.Slice((*byte)(data), size))
	}
	return data
}

// release returns the block backing data to a free list. Releasing the
// same pointer twice, or a pointer the heap never produced, is a
// detected no-op. When the last live block is released every chunk is
// unmapped and the heap starts over empty.
func (h *heap) release(data unsafe.Pointer) {
	if data == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b := headerOf(data)
	if h.chunkOf(b) < 0 || !tagUsed(b) {
		return
	}

	h.releases++
	h.live--

	markBlock(b, false)
	if c := classOfExact(int(tagSize(b))); c >= 0 {
		h.pushClass(c, b)
	} else {
		h.coalesce(b)
	}

	if h.live == 0 {
		h.releaseChunks()
	}
}

func (h *heap) releaseChunks() {
	for _, c := range h.chunks {
		unmapChunk(c.mem)
	}
	h.chunks = h.chunks[:0]
	h.free = nil
	for i := range h.classes {
		h.classes[i] = nil
	}
}

func (h *heap) stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, c := range h.chunks {
		total += len(c.mem)
	}
	return Stats{
		Acquires:  h.acquires,
		Releases:  h.releases,
		Live:      h.live,
		HeapBytes: total,
	}
}
