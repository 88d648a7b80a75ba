// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import "unsafe"

// cellAlign is the minimum alignment of a block's payload area,
// matching the teacher's mallocAllign constant. computeGeometry raises
// it to the cell width for power-of-two cells wider than cellAlign;
// cells narrower than cellAlign are aligned to their own width only.
const cellAlign = 16

// defaultBlockSize is the size a handle reserves for its blocks when
// the caller does not request a specific size (spec.md §4.1, "≈ 8 MiB").
const defaultBlockSize = 8 << 20

// c1SubCap is the number of one-byte cells managed by a single C1
// sub-header. Kept below the variant's hard ceiling (254) to leave
// slack in the header's own bookkeeping.
const c1SubCap = 250

// maxBlockSizeFor caps the block size requested for each cell-header
// variant, mirroring original_source's per-class block_size_max[]
// table ({0, 65536, 131072, 1073741824}). Without this cap the 1-byte
// class's default 8 MiB block would carry on the order of 33,000
// sub-headers; capped at 64 KiB it carries a few hundred, matching
// spec.md §9's "amortises... over thousands of cells", not millions.
func maxBlockSizeFor(v variant) int {
	switch v {
	case variantC1:
		return 64 << 10
	case variantC2:
		return 128 << 10
	default:
		return 1 << 30
	}
}

// blockMeta is the primary, block-wide header living at the base of
// every block. For C2/C4 classes it is immediately followed by a
// single cell-header of the matching width; for C1 it is followed by
// an array of header1 sub-headers, each managing a run of c1SubCap
// cells, so that block management amortises over thousands of tiny
// cells (spec.md §4.2).
//
// A block's base address is always a multiple of blockSize: this is
// what lets Free recover the owning block from any interior pointer by
// masking off the low bits (spec.md §3, "Block-from-pointer recovery").
type blockMeta struct {
	prev, next unsafe.Pointer // *blockMeta; partial-list siblings

	realPtrOff uintptr // aligned base minus the real reservation base
	blockSize  int
	payloadOff int
	cellSize   int
	capacity   int32 // total cells in the block, summed across sub-headers
	numSub     int32
	subCap     int32 // cells per sub-header
	v          variant

	live int32 // live cell count, maintained incrementally so it's O(1)

	// nextFreeSub is a lower-bound candidate sub-header index for the
	// next allocation: allocCell starts its search here instead of at
	// 0, so filling a block with many sub-headers costs O(numSub) total
	// rather than O(numSub) per call (original_source's alloc.c avoids
	// the same quadratic blowup with an explicit free/next chain; this
	// is the equivalent amortised-O(1) shape for the sub-header array).
	nextFreeSub int32
}

var metaSize = roundup(int(unsafe.Sizeof(blockMeta{})), 8)

// geometry is the result of the block-layout computation in spec.md
// §4.2, computed once per handle at creation time.
type geometry struct {
	v          variant
	cellSize   int
	blockSize  int
	payloadOff int
	capacity   int32
	numSub     int32
	subCap     int32
}

// computeGeometry picks the cell-header variant for cellSize, clamps
// and rounds requestedBlockSize, and derives payloadOff/capacity.
func computeGeometry(cellSize, requestedBlockSize int) geometry {
	if cellSize <= 0 {
		panic("internal error: non-positive cell size")
	}

	v := variantFor(cellSize)
	maxCap := maxCapacityFor(v)

	blockSize := requestedBlockSize
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	if cap := maxBlockSizeFor(v); blockSize > cap {
		blockSize = cap
	}
	if blockSize < pageSize {
		blockSize = pageSize
	}
	blockSize = nextPow2(blockSize)

	hs := headerSizeFor(v)

	if v != variantC1 {
		// Power-of-two cells wider than cellAlign get a payload aligned
		// to their own width, so every cell is aligned to its class.
		align := cellAlign
		if cellSize > align && cellSize&(cellSize-1) == 0 {
			align = cellSize
		}
		payloadOff := roundup(metaSize+hs, align)
		capRaw := (blockSize - payloadOff) / cellSize
		if capRaw > maxCap {
			capRaw = maxCap
		}
		if capRaw < 1 {
			capRaw = 1
		}
		// Shrink to what the cells need, or grow when even one cell
		// does not fit the requested size.
		blockSize = nextPow2(payloadOff + capRaw*cellSize)
		return geometry{
			v: v, cellSize: cellSize, blockSize: blockSize,
			payloadOff: payloadOff, capacity: int32(capRaw),
			numSub: 1, subCap: int32(capRaw),
		}
	}

	// C1: iterate to a stable sub-header count, since payloadOff
	// depends on numSub and numSub depends on the payload available.
	numSub := 1
	var payloadOff, capRaw int
	for i := 0; i < 4; i++ {
		payloadOff = roundup(metaSize+numSub*hs, cellAlign)
		capRaw = (blockSize - payloadOff) / cellSize
		if capRaw < 1 {
			capRaw = 1
		}
		want := (capRaw + c1SubCap - 1) / c1SubCap
		if want < 1 {
			want = 1
		}
		if want == numSub {
			break
		}
		numSub = want
	}
	subCap := capRaw / numSub
	if subCap > c1SubCap {
		subCap = c1SubCap
	}
	if subCap < 1 {
		subCap = 1
	}
	total := subCap * numSub
	newBlockSize := nextPow2(payloadOff + total*cellSize)
	if newBlockSize < blockSize {
		blockSize = newBlockSize
	}

	return geometry{
		v: v, cellSize: cellSize, blockSize: blockSize,
		payloadOff: payloadOff, capacity: int32(total),
		numSub: int32(numSub), subCap: int32(subCap),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// newBlock reserves a fresh, self-aligned block for geometry g and
// initialises its meta and cell-header(s). The second result is the
// full reservation (kept only so the caller's VM accounting stays correct;
// release always goes through releaseBlock).
func newBlock(g geometry) (*blockMeta, []byte, error) {
	real, aligned, err := vmAllocAligned(g.blockSize, g.blockSize)
	if err != nil {
		return nil, nil, err
	}

	base := unsafe.Pointer(&aligned[0])
	m := (*blockMeta)(base)
	*m = blockMeta{
		realPtrOff: uintptr(base) - uintptr(unsafe.Pointer(&real[0])),
		blockSize:  g.blockSize,
		payloadOff: g.payloadOff,
		cellSize:   g.cellSize,
		capacity:   g.capacity,
		numSub:     g.numSub,
		subCap:     g.subCap,
		v:          g.v,
	}

	hs := headerSizeFor(g.v)
	for i := 0; i < int(g.numSub); i++ {
		h := unsafe.Add(base, metaSize+i*hs)
		headerSet(g.v, h, 0, 0, sentinelFor(g.v))
	}

	return m, real, nil
}

// releaseBlock returns a block's reservation to the OS, using the
// stored realPtrOff to recover the original reservation base (the
// block's own base may be shifted from it to satisfy alignment).
func releaseBlock(m *blockMeta) error {
	base := unsafe.Pointer(m)
	realBase := unsafe.Pointer(uintptr(base) - m.realPtrOff)
	realLen := m.blockSize*2 - 1
	real := unsafe.Slice((*byte)(realBase), realLen)
	return vmFreeAligned(real)
}

// blockFromPointer recovers the owning block's meta from any interior
// pointer, given the class's block size.
func blockFromPointer(p unsafe.Pointer, blockSize int) *blockMeta {
	addr := uintptr(p) &^ uintptr(blockSize-1)
	return (*blockMeta)(unsafe.Pointer(addr))
}

func (m *blockMeta) payloadBase() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(m), m.payloadOff)
}

// subHeader returns the i-th cell-header and the base address of the
// cell run it owns.
func (m *blockMeta) subHeader(i int) (hdr unsafe.Pointer, runBase unsafe.Pointer) {
	hs := headerSizeFor(m.v)
	hdr = unsafe.Add(unsafe.Pointer(m), metaSize+i*hs)
	runBase = unsafe.Add(m.payloadBase(), i*int(m.subCap)*m.cellSize)
	return hdr, runBase
}

// totalCount reports the block's live-cell count in O(1): live is
// maintained incrementally by allocCell/freeCell rather than re-summed
// across sub-headers on every call.
func (m *blockMeta) totalCount() int {
	return int(m.live)
}

// allocCell finds room in the block (a non-full sub-header) and
// returns the new cell's address. ok is false if the block has no
// room left in any sub-header (the caller should treat this as full).
// The search starts at nextFreeSub rather than 0: every sub-header
// found full advances nextFreeSub past it for good (until a later free
// pulls it back), so the total work of filling a block is O(numSub),
// not O(numSub) per allocation.
func (m *blockMeta) allocCell(zero bool) (unsafe.Pointer, bool) {
	for int(m.nextFreeSub) < int(m.numSub) {
		i := int(m.nextFreeSub)
		hdr, runBase := m.subHeader(i)
		used, count, free := headerGet(m.v, hdr)
		sentinel := sentinelFor(m.v)

		var cell unsafe.Pointer
		switch {
		case free != sentinel:
			cell = cellPayload(runBase, int(free), m.cellSize)
			free = readNextFree(m.v, cell)
		case int(used) < int(m.subCap):
			cell = cellPayload(runBase, int(used), m.cellSize)
			used++
		default:
			m.nextFreeSub++
			continue
		}

		count++
		headerSet(m.v, hdr, used, count, free)
		m.live++
		if zero {
			zeroBytes(cell, m.cellSize)
		}
		return cell, true
	}
	return nil, false
}

// freeCell pushes the cell at p back onto its sub-header's free list.
// wasFull reports whether the block as a whole was at capacity before
// this free — that, not any single sub-header's occupancy, is what
// decides whether the block needs to rejoin the partial list (a block
// only leaves the list when every sub-header is full at once).
func (m *blockMeta) freeCell(p unsafe.Pointer) (wasFull bool) {
	wasFull = int(m.live) == int(m.capacity)

	globalIdx := (int(uintptr(p)-uintptr(m.payloadBase()))) / m.cellSize
	sub := globalIdx / int(m.subCap)
	local := globalIdx % int(m.subCap)

	hdr, runBase := m.subHeader(sub)
	used, count, free := headerGet(m.v, hdr)

	cell := cellPayload(runBase, local, m.cellSize)
	writeNextFree(m.v, cell, free)
	headerSet(m.v, hdr, used, count-1, uint32(local))
	m.live--

	if int32(sub) < m.nextFreeSub {
		m.nextFreeSub = int32(sub)
	}

	return wasFull
}

func zeroBytes(p unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

// --- doubly-linked partial-list helpers ---

func (m *blockMeta) prevBlock() *blockMeta { return (*blockMeta)(m.prev) }
func (m *blockMeta) nextBlock() *blockMeta { return (*blockMeta)(m.next) }
func (m *blockMeta) setPrev(b *blockMeta)  { m.prev = unsafe.Pointer(b) }
func (m *blockMeta) setNext(b *blockMeta)  { m.next = unsafe.Pointer(b) }
