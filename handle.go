// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"sync"
	"unsafe"
)

// Flag bits on a Handle (spec.md §6).
const (
	// FlagImmediateFree releases empty blocks eagerly instead of
	// applying the hysteresis policy.
	FlagImmediateFree uint32 = 1 << iota
	// FlagDoNotFree never releases empty blocks.
	FlagDoNotFree
)

// Handle is the per-size-class arena: it owns a doubly-linked list of
// partially-free blocks, a lock, flags, totals, and the geometry for
// this class. The mutex is the single critical section for allocate,
// free, re-link and reclaim (spec.md §5); different handles never
// contend with each other.
//
// The last handle in a State's table is distinguished by oversize
// being true (equivalently g.blockSize == 0, spec.md §4.7): it has no
// block geometry and every operation on it falls straight through to
// the virtual-memory layer. The same AllocH/FreeH entry points serve
// both paths.
type Handle struct {
	mu sync.Mutex

	g        geometry
	oversize bool
	flags    uint32

	head *blockMeta // head of the partial-block list; nil if empty

	blocks    int
	liveCells int

	// registry tracks every block this handle owns, including blocks
	// detached from the partial list because they are full. The
	// partial list alone cannot answer "free everything" at teardown,
	// since full blocks leave it entirely (spec.md §4.3) — mirrors the
	// teacher's a.regs map in cznic-memory's Allocator.Close.
	registry map[*blockMeta]struct{}
}

// newHandle builds a handle for one size class. blockSize==0 selects
// the default (≈8 MiB, spec.md §4.1).
func newHandle(cellSize, blockSize int) *Handle {
	return &Handle{
		g:        computeGeometry(cellSize, blockSize),
		registry: map[*blockMeta]struct{}{},
	}
}

// newOversizeHandle builds the last, distinguished handle in a State's
// table (spec.md §4.7).
func newOversizeHandle() *Handle {
	return &Handle{oversize: true}
}

// SetFlags and ClearFlags mutate the handle's flag word under lock.
func (h *Handle) SetFlags(f uint32) {
	h.mu.Lock()
	h.flags |= f
	h.mu.Unlock()
}

func (h *Handle) ClearFlags(f uint32) {
	h.mu.Lock()
	h.flags &^= f
	h.mu.Unlock()
}

// Lock and Unlock expose the handle's critical section so callers can
// stack several caller-locked (_uh) operations atomically. Cross-handle
// reallocation acquires two handles' locks in an unspecified order;
// callers must not already hold any allocator handle lock when calling
// into the facade (spec.md §5).
func (h *Handle) Lock()   { h.mu.Lock() }
func (h *Handle) Unlock() { h.mu.Unlock() }

// HandleStats is a read-only snapshot, the minimum bookkeeping the
// spec allows beyond what reclamation needs (spec.md Non-goals).
type HandleStats struct {
	Blocks    int
	LiveCells int
	Capacity  int32
	CellSize  int
}

func (h *Handle) Stats() HandleStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HandleStats{Blocks: h.blocks, LiveCells: h.liveCells, Capacity: h.g.capacity, CellSize: h.g.cellSize}
}

// CellSize reports the fixed cell width of the class, or 0 for the
// oversize handle.
func (h *Handle) CellSize() int { return h.g.cellSize }

// IsOversize reports whether this is the table's virtual handle.
func (h *Handle) IsOversize() bool { return h.oversize }

// AllocH is the locking allocate entry point. size is only consulted
// by the oversize handle; normal classes always return a cell of their
// fixed width.
func (h *Handle) AllocH(size int, zero bool) (unsafe.Pointer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.AllocUH(size, zero)
}

// AllocUH is the caller-locked allocate primitive (spec.md §4.3, §4.7).
func (h *Handle) AllocUH(size int, zero bool) (unsafe.Pointer, error) {
	if h.oversize {
		b, err := vmAlloc(size)
		if err != nil {
			return nil, err
		}
		// mmap'd pages already read as zero; zero is requested or not,
		// the content is identical, so no extra fill is needed here.
		_ = zero
		if len(b) == 0 {
			return nil, nil
		}
		return unsafe.Pointer(&b[0]), nil
	}

	if h.head == nil {
		b, _, err := newBlock(h.g)
		if err != nil {
			return nil, err
		}

		h.registry[b] = struct{}{}
		h.insertHead(b)
		h.blocks++
		currentLogger().blockTrace("block-create", uintptr(unsafe.Pointer(b)), h.g.blockSize)
	}

	b := h.head
	cell, ok := b.allocCell(zero)
	if !ok {
		panic("internal error: head block unexpectedly full")
	}

	h.liveCells++
	if b.totalCount() == int(b.capacity) {
		h.unlink(b)
	}

	if debugEnabled {
		assertAligned(cell, h.g.cellSize)
	}

	return cell, nil
}

// FreeH is the locking free entry point. size must equal what was
// requested at allocation time (spec.md §6).
func (h *Handle) FreeH(p unsafe.Pointer, size int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.FreeUH(p, size)
}

// FreeUH is the caller-locked free primitive (spec.md §4.4–§4.5, §4.7).
func (h *Handle) FreeUH(p unsafe.Pointer, size int) error {
	if p == nil {
		return nil
	}

	if h.oversize {
		b := unsafe.Slice((*byte)(p), size)
		return vmFree(b)
	}

	b := blockFromPointer(p, h.g.blockSize)
	if debugEnabled {
		assertAligned(p, h.g.cellSize)
		if b.cellSize != h.g.cellSize {
			panic("internal error: pointer freed into the wrong handle")
		}
	}

	if debugEnabled {
		poison(p, h.g.cellSize)
	}

	wasFull := b.freeCell(p)
	h.liveCells--
	if wasFull {
		h.insertHead(b)
	}

	if b.totalCount() == 0 {
		if h.shouldReclaim(b) {
			h.unlink(b)
			addr := uintptr(unsafe.Pointer(b))
			if err := releaseBlock(b); err != nil {
				return err
			}
			delete(h.registry, b)
			h.blocks--
			currentLogger().blockTrace("block-release", addr, h.g.blockSize)
		} else {
			h.moveToHead(b)
		}
	}

	return nil
}

// shouldReclaim implements the hysteresis policy of spec.md §4.5: an
// empty block is released when IMMEDIATE_FREE is set, or when at least
// two blocks exist, DO_NOT_FREE is clear, and live occupancy does not
// already spill across more than blocks-2 blocks. That slack keeps one
// empty block cached so a tight loop at a capacity boundary does not
// thrash the OS on every allocation.
func (h *Handle) shouldReclaim(b *blockMeta) bool {
	if h.flags&FlagImmediateFree != 0 {
		return true
	}
	if h.flags&FlagDoNotFree != 0 {
		return false
	}
	return h.blocks >= 2 && h.liveCells <= int(b.capacity)*(h.blocks-2)
}

// Close releases every block the handle owns, including full blocks
// detached from the partial list, and resets the handle to an empty,
// reusable state. A no-op on the oversize handle, which owns nothing
// of its own.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.oversize {
		return nil
	}

	var firstErr error
	for b := range h.registry {
		if err := releaseBlock(b); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	h.registry = map[*blockMeta]struct{}{}
	h.head = nil
	h.blocks = 0
	h.liveCells = 0
	return firstErr
}

func (h *Handle) insertHead(b *blockMeta) {
	b.setPrev(nil)
	b.setNext(h.head)
	if h.head != nil {
		h.head.setPrev(b)
	}
	h.head = b
}

func (h *Handle) unlink(b *blockMeta) {
	prev, next := b.prevBlock(), b.nextBlock()
	if prev != nil {
		prev.setNext(next)
	} else {
		h.head = next
	}
	if next != nil {
		next.setPrev(prev)
	}
	b.setPrev(nil)
	b.setNext(nil)
}

func (h *Handle) moveToHead(b *blockMeta) {
	if h.head == b {
		return
	}
	h.unlink(b)
	h.insertHead(b)
}
