// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import "unsafe"

// UnsafeAlloc returns a cell of at least size bytes aligned to its
// class, or nil on size==0 or on failure (spec.md §6). zero requests a
// zero-filled region. Named Unsafe* per the teacher's own
// UnsafeMalloc/UnsafeCalloc/UnsafeFree/UnsafeRealloc convention in
// cznic-memory/memory.go, where the byte-slice names (Malloc, Calloc,
// Free, Realloc below) are the primary, safer surface.
func (s *State) UnsafeAlloc(size int, zero bool) (unsafe.Pointer, error) {
	h, idx := s.HandleOf(size)
	if h == nil {
		return nil, nil
	}

	p, err := h.AllocH(size, zero)
	if err != nil {
		return nil, err
	}

	st := h.Stats()
	currentLogger().allocTrace(idx, st.CellSize, st.Blocks, st.LiveCells)
	return p, nil
}

// UnsafeFree releases p, which must have been allocated with exactly
// size (spec.md §6). A nil p is a no-op regardless of size.
func (s *State) UnsafeFree(p unsafe.Pointer, size int) error {
	if p == nil {
		return nil
	}

	h, idx := s.HandleOf(size)
	if h == nil {
		return nil
	}

	if err := h.FreeH(p, size); err != nil {
		return err
	}

	st := h.Stats()
	currentLogger().freeTrace(idx, st.CellSize, st.Blocks, st.LiveCells)
	return nil
}

// UnsafeRealloc implements spec.md §4.6's reallocation policy.
func (s *State) UnsafeRealloc(p unsafe.Pointer, oldSize, newSize int, zero bool) (unsafe.Pointer, error) {
	if newSize == 0 {
		return nil, s.UnsafeFree(p, oldSize)
	}
	if p == nil {
		return s.UnsafeAlloc(newSize, zero)
	}

	oldH, _ := s.HandleOf(oldSize)
	newH, _ := s.HandleOf(newSize)

	if oldH == newH {
		if oldH.IsOversize() {
			return reallocOversize(p, oldSize, newSize)
		}

		// The cell's class already fits newSize: return p unchanged.
		// This preserves the source's documented behaviour for a
		// same-class growth request (spec.md §9 Open Questions) rather
		// than asserting newSize <= cellSize.
		if zero && newSize > oldSize {
			zeroBytes(unsafe.Add(p, oldSize), newSize-oldSize)
		}
		return p, nil
	}

	newP, err := s.UnsafeAlloc(newSize, zero)
	if err != nil {
		return nil, err
	}

	n := oldSize
	if newSize < n {
		n = newSize
	}
	if n > 0 {
		copyBytes(newP, p, n)
	}

	if err := s.UnsafeFree(p, oldSize); err != nil {
		return nil, err
	}

	return newP, nil
}

// reallocOversize implements the oversize/virtual handle's realloc
// path: fresh reservation, copy, release the old one (spec.md §4.6,
// §4.7).
func reallocOversize(p unsafe.Pointer, oldSize, newSize int) (unsafe.Pointer, error) {
	newB, err := vmAlloc(newSize)
	if err != nil {
		return nil, err
	}

	n := oldSize
	if newSize < n {
		n = newSize
	}
	if n > 0 {
		copyBytes(unsafePtrOf(newB), p, n)
	}

	old := unsafe.Slice((*byte)(p), oldSize)
	if err := vmFree(old); err != nil {
		return nil, err
	}

	if len(newB) == 0 {
		return nil, nil
	}
	return unsafe.Pointer(&newB[0]), nil
}

func unsafePtrOf(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func copyBytes(dst, src unsafe.Pointer, n int) {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}

// --- package-level convenience over the process-global State ---

// UnsafeAlloc, UnsafeFree and UnsafeRealloc mirror State's methods of
// the same name against DefaultState.
func UnsafeAlloc(size int, zero bool) (unsafe.Pointer, error) {
	s, err := DefaultState()
	if err != nil {
		return nil, err
	}
	return s.UnsafeAlloc(size, zero)
}

func UnsafeFree(p unsafe.Pointer, size int) error {
	s, err := DefaultState()
	if err != nil {
		return err
	}
	return s.UnsafeFree(p, size)
}

func UnsafeRealloc(p unsafe.Pointer, oldSize, newSize int, zero bool) (unsafe.Pointer, error) {
	s, err := DefaultState()
	if err != nil {
		return nil, err
	}
	return s.UnsafeRealloc(p, oldSize, newSize, zero)
}

// --- byte-slice convenience, mirroring the teacher's primary
// Malloc/Calloc/Free/Realloc surface in cznic-memory's Allocator ---

// Malloc allocates size bytes and returns them as a byte slice backed
// by the allocator. The memory is not initialised. Malloc returns
// (nil, nil) for size 0.
func Malloc(size int) ([]byte, error) { return mallocBytes(size, false) }

// Calloc is like Malloc except the memory is zero-filled.
func Calloc(size int) ([]byte, error) { return mallocBytes(size, true) }

func mallocBytes(size int, zero bool) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}

	p, err := UnsafeAlloc(size, zero)
	if err != nil || p == nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(p), size), nil
}

// Free releases a slice returned by Malloc, Calloc or Realloc.
func Free(b []byte) error {
	b = b[:cap(b)]
	if len(b) == 0 {
		return nil
	}
	return UnsafeFree(unsafe.Pointer(&b[0]), len(b))
}

// Realloc resizes b to size bytes, following spec.md §4.6.
func Realloc(b []byte, size int) ([]byte, error) {
	full := b[:cap(b)]
	var p unsafe.Pointer
	if len(full) > 0 {
		p = unsafe.Pointer(&full[0])
	}

	np, err := UnsafeRealloc(p, len(full), size, false)
	if err != nil || np == nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(np), size), nil
}
