// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxClassShift = 16
	s, err := NewState(&cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

// TestAllocFreeRoundTrip exercises end-to-end scenario 1 of SPEC_FULL
// §8: 256 distinct 16-byte pointers are pairwise disjoint, freeing in
// a random permutation and re-allocating reuses the retained block.
func TestAllocFreeRoundTrip(t *testing.T) {
	s := newTestState(t)

	const n = 256
	ptrs := make([]unsafe.Pointer, n)
	for i := range ptrs {
		p, err := s.UnsafeAlloc(16, true)
		require.NoError(t, err)
		require.NotNil(t, p)
		ptrs[i] = p
	}

	h, _ := s.HandleOf(16)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a := uintptr(ptrs[i])
			b := uintptr(ptrs[j])
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			require.GreaterOrEqual(t, int64(hi-lo), int64(16), "cells %d and %d overlap", i, j)
		}
		require.Zero(t, uintptr(ptrs[i])%uintptr(h.CellSize()), "cell %d misaligned", i)
	}

	rng, err := mathutil.NewFC32(0, n-1, true)
	require.NoError(t, err)
	rng.Seed(1)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = rng.Next()
	}

	for _, i := range perm {
		require.NoError(t, s.UnsafeFree(ptrs[i], 16))
	}
	require.Equal(t, 0, h.Stats().LiveCells)

	blocksBefore := h.Stats().Blocks
	for i := range ptrs {
		p, err := s.UnsafeAlloc(16, false)
		require.NoError(t, err)
		ptrs[i] = p
	}
	require.Equal(t, blocksBefore, h.Stats().Blocks, "reallocating should reuse the retained block")

	for _, p := range ptrs {
		require.NoError(t, s.UnsafeFree(p, 16))
	}
}

// TestReallocGrowShrink is scenario 2 of SPEC_FULL §8.
func TestReallocGrowShrink(t *testing.T) {
	s := newTestState(t)

	p, err := s.UnsafeAlloc(32, true)
	require.NoError(t, err)
	fill(p, 32, 0xAA)

	q, err := s.UnsafeRealloc(p, 32, 64, true)
	require.NoError(t, err)
	require.True(t, allBytes(q, 0, 32, 0xAA))
	require.True(t, allBytes(q, 32, 32, 0x00))

	r, err := s.UnsafeRealloc(q, 64, 32, false)
	require.NoError(t, err)
	require.True(t, allBytes(r, 0, 32, 0xAA))

	require.NoError(t, s.UnsafeFree(r, 32))
}

// TestNewBlockOnCapacity is scenario 3: the (capacity+1)-th allocation
// in a class must trigger a new block.
func TestNewBlockOnCapacity(t *testing.T) {
	s := newTestState(t)

	h, _ := s.HandleOf(1)
	ptrs := make([]unsafe.Pointer, 0)

	p0, err := s.UnsafeAlloc(1, false)
	require.NoError(t, err)
	ptrs = append(ptrs, p0)

	st := h.Stats()
	require.Equal(t, 1, st.Blocks)
	cap := int(st.Capacity)

	for i := 1; i < cap; i++ {
		p, err := s.UnsafeAlloc(1, false)
		require.NoError(t, err)
		ptrs = append(ptrs, p)
	}
	require.Equal(t, 1, h.Stats().Blocks)

	p, err := s.UnsafeAlloc(1, false)
	require.NoError(t, err)
	ptrs = append(ptrs, p)
	require.Equal(t, 2, h.Stats().Blocks)

	for _, p := range ptrs {
		require.NoError(t, s.UnsafeFree(p, 1))
	}
}

// TestZeroSizeIsNoOp is scenario 5.
func TestZeroSizeIsNoOp(t *testing.T) {
	s := newTestState(t)

	p, err := s.UnsafeAlloc(0, true)
	require.NoError(t, err)
	require.Nil(t, p)

	require.NoError(t, s.UnsafeFree(nil, 0))
}

// TestOversizePassthrough is scenario 6.
func TestOversizePassthrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = pageSize
	cfg.MaxClassShift = 12
	s, err := NewState(&cfg)
	require.NoError(t, err)
	defer s.Close()

	h, _ := s.HandleOf(1)
	big := h.g.blockSize * 4

	p, err := s.UnsafeAlloc(big, true)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.True(t, allBytes(p, 0, big, 0x00))

	require.NoError(t, s.UnsafeFree(p, big))
}

// TestImmediateFreeReclaimsBlock is property 8: with IMMEDIATE_FREE,
// freeing the last cell in a block returns it to the OS right away.
func TestImmediateFreeReclaimsBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClassShift = 12
	cfg.ImmediateFree = true
	s, err := NewState(&cfg)
	require.NoError(t, err)
	defer s.Close()

	h, _ := s.HandleOf(8)
	p, err := s.UnsafeAlloc(8, false)
	require.NoError(t, err)
	require.Equal(t, 1, h.Stats().Blocks)

	require.NoError(t, s.UnsafeFree(p, 8))
	require.Equal(t, 0, h.Stats().Blocks)
}

// TestCounterClosure is property 7.
func TestCounterClosure(t *testing.T) {
	s := newTestState(t)

	rng, err := mathutil.NewFC32(1, 4096, true)
	require.NoError(t, err)
	rng.Seed(7)

	var ptrs []unsafe.Pointer
	var sizes []int
	for i := 0; i < 500; i++ {
		size := rng.Next() % math.MaxInt16
		if size <= 0 {
			size = 1
		}
		p, err := s.UnsafeAlloc(size, false)
		require.NoError(t, err)
		ptrs = append(ptrs, p)
		sizes = append(sizes, size)
	}

	for i, p := range ptrs {
		require.NoError(t, s.UnsafeFree(p, sizes[i]))
	}

	for _, h := range s.Handles() {
		if h.IsOversize() {
			continue
		}
		st := h.Stats()
		require.Zero(t, st.LiveCells)
	}
}

func fill(p unsafe.Pointer, n int, v byte) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = v
	}
}

func allBytes(p unsafe.Pointer, off, n int, v byte) bool {
	b := unsafe.Slice((*byte)(unsafe.Add(p, off)), n)
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}
