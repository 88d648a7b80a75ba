// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestHandleOfRouting(t *testing.T) {
	s := newTestState(t)
	defer s.Close()

	h, idx := s.HandleOf(0)
	require.Nil(t, h)
	require.Equal(t, -1, idx)

	h, _ = s.HandleOf(1)
	require.Equal(t, 1, h.CellSize())

	h, _ = s.HandleOf(2)
	require.Equal(t, 2, h.CellSize())

	h, _ = s.HandleOf(3)
	require.Equal(t, 4, h.CellSize())

	h, idx = s.HandleOf(1 << 30)
	require.True(t, h.IsOversize())
	require.Equal(t, s.oversizeIndex(), idx)
}

func TestCloneStateResetsDynamicFields(t *testing.T) {
	src := newTestState(t)
	defer src.Close()

	p, err := src.UnsafeAlloc(16, false)
	require.NoError(t, err)
	require.NotNil(t, p)

	clone, err := CloneState(src)
	require.NoError(t, err)
	defer clone.Close()

	for _, h := range clone.Handles() {
		st := h.Stats()
		require.Zero(t, st.Blocks)
		require.Zero(t, st.LiveCells)
	}

	require.NoError(t, src.UnsafeFree(p, 16))
}

func TestDefaultStateRoundTrip(t *testing.T) {
	defer CloseDefault()

	s, err := DefaultState()
	require.NoError(t, err)

	p, err := UnsafeAlloc(48, true)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.True(t, allBytes(p, 0, 48, 0))

	require.NoError(t, UnsafeFree(p, 48))

	h, _ := s.HandleOf(48)
	require.Zero(t, h.Stats().LiveCells)
}

func TestByteSliceConvenience(t *testing.T) {
	defer CloseDefault()

	b, err := Calloc(100)
	require.NoError(t, err)
	require.Len(t, b, 100)
	for _, c := range b {
		require.Zero(t, c)
	}

	for i := range b {
		b[i] = byte(i)
	}

	b, err = Realloc(b, 200)
	require.NoError(t, err)
	require.Len(t, b, 200)
	for i := 0; i < 100; i++ {
		require.Equal(t, byte(i), b[i])
	}

	require.NoError(t, Free(b))
}

func TestHandlesTableOrder(t *testing.T) {
	s := newTestState(t)
	defer s.Close()

	hs := s.Handles()
	require.True(t, hs[len(hs)-1].IsOversize())
	for _, h := range hs[:len(hs)-1] {
		require.False(t, h.IsOversize())
	}
}

var _ = unsafe.Pointer(nil)
