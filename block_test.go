// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGeometryVariants(t *testing.T) {
	cases := []struct {
		cellSize int
		wantV    variant
	}{
		{1, variantC1},
		{2, variantC2},
		{4, variantC4},
		{64, variantC4},
		{4096, variantC4},
	}

	for _, c := range cases {
		g := computeGeometry(c.cellSize, 0)
		assert.Equal(t, c.wantV, g.v, "cell size %d", c.cellSize)
		assert.True(t, g.blockSize >= pageSize)
		assert.True(t, g.blockSize&(g.blockSize-1) == 0, "block size must be a power of two")
		assert.True(t, int(g.capacity) > 0)
		assert.True(t, g.payloadOff >= metaSize)
		assert.True(t, g.payloadOff+int(g.capacity)*g.cellSize <= g.blockSize)
	}
}

func TestComputeGeometryC1SubHeaders(t *testing.T) {
	g := computeGeometry(1, defaultBlockSize)
	require.Equal(t, variantC1, g.v)
	assert.True(t, g.numSub > 1, "the 1-byte class should split into several sub-headers")
	assert.True(t, int(g.subCap) <= c1SubCap)
	assert.Equal(t, int(g.numSub)*int(g.subCap), int(g.capacity))
}

func TestBlockAllocFreeRecoversOwner(t *testing.T) {
	g := computeGeometry(32, pageSize)
	b, _, err := newBlock(g)
	require.NoError(t, err)
	defer releaseBlock(b)

	cell, ok := b.allocCell(false)
	require.True(t, ok)

	owner := blockFromPointer(cell, g.blockSize)
	assert.Same(t, b, owner)

	wasFull := b.freeCell(cell)
	assert.False(t, wasFull)
	assert.Zero(t, b.totalCount())
}

func TestBlockCapacityTransitionsFull(t *testing.T) {
	g := computeGeometry(64, pageSize)
	b, _, err := newBlock(g)
	require.NoError(t, err)
	defer releaseBlock(b)

	for i := 0; i < int(g.capacity); i++ {
		_, ok := b.allocCell(false)
		require.True(t, ok)
	}
	assert.Equal(t, int(g.capacity), b.totalCount())

	_, ok := b.allocCell(false)
	assert.False(t, ok, "a full block must refuse further allocation")
}
