// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import "unsafe"

// variant selects one of the three cell-header layouts. The choice is
// driven purely by cellSize and never changes for a handle once
// created; dispatch is a plain switch rather than an interface, since
// there are exactly three shapes and the path is hot.
type variant uint8

const (
	variantC1 variant = iota // 1-byte cells, 8-bit free-list index
	variantC2                // 2-byte cells, 16-bit free-list index
	variantC4                // >=4-byte cells, 32-bit free-list index
)

func variantFor(cellSize int) variant {
	switch {
	case cellSize == 1:
		return variantC1
	case cellSize == 2:
		return variantC2
	default:
		return variantC4
	}
}

// Sentinel free-list values: all-ones of the variant's index width.
const (
	sentinel1 = uint32(0xFF)
	sentinel2 = uint32(0xFFFF)
	sentinel4 = uint32(0xFFFFFFFF)
)

func sentinelFor(v variant) uint32 {
	switch v {
	case variantC1:
		return sentinel1
	case variantC2:
		return sentinel2
	default:
		return sentinel4
	}
}

// maxCapacityFor returns the largest cell count a single cell-header
// of this variant can index, leaving the sentinel value unused.
func maxCapacityFor(v variant) int {
	switch v {
	case variantC1:
		return 1<<8 - 2
	case variantC2:
		return 1<<16 - 2
	default:
		return 1<<32 - 2
	}
}

// header1/header2/header4 are the three in-block cell-header layouts.
// Each owns one run of cells: used is the bump watermark, count is the
// number of live cells, free is the head of the intrusive free list (or
// the variant's sentinel when empty).
type header1 struct {
	used, count, free uint8
}

type header2 struct {
	used, count, free uint16
}

type header4 struct {
	used, count, free uint32
}

var (
	sizeofHeader1 = int(unsafe.Sizeof(header1{}))
	sizeofHeader2 = int(unsafe.Sizeof(header2{}))
	sizeofHeader4 = int(unsafe.Sizeof(header4{}))
)

func headerSizeFor(v variant) int {
	switch v {
	case variantC1:
		return sizeofHeader1
	case variantC2:
		return sizeofHeader2
	default:
		return sizeofHeader4
	}
}

// cellPayload returns the address of cell index i within the run
// starting at payloadBase.
func cellPayload(payloadBase unsafe.Pointer, i, cellSize int) unsafe.Pointer {
	return unsafe.Add(payloadBase, i*cellSize)
}

// readNextFree/writeNextFree access the free-list link embedded in a
// free cell's first W bytes, where W is the variant's index width.
func readNextFree(v variant, cell unsafe.Pointer) uint32 {
	switch v {
	case variantC1:
		return uint32(*(*uint8)(cell))
	case variantC2:
		return uint32(*(*uint16)(cell))
	default:
		return *(*uint32)(cell)
	}
}

func writeNextFree(v variant, cell unsafe.Pointer, idx uint32) {
	switch v {
	case variantC1:
		*(*uint8)(cell) = uint8(idx)
	case variantC2:
		*(*uint16)(cell) = uint16(idx)
	default:
		*(*uint32)(cell) = idx
	}
}

// headerGet/headerSet read and write the three header fields uniformly
// across variants, so callers (block.go) do not need a
// switch at every access site.
func headerGet(v variant, h unsafe.Pointer) (used, count, free uint32) {
	switch v {
	case variantC1:
		p := (*header1)(h)
		return uint32(p.used), uint32(p.count), uint32(p.free)
	case variantC2:
		p := (*header2)(h)
		return uint32(p.used), uint32(p.count), uint32(p.free)
	default:
		p := (*header4)(h)
		return p.used, p.count, p.free
	}
}

func headerSet(v variant, h unsafe.Pointer, used, count, free uint32) {
	switch v {
	case variantC1:
		p := (*header1)(h)
		p.used, p.count, p.free = uint8(used), uint8(count), uint8(free)
	case variantC2:
		p := (*header2)(h)
		p.used, p.count, p.free = uint16(used), uint16(count), uint16(free)
	default:
		p := (*header4)(h)
		p.used, p.count, p.free = used, count, free
	}
}
