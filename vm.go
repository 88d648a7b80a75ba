// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"fmt"
	"unsafe"
)

// ErrOOM is returned (wrapped) when the virtual-memory layer refuses a
// reservation.
var ErrOOM = fmt.Errorf("slab: out of memory")

// pageSize is the OS page granularity, used to clamp and round block
// sizes. It is resolved once at init time.
var pageSize = vmPageSize()

// vmAlloc reserves and commits n readable/writable bytes. n==0 returns
// (nil, nil). Failure wraps the underlying OS error with ErrOOM.
func vmAlloc(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}

	b, err := vmAlloc0(n)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve %d bytes: %v", ErrOOM, n, err)
	}

	return b, nil
}

// vmFree releases n bytes at p. p==nil is a no-op.
func vmFree(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	return vmFree0(p)
}

// vmAllocAligned reserves n bytes aligned to a (a power of two),
// returning both the real reservation (for later release) and the
// aligned sub-slice of at least n bytes.
func vmAllocAligned(n, a int) (real, aligned []byte, err error) {
	if a&(a-1) != 0 {
		panic("internal error: alignment not a power of two")
	}

	real, err = vmAlloc(n + a - 1)
	if err != nil {
		return nil, nil, err
	}

	base := uintptr(unsafe.Pointer(&real[0]))
	off := int((roundup(int(base), a)) - int(base))
	aligned = real[off : off+n]
	return real, aligned, nil
}

// vmFreeAligned releases the whole reservation behind an aligned
// allocation produced by vmAllocAligned.
func vmFreeAligned(real []byte) error {
	return vmFree(real)
}

// roundup rounds n up to the next multiple of m. m must be a power of two.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }
