// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build slabdebug

package slab

import "unsafe"

// debugEnabled gates the extra invariant checks and poison-fill
// described in spec.md §7 and SPEC_FULL.md's supplemented debug-build
// behaviour. Caller misuse is undefined behaviour per spec.md §7:
// debug builds diagnose it best-effort with a panic, release builds do
// not pay for the check at all.
const debugEnabled = true

// assertAligned panics if p is not aligned to size, which would mean
// either internal corruption or a caller passing a foreign pointer.
func assertAligned(p unsafe.Pointer, size int) {
	if size&(size-1) == 0 && uintptr(p)&uintptr(size-1) != 0 {
		panic("internal error: misaligned cell pointer")
	}
}

// poison overwrites a freed cell's payload so a subsequent use-after-
// free read is more likely to be observable, grounded on the
// canary/poison pattern in original_source's debug.h. It runs before
// the free-list link is written, so only the bytes beyond the link
// width actually carry the poison value once FreeUH finishes linking.
func poison(p unsafe.Pointer, size int) {
	b := unsafe.Slice((*byte)(p), size)
	for i := range b {
		b[i] = 0xDD
	}
}
