// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slab implements a size-class segregated slab allocator built
// directly on the operating system's virtual-memory facilities.
//
// Allocation requests are routed by size to a per-size-class Handle,
// which carves large, naturally-aligned virtual-memory Blocks into
// fixed-size cells. A cell's owning Block is recovered from any
// interior pointer by masking off the low address bits, which is why
// every Block is reserved at an alignment equal to its own size.
//
// Requests larger than the biggest configured class pass straight
// through to the virtual-memory layer via the oversize handle.
//
// The zero value of State is not ready for use; construct one with
// NewState or use DefaultState for the process-wide instance.
package slab
