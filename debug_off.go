// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !slabdebug

package slab

import "unsafe"

// debugEnabled is false in release builds: misuse is undefined
// behaviour and unchecked (spec.md §7).
const debugEnabled = false

func assertAligned(unsafe.Pointer, int) {}

func poison(unsafe.Pointer, int) {}
