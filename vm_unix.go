// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2024 The Slab Authors.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package slab

import "golang.org/x/sys/unix"

func vmPageSize() int { return unix.Getpagesize() }

func vmAlloc0(n int) ([]byte, error) {
	flags := unix.MAP_SHARED | unix.MAP_ANON
	prot := unix.PROT_READ | unix.PROT_WRITE
	return unix.Mmap(-1, 0, n, prot, flags)
}

func vmFree0(b []byte) error {
	return unix.Munmap(b)
}
