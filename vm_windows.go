// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2024 The Slab Authors.

//go:build windows

package slab

import (
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

func vmPageSize() int { return os.Getpagesize() }

var (
	handleMu  sync.Mutex
	handleMap = map[uintptr]windows.Handle{}
)

// mmap on Windows is a two-step process: CreateFileMapping to get a
// handle backed by the system paging file, then MapViewOfFile to get
// an actual pointer into the address space.
func vmAlloc0(n int) ([]byte, error) {
	maxSizeHigh := uint32(uint64(n) >> 32)
	maxSizeLow := uint32(uint64(n) & 0xFFFFFFFF)

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		return nil, os.NewSyscallError("CreateFileMapping", err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(n))
	if addr == 0 {
		windows.CloseHandle(h)
		return nil, os.NewSyscallError("MapViewOfFile", err)
	}

	handleMu.Lock()
	handleMap[addr] = h
	handleMu.Unlock()

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n), nil
}

func vmFree0(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return err
	}

	handleMu.Lock()
	h, ok := handleMap[addr]
	delete(handleMap, addr)
	handleMu.Unlock()
	if !ok {
		return os.NewSyscallError("UnmapViewOfFile", windows.ERROR_INVALID_ADDRESS)
	}

	return windows.CloseHandle(h)
}
