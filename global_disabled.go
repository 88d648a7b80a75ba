// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build noglobalstate

package slab

import "errors"

// errNoGlobalState is returned by DefaultState when the module was
// built with -tags noglobalstate (spec.md §6, "unless the caller opts
// out at build time").
var errNoGlobalState = errors.New("slab: process-global state disabled at build time")

func DefaultState() (*State, error) { return nil, errNoGlobalState }

func CloseDefault() error { return nil }
