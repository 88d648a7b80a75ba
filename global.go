// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !noglobalstate

package slab

import "sync"

var (
	defaultState     *State
	defaultStateOnce sync.Once
	defaultStateErr  error
)

// DefaultState returns the process-global instance, constructed lazily
// on first use from DefaultConfig() (spec.md §4.8, §6). Build the
// module with -tags noglobalstate to remove this lazy construction
// entirely, for callers who want no implicit global state at all.
func DefaultState() (*State, error) {
	defaultStateOnce.Do(func() {
		defaultState, defaultStateErr = NewState(nil)
	})
	return defaultState, defaultStateErr
}

// CloseDefault tears down the process-global instance, if one was ever
// constructed, and clears it so a later DefaultState call builds a
// fresh one.
func CloseDefault() error {
	if defaultState == nil {
		return nil
	}

	err := defaultState.Close()
	defaultState = nil
	defaultStateOnce = sync.Once{}
	return err
}
