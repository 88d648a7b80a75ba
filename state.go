// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

// State is the ordered table of handles selected by size: one handle
// per power-of-two size class plus a final oversize/virtual handle
// (spec.md §2 item 5, §4.1).
type State struct {
	handles []*Handle // handles[len(handles)-1] is always the oversize handle
	cfg     Config
}

// oversizeIndex is the index of the table's virtual handle.
func (s *State) oversizeIndex() int { return len(s.handles) - 1 }

// NewState builds a State from cfg (nil selects DefaultConfig()). Each
// class gets a handle sized 1, 2, 4, 8, ... up to 2^cfg.MaxClassShift,
// per spec.md §4.1's default table.
func NewState(cfg *Config) (*State, error) {
	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}

	n := c.MaxClassShift + 1
	s := &State{handles: make([]*Handle, n+1), cfg: c}
	for i := 0; i < n; i++ {
		cellSize := 1 << uint(i)
		s.handles[i] = newHandle(cellSize, c.BlockSize)
		if c.ImmediateFree {
			s.handles[i].SetFlags(FlagImmediateFree)
		}
		if c.DoNotFree {
			s.handles[i].SetFlags(FlagDoNotFree)
		}
	}
	s.handles[n] = newOversizeHandle()

	return s, nil
}

// CloneState allocates a new State with the same per-class geometry as
// src but resets every handle's dynamic fields: no blocks, no live
// cells, no flags, empty partial list (spec.md §4.8).
func CloneState(src *State) (*State, error) {
	clone := &State{handles: make([]*Handle, len(src.handles)), cfg: src.cfg}
	for i, h := range src.handles {
		if h.oversize {
			clone.handles[i] = newOversizeHandle()
			continue
		}
		clone.handles[i] = newHandle(h.g.cellSize, h.g.blockSize)
	}
	return clone, nil
}

// Close tears down every handle and releases all outstanding
// reservations (spec.md §4.8).
func (s *State) Close() error {
	var firstErr error
	for _, h := range s.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleOf looks up the handle serving size, implementing the default
// index function of spec.md §4.1: size 0 returns (nil, -1), a
// no-op sentinel both Alloc and Free understand. Otherwise the index
// is log2(nextPow2(size)) clamped to the oversize slot.
func (s *State) HandleOf(size int) (*Handle, int) {
	if size <= 0 {
		return nil, -1
	}

	shift := log2Pow2(nextPow2(size))
	idx := shift
	if idx > s.oversizeIndex() {
		idx = s.oversizeIndex()
	}
	return s.handles[idx], idx
}

// Handles returns the table in order, oversize handle last.
func (s *State) Handles() []*Handle { return s.handles }

func log2Pow2(p int) int {
	n := 0
	for p > 1 {
		p >>= 1
		n++
	}
	return n
}

