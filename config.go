// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the fixed, build-time shape of a State (spec.md §6, "the
// default state's handle count and size classes are fixed at build
// time"). LogLevel is the one field that remains live-tunable after
// construction; see WatchConfig.
type Config struct {
	// BlockSize is the block size requested for every non-oversize
	// class, before the per-class clamping of spec.md §4.2. Zero
	// selects defaultBlockSize.
	BlockSize int `toml:"block_size"`
	// MaxClassShift bounds the default size-class table to classes
	// 1, 2, 4, ..., 2^MaxClassShift (spec.md §4.1).
	MaxClassShift int `toml:"max_class_shift"`
	// ImmediateFree and DoNotFree seed every class handle's flags at
	// construction time (spec.md §6).
	ImmediateFree bool `toml:"immediate_free"`
	DoNotFree     bool `toml:"do_not_free"`
	// LogLevel is the level WatchConfig applies to its Logger when the
	// file changes; NewState does not read it.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the built-in configuration used when no file
// is present: classes from 1 byte up to 1 MiB, blocks sized per
// spec.md's ≈8 MiB default, hysteresis reclamation (neither flag set).
func DefaultConfig() Config {
	return Config{
		BlockSize:     defaultBlockSize,
		MaxClassShift: 20,
		LogLevel:      "info",
	}
}

// LoadConfig decodes a TOML configuration file. A missing file is not
// an error; it yields DefaultConfig(). Fields the file does not set
// keep their DefaultConfig() values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
