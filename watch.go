// Copyright 2024 The Slab Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slab

import (
	"github.com/fsnotify/fsnotify"
)

// WatchConfig watches path for writes and hot-reloads logger's level
// from the file's log_level field. Block geometry and handle flags are
// not reloaded from the file; only the log level is, matching the
// TimeWtr-BlitzMem slab allocator's pairing of BurntSushi/toml with
// fsnotify for exactly this purpose.
//
// The returned stop func closes the watcher; callers should defer it.
func WatchConfig(path string, logger *Logger) (stop func(), err error) {
	if logger == nil {
		logger = nopLogger
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					continue
				}
				_ = logger.SetLevel(cfg.LogLevel)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	stop = func() {
		close(done)
		w.Close()
	}
	return stop, nil
}
