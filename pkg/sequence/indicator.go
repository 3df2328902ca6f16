// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sequence

import (
	"log"
	"os"
)

// Indicator is a boolean status output such as an LED. It is cosmetic:
// implementations must not fail the run.
type Indicator interface {
	SetState(on bool)
}

// NopIndicator discards state changes
type NopIndicator struct{}

func (NopIndicator) SetState(bool) {}

// FileIndicator drives a sysfs LED by writing "1" or "0" to its
// brightness file, e.g. /sys/class/leds/led0/brightness.
type FileIndicator struct {
	path   string
	failed bool
}

// NewFileIndicator returns an indicator for the given brightness file
func NewFileIndicator(path string) *FileIndicator {
	return &FileIndicator{path: path}
}

func (f *FileIndicator) SetState(on bool) {
	value := []byte("0\n")
	if on {
		value = []byte("1\n")
	}
	if err := os.WriteFile(f.path, value, 0o644); err != nil && !f.failed {
		// Report once; a missing LED should not spam every tick
		f.failed = true
		log.Printf("status LED %s: %v", f.path, err)
	}
}
