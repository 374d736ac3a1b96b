// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ir

import (
	"slices"

	"github.com/gogpu/rendergraph/device"
)

// SizeTable maps named sizes such as "swapchain" to extents.
type SizeTable struct {
	sizes map[string]device.Extent3D
}

// NewSizeTable returns an empty table.
func NewSizeTable() *SizeTable {
	return &SizeTable{sizes: make(map[string]device.Extent3D)}
}

// Add inserts a named size. It reports false if the name already exists.
func (t *SizeTable) Add(name string, e device.Extent3D) bool {
	if _, ok := t.sizes[name]; ok {
		return false
	}
	if e.Depth == 0 {
		e.Depth = 1
	}
	t.sizes[name] = e
	return true
}

// Get returns the extent of a named size.
func (t *SizeTable) Get(name string) (device.Extent3D, bool) {
	e, ok := t.sizes[name]
	return e, ok
}

// Resize updates width and height of a named size, keeping its depth.
// changed is false when the size already had that extent.
func (t *SizeTable) Resize(name string, width, height uint32) (changed, ok bool) {
	e, ok := t.sizes[name]
	if !ok {
		return false, false
	}
	if e.Width == width && e.Height == height {
		return false, true
	}
	e.Width, e.Height = width, height
	t.sizes[name] = e
	return true, true
}

// Names returns the sorted size names.
func (t *SizeTable) Names() []string {
	names := make([]string, 0, len(t.sizes))
	for n := range t.sizes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
