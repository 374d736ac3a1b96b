// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ir

import (
	"cmp"
	"math"

	"github.com/gogpu/rendergraph/device"
)

// Attachment describes the physical shape of a texture resource.
//
// When SizeName is empty Size holds absolute texel counts; otherwise Size
// holds multipliers applied to the named size.
type Attachment struct {
	Format       device.Format
	SizeName     string
	Size         [3]float32
	MipLevels    uint32
	ArrayLayers  uint32
	Samples      uint32
	ViewType     device.ViewType
	GenerateMips bool
	Clear        device.ClearValue
}

// Normalized fills zero fields with their defaults: one mip, one layer
// (six for cube views), one sample, unit multipliers for relative sizes
// and unit depth for absolute sizes.
func (a Attachment) Normalized() Attachment {
	if a.MipLevels == 0 {
		a.MipLevels = 1
	}
	if a.ArrayLayers == 0 {
		a.ArrayLayers = 1
		if a.ViewType.IsCube() {
			a.ArrayLayers = 6
		}
	}
	if a.Samples == 0 {
		a.Samples = 1
	}
	if a.SizeName != "" {
		for i := range a.Size {
			if a.Size[i] == 0 {
				a.Size[i] = 1
			}
		}
	} else if a.Size[2] == 0 {
		a.Size[2] = 1
	}
	return a
}

// SameSize reports whether two attachments resolve to the same extent for
// every state of the size table.
func (a Attachment) SameSize(b Attachment) bool {
	return a.SizeName == b.SizeName && a.Size == b.Size
}

// Less orders attachments structurally. Together with == it gives the
// total order used for deduplication.
func (a Attachment) Less(b Attachment) bool {
	if c := cmp.Compare(a.Format, b.Format); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(a.SizeName, b.SizeName); c != 0 {
		return c < 0
	}
	for i := range a.Size {
		if c := cmp.Compare(a.Size[i], b.Size[i]); c != 0 {
			return c < 0
		}
	}
	for _, p := range [][2]uint32{
		{a.MipLevels, b.MipLevels},
		{a.ArrayLayers, b.ArrayLayers},
		{a.Samples, b.Samples},
		{uint32(a.ViewType), uint32(b.ViewType)},
	} {
		if p[0] != p[1] {
			return p[0] < p[1]
		}
	}
	if a.GenerateMips != b.GenerateMips {
		return !a.GenerateMips
	}
	for i := range a.Clear.Color {
		if c := cmp.Compare(a.Clear.Color[i], b.Clear.Color[i]); c != 0 {
			return c < 0
		}
	}
	if c := cmp.Compare(a.Clear.Depth, b.Clear.Depth); c != 0 {
		return c < 0
	}
	return a.Clear.Stencil < b.Clear.Stencil
}

func scale(base uint32, m float32) uint32 {
	v := math.Floor(float64(base) * float64(m))
	if v < 1 {
		return 1
	}
	return uint32(v)
}

// Extent resolves the attachment size against the size table.
func (a Attachment) Extent(sizes *SizeTable) (device.Extent3D, bool) {
	if a.SizeName == "" {
		return device.Extent3D{
			Width:  scale(1, a.Size[0]),
			Height: scale(1, a.Size[1]),
			Depth:  scale(1, a.Size[2]),
		}, true
	}
	base, ok := sizes.Get(a.SizeName)
	if !ok {
		return device.Extent3D{}, false
	}
	return device.Extent3D{
		Width:  scale(base.Width, a.Size[0]),
		Height: scale(base.Height, a.Size[1]),
		Depth:  scale(max(base.Depth, 1), a.Size[2]),
	}, true
}
