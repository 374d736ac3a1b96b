// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "fmt"

// Format specifies the texel format of a texture.
type Format uint32

// Texture formats.
const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSRGB
	FormatBGRA8Unorm
	FormatBGRA8UnormSRGB
	FormatR8Unorm
	FormatR16Float
	FormatRG16Float
	FormatRGBA16Float
	FormatR32Float
	FormatRG32Float
	FormatRGBA32Float
	FormatR32Uint
	FormatDepth16Unorm
	FormatDepth32Float
	FormatDepth24PlusStencil8
)

type formatInfo struct {
	name    string
	bytes   uint32
	depth   bool
	stencil bool
}

var formats = [...]formatInfo{
	FormatUndefined:           {name: "undefined"},
	FormatRGBA8Unorm:          {name: "rgba8unorm", bytes: 4},
	FormatRGBA8UnormSRGB:      {name: "rgba8unorm-srgb", bytes: 4},
	FormatBGRA8Unorm:          {name: "bgra8unorm", bytes: 4},
	FormatBGRA8UnormSRGB:      {name: "bgra8unorm-srgb", bytes: 4},
	FormatR8Unorm:             {name: "r8unorm", bytes: 1},
	FormatR16Float:            {name: "r16float", bytes: 2},
	FormatRG16Float:           {name: "rg16float", bytes: 4},
	FormatRGBA16Float:         {name: "rgba16float", bytes: 8},
	FormatR32Float:            {name: "r32float", bytes: 4},
	FormatRG32Float:           {name: "rg32float", bytes: 8},
	FormatRGBA32Float:         {name: "rgba32float", bytes: 16},
	FormatR32Uint:             {name: "r32uint", bytes: 4},
	FormatDepth16Unorm:        {name: "depth16unorm", bytes: 2, depth: true},
	FormatDepth32Float:        {name: "depth32float", bytes: 4, depth: true},
	FormatDepth24PlusStencil8: {name: "depth24plus-stencil8", bytes: 4, depth: true, stencil: true},
}

func (f Format) info() formatInfo {
	if int(f) < len(formats) {
		return formats[f]
	}
	return formatInfo{}
}

// String returns the WebGPU-style format name.
func (f Format) String() string {
	if int(f) < len(formats) {
		return formats[f].name
	}
	return fmt.Sprintf("Format(%d)", f)
}

// ParseFormat looks up a format by its [Format.String] name.
func ParseFormat(s string) (Format, bool) {
	for i, fi := range formats {
		if fi.name == s && Format(i) != FormatUndefined {
			return Format(i), true
		}
	}
	return FormatUndefined, false
}

// IsDepth reports whether the format has a depth aspect.
func (f Format) IsDepth() bool { return f.info().depth }

// HasStencil reports whether the format has a stencil aspect.
func (f Format) HasStencil() bool { return f.info().stencil }

// BytesPerTexel returns the size of one texel, or 0 for FormatUndefined.
func (f Format) BytesPerTexel() uint32 { return f.info().bytes }

// TextureSize estimates the memory footprint of a texture with a full or
// partial mip chain.
func TextureSize(f Format, e Extent3D, mips, layers, samples uint32) uint64 {
	if samples == 0 {
		samples = 1
	}
	var total uint64
	for m := uint32(0); m < max(mips, 1); m++ {
		me := e.Mip(m)
		total += uint64(me.Width) * uint64(me.Height) * uint64(me.Depth)
	}
	return total * uint64(f.BytesPerTexel()) * uint64(max(layers, 1)) * uint64(samples)
}
