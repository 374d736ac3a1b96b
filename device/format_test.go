// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "testing"

func TestFormatTraits(t *testing.T) {
	tests := []struct {
		format  Format
		depth   bool
		stencil bool
		bytes   uint32
	}{
		{FormatRGBA8Unorm, false, false, 4},
		{FormatRGBA16Float, false, false, 8},
		{FormatR8Unorm, false, false, 1},
		{FormatDepth32Float, true, false, 4},
		{FormatDepth24PlusStencil8, true, true, 4},
		{FormatUndefined, false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.IsDepth(); got != tt.depth {
				t.Errorf("IsDepth() = %v, want %v", got, tt.depth)
			}
			if got := tt.format.HasStencil(); got != tt.stencil {
				t.Errorf("HasStencil() = %v, want %v", got, tt.stencil)
			}
			if got := tt.format.BytesPerTexel(); got != tt.bytes {
				t.Errorf("BytesPerTexel() = %d, want %d", got, tt.bytes)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for f := FormatRGBA8Unorm; f <= FormatDepth24PlusStencil8; f++ {
		got, ok := ParseFormat(f.String())
		if !ok || got != f {
			t.Errorf("ParseFormat(%q) = %v, %v, want %v, true", f.String(), got, ok, f)
		}
	}
	if _, ok := ParseFormat("undefined"); ok {
		t.Error("ParseFormat(undefined) should fail")
	}
	if _, ok := ParseFormat("rgb565"); ok {
		t.Error("ParseFormat(rgb565) should fail")
	}
}

func TestExtentMip(t *testing.T) {
	e := Extent3D{Width: 1920, Height: 1080, Depth: 1}
	tests := []struct {
		mip  uint32
		want Extent3D
	}{
		{0, Extent3D{1920, 1080, 1}},
		{1, Extent3D{960, 540, 1}},
		{4, Extent3D{120, 67, 1}},
		{11, Extent3D{1, 1, 1}},
	}
	for _, tt := range tests {
		if got := e.Mip(tt.mip); got != tt.want {
			t.Errorf("Mip(%d) = %v, want %v", tt.mip, got, tt.want)
		}
	}
}

func TestTextureSize(t *testing.T) {
	e := Extent3D{Width: 4, Height: 4, Depth: 1}
	// 16 + 4 + 1 texels, 4 bytes each.
	if got := TextureSize(FormatRGBA8Unorm, e, 3, 1, 1); got != 84 {
		t.Errorf("TextureSize(mips=3) = %d, want 84", got)
	}
	if got := TextureSize(FormatRGBA8Unorm, e, 1, 6, 1); got != 384 {
		t.Errorf("TextureSize(layers=6) = %d, want 384", got)
	}
	if got := TextureSize(FormatRGBA8Unorm, e, 0, 0, 0); got != 64 {
		t.Errorf("TextureSize(zero counts) = %d, want 64", got)
	}
}
