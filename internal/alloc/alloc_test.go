// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package alloc

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/rendergraph/backend/noop"
	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
	"github.com/gogpu/rendergraph/internal/ir/irtest"
	"github.com/gogpu/rendergraph/internal/resolve"
)

func assign(t *testing.T, dev device.Device, budget *Budget, passes []ir.Pass, output string, sizes *ir.SizeTable) (*Allocator, error) {
	t.Helper()
	g := irtest.Graph(t, passes, nil)
	order, err := resolve.Resolve(g, output)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	a := New(dev, budget)
	return a, a.Assign(context.Background(), g, order, output, sizes)
}

func TestAssignDeferred(t *testing.T) {
	dev := noop.New()
	a, err := assign(t, dev, nil, irtest.Deferred(), "output", irtest.Sizes(1920, 1080))
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	defer a.Release()

	if got, want := a.TextureNames(), []string{"albedo", "depth", "litColor", "output"}; !slices.Equal(got, want) {
		t.Errorf("TextureNames() = %v, want %v", got, want)
	}

	tests := []struct {
		name  string
		usage device.TextureUsage
	}{
		{"albedo", device.TextureUsageColorAttachment | device.TextureUsageSampled},
		{"depth", device.TextureUsageDepthAttachment | device.TextureUsageSampled},
		{"litColor", device.TextureUsageStorage},
		{"output", device.TextureUsageStorage | device.TextureUsageSampled | device.TextureUsageTransferSrc},
	}
	for _, tt := range tests {
		tex, ok := a.Texture(tt.name)
		if !ok {
			t.Fatalf("Texture(%q) missing", tt.name)
		}
		if tex.Desc.Usage != tt.usage {
			t.Errorf("%s usage = %b, want %b", tt.name, tex.Desc.Usage, tt.usage)
		}
		if tex.Desc.Extent != (device.Extent3D{Width: 1920, Height: 1080, Depth: 1}) {
			t.Errorf("%s extent = %s", tt.name, tex.Desc.Extent)
		}
		rec, ok := dev.Texture(tex.ID)
		if !ok || rec.State != device.StateUndefined {
			t.Errorf("%s: device texture = %+v, %v", tt.name, rec, ok)
		}
		if len(tex.Mips) != 1 || len(tex.Layers) != 1 {
			t.Errorf("%s: %d mip views, %d layer views, want 1 and 1", tt.name, len(tex.Mips), len(tex.Layers))
		}
	}

	stats := a.Stats()
	if stats.ResourceCount != 4 || stats.UsedBytes == 0 {
		t.Errorf("Stats() = %s", stats)
	}
}

func TestAssignExtents(t *testing.T) {
	tests := []struct {
		name string
		att  ir.Attachment
		want device.Extent3D
	}{
		{
			name: "full resolution",
			att:  ir.Attachment{Format: device.FormatRGBA8Unorm, SizeName: irtest.Swapchain},
			want: device.Extent3D{Width: 1920, Height: 1080, Depth: 1},
		},
		{
			name: "half resolution",
			att:  ir.Attachment{Format: device.FormatRGBA8Unorm, SizeName: irtest.Swapchain, Size: [3]float32{0.5, 0.5, 1}},
			want: device.Extent3D{Width: 960, Height: 540, Depth: 1},
		},
		{
			name: "absolute",
			att:  ir.Attachment{Format: device.FormatRGBA8Unorm, Size: [3]float32{256, 128}},
			want: device.Extent3D{Width: 256, Height: 128, Depth: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes := []ir.Pass{{Name: "draw", Type: ir.Graphics, ColorOutputs: []ir.Output{{Name: "out", Attachment: tt.att}}}}
			a, err := assign(t, noop.New(), nil, passes, "out", irtest.Sizes(1920, 1080))
			if err != nil {
				t.Fatalf("Assign() error = %v", err)
			}
			defer a.Release()
			tex, _ := a.Texture("out")
			if tex.Desc.Extent != tt.want {
				t.Errorf("extent = %s, want %s", tex.Desc.Extent, tt.want)
			}
		})
	}
}

func TestAssignViews(t *testing.T) {
	dev := noop.New()
	passes := []ir.Pass{{Name: "sky", Type: ir.Graphics, ColorOutputs: []ir.Output{{Name: "env", Attachment: ir.Attachment{
		Format:       device.FormatRGBA16Float,
		Size:         [3]float32{512, 512},
		MipLevels:    4,
		ViewType:     device.ViewTypeCube,
		GenerateMips: true,
	}}}}}
	a, err := assign(t, dev, nil, passes, "env", irtest.Sizes(1, 1))
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	defer a.Release()

	tex, _ := a.Texture("env")
	if tex.Desc.ArrayLayers != 6 {
		t.Errorf("ArrayLayers = %d, want 6", tex.Desc.ArrayLayers)
	}
	if !tex.Desc.Usage.Has(device.TextureUsageTransferSrc | device.TextureUsageTransferDst) {
		t.Errorf("usage %b lacks transfer bits for mip generation", tex.Desc.Usage)
	}
	if len(tex.Mips) != 4 || len(tex.Layers) != 6 {
		t.Fatalf("%d mip views, %d layer views, want 4 and 6", len(tex.Mips), len(tex.Layers))
	}

	full, _ := dev.View(tex.Full)
	if full.Desc.ViewType != device.ViewTypeCube || full.Desc.Range != device.FullRange {
		t.Errorf("full view = %+v", full.Desc)
	}
	mip, _ := dev.View(tex.Mips[2])
	if mip.Desc.Range != (device.SubresourceRange{BaseMip: 2, MipCount: 1}) {
		t.Errorf("mip 2 view range = %+v", mip.Desc.Range)
	}
	layer, _ := dev.View(tex.Layers[5])
	if layer.Desc.ViewType != device.ViewType2D || layer.Desc.Range != (device.SubresourceRange{BaseLayer: 5, LayerCount: 1}) {
		t.Errorf("layer 5 view = %+v", layer.Desc)
	}
	if got := dev.Live().Views; got != 1+4+6 {
		t.Errorf("live views = %d, want 11", got)
	}
}

func TestAssignUnknownNamedSize(t *testing.T) {
	passes := []ir.Pass{{Name: "draw", Type: ir.Graphics, ColorOutputs: []ir.Output{{Name: "out", Attachment: ir.Attachment{
		Format: device.FormatRGBA8Unorm, SizeName: "shadow"}}}}}
	dev := noop.New()
	_, err := assign(t, dev, nil, passes, "out", irtest.Sizes(64, 64))
	if !errors.Is(err, ir.ErrUnknownNamedSize) {
		t.Fatalf("Assign() error = %v, want ErrUnknownNamedSize", err)
	}
	if got := dev.Live(); got != (noop.Live{}) {
		t.Errorf("Live() = %+v after a failed Assign", got)
	}
}

func TestAssignBudgetExceeded(t *testing.T) {
	dev := noop.New()
	// Room for two of the four 64x64 textures.
	budget := NewBudget(2*64*64*4 + 64*64*4/2)
	_, err := assign(t, dev, budget, irtest.Deferred(), "output", irtest.Sizes(64, 64))
	if !errors.Is(err, ErrMemoryBudgetExceeded) {
		t.Fatalf("Assign() error = %v, want ErrMemoryBudgetExceeded", err)
	}
	if got := dev.Live(); got != (noop.Live{}) {
		t.Errorf("Live() = %+v, want everything released", got)
	}
	if s := budget.Stats(); s.UsedBytes != 0 || s.ResourceCount != 0 {
		t.Errorf("budget after failure = %s", s)
	}
}

func TestAssignDeviceFailure(t *testing.T) {
	dev := noop.New()
	boom := errors.New("out of device memory")
	dev.FailNext("CreateTextureView", boom)
	_, err := assign(t, dev, nil, irtest.Deferred(), "output", irtest.Sizes(64, 64))
	if !errors.Is(err, boom) {
		t.Fatalf("Assign() error = %v, want %v", err, boom)
	}
	if got := dev.Live(); got != (noop.Live{}) {
		t.Errorf("Live() = %+v, want everything released", got)
	}
}

func TestAssignBuffers(t *testing.T) {
	passes := []ir.Pass{
		{Name: "draw", Type: ir.Graphics,
			StorageBuffers: []ir.StorageBuffer{{Name: "particles", Access: ir.AccessRead}},
			ColorOutputs:   []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "simulate", Type: ir.Compute, StorageBuffers: []ir.StorageBuffer{{
			Name: "particles", Access: ir.AccessWrite, Size: 4096, Usage: device.BufferUsageVertex}}},
	}
	dev := noop.New()
	a, err := assign(t, dev, nil, passes, "out", irtest.Sizes(64, 64))
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	defer a.Release()

	if got := a.BufferNames(); !slices.Equal(got, []string{"particles"}) {
		t.Fatalf("BufferNames() = %v", got)
	}
	b, _ := a.Buffer("particles")
	if b.Desc.Size != 4096 || !b.Desc.Usage.Has(device.BufferUsageStorage|device.BufferUsageVertex) {
		t.Errorf("buffer desc = %+v", b.Desc)
	}
}

func TestAssignImports(t *testing.T) {
	dev := noop.New()
	envTex, err := dev.CreateTexture(&device.TextureDesc{
		Format: device.FormatRGBA8Unorm, Extent: device.Extent3D{Width: 8, Height: 8, Depth: 1}, MipLevels: 1, ArrayLayers: 1,
	})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	envView, _ := dev.CreateTextureView(envTex, &device.ViewDesc{Format: device.FormatRGBA8Unorm})

	passes := []ir.Pass{{Name: "draw", Type: ir.Graphics, TextureInputs: []string{"env"},
		ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}}}
	imports := map[string]ir.Import{"env": {
		Name: "env", Texture: envTex, View: envView, Format: device.FormatRGBA8Unorm,
		Extent: device.Extent3D{Width: 8, Height: 8, Depth: 1}, State: device.StateShaderRead,
	}}
	g := irtest.Graph(t, passes, imports)
	a := New(dev, nil)
	if err := a.Assign(context.Background(), g, []int{0}, "out", irtest.Sizes(64, 64)); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	env, ok := a.Texture("env")
	if !ok || !env.Imported || env.ID != envTex || env.Full != envView {
		t.Errorf("Texture(env) = %+v, %v", env, ok)
	}
	a.Release()
	if _, ok := dev.Texture(envTex); !ok {
		t.Error("Release destroyed an imported texture")
	}
}

func TestResize(t *testing.T) {
	passes := []ir.Pass{
		{Name: "blend", Type: ir.Graphics, TextureInputs: []string{"half", "lut"},
			ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "down", Type: ir.Graphics, ColorOutputs: []ir.Output{{Name: "half", Attachment: ir.Attachment{
			Format: device.FormatRGBA8Unorm, SizeName: irtest.Swapchain, Size: [3]float32{0.5, 0.5, 1}}}}},
		{Name: "bake", Type: ir.Graphics, ColorOutputs: []ir.Output{{Name: "lut", Attachment: ir.Attachment{
			Format: device.FormatRGBA8Unorm, Size: [3]float32{32, 32}}}}},
	}
	sizes := irtest.Sizes(800, 600)
	dev := noop.New()
	a, err := assign(t, dev, nil, passes, "out", sizes)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	defer a.Release()
	lut, _ := a.Texture("lut")

	sizes.Resize(irtest.Swapchain, 1024, 768)
	half, _ := a.Texture("half")
	stale, err := a.Stale(irtest.Swapchain)
	if err != nil {
		t.Fatalf("Stale() error = %v", err)
	}
	if want := []string{"half", "out"}; !slices.Equal(stale, want) {
		t.Errorf("Stale() = %v, want %v", stale, want)
	}
	if got, _ := a.Texture("half"); got.ID != half.ID {
		t.Error("Stale() recreated a texture")
	}

	names, err := a.Resize(context.Background(), irtest.Swapchain)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if want := []string{"half", "out"}; !slices.Equal(names, want) {
		t.Errorf("Resize() = %v, want %v", names, want)
	}
	if half, _ := a.Texture("half"); half.Desc.Extent != (device.Extent3D{Width: 512, Height: 384, Depth: 1}) {
		t.Errorf("half extent = %s", half.Desc.Extent)
	}
	if got, _ := a.Texture("lut"); got.ID != lut.ID {
		t.Error("absolute-size texture was recreated")
	}

	names, err = a.Resize(context.Background(), irtest.Swapchain)
	if err != nil || len(names) != 0 {
		t.Errorf("repeated Resize() = %v, %v, want nothing recreated", names, err)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Errorf("Violations() = %v", v)
	}
	if got := dev.Live(); got.Textures != 3 || got.Views != 9 {
		t.Errorf("Live() = %+v, want 3 textures with 3 views each", got)
	}
}

func TestResizeDeferredRecreatesAll(t *testing.T) {
	sizes := irtest.Sizes(640, 480)
	a, err := assign(t, noop.New(), nil, irtest.Deferred(), "output", sizes)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	defer a.Release()

	sizes.Resize(irtest.Swapchain, 1280, 720)
	names, err := a.Resize(context.Background(), irtest.Swapchain)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if want := []string{"albedo", "depth", "litColor", "output"}; !slices.Equal(names, want) {
		t.Errorf("Resize() = %v, want %v", names, want)
	}
}

func TestReleaseLeavesNothingLive(t *testing.T) {
	dev := noop.New()
	a, err := assign(t, dev, NewBudget(0), irtest.Deferred(), "output", irtest.Sizes(32, 32))
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	a.Release()
	if got := dev.Live(); got != (noop.Live{}) {
		t.Errorf("Live() = %+v, want zero", got)
	}
	if s := a.Stats(); s.UsedBytes != 0 || s.ResourceCount != 0 || s.PeakBytes == 0 {
		t.Errorf("Stats() = %+v", s)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Errorf("Violations() = %v", v)
	}
}
