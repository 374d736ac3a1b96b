// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package irtest provides graph fixtures for tests of the compiler stages.
package irtest

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
)

// Swapchain is the named size the fixtures are relative to.
const Swapchain = "swapchain"

// Color returns a full-swapchain color output.
func Color(name string, f device.Format) ir.Output {
	return ir.Output{Name: name, Attachment: ir.Attachment{Format: f, SizeName: Swapchain}}
}

// Depth returns a full-swapchain depth output.
func Depth(name string) *ir.Output {
	return &ir.Output{Name: name, Attachment: ir.Attachment{Format: device.FormatDepth32Float, SizeName: Swapchain}}
}

// StorageOut returns a written full-swapchain storage texture.
func StorageOut(name string, f device.Format) ir.StorageTexture {
	return ir.StorageTexture{Name: name, Access: ir.AccessWrite, Attachment: ir.Attachment{Format: f, SizeName: Swapchain}}
}

// StorageIn returns a read-only storage texture binding.
func StorageIn(name string) ir.StorageTexture {
	return ir.StorageTexture{Name: name, Access: ir.AccessRead}
}

// Deferred returns the gbuffer, lighting and tonemap passes, declared in
// reverse so that ordering comes from the resolver and not from the
// declaration order.
func Deferred() []ir.Pass {
	return []ir.Pass{
		{
			Name:            "tonemap",
			Type:            ir.Compute,
			StorageTextures: []ir.StorageTexture{StorageIn("litColor"), StorageOut("output", device.FormatRGBA8Unorm)},
		},
		{
			Name:            "lighting",
			Type:            ir.Compute,
			TextureInputs:   []string{"albedo", "depth"},
			StorageTextures: []ir.StorageTexture{StorageOut("litColor", device.FormatRGBA16Float)},
		},
		{
			Name:         "gbuffer",
			Type:         ir.Graphics,
			ColorOutputs: []ir.Output{Color("albedo", device.FormatRGBA8Unorm)},
			DepthOutput:  Depth("depth"),
		},
	}
}

// Sizes returns a size table holding Swapchain at the given extent.
func Sizes(width, height uint32) *ir.SizeTable {
	s := ir.NewSizeTable()
	s.Add(Swapchain, device.Extent3D{Width: width, Height: height})
	return s
}

// Graph indexes passes and fails the test on error.
func Graph(t testing.TB, passes []ir.Pass, imports map[string]ir.Import) *ir.Graph {
	t.Helper()
	g, err := ir.NewGraph(passes, imports)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}
	return g
}

// Names maps pass indices to names.
func Names(g *ir.Graph, idx []int) []string {
	out := make([]string, len(idx))
	for i, p := range idx {
		out[i] = g.Passes[p].Name
	}
	return out
}

// Index returns the pass index of name and fails the test if it is missing.
func Index(t testing.TB, g *ir.Graph, name string) int {
	t.Helper()
	i, ok := g.PassIndex(name)
	if !ok {
		t.Fatalf("pass %q not found", name)
	}
	return i
}

// RandomDAG returns n graphics passes where pass i reads outputs of passes
// declared after it, either sampled or as input attachments. Pass 0
// writes "r0" and every edge points to a higher index.
func RandomDAG(rng *rand.Rand, n int) []ir.Pass {
	passes := make([]ir.Pass, n)
	for i := range passes {
		passes[i] = ir.Pass{
			Name:         fmt.Sprintf("p%d", i),
			Type:         ir.Graphics,
			ColorOutputs: []ir.Output{Color(fmt.Sprintf("r%d", i), device.FormatRGBA8Unorm)},
		}
		for j := i + 1; j < n; j++ {
			switch rng.IntN(6) {
			case 0:
				passes[i].TextureInputs = append(passes[i].TextureInputs, fmt.Sprintf("r%d", j))
			case 1:
				passes[i].InputAttachments = append(passes[i].InputAttachments, fmt.Sprintf("r%d", j))
			}
		}
	}
	return passes
}
