// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"testing"

	"github.com/gogpu/rendergraph/backend/noop"
	"github.com/gogpu/rendergraph/device"
)

func newTestDevice(opts ...noop.Option) *noop.Device {
	return noop.New(opts...)
}

func swapchain(f device.Format) Attachment {
	return Attachment{Format: f, SizeName: "swapchain"}
}

func absolute(f device.Format, w, h float32) Attachment {
	return Attachment{Format: f, Size: [3]float32{w, h}}
}

// declareDeferred declares gbuffer, lighting and tonemap in reverse order
// so that the execution order comes from resolution.
func declareDeferred(t testing.TB, g *Graph) {
	t.Helper()
	if err := g.AddNamedSize("swapchain", Extent{Width: 64, Height: 32}); err != nil {
		t.Fatalf("AddNamedSize() error = %v", err)
	}
	g.AddRenderPass("tonemap", Compute).
		AddStorageTexture(StorageTexture{Name: "litColor", Access: AccessRead}).
		AddStorageTexture(StorageTexture{Name: "output", Access: AccessWrite, Attachment: swapchain(device.FormatRGBA8Unorm)})
	g.AddRenderPass("lighting", Compute).
		AddTextureInput("albedo").
		AddTextureInput("depth").
		AddStorageTexture(StorageTexture{Name: "litColor", Access: AccessWrite, Attachment: swapchain(device.FormatRGBA16Float)})
	g.AddRenderPass("gbuffer", Graphics).
		AddColorOutput("albedo", swapchain(device.FormatRGBA8Unorm)).
		SetDepthOutput("depth", swapchain(device.FormatDepth32Float))
	g.SetOutput("output")
}

// declareSubpassChain declares a gbuffer and a lighting pass that fuse
// through input attachments, and a present pass sampling the result.
func declareSubpassChain(t testing.TB, g *Graph) {
	t.Helper()
	if err := g.AddNamedSize("swapchain", Extent{Width: 64, Height: 32}); err != nil {
		t.Fatalf("AddNamedSize() error = %v", err)
	}
	g.AddRenderPass("present", Graphics).
		AddTextureInput("lit").
		AddColorOutput("final", swapchain(device.FormatBGRA8Unorm))
	g.AddRenderPass("lighting", Graphics).
		AddInputAttachment("albedo").
		AddInputAttachment("depth").
		AddColorOutput("lit", swapchain(device.FormatRGBA16Float))
	g.AddRenderPass("gbuffer", Graphics).
		AddColorOutput("albedo", swapchain(device.FormatRGBA8Unorm)).
		SetDepthOutput("depth", swapchain(device.FormatDepth32Float))
	g.SetOutput("final")
}

func mustBuild(t *testing.T, g *Graph) {
	t.Helper()
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(g.Destroy)
}

func mustExecute(t *testing.T, g *Graph, frames int) {
	t.Helper()
	for range frames {
		if _, err := g.Execute(false); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
}

func textureID(t *testing.T, g *Graph, name string) device.TextureID {
	t.Helper()
	id, err := Resources{g: g}.Texture(name)
	if err != nil {
		t.Fatalf("Texture(%q) error = %v", name, err)
	}
	return id
}

// stateOf returns the state the device tracks for a texture resource.
func stateOf(t *testing.T, dev *noop.Device, g *Graph, name string) device.State {
	t.Helper()
	tex, ok := dev.Texture(textureID(t, g, name))
	if !ok {
		t.Fatalf("texture %q is not live", name)
	}
	return tex.State
}

// checkSteadyState verifies that the device left every resource in the
// state the next frame's barriers start from.
func checkSteadyState(t *testing.T, dev *noop.Device, g *Graph) {
	t.Helper()
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("device violations: %v", v)
	}
	res := Resources{g: g}
	for name, seed := range g.Plan().SeedStates {
		if id, err := res.Buffer(name); err == nil {
			b, _ := dev.Buffer(id)
			if b.State != seed {
				t.Errorf("buffer %q is %s after the frame, next frame starts from %s", name, b.State, seed)
			}
			continue
		}
		if got := stateOf(t, dev, g, name); got != seed {
			t.Errorf("texture %q is %s after the frame, next frame starts from %s", name, got, seed)
		}
	}
}
