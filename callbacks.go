// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/alloc"
)

// Initializer is implemented by pass callbacks that create pipelines and
// other objects tied to the pass's render target.
type Initializer interface {
	Init(ctx *InitContext) error
}

// DescriptorUpdater is implemented by pass callbacks that bind the pass's
// resources into descriptor sets.
type DescriptorUpdater interface {
	UpdateDescriptors(ctx *DescriptorContext) error
}

// Renderer is implemented by pass callbacks that record commands.
type Renderer interface {
	Render(ctx *RenderContext) error
}

// Resources looks up the physical resources of a built graph.
type Resources struct {
	g *Graph
}

func (r Resources) texture(name string) (*alloc.Texture, error) {
	t, ok := r.g.alloc.Texture(name)
	if !ok {
		return nil, fmt.Errorf("rendergraph: no texture %q", name)
	}
	return t, nil
}

// Texture returns the texture backing name.
func (r Resources) Texture(name string) (device.TextureID, error) {
	t, err := r.texture(name)
	if err != nil {
		return device.InvalidID, err
	}
	return t.ID, nil
}

// View returns the view of every mip and layer of name.
func (r Resources) View(name string) (device.ViewID, error) {
	t, err := r.texture(name)
	if err != nil {
		return device.InvalidID, err
	}
	return t.Full, nil
}

// MipView returns the view of one mip level, all layers.
func (r Resources) MipView(name string, mip uint32) (device.ViewID, error) {
	t, err := r.texture(name)
	if err != nil {
		return device.InvalidID, err
	}
	if int(mip) >= len(t.Mips) {
		return device.InvalidID, fmt.Errorf("rendergraph: texture %q has %d mips", name, len(t.Mips))
	}
	return t.Mips[mip], nil
}

// LayerView returns the view of one array layer, all mips.
func (r Resources) LayerView(name string, layer uint32) (device.ViewID, error) {
	t, err := r.texture(name)
	if err != nil {
		return device.InvalidID, err
	}
	if int(layer) >= len(t.Layers) {
		return device.InvalidID, fmt.Errorf("rendergraph: texture %q has %d layers", name, len(t.Layers))
	}
	return t.Layers[layer], nil
}

// Format returns the format of texture name.
func (r Resources) Format(name string) (device.Format, error) {
	t, err := r.texture(name)
	if err != nil {
		return device.FormatUndefined, err
	}
	return t.Desc.Format, nil
}

// Buffer returns the buffer backing name.
func (r Resources) Buffer(name string) (device.BufferID, error) {
	b, ok := r.g.alloc.Buffer(name)
	if !ok {
		return device.InvalidID, fmt.Errorf("rendergraph: no buffer %q", name)
	}
	return b.ID, nil
}

// InitContext is passed to init callbacks.
type InitContext struct {
	Resources
	Device device.Device
	Pass   string
	// RenderTarget and Subpass locate the pass inside its group's render
	// target. RenderTarget is InvalidID for compute and general passes.
	RenderTarget device.RenderTargetID
	Subpass      uint32
	// ColorFormats and DepthFormat describe the pass's attachments for
	// pipeline creation.
	ColorFormats []device.Format
	DepthFormat  device.Format
	Samples      uint32
}

// DescriptorContext is passed to descriptor-update callbacks.
type DescriptorContext struct {
	Resources
	Device device.Device
	Pass   string
}

// RenderContext is passed to render callbacks every frame.
type RenderContext struct {
	Resources
	Device   device.Device
	Recorder device.CommandRecorder
	Pass     string
	Subpass  uint32
	// Frame counts executed frames; Slot is Frame modulo the frames in
	// flight.
	Frame uint64
	Slot  int
	// Extent is the render target extent of graphics passes.
	Extent Extent
}
