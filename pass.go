// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"slices"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
)

// PipelineType is the pipeline category of a pass.
type PipelineType = ir.PipelineType

// Pipeline categories.
const (
	Graphics = ir.Graphics
	Compute  = ir.Compute
	General  = ir.General
)

// Access is the capability of a storage binding.
type Access = ir.Access

// Storage access modes.
const (
	AccessRead      = ir.AccessRead
	AccessWrite     = ir.AccessWrite
	AccessReadWrite = ir.AccessReadWrite
)

// Attachment describes the physical shape of a texture resource. When
// SizeName is empty Size holds absolute texel counts; otherwise Size holds
// multipliers of the named size, and zero multipliers mean 1.
type Attachment = ir.Attachment

// StorageTexture is a storage image binding of a pass.
type StorageTexture = ir.StorageTexture

// StorageBuffer is a storage buffer binding of a pass.
type StorageBuffer = ir.StorageBuffer

// Extent is a texture extent in texels.
type Extent = device.Extent3D

// PassDescriptor declares one pass of a graph. Methods return the
// descriptor for chaining. Once the graph is built the descriptor is
// frozen: further calls are ignored and Err reports ErrGraphBuilt.
type PassDescriptor struct {
	graph *Graph
	pass  ir.Pass
	err   error

	init     func(*InitContext) error
	describe func(*DescriptorContext) error
	render   func(*RenderContext) error
}

// Name returns the pass name.
func (p *PassDescriptor) Name() string { return p.pass.Name }

// Type returns the pipeline category.
func (p *PassDescriptor) Type() PipelineType { return p.pass.Type }

// Err returns the first error raised while declaring the pass.
func (p *PassDescriptor) Err() error { return p.err }

func (p *PassDescriptor) frozen() bool {
	if p.graph.built {
		if p.err == nil {
			p.err = ErrGraphBuilt
		}
		return true
	}
	return false
}

// AddColorOutput declares a color attachment written by the pass.
func (p *PassDescriptor) AddColorOutput(name string, a Attachment) *PassDescriptor {
	if !p.frozen() {
		p.pass.ColorOutputs = append(p.pass.ColorOutputs, ir.Output{Name: name, Attachment: a})
	}
	return p
}

// SetDepthOutput declares the depth attachment written by the pass.
func (p *PassDescriptor) SetDepthOutput(name string, a Attachment) *PassDescriptor {
	if !p.frozen() {
		p.pass.DepthOutput = &ir.Output{Name: name, Attachment: a}
	}
	return p
}

// AddTextureInput declares a sampled read.
func (p *PassDescriptor) AddTextureInput(name string) *PassDescriptor {
	if !p.frozen() {
		p.pass.TextureInputs = append(p.pass.TextureInputs, name)
	}
	return p
}

// AddInputAttachment declares an input attachment read. Input attachments
// let a graphics pass be fused with the pass that writes the resource.
func (p *PassDescriptor) AddInputAttachment(name string) *PassDescriptor {
	if !p.frozen() {
		p.pass.InputAttachments = append(p.pass.InputAttachments, name)
	}
	return p
}

// AddStorageTexture declares a storage image binding. A write binding
// declares the resource and must describe it in b.Attachment.
func (p *PassDescriptor) AddStorageTexture(b StorageTexture) *PassDescriptor {
	if !p.frozen() {
		p.pass.StorageTextures = append(p.pass.StorageTextures, b)
	}
	return p
}

// AddStorageBuffer declares a storage buffer binding. A write binding
// declares the resource and must set b.Size.
func (p *PassDescriptor) AddStorageBuffer(b StorageBuffer) *PassDescriptor {
	if !p.frozen() {
		p.pass.StorageBuffers = append(p.pass.StorageBuffers, b)
	}
	return p
}

// SetInit sets the callback run once the pass's render target exists, and
// again whenever a resize recreates it.
func (p *PassDescriptor) SetInit(fn func(*InitContext) error) *PassDescriptor {
	if !p.frozen() {
		p.init = fn
	}
	return p
}

// SetDescriptorUpdate sets the callback run after resources are assigned,
// and again whenever a resize recreates a resource the pass references.
func (p *PassDescriptor) SetDescriptorUpdate(fn func(*DescriptorContext) error) *PassDescriptor {
	if !p.frozen() {
		p.describe = fn
	}
	return p
}

// SetRender sets the callback recording the pass every frame.
func (p *PassDescriptor) SetRender(fn func(*RenderContext) error) *PassDescriptor {
	if !p.frozen() {
		p.render = fn
	}
	return p
}

// SetCallbacks installs whichever of Initializer, DescriptorUpdater and
// Renderer v implements.
func (p *PassDescriptor) SetCallbacks(v any) *PassDescriptor {
	if i, ok := v.(Initializer); ok {
		p.SetInit(i.Init)
	}
	if d, ok := v.(DescriptorUpdater); ok {
		p.SetDescriptorUpdate(d.UpdateDescriptors)
	}
	if r, ok := v.(Renderer); ok {
		p.SetRender(r.Render)
	}
	return p
}

// snapshot returns a copy of the declaration that shares no slices with
// the descriptor.
func (p *PassDescriptor) snapshot() ir.Pass {
	c := p.pass
	c.ColorOutputs = slices.Clone(p.pass.ColorOutputs)
	c.TextureInputs = slices.Clone(p.pass.TextureInputs)
	c.InputAttachments = slices.Clone(p.pass.InputAttachments)
	c.StorageTextures = slices.Clone(p.pass.StorageTextures)
	c.StorageBuffers = slices.Clone(p.pass.StorageBuffers)
	return c
}

// references reports whether the pass binds any of names.
func (p *PassDescriptor) references(names map[string]bool) bool {
	for _, r := range p.pass.Reads() {
		if names[r.Name] {
			return true
		}
	}
	for _, w := range p.pass.Writes() {
		if names[w.Name] {
			return true
		}
	}
	return false
}
