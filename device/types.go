// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU objects. Each backend maintains a mapping
// between IDs and native objects. IDs are uint64 to accommodate any native
// handle size.

// TextureID is an opaque handle to a texture (image).
type TextureID uint64

// ViewID is an opaque handle to a texture view.
type ViewID uint64

// BufferID is an opaque handle to a buffer.
type BufferID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// DescriptorLayoutID is an opaque handle to a descriptor set layout.
type DescriptorLayoutID uint64

// DescriptorSetID is an opaque handle to a descriptor set.
type DescriptorSetID uint64

// PipelineID is an opaque handle to a graphics or compute pipeline.
type PipelineID uint64

// RenderTargetID is an opaque handle to a render target (render pass plus
// framebuffer on explicit APIs).
type RenderTargetID uint64

// CommandPoolID is an opaque handle to a command pool.
type CommandPoolID uint64

// CommandBufferID is an opaque handle to a command buffer.
type CommandBufferID uint64

// FenceID is an opaque handle to a CPU-waitable fence.
type FenceID uint64

// SemaphoreID is an opaque handle to a GPU-GPU semaphore.
type SemaphoreID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// MaxPushConstantSize is the largest push constant block a recorder accepts.
const MaxPushConstantSize = 128

// Extent3D is a width/height/depth triple in texels.
type Extent3D struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// String returns the extent as WxHxD.
func (e Extent3D) String() string {
	return fmt.Sprintf("%dx%dx%d", e.Width, e.Height, e.Depth)
}

// Mip returns the extent of mip level n, clamped to at least one texel.
func (e Extent3D) Mip(n uint32) Extent3D {
	shrink := func(v uint32) uint32 {
		v >>= n
		if v == 0 {
			return 1
		}
		return v
	}
	return Extent3D{Width: shrink(e.Width), Height: shrink(e.Height), Depth: shrink(e.Depth)}
}

// QueueType selects the queue category a submission targets.
type QueueType uint8

// Queue categories.
const (
	QueueGraphics QueueType = iota
	QueueCompute
	QueueTransfer
)

// String returns the queue category name.
func (q QueueType) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	case QueueTransfer:
		return "transfer"
	default:
		return fmt.Sprintf("QueueType(%d)", q)
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageTransferSrc indicates the texture can be a copy or blit source.
	TextureUsageTransferSrc TextureUsage = 1 << 0

	// TextureUsageTransferDst indicates the texture can be a copy or blit destination.
	TextureUsageTransferDst TextureUsage = 1 << 1

	// TextureUsageSampled indicates the texture can be bound as a sampled texture.
	TextureUsageSampled TextureUsage = 1 << 2

	// TextureUsageStorage indicates the texture can be bound as a storage texture.
	TextureUsageStorage TextureUsage = 1 << 3

	// TextureUsageColorAttachment indicates the texture can be a color attachment.
	TextureUsageColorAttachment TextureUsage = 1 << 4

	// TextureUsageDepthAttachment indicates the texture can be a depth/stencil attachment.
	TextureUsageDepthAttachment TextureUsage = 1 << 5

	// TextureUsageInputAttachment indicates the texture can be read as an input attachment.
	TextureUsageInputAttachment TextureUsage = 1 << 6
)

// Has reports whether all bits of flag are set.
func (u TextureUsage) Has(flag TextureUsage) bool { return u&flag == flag }

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageTransferSrc BufferUsage = 1 << 0
	BufferUsageTransferDst BufferUsage = 1 << 1
	BufferUsageUniform     BufferUsage = 1 << 2
	BufferUsageStorage     BufferUsage = 1 << 3
	BufferUsageVertex      BufferUsage = 1 << 4
	BufferUsageIndex       BufferUsage = 1 << 5
	BufferUsageIndirect    BufferUsage = 1 << 6
	// BufferUsageHostVisible requests CPU-writable memory.
	BufferUsageHostVisible BufferUsage = 1 << 7
)

// Has reports whether all bits of flag are set.
func (u BufferUsage) Has(flag BufferUsage) bool { return u&flag == flag }

// ViewType is the dimensionality of a texture view.
type ViewType uint8

// View types.
const (
	ViewType2D ViewType = iota
	ViewType1D
	ViewType3D
	ViewTypeCube
	ViewType1DArray
	ViewType2DArray
	ViewTypeCubeArray
)

var viewTypeNames = [...]string{"2d", "1d", "3d", "cube", "1d-array", "2d-array", "cube-array"}

// String returns the view type name.
func (v ViewType) String() string {
	if int(v) < len(viewTypeNames) {
		return viewTypeNames[v]
	}
	return fmt.Sprintf("ViewType(%d)", v)
}

// ParseViewType is the inverse of [ViewType.String].
func ParseViewType(s string) (ViewType, bool) {
	for i, n := range viewTypeNames {
		if n == s {
			return ViewType(i), true
		}
	}
	return 0, false
}

// IsCube reports whether the view addresses cube faces.
func (v ViewType) IsCube() bool { return v == ViewTypeCube || v == ViewTypeCubeArray }

// IndexFormat is the element type of an index buffer.
type IndexFormat uint8

// Index formats.
const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Capabilities describes optional features of a backend.
type Capabilities struct {
	// Subpasses reports native multi-subpass render passes. Without it,
	// fused groups are replayed as consecutive render passes.
	Subpasses bool

	// MipGeneration reports support for [CommandRecorder.GenerateMips].
	MipGeneration bool

	// MaxPushConstantSize is the largest push constant block in bytes.
	MaxPushConstantSize uint32

	// MaxFramesInFlight bounds the n-buffering depth the backend accepts.
	MaxFramesInFlight int
}
