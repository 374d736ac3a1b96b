// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Label       string
	Format      Format
	Extent      Extent3D
	MipLevels   uint32
	ArrayLayers uint32
	Samples     uint32
	ViewType    ViewType
	Usage       TextureUsage
}

// ViewDesc describes a view over a texture.
type ViewDesc struct {
	Label    string
	Format   Format
	ViewType ViewType
	Range    SubresourceRange
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Filter is a sampler filtering mode.
type Filter uint8

// Filters.
const (
	FilterLinear Filter = iota
	FilterNearest
)

// AddressMode is a sampler addressing mode.
type AddressMode uint8

// Address modes.
const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
	AddressMirrorRepeat
)

// SamplerDesc describes a sampler.
type SamplerDesc struct {
	Label   string
	Filter  Filter
	Address AddressMode
	MaxLod  float32
}

// ShaderStage is a bitmask of shader stages.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 1 << 0
	ShaderStageFragment ShaderStage = 1 << 1
	ShaderStageCompute  ShaderStage = 1 << 2
)

// ShaderDesc describes a shader module. Exactly one of WGSL and SPIRV is set;
// backends that consume SPIR-V compile WGSL on the fly.
type ShaderDesc struct {
	Label string
	WGSL  string
	SPIRV []uint32
}

// DescriptorType is the kind of a descriptor binding.
type DescriptorType uint8

// Descriptor types.
const (
	DescriptorUniformBuffer DescriptorType = iota
	DescriptorStorageBuffer
	DescriptorReadOnlyStorageBuffer
	DescriptorSampledTexture
	DescriptorStorageTexture
	DescriptorSampler
	DescriptorInputAttachment
)

// LayoutEntry is one binding of a descriptor layout. Format and ViewType
// describe storage textures on backends that fix them in the layout.
type LayoutEntry struct {
	Binding  uint32
	Type     DescriptorType
	Stages   ShaderStage
	Count    uint32
	Format   Format
	ViewType ViewType
}

// DescriptorEntry binds a resource to one slot of a descriptor set. The
// fields used depend on the layout entry type.
type DescriptorEntry struct {
	Binding uint32
	Buffer  BufferID
	Offset  uint64
	Size    uint64
	View    ViewID
	Sampler SamplerID
	// State is the state the view is in while bound.
	State State
}

// VertexFormat is the type of a vertex attribute.
type VertexFormat uint8

// Vertex formats.
const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
)

// VertexAttribute is one attribute inside a vertex buffer.
type VertexAttribute struct {
	Location uint32
	Offset   uint32
	Format   VertexFormat
}

// VertexBufferLayout describes one bound vertex buffer.
type VertexBufferLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// CullMode selects face culling.
type CullMode uint8

// Cull modes.
const (
	CullNone CullMode = iota
	CullBack
	CullFront
)

// GraphicsPipelineDesc describes a graphics pipeline. RenderTarget and
// Subpass tie the pipeline to a subpass on backends with native subpasses.
type GraphicsPipelineDesc struct {
	Label            string
	Layouts          []DescriptorLayoutID
	PushConstantSize uint32

	Vertex        ShaderModuleID
	VertexEntry   string
	Fragment      ShaderModuleID
	FragmentEntry string
	VertexBuffers []VertexBufferLayout

	ColorFormats []Format
	DepthFormat  Format
	DepthTest    bool
	DepthWrite   bool
	CullMode     CullMode
	Samples      uint32

	RenderTarget RenderTargetID
	Subpass      uint32
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Label            string
	Layouts          []DescriptorLayoutID
	PushConstantSize uint32
	Module           ShaderModuleID
	EntryPoint       string
}

// LoadOp is the attachment load operation at the start of a render target.
type LoadOp uint8

// Load operations.
const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp is the attachment store operation at the end of a render target.
type StoreOp uint8

// Store operations.
const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// ClearValue is the clear color or depth/stencil of an attachment.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// AttachmentDesc is one attachment of a render target. Initial and Final
// are the states the attachment is in before and after the render target.
type AttachmentDesc struct {
	Texture TextureID
	View    ViewID
	Format  Format
	Samples uint32
	Load    LoadOp
	Store   StoreOp
	Initial State
	Final   State
	Clear   ClearValue
}

// SubpassDesc references attachments by index. DepthAttachment is -1 when
// the subpass has no depth attachment.
type SubpassDesc struct {
	ColorAttachments []int
	DepthAttachment  int
	InputAttachments []int
}

// RenderTargetDesc describes a render target for a pass-group.
type RenderTargetDesc struct {
	Label       string
	Width       uint32
	Height      uint32
	Layers      uint32
	Attachments []AttachmentDesc
	Subpasses   []SubpassDesc
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffers []CommandBufferID
	Wait           []SemaphoreID
	Signal         []SemaphoreID
	// Fence is signaled when the submission completes. InvalidID means none.
	Fence FenceID
}

// Viewport is a floating point viewport transform.
type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Rect is an integer scissor rectangle.
type Rect struct {
	X, Y          int32
	Width, Height uint32
}

// BufferCopy is one region of a buffer-to-buffer copy.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferTextureCopy is one region of a buffer-to-texture copy.
type BufferTextureCopy struct {
	BufferOffset uint64
	BytesPerRow  uint32
	RowsPerImage uint32
	Mip          uint32
	Layer        uint32
	Extent       Extent3D
}
