// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/gogpu/rendergraph/device"
)

var formats = [...]core1_0.Format{
	device.FormatUndefined:           core1_0.FormatUndefined,
	device.FormatRGBA8Unorm:          core1_0.FormatR8G8B8A8UnsignedNormalized,
	device.FormatRGBA8UnormSRGB:      core1_0.FormatR8G8B8A8SRGB,
	device.FormatBGRA8Unorm:          core1_0.FormatB8G8R8A8UnsignedNormalized,
	device.FormatBGRA8UnormSRGB:      core1_0.FormatB8G8R8A8SRGB,
	device.FormatR8Unorm:             core1_0.FormatR8UnsignedNormalized,
	device.FormatR16Float:            core1_0.FormatR16SignedFloat,
	device.FormatRG16Float:           core1_0.FormatR16G16SignedFloat,
	device.FormatRGBA16Float:         core1_0.FormatR16G16B16A16SignedFloat,
	device.FormatR32Float:            core1_0.FormatR32SignedFloat,
	device.FormatRG32Float:           core1_0.FormatR32G32SignedFloat,
	device.FormatRGBA32Float:         core1_0.FormatR32G32B32A32SignedFloat,
	device.FormatR32Uint:             core1_0.FormatR32UnsignedInt,
	device.FormatDepth16Unorm:        core1_0.FormatD16UnsignedNormalized,
	device.FormatDepth32Float:        core1_0.FormatD32SignedFloat,
	device.FormatDepth24PlusStencil8: core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

func vkFormat(f device.Format) core1_0.Format {
	if int(f) < len(formats) {
		return formats[f]
	}
	return core1_0.FormatUndefined
}

func aspect(f device.Format) core1_0.ImageAspectFlags {
	switch {
	case f.HasStencil():
		return core1_0.ImageAspectDepth | core1_0.ImageAspectStencil
	case f.IsDepth():
		return core1_0.ImageAspectDepth
	}
	return core1_0.ImageAspectColor
}

// access is the native synchronization scope of a State.
type access struct {
	layout core1_0.ImageLayout
	mask   core1_0.AccessFlags
	stages core1_0.PipelineStageFlags
}

const shaderStages = core1_0.PipelineStageVertexShader | core1_0.PipelineStageFragmentShader | core1_0.PipelineStageComputeShader

var states = [...]access{
	device.StateUndefined: {core1_0.ImageLayoutUndefined, 0, core1_0.PipelineStageTopOfPipe},
	device.StateColorAttachment: {core1_0.ImageLayoutColorAttachmentOptimal,
		core1_0.AccessColorAttachmentRead | core1_0.AccessColorAttachmentWrite,
		core1_0.PipelineStageColorAttachmentOutput},
	device.StateDepthAttachment: {core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		core1_0.PipelineStageEarlyFragmentTests | core1_0.PipelineStageLateFragmentTests},
	device.StateShaderRead: {core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.AccessShaderRead, shaderStages},
	device.StateInputAttachment: {core1_0.ImageLayoutShaderReadOnlyOptimal, core1_0.AccessInputAttachmentRead,
		core1_0.PipelineStageFragmentShader},
	device.StateStorageRead:      {core1_0.ImageLayoutGeneral, core1_0.AccessShaderRead, shaderStages},
	device.StateStorageWrite:     {core1_0.ImageLayoutGeneral, core1_0.AccessShaderWrite, shaderStages},
	device.StateStorageReadWrite: {core1_0.ImageLayoutGeneral, core1_0.AccessShaderRead | core1_0.AccessShaderWrite, shaderStages},
	device.StateTransferSrc:      {core1_0.ImageLayoutTransferSrcOptimal, core1_0.AccessTransferRead, core1_0.PipelineStageTransfer},
	device.StateTransferDst:      {core1_0.ImageLayoutTransferDstOptimal, core1_0.AccessTransferWrite, core1_0.PipelineStageTransfer},
}

func stateAccess(s device.State) access {
	if int(s) < len(states) {
		return states[s]
	}
	return states[device.StateUndefined]
}

func imageUsage(u device.TextureUsage) core1_0.ImageUsageFlags {
	var out core1_0.ImageUsageFlags
	if u.Has(device.TextureUsageTransferSrc) {
		out |= core1_0.ImageUsageTransferSrc
	}
	if u.Has(device.TextureUsageTransferDst) {
		out |= core1_0.ImageUsageTransferDst
	}
	if u.Has(device.TextureUsageSampled) {
		out |= core1_0.ImageUsageSampled
	}
	if u.Has(device.TextureUsageStorage) {
		out |= core1_0.ImageUsageStorage
	}
	if u.Has(device.TextureUsageColorAttachment) {
		out |= core1_0.ImageUsageColorAttachment
	}
	if u.Has(device.TextureUsageDepthAttachment) {
		out |= core1_0.ImageUsageDepthStencilAttachment
	}
	if u.Has(device.TextureUsageInputAttachment) {
		out |= core1_0.ImageUsageInputAttachment
	}
	return out
}

func bufferUsage(u device.BufferUsage) core1_0.BufferUsageFlags {
	out := core1_0.BufferUsageTransferDst
	if u.Has(device.BufferUsageTransferSrc) {
		out |= core1_0.BufferUsageTransferSrc
	}
	if u.Has(device.BufferUsageUniform) {
		out |= core1_0.BufferUsageUniformBuffer
	}
	if u.Has(device.BufferUsageStorage) {
		out |= core1_0.BufferUsageStorageBuffer
	}
	if u.Has(device.BufferUsageVertex) {
		out |= core1_0.BufferUsageVertexBuffer
	}
	if u.Has(device.BufferUsageIndex) {
		out |= core1_0.BufferUsageIndexBuffer
	}
	if u.Has(device.BufferUsageIndirect) {
		out |= core1_0.BufferUsageIndirectBuffer
	}
	return out
}

func imageType(v device.ViewType) core1_0.ImageType {
	switch v {
	case device.ViewType1D, device.ViewType1DArray:
		return core1_0.ImageType1D
	case device.ViewType3D:
		return core1_0.ImageType3D
	}
	return core1_0.ImageType2D
}

func viewType(v device.ViewType) core1_0.ImageViewType {
	switch v {
	case device.ViewType1D:
		return core1_0.ImageViewType1D
	case device.ViewType3D:
		return core1_0.ImageViewType3D
	case device.ViewTypeCube:
		return core1_0.ImageViewTypeCube
	case device.ViewType1DArray:
		return core1_0.ImageViewType1DArray
	case device.ViewType2DArray:
		return core1_0.ImageViewType2DArray
	case device.ViewTypeCubeArray:
		return core1_0.ImageViewTypeCubeArray
	}
	return core1_0.ImageViewType2D
}

func samples(n uint32) core1_0.SampleCountFlags {
	switch n {
	case 2:
		return core1_0.Samples2
	case 4:
		return core1_0.Samples4
	case 8:
		return core1_0.Samples8
	case 16:
		return core1_0.Samples16
	}
	return core1_0.Samples1
}

var descriptorTypes = [...]core1_0.DescriptorType{
	device.DescriptorUniformBuffer:         core1_0.DescriptorTypeUniformBuffer,
	device.DescriptorStorageBuffer:         core1_0.DescriptorTypeStorageBuffer,
	device.DescriptorReadOnlyStorageBuffer: core1_0.DescriptorTypeStorageBuffer,
	device.DescriptorSampledTexture:        core1_0.DescriptorTypeSampledImage,
	device.DescriptorStorageTexture:        core1_0.DescriptorTypeStorageImage,
	device.DescriptorSampler:               core1_0.DescriptorTypeSampler,
	device.DescriptorInputAttachment:       core1_0.DescriptorTypeInputAttachment,
}

func shaderStageFlags(s device.ShaderStage) core1_0.ShaderStageFlags {
	var out core1_0.ShaderStageFlags
	if s&device.ShaderStageVertex != 0 {
		out |= core1_0.StageVertex
	}
	if s&device.ShaderStageFragment != 0 {
		out |= core1_0.StageFragment
	}
	if s&device.ShaderStageCompute != 0 {
		out |= core1_0.StageCompute
	}
	return out
}

var vertexFormats = [...]core1_0.Format{
	device.VertexFloat32:   core1_0.FormatR32SignedFloat,
	device.VertexFloat32x2: core1_0.FormatR32G32SignedFloat,
	device.VertexFloat32x3: core1_0.FormatR32G32B32SignedFloat,
	device.VertexFloat32x4: core1_0.FormatR32G32B32A32SignedFloat,
}

func loadOp(op device.LoadOp) core1_0.AttachmentLoadOp {
	switch op {
	case device.LoadOpClear:
		return core1_0.AttachmentLoadOpClear
	case device.LoadOpDontCare:
		return core1_0.AttachmentLoadOpDontCare
	}
	return core1_0.AttachmentLoadOpLoad
}

func storeOp(op device.StoreOp) core1_0.AttachmentStoreOp {
	if op == device.StoreOpDontCare {
		return core1_0.AttachmentStoreOpDontCare
	}
	return core1_0.AttachmentStoreOpStore
}

func cullMode(c device.CullMode) core1_0.CullModeFlags {
	switch c {
	case device.CullBack:
		return core1_0.CullModeBack
	case device.CullFront:
		return core1_0.CullModeFront
	}
	return core1_0.CullModeNone
}

func addressMode(a device.AddressMode) core1_0.SamplerAddressMode {
	switch a {
	case device.AddressRepeat:
		return core1_0.SamplerAddressModeRepeat
	case device.AddressMirrorRepeat:
		return core1_0.SamplerAddressModeMirroredRepeat
	}
	return core1_0.SamplerAddressModeClampToEdge
}

func filter(f device.Filter) (core1_0.Filter, core1_0.SamplerMipmapMode) {
	if f == device.FilterNearest {
		return core1_0.FilterNearest, core1_0.SamplerMipmapModeNearest
	}
	return core1_0.FilterLinear, core1_0.SamplerMipmapModeLinear
}

func indexType(f device.IndexFormat) core1_0.IndexType {
	if f == device.IndexFormatUint32 {
		return core1_0.IndexTypeUInt32
	}
	return core1_0.IndexTypeUInt16
}

// remaining resolves a zero count to every level or layer past base.
func remaining(count, base, total uint32) int {
	if count == 0 {
		return int(max(total, 1) - min(base, max(total, 1)))
	}
	return int(count)
}
