// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/rendergraph/device"
)

var textureFormats = [...]gputypes.TextureFormat{
	device.FormatUndefined:           gputypes.TextureFormatUndefined,
	device.FormatRGBA8Unorm:          gputypes.TextureFormatRGBA8Unorm,
	device.FormatRGBA8UnormSRGB:      gputypes.TextureFormatRGBA8UnormSrgb,
	device.FormatBGRA8Unorm:          gputypes.TextureFormatBGRA8Unorm,
	device.FormatBGRA8UnormSRGB:      gputypes.TextureFormatBGRA8UnormSrgb,
	device.FormatR8Unorm:             gputypes.TextureFormatR8Unorm,
	device.FormatR16Float:            gputypes.TextureFormatR16Float,
	device.FormatRG16Float:           gputypes.TextureFormatRG16Float,
	device.FormatRGBA16Float:         gputypes.TextureFormatRGBA16Float,
	device.FormatR32Float:            gputypes.TextureFormatR32Float,
	device.FormatRG32Float:           gputypes.TextureFormatRG32Float,
	device.FormatRGBA32Float:         gputypes.TextureFormatRGBA32Float,
	device.FormatR32Uint:             gputypes.TextureFormatR32Uint,
	device.FormatDepth16Unorm:        gputypes.TextureFormatDepth16Unorm,
	device.FormatDepth32Float:        gputypes.TextureFormatDepth32Float,
	device.FormatDepth24PlusStencil8: gputypes.TextureFormatDepth24PlusStencil8,
}

func textureFormat(f device.Format) gputypes.TextureFormat {
	if int(f) < len(textureFormats) {
		return textureFormats[f]
	}
	return gputypes.TextureFormatUndefined
}

func textureUsage(u device.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u.Has(device.TextureUsageTransferSrc) {
		out |= gputypes.TextureUsageCopySrc
	}
	if u.Has(device.TextureUsageTransferDst) {
		out |= gputypes.TextureUsageCopyDst
	}
	// Input attachments are sampled on portable APIs.
	if u.Has(device.TextureUsageSampled) || u.Has(device.TextureUsageInputAttachment) {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u.Has(device.TextureUsageStorage) {
		out |= gputypes.TextureUsageStorageBinding
	}
	if u.Has(device.TextureUsageColorAttachment) || u.Has(device.TextureUsageDepthAttachment) {
		out |= gputypes.TextureUsageRenderAttachment
	}
	return out
}

func bufferUsage(u device.BufferUsage) gputypes.BufferUsage {
	// Uploads go through the queue, so every buffer is a copy destination.
	out := gputypes.BufferUsageCopyDst
	if u.Has(device.BufferUsageTransferSrc) {
		out |= gputypes.BufferUsageCopySrc
	}
	if u.Has(device.BufferUsageUniform) {
		out |= gputypes.BufferUsageUniform
	}
	if u.Has(device.BufferUsageStorage) {
		out |= gputypes.BufferUsageStorage
	}
	if u.Has(device.BufferUsageVertex) {
		out |= gputypes.BufferUsageVertex
	}
	if u.Has(device.BufferUsageIndex) {
		out |= gputypes.BufferUsageIndex
	}
	if u.Has(device.BufferUsageIndirect) {
		out |= gputypes.BufferUsageIndirect
	}
	return out
}

// stateUsage maps an access state to the usage the HAL transitions between.
func stateUsage(s device.State) gputypes.TextureUsage {
	switch s {
	case device.StateColorAttachment, device.StateDepthAttachment:
		return gputypes.TextureUsageRenderAttachment
	case device.StateShaderRead, device.StateInputAttachment:
		return gputypes.TextureUsageTextureBinding
	case device.StateStorageRead, device.StateStorageWrite, device.StateStorageReadWrite:
		return gputypes.TextureUsageStorageBinding
	case device.StateTransferSrc:
		return gputypes.TextureUsageCopySrc
	case device.StateTransferDst:
		return gputypes.TextureUsageCopyDst
	}
	return 0
}

func bufferStateUsage(s device.State) gputypes.BufferUsage {
	switch s {
	case device.StateShaderRead:
		return gputypes.BufferUsageUniform
	case device.StateStorageRead, device.StateStorageWrite, device.StateStorageReadWrite:
		return gputypes.BufferUsageStorage
	case device.StateTransferSrc:
		return gputypes.BufferUsageCopySrc
	case device.StateTransferDst:
		return gputypes.BufferUsageCopyDst
	}
	return 0
}

func textureDimension(v device.ViewType) gputypes.TextureDimension {
	switch v {
	case device.ViewType1D, device.ViewType1DArray:
		return gputypes.TextureDimension1D
	case device.ViewType3D:
		return gputypes.TextureDimension3D
	}
	return gputypes.TextureDimension2D
}

func viewDimension(v device.ViewType) gputypes.TextureViewDimension {
	switch v {
	case device.ViewType1D:
		return gputypes.TextureViewDimension1D
	case device.ViewType3D:
		return gputypes.TextureViewDimension3D
	case device.ViewTypeCube:
		return gputypes.TextureViewDimensionCube
	case device.ViewType2DArray, device.ViewType1DArray:
		return gputypes.TextureViewDimension2DArray
	case device.ViewTypeCubeArray:
		return gputypes.TextureViewDimensionCubeArray
	}
	return gputypes.TextureViewDimension2D
}

func shaderStages(s device.ShaderStage) gputypes.ShaderStage {
	var out gputypes.ShaderStage
	if s&device.ShaderStageVertex != 0 {
		out |= gputypes.ShaderStageVertex
	}
	if s&device.ShaderStageFragment != 0 {
		out |= gputypes.ShaderStageFragment
	}
	if s&device.ShaderStageCompute != 0 {
		out |= gputypes.ShaderStageCompute
	}
	return out
}

func layoutEntry(e device.LayoutEntry) gputypes.BindGroupLayoutEntry {
	out := gputypes.BindGroupLayoutEntry{
		Binding:    e.Binding,
		Visibility: shaderStages(e.Stages),
	}
	switch e.Type {
	case device.DescriptorUniformBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	case device.DescriptorStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
	case device.DescriptorReadOnlyStorageBuffer:
		out.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	case device.DescriptorSampledTexture, device.DescriptorInputAttachment:
		out.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: viewDimension(e.ViewType),
		}
	case device.DescriptorStorageTexture:
		out.StorageTexture = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        textureFormat(e.Format),
			ViewDimension: viewDimension(e.ViewType),
		}
	case device.DescriptorSampler:
		out.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return out
}

var vertexFormats = [...]gputypes.VertexFormat{
	device.VertexFloat32:   gputypes.VertexFormatFloat32,
	device.VertexFloat32x2: gputypes.VertexFormatFloat32x2,
	device.VertexFloat32x3: gputypes.VertexFormatFloat32x3,
	device.VertexFloat32x4: gputypes.VertexFormatFloat32x4,
}

func vertexBuffers(layouts []device.VertexBufferLayout) []gputypes.VertexBufferLayout {
	out := make([]gputypes.VertexBufferLayout, len(layouts))
	for i, l := range layouts {
		attrs := make([]gputypes.VertexAttribute, len(l.Attributes))
		for j, a := range l.Attributes {
			attrs[j] = gputypes.VertexAttribute{
				Format:         vertexFormats[a.Format],
				Offset:         uint64(a.Offset),
				ShaderLocation: a.Location,
			}
		}
		out[i] = gputypes.VertexBufferLayout{
			ArrayStride: uint64(l.Stride),
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrs,
		}
	}
	return out
}

func cullMode(c device.CullMode) gputypes.CullMode {
	switch c {
	case device.CullBack:
		return gputypes.CullModeBack
	case device.CullFront:
		return gputypes.CullModeFront
	}
	return gputypes.CullModeNone
}

func addressMode(a device.AddressMode) gputypes.AddressMode {
	switch a {
	case device.AddressRepeat:
		return gputypes.AddressModeRepeat
	case device.AddressMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	}
	return gputypes.AddressModeClampToEdge
}

func filterMode(f device.Filter) gputypes.FilterMode {
	if f == device.FilterNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

func loadOp(op device.LoadOp) gputypes.LoadOp {
	if op == device.LoadOpClear {
		return gputypes.LoadOpClear
	}
	// DontCare loads; the HAL has no undefined-contents load.
	return gputypes.LoadOpLoad
}

func storeOp(op device.StoreOp) gputypes.StoreOp {
	if op == device.StoreOpDontCare {
		return gputypes.StoreOpDiscard
	}
	return gputypes.StoreOpStore
}

func indexFormat(f device.IndexFormat) gputypes.IndexFormat {
	if f == device.IndexFormatUint32 {
		return gputypes.IndexFormatUint32
	}
	return gputypes.IndexFormatUint16
}
