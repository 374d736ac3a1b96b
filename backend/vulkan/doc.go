// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vulkan implements device.Device directly on Vulkan 1.2 through
// vkngwrapper.
//
// Fused pass groups become native render passes with one subpass per
// pass, so attachments written by one pass are read as input attachments
// by the next without leaving tile memory. Graphics pipelines are bound
// to the render pass of their group and must name it in
// GraphicsPipelineDesc.RenderTarget.
//
// Shader modules accept SPIR-V or WGSL; WGSL is translated with naga and
// cached by source. Every texture and buffer owns its device memory.
// Buffers live in host-visible coherent memory and WriteBuffer maps
// them directly.
//
// Importing the package registers the "vulkan" backend:
//
//	import _ "github.com/gogpu/rendergraph/backend/vulkan"
package vulkan
