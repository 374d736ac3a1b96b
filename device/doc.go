// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device defines the capability surface a render graph needs from a
// GPU backend.
//
// The render graph is written once against [Device] and [CommandRecorder].
// Each backend translates these calls into its native API:
//
//	               +-------------------+
//	               |    rendergraph    |
//	               | (resolve, schedule|
//	               |  alloc, barriers) |
//	               +---------+---------+
//	                         |
//	        +----------------+----------------+
//	        |                |                |
//	+-------v------+ +-------v------+ +-------v------+
//	|backend/vulkan| | backend/hal  | | backend/noop |
//	| (vkngwrapper)| | (gogpu/wgpu) | |  (recorder)  |
//	+--------------+ +--------------+ +--------------+
//
// # Resource Handles
//
// Resources are referenced through opaque IDs ([TextureID], [ViewID],
// [BufferID], ...). The zero value [InvalidID] never names a live resource.
// Backends keep the mapping between IDs and native objects.
//
// # Resource States
//
// Synchronization is expressed with abstract [State] values instead of
// native layouts or access masks. A [TextureBarrier] moves a subresource
// range from one state to another; backends derive layouts, access masks
// and pipeline stages from the pair.
//
// # Render Targets
//
// A [RenderTargetDesc] bundles the attachments of one scheduled pass-group
// and its subpasses. On explicit APIs it maps to a render pass plus a
// framebuffer; on portable APIs it maps to a sequence of render passes.
package device
