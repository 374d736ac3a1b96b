// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hal implements the render graph device contract on top of the
// gogpu/wgpu hardware abstraction layer.
//
// The HAL has no multi-subpass render passes: a fused pass-group is
// replayed as consecutive render passes, one per subpass, with the
// transitions between subpasses issued as texture barriers and input
// attachments bound as sampled textures. Mip chains are generated with a
// downsampling render pass per level.
//
// A device can wrap a HAL device owned by the application:
//
//	dev, err := hal.NewFromProvider(provider)
//
// or be opened through the backend registry after importing this package:
//
//	import _ "github.com/gogpu/rendergraph/backend/hal"
//
//	dev, err := backend.Open(backend.BackendHAL)
package hal
