// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides a registry of device backends for the render
// graph.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Import a backend package for its side effect to make it available:
//
//	import _ "github.com/gogpu/rendergraph/backend/hal"
//
// # Backend Selection
//
// Use Default to open the best available backend, or Open to request a
// specific backend by name:
//
//	// Open the default (best available) backend
//	dev, err := backend.Default()
//
//	// Or request a specific backend
//	dev, err := backend.Open("noop")
//
// # Available Backends
//
//   - "vulkan": explicit API backend with native subpasses (backend/vulkan)
//   - "hal": portable backend over gogpu/wgpu HAL (backend/hal)
//   - "noop": in-memory recording device for tests and tooling (backend/noop)
package backend
