// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import "time"

// Frames-in-flight bounds.
const (
	DefaultFramesInFlight = 2
	MaxFramesInFlight     = 8
)

// Option configures a Graph during creation.
//
// Example:
//
//	g := rendergraph.New(dev,
//		rendergraph.WithFramesInFlight(3),
//		rendergraph.WithMemoryBudget(512<<20),
//	)
type Option func(*options)

// options holds optional configuration for Graph creation.
type options struct {
	framesInFlight int
	fenceTimeout   time.Duration
	setupTimeout   time.Duration
	memoryBudget   uint64
}

// defaultOptions returns the default graph options.
func defaultOptions() options {
	return options{
		framesInFlight: DefaultFramesInFlight,
		fenceTimeout:   time.Second,
		setupTimeout:   5 * time.Second,
	}
}

// WithFramesInFlight sets the number of execution slots. Values outside
// 1..MaxFramesInFlight are clamped, and the device limit applies on top.
func WithFramesInFlight(n int) Option {
	return func(o *options) {
		o.framesInFlight = min(max(n, 1), MaxFramesInFlight)
	}
}

// WithFenceTimeout sets the default timeout of Wait.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithSetupTimeout bounds the fence waits of Build and ResizeNamedSize,
// which prime new textures into their steady state.
func WithSetupTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.setupTimeout = d
		}
	}
}

// WithMemoryBudget limits the estimated bytes of graph-owned resources.
// Zero means unlimited.
func WithMemoryBudget(bytes uint64) Option {
	return func(o *options) {
		o.memoryBudget = bytes
	}
}
