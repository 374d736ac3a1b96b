// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rendergraph compiles a frame declared as named passes and named
// resources into an execution plan, and replays that plan every frame on
// a [device.Device].
//
// Build resolves the passes the output depends on, reorders them for
// locality, fuses chains of graphics passes linked by input attachments
// into subpasses, allocates the physical textures and buffers, and plans
// the state transitions between passes.
//
//	g := rendergraph.New(dev)
//	g.AddNamedSize("swapchain", rendergraph.Extent{Width: 1280, Height: 720})
//	g.AddRenderPass("gbuffer", rendergraph.Graphics).
//		AddColorOutput("albedo", rendergraph.Attachment{Format: device.FormatRGBA8Unorm, SizeName: "swapchain"}).
//		SetRender(drawScene)
//	...
//	g.SetOutput("output")
//	if err := g.Build(); err != nil {
//		return err
//	}
//	for running {
//		sig, err := g.Execute(true)
//		...
//	}
package rendergraph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/alloc"
	"github.com/gogpu/rendergraph/internal/barrier"
	"github.com/gogpu/rendergraph/internal/ir"
)

// Graph is a render graph bound to one device.
//
// Declaration, Build, Execute and ResizeNamedSize are not safe for
// concurrent use. In particular ResizeNamedSize must not run while
// Execute is recording.
type Graph struct {
	dev  device.Device
	opts options
	id   uuid.UUID

	passes  []*PassDescriptor
	sizes   *ir.SizeTable
	imports map[string]ir.Import
	output  string

	built  bool
	ir     *ir.Graph
	order  []int
	alloc  *alloc.Allocator
	plan   *barrier.Plan
	groups []*group
	slots  []slot
	frame  uint64

	statsMu sync.Mutex
	stats   FrameStats
}

// New returns an empty graph recording on dev.
func New(dev device.Device, opts ...Option) *Graph {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if limit := dev.Capabilities().MaxFramesInFlight; limit > 0 && o.framesInFlight > limit {
		slogger().Warn("rendergraph: frames in flight clamped to device limit",
			"requested", o.framesInFlight, "limit", limit)
		o.framesInFlight = limit
	}
	return &Graph{
		dev:     dev,
		opts:    o,
		id:      uuid.New(),
		sizes:   ir.NewSizeTable(),
		imports: make(map[string]ir.Import),
	}
}

// logger returns the package logger tagged with the graph ID.
func (g *Graph) logger() *slog.Logger {
	return slogger().With("graph", g.id.String())
}

// ID returns the unique identifier of the graph, used in log records and
// device labels.
func (g *Graph) ID() uuid.UUID { return g.id }

// Device returns the device the graph records on.
func (g *Graph) Device() device.Device { return g.dev }

// Built reports whether Build succeeded and Destroy was not called since.
func (g *Graph) Built() bool { return g.built }

// AddRenderPass declares a pass. Declaration errors, such as adding a pass
// after Build, are reported by the descriptor's Err and by Build.
func (g *Graph) AddRenderPass(name string, t PipelineType) *PassDescriptor {
	p := &PassDescriptor{graph: g, pass: ir.Pass{Name: name, Type: t}}
	if g.built {
		p.err = ErrGraphBuilt
		return p
	}
	g.passes = append(g.passes, p)
	return p
}

// AddNamedSize adds an entry to the size table that relative attachments
// scale. A zero depth means 1.
func (g *Graph) AddNamedSize(name string, e Extent) error {
	if g.built {
		return ErrGraphBuilt
	}
	if !g.sizes.Add(name, e) {
		return &BuildError{Kind: ErrDuplicateNamedSize, Detail: fmt.Sprintf("size %q", name)}
	}
	return nil
}

// NamedSize returns an entry of the size table.
func (g *Graph) NamedSize(name string) (Extent, bool) {
	return g.sizes.Get(name)
}

// ImportTexture makes an external texture readable under name. The graph
// never allocates, resizes or destroys it. state is the state the texture
// is in whenever the graph executes; the graph leaves it in that state.
func (g *Graph) ImportTexture(name string, tex device.TextureID, view device.ViewID, format device.Format, extent Extent, state device.State) error {
	if g.built {
		return ErrGraphBuilt
	}
	if _, dup := g.imports[name]; dup {
		return &BuildError{Kind: ErrMultipleWriters, Resource: name, Detail: "imported twice"}
	}
	if extent.Depth == 0 {
		extent.Depth = 1
	}
	g.imports[name] = ir.Import{Name: name, Texture: tex, View: view, Format: format, Extent: extent, State: state}
	return nil
}

// SetOutput designates the resource the graph produces. Only passes the
// output depends on are executed. Calls after Build are ignored.
func (g *Graph) SetOutput(name string) {
	if g.built {
		g.logger().Warn("rendergraph: SetOutput after Build ignored", "resource", name)
		return
	}
	g.output = name
}

// Output returns the designated output resource.
func (g *Graph) Output() string { return g.output }

// OutputView returns the full view of the output texture, or InvalidID
// before Build. The output is in StateShaderRead after every frame.
func (g *Graph) OutputView() device.ViewID {
	if !g.built {
		return device.InvalidID
	}
	t, ok := g.alloc.Texture(g.output)
	if !ok {
		return device.InvalidID
	}
	return t.Full
}

// Destroy waits for the device to go idle and releases every object the
// graph created. The graph returns to the unbuilt state; its declarations
// are kept.
func (g *Graph) Destroy() {
	if !g.built && g.alloc == nil {
		return
	}
	if err := g.dev.WaitIdle(); err != nil {
		g.logger().Warn("rendergraph: wait idle before destroy", "err", err)
	}
	g.release()
	g.logger().Debug("rendergraph: destroyed")
}

// release destroys device objects in reverse creation order.
func (g *Graph) release() {
	for _, grp := range g.groups {
		if grp != nil && grp.target != device.InvalidID {
			g.dev.DestroyRenderTarget(grp.target)
		}
	}
	for _, s := range g.slots {
		s.destroy(g.dev)
	}
	if g.alloc != nil {
		g.alloc.Release()
	}
	g.groups, g.slots, g.alloc, g.plan, g.ir, g.order = nil, nil, nil, nil, nil, nil
	g.built = false
	g.frame = 0
}
