// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/alloc"
	"github.com/gogpu/rendergraph/internal/barrier"
	"github.com/gogpu/rendergraph/internal/ir"
	"github.com/gogpu/rendergraph/internal/resolve"
	"github.com/gogpu/rendergraph/internal/schedule"
)

// group is the executable form of one scheduled pass-group.
type group struct {
	passes []int
	typ    PipelineType
	target device.RenderTargetID
	extent Extent
	// subpassOf maps a pass index to its subpass in target.
	subpassOf map[int]uint32
	colors    map[int][]device.Format
	depth     map[int]device.Format
	samples   map[int]uint32

	before  device.Barriers
	subpass []device.Barriers
	mips    []mipGen
	after   device.Barriers
}

type mipGen struct {
	texture device.TextureID
	from    device.State
}

// slot is one frame-in-flight execution context.
type slot struct {
	pool  device.CommandPoolID
	cmd   device.CommandBufferID
	fence device.FenceID
}

func (s slot) destroy(dev device.Device) {
	if s.fence != device.InvalidID {
		dev.DestroyFence(s.fence)
	}
	if s.pool != device.InvalidID {
		dev.DestroyCommandPool(s.pool)
	}
}

// Build compiles the declared passes. On failure the graph stays unbuilt
// and everything Build created is released.
func (g *Graph) Build() error {
	if g.built {
		return ErrGraphBuilt
	}
	if err := g.build(); err != nil {
		g.release()
		g.logger().Error("rendergraph: build failed", "err", err)
		return err
	}
	g.built = true
	g.logger().Info("rendergraph: built",
		"backend", g.dev.Name(),
		"passes", len(g.order),
		"groups", len(g.groups),
		"frames", len(g.slots),
		"memory", g.alloc.Stats().String())
	return nil
}

// MustBuild is like Build but panics on error.
func (g *Graph) MustBuild() {
	if err := g.Build(); err != nil {
		panic(err)
	}
}

func (g *Graph) build() error {
	for _, p := range g.passes {
		if p.err != nil {
			return fmt.Errorf("pass %q: %w", p.pass.Name, p.err)
		}
	}
	if g.output == "" {
		return &BuildError{Kind: ErrNoOutput}
	}

	passes := make([]ir.Pass, len(g.passes))
	for i, p := range g.passes {
		passes[i] = p.snapshot()
	}
	graph, err := ir.NewGraph(passes, g.imports)
	if err != nil {
		return err
	}
	if err := resolve.Validate(graph); err != nil {
		return err
	}
	resolved, err := resolve.Resolve(graph, g.output)
	if err != nil {
		return err
	}
	sched := schedule.New(graph, resolved)
	g.ir = graph
	g.order = sched.Optimize()
	layout := sched.Groups(g.order)

	if err := g.checkCapabilities(layout); err != nil {
		return err
	}
	if err := g.checkInputExtents(layout); err != nil {
		return err
	}

	g.alloc = alloc.New(g.dev, alloc.NewBudget(g.opts.memoryBudget))
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.setupTimeout)
	defer cancel()
	if err := g.alloc.Assign(ctx, graph, g.order, g.output, g.sizes); err != nil {
		return err
	}

	g.plan = barrier.New(graph, layout, g.output)
	names := append(g.alloc.TextureNames(), g.alloc.BufferNames()...)
	if err := g.prime(names); err != nil {
		return err
	}

	for range g.opts.framesInFlight {
		s, err := g.newSlot()
		if s.pool != device.InvalidID {
			g.slots = append(g.slots, s)
		}
		if err != nil {
			return err
		}
	}

	g.groups = make([]*group, len(layout))
	for gi, members := range layout {
		grp := &group{passes: members, typ: graph.Passes[members[0]].Type}
		g.groups[gi] = grp
		if grp.typ == Graphics {
			if err := g.createTarget(gi); err != nil {
				return err
			}
		}
		g.convert(gi)
	}

	return g.runCallbacks(nil, nil)
}

// checkCapabilities rejects passes the device cannot execute and warns
// when fused groups fall back to consecutive render passes.
func (g *Graph) checkCapabilities(layout [][]int) error {
	caps := g.dev.Capabilities()
	for _, pi := range g.order {
		p := &g.ir.Passes[pi]
		if p.GeneratesMips() && !caps.MipGeneration {
			return ir.Errorf(ErrUnsupported, p.Name, "", "device %q cannot generate mips", g.dev.Name())
		}
	}
	if caps.Subpasses {
		return nil
	}
	for _, members := range layout {
		if len(members) > 1 {
			g.logger().Warn("rendergraph: device lacks subpasses, fused groups run as consecutive render passes",
				"backend", g.dev.Name())
			break
		}
	}
	return nil
}

// extentOf resolves the extent of a texture resource against the current
// size table.
func (g *Graph) extentOf(name string) (Extent, bool) {
	if r, ok := g.ir.Resource(name); ok && !r.Buffer {
		return r.Attachment.Extent(g.sizes)
	}
	if imp, ok := g.ir.Imports[name]; ok {
		return imp.Extent, true
	}
	return Extent{}, false
}

// checkInputExtents requires input attachments produced outside their
// group to match the reading pass's attachments.
func (g *Graph) checkInputExtents(layout [][]int) error {
	for _, members := range layout {
		inGroup := make(map[string]bool)
		for _, pi := range members {
			p := &g.ir.Passes[pi]
			if p.Type != Graphics {
				continue
			}
			atts := p.Attachments()
			var want Extent
			if len(atts) > 0 {
				e, ok := g.extentOf(atts[0].Name)
				if !ok {
					return ir.Errorf(ErrUnknownNamedSize, p.Name, atts[0].Name, "size %q", atts[0].Attachment.SizeName)
				}
				want = e
			}
			for _, n := range p.InputAttachments {
				if inGroup[n] {
					continue
				}
				e, ok := g.extentOf(n)
				if !ok {
					continue
				}
				if e.Width != want.Width || e.Height != want.Height {
					return ir.Errorf(ErrInvalidAttachment, p.Name, n,
						"input attachment is %dx%d, pass renders %dx%d", e.Width, e.Height, want.Width, want.Height)
				}
			}
			for _, o := range atts {
				inGroup[o.Name] = true
			}
		}
	}
	return nil
}

func (g *Graph) newSlot() (slot, error) {
	var s slot
	var err error
	if s.pool, err = g.dev.CreateCommandPool(device.QueueGraphics); err != nil {
		return s, fmt.Errorf("create command pool: %w", err)
	}
	if s.cmd, err = g.dev.AllocateCommandBuffer(s.pool); err != nil {
		return s, fmt.Errorf("allocate command buffer: %w", err)
	}
	if s.fence, err = g.dev.CreateFence(); err != nil {
		return s, fmt.Errorf("create fence: %w", err)
	}
	return s, nil
}

// prime moves freshly created resources from undefined contents into
// their seed state with a one-off submission, so the first frame replays
// the same barriers as every other frame.
func (g *Graph) prime(names []string) error {
	var b device.Barriers
	for _, name := range names {
		seed, ok := g.plan.SeedStates[name]
		if !ok {
			continue
		}
		if t, ok := g.alloc.Texture(name); ok {
			if t.Imported {
				continue
			}
			b.Textures = append(b.Textures, device.TextureBarrier{
				Texture: t.ID, Format: t.Desc.Format, Old: device.StateUndefined, New: seed, Range: device.FullRange,
			})
			continue
		}
		if buf, ok := g.alloc.Buffer(name); ok {
			b.Buffers = append(b.Buffers, device.BufferBarrier{Buffer: buf.ID, Old: device.StateUndefined, New: seed})
		}
	}
	if b.Empty() {
		return nil
	}

	pool, err := g.dev.CreateCommandPool(device.QueueGraphics)
	if err != nil {
		return fmt.Errorf("prime: create command pool: %w", err)
	}
	defer g.dev.DestroyCommandPool(pool)
	cb, err := g.dev.AllocateCommandBuffer(pool)
	if err != nil {
		return fmt.Errorf("prime: allocate command buffer: %w", err)
	}
	fence, err := g.dev.CreateFence()
	if err != nil {
		return fmt.Errorf("prime: create fence: %w", err)
	}
	defer g.dev.DestroyFence(fence)

	rec, err := g.dev.Begin(cb)
	if err != nil {
		return fmt.Errorf("prime: begin: %w", err)
	}
	rec.Barrier(b)
	if err := rec.End(); err != nil {
		return fmt.Errorf("prime: end: %w", err)
	}
	if err := g.dev.Submit(device.QueueGraphics, &device.SubmitInfo{
		CommandBuffers: []device.CommandBufferID{cb},
		Fence:          fence,
	}); err != nil {
		return fmt.Errorf("prime: submit: %w", err)
	}
	if err := g.dev.WaitFence(fence, g.opts.setupTimeout); err != nil {
		return fmt.Errorf("prime: wait: %w", err)
	}
	g.logger().Debug("rendergraph: primed", "textures", len(b.Textures), "buffers", len(b.Buffers))
	return nil
}

// createTarget creates the render target of graphics group gi. Its
// attachments are the outputs of the member passes followed, in first-use
// order, by input attachments produced outside the group.
func (g *Graph) createTarget(gi int) error {
	grp := g.groups[gi]
	spans := g.plan.Groups[gi].Spans

	desc := device.RenderTargetDesc{Layers: ^uint32(0)}
	index := make(map[string]int)
	grp.subpassOf = make(map[int]uint32, len(grp.passes))
	grp.colors = make(map[int][]device.Format, len(grp.passes))
	grp.depth = make(map[int]device.Format, len(grp.passes))
	grp.samples = make(map[int]uint32, len(grp.passes))

	attach := func(name string, clear *device.ClearValue) (int, error) {
		if i, ok := index[name]; ok {
			return i, nil
		}
		t, ok := g.alloc.Texture(name)
		if !ok {
			return -1, fmt.Errorf("render target attachment %q: %w", name, device.ErrInvalidHandle)
		}
		span := spans[name]
		view := t.Full
		if len(t.Mips) > 1 {
			view = t.Mips[0]
		}
		a := device.AttachmentDesc{
			Texture: t.ID,
			View:    view,
			Format:  t.Desc.Format,
			Samples: t.Desc.Samples,
			Load:    device.LoadOpLoad,
			Store:   device.StoreOpStore,
			Initial: span.First,
			Final:   span.Last,
		}
		if clear != nil {
			a.Load = device.LoadOpClear
			a.Clear = *clear
		}
		e := t.Desc.Extent
		if len(desc.Attachments) == 0 || e.Width < desc.Width {
			desc.Width = e.Width
		}
		if len(desc.Attachments) == 0 || e.Height < desc.Height {
			desc.Height = e.Height
		}
		desc.Layers = min(desc.Layers, t.Desc.ArrayLayers)
		index[name] = len(desc.Attachments)
		desc.Attachments = append(desc.Attachments, a)
		return index[name], nil
	}

	names := make([]string, len(grp.passes))
	for k, pi := range grp.passes {
		p := &g.ir.Passes[pi]
		names[k] = p.Name
		sub := device.SubpassDesc{DepthAttachment: -1}
		for _, n := range p.InputAttachments {
			i, err := attach(n, nil)
			if err != nil {
				return err
			}
			sub.InputAttachments = append(sub.InputAttachments, i)
		}
		for _, o := range p.ColorOutputs {
			i, err := attach(o.Name, &o.Attachment.Clear)
			if err != nil {
				return err
			}
			sub.ColorAttachments = append(sub.ColorAttachments, i)
			grp.colors[pi] = append(grp.colors[pi], o.Attachment.Format)
			grp.samples[pi] = o.Attachment.Samples
		}
		if d := p.DepthOutput; d != nil {
			i, err := attach(d.Name, &d.Attachment.Clear)
			if err != nil {
				return err
			}
			sub.DepthAttachment = i
			grp.depth[pi] = d.Attachment.Format
			grp.samples[pi] = d.Attachment.Samples
		}
		grp.subpassOf[pi] = uint32(k)
		desc.Subpasses = append(desc.Subpasses, sub)
	}
	desc.Label = fmt.Sprintf("%s/%s", g.id.String()[:8], strings.Join(names, "+"))
	grp.extent = Extent{Width: desc.Width, Height: desc.Height, Depth: 1}

	id, err := g.dev.CreateRenderTarget(&desc)
	if err != nil {
		return fmt.Errorf("create render target %q: %w", desc.Label, err)
	}
	grp.target = id
	return nil
}

// convert translates the name-based transitions of group gi into device
// barriers over the current physical resources.
func (g *Graph) convert(gi int) {
	grp := g.groups[gi]
	plan := &g.plan.Groups[gi]
	grp.before = g.deviceBarriers(plan.Before)
	grp.after = g.deviceBarriers(plan.After)
	grp.subpass = make([]device.Barriers, len(plan.Subpass))
	for k, ts := range plan.Subpass {
		grp.subpass[k] = g.deviceBarriers(ts)
	}
	grp.mips = grp.mips[:0]
	for _, m := range plan.MipGen {
		if t, ok := g.alloc.Texture(m.Resource); ok {
			grp.mips = append(grp.mips, mipGen{texture: t.ID, from: m.From})
		}
	}
}

func (g *Graph) deviceBarriers(ts []barrier.Transition) device.Barriers {
	var b device.Barriers
	for _, t := range ts {
		if t.Buffer {
			if buf, ok := g.alloc.Buffer(t.Resource); ok {
				b.Buffers = append(b.Buffers, device.BufferBarrier{Buffer: buf.ID, Old: t.Old, New: t.New})
			}
			continue
		}
		if tex, ok := g.alloc.Texture(t.Resource); ok {
			b.Textures = append(b.Textures, device.TextureBarrier{
				Texture: tex.ID, Format: tex.Desc.Format, Old: t.Old, New: t.New, Range: device.FullRange,
			})
		}
	}
	return b
}

// runCallbacks runs the init callbacks of the passes in groups whose
// render target is listed in targets, then the descriptor callbacks of
// the passes referencing recreated. Nil selects every scheduled pass.
func (g *Graph) runCallbacks(targets map[int]bool, recreated map[string]bool) error {
	res := Resources{g: g}
	for gi, grp := range g.groups {
		if targets != nil && !targets[gi] {
			continue
		}
		for _, pi := range grp.passes {
			pd := g.passes[pi]
			if pd.init == nil {
				continue
			}
			ctx := &InitContext{
				Resources:    res,
				Device:       g.dev,
				Pass:         pd.pass.Name,
				RenderTarget: grp.target,
				Subpass:      grp.subpassOf[pi],
				ColorFormats: grp.colors[pi],
				DepthFormat:  grp.depth[pi],
				Samples:      grp.samples[pi],
			}
			if err := pd.init(ctx); err != nil {
				return fmt.Errorf("init pass %q: %w", pd.pass.Name, err)
			}
		}
	}
	for _, pi := range g.order {
		pd := g.passes[pi]
		if pd.describe == nil {
			continue
		}
		if recreated != nil && !pd.references(recreated) {
			continue
		}
		ctx := &DescriptorContext{Resources: res, Device: g.dev, Pass: pd.pass.Name}
		if err := pd.describe(ctx); err != nil {
			return fmt.Errorf("update descriptors of pass %q: %w", pd.pass.Name, err)
		}
	}
	return nil
}
