// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	wgpuhal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/device"
)

type recorder struct {
	d   *Device
	cb  *commandBuffer
	enc wgpuhal.CommandEncoder

	target  *renderTarget
	subpass int
	pass    wgpuhal.RenderPassEncoder
	compute wgpuhal.ComputePassEncoder

	// Dynamic state is lost between replayed subpasses and is re-applied
	// when the next render pass begins.
	viewport    *device.Viewport
	scissor     *device.Rect
	pipeline    *pipeline
	sets        map[uint32]wgpuhal.BindGroup
	computeSets map[uint32]wgpuhal.BindGroup

	ended bool
}

var _ device.CommandRecorder = (*recorder)(nil)

func (r *recorder) endCompute() {
	if r.compute != nil {
		r.compute.End()
		r.compute = nil
	}
}

func textureBarriers(d *Device, in []device.TextureBarrier) []wgpuhal.TextureBarrier {
	out := make([]wgpuhal.TextureBarrier, 0, len(in))
	for _, b := range in {
		t, ok := d.textures.Get(uint64(b.Texture))
		if !ok {
			continue
		}
		out = append(out, wgpuhal.TextureBarrier{
			Texture: t.raw,
			Range: wgpuhal.TextureRange{
				Aspect:          gputypes.TextureAspectAll,
				BaseMipLevel:    b.Range.BaseMip,
				MipLevelCount:   b.Range.MipCount,
				BaseArrayLayer:  b.Range.BaseLayer,
				ArrayLayerCount: b.Range.LayerCount,
			},
			Usage: wgpuhal.TextureUsageTransition{
				OldUsage: stateUsage(b.Old),
				NewUsage: stateUsage(b.New),
			},
		})
	}
	return out
}

func (r *recorder) transition(b device.Barriers) {
	if tb := textureBarriers(r.d, b.Textures); len(tb) > 0 {
		r.enc.TransitionTextures(tb)
	}
	if len(b.Buffers) == 0 {
		return
	}
	bb := make([]wgpuhal.BufferBarrier, 0, len(b.Buffers))
	for _, b := range b.Buffers {
		buf, ok := r.d.buffers.Get(uint64(b.Buffer))
		if !ok {
			continue
		}
		bb = append(bb, wgpuhal.BufferBarrier{
			Buffer: buf.raw,
			Usage: wgpuhal.BufferUsageTransition{
				OldUsage: bufferStateUsage(b.Old),
				NewUsage: bufferStateUsage(b.New),
			},
		})
	}
	if len(bb) > 0 {
		r.enc.TransitionBuffers(bb)
	}
}

func (r *recorder) Barrier(b device.Barriers) {
	if b.Empty() || r.pass != nil {
		return
	}
	r.endCompute()
	r.transition(b)
}

// subpassState returns the state subpass k renders attachment a in, or
// false when k does not reference a.
func subpassState(desc *device.RenderTargetDesc, k, a int) (device.State, bool) {
	sp := desc.Subpasses[k]
	if sp.DepthAttachment == a {
		return device.StateDepthAttachment, true
	}
	for _, c := range sp.ColorAttachments {
		if c == a {
			return device.StateColorAttachment, true
		}
	}
	for _, c := range sp.InputAttachments {
		if c == a {
			return device.StateInputAttachment, true
		}
	}
	return device.StateUndefined, false
}

// attachmentTransitions moves every attachment of desc from its Initial
// state into the state of the first subpass referencing it, or at the end
// from the state of the last referencing subpass to its Final state.
// Barriers between subpasses are the caller's.
func attachmentTransitions(desc *device.RenderTargetDesc, begin bool) device.Barriers {
	var b device.Barriers
	n := len(desc.Subpasses)
	for i, a := range desc.Attachments {
		tb := device.TextureBarrier{Texture: a.Texture, Format: a.Format}
		found := false
		for j := range n {
			k := j
			if !begin {
				k = n - 1 - j
			}
			s, ok := subpassState(desc, k, i)
			if !ok {
				continue
			}
			if begin {
				tb.Old, tb.New = a.Initial, s
			} else {
				tb.Old, tb.New = s, a.Final
			}
			found = true
			break
		}
		if found && tb.Old != tb.New {
			b.Textures = append(b.Textures, tb)
		}
	}
	return b
}

func (r *recorder) BeginRenderTarget(id device.RenderTargetID) error {
	if r.target != nil {
		return fmt.Errorf("%w: render target already begun", device.ErrRecording)
	}
	rt, ok := r.d.targets.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	r.endCompute()
	r.transition(attachmentTransitions(&rt.desc, true))
	r.target, r.subpass = rt, 0
	r.beginSubpass()
	return nil
}

// uses reports whether subpass k references attachment a.
func (rt *renderTarget) uses(k, a int) bool {
	_, ok := subpassState(&rt.desc, k, a)
	return ok
}

// firstUse and lastUse report whether subpass k is the first or last
// subpass referencing attachment a.
func (rt *renderTarget) firstUse(k, a int) bool {
	for j := range k {
		if rt.uses(j, a) {
			return false
		}
	}
	return true
}

func (rt *renderTarget) lastUse(k, a int) bool {
	for j := k + 1; j < len(rt.desc.Subpasses); j++ {
		if rt.uses(j, a) {
			return false
		}
	}
	return true
}

func (r *recorder) attachmentOps(a int) (gputypes.LoadOp, gputypes.StoreOp) {
	desc := r.target.desc.Attachments[a]
	load, store := gputypes.LoadOpLoad, gputypes.StoreOpStore
	if r.target.firstUse(r.subpass, a) {
		load = loadOp(desc.Load)
	}
	if r.target.lastUse(r.subpass, a) {
		store = storeOp(desc.Store)
	}
	return load, store
}

func (r *recorder) beginSubpass() {
	rt := r.target
	sp := rt.desc.Subpasses[r.subpass]
	pd := &wgpuhal.RenderPassDescriptor{
		Label: fmt.Sprintf("%s/%d", rt.desc.Label, r.subpass),
	}
	for _, a := range sp.ColorAttachments {
		load, store := r.attachmentOps(a)
		c := rt.desc.Attachments[a].Clear.Color
		pd.ColorAttachments = append(pd.ColorAttachments, wgpuhal.RenderPassColorAttachment{
			View:       rt.views[a],
			LoadOp:     load,
			StoreOp:    store,
			ClearValue: gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		})
	}
	if a := sp.DepthAttachment; a >= 0 {
		load, store := r.attachmentOps(a)
		desc := rt.desc.Attachments[a]
		pd.DepthStencilAttachment = &wgpuhal.RenderPassDepthStencilAttachment{
			View:              rt.views[a],
			DepthLoadOp:       load,
			DepthStoreOp:      store,
			DepthClearValue:   desc.Clear.Depth,
			StencilLoadOp:     load,
			StencilStoreOp:    store,
			StencilClearValue: desc.Clear.Stencil,
		}
	}
	r.pass = r.enc.BeginRenderPass(pd)
	if r.viewport != nil {
		v := r.viewport
		r.pass.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	}
	if r.scissor != nil {
		s := r.scissor
		r.pass.SetScissorRect(uint32(max(s.X, 0)), uint32(max(s.Y, 0)), s.Width, s.Height)
	}
	if r.pipeline != nil && r.pipeline.render != nil {
		r.pass.SetPipeline(r.pipeline.render)
	}
	for i, set := range r.sets {
		r.pass.SetBindGroup(i, set, nil)
	}
}

func (r *recorder) NextSubpass(transitions device.Barriers) error {
	if r.target == nil {
		return fmt.Errorf("%w: next subpass outside a render target", device.ErrRecording)
	}
	if n := len(r.target.desc.Subpasses); r.subpass+1 >= n {
		return fmt.Errorf("%w: render target has %d subpasses", device.ErrRecording, n)
	}
	r.pass.End()
	r.pass = nil
	r.transition(transitions)
	r.subpass++
	r.beginSubpass()
	return nil
}

func (r *recorder) EndRenderTarget() error {
	if r.target == nil {
		return fmt.Errorf("%w: no render target to end", device.ErrRecording)
	}
	r.pass.End()
	r.pass = nil
	r.transition(attachmentTransitions(&r.target.desc, false))
	r.target, r.subpass = nil, -1
	r.viewport, r.scissor = nil, nil
	clear(r.sets)
	return nil
}

func (r *recorder) SetViewport(v device.Viewport) {
	r.viewport = &v
	if r.pass != nil {
		r.pass.SetViewport(v.X, v.Y, v.Width, v.Height, v.MinDepth, v.MaxDepth)
	}
}

func (r *recorder) SetScissor(s device.Rect) {
	r.scissor = &s
	if r.pass != nil {
		r.pass.SetScissorRect(uint32(max(s.X, 0)), uint32(max(s.Y, 0)), s.Width, s.Height)
	}
}

func (r *recorder) BindPipeline(id device.PipelineID) {
	p, ok := r.d.pipelines.Get(uint64(id))
	if !ok {
		return
	}
	r.pipeline = p
	switch {
	case p.render != nil && r.pass != nil:
		r.pass.SetPipeline(p.render)
	case p.compute != nil && r.compute != nil:
		r.compute.SetPipeline(p.compute)
	}
}

func (r *recorder) BindDescriptorSet(index uint32, id device.DescriptorSetID) {
	set, ok := r.d.sets.Get(uint64(id))
	if !ok {
		return
	}
	if r.pass != nil {
		if r.sets == nil {
			r.sets = make(map[uint32]wgpuhal.BindGroup)
		}
		r.sets[index] = set
		r.pass.SetBindGroup(index, set, nil)
		return
	}
	if r.computeSets == nil {
		r.computeSets = make(map[uint32]wgpuhal.BindGroup)
	}
	r.computeSets[index] = set
	if r.compute != nil {
		r.compute.SetBindGroup(index, set, nil)
	}
}

func (r *recorder) BindVertexBuffer(slot uint32, id device.BufferID, offset uint64) {
	if b, ok := r.d.buffers.Get(uint64(id)); ok && r.pass != nil {
		r.pass.SetVertexBuffer(slot, b.raw, offset)
	}
}

func (r *recorder) BindIndexBuffer(id device.BufferID, format device.IndexFormat, offset uint64) {
	if b, ok := r.d.buffers.Get(uint64(id)); ok && r.pass != nil {
		r.pass.SetIndexBuffer(b.raw, indexFormat(format), offset)
	}
}

func (r *recorder) PushConstants(uint32, []byte) error {
	return fmt.Errorf("hal: push constants: %w", device.ErrUnsupported)
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if r.pass != nil {
		r.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if r.pass != nil {
		r.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	}
}

func (r *recorder) Dispatch(x, y, z uint32) {
	if r.pass != nil || r.pipeline == nil || r.pipeline.compute == nil {
		return
	}
	if r.compute == nil {
		r.compute = r.enc.BeginComputePass(&wgpuhal.ComputePassDescriptor{Label: "dispatch"})
		r.compute.SetPipeline(r.pipeline.compute)
		for i, set := range r.computeSets {
			r.compute.SetBindGroup(i, set, nil)
		}
	}
	r.compute.Dispatch(x, y, z)
}

func (r *recorder) CopyBuffer(src, dst device.BufferID, regions []device.BufferCopy) {
	s, ok1 := r.d.buffers.Get(uint64(src))
	t, ok2 := r.d.buffers.Get(uint64(dst))
	if !ok1 || !ok2 || r.pass != nil {
		return
	}
	r.endCompute()
	out := make([]wgpuhal.BufferCopy, len(regions))
	for i, reg := range regions {
		out[i] = wgpuhal.BufferCopy{SrcOffset: reg.SrcOffset, DstOffset: reg.DstOffset, Size: reg.Size}
	}
	r.enc.CopyBufferToBuffer(s.raw, t.raw, out)
}

func (r *recorder) CopyBufferToTexture(src device.BufferID, dst device.TextureID, region device.BufferTextureCopy) {
	b, ok1 := r.d.buffers.Get(uint64(src))
	t, ok2 := r.d.textures.Get(uint64(dst))
	if !ok1 || !ok2 || r.pass != nil {
		return
	}
	r.endCompute()
	r.enc.CopyBufferToTexture(b.raw, t.raw, []wgpuhal.BufferTextureCopy{{
		BufferLayout: wgpuhal.ImageDataLayout{
			Offset:       region.BufferOffset,
			BytesPerRow:  region.BytesPerRow,
			RowsPerImage: region.RowsPerImage,
		},
		TextureBase: wgpuhal.ImageCopyTexture{
			Texture:  t.raw,
			MipLevel: region.Mip,
			Origin:   wgpuhal.Origin3D{Z: region.Layer},
		},
		Size: wgpuhal.Extent3D{
			Width:              region.Extent.Width,
			Height:             region.Extent.Height,
			DepthOrArrayLayers: max(region.Extent.Depth, 1),
		},
	}})
}

func (r *recorder) GenerateMips(id device.TextureID, from device.State) error {
	if r.target != nil {
		return fmt.Errorf("%w: mip generation inside a render target", device.ErrRecording)
	}
	t, ok := r.d.textures.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	r.endCompute()
	gen, err := r.d.mipGenerator()
	if err != nil {
		return err
	}
	release, err := gen.generate(r.enc, t, from)
	r.cb.transient = append(r.cb.transient, release...)
	return err
}

func (r *recorder) End() error {
	if r.ended {
		return fmt.Errorf("%w: command buffer already ended", device.ErrRecording)
	}
	if r.target != nil {
		return fmt.Errorf("%w: render target still open", device.ErrRecording)
	}
	r.endCompute()
	r.ended = true
	r.cb.recording = false
	raw, err := r.enc.EndEncoding()
	if err != nil {
		r.enc.DiscardEncoding()
		return fmt.Errorf("hal: end encoding: %w", err)
	}
	r.cb.raw = raw
	return nil
}
