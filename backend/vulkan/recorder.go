// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/gogpu/rendergraph/device"
)

// recorder records into a primary command buffer. Errors of commands
// without an error result are kept and reported by End.
type recorder struct {
	d  *Device
	cb *commandBuffer

	target   *renderTarget
	subpass  int
	pipeline *pipeline
	err      error
	ended    bool
}

func (r *recorder) fail(err error, format string, args ...any) {
	if err != nil && r.err == nil {
		r.err = errors.Wrapf(err, format, args...)
	}
}

// imageBarriers converts texture transitions and accumulates their
// stages into src and dst.
func (r *recorder) imageBarriers(ts []device.TextureBarrier, src, dst *core1_0.PipelineStageFlags) []core1_0.ImageMemoryBarrier {
	out := make([]core1_0.ImageMemoryBarrier, 0, len(ts))
	for _, tb := range ts {
		t, ok := r.d.textures.Get(uint64(tb.Texture))
		if !ok {
			r.fail(device.ErrInvalidHandle, "vulkan: barrier texture %d", tb.Texture)
			continue
		}
		old, next := stateAccess(tb.Old), stateAccess(tb.New)
		*src |= old.stages
		*dst |= next.stages
		out = append(out, core1_0.ImageMemoryBarrier{
			Image:               t.image,
			OldLayout:           old.layout,
			NewLayout:           next.layout,
			SrcAccessMask:       old.mask,
			DstAccessMask:       next.mask,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			SubresourceRange:    t.subresource(tb.Range),
		})
	}
	return out
}

func (r *recorder) bufferBarriers(bs []device.BufferBarrier, src, dst *core1_0.PipelineStageFlags) []core1_0.BufferMemoryBarrier {
	out := make([]core1_0.BufferMemoryBarrier, 0, len(bs))
	for _, bb := range bs {
		b, ok := r.d.buffers.Get(uint64(bb.Buffer))
		if !ok {
			r.fail(device.ErrInvalidHandle, "vulkan: barrier buffer %d", bb.Buffer)
			continue
		}
		old, next := stateAccess(bb.Old), stateAccess(bb.New)
		*src |= old.stages
		*dst |= next.stages
		out = append(out, core1_0.BufferMemoryBarrier{
			Buffer:              b.raw,
			Offset:              0,
			Size:                int(b.desc.Size),
			SrcAccessMask:       old.mask,
			DstAccessMask:       next.mask,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
		})
	}
	return out
}

// Barrier records one pipeline barrier for all transitions. Barriers
// inside a render target are expressed by its subpass dependencies and
// are ignored.
func (r *recorder) Barrier(b device.Barriers) {
	if r.target != nil || (len(b.Textures) == 0 && len(b.Buffers) == 0) {
		return
	}
	var src, dst core1_0.PipelineStageFlags
	images := r.imageBarriers(b.Textures, &src, &dst)
	buffers := r.bufferBarriers(b.Buffers, &src, &dst)
	if len(images) == 0 && len(buffers) == 0 {
		return
	}
	r.fail(r.d.vk.CmdPipelineBarrier(r.cb.raw, src, dst, 0, nil, buffers, images), "vulkan: pipeline barrier")
}

// BeginRenderTarget begins the render pass of rt at its first subpass.
func (r *recorder) BeginRenderTarget(id device.RenderTargetID) error {
	if r.ended || r.target != nil {
		return errors.Wrap(device.ErrRecording, "vulkan: begin render target")
	}
	rt, ok := r.d.targets.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	err := r.d.vk.CmdBeginRenderPass(r.cb.raw, core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  rt.pass,
		Framebuffer: rt.framebuffer,
		RenderArea: core1_0.Rect2D{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: core1_0.Extent2D{Width: int(rt.desc.Width), Height: int(rt.desc.Height)},
		},
		ClearValues: rt.clear,
	})
	if err != nil {
		return errors.Wrapf(err, "vulkan: begin render pass %q", rt.desc.Label)
	}
	r.target, r.subpass = rt, 0
	return nil
}

// NextSubpass advances to the next subpass. The transitions are carried
// out by the subpass dependencies of the render pass.
func (r *recorder) NextSubpass(device.Barriers) error {
	if r.target == nil {
		return errors.Wrap(device.ErrRecording, "vulkan: next subpass outside a render target")
	}
	if r.subpass+1 >= len(r.target.desc.Subpasses) {
		return errors.Newf("vulkan: render target %q has %d subpasses", r.target.desc.Label, len(r.target.desc.Subpasses))
	}
	r.d.vk.CmdNextSubpass(r.cb.raw, core1_0.SubpassContentsInline)
	r.subpass++
	return nil
}

// EndRenderTarget ends the render pass. Attachments are left in their
// final states.
func (r *recorder) EndRenderTarget() error {
	if r.target == nil {
		return errors.Wrap(device.ErrRecording, "vulkan: end render target")
	}
	r.d.vk.CmdEndRenderPass(r.cb.raw)
	r.target = nil
	return nil
}

func (r *recorder) SetViewport(v device.Viewport) {
	r.d.vk.CmdSetViewport(r.cb.raw, core1_0.Viewport{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	})
}

func (r *recorder) SetScissor(s device.Rect) {
	r.d.vk.CmdSetScissor(r.cb.raw, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: int(s.X), Y: int(s.Y)},
		Extent: core1_0.Extent2D{Width: int(s.Width), Height: int(s.Height)},
	})
}

func (r *recorder) BindPipeline(id device.PipelineID) {
	p, ok := r.d.pipelines.Get(uint64(id))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: bind pipeline %d", id)
		return
	}
	r.d.vk.CmdBindPipeline(r.cb.raw, p.point, p.raw)
	r.pipeline = p
}

// BindDescriptorSet binds set at index of the bound pipeline's layout.
func (r *recorder) BindDescriptorSet(index uint32, id device.DescriptorSetID) {
	s, ok := r.d.sets.Get(uint64(id))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: bind descriptor set %d", id)
		return
	}
	if r.pipeline == nil {
		r.fail(device.ErrRecording, "vulkan: bind descriptor set %d without a pipeline", id)
		return
	}
	r.d.vk.CmdBindDescriptorSets(r.cb.raw, r.pipeline.point, r.pipeline.layout, int(index), []core1_0.DescriptorSet{s.raw}, nil)
}

func (r *recorder) BindVertexBuffer(slot uint32, id device.BufferID, offset uint64) {
	b, ok := r.d.buffers.Get(uint64(id))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: bind vertex buffer %d", id)
		return
	}
	r.d.vk.CmdBindVertexBuffers(r.cb.raw, int(slot), []core1_0.Buffer{b.raw}, []int{int(offset)})
}

func (r *recorder) BindIndexBuffer(id device.BufferID, format device.IndexFormat, offset uint64) {
	b, ok := r.d.buffers.Get(uint64(id))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: bind index buffer %d", id)
		return
	}
	r.d.vk.CmdBindIndexBuffer(r.cb.raw, b.raw, int(offset), indexType(format))
}

// PushConstants updates push constants of the bound pipeline.
func (r *recorder) PushConstants(offset uint32, data []byte) error {
	if err := device.CheckPushConstants(offset, data, r.d.maxPush); err != nil {
		return err
	}
	if r.pipeline == nil {
		return errors.Wrap(device.ErrRecording, "vulkan: push constants without a pipeline")
	}
	r.d.vk.CmdPushConstants(r.cb.raw, r.pipeline.layout, r.pipeline.stages, int(offset), data)
	return nil
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.d.vk.CmdDraw(r.cb.raw, int(vertexCount), int(instanceCount), firstVertex, firstInstance)
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.d.vk.CmdDrawIndexed(r.cb.raw, int(indexCount), int(instanceCount), firstIndex, int(baseVertex), firstInstance)
}

func (r *recorder) Dispatch(x, y, z uint32) {
	r.d.vk.CmdDispatch(r.cb.raw, int(x), int(y), int(z))
}

func (r *recorder) CopyBuffer(src, dst device.BufferID, regions []device.BufferCopy) {
	s, ok := r.d.buffers.Get(uint64(src))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: copy source buffer %d", src)
		return
	}
	t, ok := r.d.buffers.Get(uint64(dst))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: copy destination buffer %d", dst)
		return
	}
	copies := make([]core1_0.BufferCopy, len(regions))
	for i, c := range regions {
		copies[i] = core1_0.BufferCopy{SrcOffset: int(c.SrcOffset), DstOffset: int(c.DstOffset), Size: int(c.Size)}
	}
	r.fail(r.d.vk.CmdCopyBuffer(r.cb.raw, s.raw, t.raw, copies...), "vulkan: copy buffer")
}

// CopyBufferToTexture copies into a texture in StateTransferDst.
func (r *recorder) CopyBufferToTexture(src device.BufferID, dst device.TextureID, region device.BufferTextureCopy) {
	b, ok := r.d.buffers.Get(uint64(src))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: copy source buffer %d", src)
		return
	}
	t, ok := r.d.textures.Get(uint64(dst))
	if !ok {
		r.fail(device.ErrInvalidHandle, "vulkan: copy destination texture %d", dst)
		return
	}
	var rowLength int
	if texel := t.desc.Format.BytesPerTexel(); texel > 0 {
		rowLength = int(region.BytesPerRow / texel)
	}
	err := r.d.vk.CmdCopyBufferToImage(r.cb.raw, b.raw, t.image, core1_0.ImageLayoutTransferDstOptimal, core1_0.BufferImageCopy{
		BufferOffset:      int(region.BufferOffset),
		BufferRowLength:   rowLength,
		BufferImageHeight: int(region.RowsPerImage),
		ImageSubresource: core1_0.ImageSubresourceLayers{
			AspectMask:     aspect(t.desc.Format),
			MipLevel:       int(region.Mip),
			BaseArrayLayer: int(region.Layer),
			LayerCount:     1,
		},
		ImageOffset: core1_0.Offset3D{},
		ImageExtent: core1_0.Extent3D{
			Width:  int(region.Extent.Width),
			Height: int(region.Extent.Height),
			Depth:  int(max(region.Extent.Depth, 1)),
		},
	})
	r.fail(err, "vulkan: copy buffer to texture")
}

// GenerateMips blits each level from the previous one. The texture moves
// from state from to StateShaderRead.
func (r *recorder) GenerateMips(id device.TextureID, from device.State) error {
	if r.target != nil {
		return errors.Wrap(device.ErrRecording, "vulkan: generate mips inside a render target")
	}
	t, ok := r.d.textures.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	desc := t.desc
	if desc.Format.IsDepth() || desc.ViewType == device.ViewType3D || desc.Samples > 1 {
		return errors.Wrapf(device.ErrUnsupported, "vulkan: generate mips for %q", desc.Label)
	}
	levels := int(max(desc.MipLevels, 1))
	for _, step := range mipSteps(levels, from) {
		if step.blit {
			r.blit(t, step.mip)
			continue
		}
		r.Barrier(device.Barriers{Textures: []device.TextureBarrier{{
			Texture: id,
			Format:  desc.Format,
			Old:     step.old,
			New:     step.next,
			Range:   device.SubresourceRange{BaseMip: uint32(step.mip), MipCount: 1},
		}}})
	}
	return r.err
}

type mipStep struct {
	mip       int
	old, next device.State
	// blit downsamples mip-1 into mip instead of a transition.
	blit bool
}

// mipSteps lists the transitions and blits generating levels 1..levels-1
// of a texture in state from. Every level ends in StateShaderRead.
func mipSteps(levels int, from device.State) []mipStep {
	steps := []mipStep{{mip: 0, old: from, next: device.StateTransferSrc}}
	for mip := 1; mip < levels; mip++ {
		steps = append(steps,
			mipStep{mip: mip, old: device.StateUndefined, next: device.StateTransferDst},
			mipStep{mip: mip, blit: true})
		if mip+1 < levels {
			steps = append(steps, mipStep{mip: mip, old: device.StateTransferDst, next: device.StateTransferSrc})
		}
	}
	for mip := range levels {
		old := device.StateTransferSrc
		if mip > 0 && mip == levels-1 {
			old = device.StateTransferDst
		}
		steps = append(steps, mipStep{mip: mip, old: old, next: device.StateShaderRead})
	}
	return steps
}

func (r *recorder) blit(t *texture, mip int) {
	w, h := int(max(t.desc.Extent.Width>>(mip-1), 1)), int(max(t.desc.Extent.Height>>(mip-1), 1))
	layers := int(max(t.desc.ArrayLayers, 1))
	err := r.d.vk.CmdBlitImage(r.cb.raw,
		t.image, core1_0.ImageLayoutTransferSrcOptimal,
		t.image, core1_0.ImageLayoutTransferDstOptimal,
		[]core1_0.ImageBlit{{
			SrcSubresource: core1_0.ImageSubresourceLayers{
				AspectMask: core1_0.ImageAspectColor, MipLevel: mip - 1, LayerCount: layers,
			},
			SrcOffsets: [2]core1_0.Offset3D{{}, {X: w, Y: h, Z: 1}},
			DstSubresource: core1_0.ImageSubresourceLayers{
				AspectMask: core1_0.ImageAspectColor, MipLevel: mip, LayerCount: layers,
			},
			DstOffsets: [2]core1_0.Offset3D{{}, {X: max(w/2, 1), Y: max(h/2, 1), Z: 1}},
		}},
		core1_0.FilterLinear)
	r.fail(err, "vulkan: blit mip %d", mip)
}

// End finishes recording. Errors kept from earlier commands are returned
// here and leave the command buffer unsubmittable.
func (r *recorder) End() error {
	if r.ended {
		return errors.Wrap(device.ErrRecording, "vulkan: end called twice")
	}
	r.ended = true
	r.cb.recording = false
	if r.target != nil {
		r.d.vk.CmdEndRenderPass(r.cb.raw)
		r.target = nil
		r.fail(device.ErrRecording, "vulkan: render target not ended")
	}
	if _, err := r.d.vk.EndCommandBuffer(r.cb.raw); err != nil {
		r.fail(err, "vulkan: end command buffer")
	}
	if r.err != nil {
		r.cb.free(r.d.vk)
		return r.err
	}
	return nil
}
