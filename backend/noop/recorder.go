// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package noop

import (
	"fmt"
	"slices"

	"github.com/gogpu/rendergraph/device"
)

// Op identifies a recorded command.
type Op uint8

// Recorded operations.
const (
	OpBarrier Op = iota
	OpBeginRenderTarget
	OpNextSubpass
	OpEndRenderTarget
	OpSetViewport
	OpSetScissor
	OpBindPipeline
	OpBindDescriptorSet
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpPushConstants
	OpDraw
	OpDrawIndexed
	OpDispatch
	OpCopyBuffer
	OpCopyBufferToTexture
	OpGenerateMips
)

var opNames = [...]string{
	"barrier", "begin-render-target", "next-subpass", "end-render-target",
	"set-viewport", "set-scissor", "bind-pipeline", "bind-descriptor-set",
	"bind-vertex-buffer", "bind-index-buffer", "push-constants", "draw",
	"draw-indexed", "dispatch", "copy-buffer", "copy-buffer-to-texture",
	"generate-mips",
}

// String returns the operation name.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", o)
}

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op       Op
	Barriers device.Barriers
	Target   device.RenderTargetID
	Texture  device.TextureID
	State    device.State
	Viewport device.Viewport
	Scissor  device.Rect
	Handle   uint64
	Args     [5]uint32
	Data     []byte
}

type recorder struct {
	dev *Device
	id  device.CommandBufferID

	target  device.RenderTargetID
	subpass int
	ended   bool
}

var _ device.CommandRecorder = (*recorder)(nil)

func (r *recorder) record(c Command) {
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()
	if cb, ok := r.dev.cmdbufs[r.id]; ok {
		cb.commands = append(cb.commands, c)
	}
}

func cloneBarriers(b device.Barriers) device.Barriers {
	return device.Barriers{Textures: slices.Clone(b.Textures), Buffers: slices.Clone(b.Buffers)}
}

func (r *recorder) Barrier(b device.Barriers) {
	if b.Empty() {
		return
	}
	r.record(Command{Op: OpBarrier, Barriers: cloneBarriers(b)})
}

func (r *recorder) BeginRenderTarget(rt device.RenderTargetID) error {
	if r.subpass >= 0 {
		return fmt.Errorf("%w: render target already begun", device.ErrRecording)
	}
	r.dev.mu.RLock()
	_, ok := r.dev.targets[rt]
	r.dev.mu.RUnlock()
	if !ok {
		return device.ErrInvalidHandle
	}
	r.target, r.subpass = rt, 0
	r.record(Command{Op: OpBeginRenderTarget, Target: rt})
	return nil
}

func (r *recorder) NextSubpass(transitions device.Barriers) error {
	if r.subpass < 0 {
		return fmt.Errorf("%w: next subpass outside a render target", device.ErrRecording)
	}
	r.dev.mu.RLock()
	rt, ok := r.dev.targets[r.target]
	r.dev.mu.RUnlock()
	if !ok {
		return device.ErrInvalidHandle
	}
	if n := len(rt.Subpasses); r.subpass+1 >= n {
		return fmt.Errorf("%w: render target has %d subpasses", device.ErrRecording, n)
	}
	r.subpass++
	r.record(Command{Op: OpNextSubpass, Target: r.target, Barriers: cloneBarriers(transitions)})
	return nil
}

func (r *recorder) EndRenderTarget() error {
	if r.subpass < 0 {
		return fmt.Errorf("%w: no render target to end", device.ErrRecording)
	}
	r.record(Command{Op: OpEndRenderTarget, Target: r.target})
	r.target, r.subpass = device.InvalidID, -1
	return nil
}

func (r *recorder) SetViewport(v device.Viewport) {
	r.record(Command{Op: OpSetViewport, Viewport: v})
}

func (r *recorder) SetScissor(s device.Rect) {
	r.record(Command{Op: OpSetScissor, Scissor: s})
}

func (r *recorder) BindPipeline(p device.PipelineID) {
	r.record(Command{Op: OpBindPipeline, Handle: uint64(p)})
}

func (r *recorder) BindDescriptorSet(index uint32, set device.DescriptorSetID) {
	r.record(Command{Op: OpBindDescriptorSet, Handle: uint64(set), Args: [5]uint32{index}})
}

func (r *recorder) BindVertexBuffer(slot uint32, buf device.BufferID, offset uint64) {
	r.record(Command{Op: OpBindVertexBuffer, Handle: uint64(buf), Args: [5]uint32{slot, uint32(offset)}})
}

func (r *recorder) BindIndexBuffer(buf device.BufferID, format device.IndexFormat, offset uint64) {
	r.record(Command{Op: OpBindIndexBuffer, Handle: uint64(buf), Args: [5]uint32{uint32(format), uint32(offset)}})
}

func (r *recorder) PushConstants(offset uint32, data []byte) error {
	if err := device.CheckPushConstants(offset, data, r.dev.caps.MaxPushConstantSize); err != nil {
		return err
	}
	r.record(Command{Op: OpPushConstants, Args: [5]uint32{offset}, Data: slices.Clone(data)})
	return nil
}

func (r *recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.record(Command{Op: OpDraw, Args: [5]uint32{vertexCount, instanceCount, firstVertex, firstInstance}})
}

func (r *recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	r.record(Command{Op: OpDrawIndexed, Args: [5]uint32{indexCount, instanceCount, firstIndex, uint32(baseVertex), firstInstance}})
}

func (r *recorder) Dispatch(x, y, z uint32) {
	r.record(Command{Op: OpDispatch, Args: [5]uint32{x, y, z}})
}

func (r *recorder) CopyBuffer(src, dst device.BufferID, regions []device.BufferCopy) {
	for _, reg := range regions {
		r.record(Command{Op: OpCopyBuffer, Handle: uint64(src), Args: [5]uint32{uint32(dst), uint32(reg.SrcOffset), uint32(reg.DstOffset), uint32(reg.Size)}})
	}
}

func (r *recorder) CopyBufferToTexture(src device.BufferID, dst device.TextureID, region device.BufferTextureCopy) {
	r.record(Command{Op: OpCopyBufferToTexture, Handle: uint64(src), Texture: dst, Args: [5]uint32{region.Mip, region.Layer}})
}

func (r *recorder) GenerateMips(tex device.TextureID, from device.State) error {
	if !r.dev.caps.MipGeneration {
		return device.ErrUnsupported
	}
	if r.subpass >= 0 {
		return fmt.Errorf("%w: mip generation inside a render target", device.ErrRecording)
	}
	r.record(Command{Op: OpGenerateMips, Texture: tex, State: from})
	return nil
}

func (r *recorder) End() error {
	if r.ended {
		return fmt.Errorf("%w: command buffer already ended", device.ErrRecording)
	}
	if r.subpass >= 0 {
		return fmt.Errorf("%w: render target still open", device.ErrRecording)
	}
	r.ended = true
	r.dev.mu.Lock()
	defer r.dev.mu.Unlock()
	if cb, ok := r.dev.cmdbufs[r.id]; ok {
		cb.recording = false
	}
	return nil
}

// replay applies a submitted command to the tracked states. Caller must
// hold mu.
func (d *Device) replay(seq uint64, c Command) {
	switch c.Op {
	case OpBarrier, OpNextSubpass:
		d.applyBarriers(seq, c.Op, c.Barriers)
	case OpBeginRenderTarget:
		rt := d.targets[c.Target]
		if rt == nil {
			d.violate(seq, "render target#%d destroyed before submission", c.Target)
			return
		}
		for _, a := range rt.Attachments {
			t := d.textures[a.Texture]
			if t == nil {
				continue
			}
			if a.Initial != device.StateUndefined && t.State != a.Initial {
				d.violate(seq, "%s: attachment texture#%d is %s, render target %q expects %s",
					c.Op, a.Texture, t.State, rt.Label, a.Initial)
			}
			t.State = a.Initial
		}
	case OpEndRenderTarget:
		rt := d.targets[c.Target]
		if rt == nil {
			return
		}
		for _, a := range rt.Attachments {
			if t := d.textures[a.Texture]; t != nil {
				if t.State != a.Final {
					d.violate(seq, "%s: attachment texture#%d is %s, render target %q ends in %s",
						c.Op, a.Texture, t.State, rt.Label, a.Final)
				}
				t.State = a.Final
			}
		}
	case OpGenerateMips:
		t := d.textures[c.Texture]
		if t == nil {
			d.violate(seq, "%s: texture#%d is not live", c.Op, c.Texture)
			return
		}
		if t.State != c.State {
			d.violate(seq, "%s: texture#%d is %s, expected %s", c.Op, c.Texture, t.State, c.State)
		}
		t.State = device.StateShaderRead
	}
}

func (d *Device) applyBarriers(seq uint64, op Op, b device.Barriers) {
	for _, tb := range b.Textures {
		t := d.textures[tb.Texture]
		if t == nil {
			d.violate(seq, "%s: texture#%d is not live", op, tb.Texture)
			continue
		}
		if tb.Old != device.StateUndefined && t.State != tb.Old {
			d.violate(seq, "%s: %s but texture is %s", op, tb, t.State)
		}
		t.State = tb.New
	}
	for _, bb := range b.Buffers {
		buf := d.buffers[bb.Buffer]
		if buf == nil {
			d.violate(seq, "%s: buffer#%d is not live", op, bb.Buffer)
			continue
		}
		if bb.Old != device.StateUndefined && buf.State != bb.Old {
			d.violate(seq, "%s: %s but buffer is %s", op, bb, buf.State)
		}
		buf.State = bb.New
	}
}

func (d *Device) violate(seq uint64, format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf("submit %d: ", seq)+fmt.Sprintf(format, args...))
}
