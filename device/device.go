// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"time"
)

// Common device errors.
var (
	// ErrInvalidHandle is returned when an ID does not name a live object.
	ErrInvalidHandle = errors.New("device: invalid handle")

	// ErrUnsupported is returned for operations the backend cannot perform.
	ErrUnsupported = errors.New("device: unsupported operation")

	// ErrPushConstantsTooLarge is returned when a push constant block
	// exceeds MaxPushConstantSize.
	ErrPushConstantsTooLarge = errors.New("device: push constants exceed 128 bytes")

	// ErrTimeout is returned when a fence wait expires.
	ErrTimeout = errors.New("device: wait timed out")

	// ErrFenceBusy is returned by Submit when the fence's previous
	// submission has not completed.
	ErrFenceBusy = errors.New("device: fence still pending")

	// ErrClosed is returned when operating on a closed device.
	ErrClosed = errors.New("device: closed")

	// ErrRecording is returned for misuse of the recording state machine,
	// such as ending a render target that was never begun.
	ErrRecording = errors.New("device: invalid recording state")
)

// Device is the backend capability set the render graph is written against.
//
// Implementations must be safe for concurrent use of the resource
// lifecycle methods. A CommandRecorder is used by one goroutine at a time.
type Device interface {
	// Name returns the backend identifier (e.g., "vulkan", "hal").
	Name() string

	// Capabilities reports optional features.
	Capabilities() Capabilities

	CreateTexture(desc *TextureDesc) (TextureID, error)
	DestroyTexture(id TextureID)
	CreateTextureView(tex TextureID, desc *ViewDesc) (ViewID, error)
	DestroyTextureView(id ViewID)

	CreateBuffer(desc *BufferDesc) (BufferID, error)
	DestroyBuffer(id BufferID)
	// WriteBuffer uploads data into a host visible buffer or through the
	// queue's staging path.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	CreateSampler(desc *SamplerDesc) (SamplerID, error)
	DestroySampler(id SamplerID)

	CreateShaderModule(desc *ShaderDesc) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)

	CreateDescriptorLayout(entries []LayoutEntry) (DescriptorLayoutID, error)
	DestroyDescriptorLayout(id DescriptorLayoutID)
	// CreateDescriptorSet allocates a set from the backend's descriptor
	// pool and writes the entries into it.
	CreateDescriptorSet(layout DescriptorLayoutID, entries []DescriptorEntry) (DescriptorSetID, error)
	DestroyDescriptorSet(id DescriptorSetID)

	CreateGraphicsPipeline(desc *GraphicsPipelineDesc) (PipelineID, error)
	CreateComputePipeline(desc *ComputePipelineDesc) (PipelineID, error)
	DestroyPipeline(id PipelineID)

	CreateRenderTarget(desc *RenderTargetDesc) (RenderTargetID, error)
	DestroyRenderTarget(id RenderTargetID)

	CreateCommandPool(queue QueueType) (CommandPoolID, error)
	// ResetCommandPool recycles every command buffer of the pool. The
	// caller guarantees the GPU is done with them.
	ResetCommandPool(id CommandPoolID) error
	DestroyCommandPool(id CommandPoolID)
	AllocateCommandBuffer(pool CommandPoolID) (CommandBufferID, error)
	// Begin starts recording into cb.
	Begin(cb CommandBufferID) (CommandRecorder, error)

	CreateFence() (FenceID, error)
	DestroyFence(id FenceID)
	// WaitFence blocks until the fence's last submission completes or the
	// timeout expires (ErrTimeout). A fence never submitted is signaled.
	WaitFence(id FenceID, timeout time.Duration) error
	CreateSemaphore() (SemaphoreID, error)
	DestroySemaphore(id SemaphoreID)

	// Submit queues recorded command buffers. It never blocks on the
	// GPU: when info.Fence still guards an earlier submission, backends
	// that cannot re-arm a pending fence fail with ErrFenceBusy. Wait on
	// the fence before submitting with it again.
	Submit(queue QueueType, info *SubmitInfo) error

	// WaitIdle blocks until every queue is idle.
	WaitIdle() error

	// Close releases the device. The device must not be used afterwards.
	Close()
}

// CommandRecorder records commands into one command buffer.
type CommandRecorder interface {
	// Barrier issues state transitions outside a render target.
	Barrier(b Barriers)

	// BeginRenderTarget starts subpass 0 of a render target.
	BeginRenderTarget(rt RenderTargetID) error
	// NextSubpass advances to the next subpass. transitions are the state
	// changes between the subpasses; native subpass backends already
	// encoded them as subpass dependencies and may ignore them.
	NextSubpass(transitions Barriers) error
	EndRenderTarget() error

	SetViewport(v Viewport)
	SetScissor(r Rect)

	BindPipeline(p PipelineID)
	BindDescriptorSet(index uint32, set DescriptorSetID)
	BindVertexBuffer(slot uint32, buf BufferID, offset uint64)
	BindIndexBuffer(buf BufferID, format IndexFormat, offset uint64)
	// PushConstants sets push constant data for the bound pipeline.
	PushConstants(offset uint32, data []byte) error

	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	Dispatch(x, y, z uint32)

	CopyBuffer(src, dst BufferID, regions []BufferCopy)
	CopyBufferToTexture(src BufferID, dst TextureID, region BufferTextureCopy)

	// GenerateMips fills mips 1..n-1 from mip 0 by successive blits. The
	// texture is in state from on entry and entirely StateShaderRead on exit.
	GenerateMips(tex TextureID, from State) error

	// End finishes recording.
	End() error
}

// CheckPushConstants validates a push constant block against the hard
// 128-byte limit and the device-reported limit.
func CheckPushConstants(offset uint32, data []byte, limit uint32) error {
	if limit == 0 || limit > MaxPushConstantSize {
		limit = MaxPushConstantSize
	}
	if uint64(offset)+uint64(len(data)) > uint64(limit) {
		return ErrPushConstantsTooLarge
	}
	return nil
}
