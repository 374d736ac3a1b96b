// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package noop provides an in-memory device that records every call
// instead of talking to a GPU.
//
// The device tracks the state of each texture and buffer while replaying
// submitted command buffers and records a violation whenever a barrier,
// render target or mip generation assumes a state the resource is not in.
// Tests and tooling use it to check barrier plans without a driver.
//
//	dev := noop.New()
//	g := rendergraph.New(dev)
//	...
//	if v := dev.Violations(); len(v) > 0 {
//		t.Fatal(v)
//	}
package noop

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/device"
)

func init() {
	backend.Register(backend.BackendNoop, func() (device.Device, error) {
		return New(), nil
	})
}

// Texture is the recorded state of a texture.
type Texture struct {
	Desc  device.TextureDesc
	State device.State
}

// View is the recorded state of a texture view.
type View struct {
	Texture device.TextureID
	Desc    device.ViewDesc
}

// Buffer is the recorded state of a buffer.
type Buffer struct {
	Desc  device.BufferDesc
	Data  []byte
	State device.State
}

// Submission is one recorded queue submission.
type Submission struct {
	Seq      uint64
	Queue    device.QueueType
	Commands []Command
	Fence    device.FenceID
	Wait     []device.SemaphoreID
	Signal   []device.SemaphoreID
}

// Option configures a Device.
type Option func(*Device)

// WithCapabilities overrides the reported capabilities.
func WithCapabilities(c device.Capabilities) Option {
	return func(d *Device) { d.caps = c }
}

// Device is a recording implementation of device.Device.
//
// Device is safe for concurrent use.
type Device struct {
	caps device.Capabilities

	mu     sync.RWMutex
	nextID uint64
	closed bool

	textures   map[device.TextureID]*Texture
	views      map[device.ViewID]*View
	buffers    map[device.BufferID]*Buffer
	objects    map[uint64]string
	targets    map[device.RenderTargetID]*device.RenderTargetDesc
	pools      map[device.CommandPoolID][]device.CommandBufferID
	cmdbufs    map[device.CommandBufferID]*commandBuffer
	fences     map[device.FenceID]struct{}
	semaphores map[device.SemaphoreID]struct{}

	submissions []Submission
	seq         uint64
	violations  []string
	failures    map[string]error
}

type commandBuffer struct {
	pool      device.CommandPoolID
	commands  []Command
	recording bool
}

// New returns an empty device that supports every optional feature.
func New(opts ...Option) *Device {
	d := &Device{
		caps: device.Capabilities{
			Subpasses:           true,
			MipGeneration:       true,
			MaxPushConstantSize: device.MaxPushConstantSize,
			MaxFramesInFlight:   8,
		},
		textures:   make(map[device.TextureID]*Texture),
		views:      make(map[device.ViewID]*View),
		buffers:    make(map[device.BufferID]*Buffer),
		objects:    make(map[uint64]string),
		targets:    make(map[device.RenderTargetID]*device.RenderTargetDesc),
		pools:      make(map[device.CommandPoolID][]device.CommandBufferID),
		cmdbufs:    make(map[device.CommandBufferID]*commandBuffer),
		fences:     make(map[device.FenceID]struct{}),
		semaphores: make(map[device.SemaphoreID]struct{}),
		failures:   make(map[string]error),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Name returns "noop".
func (d *Device) Name() string { return backend.BackendNoop }

// Capabilities reports the configured capabilities.
func (d *Device) Capabilities() device.Capabilities { return d.caps }

// FailNext makes the next call of op return err. op is the method name,
// e.g. "CreateTexture" or "Submit".
func (d *Device) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = err
}

// newID allocates a handle. Caller must hold mu.
func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// check consumes an injected failure and rejects calls on a closed
// device. Caller must hold mu.
func (d *Device) check(op string) error {
	if d.closed {
		return device.ErrClosed
	}
	if err, ok := d.failures[op]; ok {
		delete(d.failures, op)
		return err
	}
	return nil
}

// CreateTexture records a texture in StateUndefined.
func (d *Device) CreateTexture(desc *device.TextureDesc) (device.TextureID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateTexture"); err != nil {
		return device.InvalidID, err
	}
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 || desc.Format == device.FormatUndefined {
		return device.InvalidID, fmt.Errorf("noop: invalid texture %q: %s %s", desc.Label, desc.Format, desc.Extent)
	}
	id := device.TextureID(d.newID())
	d.textures[id] = &Texture{Desc: *desc}
	return id, nil
}

// DestroyTexture forgets a texture. Views must be destroyed first.
func (d *Device) DestroyTexture(id device.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for vid, v := range d.views {
		if v.Texture == id {
			d.violations = append(d.violations, fmt.Sprintf("texture#%d destroyed before view#%d", id, vid))
		}
	}
	delete(d.textures, id)
}

// CreateTextureView records a view of a live texture.
func (d *Device) CreateTextureView(tex device.TextureID, desc *device.ViewDesc) (device.ViewID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateTextureView"); err != nil {
		return device.InvalidID, err
	}
	t, ok := d.textures[tex]
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	r := desc.Range
	if r.BaseMip >= t.Desc.MipLevels || r.BaseLayer >= t.Desc.ArrayLayers {
		return device.InvalidID, fmt.Errorf("noop: view %q out of range", desc.Label)
	}
	id := device.ViewID(d.newID())
	d.views[id] = &View{Texture: tex, Desc: *desc}
	return id, nil
}

// DestroyTextureView forgets a view. Destroying a view still bound by a
// render target is a violation.
func (d *Device) DestroyTextureView(id device.ViewID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for rid, rt := range d.targets {
		for _, a := range rt.Attachments {
			if a.View == id {
				d.violations = append(d.violations, fmt.Sprintf("view#%d destroyed before render target#%d", id, rid))
			}
		}
	}
	delete(d.views, id)
}

// CreateBuffer records a zeroed buffer.
func (d *Device) CreateBuffer(desc *device.BufferDesc) (device.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateBuffer"); err != nil {
		return device.InvalidID, err
	}
	id := device.BufferID(d.newID())
	d.buffers[id] = &Buffer{Desc: *desc, Data: make([]byte, desc.Size)}
	return id, nil
}

// DestroyBuffer forgets a buffer.
func (d *Device) DestroyBuffer(id device.BufferID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.buffers, id)
}

// WriteBuffer copies data into the buffer contents.
func (d *Device) WriteBuffer(id device.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[id]
	if !ok {
		return device.ErrInvalidHandle
	}
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("noop: write of %d bytes at %d overflows buffer of %d", len(data), offset, len(b.Data))
	}
	copy(b.Data[offset:], data)
	return nil
}

func (d *Device) createObject(op, kind string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(op); err != nil {
		return device.InvalidID, err
	}
	id := d.newID()
	d.objects[id] = kind
	return id, nil
}

func (d *Device) destroyObject(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.objects, id)
}

// CreateSampler records a sampler.
func (d *Device) CreateSampler(*device.SamplerDesc) (device.SamplerID, error) {
	id, err := d.createObject("CreateSampler", "sampler")
	return device.SamplerID(id), err
}

// DestroySampler forgets a sampler.
func (d *Device) DestroySampler(id device.SamplerID) { d.destroyObject(uint64(id)) }

// CreateShaderModule records a shader module.
func (d *Device) CreateShaderModule(desc *device.ShaderDesc) (device.ShaderModuleID, error) {
	if desc.WGSL == "" && len(desc.SPIRV) == 0 {
		return device.InvalidID, fmt.Errorf("noop: shader %q has no source", desc.Label)
	}
	id, err := d.createObject("CreateShaderModule", "shader")
	return device.ShaderModuleID(id), err
}

// DestroyShaderModule forgets a shader module.
func (d *Device) DestroyShaderModule(id device.ShaderModuleID) { d.destroyObject(uint64(id)) }

// CreateDescriptorLayout records a descriptor layout.
func (d *Device) CreateDescriptorLayout([]device.LayoutEntry) (device.DescriptorLayoutID, error) {
	id, err := d.createObject("CreateDescriptorLayout", "descriptor-layout")
	return device.DescriptorLayoutID(id), err
}

// DestroyDescriptorLayout forgets a descriptor layout.
func (d *Device) DestroyDescriptorLayout(id device.DescriptorLayoutID) { d.destroyObject(uint64(id)) }

// CreateDescriptorSet records a descriptor set. Every referenced view and
// buffer must be live.
func (d *Device) CreateDescriptorSet(layout device.DescriptorLayoutID, entries []device.DescriptorEntry) (device.DescriptorSetID, error) {
	d.mu.RLock()
	_, ok := d.objects[uint64(layout)]
	for _, e := range entries {
		if e.View != device.InvalidID {
			if _, live := d.views[e.View]; !live {
				ok = false
			}
		}
		if e.Buffer != device.InvalidID {
			if _, live := d.buffers[e.Buffer]; !live {
				ok = false
			}
		}
	}
	d.mu.RUnlock()
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	id, err := d.createObject("CreateDescriptorSet", "descriptor-set")
	return device.DescriptorSetID(id), err
}

// DestroyDescriptorSet forgets a descriptor set.
func (d *Device) DestroyDescriptorSet(id device.DescriptorSetID) { d.destroyObject(uint64(id)) }

// CreateGraphicsPipeline records a graphics pipeline.
func (d *Device) CreateGraphicsPipeline(desc *device.GraphicsPipelineDesc) (device.PipelineID, error) {
	if desc.PushConstantSize > d.caps.MaxPushConstantSize {
		return device.InvalidID, device.ErrPushConstantsTooLarge
	}
	id, err := d.createObject("CreateGraphicsPipeline", "pipeline")
	return device.PipelineID(id), err
}

// CreateComputePipeline records a compute pipeline.
func (d *Device) CreateComputePipeline(desc *device.ComputePipelineDesc) (device.PipelineID, error) {
	if desc.PushConstantSize > d.caps.MaxPushConstantSize {
		return device.InvalidID, device.ErrPushConstantsTooLarge
	}
	id, err := d.createObject("CreateComputePipeline", "pipeline")
	return device.PipelineID(id), err
}

// DestroyPipeline forgets a pipeline.
func (d *Device) DestroyPipeline(id device.PipelineID) { d.destroyObject(uint64(id)) }

// CreateRenderTarget records a render target. Attachments must be live
// and match the target extent.
func (d *Device) CreateRenderTarget(desc *device.RenderTargetDesc) (device.RenderTargetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateRenderTarget"); err != nil {
		return device.InvalidID, err
	}
	for i, a := range desc.Attachments {
		t, ok := d.textures[a.Texture]
		if !ok {
			return device.InvalidID, fmt.Errorf("noop: render target %q attachment %d: %w", desc.Label, i, device.ErrInvalidHandle)
		}
		if _, ok := d.views[a.View]; !ok {
			return device.InvalidID, fmt.Errorf("noop: render target %q attachment %d view: %w", desc.Label, i, device.ErrInvalidHandle)
		}
		if t.Desc.Extent.Width < desc.Width || t.Desc.Extent.Height < desc.Height {
			return device.InvalidID, fmt.Errorf("noop: render target %q attachment %d is %s, target is %dx%d",
				desc.Label, i, t.Desc.Extent, desc.Width, desc.Height)
		}
	}
	if len(desc.Subpasses) == 0 {
		return device.InvalidID, fmt.Errorf("noop: render target %q has no subpasses", desc.Label)
	}
	id := device.RenderTargetID(d.newID())
	cp := *desc
	cp.Attachments = slices.Clone(desc.Attachments)
	cp.Subpasses = slices.Clone(desc.Subpasses)
	d.targets[id] = &cp
	return id, nil
}

// DestroyRenderTarget forgets a render target.
func (d *Device) DestroyRenderTarget(id device.RenderTargetID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.targets, id)
}

// CreateCommandPool records a command pool.
func (d *Device) CreateCommandPool(device.QueueType) (device.CommandPoolID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateCommandPool"); err != nil {
		return device.InvalidID, err
	}
	id := device.CommandPoolID(d.newID())
	d.pools[id] = nil
	return id, nil
}

// ResetCommandPool clears the commands of every buffer of the pool.
func (d *Device) ResetCommandPool(id device.CommandPoolID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	bufs, ok := d.pools[id]
	if !ok {
		return device.ErrInvalidHandle
	}
	for _, cb := range bufs {
		d.cmdbufs[cb].commands = nil
		d.cmdbufs[cb].recording = false
	}
	return nil
}

// DestroyCommandPool forgets a pool and its command buffers.
func (d *Device) DestroyCommandPool(id device.CommandPoolID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range d.pools[id] {
		delete(d.cmdbufs, cb)
	}
	delete(d.pools, id)
}

// AllocateCommandBuffer adds a command buffer to a pool.
func (d *Device) AllocateCommandBuffer(pool device.CommandPoolID) (device.CommandBufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pools[pool]; !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	id := device.CommandBufferID(d.newID())
	d.pools[pool] = append(d.pools[pool], id)
	d.cmdbufs[id] = &commandBuffer{pool: pool}
	return id, nil
}

// Begin starts recording into cb, discarding its previous commands.
func (d *Device) Begin(cb device.CommandBufferID) (device.CommandRecorder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("Begin"); err != nil {
		return nil, err
	}
	buf, ok := d.cmdbufs[cb]
	if !ok {
		return nil, device.ErrInvalidHandle
	}
	if buf.recording {
		return nil, fmt.Errorf("%w: command buffer %d already recording", device.ErrRecording, cb)
	}
	buf.recording = true
	buf.commands = nil
	return &recorder{dev: d, id: cb, subpass: -1}, nil
}

// CreateFence records a fence.
func (d *Device) CreateFence() (device.FenceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("CreateFence"); err != nil {
		return device.InvalidID, err
	}
	id := device.FenceID(d.newID())
	d.fences[id] = struct{}{}
	return id, nil
}

// DestroyFence forgets a fence.
func (d *Device) DestroyFence(id device.FenceID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fences, id)
}

// WaitFence returns immediately: submissions complete synchronously.
func (d *Device) WaitFence(id device.FenceID, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("WaitFence"); err != nil {
		return err
	}
	if _, ok := d.fences[id]; !ok {
		return device.ErrInvalidHandle
	}
	return nil
}

// CreateSemaphore records a semaphore.
func (d *Device) CreateSemaphore() (device.SemaphoreID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := device.SemaphoreID(d.newID())
	d.semaphores[id] = struct{}{}
	return id, nil
}

// DestroySemaphore forgets a semaphore.
func (d *Device) DestroySemaphore(id device.SemaphoreID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.semaphores, id)
}

// Submit replays the command buffers against the tracked resource states
// and records the submission.
func (d *Device) Submit(queue device.QueueType, info *device.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check("Submit"); err != nil {
		return err
	}
	if info.Fence != device.InvalidID {
		if _, ok := d.fences[info.Fence]; !ok {
			return device.ErrInvalidHandle
		}
	}

	d.seq++
	sub := Submission{
		Seq:    d.seq,
		Queue:  queue,
		Fence:  info.Fence,
		Wait:   slices.Clone(info.Wait),
		Signal: slices.Clone(info.Signal),
	}
	for _, id := range info.CommandBuffers {
		cb, ok := d.cmdbufs[id]
		if !ok {
			return device.ErrInvalidHandle
		}
		if cb.recording {
			return fmt.Errorf("%w: command buffer %d submitted while recording", device.ErrRecording, id)
		}
		sub.Commands = append(sub.Commands, cb.commands...)
	}
	for _, c := range sub.Commands {
		d.replay(sub.Seq, c)
	}
	d.submissions = append(d.submissions, sub)
	return nil
}

// WaitIdle returns immediately.
func (d *Device) WaitIdle() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return device.ErrClosed
	}
	return nil
}

// Close marks the device closed. Use Live to check for leaks first.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
}

// Submissions returns the recorded submissions in order.
func (d *Device) Submissions() []Submission {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.submissions)
}

// ClearSubmissions forgets the recorded submissions.
func (d *Device) ClearSubmissions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
}

// Violations returns the state mismatches and lifetime errors observed.
func (d *Device) Violations() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.violations)
}

// Texture returns a copy of the recorded texture.
func (d *Device) Texture(id device.TextureID) (Texture, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.textures[id]
	if !ok {
		return Texture{}, false
	}
	return *t, true
}

// View returns a copy of the recorded view.
func (d *Device) View(id device.ViewID) (View, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.views[id]
	if !ok {
		return View{}, false
	}
	return *v, true
}

// Buffer returns a copy of the recorded buffer.
func (d *Device) Buffer(id device.BufferID) (Buffer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.buffers[id]
	if !ok {
		return Buffer{}, false
	}
	cp := *b
	cp.Data = slices.Clone(b.Data)
	return cp, true
}

// RenderTarget returns a copy of the recorded render target.
func (d *Device) RenderTarget(id device.RenderTargetID) (device.RenderTargetDesc, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rt, ok := d.targets[id]
	if !ok {
		return device.RenderTargetDesc{}, false
	}
	return *rt, true
}

// SetTextureState forces the tracked state of a texture, e.g. to mirror
// what an external producer of an imported texture leaves behind.
func (d *Device) SetTextureState(id device.TextureID, s device.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.textures[id]; ok {
		t.State = s
	}
}

// Live counts live objects by kind.
type Live struct {
	Textures, Views, Buffers, RenderTargets, Objects, Pools, Fences int
}

// Live returns the number of live objects.
func (d *Device) Live() Live {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Live{
		Textures:      len(d.textures),
		Views:         len(d.views),
		Buffers:       len(d.buffers),
		RenderTargets: len(d.targets),
		Objects:       len(d.objects),
		Pools:         len(d.pools),
		Fences:        len(d.fences),
	}
}
