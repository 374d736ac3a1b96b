// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	wgpuhal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/handle"
)

// idleTimeout bounds WaitIdle.
const idleTimeout = 5 * time.Second

func init() {
	backend.Register(backend.BackendHAL, func() (device.Device, error) {
		return Open()
	})
}

type texture struct {
	raw  wgpuhal.Texture
	desc device.TextureDesc
}

type view struct {
	raw     wgpuhal.TextureView
	texture device.TextureID
	desc    device.ViewDesc
}

type buffer struct {
	raw  wgpuhal.Buffer
	desc device.BufferDesc
}

type layout struct {
	raw     wgpuhal.BindGroupLayout
	entries []device.LayoutEntry
}

type pipeline struct {
	layout  wgpuhal.PipelineLayout
	render  wgpuhal.RenderPipeline
	compute wgpuhal.ComputePipeline
}

type renderTarget struct {
	desc  device.RenderTargetDesc
	views []wgpuhal.TextureView
}

type commandPool struct {
	mu      sync.Mutex
	buffers []device.CommandBufferID
}

type commandBuffer struct {
	pool      device.CommandPoolID
	raw       wgpuhal.CommandBuffer
	recording bool
	// transient holds releases of objects the recorded commands use.
	transient []func()
}

// free releases the recorded commands. The GPU must be done with them.
func (cb *commandBuffer) free(dev wgpuhal.Device) {
	if cb.raw != nil {
		dev.FreeCommandBuffer(cb.raw)
		cb.raw = nil
	}
	for _, release := range cb.transient {
		release()
	}
	cb.transient = nil
}

type fence struct {
	raw wgpuhal.Fence
	// value is the fence value of the last submission signaling it.
	value atomic.Uint64
}

// Device adapts a HAL device and queue to device.Device.
type Device struct {
	dev     wgpuhal.Device
	queue   wgpuhal.Queue
	release func()

	ids        handle.Counter
	textures   *handle.Table[*texture]
	views      *handle.Table[*view]
	buffers    *handle.Table[*buffer]
	samplers   *handle.Table[wgpuhal.Sampler]
	shaders    *handle.Table[wgpuhal.ShaderModule]
	layouts    *handle.Table[*layout]
	sets       *handle.Table[wgpuhal.BindGroup]
	pipelines  *handle.Table[*pipeline]
	targets    *handle.Table[*renderTarget]
	pools      *handle.Table[*commandPool]
	cmdbufs    *handle.Table[*commandBuffer]
	fences     *handle.Table[*fence]
	semaphores *handle.Table[struct{}]

	mipsOnce sync.Once
	mips     *mipGenerator
	mipsErr  error

	closed atomic.Bool
}

// New wraps a HAL device and its queue. The caller keeps ownership of
// both: Close releases the objects created through the Device only.
func New(dev wgpuhal.Device, queue wgpuhal.Queue) *Device {
	d := &Device{dev: dev, queue: queue}
	d.textures = handle.NewTable[*texture](&d.ids)
	d.views = handle.NewTable[*view](&d.ids)
	d.buffers = handle.NewTable[*buffer](&d.ids)
	d.samplers = handle.NewTable[wgpuhal.Sampler](&d.ids)
	d.shaders = handle.NewTable[wgpuhal.ShaderModule](&d.ids)
	d.layouts = handle.NewTable[*layout](&d.ids)
	d.sets = handle.NewTable[wgpuhal.BindGroup](&d.ids)
	d.pipelines = handle.NewTable[*pipeline](&d.ids)
	d.targets = handle.NewTable[*renderTarget](&d.ids)
	d.pools = handle.NewTable[*commandPool](&d.ids)
	d.cmdbufs = handle.NewTable[*commandBuffer](&d.ids)
	d.fences = handle.NewTable[*fence](&d.ids)
	d.semaphores = handle.NewTable[struct{}](&d.ids)
	return d
}

// ErrNoHalAccess is returned by NewFromProvider when the provider does
// not expose its HAL device.
var ErrNoHalAccess = errors.New("hal: provider does not expose a HAL device")

// NewFromProvider shares the HAL device of a gpucontext provider, such as
// a gogpu window. The provider must implement HalDevice() and HalQueue().
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, ErrNoHalAccess
	}
	dev, ok := hp.HalDevice().(wgpuhal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is %T", ErrNoHalAccess, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(wgpuhal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is %T", ErrNoHalAccess, hp.HalQueue())
	}
	backend.Logger().Info("hal: sharing provider device")
	return New(dev, queue), nil
}

// Open creates a standalone device on the first discrete or integrated
// adapter of the Vulkan HAL. Close destroys it.
func Open() (*Device, error) {
	api, ok := wgpuhal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: no vulkan HAL", backend.ErrBackendNotAvailable)
	}
	instance, err := api.CreateInstance(&wgpuhal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("hal: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters", backend.ErrBackendNotAvailable)
	}
	selected := &adapters[0]
	for i := range adapters {
		if t := adapters[i].Info.DeviceType; t == gputypes.DeviceTypeDiscreteGPU || t == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("hal: open %s: %w", selected.Info.Name, err)
	}
	d := New(open.Device, open.Queue)
	d.release = func() {
		open.Device.Destroy()
		instance.Destroy()
	}
	backend.Logger().Info("hal: device opened", "adapter", selected.Info.Name)
	return d, nil
}

// Name returns "hal".
func (d *Device) Name() string { return backend.BackendHAL }

// Capabilities reports replayed subpasses and render-pass mip generation.
func (d *Device) Capabilities() device.Capabilities {
	return device.Capabilities{
		Subpasses:         false,
		MipGeneration:     true,
		MaxFramesInFlight: 3,
	}
}

func (d *Device) check() error {
	if d.closed.Load() {
		return device.ErrClosed
	}
	return nil
}

// CreateTexture creates a HAL texture.
func (d *Device) CreateTexture(desc *device.TextureDesc) (device.TextureID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	depth := desc.Extent.Depth
	if desc.ViewType != device.ViewType3D {
		depth = max(desc.ArrayLayers, 1)
	}
	raw, err := d.dev.CreateTexture(&wgpuhal.TextureDescriptor{
		Label:         desc.Label,
		Size:          wgpuhal.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, DepthOrArrayLayers: depth},
		MipLevelCount: max(desc.MipLevels, 1),
		SampleCount:   max(desc.Samples, 1),
		Dimension:     textureDimension(desc.ViewType),
		Format:        textureFormat(desc.Format),
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create texture %q: %w", desc.Label, err)
	}
	return device.TextureID(d.textures.Add(&texture{raw: raw, desc: *desc})), nil
}

// DestroyTexture destroys a texture.
func (d *Device) DestroyTexture(id device.TextureID) {
	if t, ok := d.textures.Remove(uint64(id)); ok {
		d.dev.DestroyTexture(t.raw)
	}
}

// CreateTextureView creates a view of a subresource range.
func (d *Device) CreateTextureView(tex device.TextureID, desc *device.ViewDesc) (device.ViewID, error) {
	t, ok := d.textures.Get(uint64(tex))
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	format := desc.Format
	if format == device.FormatUndefined {
		format = t.desc.Format
	}
	raw, err := d.dev.CreateTextureView(t.raw, &wgpuhal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          textureFormat(format),
		Dimension:       viewDimension(desc.ViewType),
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    desc.Range.BaseMip,
		MipLevelCount:   desc.Range.MipCount,
		BaseArrayLayer:  desc.Range.BaseLayer,
		ArrayLayerCount: desc.Range.LayerCount,
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create view %q: %w", desc.Label, err)
	}
	return device.ViewID(d.views.Add(&view{raw: raw, texture: tex, desc: *desc})), nil
}

// DestroyTextureView destroys a view.
func (d *Device) DestroyTextureView(id device.ViewID) {
	if v, ok := d.views.Remove(uint64(id)); ok {
		d.dev.DestroyTextureView(v.raw)
	}
}

// CreateBuffer creates a HAL buffer.
func (d *Device) CreateBuffer(desc *device.BufferDesc) (device.BufferID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	raw, err := d.dev.CreateBuffer(&wgpuhal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: bufferUsage(desc.Usage),
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create buffer %q: %w", desc.Label, err)
	}
	return device.BufferID(d.buffers.Add(&buffer{raw: raw, desc: *desc})), nil
}

// DestroyBuffer destroys a buffer.
func (d *Device) DestroyBuffer(id device.BufferID) {
	if b, ok := d.buffers.Remove(uint64(id)); ok {
		d.dev.DestroyBuffer(b.raw)
	}
}

// WriteBuffer uploads data through the queue.
func (d *Device) WriteBuffer(id device.BufferID, offset uint64, data []byte) error {
	b, ok := d.buffers.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return fmt.Errorf("hal: write of %d bytes at %d overflows buffer %q of %d", len(data), offset, b.desc.Label, b.desc.Size)
	}
	d.queue.WriteBuffer(b.raw, offset, data)
	return nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *device.SamplerDesc) (device.SamplerID, error) {
	mode := addressMode(desc.Address)
	filter := filterMode(desc.Filter)
	raw, err := d.dev.CreateSampler(&wgpuhal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: mode,
		AddressModeV: mode,
		AddressModeW: mode,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create sampler %q: %w", desc.Label, err)
	}
	return device.SamplerID(d.samplers.Add(raw)), nil
}

// DestroySampler destroys a sampler.
func (d *Device) DestroySampler(id device.SamplerID) {
	if s, ok := d.samplers.Remove(uint64(id)); ok {
		d.dev.DestroySampler(s)
	}
}

// CreateShaderModule creates a module from WGSL. SPIR-V only modules are
// not supported.
func (d *Device) CreateShaderModule(desc *device.ShaderDesc) (device.ShaderModuleID, error) {
	if desc.WGSL == "" {
		return device.InvalidID, fmt.Errorf("hal: shader %q: %w: WGSL source required", desc.Label, device.ErrUnsupported)
	}
	raw, err := d.dev.CreateShaderModule(&wgpuhal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: wgpuhal.ShaderSource{WGSL: desc.WGSL},
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create shader %q: %w", desc.Label, err)
	}
	return device.ShaderModuleID(d.shaders.Add(raw)), nil
}

// DestroyShaderModule destroys a shader module.
func (d *Device) DestroyShaderModule(id device.ShaderModuleID) {
	if s, ok := d.shaders.Remove(uint64(id)); ok {
		d.dev.DestroyShaderModule(s)
	}
}

// CreateDescriptorLayout creates a bind group layout.
func (d *Device) CreateDescriptorLayout(entries []device.LayoutEntry) (device.DescriptorLayoutID, error) {
	out := make([]gputypes.BindGroupLayoutEntry, len(entries))
	for i, e := range entries {
		out[i] = layoutEntry(e)
	}
	raw, err := d.dev.CreateBindGroupLayout(&wgpuhal.BindGroupLayoutDescriptor{Entries: out})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create bind group layout: %w", err)
	}
	return device.DescriptorLayoutID(d.layouts.Add(&layout{raw: raw, entries: slices.Clone(entries)})), nil
}

// DestroyDescriptorLayout destroys a bind group layout.
func (d *Device) DestroyDescriptorLayout(id device.DescriptorLayoutID) {
	if l, ok := d.layouts.Remove(uint64(id)); ok {
		d.dev.DestroyBindGroupLayout(l.raw)
	}
}

// CreateDescriptorSet creates a bind group.
func (d *Device) CreateDescriptorSet(id device.DescriptorLayoutID, entries []device.DescriptorEntry) (device.DescriptorSetID, error) {
	l, ok := d.layouts.Get(uint64(id))
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	out := make([]gputypes.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		i := slices.IndexFunc(l.entries, func(le device.LayoutEntry) bool { return le.Binding == e.Binding })
		if i < 0 {
			return device.InvalidID, fmt.Errorf("hal: binding %d not in layout", e.Binding)
		}
		entry := gputypes.BindGroupEntry{Binding: e.Binding}
		switch l.entries[i].Type {
		case device.DescriptorUniformBuffer, device.DescriptorStorageBuffer, device.DescriptorReadOnlyStorageBuffer:
			b, ok := d.buffers.Get(uint64(e.Buffer))
			if !ok {
				return device.InvalidID, fmt.Errorf("hal: binding %d buffer: %w", e.Binding, device.ErrInvalidHandle)
			}
			entry.Resource = gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: e.Size}
		case device.DescriptorSampler:
			s, ok := d.samplers.Get(uint64(e.Sampler))
			if !ok {
				return device.InvalidID, fmt.Errorf("hal: binding %d sampler: %w", e.Binding, device.ErrInvalidHandle)
			}
			entry.Resource = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
		default:
			v, ok := d.views.Get(uint64(e.View))
			if !ok {
				return device.InvalidID, fmt.Errorf("hal: binding %d view: %w", e.Binding, device.ErrInvalidHandle)
			}
			entry.Resource = gputypes.TextureViewBinding{TextureView: v.raw.NativeHandle()}
		}
		out = append(out, entry)
	}
	raw, err := d.dev.CreateBindGroup(&wgpuhal.BindGroupDescriptor{Layout: l.raw, Entries: out})
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create bind group: %w", err)
	}
	return device.DescriptorSetID(d.sets.Add(raw)), nil
}

// DestroyDescriptorSet destroys a bind group.
func (d *Device) DestroyDescriptorSet(id device.DescriptorSetID) {
	if s, ok := d.sets.Remove(uint64(id)); ok {
		d.dev.DestroyBindGroup(s)
	}
}

func (d *Device) pipelineLayout(label string, ids []device.DescriptorLayoutID, push uint32) (wgpuhal.PipelineLayout, error) {
	if push > 0 {
		return nil, fmt.Errorf("hal: pipeline %q: push constants: %w", label, device.ErrUnsupported)
	}
	layouts := make([]wgpuhal.BindGroupLayout, len(ids))
	for i, id := range ids {
		l, ok := d.layouts.Get(uint64(id))
		if !ok {
			return nil, fmt.Errorf("hal: pipeline %q layout %d: %w", label, i, device.ErrInvalidHandle)
		}
		layouts[i] = l.raw
	}
	pl, err := d.dev.CreatePipelineLayout(&wgpuhal.PipelineLayoutDescriptor{
		Label:            label + "_layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: pipeline %q layout: %w", label, err)
	}
	return pl, nil
}

// CreateGraphicsPipeline creates a render pipeline. RenderTarget and
// Subpass are ignored: HAL pipelines match passes by format.
func (d *Device) CreateGraphicsPipeline(desc *device.GraphicsPipelineDesc) (device.PipelineID, error) {
	vs, ok := d.shaders.Get(uint64(desc.Vertex))
	if !ok {
		return device.InvalidID, fmt.Errorf("hal: pipeline %q vertex shader: %w", desc.Label, device.ErrInvalidHandle)
	}
	pl, err := d.pipelineLayout(desc.Label, desc.Layouts, desc.PushConstantSize)
	if err != nil {
		return device.InvalidID, err
	}
	pd := &wgpuhal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pl,
		Vertex: wgpuhal.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexBuffers(desc.VertexBuffers),
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: cullMode(desc.CullMode),
		},
		Multisample: gputypes.MultisampleState{
			Count: max(desc.Samples, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.Fragment != device.InvalidID {
		fs, ok := d.shaders.Get(uint64(desc.Fragment))
		if !ok {
			d.dev.DestroyPipelineLayout(pl)
			return device.InvalidID, fmt.Errorf("hal: pipeline %q fragment shader: %w", desc.Label, device.ErrInvalidHandle)
		}
		targets := make([]gputypes.ColorTargetState, len(desc.ColorFormats))
		for i, f := range desc.ColorFormats {
			targets[i] = gputypes.ColorTargetState{Format: textureFormat(f), WriteMask: gputypes.ColorWriteMaskAll}
		}
		pd.Fragment = &wgpuhal.FragmentState{Module: fs, EntryPoint: desc.FragmentEntry, Targets: targets}
	}
	if desc.DepthFormat != device.FormatUndefined {
		compare := gputypes.CompareFunctionAlways
		if desc.DepthTest {
			compare = gputypes.CompareFunctionLess
		}
		keep := wgpuhal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      wgpuhal.StencilOperationKeep,
			DepthFailOp: wgpuhal.StencilOperationKeep,
			PassOp:      wgpuhal.StencilOperationKeep,
		}
		pd.DepthStencil = &wgpuhal.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}
	raw, err := d.dev.CreateRenderPipeline(pd)
	if err != nil {
		d.dev.DestroyPipelineLayout(pl)
		return device.InvalidID, fmt.Errorf("hal: create render pipeline %q: %w", desc.Label, err)
	}
	return device.PipelineID(d.pipelines.Add(&pipeline{layout: pl, render: raw})), nil
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc *device.ComputePipelineDesc) (device.PipelineID, error) {
	cs, ok := d.shaders.Get(uint64(desc.Module))
	if !ok {
		return device.InvalidID, fmt.Errorf("hal: pipeline %q shader: %w", desc.Label, device.ErrInvalidHandle)
	}
	pl, err := d.pipelineLayout(desc.Label, desc.Layouts, desc.PushConstantSize)
	if err != nil {
		return device.InvalidID, err
	}
	raw, err := d.dev.CreateComputePipeline(&wgpuhal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  pl,
		Compute: wgpuhal.ComputeState{Module: cs, EntryPoint: desc.EntryPoint},
	})
	if err != nil {
		d.dev.DestroyPipelineLayout(pl)
		return device.InvalidID, fmt.Errorf("hal: create compute pipeline %q: %w", desc.Label, err)
	}
	return device.PipelineID(d.pipelines.Add(&pipeline{layout: pl, compute: raw})), nil
}

// DestroyPipeline destroys a pipeline and its layout.
func (d *Device) DestroyPipeline(id device.PipelineID) {
	p, ok := d.pipelines.Remove(uint64(id))
	if !ok {
		return
	}
	if p.render != nil {
		d.dev.DestroyRenderPipeline(p.render)
	}
	if p.compute != nil {
		d.dev.DestroyComputePipeline(p.compute)
	}
	d.dev.DestroyPipelineLayout(p.layout)
}

// CreateRenderTarget records the attachments and subpasses of a group.
// The HAL begins one render pass per subpass, so no native object exists.
func (d *Device) CreateRenderTarget(desc *device.RenderTargetDesc) (device.RenderTargetID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	if len(desc.Subpasses) == 0 {
		return device.InvalidID, fmt.Errorf("hal: render target %q has no subpasses", desc.Label)
	}
	rt := &renderTarget{desc: *desc, views: make([]wgpuhal.TextureView, len(desc.Attachments))}
	rt.desc.Attachments = slices.Clone(desc.Attachments)
	rt.desc.Subpasses = slices.Clone(desc.Subpasses)
	for i, a := range desc.Attachments {
		v, ok := d.views.Get(uint64(a.View))
		if !ok {
			return device.InvalidID, fmt.Errorf("hal: render target %q attachment %d: %w", desc.Label, i, device.ErrInvalidHandle)
		}
		rt.views[i] = v.raw
	}
	for k, sp := range desc.Subpasses {
		refs := slices.Concat(sp.ColorAttachments, sp.InputAttachments, []int{sp.DepthAttachment})
		for _, ref := range refs {
			if ref >= len(desc.Attachments) {
				return device.InvalidID, fmt.Errorf("hal: render target %q subpass %d references attachment %d", desc.Label, k, ref)
			}
		}
	}
	return device.RenderTargetID(d.targets.Add(rt)), nil
}

// DestroyRenderTarget forgets a render target.
func (d *Device) DestroyRenderTarget(id device.RenderTargetID) {
	d.targets.Remove(uint64(id))
}

// CreateCommandPool creates a pool. The HAL has a single queue.
func (d *Device) CreateCommandPool(device.QueueType) (device.CommandPoolID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	return device.CommandPoolID(d.pools.Add(&commandPool{})), nil
}

// ResetCommandPool frees the recorded HAL command buffers of the pool.
func (d *Device) ResetCommandPool(id device.CommandPoolID) error {
	p, ok := d.pools.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cid := range p.buffers {
		cb, ok := d.cmdbufs.Get(uint64(cid))
		if !ok {
			continue
		}
		if cb.recording {
			return fmt.Errorf("hal: reset pool while recording: %w", device.ErrRecording)
		}
		cb.free(d.dev)
	}
	return nil
}

// DestroyCommandPool frees the pool and its command buffers.
func (d *Device) DestroyCommandPool(id device.CommandPoolID) {
	p, ok := d.pools.Remove(uint64(id))
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cid := range p.buffers {
		if cb, ok := d.cmdbufs.Remove(uint64(cid)); ok {
			cb.free(d.dev)
		}
	}
}

// AllocateCommandBuffer allocates a command buffer from the pool.
func (d *Device) AllocateCommandBuffer(pool device.CommandPoolID) (device.CommandBufferID, error) {
	p, ok := d.pools.Get(uint64(pool))
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	id := device.CommandBufferID(d.cmdbufs.Add(&commandBuffer{pool: pool}))
	p.mu.Lock()
	p.buffers = append(p.buffers, id)
	p.mu.Unlock()
	return id, nil
}

// Begin starts a HAL command encoder for cb.
func (d *Device) Begin(id device.CommandBufferID) (device.CommandRecorder, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	cb, ok := d.cmdbufs.Get(uint64(id))
	if !ok {
		return nil, device.ErrInvalidHandle
	}
	if cb.recording || cb.raw != nil {
		return nil, fmt.Errorf("hal: begin command buffer %d: %w", id, device.ErrRecording)
	}
	label := fmt.Sprintf("cmd%d", id)
	enc, err := d.dev.CreateCommandEncoder(&wgpuhal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("hal: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("hal: begin encoding: %w", err)
	}
	cb.recording = true
	return &recorder{d: d, cb: cb, enc: enc}, nil
}

// CreateFence creates a HAL fence.
func (d *Device) CreateFence() (device.FenceID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	raw, err := d.dev.CreateFence()
	if err != nil {
		return device.InvalidID, fmt.Errorf("hal: create fence: %w", err)
	}
	return device.FenceID(d.fences.Add(&fence{raw: raw})), nil
}

// DestroyFence destroys a fence.
func (d *Device) DestroyFence(id device.FenceID) {
	if f, ok := d.fences.Remove(uint64(id)); ok {
		d.dev.DestroyFence(f.raw)
	}
}

// WaitFence waits for the last submission signaling the fence.
func (d *Device) WaitFence(id device.FenceID, timeout time.Duration) error {
	f, ok := d.fences.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	v := f.value.Load()
	if v == 0 {
		return nil
	}
	done, err := d.dev.Wait(f.raw, v, timeout)
	if err != nil {
		return fmt.Errorf("hal: wait fence: %w", err)
	}
	if !done {
		return device.ErrTimeout
	}
	return nil
}

// CreateSemaphore returns a handle. Work on the single HAL queue is
// ordered, so semaphores carry no native object.
func (d *Device) CreateSemaphore() (device.SemaphoreID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	return device.SemaphoreID(d.semaphores.Add(struct{}{})), nil
}

// DestroySemaphore forgets a semaphore.
func (d *Device) DestroySemaphore(id device.SemaphoreID) {
	d.semaphores.Remove(uint64(id))
}

// Submit queues finished command buffers on the HAL queue.
func (d *Device) Submit(_ device.QueueType, info *device.SubmitInfo) error {
	if err := d.check(); err != nil {
		return err
	}
	cbs := make([]wgpuhal.CommandBuffer, 0, len(info.CommandBuffers))
	for _, id := range info.CommandBuffers {
		cb, ok := d.cmdbufs.Get(uint64(id))
		if !ok {
			return device.ErrInvalidHandle
		}
		if cb.raw == nil {
			return fmt.Errorf("hal: submit command buffer %d: %w", id, device.ErrRecording)
		}
		cbs = append(cbs, cb.raw)
	}
	var (
		raw   wgpuhal.Fence
		value uint64
	)
	if info.Fence != device.InvalidID {
		f, ok := d.fences.Get(uint64(info.Fence))
		if !ok {
			return device.ErrInvalidHandle
		}
		raw, value = f.raw, f.value.Add(1)
	}
	if err := d.queue.Submit(cbs, raw, value); err != nil {
		return fmt.Errorf("hal: submit: %w", err)
	}
	return nil
}

// WaitIdle submits an empty batch with a fresh fence and waits for it.
func (d *Device) WaitIdle() error {
	f, err := d.dev.CreateFence()
	if err != nil {
		return fmt.Errorf("hal: wait idle: %w", err)
	}
	defer d.dev.DestroyFence(f)
	if err := d.queue.Submit(nil, f, 1); err != nil {
		return fmt.Errorf("hal: wait idle: %w", err)
	}
	done, err := d.dev.Wait(f, 1, idleTimeout)
	if err != nil {
		return fmt.Errorf("hal: wait idle: %w", err)
	}
	if !done {
		return device.ErrTimeout
	}
	return nil
}

// Live returns the number of live objects created through the device.
func (d *Device) Live() int {
	return d.textures.Len() + d.views.Len() + d.buffers.Len() + d.samplers.Len() +
		d.shaders.Len() + d.layouts.Len() + d.sets.Len() + d.pipelines.Len() +
		d.targets.Len() + d.pools.Len() + d.cmdbufs.Len() + d.fences.Len() + d.semaphores.Len()
}

// Close waits for the queue and destroys every object still alive. A
// device from Open also destroys the HAL device.
func (d *Device) Close() {
	if d.closed.Swap(true) {
		return
	}
	if err := d.WaitIdle(); err != nil {
		backend.Logger().Warn("hal: close without idle queue", "err", err)
	}
	if n := d.Live(); n > 0 {
		backend.Logger().Debug("hal: destroying leaked objects", "count", n)
	}
	if d.mips != nil {
		d.mips.destroy()
	}
	for _, cb := range d.cmdbufs.Drain() {
		cb.free(d.dev)
	}
	d.pools.Drain()
	d.targets.Drain()
	d.semaphores.Drain()
	for _, f := range d.fences.Drain() {
		d.dev.DestroyFence(f.raw)
	}
	for _, p := range d.pipelines.Drain() {
		if p.render != nil {
			d.dev.DestroyRenderPipeline(p.render)
		}
		if p.compute != nil {
			d.dev.DestroyComputePipeline(p.compute)
		}
		d.dev.DestroyPipelineLayout(p.layout)
	}
	for _, s := range d.sets.Drain() {
		d.dev.DestroyBindGroup(s)
	}
	for _, l := range d.layouts.Drain() {
		d.dev.DestroyBindGroupLayout(l.raw)
	}
	for _, s := range d.shaders.Drain() {
		d.dev.DestroyShaderModule(s)
	}
	for _, s := range d.samplers.Drain() {
		d.dev.DestroySampler(s)
	}
	for _, v := range d.views.Drain() {
		d.dev.DestroyTextureView(v.raw)
	}
	for _, t := range d.textures.Drain() {
		d.dev.DestroyTexture(t.raw)
	}
	for _, b := range d.buffers.Drain() {
		d.dev.DestroyBuffer(b.raw)
	}
	if d.release != nil {
		d.release()
	}
}
