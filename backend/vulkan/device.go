// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vulkan

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/handle"
	"github.com/gogpu/rendergraph/internal/shader"
)

func init() {
	backend.Register(backend.BackendVulkan, func() (device.Device, error) {
		return Open()
	})
}

type texture struct {
	image  core1_0.Image
	memory core1_0.DeviceMemory
	desc   device.TextureDesc
}

type view struct {
	raw     core1_0.ImageView
	texture device.TextureID
	desc    device.ViewDesc
}

type buffer struct {
	raw    core1_0.Buffer
	memory core1_0.DeviceMemory
	desc   device.BufferDesc
}

type layout struct {
	raw     core1_0.DescriptorSetLayout
	entries []device.LayoutEntry
}

// descriptorSet owns a pool sized for its layout, so destroying the set
// is destroying the pool.
type descriptorSet struct {
	pool core1_0.DescriptorPool
	raw  core1_0.DescriptorSet
}

type pipeline struct {
	raw    core1_0.Pipeline
	layout core1_0.PipelineLayout
	point  core1_0.PipelineBindPoint
	stages core1_0.ShaderStageFlags
}

type renderTarget struct {
	pass        core1_0.RenderPass
	framebuffer core1_0.Framebuffer
	desc        device.RenderTargetDesc
	clear       []core1_0.ClearValue
}

type commandPool struct {
	raw core1_0.CommandPool

	mu      sync.Mutex
	buffers []device.CommandBufferID
}

type commandBuffer struct {
	pool      *commandPool
	raw       core1_0.CommandBuffer
	recording bool
	executed  bool
}

type fence struct {
	raw core1_0.Fence
	// pending is set between a submission and the wait that observes it.
	pending atomic.Bool
}

// Device implements device.Device on a Vulkan logical device.
type Device struct {
	instance core1_0.CoreInstanceDriver
	physical core1_0.PhysicalDevice
	vk       core1_0.CoreDeviceDriver
	queue    core1_0.Queue
	family   int
	maxPush  uint32
	adapter  string
	// owned is set when Close must destroy the device and instance.
	owned bool

	// submitMu serializes queue access.
	submitMu sync.Mutex
	compiler *shader.Cache

	ids        handle.Counter
	textures   *handle.Table[*texture]
	views      *handle.Table[*view]
	buffers    *handle.Table[*buffer]
	samplers   *handle.Table[core1_0.Sampler]
	shaders    *handle.Table[core1_0.ShaderModule]
	layouts    *handle.Table[*layout]
	sets       *handle.Table[*descriptorSet]
	pipelines  *handle.Table[*pipeline]
	targets    *handle.Table[*renderTarget]
	pools      *handle.Table[*commandPool]
	cmdbufs    *handle.Table[*commandBuffer]
	fences     *handle.Table[*fence]
	semaphores *handle.Table[core1_0.Semaphore]

	closed atomic.Bool
}

// validationLayer is the Khronos validation layer name.
const validationLayer = "VK_LAYER_KHRONOS_validation"

// Config holds options of OpenWith.
type Config struct {
	// Validation enables the Khronos validation layer when it is
	// installed.
	Validation bool
}

// Open loads the system Vulkan loader and creates a device on the first
// physical device with a graphics and compute queue family.
func Open() (*Device, error) {
	return OpenWith(Config{})
}

// OpenWith is Open with options.
func OpenWith(cfg Config) (*Device, error) {
	global, err := core.CreateSystemDriver()
	if err != nil {
		return nil, errors.Wrapf(backend.ErrBackendNotAvailable, "vulkan: load loader: %v", err)
	}
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    "rendergraph",
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "rendergraph",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}
	if cfg.Validation {
		layers, _, err := global.AvailableLayers()
		if err != nil {
			return nil, errors.Wrap(err, "vulkan: enumerate layers")
		}
		if _, ok := layers[validationLayer]; ok {
			info.EnabledLayerNames = append(info.EnabledLayerNames, validationLayer)
		} else {
			backend.Logger().Warn("vulkan: validation layer not installed", "layer", validationLayer)
		}
	}
	instance, _, err := global.CreateInstance(nil, info)
	if err != nil {
		return nil, errors.Wrapf(backend.ErrBackendNotAvailable, "vulkan: create instance: %v", err)
	}
	physicals, _, err := instance.EnumeratePhysicalDevices()
	if err != nil {
		instance.DestroyInstance(nil)
		return nil, errors.Wrap(err, "vulkan: enumerate physical devices")
	}
	for _, pd := range physicals {
		family := queueFamily(instance, pd)
		if family < 0 {
			continue
		}
		vk, _, err := instance.CreateDevice(pd, nil, core1_0.DeviceCreateInfo{
			QueueCreateInfos: []core1_0.DeviceQueueCreateInfo{{
				QueueFamilyIndex: family,
				QueuePriorities:  []float32{1},
			}},
		})
		if err != nil {
			instance.DestroyInstance(nil)
			return nil, errors.Wrap(err, "vulkan: create device")
		}
		d, err := New(instance, pd, vk, family)
		if err != nil {
			vk.DestroyDevice(nil)
			instance.DestroyInstance(nil)
			return nil, err
		}
		d.owned = true
		backend.Logger().Info("vulkan: device opened", "adapter", d.adapter, "family", family)
		return d, nil
	}
	instance.DestroyInstance(nil)
	return nil, errors.Wrap(backend.ErrBackendNotAvailable, "vulkan: no physical device with graphics and compute queues")
}

func queueFamily(instance core1_0.CoreInstanceDriver, pd core1_0.PhysicalDevice) int {
	const want = core1_0.QueueGraphics | core1_0.QueueCompute
	for i, f := range instance.GetPhysicalDeviceQueueFamilyProperties(pd) {
		if f.QueueFlags&want == want {
			return i
		}
	}
	return -1
}

// New wraps an existing logical device. Queue 0 of family is used for
// every submission. The caller keeps ownership of vk and instance.
func New(instance core1_0.CoreInstanceDriver, pd core1_0.PhysicalDevice, vk core1_0.CoreDeviceDriver, family int) (*Device, error) {
	props, err := instance.GetPhysicalDeviceProperties(pd)
	if err != nil {
		return nil, errors.Wrap(err, "vulkan: physical device properties")
	}
	d := &Device{
		instance: instance,
		physical: pd,
		vk:       vk,
		queue:    vk.GetQueue(family, 0),
		family:   family,
		maxPush:  uint32(min(props.Limits.MaxPushConstantsSize, device.MaxPushConstantSize)),
		adapter:  props.DeviceName,
		compiler: shader.NewCache(),
	}
	d.textures = handle.NewTable[*texture](&d.ids)
	d.views = handle.NewTable[*view](&d.ids)
	d.buffers = handle.NewTable[*buffer](&d.ids)
	d.samplers = handle.NewTable[core1_0.Sampler](&d.ids)
	d.shaders = handle.NewTable[core1_0.ShaderModule](&d.ids)
	d.layouts = handle.NewTable[*layout](&d.ids)
	d.sets = handle.NewTable[*descriptorSet](&d.ids)
	d.pipelines = handle.NewTable[*pipeline](&d.ids)
	d.targets = handle.NewTable[*renderTarget](&d.ids)
	d.pools = handle.NewTable[*commandPool](&d.ids)
	d.cmdbufs = handle.NewTable[*commandBuffer](&d.ids)
	d.fences = handle.NewTable[*fence](&d.ids)
	d.semaphores = handle.NewTable[core1_0.Semaphore](&d.ids)
	return d, nil
}

// Name returns "vulkan".
func (d *Device) Name() string { return backend.BackendVulkan }

// Capabilities reports native subpasses and blit mip generation.
func (d *Device) Capabilities() device.Capabilities {
	return device.Capabilities{
		Subpasses:           true,
		MipGeneration:       true,
		MaxPushConstantSize: d.maxPush,
		MaxFramesInFlight:   3,
	}
}

func (d *Device) check() error {
	if d.closed.Load() {
		return device.ErrClosed
	}
	return nil
}

func (d *Device) memoryType(bits uint32, props core1_0.MemoryPropertyFlags) (int, error) {
	mem := d.instance.GetPhysicalDeviceMemoryProperties(d.physical)
	for i, t := range mem.MemoryTypes {
		if bits&(1<<i) != 0 && t.PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, errors.Newf("vulkan: no memory type in %#x with properties %v", bits, props)
}

// CreateTexture creates an optimally tiled image in device-local memory.
func (d *Device) CreateTexture(desc *device.TextureDesc) (device.TextureID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	depth, layers := 1, int(max(desc.ArrayLayers, 1))
	if desc.ViewType == device.ViewType3D {
		depth, layers = int(max(desc.Extent.Depth, 1)), 1
	}
	var flags core1_0.ImageCreateFlags
	if desc.ViewType == device.ViewTypeCube || desc.ViewType == device.ViewTypeCubeArray {
		flags = core1_0.ImageCreateCubeCompatible
	}
	image, _, err := d.vk.CreateImage(nil, core1_0.ImageCreateInfo{
		Flags:         flags,
		ImageType:     imageType(desc.ViewType),
		Extent:        core1_0.Extent3D{Width: int(desc.Extent.Width), Height: int(desc.Extent.Height), Depth: depth},
		MipLevels:     int(max(desc.MipLevels, 1)),
		ArrayLayers:   layers,
		Format:        vkFormat(desc.Format),
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         imageUsage(desc.Usage),
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       samples(desc.Samples),
	})
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: create image %q", desc.Label)
	}
	reqs := d.vk.GetImageMemoryRequirements(image)
	index, err := d.memoryType(reqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		d.vk.DestroyImage(image, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: image %q", desc.Label)
	}
	memory, _, err := d.vk.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	})
	if err != nil {
		d.vk.DestroyImage(image, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: allocate %d bytes for image %q", reqs.Size, desc.Label)
	}
	if _, err := d.vk.BindImageMemory(image, memory, 0); err != nil {
		d.vk.FreeMemory(memory, nil)
		d.vk.DestroyImage(image, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: bind image %q", desc.Label)
	}
	return device.TextureID(d.textures.Add(&texture{image: image, memory: memory, desc: *desc})), nil
}

// DestroyTexture destroys an image and frees its memory.
func (d *Device) DestroyTexture(id device.TextureID) {
	if t, ok := d.textures.Remove(uint64(id)); ok {
		d.vk.DestroyImage(t.image, nil)
		d.vk.FreeMemory(t.memory, nil)
	}
}

func (t *texture) subresource(r device.SubresourceRange) core1_0.ImageSubresourceRange {
	layers := max(t.desc.ArrayLayers, 1)
	if t.desc.ViewType == device.ViewType3D {
		layers = 1
	}
	return core1_0.ImageSubresourceRange{
		AspectMask:     aspect(t.desc.Format),
		BaseMipLevel:   int(r.BaseMip),
		LevelCount:     remaining(r.MipCount, r.BaseMip, t.desc.MipLevels),
		BaseArrayLayer: int(r.BaseLayer),
		LayerCount:     remaining(r.LayerCount, r.BaseLayer, layers),
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
	sub := t.subresource(desc.Range)
	sub.AspectMask = aspect(format)
	if format.HasStencil() {
		// Views sampled by shaders read depth only.
		sub.AspectMask = core1_0.ImageAspectDepth
	}
	raw, _, err := d.vk.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:            t.image,
		ViewType:         viewType(desc.ViewType),
		Format:           vkFormat(format),
		SubresourceRange: sub,
	})
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: create view %q", desc.Label)
	}
	return device.ViewID(d.views.Add(&view{raw: raw, texture: tex, desc: *desc})), nil
}

// DestroyTextureView destroys a view.
func (d *Device) DestroyTextureView(id device.ViewID) {
	if v, ok := d.views.Remove(uint64(id)); ok {
		d.vk.DestroyImageView(v.raw, nil)
	}
}

// CreateBuffer creates a buffer in host-visible coherent memory.
func (d *Device) CreateBuffer(desc *device.BufferDesc) (device.BufferID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	raw, _, err := d.vk.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        int(desc.Size),
		Usage:       bufferUsage(desc.Usage),
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: create buffer %q", desc.Label)
	}
	reqs := d.vk.GetBufferMemoryRequirements(raw)
	index, err := d.memoryType(reqs.MemoryTypeBits, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		d.vk.DestroyBuffer(raw, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: buffer %q", desc.Label)
	}
	memory, _, err := d.vk.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	})
	if err != nil {
		d.vk.DestroyBuffer(raw, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: allocate %d bytes for buffer %q", reqs.Size, desc.Label)
	}
	if _, err := d.vk.BindBufferMemory(raw, memory, 0); err != nil {
		d.vk.FreeMemory(memory, nil)
		d.vk.DestroyBuffer(raw, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: bind buffer %q", desc.Label)
	}
	return device.BufferID(d.buffers.Add(&buffer{raw: raw, memory: memory, desc: *desc})), nil
}

// DestroyBuffer destroys a buffer and frees its memory.
func (d *Device) DestroyBuffer(id device.BufferID) {
	if b, ok := d.buffers.Remove(uint64(id)); ok {
		d.vk.DestroyBuffer(b.raw, nil)
		d.vk.FreeMemory(b.memory, nil)
	}
}

// WriteBuffer copies data into the mapped buffer memory.
func (d *Device) WriteBuffer(id device.BufferID, offset uint64, data []byte) error {
	b, ok := d.buffers.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return errors.Newf("vulkan: write of %d bytes at %d overflows buffer %q of %d", len(data), offset, b.desc.Label, b.desc.Size)
	}
	if len(data) == 0 {
		return nil
	}
	ptr, _, err := d.vk.MapMemory(b.memory, int(offset), len(data), 0)
	if err != nil {
		return errors.Wrapf(err, "vulkan: map buffer %q", b.desc.Label)
	}
	defer d.vk.UnmapMemory(b.memory)
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	return nil
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(desc *device.SamplerDesc) (device.SamplerID, error) {
	mode := addressMode(desc.Address)
	f, mip := filter(desc.Filter)
	raw, _, err := d.vk.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    f,
		MinFilter:    f,
		MipmapMode:   mip,
		AddressModeU: mode,
		AddressModeV: mode,
		AddressModeW: mode,
		BorderColor:  core1_0.BorderColorIntOpaqueBlack,
		MaxLod:       desc.MaxLod,
	})
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: create sampler %q", desc.Label)
	}
	return device.SamplerID(d.samplers.Add(raw)), nil
}

// DestroySampler destroys a sampler.
func (d *Device) DestroySampler(id device.SamplerID) {
	if s, ok := d.samplers.Remove(uint64(id)); ok {
		d.vk.DestroySampler(s, nil)
	}
}

// CreateShaderModule creates a module from SPIR-V, or from WGSL compiled
// to SPIR-V when no SPIR-V is given.
func (d *Device) CreateShaderModule(desc *device.ShaderDesc) (device.ShaderModuleID, error) {
	code := desc.SPIRV
	if len(code) == 0 {
		if desc.WGSL == "" {
			return device.InvalidID, errors.Newf("vulkan: shader %q has no source", desc.Label)
		}
		var err error
		if code, err = d.compiler.Compile(desc.WGSL); err != nil {
			return device.InvalidID, errors.Wrapf(err, "vulkan: shader %q", desc.Label)
		}
	}
	raw, _, err := d.vk.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{Code: code})
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: create shader %q", desc.Label)
	}
	return device.ShaderModuleID(d.shaders.Add(raw)), nil
}

// DestroyShaderModule destroys a shader module.
func (d *Device) DestroyShaderModule(id device.ShaderModuleID) {
	if s, ok := d.shaders.Remove(uint64(id)); ok {
		d.vk.DestroyShaderModule(s, nil)
	}
}

// CreateDescriptorLayout creates a descriptor set layout.
func (d *Device) CreateDescriptorLayout(entries []device.LayoutEntry) (device.DescriptorLayoutID, error) {
	bindings := make([]core1_0.DescriptorSetLayoutBinding, len(entries))
	for i, e := range entries {
		bindings[i] = core1_0.DescriptorSetLayoutBinding{
			Binding:         int(e.Binding),
			DescriptorType:  descriptorTypes[e.Type],
			DescriptorCount: int(max(e.Count, 1)),
			StageFlags:      shaderStageFlags(e.Stages),
		}
	}
	raw, _, err := d.vk.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{Bindings: bindings})
	if err != nil {
		return device.InvalidID, errors.Wrap(err, "vulkan: create descriptor set layout")
	}
	return device.DescriptorLayoutID(d.layouts.Add(&layout{raw: raw, entries: slices.Clone(entries)})), nil
}

// DestroyDescriptorLayout destroys a descriptor set layout.
func (d *Device) DestroyDescriptorLayout(id device.DescriptorLayoutID) {
	if l, ok := d.layouts.Remove(uint64(id)); ok {
		d.vk.DestroyDescriptorSetLayout(l.raw, nil)
	}
}

// poolSizes counts the descriptors of each type in a layout.
func poolSizes(entries []device.LayoutEntry) []core1_0.DescriptorPoolSize {
	var sizes []core1_0.DescriptorPoolSize
	for _, e := range entries {
		t := descriptorTypes[e.Type]
		i := slices.IndexFunc(sizes, func(s core1_0.DescriptorPoolSize) bool { return s.Type == t })
		if i < 0 {
			sizes = append(sizes, core1_0.DescriptorPoolSize{Type: t})
			i = len(sizes) - 1
		}
		sizes[i].DescriptorCount += int(max(e.Count, 1))
	}
	return sizes
}

// CreateDescriptorSet allocates a set from a pool of its own and writes
// entries into it.
func (d *Device) CreateDescriptorSet(id device.DescriptorLayoutID, entries []device.DescriptorEntry) (device.DescriptorSetID, error) {
	l, ok := d.layouts.Get(uint64(id))
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	writes := make([]core1_0.WriteDescriptorSet, 0, len(entries))
	for _, e := range entries {
		i := slices.IndexFunc(l.entries, func(le device.LayoutEntry) bool { return le.Binding == e.Binding })
		if i < 0 {
			return device.InvalidID, errors.Newf("vulkan: binding %d not in layout", e.Binding)
		}
		typ := l.entries[i].Type
		w := core1_0.WriteDescriptorSet{DstBinding: int(e.Binding), DescriptorType: descriptorTypes[typ]}
		switch typ {
		case device.DescriptorUniformBuffer, device.DescriptorStorageBuffer, device.DescriptorReadOnlyStorageBuffer:
			b, ok := d.buffers.Get(uint64(e.Buffer))
			if !ok {
				return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: binding %d buffer", e.Binding)
			}
			size := e.Size
			if size == 0 {
				size = b.desc.Size - e.Offset
			}
			w.BufferInfo = []core1_0.DescriptorBufferInfo{{Buffer: b.raw, Offset: int(e.Offset), Range: int(size)}}
		case device.DescriptorSampler:
			s, ok := d.samplers.Get(uint64(e.Sampler))
			if !ok {
				return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: binding %d sampler", e.Binding)
			}
			w.ImageInfo = []core1_0.DescriptorImageInfo{{Sampler: s}}
		default:
			v, ok := d.views.Get(uint64(e.View))
			if !ok {
				return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: binding %d view", e.Binding)
			}
			state := e.State
			if state == device.StateUndefined {
				state = defaultState(typ)
			}
			w.ImageInfo = []core1_0.DescriptorImageInfo{{ImageView: v.raw, ImageLayout: stateAccess(state).layout}}
		}
		writes = append(writes, w)
	}

	pool, _, err := d.vk.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   1,
		PoolSizes: poolSizes(l.entries),
	})
	if err != nil {
		return device.InvalidID, errors.Wrap(err, "vulkan: create descriptor pool")
	}
	sets, _, err := d.vk.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: pool,
		SetLayouts:     []core1_0.DescriptorSetLayout{l.raw},
	})
	if err != nil {
		d.vk.DestroyDescriptorPool(pool, nil)
		return device.InvalidID, errors.Wrap(err, "vulkan: allocate descriptor set")
	}
	for i := range writes {
		writes[i].DstSet = sets[0]
	}
	if len(writes) > 0 {
		if err := d.vk.UpdateDescriptorSets(writes, nil); err != nil {
			d.vk.DestroyDescriptorPool(pool, nil)
			return device.InvalidID, errors.Wrap(err, "vulkan: update descriptor set")
		}
	}
	return device.DescriptorSetID(d.sets.Add(&descriptorSet{pool: pool, raw: sets[0]})), nil
}

func defaultState(t device.DescriptorType) device.State {
	switch t {
	case device.DescriptorStorageTexture:
		return device.StateStorageReadWrite
	case device.DescriptorInputAttachment:
		return device.StateInputAttachment
	}
	return device.StateShaderRead
}

// DestroyDescriptorSet destroys the set with its pool.
func (d *Device) DestroyDescriptorSet(id device.DescriptorSetID) {
	if s, ok := d.sets.Remove(uint64(id)); ok {
		d.vk.DestroyDescriptorPool(s.pool, nil)
	}
}

func (d *Device) pipelineLayout(label string, ids []device.DescriptorLayoutID, push uint32, stages core1_0.ShaderStageFlags) (core1_0.PipelineLayout, error) {
	if push > d.maxPush {
		return core1_0.PipelineLayout{}, errors.Wrapf(device.ErrPushConstantsTooLarge, "vulkan: pipeline %q: %d bytes", label, push)
	}
	layouts := make([]core1_0.DescriptorSetLayout, len(ids))
	for i, id := range ids {
		l, ok := d.layouts.Get(uint64(id))
		if !ok {
			return core1_0.PipelineLayout{}, errors.Wrapf(device.ErrInvalidHandle, "vulkan: pipeline %q layout %d", label, i)
		}
		layouts[i] = l.raw
	}
	info := core1_0.PipelineLayoutCreateInfo{SetLayouts: layouts}
	if push > 0 {
		info.PushConstantRanges = []core1_0.PushConstantRange{{Stages: stages, Offset: 0, Size: int(push)}}
	}
	pl, _, err := d.vk.CreatePipelineLayout(nil, info)
	if err != nil {
		return core1_0.PipelineLayout{}, errors.Wrapf(err, "vulkan: pipeline %q layout", label)
	}
	return pl, nil
}

func entry(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// CreateGraphicsPipeline creates a pipeline for one subpass of a render
// target. Viewport and scissor are dynamic.
func (d *Device) CreateGraphicsPipeline(desc *device.GraphicsPipelineDesc) (device.PipelineID, error) {
	rt, ok := d.targets.Get(uint64(desc.RenderTarget))
	if !ok {
		return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: pipeline %q render target", desc.Label)
	}
	if int(desc.Subpass) >= len(rt.desc.Subpasses) {
		return device.InvalidID, errors.Newf("vulkan: pipeline %q subpass %d out of range", desc.Label, desc.Subpass)
	}
	vs, ok := d.shaders.Get(uint64(desc.Vertex))
	if !ok {
		return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: pipeline %q vertex shader", desc.Label)
	}
	stagesInfo := []core1_0.PipelineShaderStageCreateInfo{{
		Stage:  core1_0.StageVertex,
		Module: vs,
		Name:   entry(desc.VertexEntry, "vs_main"),
	}}
	if desc.Fragment != device.InvalidID {
		fs, ok := d.shaders.Get(uint64(desc.Fragment))
		if !ok {
			return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: pipeline %q fragment shader", desc.Label)
		}
		stagesInfo = append(stagesInfo, core1_0.PipelineShaderStageCreateInfo{
			Stage:  core1_0.StageFragment,
			Module: fs,
			Name:   entry(desc.FragmentEntry, "fs_main"),
		})
	}
	pl, err := d.pipelineLayout(desc.Label, desc.Layouts, desc.PushConstantSize, core1_0.StageVertex|core1_0.StageFragment)
	if err != nil {
		return device.InvalidID, err
	}

	vertex := &core1_0.PipelineVertexInputStateCreateInfo{}
	for slot, vb := range desc.VertexBuffers {
		vertex.VertexBindingDescriptions = append(vertex.VertexBindingDescriptions, core1_0.VertexInputBindingDescription{
			Binding:   slot,
			Stride:    int(vb.Stride),
			InputRate: core1_0.VertexInputRateVertex,
		})
		for _, a := range vb.Attributes {
			vertex.VertexAttributeDescriptions = append(vertex.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
				Binding:  slot,
				Location: int(a.Location),
				Format:   vertexFormats[a.Format],
				Offset:   int(a.Offset),
			})
		}
	}
	blend := make([]core1_0.PipelineColorBlendAttachmentState, len(rt.desc.Subpasses[desc.Subpass].ColorAttachments))
	for i := range blend {
		blend[i].ColorWriteMask = core1_0.ColorComponentRed | core1_0.ColorComponentGreen |
			core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha
	}

	pipes, _, err := d.vk.CreateGraphicsPipelines(nil, nil, core1_0.GraphicsPipelineCreateInfo{
		Stages:           stagesInfo,
		VertexInputState: vertex,
		InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
			Topology: core1_0.PrimitiveTopologyTriangleList,
		},
		ViewportState: &core1_0.PipelineViewportStateCreateInfo{
			Viewports: []core1_0.Viewport{{}},
			Scissors:  []core1_0.Rect2D{{}},
		},
		RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
			PolygonMode: core1_0.PolygonModeFill,
			CullMode:    cullMode(desc.CullMode),
			FrontFace:   core1_0.FrontFaceCounterClockwise,
			LineWidth:   1,
		},
		MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
			RasterizationSamples: samples(desc.Samples),
		},
		DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:  desc.DepthTest,
			DepthWriteEnable: desc.DepthWrite,
			DepthCompareOp:   core1_0.CompareOpLess,
		},
		ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
			LogicOp:     core1_0.LogicOpCopy,
			Attachments: blend,
		},
		DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
		},
		Layout:            pl,
		RenderPass:        rt.pass,
		Subpass:           int(desc.Subpass),
		BasePipelineIndex: -1,
	})
	if err != nil {
		d.vk.DestroyPipelineLayout(pl, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: create graphics pipeline %q", desc.Label)
	}
	return device.PipelineID(d.pipelines.Add(&pipeline{
		raw:    pipes[0],
		layout: pl,
		point:  core1_0.PipelineBindPointGraphics,
		stages: core1_0.StageVertex | core1_0.StageFragment,
	})), nil
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc *device.ComputePipelineDesc) (device.PipelineID, error) {
	cs, ok := d.shaders.Get(uint64(desc.Module))
	if !ok {
		return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: pipeline %q shader", desc.Label)
	}
	pl, err := d.pipelineLayout(desc.Label, desc.Layouts, desc.PushConstantSize, core1_0.StageCompute)
	if err != nil {
		return device.InvalidID, err
	}
	pipes, _, err := d.vk.CreateComputePipelines(nil, nil, core1_0.ComputePipelineCreateInfo{
		Stage: core1_0.PipelineShaderStageCreateInfo{
			Stage:  core1_0.StageCompute,
			Module: cs,
			Name:   entry(desc.EntryPoint, "main"),
		},
		Layout:            pl,
		BasePipelineIndex: -1,
	})
	if err != nil {
		d.vk.DestroyPipelineLayout(pl, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: create compute pipeline %q", desc.Label)
	}
	return device.PipelineID(d.pipelines.Add(&pipeline{
		raw:    pipes[0],
		layout: pl,
		point:  core1_0.PipelineBindPointCompute,
		stages: core1_0.StageCompute,
	})), nil
}

// DestroyPipeline destroys a pipeline and its layout.
func (d *Device) DestroyPipeline(id device.PipelineID) {
	if p, ok := d.pipelines.Remove(uint64(id)); ok {
		d.vk.DestroyPipeline(p.raw, nil)
		d.vk.DestroyPipelineLayout(p.layout, nil)
	}
}

// CreateRenderTarget creates a render pass with one subpass per entry of
// desc.Subpasses, and the framebuffer binding its attachments.
func (d *Device) CreateRenderTarget(desc *device.RenderTargetDesc) (device.RenderTargetID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	info, err := renderPassInfo(desc)
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: render target %q", desc.Label)
	}
	views := make([]core1_0.ImageView, len(desc.Attachments))
	for i, a := range desc.Attachments {
		v, ok := d.views.Get(uint64(a.View))
		if !ok {
			return device.InvalidID, errors.Wrapf(device.ErrInvalidHandle, "vulkan: render target %q attachment %d", desc.Label, i)
		}
		views[i] = v.raw
	}
	pass, _, err := d.vk.CreateRenderPass(nil, info)
	if err != nil {
		return device.InvalidID, errors.Wrapf(err, "vulkan: create render pass %q", desc.Label)
	}
	fb, _, err := d.vk.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  pass,
		Attachments: views,
		Width:       int(desc.Width),
		Height:      int(desc.Height),
		Layers:      int(max(desc.Layers, 1)),
	})
	if err != nil {
		d.vk.DestroyRenderPass(pass, nil)
		return device.InvalidID, errors.Wrapf(err, "vulkan: create framebuffer %q", desc.Label)
	}
	rt := &renderTarget{pass: pass, framebuffer: fb, desc: *desc}
	rt.desc.Attachments = slices.Clone(desc.Attachments)
	rt.desc.Subpasses = slices.Clone(desc.Subpasses)
	for _, a := range desc.Attachments {
		c := a.Clear
		if a.Format.IsDepth() {
			rt.clear = append(rt.clear, core1_0.ClearValueDepthStencil{Depth: c.Depth, Stencil: c.Stencil})
		} else {
			rt.clear = append(rt.clear, core1_0.ClearValueFloat{c.Color[0], c.Color[1], c.Color[2], c.Color[3]})
		}
	}
	return device.RenderTargetID(d.targets.Add(rt)), nil
}

// renderPassInfo translates a render target into render pass attachments,
// subpasses and the dependencies between consecutive subpasses.
func renderPassInfo(desc *device.RenderTargetDesc) (core1_0.RenderPassCreateInfo, error) {
	var info core1_0.RenderPassCreateInfo
	if len(desc.Subpasses) == 0 {
		return info, errors.New("no subpasses")
	}
	for _, a := range desc.Attachments {
		stencilLoad, stencilStore := core1_0.AttachmentLoadOpDontCare, core1_0.AttachmentStoreOpDontCare
		if a.Format.HasStencil() {
			stencilLoad, stencilStore = loadOp(a.Load), storeOp(a.Store)
		}
		info.Attachments = append(info.Attachments, core1_0.AttachmentDescription{
			Format:         vkFormat(a.Format),
			Samples:        samples(a.Samples),
			LoadOp:         loadOp(a.Load),
			StoreOp:        storeOp(a.Store),
			StencilLoadOp:  stencilLoad,
			StencilStoreOp: stencilStore,
			InitialLayout:  stateAccess(a.Initial).layout,
			FinalLayout:    stateAccess(a.Final).layout,
		})
	}
	ref := func(i int, s device.State) (core1_0.AttachmentReference, error) {
		if i < 0 || i >= len(desc.Attachments) {
			return core1_0.AttachmentReference{}, errors.Newf("attachment %d out of range", i)
		}
		return core1_0.AttachmentReference{Attachment: i, Layout: stateAccess(s).layout}, nil
	}
	for k, sp := range desc.Subpasses {
		sub := core1_0.SubpassDescription{PipelineBindPoint: core1_0.PipelineBindPointGraphics}
		for _, i := range sp.ColorAttachments {
			r, err := ref(i, device.StateColorAttachment)
			if err != nil {
				return info, errors.Wrapf(err, "subpass %d", k)
			}
			sub.ColorAttachments = append(sub.ColorAttachments, r)
		}
		for _, i := range sp.InputAttachments {
			r, err := ref(i, device.StateInputAttachment)
			if err != nil {
				return info, errors.Wrapf(err, "subpass %d", k)
			}
			sub.InputAttachments = append(sub.InputAttachments, r)
		}
		if sp.DepthAttachment >= 0 {
			r, err := ref(sp.DepthAttachment, device.StateDepthAttachment)
			if err != nil {
				return info, errors.Wrapf(err, "subpass %d", k)
			}
			sub.DepthStencilAttachment = &r
		}
		info.Subpasses = append(info.Subpasses, sub)
	}

	attach := stateAccess(device.StateColorAttachment)
	depth := stateAccess(device.StateDepthAttachment)
	input := stateAccess(device.StateInputAttachment)
	info.SubpassDependencies = append(info.SubpassDependencies, core1_0.SubpassDependency{
		SrcSubpass:    core1_0.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  attach.stages | depth.stages,
		SrcAccessMask: 0,
		DstStageMask:  attach.stages | depth.stages,
		DstAccessMask: attach.mask | depth.mask,
	})
	for k := 1; k < len(desc.Subpasses); k++ {
		info.SubpassDependencies = append(info.SubpassDependencies, core1_0.SubpassDependency{
			SrcSubpass:      k - 1,
			DstSubpass:      k,
			SrcStageMask:    attach.stages | depth.stages,
			SrcAccessMask:   attach.mask | depth.mask,
			DstStageMask:    input.stages | attach.stages | depth.stages,
			DstAccessMask:   input.mask | attach.mask | depth.mask,
			DependencyFlags: core1_0.DependencyByRegion,
		})
	}
	return info, nil
}

// DestroyRenderTarget destroys the framebuffer and render pass.
func (d *Device) DestroyRenderTarget(id device.RenderTargetID) {
	if rt, ok := d.targets.Remove(uint64(id)); ok {
		d.vk.DestroyFramebuffer(rt.framebuffer, nil)
		d.vk.DestroyRenderPass(rt.pass, nil)
	}
}

// CreateCommandPool creates a pool on the device queue family. All queue
// types share it.
func (d *Device) CreateCommandPool(device.QueueType) (device.CommandPoolID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	raw, _, err := d.vk.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{QueueFamilyIndex: d.family})
	if err != nil {
		return device.InvalidID, errors.Wrap(err, "vulkan: create command pool")
	}
	return device.CommandPoolID(d.pools.Add(&commandPool{raw: raw})), nil
}

// free returns the native buffer to its pool. The GPU must be done with it.
func (cb *commandBuffer) free(vk core1_0.CoreDeviceDriver) {
	if cb.raw.Initialized() {
		vk.FreeCommandBuffers(cb.raw)
		cb.raw = core1_0.CommandBuffer{}
	}
	cb.executed = false
}

// ResetCommandPool frees the recorded command buffers of the pool so
// they can be recorded again.
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
			return errors.Wrap(device.ErrRecording, "vulkan: reset pool while recording")
		}
		cb.free(d.vk)
	}
	return nil
}

// DestroyCommandPool destroys the pool with its command buffers.
func (d *Device) DestroyCommandPool(id device.CommandPoolID) {
	p, ok := d.pools.Remove(uint64(id))
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cid := range p.buffers {
		d.cmdbufs.Remove(uint64(cid))
	}
	d.vk.DestroyCommandPool(p.raw, nil)
}

// AllocateCommandBuffer reserves a command buffer in the pool. The native
// buffer is allocated by Begin.
func (d *Device) AllocateCommandBuffer(pool device.CommandPoolID) (device.CommandBufferID, error) {
	p, ok := d.pools.Get(uint64(pool))
	if !ok {
		return device.InvalidID, device.ErrInvalidHandle
	}
	id := device.CommandBufferID(d.cmdbufs.Add(&commandBuffer{pool: p}))
	p.mu.Lock()
	p.buffers = append(p.buffers, id)
	p.mu.Unlock()
	return id, nil
}

// Begin allocates and begins a one-time-submit primary command buffer.
func (d *Device) Begin(id device.CommandBufferID) (device.CommandRecorder, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	cb, ok := d.cmdbufs.Get(uint64(id))
	if !ok {
		return nil, device.ErrInvalidHandle
	}
	if cb.recording || cb.raw.Initialized() {
		return nil, errors.Wrapf(device.ErrRecording, "vulkan: begin command buffer %d", id)
	}
	cb.pool.mu.Lock()
	raws, _, err := d.vk.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        cb.pool.raw,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	cb.pool.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "vulkan: allocate command buffer")
	}
	cb.raw = raws[0]
	if _, err := d.vk.BeginCommandBuffer(cb.raw, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		cb.free(d.vk)
		return nil, errors.Wrap(err, "vulkan: begin command buffer")
	}
	cb.recording = true
	return &recorder{d: d, cb: cb}, nil
}

// CreateFence creates an unsignaled fence.
func (d *Device) CreateFence() (device.FenceID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	raw, _, err := d.vk.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return device.InvalidID, errors.Wrap(err, "vulkan: create fence")
	}
	return device.FenceID(d.fences.Add(&fence{raw: raw})), nil
}

// DestroyFence destroys a fence.
func (d *Device) DestroyFence(id device.FenceID) {
	if f, ok := d.fences.Remove(uint64(id)); ok {
		d.vk.DestroyFence(f.raw, nil)
	}
}

// WaitFence waits for the last submission signaling id. A fence that was
// never submitted is complete.
func (d *Device) WaitFence(id device.FenceID, timeout time.Duration) error {
	f, ok := d.fences.Get(uint64(id))
	if !ok {
		return device.ErrInvalidHandle
	}
	if !f.pending.Load() {
		return nil
	}
	res, err := d.vk.WaitForFences(true, timeout, f.raw)
	if err != nil {
		return errors.Wrap(err, "vulkan: wait fence")
	}
	if res == core1_0.VKTimeout {
		return errors.Wrapf(device.ErrTimeout, "vulkan: fence %d after %s", id, timeout)
	}
	f.pending.Store(false)
	return nil
}

// CreateSemaphore creates a binary semaphore.
func (d *Device) CreateSemaphore() (device.SemaphoreID, error) {
	if err := d.check(); err != nil {
		return device.InvalidID, err
	}
	raw, _, err := d.vk.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return device.InvalidID, errors.Wrap(err, "vulkan: create semaphore")
	}
	return device.SemaphoreID(d.semaphores.Add(raw)), nil
}

// DestroySemaphore destroys a semaphore.
func (d *Device) DestroySemaphore(id device.SemaphoreID) {
	if s, ok := d.semaphores.Remove(uint64(id)); ok {
		d.vk.DestroySemaphore(s, nil)
	}
}

// Submit submits recorded command buffers to the device queue. A fence
// still pending from an earlier submission fails with
// device.ErrFenceBusy.
func (d *Device) Submit(_ device.QueueType, info *device.SubmitInfo) error {
	if err := d.check(); err != nil {
		return err
	}
	var submit core1_0.SubmitInfo
	for _, id := range info.CommandBuffers {
		cb, ok := d.cmdbufs.Get(uint64(id))
		if !ok {
			return errors.Wrapf(device.ErrInvalidHandle, "vulkan: submit command buffer %d", id)
		}
		if cb.recording || !cb.raw.Initialized() || cb.executed {
			return errors.Wrapf(device.ErrRecording, "vulkan: submit command buffer %d", id)
		}
		submit.CommandBuffers = append(submit.CommandBuffers, cb.raw)
	}
	for _, id := range info.Wait {
		s, ok := d.semaphores.Get(uint64(id))
		if !ok {
			return errors.Wrapf(device.ErrInvalidHandle, "vulkan: wait semaphore %d", id)
		}
		submit.WaitSemaphores = append(submit.WaitSemaphores, s)
		submit.WaitDstStageMask = append(submit.WaitDstStageMask, core1_0.PipelineStageAllCommands)
	}
	for _, id := range info.Signal {
		s, ok := d.semaphores.Get(uint64(id))
		if !ok {
			return errors.Wrapf(device.ErrInvalidHandle, "vulkan: signal semaphore %d", id)
		}
		submit.SignalSemaphores = append(submit.SignalSemaphores, s)
	}
	var f *fence
	var raw *core1_0.Fence
	if info.Fence != device.InvalidID {
		var ok bool
		if f, ok = d.fences.Get(uint64(info.Fence)); !ok {
			return errors.Wrapf(device.ErrInvalidHandle, "vulkan: submit fence %d", info.Fence)
		}
		if f.pending.Load() {
			err := d.WaitFence(info.Fence, 0)
			if errors.Is(err, device.ErrTimeout) {
				return errors.Wrapf(device.ErrFenceBusy, "vulkan: submit fence %d", info.Fence)
			}
			if err != nil {
				return err
			}
		}
		if _, err := d.vk.ResetFences(f.raw); err != nil {
			return errors.Wrap(err, "vulkan: reset fence")
		}
		raw = &f.raw
	}

	d.submitMu.Lock()
	_, err := d.vk.QueueSubmit(d.queue, raw, submit)
	d.submitMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "vulkan: queue submit")
	}
	for _, id := range info.CommandBuffers {
		if cb, ok := d.cmdbufs.Get(uint64(id)); ok {
			cb.executed = true
		}
	}
	if f != nil {
		f.pending.Store(true)
	}
	return nil
}

// WaitIdle waits for the device queue to drain. Pending fences are then
// signaled, so later waits on them return at once.
func (d *Device) WaitIdle() error {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()
	if _, err := d.vk.QueueWaitIdle(d.queue); err != nil {
		return errors.Wrap(err, "vulkan: queue wait idle")
	}
	return nil
}

// Live returns the number of objects created through the device that
// have not been destroyed.
func (d *Device) Live() int {
	return d.textures.Len() + d.views.Len() + d.buffers.Len() + d.samplers.Len() +
		d.shaders.Len() + d.layouts.Len() + d.sets.Len() + d.pipelines.Len() +
		d.targets.Len() + d.pools.Len() + d.cmdbufs.Len() + d.fences.Len() + d.semaphores.Len()
}

// Close waits for the device, destroys every object still alive and, for
// devices created by Open, the device and instance.
func (d *Device) Close() {
	if d.closed.Swap(true) {
		return
	}
	if _, err := d.vk.DeviceWaitIdle(); err != nil {
		backend.Logger().Warn("vulkan: wait idle on close", "err", err)
	}
	n := d.Live()
	for _, p := range d.pools.Drain() {
		d.vk.DestroyCommandPool(p.raw, nil)
	}
	d.cmdbufs.Drain()
	for _, s := range d.sets.Drain() {
		d.vk.DestroyDescriptorPool(s.pool, nil)
	}
	for _, p := range d.pipelines.Drain() {
		d.vk.DestroyPipeline(p.raw, nil)
		d.vk.DestroyPipelineLayout(p.layout, nil)
	}
	for _, rt := range d.targets.Drain() {
		d.vk.DestroyFramebuffer(rt.framebuffer, nil)
		d.vk.DestroyRenderPass(rt.pass, nil)
	}
	for _, l := range d.layouts.Drain() {
		d.vk.DestroyDescriptorSetLayout(l.raw, nil)
	}
	for _, s := range d.shaders.Drain() {
		d.vk.DestroyShaderModule(s, nil)
	}
	for _, s := range d.samplers.Drain() {
		d.vk.DestroySampler(s, nil)
	}
	for _, v := range d.views.Drain() {
		d.vk.DestroyImageView(v.raw, nil)
	}
	for _, t := range d.textures.Drain() {
		d.vk.DestroyImage(t.image, nil)
		d.vk.FreeMemory(t.memory, nil)
	}
	for _, b := range d.buffers.Drain() {
		d.vk.DestroyBuffer(b.raw, nil)
		d.vk.FreeMemory(b.memory, nil)
	}
	for _, f := range d.fences.Drain() {
		d.vk.DestroyFence(f.raw, nil)
	}
	for _, s := range d.semaphores.Drain() {
		d.vk.DestroySemaphore(s, nil)
	}
	if n > 0 {
		backend.Logger().Debug("vulkan: released live objects on close", "count", n)
	}
	if d.owned {
		d.vk.DestroyDevice(nil)
		d.instance.DestroyInstance(nil)
	}
}
