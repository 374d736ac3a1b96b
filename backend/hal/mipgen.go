// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package hal

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	wgpuhal "github.com/gogpu/wgpu/hal"

	"github.com/gogpu/rendergraph/device"
)

//go:embed shaders/downsample.wgsl
var downsampleWGSL string

// mipGenerator renders each mip level from the previous one with a
// linear-filtered fullscreen triangle. Pipelines are cached per format.
type mipGenerator struct {
	dev     wgpuhal.Device
	shader  wgpuhal.ShaderModule
	sampler wgpuhal.Sampler
	group   wgpuhal.BindGroupLayout
	layout  wgpuhal.PipelineLayout

	mu        sync.Mutex
	pipelines map[gputypes.TextureFormat]wgpuhal.RenderPipeline
}

func (d *Device) mipGenerator() (*mipGenerator, error) {
	d.mipsOnce.Do(func() {
		d.mips, d.mipsErr = newMipGenerator(d.dev)
		if d.mipsErr != nil {
			d.mipsErr = fmt.Errorf("hal: mip generator: %w", d.mipsErr)
		}
	})
	return d.mips, d.mipsErr
}

func newMipGenerator(dev wgpuhal.Device) (*mipGenerator, error) {
	g := &mipGenerator{dev: dev, pipelines: make(map[gputypes.TextureFormat]wgpuhal.RenderPipeline)}
	var err error
	g.shader, err = dev.CreateShaderModule(&wgpuhal.ShaderModuleDescriptor{
		Label:  "downsample",
		Source: wgpuhal.ShaderSource{WGSL: downsampleWGSL},
	})
	if err != nil {
		return nil, err
	}
	g.sampler, err = dev.CreateSampler(&wgpuhal.SamplerDescriptor{
		Label:        "downsample",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		g.destroy()
		return nil, err
	}
	g.group, err = dev.CreateBindGroupLayout(&wgpuhal.BindGroupLayoutDescriptor{
		Label: "downsample",
		Entries: []gputypes.BindGroupLayoutEntry{
			layoutEntry(device.LayoutEntry{Binding: 0, Type: device.DescriptorSampledTexture, Stages: device.ShaderStageFragment}),
			layoutEntry(device.LayoutEntry{Binding: 1, Type: device.DescriptorSampler, Stages: device.ShaderStageFragment}),
		},
	})
	if err != nil {
		g.destroy()
		return nil, err
	}
	g.layout, err = dev.CreatePipelineLayout(&wgpuhal.PipelineLayoutDescriptor{
		Label:            "downsample",
		BindGroupLayouts: []wgpuhal.BindGroupLayout{g.group},
	})
	if err != nil {
		g.destroy()
		return nil, err
	}
	return g, nil
}

func (g *mipGenerator) pipeline(format gputypes.TextureFormat) (wgpuhal.RenderPipeline, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pipelines[format]; ok {
		return p, nil
	}
	p, err := g.dev.CreateRenderPipeline(&wgpuhal.RenderPipelineDescriptor{
		Label:  "downsample",
		Layout: g.layout,
		Vertex: wgpuhal.VertexState{Module: g.shader, EntryPoint: "vs_main"},
		Fragment: &wgpuhal.FragmentState{
			Module:     g.shader,
			EntryPoint: "fs_main",
			Targets:    []gputypes.ColorTargetState{{Format: format, WriteMask: gputypes.ColorWriteMaskAll}},
		},
		Primitive:   gputypes.PrimitiveState{Topology: gputypes.PrimitiveTopologyTriangleList},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, err
	}
	g.pipelines[format] = p
	return p, nil
}

// generate records the downsampling passes for t, which is in state from.
// The returned functions release the views and bind groups the commands
// reference once the GPU is done with them.
func (g *mipGenerator) generate(enc wgpuhal.CommandEncoder, t *texture, from device.State) ([]func(), error) {
	desc := t.desc
	if desc.Format.IsDepth() || desc.ViewType == device.ViewType3D || desc.Samples > 1 {
		return nil, fmt.Errorf("hal: generate mips for %q: %w", desc.Label, device.ErrUnsupported)
	}
	format := textureFormat(desc.Format)
	p, err := g.pipeline(format)
	if err != nil {
		return nil, fmt.Errorf("hal: downsample pipeline %s: %w", desc.Format, err)
	}
	layers := max(desc.ArrayLayers, 1)
	levels := max(desc.MipLevels, 1)

	var release []func()
	barrier := func(mip uint32, old, next gputypes.TextureUsage) {
		enc.TransitionTextures([]wgpuhal.TextureBarrier{{
			Texture: t.raw,
			Range: wgpuhal.TextureRange{
				Aspect:          gputypes.TextureAspectAll,
				BaseMipLevel:    mip,
				MipLevelCount:   1,
				BaseArrayLayer:  0,
				ArrayLayerCount: layers,
			},
			Usage: wgpuhal.TextureUsageTransition{OldUsage: old, NewUsage: next},
		}})
	}
	levelView := func(mip, layer uint32) (wgpuhal.TextureView, error) {
		v, err := g.dev.CreateTextureView(t.raw, &wgpuhal.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s/mip%d/layer%d", desc.Label, mip, layer),
			Format:          format,
			Dimension:       gputypes.TextureViewDimension2D,
			Aspect:          gputypes.TextureAspectAll,
			BaseMipLevel:    mip,
			MipLevelCount:   1,
			BaseArrayLayer:  layer,
			ArrayLayerCount: 1,
		})
		if err == nil {
			release = append(release, func() { g.dev.DestroyTextureView(v) })
		}
		return v, err
	}

	barrier(0, stateUsage(from), gputypes.TextureUsageTextureBinding)
	for mip := uint32(1); mip < levels; mip++ {
		barrier(mip, 0, gputypes.TextureUsageRenderAttachment)
		for layer := range layers {
			src, err := levelView(mip-1, layer)
			if err != nil {
				return release, fmt.Errorf("hal: mip view: %w", err)
			}
			dst, err := levelView(mip, layer)
			if err != nil {
				return release, fmt.Errorf("hal: mip view: %w", err)
			}
			bg, err := g.dev.CreateBindGroup(&wgpuhal.BindGroupDescriptor{
				Label:  "downsample",
				Layout: g.group,
				Entries: []gputypes.BindGroupEntry{
					{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: src.NativeHandle()}},
					{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: g.sampler.NativeHandle()}},
				},
			})
			if err != nil {
				return release, fmt.Errorf("hal: downsample bind group: %w", err)
			}
			release = append(release, func() { g.dev.DestroyBindGroup(bg) })

			rp := enc.BeginRenderPass(&wgpuhal.RenderPassDescriptor{
				Label: "downsample",
				ColorAttachments: []wgpuhal.RenderPassColorAttachment{{
					View:    dst,
					LoadOp:  gputypes.LoadOpClear,
					StoreOp: gputypes.StoreOpStore,
				}},
			})
			rp.SetPipeline(p)
			rp.SetBindGroup(0, bg, nil)
			rp.Draw(3, 1, 0, 0)
			rp.End()
		}
		barrier(mip, gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageTextureBinding)
	}
	return release, nil
}

func (g *mipGenerator) destroy() {
	for _, p := range g.pipelines {
		g.dev.DestroyRenderPipeline(p)
	}
	if g.layout != nil {
		g.dev.DestroyPipelineLayout(g.layout)
	}
	if g.group != nil {
		g.dev.DestroyBindGroupLayout(g.group)
	}
	if g.sampler != nil {
		g.dev.DestroySampler(g.sampler)
	}
	if g.shader != nil {
		g.dev.DestroyShaderModule(g.shader)
	}
}
