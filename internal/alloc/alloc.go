// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package alloc backs the virtual resources of a graph with device
// textures, views and buffers.
package alloc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
)

// Texture is the physical backing of a texture resource.
type Texture struct {
	Name     string
	ID       device.TextureID
	Desc     device.TextureDesc
	Imported bool

	// Full views every mip and layer.
	Full device.ViewID
	// Mips holds one view per mip level covering all layers.
	Mips []device.ViewID
	// Layers holds one view per array layer covering all mips.
	Layers []device.ViewID

	bytes uint64
}

// Buffer is the physical backing of a buffer resource.
type Buffer struct {
	Name string
	ID   device.BufferID
	Desc device.BufferDesc
}

// Allocator creates and owns the physical resources of one graph.
//
// Resource creation runs concurrently; lookups are safe for concurrent use.
type Allocator struct {
	dev    device.Device
	budget *Budget

	mu       sync.RWMutex
	textures map[string]*Texture
	buffers  map[string]*Buffer

	g      *ir.Graph
	sizes  *ir.SizeTable
	tusage map[string]device.TextureUsage
	busage map[string]device.BufferUsage
}

// New returns an allocator creating resources on dev. budget may be nil.
func New(dev device.Device, budget *Budget) *Allocator {
	if budget == nil {
		budget = NewBudget(0)
	}
	return &Allocator{
		dev:      dev,
		budget:   budget,
		textures: make(map[string]*Texture),
		buffers:  make(map[string]*Buffer),
	}
}

// Usage accumulates the usage flags each resource needs across the
// scheduled passes. The output is also sampled and copied from by the
// caller once the frame completes.
func Usage(g *ir.Graph, order []int, output string) (map[string]device.TextureUsage, map[string]device.BufferUsage) {
	tex := make(map[string]device.TextureUsage)
	buf := make(map[string]device.BufferUsage)
	for _, pi := range order {
		p := &g.Passes[pi]
		for _, n := range p.TextureInputs {
			tex[n] |= device.TextureUsageSampled
		}
		for _, n := range p.InputAttachments {
			tex[n] |= device.TextureUsageInputAttachment
		}
		for _, o := range p.ColorOutputs {
			tex[o.Name] |= device.TextureUsageColorAttachment
		}
		if p.DepthOutput != nil {
			tex[p.DepthOutput.Name] |= device.TextureUsageDepthAttachment
		}
		for _, s := range p.StorageTextures {
			tex[s.Name] |= device.TextureUsageStorage
		}
		for _, s := range p.StorageBuffers {
			buf[s.Name] |= device.BufferUsageStorage | s.Usage
		}
	}
	for name := range tex {
		if r, ok := g.Resource(name); ok && r.Attachment.GenerateMips {
			tex[name] |= device.TextureUsageTransferSrc | device.TextureUsageTransferDst
		}
	}
	if output != "" {
		tex[output] |= device.TextureUsageSampled | device.TextureUsageTransferSrc
	}
	return tex, buf
}

// Assign creates a physical resource for every graph-owned resource used
// by order and registers the imported textures. Creation fans out over an
// errgroup; on failure everything created by this call is released.
func (a *Allocator) Assign(ctx context.Context, g *ir.Graph, order []int, output string, sizes *ir.SizeTable) error {
	a.g, a.sizes = g, sizes
	a.tusage, a.busage = Usage(g, order, output)

	for name, imp := range g.Imports {
		if _, used := a.tusage[name]; !used {
			continue
		}
		a.textures[name] = &Texture{
			Name:     name,
			ID:       imp.Texture,
			Imported: true,
			Full:     imp.View,
			Desc: device.TextureDesc{
				Label:       name,
				Format:      imp.Format,
				Extent:      imp.Extent,
				MipLevels:   1,
				ArrayLayers: 1,
				Samples:     1,
			},
		}
	}

	var texNames, bufNames []string
	for name := range a.tusage {
		if r, ok := g.Resource(name); ok && !r.Buffer {
			texNames = append(texNames, name)
		}
	}
	for name := range a.busage {
		if r, ok := g.Resource(name); ok && r.Buffer {
			bufNames = append(bufNames, name)
		}
	}
	slices.Sort(texNames)
	slices.Sort(bufNames)

	descs := make([]device.TextureDesc, len(texNames))
	for i, name := range texNames {
		d, err := a.textureDesc(name)
		if err != nil {
			return err
		}
		descs[i] = d
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range texNames {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := a.createTexture(name, descs[i])
			if err != nil {
				return err
			}
			a.mu.Lock()
			a.textures[name] = t
			a.mu.Unlock()
			return nil
		})
	}
	for _, name := range bufNames {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := a.createBuffer(name)
			if err != nil {
				return err
			}
			a.mu.Lock()
			a.buffers[name] = b
			a.mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		a.Release()
		return err
	}

	slogger().Debug("alloc: resources assigned",
		"textures", len(texNames), "buffers", len(bufNames), "memory", a.budget.Stats().String())
	return nil
}

func (a *Allocator) textureDesc(name string) (device.TextureDesc, error) {
	r, _ := a.g.Resource(name)
	att := r.Attachment
	ext, ok := att.Extent(a.sizes)
	if !ok {
		return device.TextureDesc{}, ir.Errorf(ir.ErrUnknownNamedSize, a.g.Passes[r.Owner].Name, name, "size %q", att.SizeName)
	}
	return device.TextureDesc{
		Label:       name,
		Format:      att.Format,
		Extent:      ext,
		MipLevels:   att.MipLevels,
		ArrayLayers: att.ArrayLayers,
		Samples:     att.Samples,
		ViewType:    att.ViewType,
		Usage:       a.tusage[name],
	}, nil
}

// layerViewType is the view type of a single layer of a texture.
func layerViewType(v device.ViewType) device.ViewType {
	switch v {
	case device.ViewType1D, device.ViewType1DArray:
		return device.ViewType1D
	case device.ViewType3D:
		return device.ViewType3D
	default:
		return device.ViewType2D
	}
}

func (a *Allocator) createTexture(name string, desc device.TextureDesc) (*Texture, error) {
	size := device.TextureSize(desc.Format, desc.Extent, desc.MipLevels, desc.ArrayLayers, desc.Samples)
	if err := a.budget.Reserve(size); err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}

	id, err := a.dev.CreateTexture(&desc)
	if err != nil {
		a.budget.Release(size)
		return nil, fmt.Errorf("create texture %q: %w", name, err)
	}
	t := &Texture{Name: name, ID: id, Desc: desc, bytes: size}

	view := func(label string, vt device.ViewType, r device.SubresourceRange) (device.ViewID, error) {
		v, err := a.dev.CreateTextureView(id, &device.ViewDesc{Label: label, Format: desc.Format, ViewType: vt, Range: r})
		if err != nil {
			return device.InvalidID, fmt.Errorf("create view %q: %w", label, err)
		}
		return v, nil
	}

	if t.Full, err = view(name, desc.ViewType, device.FullRange); err != nil {
		a.destroyTexture(t)
		return nil, err
	}
	for m := range desc.MipLevels {
		v, err := view(fmt.Sprintf("%s/mip%d", name, m), desc.ViewType, device.SubresourceRange{BaseMip: m, MipCount: 1})
		if err != nil {
			a.destroyTexture(t)
			return nil, err
		}
		t.Mips = append(t.Mips, v)
	}
	for l := range desc.ArrayLayers {
		v, err := view(fmt.Sprintf("%s/layer%d", name, l), layerViewType(desc.ViewType), device.SubresourceRange{BaseLayer: l, LayerCount: 1})
		if err != nil {
			a.destroyTexture(t)
			return nil, err
		}
		t.Layers = append(t.Layers, v)
	}

	slogger().Debug("alloc: texture created",
		slog.String("resource", name),
		slog.String("format", desc.Format.String()),
		slog.String("extent", desc.Extent.String()),
		slog.Uint64("bytes", size))
	return t, nil
}

func (a *Allocator) createBuffer(name string) (*Buffer, error) {
	r, _ := a.g.Resource(name)
	desc := device.BufferDesc{Label: name, Size: r.Size, Usage: a.busage[name] | r.Usage}
	if err := a.budget.Reserve(desc.Size); err != nil {
		return nil, fmt.Errorf("buffer %q: %w", name, err)
	}
	id, err := a.dev.CreateBuffer(&desc)
	if err != nil {
		a.budget.Release(desc.Size)
		return nil, fmt.Errorf("create buffer %q: %w", name, err)
	}
	return &Buffer{Name: name, ID: id, Desc: desc}, nil
}

// destroyTexture destroys the views before the texture.
func (a *Allocator) destroyTexture(t *Texture) {
	if t.Imported {
		return
	}
	for _, v := range t.Layers {
		a.dev.DestroyTextureView(v)
	}
	for _, v := range t.Mips {
		a.dev.DestroyTextureView(v)
	}
	if t.Full != device.InvalidID {
		a.dev.DestroyTextureView(t.Full)
	}
	a.dev.DestroyTexture(t.ID)
	a.budget.Release(t.bytes)
}

// Resize recreates the textures whose attachment is relative to sizeName
// and whose extent changed, and returns their sorted names. Textures
// already at the new extent are kept, so repeating a resize is a no-op.
func (a *Allocator) Resize(ctx context.Context, sizeName string) ([]string, error) {
	stale, descs, err := a.stale(sizeName)
	if err != nil {
		return nil, err
	}

	for _, t := range stale {
		a.destroyTexture(t)
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, old := range stale {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := a.createTexture(old.Name, descs[i])
			a.mu.Lock()
			defer a.mu.Unlock()
			if err != nil {
				delete(a.textures, old.Name)
				return err
			}
			a.textures[old.Name] = t
			return nil
		})
	}
	err = eg.Wait()

	names := sortedNames(stale)
	if err != nil {
		return names, err
	}

	slogger().Debug("alloc: resized", "size", sizeName, "recreated", names)
	return names, nil
}

// Stale returns the sorted names of the textures Resize would recreate
// for sizeName. Nothing is destroyed.
func (a *Allocator) Stale(sizeName string) ([]string, error) {
	stale, _, err := a.stale(sizeName)
	if err != nil {
		return nil, err
	}
	return sortedNames(stale), nil
}

func sortedNames(ts []*Texture) []string {
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	slices.Sort(names)
	return names
}

func (a *Allocator) stale(sizeName string) ([]*Texture, []device.TextureDesc, error) {
	var stale []*Texture
	var descs []device.TextureDesc

	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, t := range a.textures {
		if t.Imported {
			continue
		}
		r, ok := a.g.Resource(t.Name)
		if !ok || r.Attachment.SizeName != sizeName {
			continue
		}
		d, err := a.textureDesc(t.Name)
		if err != nil {
			return nil, nil, err
		}
		if d.Extent == t.Desc.Extent {
			continue
		}
		stale = append(stale, t)
		descs = append(descs, d)
	}
	return stale, descs, nil
}

// Texture returns the physical texture of a resource.
func (a *Allocator) Texture(name string) (*Texture, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.textures[name]
	return t, ok
}

// Buffer returns the physical buffer of a resource.
func (a *Allocator) Buffer(name string) (*Buffer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.buffers[name]
	return b, ok
}

// TextureNames returns the sorted names of all textures, imported ones included.
func (a *Allocator) TextureNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.textures))
	for n := range a.textures {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// BufferNames returns the sorted buffer names.
func (a *Allocator) BufferNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.buffers))
	for n := range a.buffers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Stats returns the memory accounting of the live resources.
func (a *Allocator) Stats() MemoryStats { return a.budget.Stats() }

// Release destroys every resource the allocator created.
func (a *Allocator) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range a.textures {
		a.destroyTexture(t)
	}
	for _, b := range a.buffers {
		a.dev.DestroyBuffer(b.ID)
		a.budget.Release(b.Desc.Size)
	}
	clear(a.textures)
	clear(a.buffers)
}
