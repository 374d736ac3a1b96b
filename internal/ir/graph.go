// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ir

import (
	"math/bits"
	"slices"

	"github.com/gogpu/rendergraph/device"
)

// maxMipLevels bounds MipLevels; 16 levels cover a 32768 texel extent.
const maxMipLevels = 16

// Import is an external texture made visible to the graph under a name.
type Import struct {
	Name    string
	Texture device.TextureID
	View    device.ViewID
	Format  device.Format
	Extent  device.Extent3D
	// State is the state the texture is in whenever the graph starts
	// executing, and the state the graph must leave it in.
	State device.State
}

// Resource is a virtual resource declared by exactly one pass.
type Resource struct {
	Name  string
	Owner int

	Buffer bool
	// Attachment describes a texture resource.
	Attachment Attachment
	// Size and Usage describe a buffer resource.
	Size  uint64
	Usage device.BufferUsage
}

// Graph indexes passes and resources by name. Passes are addressed by
// their position in Passes everywhere else.
type Graph struct {
	Passes  []Pass
	Imports map[string]Import

	passIndex map[string]int
	resources map[string]*Resource
	modifiers map[string][]int
}

// NewGraph indexes passes and validates their declarations: unique pass
// names, a single writer per resource and formats that fit their bindings.
func NewGraph(passes []Pass, imports map[string]Import) (*Graph, error) {
	g := &Graph{
		Passes:    passes,
		Imports:   imports,
		passIndex: make(map[string]int, len(passes)),
		resources: make(map[string]*Resource),
		modifiers: make(map[string][]int),
	}
	if g.Imports == nil {
		g.Imports = make(map[string]Import)
	}

	for i := range passes {
		p := &passes[i]
		if _, dup := g.passIndex[p.Name]; dup {
			return nil, &BuildError{Kind: ErrDuplicatePass, Pass: p.Name}
		}
		g.passIndex[p.Name] = i
		normalize(p)
		if err := g.declare(i, p); err != nil {
			return nil, err
		}
	}
	for name, idx := range g.modifiers {
		if _, ok := g.resources[name]; !ok {
			continue
		}
		for _, m := range idx {
			if g.resources[name].Owner == m {
				return nil, Errorf(ErrMultipleWriters, passes[m].Name, name, "pass both declares and modifies the resource")
			}
		}
	}
	return g, nil
}

func (g *Graph) declare(i int, p *Pass) error {
	add := func(r *Resource) error {
		if prev, ok := g.resources[r.Name]; ok {
			return Errorf(ErrMultipleWriters, p.Name, r.Name, "already written by pass %q", g.Passes[prev.Owner].Name)
		}
		if _, ok := g.Imports[r.Name]; ok {
			return Errorf(ErrMultipleWriters, p.Name, r.Name, "resource is imported")
		}
		g.resources[r.Name] = r
		return nil
	}

	for _, o := range p.ColorOutputs {
		if o.Attachment.Format == device.FormatUndefined || o.Attachment.Format.IsDepth() {
			return Errorf(ErrFormatMismatch, p.Name, o.Name, "color output with format %s", o.Attachment.Format)
		}
		if err := checkAttachment(p.Name, o.Name, o.Attachment); err != nil {
			return err
		}
		if err := add(&Resource{Name: o.Name, Owner: i, Attachment: o.Attachment}); err != nil {
			return err
		}
	}
	if d := p.DepthOutput; d != nil {
		if !d.Attachment.Format.IsDepth() {
			return Errorf(ErrFormatMismatch, p.Name, d.Name, "depth output with format %s", d.Attachment.Format)
		}
		if err := checkAttachment(p.Name, d.Name, d.Attachment); err != nil {
			return err
		}
		if err := add(&Resource{Name: d.Name, Owner: i, Attachment: d.Attachment}); err != nil {
			return err
		}
	}
	for _, s := range p.StorageTextures {
		switch s.Access {
		case AccessWrite:
			if s.Attachment.Format == device.FormatUndefined || s.Attachment.Format.IsDepth() {
				return Errorf(ErrFormatMismatch, p.Name, s.Name, "storage texture with format %s", s.Attachment.Format)
			}
			if err := checkAttachment(p.Name, s.Name, s.Attachment); err != nil {
				return err
			}
			if err := add(&Resource{Name: s.Name, Owner: i, Attachment: s.Attachment}); err != nil {
				return err
			}
		case AccessReadWrite:
			g.modifiers[s.Name] = append(g.modifiers[s.Name], i)
		}
	}
	for _, s := range p.StorageBuffers {
		switch s.Access {
		case AccessWrite:
			if s.Size == 0 {
				return Errorf(ErrInvalidAttachment, p.Name, s.Name, "storage buffer of size 0")
			}
			if err := add(&Resource{Name: s.Name, Owner: i, Buffer: true, Size: s.Size, Usage: s.Usage}); err != nil {
				return err
			}
		case AccessReadWrite:
			g.modifiers[s.Name] = append(g.modifiers[s.Name], i)
		}
	}
	return nil
}

func normalize(p *Pass) {
	for j := range p.ColorOutputs {
		p.ColorOutputs[j].Attachment = p.ColorOutputs[j].Attachment.Normalized()
	}
	if p.DepthOutput != nil {
		d := *p.DepthOutput
		d.Attachment = d.Attachment.Normalized()
		p.DepthOutput = &d
	}
	for j := range p.StorageTextures {
		if p.StorageTextures[j].Access == AccessWrite {
			p.StorageTextures[j].Attachment = p.StorageTextures[j].Attachment.Normalized()
		}
	}
}

func checkAttachment(pass, name string, a Attachment) error {
	switch {
	case a.MipLevels == 0 || a.MipLevels > maxMipLevels:
		return Errorf(ErrInvalidAttachment, pass, name, "mip levels %d out of range", a.MipLevels)
	case a.ArrayLayers == 0:
		return Errorf(ErrInvalidAttachment, pass, name, "zero array layers")
	case a.ViewType.IsCube() && a.ArrayLayers%6 != 0:
		return Errorf(ErrInvalidAttachment, pass, name, "cube view with %d layers", a.ArrayLayers)
	case a.Samples == 0 || a.Samples > 64 || bits.OnesCount32(a.Samples) != 1:
		return Errorf(ErrInvalidAttachment, pass, name, "sample count %d", a.Samples)
	case a.GenerateMips && a.Samples > 1:
		return Errorf(ErrInvalidAttachment, pass, name, "mip generation on a multisampled texture")
	}
	return checkSize(pass, name, a)
}

// checkSize rejects sizes that would otherwise be clamped to one texel:
// absolute sizes need a positive extent, relative sizes non-negative
// multipliers. It runs on normalized attachments.
func checkSize(pass, name string, a Attachment) error {
	if a.SizeName != "" {
		for _, m := range a.Size {
			if !(m >= 0) {
				return Errorf(ErrInvalidAttachment, pass, name, "size multipliers %v of %q", a.Size, a.SizeName)
			}
		}
		return nil
	}
	for _, v := range a.Size {
		if !(v >= 1) {
			return Errorf(ErrInvalidAttachment, pass, name, "absolute size %vx%vx%v", a.Size[0], a.Size[1], a.Size[2])
		}
	}
	return nil
}

// PassIndex returns the index of the named pass.
func (g *Graph) PassIndex(name string) (int, bool) {
	i, ok := g.passIndex[name]
	return i, ok
}

// Resource returns the declaration of a graph-owned resource.
func (g *Graph) Resource(name string) (*Resource, bool) {
	r, ok := g.resources[name]
	return r, ok
}

// Owner returns the pass that declares the resource.
func (g *Graph) Owner(name string) (int, bool) {
	r, ok := g.resources[name]
	if !ok {
		return -1, false
	}
	return r.Owner, true
}

// Modifiers returns the passes binding the resource read-write, in
// declaration order.
func (g *Graph) Modifiers(name string) []int {
	return g.modifiers[name]
}

// Known reports whether name is declared by a pass or imported.
func (g *Graph) Known(name string) bool {
	if _, ok := g.resources[name]; ok {
		return true
	}
	_, ok := g.Imports[name]
	return ok
}

// Producers returns the passes that must execute before reader for its
// read of name to observe the final contents: the owner plus every
// modifier, or, for a modifier itself, the owner plus earlier modifiers.
func (g *Graph) Producers(name string, reader int) []int {
	var out []int
	if owner, ok := g.Owner(name); ok {
		if owner == reader {
			return nil
		}
		out = append(out, owner)
	}
	mods := g.modifiers[name]
	if at := slices.Index(mods, reader); at >= 0 {
		mods = mods[:at]
	}
	return append(out, mods...)
}

// Resources returns the sorted names of graph-owned resources.
func (g *Graph) Resources() []string {
	names := make([]string, 0, len(g.resources))
	for n := range g.resources {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
