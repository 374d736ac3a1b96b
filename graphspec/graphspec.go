// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graphspec describes render graphs in YAML.
//
// A description names the sizes, the passes with their attachments, and
// the output:
//
//	sizes:
//	  screen: {width: 1920, height: 1080}
//	output: final
//	passes:
//	  - name: gbuffer
//	    color:
//	      - {name: albedo, format: rgba8unorm, size: screen}
//	      - {name: normal, format: rgba16float, size: screen}
//	    depth: {name: depth, format: depth32float, size: screen}
//	  - name: lighting
//	    input_attachments: [albedo, normal]
//	    color:
//	      - {name: hdr, format: rgba16float, size: screen}
//	  - name: tonemap
//	    inputs: [hdr]
//	    color:
//	      - {name: final, format: bgra8unorm, size: screen, scale: [0.5, 0.5]}
//
// Apply adds the description to a graph. Callbacks are attached by the
// caller to the returned pass descriptors.
package graphspec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
)

// ErrInvalid is wrapped by errors of malformed descriptions.
var ErrInvalid = errors.New("graphspec: invalid description")

// Spec is a render graph description.
type Spec struct {
	Sizes  map[string]Size `yaml:"sizes"`
	Output string          `yaml:"output"`
	Passes []Pass          `yaml:"passes"`
}

// Size is a named size.
type Size struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	Depth  uint32 `yaml:"depth,omitempty"`
}

// Pass describes one render pass.
type Pass struct {
	Name string `yaml:"name"`
	// Type is graphics (the default), compute or general.
	Type             string           `yaml:"type,omitempty"`
	Color            []Output         `yaml:"color,omitempty"`
	Depth            *Output          `yaml:"depth,omitempty"`
	Inputs           []string         `yaml:"inputs,omitempty"`
	InputAttachments []string         `yaml:"input_attachments,omitempty"`
	StorageTextures  []StorageTexture `yaml:"storage_textures,omitempty"`
	StorageBuffers   []StorageBuffer  `yaml:"storage_buffers,omitempty"`
}

// Output is a written texture.
type Output struct {
	Name       string `yaml:"name"`
	Attachment `yaml:",inline"`
}

// Attachment describes the shape of a texture. With Size set, Scale
// multiplies the named size; otherwise Extent gives absolute texels.
type Attachment struct {
	Format       string    `yaml:"format,omitempty"`
	Size         string    `yaml:"size,omitempty"`
	Scale        []float32 `yaml:"scale,omitempty"`
	Extent       []uint32  `yaml:"extent,omitempty"`
	Mips         uint32    `yaml:"mips,omitempty"`
	Layers       uint32    `yaml:"layers,omitempty"`
	Samples      uint32    `yaml:"samples,omitempty"`
	View         string    `yaml:"view,omitempty"`
	GenerateMips bool      `yaml:"generate_mips,omitempty"`
	Clear        []float32 `yaml:"clear,omitempty"`
	ClearDepth   float32   `yaml:"clear_depth,omitempty"`
}

// StorageTexture is a storage image binding. The attachment fields are
// required when Access is write.
type StorageTexture struct {
	Name       string `yaml:"name"`
	Access     string `yaml:"access"`
	Attachment `yaml:",inline"`
}

// StorageBuffer is a storage buffer binding.
type StorageBuffer struct {
	Name   string `yaml:"name"`
	Access string `yaml:"access"`
	Size   uint64 `yaml:"size,omitempty"`
	// Usage lists extra uses: vertex, index or indirect.
	Usage []string `yaml:"usage,omitempty"`
}

// Parse decodes a YAML description. Unknown keys are rejected.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("graphspec: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses a description file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphspec: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Encode writes s as YAML.
func (s *Spec) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// Validate checks the fields Parse cannot type-check: names, enums and
// attachment shapes. Graph-level rules are left to Build.
func (s *Spec) Validate() error {
	if len(s.Passes) == 0 {
		return fmt.Errorf("%w: no passes", ErrInvalid)
	}
	for _, p := range s.Passes {
		if _, err := p.compile(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(pass, format string, args ...any) error {
	return fmt.Errorf("%w: pass %q: %s", ErrInvalid, pass, fmt.Sprintf(format, args...))
}

// compiled is a pass translated to graph types.
type compiled struct {
	typ      rendergraph.PipelineType
	color    []compiledOutput
	depth    *compiledOutput
	textures []rendergraph.StorageTexture
	buffers  []rendergraph.StorageBuffer
}

type compiledOutput struct {
	name string
	a    rendergraph.Attachment
}

func (p Pass) compile() (compiled, error) {
	var c compiled
	if p.Name == "" {
		return c, fmt.Errorf("%w: pass without a name", ErrInvalid)
	}
	c.typ = rendergraph.Graphics
	if p.Type != "" {
		t, ok := ir.ParsePipelineType(p.Type)
		if !ok {
			return c, invalid(p.Name, "unknown type %q", p.Type)
		}
		c.typ = t
	}
	for _, o := range p.Color {
		a, err := o.Attachment.compile(p.Name, o.Name)
		if err != nil {
			return c, err
		}
		c.color = append(c.color, compiledOutput{name: o.Name, a: a})
	}
	if p.Depth != nil {
		a, err := p.Depth.Attachment.compile(p.Name, p.Depth.Name)
		if err != nil {
			return c, err
		}
		if !a.Format.IsDepth() {
			return c, invalid(p.Name, "depth output %q has color format %s", p.Depth.Name, a.Format)
		}
		c.depth = &compiledOutput{name: p.Depth.Name, a: a}
	}
	for _, st := range p.StorageTextures {
		access, ok := ir.ParseAccess(st.Access)
		if !ok {
			return c, invalid(p.Name, "storage texture %q: unknown access %q", st.Name, st.Access)
		}
		b := rendergraph.StorageTexture{Name: st.Name, Access: access}
		if access == rendergraph.AccessWrite {
			if st.Format == "" {
				return c, invalid(p.Name, "written storage texture %q needs a format and size", st.Name)
			}
			a, err := st.Attachment.compile(p.Name, st.Name)
			if err != nil {
				return c, err
			}
			b.Attachment = a
		}
		c.textures = append(c.textures, b)
	}
	for _, sb := range p.StorageBuffers {
		access, ok := ir.ParseAccess(sb.Access)
		if !ok {
			return c, invalid(p.Name, "storage buffer %q: unknown access %q", sb.Name, sb.Access)
		}
		b := rendergraph.StorageBuffer{Name: sb.Name, Access: access, Size: sb.Size}
		for _, u := range sb.Usage {
			switch u {
			case "vertex":
				b.Usage |= device.BufferUsageVertex
			case "index":
				b.Usage |= device.BufferUsageIndex
			case "indirect":
				b.Usage |= device.BufferUsageIndirect
			default:
				return c, invalid(p.Name, "storage buffer %q: unknown usage %q", sb.Name, u)
			}
		}
		c.buffers = append(c.buffers, b)
	}
	return c, nil
}

func (a Attachment) compile(pass, name string) (rendergraph.Attachment, error) {
	var out rendergraph.Attachment
	if name == "" {
		return out, invalid(pass, "attachment without a name")
	}
	f, ok := device.ParseFormat(a.Format)
	if !ok {
		return out, invalid(pass, "%q: unknown format %q", name, a.Format)
	}
	out.Format = f
	switch {
	case a.Size != "" && len(a.Extent) > 0:
		return out, invalid(pass, "%q: size and extent are exclusive", name)
	case a.Size != "":
		if len(a.Scale) > 3 {
			return out, invalid(pass, "%q: scale has %d components", name, len(a.Scale))
		}
		out.SizeName = a.Size
		copy(out.Size[:], a.Scale)
	case len(a.Extent) > 0:
		if len(a.Extent) < 2 || len(a.Extent) > 3 {
			return out, invalid(pass, "%q: extent has %d components", name, len(a.Extent))
		}
		for i, v := range a.Extent {
			out.Size[i] = float32(v)
		}
	default:
		return out, invalid(pass, "%q: needs a size or an extent", name)
	}
	if a.View != "" {
		v, ok := device.ParseViewType(a.View)
		if !ok {
			return out, invalid(pass, "%q: unknown view type %q", name, a.View)
		}
		out.ViewType = v
	}
	out.MipLevels = a.Mips
	out.ArrayLayers = a.Layers
	out.Samples = a.Samples
	out.GenerateMips = a.GenerateMips
	if len(a.Clear) > 4 {
		return out, invalid(pass, "%q: clear has %d components", name, len(a.Clear))
	}
	copy(out.Clear.Color[:], a.Clear)
	out.Clear.Depth = a.ClearDepth
	return out, nil
}

// Apply adds the sizes and passes of s to g and sets its output. It
// returns the pass descriptors by name.
func Apply(g *rendergraph.Graph, s *Spec) (map[string]*rendergraph.PassDescriptor, error) {
	for name, sz := range s.Sizes {
		if err := g.AddNamedSize(name, rendergraph.Extent{Width: sz.Width, Height: sz.Height, Depth: max(sz.Depth, 1)}); err != nil {
			return nil, fmt.Errorf("graphspec: size %q: %w", name, err)
		}
	}
	passes := make(map[string]*rendergraph.PassDescriptor, len(s.Passes))
	for _, p := range s.Passes {
		c, err := p.compile()
		if err != nil {
			return nil, err
		}
		pd := g.AddRenderPass(p.Name, c.typ)
		for _, o := range c.color {
			pd.AddColorOutput(o.name, o.a)
		}
		if c.depth != nil {
			pd.SetDepthOutput(c.depth.name, c.depth.a)
		}
		for _, in := range p.Inputs {
			pd.AddTextureInput(in)
		}
		for _, in := range p.InputAttachments {
			pd.AddInputAttachment(in)
		}
		for _, b := range c.textures {
			pd.AddStorageTexture(b)
		}
		for _, b := range c.buffers {
			pd.AddStorageBuffer(b)
		}
		if err := pd.Err(); err != nil {
			return nil, fmt.Errorf("graphspec: pass %q: %w", p.Name, err)
		}
		passes[p.Name] = pd
	}
	if s.Output != "" {
		g.SetOutput(s.Output)
	}
	return passes, nil
}
