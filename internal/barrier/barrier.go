// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package barrier plans the resource state transitions of a scheduled
// graph.
//
// The graph is treated as a closed loop: the state a resource is in when a
// frame starts is the state the previous frame left it in. Plan first walks
// every group once from an empty state table to find these end states,
// then walks again from them to produce the transitions. Because each
// resource ends in the state of its last access, the second walk ends
// where it started and every frame, the first included, replays the same
// lists.
package barrier

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
)

// Transition moves one resource between states.
type Transition struct {
	Resource string
	Buffer   bool
	Old      device.State
	New      device.State
}

// String formats the transition for dumps.
func (t Transition) String() string {
	return fmt.Sprintf("%s: %s -> %s", t.Resource, t.Old, t.New)
}

// MipGen requests mip chain generation for a texture after its group.
type MipGen struct {
	Resource string
	From     device.State
}

// Span is the first and last state of a resource within a group.
type Span struct {
	First device.State
	Last  device.State
}

// Group holds the transitions of one scheduled pass-group.
type Group struct {
	Passes []int

	// Before is issued ahead of the group, outside any render target.
	Before []Transition
	// Subpass[i] is issued between subpass i-1 and i. Subpass[0] is
	// always empty.
	Subpass [][]Transition
	// MipGen runs after the subpasses, before After.
	MipGen []MipGen
	// After is issued once the group completes.
	After []Transition

	// Spans records the state range of every resource the group touches.
	Spans map[string]Span
}

// Plan is the barrier plan of a scheduled graph.
type Plan struct {
	Groups []Group

	// SeedStates is the state of every resource when a frame starts.
	SeedStates map[string]device.State
	// EndStates is the state of every resource when a frame ends. It
	// equals SeedStates.
	EndStates map[string]device.State

	g      *ir.Graph
	output string
}

type access struct {
	name   string
	buffer bool
	need   device.State
	after  device.State
}

// accesses lists the states a pass needs its resources in, and the states
// it leaves them in.
func accesses(p *ir.Pass) []access {
	var out []access
	add := func(name string, buffer bool, need, after device.State) {
		for i := range out {
			if out[i].name == name {
				out[i].need, out[i].after = need, after
				return
			}
		}
		out = append(out, access{name: name, buffer: buffer, need: need, after: after})
	}
	for _, n := range p.TextureInputs {
		add(n, false, device.StateShaderRead, device.StateShaderRead)
	}
	for _, n := range p.InputAttachments {
		add(n, false, device.StateInputAttachment, device.StateInputAttachment)
	}
	for _, o := range p.ColorOutputs {
		add(o.Name, false, device.StateColorAttachment, device.StateColorAttachment)
	}
	if p.DepthOutput != nil {
		add(p.DepthOutput.Name, false, device.StateDepthAttachment, device.StateDepthAttachment)
	}
	for _, s := range p.StorageTextures {
		add(s.Name, false, s.BeginState(), s.EndState())
	}
	for _, s := range p.StorageBuffers {
		add(s.Name, true, s.BeginState(), s.EndState())
	}
	return out
}

// New plans the transitions of groups, which list pass indices in
// execution order. output is promoted to StateShaderRead after the group
// that writes it last.
func New(g *ir.Graph, groups [][]int, output string) *Plan {
	p := &Plan{g: g, output: output}
	p.Groups = make([]Group, len(groups))
	for i, grp := range groups {
		p.Groups[i].Passes = slices.Clone(grp)
	}

	start := make(map[string]device.State)
	for name, imp := range g.Imports {
		start[name] = imp.State
	}
	seed := p.walk(start, nil)
	p.SeedStates = seed
	p.EndStates = p.walk(maps.Clone(seed), p.Groups)
	return p
}

// RebuildGroups recomputes the lists of the groups at the given positions
// from the seed states, leaving the other groups untouched.
func (p *Plan) RebuildGroups(which []int) {
	fresh := make([]Group, len(p.Groups))
	for i := range p.Groups {
		fresh[i].Passes = p.Groups[i].Passes
	}
	p.EndStates = p.walk(maps.Clone(p.SeedStates), fresh)
	for _, i := range which {
		p.Groups[i] = fresh[i]
	}
}

// lastWriter returns the position of the last group writing the output.
func (p *Plan) lastWriter(groups []Group) int {
	last := -1
	for i := range groups {
		for _, pi := range groups[i].Passes {
			for _, w := range p.g.Passes[pi].Writes() {
				if w.Name == p.output {
					last = i
				}
			}
		}
	}
	return last
}

// lastToucher maps each imported resource to the last group accessing it.
func (p *Plan) lastToucher(groups []Group) map[string]int {
	last := make(map[string]int)
	for i := range groups {
		for _, pi := range groups[i].Passes {
			for _, a := range accesses(&p.g.Passes[pi]) {
				if _, ok := p.g.Imports[a.name]; ok {
					last[a.name] = i
				}
			}
		}
	}
	return last
}

// walk runs the groups from cur and returns the final states. When out is
// nil only the states are tracked.
func (p *Plan) walk(cur map[string]device.State, out []Group) map[string]device.State {
	groups := out
	if groups == nil {
		groups = p.Groups
	}
	promote := p.lastWriter(groups)
	restore := p.lastToucher(groups)

	for gi := range groups {
		grp := &groups[gi]
		var (
			before  []Transition
			subpass = make([][]Transition, len(grp.Passes))
			after   []Transition
			mips    []MipGen
			spans   = make(map[string]Span)
		)

		for k, pi := range grp.Passes {
			for _, a := range accesses(&p.g.Passes[pi]) {
				span, seen := spans[a.name]
				if old := cur[a.name]; old != a.need {
					t := Transition{Resource: a.name, Buffer: a.buffer, Old: old, New: a.need}
					if seen {
						subpass[k] = append(subpass[k], t)
					} else {
						before = append(before, t)
					}
				}
				if !seen {
					span.First = a.need
				}
				span.Last = a.after
				spans[a.name] = span
				cur[a.name] = a.after
			}
		}

		for _, pi := range grp.Passes {
			pass := &p.g.Passes[pi]
			for _, o := range pass.Attachments() {
				if o.Attachment.GenerateMips {
					mips = append(mips, MipGen{Resource: o.Name, From: cur[o.Name]})
					cur[o.Name] = device.StateShaderRead
				}
			}
			for _, s := range pass.StorageTextures {
				if s.Access == ir.AccessWrite && s.Attachment.GenerateMips {
					mips = append(mips, MipGen{Resource: s.Name, From: cur[s.Name]})
					cur[s.Name] = device.StateShaderRead
				}
			}
		}

		if gi == promote && cur[p.output] != device.StateShaderRead {
			after = append(after, Transition{Resource: p.output, Old: cur[p.output], New: device.StateShaderRead})
			cur[p.output] = device.StateShaderRead
		}
		for _, name := range slices.Sorted(maps.Keys(restore)) {
			if restore[name] != gi {
				continue
			}
			if want := p.g.Imports[name].State; cur[name] != want {
				after = append(after, Transition{Resource: name, Old: cur[name], New: want})
				cur[name] = want
			}
		}

		if out != nil {
			grp.Before = before
			grp.Subpass = subpass
			grp.After = after
			grp.MipGen = mips
			grp.Spans = spans
		}
	}
	return cur
}

// Lifetime is the range of group positions a resource is live in.
type Lifetime struct {
	Resource   string
	FirstGroup int
	LastGroup  int
}

// Lifetimes returns the live range of each resource, ordered by first use
// then name.
func (p *Plan) Lifetimes() []Lifetime {
	idx := make(map[string]int)
	var out []Lifetime
	for gi := range p.Groups {
		for _, name := range slices.Sorted(maps.Keys(p.Groups[gi].Spans)) {
			if i, ok := idx[name]; ok {
				out[i].LastGroup = gi
				continue
			}
			idx[name] = len(out)
			out = append(out, Lifetime{Resource: name, FirstGroup: gi, LastGroup: gi})
		}
	}
	return out
}
