// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"cmp"
	"maps"
	"slices"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/barrier"
)

// Transition moves one resource between states.
type Transition = barrier.Transition

// MipGen requests mip generation of a texture after its group.
type MipGen = barrier.MipGen

// GroupPlan describes one scheduled pass-group.
type GroupPlan struct {
	Passes []string
	Type   PipelineType
	// Target is the render target of graphics groups.
	Target  device.RenderTargetID
	Extent  Extent
	Before  []Transition
	Subpass [][]Transition
	MipGen  []MipGen
	After   []Transition
}

// Merged reports whether the group fuses several passes into subpasses.
func (p GroupPlan) Merged() bool { return len(p.Passes) > 1 }

// Plan is a read-only snapshot of a built graph's execution plan.
type Plan struct {
	// Order lists the executed passes.
	Order  []string
	Groups []GroupPlan
	// SeedStates is the state of every resource when a frame starts; each
	// frame leaves the resources in the same states.
	SeedStates map[string]device.State
}

// Plan returns the execution plan, or the zero Plan before Build.
func (g *Graph) Plan() Plan {
	if !g.built {
		return Plan{}
	}
	p := Plan{
		Order:      make([]string, len(g.order)),
		Groups:     make([]GroupPlan, len(g.groups)),
		SeedStates: maps.Clone(g.plan.SeedStates),
	}
	for i, pi := range g.order {
		p.Order[i] = g.ir.Passes[pi].Name
	}
	for gi, grp := range g.groups {
		bg := &g.plan.Groups[gi]
		gp := GroupPlan{
			Type:    grp.typ,
			Target:  grp.target,
			Extent:  grp.extent,
			Before:  slices.Clone(bg.Before),
			MipGen:  slices.Clone(bg.MipGen),
			After:   slices.Clone(bg.After),
			Subpass: make([][]Transition, len(bg.Subpass)),
		}
		for k, ts := range bg.Subpass {
			gp.Subpass[k] = slices.Clone(ts)
		}
		for _, pi := range grp.passes {
			gp.Passes = append(gp.Passes, g.ir.Passes[pi].Name)
		}
		p.Groups[gi] = gp
	}
	return p
}

// Lifetime is the span of scheduled positions over which a resource is
// accessed: First is the position of its first access (the write, for
// graph-owned resources) and Last the position of its last access.
type Lifetime struct {
	Resource   string
	First      int
	Last       int
	FirstGroup int
	LastGroup  int
	Imported   bool
}

// Lifetimes returns the lifetime of every resource the plan touches,
// ordered by first access then name. It is empty before Build.
func (g *Graph) Lifetimes() []Lifetime {
	if !g.built {
		return nil
	}
	pos := make(map[string][2]int)
	for i, pi := range g.order {
		p := &g.ir.Passes[pi]
		touch := func(name string) {
			span, ok := pos[name]
			if !ok {
				span[0] = i
			}
			span[1] = i
			pos[name] = span
		}
		for _, w := range p.Writes() {
			touch(w.Name)
		}
		for _, r := range p.Reads() {
			touch(r.Name)
		}
	}

	var out []Lifetime
	for _, l := range g.plan.Lifetimes() {
		span := pos[l.Resource]
		_, imported := g.ir.Imports[l.Resource]
		out = append(out, Lifetime{
			Resource:   l.Resource,
			First:      span[0],
			Last:       span[1],
			FirstGroup: l.FirstGroup,
			LastGroup:  l.LastGroup,
			Imported:   imported,
		})
	}
	slices.SortStableFunc(out, func(a, b Lifetime) int {
		if c := cmp.Compare(a.First, b.First); c != 0 {
			return c
		}
		return cmp.Compare(a.Resource, b.Resource)
	})
	return out
}
