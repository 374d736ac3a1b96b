// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resolve computes the set of passes a graph output depends on and
// orders them so that every producer runs before its consumers.
package resolve

import (
	"slices"
	"strings"

	"github.com/gogpu/rendergraph/internal/ir"
)

// Validate checks that every read names a resource some pass declares or
// the caller imported, and that texture and buffer bindings agree with the
// kind of the resource they name.
func Validate(g *ir.Graph) error {
	for i := range g.Passes {
		p := &g.Passes[i]
		bound := make(map[string]bool)
		for _, r := range p.Reads() {
			if bound[r.Name] {
				return ir.Errorf(ir.ErrInvalidAttachment, p.Name, r.Name, "resource bound twice by one pass")
			}
			bound[r.Name] = true
			if !g.Known(r.Name) {
				return ir.Errorf(ir.ErrDanglingRead, p.Name, r.Name, "no pass writes it and it is not imported")
			}
			if owner, _ := g.Owner(r.Name); owner == i {
				return ir.Errorf(ir.ErrCycle, p.Name, r.Name, "pass reads its own output")
			}
			if err := checkKind(g, p.Name, r.Name, r.Kind == ir.ReadStorageBuffer); err != nil {
				return err
			}
		}
		for _, w := range p.Writes() {
			if !w.Modifies {
				continue
			}
			if !g.Known(w.Name) {
				return ir.Errorf(ir.ErrDanglingRead, p.Name, w.Name, "read-write binding of a resource nobody declares")
			}
		}
		if p.Type == ir.Graphics && len(p.Attachments()) == 0 {
			return ir.Errorf(ir.ErrInvalidAttachment, p.Name, "", "graphics pass without color or depth output")
		}
		for _, n := range p.InputAttachments {
			if p.Type != ir.Graphics {
				return ir.Errorf(ir.ErrInvalidAttachment, p.Name, n, "input attachment in a %s pass", p.Type)
			}
		}
	}
	return nil
}

func checkKind(g *ir.Graph, pass, name string, wantBuffer bool) error {
	isBuffer := false
	if r, ok := g.Resource(name); ok {
		isBuffer = r.Buffer
	}
	switch {
	case wantBuffer && !isBuffer:
		return ir.Errorf(ir.ErrFormatMismatch, pass, name, "bound as a buffer but declared as a texture")
	case !wantBuffer && isBuffer:
		return ir.Errorf(ir.ErrFormatMismatch, pass, name, "bound as a texture but declared as a buffer")
	}
	return nil
}

type resolver struct {
	g      *ir.Graph
	stack  []int
	onPath []bool
	path   []int
}

// Resolve returns the passes that contribute to output, writers before
// readers. Passes that do not contribute are left out.
//
// Passes are collected on a stack starting with the final writer of
// output. A producer already above its consumer stays where it is; one
// below is moved to the top and its own producers are revisited. The
// reversed stack is the execution order. A producer reached again while
// its own reads are being visited closes a cycle and fails with
// [ir.ErrCycle].
func Resolve(g *ir.Graph, output string) ([]int, error) {
	root, err := finalWriter(g, output)
	if err != nil {
		return nil, err
	}

	r := &resolver{g: g, onPath: make([]bool, len(g.Passes))}
	r.stack = append(r.stack, root)
	if err := r.visit(root); err != nil {
		return nil, err
	}
	slices.Reverse(r.stack)
	return r.stack, nil
}

func finalWriter(g *ir.Graph, output string) (int, error) {
	if mods := g.Modifiers(output); len(mods) > 0 {
		return mods[len(mods)-1], nil
	}
	if owner, ok := g.Owner(output); ok {
		if res, _ := g.Resource(output); res.Buffer {
			return -1, ir.Errorf(ir.ErrInvalidAttachment, g.Passes[owner].Name, output, "graph output must be a texture")
		}
		return owner, nil
	}
	return -1, ir.Errorf(ir.ErrNoOutputWriter, "", output, "no pass writes the output")
}

func (r *resolver) visit(p int) error {
	if r.onPath[p] {
		return r.cycle(p)
	}
	r.onPath[p] = true
	r.path = append(r.path, p)
	defer func() {
		r.onPath[p] = false
		r.path = r.path[:len(r.path)-1]
	}()

	for _, read := range r.g.Passes[p].Reads() {
		for _, q := range r.g.Producers(read.Name, p) {
			qi := slices.Index(r.stack, q)
			if qi > slices.Index(r.stack, p) {
				continue
			}
			if qi >= 0 {
				r.stack = slices.Delete(r.stack, qi, qi+1)
			}
			r.stack = append(r.stack, q)
			if err := r.visit(q); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) cycle(p int) error {
	start := slices.Index(r.path, p)
	names := make([]string, 0, len(r.path)-start+1)
	for _, i := range r.path[start:] {
		names = append(names, r.g.Passes[i].Name)
	}
	names = append(names, r.g.Passes[p].Name)
	return ir.Errorf(ir.ErrCycle, r.g.Passes[p].Name, "", "%s", strings.Join(names, " -> "))
}
