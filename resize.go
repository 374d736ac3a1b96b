// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/gogpu/rendergraph/device"
)

// ResizeNamedSize changes the width and height of a named size, keeping
// its depth. On a built graph the textures relative to the size are
// recreated, together with the render targets and barriers of the groups
// using them, and the affected init and descriptor callbacks run again.
// Resizing to the current extent does nothing.
//
// ResizeNamedSize waits for the device to go idle. It must not run
// concurrently with Execute. If recreation fails the graph is released
// and must be built again.
func (g *Graph) ResizeNamedSize(name string, width, height uint32) error {
	prev, ok := g.sizes.Get(name)
	if !ok {
		return &BuildError{Kind: ErrUnknownNamedSize, Detail: fmt.Sprintf("size %q", name)}
	}
	if width == 0 || height == 0 {
		return &BuildError{Kind: ErrInvalidAttachment, Detail: fmt.Sprintf("size %q resized to %dx%d", name, width, height)}
	}
	changed, _ := g.sizes.Resize(name, width, height)
	if !changed || !g.built {
		return nil
	}

	layout := make([][]int, len(g.plan.Groups))
	for i := range g.plan.Groups {
		layout[i] = g.plan.Groups[i].Passes
	}
	if err := g.checkInputExtents(layout); err != nil {
		g.sizes.Resize(name, prev.Width, prev.Height)
		return err
	}

	if err := g.resize(name); err != nil {
		g.release()
		g.logger().Error("rendergraph: resize failed", "size", name, "err", err)
		return err
	}
	return nil
}

func (g *Graph) resize(name string) error {
	if err := g.dev.WaitIdle(); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	stale, err := g.alloc.Stale(name)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	set := make(map[string]bool, len(stale))
	for _, n := range stale {
		set[n] = true
	}

	var affected []int
	targets := make(map[int]bool)
	for gi := range g.plan.Groups {
		for n := range g.plan.Groups[gi].Spans {
			if set[n] {
				affected = append(affected, gi)
				break
			}
		}
	}
	// Render targets bind the views of the stale textures.
	for _, gi := range affected {
		if grp := g.groups[gi]; grp.typ == Graphics {
			g.dev.DestroyRenderTarget(grp.target)
			grp.target = device.InvalidID
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.opts.setupTimeout)
	defer cancel()
	recreated, err := g.alloc.Resize(ctx, name)
	if err != nil {
		return err
	}
	g.plan.RebuildGroups(affected)

	for _, gi := range affected {
		if g.groups[gi].typ != Graphics {
			continue
		}
		if err := g.createTarget(gi); err != nil {
			return err
		}
		targets[gi] = true
	}
	for _, gi := range affected {
		g.convert(gi)
	}
	if err := g.prime(recreated); err != nil {
		return err
	}
	if err := g.runCallbacks(targets, set); err != nil {
		return err
	}

	g.logger().Info("rendergraph: resized",
		"size", name,
		"recreated", recreated,
		"groups", slices.Sorted(maps.Keys(targets)),
		"memory", g.alloc.Stats().String())
	return nil
}
