// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"fmt"
	"time"

	"github.com/loov/hrtime"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/alloc"
)

// Signal is a waitable handle on a submitted frame. The zero Signal, and
// the Signal of a frame executed without wantSignal, is already signaled.
type Signal struct {
	Fence device.FenceID
	Frame uint64
}

// Valid reports whether the signal refers to a fence.
func (s Signal) Valid() bool { return s.Fence != device.InvalidID }

// MemoryStats reports the estimated bytes held by graph-owned resources.
type MemoryStats = alloc.MemoryStats

// FrameStats reports execution counters and timings.
type FrameStats struct {
	// Frames counts successfully submitted frames.
	Frames uint64
	// LastRecord and AverageRecord time command recording, callbacks
	// included.
	LastRecord    time.Duration
	AverageRecord time.Duration
	// LastSubmit times the queue submission.
	LastSubmit time.Duration
	Memory     MemoryStats

	totalRecord time.Duration
}

// Execute records and submits one frame. The graph does not wait for the
// GPU: before a slot comes around again, FramesInFlight frames later, the
// caller must have waited on a Signal of that frame or a later one.
//
// Execute must not run concurrently with ResizeNamedSize.
func (g *Graph) Execute(wantSignal bool) (Signal, error) {
	if !g.built {
		return Signal{}, ErrNotBuilt
	}
	start := hrtime.Now()
	idx := int(g.frame % uint64(len(g.slots)))
	s := g.slots[idx]

	if err := g.dev.ResetCommandPool(s.pool); err != nil {
		return Signal{}, g.frameError("reset command pool", err)
	}
	rec, err := g.dev.Begin(s.cmd)
	if err != nil {
		return Signal{}, g.frameError("begin", err)
	}
	if err := g.record(rec, idx); err != nil {
		if endErr := rec.End(); endErr != nil {
			g.logger().Debug("rendergraph: end after failed frame", "err", endErr)
		}
		return Signal{}, g.frameError("record", err)
	}
	if err := rec.End(); err != nil {
		return Signal{}, g.frameError("end", err)
	}
	recorded := hrtime.Since(start)

	info := &device.SubmitInfo{CommandBuffers: []device.CommandBufferID{s.cmd}}
	if wantSignal {
		info.Fence = s.fence
	}
	submitStart := hrtime.Now()
	if err := g.dev.Submit(device.QueueGraphics, info); err != nil {
		return Signal{}, g.frameError("submit", err)
	}
	submitted := hrtime.Since(submitStart)

	sig := Signal{Fence: info.Fence, Frame: g.frame}
	g.frame++

	g.statsMu.Lock()
	g.stats.Frames++
	g.stats.LastRecord = recorded
	g.stats.totalRecord += recorded
	g.stats.AverageRecord = g.stats.totalRecord / time.Duration(g.stats.Frames)
	g.stats.LastSubmit = submitted
	g.statsMu.Unlock()
	return sig, nil
}

func (g *Graph) frameError(step string, err error) error {
	g.logger().Error("rendergraph: frame failed", "frame", g.frame, "step", step, "err", err)
	return fmt.Errorf("rendergraph: frame %d: %s: %w", g.frame, step, err)
}

// record replays every group into rec. A render target begun here is
// always ended, even when a callback fails.
func (g *Graph) record(rec device.CommandRecorder, idx int) error {
	res := Resources{g: g}
	for _, grp := range g.groups {
		rec.Barrier(grp.before)
		if grp.typ == Graphics {
			if err := g.recordTarget(rec, grp, res, idx); err != nil {
				return err
			}
		} else {
			for _, pi := range grp.passes {
				if err := g.render(rec, grp, pi, res, idx); err != nil {
					return err
				}
			}
		}
		for _, m := range grp.mips {
			if err := rec.GenerateMips(m.texture, m.from); err != nil {
				return fmt.Errorf("generate mips: %w", err)
			}
		}
		rec.Barrier(grp.after)
	}
	return nil
}

func (g *Graph) recordTarget(rec device.CommandRecorder, grp *group, res Resources, idx int) (err error) {
	if err := rec.BeginRenderTarget(grp.target); err != nil {
		return fmt.Errorf("begin render target: %w", err)
	}
	defer func() {
		if endErr := rec.EndRenderTarget(); endErr != nil && err == nil {
			err = fmt.Errorf("end render target: %w", endErr)
		}
	}()
	rec.SetViewport(device.Viewport{
		Width:    float32(grp.extent.Width),
		Height:   float32(grp.extent.Height),
		MaxDepth: 1,
	})
	rec.SetScissor(device.Rect{Width: grp.extent.Width, Height: grp.extent.Height})
	for k, pi := range grp.passes {
		if k > 0 {
			if err := rec.NextSubpass(grp.subpass[k]); err != nil {
				return fmt.Errorf("next subpass: %w", err)
			}
		}
		if err := g.render(rec, grp, pi, res, idx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) render(rec device.CommandRecorder, grp *group, pi int, res Resources, idx int) error {
	pd := g.passes[pi]
	if pd.render == nil {
		return nil
	}
	ctx := &RenderContext{
		Resources: res,
		Device:    g.dev,
		Recorder:  rec,
		Pass:      pd.pass.Name,
		Subpass:   grp.subpassOf[pi],
		Frame:     g.frame,
		Slot:      idx,
		Extent:    grp.extent,
	}
	if err := pd.render(ctx); err != nil {
		return fmt.Errorf("render pass %q: %w", pd.pass.Name, err)
	}
	return nil
}

// Wait blocks until the frame of sig completes. A zero timeout uses the
// one set with WithFenceTimeout. Invalid signals return immediately.
func (g *Graph) Wait(sig Signal, timeout time.Duration) error {
	if !sig.Valid() {
		return nil
	}
	if timeout <= 0 {
		timeout = g.opts.fenceTimeout
	}
	if err := g.dev.WaitFence(sig.Fence, timeout); err != nil {
		return fmt.Errorf("rendergraph: wait frame %d: %w", sig.Frame, err)
	}
	return nil
}

// FramesInFlight returns the number of execution slots.
func (g *Graph) FramesInFlight() int { return g.opts.framesInFlight }

// Stats returns the frame counters and the current memory accounting.
func (g *Graph) Stats() FrameStats {
	g.statsMu.Lock()
	s := g.stats
	g.statsMu.Unlock()
	if g.alloc != nil {
		s.Memory = g.alloc.Stats()
	}
	return s
}
