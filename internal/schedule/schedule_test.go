// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package schedule

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
	"github.com/gogpu/rendergraph/internal/ir/irtest"
	"github.com/gogpu/rendergraph/internal/resolve"
)

func newScheduler(t *testing.T, passes []ir.Pass, output string) (*ir.Graph, *Scheduler) {
	t.Helper()
	g := irtest.Graph(t, passes, nil)
	order, err := resolve.Resolve(g, output)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return g, New(g, order)
}

func groupNames(g *ir.Graph, groups [][]int) [][]string {
	out := make([][]string, len(groups))
	for i, grp := range groups {
		out[i] = irtest.Names(g, grp)
	}
	return out
}

func equalGroups(a, b [][]string) bool {
	return slices.EqualFunc(a, b, func(x, y []string) bool { return slices.Equal(x, y) })
}

func TestDeferredIsNotMerged(t *testing.T) {
	g, s := newScheduler(t, irtest.Deferred(), "output")
	order := s.Optimize()
	if got, want := irtest.Names(g, order), []string{"gbuffer", "lighting", "tonemap"}; !slices.Equal(got, want) {
		t.Errorf("Optimize() = %v, want %v", got, want)
	}
	groups := groupNames(g, s.Groups(order))
	want := [][]string{{"gbuffer"}, {"lighting"}, {"tonemap"}}
	if !equalGroups(groups, want) {
		t.Errorf("Groups() = %v, want %v", groups, want)
	}

	gb, li := irtest.Index(t, g, "gbuffer"), irtest.Index(t, g, "lighting")
	if s.CanMerge(li, gb) {
		t.Error("CanMerge(lighting, gbuffer) = true for a compute pass")
	}
	if !s.DependsOn(irtest.Index(t, g, "tonemap"), gb) {
		t.Error("DependsOn(tonemap, gbuffer) = false, want transitive dependency")
	}
	if s.DependsOn(gb, li) {
		t.Error("DependsOn(gbuffer, lighting) = true")
	}
	if got := s.DependencyCount(irtest.Index(t, g, "tonemap")); got != 2 {
		t.Errorf("DependencyCount(tonemap) = %d, want 2", got)
	}
}

// subpassChain returns gbuffer -> lighting (input attachments) -> present
// (sampled), all full-swapchain graphics passes.
func subpassChain() []ir.Pass {
	return []ir.Pass{
		{Name: "present", Type: ir.Graphics, TextureInputs: []string{"lit"},
			ColorOutputs: []ir.Output{irtest.Color("final", device.FormatBGRA8Unorm)}},
		{Name: "lighting", Type: ir.Graphics, InputAttachments: []string{"albedo", "depth"},
			ColorOutputs: []ir.Output{irtest.Color("lit", device.FormatRGBA16Float)}},
		{Name: "gbuffer", Type: ir.Graphics,
			ColorOutputs: []ir.Output{irtest.Color("albedo", device.FormatRGBA8Unorm)},
			DepthOutput:  irtest.Depth("depth")},
	}
}

func TestInputAttachmentChainMerges(t *testing.T) {
	g, s := newScheduler(t, subpassChain(), "final")
	order := s.Optimize()
	groups := groupNames(g, s.Groups(order))
	want := [][]string{{"gbuffer", "lighting"}, {"present"}}
	if !equalGroups(groups, want) {
		t.Errorf("Groups() = %v, want %v", groups, want)
	}
}

func TestCanMergeRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(passes []ir.Pass)
		want   bool
	}{
		{
			name:   "input attachments only",
			mutate: func([]ir.Pass) {},
			want:   true,
		},
		{
			name: "plain sampled read",
			mutate: func(p []ir.Pass) {
				p[1].TextureInputs = []string{"albedo"}
				p[1].InputAttachments = []string{"depth"}
			},
			want: false,
		},
		{
			name: "compute consumer",
			mutate: func(p []ir.Pass) {
				p[1].Type = ir.Compute
				p[1].InputAttachments = nil
				p[1].TextureInputs = []string{"albedo"}
			},
			want: false,
		},
		{
			name: "half resolution output",
			mutate: func(p []ir.Pass) {
				p[1].ColorOutputs[0].Attachment.Size = [3]float32{0.5, 0.5, 1}
			},
			want: false,
		},
		{
			name: "mip generation",
			mutate: func(p []ir.Pass) {
				p[2].ColorOutputs[0].Attachment.GenerateMips = true
			},
			want: false,
		},
		{
			name: "storage write read as input attachment",
			mutate: func(p []ir.Pass) {
				p[2].StorageTextures = []ir.StorageTexture{irtest.StorageOut("mask", device.FormatR8Unorm)}
				p[1].InputAttachments = append(p[1].InputAttachments, "mask")
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes := subpassChain()
			tt.mutate(passes)
			g, s := newScheduler(t, passes, "final")
			li, gb := irtest.Index(t, g, "lighting"), irtest.Index(t, g, "gbuffer")
			if got := s.CanMerge(li, gb); got != tt.want {
				t.Errorf("CanMerge(lighting, gbuffer) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanMergeIndependent(t *testing.T) {
	passes := []ir.Pass{
		{Name: "final", Type: ir.Graphics, TextureInputs: []string{"a", "b"},
			ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "pa", Type: ir.Graphics, ColorOutputs: []ir.Output{irtest.Color("a", device.FormatRGBA8Unorm)}},
		{Name: "pb", Type: ir.Graphics, ColorOutputs: []ir.Output{irtest.Color("b", device.FormatRGBA8Unorm)}},
	}
	g, s := newScheduler(t, passes, "out")
	pa, pb := irtest.Index(t, g, "pa"), irtest.Index(t, g, "pb")
	if s.CanMerge(pa, pb) || s.CanMerge(pb, pa) {
		t.Error("independent passes must not merge")
	}
}

func TestOptimizePrefersMerge(t *testing.T) {
	// Without merging, the independent pass "y" would be slotted between
	// "a1" and "a2" because it overlaps more of the schedule.
	passes := []ir.Pass{
		{Name: "final", Type: ir.Graphics, TextureInputs: []string{"a2out", "yout"},
			ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "a2", Type: ir.Graphics, InputAttachments: []string{"a1out"},
			ColorOutputs: []ir.Output{irtest.Color("a2out", device.FormatRGBA8Unorm)}},
		{Name: "a1", Type: ir.Graphics, ColorOutputs: []ir.Output{irtest.Color("a1out", device.FormatRGBA8Unorm)}},
		{Name: "y", Type: ir.Compute, StorageTextures: []ir.StorageTexture{irtest.StorageOut("yout", device.FormatRGBA8Unorm)}},
	}
	g, s := newScheduler(t, passes, "out")
	order := s.Optimize()
	if got, want := irtest.Names(g, order), []string{"y", "a1", "a2", "final"}; !slices.Equal(got, want) {
		t.Errorf("Optimize() = %v, want %v", got, want)
	}
	groups := groupNames(g, s.Groups(order))
	want := [][]string{{"y"}, {"a1", "a2"}, {"final"}}
	if !equalGroups(groups, want) {
		t.Errorf("Groups() = %v, want %v", groups, want)
	}
}

func TestGroupRejectsPlainReadOfEarlierMember(t *testing.T) {
	// c samples a's output, so c cannot join the a+b group even though it
	// merges pairwise with b.
	passes := []ir.Pass{
		{Name: "c", Type: ir.Graphics, InputAttachments: []string{"bout"}, TextureInputs: []string{"aout"},
			ColorOutputs: []ir.Output{irtest.Color("cout", device.FormatRGBA8Unorm)}},
		{Name: "b", Type: ir.Graphics, InputAttachments: []string{"aout"},
			ColorOutputs: []ir.Output{irtest.Color("bout", device.FormatRGBA8Unorm)}},
		{Name: "a", Type: ir.Graphics, ColorOutputs: []ir.Output{irtest.Color("aout", device.FormatRGBA8Unorm)}},
	}
	g, s := newScheduler(t, passes, "cout")
	order := s.Optimize()
	groups := groupNames(g, s.Groups(order))
	want := [][]string{{"a", "b"}, {"c"}}
	if !equalGroups(groups, want) {
		t.Errorf("Groups() = %v, want %v", groups, want)
	}
}

func TestOptimizeRespectsDependencies(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for iter := range 50 {
		g, s := newScheduler(t, irtest.RandomDAG(rng, 10), "r0")
		order := s.Optimize()
		pos := make(map[int]int, len(order))
		for i, p := range order {
			pos[p] = i
		}
		if len(pos) != len(order) {
			t.Fatalf("graph %d: Optimize() repeated a pass: %v", iter, order)
		}
		for _, a := range order {
			for _, b := range order {
				if s.DependsOn(a, b) && pos[b] >= pos[a] {
					t.Errorf("graph %d: %s runs before its dependency %s", iter, g.Passes[a].Name, g.Passes[b].Name)
				}
			}
		}
		for _, grp := range s.Groups(order) {
			for i := 1; i < len(grp); i++ {
				if !s.CanMerge(grp[i], grp[i-1]) {
					t.Errorf("graph %d: group %v holds unmergeable neighbours", iter, irtest.Names(g, grp))
				}
			}
		}
	}
}

func TestBitset(t *testing.T) {
	b := newBitset(130)
	for _, i := range []int{0, 63, 64, 129} {
		b.set(i)
	}
	if !b.has(63) || !b.has(64) || b.has(65) {
		t.Error("has() mismatch around the word boundary")
	}
	o := newBitset(130)
	o.set(65)
	b.union(o)
	if got := b.count(); got != 5 {
		t.Errorf("count() = %d, want 5", got)
	}
}
