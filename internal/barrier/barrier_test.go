// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package barrier

import (
	"maps"
	"reflect"
	"slices"
	"testing"

	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/internal/ir"
	"github.com/gogpu/rendergraph/internal/ir/irtest"
)

// groupsOf maps pass names to index groups.
func groupsOf(t *testing.T, g *ir.Graph, names ...[]string) [][]int {
	t.Helper()
	out := make([][]int, len(names))
	for i, grp := range names {
		for _, n := range grp {
			out[i] = append(out[i], irtest.Index(t, g, n))
		}
	}
	return out
}

// replay applies the plan to its seed states, checking that each
// transition starts from the tracked state, and returns the states after
// every group.
func replay(t *testing.T, p *Plan) []map[string]device.State {
	t.Helper()
	cur := maps.Clone(p.SeedStates)
	apply := func(where string, ts []Transition) {
		for _, tr := range ts {
			if cur[tr.Resource] != tr.Old {
				t.Errorf("%s: %v but resource is %s", where, tr, cur[tr.Resource])
			}
			cur[tr.Resource] = tr.New
		}
	}
	var snaps []map[string]device.State
	for gi, grp := range p.Groups {
		apply("before", grp.Before)
		for _, ts := range grp.Subpass {
			apply("subpass", ts)
		}
		for _, m := range grp.MipGen {
			if cur[m.Resource] != m.From {
				t.Errorf("group %d: mip generation of %s from %s, resource is %s", gi, m.Resource, m.From, cur[m.Resource])
			}
			cur[m.Resource] = device.StateShaderRead
		}
		apply("after", grp.After)
		snaps = append(snaps, maps.Clone(cur))
	}
	if !maps.Equal(cur, p.SeedStates) {
		t.Errorf("frame ends in %v, seeded with %v", cur, p.SeedStates)
	}
	return snaps
}

func TestPlanDeferred(t *testing.T) {
	g := irtest.Graph(t, irtest.Deferred(), nil)
	p := New(g, groupsOf(t, g, []string{"gbuffer"}, []string{"lighting"}, []string{"tonemap"}), "output")

	wantSeed := map[string]device.State{
		"albedo":   device.StateShaderRead,
		"depth":    device.StateShaderRead,
		"litColor": device.StateStorageRead,
		"output":   device.StateShaderRead,
	}
	if !maps.Equal(p.SeedStates, wantSeed) {
		t.Errorf("SeedStates = %v, want %v", p.SeedStates, wantSeed)
	}
	if !maps.Equal(p.EndStates, p.SeedStates) {
		t.Errorf("EndStates = %v, want SeedStates %v", p.EndStates, p.SeedStates)
	}

	tests := []struct {
		group  int
		before []Transition
		after  []Transition
	}{
		{
			group: 0,
			before: []Transition{
				{Resource: "albedo", Old: device.StateShaderRead, New: device.StateColorAttachment},
				{Resource: "depth", Old: device.StateShaderRead, New: device.StateDepthAttachment},
			},
		},
		{
			group: 1,
			before: []Transition{
				{Resource: "albedo", Old: device.StateColorAttachment, New: device.StateShaderRead},
				{Resource: "depth", Old: device.StateDepthAttachment, New: device.StateShaderRead},
				{Resource: "litColor", Old: device.StateStorageRead, New: device.StateStorageWrite},
			},
		},
		{
			group: 2,
			before: []Transition{
				{Resource: "litColor", Old: device.StateStorageWrite, New: device.StateStorageRead},
				{Resource: "output", Old: device.StateShaderRead, New: device.StateStorageWrite},
			},
			after: []Transition{
				{Resource: "output", Old: device.StateStorageWrite, New: device.StateShaderRead},
			},
		},
	}
	for _, tt := range tests {
		grp := p.Groups[tt.group]
		if !slices.Equal(grp.Before, tt.before) {
			t.Errorf("group %d Before = %v, want %v", tt.group, grp.Before, tt.before)
		}
		if !slices.Equal(grp.After, tt.after) {
			t.Errorf("group %d After = %v, want %v", tt.group, grp.After, tt.after)
		}
	}
	replay(t, p)
}

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

func TestPlanSubpassTransitions(t *testing.T) {
	g := irtest.Graph(t, subpassChain(), nil)
	p := New(g, groupsOf(t, g, []string{"gbuffer", "lighting"}, []string{"present"}), "final")

	grp := p.Groups[0]
	wantBefore := []Transition{
		{Resource: "albedo", Old: device.StateInputAttachment, New: device.StateColorAttachment},
		{Resource: "depth", Old: device.StateInputAttachment, New: device.StateDepthAttachment},
		{Resource: "lit", Old: device.StateShaderRead, New: device.StateColorAttachment},
	}
	if !slices.Equal(grp.Before, wantBefore) {
		t.Errorf("Before = %v, want %v", grp.Before, wantBefore)
	}
	if len(grp.Subpass) != 2 || len(grp.Subpass[0]) != 0 {
		t.Fatalf("Subpass = %v, want two entries with an empty first", grp.Subpass)
	}
	wantSub := []Transition{
		{Resource: "albedo", Old: device.StateColorAttachment, New: device.StateInputAttachment},
		{Resource: "depth", Old: device.StateDepthAttachment, New: device.StateInputAttachment},
	}
	if !slices.Equal(grp.Subpass[1], wantSub) {
		t.Errorf("Subpass[1] = %v, want %v", grp.Subpass[1], wantSub)
	}
	if got, want := grp.Spans["albedo"], (Span{First: device.StateColorAttachment, Last: device.StateInputAttachment}); got != want {
		t.Errorf("Spans[albedo] = %+v, want %+v", got, want)
	}
	if len(grp.After) != 0 {
		t.Errorf("After = %v, want none", grp.After)
	}
	replay(t, p)
}

func TestMergedGroupMatchesSequentialStates(t *testing.T) {
	g := irtest.Graph(t, subpassChain(), nil)
	fused := New(g, groupsOf(t, g, []string{"gbuffer", "lighting"}, []string{"present"}), "final")
	split := New(g, groupsOf(t, g, []string{"gbuffer"}, []string{"lighting"}, []string{"present"}), "final")

	if !maps.Equal(fused.SeedStates, split.SeedStates) {
		t.Fatalf("seed states differ: fused %v, split %v", fused.SeedStates, split.SeedStates)
	}
	fs, ss := replay(t, fused), replay(t, split)
	if !maps.Equal(fs[0], ss[1]) {
		t.Errorf("states after merged group = %v, after lighting alone = %v", fs[0], ss[1])
	}
	if !maps.Equal(fs[1], ss[2]) {
		t.Errorf("final states differ: fused %v, split %v", fs[1], ss[2])
	}
}

func TestOutputPromotion(t *testing.T) {
	tests := []struct {
		name   string
		passes []ir.Pass
		groups [][]string
		output string
		want   []Transition
	}{
		{
			name: "color output",
			passes: []ir.Pass{{Name: "draw", Type: ir.Graphics,
				ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}}},
			groups: [][]string{{"draw"}},
			output: "out",
			want:   []Transition{{Resource: "out", Old: device.StateColorAttachment, New: device.StateShaderRead}},
		},
		{
			name: "storage output",
			passes: []ir.Pass{{Name: "fill", Type: ir.Compute,
				StorageTextures: []ir.StorageTexture{irtest.StorageOut("out", device.FormatRGBA8Unorm)}}},
			groups: [][]string{{"fill"}},
			output: "out",
			want:   []Transition{{Resource: "out", Old: device.StateStorageWrite, New: device.StateShaderRead}},
		},
		{
			name: "mip generation leaves it readable",
			passes: []ir.Pass{{Name: "draw", Type: ir.Graphics,
				ColorOutputs: []ir.Output{{Name: "out", Attachment: ir.Attachment{
					Format: device.FormatRGBA8Unorm, SizeName: irtest.Swapchain, MipLevels: 4, GenerateMips: true}}}}},
			groups: [][]string{{"draw"}},
			output: "out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := irtest.Graph(t, tt.passes, nil)
			p := New(g, groupsOf(t, g, tt.groups...), tt.output)
			last := p.Groups[len(p.Groups)-1]
			if !slices.Equal(last.After, tt.want) {
				t.Errorf("After = %v, want %v", last.After, tt.want)
			}
			if got := p.EndStates[tt.output]; got != device.StateShaderRead {
				t.Errorf("output ends in %s, want %s", got, device.StateShaderRead)
			}
			replay(t, p)
		})
	}
}

func TestMipGeneration(t *testing.T) {
	passes := []ir.Pass{
		{Name: "blur", Type: ir.Graphics, TextureInputs: []string{"bloom"},
			ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "bright", Type: ir.Graphics, ColorOutputs: []ir.Output{{Name: "bloom", Attachment: ir.Attachment{
			Format: device.FormatRGBA16Float, SizeName: irtest.Swapchain, MipLevels: 5, GenerateMips: true}}}},
	}
	g := irtest.Graph(t, passes, nil)
	p := New(g, groupsOf(t, g, []string{"bright"}, []string{"blur"}), "out")

	want := []MipGen{{Resource: "bloom", From: device.StateColorAttachment}}
	if !slices.Equal(p.Groups[0].MipGen, want) {
		t.Errorf("MipGen = %v, want %v", p.Groups[0].MipGen, want)
	}
	for _, tr := range p.Groups[1].Before {
		if tr.Resource == "bloom" {
			t.Errorf("blur transitions bloom after mip generation: %v", tr)
		}
	}
	replay(t, p)
}

func TestImportsReturnToDeclaredState(t *testing.T) {
	passes := []ir.Pass{
		{Name: "resolve", Type: ir.Graphics, TextureInputs: []string{"hist", "env"},
			ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "accumulate", Type: ir.Compute,
			StorageTextures: []ir.StorageTexture{{Name: "hist", Access: ir.AccessReadWrite}}},
	}
	imports := map[string]ir.Import{
		"hist": {Name: "hist", Format: device.FormatRGBA16Float, State: device.StateShaderRead},
		"env":  {Name: "env", Format: device.FormatRGBA8Unorm, State: device.StateShaderRead},
	}
	g := irtest.Graph(t, passes, imports)
	p := New(g, groupsOf(t, g, []string{"accumulate"}, []string{"resolve"}), "out")

	wantBefore := []Transition{{Resource: "hist", Old: device.StateShaderRead, New: device.StateStorageReadWrite}}
	if !slices.Equal(p.Groups[0].Before, wantBefore) {
		t.Errorf("accumulate Before = %v, want %v", p.Groups[0].Before, wantBefore)
	}
	for name, imp := range imports {
		if got := p.EndStates[name]; got != imp.State {
			t.Errorf("import %s ends in %s, want %s", name, got, imp.State)
		}
	}
	replay(t, p)
}

func TestImportRestoredAfterLastUse(t *testing.T) {
	passes := []ir.Pass{
		{Name: "draw", Type: ir.Graphics, TextureInputs: []string{"mask"},
			ColorOutputs: []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "paint", Type: ir.Compute,
			StorageTextures: []ir.StorageTexture{{Name: "mask", Access: ir.AccessReadWrite}}},
	}
	imports := map[string]ir.Import{
		"mask": {Name: "mask", Format: device.FormatR8Unorm, State: device.StateStorageRead},
	}
	g := irtest.Graph(t, passes, imports)
	p := New(g, groupsOf(t, g, []string{"paint"}, []string{"draw"}), "out")

	if len(p.Groups[0].After) != 0 {
		t.Errorf("paint After = %v, want restoration deferred to the last use", p.Groups[0].After)
	}
	want := Transition{Resource: "mask", Old: device.StateShaderRead, New: device.StateStorageRead}
	if !slices.Contains(p.Groups[1].After, want) {
		t.Errorf("draw After = %v, want it to contain %v", p.Groups[1].After, want)
	}
	replay(t, p)
}

func TestModifiedOutputPromotedOnce(t *testing.T) {
	passes := []ir.Pass{
		{Name: "base", Type: ir.Compute,
			StorageTextures: []ir.StorageTexture{irtest.StorageOut("acc", device.FormatRGBA16Float)}},
		{Name: "add", Type: ir.Compute,
			StorageTextures: []ir.StorageTexture{{Name: "acc", Access: ir.AccessReadWrite}}},
	}
	g := irtest.Graph(t, passes, nil)
	p := New(g, groupsOf(t, g, []string{"base"}, []string{"add"}), "acc")

	if len(p.Groups[0].After) != 0 {
		t.Errorf("base After = %v, want none", p.Groups[0].After)
	}
	want := []Transition{{Resource: "acc", Old: device.StateStorageReadWrite, New: device.StateShaderRead}}
	if !slices.Equal(p.Groups[1].After, want) {
		t.Errorf("add After = %v, want %v", p.Groups[1].After, want)
	}
	replay(t, p)
}

func TestBufferTransitions(t *testing.T) {
	passes := []ir.Pass{
		{Name: "draw", Type: ir.Graphics,
			StorageBuffers: []ir.StorageBuffer{{Name: "particles", Access: ir.AccessRead}},
			ColorOutputs:   []ir.Output{irtest.Color("out", device.FormatRGBA8Unorm)}},
		{Name: "simulate", Type: ir.Compute,
			StorageBuffers: []ir.StorageBuffer{{Name: "particles", Access: ir.AccessWrite, Size: 4096}}},
	}
	g := irtest.Graph(t, passes, nil)
	p := New(g, groupsOf(t, g, []string{"simulate"}, []string{"draw"}), "out")

	want := Transition{Resource: "particles", Buffer: true, Old: device.StateStorageWrite, New: device.StateStorageRead}
	if !slices.Contains(p.Groups[1].Before, want) {
		t.Errorf("draw Before = %v, want it to contain %v", p.Groups[1].Before, want)
	}
	replay(t, p)
}

func TestRebuildGroups(t *testing.T) {
	g := irtest.Graph(t, irtest.Deferred(), nil)
	p := New(g, groupsOf(t, g, []string{"gbuffer"}, []string{"lighting"}, []string{"tonemap"}), "output")
	want := slices.Clone(p.Groups)

	p.Groups[1].Before = nil
	p.Groups[1].Spans = nil
	p.Groups[2].After = nil
	p.RebuildGroups([]int{1})

	if !reflect.DeepEqual(p.Groups[1], want[1]) {
		t.Errorf("rebuilt group = %+v, want %+v", p.Groups[1], want[1])
	}
	if p.Groups[2].After != nil {
		t.Error("RebuildGroups touched a group it was not asked to rebuild")
	}
	if !maps.Equal(p.EndStates, p.SeedStates) {
		t.Errorf("EndStates = %v, want %v", p.EndStates, p.SeedStates)
	}
}

func TestLifetimes(t *testing.T) {
	g := irtest.Graph(t, irtest.Deferred(), nil)
	p := New(g, groupsOf(t, g, []string{"gbuffer"}, []string{"lighting"}, []string{"tonemap"}), "output")
	want := []Lifetime{
		{Resource: "albedo", FirstGroup: 0, LastGroup: 1},
		{Resource: "depth", FirstGroup: 0, LastGroup: 1},
		{Resource: "litColor", FirstGroup: 1, LastGroup: 2},
		{Resource: "output", FirstGroup: 2, LastGroup: 2},
	}
	if got := p.Lifetimes(); !slices.Equal(got, want) {
		t.Errorf("Lifetimes() = %v, want %v", got, want)
	}
}
