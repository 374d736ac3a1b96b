// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendergraph

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/gogpu/rendergraph/backend/noop"
	"github.com/gogpu/rendergraph/device"
)

func TestDeferredScenario(t *testing.T) {
	dev := newTestDevice()
	g := New(dev)
	declareDeferred(t, g)
	mustBuild(t, g)

	plan := g.Plan()
	if want := []string{"gbuffer", "lighting", "tonemap"}; !slices.Equal(plan.Order, want) {
		t.Errorf("Order = %v, want %v", plan.Order, want)
	}
	if len(plan.Groups) != 3 {
		t.Fatalf("len(Groups) = %d, want 3", len(plan.Groups))
	}
	for i, grp := range plan.Groups {
		if grp.Merged() {
			t.Errorf("group %d = %v, want a single pass", i, grp.Passes)
		}
	}

	mustExecute(t, g, 2)
	checkSteadyState(t, dev, g)
	if got := stateOf(t, dev, g, "output"); got != device.StateShaderRead {
		t.Errorf("output state = %s, want %s", got, device.StateShaderRead)
	}

	names := []string{"albedo", "depth", "litColor", "output"}
	before := make(map[string]device.TextureID)
	for _, n := range names {
		before[n] = textureID(t, g, n)
	}
	if err := g.ResizeNamedSize("swapchain", 128, 96); err != nil {
		t.Fatalf("ResizeNamedSize() error = %v", err)
	}
	for _, n := range names {
		id := textureID(t, g, n)
		if id == before[n] {
			t.Errorf("%q was not recreated", n)
		}
		tex, _ := dev.Texture(id)
		if tex.Desc.Extent.Width != 128 || tex.Desc.Extent.Height != 96 {
			t.Errorf("%q extent = %s, want 128x96", n, tex.Desc.Extent)
		}
	}

	mustExecute(t, g, 2)
	checkSteadyState(t, dev, g)
	if got := stateOf(t, dev, g, "output"); got != device.StateShaderRead {
		t.Errorf("output state after resize = %s, want %s", got, device.StateShaderRead)
	}
	want := noop.Live{Textures: 4, Views: 12, RenderTargets: 1, Pools: 2, Fences: 2}
	if got := dev.Live(); got != want {
		t.Errorf("Live() = %+v, want %+v", got, want)
	}
}

func TestSteadyStateAcrossFrames(t *testing.T) {
	tests := []struct {
		name    string
		declare func(testing.TB, *Graph)
	}{
		{"deferred", declareDeferred},
		{"subpass chain", declareSubpassChain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice()
			g := New(dev)
			tt.declare(t, g)
			mustBuild(t, g)
			dev.ClearSubmissions()

			for frame := range 3 {
				mustExecute(t, g, 1)
				checkSteadyState(t, dev, g)
				if t.Failed() {
					t.Fatalf("frame %d left resources out of their seed state", frame)
				}
			}
			subs := dev.Submissions()
			if len(subs) != 3 {
				t.Fatalf("len(Submissions) = %d, want 3", len(subs))
			}
			for i := 1; i < len(subs); i++ {
				if !reflect.DeepEqual(subs[i].Commands, subs[0].Commands) {
					t.Errorf("frame %d recorded different commands than frame 0", i)
				}
			}
		})
	}
}

func TestMergedGroupRenderTarget(t *testing.T) {
	for _, subpasses := range []bool{true, false} {
		dev := newTestDevice(noop.WithCapabilities(device.Capabilities{
			Subpasses:         subpasses,
			MipGeneration:     true,
			MaxFramesInFlight: 8,
		}))
		g := New(dev)
		declareSubpassChain(t, g)

		subpassOf := make(map[string]uint32)
		for _, p := range g.passes {
			p.SetRender(func(ctx *RenderContext) error {
				subpassOf[ctx.Pass] = ctx.Subpass
				return nil
			})
		}
		mustBuild(t, g)

		plan := g.Plan()
		if got := [][]string{plan.Groups[0].Passes, plan.Groups[1].Passes}; !reflect.DeepEqual(got, [][]string{{"gbuffer", "lighting"}, {"present"}}) {
			t.Fatalf("groups = %v", got)
		}
		rt, ok := dev.RenderTarget(plan.Groups[0].Target)
		if !ok {
			t.Fatal("fused group has no render target")
		}
		wantSubpasses := []device.SubpassDesc{
			{ColorAttachments: []int{0}, DepthAttachment: 1},
			{ColorAttachments: []int{2}, DepthAttachment: -1, InputAttachments: []int{0, 1}},
		}
		if !reflect.DeepEqual(rt.Subpasses, wantSubpasses) {
			t.Errorf("Subpasses = %+v, want %+v", rt.Subpasses, wantSubpasses)
		}
		if rt.Width != 64 || rt.Height != 32 || rt.Layers != 1 {
			t.Errorf("render target = %dx%dx%d, want 64x32x1", rt.Width, rt.Height, rt.Layers)
		}
		wantStates := [][2]device.State{
			{device.StateColorAttachment, device.StateInputAttachment},
			{device.StateDepthAttachment, device.StateInputAttachment},
			{device.StateColorAttachment, device.StateColorAttachment},
		}
		for i, a := range rt.Attachments {
			if got := [2]device.State{a.Initial, a.Final}; got != wantStates[i] {
				t.Errorf("attachment %d Initial/Final = %v, want %v", i, got, wantStates[i])
			}
			if a.Load != device.LoadOpClear {
				t.Errorf("attachment %d Load = %d, want clear", i, a.Load)
			}
		}
		if n := len(plan.Groups[0].Subpass[1]); n != 2 {
			t.Errorf("len(Subpass[1]) = %d, want 2 transitions into input attachments", n)
		}

		mustExecute(t, g, 2)
		checkSteadyState(t, dev, g)
		if subpassOf["gbuffer"] != 0 || subpassOf["lighting"] != 1 {
			t.Errorf("subpasses = %v, want gbuffer 0 and lighting 1", subpassOf)
		}
	}
}

func TestOutputPromotion(t *testing.T) {
	tests := []struct {
		name    string
		declare func(g *Graph)
	}{
		{
			name: "color attachment",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", absolute(device.FormatRGBA8Unorm, 8, 8))
			},
		},
		{
			name: "storage texture",
			declare: func(g *Graph) {
				g.AddRenderPass("fill", Compute).AddStorageTexture(StorageTexture{
					Name: "out", Access: AccessWrite, Attachment: absolute(device.FormatRGBA8Unorm, 8, 8),
				})
			},
		},
		{
			name: "read-write storage after color",
			declare: func(g *Graph) {
				g.AddRenderPass("post", Compute).AddStorageTexture(StorageTexture{Name: "out", Access: AccessReadWrite})
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", absolute(device.FormatRGBA8Unorm, 8, 8))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice()
			g := New(dev)
			tt.declare(g)
			g.SetOutput("out")
			mustBuild(t, g)
			mustExecute(t, g, 2)

			checkSteadyState(t, dev, g)
			if got := stateOf(t, dev, g, "out"); got != device.StateShaderRead {
				t.Errorf("out state = %s, want %s", got, device.StateShaderRead)
			}
			plan := g.Plan()
			last := plan.Groups[len(plan.Groups)-1]
			if n := len(last.After); n != 1 || last.After[0].New != device.StateShaderRead {
				t.Errorf("last group After = %v, want one promotion to shader-read", last.After)
			}
			if g.OutputView() == device.InvalidID {
				t.Error("OutputView() = InvalidID after Build")
			}
		})
	}
}

func TestMipGeneration(t *testing.T) {
	declare := func(g *Graph) {
		chain := absolute(device.FormatRGBA8Unorm, 64, 64)
		chain.MipLevels = 4
		chain.GenerateMips = true
		g.AddRenderPass("composite", Graphics).
			AddTextureInput("bloom").
			AddColorOutput("out", absolute(device.FormatRGBA8Unorm, 64, 64))
		g.AddRenderPass("bloom", Graphics).AddColorOutput("bloom", chain)
		g.SetOutput("out")
	}

	t.Run("supported", func(t *testing.T) {
		dev := newTestDevice()
		g := New(dev)
		declare(g)
		mustBuild(t, g)
		dev.ClearSubmissions()
		mustExecute(t, g, 2)
		checkSteadyState(t, dev, g)

		var mips int
		for _, c := range dev.Submissions()[0].Commands {
			if c.Op == noop.OpGenerateMips {
				mips++
				if c.Texture != textureID(t, g, "bloom") || c.State != device.StateColorAttachment {
					t.Errorf("generate mips of texture#%d from %s", c.Texture, c.State)
				}
			}
		}
		if mips != 1 {
			t.Errorf("recorded %d mip generations per frame, want 1", mips)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		dev := newTestDevice(noop.WithCapabilities(device.Capabilities{Subpasses: true, MaxFramesInFlight: 8}))
		g := New(dev)
		declare(g)
		if err := g.Build(); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Build() error = %v, want ErrUnsupported", err)
		}
		if got := dev.Live(); got != (noop.Live{}) {
			t.Errorf("Live() after failed Build = %+v, want nothing", got)
		}
	})
}

func TestImportedTexture(t *testing.T) {
	dev := newTestDevice()
	tex, err := dev.CreateTexture(&device.TextureDesc{
		Label: "env", Format: device.FormatRGBA8Unorm, Extent: device.Extent3D{Width: 16, Height: 16, Depth: 1},
		MipLevels: 1, ArrayLayers: 1, Samples: 1, Usage: device.TextureUsageSampled | device.TextureUsageTransferDst,
	})
	if err != nil {
		t.Fatal(err)
	}
	view, err := dev.CreateTextureView(tex, &device.ViewDesc{Label: "env", Format: device.FormatRGBA8Unorm})
	if err != nil {
		t.Fatal(err)
	}
	dev.SetTextureState(tex, device.StateTransferDst)

	g := New(dev)
	if err := g.ImportTexture("env", tex, view, device.FormatRGBA8Unorm, Extent{Width: 16, Height: 16}, device.StateTransferDst); err != nil {
		t.Fatalf("ImportTexture() error = %v", err)
	}
	if err := g.ImportTexture("env", tex, view, device.FormatRGBA8Unorm, Extent{Width: 16, Height: 16}, device.StateTransferDst); !errors.Is(err, ErrMultipleWriters) {
		t.Errorf("second ImportTexture() error = %v, want ErrMultipleWriters", err)
	}
	g.AddRenderPass("sky", Graphics).
		AddTextureInput("env").
		AddColorOutput("out", absolute(device.FormatRGBA8Unorm, 16, 16))
	g.SetOutput("out")
	if err := g.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := g.Plan().SeedStates["env"]; got != device.StateTransferDst {
		t.Errorf("env seed = %s, want the declared %s", got, device.StateTransferDst)
	}
	mustExecute(t, g, 3)
	checkSteadyState(t, dev, g)
	if got := textureID(t, g, "env"); got != tex {
		t.Errorf("env texture = %d, want the imported %d", got, tex)
	}

	g.Destroy()
	if got := dev.Live(); got.Textures != 1 || got.Views != 1 {
		t.Errorf("Live() after Destroy = %+v, want only the imported texture and view", got)
	}
}

func TestBuildErrors(t *testing.T) {
	color := absolute(device.FormatRGBA8Unorm, 4, 4)
	tests := []struct {
		name    string
		declare func(g *Graph)
		want    error
	}{
		{
			name: "no output",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", color)
			},
			want: ErrNoOutput,
		},
		{
			name: "dangling read",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddTextureInput("missing").AddColorOutput("out", color)
				g.SetOutput("out")
			},
			want: ErrDanglingRead,
		},
		{
			name: "multiple writers",
			declare: func(g *Graph) {
				g.AddRenderPass("a", Graphics).AddColorOutput("out", color)
				g.AddRenderPass("b", Graphics).AddColorOutput("out", color)
				g.SetOutput("out")
			},
			want: ErrMultipleWriters,
		},
		{
			name: "duplicate pass",
			declare: func(g *Graph) {
				g.AddRenderPass("a", Graphics).AddColorOutput("x", color)
				g.AddRenderPass("a", Graphics).AddColorOutput("y", color)
				g.SetOutput("y")
			},
			want: ErrDuplicatePass,
		},
		{
			name: "unknown named size",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", Attachment{Format: device.FormatRGBA8Unorm, SizeName: "nope"})
				g.SetOutput("out")
			},
			want: ErrUnknownNamedSize,
		},
		{
			name: "depth format on color output",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", absolute(device.FormatDepth32Float, 4, 4))
				g.SetOutput("out")
			},
			want: ErrFormatMismatch,
		},
		{
			name: "output without writer",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", color)
				g.SetOutput("ghost")
			},
			want: ErrNoOutputWriter,
		},
		{
			name: "cycle",
			declare: func(g *Graph) {
				g.AddRenderPass("a", Compute).AddTextureInput("y").
					AddStorageTexture(StorageTexture{Name: "x", Access: AccessWrite, Attachment: color})
				g.AddRenderPass("b", Compute).AddTextureInput("x").
					AddStorageTexture(StorageTexture{Name: "y", Access: AccessWrite, Attachment: color})
				g.SetOutput("x")
			},
			want: ErrCycle,
		},
		{
			name: "absolute size omitted",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", Attachment{Format: device.FormatRGBA8Unorm})
				g.SetOutput("out")
			},
			want: ErrInvalidAttachment,
		},
		{
			name: "absolute zero height",
			declare: func(g *Graph) {
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", absolute(device.FormatRGBA8Unorm, 64, 0))
				g.SetOutput("out")
			},
			want: ErrInvalidAttachment,
		},
		{
			name: "negative multiplier",
			declare: func(g *Graph) {
				a := swapchain(device.FormatRGBA8Unorm)
				a.Size = [3]float32{-0.5, 1}
				g.AddRenderPass("draw", Graphics).AddColorOutput("out", a)
				g.SetOutput("out")
			},
			want: ErrInvalidAttachment,
		},
		{
			name: "input attachment of another size",
			declare: func(g *Graph) {
				half := swapchain(device.FormatRGBA8Unorm)
				half.Size = [3]float32{0.5, 0.5}
				g.AddRenderPass("half", Graphics).AddColorOutput("half", half)
				g.AddRenderPass("full", Graphics).AddInputAttachment("half").
					AddColorOutput("out", swapchain(device.FormatRGBA8Unorm))
				g.SetOutput("out")
			},
			want: ErrInvalidAttachment,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice()
			g := New(dev)
			if err := g.AddNamedSize("swapchain", Extent{Width: 64, Height: 64}); err != nil {
				t.Fatal(err)
			}
			tt.declare(g)
			err := g.Build()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Build() error = %v, want %v", err, tt.want)
			}
			var be *BuildError
			if !errors.As(err, &be) {
				t.Errorf("Build() error %T is not a *BuildError", err)
			}
			if g.Built() {
				t.Error("graph is built after a failed Build")
			}
			if got := dev.Live(); got != (noop.Live{}) {
				t.Errorf("Live() after failed Build = %+v, want nothing", got)
			}
		})
	}
}

func TestBuildFailureReleases(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name string
		opts []Option
		fail string
		want error
	}{
		{name: "render target", fail: "CreateRenderTarget", want: errBoom},
		{name: "priming submit", fail: "Submit", want: errBoom},
		{name: "fence", fail: "CreateFence", want: errBoom},
		{name: "view", fail: "CreateTextureView", want: errBoom},
		{name: "memory budget", opts: []Option{WithMemoryBudget(1024)}, want: ErrMemoryBudgetExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice()
			if tt.fail != "" {
				dev.FailNext(tt.fail, errBoom)
			}
			g := New(dev, tt.opts...)
			declareDeferred(t, g)
			if err := g.Build(); !errors.Is(err, tt.want) {
				t.Fatalf("Build() error = %v, want %v", err, tt.want)
			}
			if got := dev.Live(); got != (noop.Live{}) {
				t.Errorf("Live() after failed Build = %+v, want nothing", got)
			}
			if g.OutputView() != device.InvalidID {
				t.Error("OutputView() of an unbuilt graph is valid")
			}

			// The failure was one-shot, so the same declarations now build.
			if tt.fail != "" {
				mustBuild(t, g)
				mustExecute(t, g, 1)
				checkSteadyState(t, dev, g)
			}
		})
	}
}

func TestFrozenAfterBuild(t *testing.T) {
	dev := newTestDevice()
	g := New(dev)
	declareDeferred(t, g)
	tonemap := g.passes[0]
	mustBuild(t, g)

	if err := g.Build(); !errors.Is(err, ErrGraphBuilt) {
		t.Errorf("second Build() error = %v, want ErrGraphBuilt", err)
	}
	if p := g.AddRenderPass("late", Graphics); !errors.Is(p.Err(), ErrGraphBuilt) {
		t.Errorf("AddRenderPass() after Build: Err() = %v, want ErrGraphBuilt", p.Err())
	}
	if err := g.AddNamedSize("other", Extent{Width: 1, Height: 1}); !errors.Is(err, ErrGraphBuilt) {
		t.Errorf("AddNamedSize() after Build error = %v, want ErrGraphBuilt", err)
	}
	if err := g.ImportTexture("env", 1, 1, device.FormatRGBA8Unorm, Extent{Width: 1, Height: 1}, device.StateShaderRead); !errors.Is(err, ErrGraphBuilt) {
		t.Errorf("ImportTexture() after Build error = %v, want ErrGraphBuilt", err)
	}
	tonemap.AddTextureInput("late")
	if !errors.Is(tonemap.Err(), ErrGraphBuilt) {
		t.Errorf("descriptor Err() = %v, want ErrGraphBuilt", tonemap.Err())
	}
	g.SetOutput("albedo")
	if g.Output() != "output" {
		t.Errorf("Output() = %q after SetOutput on a built graph", g.Output())
	}
}

func TestDestroyAndRebuild(t *testing.T) {
	dev := newTestDevice()
	g := New(dev)
	declareDeferred(t, g)
	if err := g.Build(); err != nil {
		t.Fatal(err)
	}
	mustExecute(t, g, 1)

	g.Destroy()
	g.Destroy()
	if g.Built() {
		t.Error("Built() = true after Destroy")
	}
	if got := dev.Live(); got != (noop.Live{}) {
		t.Errorf("Live() after Destroy = %+v, want nothing", got)
	}
	if _, err := g.Execute(true); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Execute() after Destroy error = %v, want ErrNotBuilt", err)
	}

	mustBuild(t, g)
	mustExecute(t, g, 2)
	checkSteadyState(t, dev, g)
}

func TestResizeIdempotence(t *testing.T) {
	dev := newTestDevice()
	g := New(dev)
	declareDeferred(t, g)
	mustBuild(t, g)

	snapshot := func() (map[string]device.TextureID, []device.RenderTargetID) {
		ids := make(map[string]device.TextureID)
		for _, n := range g.alloc.TextureNames() {
			ids[n] = textureID(t, g, n)
		}
		var rts []device.RenderTargetID
		for _, grp := range g.Plan().Groups {
			rts = append(rts, grp.Target)
		}
		return ids, rts
	}

	if err := g.ResizeNamedSize("swapchain", 100, 50); err != nil {
		t.Fatalf("ResizeNamedSize() error = %v", err)
	}
	ids, rts := snapshot()
	live := dev.Live()
	subs := len(dev.Submissions())

	if err := g.ResizeNamedSize("swapchain", 100, 50); err != nil {
		t.Fatalf("repeated ResizeNamedSize() error = %v", err)
	}
	ids2, rts2 := snapshot()
	if !reflect.DeepEqual(ids, ids2) || !slices.Equal(rts, rts2) {
		t.Errorf("repeated resize changed resources: %v %v -> %v %v", ids, rts, ids2, rts2)
	}
	if got := dev.Live(); got != live {
		t.Errorf("Live() after repeated resize = %+v, want %+v", got, live)
	}
	if got := len(dev.Submissions()); got != subs {
		t.Errorf("repeated resize submitted %d times", got-subs)
	}

	mustExecute(t, g, 2)
	checkSteadyState(t, dev, g)
}

func TestResizeReleasesTargetsFirst(t *testing.T) {
	dev := newTestDevice()
	g := New(dev)
	declareDeferred(t, g)
	mustBuild(t, g)
	mustExecute(t, g, 1)
	before := dev.Live()

	if err := g.ResizeNamedSize("swapchain", 128, 96); err != nil {
		t.Fatalf("ResizeNamedSize() error = %v", err)
	}
	if v := dev.Violations(); len(v) > 0 {
		t.Fatalf("resize violations: %v", v)
	}
	got := dev.Live()
	if got.Textures != before.Textures || got.Views != before.Views || got.RenderTargets != before.RenderTargets {
		t.Errorf("Live() after resize = %+v, want %+v", got, before)
	}
	for _, grp := range g.Plan().Groups {
		if grp.Type == Graphics && grp.Target == device.InvalidID {
			t.Errorf("group %v has no render target after resize", grp.Passes)
		}
	}
	mustExecute(t, g, 1)
	checkSteadyState(t, dev, g)
}

func TestResizeErrors(t *testing.T) {
	t.Run("unknown size", func(t *testing.T) {
		g := New(newTestDevice())
		if err := g.ResizeNamedSize("swapchain", 1, 1); !errors.Is(err, ErrUnknownNamedSize) {
			t.Errorf("ResizeNamedSize() error = %v, want ErrUnknownNamedSize", err)
		}
	})

	t.Run("zero extent", func(t *testing.T) {
		g := New(newTestDevice())
		declareDeferred(t, g)
		if err := g.ResizeNamedSize("swapchain", 0, 10); !errors.Is(err, ErrInvalidAttachment) {
			t.Errorf("ResizeNamedSize() error = %v, want ErrInvalidAttachment", err)
		}
	})

	t.Run("before build", func(t *testing.T) {
		g := New(newTestDevice())
		declareDeferred(t, g)
		if err := g.ResizeNamedSize("swapchain", 10, 20); err != nil {
			t.Fatalf("ResizeNamedSize() error = %v", err)
		}
		if e, _ := g.NamedSize("swapchain"); e != (Extent{Width: 10, Height: 20, Depth: 1}) {
			t.Errorf("NamedSize() = %v, want 10x20x1", e)
		}
	})

	t.Run("input attachment diverges", func(t *testing.T) {
		dev := newTestDevice()
		g := New(dev)
		for _, n := range []string{"small", "swapchain"} {
			if err := g.AddNamedSize(n, Extent{Width: 32, Height: 32}); err != nil {
				t.Fatal(err)
			}
		}
		g.AddRenderPass("full", Graphics).AddInputAttachment("half").
			AddColorOutput("out", swapchain(device.FormatRGBA8Unorm))
		g.AddRenderPass("half", Graphics).
			AddColorOutput("half", Attachment{Format: device.FormatRGBA8Unorm, SizeName: "small"})
		g.SetOutput("out")
		mustBuild(t, g)

		if err := g.ResizeNamedSize("small", 16, 16); !errors.Is(err, ErrInvalidAttachment) {
			t.Fatalf("ResizeNamedSize() error = %v, want ErrInvalidAttachment", err)
		}
		if e, _ := g.NamedSize("small"); e.Width != 32 || e.Height != 32 {
			t.Errorf("NamedSize() = %v, want the previous 32x32", e)
		}
		if !g.Built() {
			t.Fatal("rejected resize released the graph")
		}
		mustExecute(t, g, 1)
		checkSteadyState(t, dev, g)
	})
}

func TestLifetimes(t *testing.T) {
	g := New(newTestDevice())
	if g.Lifetimes() != nil {
		t.Error("Lifetimes() before Build is not empty")
	}
	declareDeferred(t, g)
	mustBuild(t, g)

	want := []Lifetime{
		{Resource: "albedo", First: 0, Last: 1, FirstGroup: 0, LastGroup: 1},
		{Resource: "depth", First: 0, Last: 1, FirstGroup: 0, LastGroup: 1},
		{Resource: "litColor", First: 1, Last: 2, FirstGroup: 1, LastGroup: 2},
		{Resource: "output", First: 2, Last: 2, FirstGroup: 2, LastGroup: 2},
	}
	if got := g.Lifetimes(); !slices.Equal(got, want) {
		t.Errorf("Lifetimes() = %+v, want %+v", got, want)
	}
}

func TestFramesInFlightDeviceLimit(t *testing.T) {
	dev := newTestDevice(noop.WithCapabilities(device.Capabilities{
		Subpasses: true, MipGeneration: true, MaxFramesInFlight: 2,
	}))
	g := New(dev, WithFramesInFlight(6))
	if got := g.FramesInFlight(); got != 2 {
		t.Errorf("FramesInFlight() = %d, want the device limit 2", got)
	}
	declareDeferred(t, g)
	mustBuild(t, g)
	if got := dev.Live().Pools; got != 2 {
		t.Errorf("command pools = %d, want 2", got)
	}
}

func TestAddNamedSizeDuplicate(t *testing.T) {
	g := New(newTestDevice())
	if err := g.AddNamedSize("swapchain", Extent{Width: 1, Height: 1}); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNamedSize("swapchain", Extent{Width: 2, Height: 2}); !errors.Is(err, ErrDuplicateNamedSize) {
		t.Errorf("AddNamedSize() error = %v, want ErrDuplicateNamedSize", err)
	}
}
