// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command rgdump builds a render graph from a YAML description and prints
// its execution plan.
//
// Usage:
//
//	rgdump [-config settings.toml] [-backend noop] [-frames 3] [-chart out.png] graph.yaml
//
// The plan lists the pass order, the pass-groups with their barriers, and
// the lifetime of every resource. With -frames the graph is also executed
// and the frame timings are printed.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/loov/hrtime"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	_ "github.com/gogpu/rendergraph/backend/hal"
	_ "github.com/gogpu/rendergraph/backend/noop"
	"github.com/gogpu/rendergraph/backend/vulkan"
	"github.com/gogpu/rendergraph/config"
	"github.com/gogpu/rendergraph/device"
	"github.com/gogpu/rendergraph/graphspec"
	"github.com/gogpu/rendergraph/internal/chart"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML settings file")
		backendArg = flag.String("backend", "", "backend name, overrides the settings (default noop)")
		frames     = flag.Int("frames", 0, "frames to execute after building")
		chartPath  = flag.String("chart", "", "write a resource lifetime chart PNG")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: rgdump [flags] graph.yaml\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	log.SetFlags(0)
	log.SetPrefix("rgdump: ")

	settings := config.Default()
	if *configPath != "" {
		s, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		settings = s
	}
	if *backendArg != "" {
		settings.Backend = *backendArg
	}
	rendergraph.SetLogger(settings.Logger(os.Stderr))

	spec, err := graphspec.Load(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	dev, err := openDevice(settings)
	if err != nil {
		log.Fatal(err)
	}
	defer dev.Close()

	g := rendergraph.New(dev, settings.Options()...)
	defer g.Destroy()
	if _, err := graphspec.Apply(g, spec); err != nil {
		log.Fatal(err)
	}
	if err := g.Build(); err != nil {
		log.Fatal(err)
	}

	dump(os.Stdout, g)
	if *frames > 0 {
		if err := run(os.Stdout, g, *frames, time.Duration(settings.FenceTimeout)); err != nil {
			log.Fatal(err)
		}
	}
	if *chartPath != "" {
		if err := writeChart(*chartPath, g); err != nil {
			log.Fatal(err)
		}
	}
}

func openDevice(s config.Settings) (device.Device, error) {
	switch {
	case s.Backend == backend.BackendVulkan && s.Validation:
		return vulkan.OpenWith(vulkan.Config{Validation: true})
	case s.Backend != "":
		return backend.Open(s.Backend)
	default:
		return backend.Open(backend.BackendNoop)
	}
}

func dump(w io.Writer, g *rendergraph.Graph) {
	plan := g.Plan()
	fmt.Fprintf(w, "graph %s on %s\n", g.ID(), g.Device().Name())
	fmt.Fprintf(w, "order: %s\n", strings.Join(plan.Order, " -> "))
	fmt.Fprintf(w, "output: %s\n\n", g.Output())

	for i, grp := range plan.Groups {
		fmt.Fprintf(w, "group %d [%s] %s", i, grp.Type, strings.Join(grp.Passes, " + "))
		if grp.Type == rendergraph.Graphics {
			fmt.Fprintf(w, " %s", grp.Extent)
		}
		fmt.Fprintln(w)
		transitions(w, "before", grp.Before)
		for k, ts := range grp.Subpass {
			transitions(w, fmt.Sprintf("subpass %d", k), ts)
		}
		for _, m := range grp.MipGen {
			fmt.Fprintf(w, "  mipgen: %s from %s\n", m.Resource, m.From)
		}
		transitions(w, "after", grp.After)
	}

	fmt.Fprintln(w, "\nlifetimes:")
	for _, l := range g.Lifetimes() {
		kind := ""
		if l.Imported {
			kind = " (imported)"
		}
		fmt.Fprintf(w, "  %-16s %d..%d%s\n", l.Resource, l.First, l.Last, kind)
	}
}

func transitions(w io.Writer, label string, ts []rendergraph.Transition) {
	for _, t := range ts {
		fmt.Fprintf(w, "  %s: %s\n", label, t)
	}
}

// run executes n frames, waiting on a slot's previous frame before reusing
// it.
func run(w io.Writer, g *rendergraph.Graph, n int, timeout time.Duration) error {
	inflight := make([]rendergraph.Signal, g.FramesInFlight())
	start := hrtime.Now()
	for i := range n {
		slot := i % len(inflight)
		if err := g.Wait(inflight[slot], timeout); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		sig, err := g.Execute(true)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		inflight[slot] = sig
	}
	for _, sig := range inflight {
		if err := g.Wait(sig, timeout); err != nil {
			return err
		}
	}
	total := hrtime.Since(start)

	st := g.Stats()
	fmt.Fprintf(w, "\nframes: %d in %v\n", st.Frames, total)
	fmt.Fprintf(w, "record: last %v, average %v\n", st.LastRecord, st.AverageRecord)
	fmt.Fprintf(w, "submit: last %v\n", st.LastSubmit)
	fmt.Fprintf(w, "memory: %+v\n", st.Memory)
	return nil
}

func writeChart(path string, g *rendergraph.Graph) error {
	var c chart.Chart
	for _, grp := range g.Plan().Groups {
		c.Columns = append(c.Columns, strings.Join(grp.Passes, "+"))
	}
	for _, l := range g.Lifetimes() {
		c.Bars = append(c.Bars, chart.Bar{
			Label:    l.Resource,
			First:    l.FirstGroup,
			Last:     l.LastGroup,
			Imported: l.Imported,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WritePNG(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
