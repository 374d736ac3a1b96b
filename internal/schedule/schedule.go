// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package schedule reorders resolved passes for locality and folds
// compatible graphics passes into subpass groups.
package schedule

import (
	"slices"

	"github.com/gogpu/rendergraph/internal/ir"
)

// MergeScore ranks a candidate that fuses with the pass scheduled after it
// above any overlap count.
const MergeScore = 1 << 30

// Scheduler answers dependency and merge queries over one resolved order.
//
// The transitive dependency closure is computed once in New, so
// DependsOn is a bit test.
type Scheduler struct {
	g     *ir.Graph
	order []int
	pos   map[int]int
	deps  []bitset // by position in order: positions each pass depends on
}

// New computes the dependency closure of order, which must list producers
// before consumers as returned by resolve.Resolve.
func New(g *ir.Graph, order []int) *Scheduler {
	s := &Scheduler{
		g:     g,
		order: slices.Clone(order),
		pos:   make(map[int]int, len(order)),
		deps:  make([]bitset, len(order)),
	}
	for i, p := range order {
		s.pos[p] = i
	}
	for i, p := range order {
		d := newBitset(len(order))
		for _, r := range g.Passes[p].Reads() {
			for _, q := range g.Producers(r.Name, p) {
				j, ok := s.pos[q]
				if !ok || j >= i {
					continue
				}
				d.set(j)
				d.union(s.deps[j])
			}
		}
		s.deps[i] = d
	}
	return s
}

// DependsOn reports whether pass a transitively consumes something pass b
// produces. Both are pass indices from the resolved order.
func (s *Scheduler) DependsOn(a, b int) bool {
	i, ok := s.pos[a]
	if !ok {
		return false
	}
	j, ok := s.pos[b]
	if !ok {
		return false
	}
	return s.deps[i].has(j)
}

// DependencyCount returns the number of passes a transitively depends on.
func (s *Scheduler) DependencyCount(a int) int {
	i, ok := s.pos[a]
	if !ok {
		return 0
	}
	return s.deps[i].count()
}

// Optimize reorders the resolved passes greedily, building the schedule
// back to front from the output pass.
//
// A candidate is eligible once every pass depending on it is scheduled.
// Among eligible candidates the one that merges with the most recently
// scheduled pass wins; otherwise the one that can slide past the most
// scheduled passes without crossing a dependency wins. Ties go to the
// candidate resolved latest.
func (s *Scheduler) Optimize() []int {
	if len(s.order) == 0 {
		return nil
	}
	n := len(s.order)
	scheduled := []int{s.order[n-1]}
	unscheduled := slices.Clone(s.order[:n-1])
	chain := []int{s.order[n-1]}

	for len(unscheduled) > 0 {
		best, bestScore, bestPos := -1, -1, -1
		for ci, c := range unscheduled {
			if s.blocked(c, unscheduled) {
				continue
			}
			score := s.score(c, scheduled, chain)
			if score > bestScore || (score == bestScore && s.pos[c] > bestPos) {
				best, bestScore, bestPos = ci, score, s.pos[c]
			}
		}
		c := unscheduled[best]
		unscheduled = slices.Delete(unscheduled, best, best+1)
		if bestScore == MergeScore {
			chain = append(chain, c)
		} else {
			chain = append(chain[:0], c)
		}
		scheduled = append(scheduled, c)
	}
	slices.Reverse(scheduled)
	return scheduled
}

func (s *Scheduler) blocked(c int, unscheduled []int) bool {
	for _, u := range unscheduled {
		if u != c && s.DependsOn(u, c) {
			return true
		}
	}
	return false
}

func (s *Scheduler) score(c int, scheduled, chain []int) int {
	if s.canJoin(chain, c) {
		return MergeScore
	}
	n := 0
	for i := len(scheduled) - 1; i >= 0; i-- {
		if s.DependsOn(scheduled[i], c) {
			break
		}
		n++
	}
	return n
}

// canJoin reports whether b can run as the subpass right before the fused
// chain. The chain is in scheduling order: its last element is the pass
// b would directly precede.
func (s *Scheduler) canJoin(group []int, b int) bool {
	if len(group) == 0 || !s.CanMerge(group[len(group)-1], b) {
		return false
	}
	for _, a := range group[:len(group)-1] {
		if s.conflicts(a, b) {
			return false
		}
	}
	return true
}

// CanMerge reports whether pass a can run as the subpass immediately
// following pass b in one render target.
//
// Both must be graphics passes, a must depend on b, neither may generate
// mips, their attachments must share one size, and a may consume b's
// results only through input attachments.
func (s *Scheduler) CanMerge(a, b int) bool {
	pa, pb := &s.g.Passes[a], &s.g.Passes[b]
	if pa.Type != ir.Graphics || pb.Type != ir.Graphics {
		return false
	}
	if !s.DependsOn(a, b) {
		return false
	}
	if pa.GeneratesMips() || pb.GeneratesMips() {
		return false
	}
	if !sameExtent(pa, pb) {
		return false
	}
	return !s.conflicts(a, b)
}

// conflicts reports a read by a of b's results that cannot stay on tile:
// a plain read of anything b writes, or an input attachment read of a
// texture b writes through a storage binding.
func (s *Scheduler) conflicts(a, b int) bool {
	pa, pb := &s.g.Passes[a], &s.g.Passes[b]
	writes := pb.Writes()
	for _, r := range pa.Reads() {
		for _, w := range writes {
			if w.Name != r.Name {
				continue
			}
			if r.Plain() || !w.Attachment() {
				return true
			}
		}
	}
	return false
}

func sameExtent(a, b *ir.Pass) bool {
	atts := append(a.Attachments(), b.Attachments()...)
	if len(a.Attachments()) == 0 || len(b.Attachments()) == 0 {
		return false
	}
	ref := atts[0].Attachment
	for _, o := range atts[1:] {
		if !o.Attachment.SameSize(ref) || o.Attachment.ArrayLayers != ref.ArrayLayers {
			return false
		}
	}
	return true
}

// Groups folds consecutive passes of order into subpass groups. A pass
// joins the running group when it merges with the group's last pass and
// does not read any member's results outside input attachments.
func (s *Scheduler) Groups(order []int) [][]int {
	var groups [][]int
	for _, p := range order {
		if k := len(groups); k > 0 && s.joins(groups[k-1], p) {
			groups[k-1] = append(groups[k-1], p)
			continue
		}
		groups = append(groups, []int{p})
	}
	return groups
}

func (s *Scheduler) joins(group []int, p int) bool {
	if !s.CanMerge(p, group[len(group)-1]) {
		return false
	}
	for _, m := range group[:len(group)-1] {
		if s.conflicts(p, m) {
			return false
		}
	}
	return true
}
