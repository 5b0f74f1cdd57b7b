// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package propagation computes which ancestors of a set of changed leaves
// must be recomputed. Frontiers are produced level by level, from the
// leaves up to the root, and contain every node whose subtree changed
// exactly once. Untouched siblings never appear.
package propagation

import (
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Frontier is the set of nodes at one tree level whose hash must be
// recomputed. Nodes are sorted in ascending order.
type Frontier struct {
	Level uint8
	Nodes []gindex.GIndex
}

// Planner lazily produces the frontiers of a change set. A planner is
// single-pass: once Next reported false, it stays exhausted.
type Planner struct {
	level   uint8
	current map[gindex.GIndex]struct{}
	seeds   map[uint8]map[gindex.GIndex]struct{} // extra nodes entering at upper levels
	started bool
	done    bool
}

// Plan creates a planner for the given changed leaf indices of a tree of the
// given depth. An empty change set produces no frontiers.
func Plan(changed []uint64, depth uint8) *Planner {
	nodes := make([]gindex.GIndex, 0, len(changed))
	for _, i := range changed {
		nodes = append(nodes, gindex.FromIndex(i, depth))
	}
	return PlanFromNodes(nodes)
}

// PlanFromNodes creates a planner starting at arbitrary nodes, possibly on
// different levels. The first frontier is the deepest level among the
// nodes; shallower nodes join the frontier of their own level.
func PlanFromNodes(nodes []gindex.GIndex) *Planner {
	p := &Planner{
		current: map[gindex.GIndex]struct{}{},
		seeds:   map[uint8]map[gindex.GIndex]struct{}{},
	}
	if len(nodes) == 0 {
		p.done = true
		return p
	}
	for _, g := range nodes {
		level := g.Depth()
		if level > p.level {
			p.level = level
		}
		set, found := p.seeds[level]
		if !found {
			set = map[gindex.GIndex]struct{}{}
			p.seeds[level] = set
		}
		set[g] = struct{}{}
	}
	return p
}

// Next returns the next frontier, or false once the root was emitted.
func (p *Planner) Next() (Frontier, bool) {
	if p.done {
		return Frontier{}, false
	}
	if p.started {
		// hash children nodes into (dirty) parent nodes
		parents := make(map[gindex.GIndex]struct{}, len(p.current)/2+1)
		for g := range p.current {
			parents[g.Parent()] = struct{}{}
		}
		p.current = parents
		p.level--
	}
	p.started = true
	for g := range p.seeds[p.level] {
		p.current[g] = struct{}{}
	}
	delete(p.seeds, p.level)

	nodes := maps.Keys(p.current)
	slices.Sort(nodes)
	if p.level == 0 {
		p.done = true
	}
	return Frontier{Level: p.level, Nodes: nodes}, true
}

// All drains the planner and returns the remaining frontiers.
func (p *Planner) All() []Frontier {
	var res []Frontier
	for f, ok := p.Next(); ok; f, ok = p.Next() {
		res = append(res, f)
	}
	return res
}
