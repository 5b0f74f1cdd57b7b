// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package hashing

import (
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/propagation"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
)

// Tree is a sparse in-memory commitment tree over a complete registry
// snapshot. Only nodes above populated leaves are materialized; every
// other node resolves to the zero hash of its level.
type Tree struct {
	depth uint8
	zero  []common.Hash
	nodes map[gindex.GIndex]common.Hash
}

// BuildTree hashes the given records into a tree of the given depth.
func BuildTree(h Hasher, depth uint8, records []validator.Validator) *Tree {
	return BuildWindowTree(h, depth, 0, records)
}

// BuildWindowTree places the records at the leaves starting at offset. All
// other leaves hold the zero validator.
func BuildWindowTree(h Hasher, depth uint8, offset uint64, records []validator.Validator) *Tree {
	t := &Tree{
		depth: depth,
		zero:  ZeroHashes(h, depth),
		nodes: make(map[gindex.GIndex]common.Hash, 2*len(records)+int(depth)),
	}
	indices := make([]uint64, len(records))
	for i := range indices {
		indices[i] = offset + uint64(i)
	}
	planner := propagation.Plan(indices, depth)
	for frontier, ok := planner.Next(); ok; frontier, ok = planner.Next() {
		for _, g := range frontier.Nodes {
			if frontier.Level == depth {
				t.nodes[g] = h.LeafHash(&records[gindex.ToIndex(g, depth)-offset])
			} else {
				t.nodes[g] = h.NodeHash(t.Node(g.Left()), t.Node(g.Right()))
			}
		}
	}
	return t
}

// Depth returns the depth of the tree.
func (t *Tree) Depth() uint8 {
	return t.depth
}

// Node returns the hash stored at g.
func (t *Tree) Node(g gindex.GIndex) common.Hash {
	if h, found := t.nodes[g]; found {
		return h
	}
	return t.zero[g.Depth()]
}

// Root returns the root hash of the tree.
func (t *Tree) Root() common.Hash {
	return t.Node(gindex.Root)
}
