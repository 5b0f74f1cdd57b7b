// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package gindex maps between flat leaf indices and generalized indices
// (gindices) of a perfect binary tree. The root has gindex 1 and the
// children of node g are 2g and 2g+1, so the leaves of a tree of depth D
// occupy [2^D, 2^(D+1)-1].
//
// None of the functions check their inputs; callers keep indices within
// the bounds of the tree. Use Validate at trust boundaries.
package gindex

import (
	"fmt"
	"math/bits"

	"github.com/metacraft-labs/DendrETH-sub000/common"
)

// GIndex is the 1-based address of a node in a perfect binary tree.
type GIndex uint64

// Root is the gindex of the tree root.
const Root GIndex = 1

// MaxDepth is the deepest tree whose gindices still fit into 64 bits.
const MaxDepth = 62

// SlotsPerEpochBits is log2 of the number of slots in one epoch.
const SlotsPerEpochBits = 5

// SlotsPerEpoch is the number of slots covered by a single epoch.
const SlotsPerEpoch = 1 << SlotsPerEpochBits

// FromIndex returns the gindex of leaf i in a tree of the given depth.
func FromIndex(i uint64, depth uint8) GIndex {
	return GIndex(uint64(1)<<depth + i)
}

// ToIndex returns the flat leaf index of g in a tree of the given depth.
func ToIndex(g GIndex, depth uint8) uint64 {
	return uint64(g) - uint64(1)<<depth
}

// Parent returns the parent of g. The parent of the root is 0.
func (g GIndex) Parent() GIndex {
	return g >> 1
}

// Left returns the left child of g.
func (g GIndex) Left() GIndex {
	return g << 1
}

// Right returns the right child of g.
func (g GIndex) Right() GIndex {
	return g<<1 | 1
}

// Sibling returns the other child of g's parent.
func (g GIndex) Sibling() GIndex {
	return g ^ 1
}

// Depth returns the level of g, the root being at level 0.
func (g GIndex) Depth() uint8 {
	return uint8(bits.Len64(uint64(g)) - 1)
}

// AncestorAt returns the ancestor of g located at the given level. The
// level must not be deeper than g itself.
func (g GIndex) AncestorAt(level uint8) GIndex {
	return g >> (g.Depth() - level)
}

// Validate checks that g addresses a node of a tree of the given depth.
func Validate(g GIndex, depth uint8) error {
	if depth > MaxDepth {
		return fmt.Errorf("tree depth %d exceeds maximum of %d", depth, MaxDepth)
	}
	if g == 0 || g.Depth() > depth {
		return fmt.Errorf("gindex %d is outside of a tree of depth %d", g, depth)
	}
	return nil
}

// FirstSlotOfEpoch returns the first slot covered by the given epoch.
func FirstSlotOfEpoch(epoch common.Epoch) common.Slot {
	return common.Slot(uint64(epoch) << SlotsPerEpochBits)
}

// LastSlotOfEpoch returns the last slot covered by the given epoch.
func LastSlotOfEpoch(epoch common.Epoch) common.Slot {
	return common.Slot((uint64(epoch)+1)<<SlotsPerEpochBits - 1)
}

// EpochOfSlot returns the epoch covering the given slot.
func EpochOfSlot(slot common.Slot) common.Epoch {
	return common.Epoch(uint64(slot) >> SlotsPerEpochBits)
}
