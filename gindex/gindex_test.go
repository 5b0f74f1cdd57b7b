// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gindex

import (
	"testing"

	"github.com/metacraft-labs/DendrETH-sub000/common"
)

func TestGIndex_IndexRoundTrip(t *testing.T) {
	for _, depth := range []uint8{0, 1, 3, 10, 40} {
		limit := uint64(1) << depth
		for _, i := range []uint64{0, 1, limit / 2, limit - 1} {
			if i >= limit {
				continue
			}
			g := FromIndex(i, depth)
			if got := ToIndex(g, depth); got != i {
				t.Errorf("depth %d: round trip of %d produced %d", depth, i, got)
			}
			if g.Depth() != depth {
				t.Errorf("leaf %d of depth %d has gindex %d at level %d", i, depth, g, g.Depth())
			}
		}
	}
}

func TestGIndex_LeafRange(t *testing.T) {
	const depth = 3
	if got := FromIndex(0, depth); got != 8 {
		t.Errorf("first leaf should be 8, got %d", got)
	}
	if got := FromIndex(7, depth); got != 15 {
		t.Errorf("last leaf should be 15, got %d", got)
	}
}

func TestGIndex_ParentIsOneLevelUp(t *testing.T) {
	for g := GIndex(2); g < 1<<12; g++ {
		if g.Parent().Depth() != g.Depth()-1 {
			t.Fatalf("parent of %d is at level %d, expected %d", g, g.Parent().Depth(), g.Depth()-1)
		}
	}
}

func TestGIndex_Children(t *testing.T) {
	tests := []struct {
		g, left, right, sibling GIndex
	}{
		{1, 2, 3, 0},
		{2, 4, 5, 3},
		{5, 10, 11, 4},
		{13, 26, 27, 12},
	}
	for _, test := range tests {
		if got := test.g.Left(); got != test.left {
			t.Errorf("left child of %d: wanted %d, got %d", test.g, test.left, got)
		}
		if got := test.g.Right(); got != test.right {
			t.Errorf("right child of %d: wanted %d, got %d", test.g, test.right, got)
		}
		if test.g != Root {
			if got := test.g.Sibling(); got != test.sibling {
				t.Errorf("sibling of %d: wanted %d, got %d", test.g, test.sibling, got)
			}
		}
		if test.g.Left().Parent() != test.g || test.g.Right().Parent() != test.g {
			t.Errorf("children of %d do not point back to it", test.g)
		}
	}
}

func TestGIndex_AncestorAt(t *testing.T) {
	g := FromIndex(5, 4) // 21 = 0b10101
	want := []GIndex{1, 2, 5, 10, 21}
	for level, w := range want {
		if got := g.AncestorAt(uint8(level)); got != w {
			t.Errorf("ancestor at level %d: wanted %d, got %d", level, w, got)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Root, 0); err != nil {
		t.Errorf("root should be valid: %v", err)
	}
	if err := Validate(15, 3); err != nil {
		t.Errorf("last leaf should be valid: %v", err)
	}
	if err := Validate(16, 3); err == nil {
		t.Errorf("gindex beyond the leaves should be rejected")
	}
	if err := Validate(0, 3); err == nil {
		t.Errorf("gindex 0 should be rejected")
	}
	if err := Validate(1, MaxDepth+1); err == nil {
		t.Errorf("excessive depth should be rejected")
	}
}

func TestEpochSlotConversion(t *testing.T) {
	tests := []struct {
		epoch       common.Epoch
		first, last common.Slot
	}{
		{0, 0, 31},
		{1, 32, 63},
		{100, 3200, 3231},
	}
	for _, test := range tests {
		if got := FirstSlotOfEpoch(test.epoch); got != test.first {
			t.Errorf("first slot of epoch %d: wanted %d, got %d", test.epoch, test.first, got)
		}
		if got := LastSlotOfEpoch(test.epoch); got != test.last {
			t.Errorf("last slot of epoch %d: wanted %d, got %d", test.epoch, test.last, got)
		}
		for s := test.first; s <= test.last; s++ {
			if EpochOfSlot(s) != test.epoch {
				t.Fatalf("slot %d should belong to epoch %d", s, test.epoch)
			}
		}
	}
}
