// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package task defines the recompute tasks exchanged between the scheduler
// and the workers, together with their fixed-width binary encoding.
//
// Encoding: one tag byte followed by two big-endian uint64 fields.
//
//	UpdateLeafProof:  [1][index][epoch]
//	UpdateInnerNode:  [2][gindex][epoch]
//	ProveZeroSubtree: [3][depth][0]
package task

import (
	"encoding/binary"
	"fmt"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
)

// Kind identifies the variant of a task.
type Kind byte

const (
	KindUpdateLeafProof Kind = iota + 1
	KindUpdateInnerNode
	KindProveZeroSubtree
)

func (k Kind) String() string {
	switch k {
	case KindUpdateLeafProof:
		return "update_leaf_proof"
	case KindUpdateInnerNode:
		return "update_inner_node"
	case KindProveZeroSubtree:
		return "prove_zero_subtree"
	}
	return fmt.Sprintf("unknown(%d)", byte(k))
}

// Size is the length of every encoded task.
const Size = 1 + 8 + 8

// ErrMalformed indicates a payload that is not a valid encoded task. It is
// a contract violation between producer and consumer.
const ErrMalformed = common.ConstError("malformed task payload")

// Task is one of UpdateLeafProof, UpdateInnerNode or ProveZeroSubtree.
type Task interface {
	Kind() Kind
	fields() (uint64, uint64)
}

// UpdateLeafProof recomputes the hash of the leaf holding validator Index
// as of Epoch.
type UpdateLeafProof struct {
	Index uint64
	Epoch common.Epoch
}

// UpdateInnerNode recomputes the inner node GIndex from its children as of
// Epoch.
type UpdateInnerNode struct {
	GIndex gindex.GIndex
	Epoch  common.Epoch
}

// ProveZeroSubtree computes the hash of an all-default subtree rooted at
// Depth from the zero hash one level below.
type ProveZeroSubtree struct {
	Depth uint8
}

func (UpdateLeafProof) Kind() Kind  { return KindUpdateLeafProof }
func (UpdateInnerNode) Kind() Kind  { return KindUpdateInnerNode }
func (ProveZeroSubtree) Kind() Kind { return KindProveZeroSubtree }

func (t UpdateLeafProof) fields() (uint64, uint64)  { return t.Index, uint64(t.Epoch) }
func (t UpdateInnerNode) fields() (uint64, uint64)  { return uint64(t.GIndex), uint64(t.Epoch) }
func (t ProveZeroSubtree) fields() (uint64, uint64) { return uint64(t.Depth), 0 }

func (t UpdateLeafProof) String() string {
	return fmt.Sprintf("%v(index=%d, epoch=%d)", t.Kind(), t.Index, t.Epoch)
}

func (t UpdateInnerNode) String() string {
	return fmt.Sprintf("%v(gindex=%d, epoch=%d)", t.Kind(), t.GIndex, t.Epoch)
}

func (t ProveZeroSubtree) String() string {
	return fmt.Sprintf("%v(depth=%d)", t.Kind(), t.Depth)
}

// Encode serializes a task into its fixed-width binary form.
func Encode(t Task) []byte {
	res := make([]byte, Size)
	res[0] = byte(t.Kind())
	a, b := t.fields()
	binary.BigEndian.PutUint64(res[1:9], a)
	binary.BigEndian.PutUint64(res[9:], b)
	return res
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (Task, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("%w: length %d, expected %d", ErrMalformed, len(data), Size)
	}
	a := binary.BigEndian.Uint64(data[1:9])
	b := binary.BigEndian.Uint64(data[9:])
	switch Kind(data[0]) {
	case KindUpdateLeafProof:
		return UpdateLeafProof{Index: a, Epoch: common.Epoch(b)}, nil
	case KindUpdateInnerNode:
		if a == 0 {
			return nil, fmt.Errorf("%w: gindex 0", ErrMalformed)
		}
		return UpdateInnerNode{GIndex: gindex.GIndex(a), Epoch: common.Epoch(b)}, nil
	case KindProveZeroSubtree:
		if a > gindex.MaxDepth || b != 0 {
			return nil, fmt.Errorf("%w: invalid zero subtree fields %d/%d", ErrMalformed, a, b)
		}
		return ProveZeroSubtree{Depth: uint8(a)}, nil
	}
	return nil, fmt.Errorf("%w: unknown tag %d", ErrMalformed, data[0])
}
