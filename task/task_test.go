// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package task

import (
	"errors"
	"testing"

	"github.com/metacraft-labs/DendrETH-sub000/gindex"
)

func TestTask_EncodingIsFixedWidth(t *testing.T) {
	tasks := []Task{
		UpdateLeafProof{Index: 5, Epoch: 12},
		UpdateInnerNode{GIndex: 1 << 40, Epoch: 1},
		ProveZeroSubtree{Depth: 39},
	}
	for _, task := range tasks {
		data := Encode(task)
		if len(data) != Size {
			t.Errorf("%v: encoded size %d, expected %d", task, len(data), Size)
		}
		if Kind(data[0]) != task.Kind() {
			t.Errorf("%v: unexpected tag %d", task, data[0])
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("%v: failed to decode: %v", task, err)
		}
		if got != task {
			t.Errorf("decoded task differs, wanted %v, got %v", task, got)
		}
	}
}

func TestTask_KnownEncoding(t *testing.T) {
	data := Encode(UpdateInnerNode{GIndex: gindex.GIndex(3), Epoch: 258})
	want := []byte{2, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 1, 2}
	if string(data) != string(want) {
		t.Errorf("unexpected encoding, wanted %v, got %v", want, data)
	}
}

func TestTask_DecodeRejectsMalformedPayloads(t *testing.T) {
	valid := Encode(UpdateLeafProof{Index: 1, Epoch: 1})
	unknownTag := append([]byte{}, valid...)
	unknownTag[0] = 9
	zeroGIndex := Encode(UpdateInnerNode{GIndex: 0, Epoch: 1})
	deepZero := Encode(ProveZeroSubtree{Depth: 63})
	trailingZero := Encode(ProveZeroSubtree{Depth: 2})
	trailingZero[Size-1] = 1

	tests := map[string][]byte{
		"empty":         nil,
		"short":         valid[:Size-1],
		"long":          append(append([]byte{}, valid...), 0),
		"unknown tag":   unknownTag,
		"zero gindex":   zeroGIndex,
		"too deep":      deepZero,
		"trailing data": trailingZero,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if got := KindProveZeroSubtree.String(); got != "prove_zero_subtree" {
		t.Errorf("unexpected name: %s", got)
	}
	if got := Kind(42).String(); got != "unknown(42)" {
		t.Errorf("unexpected name: %s", got)
	}
}
