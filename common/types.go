// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the size of a tree node hash in bytes.
const HashSize = 32

// Hash is the value stored in every node of the commitment tree.
type Hash [HashSize]byte

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HashFromBytes converts a stored node value into a Hash. The input must be
// exactly HashSize bytes long.
func HashFromBytes(data []byte) (Hash, error) {
	var h Hash
	if len(data) != HashSize {
		return h, fmt.Errorf("invalid hash length %d, expected %d", len(data), HashSize)
	}
	copy(h[:], data)
	return h, nil
}

// Epoch is the versioning unit of both the external source and the stored
// tree. Epochs increase monotonically.
type Epoch uint64

// Slot is a position within the chain of the external source. Every epoch
// covers a fixed number of slots.
type Slot uint64
