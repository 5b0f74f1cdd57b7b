// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package versioned

import (
	"fmt"

	"github.com/metacraft-labs/DendrETH-sub000/gindex"
)

const (
	// ValidatorEntity holds the validator records of the registry.
	ValidatorEntity = "validator"
	// ProofEntity holds the hashes of the commitment tree nodes, by gindex.
	ProofEntity = "validator_proof"
	// LengthEntity holds the number of validators in the registry.
	LengthEntity = "validators_length"
)

// Names of the persisted progress markers.
const (
	// LastProcessedEpoch is the last epoch synchronized by the scheduler.
	LastProcessedEpoch = "last_processed_epoch"
	// LastFinalizedEpoch is the last synchronized epoch that was finalized
	// at the time it was processed.
	LastFinalizedEpoch = "last_finalized_epoch"
	// FinalizedCheckpoint is the latest finalized epoch announced by the
	// external source.
	FinalizedCheckpoint = "finalized_checkpoint"
	// LastVerifiedEpoch is the last epoch confirmed by the reconciliation loop.
	LastVerifiedEpoch = "last_verified_epoch"
)

// Key identifies a logical slot of the store. Depth selects the zero
// default used when the key has no version yet; it is not part of the
// key's identity.
type Key struct {
	Entity string
	ID     uint64
	Depth  uint8
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Entity, k.ID)
}

// VersionName renders the name of a version following {entity}:{id}:{epoch}.
func (k Key) VersionName(epoch uint64) string {
	return fmt.Sprintf("%s:%d:%d", k.Entity, k.ID, epoch)
}

// ZeroName renders the name of the zero default {entity}:zeroes:{depth}.
func ZeroName(entity string, depth uint8) string {
	return fmt.Sprintf("%s:zeroes:%d", entity, depth)
}

// ValidatorKey addresses the record of validator index in a registry of
// the given tree depth.
func ValidatorKey(index uint64, depth uint8) Key {
	return Key{Entity: ValidatorEntity, ID: index, Depth: depth}
}

// ProofKey addresses the hash of tree node g.
func ProofKey(g gindex.GIndex) Key {
	return Key{Entity: ProofEntity, ID: uint64(g), Depth: g.Depth()}
}

// RootKey addresses the root hash of the tree.
func RootKey() Key {
	return ProofKey(gindex.Root)
}

// LengthKey addresses the registry size.
func LengthKey() Key {
	return Key{Entity: LengthEntity}
}
