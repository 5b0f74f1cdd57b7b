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
	"io"

	"github.com/metacraft-labs/DendrETH-sub000/common"
)

//go:generate mockgen -source store.go -destination store_mocks.go -package versioned

// A Store retains the per-epoch history of every logical key. Writes are
// append-only: a version written for (key, epoch) is never mutated, only
// superseded by a version of a later epoch. Reads resolve the latest version
// at or before the requested epoch and fall back to the zero default of the
// key's depth when no such version exists.
//
// Each key has a single writer per epoch. Writing the same (key, epoch)
// twice with different values is not detected; the last write wins.
//
// All operations are safe for concurrent use.
type Store interface {

	// WriteVersion records value as the version of key at the given epoch.
	WriteVersion(key Key, epoch common.Epoch, value []byte) error

	// WriteVersions records several versions at the given epoch in one batch.
	WriteVersions(epoch common.Epoch, entries []Entry) error

	// ReadAsOf returns the value of the latest version of key at or before
	// epoch. Without such a version the zero default of the key's depth is
	// returned. If neither exists, the result is nil.
	ReadAsOf(key Key, epoch common.Epoch) ([]byte, error)

	// ReadManyAsOf is the batched form of ReadAsOf.
	ReadManyAsOf(keys []Key, epoch common.Epoch) ([][]byte, error)

	// LatestEpochAtOrBefore returns the epoch of the version ReadAsOf would
	// resolve, or false if there is none.
	LatestEpochAtOrBefore(key Key, epoch common.Epoch) (common.Epoch, bool, error)

	// Prune deletes every version of key older than the latest version at or
	// before watermark. Reads for epochs >= watermark are unaffected. It
	// returns the number of deleted versions.
	Prune(key Key, watermark common.Epoch) (int, error)

	// PruneEntity applies Prune to every key of the given entity.
	PruneEntity(entity string, watermark common.Epoch) (int, error)

	// SetZero stores the zero default of an entity at the given depth.
	SetZero(entity string, depth uint8, value []byte) error

	// GetZero returns the zero default of an entity at the given depth.
	GetZero(entity string, depth uint8) ([]byte, bool, error)

	// SetWatermark persists a named progress marker.
	SetWatermark(name string, epoch common.Epoch) error

	// GetWatermark loads a named progress marker.
	GetWatermark(name string) (common.Epoch, bool, error)

	io.Closer
}

// Entry is a single element of a batched write.
type Entry struct {
	Key   Key
	Value []byte
}
