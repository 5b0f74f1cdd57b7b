// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"encoding/binary"

	"github.com/metacraft-labs/DendrETH-sub000/backend"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const epochSize = 8                 // epoch number size (uint64)
const maxEpoch = 0xFFFFFFFFFFFFFFFE // max epoch number (uint64) - must be less than the max value to fit into limit range
const idSize = 8                    // logical id size (uint64)

var limitEpoch = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF} // max range value, must be greater than maxEpoch

// keyPrefix identifies all versions of one logical key, it consists of
// * the tablespace
// * the entity name terminated by a zero byte
// * the logical id
func keyPrefix(key versioned.Key) []byte {
	res := make([]byte, 0, 1+len(key.Entity)+1+idSize+epochSize)
	res = append(res, byte(backend.VersionKey))
	res = append(res, key.Entity...)
	res = append(res, 0)
	return binary.BigEndian.AppendUint64(res, key.ID)
}

// entityPrefix covers the versions of all keys of an entity.
func entityPrefix(entity string) []byte {
	res := make([]byte, 0, 1+len(entity)+1)
	res = append(res, byte(backend.VersionKey))
	res = append(res, entity...)
	return append(res, 0)
}

// versionKey is a key for one version, it consists of
// * the key prefix
// * the epoch number, represented as an inverse value to sort from the highest epoch
func versionKey(prefix []byte, epoch common.Epoch) []byte {
	res := make([]byte, 0, len(prefix)+epochSize)
	res = append(res, prefix...)
	return binary.BigEndian.AppendUint64(res, maxEpoch-uint64(epoch))
}

// epochOf extracts the epoch from a version key.
func epochOf(versionKey []byte) common.Epoch {
	return common.Epoch(maxEpoch - binary.BigEndian.Uint64(versionKey[len(versionKey)-epochSize:]))
}

// idOf extracts the logical id from a version key.
func idOf(versionKey []byte) uint64 {
	return binary.BigEndian.Uint64(versionKey[len(versionKey)-epochSize-idSize:])
}

// getRangeFrom provides a key range for iterating the versions of a key
// from the given epoch down to the first epoch.
func getRangeFrom(prefix []byte, epoch common.Epoch) util.Range {
	if epoch > maxEpoch {
		epoch = maxEpoch
	}
	end := make([]byte, 0, len(prefix)+epochSize)
	end = append(end, prefix...)
	end = append(end, limitEpoch...)
	return util.Range{Start: versionKey(prefix, epoch), Limit: end}
}

func zeroKey(entity string, depth uint8) []byte {
	return backend.ZeroKey.ToKey([]byte(versioned.ZeroName(entity, depth)))
}

func watermarkKey(name string) []byte {
	return backend.WatermarkKey.ToKey([]byte(name))
}
