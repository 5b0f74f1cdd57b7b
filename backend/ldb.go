// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// TableSpace divide key-value storage into spaces by adding a prefix to the key.
type TableSpace byte

const (
	// VersionKey is a tablespace for per-epoch versions of logical keys
	VersionKey TableSpace = 'V'
	// ZeroKey is a tablespace for zero defaults of entities per depth
	ZeroKey TableSpace = 'Z'
	// WatermarkKey is a tablespace for progress markers of the roles
	WatermarkKey TableSpace = 'W'
)

// ToKey prefixes the given key by the table space.
func (t TableSpace) ToKey(key []byte) []byte {
	res := make([]byte, 0, 1+len(key))
	res = append(res, byte(t))
	return append(res, key...)
}

// DefaultLevelDbOptions are used when opening a store without explicit options.
var DefaultLevelDbOptions = opt.Options{
	BlockCacheCapacity: 64 * opt.MiB,
	WriteBuffer:        32 * opt.MiB,
}

// OpenLevelDb opens the LevelDB instance in the given directory, creating it
// if it does not exist.
func OpenLevelDb(path string, options *opt.Options) (*leveldb.DB, error) {
	if options == nil {
		defaults := DefaultLevelDbOptions
		options = &defaults
	}
	return leveldb.OpenFile(path, options)
}
