// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ldb implements the versioned store on LevelDB. Versions of a key
// are stored under the key prefix followed by the inverted epoch, so the
// latest version at or before an epoch is the first entry of a range scan
// starting at that epoch.
package ldb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/metacraft-labs/DendrETH-sub000/backend"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// latestCacheSize bounds the number of keys whose newest epoch is cached.
const latestCacheSize = 1 << 16

// pruneBatchSize bounds the number of deletions buffered while pruning.
const pruneBatchSize = 10_000

type Store struct {
	db      *leveldb.DB
	ownsDb  bool
	latest  *common.LruCache[string, common.Epoch] // newest version per key prefix
	cacheMu sync.Mutex                             // orders cache fills against writes
}

// NewStore creates a store on top of an open LevelDB instance. The instance
// is not closed when the store is closed.
func NewStore(db *leveldb.DB) *Store {
	return &Store{
		db:     db,
		latest: common.NewLruCache[string, common.Epoch](latestCacheSize),
	}
}

// Open opens or creates a store in the given directory.
func Open(path string) (*Store, error) {
	db, err := backend.OpenLevelDb(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB at %s; %w", path, err)
	}
	s := NewStore(db)
	s.ownsDb = true
	return s, nil
}

func (s *Store) Close() error {
	if s.ownsDb {
		return s.db.Close()
	}
	return nil
}

func (s *Store) WriteVersion(key versioned.Key, epoch common.Epoch, value []byte) error {
	return s.WriteVersions(epoch, []versioned.Entry{{Key: key, Value: value}})
}

func (s *Store) WriteVersions(epoch common.Epoch, entries []versioned.Entry) error {
	if uint64(epoch) > maxEpoch {
		return fmt.Errorf("epoch %d exceeds the maximum of %d", epoch, uint64(maxEpoch))
	}
	var batch leveldb.Batch
	prefixes := make([][]byte, len(entries))
	for i, entry := range entries {
		prefixes[i] = keyPrefix(entry.Key)
		batch.Put(versionKey(prefixes[i], epoch), entry.Value)
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if err := s.db.Write(&batch, nil); err != nil {
		return err
	}
	for _, prefix := range prefixes {
		// keys not in the cache are resolved from the DB on their next read
		if latest, found := s.latest.Get(string(prefix)); found && epoch > latest {
			s.latest.Set(string(prefix), epoch)
		}
	}
	return nil
}

func (s *Store) ReadAsOf(key versioned.Key, epoch common.Epoch) ([]byte, error) {
	prefix := keyPrefix(key)
	latest, found, err := s.latestVersion(prefix)
	if err != nil {
		return nil, err
	}
	if !found {
		return s.getZero(key.Entity, key.Depth)
	}
	if epoch >= latest {
		value, err := s.db.Get(versionKey(prefix, latest), nil)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, leveldb.ErrNotFound) {
			return nil, err
		}
	}

	keyRange := getRangeFrom(prefix, epoch)
	it := s.db.NewIterator(&keyRange, nil)
	defer it.Release()
	if it.Next() {
		value := make([]byte, len(it.Value()))
		copy(value, it.Value())
		return value, nil
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return s.getZero(key.Entity, key.Depth)
}

func (s *Store) ReadManyAsOf(keys []versioned.Key, epoch common.Epoch) ([][]byte, error) {
	res := make([][]byte, len(keys))
	for i, key := range keys {
		value, err := s.ReadAsOf(key, epoch)
		if err != nil {
			return nil, fmt.Errorf("failed to read %v; %w", key, err)
		}
		res[i] = value
	}
	return res, nil
}

func (s *Store) LatestEpochAtOrBefore(key versioned.Key, epoch common.Epoch) (common.Epoch, bool, error) {
	keyRange := getRangeFrom(keyPrefix(key), epoch)
	it := s.db.NewIterator(&keyRange, nil)
	defer it.Release()
	if it.Next() {
		return epochOf(it.Key()), true, nil
	}
	return 0, false, it.Error()
}

func (s *Store) Prune(key versioned.Key, watermark common.Epoch) (int, error) {
	keyRange := getRangeFrom(keyPrefix(key), watermark)
	it := s.db.NewIterator(&keyRange, nil)
	defer it.Release()

	var batch leveldb.Batch
	kept := false
	for it.Next() {
		if !kept {
			kept = true // the latest version at or before the watermark
			continue
		}
		batch.Delete(it.Key())
	}
	if err := it.Error(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return batch.Len(), s.db.Write(&batch, nil)
}

func (s *Store) PruneEntity(entity string, watermark common.Epoch) (int, error) {
	it := s.db.NewIterator(util.BytesPrefix(entityPrefix(entity)), nil)
	defer it.Release()

	var batch leveldb.Batch
	deleted := 0
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		deleted += batch.Len()
		err := s.db.Write(&batch, nil)
		batch.Reset()
		return err
	}

	// versions of an id are visited from the newest to the oldest
	var currentId uint64
	first, kept := true, false
	for it.Next() {
		key := it.Key()
		if id := idOf(key); first || id != currentId {
			currentId, first, kept = id, false, false
		}
		if kept {
			batch.Delete(key)
			if batch.Len() >= pruneBatchSize {
				if err := flush(); err != nil {
					return deleted, err
				}
			}
			continue
		}
		if epochOf(key) <= watermark {
			kept = true
		}
	}
	if err := it.Error(); err != nil {
		return deleted, err
	}
	return deleted, flush()
}

func (s *Store) SetZero(entity string, depth uint8, value []byte) error {
	return s.db.Put(zeroKey(entity, depth), value, nil)
}

func (s *Store) GetZero(entity string, depth uint8) ([]byte, bool, error) {
	value, err := s.db.Get(zeroKey(entity, depth), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) SetWatermark(name string, epoch common.Epoch) error {
	return s.db.Put(watermarkKey(name), binary.BigEndian.AppendUint64(nil, uint64(epoch)), nil)
}

func (s *Store) GetWatermark(name string) (common.Epoch, bool, error) {
	value, err := s.db.Get(watermarkKey(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(value) != 8 {
		return 0, false, fmt.Errorf("corrupted watermark %s of length %d", name, len(value))
	}
	return common.Epoch(binary.BigEndian.Uint64(value)), true, nil
}

func (s *Store) getZero(entity string, depth uint8) ([]byte, error) {
	value, _, err := s.GetZero(entity, depth)
	return value, err
}

// latestVersion provides the newest epoch recorded for the key prefix,
// consulting the cache first.
func (s *Store) latestVersion(prefix []byte) (common.Epoch, bool, error) {
	if latest, found := s.latest.Get(string(prefix)); found {
		return latest, true, nil
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	keyRange := getRangeFrom(prefix, maxEpoch)
	it := s.db.NewIterator(&keyRange, nil)
	defer it.Release()
	if it.Next() {
		latest := epochOf(it.Key())
		s.latest.Set(string(prefix), latest)
		return latest, true, nil
	}
	return 0, false, it.Error()
}
