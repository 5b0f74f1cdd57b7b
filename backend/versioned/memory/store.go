// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package memory provides an in-memory versioned store, mainly for tests
// and single-process deployments without persistence.
package memory

import (
	"sync"

	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"golang.org/x/exp/slices"
)

// Store keeps all versions in maps guarded by a single lock.
type Store struct {
	mu         sync.RWMutex
	histories  map[string]map[uint64]*history // entity -> id -> history
	zeroes     map[string][]byte
	watermarks map[string]common.Epoch
	closed     bool
}

// history is the EpochIndex of one key plus its values.
type history struct {
	epochs []common.Epoch // ascending
	values map[common.Epoch][]byte
}

func NewStore() *Store {
	return &Store{
		histories:  map[string]map[uint64]*history{},
		zeroes:     map[string][]byte{},
		watermarks: map[string]common.Epoch{},
	}
}

func (s *Store) WriteVersion(key versioned.Key, epoch common.Epoch, value []byte) error {
	return s.WriteVersions(epoch, []versioned.Entry{{Key: key, Value: value}})
}

func (s *Store) WriteVersions(epoch common.Epoch, entries []versioned.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return common.ErrClosed
	}
	for _, entry := range entries {
		ids, found := s.histories[entry.Key.Entity]
		if !found {
			ids = map[uint64]*history{}
			s.histories[entry.Key.Entity] = ids
		}
		h, found := ids[entry.Key.ID]
		if !found {
			h = &history{values: map[common.Epoch][]byte{}}
			ids[entry.Key.ID] = h
		}
		if pos, exists := slices.BinarySearch(h.epochs, epoch); !exists {
			h.epochs = slices.Insert(h.epochs, pos, epoch)
		}
		h.values[epoch] = slices.Clone(entry.Value)
	}
	return nil
}

func (s *Store) ReadAsOf(key versioned.Key, epoch common.Epoch) ([]byte, error) {
	res, err := s.ReadManyAsOf([]versioned.Key{key}, epoch)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (s *Store) ReadManyAsOf(keys []versioned.Key, epoch common.Epoch) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, common.ErrClosed
	}
	res := make([][]byte, len(keys))
	for i, key := range keys {
		h := s.getHistory(key)
		if latest, found := h.latestAtOrBefore(epoch); found {
			res[i] = slices.Clone(h.values[latest])
			continue
		}
		res[i] = slices.Clone(s.zeroes[versioned.ZeroName(key.Entity, key.Depth)])
	}
	return res, nil
}

func (s *Store) LatestEpochAtOrBefore(key versioned.Key, epoch common.Epoch) (common.Epoch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, common.ErrClosed
	}
	latest, found := s.getHistory(key).latestAtOrBefore(epoch)
	return latest, found, nil
}

func (s *Store) Prune(key versioned.Key, watermark common.Epoch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, common.ErrClosed
	}
	return s.getHistory(key).prune(watermark), nil
}

func (s *Store) PruneEntity(entity string, watermark common.Epoch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, common.ErrClosed
	}
	count := 0
	for _, h := range s.histories[entity] {
		count += h.prune(watermark)
	}
	return count, nil
}

func (s *Store) SetZero(entity string, depth uint8, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return common.ErrClosed
	}
	s.zeroes[versioned.ZeroName(entity, depth)] = slices.Clone(value)
	return nil
}

func (s *Store) GetZero(entity string, depth uint8) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, common.ErrClosed
	}
	value, found := s.zeroes[versioned.ZeroName(entity, depth)]
	return slices.Clone(value), found, nil
}

func (s *Store) SetWatermark(name string, epoch common.Epoch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return common.ErrClosed
	}
	s.watermarks[name] = epoch
	return nil
}

func (s *Store) GetWatermark(name string) (common.Epoch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, common.ErrClosed
	}
	epoch, found := s.watermarks[name]
	return epoch, found, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// getHistory returns the history of key, or nil if it was never written.
func (s *Store) getHistory(key versioned.Key) *history {
	return s.histories[key.Entity][key.ID]
}

func (h *history) latestAtOrBefore(epoch common.Epoch) (common.Epoch, bool) {
	if h == nil {
		return 0, false
	}
	pos, exists := slices.BinarySearch(h.epochs, epoch)
	if exists {
		return epoch, true
	}
	if pos == 0 {
		return 0, false
	}
	return h.epochs[pos-1], true
}

func (h *history) prune(watermark common.Epoch) int {
	latest, found := h.latestAtOrBefore(watermark)
	if !found {
		return 0
	}
	pos, _ := slices.BinarySearch(h.epochs, latest)
	for _, epoch := range h.epochs[:pos] {
		delete(h.values, epoch)
	}
	h.epochs = slices.Delete(h.epochs, 0, pos)
	return pos
}
