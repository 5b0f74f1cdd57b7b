// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package replay provides a source serving recorded validator snapshots from
// memory. It drives tests and local dry runs of the commitment mapper.
package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/source"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Source struct {
	mu        sync.Mutex
	snapshots map[common.Epoch][]validator.Validator
	missing   map[common.Slot]bool
	head      common.Epoch
	finalized common.Epoch

	subMu       sync.Mutex // serializes sending to and closing subscriptions
	subscribers []*subscriber
}

type subscriber struct {
	ctx    context.Context
	topics []source.Topic
	sub    *source.Subscription
}

func New() *Source {
	return &Source{
		snapshots: map[common.Epoch][]validator.Validator{},
		missing:   map[common.Slot]bool{},
	}
}

// SetSnapshot records the registry as of the given epoch. Epochs without a
// snapshot serve the latest earlier one.
func (s *Source) SetSnapshot(epoch common.Epoch, records []validator.Validator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[epoch] = slices.Clone(records)
}

// SetMissing marks slots as having no block.
func (s *Source) SetMissing(slots ...common.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range slots {
		s.missing[slot] = true
	}
}

// SetHead updates the head epoch and notifies head subscribers.
func (s *Source) SetHead(epoch common.Epoch) {
	s.mu.Lock()
	s.head = epoch
	s.mu.Unlock()
	s.publish(source.Event{Topic: source.TopicHead, Epoch: epoch})
}

// SetFinalized updates the finalized epoch and notifies checkpoint
// subscribers.
func (s *Source) SetFinalized(epoch common.Epoch) {
	s.mu.Lock()
	s.finalized = epoch
	s.mu.Unlock()
	s.publish(source.Event{Topic: source.TopicFinalizedCheckpoint, Epoch: epoch})
}

func (s *Source) Validators(ctx context.Context, slot common.Slot, window source.Window) ([]validator.Validator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missing[slot] {
		return nil, fmt.Errorf("%w: %d", source.ErrSlotMissing, slot)
	}
	epoch := gindex.EpochOfSlot(slot)
	epochs := maps.Keys(s.snapshots)
	slices.Sort(epochs)
	pos, found := slices.BinarySearch(epochs, epoch)
	if !found {
		if pos == 0 {
			return nil, fmt.Errorf("no snapshot at or before epoch %d", epoch)
		}
		pos--
	}
	records := s.snapshots[epochs[pos]]
	if window.Offset >= uint64(len(records)) {
		return nil, nil
	}
	records = records[window.Offset:]
	if window.Count > 0 && window.Count < uint64(len(records)) {
		records = records[:window.Count]
	}
	return slices.Clone(records), nil
}

func (s *Source) HeadEpoch(context.Context) (common.Epoch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, nil
}

func (s *Source) LastFinalizedEpoch(context.Context) (common.Epoch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized, nil
}

func (s *Source) FirstNonMissingSlotInEpoch(ctx context.Context, epoch common.Epoch) (common.Slot, error) {
	return source.FirstNonMissingSlot(ctx, epoch, func(_ context.Context, slot common.Slot) (bool, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.missing[slot], nil
	})
}

func (s *Source) Subscribe(ctx context.Context, topics []source.Topic) (*source.Subscription, error) {
	sub := source.NewSubscription(64)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, &subscriber{ctx: ctx, topics: topics, sub: sub})
	return sub, nil
}

// Close ends all subscriptions.
func (s *Source) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, cur := range s.subscribers {
		cur.sub.Close(nil)
	}
	s.subscribers = nil
}

func (s *Source) publish(event source.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	live := s.subscribers[:0]
	for _, cur := range s.subscribers {
		if cur.ctx.Err() != nil {
			cur.sub.Close(nil)
			continue
		}
		live = append(live, cur)
		if slices.Contains(cur.topics, event.Topic) {
			cur.sub.Send(cur.ctx, event)
		}
	}
	s.subscribers = live
}
