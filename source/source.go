// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package source defines what the commitment mapper needs from the external
// provider of validator snapshots and chain events.
package source

import (
	"context"
	"sync"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
)

//go:generate mockgen -source source.go -destination source_mocks.go -package source

const (
	// ErrSlotMissing is reported for slots without a block.
	ErrSlotMissing = common.ConstError("slot has no block")
	// ErrExhausted is reported when every endpoint failed on every attempt.
	ErrExhausted = common.ConstError("all source endpoints failed")
)

// Topic names an event stream of the source.
type Topic string

const (
	TopicHead                Topic = "head"
	TopicFinalizedCheckpoint Topic = "finalized_checkpoint"
)

// Event announces a new epoch on one of the topics.
type Event struct {
	Topic Topic
	Epoch common.Epoch
}

// Window restricts a validator fetch to Count records starting at Offset.
// A zero Count means all records from Offset on.
type Window struct {
	Offset uint64
	Count  uint64
}

// Source is the provider of validator snapshots and chain progress.
type Source interface {
	// Validators returns the validator registry as of the given slot.
	Validators(ctx context.Context, slot common.Slot, window Window) ([]validator.Validator, error)

	// HeadEpoch returns the epoch of the current head of the chain.
	HeadEpoch(ctx context.Context) (common.Epoch, error)

	// LastFinalizedEpoch returns the latest finalized epoch.
	LastFinalizedEpoch(ctx context.Context) (common.Epoch, error)

	// FirstNonMissingSlotInEpoch returns the first slot of the epoch that
	// has a block.
	FirstNonMissingSlotInEpoch(ctx context.Context, epoch common.Epoch) (common.Slot, error)

	// Subscribe opens a stream of events of the given topics. The stream
	// ends when ctx is done or the connection fails.
	Subscribe(ctx context.Context, topics []Topic) (*Subscription, error)
}

// Subscription is a stream of events. Producers feed it with Send and end it
// with Close; consumers read Events until the channel is closed and then
// consult Err.
type Subscription struct {
	events chan Event
	mu     sync.Mutex
	err    error
	done   chan struct{}
	once   sync.Once
}

func NewSubscription(buffer int) *Subscription {
	return &Subscription{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Events returns the channel delivering the events.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err returns the reason the stream ended, nil while it is running or if it
// was ended normally.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed as soon as the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Send delivers an event, waiting for the consumer. It returns false if the
// subscription or ctx ended first.
func (s *Subscription) Send(ctx context.Context, event Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream with the given error. Only the first call has an
// effect. It must not be called concurrently with Send by the producer.
func (s *Subscription) Close(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
		close(s.events)
	})
}

// FirstNonMissingSlot scans the slots of an epoch in order and returns the
// first one for which present reports a block. It is shared by Source
// implementations that can only check one slot at a time.
func FirstNonMissingSlot(ctx context.Context, epoch common.Epoch, present func(ctx context.Context, slot common.Slot) (bool, error)) (common.Slot, error) {
	for slot := gindex.FirstSlotOfEpoch(epoch); slot <= gindex.LastSlotOfEpoch(epoch); slot++ {
		found, err := present(ctx, slot)
		if err != nil {
			return 0, err
		}
		if found {
			return slot, nil
		}
	}
	return 0, ErrSlotMissing
}
