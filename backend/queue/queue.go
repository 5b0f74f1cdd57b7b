// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package queue defines a lease-based work queue shared by the producers and
// consumers of tree recompute tasks. Delivery is at-least-once: an item whose
// lease expires before it is completed is put back by the cleaner and may be
// handed out again, so consumers must be idempotent.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/common"
)

//go:generate mockgen -source queue.go -destination queue_mocks.go -package queue

// ErrInvalidLevel is returned when addressing a queue outside the tree.
const ErrInvalidLevel = common.ConstError("queue level out of range")

// Item is a leased queue element.
type Item struct {
	ID      string
	Payload []byte
}

// Queue is a single named lease queue. Each Queue value is one consumer
// session; leases taken through it are owned by that session.
type Queue interface {
	// Name returns the name of the queue.
	Name() string

	// AddItem stores the payload and appends it to the tail of the queue.
	AddItem(ctx context.Context, payload []byte) (string, error)

	// Lease moves the head of the queue to the processing set and marks it as
	// leased by this session for the given ttl. If the queue is empty and
	// block is set, it waits up to timeout for an item, forever if timeout
	// is zero. It returns nil if no item became available.
	Lease(ctx context.Context, ttl time.Duration, block bool, timeout time.Duration) (*Item, error)

	// Complete removes a leased item for good. It returns false if the item
	// was no longer being processed, i.e. it was already completed or was
	// reclaimed by the cleaner; nothing is changed in that case.
	Complete(ctx context.Context, item *Item) (bool, error)

	// LeaseExists reports whether the lease on the given item is still valid.
	LeaseExists(ctx context.Context, id string) (bool, error)

	// Clean puts every processed item with an expired lease back to the tail
	// of the queue and recovers items left behind by an interrupted clean.
	// It returns the number of requeued items.
	Clean(ctx context.Context) (int, error)

	// Len returns the number of queued and processing items.
	Len(ctx context.Context) (queued int, processing int, err error)
}

// Name renders the name of the queue serving one tree level.
func Name(prefix string, level uint8) string {
	return fmt.Sprintf("%s:%d", prefix, level)
}

// Set groups the queues of every tree level, from the root at level 0 to the
// leaves at level depth.
type Set struct {
	prefix string
	queues []Queue
}

// NewSet opens one queue per level of a tree of the given depth.
func NewSet(prefix string, depth uint8, open func(name string) (Queue, error)) (*Set, error) {
	queues := make([]Queue, 0, int(depth)+1)
	for level := 0; level <= int(depth); level++ {
		q, err := open(Name(prefix, uint8(level)))
		if err != nil {
			return nil, fmt.Errorf("failed to open queue for level %d; %w", level, err)
		}
		queues = append(queues, q)
	}
	return &Set{prefix: prefix, queues: queues}, nil
}

// Depth returns the deepest level covered by the set.
func (s *Set) Depth() uint8 {
	return uint8(len(s.queues) - 1)
}

// Level returns the queue of the given tree level.
func (s *Set) Level(level uint8) (Queue, error) {
	if int(level) >= len(s.queues) {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidLevel, level, s.Depth())
	}
	return s.queues[level], nil
}

// All returns the queues ordered from the root level to the leaf level.
func (s *Set) All() []Queue {
	return s.queues
}
