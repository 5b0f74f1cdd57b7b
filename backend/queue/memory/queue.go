// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package memory provides an in-process lease queue. All queues of a Backend
// share state by name, so several consumers opened on the same backend
// compete for the same items just like separate processes on a shared store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"golang.org/x/exp/slices"
)

type Backend struct {
	mu     sync.Mutex
	queues map[string]*state
	now    func() time.Time
	closed bool
}

type lease struct {
	session string
	expiry  time.Time
}

type state struct {
	main       []string
	processing []string
	items      map[string][]byte
	leases     map[string]lease
	wake       chan struct{} // closed and replaced whenever main grows
}

func NewBackend() *Backend {
	return &Backend{
		queues: map[string]*state{},
		now:    time.Now,
	}
}

// SetClock replaces the time source used for lease expiry.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Open returns a new consumer session on the named queue.
func (b *Backend) Open(name string) (queue.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, common.ErrClosed
	}
	if _, found := b.queues[name]; !found {
		b.queues[name] = &state{
			items:  map[string][]byte{},
			leases: map[string]lease{},
			wake:   make(chan struct{}),
		}
	}
	return &Queue{backend: b, name: name, session: uuid.NewString()}, nil
}

// Close wakes up all blocked consumers and rejects further operations.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, s := range b.queues {
		close(s.wake)
	}
	return nil
}

type Queue struct {
	backend *Backend
	name    string
	session string
}

func (q *Queue) Name() string {
	return q.name
}

// Session returns the id identifying the leases of this consumer.
func (q *Queue) Session() string {
	return q.session
}

// lock acquires the backend lock and resolves the state of the queue.
func (q *Queue) lock() (*state, error) {
	q.backend.mu.Lock()
	if q.backend.closed {
		q.backend.mu.Unlock()
		return nil, common.ErrClosed
	}
	return q.backend.queues[q.name], nil
}

func (q *Queue) unlock() {
	q.backend.mu.Unlock()
}

func (q *Queue) AddItem(ctx context.Context, payload []byte) (string, error) {
	s, err := q.lock()
	if err != nil {
		return "", err
	}
	defer q.unlock()
	id := uuid.NewString()
	s.items[id] = slices.Clone(payload)
	s.push(id)
	return id, nil
}

func (q *Queue) Lease(ctx context.Context, ttl time.Duration, block bool, timeout time.Duration) (*queue.Item, error) {
	var deadline <-chan time.Time
	if block && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		s, err := q.lock()
		if err != nil {
			return nil, err
		}
		if len(s.main) > 0 {
			id := s.main[0]
			s.main = s.main[1:]
			s.processing = append(s.processing, id)
			s.leases[id] = lease{session: q.session, expiry: q.backend.now().Add(ttl)}
			item := &queue.Item{ID: id, Payload: slices.Clone(s.items[id])}
			q.unlock()
			return item, nil
		}
		wake := s.wake
		q.unlock()

		if !block {
			return nil, nil
		}
		select {
		case <-wake:
		case <-deadline:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) Complete(ctx context.Context, item *queue.Item) (bool, error) {
	s, err := q.lock()
	if err != nil {
		return false, err
	}
	defer q.unlock()
	pos := slices.Index(s.processing, item.ID)
	if pos < 0 {
		return false, nil
	}
	s.processing = slices.Delete(s.processing, pos, pos+1)
	delete(s.items, item.ID)
	delete(s.leases, item.ID)
	return true, nil
}

func (q *Queue) LeaseExists(ctx context.Context, id string) (bool, error) {
	s, err := q.lock()
	if err != nil {
		return false, err
	}
	defer q.unlock()
	return s.leaseExists(id, q.backend.now()), nil
}

// Clean requeues expired items. Sweeps hold the backend lock, so there is no
// intermediate cleaning state to recover from.
func (q *Queue) Clean(ctx context.Context) (int, error) {
	s, err := q.lock()
	if err != nil {
		return 0, err
	}
	defer q.unlock()
	now := q.backend.now()
	requeued := 0
	kept := s.processing[:0]
	var expired []string
	for _, id := range s.processing {
		if s.leaseExists(id, now) {
			kept = append(kept, id)
		} else {
			expired = append(expired, id)
		}
	}
	s.processing = kept
	for _, id := range expired {
		delete(s.leases, id)
		s.push(id)
		requeued++
	}
	return requeued, nil
}

func (q *Queue) Len(ctx context.Context) (int, int, error) {
	s, err := q.lock()
	if err != nil {
		return 0, 0, err
	}
	defer q.unlock()
	return len(s.main), len(s.processing), nil
}

func (s *state) push(id string) {
	s.main = append(s.main, id)
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *state) leaseExists(id string, now time.Time) bool {
	l, found := s.leases[id]
	return found && now.Before(l.expiry)
}
