// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package bdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
)

const (
	// maxConflictRetries bounds the retries of a transaction that lost a race.
	maxConflictRetries = 64
	// defaultPollInterval is the pause between attempts of a blocking lease.
	defaultPollInterval = 50 * time.Millisecond
)

// Queue is one consumer session on a named queue. The queue state is kept
// under the following keys:
//
//	{name}:tail               next free position, shared by all sessions
//	{name}:queue:{pos}        item id, ordered by position
//	{name}:queued:{id}        position of a queued item
//	{name}:processing:{id}    set of leased items
//	{name}:cleaning:{id}      items being moved back by the cleaner
//	{name}:leased_by:{id}     session and expiry of the lease, with TTL
//	{name}:item:{id}          payload
type Queue struct {
	db           *badger.DB
	name         string
	session      string
	now          func() time.Time
	pollInterval time.Duration
}

// Option customizes a queue session.
type Option func(*Queue)

// WithClock replaces the time source used for lease expiry.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

// WithPollInterval sets the pause between attempts of a blocking lease.
func WithPollInterval(interval time.Duration) Option {
	return func(q *Queue) {
		q.pollInterval = interval
	}
}

// Open starts a new consumer session on the named queue.
func Open(db *badger.DB, name string, opts ...Option) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("queue name must not be empty")
	}
	q := &Queue{
		db:           db,
		name:         name,
		session:      uuid.NewString(),
		now:          time.Now,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Close ends the session. Leases it holds expire on their own.
func (q *Queue) Close() error {
	return nil
}

func (q *Queue) Name() string {
	return q.name
}

// Session returns the id identifying the leases of this consumer.
func (q *Queue) Session() string {
	return q.session
}

func (q *Queue) AddItem(ctx context.Context, payload []byte) (string, error) {
	id := uuid.NewString()
	err := q.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(q.key("item", id), payload); err != nil {
			return err
		}
		return q.push(txn, id)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (q *Queue) Lease(ctx context.Context, ttl time.Duration, block bool, timeout time.Duration) (*queue.Item, error) {
	var deadline time.Time
	if block && timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		item, err := q.tryLease(ctx, ttl)
		if err != nil || item != nil || !block {
			return item, err
		}
		wait := q.pollInterval
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return nil, nil
			}
			wait = min(wait, left)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) tryLease(ctx context.Context, ttl time.Duration) (*queue.Item, error) {
	var res *queue.Item
	err := q.update(ctx, func(txn *badger.Txn) error {
		res = nil
		posKey, id, found, err := q.head(txn)
		if err != nil || !found {
			return err
		}
		if err := txn.Delete(posKey); err != nil {
			return err
		}
		if err := txn.Delete(q.key("queued", id)); err != nil {
			return err
		}
		if err := txn.Set(q.key("processing", id), nil); err != nil {
			return err
		}
		if err := txn.SetEntry(q.leaseEntry(id, ttl)); err != nil {
			return err
		}
		payload, err := get(txn, q.key("item", id))
		if err != nil {
			return err
		}
		res = &queue.Item{ID: id, Payload: payload}
		return nil
	})
	return res, err
}

func (q *Queue) Complete(ctx context.Context, item *queue.Item) (bool, error) {
	completed := false
	err := q.update(ctx, func(txn *badger.Txn) error {
		completed = false
		if found, err := exists(txn, q.key("processing", item.ID)); err != nil || !found {
			return err
		}
		for _, key := range [][]byte{q.key("processing", item.ID), q.key("item", item.ID), q.key("leased_by", item.ID)} {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		completed = true
		return nil
	})
	return completed, err
}

func (q *Queue) LeaseExists(ctx context.Context, id string) (bool, error) {
	res := false
	err := q.db.View(func(txn *badger.Txn) error {
		var err error
		res, err = q.leaseExists(txn, id)
		return err
	})
	return res, err
}

func (q *Queue) Clean(ctx context.Context) (int, error) {
	requeued := 0

	// move expired items to the cleaning set, then back to the queue
	processing, err := q.ids("processing")
	if err != nil {
		return 0, err
	}
	for _, id := range processing {
		if err := ctx.Err(); err != nil {
			return requeued, err
		}
		moved := false
		err := q.update(ctx, func(txn *badger.Txn) error {
			moved = false
			if found, err := exists(txn, q.key("processing", id)); err != nil || !found {
				return err
			}
			if alive, err := q.leaseExists(txn, id); err != nil || alive {
				return err
			}
			if err := txn.Delete(q.key("processing", id)); err != nil {
				return err
			}
			moved = true
			return txn.Set(q.key("cleaning", id), nil)
		})
		if err != nil {
			return requeued, err
		}
		if !moved {
			continue
		}
		if err := q.requeue(ctx, id); err != nil {
			return requeued, err
		}
		requeued++
	}

	// recover items left in the cleaning set by an interrupted sweep
	cleaning, err := q.ids("cleaning")
	if err != nil {
		return requeued, err
	}
	for _, id := range cleaning {
		recovered := false
		err := q.update(ctx, func(txn *badger.Txn) error {
			recovered = false
			if found, err := exists(txn, q.key("cleaning", id)); err != nil || !found {
				return err
			}
			queued, err := exists(txn, q.key("queued", id))
			if err != nil {
				return err
			}
			processing, err := exists(txn, q.key("processing", id))
			if err != nil {
				return err
			}
			if !queued && !processing {
				if err := q.push(txn, id); err != nil {
					return err
				}
				recovered = true
			}
			return txn.Delete(q.key("cleaning", id))
		})
		if err != nil {
			return requeued, err
		}
		if recovered {
			requeued++
		}
	}
	return requeued, nil
}

func (q *Queue) Len(ctx context.Context) (int, int, error) {
	var queued, processing int
	err := q.db.View(func(txn *badger.Txn) error {
		queued = count(txn, q.prefix("queue"))
		processing = count(txn, q.prefix("processing"))
		return nil
	})
	return queued, processing, err
}

// requeue moves an item from the cleaning set back to the tail of the queue.
func (q *Queue) requeue(ctx context.Context, id string) error {
	return q.update(ctx, func(txn *badger.Txn) error {
		if err := q.push(txn, id); err != nil {
			return err
		}
		if err := txn.Delete(q.key("leased_by", id)); err != nil {
			return err
		}
		return txn.Delete(q.key("cleaning", id))
	})
}

// push appends an item id to the tail of the queue. Reading the tail makes
// concurrent pushes conflict, so positions follow the commit order.
func (q *Queue) push(txn *badger.Txn, id string) error {
	tailKey := []byte(q.name + ":tail")
	var pos uint64
	value, err := get(txn, tailKey)
	switch {
	case err == nil && len(value) == 8:
		pos = binary.BigEndian.Uint64(value)
	case err == nil:
		return fmt.Errorf("corrupted tail position of %s", q.name)
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}
	if err := txn.Set(tailKey, binary.BigEndian.AppendUint64(nil, pos+1)); err != nil {
		return err
	}
	posBytes := binary.BigEndian.AppendUint64(nil, pos)
	if err := txn.Set(append(q.prefix("queue"), posBytes...), []byte(id)); err != nil {
		return err
	}
	return txn.Set(q.key("queued", id), posBytes)
}

// head returns the first element of the queue.
func (q *Queue) head(txn *badger.Txn) ([]byte, string, bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = q.prefix("queue")
	it := txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	if !it.Valid() {
		return nil, "", false, nil
	}
	id, err := it.Item().ValueCopy(nil)
	if err != nil {
		return nil, "", false, err
	}
	return it.Item().KeyCopy(nil), string(id), true, nil
}

func (q *Queue) leaseEntry(id string, ttl time.Duration) *badger.Entry {
	expiry := q.now().Add(ttl)
	value := binary.BigEndian.AppendUint64(nil, uint64(expiry.UnixNano()))
	value = append(value, q.session...)
	// the TTL only reclaims space, expiry is decided on the stored deadline
	return badger.NewEntry(q.key("leased_by", id), value).WithTTL(ttl.Truncate(time.Second) + 2*time.Second)
}

func (q *Queue) leaseExists(txn *badger.Txn, id string) (bool, error) {
	value, err := get(txn, q.key("leased_by", id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(value) < 8 {
		return false, fmt.Errorf("corrupted lease marker of %s in %s", id, q.name)
	}
	expiry := time.Unix(0, int64(binary.BigEndian.Uint64(value)))
	return q.now().Before(expiry), nil
}

// ids lists the item ids of one of the sets of the queue.
func (q *Queue) ids(set string) ([]string, error) {
	var res []string
	prefix := q.prefix(set)
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			res = append(res, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
		}
		return nil
	})
	return res, err
}

// update runs fn in a read-write transaction, retrying on conflicts with
// concurrent sessions.
func (q *Queue) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := q.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) || i >= maxConflictRetries {
			return err
		}
	}
}

func (q *Queue) prefix(set string) []byte {
	return []byte(q.name + ":" + set + ":")
}

func (q *Queue) key(set string, id string) []byte {
	return append(q.prefix(set), id...)
}

func get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func count(txn *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	res := 0
	for it.Rewind(); it.Valid(); it.Next() {
		res++
	}
	return res
}
