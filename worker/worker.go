// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package worker executes the recompute tasks of the commitment tree. Tasks
// may be delivered more than once and in any order; every handler derives
// its output from stored inputs only and can be repeated safely.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/hashing"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/metacraft-labs/DendrETH-sub000/task"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
)

const (
	// ErrNotReady is reported for tasks whose inputs are not computed yet.
	ErrNotReady = common.ConstError("task inputs not ready")
	// ErrOutOfBounds is reported for tasks addressing nodes outside the tree.
	ErrOutOfBounds = common.ConstError("task outside of tree bounds")
)

// maxRequeuesPerDrain bounds the number of consecutive not-ready tasks
// tolerated by Drain.
const maxRequeuesPerDrain = 10_000

type Config struct {
	LeaseTTL     time.Duration
	PollInterval time.Duration
}

type Worker struct {
	cfg     Config
	store   versioned.Store
	hasher  hashing.Hasher
	depth   uint8
	queues  []queue.Queue // deepest level first
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a worker serving the given levels of the queue set, all
// levels if none are given.
func New(cfg Config, store versioned.Store, hasher hashing.Hasher, queues *queue.Set, levels []uint8, m *metrics.Metrics, log zerolog.Logger) (*Worker, error) {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if len(levels) == 0 {
		for level := 0; level <= int(queues.Depth()); level++ {
			levels = append(levels, uint8(level))
		}
	}
	w := &Worker{
		cfg:     cfg,
		store:   store,
		hasher:  hasher,
		depth:   queues.Depth(),
		metrics: m,
		log:     log.With().Str("component", "worker").Logger(),
	}
	// deeper levels are served first so parents tend to see fresh children
	for level := int(queues.Depth()); level >= 0; level-- {
		for _, want := range levels {
			if int(want) != level {
				continue
			}
			q, err := queues.Level(want)
			if err != nil {
				return nil, err
			}
			w.queues = append(w.queues, q)
			break
		}
	}
	if len(w.queues) == 0 {
		return nil, fmt.Errorf("no valid level among %v", levels)
	}
	return w, nil
}

// Outcome describes what ProcessOne did.
type Outcome int

const (
	Idle Outcome = iota
	Processed
	Requeued
)

// Run processes tasks until ctx is cancelled. Errors other than unready
// inputs stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	for !interrupt.IsCancelled(ctx) {
		outcome, err := w.ProcessOne(ctx)
		if err != nil {
			if interrupt.IsCancelled(ctx) {
				return nil
			}
			return err
		}
		if outcome == Idle {
			if err := interrupt.Sleep(ctx, w.cfg.PollInterval); err != nil {
				return nil
			}
		}
	}
	return nil
}

// Drain processes tasks until all served queues are empty.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	processed, requeued := 0, 0
	for {
		outcome, err := w.ProcessOne(ctx)
		if err != nil {
			return processed, err
		}
		switch outcome {
		case Idle:
			return processed, nil
		case Processed:
			processed++
			requeued = 0
		case Requeued:
			if requeued++; requeued > maxRequeuesPerDrain {
				return processed, fmt.Errorf("%w: no progress after %d attempts", ErrNotReady, requeued)
			}
		}
	}
}

// ProcessOne leases a single task from the deepest non-empty queue and
// executes it.
func (w *Worker) ProcessOne(ctx context.Context) (Outcome, error) {
	for _, q := range w.queues {
		item, err := q.Lease(ctx, w.cfg.LeaseTTL, false, 0)
		if err != nil {
			return Idle, fmt.Errorf("failed to lease from %s; %w", q.Name(), err)
		}
		if item == nil {
			continue
		}
		return w.process(ctx, q, item)
	}
	return Idle, nil
}

func (w *Worker) process(ctx context.Context, q queue.Queue, item *queue.Item) (Outcome, error) {
	t, err := task.Decode(item.Payload)
	if err != nil {
		w.log.Error().Err(err).Str("queue", q.Name()).Str("item", item.ID).Msg("malformed task")
		return Idle, err
	}
	kind := t.Kind().String()
	start := time.Now()
	err = w.Handle(t)
	w.metrics.TaskDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if errors.Is(err, ErrNotReady) {
		w.metrics.TasksProcessed.WithLabelValues(kind, "requeued").Inc()
		w.log.Debug().Err(err).Stringer("task", t.(fmt.Stringer)).Msg("requeueing task")
		if _, err := q.AddItem(ctx, item.Payload); err != nil {
			return Idle, err
		}
		if _, err := q.Complete(ctx, item); err != nil {
			return Idle, err
		}
		return Requeued, nil
	}
	if err != nil {
		w.metrics.TasksProcessed.WithLabelValues(kind, "failed").Inc()
		w.log.Error().Err(err).Stringer("task", t.(fmt.Stringer)).Msg("task failed")
		return Idle, err
	}

	completed, err := q.Complete(ctx, item)
	if err != nil {
		return Idle, err
	}
	if !completed {
		// the lease expired and the item was handed out again
		w.log.Debug().Str("item", item.ID).Msg("task was already reclaimed")
	}
	w.metrics.TasksProcessed.WithLabelValues(kind, "done").Inc()
	return Processed, nil
}

// Handle executes a single task.
func (w *Worker) Handle(t task.Task) error {
	switch t := t.(type) {
	case task.UpdateLeafProof:
		return w.updateLeafProof(t)
	case task.UpdateInnerNode:
		return w.updateInnerNode(t)
	case task.ProveZeroSubtree:
		return w.proveZeroSubtree(t)
	}
	return fmt.Errorf("%w: unsupported task %v", task.ErrMalformed, t)
}

func (w *Worker) updateLeafProof(t task.UpdateLeafProof) error {
	limit := uint64(1) << w.depth
	if t.Index > limit {
		return fmt.Errorf("%w: validator index %d", ErrOutOfBounds, t.Index)
	}
	if t.Index == limit {
		zero := validator.Zero()
		hash := w.hasher.LeafHash(&zero)
		return w.store.SetZero(versioned.ProofEntity, w.depth, hash[:])
	}
	value, err := w.store.ReadAsOf(versioned.ValidatorKey(t.Index, w.depth), t.Epoch)
	if err != nil {
		return err
	}
	if value == nil {
		return fmt.Errorf("%w: no record of validator %d at epoch %d", ErrNotReady, t.Index, t.Epoch)
	}
	record, err := validator.Decode(value)
	if err != nil {
		return err
	}
	hash := w.hasher.LeafHash(&record)
	return w.store.WriteVersion(versioned.ProofKey(gindex.FromIndex(t.Index, w.depth)), t.Epoch, hash[:])
}

func (w *Worker) updateInnerNode(t task.UpdateInnerNode) error {
	if err := gindex.Validate(t.GIndex, w.depth); err != nil || t.GIndex.Depth() >= w.depth {
		return fmt.Errorf("%w: inner node %d", ErrOutOfBounds, t.GIndex)
	}
	keys := []versioned.Key{versioned.ProofKey(t.GIndex.Left()), versioned.ProofKey(t.GIndex.Right())}
	children, err := w.store.ReadManyAsOf(keys, t.Epoch)
	if err != nil {
		return err
	}
	for i, child := range children {
		if hashing.IsPending(child) {
			return fmt.Errorf("%w: child %v of %d at epoch %d", ErrNotReady, keys[i], t.GIndex, t.Epoch)
		}
	}
	hash := w.hasher.NodeHash(common.Hash(children[0]), common.Hash(children[1]))
	return w.store.WriteVersion(versioned.ProofKey(t.GIndex), t.Epoch, hash[:])
}

func (w *Worker) proveZeroSubtree(t task.ProveZeroSubtree) error {
	if t.Depth >= w.depth {
		return fmt.Errorf("%w: zero subtree at depth %d", ErrOutOfBounds, t.Depth)
	}
	child, _, err := w.store.GetZero(versioned.ProofEntity, t.Depth+1)
	if err != nil {
		return err
	}
	if hashing.IsPending(child) {
		return fmt.Errorf("%w: zero hash at depth %d", ErrNotReady, t.Depth+1)
	}
	hash := w.hasher.NodeHash(common.Hash(child), common.Hash(child))
	return w.store.SetZero(versioned.ProofEntity, t.Depth, hash[:])
}
