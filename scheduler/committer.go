// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package scheduler

import (
	"context"
	"fmt"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/metacraft-labs/DendrETH-sub000/propagation"
	"github.com/metacraft-labs/DendrETH-sub000/task"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of writes issued concurrently.
const DefaultBatchSize = 128

// Committer writes validator versions and schedules the recomputation of
// the affected tree nodes. It is the write path shared by the scheduler and
// the reconciliation loop.
type Committer struct {
	store     versioned.Store
	queues    *queue.Set
	depth     uint8
	batchSize int
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewCommitter(store versioned.Store, queues *queue.Set, batchSize int, m *metrics.Metrics, log zerolog.Logger) *Committer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Committer{
		store:     store,
		queues:    queues,
		depth:     queues.Depth(),
		batchSize: batchSize,
		metrics:   m,
		log:       log,
	}
}

// Depth returns the depth of the tree maintained by the committer.
func (c *Committer) Depth() uint8 {
	return c.depth
}

// Commit records the given validators as of epoch, schedules their leaves
// and then every ancestor of those leaves.
func (c *Committer) Commit(ctx context.Context, epoch common.Epoch, records []validator.Indexed) error {
	if len(records) == 0 {
		return nil
	}
	leaves, err := c.queues.Level(c.depth)
	if err != nil {
		return err
	}
	indices := make([]uint64, len(records))
	for i, record := range records {
		if record.Index >= uint64(1)<<c.depth {
			return fmt.Errorf("validator index %d does not fit a tree of depth %d", record.Index, c.depth)
		}
		indices[i] = record.Index
	}

	err = forEachBatch(ctx, records, c.batchSize, func(ctx context.Context, record validator.Indexed) error {
		key := versioned.ValidatorKey(record.Index, c.depth)
		if err := c.store.WriteVersion(key, epoch, record.Validator.Encode()); err != nil {
			return fmt.Errorf("failed to write %v at epoch %d; %w", key, epoch, err)
		}
		return c.enqueue(ctx, leaves, task.UpdateLeafProof{Index: record.Index, Epoch: epoch})
	})
	if err != nil {
		return err
	}
	return c.propagate(ctx, epoch, propagation.Plan(indices, c.depth), false)
}

// Repropagate schedules the recomputation of the given nodes and all of
// their ancestors as of epoch without touching validator records.
func (c *Committer) Repropagate(ctx context.Context, epoch common.Epoch, nodes []gindex.GIndex) error {
	for _, g := range nodes {
		if err := gindex.Validate(g, c.depth); err != nil {
			return err
		}
	}
	return c.propagate(ctx, epoch, propagation.PlanFromNodes(nodes), true)
}

// propagate enqueues one task per planned node, level by level. The leaf
// level is only scheduled if includeLeaves is set.
func (c *Committer) propagate(ctx context.Context, epoch common.Epoch, planner *propagation.Planner, includeLeaves bool) error {
	for frontier, ok := planner.Next(); ok; frontier, ok = planner.Next() {
		if frontier.Level == c.depth && !includeLeaves {
			continue
		}
		q, err := c.queues.Level(frontier.Level)
		if err != nil {
			return err
		}
		err = forEachBatch(ctx, frontier.Nodes, c.batchSize, func(ctx context.Context, g gindex.GIndex) error {
			if frontier.Level == c.depth {
				return c.enqueue(ctx, q, task.UpdateLeafProof{Index: gindex.ToIndex(g, c.depth), Epoch: epoch})
			}
			return c.enqueue(ctx, q, task.UpdateInnerNode{GIndex: g, Epoch: epoch})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Committer) enqueue(ctx context.Context, q queue.Queue, t task.Task) error {
	if _, err := q.AddItem(ctx, task.Encode(t)); err != nil {
		return fmt.Errorf("failed to enqueue %v to %s; %w", t, q.Name(), err)
	}
	c.metrics.TasksEnqueued.WithLabelValues(t.Kind().String()).Inc()
	return nil
}

// forEachBatch runs fn for all elements, concurrently within groups of
// batchSize elements and sequentially across groups. Cancellation is only
// checked between groups.
func forEachBatch[T any](ctx context.Context, elements []T, batchSize int, fn func(context.Context, T) error) error {
	for start := 0; start < len(elements); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, groupCtx := errgroup.WithContext(ctx)
		for _, element := range elements[start:min(start+batchSize, len(elements))] {
			g.Go(func() error {
				return fn(groupCtx, element)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
