// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package cleaner periodically returns items with expired leases to their
// queues.
package cleaner

import (
	"context"
	"fmt"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/common/ticker"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/rs/zerolog"
)

type Cleaner struct {
	queues  []queue.Queue
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(queues []queue.Queue, m *metrics.Metrics, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		queues:  queues,
		metrics: m,
		log:     log.With().Str("component", "cleaner").Logger(),
	}
}

// Sweep cleans every queue once and returns the number of requeued items.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	total := 0
	for _, q := range c.queues {
		if interrupt.IsCancelled(ctx) {
			return total, interrupt.ErrCanceled
		}
		requeued, err := q.Clean(ctx)
		if err != nil {
			return total, fmt.Errorf("failed to clean %s; %w", q.Name(), err)
		}
		total += requeued
		c.metrics.ItemsRequeued.WithLabelValues(q.Name()).Add(float64(requeued))
		if requeued > 0 {
			c.log.Info().Str("queue", q.Name()).Int("requeued", requeued).Msg("requeued expired items")
		}

		queued, processing, err := q.Len(ctx)
		if err != nil {
			return total, err
		}
		c.metrics.QueueDepth.WithLabelValues(q.Name(), "queued").Set(float64(queued))
		c.metrics.QueueDepth.WithLabelValues(q.Name(), "processing").Set(float64(processing))
	}
	return total, nil
}

// Run sweeps on every tick until the context is cancelled. Failed sweeps
// are logged and retried on the next tick.
func (c *Cleaner) Run(ctx context.Context, tick ticker.Ticker) error {
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C():
			if _, err := c.Sweep(ctx); err != nil && !interrupt.IsCancelled(ctx) {
				c.log.Warn().Err(err).Msg("sweep failed")
			}
		}
	}
}
