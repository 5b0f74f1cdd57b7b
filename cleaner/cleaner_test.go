// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cleaner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/backend/queue/memory"
	"github.com/metacraft-labs/DendrETH-sub000/common/ticker"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newQueues(t *testing.T, c *clock) *queue.Set {
	backend := memory.NewBackend()
	backend.SetClock(c.Now)
	t.Cleanup(func() { _ = backend.Close() })
	set, err := queue.NewSet("tasks", 2, backend.Open)
	require.NoError(t, err)
	return set
}

func TestCleaner_SweepRequeuesExpiredLeases(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	set := newQueues(t, c)
	leaves, err := set.Level(2)
	require.NoError(t, err)

	for _, payload := range []string{"a", "b", "c"} {
		_, err := leaves.AddItem(ctx, []byte(payload))
		require.NoError(t, err)
	}
	expiring, err := leaves.Lease(ctx, time.Second, false, 0)
	require.NoError(t, err)
	require.NotNil(t, expiring)
	held, err := leaves.Lease(ctx, time.Hour, false, 0)
	require.NoError(t, err)
	require.NotNil(t, held)

	m := metrics.NewUnregistered()
	cleaner := New(set.All(), m, zerolog.Nop())
	requeued, err := cleaner.Sweep(ctx)
	require.NoError(t, err)
	require.Zero(t, requeued)

	c.Advance(time.Minute)
	requeued, err = cleaner.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, requeued)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ItemsRequeued.WithLabelValues(leaves.Name())))
	require.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth.WithLabelValues(leaves.Name(), "queued")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.QueueDepth.WithLabelValues(leaves.Name(), "processing")))

	completed, err := leaves.Complete(ctx, expiring)
	require.NoError(t, err)
	require.False(t, completed, "reclaimed item must not be completed by its former holder")
}

func TestCleaner_RunSweepsOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	set := newQueues(t, c)
	root, err := set.Level(0)
	require.NoError(t, err)
	_, err = root.AddItem(ctx, []byte("x"))
	require.NoError(t, err)
	_, err = root.Lease(ctx, time.Second, false, 0)
	require.NoError(t, err)
	c.Advance(time.Minute)

	m := metrics.NewUnregistered()
	tick := ticker.NewManualTicker()
	done := make(chan error, 1)
	go func() {
		done <- New(set.All(), m, zerolog.Nop()).Run(ctx, tick)
	}()
	tick.Tick()
	tick.Tick() // accepted only after the first sweep finished
	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ItemsRequeued.WithLabelValues(root.Name())))

	queued, processing, err := root.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, queued)
	require.Zero(t, processing)
}
