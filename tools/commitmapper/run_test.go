// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue/bdb"
	"github.com/metacraft-labs/DendrETH-sub000/config"
	"github.com/rs/zerolog"
)

func TestNode_OpenQueuesStartsSessionsOfTheirOwn(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Tree.Depth = 3
	cfg.Store.Path = filepath.Join(dir, "store")
	cfg.Queue.Path = filepath.Join(dir, "queue")
	n, err := openNode(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open node; %v", err)
	}
	defer func() {
		if err := n.Close(); err != nil {
			t.Errorf("failed to close node; %v", err)
		}
	}()

	other, err := n.openQueues()
	if err != nil {
		t.Fatalf("failed to open queues; %v", err)
	}
	for level := uint8(0); level <= cfg.Tree.Depth; level++ {
		a, err := n.queues.Level(level)
		if err != nil {
			t.Fatalf("failed to get queue; %v", err)
		}
		b, err := other.Level(level)
		if err != nil {
			t.Fatalf("failed to get queue; %v", err)
		}
		if a.Name() != b.Name() {
			t.Errorf("level %d: queue names differ, %s vs %s", level, a.Name(), b.Name())
		}
		if a.(*bdb.Queue).Session() == b.(*bdb.Queue).Session() {
			t.Errorf("level %d: sessions should differ", level)
		}
	}
	if want, got := 2*int(cfg.Tree.Depth+1), len(n.opened); want != got {
		t.Errorf("unexpected number of tracked sessions, wanted %d, got %d", want, got)
	}

	// both sets operate on the same items
	ctx := context.Background()
	a, _ := n.queues.Level(2)
	b, _ := other.Level(2)
	id, err := a.AddItem(ctx, []byte("task"))
	if err != nil {
		t.Fatalf("failed to add item; %v", err)
	}
	item, err := b.Lease(ctx, time.Minute, false, 0)
	if err != nil || item == nil || item.ID != id {
		t.Errorf("unexpected lease %v, %v", item, err)
	}
}
