// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	queuememory "github.com/metacraft-labs/DendrETH-sub000/backend/queue/memory"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned/memory"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/hashing"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/metacraft-labs/DendrETH-sub000/task"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
)

const testDepth = 2

func newTestWorker(t *testing.T, levels ...uint8) (*Worker, *memory.Store, *queue.Set) {
	t.Helper()
	store := memory.NewStore()
	backend := queuememory.NewBackend()
	t.Cleanup(func() { _ = backend.Close() })
	queues, err := queue.NewSet("tasks", testDepth, backend.Open)
	if err != nil {
		t.Fatalf("failed to open queues; %v", err)
	}
	w, err := New(Config{LeaseTTL: time.Minute}, store, hashing.Sha256(), queues, levels, metrics.NewUnregistered(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create worker; %v", err)
	}
	return w, store, queues
}

func setZeroHashes(t *testing.T, store versioned.Store) []common.Hash {
	t.Helper()
	zero := hashing.ZeroHashes(hashing.Sha256(), testDepth)
	for depth, hash := range zero {
		if err := store.SetZero(versioned.ProofEntity, uint8(depth), hash[:]); err != nil {
			t.Fatalf("failed to set zero; %v", err)
		}
	}
	return zero
}

func readHash(t *testing.T, store versioned.Store, g gindex.GIndex, epoch common.Epoch) common.Hash {
	t.Helper()
	value, err := store.ReadAsOf(versioned.ProofKey(g), epoch)
	if err != nil {
		t.Fatalf("failed to read %d; %v", g, err)
	}
	if len(value) != common.HashSize {
		t.Fatalf("missing hash of node %d at epoch %d", g, epoch)
	}
	return common.Hash(value)
}

func TestNew_ServesDeepestLevelFirst(t *testing.T) {
	w, _, _ := newTestWorker(t, 0, 2)
	if len(w.queues) != 2 || w.queues[0].Name() != "tasks:2" || w.queues[1].Name() != "tasks:0" {
		t.Errorf("unexpected queue order")
	}
	if _, _, err := newInvalidWorker(); err == nil {
		t.Errorf("levels outside of the tree must be rejected")
	}
}

func newInvalidWorker() (*Worker, *queue.Set, error) {
	backend := queuememory.NewBackend()
	defer backend.Close()
	queues, err := queue.NewSet("tasks", 1, backend.Open)
	if err != nil {
		return nil, nil, err
	}
	w, err := New(Config{}, memory.NewStore(), hashing.Sha256(), queues, []uint8{5}, metrics.NewUnregistered(), zerolog.Nop())
	return w, queues, err
}

func TestWorker_UpdateLeafProofHashesRecordAsOfEpoch(t *testing.T) {
	w, store, _ := newTestWorker(t)
	v := validator.Validator{EffectiveBalance: 32_000_000_000}
	if err := store.WriteVersion(versioned.ValidatorKey(2, testDepth), 3, v.Encode()); err != nil {
		t.Fatalf("failed to write record; %v", err)
	}
	if err := w.Handle(task.UpdateLeafProof{Index: 2, Epoch: 5}); err != nil {
		t.Fatalf("failed to handle task; %v", err)
	}
	if got, want := readHash(t, store, gindex.FromIndex(2, testDepth), 5), hashing.Sha256().LeafHash(&v); got != want {
		t.Errorf("unexpected leaf hash %v, wanted %v", got, want)
	}
	if _, found, _ := store.LatestEpochAtOrBefore(versioned.ProofKey(6), 4); found {
		t.Errorf("leaf must only be written at the task epoch")
	}
}

func TestWorker_UpdateLeafProofOfSentinelComputesZeroLeaf(t *testing.T) {
	w, store, _ := newTestWorker(t)
	if err := w.Handle(task.UpdateLeafProof{Index: 1 << testDepth}); err != nil {
		t.Fatalf("failed to handle task; %v", err)
	}
	zero := hashing.ZeroHashes(hashing.Sha256(), testDepth)
	got, found, err := store.GetZero(versioned.ProofEntity, testDepth)
	if err != nil || !found || common.Hash(got) != zero[testDepth] {
		t.Errorf("unexpected zero leaf %x, found %t, err %v", got, found, err)
	}
}

func TestWorker_UpdateInnerNodeFallsBackToZeroHashes(t *testing.T) {
	w, store, _ := newTestWorker(t)
	zero := setZeroHashes(t, store)
	leaf := common.Hash{1, 2, 3}
	if err := store.WriteVersion(versioned.ProofKey(6), 4, leaf[:]); err != nil {
		t.Fatalf("failed to write leaf; %v", err)
	}
	if err := w.Handle(task.UpdateInnerNode{GIndex: 3, Epoch: 4}); err != nil {
		t.Fatalf("failed to handle task; %v", err)
	}
	want := hashing.Sha256().NodeHash(leaf, zero[testDepth])
	if got := readHash(t, store, 3, 4); got != want {
		t.Errorf("unexpected node hash %v, wanted %v", got, want)
	}
}

func TestWorker_PendingInputsAreNotReady(t *testing.T) {
	w, store, _ := newTestWorker(t)
	for depth := 0; depth <= testDepth; depth++ {
		if err := store.SetZero(versioned.ProofEntity, uint8(depth), hashing.Pending[:]); err != nil {
			t.Fatalf("failed to set zero; %v", err)
		}
	}
	tests := []task.Task{
		task.UpdateInnerNode{GIndex: 1, Epoch: 0},
		task.ProveZeroSubtree{Depth: 1},
		task.UpdateLeafProof{Index: 0, Epoch: 0},
	}
	for _, test := range tests {
		if err := w.Handle(test); !errors.Is(err, ErrNotReady) {
			t.Errorf("unexpected result for %v: %v", test, err)
		}
	}
}

func TestWorker_ProveZeroSubtreeHashesLevelBelow(t *testing.T) {
	w, store, _ := newTestWorker(t)
	zero := hashing.ZeroHashes(hashing.Sha256(), testDepth)
	if err := store.SetZero(versioned.ProofEntity, testDepth, zero[testDepth][:]); err != nil {
		t.Fatalf("failed to set zero; %v", err)
	}
	if err := w.Handle(task.ProveZeroSubtree{Depth: 1}); err != nil {
		t.Fatalf("failed to handle task; %v", err)
	}
	got, _, _ := store.GetZero(versioned.ProofEntity, 1)
	if common.Hash(got) != zero[1] {
		t.Errorf("unexpected zero hash at depth 1")
	}
}

func TestWorker_TasksOutsideOfTreeAreRejected(t *testing.T) {
	w, _, _ := newTestWorker(t)
	tests := []task.Task{
		task.UpdateLeafProof{Index: 1<<testDepth + 1},
		task.UpdateInnerNode{GIndex: 4},
		task.UpdateInnerNode{GIndex: 64},
		task.ProveZeroSubtree{Depth: testDepth},
	}
	for _, test := range tests {
		if err := w.Handle(test); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("unexpected result for %v: %v", test, err)
		}
	}
}

func TestWorker_MalformedPayloadIsFatal(t *testing.T) {
	w, _, queues := newTestWorker(t)
	q, _ := queues.Level(1)
	if _, err := q.AddItem(context.Background(), []byte{0xff}); err != nil {
		t.Fatalf("failed to add item; %v", err)
	}
	if _, err := w.ProcessOne(context.Background()); !errors.Is(err, task.ErrMalformed) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestWorker_NotReadyTaskIsPutBack(t *testing.T) {
	ctx := context.Background()
	w, _, queues := newTestWorker(t)
	q, _ := queues.Level(0)
	if _, err := q.AddItem(ctx, task.Encode(task.UpdateInnerNode{GIndex: 1})); err != nil {
		t.Fatalf("failed to add item; %v", err)
	}
	outcome, err := w.ProcessOne(ctx)
	if err != nil || outcome != Requeued {
		t.Fatalf("unexpected outcome %v, err %v", outcome, err)
	}
	queued, processing, _ := q.Len(ctx)
	if queued != 1 || processing != 0 {
		t.Errorf("unexpected queue state %d/%d", queued, processing)
	}
}

func TestWorker_DrainComputesZeroHashesInAnyEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	w, store, queues := newTestWorker(t)
	for depth := 0; depth <= testDepth; depth++ {
		if err := store.SetZero(versioned.ProofEntity, uint8(depth), hashing.Pending[:]); err != nil {
			t.Fatalf("failed to set zero; %v", err)
		}
	}
	enqueue := func(level uint8, tsk task.Task) {
		q, _ := queues.Level(level)
		if _, err := q.AddItem(ctx, task.Encode(tsk)); err != nil {
			t.Fatalf("failed to add item; %v", err)
		}
	}
	enqueue(0, task.ProveZeroSubtree{Depth: 0})
	enqueue(1, task.ProveZeroSubtree{Depth: 1})
	enqueue(testDepth, task.UpdateLeafProof{Index: 1 << testDepth})

	processed, err := w.Drain(ctx)
	if err != nil {
		t.Fatalf("failed to drain; %v", err)
	}
	if processed != 3 {
		t.Errorf("unexpected number of processed tasks %d", processed)
	}
	zero := hashing.ZeroHashes(hashing.Sha256(), testDepth)
	for depth, want := range zero {
		got, _, _ := store.GetZero(versioned.ProofEntity, uint8(depth))
		if common.Hash(got) != want {
			t.Errorf("unexpected zero hash at depth %d", depth)
		}
	}
}

func TestWorker_RunStopsOnCancellation(t *testing.T) {
	w, _, _ := newTestWorker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
