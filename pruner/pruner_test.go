// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pruner

import (
	"context"
	"errors"
	"testing"

	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned/memory"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/ticker"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func TestPruner_Watermark(t *testing.T) {
	tests := []struct {
		name       string
		watermarks map[string]common.Epoch
		cfg        Config
		want       common.Epoch
		found      bool
	}{
		{"nothing synchronized", map[string]common.Epoch{versioned.FinalizedCheckpoint: 10}, Config{}, 0, false},
		{"nothing finalized locally", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 10,
			versioned.LastProcessedEpoch:  8,
		}, Config{}, 0, false},
		{"bounded by processing", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 10,
			versioned.LastProcessedEpoch:  8,
			versioned.LastFinalizedEpoch:  9,
		}, Config{RetainEpochs: 2}, 6, true},
		{"bounded by finalization", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 5,
			versioned.LastProcessedEpoch:  8,
			versioned.LastFinalizedEpoch:  8,
		}, Config{}, 5, true},
		{"bounded by resume point", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 9,
			versioned.LastProcessedEpoch:  10,
			versioned.LastFinalizedEpoch:  1,
		}, Config{}, 1, true},
		{"bounded by verification", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 10,
			versioned.LastProcessedEpoch:  8,
			versioned.LastFinalizedEpoch:  8,
			versioned.LastVerifiedEpoch:   6,
		}, Config{RetainEpochs: 2}, 4, true},
		{"bounded by verifier start", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 10,
			versioned.LastProcessedEpoch:  8,
			versioned.LastFinalizedEpoch:  8,
		}, Config{Verified: true, StartEpoch: 3}, 3, true},
		{"verifier start ignored once verified", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 10,
			versioned.LastProcessedEpoch:  8,
			versioned.LastFinalizedEpoch:  8,
			versioned.LastVerifiedEpoch:   7,
		}, Config{Verified: true, StartEpoch: 3}, 7, true},
		{"retention exceeds history", map[string]common.Epoch{
			versioned.FinalizedCheckpoint: 10,
			versioned.LastProcessedEpoch:  3,
			versioned.LastFinalizedEpoch:  3,
		}, Config{RetainEpochs: 4}, 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			store := memory.NewStore()
			for name, epoch := range test.watermarks {
				if err := store.SetWatermark(name, epoch); err != nil {
					t.Fatalf("failed to set watermark; %v", err)
				}
			}
			p := New(test.cfg, store, metrics.NewUnregistered(), zerolog.Nop())
			got, found, err := p.Watermark()
			if err != nil || found != test.found || got != test.want {
				t.Errorf("unexpected watermark %d, %t, %v; wanted %d, %t", got, found, err, test.want, test.found)
			}
		})
	}
}

func TestPruner_PruneRemovesHiddenVersionsOfAllEntities(t *testing.T) {
	store := memory.NewStore()
	write := func(key versioned.Key, epochs ...common.Epoch) {
		for _, epoch := range epochs {
			if err := store.WriteVersion(key, epoch, []byte{byte(epoch)}); err != nil {
				t.Fatalf("failed to write; %v", err)
			}
		}
	}
	write(versioned.ValidatorKey(0, 2), 1, 3, 5)
	write(versioned.ProofKey(4), 1, 3)
	write(versioned.LengthKey(), 1, 5)
	_ = store.SetWatermark(versioned.FinalizedCheckpoint, 5)
	_ = store.SetWatermark(versioned.LastProcessedEpoch, 5)
	_ = store.SetWatermark(versioned.LastFinalizedEpoch, 5)

	m := metrics.NewUnregistered()
	p := New(Config{RetainEpochs: 1}, store, m, zerolog.Nop())
	removed, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("failed to prune; %v", err)
	}
	if removed != 2 {
		t.Errorf("unexpected number of removed versions %d", removed)
	}
	if got := testutil.ToFloat64(m.PrunedVersions.WithLabelValues(versioned.ValidatorEntity)); got != 1 {
		t.Errorf("unexpected metric value %f", got)
	}
	for epoch, want := range map[common.Epoch]byte{4: 3, 5: 5} {
		if value, _ := store.ReadAsOf(versioned.ValidatorKey(0, 2), epoch); len(value) != 1 || value[0] != want {
			t.Errorf("unexpected value at epoch %d: %v", epoch, value)
		}
	}
	if _, found, _ := store.LatestEpochAtOrBefore(versioned.ProofKey(4), 2); found {
		t.Errorf("hidden proof version should be removed")
	}
}

func TestPruner_StoreErrorsAreReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := versioned.NewMockStore(ctrl)
	failure := errors.New("broken")
	store.EXPECT().GetWatermark(versioned.FinalizedCheckpoint).Return(common.Epoch(0), false, failure)

	p := New(Config{}, store, metrics.NewUnregistered(), zerolog.Nop())
	if _, err := p.Prune(context.Background()); !errors.Is(err, failure) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestPruner_RunPrunesOnTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := versioned.NewMockStore(ctrl)
	store.EXPECT().GetWatermark(versioned.FinalizedCheckpoint).Return(common.Epoch(7), true, nil).Times(2)
	store.EXPECT().GetWatermark(versioned.LastProcessedEpoch).Return(common.Epoch(7), true, nil).Times(2)
	store.EXPECT().GetWatermark(versioned.LastFinalizedEpoch).Return(common.Epoch(7), true, nil).Times(2)
	store.EXPECT().GetWatermark(versioned.LastVerifiedEpoch).Return(common.Epoch(0), false, nil).Times(2)
	for _, entity := range Entities {
		// the second round may observe the cancellation before pruning
		store.EXPECT().PruneEntity(entity, common.Epoch(7)).Return(0, nil).MinTimes(1).MaxTimes(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tick := ticker.NewManualTicker()
	done := make(chan error, 1)
	go func() {
		done <- New(Config{}, store, metrics.NewUnregistered(), zerolog.Nop()).Run(ctx, tick)
	}()
	tick.Tick()
	tick.Tick()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("unexpected error %v", err)
	}
}
