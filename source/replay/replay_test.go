// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/source"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
)

func TestSource_ValidatorsResolveLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetSnapshot(0, []validator.Validator{{EffectiveBalance: 1}})
	s.SetSnapshot(5, []validator.Validator{{EffectiveBalance: 2}, {EffectiveBalance: 3}, {EffectiveBalance: 4}})

	tests := []struct {
		epoch  common.Epoch
		window source.Window
		want   []uint64
	}{
		{0, source.Window{}, []uint64{1}},
		{4, source.Window{}, []uint64{1}},
		{5, source.Window{}, []uint64{2, 3, 4}},
		{9, source.Window{Offset: 1}, []uint64{3, 4}},
		{9, source.Window{Offset: 1, Count: 1}, []uint64{3}},
		{9, source.Window{Offset: 3}, nil},
	}
	for _, test := range tests {
		records, err := s.Validators(ctx, gindex.FirstSlotOfEpoch(test.epoch), test.window)
		if err != nil {
			t.Fatalf("failed to get validators; %v", err)
		}
		if len(records) != len(test.want) {
			t.Fatalf("epoch %d, window %+v: unexpected records %v", test.epoch, test.window, records)
		}
		for i, want := range test.want {
			if records[i].EffectiveBalance != want {
				t.Errorf("epoch %d: unexpected record %d: %+v", test.epoch, i, records[i])
			}
		}
	}
}

func TestSource_MissingSlotsAreSkipped(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetSnapshot(0, nil)
	first := gindex.FirstSlotOfEpoch(2)
	s.SetMissing(first, first+1)

	if _, err := s.Validators(ctx, first, source.Window{}); !errors.Is(err, source.ErrSlotMissing) {
		t.Errorf("unexpected error %v", err)
	}
	slot, err := s.FirstNonMissingSlotInEpoch(ctx, 2)
	if err != nil || slot != first+2 {
		t.Errorf("unexpected slot %d, %v", slot, err)
	}
}

func TestSource_SubscribersReceiveRequestedTopics(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), []source.Topic{source.TopicFinalizedCheckpoint})
	if err != nil {
		t.Fatalf("failed to subscribe; %v", err)
	}
	s.SetHead(3)
	s.SetFinalized(2)

	select {
	case event := <-sub.Events():
		if event.Topic != source.TopicFinalizedCheckpoint || event.Epoch != 2 {
			t.Errorf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}
	if head, _ := s.HeadEpoch(context.Background()); head != 3 {
		t.Errorf("unexpected head %d", head)
	}

	s.Close()
	if _, open := <-sub.Events(); open {
		t.Errorf("subscription should be closed")
	}
}
