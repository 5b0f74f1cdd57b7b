// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package scheduler keeps the commitment tree in sync with the validator
// registry of the source, one epoch at a time.
package scheduler

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/hashing"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/metacraft-labs/DendrETH-sub000/source"
	"github.com/metacraft-labs/DendrETH-sub000/task"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
)

// DefaultChunkSize is the number of records loaded per batched read.
const DefaultChunkSize = 4096

type Config struct {
	StartEpoch common.Epoch
	ChunkSize  int
	Window     source.Window
	// RetryBackoff is the pause before retrying a failed step or
	// reconnecting a lost event stream.
	RetryBackoff time.Duration
}

// State is everything the scheduler knows between two steps.
type State struct {
	CurrentEpoch   common.Epoch // next epoch to synchronize
	HeadEpoch      common.Epoch
	FinalizedEpoch common.Epoch
	Snapshot       []validator.Validator // registry window as of CurrentEpoch-1
}

type Scheduler struct {
	cfg       Config
	source    source.Source
	store     versioned.Store
	committer *Committer
	queues    *queue.Set
	depth     uint8
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func New(cfg Config, src source.Source, store versioned.Store, committer *Committer, m *metrics.Metrics, log zerolog.Logger) *Scheduler {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Second
	}
	return &Scheduler{
		cfg:       cfg,
		source:    src,
		store:     store,
		committer: committer,
		queues:    committer.queues,
		depth:     committer.Depth(),
		metrics:   m,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Init resolves the chain progress and the epoch to resume from. The
// snapshot is not loaded.
func (s *Scheduler) Init(ctx context.Context) (State, error) {
	head, err := s.source.HeadEpoch(ctx)
	if err != nil {
		return State{}, err
	}
	finalized, err := s.source.LastFinalizedEpoch(ctx)
	if err != nil {
		return State{}, err
	}
	if err := s.store.SetWatermark(versioned.FinalizedCheckpoint, finalized); err != nil {
		return State{}, err
	}
	if err := s.advanceFinalized(finalized); err != nil {
		return State{}, err
	}
	current := s.cfg.StartEpoch
	lastFinalized, found, err := s.store.GetWatermark(versioned.LastFinalizedEpoch)
	if err != nil {
		return State{}, err
	}
	if found {
		current = max(current, lastFinalized+1)
	}
	s.log.Info().
		Uint64("head", uint64(head)).
		Uint64("finalized", uint64(finalized)).
		Uint64("current", uint64(current)).
		Msg("initialized")
	return State{CurrentEpoch: current, HeadEpoch: head, FinalizedEpoch: finalized}, nil
}

// Bootstrap schedules the computation of the zero hashes if that never
// happened. A tree whose root zero hash is still pending is bootstrapped
// again; the tasks are idempotent. It reports whether tasks were scheduled.
func (s *Scheduler) Bootstrap(ctx context.Context) (bool, error) {
	root, found, err := s.store.GetZero(versioned.ProofEntity, 0)
	if err != nil {
		return false, err
	}
	if found && !hashing.IsPending(root) {
		return false, nil
	}
	s.log.Info().Uint8("depth", s.depth).Msg("bootstrapping zero hashes")

	zero := validator.Zero()
	if err := s.store.SetZero(versioned.ValidatorEntity, s.depth, zero.Encode()); err != nil {
		return false, err
	}
	if err := s.store.SetZero(versioned.ProofEntity, s.depth, hashing.Pending[:]); err != nil {
		return false, err
	}
	leaves, err := s.queues.Level(s.depth)
	if err != nil {
		return false, err
	}
	// the index past the last leaf stands for the zero validator
	if err := s.committer.enqueue(ctx, leaves, task.UpdateLeafProof{Index: uint64(1) << s.depth}); err != nil {
		return false, err
	}
	for depth := int(s.depth) - 1; depth >= 0; depth-- {
		if err := s.store.SetZero(versioned.ProofEntity, uint8(depth), hashing.Pending[:]); err != nil {
			return false, err
		}
		q, err := s.queues.Level(uint8(depth))
		if err != nil {
			return false, err
		}
		if err := s.committer.enqueue(ctx, q, task.ProveZeroSubtree{Depth: uint8(depth)}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// LoadSnapshot restores the registry window as of the epoch before the
// current one from the store.
func (s *Scheduler) LoadSnapshot(ctx context.Context, st State) (State, error) {
	st.Snapshot = nil
	if st.CurrentEpoch == 0 {
		return st, nil
	}
	epoch := st.CurrentEpoch - 1
	value, err := s.store.ReadAsOf(versioned.LengthKey(), epoch)
	if err != nil {
		return st, err
	}
	if value == nil {
		return st, nil
	}
	if len(value) != 8 {
		return st, fmt.Errorf("invalid registry length record of %d bytes", len(value))
	}
	length := binary.BigEndian.Uint64(value)
	if length <= s.cfg.Window.Offset {
		return st, nil
	}
	end := length
	if s.cfg.Window.Count > 0 {
		end = min(end, s.cfg.Window.Offset+s.cfg.Window.Count)
	}

	snapshot := make([]validator.Validator, 0, end-s.cfg.Window.Offset)
	for from := s.cfg.Window.Offset; from < end; from += uint64(s.cfg.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		to := min(end, from+uint64(s.cfg.ChunkSize))
		keys := make([]versioned.Key, 0, to-from)
		for i := from; i < to; i++ {
			keys = append(keys, versioned.ValidatorKey(i, s.depth))
		}
		values, err := s.store.ReadManyAsOf(keys, epoch)
		if err != nil {
			return st, err
		}
		for i, value := range values {
			v, err := validator.Decode(value)
			if err != nil {
				return st, fmt.Errorf("invalid record of validator %d; %w", from+uint64(i), err)
			}
			snapshot = append(snapshot, v)
		}
	}
	st.Snapshot = snapshot
	s.log.Info().Int("validators", len(snapshot)).Uint64("epoch", uint64(epoch)).Msg("loaded snapshot")
	return st, nil
}

// SyncEpoch brings the tree to the registry of the current epoch and
// advances the state by one epoch. A failed step leaves the state unchanged
// and can be retried.
func (s *Scheduler) SyncEpoch(ctx context.Context, st State) (State, error) {
	epoch := st.CurrentEpoch
	slot, err := s.source.FirstNonMissingSlotInEpoch(ctx, epoch)
	if err != nil {
		return st, fmt.Errorf("failed to resolve slot of epoch %d; %w", epoch, err)
	}
	records, err := s.source.Validators(ctx, slot, s.cfg.Window)
	if err != nil {
		return st, err
	}

	changed := validator.ChangedIndices(st.Snapshot, records)
	updates := make([]validator.Indexed, len(changed))
	for i, pos := range changed {
		updates[i] = validator.Indexed{Index: s.cfg.Window.Offset + pos, Validator: records[pos]}
	}
	if err := s.committer.Commit(ctx, epoch, updates); err != nil {
		return st, err
	}
	if len(records) != len(st.Snapshot) {
		length := binary.BigEndian.AppendUint64(nil, s.cfg.Window.Offset+uint64(len(records)))
		if err := s.store.WriteVersion(versioned.LengthKey(), epoch, length); err != nil {
			return st, err
		}
	}

	if err := s.store.SetWatermark(versioned.LastProcessedEpoch, epoch); err != nil {
		return st, err
	}
	if epoch <= st.FinalizedEpoch {
		if err := s.store.SetWatermark(versioned.LastFinalizedEpoch, epoch); err != nil {
			return st, err
		}
	}

	s.metrics.EpochsSynced.Inc()
	s.metrics.ChangedValidators.Add(float64(len(changed)))
	s.metrics.CurrentEpoch.Set(float64(epoch + 1))
	s.log.Info().
		Uint64("epoch", uint64(epoch)).
		Uint64("slot", uint64(slot)).
		Int("changed", len(changed)).
		Int("validators", len(records)).
		Msg("synchronized epoch")

	st.CurrentEpoch = epoch + 1
	st.Snapshot = records
	return st, nil
}

// CatchUp synchronizes every epoch up to and including the head epoch.
func (s *Scheduler) CatchUp(ctx context.Context, st State) (State, error) {
	for st.CurrentEpoch <= st.HeadEpoch {
		if interrupt.IsCancelled(ctx) {
			return st, interrupt.ErrCanceled
		}
		next, err := s.SyncEpoch(ctx, st)
		if err != nil {
			return st, err
		}
		st = next
	}
	return st, nil
}

// Run initializes the scheduler, catches up with the head of the chain and
// then follows the head and finalization events until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	st, err := s.Init(ctx)
	if err != nil {
		return err
	}
	if _, err := s.Bootstrap(ctx); err != nil {
		return err
	}
	if st, err = s.LoadSnapshot(ctx, st); err != nil {
		return err
	}
	st = s.catchUp(ctx, st)

	topics := []source.Topic{source.TopicHead, source.TopicFinalizedCheckpoint}
	for {
		sub, err := s.source.Subscribe(ctx, topics)
		if err != nil {
			return ignoreCancel(err)
		}
		if st, err = s.follow(ctx, st, sub); err != nil {
			return ignoreCancel(err)
		}
		if interrupt.IsCancelled(ctx) {
			return nil
		}
		s.log.Warn().Err(sub.Err()).Msg("event stream ended, resubscribing")
		if err := interrupt.Sleep(ctx, s.cfg.RetryBackoff); err != nil {
			return nil
		}
		// events may have been missed while disconnected
		if head, err := s.source.HeadEpoch(ctx); err == nil {
			st.HeadEpoch = max(st.HeadEpoch, head)
		}
		st = s.catchUp(ctx, st)
	}
}

// catchUp retries CatchUp until it succeeds or ctx is cancelled. Failed
// steps leave the state at the last synchronized epoch.
func (s *Scheduler) catchUp(ctx context.Context, st State) State {
	for {
		next, err := s.CatchUp(ctx, st)
		if err == nil || interrupt.IsCancelled(ctx) {
			return next
		}
		s.log.Warn().Err(err).Uint64("epoch", uint64(next.CurrentEpoch)).Msg("synchronization failed, retrying")
		st = next
		if interrupt.Sleep(ctx, s.cfg.RetryBackoff) != nil {
			return st
		}
	}
}

// follow handles the events of one subscription until it ends.
func (s *Scheduler) follow(ctx context.Context, st State, sub *source.Subscription) (State, error) {
	for {
		select {
		case event, open := <-sub.Events():
			if !open {
				return st, nil
			}
			var err error
			if st, err = s.HandleEvent(ctx, st, event); err != nil {
				if interrupt.IsCancelled(ctx) {
					return st, nil
				}
				// the next head event retries from the last synchronized epoch
				s.log.Warn().Err(err).Str("topic", string(event.Topic)).Msg("failed to handle event")
			}
		case <-ctx.Done():
			return st, nil
		}
	}
}

// HandleEvent applies a single chain event to the state.
func (s *Scheduler) HandleEvent(ctx context.Context, st State, event source.Event) (State, error) {
	switch event.Topic {
	case source.TopicHead:
		st.HeadEpoch = max(st.HeadEpoch, event.Epoch)
		return s.CatchUp(ctx, st)
	case source.TopicFinalizedCheckpoint:
		if event.Epoch <= st.FinalizedEpoch {
			return st, nil
		}
		st.FinalizedEpoch = event.Epoch
		s.log.Debug().Uint64("epoch", uint64(event.Epoch)).Msg("new finalized checkpoint")
		if err := s.store.SetWatermark(versioned.FinalizedCheckpoint, event.Epoch); err != nil {
			return st, err
		}
		return st, s.advanceFinalized(event.Epoch)
	}
	return st, nil
}

// advanceFinalized moves the resume point up to the finalized checkpoint,
// never past the last processed epoch.
func (s *Scheduler) advanceFinalized(checkpoint common.Epoch) error {
	processed, found, err := s.store.GetWatermark(versioned.LastProcessedEpoch)
	if err != nil || !found {
		return err
	}
	target := min(checkpoint, processed)
	current, found, err := s.store.GetWatermark(versioned.LastFinalizedEpoch)
	if err != nil {
		return err
	}
	if found && current >= target {
		return nil
	}
	return s.store.SetWatermark(versioned.LastFinalizedEpoch, target)
}

func ignoreCancel(err error) error {
	if errors.Is(err, interrupt.ErrCanceled) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
