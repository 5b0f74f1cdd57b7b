// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package reconcile re-derives the commitment tree of finalized epochs from
// the external source and repairs the stored tree where the two disagree.
// It runs independently of the scheduler and only reads its watermarks.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/common/ticker"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/hashing"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/metacraft-labs/DendrETH-sub000/source"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

// ErrZeroHashesNotReady is returned while the stored zero-subtree hashes
// differ from the expected ones, e.g. before bootstrapping completed.
const ErrZeroHashesNotReady = common.ConstError("zero hashes are not computed yet")

// Repairer re-runs the write and propagation path for a set of leaves or
// nodes at a given epoch.
type Repairer interface {
	Depth() uint8
	Commit(ctx context.Context, epoch common.Epoch, records []validator.Indexed) error
	Repropagate(ctx context.Context, epoch common.Epoch, nodes []gindex.GIndex) error
}

type Config struct {
	// StartEpoch is the first epoch verified on a fresh store.
	StartEpoch common.Epoch
	Window     source.Window
	// Backoff is the pause after a repair or a failed step.
	Backoff time.Duration
}

// Result describes the outcome of verifying a single epoch.
type Result struct {
	Epoch common.Epoch
	Match bool
	// Leaves lists the validator indices whose stored record was wrong.
	Leaves []uint64
	// StaleNodes lists nodes whose inputs were correct but whose stored
	// hash was not.
	StaleNodes  []gindex.GIndex
	Comparisons int
}

type Verifier struct {
	cfg      Config
	source   source.Source
	store    versioned.Store
	repairer Repairer
	hasher   hashing.Hasher
	depth    uint8
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func New(cfg Config, src source.Source, store versioned.Store, repairer Repairer, hasher hashing.Hasher, m *metrics.Metrics, log zerolog.Logger) *Verifier {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 10 * time.Second
	}
	return &Verifier{
		cfg:      cfg,
		source:   src,
		store:    store,
		repairer: repairer,
		hasher:   hasher,
		depth:    repairer.Depth(),
		metrics:  m,
		log:      log.With().Str("component", "verifier").Logger(),
	}
}

// Bounds returns the range of epochs that may be verified next. The range
// is empty if first > last.
func (v *Verifier) Bounds() (first, last common.Epoch, empty bool, err error) {
	first = v.cfg.StartEpoch
	verified, found, err := v.store.GetWatermark(versioned.LastVerifiedEpoch)
	if err != nil {
		return 0, 0, true, err
	}
	if found {
		first = max(first, verified+1)
	}
	finalized, found, err := v.store.GetWatermark(versioned.FinalizedCheckpoint)
	if err != nil || !found {
		return first, 0, true, err
	}
	processed, found, err := v.store.GetWatermark(versioned.LastProcessedEpoch)
	if err != nil || !found {
		return first, 0, true, err
	}
	last = min(finalized, processed)
	return first, last, first > last, nil
}

// Verify compares the stored tree of the given epoch against the tree
// derived from the source. On mismatch it bisects from the root, following
// only diverging subtrees, to locate the wrong leaves and nodes.
func (v *Verifier) Verify(ctx context.Context, epoch common.Epoch) (Result, error) {
	res, _, err := v.verify(ctx, epoch)
	return res, err
}

func (v *Verifier) verify(ctx context.Context, epoch common.Epoch) (Result, []validator.Validator, error) {
	res := Result{Epoch: epoch}
	if err := v.checkZeroHashes(); err != nil {
		return res, nil, err
	}
	slot, err := v.source.FirstNonMissingSlotInEpoch(ctx, epoch)
	if err != nil {
		return res, nil, fmt.Errorf("failed to resolve slot of epoch %d; %w", epoch, err)
	}
	records, err := v.source.Validators(ctx, slot, v.cfg.Window)
	if err != nil {
		return res, nil, err
	}
	res, err = v.compare(ctx, epoch, records)
	return res, records, err
}

func (v *Verifier) compare(ctx context.Context, epoch common.Epoch, records []validator.Validator) (Result, error) {
	res := Result{Epoch: epoch}
	if v.cfg.Window.Offset+uint64(len(records)) > uint64(1)<<v.depth {
		return res, fmt.Errorf("registry of %d validators does not fit a tree of depth %d", len(records), v.depth)
	}
	tree := hashing.BuildWindowTree(v.hasher, v.depth, v.cfg.Window.Offset, records)

	differs := func(g gindex.GIndex) (bool, error) {
		res.Comparisons++
		stored, err := v.store.ReadAsOf(versioned.ProofKey(g), epoch)
		if err != nil {
			return false, err
		}
		return hashing.IsPending(stored) || common.Hash(stored) != tree.Node(g), nil
	}

	mismatch, err := differs(gindex.Root)
	if err != nil || !mismatch {
		res.Match = err == nil
		return res, err
	}

	pending := []gindex.GIndex{gindex.Root}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		g := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if g.Depth() == v.depth {
			index := gindex.ToIndex(g, v.depth)
			wrong, err := v.recordDiffers(index, epoch, records)
			if err != nil {
				return res, err
			}
			if wrong {
				res.Leaves = append(res.Leaves, index)
			} else {
				res.StaleNodes = append(res.StaleNodes, g)
			}
			continue
		}

		left, err := differs(g.Left())
		if err != nil {
			return res, err
		}
		right, err := differs(g.Right())
		if err != nil {
			return res, err
		}
		if right {
			pending = append(pending, g.Right())
		}
		if left {
			pending = append(pending, g.Left())
		}
		if !left && !right {
			res.StaleNodes = append(res.StaleNodes, g)
		}
	}
	slices.Sort(res.Leaves)
	slices.Sort(res.StaleNodes)
	return res, nil
}

// checkZeroHashes makes sure every unpopulated subtree resolves to the right
// hash. Bisection would otherwise descend into all of them.
func (v *Verifier) checkZeroHashes() error {
	for depth, want := range hashing.ZeroHashes(v.hasher, v.depth) {
		got, found, err := v.store.GetZero(versioned.ProofEntity, uint8(depth))
		if err != nil {
			return err
		}
		if !found || hashing.IsPending(got) || common.Hash(got) != want {
			return fmt.Errorf("%w: depth %d", ErrZeroHashesNotReady, depth)
		}
	}
	return nil
}

func (v *Verifier) recordDiffers(index uint64, epoch common.Epoch, records []validator.Validator) (bool, error) {
	want := v.canonicalRecord(index, records)
	stored, err := v.store.ReadAsOf(versioned.ValidatorKey(index, v.depth), epoch)
	if err != nil || stored == nil {
		return true, err
	}
	got, err := validator.Decode(stored)
	if err != nil {
		return true, nil
	}
	return got != want, nil
}

func (v *Verifier) canonicalRecord(index uint64, records []validator.Validator) validator.Validator {
	if index < v.cfg.Window.Offset || index-v.cfg.Window.Offset >= uint64(len(records)) {
		return validator.Zero()
	}
	return records[index-v.cfg.Window.Offset]
}

// Repair schedules the recomputation of everything a failed verification
// located, tagged with the verified epoch.
func (v *Verifier) Repair(ctx context.Context, res Result, records []validator.Validator) error {
	if len(res.Leaves) > 0 {
		updates := make([]validator.Indexed, len(res.Leaves))
		for i, index := range res.Leaves {
			updates[i] = validator.Indexed{Index: index, Validator: v.canonicalRecord(index, records)}
		}
		if err := v.repairer.Commit(ctx, res.Epoch, updates); err != nil {
			return err
		}
		v.metrics.RepairedNodes.WithLabelValues("leaf").Add(float64(len(res.Leaves)))
	}
	if len(res.StaleNodes) > 0 {
		if err := v.repairer.Repropagate(ctx, res.Epoch, res.StaleNodes); err != nil {
			return err
		}
		v.metrics.RepairedNodes.WithLabelValues("node").Add(float64(len(res.StaleNodes)))
	}
	return nil
}

// Outcome of a single Step.
type Outcome int

const (
	Idle Outcome = iota
	Verified
	Repaired
)

// Step verifies the next unverified epoch. A matching epoch advances the
// last verified watermark; a mismatch schedules a repair and leaves the
// watermark untouched so that the same epoch is checked again.
func (v *Verifier) Step(ctx context.Context) (Outcome, Result, error) {
	first, _, empty, err := v.Bounds()
	if err != nil || empty {
		return Idle, Result{}, err
	}
	res, records, err := v.verify(ctx, first)
	if err != nil {
		return Idle, res, err
	}
	if res.Match {
		if err := v.store.SetWatermark(versioned.LastVerifiedEpoch, first); err != nil {
			return Idle, res, err
		}
		v.metrics.LastVerifiedEpoch.Set(float64(first))
		v.log.Debug().Uint64("epoch", uint64(first)).Int("comparisons", res.Comparisons).Msg("verified epoch")
		return Verified, res, nil
	}

	v.metrics.Mismatches.Inc()
	v.log.Warn().
		Uint64("epoch", uint64(first)).
		Int("leaves", len(res.Leaves)).
		Int("nodes", len(res.StaleNodes)).
		Int("comparisons", res.Comparisons).
		Msg("stored root differs, scheduling repair")

	if err := v.Repair(ctx, res, records); err != nil {
		return Idle, res, err
	}
	return Repaired, res, nil
}

// Run verifies epochs until the context is cancelled. Whenever nothing is
// left to verify it waits for the next tick.
func (v *Verifier) Run(ctx context.Context, tick ticker.Ticker) error {
	defer tick.Stop()
	for !interrupt.IsCancelled(ctx) {
		outcome, _, err := v.Step(ctx)
		switch {
		case interrupt.IsCancelled(ctx):
			return nil
		case err != nil:
			v.log.Warn().Err(err).Dur("backoff", v.cfg.Backoff).Msg("verification failed")
			_ = interrupt.Sleep(ctx, v.cfg.Backoff)
		case outcome == Repaired:
			_ = interrupt.Sleep(ctx, v.cfg.Backoff)
		case outcome == Idle:
			select {
			case <-tick.C():
			case <-ctx.Done():
			}
		}
	}
	return nil
}
