// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package pruner removes versions that can no longer be read by any epoch
// still of interest.
package pruner

import (
	"context"

	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/common/ticker"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/rs/zerolog"
)

// Entities lists everything subject to pruning.
var Entities = []string{versioned.ValidatorEntity, versioned.ProofEntity, versioned.LengthEntity}

type Config struct {
	// RetainEpochs is the number of epochs kept readable below the watermark.
	RetainEpochs common.Epoch
	// Verified keeps every epoch the verifier has yet to check readable.
	// Before the first verification that is everything from StartEpoch on.
	Verified   bool
	StartEpoch common.Epoch
}

type Pruner struct {
	cfg     Config
	store   versioned.Store
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func New(cfg Config, store versioned.Store, m *metrics.Metrics, log zerolog.Logger) *Pruner {
	return &Pruner{
		cfg:     cfg,
		store:   store,
		metrics: m,
		log:     log.With().Str("component", "pruner").Logger(),
	}
}

// Watermark returns the oldest epoch that must stay readable. It never
// exceeds the epoch a restarted scheduler reloads its snapshot from, nor any
// epoch that is not finalized, processed and, if enabled, verified.
func (p *Pruner) Watermark() (common.Epoch, bool, error) {
	watermark := common.Epoch(0)
	for i, name := range []string{
		versioned.FinalizedCheckpoint,
		versioned.LastProcessedEpoch,
		versioned.LastFinalizedEpoch,
	} {
		epoch, found, err := p.store.GetWatermark(name)
		if err != nil || !found {
			return 0, false, err
		}
		if i == 0 || epoch < watermark {
			watermark = epoch
		}
	}
	verified, found, err := p.store.GetWatermark(versioned.LastVerifiedEpoch)
	if err != nil {
		return 0, false, err
	}
	if found {
		watermark = min(watermark, verified)
	} else if p.cfg.Verified {
		watermark = min(watermark, p.cfg.StartEpoch)
	}
	if watermark < p.cfg.RetainEpochs {
		return 0, false, nil
	}
	return watermark - p.cfg.RetainEpochs, true, nil
}

// Prune drops every version hidden by a newer one at or before the
// watermark and returns the number of removed versions.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	watermark, found, err := p.Watermark()
	if err != nil || !found {
		return 0, err
	}
	total := 0
	for _, entity := range Entities {
		if interrupt.IsCancelled(ctx) {
			return total, interrupt.ErrCanceled
		}
		removed, err := p.store.PruneEntity(entity, watermark)
		if err != nil {
			return total, err
		}
		total += removed
		p.metrics.PrunedVersions.WithLabelValues(entity).Add(float64(removed))
	}
	p.log.Info().Uint64("watermark", uint64(watermark)).Int("removed", total).Msg("pruned versions")
	return total, nil
}

// Run prunes on every tick until the context is cancelled.
func (p *Pruner) Run(ctx context.Context, tick ticker.Ticker) error {
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C():
			if _, err := p.Prune(ctx); err != nil && !interrupt.IsCancelled(ctx) {
				p.log.Warn().Err(err).Msg("pruning failed")
			}
		}
	}
}
