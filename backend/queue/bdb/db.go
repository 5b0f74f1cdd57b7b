// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package bdb implements the lease queue on BadgerDB. Every operation runs in
// a single Badger transaction, which makes moving an item between the queue
// and the processing set atomic. Lease markers carry a TTL and expire on
// their own.
package bdb

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Config controls how the queue database is opened.
type Config struct {
	Path       string // ignored if InMemory is set
	InMemory   bool
	SyncWrites bool
	Logger     zerolog.Logger
}

// zerologAdapter forwards Badger's internal log output to zerolog.
type zerologAdapter struct {
	log zerolog.Logger
}

func (l zerologAdapter) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l zerologAdapter) Warningf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l zerologAdapter) Infof(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l zerologAdapter) Debugf(format string, args ...any) {
	l.log.Trace().Msgf(format, args...)
}

// OpenDB opens the Badger database holding the state of all queues.
func OpenDB(cfg Config) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for a persistent queue database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s; %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(zerologAdapter{log: cfg.Logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database; %w", err)
	}
	return db, nil
}

// CollectGarbage runs one round of value log garbage collection. It returns
// false if there was nothing to collect.
func CollectGarbage(db *badger.DB, discardRatio float64) (bool, error) {
	err := db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return false, nil
	}
	return err == nil, err
}
