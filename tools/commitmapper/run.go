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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/backend/queue/bdb"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned/ldb"
	"github.com/metacraft-labs/DendrETH-sub000/cleaner"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/common/ticker"
	"github.com/metacraft-labs/DendrETH-sub000/config"
	"github.com/metacraft-labs/DendrETH-sub000/hashing"
	"github.com/metacraft-labs/DendrETH-sub000/metrics"
	"github.com/metacraft-labs/DendrETH-sub000/pruner"
	"github.com/metacraft-labs/DendrETH-sub000/reconcile"
	"github.com/metacraft-labs/DendrETH-sub000/scheduler"
	"github.com/metacraft-labs/DendrETH-sub000/source"
	"github.com/metacraft-labs/DendrETH-sub000/source/beaconapi"
	"github.com/metacraft-labs/DendrETH-sub000/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

const (
	roleScheduler = "scheduler"
	roleWorker    = "worker"
	roleCleaner   = "cleaner"
	roleVerifier  = "verifier"
	rolePruner    = "pruner"
)

var allRoles = []string{roleScheduler, roleWorker, roleCleaner, roleVerifier, rolePruner}

var (
	rolesFlag = cli.StringSliceFlag{
		Name:  "roles",
		Usage: "roles to run, any of " + strings.Join(allRoles, ", "),
		Value: cli.NewStringSlice(allRoles...),
	}
	startEpochFlag = cli.Uint64Flag{
		Name:  "start-epoch",
		Usage: "first epoch to synchronize on an empty store",
	}
)

var runCommand = cli.Command{
	Action: run,
	Name:   "run",
	Usage:  "runs the selected roles until interrupted",
	Flags: []cli.Flag{
		&rolesFlag,
		&startEpochFlag,
	},
}

func startEpoch(ctx *cli.Context) common.Epoch {
	return common.Epoch(ctx.Uint64(startEpochFlag.Name))
}

// node bundles everything the roles share.
type node struct {
	cfg       config.Config
	store     *ldb.Store
	db        *badger.DB
	queues    *queue.Set
	opened    []*bdb.Queue
	hasher    hashing.Hasher
	source    *beaconapi.Client
	committer *scheduler.Committer
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	log       zerolog.Logger
}

func openNode(cfg config.Config, log zerolog.Logger) (n *node, err error) {
	n = &node{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			err = errors.Join(err, n.Close())
		}
	}()

	n.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	n.metrics = metrics.New(n.registry)

	if n.hasher, err = hashing.ByName(cfg.Tree.Hash); err != nil {
		return n, err
	}
	if n.store, err = ldb.Open(cfg.Store.Path); err != nil {
		return n, fmt.Errorf("failed to open store at %s; %w", cfg.Store.Path, err)
	}
	n.db, err = bdb.OpenDB(bdb.Config{Path: cfg.Queue.Path, Logger: log})
	if err != nil {
		return n, fmt.Errorf("failed to open queue database at %s; %w", cfg.Queue.Path, err)
	}
	if n.queues, err = n.openQueues(); err != nil {
		return n, err
	}
	n.source, err = beaconapi.New(beaconapi.Config{
		Endpoints:         cfg.Source.Endpoints,
		Timeout:           cfg.Source.Timeout,
		Retries:           cfg.Source.Retries,
		Backoff:           cfg.Source.Backoff,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	}, log)
	if err != nil {
		return n, err
	}
	n.committer = scheduler.NewCommitter(n.store, n.queues, cfg.Scheduler.BatchSize, n.metrics, log)
	return n, nil
}

// openQueues opens the level queues in sessions of their own. Sessions are
// closed together with the node.
func (n *node) openQueues() (*queue.Set, error) {
	return queue.NewSet(n.cfg.Queue.Prefix, n.cfg.Tree.Depth, func(name string) (queue.Queue, error) {
		q, err := bdb.Open(n.db, name)
		if err != nil {
			return nil, err
		}
		n.opened = append(n.opened, q)
		return q, nil
	})
}

func (n *node) window() source.Window {
	return source.Window{Offset: n.cfg.Source.Window.Offset, Count: n.cfg.Source.Window.Count}
}

func (n *node) Close() error {
	var errs []error
	for _, q := range n.opened {
		errs = append(errs, q.Close())
	}
	if n.db != nil {
		errs = append(errs, n.db.Close())
	}
	if n.store != nil {
		errs = append(errs, n.store.Close())
	}
	return errors.Join(errs...)
}

func run(ctx *cli.Context) (err error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	roles := ctx.StringSlice(rolesFlag.Name)
	for _, role := range roles {
		if !slices.Contains(allRoles, role) {
			return fmt.Errorf("unknown role %q", role)
		}
	}

	n, err := openNode(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := n.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failure closing databases")
			err = errors.Join(err, closeErr)
		}
	}()

	runCtx, cancel := interrupt.Register(ctx.Context, log)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)

	if cfg.Metrics.Listen != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		group.Go(func() error {
			log.Info().Str("listen", cfg.Metrics.Listen).Msg("serving metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			return server.Close()
		})
	}
	if cfg.Queue.GCInterval > 0 {
		group.Go(func() error {
			return n.collectGarbage(groupCtx, ticker.NewTimeTicker(cfg.Queue.GCInterval))
		})
	}

	for _, role := range roles {
		log.Info().Str("role", role).Msg("starting")
		switch role {
		case roleScheduler:
			s := scheduler.New(scheduler.Config{
				StartEpoch: cfg.Scheduler.StartEpoch,
				ChunkSize:  cfg.Scheduler.ChunkSize,
				Window:     n.window(),
			}, n.source, n.store, n.committer, n.metrics, log)
			group.Go(func() error { return s.Run(groupCtx) })
		case roleWorker:
			for i := 0; i < cfg.Worker.Concurrency; i++ {
				queues, err := n.openQueues()
				if err != nil {
					cancel()
					return errors.Join(err, group.Wait())
				}
				w, err := worker.New(worker.Config{
					LeaseTTL:     cfg.Queue.LeaseTTL,
					PollInterval: cfg.Worker.PollInterval,
				}, n.store, n.hasher, queues, cfg.Worker.Levels, n.metrics, log.With().Int("worker", i).Logger())
				if err != nil {
					cancel()
					return errors.Join(err, group.Wait())
				}
				group.Go(func() error { return w.Run(groupCtx) })
			}
		case roleCleaner:
			queues, err := n.openQueues()
			if err != nil {
				cancel()
				return errors.Join(err, group.Wait())
			}
			c := cleaner.New(queues.All(), n.metrics, log)
			group.Go(func() error { return c.Run(groupCtx, ticker.NewTimeTicker(cfg.Cleaner.Interval)) })
		case roleVerifier:
			v := reconcile.New(reconcile.Config{
				StartEpoch: cfg.Scheduler.StartEpoch,
				Window:     n.window(),
				Backoff:    cfg.Verifier.Backoff,
			}, n.source, n.store, n.committer, n.hasher, n.metrics, log)
			group.Go(func() error { return v.Run(groupCtx, ticker.NewTimeTicker(cfg.Verifier.Interval)) })
		case rolePruner:
			p := pruner.New(pruner.Config{
				RetainEpochs: cfg.Pruner.RetainEpochs,
				Verified:     cfg.Pruner.AwaitVerification || slices.Contains(roles, roleVerifier),
				StartEpoch:   cfg.Scheduler.StartEpoch,
			}, n.store, n.metrics, log)
			group.Go(func() error { return p.Run(groupCtx, ticker.NewTimeTicker(cfg.Pruner.Interval)) })
		}
	}

	err = group.Wait()
	log.Info().Err(err).Msg("stopped")
	return err
}

// collectGarbage compacts the value log of the queue database on every tick.
func (n *node) collectGarbage(ctx context.Context, tick ticker.Ticker) error {
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C():
			for {
				collected, err := bdb.CollectGarbage(n.db, 0.5)
				if err != nil {
					n.log.Warn().Err(err).Msg("value log garbage collection failed")
					break
				}
				if !collected || interrupt.IsCancelled(ctx) {
					break
				}
			}
		}
	}
}
