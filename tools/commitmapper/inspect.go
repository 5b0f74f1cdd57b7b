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
	"errors"
	"fmt"

	"github.com/metacraft-labs/DendrETH-sub000/backend/queue"
	"github.com/metacraft-labs/DendrETH-sub000/backend/queue/bdb"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned"
	"github.com/metacraft-labs/DendrETH-sub000/backend/versioned/ldb"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var (
	epochFlag = cli.Uint64Flag{
		Name:     "epoch",
		Usage:    "the epoch to inspect",
		Required: true,
	}
	gindexFlag = cli.Uint64Flag{
		Name:     "gindex",
		Usage:    "generalized index of the tree node",
		Required: true,
	}
	indexFlag = cli.Uint64Flag{
		Name:     "index",
		Usage:    "index of the validator",
		Required: true,
	}
)

var inspectCommand = cli.Command{
	Name:  "inspect",
	Usage: "prints the content of the store and the queues",
	Subcommands: []*cli.Command{
		{
			Action: inspectRoot,
			Name:   "root",
			Usage:  "prints the commitment root as of an epoch",
			Flags:  []cli.Flag{&epochFlag},
		},
		{
			Action: inspectNode,
			Name:   "node",
			Usage:  "prints the hash of a tree node as of an epoch",
			Flags:  []cli.Flag{&gindexFlag, &epochFlag},
		},
		{
			Action: inspectValidator,
			Name:   "validator",
			Usage:  "prints the record of a validator as of an epoch",
			Flags:  []cli.Flag{&indexFlag, &epochFlag},
		},
		{
			Action: inspectWatermarks,
			Name:   "watermarks",
			Usage:  "prints the progress of every role",
		},
		{
			Action: inspectQueues,
			Name:   "queues",
			Usage:  "prints the number of queued and leased tasks per level",
		},
	},
}

// withStore opens the store read by every inspect command.
func withStore(ctx *cli.Context, fn func(store *ldb.Store, depth uint8) error) (err error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	store, err := ldb.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()
	return fn(store, cfg.Tree.Depth)
}

func printHash(store *ldb.Store, g gindex.GIndex, epoch common.Epoch) error {
	value, err := store.ReadAsOf(versioned.ProofKey(g), epoch)
	if err != nil {
		return err
	}
	hash, err := common.HashFromBytes(value)
	if err != nil {
		return fmt.Errorf("no hash for node %d at epoch %d", g, epoch)
	}
	fmt.Printf("%v\n", hash)
	return nil
}

func inspectRoot(ctx *cli.Context) error {
	return withStore(ctx, func(store *ldb.Store, _ uint8) error {
		return printHash(store, gindex.Root, common.Epoch(ctx.Uint64(epochFlag.Name)))
	})
}

func inspectNode(ctx *cli.Context) error {
	return withStore(ctx, func(store *ldb.Store, depth uint8) error {
		g := gindex.GIndex(ctx.Uint64(gindexFlag.Name))
		if err := gindex.Validate(g, depth); err != nil {
			return err
		}
		return printHash(store, g, common.Epoch(ctx.Uint64(epochFlag.Name)))
	})
}

func inspectValidator(ctx *cli.Context) error {
	return withStore(ctx, func(store *ldb.Store, depth uint8) error {
		index := ctx.Uint64(indexFlag.Name)
		value, err := store.ReadAsOf(versioned.ValidatorKey(index, depth), common.Epoch(ctx.Uint64(epochFlag.Name)))
		if err != nil {
			return err
		}
		if value == nil {
			return fmt.Errorf("validator %d is not known", index)
		}
		v, err := validator.Decode(value)
		if err != nil {
			return err
		}
		fmt.Printf("pubkey:                       %x\n", v.Pubkey)
		fmt.Printf("withdrawal credentials:       %x\n", v.WithdrawalCredentials)
		fmt.Printf("effective balance:            %d\n", v.EffectiveBalance)
		fmt.Printf("slashed:                      %t\n", v.Slashed)
		fmt.Printf("activation eligibility epoch: %d\n", v.ActivationEligibilityEpoch)
		fmt.Printf("activation epoch:             %d\n", v.ActivationEpoch)
		fmt.Printf("exit epoch:                   %d\n", v.ExitEpoch)
		fmt.Printf("withdrawable epoch:           %d\n", v.WithdrawableEpoch)
		return nil
	})
}

func inspectWatermarks(ctx *cli.Context) error {
	return withStore(ctx, func(store *ldb.Store, _ uint8) error {
		for _, name := range []string{
			versioned.FinalizedCheckpoint,
			versioned.LastProcessedEpoch,
			versioned.LastFinalizedEpoch,
			versioned.LastVerifiedEpoch,
		} {
			epoch, found, err := store.GetWatermark(name)
			if err != nil {
				return err
			}
			if found {
				fmt.Printf("%-22s %d\n", name, epoch)
			} else {
				fmt.Printf("%-22s -\n", name)
			}
		}
		return nil
	})
}

func inspectQueues(ctx *cli.Context) (err error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := bdb.OpenDB(bdb.Config{Path: cfg.Queue.Path, Logger: zerolog.Nop()})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()
	for level := 0; level <= int(cfg.Tree.Depth); level++ {
		q, err := bdb.Open(db, queue.Name(cfg.Queue.Prefix, uint8(level)))
		if err != nil {
			return err
		}
		queued, processing, err := q.Len(ctx.Context)
		err = errors.Join(err, q.Close())
		if err != nil {
			return err
		}
		if queued > 0 || processing > 0 {
			fmt.Printf("%-24s queued: %d, processing: %d\n", q.Name(), queued, processing)
		}
	}
	return nil
}
