// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package interrupt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/rs/zerolog"
)

const ErrCanceled = common.ConstError("interrupted")

// IsCancelled returns true if the given context's CancelFunc has been called.
// Long-running loops check this only at epoch or batch boundaries.
func IsCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Register catches SIGTERM and SIGINT signals and cancels the returned
// context, letting every role finish its current epoch step or batch.
func Register(parent context.Context, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Info().Str("signal", sig.String()).Msg("shutting down, waiting for running steps to finish")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Sleep blocks for the given duration or until the context is cancelled.
// It returns ErrCanceled in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if IsCancelled(ctx) {
			return ErrCanceled
		}
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ErrCanceled
	case <-timer.C:
		return nil
	}
}
