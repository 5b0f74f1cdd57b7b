// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ticker

import "time"

//go:generate mockgen -source ticker.go -destination ticker_mocks.go -package ticker

// Ticker drives the periodic background loops (cleaner, verifier, pruner).
// Implementations deliver ticks on C until Stop is called.
type Ticker interface {

	// C returns the channel on which the ticks are delivered.
	C() <-chan time.Time

	// Stop turns off a ticker. After Stop, no more ticks will be sent.
	Stop()
}

// TimeTicker wraps the standard time.Ticker.
type TimeTicker struct {
	ticker *time.Ticker
}

// NewTimeTicker creates a ticker firing every d.
func NewTimeTicker(d time.Duration) TimeTicker {
	return TimeTicker{time.NewTicker(d)}
}

func (t TimeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t TimeTicker) Stop() {
	t.ticker.Stop()
}

// ManualTicker only ticks when Tick is called. Loops driven by it run
// exactly one iteration per Tick, which keeps tests deterministic.
type ManualTicker struct {
	c chan time.Time
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time)}
}

// Tick delivers a single tick, blocking until the consumer received it.
func (t *ManualTicker) Tick() {
	t.c <- time.Now()
}

func (t *ManualTicker) C() <-chan time.Time {
	return t.c
}

func (t *ManualTicker) Stop() {}
