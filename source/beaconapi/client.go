// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package beaconapi implements the snapshot source on top of the standard
// Beacon node REST API. Every request is tried on each configured endpoint
// in turn, starting with the last one that answered, for a configurable
// number of rounds.
package beaconapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/common/interrupt"
	"github.com/metacraft-labs/DendrETH-sub000/gindex"
	"github.com/metacraft-labs/DendrETH-sub000/source"
	"github.com/metacraft-labs/DendrETH-sub000/validator"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// errNotFound marks a 404 answer, which is not retried.
const errNotFound = common.ConstError("resource not found")

type Config struct {
	Endpoints         []string
	Timeout           time.Duration // per request, not applied to event streams
	Retries           int           // rounds over all endpoints
	Backoff           time.Duration // pause after a failed round, growing linearly
	RequestsPerSecond float64       // zero disables rate limiting
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	mu      sync.Mutex
	current int // index of the endpoint that answered last
}

func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("at least one beacon endpoint is required")
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}
	for i, endpoint := range cfg.Endpoints {
		cfg.Endpoints[i] = strings.TrimRight(endpoint, "/")
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: limiter,
		log:     log.With().Str("component", "beaconapi").Logger(),
	}, nil
}

func (c *Client) Validators(ctx context.Context, slot common.Slot, window source.Window) ([]validator.Validator, error) {
	var res validatorsResponse
	if err := c.get(ctx, fmt.Sprintf("/eth/v1/beacon/states/%d/validators", slot), &res); err != nil {
		return nil, fmt.Errorf("failed to fetch validators at slot %d; %w", slot, err)
	}
	// every index below the registry length must be listed exactly once
	records := make([]validator.Validator, len(res.Data))
	seen := make([]bool, len(res.Data))
	for _, entry := range res.Data {
		if entry.Index >= uint64(len(res.Data)) {
			return nil, fmt.Errorf("validator index %d out of range at slot %d", entry.Index, slot)
		}
		if seen[entry.Index] {
			return nil, fmt.Errorf("duplicate validator index %d at slot %d", entry.Index, slot)
		}
		seen[entry.Index] = true
		v, err := entry.Validator.toValidator()
		if err != nil {
			return nil, fmt.Errorf("invalid validator %d at slot %d; %w", entry.Index, slot, err)
		}
		records[entry.Index] = v
	}
	return applyWindow(records, window), nil
}

func (c *Client) HeadEpoch(ctx context.Context) (common.Epoch, error) {
	var res headerResponse
	if err := c.get(ctx, "/eth/v1/beacon/headers/head", &res); err != nil {
		return 0, fmt.Errorf("failed to fetch head; %w", err)
	}
	return gindex.EpochOfSlot(res.Data.Header.Message.Slot), nil
}

func (c *Client) LastFinalizedEpoch(ctx context.Context) (common.Epoch, error) {
	var res finalityResponse
	if err := c.get(ctx, "/eth/v1/beacon/states/head/finality_checkpoints", &res); err != nil {
		return 0, fmt.Errorf("failed to fetch finality checkpoints; %w", err)
	}
	return res.Data.Finalized.Epoch, nil
}

func (c *Client) FirstNonMissingSlotInEpoch(ctx context.Context, epoch common.Epoch) (common.Slot, error) {
	return source.FirstNonMissingSlot(ctx, epoch, c.hasBlock)
}

func (c *Client) hasBlock(ctx context.Context, slot common.Slot) (bool, error) {
	var res headerResponse
	err := c.get(ctx, fmt.Sprintf("/eth/v1/beacon/headers/%d", slot), &res)
	if errors.Is(err, errNotFound) {
		c.log.Debug().Uint64("slot", uint64(slot)).Msg("slot missing")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to fetch header of slot %d; %w", slot, err)
	}
	return true, nil
}

// get fetches the path from the endpoints in rotation and decodes the JSON
// answer into res.
func (c *Client) get(ctx context.Context, path string, res any) error {
	return c.retry(ctx, path, func(ctx context.Context, endpoint string) error {
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}
		resp, err := c.do(ctx, endpoint+path, "application/json")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
			return fmt.Errorf("failed to decode answer of %s; %w", endpoint, err)
		}
		return nil
	})
}

// retry runs the call against every endpoint, beginning with the one that
// answered last, for the configured number of rounds. A not-found answer
// ends the retries immediately.
func (c *Client) retry(ctx context.Context, path string, call func(ctx context.Context, endpoint string) error) error {
	var errs []error
	for round := 0; round < c.cfg.Retries; round++ {
		if round > 0 {
			if err := interrupt.Sleep(ctx, c.cfg.Backoff*time.Duration(round)); err != nil {
				return err
			}
		}
		start := c.currentEndpoint()
		for i := range c.cfg.Endpoints {
			index := (start + i) % len(c.cfg.Endpoints)
			endpoint := c.cfg.Endpoints[index]
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			err := call(ctx, endpoint)
			if err == nil || errors.Is(err, errNotFound) {
				c.setCurrentEndpoint(index)
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Str("endpoint", endpoint).Str("path", path).Int("round", round).Msg("beacon request failed")
			errs = append(errs, err)
		}
	}
	return fmt.Errorf("%w: %s; %w", source.ErrExhausted, path, errors.Join(errs...))
}

func (c *Client) do(ctx context.Context, url string, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (c *Client) currentEndpoint() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Client) setCurrentEndpoint(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = index
}

func applyWindow(records []validator.Validator, window source.Window) []validator.Validator {
	if window.Offset >= uint64(len(records)) {
		return nil
	}
	records = records[window.Offset:]
	if window.Count > 0 && window.Count < uint64(len(records)) {
		records = records[:window.Count]
	}
	return records
}
