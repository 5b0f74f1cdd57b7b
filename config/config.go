// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package config loads the configuration of the commitment mapper from a
// YAML file. Missing keys keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/metacraft-labs/DendrETH-sub000/common"
	"github.com/metacraft-labs/DendrETH-sub000/hashing"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Tree      TreeConfig      `yaml:"tree"`
	Store     StoreConfig     `yaml:"store"`
	Queue     QueueConfig     `yaml:"queue"`
	Source    SourceConfig    `yaml:"source"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Worker    WorkerConfig    `yaml:"worker"`
	Cleaner   CleanerConfig   `yaml:"cleaner"`
	Verifier  VerifierConfig  `yaml:"verifier"`
	Pruner    PrunerConfig    `yaml:"pruner"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

type TreeConfig struct {
	// Depth bounds the registry to 2^Depth validators.
	Depth uint8        `yaml:"depth" validate:"gte=1,lte=62"`
	Hash  hashing.Name `yaml:"hash" validate:"oneof=sha256 keccak256"`
}

type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type QueueConfig struct {
	Path   string `yaml:"path" validate:"required"`
	Prefix string `yaml:"prefix" validate:"required"`
	// LeaseTTL is how long a leased task stays invisible to other workers.
	LeaseTTL time.Duration `yaml:"leaseTTL" validate:"gt=0"`
	// GCInterval is the period of value log garbage collection.
	GCInterval time.Duration `yaml:"gcInterval" validate:"gte=0"`
}

type SourceConfig struct {
	Endpoints         []string      `yaml:"endpoints" validate:"required,min=1,dive,url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	Retries           int           `yaml:"retries" validate:"gte=1"`
	Backoff           time.Duration `yaml:"backoff" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" validate:"gte=0"`
	Window            WindowConfig  `yaml:"window"`
}

// WindowConfig restricts the mapper to a contiguous range of validators.
// A zero count tracks everything from the offset on.
type WindowConfig struct {
	Offset uint64 `yaml:"offset"`
	Count  uint64 `yaml:"count"`
}

type SchedulerConfig struct {
	StartEpoch common.Epoch `yaml:"startEpoch"`
	BatchSize  int          `yaml:"batchSize" validate:"gte=1,lte=4096"`
	ChunkSize  int          `yaml:"chunkSize" validate:"gte=1"`
}

type WorkerConfig struct {
	// Levels lists the tree levels served; empty means all of them.
	Levels      []uint8 `yaml:"levels"`
	Concurrency int     `yaml:"concurrency" validate:"gte=1"`
	// PollInterval is the pause of a worker that found all its queues empty.
	PollInterval time.Duration `yaml:"pollInterval" validate:"gt=0"`
}

type CleanerConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type VerifierConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Backoff  time.Duration `yaml:"backoff" validate:"gt=0"`
}

type PrunerConfig struct {
	Interval     time.Duration `yaml:"interval" validate:"gt=0"`
	RetainEpochs common.Epoch  `yaml:"retainEpochs"`
	// AwaitVerification keeps epochs not yet checked by a verifier running
	// in another process.
	AwaitVerification bool `yaml:"awaitVerification"`
}

type MetricsConfig struct {
	// Listen is the address of the metrics endpoint; empty disables it.
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

func Default() Config {
	return Config{
		Tree: TreeConfig{Depth: 40, Hash: hashing.Sha256Name},
		Store: StoreConfig{Path: "data/store"},
		Queue: QueueConfig{
			Path:       "data/queue",
			Prefix:     "validator_proofs",
			LeaseTTL:   time.Minute,
			GCInterval: 5 * time.Minute,
		},
		Source: SourceConfig{
			Endpoints: []string{"http://localhost:5052"},
			Timeout:   30 * time.Second,
			Retries:   3,
			Backoff:   time.Second,
		},
		Scheduler: SchedulerConfig{BatchSize: 128, ChunkSize: 4096},
		Worker:    WorkerConfig{Concurrency: 1, PollInterval: 250 * time.Millisecond},
		Cleaner:   CleanerConfig{Interval: 10 * time.Second},
		Verifier:  VerifierConfig{Interval: 12 * time.Second, Backoff: 30 * time.Second},
		Pruner:    PrunerConfig{Interval: 10 * time.Minute, RetainEpochs: 256},
		Metrics:   MetricsConfig{Listen: "localhost:9090"},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

var validate = validator.New()

// Validate checks the configuration for values out of range.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			return fmt.Errorf("invalid configuration; %w", invalid)
		}
		return err
	}
	if c.Source.Window.Offset+c.Source.Window.Count > uint64(1)<<c.Tree.Depth {
		return fmt.Errorf("validator window [%d, +%d) exceeds a tree of depth %d", c.Source.Window.Offset, c.Source.Window.Count, c.Tree.Depth)
	}
	for _, level := range c.Worker.Levels {
		if level > c.Tree.Depth {
			return fmt.Errorf("worker level %d exceeds tree depth %d", level, c.Tree.Depth)
		}
	}
	return nil
}

// Parse decodes a YAML document on top of the defaults and validates the
// result. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse configuration; %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the configuration file at path. An empty path yields the
// validated defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}
