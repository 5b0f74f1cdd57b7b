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
	"testing"

	"github.com/metacraft-labs/DendrETH-sub000/config"
	"github.com/rs/zerolog"
)

func TestNewLogger_AppliesLevel(t *testing.T) {
	log, err := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger; %v", err)
	}
	if log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("unexpected level %v", log.GetLevel())
	}
	if _, err := newLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Errorf("unknown levels should be rejected")
	}
}
