// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CollectorsAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.EpochsSynced.Inc()
	m.TasksEnqueued.WithLabelValues("UpdateLeafProof").Add(3)
	m.QueueDepth.WithLabelValues("tasks:0", "queued").Set(2)

	if got := testutil.ToFloat64(m.TasksEnqueued.WithLabelValues("UpdateLeafProof")); got != 3 {
		t.Errorf("unexpected counter value %f", got)
	}
	expected := `
# HELP commitment_mapper_epochs_synced_total Number of epochs synchronized by the scheduler.
# TYPE commitment_mapper_epochs_synced_total counter
commitment_mapper_epochs_synced_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "commitment_mapper_epochs_synced_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestMetrics_IndependentRegistriesDoNotCollide(t *testing.T) {
	NewUnregistered()
	NewUnregistered()
}
