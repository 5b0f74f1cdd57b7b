// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package metrics holds the Prometheus collectors reported by the roles of
// the commitment mapper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "commitment_mapper"

type Metrics struct {
	CurrentEpoch      prometheus.Gauge
	EpochsSynced      prometheus.Counter
	ChangedValidators prometheus.Counter
	TasksEnqueued     *prometheus.CounterVec // by task kind
	TasksProcessed    *prometheus.CounterVec // by task kind and outcome
	TaskDuration      *prometheus.HistogramVec
	ItemsRequeued     *prometheus.CounterVec // by queue
	QueueDepth        *prometheus.GaugeVec   // by queue and state
	Mismatches        prometheus.Counter
	RepairedNodes     *prometheus.CounterVec // by node kind
	LastVerifiedEpoch prometheus.Gauge
	PrunedVersions    *prometheus.CounterVec // by entity
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CurrentEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_epoch",
			Help:      "The next epoch to be synchronized by the scheduler.",
		}),
		EpochsSynced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_synced_total",
			Help:      "Number of epochs synchronized by the scheduler.",
		}),
		ChangedValidators: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changed_validators_total",
			Help:      "Number of validator records written because they changed.",
		}),
		TasksEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_enqueued_total",
			Help:      "Number of recompute tasks added to the queues.",
		}, []string{"kind"}),
		TasksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_processed_total",
			Help:      "Number of recompute tasks handled by workers.",
		}, []string{"kind", "outcome"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent handling one recompute task.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"kind"}),
		ItemsRequeued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_requeued_total",
			Help:      "Number of items put back after their lease expired.",
		}, []string{"queue"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_items",
			Help:      "Number of items per queue and state.",
		}, []string{"queue", "state"}),
		Mismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_mismatches_total",
			Help:      "Number of epochs whose stored root did not match the canonical root.",
		}),
		RepairedNodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_repairs_total",
			Help:      "Number of tree nodes scheduled for repair.",
		}, []string{"kind"}),
		LastVerifiedEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_verified_epoch",
			Help:      "The last epoch confirmed by reconciliation.",
		}),
		PrunedVersions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_versions_total",
			Help:      "Number of versions removed by retention pruning.",
		}, []string{"entity"}),
	}
}

// NewUnregistered creates collectors that are not exported anywhere.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
