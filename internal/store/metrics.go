// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillmirror_store_operations_total",
		Help: "Local store operations by operation and result",
	}, []string{"operation", "result"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tillmirror_store_operation_duration_seconds",
		Help:    "Local store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	pendingRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tillmirror_store_pending_records",
		Help: "Unsynced pending mutations by entity type",
	}, []string{"entity_type"})

	mirrorReplacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillmirror_store_mirror_replacements_total",
		Help: "Full mirror replacements by collection",
	}, []string{"collection"})

	mirrorRecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillmirror_store_mirror_records_written_total",
		Help: "Records written by mirror replacements, by collection",
	}, []string{"collection"})

	sweptGenerations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tillmirror_store_swept_generations_total",
		Help: "Orphaned mirror generations removed by the sweeper",
	})

	gcRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tillmirror_store_gc_runs_total",
		Help: "Value-log GC runs",
	})

	gcLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tillmirror_store_gc_duration_seconds",
		Help:    "Value-log GC duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	schemaMigrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tillmirror_store_schema_migrations_total",
		Help: "Schema migrations applied",
	})
)

func recordStoreOp(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOperations.WithLabelValues(op, result).Inc()
	storeOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func recordMirrorReplaced(collection string, records int) {
	mirrorReplacements.WithLabelValues(collection).Inc()
	mirrorRecordsWritten.WithLabelValues(collection).Add(float64(records))
}

func setPendingGauge(entityType string, n int) {
	pendingRecords.WithLabelValues(entityType).Set(float64(n))
}

func addPendingGauge(entityType string, delta int) {
	pendingRecords.WithLabelValues(entityType).Add(float64(delta))
}

func resetPendingGauge() {
	pendingRecords.Reset()
}

func recordSweptGenerations(n int) {
	sweptGenerations.Add(float64(n))
}

func recordGCRun(d time.Duration) {
	gcRuns.Inc()
	gcLatency.Observe(d.Seconds())
}

func recordMigration() {
	schemaMigrations.Inc()
}
