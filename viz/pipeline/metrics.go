// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mergedRecordCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "merged_records_total",
			Help:      "Total count of records leaving the merge stage.",
		})

	sourceErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "source_errors_total",
			Help:      "Total count of sources dropped after a read error.",
		}, []string{"source"})

	submittedBatchCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "submitted_batches_total",
			Help:      "Total count of batches submitted to the workers.",
		})

	transformErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "transform_errors_total",
			Help:      "Total count of records a transform failed on.",
		}, []string{"topic"})

	writtenResultCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "written_results_total",
			Help:      "Total count of results written to the sink.",
		})

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "batch_duration_seconds",
			Help:      "Bucketed histogram of the execution time (s) of one batch.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18), // 0.5ms~65s
		})

	inflightBatchGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lwviz",
			Subsystem: "pipeline",
			Name:      "inflight_batches",
			Help:      "Number of batches submitted but not written yet.",
		})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(mergedRecordCounter)
	registry.MustRegister(sourceErrorCounter)
	registry.MustRegister(submittedBatchCounter)
	registry.MustRegister(transformErrorCounter)
	registry.MustRegister(writtenResultCounter)
	registry.MustRegister(batchDuration)
	registry.MustRegister(inflightBatchGauge)
}
