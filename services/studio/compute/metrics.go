// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compute

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// taskOutcomes counts terminal task states.
	// Labels: outcome (succeeded, failed)
	taskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lantern",
		Subsystem: "compute",
		Name:      "tasks_total",
		Help:      "Computation tasks by terminal outcome",
	}, []string{"outcome"})

	// taskAttempts tracks how many attempts each task consumed.
	taskAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lantern",
		Subsystem: "compute",
		Name:      "task_attempts",
		Help:      "Plan-execute-validate attempts consumed per task",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})

	// taskDuration measures wall time per task, start to terminal state.
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lantern",
		Subsystem: "compute",
		Name:      "task_duration_seconds",
		Help:      "Wall time per computation task",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
	})

	// attemptFailures counts failed attempts by stage.
	// Labels: stage (plan, execute, validate, chart, narrate)
	attemptFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lantern",
		Subsystem: "compute",
		Name:      "attempt_failures_total",
		Help:      "Failed task attempts by pipeline stage",
	}, []string{"stage"})
)

// RecordTaskOutcome records a task reaching a terminal state.
func RecordTaskOutcome(state TaskState, attempts int, durationSec float64) {
	taskOutcomes.WithLabelValues(state.String()).Inc()
	taskAttempts.Observe(float64(attempts))
	taskDuration.Observe(durationSec)
}

// RecordAttemptFailure records one failed attempt at the named stage.
func RecordAttemptFailure(stage string) {
	attemptFailures.WithLabelValues(stage).Inc()
}
