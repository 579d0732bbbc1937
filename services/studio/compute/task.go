// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compute runs accepted questions to completion as computation
// tasks: plan generation, sandboxed execution, shape validation, chart
// specification, and narration, with bounded parallelism and bounded
// retries.
package compute

import "github.com/LanternAI/LanternStudio/services/studio/research"

// TaskState tracks a task through its lifecycle. Succeeded and Failed are
// terminal; no transition leaves them.
type TaskState int

const (
	// StatePending means the task has not started.
	StatePending TaskState = iota

	// StateRequesting means a transformation plan is being generated.
	StateRequesting

	// StateExecuting means the plan is running in the executor.
	StateExecuting

	// StateValidating means the result is being shape-checked and dressed
	// with its chart and narrative.
	StateValidating

	// StateRetryPending means the attempt failed and another is allowed.
	StateRetryPending

	// StateSucceeded is terminal: the task produced a complete finding.
	StateSucceeded

	// StateFailed is terminal: every allowed attempt failed.
	StateFailed
)

// String returns the lowercase state name.
func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRequesting:
		return "requesting"
	case StateExecuting:
		return "executing"
	case StateValidating:
		return "validating"
	case StateRetryPending:
		return "retry_pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Task is one question's computation. The engine owns a task exclusively
// while it runs; callers read it only after Run returns.
type Task struct {
	// Question is the accepted question being answered.
	Question research.Question

	// State is the task's current lifecycle state.
	State TaskState

	// Attempts counts plan-execute-validate cycles consumed.
	Attempts int

	// Feedback holds the failure message of each failed attempt, oldest
	// first. It is replayed to the plan collaborator on retry.
	Feedback []string

	// Table is the validated, normalized result. Set only on success.
	Table *research.Table

	// Chart is the chart specification. Set only on success.
	Chart research.ChartSpec

	// Narrative is the titled prose for the finding. Set only on success.
	Narrative research.Narrative

	// Err is the terminal failure. Set only on failure.
	Err error
}

// Finding converts a succeeded task into its report finding.
func (t *Task) Finding() research.Finding {
	return research.Finding{
		Question:  t.Question,
		Table:     t.Table,
		Chart:     t.Chart,
		Narrative: t.Narrative,
	}
}
