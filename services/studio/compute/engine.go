// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LanternAI/LanternStudio/services/studio/collab"
	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
	"github.com/LanternAI/LanternStudio/services/studio/transform"
	"github.com/LanternAI/LanternStudio/services/studio/validate"
)

// Config tunes the engine.
type Config struct {
	// Workers bounds concurrent tasks.
	Workers int64

	// MaxAttempts is the plan-execute-validate cycles allowed per task
	// before it fails.
	MaxAttempts int

	// TaskTimeout is the executor deadline for a single plan run.
	TaskTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		MaxAttempts: 3,
		TaskTimeout: 30 * time.Second,
	}
}

// Engine computes accepted questions into findings.
//
// # Thread Safety
//
// Run may not be called concurrently on the same Engine with overlapping
// task sets. The collaborators and executor it holds must be safe for
// concurrent use.
type Engine struct {
	plans    collab.PlanGenerator
	charts   collab.ChartSpecifier
	narrator collab.Narrator
	exec     *transform.Executor
	cfg      Config
	log      *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(roles collab.Collaborators, exec *transform.Executor, cfg Config, log *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		plans:    roles.Plans,
		charts:   roles.Charts,
		narrator: roles.Narrator,
		exec:     exec,
		cfg:      cfg,
		log:      log,
	}
}

// Run computes every question and waits for all of them.
//
// # Description
//
// Tasks run under a weighted semaphore so at most Workers are in flight.
// Run is a full barrier: it returns only when every task has reached a
// terminal state, including tasks cut short by the context. The returned
// slice is in question order and always has one task per question.
//
// # Inputs
//   - ctx: carries the run's overall deadline. When it lapses, tasks that
//     have not succeeded are failed with the context error.
//   - ds: the shared dataset, read-only.
//   - profile: the dataset profile, for plan prompts.
//   - questions: the accepted questions to compute.
//
// # Outputs
//   - []*Task: terminal tasks, one per question, in input order.
func (e *Engine) Run(ctx context.Context, ds *dataset.Dataset, profile *dataset.Profile, questions []research.Question) []*Task {
	if ctx == nil {
		ctx = context.Background()
	}
	tasks := make([]*Task, len(questions))
	for i, q := range questions {
		tasks[i] = &Task{Question: q, State: StatePending}
	}

	sem := semaphore.NewWeighted(e.cfg.Workers)
	var wg sync.WaitGroup
	for _, t := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context lapsed while queueing. The task still needs a
			// terminal state for the barrier invariant.
			t.State = StateFailed
			t.Err = fmt.Errorf("compute: task not started: %w", err)
			RecordTaskOutcome(t.State, t.Attempts, 0)
			continue
		}
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			defer sem.Release(1)
			e.runTask(ctx, ds, profile, t)
		}(t)
	}
	wg.Wait()

	succeeded := 0
	for _, t := range tasks {
		if t.State == StateSucceeded {
			succeeded++
		}
	}
	e.log.Info("Computation complete",
		"tasks", len(tasks), "succeeded", succeeded, "failed", len(tasks)-succeeded)
	return tasks
}

// runTask drives one task through the state machine to a terminal state.
func (e *Engine) runTask(ctx context.Context, ds *dataset.Dataset, profile *dataset.Profile, t *Task) {
	start := time.Now()
	defer func() {
		RecordTaskOutcome(t.State, t.Attempts, time.Since(start).Seconds())
	}()
	q := t.Question

	for t.Attempts < e.cfg.MaxAttempts {
		if err := ctx.Err(); err != nil {
			t.State = StateFailed
			t.Err = fmt.Errorf("compute: run deadline: %w", err)
			return
		}
		t.Attempts++

		table, failStage, err := e.attempt(ctx, ds, profile, t)
		if err != nil {
			RecordAttemptFailure(failStage)
			t.Feedback = append(t.Feedback, err.Error())
			e.log.Debug("Task attempt failed",
				"question", q.ID, "attempt", t.Attempts, "stage", failStage, "error", err)
			if t.Attempts < e.cfg.MaxAttempts && ctx.Err() == nil {
				t.State = StateRetryPending
				continue
			}
			t.State = StateFailed
			t.Err = fmt.Errorf("compute: %s stage failed after %d attempts: %w", failStage, t.Attempts, err)
			return
		}

		t.Table = table
		t.State = StateSucceeded
		e.log.Debug("Task succeeded", "question", q.ID, "attempts", t.Attempts)
		return
	}

	// Zero-attempt configs cannot reach here through the loop, but keep
	// the terminal-state invariant regardless.
	t.State = StateFailed
	t.Err = errors.New("compute: no attempts allowed")
}

// attempt runs one full plan-execute-validate-dress cycle. On failure it
// names the stage that failed so feedback and metrics stay precise.
func (e *Engine) attempt(ctx context.Context, ds *dataset.Dataset, profile *dataset.Profile, t *Task) (*research.Table, string, error) {
	q := t.Question

	t.State = StateRequesting
	raw, err := e.plans.GeneratePlan(ctx, q, profile, t.Feedback)
	if err != nil {
		return nil, "plan", fmt.Errorf("plan generation failed: %w", err)
	}
	plan, err := transform.Parse(raw)
	if err != nil {
		return nil, "plan", err
	}

	t.State = StateExecuting
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	table, err := e.exec.Execute(execCtx, plan, ds, q.SourceColumns)
	cancel()
	if err != nil {
		return nil, "execute", err
	}

	t.State = StateValidating
	if err := validate.Check(table, q.Visualization); err != nil {
		return nil, "validate", err
	}
	table = validate.Normalize(table, q.Visualization)

	chart, err := e.charts.SpecifyChart(ctx, q, table)
	if err != nil {
		return nil, "chart", fmt.Errorf("chart specification failed: %w", err)
	}
	narrative, err := e.narrator.Narrate(ctx, q, table)
	if err != nil {
		return nil, "narrate", fmt.Errorf("narration failed: %w", err)
	}

	t.Chart = chart
	t.Narrative = narrative
	return table, "", nil
}
