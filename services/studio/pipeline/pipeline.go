// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline orchestrates a research run end to end: profiling,
// breadth planning, computation, depth follow-ups, curation, arrangement,
// and assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LanternAI/LanternStudio/services/studio/arrange"
	"github.com/LanternAI/LanternStudio/services/studio/cache"
	"github.com/LanternAI/LanternStudio/services/studio/collab"
	"github.com/LanternAI/LanternStudio/services/studio/compute"
	"github.com/LanternAI/LanternStudio/services/studio/curate"
	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/plan"
	"github.com/LanternAI/LanternStudio/services/studio/quota"
	"github.com/LanternAI/LanternStudio/services/studio/report"
	"github.com/LanternAI/LanternStudio/services/studio/research"
	"github.com/LanternAI/LanternStudio/services/studio/transform"
)

// Stage names used as cache keys.
const (
	stageProfile  = "profile"
	stageFindings = "findings"
	stageReport   = "report"
)

// Config tunes a pipeline run.
type Config struct {
	// Quota configures the per-run usage caps.
	Quota quota.Config

	// Planner configures question planning.
	Planner plan.Config

	// Engine configures task computation.
	Engine compute.Config

	// Curator configures finding selection.
	Curator curate.Config

	// RunTimeout bounds the whole run. Zero means no bound beyond the
	// caller's context.
	RunTimeout time.Duration
}

// DefaultConfig returns pipeline defaults.
func DefaultConfig() Config {
	return Config{
		Quota:      quota.DefaultConfig(),
		Planner:    plan.DefaultConfig(),
		Engine:     compute.DefaultConfig(),
		Curator:    curate.DefaultConfig(),
		RunTimeout: 10 * time.Minute,
	}
}

// Result is everything a finished run produced.
type Result struct {
	// RunID identifies the run, including its cache keys.
	RunID string

	// Report is the assembled report.
	Report *research.Report

	// Tasks are every terminal computation task, breadth then depth.
	Tasks []*compute.Task

	// Profile is the dataset profile the run planned against.
	Profile *dataset.Profile
}

// Pipeline runs dataset research end to end.
type Pipeline struct {
	roles collab.Collaborators
	store *cache.Store
	cfg   Config
	log   *slog.Logger
}

// New creates a Pipeline. The store may be nil to disable stage caching.
func New(roles collab.Collaborators, store *cache.Store, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{roles: roles, store: store, cfg: cfg, log: log}
}

// Run executes a research run with a fresh run ID.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	return p.RunWithID(ctx, uuid.NewString(), ds)
}

// RunWithID executes a research run under an explicit run ID.
//
// # Description
//
// When a stage store is configured, the run first checks for a cached
// report under the run ID and returns it without re-running anything.
// Otherwise the stages execute in order, each persisted as it completes.
// The run fails only on planning producing nothing, on the report coming up
// empty, or on assembly errors; individual task failures never abort a run.
func (p *Pipeline) RunWithID(ctx context.Context, runID string, ds *dataset.Dataset) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}
	log := p.log.With("run_id", runID)
	started := time.Now()

	if cached := p.cachedReport(runID, log); cached != nil {
		return cached, nil
	}

	profile := dataset.BuildProfile(ds)
	p.putStage(runID, stageProfile, profile, log)
	log.Info("Dataset profiled", "rows", profile.RowCount, "columns", len(profile.Columns))

	tracker := quota.NewTracker(p.cfg.Quota)
	planner := plan.NewPlanner(p.roles.Questions, tracker, p.cfg.Planner, log)
	questions, err := planner.Breadth(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("pipeline: breadth planning: %w", err)
	}
	log.Info("Breadth planning complete", "questions", len(questions))

	exec := transform.NewExecutor(0)
	engine := compute.NewEngine(p.roles, exec, p.cfg.Engine, log)
	tasks := engine.Run(ctx, ds, profile, questions)

	// Depth pass: follow up on what the breadth pass answered.
	var followUps []research.Question
	for _, t := range tasks {
		if t.State != compute.StateSucceeded {
			continue
		}
		followUps = append(followUps, planner.Depth(ctx, t.Question, t.Table)...)
	}
	if len(followUps) > 0 {
		log.Info("Depth planning complete", "follow_ups", len(followUps))
		tasks = append(tasks, engine.Run(ctx, ds, profile, followUps)...)
	}

	findings := curate.NewCurator(p.cfg.Curator, log).Select(tasks)
	p.putStage(runID, stageFindings, findings, log)

	sections := arrange.Arrange(findings)
	rep, err := report.Assemble(ctx, p.roles.Narrator, profile, sections)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.putStage(runID, stageReport, rep, log)

	log.Info("Run complete",
		"sections", len(rep.Sections), "duration", time.Since(started).Round(time.Millisecond))
	return &Result{RunID: runID, Report: rep, Tasks: tasks, Profile: profile}, nil
}

// cachedReport returns a prior result when the run's report is in the store.
func (p *Pipeline) cachedReport(runID string, log *slog.Logger) *Result {
	if p.store == nil {
		return nil
	}
	var rep research.Report
	ok, err := p.store.GetJSON(runID, stageReport, &rep)
	if err != nil {
		log.Warn("Stage cache read failed", "stage", stageReport, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var profile dataset.Profile
	if ok, err := p.store.GetJSON(runID, stageProfile, &profile); err != nil || !ok {
		return &Result{RunID: runID, Report: &rep}
	}
	log.Info("Serving cached report")
	return &Result{RunID: runID, Report: &rep, Profile: &profile}
}

// putStage persists one stage, logging instead of failing on cache errors.
func (p *Pipeline) putStage(runID, stage string, value any, log *slog.Logger) {
	if p.store == nil {
		return
	}
	if err := p.store.PutJSON(runID, stage, value); err != nil {
		log.Warn("Stage cache write failed", "stage", stage, "error", err)
	}
}
