// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package plan turns collaborator question proposals into an accepted,
// quota-screened research plan.
//
// # Description
//
// Planning runs in two passes. The breadth pass requests question batches
// against the dataset profile until the accepted set reaches its size target
// or covers enough of the dataset's columns, within a bounded number of
// rounds. The depth pass proposes follow-ups to an answered question using
// its computed result. Every candidate from either pass goes through the
// same screen: structural checks against the profile, then an atomic quota
// reservation. Rejected candidates are logged and skipped, never fatal.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/LanternAI/LanternStudio/services/studio/collab"
	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/quota"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// ErrNoQuestions means planning ended with an empty accepted set.
var ErrNoQuestions = errors.New("plan: no questions accepted")

// Config tunes the planner.
type Config struct {
	// TargetQuestions is the breadth pass size target.
	TargetQuestions int

	// CoverageTarget is the fraction of profiled columns the breadth pass
	// tries to touch before settling for fewer questions than the target.
	CoverageTarget float64

	// MaxRounds bounds breadth generation rounds. Collaborator errors and
	// fully-rejected batches both consume rounds.
	MaxRounds int

	// MaxPlanningRetries bounds how often a quota-rejected candidate is
	// sent back to the collaborator for revision before being dropped.
	MaxPlanningRetries int

	// FollowUpsPerParent is how many depth candidates to request per
	// answered question.
	FollowUpsPerParent int
}

// DefaultConfig returns the planner defaults.
func DefaultConfig() Config {
	return Config{
		TargetQuestions:    12,
		CoverageTarget:     0.8,
		MaxRounds:          3,
		MaxPlanningRetries: 3,
		FollowUpsPerParent: 2,
	}
}

// Planner screens collaborator proposals into accepted questions.
type Planner struct {
	gen     collab.QuestionGenerator
	tracker *quota.Tracker
	cfg     Config
	log     *slog.Logger
}

// NewPlanner creates a Planner sharing the run's quota tracker.
func NewPlanner(gen collab.QuestionGenerator, tracker *quota.Tracker, cfg Config, log *slog.Logger) *Planner {
	if cfg.TargetQuestions <= 0 {
		cfg.TargetQuestions = DefaultConfig().TargetQuestions
	}
	if cfg.CoverageTarget <= 0 || cfg.CoverageTarget > 1 {
		cfg.CoverageTarget = DefaultConfig().CoverageTarget
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultConfig().MaxRounds
	}
	if cfg.MaxPlanningRetries < 0 {
		cfg.MaxPlanningRetries = 0
	}
	if cfg.FollowUpsPerParent < 0 {
		cfg.FollowUpsPerParent = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Planner{gen: gen, tracker: tracker, cfg: cfg, log: log}
}

// Breadth runs the first planning pass over the dataset profile.
//
// # Description
//
// Requests candidate batches round by round, screening each candidate
// through the quota tracker. A quota-rejected candidate goes back to the
// collaborator with the rejection reason, up to MaxPlanningRetries revisions,
// before being dropped. Rounds stop when the size target is met, when enough
// columns are covered and at least one question is accepted, or when the
// round budget runs out. Collaborator failures burn a round instead of
// aborting; the pass only errors when it ends with nothing accepted.
//
// # Outputs
//   - []research.Question: accepted questions, in acceptance order.
//   - error: ErrNoQuestions (possibly wrapped with the last collaborator
//     failure) when nothing was accepted.
func (p *Planner) Breadth(ctx context.Context, profile *dataset.Profile) ([]research.Question, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var accepted []research.Question
	var lastErr error
	columns := profile.ColumnNames()

	for round := 0; round < p.cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		remaining := p.cfg.TargetQuestions - len(accepted)
		if remaining <= 0 {
			break
		}
		saturated := p.saturatedColumns(columns)
		candidates, err := p.gen.BreadthQuestions(ctx, profile, remaining, saturated)
		if err != nil {
			lastErr = err
			p.log.Warn("Question generation round failed", "round", round, "error", err)
			continue
		}
		for _, c := range candidates {
			q, err := p.screenWithRevision(ctx, profile, c)
			if err != nil {
				continue
			}
			accepted = append(accepted, q)
			if len(accepted) >= p.cfg.TargetQuestions {
				break
			}
		}
		covered := p.tracker.CoveredColumns(columns)
		if len(columns) > 0 && float64(covered)/float64(len(columns)) >= p.cfg.CoverageTarget && len(accepted) > 0 {
			p.log.Info("Column coverage target reached",
				"covered", covered, "total", len(columns), "accepted", len(accepted))
			break
		}
	}

	if len(accepted) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoQuestions, lastErr)
		}
		return nil, ErrNoQuestions
	}
	p.log.Info("Breadth planning complete", "accepted", len(accepted))
	return accepted, nil
}

// Depth proposes and screens follow-ups to an answered question.
//
// # Description
//
// A follow-up must genuinely move on from its parent: candidates reusing the
// parent's exact column set or its visualization are rejected before quota
// screening. Depth failures are never fatal; an empty slice is a normal
// outcome.
func (p *Planner) Depth(ctx context.Context, parent research.Question, result *research.Table) []research.Question {
	if p.cfg.FollowUpsPerParent == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	candidates, err := p.gen.DepthQuestions(ctx, parent, result, p.cfg.FollowUpsPerParent)
	if err != nil {
		p.log.Warn("Follow-up generation failed", "parent", parent.ID, "error", err)
		return nil
	}
	var accepted []research.Question
	for _, c := range candidates {
		if q, err := p.screen(nil, c, &parent); err == nil {
			accepted = append(accepted, q)
			if len(accepted) >= p.cfg.FollowUpsPerParent {
				break
			}
		}
	}
	return accepted
}

// errMalformedCandidate marks candidates a revision cannot save: incomplete
// fields, unknown visualizations, columns the dataset does not have.
var errMalformedCandidate = errors.New("plan: malformed candidate")

// screenWithRevision screens a breadth candidate, sending quota rejections
// back to the collaborator with the rejection reason until one revision is
// accepted or the retry budget runs out.
func (p *Planner) screenWithRevision(ctx context.Context, profile *dataset.Profile, c collab.Candidate) (research.Question, error) {
	q, err := p.screen(profile, c, nil)
	for retries := 0; err != nil && quotaRejected(err) && retries < p.cfg.MaxPlanningRetries; retries++ {
		revised, rerr := p.gen.ReviseQuestion(ctx, profile, c, err.Error())
		if rerr != nil {
			p.log.Debug("Candidate revision failed", "text", c.Text, "error", rerr)
			return research.Question{}, err
		}
		c = revised
		q, err = p.screen(profile, c, nil)
	}
	if err != nil {
		p.log.Debug("Dropping candidate", "text", c.Text, "error", err)
	}
	return q, err
}

// quotaRejected reports whether the screening error is a quota reservation
// failure worth sending back for revision.
func quotaRejected(err error) bool {
	return errors.Is(err, quota.ErrColumnCapExceeded) ||
		errors.Is(err, quota.ErrVisualizationCapExceeded) ||
		errors.Is(err, quota.ErrDuplicateCombination)
}

// screen applies structural checks and the quota reservation to one
// candidate. A nil profile skips column-existence checks (depth candidates
// are checked against the parent instead).
func (p *Planner) screen(profile *dataset.Profile, c collab.Candidate, parent *research.Question) (research.Question, error) {
	cols := research.NormalizeColumns(c.SourceColumns)
	if c.Text == "" || c.Category == "" || len(cols) == 0 {
		return research.Question{}, fmt.Errorf("%w: missing text, category, or columns", errMalformedCandidate)
	}
	if !knownVisualization(c.Visualization) {
		return research.Question{}, fmt.Errorf("%w: unknown visualization %q", errMalformedCandidate, c.Visualization)
	}
	if profile != nil {
		for _, col := range cols {
			if _, ok := profile.Column(col); !ok {
				return research.Question{}, fmt.Errorf("%w: column %q is not in the dataset", errMalformedCandidate, col)
			}
		}
	}
	depth := 0
	parentID := ""
	if parent != nil {
		if c.Visualization == parent.Visualization {
			return research.Question{}, fmt.Errorf("%w: same visualization as parent", errMalformedCandidate)
		}
		if research.Signature(parent.Category, cols) == parent.Signature() {
			return research.Question{}, fmt.Errorf("%w: same column set as parent", errMalformedCandidate)
		}
		depth = parent.Depth + 1
		parentID = parent.ID
	}
	if err := p.tracker.Reserve(cols, c.Visualization, c.Category); err != nil {
		return research.Question{}, err
	}
	return research.Question{
		ID:            uuid.NewString(),
		Text:          c.Text,
		Category:      c.Category,
		SourceColumns: cols,
		Visualization: c.Visualization,
		ParentID:      parentID,
		Depth:         depth,
	}, nil
}

// saturatedColumns lists profiled columns that hit their usage cap, so the
// collaborator can be steered away from them.
func (p *Planner) saturatedColumns(columns []string) []string {
	var out []string
	for _, c := range columns {
		if p.tracker.ColumnSaturated(c) {
			out = append(out, c)
		}
	}
	return out
}

func knownVisualization(v research.VisualizationType) bool {
	for _, known := range research.AllVisualizations() {
		if v == known {
			return true
		}
	}
	return false
}
