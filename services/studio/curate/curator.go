// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package curate selects which computed findings make the report.
//
// Curation runs only after every computation task has reached a terminal
// state, and is fully deterministic: the same terminal task set always
// yields the same selection, with no collaborator involvement.
package curate

import (
	"log/slog"
	"sort"

	"github.com/LanternAI/LanternStudio/services/studio/compute"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// Config tunes the curator.
type Config struct {
	// MaxFindings caps how many findings the report carries.
	MaxFindings int
}

// DefaultConfig returns the curator defaults.
func DefaultConfig() Config {
	return Config{MaxFindings: 8}
}

// Curator picks report findings from terminal tasks.
type Curator struct {
	cfg Config
	log *slog.Logger
}

// NewCurator creates a Curator.
func NewCurator(cfg Config, log *slog.Logger) *Curator {
	if cfg.MaxFindings <= 0 {
		cfg.MaxFindings = DefaultConfig().MaxFindings
	}
	if log == nil {
		log = slog.Default()
	}
	return &Curator{cfg: cfg, log: log}
}

// Select returns the curated findings, at most MaxFindings of them.
//
// # Description
//
// Only succeeded tasks with a complete finding are eligible; later tasks
// that somehow share a question signature with an earlier one are dropped.
// Eligible findings are ranked by a deterministic richness score that places
// single-cell tables below everything else, so they appear only when nothing
// richer fills the report. Ranking is a stable sort, so equal scores keep
// task order and reruns produce identical reports.
func (c *Curator) Select(tasks []*compute.Task) []research.Finding {
	type ranked struct {
		finding research.Finding
		score   int
	}
	var eligible []ranked
	seen := make(map[string]bool)

	for _, t := range tasks {
		if t == nil || t.State != compute.StateSucceeded {
			continue
		}
		if t.Table == nil || t.Table.Empty() || len(t.Chart) == 0 {
			c.log.Debug("Skipping finding without table or chart", "question", t.Question.ID)
			continue
		}
		sig := t.Question.Signature()
		if seen[sig] {
			c.log.Debug("Skipping duplicate signature", "question", t.Question.ID)
			continue
		}
		seen[sig] = true
		eligible = append(eligible, ranked{finding: t.Finding(), score: richness(t)})
	}

	sort.SliceStable(eligible, func(a, b int) bool {
		return eligible[a].score > eligible[b].score
	})
	if len(eligible) > c.cfg.MaxFindings {
		eligible = eligible[:c.cfg.MaxFindings]
	}

	out := make([]research.Finding, len(eligible))
	for i, r := range eligible {
		out[i] = r.finding
	}
	c.log.Info("Curation complete", "eligible", len(seen), "selected", len(out))
	return out
}

// richness scores a finding for ranking. Wider and longer tables score
// higher, with diminishing returns on length; follow-up depth earns a bonus
// since depth questions exist because their parent's result was interesting.
// A single-cell table scores below any wider or longer table at the same
// depth, so trivial results rank last without being excluded outright.
func richness(t *compute.Task) int {
	rows := len(t.Table.Rows)
	if rows > 30 {
		rows = 30
	}
	return 10*len(t.Table.Columns) + rows + 5*t.Question.Depth
}
