// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package quota enforces the per-column and per-visualization usage caps
// across one planning batch.
//
// # Description
//
// Every question the planner wants to accept is first reserved here.
// Reservation is atomic check-then-commit under one mutex: counters are
// mutated only when every cap still holds, so a rejected reservation leaves
// the tracker exactly as it was. Reservation order decides which of two
// simultaneous conflicting requests wins; exactly one of them succeeds.
//
// # Thread Safety
//
// Tracker is safe for concurrent use.
package quota

import (
	"errors"
	"fmt"
	"sync"

	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// Rejection reasons. The planner feeds these back to the question
// collaborator verbatim.
var (
	// ErrColumnCapExceeded means a source column is already at its cap.
	ErrColumnCapExceeded = errors.New("quota: column usage cap exceeded")

	// ErrVisualizationCapExceeded means the visualization type is at its cap.
	ErrVisualizationCapExceeded = errors.New("quota: visualization usage cap exceeded")

	// ErrDuplicateCombination means the (category, columns) pair is already taken.
	ErrDuplicateCombination = errors.New("quota: duplicate category/column combination")

	// ErrInvalidInput indicates a malformed reservation request.
	ErrInvalidInput = errors.New("quota: invalid input")
)

// Config sets the batch caps.
type Config struct {
	// MaxColumnUses caps how many accepted questions may reference any
	// single column.
	MaxColumnUses int

	// MaxVisualizationUses caps how many accepted questions may share a
	// visualization type. Wildcard types are exempt.
	MaxVisualizationUses int
}

// DefaultConfig returns the caps used by a standard report run.
func DefaultConfig() Config {
	return Config{MaxColumnUses: 3, MaxVisualizationUses: 2}
}

// Tracker holds the mutable quota state for one planning batch.
type Tracker struct {
	cfg Config

	mu         sync.Mutex
	columnUses map[string]int
	vizUses    map[research.VisualizationType]int
	signatures map[string]struct{}
	accepted   int
}

// NewTracker creates a tracker with the given caps.
func NewTracker(cfg Config) *Tracker {
	if cfg.MaxColumnUses <= 0 {
		cfg.MaxColumnUses = DefaultConfig().MaxColumnUses
	}
	if cfg.MaxVisualizationUses <= 0 {
		cfg.MaxVisualizationUses = DefaultConfig().MaxVisualizationUses
	}
	return &Tracker{
		cfg:        cfg,
		columnUses: make(map[string]int),
		vizUses:    make(map[research.VisualizationType]int),
		signatures: make(map[string]struct{}),
	}
}

// Reserve attempts to claim quota for a candidate question.
//
// # Description
//
// Checks all three batch invariants and commits the counters only when every
// one of them still holds after the increment. On rejection nothing is
// mutated and the returned error names the reason.
//
// # Inputs
//
//   - columns: The candidate's source columns. Must be non-empty.
//   - viz: The candidate's visualization type.
//   - category: The candidate's analytical category.
//
// # Outputs
//
//   - error: nil on acceptance; ErrColumnCapExceeded,
//     ErrVisualizationCapExceeded, or ErrDuplicateCombination on rejection.
func (t *Tracker) Reserve(columns []string, viz research.VisualizationType, category string) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: no source columns", ErrInvalidInput)
	}
	if category == "" {
		return fmt.Errorf("%w: empty category", ErrInvalidInput)
	}

	normalized := research.NormalizeColumns(append([]string(nil), columns...))
	sig := research.Signature(category, normalized)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.signatures[sig]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateCombination, sig)
	}
	for _, col := range normalized {
		if t.columnUses[col]+1 > t.cfg.MaxColumnUses {
			return fmt.Errorf("%w: column %q", ErrColumnCapExceeded, col)
		}
	}
	if !viz.Wildcard() && t.vizUses[viz]+1 > t.cfg.MaxVisualizationUses {
		return fmt.Errorf("%w: %s", ErrVisualizationCapExceeded, viz)
	}

	for _, col := range normalized {
		t.columnUses[col]++
	}
	if !viz.Wildcard() {
		t.vizUses[viz]++
	}
	t.signatures[sig] = struct{}{}
	t.accepted++
	return nil
}

// Snapshot is a point-in-time copy of the tracker counters.
type Snapshot struct {
	ColumnUses        map[string]int
	VisualizationUses map[research.VisualizationType]int
	Accepted          int
}

// Snapshot copies the current counters for tests and metrics.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		ColumnUses:        make(map[string]int, len(t.columnUses)),
		VisualizationUses: make(map[research.VisualizationType]int, len(t.vizUses)),
		Accepted:          t.accepted,
	}
	for k, v := range t.columnUses {
		snap.ColumnUses[k] = v
	}
	for k, v := range t.vizUses {
		snap.VisualizationUses[k] = v
	}
	return snap
}

// ColumnSaturated reports whether the column has reached its cap.
func (t *Tracker) ColumnSaturated(col string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.columnUses[col] >= t.cfg.MaxColumnUses
}

// CoveredColumns returns how many of the given columns are referenced by at
// least one accepted question.
func (t *Tracker) CoveredColumns(all []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	covered := 0
	for _, c := range all {
		if t.columnUses[c] > 0 {
			covered++
		}
	}
	return covered
}
