// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package quota

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/LanternAI/LanternStudio/services/studio/research"
)

func TestReserveAccepts(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	if err := tr.Reserve([]string{"Year"}, research.VizLine, "trends"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	snap := tr.Snapshot()
	if snap.Accepted != 1 || snap.ColumnUses["Year"] != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestReserveDuplicateCombination(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	if err := tr.Reserve([]string{"Year", "Citations"}, research.VizLine, "trends"); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	// Same category and column set, different order and case, different viz.
	err := tr.Reserve([]string{"Citations", "Year"}, research.VizScatter, "Trends")
	if !errors.Is(err, ErrDuplicateCombination) {
		t.Fatalf("expected ErrDuplicateCombination, got %v", err)
	}
}

func TestReserveColumnCap(t *testing.T) {
	tr := NewTracker(Config{MaxColumnUses: 2, MaxVisualizationUses: 100})
	for i := 0; i < 2; i++ {
		if err := tr.Reserve([]string{"Year"}, research.VizLine, fmt.Sprintf("cat%d", i)); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
	}
	err := tr.Reserve([]string{"Year"}, research.VizLine, "cat2")
	if !errors.Is(err, ErrColumnCapExceeded) {
		t.Fatalf("expected ErrColumnCapExceeded, got %v", err)
	}
	if !tr.ColumnSaturated("Year") {
		t.Error("Year should be saturated")
	}
}

func TestReserveVisualizationCap(t *testing.T) {
	tr := NewTracker(Config{MaxColumnUses: 100, MaxVisualizationUses: 2})
	cols := [][]string{{"a"}, {"b"}, {"c"}}
	for i := 0; i < 2; i++ {
		if err := tr.Reserve(cols[i], research.VizScatter, fmt.Sprintf("cat%d", i)); err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
	}
	err := tr.Reserve(cols[2], research.VizScatter, "cat2")
	if !errors.Is(err, ErrVisualizationCapExceeded) {
		t.Fatalf("expected ErrVisualizationCapExceeded, got %v", err)
	}
}

func TestWordCloudExemptFromVizCap(t *testing.T) {
	tr := NewTracker(Config{MaxColumnUses: 100, MaxVisualizationUses: 1})
	for i := 0; i < 5; i++ {
		col := fmt.Sprintf("col%d", i)
		if err := tr.Reserve([]string{col}, research.VizWordCloud, "freq"+col); err != nil {
			t.Fatalf("wordcloud Reserve %d: %v", i, err)
		}
	}
}

// TestRejectedReservationCommitsNothing verifies check-then-commit atomicity:
// a rejection must not consume quota for any of its columns.
func TestRejectedReservationCommitsNothing(t *testing.T) {
	tr := NewTracker(Config{MaxColumnUses: 1, MaxVisualizationUses: 100})
	if err := tr.Reserve([]string{"a"}, research.VizLine, "one"); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	// "a" is at its cap; reserving {a, b} must fail without touching "b".
	if err := tr.Reserve([]string{"a", "b"}, research.VizScatter, "two"); err == nil {
		t.Fatal("expected rejection")
	}
	if uses := tr.Snapshot().ColumnUses["b"]; uses != 0 {
		t.Fatalf("rejected reservation leaked %d uses onto column b", uses)
	}
	// "b" alone still fits.
	if err := tr.Reserve([]string{"b"}, research.VizScatter, "three"); err != nil {
		t.Fatalf("Reserve b: %v", err)
	}
}

func TestConcurrentReserves(t *testing.T) {
	tr := NewTracker(Config{MaxColumnUses: 10, MaxVisualizationUses: 1000})
	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = tr.Reserve([]string{"shared"}, research.VizScatter, fmt.Sprintf("cat%d", i))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		}
	}
	if accepted != 10 {
		t.Fatalf("accepted %d reservations, cap is 10", accepted)
	}
	if got := tr.Snapshot().ColumnUses["shared"]; got != 10 {
		t.Fatalf("column uses = %d, want 10", got)
	}
}
