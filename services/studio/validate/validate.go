// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validate checks computed result tables against the structural
// contract of their target visualization before any chart or narrative work
// is spent on them.
package validate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/LanternAI/LanternStudio/services/studio/research"
)

// ErrShape is the root of every shape rejection. The wrapped message names
// the violated contract and is fed back to the collaborator on retry.
var ErrShape = errors.New("validate: result shape rejected")

// maxWordCloudEntries caps word cloud tables after normalization.
const maxWordCloudEntries = 50

// minRows is the generic floor: a chartable table needs at least one row.
const minRows = 1

// maxRows is the generic ceiling on chartable tables. Larger results are a
// sign the transformation forgot to aggregate.
const maxRows = 5000

// Check verifies that a table fits its visualization's structural contract.
//
// # Description
//
// Generic checks run first (non-empty, bounded row count, no all-missing
// columns), then the per-visualization contract. The error message is
// written to be actionable as retry feedback.
//
// # Inputs
//   - table: the computed result.
//   - viz: the visualization the question wants.
//
// # Outputs
//   - error: nil when the table is chartable, otherwise wraps ErrShape.
func Check(table *research.Table, viz research.VisualizationType) error {
	if table == nil || table.Empty() {
		return fmt.Errorf("%w: table is empty", ErrShape)
	}
	if len(table.Rows) > maxRows {
		return fmt.Errorf("%w: %d rows exceeds the %d row ceiling, aggregate first", ErrShape, len(table.Rows), maxRows)
	}
	for i, col := range table.Columns {
		if allMissing(table, i) {
			return fmt.Errorf("%w: column %q has no values", ErrShape, col)
		}
	}

	num, cat := classify(table)
	switch viz {
	case research.VizScatter, research.VizBubble:
		if len(num) < 2 {
			return fmt.Errorf("%w: %s needs at least two numeric columns, got %d", ErrShape, viz, len(num))
		}
	case research.VizLine, research.VizArea:
		if len(num) < 1 {
			return fmt.Errorf("%w: %s needs a numeric value column", ErrShape, viz)
		}
		if !orderedAxis(table, 0) {
			return fmt.Errorf("%w: %s needs an ordered first column for its axis", ErrShape, viz)
		}
	case research.VizBox, research.VizViolin, research.VizHistogram:
		if len(num) != 1 {
			return fmt.Errorf("%w: %s needs exactly one numeric column, got %d", ErrShape, viz, len(num))
		}
		if len(cat) > 1 {
			return fmt.Errorf("%w: %s allows at most one grouping column, got %d", ErrShape, viz, len(cat))
		}
	case research.VizHeatmap:
		if len(table.Columns) < 3 {
			return fmt.Errorf("%w: heatmap needs two index columns and a value column", ErrShape)
		}
		if len(num) < 1 {
			return fmt.Errorf("%w: heatmap needs a numeric value column", ErrShape)
		}
	case research.VizStackedBar, research.VizStackedArea:
		if len(cat) < 1 || len(num) < 1 {
			return fmt.Errorf("%w: %s needs a category column and a numeric column", ErrShape, viz)
		}
	case research.VizWordCloud:
		if len(table.Columns) < 2 {
			return fmt.Errorf("%w: word cloud needs a token column and a count column", ErrShape)
		}
		if len(cat) < 1 || len(num) < 1 {
			return fmt.Errorf("%w: word cloud needs a string token column and a numeric count column", ErrShape)
		}
	default:
		return fmt.Errorf("%w: unknown visualization %q", ErrShape, viz)
	}
	return nil
}

// Normalize rewrites a validated table into its canonical charting form.
//
// # Description
//
// Today the only normalization is the word cloud cap: entries are sorted by
// count descending and truncated to the top entries. Other visualizations
// pass through untouched.
func Normalize(table *research.Table, viz research.VisualizationType) *research.Table {
	if viz != research.VizWordCloud || table == nil {
		return table
	}
	countCol := firstNumericColumn(table)
	if countCol < 0 {
		return table
	}
	rows := append([]research.Row{}, table.Rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		va, vb := rows[a][countCol], rows[b][countCol]
		if va.Missing || vb.Missing {
			return vb.Missing && !va.Missing
		}
		return va.Num > vb.Num
	})
	if len(rows) > maxWordCloudEntries {
		rows = rows[:maxWordCloudEntries]
	}
	return &research.Table{Columns: table.Columns, Rows: rows}
}

// classify splits column indexes into numeric and non-numeric groups. A
// column counts as numeric when every present value in it is numeric.
func classify(table *research.Table) (numeric, other []int) {
	for i := range table.Columns {
		if columnNumeric(table, i) {
			numeric = append(numeric, i)
		} else {
			other = append(other, i)
		}
	}
	return numeric, other
}

func columnNumeric(table *research.Table, col int) bool {
	present := false
	for _, row := range table.Rows {
		if col >= len(row) || row[col].Missing {
			continue
		}
		if !row[col].Numeric {
			return false
		}
		present = true
	}
	return present
}

func allMissing(table *research.Table, col int) bool {
	for _, row := range table.Rows {
		if col < len(row) && !row[col].Missing {
			return false
		}
	}
	return true
}

// orderedAxis reports whether the column is monotonically non-decreasing,
// which line and area charts need for a sane x axis.
func orderedAxis(table *research.Table, col int) bool {
	var prev *research.Value
	for i := range table.Rows {
		if col >= len(table.Rows[i]) {
			return false
		}
		v := table.Rows[i][col]
		if v.Missing {
			return false
		}
		if prev != nil {
			if prev.Numeric && v.Numeric {
				if v.Num < prev.Num {
					return false
				}
			} else if v.Str < prev.Str {
				return false
			}
		}
		vv := v
		prev = &vv
	}
	return true
}

func firstNumericColumn(table *research.Table) int {
	for i := range table.Columns {
		if columnNumeric(table, i) {
			return i
		}
	}
	return -1
}
