// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LanternAI/LanternStudio/services/studio/research"
)

func table(columns []string, rows ...research.Row) *research.Table {
	return &research.Table{Columns: columns, Rows: rows}
}

func TestCheckEmptyTable(t *testing.T) {
	require.ErrorIs(t, Check(nil, research.VizScatter), ErrShape)
	require.ErrorIs(t, Check(table([]string{"a"}), research.VizScatter), ErrShape)
}

func TestCheckRowCeiling(t *testing.T) {
	rows := make([]research.Row, maxRows+1)
	for i := range rows {
		rows[i] = research.Row{research.Num(float64(i))}
	}
	err := Check(&research.Table{Columns: []string{"v"}, Rows: rows}, research.VizHistogram)
	require.ErrorIs(t, err, ErrShape)
}

func TestCheckAllMissingColumn(t *testing.T) {
	tbl := table([]string{"a", "b"},
		research.Row{research.Num(1), research.Missing()},
		research.Row{research.Num(2), research.Missing()},
	)
	require.ErrorIs(t, Check(tbl, research.VizHistogram), ErrShape)
}

func TestCheckScatterNeedsTwoNumeric(t *testing.T) {
	good := table([]string{"x", "y"},
		research.Row{research.Num(1), research.Num(2)},
	)
	require.NoError(t, Check(good, research.VizScatter))

	bad := table([]string{"x", "label"},
		research.Row{research.Num(1), research.Str("a")},
	)
	require.ErrorIs(t, Check(bad, research.VizScatter), ErrShape)
}

func TestCheckLineNeedsOrderedAxis(t *testing.T) {
	ordered := table([]string{"year", "count"},
		research.Row{research.Num(2019), research.Num(3)},
		research.Row{research.Num(2019), research.Num(5)},
		research.Row{research.Num(2021), research.Num(4)},
	)
	require.NoError(t, Check(ordered, research.VizLine))

	unordered := table([]string{"year", "count"},
		research.Row{research.Num(2021), research.Num(4)},
		research.Row{research.Num(2019), research.Num(3)},
	)
	require.ErrorIs(t, Check(unordered, research.VizLine), ErrShape)
}

func TestCheckDistribution(t *testing.T) {
	good := table([]string{"group", "value"},
		research.Row{research.Str("a"), research.Num(1)},
		research.Row{research.Str("b"), research.Num(2)},
	)
	require.NoError(t, Check(good, research.VizBox))

	twoNumeric := table([]string{"x", "y"},
		research.Row{research.Num(1), research.Num(2)},
	)
	require.ErrorIs(t, Check(twoNumeric, research.VizHistogram), ErrShape)

	twoGroups := table([]string{"a", "b", "value"},
		research.Row{research.Str("x"), research.Str("y"), research.Num(1)},
	)
	require.ErrorIs(t, Check(twoGroups, research.VizViolin), ErrShape)
}

func TestCheckHeatmap(t *testing.T) {
	good := table([]string{"row", "col", "value"},
		research.Row{research.Str("a"), research.Str("b"), research.Num(1)},
	)
	require.NoError(t, Check(good, research.VizHeatmap))

	narrow := table([]string{"row", "value"},
		research.Row{research.Str("a"), research.Num(1)},
	)
	require.ErrorIs(t, Check(narrow, research.VizHeatmap), ErrShape)
}

func TestCheckStacked(t *testing.T) {
	good := table([]string{"series", "value"},
		research.Row{research.Str("a"), research.Num(1)},
	)
	require.NoError(t, Check(good, research.VizStackedBar))

	noCategory := table([]string{"x", "y"},
		research.Row{research.Num(1), research.Num(2)},
	)
	require.ErrorIs(t, Check(noCategory, research.VizStackedArea), ErrShape)
}

func TestCheckUnknownVisualization(t *testing.T) {
	tbl := table([]string{"v"}, research.Row{research.Num(1)})
	require.ErrorIs(t, Check(tbl, research.VisualizationType("sankey")), ErrShape)
}

func TestNormalizeWordCloudCapsEntries(t *testing.T) {
	rows := make([]research.Row, 80)
	for i := range rows {
		rows[i] = research.Row{
			research.Str(fmt.Sprintf("token%d", i)),
			research.Num(float64(i)),
		}
	}
	tbl := &research.Table{Columns: []string{"token", "count"}, Rows: rows}
	require.NoError(t, Check(tbl, research.VizWordCloud))

	out := Normalize(tbl, research.VizWordCloud)
	require.Len(t, out.Rows, maxWordCloudEntries)
	require.Equal(t, 79.0, out.Rows[0][1].Num, "sorted by count descending")
	require.Equal(t, 30.0, out.Rows[maxWordCloudEntries-1][1].Num)

	// Untouched input.
	require.Len(t, tbl.Rows, 80)
}

func TestNormalizePassThrough(t *testing.T) {
	tbl := table([]string{"x", "y"},
		research.Row{research.Num(2), research.Num(1)},
		research.Row{research.Num(1), research.Num(2)},
	)
	require.Same(t, tbl, Normalize(tbl, research.VizScatter))
}
