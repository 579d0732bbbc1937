// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(
		[]string{"Conference", "Year", "Citations", "FirstPage", "LastPage"},
		[][]string{
			{"ICML", "2019", "120", "1", "12"},
			{"ICML", "2020", "80", "13", "20"},
			{"NeurIPS", "2019", "200", "1", "15"},
			{"NeurIPS", "2020", "40", "16", "22"},
			{"KDD", "2020", "", "23", "30"},
		},
	)
	require.NoError(t, err)
	return ds
}

func TestParseStripsFences(t *testing.T) {
	raw := "```json\n{\"steps\":[{\"op\":\"limit\",\"n\":2}]}\n```"
	plan, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, OpLimit, plan.Steps[0].Op)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("SELECT * FROM papers")
	require.ErrorIs(t, err, ErrPlanSyntax)

	_, err = Parse(`{"steps": []}`)
	require.ErrorIs(t, err, ErrPlanSyntax)
}

func TestCheckColumnAccess(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpFilter, Column: "Citations", Compare: "notnull"},
	}}
	require.NoError(t, plan.Check([]string{"Citations"}))

	err := plan.Check([]string{"Year"})
	require.ErrorIs(t, err, ErrColumnAccess)
}

func TestCheckDerivedColumnsBecomeAvailable(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpDerive, Name: "Pages", Left: "LastPage", Operator: "sub", Right: "FirstPage"},
		{Op: OpSort, Column: "Pages", Desc: true},
	}}
	require.NoError(t, plan.Check([]string{"FirstPage", "LastPage"}))
}

func TestCheckGroupReplacesColumnSpace(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpGroup, By: []string{"Conference"}, Aggregate: []Aggregation{
			{Column: "Citations", Func: AggMean, As: "MeanCitations"},
		}},
		// Citations no longer exists after the group.
		{Op: OpSort, Column: "Citations"},
	}}
	err := plan.Check([]string{"Conference", "Citations"})
	require.ErrorIs(t, err, ErrColumnAccess)
}

func TestExecuteFilterAndLimit(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpFilter, Column: "Year", Compare: "eq", Value: "2020"},
		{Op: OpLimit, N: 2},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t), []string{"Conference", "Year"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Equal(t, "ICML", table.Rows[0][0].Str)
}

func TestExecuteDerive(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpDerive, Name: "Pages", Left: "LastPage", Operator: "sub", Right: "FirstPage"},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t), []string{"FirstPage", "LastPage"})
	require.NoError(t, err)
	require.Equal(t, []string{"FirstPage", "LastPage", "Pages"}, table.Columns)
	require.Equal(t, 11.0, table.Rows[0][2].Num)
}

func TestExecuteGroupAggregates(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpGroup, By: []string{"Conference"}, Aggregate: []Aggregation{
			{Func: AggCount, As: "Papers"},
			{Column: "Citations", Func: AggMean, As: "MeanCitations"},
		}},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t), []string{"Conference", "Citations"})
	require.NoError(t, err)
	require.Equal(t, []string{"Conference", "Papers", "MeanCitations"}, table.Columns)
	require.Len(t, table.Rows, 3) // first-seen group order

	require.Equal(t, "ICML", table.Rows[0][0].Str)
	require.Equal(t, 2.0, table.Rows[0][1].Num)
	require.Equal(t, 100.0, table.Rows[0][2].Num)

	// KDD's only citation cell is missing: count still sees the row, mean
	// has nothing to average.
	require.Equal(t, "KDD", table.Rows[2][0].Str)
	require.Equal(t, 1.0, table.Rows[2][1].Num)
	require.True(t, table.Rows[2][2].Missing)
}

func TestExecuteBin(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpBin, Column: "Citations", Width: 100, As: "CitationBand"},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t), []string{"Citations"})
	require.NoError(t, err)
	band := table.ColumnIndex("CitationBand")
	require.Equal(t, "100-200", table.Rows[0][band].Str)
	require.Equal(t, "0-100", table.Rows[1][band].Str)
	require.Equal(t, "200-300", table.Rows[2][band].Str)
	require.True(t, table.Rows[4][band].Missing)
}

func TestExecutePivot(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpPivot, Index: "Year", Pivot: "Conference", ValueCol: "Citations", PivotFunc: AggSum},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t),
		[]string{"Year", "Conference", "Citations"})
	require.NoError(t, err)
	require.Equal(t, []string{"Year", "ICML", "NeurIPS", "KDD"}, table.Columns)
	require.Len(t, table.Rows, 2)
	// 2019 row: ICML=120, NeurIPS=200, KDD absent.
	require.Equal(t, 2019.0, table.Rows[0][0].Num)
	require.Equal(t, 120.0, table.Rows[0][1].Num)
	require.Equal(t, 200.0, table.Rows[0][2].Num)
	require.True(t, table.Rows[0][3].Missing)
}

func TestExecutePivotRenamesCollidingValues(t *testing.T) {
	// A pivot value equal to the index column name must not shadow the
	// index: the colliding output column gets a numeric suffix and the
	// index stays addressable by later steps.
	ds, err := dataset.New(
		[]string{"Metric", "Segment", "Amount"},
		[][]string{
			{"revenue", "Metric", "10"},
			{"revenue", "web", "20"},
			{"cost", "Metric", "5"},
			{"cost", "web", "15"},
		},
	)
	require.NoError(t, err)

	plan := &Plan{Steps: []Step{
		{Op: OpPivot, Index: "Metric", Pivot: "Segment", ValueCol: "Amount", PivotFunc: AggSum},
		{Op: OpSort, Column: "Metric"},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, ds,
		[]string{"Metric", "Segment", "Amount"})
	require.NoError(t, err)
	require.Equal(t, []string{"Metric", "Metric_2", "web"}, table.Columns)
	require.Len(t, table.Rows, 2)
	// Sorted on the index column, not the pivoted "Metric" values.
	require.Equal(t, "cost", table.Rows[0][0].Str)
	require.Equal(t, 5.0, table.Rows[0][1].Num)
	require.Equal(t, 15.0, table.Rows[0][2].Num)
	require.Equal(t, "revenue", table.Rows[1][0].Str)
	require.Equal(t, 10.0, table.Rows[1][1].Num)
	require.Equal(t, 20.0, table.Rows[1][2].Num)
}

func TestExecuteSortNumericDesc(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpSort, Column: "Citations", Desc: true},
	}}
	table, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t), []string{"Citations"})
	require.NoError(t, err)
	require.Equal(t, 200.0, table.Rows[0][0].Num)
	require.Equal(t, 40.0, table.Rows[3][0].Num)
	require.True(t, table.Rows[4][0].Missing, "missing values sort last")
}

func TestExecuteRejectsUndeclaredColumn(t *testing.T) {
	plan := &Plan{Steps: []Step{
		{Op: OpFilter, Column: "Citations", Compare: "notnull"},
	}}
	_, err := NewExecutor(0).Execute(context.Background(), plan, testDataset(t), []string{"Year"})
	require.ErrorIs(t, err, ErrColumnAccess)
}

func TestExecuteDeadline(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	plan := &Plan{Steps: []Step{{Op: OpLimit, N: 1}}}
	_, err := NewExecutor(0).Execute(ctx, plan, testDataset(t), []string{"Year"})
	require.ErrorIs(t, err, ErrTimeout)
}

func TestExecuteRowCeiling(t *testing.T) {
	plan := &Plan{Steps: []Step{{Op: OpLimit, N: 5}}}
	_, err := NewExecutor(2).Execute(context.Background(), plan, testDataset(t), []string{"Year"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRuntime))
}
