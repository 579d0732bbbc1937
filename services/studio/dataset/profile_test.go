// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildDataset(t *testing.T, header string, cells []string) *Dataset {
	t.Helper()
	rows := make([][]string, len(cells))
	for i, c := range cells {
		rows[i] = []string{c}
	}
	ds, err := New(strings.Split(header, ","), rows)
	require.NoError(t, err)
	return ds
}

func TestProfileNumericColumn(t *testing.T) {
	cells := make([]string, 100)
	for i := range cells {
		cells[i] = fmt.Sprintf("%d.5", i)
	}
	profile := BuildProfile(buildDataset(t, "score", cells))

	col, ok := profile.Column("score")
	require.True(t, ok)
	require.Equal(t, Numeric, col.Type)
	require.NotNil(t, col.Stats)
	require.Equal(t, 0.5, col.Stats.Min)
	require.Equal(t, 99.5, col.Stats.Max)
}

func TestProfileLowCardinalityNumbersAreCategorical(t *testing.T) {
	// 100 rows drawn from 3 distinct codes: categorical despite parsing
	// as numbers.
	cells := make([]string, 100)
	for i := range cells {
		cells[i] = fmt.Sprintf("%d", i%3)
	}
	profile := BuildProfile(buildDataset(t, "code", cells))

	col, ok := profile.Column("code")
	require.True(t, ok)
	require.Equal(t, Categorical, col.Type)
	require.Equal(t, 3, col.Cardinality)
}

func TestProfileYearColumnIsTemporal(t *testing.T) {
	cells := make([]string, 60)
	for i := range cells {
		cells[i] = fmt.Sprintf("%d", 1990+i%30)
	}
	profile := BuildProfile(buildDataset(t, "Year", cells))

	col, ok := profile.Column("Year")
	require.True(t, ok)
	require.Equal(t, Temporal, col.Type)
}

func TestProfileDateColumnIsTemporal(t *testing.T) {
	cells := make([]string, 40)
	for i := range cells {
		cells[i] = fmt.Sprintf("2023-0%d-1%d", i%9+1, i%9)
	}
	profile := BuildProfile(buildDataset(t, "published", cells))

	col, ok := profile.Column("published")
	require.True(t, ok)
	require.Equal(t, Temporal, col.Type)
}

func TestProfileStringColumns(t *testing.T) {
	// Low distinct ratio: categorical.
	labels := make([]string, 90)
	for i := range labels {
		labels[i] = []string{"red", "green", "blue"}[i%3]
	}
	profile := BuildProfile(buildDataset(t, "color", labels))
	col, ok := profile.Column("color")
	require.True(t, ok)
	require.Equal(t, Categorical, col.Type)
	require.LessOrEqual(t, len(col.SampleValues), maxSampleValues)

	// Long, distinct strings: free text.
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("entry %d: %s", i, strings.Repeat("lorem ipsum ", 8))
	}
	profile = BuildProfile(buildDataset(t, "abstract", texts))
	col, ok = profile.Column("abstract")
	require.True(t, ok)
	require.Equal(t, Text, col.Type)
}

func TestProfileMissingRate(t *testing.T) {
	cells := []string{"a", "", "b", "", "a", "b", "a", "b", "a", "b"}
	profile := BuildProfile(buildDataset(t, "tag", cells))

	col, ok := profile.Column("tag")
	require.True(t, ok)
	require.InDelta(t, 0.2, col.MissingRate, 1e-9)
}
