// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package research

import (
	"testing"
)

func TestNormalizeColumns(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"sorts", []string{"b", "a"}, []string{"a", "b"}},
		{"dedupes", []string{"a", "b", "a"}, []string{"a", "b"}},
		{"single", []string{"x"}, []string{"x"}},
		{"empty", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeColumns(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestSignatureOrderInsensitive(t *testing.T) {
	a := Signature("Trends", []string{"Year", "Citations"})
	b := Signature("trends", []string{"Citations", "Year"})
	if a != b {
		t.Fatalf("signatures differ: %q vs %q", a, b)
	}
	c := Signature("trends", []string{"Citations"})
	if a == c {
		t.Fatalf("different column sets produced the same signature %q", a)
	}
}

func TestVisualizationKinds(t *testing.T) {
	tests := []struct {
		viz  VisualizationType
		kind VizKind
	}{
		{VizStackedBar, KindComposition},
		{VizStackedArea, KindComposition},
		{VizWordCloud, KindFrequency},
		{VizHistogram, KindDistribution},
		{VizBox, KindDistribution},
		{VizLine, KindTemporal},
		{VizScatter, KindRelation},
		{VizHeatmap, KindMatrix},
	}
	for _, tt := range tests {
		if got := tt.viz.Kind(); got != tt.kind {
			t.Errorf("%s: got kind %d, want %d", tt.viz, got, tt.kind)
		}
	}
}

func TestWildcard(t *testing.T) {
	if !VizWordCloud.Wildcard() {
		t.Error("wordcloud should be the wildcard type")
	}
	if VizScatter.Wildcard() {
		t.Error("scatter should not be a wildcard")
	}
}

func TestFormatNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{3, "3"},
		{-12, "-12"},
		{2.5, "2.5"},
		{0, "0"},
	}
	for _, tt := range tests {
		if got := FormatNum(tt.in); got != tt.want {
			t.Errorf("FormatNum(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableHelpers(t *testing.T) {
	table := &Table{
		Columns: []string{"a", "b"},
		Rows:    []Row{{Num(1), Str("x")}, {Num(2), Str("y")}},
	}
	if table.ColumnIndex("b") != 1 {
		t.Errorf("ColumnIndex(b) = %d, want 1", table.ColumnIndex("b"))
	}
	if table.ColumnIndex("missing") != -1 {
		t.Error("unknown column should index to -1")
	}
	if table.Empty() {
		t.Error("populated table reported empty")
	}
	var nilTable *Table
	if !nilTable.Empty() {
		t.Error("nil table should be empty")
	}
	vals := table.ColumnValues(0)
	if len(vals) != 2 || vals[1].Num != 2 {
		t.Errorf("ColumnValues(0) = %v", vals)
	}
}
