// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package research defines the shared domain types of the Lantern Studio
// analysis pipeline: research questions, computed tables, findings, and the
// assembled report.
//
// # Description
//
// These types cross package boundaries between the planner, the computation
// engine, the curator, the arranger, and the report assembler. They are plain
// values with no behavior beyond lookups and signatures; each pipeline stage
// owns its own logic.
//
// # Thread Safety
//
// All types are immutable after construction and safe to share across
// goroutines. The computation engine hands out distinct Finding values per
// task; nothing here is mutated concurrently.
package research

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// VisualizationType identifies the chart family a question targets.
// The shape contract a computed table must satisfy is keyed by this type.
type VisualizationType string

const (
	VizScatter     VisualizationType = "scatter"
	VizBubble      VisualizationType = "bubble"
	VizLine        VisualizationType = "line"
	VizArea        VisualizationType = "area"
	VizBox         VisualizationType = "box"
	VizViolin      VisualizationType = "violin"
	VizHistogram   VisualizationType = "histogram"
	VizHeatmap     VisualizationType = "heatmap"
	VizStackedBar  VisualizationType = "stacked_bar"
	VizStackedArea VisualizationType = "stacked_area"
	VizWordCloud   VisualizationType = "wordcloud"
)

// VizKind groups visualization types by the narrative role they play
// and by the shape contract they impose.
type VizKind int

const (
	// KindComposition covers part-of-whole charts (stacked bar/area).
	KindComposition VizKind = iota

	// KindFrequency covers token-frequency output (word clouds).
	KindFrequency

	// KindDistribution covers single-variable charts (box, violin, histogram).
	KindDistribution

	// KindTemporal covers ordered-axis charts (line, area).
	KindTemporal

	// KindRelation covers paired-numeric charts (scatter, bubble).
	KindRelation

	// KindMatrix covers two-dimensional grids (heatmap).
	KindMatrix
)

// Kind returns the narrative/shape family for the visualization type.
func (v VisualizationType) Kind() VizKind {
	switch v {
	case VizStackedBar, VizStackedArea:
		return KindComposition
	case VizWordCloud:
		return KindFrequency
	case VizBox, VizViolin, VizHistogram:
		return KindDistribution
	case VizLine, VizArea:
		return KindTemporal
	case VizScatter, VizBubble:
		return KindRelation
	case VizHeatmap:
		return KindMatrix
	default:
		return KindDistribution
	}
}

// Wildcard reports whether the type is exempt from the per-type usage cap.
func (v VisualizationType) Wildcard() bool {
	return v == VizWordCloud
}

// AllVisualizations lists every supported type in declaration order.
func AllVisualizations() []VisualizationType {
	return []VisualizationType{
		VizScatter, VizBubble, VizLine, VizArea, VizBox, VizViolin,
		VizHistogram, VizHeatmap, VizStackedBar, VizStackedArea, VizWordCloud,
	}
}

// Question is an accepted research question. Immutable once the planner has
// reserved quota for it.
type Question struct {
	// ID is a stable identifier assigned at acceptance.
	ID string `json:"id"`

	// Text is the human-readable question.
	Text string `json:"text"`

	// Category is the analytical angle (e.g. "temporal", "correlation").
	Category string `json:"category"`

	// SourceColumns are the dataset columns the question is allowed to
	// touch. Stored sorted and deduplicated.
	SourceColumns []string `json:"source_columns"`

	// Visualization is the target chart family.
	Visualization VisualizationType `json:"visualization"`

	// ParentID is the breadth question this follow-up extends. Empty for
	// breadth questions.
	ParentID string `json:"parent_id,omitempty"`

	// Depth is 0 for breadth questions, 1+ for follow-ups.
	Depth int `json:"depth"`
}

// NormalizeColumns sorts and deduplicates a column set in place and
// returns it. The planner applies this before reserving quota so that
// signatures are order-independent.
func NormalizeColumns(cols []string) []string {
	sort.Strings(cols)
	out := cols[:0]
	var prev string
	for i, c := range cols {
		if i > 0 && c == prev {
			continue
		}
		out = append(out, c)
		prev = c
	}
	return out
}

// Signature returns the (category, sourceColumns) identity used for
// duplicate detection across the batch.
func (q Question) Signature() string {
	return Signature(q.Category, q.SourceColumns)
}

// Signature builds the duplicate-detection key for a category and column set.
// Columns are compared order-insensitively.
func Signature(category string, cols []string) string {
	sorted := append([]string(nil), cols...)
	sort.Strings(sorted)
	return strings.ToLower(category) + "|" + strings.Join(sorted, ",")
}

// Value is a single cell of a computed table.
type Value struct {
	// Str is the display form of the cell.
	Str string `json:"str"`

	// Num is the parsed numeric value, meaningful only when Numeric is set.
	Num float64 `json:"num,omitempty"`

	// Numeric reports whether Num holds a parsed number.
	Numeric bool `json:"numeric,omitempty"`

	// Missing marks an absent cell. Missing cells are never numeric.
	Missing bool `json:"missing,omitempty"`
}

// FormatNum renders a float the way table cells display it: integers
// without a decimal point, everything else with minimal digits.
func FormatNum(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Num returns a numeric cell.
func Num(f float64) Value { return Value{Str: FormatNum(f), Num: f, Numeric: true} }

// Str returns a string cell.
func Str(s string) Value { return Value{Str: s} }

// Missing returns an absent cell.
func Missing() Value { return Value{Missing: true} }

// Row is one record of a computed table, positionally aligned with
// Table.Columns.
type Row []Value

// Table is the computed result of a research question. Rows and columns are
// ordered; the table is immutable once produced by the executor.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Empty reports whether the table has no rows or no columns.
func (t *Table) Empty() bool {
	return t == nil || len(t.Columns) == 0 || len(t.Rows) == 0
}

// ColumnValues returns the cells of one column in row order.
func (t *Table) ColumnValues(idx int) []Value {
	vals := make([]Value, 0, len(t.Rows))
	for _, r := range t.Rows {
		if idx < len(r) {
			vals = append(vals, r[idx])
		}
	}
	return vals
}

// ChartSpec is an opaque chart document produced by the chart collaborator.
// The core checks presence only and never interprets the content.
type ChartSpec = json.RawMessage

// Narrative is the per-finding text produced by the narrator collaborator.
type Narrative struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Finding is a successfully computed and annotated research result.
// A Finding exists only for a task that reached the Succeeded state.
type Finding struct {
	Question  Question  `json:"question"`
	Table     *Table    `json:"table"`
	Chart     ChartSpec `json:"chart,omitempty"`
	Narrative Narrative `json:"narrative"`
}

// Section is a finding placed at a position in the final report ordering.
type Section struct {
	Position int     `json:"position"`
	Finding  Finding `json:"finding"`
}

// Report is the assembled artifact handed to external renderers.
type Report struct {
	Title        string    `json:"title"`
	Introduction string    `json:"introduction"`
	Sections     []Section `json:"sections"`
	Conclusion   string    `json:"conclusion"`
}
