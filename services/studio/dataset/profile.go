// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the inferred semantic type of a column.
type ColumnType string

const (
	Categorical ColumnType = "categorical"
	Numeric     ColumnType = "numeric"
	Temporal    ColumnType = "temporal"
	Text        ColumnType = "text"
)

// NumericStats summarizes a numeric column.
type NumericStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// ColumnDescriptor describes one column for the question planner and the
// collaborator prompts.
type ColumnDescriptor struct {
	Name         string        `json:"name"`
	Type         ColumnType    `json:"type"`
	Cardinality  int           `json:"cardinality"`
	MissingRate  float64       `json:"missing_rate"`
	SampleValues []string      `json:"sample_values"`
	Stats        *NumericStats `json:"stats,omitempty"`
}

// Profile is the ordered column summary of a dataset. It is produced once
// per run and read-only to every downstream stage.
type Profile struct {
	Columns  []ColumnDescriptor `json:"columns"`
	RowCount int                `json:"row_count"`
}

// Column returns the descriptor for the named column.
func (p *Profile) Column(name string) (*ColumnDescriptor, bool) {
	for i := range p.Columns {
		if p.Columns[i].Name == name {
			return &p.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns all column names in dataset order.
func (p *Profile) ColumnNames() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Name
	}
	return out
}

// Inference thresholds. A numeric column whose distinct ratio falls under
// lowCardinalityRatio is treated as categorical; a string column under
// stringCategoricalRatio likewise. Strings averaging more than longTextLen
// characters are free text.
const (
	numericParseRatio      = 0.95
	lowCardinalityRatio    = 0.10
	stringCategoricalRatio = 0.30
	longTextLen            = 50

	// maxSampleValues caps the sample values carried per column.
	maxSampleValues = 10

	// yearMin/yearMax bound integer columns recognized as calendar years.
	yearMin = 1500
	yearMax = 2200
)

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "01/02/2006", "02.01.2006",
	"2006-01-02 15:04:05", time.RFC3339, "Jan 2, 2006", "2006-01",
}

// BuildProfile infers a column profile for the dataset.
//
// # Description
//
// Type inference follows, per column: values that overwhelmingly parse as
// numbers are numeric unless their distinct ratio marks them categorical or
// their integer range marks them as calendar years (temporal); values that
// parse as dates are temporal; remaining strings split into categorical and
// free text by distinct ratio and average length.
func BuildProfile(d *Dataset) *Profile {
	profile := &Profile{RowCount: d.RowCount()}
	for i, name := range d.columns {
		profile.Columns = append(profile.Columns, profileColumn(d, i, name))
	}
	return profile
}

func profileColumn(d *Dataset, idx int, name string) ColumnDescriptor {
	total := len(d.rows)
	missing := 0
	distinct := make(map[string]struct{})
	numeric := make([]float64, 0, total)
	dates := 0
	yearsOnly := true
	lengthSum := 0
	present := 0

	for _, row := range d.rows {
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			missing++
			continue
		}
		present++
		distinct[cell] = struct{}{}
		lengthSum += len(cell)

		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			numeric = append(numeric, f)
			if f != math.Trunc(f) || f < yearMin || f > yearMax {
				yearsOnly = false
			}
			continue
		}
		yearsOnly = false
		if parsesAsDate(cell) {
			dates++
		}
	}

	desc := ColumnDescriptor{
		Name:         name,
		Cardinality:  len(distinct),
		SampleValues: sampleValues(distinct),
	}
	if total > 0 {
		desc.MissingRate = float64(missing) / float64(total)
	}
	if present == 0 {
		desc.Type = Text
		return desc
	}

	distinctRatio := float64(len(distinct)) / float64(present)
	numericRatio := float64(len(numeric)) / float64(present)
	dateRatio := float64(dates) / float64(present)

	switch {
	case numericRatio >= numericParseRatio && yearsOnly && len(distinct) > 1:
		desc.Type = Temporal
		desc.Stats = numericStats(numeric)
	case numericRatio >= numericParseRatio && distinctRatio < lowCardinalityRatio:
		desc.Type = Categorical
	case numericRatio >= numericParseRatio:
		desc.Type = Numeric
		desc.Stats = numericStats(numeric)
	case dateRatio >= numericParseRatio:
		desc.Type = Temporal
	case distinctRatio < stringCategoricalRatio:
		desc.Type = Categorical
	case float64(lengthSum)/float64(present) > longTextLen:
		desc.Type = Text
	default:
		desc.Type = Categorical
	}
	return desc
}

func parsesAsDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func sampleValues(distinct map[string]struct{}) []string {
	vals := make([]string, 0, len(distinct))
	for v := range distinct {
		vals = append(vals, v)
	}
	sort.Strings(vals)
	if len(vals) > maxSampleValues {
		vals = vals[:maxSampleValues]
	}
	return vals
}

func numericStats(vals []float64) *NumericStats {
	if len(vals) == 0 {
		return nil
	}
	stats := &NumericStats{Min: vals[0], Max: vals[0]}
	sum := 0.0
	for _, v := range vals {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = sum / float64(len(vals))

	variance := 0.0
	for _, v := range vals {
		d := v - stats.Mean
		variance += d * d
	}
	stats.StdDev = math.Sqrt(variance / float64(len(vals)))
	return stats
}
