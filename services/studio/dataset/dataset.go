// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dataset provides CSV ingestion and column profiling.
//
// # Description
//
// A Dataset is an immutable, in-memory view of a tabular file. It is loaded
// once at the start of a run and then shared read-only by every concurrently
// executing transformation; nothing in this package mutates a Dataset after
// construction.
//
// # Thread Safety
//
// Dataset and Profile are safe for concurrent use after construction.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrInvalidInput indicates malformed input to a dataset operation.
var ErrInvalidInput = errors.New("dataset: invalid input")

// ErrUnknownColumn indicates a reference to a column the dataset lacks.
var ErrUnknownColumn = errors.New("dataset: unknown column")

// Dataset is an immutable in-memory table. Cells are stored as raw strings;
// the empty string is treated as a missing value.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New constructs a Dataset from a header and rows.
//
// # Inputs
//
//   - columns: Header names. Must be non-empty and free of duplicates.
//   - rows: Data rows. Short rows are padded with missing cells; long rows
//     are truncated to the header width.
//
// # Outputs
//
//   - *Dataset: The constructed dataset.
//   - error: Non-nil on an empty or duplicated header.
func New(columns []string, rows [][]string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidInput)
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		name := strings.TrimSpace(c)
		if name == "" {
			return nil, fmt.Errorf("%w: blank column name at position %d", ErrInvalidInput, i)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidInput, name)
		}
		index[name] = i
	}
	clean := make([]string, len(columns))
	for i, c := range columns {
		clean[i] = strings.TrimSpace(c)
	}

	normalized := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(clean))
		copy(row, r)
		normalized[i] = row
	}

	return &Dataset{columns: clean, index: index, rows: normalized}, nil
}

// Load reads a CSV file from disk.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()
	ds, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return ds, nil
}

// Read parses CSV content from a reader. The first record is the header.
func Read(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // tolerate ragged rows, normalized in New
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: no header row", ErrInvalidInput)
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: parse csv: %w", err)
		}
		rows = append(rows, record)
	}

	return New(header, rows)
}

// Columns returns the header names in order. The slice is a copy.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// RowCount returns the number of data rows.
func (d *Dataset) RowCount() int { return len(d.rows) }

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// ColumnIndex returns the position of the named column.
func (d *Dataset) ColumnIndex(name string) (int, error) {
	i, ok := d.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return i, nil
}

// Cell returns the raw cell at (row, column index). Empty string means
// missing. The caller must keep row and col in range.
func (d *Dataset) Cell(row, col int) string {
	return d.rows[row][col]
}

// Column returns all cells of the named column in row order.
func (d *Dataset) Column(name string) ([]string, error) {
	idx, err := d.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[idx]
	}
	return out, nil
}
