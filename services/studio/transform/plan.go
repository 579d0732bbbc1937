// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package transform defines the declarative transformation plans the
// code-generation collaborator produces, and executes them against a dataset.
//
// # Description
//
// Generated transformations are not code. They are JSON plans over a small
// set of primitives (filter, derive, group/aggregate, bin, pivot, sort,
// limit) that this package interprets. The executor receives only the
// columns a question declared, runs under a context deadline, and returns a
// typed result or a typed error, which removes the sandboxing problem of
// executing collaborator-written code outright.
//
// # Thread Safety
//
// Plans are immutable after parsing. The Executor is stateless apart from
// configuration and safe for concurrent use; the dataset it reads is shared
// read-only across tasks.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Typed execution failures. These map one-to-one onto the failure reasons
// fed back to the code-generation collaborator on retry.
var (
	// ErrPlanSyntax means the plan document is malformed or uses an
	// unknown primitive.
	ErrPlanSyntax = errors.New("transform: invalid plan")

	// ErrColumnAccess means the plan references a column outside the
	// question's declared source columns.
	ErrColumnAccess = errors.New("transform: column access violation")

	// ErrRuntime means the plan was well-formed but failed during
	// evaluation.
	ErrRuntime = errors.New("transform: runtime failure")

	// ErrTimeout means the execution deadline elapsed.
	ErrTimeout = errors.New("transform: execution deadline exceeded")
)

// Op names the transformation primitives.
type Op string

const (
	OpFilter Op = "filter"
	OpDerive Op = "derive"
	OpGroup  Op = "group"
	OpBin    Op = "bin"
	OpPivot  Op = "pivot"
	OpSort   Op = "sort"
	OpLimit  Op = "limit"
)

// AggFunc names the aggregation functions usable in group and pivot steps.
type AggFunc string

const (
	AggCount  AggFunc = "count"
	AggSum    AggFunc = "sum"
	AggMean   AggFunc = "mean"
	AggMedian AggFunc = "median"
	AggMin    AggFunc = "min"
	AggMax    AggFunc = "max"
)

// Aggregation is one output column of a group step.
type Aggregation struct {
	// Column is the input column. May be empty for count.
	Column string `json:"column,omitempty"`

	// Func is the aggregation function.
	Func AggFunc `json:"func"`

	// As names the output column. Defaults to "<func>_<column>".
	As string `json:"as,omitempty"`
}

// OutputName returns the effective output column name.
func (a Aggregation) OutputName() string {
	if a.As != "" {
		return a.As
	}
	if a.Column == "" {
		return string(a.Func)
	}
	return string(a.Func) + "_" + a.Column
}

// Step is one primitive of a transformation plan. Fields are op-specific;
// unused fields stay zero.
type Step struct {
	Op Op `json:"op"`

	// filter / bin / sort
	Column string `json:"column,omitempty"`

	// filter
	Compare string   `json:"compare,omitempty"` // eq ne gt ge lt le contains in notnull
	Value   string   `json:"value,omitempty"`
	Values  []string `json:"values,omitempty"`

	// derive
	Name     string `json:"name,omitempty"`
	Left     string `json:"left,omitempty"`
	Operator string `json:"operator,omitempty"` // add sub mul div
	Right    string `json:"right,omitempty"`

	// group
	By        []string      `json:"by,omitempty"`
	Aggregate []Aggregation `json:"aggregate,omitempty"`

	// bin
	Width float64 `json:"width,omitempty"`
	As    string  `json:"as,omitempty"`

	// pivot
	Index      string  `json:"index,omitempty"`
	Pivot      string  `json:"pivot,omitempty"`
	ValueCol   string  `json:"value_column,omitempty"`
	PivotFunc  AggFunc `json:"pivot_func,omitempty"`

	// sort
	Desc bool `json:"desc,omitempty"`

	// limit
	N int `json:"n,omitempty"`
}

// Plan is an ordered list of transformation steps.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Parse decodes a plan from collaborator output.
//
// # Description
//
// Collaborator responses frequently wrap JSON in markdown code fences; Parse
// strips them before decoding. A decode failure or an empty step list is a
// plan syntax error, which the engine feeds back on retry.
func Parse(raw string) (*Plan, error) {
	cleaned := stripFences(raw)
	var plan Plan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanSyntax, err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("%w: empty step list", ErrPlanSyntax)
	}
	return &plan, nil
}

// stripFences removes a leading/trailing markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Check statically validates the plan against the allowed column set.
//
// # Description
//
// Walks the steps tracking which columns are available at each point:
// derive, bin, and group introduce new names, pivot replaces the column
// space with values unknown until runtime (after which per-column checks are
// skipped). Any reference outside the available set is a column access
// violation; structural problems are plan syntax errors.
func (p *Plan) Check(allowed []string) error {
	avail := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		avail[c] = true
	}
	dynamic := false // column space no longer statically known (post-pivot)

	ref := func(col string) error {
		if dynamic || avail[col] {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrColumnAccess, col)
	}

	for i, s := range p.Steps {
		switch s.Op {
		case OpFilter:
			if s.Column == "" || s.Compare == "" {
				return fmt.Errorf("%w: step %d: filter needs column and compare", ErrPlanSyntax, i)
			}
			if err := ref(s.Column); err != nil {
				return err
			}
		case OpDerive:
			if s.Name == "" || s.Left == "" || s.Right == "" || s.Operator == "" {
				return fmt.Errorf("%w: step %d: derive needs name, left, operator, right", ErrPlanSyntax, i)
			}
			if err := ref(s.Left); err != nil {
				return err
			}
			if err := ref(s.Right); err != nil {
				return err
			}
			avail[s.Name] = true
		case OpGroup:
			if len(s.By) == 0 || len(s.Aggregate) == 0 {
				return fmt.Errorf("%w: step %d: group needs by and aggregate", ErrPlanSyntax, i)
			}
			next := make(map[string]bool)
			for _, b := range s.By {
				if err := ref(b); err != nil {
					return err
				}
				next[b] = true
			}
			for _, a := range s.Aggregate {
				if a.Func == "" {
					return fmt.Errorf("%w: step %d: aggregation needs func", ErrPlanSyntax, i)
				}
				if a.Column != "" {
					if err := ref(a.Column); err != nil {
						return err
					}
				} else if a.Func != AggCount {
					return fmt.Errorf("%w: step %d: %s needs a column", ErrPlanSyntax, i, a.Func)
				}
				next[a.OutputName()] = true
			}
			if !dynamic {
				avail = next
			}
		case OpBin:
			if s.Column == "" || s.Width <= 0 {
				return fmt.Errorf("%w: step %d: bin needs column and positive width", ErrPlanSyntax, i)
			}
			if err := ref(s.Column); err != nil {
				return err
			}
			if s.As != "" {
				avail[s.As] = true
			} else {
				avail[s.Column+"_bin"] = true
			}
		case OpPivot:
			if s.Index == "" || s.Pivot == "" || s.ValueCol == "" {
				return fmt.Errorf("%w: step %d: pivot needs index, pivot, value_column", ErrPlanSyntax, i)
			}
			for _, c := range []string{s.Index, s.Pivot, s.ValueCol} {
				if err := ref(c); err != nil {
					return err
				}
			}
			dynamic = true
		case OpSort:
			if s.Column == "" {
				return fmt.Errorf("%w: step %d: sort needs column", ErrPlanSyntax, i)
			}
			if err := ref(s.Column); err != nil {
				return err
			}
		case OpLimit:
			if s.N <= 0 {
				return fmt.Errorf("%w: step %d: limit needs positive n", ErrPlanSyntax, i)
			}
		default:
			return fmt.Errorf("%w: step %d: unknown op %q", ErrPlanSyntax, i, s.Op)
		}
	}
	return nil
}
