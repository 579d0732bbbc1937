// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package transform

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/LanternAI/LanternStudio/services/studio/dataset"
	"github.com/LanternAI/LanternStudio/services/studio/research"
)

const (
	// defaultMaxRows bounds intermediate and final frame sizes.
	defaultMaxRows = 200_000

	// deadlineCheckStride is how many rows a hot loop processes between
	// context checks.
	deadlineCheckStride = 2048
)

// Executor interprets transformation plans against a dataset.
type Executor struct {
	maxRows int
}

// NewExecutor creates an Executor.
//
// # Inputs
//   - maxRows: ceiling on frame sizes during evaluation. Non-positive
//     selects the default.
//
// # Outputs
//   - *Executor: ready for concurrent use.
func NewExecutor(maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Executor{maxRows: maxRows}
}

// frame is the in-flight table an evaluation mutates step by step.
type frame struct {
	cols []string
	idx  map[string]int
	rows [][]research.Value
}

func newFrame(cols []string) *frame {
	f := &frame{cols: cols, idx: make(map[string]int, len(cols))}
	for i, c := range cols {
		f.idx[c] = i
	}
	return f
}

func (f *frame) col(name string) (int, bool) {
	i, ok := f.idx[name]
	return i, ok
}

// Execute runs a plan over the dataset, restricted to the allowed columns.
//
// # Description
//
// The plan is statically checked first, then the allowed columns are
// projected out of the dataset into a working frame and each step is applied
// in order. The context is checked between steps and inside row loops; a
// lapsed deadline surfaces as ErrTimeout so the engine can distinguish it
// from plan defects. Errors wrap ErrPlanSyntax, ErrColumnAccess, ErrRuntime,
// or ErrTimeout.
//
// # Inputs
//   - ctx: carries the per-task execution deadline.
//   - plan: parsed transformation plan.
//   - ds: the shared dataset, read-only.
//   - allowed: the question's declared source columns.
//
// # Outputs
//   - *research.Table: the materialized result.
//   - error: nil on success.
func (e *Executor) Execute(ctx context.Context, plan *Plan, ds *dataset.Dataset, allowed []string) (*research.Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: nil plan", ErrPlanSyntax)
	}
	if err := plan.Check(allowed); err != nil {
		return nil, err
	}

	f, err := loadFrame(ds, allowed)
	if err != nil {
		return nil, err
	}

	for i, s := range plan.Steps {
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		switch s.Op {
		case OpFilter:
			f, err = applyFilter(ctx, f, s)
		case OpDerive:
			f, err = applyDerive(ctx, f, s)
		case OpGroup:
			f, err = applyGroup(ctx, f, s)
		case OpBin:
			f, err = applyBin(ctx, f, s)
		case OpPivot:
			f, err = applyPivot(ctx, f, s)
		case OpSort:
			f, err = applySort(f, s)
		case OpLimit:
			f, err = applyLimit(f, s)
		default:
			err = fmt.Errorf("%w: unknown op %q", ErrPlanSyntax, s.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Op, err)
		}
		if len(f.rows) > e.maxRows {
			return nil, fmt.Errorf("%w: step %d produced %d rows, ceiling is %d", ErrRuntime, i, len(f.rows), e.maxRows)
		}
	}

	table := &research.Table{Columns: f.cols, Rows: make([]research.Row, len(f.rows))}
	for i, r := range f.rows {
		table.Rows[i] = research.Row(r)
	}
	return table, nil
}

// checkCtx translates a lapsed context into the typed failure set.
func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrTimeout
		}
		return fmt.Errorf("transform: %w", ctx.Err())
	default:
		return nil
	}
}

// loadFrame projects the allowed columns out of the dataset, parsing cells
// into typed values once up front.
func loadFrame(ds *dataset.Dataset, allowed []string) (*frame, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrRuntime)
	}
	cols := make([]string, 0, len(allowed))
	src := make([]int, 0, len(allowed))
	for _, name := range allowed {
		i, err := ds.ColumnIndex(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a dataset column", ErrColumnAccess, name)
		}
		cols = append(cols, name)
		src = append(src, i)
	}
	f := newFrame(cols)
	f.rows = make([][]research.Value, ds.RowCount())
	for r := 0; r < ds.RowCount(); r++ {
		row := make([]research.Value, len(cols))
		for j, c := range src {
			row[j] = parseCell(ds.Cell(r, c))
		}
		f.rows[r] = row
	}
	return f, nil
}

func parseCell(raw string) research.Value {
	if raw == "" {
		return research.Missing()
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		return research.Num(n)
	}
	return research.Str(raw)
}

func applyFilter(ctx context.Context, f *frame, s Step) (*frame, error) {
	ci, ok := f.col(s.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Column)
	}
	pred, err := buildPredicate(s)
	if err != nil {
		return nil, err
	}
	out := newFrame(f.cols)
	for i, row := range f.rows {
		if i%deadlineCheckStride == 0 {
			if err := checkCtx(ctx); err != nil {
				return nil, err
			}
		}
		if pred(row[ci]) {
			out.rows = append(out.rows, row)
		}
	}
	return out, nil
}

func buildPredicate(s Step) (func(research.Value) bool, error) {
	switch s.Compare {
	case "notnull":
		return func(v research.Value) bool { return !v.Missing }, nil
	case "contains":
		needle := strings.ToLower(s.Value)
		return func(v research.Value) bool {
			return !v.Missing && strings.Contains(strings.ToLower(v.Str), needle)
		}, nil
	case "in":
		set := make(map[string]bool, len(s.Values))
		for _, v := range s.Values {
			set[v] = true
		}
		return func(v research.Value) bool {
			return !v.Missing && set[valueString(v)]
		}, nil
	case "eq", "ne", "gt", "ge", "lt", "le":
		return orderedPredicate(s.Compare, s.Value), nil
	default:
		return nil, fmt.Errorf("%w: unknown compare %q", ErrPlanSyntax, s.Compare)
	}
}

// orderedPredicate compares numerically when both sides parse as numbers,
// lexically otherwise.
func orderedPredicate(op, rhs string) func(research.Value) bool {
	rhsNum, rhsIsNum := parseNum(rhs)
	return func(v research.Value) bool {
		if v.Missing {
			return false
		}
		var c int
		if v.Numeric && rhsIsNum {
			switch {
			case v.Num < rhsNum:
				c = -1
			case v.Num > rhsNum:
				c = 1
			}
		} else {
			c = strings.Compare(valueString(v), rhs)
		}
		switch op {
		case "eq":
			return c == 0
		case "ne":
			return c != 0
		case "gt":
			return c > 0
		case "ge":
			return c >= 0
		case "lt":
			return c < 0
		default: // le
			return c <= 0
		}
	}
}

func parseNum(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return n, err == nil
}

func valueString(v research.Value) string {
	if v.Missing {
		return ""
	}
	if v.Numeric {
		return research.FormatNum(v.Num)
	}
	return v.Str
}

func applyDerive(ctx context.Context, f *frame, s Step) (*frame, error) {
	li, ok := f.col(s.Left)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Left)
	}
	ri, ok := f.col(s.Right)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Right)
	}
	if _, exists := f.col(s.Name); exists {
		return nil, fmt.Errorf("%w: derived column %q already exists", ErrRuntime, s.Name)
	}
	out := newFrame(append(append([]string{}, f.cols...), s.Name))
	out.rows = make([][]research.Value, len(f.rows))
	for i, row := range f.rows {
		if i%deadlineCheckStride == 0 {
			if err := checkCtx(ctx); err != nil {
				return nil, err
			}
		}
		derived := deriveValue(row[li], row[ri], s.Operator)
		out.rows[i] = append(append([]research.Value{}, row...), derived)
	}
	return out, nil
}

// deriveValue yields a missing value rather than failing the whole plan when
// an operand is non-numeric or a divisor is zero.
func deriveValue(l, r research.Value, op string) research.Value {
	if l.Missing || r.Missing || !l.Numeric || !r.Numeric {
		return research.Missing()
	}
	switch op {
	case "add":
		return research.Num(l.Num + r.Num)
	case "sub":
		return research.Num(l.Num - r.Num)
	case "mul":
		return research.Num(l.Num * r.Num)
	case "div":
		if r.Num == 0 {
			return research.Missing()
		}
		return research.Num(l.Num / r.Num)
	default:
		return research.Missing()
	}
}

func applyGroup(ctx context.Context, f *frame, s Step) (*frame, error) {
	byIdx := make([]int, len(s.By))
	for i, b := range s.By {
		ci, ok := f.col(b)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrRuntime, b)
		}
		byIdx[i] = ci
	}
	aggIdx := make([]int, len(s.Aggregate))
	for i, a := range s.Aggregate {
		if a.Column == "" {
			aggIdx[i] = -1
			continue
		}
		ci, ok := f.col(a.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrRuntime, a.Column)
		}
		aggIdx[i] = ci
	}

	type bucket struct {
		key  []research.Value
		accs []*accumulator
	}
	order := make([]*bucket, 0)
	buckets := make(map[string]*bucket)

	for i, row := range f.rows {
		if i%deadlineCheckStride == 0 {
			if err := checkCtx(ctx); err != nil {
				return nil, err
			}
		}
		var kb strings.Builder
		for _, ci := range byIdx {
			kb.WriteString(valueString(row[ci]))
			kb.WriteByte('\x1f')
		}
		key := kb.String()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: make([]research.Value, len(byIdx)), accs: make([]*accumulator, len(s.Aggregate))}
			for j, ci := range byIdx {
				b.key[j] = row[ci]
			}
			for j := range s.Aggregate {
				b.accs[j] = &accumulator{}
			}
			buckets[key] = b
			order = append(order, b)
		}
		for j, a := range s.Aggregate {
			if aggIdx[j] < 0 {
				b.accs[j].add(research.Missing(), true)
			} else {
				b.accs[j].add(row[aggIdx[j]], a.Func == AggCount)
			}
		}
	}

	cols := append([]string{}, s.By...)
	for _, a := range s.Aggregate {
		cols = append(cols, a.OutputName())
	}
	out := newFrame(cols)
	out.rows = make([][]research.Value, len(order))
	for i, b := range order {
		row := append([]research.Value{}, b.key...)
		for j, a := range s.Aggregate {
			row = append(row, b.accs[j].result(a.Func))
		}
		out.rows[i] = row
	}
	return out, nil
}

// accumulator collects the numeric stream for one aggregation bucket.
type accumulator struct {
	count int
	vals  []float64
}

// add folds one cell in. countAll makes every row count regardless of the
// cell being numeric, which is what count wants.
func (a *accumulator) add(v research.Value, countAll bool) {
	if countAll {
		a.count++
		return
	}
	if v.Missing || !v.Numeric {
		return
	}
	a.count++
	a.vals = append(a.vals, v.Num)
}

func (a *accumulator) result(fn AggFunc) research.Value {
	if fn == AggCount {
		return research.Num(float64(a.count))
	}
	if len(a.vals) == 0 {
		return research.Missing()
	}
	switch fn {
	case AggSum, AggMean:
		var sum float64
		for _, v := range a.vals {
			sum += v
		}
		if fn == AggSum {
			return research.Num(sum)
		}
		return research.Num(sum / float64(len(a.vals)))
	case AggMedian:
		vs := append([]float64{}, a.vals...)
		sort.Float64s(vs)
		mid := len(vs) / 2
		if len(vs)%2 == 1 {
			return research.Num(vs[mid])
		}
		return research.Num((vs[mid-1] + vs[mid]) / 2)
	case AggMin:
		m := a.vals[0]
		for _, v := range a.vals[1:] {
			if v < m {
				m = v
			}
		}
		return research.Num(m)
	case AggMax:
		m := a.vals[0]
		for _, v := range a.vals[1:] {
			if v > m {
				m = v
			}
		}
		return research.Num(m)
	default:
		return research.Missing()
	}
}

func applyBin(ctx context.Context, f *frame, s Step) (*frame, error) {
	ci, ok := f.col(s.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Column)
	}
	name := s.As
	if name == "" {
		name = s.Column + "_bin"
	}
	if _, exists := f.col(name); exists {
		return nil, fmt.Errorf("%w: bin column %q already exists", ErrRuntime, name)
	}
	out := newFrame(append(append([]string{}, f.cols...), name))
	out.rows = make([][]research.Value, len(f.rows))
	for i, row := range f.rows {
		if i%deadlineCheckStride == 0 {
			if err := checkCtx(ctx); err != nil {
				return nil, err
			}
		}
		var label research.Value
		v := row[ci]
		if !v.Missing && v.Numeric {
			lo := floorTo(v.Num, s.Width)
			label = research.Str(research.FormatNum(lo) + "-" + research.FormatNum(lo+s.Width))
		} else {
			label = research.Missing()
		}
		out.rows[i] = append(append([]research.Value{}, row...), label)
	}
	return out, nil
}

func floorTo(v, width float64) float64 {
	n := v / width
	f := float64(int64(n))
	if n < 0 && n != f {
		f--
	}
	return f * width
}

func applyPivot(ctx context.Context, f *frame, s Step) (*frame, error) {
	ii, ok := f.col(s.Index)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Index)
	}
	pi, ok := f.col(s.Pivot)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Pivot)
	}
	vi, ok := f.col(s.ValueCol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.ValueCol)
	}
	fn := s.PivotFunc
	if fn == "" {
		fn = AggSum
	}

	type cellKey struct{ idx, piv string }
	cells := make(map[cellKey]*accumulator)
	idxOrder := []research.Value{}
	idxSeen := map[string]bool{}
	pivOrder := []string{}
	pivSeen := map[string]bool{}

	for i, row := range f.rows {
		if i%deadlineCheckStride == 0 {
			if err := checkCtx(ctx); err != nil {
				return nil, err
			}
		}
		ik := valueString(row[ii])
		pk := valueString(row[pi])
		if !idxSeen[ik] {
			idxSeen[ik] = true
			idxOrder = append(idxOrder, row[ii])
		}
		if !pivSeen[pk] {
			pivSeen[pk] = true
			pivOrder = append(pivOrder, pk)
		}
		k := cellKey{ik, pk}
		acc, ok := cells[k]
		if !ok {
			acc = &accumulator{}
			cells[k] = acc
		}
		acc.add(row[vi], fn == AggCount)
	}

	// A pivot value can collide with the index column name (or another
	// pivot value after string conversion); suffix duplicates so every
	// output column stays addressable.
	names := make([]string, 0, 1+len(pivOrder))
	names = append(names, s.Index)
	used := map[string]bool{s.Index: true}
	for _, pk := range pivOrder {
		name := pk
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", pk, n)
		}
		used[name] = true
		names = append(names, name)
	}

	out := newFrame(names)
	out.rows = make([][]research.Value, len(idxOrder))
	for i, iv := range idxOrder {
		row := make([]research.Value, 1+len(pivOrder))
		row[0] = iv
		ik := valueString(iv)
		for j, pk := range pivOrder {
			if acc, ok := cells[cellKey{ik, pk}]; ok {
				row[1+j] = acc.result(fn)
			} else {
				row[1+j] = research.Missing()
			}
		}
		out.rows[i] = row
	}
	return out, nil
}

func applySort(f *frame, s Step) (*frame, error) {
	ci, ok := f.col(s.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRuntime, s.Column)
	}
	out := newFrame(f.cols)
	out.rows = append([][]research.Value{}, f.rows...)
	sort.SliceStable(out.rows, func(a, b int) bool {
		va, vb := out.rows[a][ci], out.rows[b][ci]
		less := valueLess(va, vb)
		if s.Desc {
			// Missing values stay last in either direction.
			if va.Missing || vb.Missing {
				return less
			}
			return valueLess(vb, va)
		}
		return less
	})
	return out, nil
}

// valueLess orders numerics before strings and missing values last.
func valueLess(a, b research.Value) bool {
	switch {
	case a.Missing:
		return false
	case b.Missing:
		return true
	case a.Numeric && b.Numeric:
		return a.Num < b.Num
	case a.Numeric:
		return true
	case b.Numeric:
		return false
	default:
		return a.Str < b.Str
	}
}

func applyLimit(f *frame, s Step) (*frame, error) {
	out := newFrame(f.cols)
	n := s.N
	if n > len(f.rows) {
		n = len(f.rows)
	}
	out.rows = append([][]research.Value{}, f.rows[:n]...)
	return out, nil
}
