// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package exec

import (
	"context"
	"strings"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/util/parallel"
)

// forEachRow runs input, calling fn for each of its rows from a single
// goroutine.
func forEachRow(ctx context.Context, input queryOperator, fn func(row []rdf.Term)) error {
	inputResCh := make(chan ResultChunk, 4)
	wait := parallel.Go(func() {
		for chunk := range inputResCh {
			for i := 0; i < chunk.NumRows(); i++ {
				fn(chunk.Row(i))
			}
		}
	})
	err := input.run(ctx, inputResCh)
	wait()
	return err
}

// filterOp produces the input rows for which the expression's effective
// boolean value is true. Rows where evaluating it fails are dropped.
type filterOp struct {
	def   *algebra.Filter
	input queryOperator
}

func (f *filterOp) columns() Columns {
	return f.input.columns()
}

func (f *filterOp) execute(ctx context.Context, res results) error {
	ev := newEvaluator(f.input.columns())
	return forEachRow(ctx, f.input, func(row []rdf.Term) {
		if ev.holds(f.def.Expr, row) {
			res.add(ctx, row)
		}
	})
}

// newExtend returns an operator that binds a variable to the value of an
// expression in each row. Rows where evaluating it fails are produced with
// the variable unbound.
func newExtend(def *algebra.Extend, input queryOperator) operator {
	cols := append(Columns(nil), input.columns()...)
	target := cols.IndexOf(def.Var.Name)
	if target < 0 {
		target = len(cols)
		cols = append(cols, def.Var)
	}
	return &extendOp{def: def, input: input, cols: cols, target: target}
}

type extendOp struct {
	def    *algebra.Extend
	input  queryOperator
	cols   Columns
	target int
}

func (e *extendOp) columns() Columns {
	return e.cols
}

func (e *extendOp) execute(ctx context.Context, res results) error {
	ev := newEvaluator(e.input.columns())
	return forEachRow(ctx, e.input, func(row []rdf.Term) {
		out := make([]rdf.Term, len(e.cols))
		copy(out, row)
		if v, err := ev.eval(e.def.Expr, row); err == nil {
			out[e.target] = v
		}
		res.add(ctx, out)
	})
}

// newProjection returns an operator that restricts rows to the given
// variables, in order. Variables the input doesn't have are unbound.
func newProjection(def *algebra.Project, input queryOperator) operator {
	cols := make(Columns, len(def.Vars))
	from := make([]int, len(def.Vars))
	for i, v := range def.Vars {
		cols[i] = v
		from[i] = input.columns().IndexOf(v.Name)
	}
	return &projection{cols: cols, from: from, input: input}
}

type projection struct {
	cols Columns
	// For each output column, the input column it comes from, or -1.
	from  []int
	input queryOperator
}

func (p *projection) columns() Columns {
	return p.cols
}

func (p *projection) execute(ctx context.Context, res results) error {
	return forEachRow(ctx, p.input, func(row []rdf.Term) {
		out := make([]rdf.Term, len(p.cols))
		for i, idx := range p.from {
			if idx >= 0 {
				out[i] = row[idx]
			}
		}
		res.add(ctx, out)
	})
}

// rowKey returns a string that's equal for rows with the same terms.
func rowKey(row []rdf.Term) string {
	var b strings.Builder
	for _, v := range row {
		if v != nil {
			v.Key(&b)
		}
		b.WriteByte(0)
	}
	return b.String()
}

// distinctOp removes duplicate rows, keeping the first of each.
type distinctOp struct {
	input queryOperator
}

func (d *distinctOp) columns() Columns {
	return d.input.columns()
}

func (d *distinctOp) execute(ctx context.Context, res results) error {
	seen := make(map[string]struct{})
	return forEachRow(ctx, d.input, func(row []rdf.Term) {
		key := rowKey(row)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			res.add(ctx, row)
		}
	})
}
