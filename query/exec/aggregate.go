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
	"fmt"
	"strings"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
)

// newAggregate returns an operator that groups its input and computes
// aggregate expressions over each group. With no GROUP BY expressions, all
// input rows form one group, which exists even if there are no input rows.
func newAggregate(def *algebra.Aggregate, input queryOperator) operator {
	var cols Columns
	var keyCols []int
	for i, g := range def.GroupBy {
		if v, ok := g.(*algebra.Variable); ok && cols.IndexOf(v.Name) < 0 {
			cols = append(cols, v)
			keyCols = append(keyCols, i)
		}
	}
	for _, a := range def.Aggregations {
		cols = append(cols, a.Var)
	}
	return &aggregateOp{def: def, input: input, cols: cols, keyCols: keyCols}
}

type aggregateOp struct {
	def   *algebra.Aggregate
	input queryOperator
	cols  Columns
	// The indexes of the GroupBy expressions that are output as columns.
	keyCols []int
}

func (op *aggregateOp) columns() Columns {
	return op.cols
}

// group is the state of one group of input rows.
type group struct {
	keys        []rdf.Term
	aggregators []aggrEvaluator
}

func (op *aggregateOp) newGroup(keys []rdf.Term, ev *evaluator) *group {
	g := &group{keys: keys, aggregators: make([]aggrEvaluator, len(op.def.Aggregations))}
	for i, a := range op.def.Aggregations {
		g.aggregators[i] = newAggrEvaluator(a.Expr, ev)
	}
	return g
}

func (op *aggregateOp) execute(ctx context.Context, res results) error {
	ev := newEvaluator(op.input.columns())
	groups := make(map[string]*group)
	var order []string
	err := forEachRow(ctx, op.input, func(row []rdf.Term) {
		keys := make([]rdf.Term, len(op.def.GroupBy))
		for i, g := range op.def.GroupBy {
			// An expression that fails to evaluate groups as unbound.
			keys[i], _ = ev.eval(g, row)
		}
		k := rowKey(keys)
		grp, found := groups[k]
		if !found {
			grp = op.newGroup(keys, ev)
			groups[k] = grp
			order = append(order, k)
		}
		for _, a := range grp.aggregators {
			a.consume(row)
		}
	})
	if err != nil {
		return err
	}
	if len(op.def.GroupBy) == 0 && len(groups) == 0 {
		groups[""] = op.newGroup(nil, ev)
		order = append(order, "")
	}
	for _, k := range order {
		grp := groups[k]
		out := make([]rdf.Term, 0, len(op.cols))
		for _, i := range op.keyCols {
			out = append(out, grp.keys[i])
		}
		for _, a := range grp.aggregators {
			out = append(out, a.completed())
		}
		res.add(ctx, out)
	}
	return nil
}

// aggrEvaluator calculates an aggregate function over the rows of a group.
type aggrEvaluator interface {
	// consume is called for each row in the group.
	consume(row []rdf.Term)
	// completed returns the aggregate's value once every row has been
	// consumed, or nil if it has no value.
	completed() rdf.Term
}

// newAggrEvaluator returns an evaluator for def. The expression evaluator is
// shared by every group.
func newAggrEvaluator(def *algebra.AggregateExpr, ev *evaluator) aggrEvaluator {
	var fn aggrFunc
	switch def.Func {
	case algebra.AggCount:
		fn = &countFunc{}
	case algebra.AggSum:
		fn = &sumFunc{sum: rdf.NewInteger(0)}
	case algebra.AggAvg:
		fn = &avgFunc{sum: sumFunc{sum: rdf.NewInteger(0)}}
	case algebra.AggMin:
		fn = &extremeFunc{want: -1}
	case algebra.AggMax:
		fn = &extremeFunc{want: 1}
	case algebra.AggSample:
		fn = &sampleFunc{}
	case algebra.AggGroupConcat:
		sep := def.Separator
		if sep == "" {
			sep = " "
		}
		fn = &groupConcatFunc{separator: sep}
	default:
		panic(fmt.Sprintf("unexpected aggregate function: %v", def.Func))
	}
	a := &aggrExprEvaluator{def: def, ev: ev, fn: fn}
	if def.Distinct {
		a.seen = make(map[string]struct{})
	}
	return a
}

// aggrExprEvaluator evaluates an aggregate's argument for each row, removing
// duplicates for DISTINCT, and passes the values to an aggrFunc.
type aggrExprEvaluator struct {
	def  *algebra.AggregateExpr
	ev   *evaluator
	fn   aggrFunc
	seen map[string]struct{}
}

// aggrFunc accumulates the values of an aggregate's argument.
type aggrFunc interface {
	add(v rdf.Term)
	// failed is called when the argument fails to evaluate for a row.
	failed()
	result() rdf.Term
}

func (a *aggrExprEvaluator) consume(row []rdf.Term) {
	var v rdf.Term
	var key string
	if a.def.Arg == nil {
		// COUNT(*) counts rows. Each row is its own value.
		key = rowKey(row)
	} else {
		var err error
		v, err = a.ev.eval(a.def.Arg, row)
		if err != nil {
			a.fn.failed()
			return
		}
		key = rowKey([]rdf.Term{v})
	}
	if a.seen != nil {
		if _, dup := a.seen[key]; dup {
			return
		}
		a.seen[key] = struct{}{}
	}
	a.fn.add(v)
}

func (a *aggrExprEvaluator) completed() rdf.Term {
	return a.fn.result()
}

type countFunc struct {
	count int64
}

func (f *countFunc) add(rdf.Term)     { f.count++ }
func (f *countFunc) failed()          {}
func (f *countFunc) result() rdf.Term { return rdf.NewInteger(f.count) }

// sumFunc adds numbers. Any error, including a non-numeric value, leaves the
// sum without a value.
type sumFunc struct {
	sum   rdf.Term
	error bool
}

func (f *sumFunc) add(v rdf.Term) {
	if f.error {
		return
	}
	sum, err := arithmetic(algebra.OpAdd, f.sum, v)
	if err != nil {
		f.error = true
		return
	}
	f.sum = sum
}

func (f *sumFunc) failed() { f.error = true }

func (f *sumFunc) result() rdf.Term {
	if f.error {
		return nil
	}
	return f.sum
}

type avgFunc struct {
	sum   sumFunc
	count int64
}

func (f *avgFunc) add(v rdf.Term) {
	f.sum.add(v)
	f.count++
}

func (f *avgFunc) failed() { f.sum.failed() }

func (f *avgFunc) result() rdf.Term {
	sum := f.sum.result()
	if sum == nil {
		return nil
	}
	if f.count == 0 {
		return rdf.NewInteger(0)
	}
	avg, err := arithmetic(algebra.OpDivide, sum, rdf.NewInteger(f.count))
	if err != nil {
		return nil
	}
	return avg
}

// extremeFunc finds the smallest (want < 0) or largest (want > 0) value in
// ORDER BY order. Errors are ignored.
type extremeFunc struct {
	want int
	best rdf.Term
}

func (f *extremeFunc) add(v rdf.Term) {
	if f.best == nil || rdf.Compare(v, f.best) == f.want {
		f.best = v
	}
}

func (f *extremeFunc) failed()          {}
func (f *extremeFunc) result() rdf.Term { return f.best }

type sampleFunc struct {
	value rdf.Term
}

func (f *sampleFunc) add(v rdf.Term) {
	if f.value == nil {
		f.value = v
	}
}

func (f *sampleFunc) failed()          {}
func (f *sampleFunc) result() rdf.Term { return f.value }

// groupConcatFunc joins the lexical forms of string values. Any other value
// leaves it without a value.
type groupConcatFunc struct {
	separator string
	parts     []string
	error     bool
}

func (f *groupConcatFunc) add(v rdf.Term) {
	l, ok := v.(rdf.Literal)
	if !ok {
		f.error = true
		return
	}
	f.parts = append(f.parts, l.Lexical)
}

func (f *groupConcatFunc) failed() { f.error = true }

func (f *groupConcatFunc) result() rdf.Term {
	if f.error {
		return nil
	}
	return rdf.NewString(strings.Join(f.parts, f.separator))
}
