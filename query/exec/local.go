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

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/util/parallel"
)

// Local matches leaf patterns against locally held data. memstore.Store is a
// Local.
type Local interface {
	// Match returns the triples in graph that match the given terms. A nil
	// term matches anything. A nil graph is the default graph.
	Match(ctx context.Context, graph, subject, predicate, object rdf.Term) ([]rdf.Triple, error)
	// NamedGraphs returns the names of every named graph.
	NamedGraphs(ctx context.Context) ([]rdf.Term, error)
	// MatchPath returns the pairs of terms in graph connected by path. A
	// non-nil subject or object restricts the pairs to those starting or
	// ending there.
	MatchPath(ctx context.Context, graph, subject rdf.Term, path algebra.PathExpr, object rdf.Term) ([]PathMatch, error)
}

// PathMatch is a pair of terms connected by a property path.
type PathMatch struct {
	Subject rdf.Term
	Object  rdf.Term
}

// slotsOf returns the distinct variables among nodes as columns, and for each
// node, the index of its column or -1 if it's bound.
func slotsOf(nodes []algebra.Node) (Columns, []int) {
	var cols Columns
	slots := make([]int, len(nodes))
	for i, n := range nodes {
		slots[i] = -1
		if v, ok := algebra.IsVariable(n); ok {
			slots[i] = cols.IndexOf(v.Name)
			if slots[i] < 0 {
				slots[i] = len(cols)
				cols = append(cols, v)
			}
		}
	}
	return cols, slots
}

// bindRow returns a row with values placed in their slots, or nil if a
// variable that appears more than once would get different values.
func bindRow(width int, slots []int, values []rdf.Term) []rdf.Term {
	row := make([]rdf.Term, width)
	for i, slot := range slots {
		if slot < 0 {
			continue
		}
		if row[slot] != nil && row[slot] != values[i] {
			return nil
		}
		row[slot] = values[i]
	}
	return row
}

func boundTerm(n algebra.Node) rdf.Term {
	t, _ := algebra.IsBound(n)
	return t
}

// patternOp matches a triple pattern, or a quad pattern if it has a fourth
// node for the graph.
type patternOp struct {
	local Local
	// The active graph for triple patterns. nil is the default graph.
	graph rdf.Term
	nodes []algebra.Node
	cols  Columns
	slots []int
}

func newPatternOp(local Local, graph rdf.Term, nodes ...algebra.Node) *patternOp {
	cols, slots := slotsOf(nodes)
	return &patternOp{local: local, graph: graph, nodes: nodes, cols: cols, slots: slots}
}

func (op *patternOp) columns() Columns {
	return op.cols
}

func (op *patternOp) execute(ctx context.Context, res results) error {
	graphs := []rdf.Term{op.graph}
	if len(op.nodes) == 4 {
		if g := boundTerm(op.nodes[3]); g != nil {
			graphs = []rdf.Term{g}
		} else {
			var err error
			graphs, err = op.local.NamedGraphs(ctx)
			if err != nil {
				return err
			}
		}
	}
	values := make([]rdf.Term, len(op.nodes))
	for _, g := range graphs {
		triples, err := op.local.Match(ctx, g,
			boundTerm(op.nodes[0]), boundTerm(op.nodes[1]), boundTerm(op.nodes[2]))
		if err != nil {
			return err
		}
		for _, t := range triples {
			values[0], values[1], values[2] = t.Subject, t.Predicate, t.Object
			if len(values) == 4 {
				values[3] = g
			}
			if row := bindRow(len(op.cols), op.slots, values); row != nil {
				res.add(ctx, row)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// pathOp matches a property path pattern.
type pathOp struct {
	local Local
	graph rdf.Term
	def   *algebra.Path
	cols  Columns
	slots []int
}

func newPathOp(local Local, graph rdf.Term, def *algebra.Path) *pathOp {
	cols, slots := slotsOf([]algebra.Node{def.Subject, def.Object})
	return &pathOp{local: local, graph: graph, def: def, cols: cols, slots: slots}
}

func (op *pathOp) columns() Columns {
	return op.cols
}

func (op *pathOp) execute(ctx context.Context, res results) error {
	matches, err := op.local.MatchPath(ctx, op.graph,
		boundTerm(op.def.Subject), op.def.Path, boundTerm(op.def.Object))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if row := bindRow(len(op.cols), op.slots, []rdf.Term{m.Subject, m.Object}); row != nil {
			res.add(ctx, row)
		}
	}
	return nil
}

// namedGraphsOp evaluates its input once in every named graph, binding a
// variable to the graph's name.
type namedGraphsOp struct {
	b        *builder
	local    Local
	input    algebra.Plan
	graphVar *algebra.Variable
	cols     Columns
	// The column of graphVar in the output.
	graphCol int
}

func newNamedGraphsOp(b *builder, input algebra.Plan, graphVar *algebra.Variable, inputCols Columns) *namedGraphsOp {
	cols := append(Columns(nil), inputCols...)
	graphCol := cols.IndexOf(graphVar.Name)
	if graphCol < 0 {
		graphCol = len(cols)
		cols = append(cols, graphVar)
	}
	return &namedGraphsOp{
		b:        b,
		local:    b.local,
		input:    input,
		graphVar: graphVar,
		cols:     cols,
		graphCol: graphCol,
	}
}

func (op *namedGraphsOp) columns() Columns {
	return op.cols
}

func (op *namedGraphsOp) execute(ctx context.Context, res results) error {
	graphs, err := op.local.NamedGraphs(ctx)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		input, err := op.b.build(op.input, g)
		if err != nil {
			return err
		}
		mapping := columnMapping(input.columns(), op.cols)
		inputResCh := make(chan ResultChunk, 4)
		wait := parallel.Go(func() {
			for chunk := range inputResCh {
				for i := 0; i < chunk.NumRows(); i++ {
					row := mapRow(chunk.Row(i), mapping, len(op.cols))
					if row[op.graphCol] != nil && row[op.graphCol] != g {
						continue
					}
					row[op.graphCol] = g
					res.add(ctx, row)
				}
			}
		})
		err = input.run(ctx, inputResCh)
		wait()
		if err != nil {
			return err
		}
	}
	return nil
}

// columnMapping returns, for each column in from, its index in to.
func columnMapping(from, to Columns) []int {
	mapping := make([]int, len(from))
	for i, c := range from {
		mapping[i] = to.IndexOf(c.Name)
		if mapping[i] < 0 {
			panic(fmt.Sprintf("column %v missing from %v", c, to))
		}
	}
	return mapping
}

// mapRow returns a new row of the given width with the values of row placed
// according to mapping.
func mapRow(row []rdf.Term, mapping []int, width int) []rdf.Term {
	out := make([]rdf.Term, width)
	for i, v := range row {
		out[mapping[i]] = v
	}
	return out
}
