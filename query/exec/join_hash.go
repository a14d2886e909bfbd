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

// newHashJoin returns an operator that joins the compatible rows of left and
// right. It starts both inputs, hashes all the left rows on the variables the
// inputs share, then probes with each right row as it arrives.
//
// If optional is set, it's a left outer join: a joined row is only produced
// if expr holds for it (a nil expr always holds), and left rows with no such
// joined row are produced unextended once the right input is exhausted.
func newHashJoin(left, right queryOperator, optional bool, expr algebra.Expression) operator {
	output, rightMap := joinedColumns(left.columns(), right.columns())
	var joinVars []string
	for _, c := range right.columns() {
		if left.columns().IndexOf(c.Name) >= 0 {
			joinVars = append(joinVars, c.Name)
		}
	}
	return &hashJoin{
		left:     left,
		right:    right,
		optional: optional,
		expr:     expr,
		output:   output,
		rightMap: rightMap,
		leftIdx:  indexesOf(left.columns(), joinVars),
		rightIdx: indexesOf(right.columns(), joinVars),
	}
}

type hashJoin struct {
	left     queryOperator
	right    queryOperator
	optional bool
	expr     algebra.Expression
	output   Columns
	// For each right column, its index in output.
	rightMap []int
	// The indexes of the shared variables in the left and right columns.
	leftIdx  []int
	rightIdx []int
}

// joinedColumns returns the left columns followed by the right columns that
// aren't also on the left, and a mapping from each right column to its
// output index.
func joinedColumns(left, right Columns) (Columns, []int) {
	output := append(Columns(nil), left...)
	rightMap := make([]int, len(right))
	for i, c := range right {
		idx := output.IndexOf(c.Name)
		if idx < 0 {
			idx = len(output)
			output = append(output, c)
		}
		rightMap[i] = idx
	}
	return output, rightMap
}

func indexesOf(cols Columns, names []string) []int {
	res := make([]int, len(names))
	for i, n := range names {
		res[i] = cols.IndexOf(n)
	}
	return res
}

// joinKey returns the identity key of row's values at the given indexes, and
// false if any of them is unbound.
func joinKey(row []rdf.Term, indexes []int) (string, bool) {
	var b strings.Builder
	for _, i := range indexes {
		if row[i] == nil {
			return "", false
		}
		row[i].Key(&b)
		b.WriteByte(0)
	}
	return b.String(), true
}

func (h *hashJoin) columns() Columns {
	return h.output
}

// leftTable holds every left row, indexed by join key. Rows with an unbound
// join variable are compatible with many keys, so they're kept aside in
// partial and checked against every right row.
type leftTable struct {
	rows    [][]rdf.Term
	byKey   map[string][]int
	partial []int
}

func (h *hashJoin) execute(ctx context.Context, res results) error {
	leftCh := make(chan *leftTable, 1)

	fnLeft := func(ctx context.Context) error {
		leftResCh := make(chan ResultChunk, 4)
		table := &leftTable{byKey: make(map[string][]int)}
		wait := parallel.Go(func() {
			for chunk := range leftResCh {
				for i := 0; i < chunk.NumRows(); i++ {
					row := chunk.Row(i)
					idx := len(table.rows)
					table.rows = append(table.rows, row)
					if key, ok := joinKey(row, h.leftIdx); ok {
						table.byKey[key] = append(table.byKey[key], idx)
					} else {
						table.partial = append(table.partial, idx)
					}
				}
			}
		})
		err := h.left.run(ctx, leftResCh)
		wait()
		if err == nil {
			leftCh <- table
		}
		close(leftCh)
		return err
	}

	fnRight := func(ctx context.Context) error {
		rightResCh := make(chan ResultChunk, 4)
		wait := parallel.Go(func() {
			table, open := <-leftCh
			if !open {
				return
			}
			h.probe(ctx, table, rightResCh, res)
		})
		err := h.right.run(ctx, rightResCh)
		wait()
		return err
	}
	return parallel.Invoke(ctx, fnLeft, fnRight)
}

// probe joins each row from rightResCh with the compatible rows of table
// until the channel is closed.
func (h *hashJoin) probe(ctx context.Context, table *leftTable, rightResCh <-chan ResultChunk, res results) {
	var matched []bool
	if h.optional {
		matched = make([]bool, len(table.rows))
	}
	ev := newEvaluator(h.output)
	all := make([]int, len(table.rows))
	for i := range all {
		all[i] = i
	}
	tryJoin := func(leftIdx int, right []rdf.Term) {
		left := table.rows[leftIdx]
		if !h.compatible(left, right) {
			return
		}
		joined := h.merge(left, right)
		if h.expr != nil && !ev.holds(h.expr, joined) {
			return
		}
		if matched != nil {
			matched[leftIdx] = true
		}
		res.add(ctx, joined)
	}
	for chunk := range rightResCh {
		for i := 0; i < chunk.NumRows(); i++ {
			right := chunk.Row(i)
			key, ok := joinKey(right, h.rightIdx)
			if !ok {
				for _, l := range all {
					tryJoin(l, right)
				}
				continue
			}
			for _, l := range table.byKey[key] {
				tryJoin(l, right)
			}
			for _, l := range table.partial {
				tryJoin(l, right)
			}
		}
	}
	if ctx.Err() != nil {
		return
	}
	for l, ok := range matched {
		if !ok {
			res.add(ctx, h.merge(table.rows[l], nil))
		}
	}
}

// compatible returns true if left and right agree on every shared variable
// that both bind.
func (h *hashJoin) compatible(left, right []rdf.Term) bool {
	for i := range h.leftIdx {
		l, r := left[h.leftIdx[i]], right[h.rightIdx[i]]
		if l != nil && r != nil && l != r {
			return false
		}
	}
	return true
}

// merge returns a new output row combining left and right. right may be nil.
func (h *hashJoin) merge(left, right []rdf.Term) []rdf.Term {
	out := make([]rdf.Term, len(h.output))
	copy(out, left)
	for i, v := range right {
		if idx := h.rightMap[i]; out[idx] == nil {
			out[idx] = v
		}
	}
	return out
}
