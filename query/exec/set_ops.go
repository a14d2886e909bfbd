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

	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/util/parallel"
)

// identityOp produces a single row with no columns.
type identityOp struct{}

func (*identityOp) columns() Columns {
	return nil
}

func (*identityOp) execute(ctx context.Context, res results) error {
	res.add(ctx, nil)
	return nil
}

// emptyOp produces no rows.
type emptyOp struct{}

func (*emptyOp) columns() Columns {
	return nil
}

func (*emptyOp) execute(context.Context, results) error {
	return nil
}

// newUnion returns an operator that produces the rows of both inputs. The
// inputs run concurrently, so their rows may be interleaved.
func newUnion(left, right queryOperator) operator {
	output, _ := joinedColumns(left.columns(), right.columns())
	return &unionOp{
		left:      left,
		right:     right,
		output:    output,
		leftMap:   columnMapping(left.columns(), output),
		rightMap:  columnMapping(right.columns(), output),
		outputLen: len(output),
	}
}

type unionOp struct {
	left      queryOperator
	right     queryOperator
	output    Columns
	leftMap   []int
	rightMap  []int
	outputLen int
}

func (u *unionOp) columns() Columns {
	return u.output
}

func (u *unionOp) execute(ctx context.Context, res results) error {
	// results isn't safe for concurrent use, so the rows of both inputs are
	// funneled through one goroutine.
	rows := make(chan []rdf.Term, 16)
	forward := func(input queryOperator, mapping []int) func(context.Context) error {
		return func(ctx context.Context) error {
			resCh := make(chan ResultChunk, 4)
			wait := parallel.Go(func() {
				for chunk := range resCh {
					for i := 0; i < chunk.NumRows(); i++ {
						select {
						case rows <- mapRow(chunk.Row(i), mapping, u.outputLen):
						case <-ctx.Done():
						}
					}
				}
			})
			err := input.run(ctx, resCh)
			wait()
			return err
		}
	}
	wait := parallel.Go(func() {
		for row := range rows {
			res.add(ctx, row)
		}
	})
	err := parallel.Invoke(ctx, forward(u.left, u.leftMap), forward(u.right, u.rightMap))
	close(rows)
	wait()
	return err
}

// newMinus returns an operator that produces the left rows that aren't
// compatible with any right row sharing a bound variable with them.
func newMinus(left, right queryOperator) operator {
	var shared []string
	for _, c := range right.columns() {
		if left.columns().IndexOf(c.Name) >= 0 {
			shared = append(shared, c.Name)
		}
	}
	return &minusOp{
		left:     left,
		right:    right,
		leftIdx:  indexesOf(left.columns(), shared),
		rightIdx: indexesOf(right.columns(), shared),
	}
}

type minusOp struct {
	left     queryOperator
	right    queryOperator
	leftIdx  []int
	rightIdx []int
}

func (m *minusOp) columns() Columns {
	return m.left.columns()
}

func (m *minusOp) execute(ctx context.Context, res results) error {
	rightCh := make(chan [][]rdf.Term, 1)
	fnRight := func(ctx context.Context) error {
		resCh := make(chan ResultChunk, 4)
		var rows [][]rdf.Term
		wait := parallel.Go(func() {
			for chunk := range resCh {
				for i := 0; i < chunk.NumRows(); i++ {
					rows = append(rows, chunk.Row(i))
				}
			}
		})
		err := m.right.run(ctx, resCh)
		wait()
		if err == nil {
			rightCh <- rows
		}
		close(rightCh)
		return err
	}
	fnLeft := func(ctx context.Context) error {
		resCh := make(chan ResultChunk, 4)
		wait := parallel.Go(func() {
			rightRows, open := <-rightCh
			if !open {
				return
			}
			for chunk := range resCh {
				for i := 0; i < chunk.NumRows(); i++ {
					row := chunk.Row(i)
					if !m.excluded(row, rightRows) {
						res.add(ctx, row)
					}
				}
			}
		})
		err := m.left.run(ctx, resCh)
		wait()
		return err
	}
	return parallel.Invoke(ctx, fnRight, fnLeft)
}

// excluded returns true if some right row binds a shared variable that row
// also binds, and agrees with row on all of them.
func (m *minusOp) excluded(row []rdf.Term, rightRows [][]rdf.Term) bool {
	for _, right := range rightRows {
		overlap, compatible := false, true
		for i := range m.leftIdx {
			l, r := row[m.leftIdx[i]], right[m.rightIdx[i]]
			if l == nil || r == nil {
				continue
			}
			if l != r {
				compatible = false
				break
			}
			overlap = true
		}
		if overlap && compatible {
			return true
		}
	}
	return false
}
