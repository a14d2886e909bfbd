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
	"sort"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
)

// orderByOp sorts all of its input rows by the comparators. Rows that compare
// equal keep their input order. Expressions that fail to evaluate sort like
// unbound values, first.
type orderByOp struct {
	def   *algebra.Order
	input queryOperator
}

func (op *orderByOp) columns() Columns {
	return op.input.columns()
}

func (op *orderByOp) execute(ctx context.Context, res results) error {
	// sortRow is an input row along with its sort keys.
	type sortRow struct {
		row  []rdf.Term
		keys []rdf.Term
	}
	ev := newEvaluator(op.input.columns())
	var rows []sortRow
	err := forEachRow(ctx, op.input, func(row []rdf.Term) {
		keys := make([]rdf.Term, len(op.def.Comparators))
		for i, c := range op.def.Comparators {
			keys[i], _ = ev.eval(c.Expr, row)
		}
		rows = append(rows, sortRow{row: row, keys: keys})
	})
	if err != nil {
		return err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for k, c := range op.def.Comparators {
			cmp := rdf.Compare(rows[i].keys[k], rows[j].keys[k])
			if !c.Ascending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	for _, r := range rows {
		res.add(ctx, r.row)
	}
	return nil
}
