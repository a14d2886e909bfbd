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
	"math"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
)

// sliceOp skips the first Offset rows of its input and produces at most Limit
// of the rest. Once it has produced Limit rows it cancels its input.
type sliceOp struct {
	def   *algebra.Slice
	input queryOperator
}

func (op *sliceOp) columns() Columns {
	return op.input.columns()
}

func (op *sliceOp) execute(ctx context.Context, res results) error {
	limit := uint64(math.MaxUint64)
	if op.def.Limit != nil {
		limit = *op.def.Limit
	}
	offset := uint64(0)
	if op.def.Offset != nil {
		offset = *op.def.Offset
	}
	if limit == 0 {
		return nil
	}
	inputCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	skipped, forwarded := uint64(0), uint64(0)
	weCancelled := false
	err := forEachRow(inputCtx, op.input, func(row []rdf.Term) {
		if skipped < offset {
			skipped++
			return
		}
		if forwarded < limit {
			forwarded++
			res.add(ctx, row)
			if forwarded == limit {
				weCancelled = true
				cancel()
			}
		}
	})
	if weCancelled && ctx.Err() == nil {
		return nil
	}
	return err
}
