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

package algebra

import (
	"strings"

	"github.com/kasei/kineo-federation/util/cmp"
)

// Equal returns true if the two plans are structurally identical.
func Equal(a, b Plan) bool {
	return cmp.Equal(a, b)
}

// Hash returns a hash of the plan's structure. Equal plans have equal hashes.
func Hash(p Plan) uint64 {
	return cmp.Hash(p)
}

// Walk calls visit on p and then on each descendant in pre-order. If visit
// returns false, the node's children are skipped.
func Walk(p Plan, visit func(Plan) bool) {
	if !visit(p) {
		return
	}
	for _, c := range p.Children() {
		Walk(c, visit)
	}
}

// ServiceCount returns the number of Service nodes in p, including nested
// ones.
func ServiceCount(p Plan) int {
	n := 0
	Walk(p, func(p Plan) bool {
		if _, ok := p.(*Service); ok {
			n++
		}
		return true
	})
	return n
}

// UnionBranches flattens a tree of Union nodes into its branches, left to
// right. A plan that isn't a Union is a single branch.
func UnionBranches(p Plan) []Plan {
	u, ok := p.(*Union)
	if !ok {
		return []Plan{p}
	}
	return append(UnionBranches(u.Left), UnionBranches(u.Right)...)
}

// UnionOf builds a left-deep Union of the given branches. It returns a
// UnionIdentity if there are none. It's the inverse of UnionBranches for
// left-deep unions.
func UnionOf(branches ...Plan) Plan {
	if len(branches) == 0 {
		return new(UnionIdentity)
	}
	res := branches[0]
	for _, b := range branches[1:] {
		res = &Union{Left: res, Right: b}
	}
	return res
}

// JoinOf builds a left-deep InnerJoin of the given plans. It returns a
// JoinIdentity if there are none.
func JoinOf(plans ...Plan) Plan {
	if len(plans) == 0 {
		return new(JoinIdentity)
	}
	res := plans[0]
	for _, p := range plans[1:] {
		res = &InnerJoin{Left: res, Right: p}
	}
	return res
}

// Format returns a multi-line description of the plan tree, with each level
// of children indented by one more tab.
func Format(p Plan) string {
	var b strings.Builder
	format(&b, p, 0)
	return b.String()
}

func format(b *strings.Builder, p Plan, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteByte('\t')
	}
	b.WriteString(p.String())
	b.WriteByte('\n')
	for _, c := range p.Children() {
		format(b, c, depth+1)
	}
}
