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

package rewrite

import (
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/util/cmp"
)

// maxSimplifyPasses bounds Simplify. Every simplification shrinks the tree
// or moves a NamedGraph down, so this isn't reached in practice.
const maxSimplifyPasses = 64

// Simplify applies local algebraic simplifications that don't change the
// plan's solutions: identity elimination, BGP flattening, redundant
// Distinct and Filter removal, and pushing NamedGraph down into Quad leaves.
// It runs bottom-up until nothing changes.
func Simplify(p algebra.Plan) algebra.Plan {
	key := cmp.GetKey(p)
	for i := 0; i < maxSimplifyPasses; i++ {
		next := Transform(p, simplifyNode)
		nextKey := cmp.GetKey(next)
		if nextKey == key {
			return next
		}
		p, key = next, nextKey
	}
	return p
}

func isUnionIdentity(p algebra.Plan) bool {
	_, ok := p.(*algebra.UnionIdentity)
	return ok
}

func isJoinIdentity(p algebra.Plan) bool {
	_, ok := p.(*algebra.JoinIdentity)
	return ok
}

// simplifyNode simplifies p, assuming its children are already simplified.
func simplifyNode(p algebra.Plan) algebra.Plan {
	switch p := p.(type) {
	case *algebra.BGP:
		if len(p.Patterns) == 0 {
			return new(algebra.JoinIdentity)
		}
	case *algebra.InnerJoin:
		switch {
		case isUnionIdentity(p.Left) || isUnionIdentity(p.Right):
			return new(algebra.UnionIdentity)
		case isJoinIdentity(p.Left):
			return p.Right
		case isJoinIdentity(p.Right):
			return p.Left
		}
		if l, ok := p.Left.(*algebra.BGP); ok {
			if r, ok := p.Right.(*algebra.BGP); ok {
				patterns := make([]algebra.TriplePattern, 0, len(l.Patterns)+len(r.Patterns))
				patterns = append(patterns, l.Patterns...)
				patterns = append(patterns, r.Patterns...)
				return &algebra.BGP{Patterns: patterns}
			}
		}
	case *algebra.LeftOuterJoin:
		if isUnionIdentity(p.Left) || isUnionIdentity(p.Right) {
			return p.Left
		}
	case *algebra.Minus:
		if isUnionIdentity(p.Left) || isUnionIdentity(p.Right) {
			return p.Left
		}
	case *algebra.Union:
		if isUnionIdentity(p.Left) {
			return p.Right
		}
		if isUnionIdentity(p.Right) {
			return p.Left
		}
	case *algebra.Filter:
		if isUnionIdentity(p.Input) || cmp.Equal(p.Expr, algebra.True) {
			return p.Input
		}
	case *algebra.Distinct:
		if isUnionIdentity(p.Input) {
			return p.Input
		}
		if _, ok := p.Input.(*algebra.Distinct); ok {
			return p.Input
		}
	case *algebra.Extend:
		if isUnionIdentity(p.Input) {
			return p.Input
		}
	case *algebra.Slice:
		if isUnionIdentity(p.Input) {
			return p.Input
		}
	case *algebra.Order:
		if isUnionIdentity(p.Input) {
			return p.Input
		}
	case *algebra.Service:
		if isUnionIdentity(p.Input) {
			return p.Input
		}
	case *algebra.NamedGraph:
		if isUnionIdentity(p.Input) {
			return p.Input
		}
		if res := pushNamedGraph(p); res != nil {
			return res
		}
	}
	return p
}

// pushNamedGraph moves a NamedGraph below the node it wraps, or returns nil
// if it can't be moved.
func pushNamedGraph(ng *algebra.NamedGraph) algebra.Plan {
	wrap := func(p algebra.Plan) algebra.Plan {
		return &algebra.NamedGraph{Input: p, Graph: ng.Graph}
	}
	switch in := ng.Input.(type) {
	case *algebra.Triple:
		return &algebra.Quad{Pattern: algebra.QuadPattern{TriplePattern: in.Pattern, Graph: ng.Graph}}
	case *algebra.BGP:
		if len(in.Patterns) == 0 {
			return nil
		}
		quads := make([]algebra.Plan, len(in.Patterns))
		for i, t := range in.Patterns {
			quads[i] = &algebra.Quad{Pattern: algebra.QuadPattern{TriplePattern: t, Graph: ng.Graph}}
		}
		return algebra.JoinOf(quads...)
	case *algebra.InnerJoin:
		if isJoinIdentity(in.Left) || isJoinIdentity(in.Right) {
			return nil
		}
		return &algebra.InnerJoin{Left: wrap(in.Left), Right: wrap(in.Right)}
	case *algebra.Union:
		return &algebra.Union{Left: wrap(in.Left), Right: wrap(in.Right)}
	case *algebra.Filter:
		// The graph variable isn't in scope inside the graph pattern, so
		// the filter can only move out if it doesn't mention it.
		if v, ok := ng.Graph.(*algebra.Variable); ok {
			for _, used := range algebra.ExpressionVariables(in.Expr) {
				if used.Name == v.Name {
					return nil
				}
			}
		}
		return &algebra.Filter{Input: wrap(in.Input), Expr: in.Expr}
	}
	return nil
}
