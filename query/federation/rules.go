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

package federation

import (
	"context"
	"sort"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/rewrite"
)

// ServiceInsertion returns a rule that wraps each leaf pattern in a Union of
// Service nodes, one for every endpoint the oracle accepts for it. A leaf that
// no endpoint accepts becomes a UnionIdentity. BGPs are first split into
// joins of their triples. Existing Service nodes are left alone.
func ServiceInsertion(ctx context.Context, endpoints []string, oracle Oracle) rewrite.Rule {
	return func(p algebra.Plan) (rewrite.Outcome, error) {
		switch p := p.(type) {
		case *algebra.Service:
			return rewrite.Keep, nil
		case *algebra.BGP:
			var res algebra.Plan = new(algebra.JoinIdentity)
			for _, t := range p.Patterns {
				res = &algebra.InnerJoin{Left: res, Right: &algebra.Triple{Pattern: t}}
			}
			return rewrite.ReplaceAndDescend(res), nil
		case *algebra.Triple, *algebra.Quad, *algebra.Path:
			var res algebra.Plan = new(algebra.UnionIdentity)
			for _, endpoint := range endpoints {
				if !oracle.IsAvailable(ctx, p, endpoint) {
					continue
				}
				res = &algebra.Union{
					Left:  res,
					Right: &algebra.Service{Endpoint: endpoint, Input: p},
				}
			}
			return rewrite.Replace(res), nil
		}
		return rewrite.ReplaceAndDescend(p), nil
	}
}

// PushdownJoins returns a rule that distributes joins over unions, so that
// joins move below unions:
//
//	(a ∪ b) ⋈ (c ∪ d) => ((a ⋈ c) ∪ (a ⋈ d)) ∪ ((b ⋈ c) ∪ (b ⋈ d))
//	(a ∪ b) ⋈ c       => (a ⋈ c) ∪ (b ⋈ c)
//	a ⋈ (b ∪ c)       => (a ⋈ b) ∪ (a ⋈ c)
//
// A single pass doesn't reach the unions created deeper in the tree by its own
// rewrites, so it's meant to be repeated.
func PushdownJoins() rewrite.Rule {
	return pushdownJoins
}

func pushdownJoins(p algebra.Plan) (rewrite.Outcome, error) {
	join, ok := p.(*algebra.InnerJoin)
	if !ok {
		return rewrite.ReplaceAndDescend(p), nil
	}
	left, leftUnion := join.Left.(*algebra.Union)
	right, rightUnion := join.Right.(*algebra.Union)
	j := func(l, r algebra.Plan) algebra.Plan {
		return &algebra.InnerJoin{Left: l, Right: r}
	}
	u := func(l, r algebra.Plan) algebra.Plan {
		return &algebra.Union{Left: l, Right: r}
	}
	switch {
	case leftUnion && rightUnion:
		a, b, c, d := left.Left, left.Right, right.Left, right.Right
		return rewrite.ReplaceAndDescend(u(
			u(j(a, c), j(a, d)),
			u(j(b, c), j(b, d)),
		)), nil
	case leftUnion:
		a, b, c := left.Left, left.Right, join.Right
		return rewrite.ReplaceAndDescend(u(j(a, c), j(b, c))), nil
	case rightUnion:
		a, b, c := join.Left, right.Left, right.Right
		return rewrite.ReplaceAndDescend(u(j(a, b), j(a, c))), nil
	}
	return rewrite.ReplaceAndDescend(p), nil
}

// MergeServiceJoins returns a rule that combines a join of two Service nodes
// for the same endpoint into a single Service node for the join. The merged
// node is silent if either input was.
func MergeServiceJoins() rewrite.Rule {
	return mergeServiceJoins
}

func mergeServiceJoins(p algebra.Plan) (rewrite.Outcome, error) {
	if join, ok := p.(*algebra.InnerJoin); ok {
		left, lok := join.Left.(*algebra.Service)
		right, rok := join.Right.(*algebra.Service)
		if lok && rok && left.Endpoint == right.Endpoint {
			return rewrite.ReplaceAndDescend(&algebra.Service{
				Endpoint: left.Endpoint,
				Input:    &algebra.InnerJoin{Left: left.Input, Right: right.Input},
				Silent:   left.Silent || right.Silent,
			}), nil
		}
	}
	return rewrite.ReplaceAndDescend(p), nil
}

// ReorderServiceUnions returns a rule that sorts each chain of unions so that
// branches with fewer Service nodes come first. Branches with the same number
// keep their order. The result is a left-deep chain.
func ReorderServiceUnions() rewrite.Rule {
	return reorderServiceUnions
}

func reorderServiceUnions(p algebra.Plan) (rewrite.Outcome, error) {
	if _, ok := p.(*algebra.Union); !ok {
		return rewrite.ReplaceAndDescend(p), nil
	}
	branches := algebra.UnionBranches(p)
	counts := make([]int, len(branches))
	for i, b := range branches {
		counts[i] = algebra.ServiceCount(b)
	}
	order := make([]int, len(branches))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] < counts[order[j]]
	})
	sorted := make([]algebra.Plan, len(branches))
	for i, idx := range order {
		sorted[i] = branches[idx]
	}
	return rewrite.Replace(algebra.UnionOf(sorted...)), nil
}
