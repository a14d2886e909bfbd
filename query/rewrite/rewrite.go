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

// Package rewrite applies rules to algebra trees. A rule is called on a node
// and decides, through its Outcome, whether to keep the node, replace it, or
// replace it and continue into the replacement's children.
package rewrite

import (
	"fmt"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/util/cmp"
)

// Status identifies the kind of Outcome.
type Status int

// Possible values of Status.
const (
	// StatusKeep leaves the node unchanged and doesn't visit its children.
	StatusKeep Status = iota
	// StatusReplace substitutes a new node and doesn't visit its children.
	StatusReplace
	// StatusReplaceAndDescend substitutes a new node and then applies the same
	// rule to each of its children.
	StatusReplaceAndDescend
)

func (s Status) String() string {
	switch s {
	case StatusKeep:
		return "Keep"
	case StatusReplace:
		return "Replace"
	case StatusReplaceAndDescend:
		return "ReplaceAndDescend"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// An Outcome is the result of applying a rule to one node.
type Outcome struct {
	status Status
	plan   algebra.Plan
}

// Keep is the Outcome that leaves a node and its subtree as they are.
var Keep = Outcome{status: StatusKeep}

// Replace returns an Outcome that substitutes p for the current node. The
// rule isn't applied to p's children in this pass.
func Replace(p algebra.Plan) Outcome {
	return Outcome{status: StatusReplace, plan: p}
}

// ReplaceAndDescend returns an Outcome that substitutes p for the current node
// and then applies the rule to each of p's children. Rules return
// ReplaceAndDescend(node) for nodes they don't handle.
func ReplaceAndDescend(p algebra.Plan) Outcome {
	return Outcome{status: StatusReplaceAndDescend, plan: p}
}

// Status returns the kind of outcome.
func (o Outcome) Status() Status {
	return o.status
}

// Plan returns the substitute node. It's nil for Keep.
func (o Outcome) Plan() algebra.Plan {
	return o.plan
}

func (o Outcome) String() string {
	if o.status == StatusKeep {
		return "Keep"
	}
	return fmt.Sprintf("%v(%v)", o.status, o.plan)
}

// A Rule inspects a single node and returns what to do with it. Rules must
// handle every variant of algebra.Plan, usually by returning
// ReplaceAndDescend(node) for the variants they don't care about.
type Rule func(algebra.Plan) (Outcome, error)

// A NamedRule is a Rule with a name for logging and tracing.
type NamedRule struct {
	Name string
	Rule Rule
}

// Apply runs one pass of the rule over the tree rooted at p. The rule is
// applied top-down; the tree is rebuilt bottom-up, and subtrees that weren't
// changed are shared with the input. The first error returned by the rule
// aborts the pass.
func Apply(p algebra.Plan, rule Rule) (algebra.Plan, error) {
	out, err := rule(p)
	if err != nil {
		return nil, err
	}
	switch out.status {
	case StatusKeep:
		return p, nil
	case StatusReplace:
		return out.plan, nil
	case StatusReplaceAndDescend:
	default:
		panic(fmt.Sprintf("rewrite.Apply: unexpected outcome status %v", out.status))
	}
	node := out.plan
	children := node.Children()
	if len(children) == 0 {
		return node, nil
	}
	var rewritten []algebra.Plan
	for i, child := range children {
		res, err := Apply(child, rule)
		if err != nil {
			return nil, err
		}
		if res != child && rewritten == nil {
			rewritten = make([]algebra.Plan, len(children))
			copy(rewritten, children[:i])
		}
		if rewritten != nil {
			rewritten[i] = res
		}
	}
	if rewritten == nil {
		return node, nil
	}
	return node.WithChildren(rewritten), nil
}

// Fixpoint applies passes of rule until a pass doesn't change the plan (by
// key), or maxPasses passes have run. It returns the final plan, the number
// of passes run, and whether the plan converged. maxPasses must be at least
// 1.
func Fixpoint(p algebra.Plan, rule Rule, maxPasses int) (algebra.Plan, int, bool, error) {
	if maxPasses < 1 {
		panic(fmt.Sprintf("rewrite.Fixpoint: maxPasses must be positive, got %d", maxPasses))
	}
	key := cmp.GetKey(p)
	for pass := 1; pass <= maxPasses; pass++ {
		next, err := Apply(p, rule)
		if err != nil {
			return nil, pass, false, err
		}
		nextKey := cmp.GetKey(next)
		if nextKey == key {
			return next, pass, true, nil
		}
		p, key = next, nextKey
	}
	return p, maxPasses, false, nil
}

// Repeat applies exactly n passes of rule.
func Repeat(p algebra.Plan, rule Rule, n int) (algebra.Plan, error) {
	for i := 0; i < n; i++ {
		var err error
		p, err = Apply(p, rule)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Transform rebuilds the tree rooted at p bottom-up: each node's children are
// transformed first, then fn is called on the node with its new children. fn
// returns its argument to leave the node unchanged.
func Transform(p algebra.Plan, fn func(algebra.Plan) algebra.Plan) algebra.Plan {
	children := p.Children()
	if len(children) > 0 {
		var rewritten []algebra.Plan
		for i, child := range children {
			res := Transform(child, fn)
			if res != child && rewritten == nil {
				rewritten = make([]algebra.Plan, len(children))
				copy(rewritten, children[:i])
			}
			if rewritten != nil {
				rewritten[i] = res
			}
		}
		if rewritten != nil {
			p = p.WithChildren(rewritten)
		}
	}
	return fn(p)
}
