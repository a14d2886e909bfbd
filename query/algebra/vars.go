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
	"sort"
	"strings"
)

// A VarSet is a set of variable names, kept sorted and unique.
type VarSet []string

// NewVarSet returns a VarSet containing the given names.
func NewVarSet(names ...string) VarSet {
	if len(names) == 0 {
		return nil
	}
	set := append(VarSet(nil), names...)
	sort.Strings(set)
	out := set[:1]
	for _, n := range set[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}

// Contains returns true if name is in the set.
func (set VarSet) Contains(name string) bool {
	i := sort.SearchStrings(set, name)
	return i < len(set) && set[i] == name
}

// Union returns the names in either set.
func (set VarSet) Union(other VarSet) VarSet {
	res := make(VarSet, 0, len(set)+len(other))
	left, right := set, other
	for len(left) > 0 && len(right) > 0 {
		switch {
		case left[0] == right[0]:
			res = append(res, left[0])
			left, right = left[1:], right[1:]
		case left[0] < right[0]:
			res = append(res, left[0])
			left = left[1:]
		default:
			res = append(res, right[0])
			right = right[1:]
		}
	}
	res = append(res, left...)
	return append(res, right...)
}

// Intersect returns the names in both sets.
func (set VarSet) Intersect(other VarSet) VarSet {
	var res VarSet
	left, right := set, other
	for len(left) > 0 && len(right) > 0 {
		switch {
		case left[0] == right[0]:
			res = append(res, left[0])
			left, right = left[1:], right[1:]
		case left[0] < right[0]:
			left = left[1:]
		default:
			right = right[1:]
		}
	}
	return res
}

// String returns a string like "?a ?b".
func (set VarSet) String() string {
	var b strings.Builder
	for i, n := range set {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('?')
		b.WriteString(n)
	}
	return b.String()
}

func nodeVars(nodes ...Node) VarSet {
	var names []string
	for _, n := range nodes {
		if v, ok := n.(*Variable); ok {
			names = append(names, v.Name)
		}
	}
	return NewVarSet(names...)
}

// Variables returns the variables in scope for the solutions of p: those
// that may be bound in its output.
func Variables(p Plan) VarSet {
	switch p := p.(type) {
	case *JoinIdentity, *UnionIdentity:
		return nil
	case *Triple:
		return nodeVars(p.Pattern.Nodes()...)
	case *Quad:
		return nodeVars(p.Pattern.Nodes()...)
	case *Path:
		return nodeVars(p.Subject, p.Object)
	case *BGP:
		var res VarSet
		for _, t := range p.Patterns {
			res = res.Union(nodeVars(t.Nodes()...))
		}
		return res
	case *InnerJoin:
		return Variables(p.Left).Union(Variables(p.Right))
	case *LeftOuterJoin:
		return Variables(p.Left).Union(Variables(p.Right))
	case *Union:
		return Variables(p.Left).Union(Variables(p.Right))
	case *Minus:
		return Variables(p.Left)
	case *Extend:
		return Variables(p.Input).Union(NewVarSet(p.Var.Name))
	case *Project:
		names := make([]string, len(p.Vars))
		for i, v := range p.Vars {
			names[i] = v.Name
		}
		return NewVarSet(names...)
	case *Aggregate:
		var names []string
		for _, g := range p.GroupBy {
			if v, ok := g.(*Variable); ok {
				names = append(names, v.Name)
			}
		}
		for _, a := range p.Aggregations {
			names = append(names, a.Var.Name)
		}
		return NewVarSet(names...)
	case *NamedGraph:
		return Variables(p.Input).Union(nodeVars(p.Graph))
	case *Subquery:
		if p.Query.Form != SelectForm {
			return nil
		}
		return Variables(p.Query.Plan)
	}
	// Filter, Distinct, Slice, Order, and Service pass their input through.
	children := p.Children()
	if len(children) == 1 {
		return Variables(children[0])
	}
	panic("algebra.Variables: unexpected plan type " + p.String())
}
