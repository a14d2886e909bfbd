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
	"fmt"
	"strconv"
	"strings"
)

// A Plan is a node in the algebra tree. Its String is a one-line description
// of the node itself; use Format for the whole tree.
type Plan interface {
	String() string
	Key(*strings.Builder)
	// Children returns the node's sub-plans, in order. Leaves return nil.
	Children() []Plan
	// WithChildren returns a copy of the node with its sub-plans replaced.
	// len(children) must equal len(Children()).
	WithChildren(children []Plan) Plan
	aPlan()
}

// ImplementPlan is a list of types that implement Plan. This serves as
// documentation and as a compile-time check.
var ImplementPlan = []Plan{
	new(JoinIdentity),
	new(UnionIdentity),
	new(Triple),
	new(Quad),
	new(Path),
	new(BGP),
	new(InnerJoin),
	new(LeftOuterJoin),
	new(Union),
	new(Minus),
	new(Filter),
	new(Extend),
	new(Project),
	new(Distinct),
	new(Slice),
	new(Order),
	new(Aggregate),
	new(NamedGraph),
	new(Service),
	new(Subquery),
}

// JoinIdentity produces a single empty solution. It's the neutral element of
// InnerJoin.
type JoinIdentity struct {
	// Pointers to distinct zero-size values may compare equal. This padding
	// keeps them distinct.
	_ byte
}

// UnionIdentity produces no solutions. It's the neutral element of Union.
type UnionIdentity struct {
	_ byte
}

// Triple matches a triple pattern against the default graph.
type Triple struct {
	Pattern TriplePattern
}

// Quad matches a triple pattern against named graphs.
type Quad struct {
	Pattern QuadPattern
}

// Path matches a property path between Subject and Object.
type Path struct {
	Subject Node
	Path    PathExpr
	Object  Node
}

// BGP is a basic graph pattern: a conjunction of triple patterns.
type BGP struct {
	Patterns []TriplePattern
}

// InnerJoin joins the compatible solutions of Left and Right.
type InnerJoin struct {
	Left, Right Plan
}

// LeftOuterJoin is SPARQL's OPTIONAL: Left solutions extended with compatible
// Right solutions for which Expr holds, or unextended if there are none. A
// nil Expr is true.
type LeftOuterJoin struct {
	Left, Right Plan
	Expr        Expression
}

// Union produces the solutions of Left followed by those of Right.
type Union struct {
	Left, Right Plan
}

// Minus produces the Left solutions that aren't compatible with any Right
// solution sharing a variable with it.
type Minus struct {
	Left, Right Plan
}

// Filter keeps the Input solutions for which Expr's effective boolean value
// is true.
type Filter struct {
	Input Plan
	Expr  Expression
}

// Extend binds Var to the value of Expr in each Input solution.
type Extend struct {
	Input Plan
	Expr  Expression
	Var   *Variable
}

// Project restricts Input solutions to Vars, in that order.
type Project struct {
	Input Plan
	Vars  []*Variable
}

// Distinct removes duplicate solutions.
type Distinct struct {
	Input Plan
}

// Slice skips Offset solutions and then produces at most Limit. Either may be
// nil.
type Slice struct {
	Input  Plan
	Offset *uint64
	Limit  *uint64
}

// Comparator is one ORDER BY condition.
type Comparator struct {
	Ascending bool
	Expr      Expression
}

// Key implements cmp.Key.
func (c Comparator) Key(b *strings.Builder) {
	b.WriteString(c.String())
}

// String returns a string like "ASC(?x)".
func (c Comparator) String() string {
	if c.Ascending {
		return "ASC(" + c.Expr.String() + ")"
	}
	return "DESC(" + c.Expr.String() + ")"
}

// Order sorts Input solutions by the Comparators, in priority order.
type Order struct {
	Input       Plan
	Comparators []Comparator
}

// Aggregation binds the result of an aggregate expression to a variable.
type Aggregation struct {
	Expr *AggregateExpr
	Var  *Variable
}

// String returns a string like "(COUNT(?x) AS ?n)".
func (a Aggregation) String() string {
	return "(" + a.Expr.String() + " AS " + a.Var.String() + ")"
}

// Key implements cmp.Key.
func (a Aggregation) Key(b *strings.Builder) {
	b.WriteByte('(')
	a.Expr.Key(b)
	b.WriteString(" AS ")
	a.Var.Key(b)
	b.WriteByte(')')
}

// Aggregate groups Input solutions by GroupBy (one group if it's empty) and
// produces one solution per group binding the Aggregations and any GroupBy
// expressions that are plain variables.
type Aggregate struct {
	Input        Plan
	GroupBy      []Expression
	Aggregations []Aggregation
}

// NamedGraph evaluates Input against the named graph Graph, which may be a
// variable ranging over every named graph.
type NamedGraph struct {
	Input Plan
	Graph Node
}

// Service delegates Input to the remote SPARQL endpoint at the URL Endpoint.
// If Silent is set, failures produce no solutions instead of an error.
type Service struct {
	Endpoint string
	Input    Plan
	Silent   bool
}

// Subquery evaluates a nested query, which has its own projection.
type Subquery struct {
	Query *Query
}

func (*JoinIdentity) aPlan()  {}
func (*UnionIdentity) aPlan() {}
func (*Triple) aPlan()        {}
func (*Quad) aPlan()          {}
func (*Path) aPlan()          {}
func (*BGP) aPlan()           {}
func (*InnerJoin) aPlan()     {}
func (*LeftOuterJoin) aPlan() {}
func (*Union) aPlan()         {}
func (*Minus) aPlan()         {}
func (*Filter) aPlan()        {}
func (*Extend) aPlan()        {}
func (*Project) aPlan()       {}
func (*Distinct) aPlan()      {}
func (*Slice) aPlan()         {}
func (*Order) aPlan()         {}
func (*Aggregate) aPlan()     {}
func (*NamedGraph) aPlan()    {}
func (*Service) aPlan()       {}
func (*Subquery) aPlan()      {}

// Children

func (*JoinIdentity) Children() []Plan  { return nil }
func (*UnionIdentity) Children() []Plan { return nil }
func (*Triple) Children() []Plan        { return nil }
func (*Quad) Children() []Plan          { return nil }
func (*Path) Children() []Plan          { return nil }
func (*BGP) Children() []Plan           { return nil }
func (p *InnerJoin) Children() []Plan   { return []Plan{p.Left, p.Right} }
func (p *LeftOuterJoin) Children() []Plan {
	return []Plan{p.Left, p.Right}
}
func (p *Union) Children() []Plan      { return []Plan{p.Left, p.Right} }
func (p *Minus) Children() []Plan      { return []Plan{p.Left, p.Right} }
func (p *Filter) Children() []Plan     { return []Plan{p.Input} }
func (p *Extend) Children() []Plan     { return []Plan{p.Input} }
func (p *Project) Children() []Plan    { return []Plan{p.Input} }
func (p *Distinct) Children() []Plan   { return []Plan{p.Input} }
func (p *Slice) Children() []Plan      { return []Plan{p.Input} }
func (p *Order) Children() []Plan      { return []Plan{p.Input} }
func (p *Aggregate) Children() []Plan  { return []Plan{p.Input} }
func (p *NamedGraph) Children() []Plan { return []Plan{p.Input} }
func (p *Service) Children() []Plan    { return []Plan{p.Input} }
func (p *Subquery) Children() []Plan   { return []Plan{p.Query.Plan} }

// WithChildren

func checkChildren(p Plan, children []Plan, n int) {
	if len(children) != n {
		panic(fmt.Sprintf("%T.WithChildren: got %d children, expected %d", p, len(children), n))
	}
}

func (p *JoinIdentity) WithChildren(c []Plan) Plan  { checkChildren(p, c, 0); return p }
func (p *UnionIdentity) WithChildren(c []Plan) Plan { checkChildren(p, c, 0); return p }
func (p *Triple) WithChildren(c []Plan) Plan        { checkChildren(p, c, 0); return p }
func (p *Quad) WithChildren(c []Plan) Plan          { checkChildren(p, c, 0); return p }
func (p *Path) WithChildren(c []Plan) Plan          { checkChildren(p, c, 0); return p }
func (p *BGP) WithChildren(c []Plan) Plan           { checkChildren(p, c, 0); return p }

func (p *InnerJoin) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 2)
	return &InnerJoin{Left: c[0], Right: c[1]}
}

func (p *LeftOuterJoin) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 2)
	return &LeftOuterJoin{Left: c[0], Right: c[1], Expr: p.Expr}
}

func (p *Union) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 2)
	return &Union{Left: c[0], Right: c[1]}
}

func (p *Minus) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 2)
	return &Minus{Left: c[0], Right: c[1]}
}

func (p *Filter) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Filter{Input: c[0], Expr: p.Expr}
}

func (p *Extend) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Extend{Input: c[0], Expr: p.Expr, Var: p.Var}
}

func (p *Project) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Project{Input: c[0], Vars: p.Vars}
}

func (p *Distinct) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Distinct{Input: c[0]}
}

func (p *Slice) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Slice{Input: c[0], Offset: p.Offset, Limit: p.Limit}
}

func (p *Order) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Order{Input: c[0], Comparators: p.Comparators}
}

func (p *Aggregate) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Aggregate{Input: c[0], GroupBy: p.GroupBy, Aggregations: p.Aggregations}
}

func (p *NamedGraph) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &NamedGraph{Input: c[0], Graph: p.Graph}
}

func (p *Service) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	return &Service{Endpoint: p.Endpoint, Input: c[0], Silent: p.Silent}
}

func (p *Subquery) WithChildren(c []Plan) Plan {
	checkChildren(p, c, 1)
	q := *p.Query
	q.Plan = c[0]
	return &Subquery{Query: &q}
}

// Strings

func (*JoinIdentity) String() string  { return "JoinIdentity" }
func (*UnionIdentity) String() string { return "UnionIdentity" }
func (p *Triple) String() string      { return "Triple " + p.Pattern.String() }
func (p *Quad) String() string        { return "Quad " + p.Pattern.String() }

func (p *Path) String() string {
	return "Path " + p.Subject.String() + " " + p.Path.String() + " " + p.Object.String()
}

func (p *BGP) String() string {
	parts := make([]string, len(p.Patterns))
	for i, t := range p.Patterns {
		parts[i] = t.String()
	}
	return "BGP " + strings.Join(parts, " . ")
}

func (*InnerJoin) String() string { return "InnerJoin" }

func (p *LeftOuterJoin) String() string {
	if p.Expr == nil {
		return "LeftOuterJoin"
	}
	return "LeftOuterJoin FILTER" + wrapParens(p.Expr.String())
}

func (*Union) String() string        { return "Union" }
func (*Minus) String() string        { return "Minus" }
func (p *Filter) String() string     { return "Filter " + p.Expr.String() }
func (p *Extend) String() string     { return "Extend " + p.Var.String() + " := " + p.Expr.String() }
func (*Distinct) String() string     { return "Distinct" }
func (p *NamedGraph) String() string { return "NamedGraph " + p.Graph.String() }

func (p *Project) String() string {
	var b strings.Builder
	b.WriteString("Project")
	for _, v := range p.Vars {
		b.WriteByte(' ')
		b.WriteString(v.String())
	}
	return b.String()
}

func (p *Slice) String() string {
	var b strings.Builder
	b.WriteString("Slice")
	if p.Offset != nil {
		b.WriteString(" offset=")
		b.WriteString(strconv.FormatUint(*p.Offset, 10))
	}
	if p.Limit != nil {
		b.WriteString(" limit=")
		b.WriteString(strconv.FormatUint(*p.Limit, 10))
	}
	return b.String()
}

func (p *Order) String() string {
	var b strings.Builder
	b.WriteString("Order")
	for _, c := range p.Comparators {
		b.WriteByte(' ')
		b.WriteString(c.String())
	}
	return b.String()
}

func (p *Aggregate) String() string {
	var b strings.Builder
	b.WriteString("Aggregate")
	if len(p.GroupBy) > 0 {
		b.WriteString(" GROUP BY")
		for _, g := range p.GroupBy {
			b.WriteByte(' ')
			b.WriteString(g.String())
		}
	}
	for _, a := range p.Aggregations {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}
	return b.String()
}

func (p *Service) String() string {
	if p.Silent {
		return "Service SILENT <" + p.Endpoint + ">"
	}
	return "Service <" + p.Endpoint + ">"
}

func (p *Subquery) String() string {
	return "Subquery " + p.Query.Form.String()
}

func wrapParens(s string) string {
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s
	}
	return "(" + s + ")"
}

// Keys

func keyOf(b *strings.Builder, name string, parts ...func()) {
	b.WriteString(name)
	b.WriteByte('(')
	for i, part := range parts {
		if i > 0 {
			b.WriteByte(',')
		}
		part()
	}
	b.WriteByte(')')
}

// Key implements cmp.Key.
func (*JoinIdentity) Key(b *strings.Builder) { b.WriteString("JoinIdentity") }

// Key implements cmp.Key.
func (*UnionIdentity) Key(b *strings.Builder) { b.WriteString("UnionIdentity") }

// Key implements cmp.Key.
func (p *Triple) Key(b *strings.Builder) {
	keyOf(b, "Triple", func() { p.Pattern.Key(b) })
}

// Key implements cmp.Key.
func (p *Quad) Key(b *strings.Builder) {
	keyOf(b, "Quad", func() { p.Pattern.Key(b) })
}

// Key implements cmp.Key.
func (p *Path) Key(b *strings.Builder) {
	keyOf(b, "Path", func() {
		p.Subject.Key(b)
		b.WriteByte(' ')
		p.Path.Key(b)
		b.WriteByte(' ')
		p.Object.Key(b)
	})
}

// Key implements cmp.Key.
func (p *BGP) Key(b *strings.Builder) {
	keyOf(b, "BGP", func() {
		for i, t := range p.Patterns {
			if i > 0 {
				b.WriteString(" . ")
			}
			t.Key(b)
		}
	})
}

// Key implements cmp.Key.
func (p *InnerJoin) Key(b *strings.Builder) {
	keyOf(b, "InnerJoin", func() { p.Left.Key(b) }, func() { p.Right.Key(b) })
}

// Key implements cmp.Key.
func (p *LeftOuterJoin) Key(b *strings.Builder) {
	keyOf(b, "LeftOuterJoin",
		func() { p.Left.Key(b) },
		func() { p.Right.Key(b) },
		func() {
			if p.Expr != nil {
				p.Expr.Key(b)
			}
		})
}

// Key implements cmp.Key.
func (p *Union) Key(b *strings.Builder) {
	keyOf(b, "Union", func() { p.Left.Key(b) }, func() { p.Right.Key(b) })
}

// Key implements cmp.Key.
func (p *Minus) Key(b *strings.Builder) {
	keyOf(b, "Minus", func() { p.Left.Key(b) }, func() { p.Right.Key(b) })
}

// Key implements cmp.Key.
func (p *Filter) Key(b *strings.Builder) {
	keyOf(b, "Filter", func() { p.Expr.Key(b) }, func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Extend) Key(b *strings.Builder) {
	keyOf(b, "Extend",
		func() { p.Var.Key(b) },
		func() { p.Expr.Key(b) },
		func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Project) Key(b *strings.Builder) {
	keyOf(b, "Project",
		func() {
			for i, v := range p.Vars {
				if i > 0 {
					b.WriteByte(' ')
				}
				v.Key(b)
			}
		},
		func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Distinct) Key(b *strings.Builder) {
	keyOf(b, "Distinct", func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Slice) Key(b *strings.Builder) {
	optional := func(v *uint64) func() {
		return func() {
			if v != nil {
				b.WriteString(strconv.FormatUint(*v, 10))
			}
		}
	}
	keyOf(b, "Slice", optional(p.Offset), optional(p.Limit), func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Order) Key(b *strings.Builder) {
	keyOf(b, "Order",
		func() {
			for i, c := range p.Comparators {
				if i > 0 {
					b.WriteByte(' ')
				}
				c.Key(b)
			}
		},
		func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Aggregate) Key(b *strings.Builder) {
	keyOf(b, "Aggregate",
		func() {
			for i, g := range p.GroupBy {
				if i > 0 {
					b.WriteByte(' ')
				}
				g.Key(b)
			}
		},
		func() {
			for i, a := range p.Aggregations {
				if i > 0 {
					b.WriteByte(' ')
				}
				a.Key(b)
			}
		},
		func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *NamedGraph) Key(b *strings.Builder) {
	keyOf(b, "NamedGraph", func() { p.Graph.Key(b) }, func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Service) Key(b *strings.Builder) {
	keyOf(b, "Service",
		func() { b.WriteString(strconv.Quote(p.Endpoint)) },
		func() {
			if p.Silent {
				b.WriteString("silent")
			}
		},
		func() { p.Input.Key(b) })
}

// Key implements cmp.Key.
func (p *Subquery) Key(b *strings.Builder) {
	keyOf(b, "Subquery", func() { p.Query.Key(b) })
}
