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

// Package serializer turns algebra back into SPARQL query text. It's used to
// send the sub-plans of Service nodes to remote endpoints.
package serializer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
)

// SerializePlan returns a SELECT query that produces the solutions of p. Plans
// without a projection select every in-scope variable with SELECT *.
func SerializePlan(p algebra.Plan) (string, error) {
	return SerializeQuery(&algebra.Query{Form: algebra.SelectForm, Plan: p})
}

// SerializeQuery returns SPARQL text for q. Prefixes aren't used; every IRI
// is written in full.
func SerializeQuery(q *algebra.Query) (string, error) {
	var b strings.Builder
	switch q.Form {
	case algebra.SelectForm:
		text, err := selectQuery(q.Plan, q.Dataset)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	case algebra.AskForm:
		group, err := groupGraphPattern(q.Plan)
		if err != nil {
			return "", err
		}
		b.WriteString("ASK")
		writeDataset(&b, q.Dataset)
		b.WriteString(" WHERE ")
		b.WriteString(group)
	case algebra.ConstructForm:
		b.WriteString("CONSTRUCT { ")
		for _, t := range q.Template {
			pattern, err := triplePattern(t)
			if err != nil {
				return "", err
			}
			b.WriteString(pattern)
			b.WriteString(" . ")
		}
		b.WriteByte('}')
		writeDataset(&b, q.Dataset)
		plan, mods := peelSequenceModifiers(q.Plan)
		group, err := groupGraphPattern(plan)
		if err != nil {
			return "", err
		}
		b.WriteString(" WHERE ")
		b.WriteString(group)
		b.WriteString(mods)
	default:
		return "", fmt.Errorf("can't serialize query form %v", q.Form)
	}
	return b.String(), nil
}

func writeDataset(b *strings.Builder, d algebra.Dataset) {
	for _, g := range d.Default {
		b.WriteString(" FROM ")
		b.WriteString(g.String())
	}
	for _, g := range d.Named {
		b.WriteString(" FROM NAMED ")
		b.WriteString(g.String())
	}
}

// peelSequenceModifiers removes an Order and Slice from the top of the plan,
// returning the rest and the matching ORDER BY, LIMIT and OFFSET clauses.
func peelSequenceModifiers(p algebra.Plan) (algebra.Plan, string) {
	var order *algebra.Order
	var slice *algebra.Slice
	if s, ok := p.(*algebra.Slice); ok {
		slice, p = s, s.Input
	}
	if o, ok := p.(*algebra.Order); ok {
		order, p = o, o.Input
	}
	return p, modifiers(order, slice)
}

func modifiers(order *algebra.Order, slice *algebra.Slice) string {
	var b strings.Builder
	if order != nil {
		b.WriteString(" ORDER BY")
		for _, c := range order.Comparators {
			b.WriteByte(' ')
			b.WriteString(c.String())
		}
	}
	if slice != nil {
		if slice.Limit != nil {
			b.WriteString(" LIMIT ")
			b.WriteString(strconv.FormatUint(*slice.Limit, 10))
		}
		if slice.Offset != nil {
			b.WriteString(" OFFSET ")
			b.WriteString(strconv.FormatUint(*slice.Offset, 10))
		}
	}
	return b.String()
}

// selectParts are the pieces of a SELECT query, peeled off the top of a plan
// in the reverse order of the SPARQL algebra translation.
type selectParts struct {
	slice    *algebra.Slice
	distinct bool
	project  *algebra.Project
	order    *algebra.Order
	// Only set when there's an Aggregate: the Extends above it (outermost
	// first), the HAVING filters, and the Aggregate itself.
	extends   []*algebra.Extend
	having    []algebra.Expression
	aggregate *algebra.Aggregate
	where     algebra.Plan
}

func peelSelect(p algebra.Plan) selectParts {
	var parts selectParts
	if s, ok := p.(*algebra.Slice); ok {
		parts.slice, p = s, s.Input
	}
	if d, ok := p.(*algebra.Distinct); ok {
		parts.distinct, p = true, d.Input
	}
	if pr, ok := p.(*algebra.Project); ok {
		parts.project, p = pr, pr.Input
	}
	if o, ok := p.(*algebra.Order); ok {
		parts.order, p = o, o.Input
	}
	// Extends and Filters only belong in the SELECT and HAVING clauses if
	// there's an Aggregate below them.
	rest := p
	var extends []*algebra.Extend
	var having []algebra.Expression
	for {
		e, ok := rest.(*algebra.Extend)
		if !ok {
			break
		}
		extends = append(extends, e)
		rest = e.Input
	}
	for {
		f, ok := rest.(*algebra.Filter)
		if !ok {
			break
		}
		having = append(having, f.Expr)
		rest = f.Input
	}
	if agg, ok := rest.(*algebra.Aggregate); ok {
		parts.extends = extends
		parts.having = having
		parts.aggregate = agg
		p = agg.Input
	}
	parts.where = p
	return parts
}

func selectQuery(p algebra.Plan, dataset algebra.Dataset) (string, error) {
	parts := peelSelect(p)
	var b strings.Builder
	b.WriteString("SELECT ")
	if parts.distinct {
		b.WriteString("DISTINCT ")
	}
	projection, err := parts.projection()
	if err != nil {
		return "", err
	}
	b.WriteString(projection)
	writeDataset(&b, dataset)
	group, err := groupGraphPattern(parts.where)
	if err != nil {
		return "", err
	}
	b.WriteString(" WHERE ")
	b.WriteString(group)
	if parts.aggregate != nil {
		if len(parts.aggregate.GroupBy) > 0 {
			b.WriteString(" GROUP BY")
			for _, g := range parts.aggregate.GroupBy {
				b.WriteByte(' ')
				if _, ok := g.(*algebra.Variable); ok {
					b.WriteString(g.String())
				} else {
					b.WriteString(wrap(g.String()))
				}
			}
		}
		// Filters were peeled outermost first; the conditions are
		// conjunctive so their order doesn't matter, but keep the original.
		for i := len(parts.having) - 1; i >= 0; i-- {
			b.WriteString(" HAVING ")
			b.WriteString(wrap(parts.having[i].String()))
		}
	}
	b.WriteString(modifiers(parts.order, parts.slice))
	return b.String(), nil
}

// projection returns the SELECT clause, without the SELECT keyword.
func (parts *selectParts) projection() (string, error) {
	if parts.aggregate == nil {
		if parts.project == nil {
			return "*", nil
		}
		names := make([]string, len(parts.project.Vars))
		for i, v := range parts.project.Vars {
			names[i] = v.String()
		}
		if len(names) == 0 {
			return "", fmt.Errorf("can't serialize a projection of no variables")
		}
		return strings.Join(names, " "), nil
	}
	bound := make(map[string]string)
	var order []string
	for _, a := range parts.aggregate.Aggregations {
		bound[a.Var.Name] = a.String()
		order = append(order, a.Var.Name)
	}
	for i := len(parts.extends) - 1; i >= 0; i-- {
		e := parts.extends[i]
		bound[e.Var.Name] = "(" + e.Expr.String() + " AS " + e.Var.String() + ")"
		order = append(order, e.Var.Name)
	}
	var items []string
	if parts.project == nil {
		for _, g := range parts.aggregate.GroupBy {
			if v, ok := g.(*algebra.Variable); ok {
				items = append(items, v.String())
			}
		}
		for _, name := range order {
			items = append(items, bound[name])
		}
	} else {
		// Variables that are computed but not projected still have to be
		// bound in the SELECT clause so that later expressions can use them.
		projected := make(map[string]bool)
		for _, v := range parts.project.Vars {
			projected[v.Name] = true
		}
		for _, name := range order {
			if !projected[name] {
				items = append(items, bound[name])
			}
		}
		for _, v := range parts.project.Vars {
			if expr, ok := bound[v.Name]; ok {
				items = append(items, expr)
			} else {
				items = append(items, v.String())
			}
		}
	}
	if len(items) == 0 {
		return "", fmt.Errorf("can't serialize an aggregation with no results")
	}
	return strings.Join(items, " "), nil
}

// groupGraphPattern returns p as a braced group graph pattern.
func groupGraphPattern(p algebra.Plan) (string, error) {
	elems, err := groupElements(p)
	if err != nil {
		return "", err
	}
	return braces(elems), nil
}

func braces(elems []string) string {
	if len(elems) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(elems, " ") + " }"
}

// inlinable returns true if p's group elements can be placed next to other
// elements in the same group without changing p's meaning. FILTERs, OPTIONALs,
// MINUS and BIND apply to everything before them in their group, so plans
// using them are braced.
func inlinable(p algebra.Plan) bool {
	switch p := p.(type) {
	case *algebra.JoinIdentity, *algebra.UnionIdentity, *algebra.Triple, *algebra.Quad,
		*algebra.Path, *algebra.BGP, *algebra.Union, *algebra.Service,
		*algebra.NamedGraph, *algebra.Subquery:
		return true
	case *algebra.InnerJoin:
		return inlinable(p.Left) && inlinable(p.Right)
	case *algebra.Project, *algebra.Distinct, *algebra.Slice, *algebra.Order, *algebra.Aggregate:
		// These become braced subqueries anyway.
		return true
	}
	return false
}

// elementsOf returns the group elements of p, braced into a single element
// if they can't be inlined.
func elementsOf(p algebra.Plan) ([]string, error) {
	elems, err := groupElements(p)
	if err != nil {
		return nil, err
	}
	if inlinable(p) {
		return elems, nil
	}
	return []string{braces(elems)}, nil
}

func groupElements(p algebra.Plan) ([]string, error) {
	switch p := p.(type) {
	case *algebra.JoinIdentity:
		return nil, nil
	case *algebra.UnionIdentity:
		return []string{"FILTER(false)"}, nil
	case *algebra.Triple:
		t, err := triplePattern(p.Pattern)
		if err != nil {
			return nil, err
		}
		return []string{t + " ."}, nil
	case *algebra.Quad:
		t, err := triplePattern(p.Pattern.TriplePattern)
		if err != nil {
			return nil, err
		}
		g, err := graphName(p.Pattern.Graph)
		if err != nil {
			return nil, err
		}
		return []string{"GRAPH " + g + " { " + t + " . }"}, nil
	case *algebra.Path:
		if err := checkTerm(p.Subject); err != nil {
			return nil, err
		}
		if err := checkTerm(p.Object); err != nil {
			return nil, err
		}
		return []string{p.Subject.String() + " " + p.Path.String() + " " + p.Object.String() + " ."}, nil
	case *algebra.BGP:
		elems := make([]string, len(p.Patterns))
		for i, tp := range p.Patterns {
			t, err := triplePattern(tp)
			if err != nil {
				return nil, err
			}
			elems[i] = t + " ."
		}
		return elems, nil
	case *algebra.InnerJoin:
		left, err := elementsOf(p.Left)
		if err != nil {
			return nil, err
		}
		right, err := elementsOf(p.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	case *algebra.LeftOuterJoin:
		left, err := elementsOf(p.Left)
		if err != nil {
			return nil, err
		}
		var right []string
		if _, ok := p.Right.(*algebra.Filter); ok {
			// Keep the right side's own filters apart from the join
			// condition.
			right, err = groupGraphPatternList(p.Right)
		} else {
			right, err = groupElements(p.Right)
		}
		if err != nil {
			return nil, err
		}
		if p.Expr != nil {
			if err := checkExpression(p.Expr, false); err != nil {
				return nil, err
			}
			right = append(right, "FILTER"+wrap(p.Expr.String()))
		}
		return append(left, "OPTIONAL "+braces(right)), nil
	case *algebra.Union:
		branches := algebra.UnionBranches(p)
		groups := make([]string, len(branches))
		for i, branch := range branches {
			g, err := groupGraphPattern(branch)
			if err != nil {
				return nil, err
			}
			groups[i] = g
		}
		return []string{strings.Join(groups, " UNION ")}, nil
	case *algebra.Minus:
		left, err := elementsOf(p.Left)
		if err != nil {
			return nil, err
		}
		right, err := groupGraphPattern(p.Right)
		if err != nil {
			return nil, err
		}
		return append(left, "MINUS "+right), nil
	case *algebra.Filter:
		if err := checkExpression(p.Expr, false); err != nil {
			return nil, err
		}
		elems, err := groupElements(p.Input)
		if err != nil {
			return nil, err
		}
		return append(elems, "FILTER"+wrap(p.Expr.String())), nil
	case *algebra.Extend:
		if err := checkExpression(p.Expr, false); err != nil {
			return nil, err
		}
		var elems []string
		var err error
		if _, ok := p.Input.(*algebra.Filter); ok {
			elems, err = groupGraphPatternList(p.Input)
		} else {
			elems, err = groupElements(p.Input)
		}
		if err != nil {
			return nil, err
		}
		return append(elems, "BIND("+p.Expr.String()+" AS "+p.Var.String()+")"), nil
	case *algebra.NamedGraph:
		g, err := graphName(p.Graph)
		if err != nil {
			return nil, err
		}
		inner, err := groupGraphPattern(p.Input)
		if err != nil {
			return nil, err
		}
		return []string{"GRAPH " + g + " " + inner}, nil
	case *algebra.Service:
		if err := checkEndpoint(p.Endpoint); err != nil {
			return nil, err
		}
		inner, err := groupGraphPattern(p.Input)
		if err != nil {
			return nil, err
		}
		silent := ""
		if p.Silent {
			silent = "SILENT "
		}
		return []string{"SERVICE " + silent + "<" + p.Endpoint + "> " + inner}, nil
	case *algebra.Subquery:
		if p.Query.Form != algebra.SelectForm {
			return nil, fmt.Errorf("can't serialize a %v subquery", p.Query.Form)
		}
		text, err := selectQuery(p.Query.Plan, algebra.Dataset{})
		if err != nil {
			return nil, err
		}
		return []string{"{ " + text + " }"}, nil
	case *algebra.Project, *algebra.Distinct, *algebra.Slice, *algebra.Order, *algebra.Aggregate:
		text, err := selectQuery(p, algebra.Dataset{})
		if err != nil {
			return nil, err
		}
		return []string{"{ " + text + " }"}, nil
	}
	return nil, fmt.Errorf("can't serialize plan node %T", p)
}

// groupGraphPatternList returns p braced as a single group element.
func groupGraphPatternList(p algebra.Plan) ([]string, error) {
	g, err := groupGraphPattern(p)
	if err != nil {
		return nil, err
	}
	return []string{g}, nil
}

func triplePattern(t algebra.TriplePattern) (string, error) {
	if err := checkTerm(t.Subject); err != nil {
		return "", err
	}
	switch pred := t.Predicate.(type) {
	case *algebra.Variable, rdf.IRI:
	default:
		return "", fmt.Errorf("can't serialize %v in the predicate position", pred)
	}
	if err := checkTerm(t.Object); err != nil {
		return "", err
	}
	return t.String(), nil
}

func graphName(n algebra.Node) (string, error) {
	switch n.(type) {
	case *algebra.Variable, rdf.IRI:
		return n.String(), nil
	}
	return "", fmt.Errorf("can't serialize %v as a graph name", n)
}

func checkTerm(n algebra.Node) error {
	if n == nil {
		return fmt.Errorf("can't serialize a missing pattern term")
	}
	if iri, ok := n.(rdf.IRI); ok {
		return checkIRI(string(iri))
	}
	return nil
}

func checkEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("can't serialize a SERVICE with no endpoint")
	}
	return checkIRI(endpoint)
}

// checkIRI returns an error if iri can't be written as an IRIREF.
func checkIRI(iri string) error {
	for _, r := range iri {
		if r <= ' ' || strings.ContainsRune("<>\"{}|^`\\", r) {
			return fmt.Errorf("can't serialize IRI %q: invalid character %q", iri, r)
		}
	}
	return nil
}

// checkExpression returns an error for expressions that can't appear in a
// group graph pattern. Aggregates are only valid in SELECT and HAVING.
func checkExpression(e algebra.Expression, allowAggregates bool) error {
	switch e := e.(type) {
	case *algebra.AggregateExpr:
		if !allowAggregates {
			return fmt.Errorf("can't serialize aggregate %v outside of a grouping", e)
		}
		if e.Arg != nil {
			return checkExpression(e.Arg, false)
		}
	case *algebra.Constant:
		if _, ok := e.Term.(rdf.BlankNode); ok {
			return fmt.Errorf("can't serialize blank node %v in an expression", e.Term)
		}
	case *algebra.Unary:
		return checkExpression(e.Arg, allowAggregates)
	case *algebra.Binary:
		if err := checkExpression(e.Left, allowAggregates); err != nil {
			return err
		}
		return checkExpression(e.Right, allowAggregates)
	case *algebra.Call:
		for _, arg := range e.Args {
			if err := checkExpression(arg, allowAggregates); err != nil {
				return err
			}
		}
	}
	return nil
}

func wrap(s string) string {
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && balanced(s[1:len(s)-1]) {
		return s
	}
	return "(" + s + ")"
}

// balanced returns true if the parentheses in s outside of string literals
// are balanced, meaning the outer parentheses of "(" + s + ")" enclose the
// whole thing.
func balanced(s string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case inString:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
