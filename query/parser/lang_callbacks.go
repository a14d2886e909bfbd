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

package parser

import (
	"github.com/kasei/kineo-federation/rdf"
	p "github.com/vektah/goparsify"
)

// child returns a Map callback that replaces the result with that of the
// i-th child.
func child(i int) func(*p.Result) {
	return func(n *p.Result) {
		n.Result = n.Child[i].Result
	}
}

func boolLiteral(lexical string) func(*p.Result) {
	return func(n *p.Result) {
		n.Result = &literalTok{lexical: lexical, datatype: &iriTok{iri: rdf.XSDBoolean}}
	}
}

// literal is a string followed by an optional language tag or datatype.
func literal(n *p.Result) {
	lit := &literalTok{lexical: n.Child[0].Result.(string)}
	switch suffix := n.Child[1].Result.(type) {
	case string:
		lit.lang = suffix
	case *iriTok:
		lit.datatype = suffix
	}
	n.Result = lit
}

// results returns the Result of each of the given nodes.
func results(nodes []p.Result) []interface{} {
	res := make([]interface{}, len(nodes))
	for i, c := range nodes {
		res[i] = c.Result
	}
	return res
}

func pathNegated(n *p.Result) {
	neg := &pathNeg{items: make([]negItem, len(n.Child[1].Child))}
	for i, c := range n.Child[1].Child {
		neg.items[i] = asNegItem(c.Result)
	}
	n.Result = neg
}

func asNegItem(r interface{}) negItem {
	switch r := r.(type) {
	case negItem:
		return r
	case *iriTok:
		return negItem{iri: r}
	}
	panic("unexpected negated path item")
}

func propertyList(n *p.Result) {
	props := make([]propertyItem, len(n.Child))
	for i, c := range n.Child {
		objects := make([]term, len(c.Child[1].Child))
		for j, o := range c.Child[1].Child {
			objects[j] = o.Result
		}
		props[i] = propertyItem{verb: c.Child[0].Result, objects: objects}
	}
	n.Result = props
}

// subjectTriples is a subject followed by a property list, which may be
// missing if the subject is a blank node property list.
func subjectTriples(n *p.Result) {
	t := triplesSameSubject{subject: n.Child[0].Result}
	if props, ok := n.Child[1].Result.([]propertyItem); ok {
		t.props = props
	}
	n.Result = t
}

func aggregateCall(n *p.Result) {
	call := &callExpr{
		name:      n.Child[0].Token,
		aggregate: true,
		distinct:  n.Child[2].Token != "",
	}
	if arg := n.Child[3]; arg.Result == nil && arg.Token == "*" {
		call.star = true
	} else {
		call.args = []interface{}{arg.Result}
	}
	if sep, ok := n.Child[4].Result.(string); ok {
		call.separator = &sep
	}
	n.Result = call
}

// foldBinary builds a left-associative tree from an operand followed by any
// number of (operator, operand) pairs.
func foldBinary(n *p.Result) {
	res := n.Child[0].Result
	for _, c := range n.Child[1].Child {
		res = &binaryExpr{op: c.Child[0].Token, left: res, right: c.Child[1].Result}
	}
	n.Result = res
}

// relationTail is the operator and right-hand side of a comparison.
type relationTail struct {
	op    string
	right interface{}
}

func relational(n *p.Result) {
	left := n.Child[0].Result
	switch tail := n.Child[1].Result.(type) {
	case relationTail:
		n.Result = &binaryExpr{op: tail.op, left: left, right: tail.right}
	case *inExpr:
		tail.arg = left
		n.Result = tail
	default:
		n.Result = left
	}
}

func asGroupCondition(n *p.Result) {
	n.Result = groupCondition{expr: n.Result}
}

func ascending(n *p.Result) {
	n.Result = orderCondition{ascending: true, expr: n.Result}
}

type limitOffsetPair struct {
	limit  *uint64
	offset *uint64
}

func uint64Result(n p.Result) *uint64 {
	if v, ok := n.Result.(uint64); ok {
		return &v
	}
	return nil
}

func limitOffset(n *p.Result) {
	n.Result = limitOffsetPair{limit: uint64Result(n.Child[0]), offset: uint64Result(n.Child[1])}
}

func offsetLimit(n *p.Result) {
	n.Result = limitOffsetPair{offset: uint64Result(n.Child[0]), limit: uint64Result(n.Child[1])}
}

func solutionModifier(n *p.Result) {
	var mods solutionModifiers
	if groupBy, ok := n.Child[0].Result.([]groupCondition); ok {
		mods.groupBy = groupBy
	}
	if having, ok := n.Child[1].Result.([]interface{}); ok {
		mods.having = having
	}
	if order, ok := n.Child[2].Result.([]orderCondition); ok {
		mods.order = order
	}
	if lo, ok := n.Child[3].Result.(limitOffsetPair); ok {
		mods.limit = lo.limit
		mods.offset = lo.offset
	}
	n.Result = mods
}

// selectOf combines a parsed SELECT clause with its WHERE clause and solution
// modifiers.
func selectOf(clause *p.Result, where interface{}, mods interface{}) *selectSyntax {
	sel := &selectSyntax{
		distinct: clause.Child[1].Token == "DISTINCT",
		where:    where.(*groupPattern),
		mods:     mods.(solutionModifiers),
	}
	if items := clause.Child[2]; items.Token != "*" {
		for _, c := range items.Child {
			if item, ok := c.Result.(selectItem); ok {
				sel.items = append(sel.items, item)
			}
		}
	}
	return sel
}

func prefixDecl(n *p.Result) {
	name := n.Child[1].Result.(*iriTok)
	n.Result = prologueDecl{prefix: name.prefix, iri: n.Child[2].Result.(*iriTok)}
}

func datasets(nodes []p.Result) []datasetClause {
	var res []datasetClause
	for _, c := range nodes {
		res = append(res, c.Result.(datasetClause))
	}
	return res
}

// statement is an N-Triples or N-Quads line. The terms have already been
// parsed by the same terminals as queries.
func statement(n *p.Result) {
	q := rdf.Quad{Triple: rdf.Triple{
		Subject:   ntTerm(n.Child[0].Result),
		Predicate: ntTerm(n.Child[1].Result),
		Object:    ntTerm(n.Child[2].Result),
	}}
	if n.Child[3].Result != nil {
		q.Graph = ntTerm(n.Child[3].Result)
	}
	n.Result = q
}

func ntTerm(r interface{}) rdf.Term {
	switch t := r.(type) {
	case *iriTok:
		return rdf.IRI(t.iri)
	case *bnodeTok:
		return rdf.BlankNode(t.label)
	case *literalTok:
		switch {
		case t.lang != "":
			return rdf.NewLangString(t.lexical, t.lang)
		case t.datatype != nil:
			return rdf.NewTyped(t.lexical, rdf.IRI(t.datatype.iri))
		}
		return rdf.NewString(t.lexical)
	}
	panic("unexpected N-Triples term")
}
