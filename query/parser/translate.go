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
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/util/cmp"
)

// translator turns the syntax tree from the grammar into algebra. It holds
// the state that's scoped to a single query: its prefixes and base IRI, and
// counters for generated variable names.
type translator struct {
	in       string
	base     *url.URL
	baseIRI  string
	prefixes map[string]string
	anon     int
	aggs     int
	// Set while translating a CONSTRUCT template, where blank nodes stay
	// blank nodes.
	template bool
	// The names of the variables standing in for pattern blank nodes.
	blanks map[string]bool
}

func newTranslator(in string) *translator {
	return &translator{in: in, prefixes: make(map[string]string)}
}

func (t *translator) query(qs *querySyntax) (*algebra.Query, error) {
	for _, decl := range qs.prologue {
		iri, err := t.resolve(decl.iri)
		if err != nil {
			return nil, err
		}
		if decl.base {
			base, err := url.Parse(string(iri))
			if err != nil {
				return nil, newParseError("query", t.in, decl.iri.pos, fmt.Sprintf("invalid BASE IRI: %v", err))
			}
			t.base = base
			t.baseIRI = string(iri)
			continue
		}
		t.prefixes[decl.prefix] = string(iri)
	}
	q := &algebra.Query{Base: t.baseIRI}
	if len(t.prefixes) > 0 {
		q.Prefixes = t.prefixes
	}
	for _, d := range qs.dataset {
		iri, err := t.resolve(d.iri)
		if err != nil {
			return nil, err
		}
		if d.named {
			q.Dataset.Named = append(q.Dataset.Named, iri)
		} else {
			q.Dataset.Default = append(q.Dataset.Default, iri)
		}
	}
	var err error
	switch qs.form {
	case "SELECT":
		q.Form = algebra.SelectForm
		q.Plan, err = t.selectPlan(qs.sel)
	case "ASK":
		q.Form = algebra.AskForm
		q.Plan, err = t.selectPlan(&selectSyntax{where: qs.where, mods: qs.mods})
	case "CONSTRUCT":
		q.Form = algebra.ConstructForm
		where := qs.where
		if qs.constructWhere {
			// The template and the pattern share their blank node variables.
			out, err := t.triples(qs.where.elems[0].(*triplesBlock).triples)
			if err != nil {
				return nil, err
			}
			if len(out.paths) > 0 {
				return nil, fmt.Errorf("parser: property paths aren't allowed in CONSTRUCT WHERE")
			}
			q.Template = out.triples
			where = &groupPattern{elems: []interface{}{&algebra.BGP{Patterns: out.triples}}}
		} else {
			t.template = true
			q.Template, err = t.templatePatterns(qs.template)
			t.template = false
			if err != nil {
				return nil, err
			}
		}
		q.Plan, err = t.selectPlan(&selectSyntax{where: where, mods: qs.mods})
	default:
		err = fmt.Errorf("parser: unsupported query form %v", qs.form)
	}
	if err != nil {
		return nil, err
	}
	for name := range t.blanks {
		q.BlankVars = append(q.BlankVars, name)
	}
	sort.Strings(q.BlankVars)
	return q, nil
}

// resolve expands a prefixed name or resolves a relative IRI against the
// base.
func (t *translator) resolve(tok *iriTok) (rdf.IRI, error) {
	if tok.prefixed {
		ns, exists := t.prefixes[tok.prefix]
		if !exists {
			return "", newParseError("query", t.in, tok.pos, fmt.Sprintf("undefined prefix '%s:'", tok.prefix))
		}
		return rdf.IRI(ns + tok.local), nil
	}
	if t.base == nil {
		return rdf.IRI(tok.iri), nil
	}
	ref, err := url.Parse(tok.iri)
	if err != nil || ref.IsAbs() {
		return rdf.IRI(tok.iri), nil
	}
	return rdf.IRI(t.base.ResolveReference(ref).String()), nil
}

// blankVar returns the variable that stands in for a blank node in a
// pattern. Labels may contain characters that aren't valid in variable
// names.
func (t *translator) blankVar(label string) *algebra.Variable {
	name := strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return '_'
		}
		return r
	}, label)
	return t.hide(algebra.Var("_bn_" + name))
}

// hide records that v stands in for a blank node.
func (t *translator) hide(v *algebra.Variable) *algebra.Variable {
	if t.blanks == nil {
		t.blanks = make(map[string]bool)
	}
	t.blanks[v.Name] = true
	return v
}

func (t *translator) freshBlank() algebra.Node {
	t.anon++
	if t.template {
		return rdf.BlankNode("b" + strconv.Itoa(t.anon))
	}
	return t.hide(algebra.Var("_anon" + strconv.Itoa(t.anon)))
}

// node translates a subject or object. A blank node property list produces
// a fresh node, and its own patterns are appended to out.
func (t *translator) node(tm term, out *patternList) (algebra.Node, error) {
	switch tm := tm.(type) {
	case *varTok:
		return algebra.Var(tm.name), nil
	case *iriTok:
		return t.resolve(tm)
	case *literalTok:
		return t.literal(tm)
	case *bnodeTok:
		if tm.label == "" {
			return t.freshBlank(), nil
		}
		if t.template {
			return rdf.BlankNode(tm.label), nil
		}
		return t.blankVar(tm.label), nil
	case *bnodePropertyList:
		subject := t.freshBlank()
		if err := t.properties(subject, tm.props, out); err != nil {
			return nil, err
		}
		return subject, nil
	}
	return nil, fmt.Errorf("parser: unexpected term %T", tm)
}

func (t *translator) literal(tm *literalTok) (rdf.Literal, error) {
	switch {
	case tm.lang != "":
		return rdf.NewLangString(tm.lexical, tm.lang), nil
	case tm.datatype != nil:
		datatype, err := t.resolve(tm.datatype)
		if err != nil {
			return rdf.Literal{}, err
		}
		return rdf.NewTyped(tm.lexical, datatype), nil
	}
	return rdf.NewString(tm.lexical), nil
}

// patternList accumulates the triple patterns and property paths of a
// triples block, in order.
type patternList struct {
	triples []algebra.TriplePattern
	paths   []algebra.Plan
}

func (t *translator) properties(subject algebra.Node, props []propertyItem, out *patternList) error {
	for _, prop := range props {
		for _, o := range prop.objects {
			object, err := t.node(o, out)
			if err != nil {
				return err
			}
			if err := t.verb(subject, prop.verb, object, out); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *translator) verb(subject algebra.Node, verb interface{}, object algebra.Node, out *patternList) error {
	switch v := verb.(type) {
	case *varTok:
		out.triples = append(out.triples, algebra.TriplePattern{
			Subject: subject, Predicate: algebra.Var(v.name), Object: object,
		})
		return nil
	case *iriTok:
		pred, err := t.resolve(v)
		if err != nil {
			return err
		}
		out.triples = append(out.triples, algebra.TriplePattern{
			Subject: subject, Predicate: pred, Object: object,
		})
		return nil
	case *pathInv:
		if tok, ok := v.path.(*iriTok); ok {
			pred, err := t.resolve(tok)
			if err != nil {
				return err
			}
			out.triples = append(out.triples, algebra.TriplePattern{
				Subject: object, Predicate: pred, Object: subject,
			})
			return nil
		}
	}
	if t.template {
		return fmt.Errorf("parser: property paths aren't allowed in CONSTRUCT templates")
	}
	path, err := t.path(verb)
	if err != nil {
		return err
	}
	out.paths = append(out.paths, &algebra.Path{Subject: subject, Path: path, Object: object})
	return nil
}

func (t *translator) path(p interface{}) (algebra.PathExpr, error) {
	switch p := p.(type) {
	case *iriTok:
		iri, err := t.resolve(p)
		if err != nil {
			return nil, err
		}
		return &algebra.PathLink{Predicate: iri}, nil
	case *pathInv:
		inner, err := t.path(p.path)
		if err != nil {
			return nil, err
		}
		return &algebra.PathInverse{Path: inner}, nil
	case *pathSeq:
		paths, err := t.paths(p.elems)
		if err != nil {
			return nil, err
		}
		res := paths[0]
		for _, next := range paths[1:] {
			res = &algebra.PathSequence{Left: res, Right: next}
		}
		return res, nil
	case *pathAlt:
		paths, err := t.paths(p.alts)
		if err != nil {
			return nil, err
		}
		res := paths[0]
		for _, next := range paths[1:] {
			res = &algebra.PathAlternative{Left: res, Right: next}
		}
		return res, nil
	case *pathMod:
		inner, err := t.path(p.path)
		if err != nil {
			return nil, err
		}
		switch p.mod {
		case '*':
			return &algebra.PathZeroOrMore{Path: inner}, nil
		case '+':
			return &algebra.PathOneOrMore{Path: inner}, nil
		}
		return &algebra.PathZeroOrOne{Path: inner}, nil
	case *pathNeg:
		neg := new(algebra.PathNegated)
		for _, item := range p.items {
			iri, err := t.resolve(item.iri)
			if err != nil {
				return nil, err
			}
			if item.inverse {
				neg.Inverse = append(neg.Inverse, iri)
			} else {
				neg.Predicates = append(neg.Predicates, iri)
			}
		}
		return neg, nil
	}
	return nil, fmt.Errorf("parser: unexpected path %T", p)
}

func (t *translator) paths(in []interface{}) ([]algebra.PathExpr, error) {
	res := make([]algebra.PathExpr, len(in))
	for i, p := range in {
		var err error
		res[i], err = t.path(p)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (t *translator) triples(triples []triplesSameSubject) (*patternList, error) {
	out := new(patternList)
	for _, ts := range triples {
		subject, err := t.node(ts.subject, out)
		if err != nil {
			return nil, err
		}
		if err := t.properties(subject, ts.props, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *translator) templatePatterns(triples []triplesSameSubject) ([]algebra.TriplePattern, error) {
	out, err := t.triples(triples)
	if err != nil {
		return nil, err
	}
	return out.triples, nil
}

// triplesBlock returns a BGP of the block's triple patterns joined with any
// property paths.
func (t *translator) triplesBlock(triples []triplesSameSubject) (algebra.Plan, error) {
	out, err := t.triples(triples)
	if err != nil {
		return nil, err
	}
	var plans []algebra.Plan
	if len(out.triples) > 0 {
		plans = append(plans, &algebra.BGP{Patterns: out.triples})
	}
	return algebra.JoinOf(append(plans, out.paths...)...), nil
}

// group translates a group graph pattern following the SPARQL algebra
// translation: elements are joined left to right, OPTIONAL and MINUS apply
// to everything before them, and the group's filters apply to the whole
// group.
func (t *translator) group(g *groupPattern) (algebra.Plan, error) {
	var plan algebra.Plan = new(algebra.JoinIdentity)
	join := func(p algebra.Plan) {
		if _, ok := plan.(*algebra.JoinIdentity); ok {
			plan = p
			return
		}
		plan = &algebra.InnerJoin{Left: plan, Right: p}
	}
	var filters []algebra.Expression
	for _, elem := range g.elems {
		switch e := elem.(type) {
		case *triplesBlock:
			p, err := t.triplesBlock(e.triples)
			if err != nil {
				return nil, err
			}
			join(p)
		case *optionalElem:
			right, err := t.group(e.group)
			if err != nil {
				return nil, err
			}
			if f, ok := right.(*algebra.Filter); ok {
				plan = &algebra.LeftOuterJoin{Left: plan, Right: f.Input, Expr: f.Expr}
			} else {
				plan = &algebra.LeftOuterJoin{Left: plan, Right: right}
			}
		case *minusElem:
			right, err := t.group(e.group)
			if err != nil {
				return nil, err
			}
			plan = &algebra.Minus{Left: plan, Right: right}
		case *graphElem:
			inner, err := t.group(e.group)
			if err != nil {
				return nil, err
			}
			name, err := t.node(e.name, nil)
			if err != nil {
				return nil, err
			}
			join(&algebra.NamedGraph{Input: inner, Graph: name})
		case *serviceElem:
			tok, ok := e.endpoint.(*iriTok)
			if !ok {
				return nil, fmt.Errorf("parser: SERVICE requires an IRI endpoint, got %v", e.endpoint)
			}
			endpoint, err := t.resolve(tok)
			if err != nil {
				return nil, err
			}
			inner, err := t.group(e.group)
			if err != nil {
				return nil, err
			}
			join(&algebra.Service{Endpoint: string(endpoint), Input: inner, Silent: e.silent})
		case *filterElem:
			expr, err := t.expr(e.expr, nil)
			if err != nil {
				return nil, err
			}
			filters = append(filters, expr)
		case *bindElem:
			expr, err := t.expr(e.expr, nil)
			if err != nil {
				return nil, err
			}
			v := algebra.Var(e.v.name)
			if algebra.Variables(plan).Contains(v.Name) {
				return nil, fmt.Errorf("parser: BIND variable %v is already in scope", v)
			}
			plan = &algebra.Extend{Input: plan, Expr: expr, Var: v}
		case *unionElem:
			branches := make([]algebra.Plan, len(e.groups))
			for i, g := range e.groups {
				var err error
				branches[i], err = t.group(g)
				if err != nil {
					return nil, err
				}
			}
			join(algebra.UnionOf(branches...))
		case *subSelectElem:
			sub, err := t.selectPlan(e.sel)
			if err != nil {
				return nil, err
			}
			join(&algebra.Subquery{Query: &algebra.Query{Form: algebra.SelectForm, Plan: sub}})
		case algebra.Plan:
			join(e)
		default:
			return nil, fmt.Errorf("parser: unexpected group element %T", elem)
		}
	}
	if len(filters) > 0 {
		cond := filters[0]
		for _, f := range filters[1:] {
			cond = &algebra.Binary{Op: algebra.OpAnd, Left: cond, Right: f}
		}
		plan = &algebra.Filter{Input: plan, Expr: cond}
	}
	return plan, nil
}

// aggregateScope collects the aggregates of a grouped SELECT. Each distinct
// aggregate is computed once and referenced through a variable.
type aggregateScope struct {
	t            *translator
	aggregations []algebra.Aggregation
	byKey        map[string]*algebra.Variable
}

// bind returns the variable holding the value of agg, adding an aggregation
// for it if needed. If v is given, agg is computed into v directly.
func (s *aggregateScope) bind(agg *algebra.AggregateExpr, v *algebra.Variable) *algebra.Variable {
	key := cmp.GetKey(agg)
	if v == nil {
		if existing, ok := s.byKey[key]; ok {
			return existing
		}
		v = algebra.Var("_agg" + strconv.Itoa(s.t.aggs))
		s.t.aggs++
	}
	if _, ok := s.byKey[key]; !ok {
		s.byKey[key] = v
	}
	s.aggregations = append(s.aggregations, algebra.Aggregation{Expr: agg, Var: v})
	return v
}

// expr translates an expression. Aggregates are only allowed with a scope,
// which replaces them with variables.
func (t *translator) expr(e interface{}, scope *aggregateScope) (algebra.Expression, error) {
	switch e := e.(type) {
	case *varTok:
		return algebra.Var(e.name), nil
	case *iriTok:
		iri, err := t.resolve(e)
		if err != nil {
			return nil, err
		}
		return &algebra.Constant{Term: iri}, nil
	case *literalTok:
		lit, err := t.literal(e)
		if err != nil {
			return nil, err
		}
		return &algebra.Constant{Term: lit}, nil
	case *unaryExpr:
		arg, err := t.expr(e.arg, scope)
		if err != nil {
			return nil, err
		}
		return &algebra.Unary{Op: e.op, Arg: arg}, nil
	case *binaryExpr:
		left, err := t.expr(e.left, scope)
		if err != nil {
			return nil, err
		}
		right, err := t.expr(e.right, scope)
		if err != nil {
			return nil, err
		}
		return &algebra.Binary{Op: e.op, Left: left, Right: right}, nil
	case *inExpr:
		return t.inExpr(e, scope)
	case *callExpr:
		if e.aggregate {
			agg, err := t.aggregate(e)
			if err != nil {
				return nil, err
			}
			if scope == nil {
				return nil, fmt.Errorf("parser: aggregate %v is only allowed in a grouped SELECT, HAVING or ORDER BY", agg)
			}
			return scope.bind(agg, nil), nil
		}
		args, err := t.exprs(e.args, scope)
		if err != nil {
			return nil, err
		}
		call := &algebra.Call{Func: e.name, Args: args}
		if e.iri != nil {
			iri, err := t.resolve(e.iri)
			if err != nil {
				return nil, err
			}
			call.Func = iri.String()
		}
		return call, nil
	}
	return nil, fmt.Errorf("parser: unexpected expression %T", e)
}

func (t *translator) exprs(in []interface{}, scope *aggregateScope) ([]algebra.Expression, error) {
	res := make([]algebra.Expression, len(in))
	for i, e := range in {
		var err error
		res[i], err = t.expr(e, scope)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// inExpr rewrites "x IN (a, b)" as "x = a || x = b", and "x NOT IN (a, b)"
// as "x != a && x != b".
func (t *translator) inExpr(e *inExpr, scope *aggregateScope) (algebra.Expression, error) {
	arg, err := t.expr(e.arg, scope)
	if err != nil {
		return nil, err
	}
	list, err := t.exprs(e.list, scope)
	if err != nil {
		return nil, err
	}
	cmpOp, joinOp, res := algebra.OpEqual, algebra.OpOr, algebra.False
	if e.not {
		cmpOp, joinOp, res = algebra.OpNotEqual, algebra.OpAnd, algebra.True
	}
	for i, item := range list {
		test := &algebra.Binary{Op: cmpOp, Left: arg, Right: item}
		if i == 0 {
			res = test
			continue
		}
		res = &algebra.Binary{Op: joinOp, Left: res, Right: test}
	}
	return res, nil
}

// aggregate translates an aggregate call itself. Its argument can't contain
// other aggregates.
func (t *translator) aggregate(e *callExpr) (*algebra.AggregateExpr, error) {
	agg := &algebra.AggregateExpr{Func: e.name, Distinct: e.distinct}
	if e.star {
		if e.name != algebra.AggCount {
			return nil, fmt.Errorf("parser: only COUNT accepts *, not %v", e.name)
		}
	} else {
		arg, err := t.expr(e.args[0], nil)
		if err != nil {
			return nil, err
		}
		agg.Arg = arg
	}
	if e.separator != nil {
		if e.name != algebra.AggGroupConcat {
			return nil, fmt.Errorf("parser: only GROUP_CONCAT accepts a SEPARATOR, not %v", e.name)
		}
		agg.Separator = *e.separator
	}
	return agg, nil
}

// containsAggregate returns true if the expression syntax e has an aggregate
// call anywhere within it.
func containsAggregate(e interface{}) bool {
	switch e := e.(type) {
	case *unaryExpr:
		return containsAggregate(e.arg)
	case *binaryExpr:
		return containsAggregate(e.left) || containsAggregate(e.right)
	case *inExpr:
		if containsAggregate(e.arg) {
			return true
		}
		for _, item := range e.list {
			if containsAggregate(item) {
				return true
			}
		}
	case *callExpr:
		if e.aggregate {
			return true
		}
		for _, arg := range e.args {
			if containsAggregate(arg) {
				return true
			}
		}
	}
	return false
}

func isGrouped(sel *selectSyntax) bool {
	if len(sel.mods.groupBy) > 0 || len(sel.mods.having) > 0 {
		return true
	}
	for _, item := range sel.items {
		if containsAggregate(item.expr) {
			return true
		}
	}
	for _, o := range sel.mods.order {
		if containsAggregate(o.expr) {
			return true
		}
	}
	return false
}

// selectPlan translates a SELECT: its pattern, then grouping, projection
// expressions, ORDER BY, projection, DISTINCT, and finally LIMIT/OFFSET.
func (t *translator) selectPlan(sel *selectSyntax) (algebra.Plan, error) {
	plan, err := t.group(sel.where)
	if err != nil {
		return nil, err
	}
	var scope *aggregateScope
	if isGrouped(sel) {
		if sel.items == nil {
			return nil, fmt.Errorf("parser: SELECT * isn't allowed with GROUP BY or aggregates")
		}
		scope = &aggregateScope{t: t, byKey: make(map[string]*algebra.Variable)}
		plan, err = t.grouping(plan, sel, scope)
	} else {
		plan, err = t.projectExprs(plan, sel.items, nil)
	}
	if err != nil {
		return nil, err
	}
	if len(sel.mods.order) > 0 {
		order := &algebra.Order{Input: plan}
		for _, o := range sel.mods.order {
			expr, err := t.expr(o.expr, scope)
			if err != nil {
				return nil, err
			}
			order.Comparators = append(order.Comparators, algebra.Comparator{Ascending: o.ascending, Expr: expr})
		}
		// Any aggregates found in ORDER BY were added to the scope after the
		// Aggregate node was built.
		if scope != nil {
			order.Input = withAggregations(plan, scope.aggregations)
		}
		plan = order
	}
	if sel.items != nil {
		project := &algebra.Project{Input: plan}
		seen := make(map[string]bool)
		for _, item := range sel.items {
			if seen[item.v.name] {
				continue
			}
			seen[item.v.name] = true
			project.Vars = append(project.Vars, algebra.Var(item.v.name))
		}
		plan = project
	}
	if sel.distinct {
		plan = &algebra.Distinct{Input: plan}
	}
	if sel.mods.limit != nil || sel.mods.offset != nil {
		plan = &algebra.Slice{Input: plan, Limit: sel.mods.limit, Offset: sel.mods.offset}
	}
	return plan, nil
}

// grouping builds the Aggregate node of a grouped SELECT followed by its
// HAVING filters and projection expressions.
func (t *translator) grouping(plan algebra.Plan, sel *selectSyntax, scope *aggregateScope) (algebra.Plan, error) {
	var groupBy []algebra.Expression
	grouped := make(map[string]bool)
	for _, gc := range sel.mods.groupBy {
		expr, err := t.expr(gc.expr, nil)
		if err != nil {
			return nil, err
		}
		if gc.as != nil {
			v := algebra.Var(gc.as.name)
			plan = &algebra.Extend{Input: plan, Expr: expr, Var: v}
			expr = v
		}
		if v, ok := expr.(*algebra.Variable); ok {
			grouped[v.Name] = true
		}
		groupBy = append(groupBy, expr)
	}
	// Aggregates computed directly into a projected variable don't need an
	// Extend.
	direct := make(map[*selectItem]bool)
	for i := range sel.items {
		item := &sel.items[i]
		call, ok := item.expr.(*callExpr)
		if !ok || !call.aggregate {
			continue
		}
		agg, err := t.aggregate(call)
		if err != nil {
			return nil, err
		}
		scope.bind(agg, algebra.Var(item.v.name))
		direct[item] = true
	}
	var having []algebra.Expression
	for _, h := range sel.mods.having {
		expr, err := t.expr(h, scope)
		if err != nil {
			return nil, err
		}
		having = append(having, expr)
	}
	var rest []algebra.Expression
	for i := range sel.items {
		item := &sel.items[i]
		if direct[item] {
			continue
		}
		if item.expr == nil {
			if !grouped[item.v.name] {
				return nil, fmt.Errorf("parser: variable ?%s must be grouped or aggregated", item.v.name)
			}
			rest = append(rest, nil)
			continue
		}
		expr, err := t.expr(item.expr, scope)
		if err != nil {
			return nil, err
		}
		rest = append(rest, expr)
	}
	plan = &algebra.Aggregate{Input: plan, GroupBy: groupBy, Aggregations: scope.aggregations}
	for _, h := range having {
		plan = &algebra.Filter{Input: plan, Expr: h}
	}
	i := 0
	for j := range sel.items {
		item := &sel.items[j]
		if direct[item] {
			continue
		}
		if expr := rest[i]; expr != nil {
			plan = &algebra.Extend{Input: plan, Expr: expr, Var: algebra.Var(item.v.name)}
		}
		i++
	}
	return plan, nil
}

// withAggregations returns plan with the Aggregate node beneath it replaced by
// one computing aggs.
func withAggregations(plan algebra.Plan, aggs []algebra.Aggregation) algebra.Plan {
	switch p := plan.(type) {
	case *algebra.Aggregate:
		if len(p.Aggregations) == len(aggs) {
			return p
		}
		return &algebra.Aggregate{Input: p.Input, GroupBy: p.GroupBy, Aggregations: aggs}
	case *algebra.Filter, *algebra.Extend:
		child := withAggregations(p.Children()[0], aggs)
		return p.WithChildren([]algebra.Plan{child})
	}
	return plan
}

// projectExprs adds an Extend for each "(expr AS ?v)" in a SELECT without
// grouping.
func (t *translator) projectExprs(plan algebra.Plan, items []selectItem, scope *aggregateScope) (algebra.Plan, error) {
	for _, item := range items {
		if item.expr == nil {
			continue
		}
		expr, err := t.expr(item.expr, scope)
		if err != nil {
			return nil, err
		}
		v := algebra.Var(item.v.name)
		if algebra.Variables(plan).Contains(v.Name) {
			return nil, fmt.Errorf("parser: SELECT expression variable %v is already in scope", v)
		}
		plan = &algebra.Extend{Input: plan, Expr: expr, Var: v}
	}
	return plan, nil
}
