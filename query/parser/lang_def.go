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

var (
	// queryRoot is the parser function called by Parse. It extracts a whole
	// SELECT, ASK or CONSTRUCT query, including its prologue.
	queryRoot p.Parser
	// quadsRoot is the parser function called by ParseNTriples and
	// ParseNQuads. It extracts every statement in the document.
	quadsRoot p.Parser
)

// builtinFunctions are the names of SPARQL's built-in calls, other than
// aggregates and EXISTS.
var builtinFunctions = map[string]bool{
	"STR": true, "LANG": true, "LANGMATCHES": true, "DATATYPE": true, "BOUND": true,
	"IRI": true, "URI": true, "BNODE": true, "RAND": true, "ABS": true, "CEIL": true,
	"FLOOR": true, "ROUND": true, "CONCAT": true, "STRLEN": true, "UCASE": true,
	"LCASE": true, "ENCODE_FOR_URI": true, "CONTAINS": true, "STRSTARTS": true,
	"STRENDS": true, "STRBEFORE": true, "STRAFTER": true, "YEAR": true, "MONTH": true,
	"DAY": true, "HOURS": true, "MINUTES": true, "SECONDS": true, "TIMEZONE": true,
	"TZ": true, "NOW": true, "UUID": true, "STRUUID": true, "MD5": true, "SHA1": true,
	"SHA256": true, "SHA384": true, "SHA512": true, "COALESCE": true, "IF": true,
	"STRLANG": true, "STRDT": true, "SAMETERM": true, "ISIRI": true, "ISURI": true,
	"ISBLANK": true, "ISLITERAL": true, "ISNUMERIC": true, "REGEX": true,
	"SUBSTR": true, "REPLACE": true,
}

var aggregateFunctions = map[string]bool{
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true, "AVG": true,
	"SAMPLE": true, "GROUP_CONCAT": true,
}

func init() {
	// If you need to debug what the parser is doing, you can enable goparsify's
	// built in debug support by building with -tags debug. See the docs for
	// more details https://github.com/vektah/goparsify#debugging-parsers

	// The grammar is recursive in a few places: group graph patterns nest,
	// expressions nest, paths nest and blank node property lists nest. These
	// forward references are filled in below.
	var groupGraphPattern, expression, path, propertyListNotEmpty p.Parser
	groupRef := p.NewParser("group graph pattern", func(s *p.State, r *p.Result) { groupGraphPattern(s, r) })
	exprRef := p.NewParser("expression", func(s *p.State, r *p.Result) { expression(s, r) })
	pathRef := p.NewParser("path", func(s *p.State, r *p.Result) { path(s, r) })
	propertyListRef := p.NewParser("property list", func(s *p.State, r *p.Result) { propertyListNotEmpty(s, r) })

	// Terms
	iri := oneOf(iriRef(), prefixedName())
	rdfType := keyword("a").Map(func(n *p.Result) {
		n.Result = &iriTok{iri: rdf.RDFType}
	})
	anon := p.Seq("[", "]").Map(func(n *p.Result) {
		n.Result = &bnodeTok{}
	})
	blank := oneOf(blankLabel(), anon)
	boolean := oneOf(
		keyword("true").Map(boolLiteral("true")),
		keyword("false").Map(boolLiteral("false")))
	rdfLiteral := p.Seq(stringLiteral(), p.Maybe(oneOf(
		langTag(),
		p.Seq("^^", iri).Map(child(1))))).Map(literal)
	graphTerm := oneOf(iri, rdfLiteral, numericLiteral(true), boolean, blank)
	varOrTerm := oneOf(variable(), graphTerm)
	varOrIRI := oneOf(variable(), iri)

	// Property paths
	pathOneInPropertySet := oneOf(
		iri,
		rdfType,
		p.Seq("^", oneOf(iri, rdfType)).Map(func(n *p.Result) {
			n.Result = negItem{iri: n.Child[1].Result.(*iriTok), inverse: true}
		}))
	pathNegatedSet := oneOf(
		p.Seq("(", repeatZeroOrMore(pathOneInPropertySet, "|"), ")").Map(pathNegated),
		pathOneInPropertySet.Map(func(n *p.Result) {
			n.Result = &pathNeg{items: []negItem{asNegItem(n.Result)}}
		}))
	pathPrimary := oneOf(
		iri,
		rdfType,
		p.Seq("!", pathNegatedSet).Map(child(1)),
		p.Seq("(", pathRef, ")").Map(child(1)))
	pathElt := p.Seq(pathPrimary, p.Maybe(pathModifier())).Map(func(n *p.Result) {
		n.Result = n.Child[0].Result
		if mod := n.Child[1].Token; mod != "" {
			n.Result = &pathMod{path: n.Child[0].Result, mod: mod[0]}
		}
	})
	pathEltOrInverse := oneOf(
		p.Seq("^", pathElt).Map(func(n *p.Result) {
			n.Result = &pathInv{path: n.Child[1].Result}
		}),
		pathElt)
	pathSequence := repeatOneOrMore(pathEltOrInverse, "/").Map(func(n *p.Result) {
		if len(n.Child) == 1 {
			n.Result = n.Child[0].Result
			return
		}
		n.Result = &pathSeq{elems: results(n.Child)}
	})
	path = repeatOneOrMore(pathSequence, "|").Map(func(n *p.Result) {
		if len(n.Child) == 1 {
			n.Result = n.Child[0].Result
			return
		}
		n.Result = &pathAlt{alts: results(n.Child)}
	})

	// Triples
	blankNodePropertyList := p.Seq("[", propertyListRef, "]").Map(func(n *p.Result) {
		n.Result = &bnodePropertyList{props: n.Child[1].Result.([]propertyItem)}
	})
	object := oneOf(varOrTerm, blankNodePropertyList)
	objectList := repeatOneOrMore(object, ",")
	verb := oneOf(variable(), pathRef)
	propertyListNotEmpty = repeatOneOrMore(p.Seq(verb, objectList), ";").Map(propertyList)
	sameSubject := oneOf(
		p.Seq(varOrTerm, propertyListNotEmpty).Map(subjectTriples),
		p.Seq(blankNodePropertyList, p.Maybe(propertyListNotEmpty)).Map(subjectTriples))
	triplesList := repeatOneOrMore(sameSubject, ".").Map(func(n *p.Result) {
		triples := make([]triplesSameSubject, len(n.Child))
		for i, c := range n.Child {
			triples[i] = c.Result.(triplesSameSubject)
		}
		n.Result = triples
	})

	// Expressions
	argList := oneOf(
		p.Seq("(", ")").Map(func(n *p.Result) {
			n.Result = []interface{}{}
		}),
		p.Seq("(", repeatOneOrMore(exprRef, ","), ")").Map(func(n *p.Result) {
			n.Result = results(n.Child[1].Child)
		}))
	brackettedExpression := p.Seq("(", exprRef, ")").Map(child(1))
	builtinCall := p.Seq(functionName(builtinFunctions), argList).Map(func(n *p.Result) {
		n.Result = &callExpr{name: n.Child[0].Token, args: n.Child[1].Result.([]interface{})}
	})
	separator := p.Seq(";", keyword("SEPARATOR"), "=", stringLiteral()).Map(child(3))
	aggregate := p.Seq(functionName(aggregateFunctions), "(", p.Maybe(keyword("DISTINCT")),
		oneOf(p.Exact("*"), exprRef), p.Maybe(separator), ")").Map(aggregateCall)
	functionCall := p.Seq(iri, argList).Map(func(n *p.Result) {
		n.Result = &callExpr{iri: n.Child[0].Result.(*iriTok), args: n.Child[1].Result.([]interface{})}
	})
	iriOrFunction := p.Seq(iri, p.Maybe(argList)).Map(func(n *p.Result) {
		n.Result = n.Child[0].Result
		if args, ok := n.Child[1].Result.([]interface{}); ok {
			n.Result = &callExpr{iri: n.Child[0].Result.(*iriTok), args: args}
		}
	})
	primary := oneOf(
		brackettedExpression,
		aggregate,
		builtinCall,
		iriOrFunction,
		rdfLiteral,
		numericLiteral(false),
		boolean,
		variable())
	unary := oneOf(
		p.Seq(operator("!", "-", "+"), primary).Map(func(n *p.Result) {
			n.Result = &unaryExpr{op: n.Child[0].Token, arg: n.Child[1].Result}
		}),
		primary)
	multiplicative := p.Seq(unary, repeatZeroOrMore(p.Seq(operator("*", "/"), unary))).Map(foldBinary)
	additive := p.Seq(multiplicative, repeatZeroOrMore(p.Seq(operator("+", "-"), multiplicative))).Map(foldBinary)
	inList := p.Seq(p.Maybe(keyword("NOT")), keyword("IN"), "(", repeatZeroOrMore(exprRef, ","), ")")
	relational := p.Seq(additive, p.Maybe(oneOf(
		p.Seq(operator("!=", "<=", ">=", "=", "<", ">"), additive).Map(func(n *p.Result) {
			n.Result = relationTail{op: n.Child[0].Token, right: n.Child[1].Result}
		}),
		inList.Map(func(n *p.Result) {
			n.Result = &inExpr{not: n.Child[0].Token != "", list: results(n.Child[3].Child)}
		})))).Map(relational)
	conditionalAnd := p.Seq(relational, repeatZeroOrMore(p.Seq(operator("&&"), relational))).Map(foldBinary)
	expression = p.Seq(conditionalAnd, repeatZeroOrMore(p.Seq(operator("||"), conditionalAnd))).Map(foldBinary)
	constraint := oneOf(brackettedExpression, builtinCall, functionCall)

	// Solution modifiers
	groupCond := oneOf(
		builtinCall.Map(asGroupCondition),
		functionCall.Map(asGroupCondition),
		p.Seq("(", exprRef, p.Maybe(p.Seq(keyword("AS"), variable()).Map(child(1))), ")").Map(func(n *p.Result) {
			gc := groupCondition{expr: n.Child[1].Result}
			if v, ok := n.Child[2].Result.(*varTok); ok {
				gc.as = v
			}
			n.Result = gc
		}),
		variable().Map(asGroupCondition))
	groupClause := p.Seq(keyword("GROUP"), keyword("BY"), repeatOneOrMore(groupCond)).Map(func(n *p.Result) {
		conds := make([]groupCondition, len(n.Child[2].Child))
		for i, c := range n.Child[2].Child {
			conds[i] = c.Result.(groupCondition)
		}
		n.Result = conds
	})
	havingClause := p.Seq(keyword("HAVING"), repeatOneOrMore(constraint)).Map(func(n *p.Result) {
		n.Result = results(n.Child[1].Child)
	})
	orderCond := oneOf(
		p.Seq(oneOf(keyword("ASC"), keyword("DESC")), brackettedExpression).Map(func(n *p.Result) {
			n.Result = orderCondition{ascending: n.Child[0].Token == "ASC", expr: n.Child[1].Result}
		}),
		constraint.Map(ascending),
		variable().Map(ascending))
	orderClause := p.Seq(keyword("ORDER"), keyword("BY"), repeatOneOrMore(orderCond)).Map(func(n *p.Result) {
		conds := make([]orderCondition, len(n.Child[2].Child))
		for i, c := range n.Child[2].Child {
			conds[i] = c.Result.(orderCondition)
		}
		n.Result = conds
	})
	limit := p.Seq(keyword("LIMIT"), uint64Literal()).Map(child(1))
	offset := p.Seq(keyword("OFFSET"), uint64Literal()).Map(child(1))
	limitOffset := oneOf(
		p.Seq(limit, p.Maybe(offset)).Map(limitOffset),
		p.Seq(offset, p.Maybe(limit)).Map(offsetLimit))
	solutionModifier := p.Seq(p.Maybe(groupClause), p.Maybe(havingClause),
		p.Maybe(orderClause), p.Maybe(limitOffset)).Map(solutionModifier)

	// Graph patterns
	whereClause := p.Seq(p.Maybe(keyword("WHERE")), groupRef).Map(child(1))
	projection := oneOf(
		variable().Map(func(n *p.Result) {
			n.Result = selectItem{v: n.Result.(*varTok)}
		}),
		p.Seq("(", exprRef, keyword("AS"), variable(), ")").Map(func(n *p.Result) {
			n.Result = selectItem{expr: n.Child[1].Result, v: n.Child[3].Result.(*varTok)}
		}))
	selectClause := p.Seq(keyword("SELECT"), p.Maybe(oneOf(keyword("DISTINCT"), keyword("REDUCED"))),
		oneOf(p.Exact("*"), repeatOneOrMore(projection)))
	subSelect := p.Seq(selectClause, whereClause, solutionModifier).Map(func(n *p.Result) {
		n.Result = &subSelectElem{sel: selectOf(&n.Child[0], n.Child[1].Result, n.Child[2].Result)}
	})
	graphPatternNotTriples := oneOf(
		p.Seq(keyword("OPTIONAL"), p.Cut(), groupRef).Map(func(n *p.Result) {
			n.Result = &optionalElem{group: n.Child[2].Result.(*groupPattern)}
		}),
		p.Seq(keyword("MINUS"), p.Cut(), groupRef).Map(func(n *p.Result) {
			n.Result = &minusElem{group: n.Child[2].Result.(*groupPattern)}
		}),
		p.Seq(keyword("GRAPH"), p.Cut(), varOrIRI, groupRef).Map(func(n *p.Result) {
			n.Result = &graphElem{name: n.Child[2].Result, group: n.Child[3].Result.(*groupPattern)}
		}),
		p.Seq(keyword("SERVICE"), p.Cut(), p.Maybe(keyword("SILENT")), varOrIRI, groupRef).Map(func(n *p.Result) {
			n.Result = &serviceElem{
				silent:   n.Child[2].Token != "",
				endpoint: n.Child[3].Result,
				group:    n.Child[4].Result.(*groupPattern),
			}
		}),
		p.Seq(keyword("FILTER"), p.Cut(), constraint).Map(func(n *p.Result) {
			n.Result = &filterElem{expr: n.Child[2].Result}
		}),
		p.Seq(keyword("BIND"), p.Cut(), "(", exprRef, keyword("AS"), variable(), ")").Map(func(n *p.Result) {
			n.Result = &bindElem{expr: n.Child[3].Result, v: n.Child[5].Result.(*varTok)}
		}),
		repeatOneOrMore(groupRef, keyword("UNION")).Map(func(n *p.Result) {
			groups := make([]*groupPattern, len(n.Child))
			for i, c := range n.Child {
				groups[i] = c.Result.(*groupPattern)
			}
			n.Result = &unionElem{groups: groups}
		}))
	triplesBlockElem := triplesList.Map(func(n *p.Result) {
		n.Result = &triplesBlock{triples: n.Result.([]triplesSameSubject)}
	})
	groupElement := oneOf(subSelect, graphPatternNotTriples, triplesBlockElem, p.Exact("."))
	groupGraphPattern = p.Seq("{", repeatZeroOrMore(groupElement), "}").Map(func(n *p.Result) {
		g := &groupPattern{}
		for _, c := range n.Child[1].Child {
			if c.Result != nil {
				g.elems = append(g.elems, c.Result)
			}
		}
		n.Result = g
	})

	// Queries
	prologue := repeatZeroOrMore(oneOf(
		p.Seq(keyword("BASE"), iriRef()).Map(func(n *p.Result) {
			n.Result = prologueDecl{base: true, iri: n.Child[1].Result.(*iriTok)}
		}),
		p.Seq(keyword("PREFIX"), prefixedName(), iriRef()).Map(prefixDecl)))
	datasetClauses := repeatZeroOrMore(p.Seq(keyword("FROM"), p.Maybe(keyword("NAMED")), iri).Map(func(n *p.Result) {
		n.Result = datasetClause{named: n.Child[1].Token != "", iri: n.Child[2].Result.(*iriTok)}
	}))
	selectQuery := p.Seq(selectClause, datasetClauses, whereClause, solutionModifier).Map(func(n *p.Result) {
		n.Result = &querySyntax{
			form:    "SELECT",
			sel:     selectOf(&n.Child[0], n.Child[2].Result, n.Child[3].Result),
			dataset: datasets(n.Child[1].Child),
		}
	})
	constructTemplate := p.Seq("{", p.Maybe(triplesList), "}").Map(func(n *p.Result) {
		triples, _ := n.Child[1].Result.([]triplesSameSubject)
		n.Result = triples
	})
	constructQuery := p.Seq(keyword("CONSTRUCT"), oneOf(
		p.Seq(constructTemplate, datasetClauses, whereClause, solutionModifier).Map(func(n *p.Result) {
			n.Result = &querySyntax{
				form:     "CONSTRUCT",
				template: n.Child[0].Result.([]triplesSameSubject),
				dataset:  datasets(n.Child[1].Child),
				where:    n.Child[2].Result.(*groupPattern),
				mods:     n.Child[3].Result.(solutionModifiers),
			}
		}),
		p.Seq(datasetClauses, keyword("WHERE"), constructTemplate, solutionModifier).Map(func(n *p.Result) {
			triples := n.Child[2].Result.([]triplesSameSubject)
			n.Result = &querySyntax{
				form:           "CONSTRUCT",
				dataset:        datasets(n.Child[0].Child),
				constructWhere: true,
				where:          &groupPattern{elems: []interface{}{&triplesBlock{triples: triples}}},
				mods:           n.Child[3].Result.(solutionModifiers),
			}
		}))).Map(child(1))
	askQuery := p.Seq(keyword("ASK"), datasetClauses, whereClause, solutionModifier).Map(func(n *p.Result) {
		n.Result = &querySyntax{
			form:    "ASK",
			dataset: datasets(n.Child[1].Child),
			where:   n.Child[2].Result.(*groupPattern),
			mods:    n.Child[3].Result.(solutionModifiers),
		}
	})
	queryRoot = p.Seq(prologue, oneOf(selectQuery, constructQuery, askQuery)).Map(func(n *p.Result) {
		q := n.Child[1].Result.(*querySyntax)
		for _, c := range n.Child[0].Child {
			q.prologue = append(q.prologue, c.Result.(prologueDecl))
		}
		n.Result = q
	})

	// N-Triples and N-Quads
	ntLiteral := p.Seq(stringLiteral(), p.Maybe(oneOf(
		langTag(),
		p.Seq("^^", iriRef()).Map(child(1))))).Map(literal)
	ntSubject := oneOf(iriRef(), blankLabel())
	ntObject := oneOf(iriRef(), blankLabel(), ntLiteral)
	statement := p.Seq(ntSubject, iriRef(), ntObject, p.Maybe(ntSubject), ".").Map(statement)
	quadsRoot = repeatZeroOrMore(statement)
}
