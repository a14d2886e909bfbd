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
	"strings"
	"testing"
	"time"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/serializer"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ex      = "http://example.org/"
	prefix  = "PREFIX ex: <http://example.org/>\n"
	integer = `"^^<http://www.w3.org/2001/XMLSchema#integer>`
)

// tree builds the expected output of algebra.Format from lines that are
// indented with tabs.
func tree(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func Test_ParseSelect(t *testing.T) {
	q, err := Parse(prefix + "SELECT ?name WHERE { ?s a ex:Person ; ex:name ?name . }")
	require.NoError(t, err)
	assert.Equal(t, algebra.SelectForm, q.Form)
	assert.Equal(t, map[string]string{"ex": ex}, q.Prefixes)
	assert.Equal(t, tree(
		"Project ?name",
		"\tBGP ?s <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/Person> . ?s <http://example.org/name> ?name",
	), algebra.Format(q.Plan))
}

func Test_ParsePatterns(t *testing.T) {
	tests := []struct {
		name  string
		where string
		exp   string
	}{
		{"optionalFilter",
			"?s ex:p ?o OPTIONAL { ?o ex:q ?x FILTER(?x > 1) }",
			tree(
				`LeftOuterJoin FILTER(?x > "1`+integer+`)`,
				"\tBGP ?s <http://example.org/p> ?o",
				"\tBGP ?o <http://example.org/q> ?x",
			)},
		{"union",
			"{ ?s ex:p ?o } UNION { ?s ex:q ?o }",
			tree(
				"Union",
				"\tBGP ?s <http://example.org/p> ?o",
				"\tBGP ?s <http://example.org/q> ?o",
			)},
		{"minusBind",
			"?s ex:p ?o . MINUS { ?s ex:q ?o } BIND(STR(?o) AS ?str)",
			tree(
				"Extend ?str := STR(?o)",
				"\tMinus",
				"\t\tBGP ?s <http://example.org/p> ?o",
				"\t\tBGP ?s <http://example.org/q> ?o",
			)},
		{"serviceGraph",
			"SERVICE SILENT <http://e1/sparql> { ?s ex:p ?o } GRAPH ?g { ?s ex:q ?x }",
			tree(
				"InnerJoin",
				"\tService SILENT <http://e1/sparql>",
				"\t\tBGP ?s <http://example.org/p> ?o",
				"\tNamedGraph ?g",
				"\t\tBGP ?s <http://example.org/q> ?x",
			)},
		{"paths",
			"?a ex:knows+/ex:name ?n . ?a ^ex:child ?c",
			tree(
				"InnerJoin",
				"\tBGP ?c <http://example.org/child> ?a",
				"\tPath ?a (<http://example.org/knows>+/<http://example.org/name>) ?n",
			)},
		{"negatedPath",
			"?a !(ex:p|^ex:q) ?b",
			tree("Path ?a !(<http://example.org/p>|^<http://example.org/q>) ?b")},
		{"blankNodes",
			"_:b1 ex:p [ ex:q ?o ]",
			tree("BGP ?_anon1 <http://example.org/q> ?o . ?_bn_b1 <http://example.org/p> ?_anon1")},
		{"filtersCombine",
			"FILTER(?a) ?s ex:p ?a FILTER(BOUND(?s))",
			tree(
				"Filter (?a && BOUND(?s))",
				"\tBGP ?s <http://example.org/p> ?a",
			)},
		{"in",
			"?s ex:p ?o FILTER(?o IN (1, 2))",
			tree(
				`Filter ((?o = "1`+integer+`) || (?o = "2`+integer+`))`,
				"\tBGP ?s <http://example.org/p> ?o",
			)},
		{"notInEmpty",
			"?s ex:p ?o FILTER(?o NOT IN ())",
			tree(
				`Filter "true"^^<http://www.w3.org/2001/XMLSchema#boolean>`,
				"\tBGP ?s <http://example.org/p> ?o",
			)},
		{"optionalFirst",
			"OPTIONAL { ?s ex:p ?o }",
			tree(
				"LeftOuterJoin",
				"\tJoinIdentity",
				"\tBGP ?s <http://example.org/p> ?o",
			)},
		{"empty", "", tree("JoinIdentity")},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			q, err := Parse(prefix + "SELECT * WHERE { " + test.where + " }")
			require.NoError(t, err)
			assert.Equal(t, test.exp, algebra.Format(q.Plan))
		})
	}
}

func Test_ParseLiterals(t *testing.T) {
	q, err := Parse(prefix + `SELECT * { ?s ex:p 1.5e3, "a\"b", 'c'@en-GB, true, -2, """long
string"""^^ex:t }`)
	require.NoError(t, err)
	objects := []rdf.Term{
		rdf.NewTyped("1.5e3", rdf.XSDDouble),
		rdf.NewString(`a"b`),
		rdf.NewLangString("c", "en-gb"),
		rdf.NewBoolean(true),
		rdf.NewTyped("-2", rdf.XSDInteger),
		rdf.NewTyped("long\nstring", ex+"t"),
	}
	exp := new(algebra.BGP)
	for _, o := range objects {
		exp.Patterns = append(exp.Patterns, algebra.TriplePattern{
			Subject: algebra.Var("s"), Predicate: rdf.IRI(ex + "p"), Object: o,
		})
	}
	assert.True(t, algebra.Equal(exp, q.Plan), "got %v", algebra.Format(q.Plan))
}

func Test_ParseAggregates(t *testing.T) {
	q, err := Parse(prefix + `
		SELECT ?type (COUNT(*) AS ?n) (SUM(?v) * 2 AS ?double)
		WHERE { ?s a ?type ; ex:v ?v }
		GROUP BY ?type
		HAVING (COUNT(*) > 1)
		ORDER BY DESC(?n)
		LIMIT 5`)
	require.NoError(t, err)
	assert.Equal(t, tree(
		"Slice limit=5",
		"\tProject ?type ?n ?double",
		"\t\tOrder DESC(?n)",
		"\t\t\tExtend ?double := (?_agg0 * \"2"+integer+")",
		"\t\t\t\tFilter (?n > \"1"+integer+")",
		"\t\t\t\t\tAggregate GROUP BY ?type (COUNT(*) AS ?n) (SUM(?v) AS ?_agg0)",
		"\t\t\t\t\t\tBGP ?s <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> ?type . ?s <http://example.org/v> ?v",
	), algebra.Format(q.Plan))
}

func Test_ParseGroupByExpression(t *testing.T) {
	q, err := Parse(prefix + `SELECT ?len (GROUP_CONCAT(DISTINCT ?name ; SEPARATOR=", ") AS ?names)
		WHERE { ?s ex:name ?name } GROUP BY (STRLEN(?name) AS ?len)`)
	require.NoError(t, err)
	assert.Equal(t, tree(
		"Project ?len ?names",
		"\tAggregate GROUP BY ?len (GROUP_CONCAT(DISTINCT ?name ; SEPARATOR=\", \") AS ?names)",
		"\t\tExtend ?len := STRLEN(?name)",
		"\t\t\tBGP ?s <http://example.org/name> ?name",
	), algebra.Format(q.Plan))
}

func Test_ParseSubselect(t *testing.T) {
	q, err := Parse(prefix + "SELECT ?s WHERE { { SELECT ?s WHERE { ?s ex:p ?o } LIMIT 1 } }")
	require.NoError(t, err)
	assert.Equal(t, tree(
		"Project ?s",
		"\tSubquery SELECT",
		"\t\tSlice limit=1",
		"\t\t\tProject ?s",
		"\t\t\t\tBGP ?s <http://example.org/p> ?o",
	), algebra.Format(q.Plan))
}

func Test_ParseForms(t *testing.T) {
	q, err := Parse("ASK FROM <http://example.org/g> FROM NAMED <http://example.org/h> { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, algebra.AskForm, q.Form)
	assert.Equal(t, []rdf.IRI{ex + "g"}, q.Dataset.Default)
	assert.Equal(t, []rdf.IRI{ex + "h"}, q.Dataset.Named)
	assert.Equal(t, "BGP ?s ?p ?o\n", algebra.Format(q.Plan))

	q, err = Parse(prefix + "CONSTRUCT { ?s ex:label ?name . [] ex:from ?s } WHERE { ?s ex:name ?name }")
	require.NoError(t, err)
	assert.Equal(t, algebra.ConstructForm, q.Form)
	assert.Equal(t, []algebra.TriplePattern{
		{Subject: algebra.Var("s"), Predicate: rdf.IRI(ex + "label"), Object: algebra.Var("name")},
		{Subject: rdf.BlankNode("b1"), Predicate: rdf.IRI(ex + "from"), Object: algebra.Var("s")},
	}, q.Template)
	assert.Equal(t, "BGP ?s <http://example.org/name> ?name\n", algebra.Format(q.Plan))

	q, err = Parse(prefix + "CONSTRUCT WHERE { ?s ex:p [] }")
	require.NoError(t, err)
	assert.Equal(t, []algebra.TriplePattern{
		{Subject: algebra.Var("s"), Predicate: rdf.IRI(ex + "p"), Object: algebra.Var("_anon1")},
	}, q.Template)
	assert.Equal(t, "BGP ?s <http://example.org/p> ?_anon1\n", algebra.Format(q.Plan))
}

func Test_ParseBase(t *testing.T) {
	q, err := Parse("BASE <http://example.org/a/> SELECT * WHERE { <b> <../c> ?o }")
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/a/", q.Base)
	assert.Equal(t, "BGP <http://example.org/a/b> <http://example.org/c> ?o\n", algebra.Format(q.Plan))
}

func Test_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   string
	}{
		{"undefinedPrefix", "SELECT * WHERE { ?s foo:bar ?o }",
			"unable to parse query: line 1 column 21: undefined prefix 'foo:'"},
		{"undefinedPrefixLine", "SELECT *\nWHERE {\n  ?s foo:bar ?o }",
			"unable to parse query: line 3 column 6: undefined prefix 'foo:'"},
		{"starWithGroupBy", "SELECT * WHERE { ?s ?p ?o } GROUP BY ?s",
			"parser: SELECT * isn't allowed with GROUP BY or aggregates"},
		{"aggregateInFilter", "SELECT * WHERE { ?s ?p ?o FILTER(COUNT(*) > 1) }",
			"parser: aggregate COUNT(*) is only allowed in a grouped SELECT, HAVING or ORDER BY"},
		{"ungrouped", "SELECT ?s (COUNT(*) AS ?n) WHERE { ?s ?p ?o }",
			"parser: variable ?s must be grouped or aggregated"},
		{"serviceVariable", "SELECT * WHERE { SERVICE ?e { ?s ?p ?o } }",
			"parser: SERVICE requires an IRI endpoint, got &{e}"},
		{"sumStar", "SELECT (SUM(*) AS ?n) WHERE { ?s ?p ?o }",
			"parser: only COUNT accepts *, not SUM"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.query)
			assert.EqualError(t, err, test.err)
		})
	}
}

func Test_ParseSyntaxErrors(t *testing.T) {
	_, err := Parse("SELECT * WHERE { ?s ?p }")
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok, "expected a *ParseError, got %T", err)
	assert.Equal(t, "query", perr.ParseType)
	assert.Equal(t, 1, perr.Line)

	_, err = Parse("SELECT * WHERE { } garbage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparsed text: 'garbage'")
}

// Malformed input is reported as a *ParseError, and doesn't keep the parser
// running.
func Test_ParseMalformed(t *testing.T) {
	queries := []string{
		"SELECT * { FILTER( }",
		"SELECT * { FILTER(1 + ) }",
		"SELECT * { ?s ?p ?o FILTER(?o > ) }",
		"PREFIX : <http://example.org/> SELECT * { :a :b :c . FILTER( }",
		"SELECT * { FILTER }",
		"SELECT * { BIND( }",
		"SELECT * { BIND(1 AS ) }",
		"SELECT * { OPTIONAL }",
		"SELECT * { OPTIONAL { FILTER(?x && ) } }",
		"SELECT * { MINUS { ?s } }",
		"SELECT * { GRAPH ?g }",
		"SELECT * { SERVICE <http://example.org/sparql> }",
		"SELECT * { ?s ?p ( }",
		"SELECT * { { ?s ?p ?o } UNION }",
		"SELECT * { ?s ?p ?o } ORDER BY (",
		"SELECT * WHERE { ?s <http://example.org/\xff> ?o }",
		"SELECT * WHERE { ?s <http://example.org/\xffp> ?o }",
		"SELECT * WHERE { ?s <http://example.org/q> ( 1 2 ) }",
		"SELECT * WHERE { [ <http://example.org/q> ( 1 2 ) ] }",
	}
	for _, query := range queries {
		t.Run(query, func(t *testing.T) {
			errCh := make(chan error, 1)
			go func() {
				_, err := Parse(query)
				errCh <- err
			}()
			select {
			case err := <-errCh:
				require.Error(t, err)
				assert.IsType(t, &ParseError{}, err)
			case <-time.After(5 * time.Second):
				t.Fatalf("Parse(%q) didn't return", query)
			}
		})
	}
}

func Test_ParseValidAfterCut(t *testing.T) {
	for _, query := range []string{
		"SELECT * { ?s ?p ?o FILTER(?o > 1) }",
		"SELECT * { ?s ?p ?o FILTER(?o > 1) OPTIONAL { ?s ?q ?x } MINUS { ?s ?r ?y } }",
		"SELECT * { BIND(1 AS ?one) GRAPH ?g { ?s ?p ?o } }",
		"SELECT * { SERVICE SILENT <http://example.org/sparql> { ?s ?p ?o } FILTER(BOUND(?s)) }",
		"SELECT * { ?s <http://example.org/caf\u00e9> ?o . ?s <http://example.org/café> ?o }",
	} {
		_, err := Parse(query)
		assert.NoError(t, err, query)
	}
}

func Test_MustParse(t *testing.T) {
	assert.NotPanics(t, func() { MustParse("ASK {}") })
	assert.Panics(t, func() { MustParse("ASK") })
}

func Test_coordinates(t *testing.T) {
	in := "ab\ncdé\nf  \n"
	line, col := coordinates(in, 0)
	assert.Equal(t, []int{1, 1}, []int{line, col})
	line, col = coordinates(in, 4)
	assert.Equal(t, []int{2, 2}, []int{line, col})
	line, col = coordinates(in, 8)
	assert.Equal(t, []int{3, 1}, []int{line, col})
	line, col = coordinates(in, 100)
	assert.Equal(t, []int{3, 2}, []int{line, col})
}

func Test_ParseNTriples(t *testing.T) {
	doc := `<http://example.org/a> <http://example.org/p> "x"@en .
_:b1 <http://example.org/p> "1"^^<http://www.w3.org/2001/XMLSchema#integer> .
# comment
<http://example.org/a> <http://example.org/q> <http://example.org/b> .
`
	triples, err := ParseNTriples(doc)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Triple{
		{Subject: rdf.IRI(ex + "a"), Predicate: rdf.IRI(ex + "p"), Object: rdf.NewLangString("x", "en")},
		{Subject: rdf.BlankNode("b1"), Predicate: rdf.IRI(ex + "p"), Object: rdf.NewInteger(1)},
		{Subject: rdf.IRI(ex + "a"), Predicate: rdf.IRI(ex + "q"), Object: rdf.IRI(ex + "b")},
	}, triples)

	empty, err := ParseNTriples("  \n")
	assert.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseNTriples("<http://example.org/a> <http://example.org/p> <http://example.org/b> <http://example.org/g> .")
	assert.EqualError(t, err, "parser: N-Triples statement 1 has a graph name: "+
		"<http://example.org/a> <http://example.org/p> <http://example.org/b> <http://example.org/g> .")
}

func Test_ParseNQuads(t *testing.T) {
	quads, err := ParseNQuads(`<http://example.org/a> <http://example.org/p> "v" <http://example.org/g> .
<http://example.org/a> <http://example.org/p> "w" .`)
	require.NoError(t, err)
	assert.Equal(t, []rdf.Quad{
		{Triple: rdf.Triple{Subject: rdf.IRI(ex + "a"), Predicate: rdf.IRI(ex + "p"), Object: rdf.NewString("v")},
			Graph: rdf.IRI(ex + "g")},
		{Triple: rdf.Triple{Subject: rdf.IRI(ex + "a"), Predicate: rdf.IRI(ex + "p"), Object: rdf.NewString("w")}},
	}, quads)

	_, err = ParseNQuads(`<http://example.org/a> <http://example.org/p> .`)
	assert.Error(t, err)
}

// Serializing a parsed query and parsing the result gives back the same
// query.
func Test_SerializeRoundTrip(t *testing.T) {
	queries := []string{
		prefix + `SELECT ?name WHERE { ?s a ex:Person ; ex:name ?name
			OPTIONAL { ?s ex:age ?age FILTER(?age > 18) } } ORDER BY ?name LIMIT 10`,
		prefix + "SELECT * WHERE { { ?s ex:p ?o } UNION { ?s ex:q ?o } MINUS { ?s ex:r ?o } }",
		prefix + "SELECT ?s (STR(?o) AS ?str) WHERE { SERVICE <http://e1/sparql> { ?s ex:p ?o } }",
		"SELECT ?type (COUNT(*) AS ?n) WHERE { ?s a ?type } GROUP BY ?type HAVING (COUNT(*) > 1)",
		prefix + "ASK { ?a ex:knows+ ?b . ?b ex:age ?age }",
		prefix + "CONSTRUCT { ?s ex:label ?name } WHERE { GRAPH ?g { ?s ex:name ?name } } LIMIT 3",
		"SELECT DISTINCT ?s WHERE { ?s ?p ?o FILTER(?o IN (1, 2) && !BOUND(?x)) } OFFSET 2",
		prefix + "SELECT * WHERE { _:a ex:p ?b . ?b ex:q ?c FILTER(?c != 'x'@en) BIND(?c AS ?d) }",
	}
	for _, in := range queries {
		q := MustParse(in)
		text, err := serializer.SerializeQuery(q)
		require.NoError(t, err, in)
		again, err := Parse(text)
		require.NoError(t, err, text)
		assert.True(t, algebra.Equal(q.Plan, again.Plan),
			"query: %s\nserialized: %s\nbefore:\n%vafter:\n%v",
			in, text, algebra.Format(q.Plan), algebra.Format(again.Plan))
		assert.Equal(t, q.Form, again.Form)
		assert.Equal(t, q.Template, again.Template)
	}
}

func Test_ParseBlankVars(t *testing.T) {
	q := MustParse(prefix + "SELECT * WHERE { _:x ex:p [ ex:q ?o ] . ?y ex:r ?o }")
	assert.Equal(t, []string{"_anon1", "_bn_x"}, q.BlankVars)
	q = MustParse(prefix + "SELECT * WHERE { ?s ex:p ?o }")
	assert.Nil(t, q.BlankVars)
	q = MustParse(prefix + "CONSTRUCT { [] ex:p ?o } WHERE { ?s ex:p ?o }")
	assert.Nil(t, q.BlankVars)
}
