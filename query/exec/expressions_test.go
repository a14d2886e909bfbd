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

package exec

import (
	"strings"
	"testing"

	"github.com/kasei/kineo-federation/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalExpr returns the value of a SPARQL expression, or nil if evaluating it
// fails.
func evalExpr(t *testing.T, expr string) rdf.Term {
	t.Helper()
	res := mustRun(t, New(Options{}), "SELECT (("+expr+") AS ?x) WHERE {}")
	require.Equal(t, 1, res.NumRows())
	return res.Row(0)[0]
}

func Test_Expressions(t *testing.T) {
	tests := []struct {
		expr string
		// The expected value formatted with short, or "" for an error.
		exp string
	}{
		{`1 + 2`, `3`},
		{`7 - 10`, `-3`},
		{`2 * 2.5`, `5.0`},
		{`7 / 2`, `3.5`},
		{`1 / 0`, ``},
		{`1.5 / 0`, ``},
		{`-(3)`, `-3`},
		{`"a" + 1`, ``},
		{`1 = 1.0`, `true`},
		{`"abc" = "abc"`, `true`},
		{`"abc" != "abd"`, `true`},
		{`"a" < "b"`, `true`},
		{`2 >= 3`, `false`},
		{`<http://example.com/a> = <http://example.com/a>`, `true`},
		{`"a" < 1`, ``},
		{`!true`, `false`},
		{`(1 / 0) || true`, `true`},
		{`(1 / 0) && false`, `false`},
		{`(1 / 0) && true`, ``},
		{`false || false`, `false`},
		{`IF(1 > 2, "y", "n")`, `"n"`},
		{`IF(1 / 0, "y", "n")`, ``},
		{`COALESCE(?nope, 1 / 0, 3)`, `3`},
		{`COALESCE(?nope)`, ``},
		{`BOUND(?nope)`, `false`},
		{`STR(<http://example.com/a>)`, `"http://example.com/a"`},
		{`LANG("chat"@fr)`, `"fr"`},
		{`LANGMATCHES("en-US", "en")`, `true`},
		{`LANGMATCHES("", "*")`, `false`},
		{`DATATYPE(1)`, `<http://www.w3.org/2001/XMLSchema#integer>`},
		{`DATATYPE("x")`, `<http://www.w3.org/2001/XMLSchema#string>`},
		{`IRI("http://example.com/b")`, `:b`},
		{`ABS(-2)`, `2`},
		{`CEIL(1.2)`, `2.0`},
		{`FLOOR(-1.5)`, `-2.0`},
		{`ROUND(2.5)`, `3.0`},
		{`STRLEN("héllo")`, `5`},
		{`UCASE("abc")`, `"ABC"`},
		{`LCASE("ABC"@en)`, `"abc"@en`},
		{`ENCODE_FOR_URI("a b/c")`, `"a%20b%2Fc"`},
		{`CONCAT("a", "b", "c")`, `"abc"`},
		{`CONCAT("a"@en, "b"@en)`, `"ab"@en`},
		{`CONCAT("a"@en, "b")`, `"ab"`},
		{`CONTAINS("foobar", "oba")`, `true`},
		{`STRSTARTS("foobar", "foo")`, `true`},
		{`STRENDS("foobar", "foo")`, `false`},
		{`STRBEFORE("abc", "b")`, `"a"`},
		{`STRAFTER("abc", "b")`, `"c"`},
		{`STRAFTER("abc", "z")`, `""`},
		{`CONTAINS("abc"@en, "b"@fr)`, ``},
		{`SUBSTR("foobar", 4)`, `"bar"`},
		{`SUBSTR("foobar", 2, 3)`, `"oob"`},
		{`SUBSTR("foobar", 0, 2)`, `"f"`},
		{`REGEX("Alice", "^al")`, `false`},
		{`REGEX("Alice", "^al", "i")`, `true`},
		{`REGEX("a.c", ".", "q")`, `true`},
		{`REGEX("abc", "(")`, ``},
		{`REPLACE("abcd", "b", "Z")`, `"aZcd"`},
		{`REPLACE("aBc", "b", "-", "i")`, `"a-c"`},
		{`MD5("abc")`, `"900150983cd24fb0d6963f7d28e17f72"`},
		{`SHA1("abc")`, `"a9993e364706816aba3e25717850c26c9cd0d89d"`},
		{`STRLANG("chat", "fr")`, `"chat"@fr`},
		{`STRDT("5", <http://www.w3.org/2001/XMLSchema#integer>)`, `5`},
		{`SAMETERM(1, 1.0)`, `false`},
		{`ISIRI(<http://example.com/a>)`, `true`},
		{`ISLITERAL(1)`, `true`},
		{`ISBLANK(BNODE())`, `true`},
		{`ISNUMERIC("1")`, `false`},
		{`ISNUMERIC(1.5)`, `true`},
		{`YEAR("2019-03-04T05:06:07Z"^^<http://www.w3.org/2001/XMLSchema#dateTime>)`, `2019`},
		{`MONTH("2019-03-04T05:06:07Z"^^<http://www.w3.org/2001/XMLSchema#dateTime>)`, `3`},
		{`HOURS("2019-03-04T05:06:07-08:00"^^<http://www.w3.org/2001/XMLSchema#dateTime>)`, `5`},
		{`TZ("2019-03-04T05:06:07Z"^^<http://www.w3.org/2001/XMLSchema#dateTime>)`, `"Z"`},
		{`TZ("2019-03-04T05:06:07"^^<http://www.w3.org/2001/XMLSchema#dateTime>)`, `""`},
		{`TIMEZONE("2019-03-04T05:06:07-08:00"^^<http://www.w3.org/2001/XMLSchema#dateTime>)`,
			`"-PT8H"^^<http://www.w3.org/2001/XMLSchema#dayTimeDuration>`},
		{`YEAR("2019")`, ``},
		{`<http://www.w3.org/2001/XMLSchema#integer>("42")`, `42`},
		{`<http://www.w3.org/2001/XMLSchema#integer>("x")`, ``},
		{`<http://www.w3.org/2001/XMLSchema#boolean>("1")`, `true`},
		{`<http://www.w3.org/2001/XMLSchema#string>(12)`, `"12"`},
		{`<http://www.w3.org/2001/XMLSchema#decimal>("1.25")`, `1.25`},
		{`<http://example.com/fn>(1)`, ``},
		{`1 IN (1, 2)`, `true`},
		{`3 NOT IN (1, 2)`, `true`},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			v := evalExpr(t, test.expr)
			if test.exp == "" {
				assert.Nil(t, v)
				return
			}
			if assert.NotNil(t, v) {
				assert.Equal(t, test.exp, short(v))
			}
		})
	}
}

func Test_GeneratedTerms(t *testing.T) {
	u := evalExpr(t, `UUID()`)
	if assert.IsType(t, rdf.IRI(""), u) {
		assert.True(t, strings.HasPrefix(string(u.(rdf.IRI)), "urn:uuid:"))
	}
	s := evalExpr(t, `STRUUID()`)
	if assert.IsType(t, rdf.Literal{}, s) {
		assert.Len(t, s.(rdf.Literal).Lexical, 36)
	}
	r := evalExpr(t, `RAND()`)
	if assert.IsType(t, rdf.Literal{}, r) {
		v, ok := r.(rdf.Literal).Numeric()
		assert.True(t, ok)
		assert.True(t, v >= 0 && v < 1)
	}
	assert.NotNil(t, evalExpr(t, `NOW()`))

	// BNODE with the same argument gives the same blank node within an
	// expression.
	assert.Equal(t, "true", short(evalExpr(t, `SAMETERM(BNODE("x"), BNODE("x"))`)))
	assert.Equal(t, "false", short(evalExpr(t, `SAMETERM(BNODE("x"), BNODE("y"))`)))
	assert.Equal(t, "false", short(evalExpr(t, `SAMETERM(BNODE(), BNODE())`)))
}
