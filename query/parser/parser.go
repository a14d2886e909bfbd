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

// Package parser parses SPARQL 1.1 queries into algebra, and N-Triples and
// N-Quads documents into RDF statements.
//
// The grammar covers SELECT, ASK and CONSTRUCT queries with the full set of
// graph patterns (OPTIONAL, MINUS, UNION, GRAPH, SERVICE, FILTER, BIND and
// sub-selects), property paths, expressions, aggregates and solution
// modifiers. DESCRIBE, VALUES, EXISTS and updates aren't supported.
package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/sirupsen/logrus"
	"github.com/vektah/goparsify"
)

// MustParse parses a SPARQL query and panics if an error occurs. It simplifies
// variable initialization. This is primarily meant for writing unit tests.
func MustParse(in string) *algebra.Query {
	query, err := Parse(in)
	if err != nil {
		panic(fmt.Sprintf("unable to parse query: '%s': %v", strings.Replace(in, "\n", "\\n", -1), err))
	}
	return query
}

// Parse parses a SPARQL query and translates it to algebra. Prefixed names
// are expanded and relative IRIs are resolved against the query's BASE.
// Blank nodes in patterns become variables that can't be projected by
// SELECT *.
func Parse(in string) (*algebra.Query, error) {
	p := &parser{in: in}
	result, err := p.parse("query", queryRoot)
	if err != nil {
		return nil, err
	}
	t := newTranslator(in)
	return t.query(result.Result.(*querySyntax))
}

// ParseNTriples parses an N-Triples document.
func ParseNTriples(in string) ([]rdf.Triple, error) {
	quads, err := ParseNQuads(in)
	if err != nil {
		return nil, err
	}
	triples := make([]rdf.Triple, len(quads))
	for i, q := range quads {
		if q.Graph != nil {
			return nil, fmt.Errorf("parser: N-Triples statement %d has a graph name: %v", i+1, q)
		}
		triples[i] = q.Triple
	}
	return triples, nil
}

// ParseNQuads parses an N-Quads document. Statements without a graph name
// are in the default graph.
func ParseNQuads(in string) ([]rdf.Quad, error) {
	p := &parser{in: in}
	result, err := p.parse("statements", quadsRoot)
	if err != nil {
		return nil, err
	}
	quads := make([]rdf.Quad, len(result.Child))
	for i, c := range result.Child {
		quads[i] = c.Result.(rdf.Quad)
	}
	return quads, nil
}

type parser struct {
	in string
}

// parse runs the root parser over the whole input. If it's unable to fully
// parse the input a ParseError will be returned that includes the position
// of where it parsed to, and what the problem is.
func (p *parser) parse(typ string, root goparsify.Parser) (*goparsify.Result, error) {
	state := goparsify.NewState(p.in)
	state.WS = sparqlWS
	result := &goparsify.Result{}
	root(state, result)
	if state.Errored() {
		exp := strings.TrimPrefix(fmt.Sprintf("%q", expectedText(&state.Error)), `"`)
		exp = strings.TrimSuffix(exp, `"`)
		return nil, newParseError(typ, p.in, state.Error.Pos(), "expected "+exp)
	}
	// consume tail whitespace and check for unparsed text
	state.WS(state)
	if unparsed := state.Get(); unparsed != "" {
		return nil, newParseError(typ, p.in, state.Pos,
			fmt.Sprintf("unparsed text: '%s'", strings.TrimRightFunc(unparsed, unicode.IsSpace)))
	}
	return result, nil
}

// ParseError captures more detailed information about a parsing error, and
// where it occurred.
type ParseError struct {
	// query or statements.
	ParseType string
	// The input string to the parser which resulted in this error.
	Input string
	// Offset is the byte offset into 'Input' at which the error occurred.
	Offset int
	// Line is the line number in 'Input' at which the error occurred.
	Line int
	// Column is the column (in runes) into the indicated Line that the error
	// occurred. Line & Column represent the same point in 'Input' as 'Offset'.
	Column int
	// The specific parser error that occurred.
	Details string
}

func newParseError(typ, input string, offset int, details string) *ParseError {
	line, col := coordinates(input, offset)
	return &ParseError{
		ParseType: typ,
		Input:     input,
		Offset:    offset,
		Line:      line,
		Column:    col,
		Details:   details,
	}
}

func (p *ParseError) Error() string {
	return fmt.Sprintf("unable to parse %s: line %d column %d: %s",
		p.ParseType, p.Line, p.Column, p.Details)
}

// coordinates returns the line & column of the supplied offset in the string
// 'input'. Offset is in bytes, the returned column value is in runes.
func coordinates(input string, atOffset int) (line, col int) {
	// Trailing whitespace isn't an expected place for an error.
	input = strings.TrimRightFunc(input, unicode.IsSpace)
	atOffset = min(atOffset, len(input))

	current := 0
	line = 1
	for _, l := range strings.Split(input, "\n") {
		if current+len(l) >= atOffset {
			col = utf8.RuneCountInString(l[:atOffset-current]) + 1
			return line, col
		}
		line++
		current += len(l) + 1
	}
	panic(fmt.Sprintf("shouldn't get here. Input was '%s' atOffset: %d", input, atOffset))
}

// expectedText extracts from the supplied goparsify Error the expected text
// i.e. the error from an unmatched parser. This relies on the format of the
// error message generated by goparsify.
func expectedText(e *goparsify.Error) string {
	msg := e.Error()
	expectedIdx := strings.Index(msg, "expected")
	if expectedIdx == -1 {
		logrus.WithField("err", msg).
			Warn("Got goparsify error with missing 'expected' string")
		return msg
	}
	return msg[expectedIdx+len("expected")+1:]
}
