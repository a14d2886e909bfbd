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

// Package rdf defines RDF terms and triples.
package rdf

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kasei/kineo-federation/util/cmp"
)

// Common datatype and vocabulary IRIs.
const (
	XSD           = "http://www.w3.org/2001/XMLSchema#"
	XSDString     = XSD + "string"
	XSDInteger    = XSD + "integer"
	XSDDecimal    = XSD + "decimal"
	XSDDouble     = XSD + "double"
	XSDFloat      = XSD + "float"
	XSDBoolean    = XSD + "boolean"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
	RDFType       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
)

// Term is an RDF term: an IRI, a Literal, or a BlankNode.
type Term interface {
	// String returns the term in N-Triples syntax. This is also valid SPARQL.
	String() string
	cmp.Key
	aTerm()
}

// ImplementTerm is a list of types that implement Term. This serves as
// documentation and as a compile-time check.
var ImplementTerm = []Term{
	IRI(""),
	Literal{},
	BlankNode(""),
}

// IRI is an absolute IRI.
type IRI string

// Literal is an RDF literal. Plain literals have a Datatype of XSDString;
// language-tagged literals have a Datatype of RDFLangString.
type Literal struct {
	Lexical  string
	Language string
	Datatype IRI
}

// BlankNode is a blank node identified by a document-scoped label.
type BlankNode string

func (IRI) aTerm()       {}
func (Literal) aTerm()   {}
func (BlankNode) aTerm() {}

// NewString returns a simple string literal.
func NewString(s string) Literal {
	return Literal{Lexical: s, Datatype: XSDString}
}

// NewLangString returns a language-tagged literal. Language tags are
// compared case-insensitively, so they're stored in lower case.
func NewLangString(s, lang string) Literal {
	return Literal{Lexical: s, Language: strings.ToLower(lang), Datatype: RDFLangString}
}

// NewTyped returns a literal with the given datatype.
func NewTyped(lexical string, datatype IRI) Literal {
	if datatype == "" {
		datatype = XSDString
	}
	return Literal{Lexical: lexical, Datatype: datatype}
}

// NewInteger returns an xsd:integer literal.
func NewInteger(v int64) Literal {
	return Literal{Lexical: strconv.FormatInt(v, 10), Datatype: XSDInteger}
}

// NewDouble returns an xsd:double literal.
func NewDouble(v float64) Literal {
	return Literal{Lexical: strconv.FormatFloat(v, 'E', -1, 64), Datatype: XSDDouble}
}

// NewDecimal returns an xsd:decimal literal.
func NewDecimal(v float64) Literal {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return Literal{Lexical: s, Datatype: XSDDecimal}
}

// NewBoolean returns an xsd:boolean literal.
func NewBoolean(v bool) Literal {
	return Literal{Lexical: strconv.FormatBool(v), Datatype: XSDBoolean}
}

// String returns <iri>.
func (i IRI) String() string {
	return "<" + escapeIRI(string(i)) + ">"
}

// Key implements cmp.Key.
func (i IRI) Key(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(string(i))
	b.WriteByte('>')
}

// String returns "lexical", "lexical"@lang, or "lexical"^^<datatype>.
func (l Literal) String() string {
	var b strings.Builder
	b.WriteString(Quote(l.Lexical))
	switch {
	case l.Language != "":
		b.WriteByte('@')
		b.WriteString(l.Language)
	case l.Datatype != "" && l.Datatype != XSDString:
		b.WriteString("^^")
		b.WriteString(l.Datatype.String())
	}
	return b.String()
}

// Key implements cmp.Key.
func (l Literal) Key(b *strings.Builder) {
	b.WriteString(l.String())
}

// String returns _:label.
func (n BlankNode) String() string {
	return "_:" + string(n)
}

// Key implements cmp.Key.
func (n BlankNode) Key(b *strings.Builder) {
	b.WriteString("_:")
	b.WriteString(string(n))
}

// IsNumeric returns true if the literal has one of the XSD numeric
// datatypes.
func (l Literal) IsNumeric() bool {
	switch l.Datatype {
	case XSDInteger, XSDDecimal, XSDDouble, XSDFloat,
		XSD + "int", XSD + "long", XSD + "short", XSD + "byte",
		XSD + "nonNegativeInteger", XSD + "positiveInteger",
		XSD + "nonPositiveInteger", XSD + "negativeInteger",
		XSD + "unsignedInt", XSD + "unsignedLong":
		return true
	}
	return false
}

// IsInteger returns true if the literal's datatype is derived from
// xsd:integer.
func (l Literal) IsInteger() bool {
	return l.IsNumeric() && l.Datatype != XSDDecimal && l.Datatype != XSDDouble && l.Datatype != XSDFloat
}

// Numeric returns the value of a numeric literal. ok is false if the literal
// isn't numeric or its lexical form is invalid.
func (l Literal) Numeric() (v float64, ok bool) {
	if !l.IsNumeric() {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(l.Lexical), 64)
	if err != nil {
		switch l.Lexical {
		case "INF":
			return math.Inf(1), true
		case "-INF":
			return math.Inf(-1), true
		case "NaN":
			return math.NaN(), true
		}
		return 0, false
	}
	return v, true
}

// EffectiveBooleanValue returns the SPARQL effective boolean value of a term.
// It returns an error for IRIs, blank nodes, and literals that have no
// boolean value.
func EffectiveBooleanValue(t Term) (bool, error) {
	l, ok := t.(Literal)
	if !ok {
		return false, fmt.Errorf("no effective boolean value for %v", t)
	}
	switch {
	case l.Datatype == XSDBoolean:
		switch l.Lexical {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, nil
	case l.IsNumeric():
		v, ok := l.Numeric()
		if !ok {
			return false, nil
		}
		return v != 0 && !math.IsNaN(v), nil
	case l.Datatype == XSDString || l.Datatype == RDFLangString:
		return l.Lexical != "", nil
	}
	return false, fmt.Errorf("no effective boolean value for %v", t)
}

// Quote returns s as a double-quoted N-Triples string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func escapeIRI(s string) string {
	if !strings.ContainsAny(s, "<>\"{}|^`\\ ") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune("<>\"{}|^`\\ ", r) {
			fmt.Fprintf(&b, "\\u%04X", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
