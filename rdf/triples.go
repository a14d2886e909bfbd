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

package rdf

import (
	"math"
	"strings"
)

// Triple is a ground RDF triple.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// String returns the triple as an N-Triples statement, including the
// trailing " .".
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// Quad is a triple within a graph. A nil Graph means the default graph.
type Quad struct {
	Triple
	Graph Term
}

// String returns the quad as an N-Quads statement.
func (q Quad) String() string {
	if q.Graph == nil {
		return q.Triple.String()
	}
	return q.Subject.String() + " " + q.Predicate.String() + " " + q.Object.String() +
		" " + q.Graph.String() + " ."
}

// kindOrder ranks terms for Compare. Unbound (nil) terms sort first.
func kindOrder(t Term) int {
	switch t.(type) {
	case nil:
		return 0
	case BlankNode:
		return 1
	case IRI:
		return 2
	case Literal:
		return 3
	}
	return 4
}

// Compare orders terms the way SPARQL ORDER BY does: unbound, then blank
// nodes, then IRIs, then literals. Numeric literals compare by value, other
// literals by lexical form, then language, then datatype. It returns -1, 0,
// or +1. A nil term is unbound.
func Compare(a, b Term) int {
	ka, kb := kindOrder(a), kindOrder(b)
	if ka != kb {
		return sign(ka - kb)
	}
	switch av := a.(type) {
	case nil:
		return 0
	case BlankNode:
		return strings.Compare(string(av), string(b.(BlankNode)))
	case IRI:
		return strings.Compare(string(av), string(b.(IRI)))
	case Literal:
		bv := b.(Literal)
		an, aok := av.Numeric()
		bn, bok := bv.Numeric()
		if aok && bok && !math.IsNaN(an) && !math.IsNaN(bn) {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			}
		}
		if c := strings.Compare(av.Lexical, bv.Lexical); c != 0 {
			return c
		}
		if c := strings.Compare(av.Language, bv.Language); c != 0 {
			return c
		}
		return strings.Compare(string(av.Datatype), string(bv.Datatype))
	}
	return 0
}

func sign(i int) int {
	switch {
	case i < 0:
		return -1
	case i > 0:
		return 1
	}
	return 0
}
