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

// The grammar in lang_def.go produces the types in this file. They're an
// unresolved form of the query: prefixed names aren't expanded and blank
// nodes aren't yet variables. translate.go turns them into algebra.

// term is one of *iriTok, *varTok, *bnodeTok, *literalTok or
// *bnodePropertyList.
type term interface{}

// iriTok is an IRI reference or a prefixed name.
type iriTok struct {
	// Byte offset into the input, for errors.
	pos      int
	prefixed bool
	// Set if !prefixed. May be relative.
	iri string
	// Set if prefixed.
	prefix string
	local  string
}

type varTok struct {
	name string
}

// bnodeTok is a labeled blank node like _:b1, or [] if label is empty.
type bnodeTok struct {
	label string
}

type literalTok struct {
	lexical string
	lang    string
	// nil for plain strings.
	datatype *iriTok
}

// bnodePropertyList is [ :p :o ; :q :r ] in a subject or object position.
type bnodePropertyList struct {
	props []propertyItem
}

// triplesSameSubject is a subject and its property list, like
// "?s :p ?o ; :q ?r , ?t".
type triplesSameSubject struct {
	subject term
	props   []propertyItem
}

type propertyItem struct {
	// An *iriTok, *varTok, or a path.
	verb    interface{}
	objects []term
}

// Paths.
type (
	pathAlt struct {
		alts []interface{}
	}
	pathSeq struct {
		elems []interface{}
	}
	pathInv struct {
		path interface{}
	}
	// pathMod is a path followed by '*', '+' or '?'.
	pathMod struct {
		path interface{}
		mod  byte
	}
	pathNeg struct {
		items []negItem
	}
	negItem struct {
		iri     *iriTok
		inverse bool
	}
)

// Expressions are terms or one of these.
type (
	unaryExpr struct {
		op  string
		arg interface{}
	}
	binaryExpr struct {
		op          string
		left, right interface{}
	}
	// inExpr is "arg IN (list)" or "arg NOT IN (list)".
	inExpr struct {
		not  bool
		arg  interface{}
		list []interface{}
	}
	// callExpr is a built-in call, an aggregate, or a call to an IRI
	// function such as an XSD cast.
	callExpr struct {
		name string
		// Set instead of name for IRI functions.
		iri       *iriTok
		args      []interface{}
		aggregate bool
		distinct  bool
		// COUNT(*).
		star      bool
		separator *string
	}
)

// Group graph pattern elements.
type (
	groupPattern struct {
		elems []interface{}
	}
	triplesBlock struct {
		triples []triplesSameSubject
	}
	optionalElem struct {
		group *groupPattern
	}
	minusElem struct {
		group *groupPattern
	}
	graphElem struct {
		name  term
		group *groupPattern
	}
	serviceElem struct {
		silent   bool
		endpoint term
		group    *groupPattern
	}
	filterElem struct {
		expr interface{}
	}
	bindElem struct {
		expr interface{}
		v    *varTok
	}
	unionElem struct {
		groups []*groupPattern
	}
	subSelectElem struct {
		sel *selectSyntax
	}
)

// selectItem is "?v" or "(expr AS ?v)".
type selectItem struct {
	expr interface{}
	v    *varTok
}

type groupCondition struct {
	expr interface{}
	// Set for GROUP BY (expr AS ?v).
	as *varTok
}

type orderCondition struct {
	ascending bool
	expr      interface{}
}

type solutionModifiers struct {
	groupBy []groupCondition
	having  []interface{}
	order   []orderCondition
	limit   *uint64
	offset  *uint64
}

type selectSyntax struct {
	distinct bool
	// nil means SELECT *.
	items []selectItem
	where *groupPattern
	mods  solutionModifiers
}

type datasetClause struct {
	named bool
	iri   *iriTok
}

type prologueDecl struct {
	base   bool
	prefix string
	iri    *iriTok
}

// querySyntax is a whole query: its prologue, form and body.
type querySyntax struct {
	prologue []prologueDecl
	// "SELECT", "ASK" or "CONSTRUCT".
	form    string
	sel     *selectSyntax
	dataset []datasetClause
	template []triplesSameSubject
	// CONSTRUCT WHERE uses the triples of its pattern as the template.
	constructWhere bool
	where          *groupPattern
	mods           solutionModifiers
}
