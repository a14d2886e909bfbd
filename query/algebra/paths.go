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

package algebra

import (
	"strings"

	"github.com/kasei/kineo-federation/rdf"
)

// A PathExpr is a SPARQL property path expression. Its String is valid SPARQL
// syntax.
type PathExpr interface {
	String() string
	Key(*strings.Builder)
	aPath()
}

// ImplementPathExpr is a list of types that implement PathExpr. This serves as
// documentation and as a compile-time check.
var ImplementPathExpr = []PathExpr{
	new(PathLink),
	new(PathInverse),
	new(PathSequence),
	new(PathAlternative),
	new(PathZeroOrMore),
	new(PathOneOrMore),
	new(PathZeroOrOne),
	new(PathNegated),
}

// PathLink matches a single edge with the given predicate.
type PathLink struct {
	Predicate rdf.IRI
}

// PathInverse matches Path traversed from object to subject (^path).
type PathInverse struct {
	Path PathExpr
}

// PathSequence matches Left followed by Right (left/right).
type PathSequence struct {
	Left, Right PathExpr
}

// PathAlternative matches either Left or Right (left|right).
type PathAlternative struct {
	Left, Right PathExpr
}

// PathZeroOrMore matches zero or more repetitions of Path (path*).
type PathZeroOrMore struct {
	Path PathExpr
}

// PathOneOrMore matches one or more repetitions of Path (path+).
type PathOneOrMore struct {
	Path PathExpr
}

// PathZeroOrOne matches zero or one occurrence of Path (path?).
type PathZeroOrOne struct {
	Path PathExpr
}

// PathNegated matches a single edge whose predicate is none of Predicates
// (!(a|b)). Inverse lists the predicates excluded in the inverse direction
// (!(^a|^b)).
type PathNegated struct {
	Predicates []rdf.IRI
	Inverse    []rdf.IRI
}

func (*PathLink) aPath()        {}
func (*PathInverse) aPath()     {}
func (*PathSequence) aPath()    {}
func (*PathAlternative) aPath() {}
func (*PathZeroOrMore) aPath()  {}
func (*PathOneOrMore) aPath()   {}
func (*PathZeroOrOne) aPath()   {}
func (*PathNegated) aPath()     {}

func (p *PathLink) String() string        { return p.Predicate.String() }
func (p *PathInverse) String() string     { return "^" + groupPath(p.Path) }
func (p *PathSequence) String() string    { return "(" + p.Left.String() + "/" + p.Right.String() + ")" }
func (p *PathAlternative) String() string { return "(" + p.Left.String() + "|" + p.Right.String() + ")" }
func (p *PathZeroOrMore) String() string  { return groupPath(p.Path) + "*" }
func (p *PathOneOrMore) String() string   { return groupPath(p.Path) + "+" }
func (p *PathZeroOrOne) String() string   { return groupPath(p.Path) + "?" }

func (p *PathNegated) String() string {
	parts := make([]string, 0, len(p.Predicates)+len(p.Inverse))
	for _, iri := range p.Predicates {
		parts = append(parts, iri.String())
	}
	for _, iri := range p.Inverse {
		parts = append(parts, "^"+iri.String())
	}
	return "!(" + strings.Join(parts, "|") + ")"
}

// groupPath wraps modifiers' operands in parentheses unless they're already
// atomic or grouped.
func groupPath(p PathExpr) string {
	switch p.(type) {
	case *PathLink, *PathSequence, *PathAlternative, *PathNegated:
		return p.String()
	}
	return "(" + p.String() + ")"
}

// The keys of paths are their SPARQL syntax, which is already canonical.

// Key implements cmp.Key.
func (p *PathLink) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathInverse) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathSequence) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathAlternative) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathZeroOrMore) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathOneOrMore) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathZeroOrOne) Key(b *strings.Builder) { b.WriteString(p.String()) }

// Key implements cmp.Key.
func (p *PathNegated) Key(b *strings.Builder) { b.WriteString(p.String()) }
