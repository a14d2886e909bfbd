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

// Package algebra defines the SPARQL query algebra: an immutable tree of plan
// nodes over graph patterns, along with expressions and property paths.
//
// Plans are compared structurally. Every node implements cmp.Key, and two
// plans are equal iff their keys are equal. Plans must not be modified after
// they're constructed; rewrites build new nodes and share unchanged subtrees.
package algebra

import (
	"strings"

	"github.com/kasei/kineo-federation/rdf"
)

// A Node is a position in a triple or quad pattern. It's either a bound
// rdf.Term or a *Variable.
type Node interface {
	String() string
	Key(*strings.Builder)
}

// A Variable is a named placeholder in a pattern or expression.
type Variable struct {
	Name string
}

// Var returns a new variable with the given name (without the leading '?').
func Var(name string) *Variable {
	return &Variable{Name: name}
}

func (*Variable) anExpression() {}

// String returns a string like "?foo".
func (v *Variable) String() string {
	return "?" + v.Name
}

// Key implements cmp.Key.
func (v *Variable) Key(b *strings.Builder) {
	b.WriteByte('?')
	b.WriteString(v.Name)
}

// IsVariable returns the variable if n is one.
func IsVariable(n Node) (*Variable, bool) {
	v, ok := n.(*Variable)
	return v, ok
}

// IsBound returns the term if n is a bound term rather than a variable.
func IsBound(n Node) (rdf.Term, bool) {
	t, ok := n.(rdf.Term)
	return t, ok
}

// TriplePattern is a triple whose positions may be variables.
type TriplePattern struct {
	Subject   Node
	Predicate Node
	Object    Node
}

// String returns a string like "?s <p> ?o".
func (t TriplePattern) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String()
}

// Key implements cmp.Key.
func (t TriplePattern) Key(b *strings.Builder) {
	t.Subject.Key(b)
	b.WriteByte(' ')
	t.Predicate.Key(b)
	b.WriteByte(' ')
	t.Object.Key(b)
}

// Nodes returns the subject, predicate, and object.
func (t TriplePattern) Nodes() []Node {
	return []Node{t.Subject, t.Predicate, t.Object}
}

// QuadPattern is a triple pattern within a named graph.
type QuadPattern struct {
	TriplePattern
	Graph Node
}

// String returns a string like "?s <p> ?o ?g".
func (q QuadPattern) String() string {
	return q.TriplePattern.String() + " " + q.Graph.String()
}

// Key implements cmp.Key.
func (q QuadPattern) Key(b *strings.Builder) {
	q.TriplePattern.Key(b)
	b.WriteByte(' ')
	q.Graph.Key(b)
}

// Nodes returns the subject, predicate, object, and graph.
func (q QuadPattern) Nodes() []Node {
	return []Node{q.Subject, q.Predicate, q.Object, q.Graph}
}
