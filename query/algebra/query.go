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

// Form identifies the kind of result a query produces.
type Form int

// Query forms.
const (
	SelectForm Form = iota
	AskForm
	ConstructForm
)

func (f Form) String() string {
	switch f {
	case SelectForm:
		return "SELECT"
	case AskForm:
		return "ASK"
	case ConstructForm:
		return "CONSTRUCT"
	}
	return "Form(?)"
}

// Dataset lists the graphs a query runs against. An empty Dataset means the
// service's default dataset.
type Dataset struct {
	Default []rdf.IRI
	Named   []rdf.IRI
}

// IsEmpty returns true if the dataset doesn't name any graphs.
func (d Dataset) IsEmpty() bool {
	return len(d.Default) == 0 && len(d.Named) == 0
}

// Query is a parsed SPARQL query: a plan and how to present its solutions.
type Query struct {
	Form Form
	Plan Plan
	// Only used with ConstructForm.
	Template []TriplePattern
	Dataset  Dataset
	// The sorted names of the variables that stand in for blank nodes in the
	// query's patterns. They're never part of the query's results.
	BlankVars []string
	// Base and prefix declarations are only kept for display.
	Base     string
	Prefixes map[string]string
}

// WithPlan returns a copy of q that evaluates p instead.
func (q *Query) WithPlan(p Plan) *Query {
	res := *q
	res.Plan = p
	return &res
}

// Key implements cmp.Key. Base and prefixes aren't included since they've
// been resolved already.
func (q *Query) Key(b *strings.Builder) {
	b.WriteString(q.Form.String())
	b.WriteByte('(')
	for i, t := range q.Template {
		if i > 0 {
			b.WriteString(" . ")
		}
		t.Key(b)
	}
	b.WriteByte(',')
	for _, g := range q.Dataset.Default {
		b.WriteString(" FROM ")
		g.Key(b)
	}
	for _, g := range q.Dataset.Named {
		b.WriteString(" FROM NAMED ")
		g.Key(b)
	}
	b.WriteByte(',')
	q.Plan.Key(b)
	b.WriteByte(')')
}

func (q *Query) String() string {
	return q.Form.String() + "\n" + Format(q.Plan)
}
