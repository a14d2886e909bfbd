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

package sparqlclient

import (
	"github.com/kasei/kineo-federation/rdf"
)

// ResultKind identifies which fields of a Result are set.
type ResultKind int

// Kinds of results.
const (
	BindingsResult ResultKind = iota
	BooleanResult
	TriplesResult
)

func (k ResultKind) String() string {
	switch k {
	case BindingsResult:
		return "bindings"
	case BooleanResult:
		return "boolean"
	case TriplesResult:
		return "triples"
	}
	return "unknown"
}

// Solution maps variable names (without the '?') to their values. Unbound
// variables are absent.
type Solution map[string]rdf.Term

// Result is the decoded response of a SPARQL endpoint.
type Result struct {
	Kind ResultKind
	// Set for BindingsResult: the variables in the response header, and the
	// solutions.
	Vars     []string
	Bindings []Solution
	// Set for BooleanResult.
	Boolean bool
	// Set for TriplesResult.
	Triples []rdf.Triple
}
