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

package sparqlendpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kasei/kineo-federation/query"
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/sparqlclient"
)

// jsonTerm is a single RDF term in the SPARQL 1.1 Query Results JSON format.
type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Language string `json:"xml:lang,omitempty"`
}

type bindingsDoc struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
}

type booleanDoc struct {
	Head    struct{} `json:"head"`
	Boolean bool     `json:"boolean"`
}

func encodeTerm(t rdf.Term) jsonTerm {
	switch t := t.(type) {
	case rdf.IRI:
		return jsonTerm{Type: "uri", Value: string(t)}
	case rdf.BlankNode:
		return jsonTerm{Type: "bnode", Value: string(t)}
	case rdf.Literal:
		res := jsonTerm{Type: "literal", Value: t.Lexical}
		switch {
		case t.Language != "":
			res.Language = t.Language
		case t.Datatype != "" && t.Datatype != rdf.XSDString:
			res.Datatype = string(t.Datatype)
		}
		return res
	}
	panic(fmt.Sprintf("unexpected RDF term type %T", t))
}

// encodeSolutions converts SELECT results to a bindings document. Unbound
// variables are left out of each binding.
func encodeSolutions(chunk query.ResultChunk) *bindingsDoc {
	doc := new(bindingsDoc)
	doc.Head.Vars = make([]string, len(chunk.Columns))
	for i, c := range chunk.Columns {
		doc.Head.Vars[i] = c.Name
	}
	doc.Results.Bindings = make([]map[string]jsonTerm, chunk.NumRows())
	for r := range doc.Results.Bindings {
		binding := make(map[string]jsonTerm)
		for name, v := range chunk.Solution(r) {
			binding[name] = encodeTerm(v)
		}
		doc.Results.Bindings[r] = binding
	}
	return doc
}

// writeResult writes res as SPARQL JSON, or as N-Triples for CONSTRUCT
// queries.
func writeResult(w http.ResponseWriter, res *query.Result) error {
	switch res.Form {
	case algebra.SelectForm:
		w.Header().Set("Content-Type", sparqlclient.ResultsJSON)
		return json.NewEncoder(w).Encode(encodeSolutions(res.Solutions))
	case algebra.AskForm:
		w.Header().Set("Content-Type", sparqlclient.ResultsJSON)
		return json.NewEncoder(w).Encode(&booleanDoc{Boolean: res.Boolean})
	case algebra.ConstructForm:
		w.Header().Set("Content-Type", sparqlclient.NTriples)
		buf := bufio.NewWriter(w)
		for _, t := range res.Triples {
			buf.WriteString(t.String())
			buf.WriteByte('\n')
		}
		return buf.Flush()
	}
	return fmt.Errorf("unsupported query form %v", res.Form)
}
