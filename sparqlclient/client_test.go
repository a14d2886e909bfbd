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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kasei/kineo-federation/rdf"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve starts a server that responds to every request with the given content
// type and body, and records the last query it received.
func serve(t *testing.T, status int, contentType, body string) (*httptest.Server, *string) {
	var lastQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Contains(t, r.Header.Get("Accept"), ResultsJSON)
		assert.NoError(t, r.ParseForm())
		lastQuery = r.PostForm.Get("query")
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &lastQuery
}

const bindingsJSON = `{
  "head": { "vars": [ "s", "name", "age" ] },
  "results": { "bindings": [
    { "s": { "type": "uri", "value": "http://example.org/alice" },
      "name": { "type": "literal", "value": "Alice", "xml:lang": "EN" },
      "age": { "type": "literal", "value": "30", "datatype": "http://www.w3.org/2001/XMLSchema#integer" } },
    { "s": { "type": "bnode", "value": "b0" },
      "name": { "type": "literal", "value": "Bob" } }
  ] }
}`

func Test_QueryBindings(t *testing.T) {
	server, lastQuery := serve(t, http.StatusOK, ResultsJSON+"; charset=utf-8", bindingsJSON)
	client := New(Options{})
	res, err := client.Query(context.Background(), server.URL, "SELECT * WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * WHERE { ?s ?p ?o }", *lastQuery)
	assert.Equal(t, BindingsResult, res.Kind)
	assert.Equal(t, []string{"s", "name", "age"}, res.Vars)
	assert.Equal(t, []Solution{
		{
			"s":    rdf.IRI("http://example.org/alice"),
			"name": rdf.NewLangString("Alice", "en"),
			"age":  rdf.NewInteger(30),
		},
		{
			"s":    rdf.BlankNode("b0"),
			"name": rdf.NewString("Bob"),
		},
	}, res.Bindings)
}

func Test_QueryEmptyBindings(t *testing.T) {
	server, _ := serve(t, http.StatusOK, "application/json",
		`{"head":{"vars":["x"]},"results":{"bindings":[]}}`)
	res, err := New(Options{}).Query(context.Background(), server.URL, "SELECT ?x {}")
	require.NoError(t, err)
	assert.Equal(t, BindingsResult, res.Kind)
	assert.Empty(t, res.Bindings)
}

func Test_QueryTriples(t *testing.T) {
	server, _ := serve(t, http.StatusOK, NTriples,
		"<http://example.org/a> <http://example.org/p> \"x\" .\n")
	res, err := New(Options{}).Query(context.Background(), server.URL, "CONSTRUCT WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, TriplesResult, res.Kind)
	assert.Equal(t, []rdf.Triple{{
		Subject:   rdf.IRI("http://example.org/a"),
		Predicate: rdf.IRI("http://example.org/p"),
		Object:    rdf.NewString("x"),
	}}, res.Triples)
}

func Test_Ask(t *testing.T) {
	server, lastQuery := serve(t, http.StatusOK, ResultsJSON, `{"head":{},"boolean":true}`)
	client := New(Options{})
	available, err := client.Ask(context.Background(), server.URL, "ASK { [] <http://example.org/p> [] }")
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, "ASK { [] <http://example.org/p> [] }", *lastQuery)

	server, _ = serve(t, http.StatusOK, ResultsJSON, bindingsJSON)
	_, err = client.Ask(context.Background(), server.URL, "ASK {}")
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func Test_QueryErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		malformed   bool
	}{
		{name: "status", status: http.StatusBadRequest, contentType: "text/plain", body: "syntax error\n"},
		{name: "invalidJSON", status: http.StatusOK, contentType: ResultsJSON, body: `{"head":`, malformed: true},
		{name: "noResults", status: http.StatusOK, contentType: ResultsJSON, body: `{"head":{}}`, malformed: true},
		{name: "badTerm", status: http.StatusOK, contentType: ResultsJSON,
			body: `{"results":{"bindings":[{"x":{"type":"triple","value":"?"}}]}}`, malformed: true},
		{name: "contentType", status: http.StatusOK, contentType: "text/html", body: "<html/>", malformed: true},
		{name: "badNTriples", status: http.StatusOK, contentType: NTriples, body: "<a> <b>", malformed: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server, _ := serve(t, test.status, test.contentType, test.body)
			_, err := New(Options{}).Query(context.Background(), server.URL, "SELECT * {}")
			require.Error(t, err)
			assert.Equal(t, test.malformed, errors.Is(err, ErrMalformedResponse), "%v", err)

			res, err := New(Options{Silent: true}).Query(context.Background(), server.URL, "SELECT * {}")
			require.NoError(t, err)
			assert.Equal(t, BindingsResult, res.Kind)
			assert.Empty(t, res.Bindings)

			_, err = New(Options{Silent: true}).Ask(context.Background(), server.URL, "ASK {}")
			assert.Error(t, err)
		})
	}
}

func Test_StatusError(t *testing.T) {
	server, _ := serve(t, http.StatusServiceUnavailable, "text/plain", "  overloaded  ")
	_, err := New(Options{}).Query(context.Background(), server.URL, "SELECT * {}")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "overloaded", statusErr.Body)
	assert.Equal(t, server.URL, statusErr.Endpoint)
	assert.Contains(t, err.Error(), "returned HTTP 503: overloaded")
}

func Test_QueryCanceled(t *testing.T) {
	server, _ := serve(t, http.StatusOK, ResultsJSON, bindingsJSON)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Options{}).Query(ctx, server.URL, "SELECT * {}")
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
}
