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

package exec

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/sparqlclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e1 = "http://e1/sparql"
	e2 = "http://e2/sparql"
)

// newFederation returns a client where e1 holds the :knows triples and e2
// holds the :name triples.
func newFederation(t *testing.T) *fakeClient {
	return &fakeClient{
		stores: map[string]Local{
			e1: newFakeLocal(t, `
<http://example.com/alice> <http://example.com/knows> <http://example.com/bob> .
<http://example.com/bob> <http://example.com/knows> <http://example.com/carol> .
`),
			e2: newFakeLocal(t, `
<http://example.com/alice> <http://example.com/name> "Alice" .
<http://example.com/bob> <http://example.com/name> "Bob" .
<http://example.com/carol> <http://example.com/name> "Carol" .
`),
		},
	}
}

func serviceOf(endpoint string, silent bool, patterns ...algebra.TriplePattern) *algebra.Service {
	return &algebra.Service{
		Endpoint: endpoint,
		Input:    &algebra.BGP{Patterns: patterns},
		Silent:   silent,
	}
}

func pattern(s, p, o string) algebra.TriplePattern {
	node := func(n string) algebra.Node {
		if n[0] == '?' {
			return algebra.Var(n[1:])
		}
		return rdf.IRI(ex + n)
	}
	return algebra.TriplePattern{Subject: node(s), Predicate: node(p), Object: node(o)}
}

func Test_FederatedJoin(t *testing.T) {
	client := newFederation(t)
	e := New(Options{Client: client})
	res := mustRun(t, e, `SELECT ?a ?n WHERE {
		SERVICE <http://e1/sparql> { ?a :knows ?x }
		SERVICE <http://e2/sparql> { ?x :name ?n }
	}`)
	assert.ElementsMatch(t, []string{
		`?a=:alice ?n="Bob"`,
		`?a=:bob ?n="Carol"`,
	}, solutions(res))
	assert.ElementsMatch(t, []string{e1, e2}, client.requests)
}

func Test_BlankNodesAreScopedToResponse(t *testing.T) {
	alice := rdf.IRI(ex + "alice")
	bob := rdf.IRI(ex + "bob")
	client := &fakeClient{results: map[string]*sparqlclient.Result{
		e1: {
			Kind: sparqlclient.BindingsResult,
			Vars: []string{"a", "x"},
			Bindings: []sparqlclient.Solution{
				{"a": alice, "x": rdf.BlankNode("b0")},
				{"a": bob, "x": rdf.BlankNode("b0")},
			},
		},
		e2: {
			Kind: sparqlclient.BindingsResult,
			Vars: []string{"x", "n"},
			Bindings: []sparqlclient.Solution{
				{"x": rdf.BlankNode("b0"), "n": rdf.NewString("Unrelated")},
			},
		},
	}}
	left := serviceOf(e1, false, pattern("?a", "knows", "?x"))
	right := serviceOf(e2, false, pattern("?x", "name", "?n"))

	d := NewDispatcher(client, DispatcherOptions{})
	chunk, err := d.Dispatch(context.Background(), left)
	require.NoError(t, err)
	require.Equal(t, 2, chunk.NumRows())
	x := chunk.Columns.IndexOf("x")
	first, second := chunk.Row(0)[x], chunk.Row(1)[x]
	assert.IsType(t, rdf.BlankNode(""), first)
	assert.NotEqual(t, rdf.BlankNode("b0"), first)
	assert.Equal(t, first, second, "equal labels within one response name the same node")

	again, err := d.Dispatch(context.Background(), left)
	require.NoError(t, err)
	assert.NotEqual(t, first, again.Row(0)[x], "each response has its own labels")

	e := New(Options{Client: client})
	res, err := e.Collect(context.Background(), &algebra.InnerJoin{Left: left, Right: right})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumRows())
}

func Test_ServiceErrors(t *testing.T) {
	malformed := fmt.Errorf("bad JSON: %w", sparqlclient.ErrMalformedResponse)
	tests := []struct {
		name    string
		err     error
		result  *sparqlclient.Result
		svc     *algebra.Service
		expKind ErrorKind
	}{
		{
			name:    "transport",
			err:     errors.New("connection refused"),
			svc:     serviceOf(e1, false, pattern("?s", "knows", "?o")),
			expKind: Transport,
		},
		{
			name:    "malformed",
			err:     malformed,
			svc:     serviceOf(e1, false, pattern("?s", "knows", "?o")),
			expKind: UnexpectedResult,
		},
		{
			name:    "boolean",
			result:  &sparqlclient.Result{Kind: sparqlclient.BooleanResult, Boolean: true},
			svc:     serviceOf(e1, false, pattern("?s", "knows", "?o")),
			expKind: UnexpectedResult,
		},
		{
			name: "serialization",
			svc: serviceOf(e1, true, algebra.TriplePattern{
				Subject:   algebra.Var("s"),
				Predicate: rdf.IRI("http://example.com/bad iri"),
				Object:    algebra.Var("o"),
			}),
			expKind: Serialization,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newFederation(t)
			client.errs = map[string]error{e1: test.err}
			client.results = map[string]*sparqlclient.Result{e1: test.result}
			d := NewDispatcher(client, DispatcherOptions{})
			_, err := d.Dispatch(context.Background(), test.svc)
			var evalErr *EvaluationError
			require.True(t, errors.As(err, &evalErr), "error: %v", err)
			assert.Equal(t, test.expKind, evalErr.Kind)
			assert.Equal(t, e1, evalErr.Endpoint)
			if test.err != nil {
				assert.True(t, errors.Is(err, test.err))
			}
			if test.expKind == Serialization {
				assert.Equal(t, 0, client.requestCount())
				return
			}

			// The same failure in a silent service produces no rows.
			silent := *test.svc
			silent.Silent = true
			chunk, err := d.Dispatch(context.Background(), &silent)
			assert.NoError(t, err)
			assert.Equal(t, 0, chunk.NumRows())
			assert.Equal(t, "?o ?s", chunk.Columns.String())
		})
	}
}

func Test_EvaluationErrorString(t *testing.T) {
	err := &EvaluationError{Kind: Transport, Endpoint: e1, Cause: errors.New("timeout")}
	assert.EqualError(t, err, "Transport error evaluating service http://e1/sparql: timeout")
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}

func Test_SilentServiceInQuery(t *testing.T) {
	client := newFederation(t)
	client.errs = map[string]error{e2: errors.New("down")}
	e := New(Options{Client: client})
	res := mustRun(t, e, `SELECT ?a ?n WHERE {
		SERVICE <http://e1/sparql> { ?a :knows ?x }
		OPTIONAL { SERVICE SILENT <http://e2/sparql> { ?x :name ?n } }
	}`)
	assert.ElementsMatch(t, []string{`?a=:alice`, `?a=:bob`}, solutions(res))

	_, err := run(t, e, `SELECT ?a ?n WHERE {
		SERVICE <http://e1/sparql> { ?a :knows ?x }
		SERVICE <http://e2/sparql> { ?x :name ?n }
	}`)
	var evalErr *EvaluationError
	if assert.True(t, errors.As(err, &evalErr)) {
		assert.Equal(t, Transport, evalErr.Kind)
		assert.Equal(t, e2, evalErr.Endpoint)
	}
}

func Test_IdenticalServicesShareRequest(t *testing.T) {
	client := newFederation(t)
	e := New(Options{Client: client})
	res := mustRun(t, e, `SELECT ?n WHERE {
		{ SERVICE <http://e2/sparql> { ?p :name ?n } }
		UNION
		{ SERVICE <http://e2/sparql> { ?p :name ?n } }
	}`)
	assert.Len(t, solutions(res), 6)
	assert.Equal(t, 1, client.requestCount())

	// Each execution makes its own requests.
	mustRun(t, e, `SELECT ?n WHERE { SERVICE <http://e2/sparql> { ?p :name ?n } }`)
	assert.Equal(t, 2, client.requestCount())
}

// dispatchAll dispatches a distinct service to each endpoint concurrently.
func dispatchAll(d *Dispatcher, endpoints ...string) func() []error {
	var wg sync.WaitGroup
	errs := make([]error, len(endpoints))
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			svc := serviceOf(endpoint, false, pattern("?s", fmt.Sprintf("p%d", i), "?o"))
			_, errs[i] = d.Dispatch(context.Background(), svc)
		}(i, endpoint)
	}
	return func() []error {
		wg.Wait()
		return errs
	}
}

func Test_DispatcherLimits(t *testing.T) {
	tests := []struct {
		name        string
		opts        DispatcherOptions
		endpoints   []string
		expInflight int
	}{
		{
			name:        "per endpoint",
			opts:        DispatcherOptions{MaxConcurrentRequestsPerEndpoint: 2},
			endpoints:   []string{e1, e1, e1, e1, e1},
			expInflight: 2,
		},
		{
			name:        "global",
			opts:        DispatcherOptions{MaxConcurrentRequests: 1},
			endpoints:   []string{e1, e2, e1, e2},
			expInflight: 1,
		},
		{
			name:        "both",
			opts:        DispatcherOptions{MaxConcurrentRequests: 3, MaxConcurrentRequestsPerEndpoint: 1},
			endpoints:   []string{e1, e1, e2, e2},
			expInflight: 2,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			block := make(chan struct{})
			client := newFederation(t)
			client.block = block
			d := NewDispatcher(client, test.opts)
			wait := dispatchAll(d, test.endpoints...)
			assert.Eventually(t, func() bool {
				return client.requestCount() == test.expInflight
			}, time.Second, time.Millisecond)
			time.Sleep(10 * time.Millisecond)
			assert.Equal(t, test.expInflight, client.requestCount())
			close(block)
			for _, err := range wait() {
				assert.NoError(t, err)
			}
			assert.Equal(t, len(test.endpoints), client.requestCount())
			assert.Equal(t, test.expInflight, client.maxInflight)
		})
	}
}

func Test_DispatcherTimeout(t *testing.T) {
	client := newFederation(t)
	client.block = make(chan struct{})
	d := NewDispatcher(client, DispatcherOptions{RequestTimeout: 5 * time.Millisecond})
	_, err := d.Dispatch(context.Background(), serviceOf(e1, false, pattern("?s", "knows", "?o")))
	var evalErr *EvaluationError
	if assert.True(t, errors.As(err, &evalErr)) {
		assert.Equal(t, Transport, evalErr.Kind)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	}
}

func Test_DispatcherDefaults(t *testing.T) {
	d := NewDispatcher(&fakeClient{}, DispatcherOptions{})
	assert.Equal(t, DefaultMaxConcurrentRequests, d.opts.MaxConcurrentRequests)
	assert.Equal(t, DefaultMaxConcurrentRequestsPerEndpoint, d.opts.MaxConcurrentRequestsPerEndpoint)
	assert.True(t, d.endpointLimit(e1) == d.endpointLimit(e1))
	assert.False(t, d.endpointLimit(e1) == d.endpointLimit(e2))
}
