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
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/parser"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/sparqlclient"
	"github.com/stretchr/testify/require"
)

const ex = "http://example.com/"

const testData = `
<http://example.com/alice> <http://example.com/name> "Alice" .
<http://example.com/alice> <http://example.com/age> "30"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://example.com/alice> <http://example.com/knows> <http://example.com/bob> .
<http://example.com/bob> <http://example.com/name> "Bob" .
<http://example.com/bob> <http://example.com/age> "25"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://example.com/bob> <http://example.com/knows> <http://example.com/carol> .
<http://example.com/carol> <http://example.com/name> "Carol" .
<http://example.com/carol> <http://example.com/email> "carol@example.com" .
<http://example.com/dave> <http://example.com/name> "Dave"@en <http://example.com/g1> .
<http://example.com/dave> <http://example.com/age> "40"^^<http://www.w3.org/2001/XMLSchema#integer> <http://example.com/g1> .
<http://example.com/erin> <http://example.com/name> "Erin" <http://example.com/g2> .
`

// fakeLocal is a Local over a fixed list of quads. It only supports simple
// link paths.
type fakeLocal struct {
	quads []rdf.Quad
}

func newFakeLocal(t *testing.T, nquads string) *fakeLocal {
	quads, err := parser.ParseNQuads(nquads)
	require.NoError(t, err)
	return &fakeLocal{quads: quads}
}

func matches(pattern, t rdf.Term) bool {
	return pattern == nil || pattern == t
}

func (f *fakeLocal) Match(ctx context.Context, graph, s, p, o rdf.Term) ([]rdf.Triple, error) {
	var res []rdf.Triple
	for _, q := range f.quads {
		if q.Graph == graph && matches(s, q.Subject) && matches(p, q.Predicate) && matches(o, q.Object) {
			res = append(res, q.Triple)
		}
	}
	return res, nil
}

func (f *fakeLocal) NamedGraphs(ctx context.Context) ([]rdf.Term, error) {
	var res []rdf.Term
	seen := make(map[rdf.Term]bool)
	for _, q := range f.quads {
		if q.Graph != nil && !seen[q.Graph] {
			seen[q.Graph] = true
			res = append(res, q.Graph)
		}
	}
	return res, nil
}

func (f *fakeLocal) MatchPath(ctx context.Context, graph, s rdf.Term, path algebra.PathExpr, o rdf.Term) ([]PathMatch, error) {
	link, ok := path.(*algebra.PathLink)
	if !ok {
		return nil, fmt.Errorf("fakeLocal: unsupported path %v", path)
	}
	triples, _ := f.Match(ctx, graph, s, link.Predicate, o)
	res := make([]PathMatch, len(triples))
	for i, t := range triples {
		res[i] = PathMatch{Subject: t.Subject, Object: t.Object}
	}
	return res, nil
}

// fakeClient answers queries by evaluating them locally against a
// fakeLocal per endpoint. Endpoints listed in errs fail with that error.
type fakeClient struct {
	lock     sync.Mutex
	stores   map[string]Local
	errs     map[string]error
	results  map[string]*sparqlclient.Result
	requests []string
	// If set, received by each request before it returns.
	block <-chan struct{}
	// Tracks concurrency of requests.
	inflight    int
	maxInflight int
}

func (c *fakeClient) Query(ctx context.Context, endpoint string, query string) (*sparqlclient.Result, error) {
	c.lock.Lock()
	c.requests = append(c.requests, endpoint)
	c.inflight++
	c.maxInflight = max(c.maxInflight, c.inflight)
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		c.inflight--
		c.lock.Unlock()
	}()
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := c.errs[endpoint]; err != nil {
		return nil, err
	}
	if res := c.results[endpoint]; res != nil {
		return res, nil
	}
	q, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}
	chunk, err := New(Options{Local: c.stores[endpoint]}).Collect(ctx, q.Plan)
	if err != nil {
		return nil, err
	}
	res := &sparqlclient.Result{Kind: sparqlclient.BindingsResult}
	for _, col := range chunk.Columns {
		res.Vars = append(res.Vars, col.Name)
	}
	for i := 0; i < chunk.NumRows(); i++ {
		res.Bindings = append(res.Bindings, chunk.Solution(i))
	}
	return res, nil
}

func (c *fakeClient) requestCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.requests)
}

// run parses query, with the ex: prefix declared as the default prefix, and
// evaluates its plan.
func run(t *testing.T, e *Executor, query string) (ResultChunk, error) {
	t.Helper()
	q := parser.MustParse("PREFIX : <" + ex + ">\n" + query)
	return e.Collect(context.Background(), q.Plan)
}

func mustRun(t *testing.T, e *Executor, query string) ResultChunk {
	t.Helper()
	res, err := run(t, e, query)
	require.NoError(t, err)
	return res
}

// short formats a term compactly: IRIs in ex: as :local, numbers and booleans
// as their lexical forms.
func short(t rdf.Term) string {
	switch t := t.(type) {
	case rdf.IRI:
		if strings.HasPrefix(string(t), ex) {
			return ":" + strings.TrimPrefix(string(t), ex)
		}
	case rdf.Literal:
		if t.IsNumeric() || t.Datatype == rdf.XSDBoolean {
			return t.Lexical
		}
	}
	return t.String()
}

// solutions returns each row as a string like "?a=:alice ?n=1", with the bound
// variables in name order.
func solutions(chunk ResultChunk) []string {
	out := make([]string, chunk.NumRows())
	for i := range out {
		sol := chunk.Solution(i)
		names := make([]string, 0, len(sol))
		for n := range sol {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for j, n := range names {
			parts[j] = "?" + n + "=" + short(sol[n])
		}
		out[i] = strings.Join(parts, " ")
	}
	return out
}
