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

package federation

import (
	"context"
	"testing"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/rewrite"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	e1 = "http://e1.example.org/sparql"
	e2 = "http://e2.example.org/sparql"
	e3 = "http://e3.example.org/sparql"
)

const foaf = "http://xmlns.com/foaf/0.1/"

func triple(s string, p rdf.IRI, o string) *algebra.Triple {
	return &algebra.Triple{Pattern: algebra.TriplePattern{
		Subject:   algebra.Var(s),
		Predicate: p,
		Object:    algebra.Var(o),
	}}
}

func svc(endpoint string, p algebra.Plan) *algebra.Service {
	return &algebra.Service{Endpoint: endpoint, Input: p}
}

func join(l, r algebra.Plan) *algebra.InnerJoin {
	return &algebra.InnerJoin{Left: l, Right: r}
}

func union(l, r algebra.Plan) *algebra.Union {
	return &algebra.Union{Left: l, Right: r}
}

func assertPlan(t *testing.T, exp, actual algebra.Plan) {
	t.Helper()
	assert.True(t, algebra.Equal(exp, actual), "expected:\n%vactual:\n%v",
		algebra.Format(exp), algebra.Format(actual))
}

// rejectOracle rejects the listed (endpoint, predicate) pairs.
type rejectOracle map[string]bool

func (o rejectOracle) IsAvailable(ctx context.Context, p algebra.Plan, endpoint string) bool {
	if t, ok := p.(*algebra.Triple); ok {
		return !o[endpoint+" "+t.Pattern.Predicate.String()]
	}
	return true
}

func Test_ServiceInsertion(t *testing.T) {
	name := triple("s", foaf+"name", "name")
	knows := triple("s", foaf+"knows", "o")
	in := &algebra.Distinct{Input: &algebra.BGP{Patterns: []algebra.TriplePattern{name.Pattern, knows.Pattern}}}
	oracle := rejectOracle{e2 + " <" + foaf + "knows>": true}
	res, err := rewrite.Apply(in, ServiceInsertion(context.Background(), []string{e1, e2}, oracle))
	require.NoError(t, err)
	ui := new(algebra.UnionIdentity)
	exp := &algebra.Distinct{Input: join(
		join(new(algebra.JoinIdentity), union(union(ui, svc(e1, name)), svc(e2, name))),
		union(ui, svc(e1, knows)),
	)}
	assertPlan(t, exp, res)
}

func Test_ServiceInsertionKeepsServices(t *testing.T) {
	name := triple("s", foaf+"name", "name")
	in := &algebra.Service{Endpoint: e3, Input: name, Silent: true}
	res, err := rewrite.Apply(in, ServiceInsertion(context.Background(), []string{e1, e2}, AlwaysAvailable{}))
	require.NoError(t, err)
	assert.True(t, res == algebra.Plan(in))
}

func Test_ServiceInsertionLeaves(t *testing.T) {
	quad := &algebra.Quad{Pattern: algebra.QuadPattern{
		TriplePattern: triple("s", foaf+"name", "o").Pattern,
		Graph:         algebra.Var("g"),
	}}
	path := &algebra.Path{
		Subject: algebra.Var("a"),
		Path:    &algebra.PathOneOrMore{Path: &algebra.PathLink{Predicate: foaf + "knows"}},
		Object:  algebra.Var("b"),
	}
	ui := new(algebra.UnionIdentity)
	for _, leaf := range []algebra.Plan{quad, path} {
		res, err := rewrite.Apply(leaf, ServiceInsertion(context.Background(), []string{e1, e2}, AlwaysAvailable{}))
		require.NoError(t, err)
		assertPlan(t, union(union(ui, svc(e1, leaf)), svc(e2, leaf)), res)
	}
}

func Test_ServiceInsertionRejectedEverywhere(t *testing.T) {
	name := triple("s", foaf+"name", "name")
	oracle := rejectOracle{e1 + " <" + foaf + "name>": true, e2 + " <" + foaf + "name>": true}
	res, err := rewrite.Apply(name, ServiceInsertion(context.Background(), []string{e1, e2}, oracle))
	require.NoError(t, err)
	assertPlan(t, new(algebra.UnionIdentity), res)
}

func Test_ServiceInsertionCoverage(t *testing.T) {
	endpoints := []string{e1, e2, e3}
	var patterns []algebra.TriplePattern
	for _, p := range []string{"a", "b", "c", "d"} {
		patterns = append(patterns, triple("s", rdf.IRI(foaf+p), "o"+p).Pattern)
	}
	res, err := rewrite.Apply(&algebra.BGP{Patterns: patterns},
		ServiceInsertion(context.Background(), endpoints, AlwaysAvailable{}))
	require.NoError(t, err)

	// Every union is the wrapping of one leaf for every endpoint.
	unions := 0
	algebra.Walk(res, func(p algebra.Plan) bool {
		if _, ok := p.(*algebra.Union); !ok {
			return true
		}
		unions++
		var leaves []algebra.Plan
		var served []string
		for _, b := range algebra.UnionBranches(p) {
			if _, ok := b.(*algebra.UnionIdentity); ok {
				continue
			}
			s, ok := b.(*algebra.Service)
			if assert.True(t, ok, "unexpected branch %v", b) {
				served = append(served, s.Endpoint)
				leaves = append(leaves, s.Input)
			}
		}
		assert.Equal(t, endpoints, served)
		for _, l := range leaves[1:] {
			assert.True(t, algebra.Equal(leaves[0], l))
		}
		return false
	})
	assert.Equal(t, len(patterns), unions)
	assert.Equal(t, len(patterns)*len(endpoints), algebra.ServiceCount(res))
}

func Test_PushdownJoins(t *testing.T) {
	a, b := triple("a", foaf+"a", "x"), triple("b", foaf+"b", "x")
	c, d := triple("c", foaf+"c", "x"), triple("d", foaf+"d", "x")
	tests := []struct {
		name string
		in   algebra.Plan
		exp  algebra.Plan
	}{
		{"bothUnions",
			join(union(a, b), union(c, d)),
			union(union(join(a, c), join(a, d)), union(join(b, c), join(b, d)))},
		{"leftUnion",
			join(union(a, b), c),
			union(join(a, c), join(b, c))},
		{"rightUnion",
			join(a, union(b, c)),
			union(join(a, b), join(a, c))},
		{"noUnion",
			join(a, b),
			join(a, b)},
		{"nestedInFilter",
			&algebra.Filter{Expr: algebra.True, Input: join(union(a, b), c)},
			&algebra.Filter{Expr: algebra.True, Input: union(join(a, c), join(b, c))}},
		{"descendsIntoResult",
			join(union(a, join(b, union(c, d))), a),
			union(join(a, a), join(union(join(b, c), join(b, d)), a))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := rewrite.Apply(test.in, PushdownJoins())
			require.NoError(t, err)
			assertPlan(t, test.exp, res)
		})
	}
}

func Test_PushdownJoinsNeedsRepeating(t *testing.T) {
	a, b := triple("a", foaf+"a", "x"), triple("b", foaf+"b", "x")
	c, d := triple("c", foaf+"c", "x"), triple("d", foaf+"d", "x")
	// One pass turns the inner join into a union, giving the outer join a
	// new union input that only the next pass sees.
	in := join(join(a, union(b, c)), d)
	once, err := rewrite.Apply(in, PushdownJoins())
	require.NoError(t, err)
	assertPlan(t, join(union(join(a, b), join(a, c)), d), once)

	res, passes, converged, err := rewrite.Fixpoint(in, PushdownJoins(), 10)
	require.NoError(t, err)
	assert.True(t, converged)
	assert.Equal(t, 3, passes)
	assertPlan(t, union(join(join(a, b), d), join(join(a, c), d)), res)
}

func Test_MergeServiceJoins(t *testing.T) {
	t1, t2 := triple("s", foaf+"name", "n"), triple("s", foaf+"knows", "o")
	in := join(
		&algebra.Service{Endpoint: "http://e", Input: t1},
		&algebra.Service{Endpoint: "http://e", Input: t2, Silent: true},
	)
	res, err := rewrite.Apply(in, MergeServiceJoins())
	require.NoError(t, err)
	assertPlan(t, &algebra.Service{Endpoint: "http://e", Input: join(t1, t2), Silent: true}, res)

	other := join(
		&algebra.Service{Endpoint: "http://e", Input: t1},
		&algebra.Service{Endpoint: "http://e/", Input: t2},
	)
	res, err = rewrite.Apply(other, MergeServiceJoins())
	require.NoError(t, err)
	assert.True(t, res == algebra.Plan(other))

	neither := join(svc(e1, t1), svc(e1, t2))
	res, err = rewrite.Apply(neither, MergeServiceJoins())
	require.NoError(t, err)
	assertPlan(t, svc(e1, join(t1, t2)), res)
	assert.False(t, res.(*algebra.Service).Silent)
}

func Test_MergeServiceJoinsChains(t *testing.T) {
	t1, t2, t3 := triple("s", foaf+"a", "a"), triple("s", foaf+"b", "b"), triple("s", foaf+"c", "c")
	in := join(join(svc(e1, t1), svc(e1, t2)), svc(e1, t3))
	res, _, converged, err := rewrite.Fixpoint(in, MergeServiceJoins(), 10)
	require.NoError(t, err)
	assert.True(t, converged)
	assertPlan(t, svc(e1, join(join(t1, t2), t3)), res)
}

func Test_ReorderServiceUnions(t *testing.T) {
	t1, t2 := triple("s", foaf+"a", "a"), triple("s", foaf+"b", "b")
	two := join(svc(e1, t1), svc(e2, t2))
	zero := &algebra.Distinct{Input: t1}
	one := svc(e1, t2)
	in := union(two, union(zero, one))
	res, err := rewrite.Apply(in, ReorderServiceUnions())
	require.NoError(t, err)
	assertPlan(t, union(union(zero, one), two), res)
}

func Test_ReorderServiceUnionsIsStable(t *testing.T) {
	t1, t2, t3 := triple("s", foaf+"a", "a"), triple("s", foaf+"b", "b"), triple("s", foaf+"c", "c")
	first := svc(e2, t1)
	second := svc(e1, t2)
	third := svc(e3, t3)
	pair := join(svc(e1, t1), svc(e1, t1))
	in := union(union(union(pair, first), second), third)
	res, err := rewrite.Apply(in, ReorderServiceUnions())
	require.NoError(t, err)
	assert.Equal(t, []algebra.Plan{first, second, third, pair}, algebra.UnionBranches(res))
}
