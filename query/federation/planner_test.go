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

	"github.com/davecgh/go-spew/spew"
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeAndName() (*algebra.BGP, *algebra.Triple, *algebra.Triple) {
	typ := &algebra.Triple{Pattern: algebra.TriplePattern{
		Subject: algebra.Var("s"), Predicate: rdf.IRI(rdf.RDFType), Object: algebra.Var("type"),
	}}
	name := triple("s", foaf+"name", "name")
	return &algebra.BGP{Patterns: []algebra.TriplePattern{typ.Pattern, name.Pattern}}, typ, name
}

func Test_FederateTwoEndpoints(t *testing.T) {
	bgp, typ, name := typeAndName()
	planner := NewPlanner(AlwaysAvailable{}, Options{})
	res, err := planner.Federate(context.Background(), bgp, []string{e1, e2})
	require.NoError(t, err)

	branches := algebra.UnionBranches(res)
	require.Len(t, branches, 4, "got:\n%v", algebra.Format(res))
	// The merged single-endpoint branches come first, followed by the joins
	// across endpoints.
	assertPlan(t, svc(e1, join(typ, name)), branches[0])
	assertPlan(t, svc(e2, join(typ, name)), branches[1])
	assertPlan(t, join(svc(e2, typ), svc(e1, name)), branches[2])
	assertPlan(t, join(svc(e1, typ), svc(e2, name)), branches[3])
	assertPlan(t, algebra.UnionOf(branches...), res)

	single := 0
	for _, b := range branches {
		if algebra.ServiceCount(b) == 1 {
			single++
		}
	}
	assert.Equal(t, 2, single)
}

func Test_FederateIsIdempotent(t *testing.T) {
	bgp, _, _ := typeAndName()
	knows := triple("s", foaf+"knows", "friend")
	in := &algebra.Project{
		Vars: []*algebra.Variable{algebra.Var("name"), algebra.Var("friend")},
		Input: &algebra.LeftOuterJoin{
			Left:  bgp,
			Right: knows,
		},
	}
	planner := NewPlanner(AlwaysAvailable{}, Options{})
	ctx := context.Background()
	endpoints := []string{e1, e2, e3}
	once, err := planner.Federate(ctx, in, endpoints)
	require.NoError(t, err)
	twice, err := planner.Federate(ctx, once, endpoints)
	require.NoError(t, err)
	assertPlan(t, once, twice)
}

func Test_FederateRejectedLeaf(t *testing.T) {
	bgp, _, name := typeAndName()
	oracle := rejectOracle{
		e1 + " " + name.Pattern.Predicate.String(): true,
		e2 + " " + name.Pattern.Predicate.String(): true,
	}
	planner := NewPlanner(oracle, Options{})
	res, err := planner.Federate(context.Background(), bgp, []string{e1, e2})
	require.NoError(t, err)
	assertPlan(t, new(algebra.UnionIdentity), res)
}

func Test_FederatePartialAvailability(t *testing.T) {
	bgp, typ, name := typeAndName()
	// Only e2 knows about names, so every answer needs a name from e2.
	planner := NewPlanner(rejectOracle{e1 + " " + name.Pattern.Predicate.String(): true}, Options{})
	res, err := planner.Federate(context.Background(), bgp, []string{e1, e2})
	require.NoError(t, err)
	assert.Equal(t, []algebra.Plan{
		svc(e2, join(typ, name)),
		join(svc(e1, typ), svc(e2, name)),
	}, algebra.UnionBranches(res), spew.Sdump(res))
}

func Test_FederateNoEndpoints(t *testing.T) {
	bgp, _, _ := typeAndName()
	_, err := NewPlanner(AlwaysAvailable{}, Options{}).Federate(context.Background(), bgp, nil)
	assert.Equal(t, ErrNoEndpoints, err)
}

func Test_FederateFixedPasses(t *testing.T) {
	bgp, _, _ := typeAndName()
	ctx := context.Background()
	fixed, err := NewPlanner(AlwaysAvailable{}, Options{FixedPasses: true}).Federate(ctx, bgp, []string{e1, e2})
	require.NoError(t, err)
	full, err := NewPlanner(AlwaysAvailable{}, Options{}).Federate(ctx, bgp, []string{e1, e2})
	require.NoError(t, err)
	// A single pushdown pass leaves joins over a union, so nothing can be
	// merged.
	assert.False(t, algebra.Equal(fixed, full))
	assert.Len(t, algebra.UnionBranches(fixed), 2)
	assert.Len(t, algebra.UnionBranches(full), 4)
	assert.Equal(t, 6, algebra.ServiceCount(fixed))
	assert.Equal(t, 6, algebra.ServiceCount(full))
}

func Test_FederateQuerySubquery(t *testing.T) {
	bgp, typ, name := typeAndName()
	inner := &algebra.Query{Form: algebra.SelectForm, Plan: &algebra.Project{
		Vars:  []*algebra.Variable{algebra.Var("s")},
		Input: bgp,
	}}
	q := &algebra.Query{
		Form: algebra.SelectForm,
		Plan: &algebra.Slice{Input: &algebra.Subquery{Query: inner}, Limit: new(uint64)},
	}
	res, err := NewPlanner(AlwaysAvailable{}, Options{}).FederateQuery(context.Background(), q, []string{e1})
	require.NoError(t, err)
	assert.Equal(t, algebra.SelectForm, res.Form)
	exp := &algebra.Slice{Limit: new(uint64), Input: &algebra.Subquery{Query: &algebra.Query{
		Form: algebra.SelectForm,
		Plan: &algebra.Project{
			Vars:  []*algebra.Variable{algebra.Var("s")},
			Input: svc(e1, join(typ, name)),
		},
	}}}
	assertPlan(t, exp, res.Plan)
	// The input query isn't modified.
	assert.True(t, algebra.Equal(bgp, inner.Plan.(*algebra.Project).Input))
}
