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
	"fmt"
	"strings"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
)

// builder turns plans into operator trees for one execution.
type builder struct {
	local      Local
	dispatcher *Dispatcher
	// Shared by the Service operators of this execution.
	services *serviceCache
}

func (e *Executor) newBuilder() *builder {
	return &builder{
		local:      e.local,
		dispatcher: e.dispatcher,
		services:   newServiceCache(),
	}
}

// opName returns a short name for the plan's type, used in metrics.
func opName(p algebra.Plan) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", p), "*algebra.")
}

// build returns an operator for p. Leaf patterns are matched in graph, or in
// the default graph if graph is nil.
func (b *builder) build(p algebra.Plan, graph rdf.Term) (queryOperator, error) {
	op, err := b.operator(p, graph)
	if err != nil {
		return nil, err
	}
	return &decoratedOp{name: opName(p), op: op}, nil
}

func (b *builder) needLocal(p algebra.Plan) error {
	if b.local == nil {
		return fmt.Errorf("exec: no local source to evaluate %v", p)
	}
	return nil
}

func (b *builder) children(graph rdf.Term, plans ...algebra.Plan) ([]queryOperator, error) {
	ops := make([]queryOperator, len(plans))
	for i, p := range plans {
		op, err := b.build(p, graph)
		if err != nil {
			return nil, err
		}
		ops[i] = op
	}
	return ops, nil
}

func (b *builder) operator(p algebra.Plan, graph rdf.Term) (operator, error) {
	switch p := p.(type) {
	case *algebra.JoinIdentity:
		return &identityOp{}, nil
	case *algebra.UnionIdentity:
		return &emptyOp{}, nil

	case *algebra.Triple:
		if err := b.needLocal(p); err != nil {
			return nil, err
		}
		t := p.Pattern
		return newPatternOp(b.local, graph, t.Subject, t.Predicate, t.Object), nil
	case *algebra.Quad:
		if err := b.needLocal(p); err != nil {
			return nil, err
		}
		q := p.Pattern
		return newPatternOp(b.local, graph, q.Subject, q.Predicate, q.Object, q.Graph), nil
	case *algebra.Path:
		if err := b.needLocal(p); err != nil {
			return nil, err
		}
		return newPathOp(b.local, graph, p), nil
	case *algebra.BGP:
		if len(p.Patterns) == 0 {
			return &identityOp{}, nil
		}
		if err := b.needLocal(p); err != nil {
			return nil, err
		}
		var op operator
		for _, t := range p.Patterns {
			next := newPatternOp(b.local, graph, t.Subject, t.Predicate, t.Object)
			if op == nil {
				op = next
				continue
			}
			op = newHashJoin(&decoratedOp{name: "BGP", op: op}, &decoratedOp{name: "Triple", op: next}, false, nil)
		}
		return op, nil

	case *algebra.InnerJoin:
		in, err := b.children(graph, p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return newHashJoin(in[0], in[1], false, nil), nil
	case *algebra.LeftOuterJoin:
		in, err := b.children(graph, p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return newHashJoin(in[0], in[1], true, p.Expr), nil
	case *algebra.Union:
		in, err := b.children(graph, p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return newUnion(in[0], in[1]), nil
	case *algebra.Minus:
		in, err := b.children(graph, p.Left, p.Right)
		if err != nil {
			return nil, err
		}
		return newMinus(in[0], in[1]), nil

	case *algebra.Filter:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return &filterOp{def: p, input: in}, nil
	case *algebra.Extend:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return newExtend(p, in), nil
	case *algebra.Project:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return newProjection(p, in), nil
	case *algebra.Distinct:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return &distinctOp{input: in}, nil
	case *algebra.Slice:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return &sliceOp{def: p, input: in}, nil
	case *algebra.Order:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return &orderByOp{def: p, input: in}, nil
	case *algebra.Aggregate:
		in, err := b.build(p.Input, graph)
		if err != nil {
			return nil, err
		}
		return newAggregate(p, in), nil

	case *algebra.NamedGraph:
		if g, ok := algebra.IsBound(p.Graph); ok {
			return b.operator(p.Input, g)
		}
		if err := b.needLocal(p); err != nil {
			return nil, err
		}
		// Build once up front to find the columns and report errors early.
		in, err := b.build(p.Input, rdf.IRI(""))
		if err != nil {
			return nil, err
		}
		v, _ := algebra.IsVariable(p.Graph)
		return newNamedGraphsOp(b, p.Input, v, in.columns()), nil

	case *algebra.Service:
		if b.dispatcher == nil {
			return nil, fmt.Errorf("exec: no client to evaluate service %s", p.Endpoint)
		}
		return newServiceOp(b.dispatcher, b.services, p), nil

	case *algebra.Subquery:
		if p.Query.Form != algebra.SelectForm {
			return nil, fmt.Errorf("exec: unsupported %v subquery", p.Query.Form)
		}
		return b.operator(p.Query.Plan, graph)
	}
	return nil, fmt.Errorf("exec: unexpected plan node %T", p)
}
