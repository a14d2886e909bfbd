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

package memstore

import (
	"context"
	"fmt"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/exec"
	"github.com/kasei/kineo-federation/rdf"
)

// pathSet collects distinct pairs in the order they're found.
type pathSet struct {
	pairs []exec.PathMatch
	seen  map[exec.PathMatch]bool
}

func newPathSet() *pathSet {
	return &pathSet{seen: make(map[exec.PathMatch]bool)}
}

func (set *pathSet) add(subject, object rdf.Term) {
	m := exec.PathMatch{Subject: subject, Object: object}
	if !set.seen[m] {
		set.seen[m] = true
		set.pairs = append(set.pairs, m)
	}
}

// pathEval evaluates property paths within one graph.
type pathEval struct {
	ctx   context.Context
	store *Store
	graph rdf.Term
}

// MatchPath implements exec.Local. Repetitions are found with a breadth-first
// search, so cycles in the data terminate.
func (s *Store) MatchPath(ctx context.Context, graph, subject rdf.Term, path algebra.PathExpr, object rdf.Term) ([]exec.PathMatch, error) {
	ev := &pathEval{ctx: ctx, store: s, graph: graph}
	set := newPathSet()
	if err := ev.eval(path, subject, object, set); err != nil {
		return nil, err
	}
	return set.pairs, nil
}

// eval adds the pairs connected by path to out. A non-nil subject or object
// restricts the pairs.
func (ev *pathEval) eval(path algebra.PathExpr, subject, object rdf.Term, out *pathSet) error {
	if err := ev.ctx.Err(); err != nil {
		return err
	}
	switch p := path.(type) {
	case *algebra.PathLink:
		triples, err := ev.store.Match(ev.ctx, ev.graph, subject, p.Predicate, object)
		if err != nil {
			return err
		}
		for _, t := range triples {
			out.add(t.Subject, t.Object)
		}
		return nil

	case *algebra.PathInverse:
		inner := newPathSet()
		if err := ev.eval(p.Path, object, subject, inner); err != nil {
			return err
		}
		for _, m := range inner.pairs {
			out.add(m.Object, m.Subject)
		}
		return nil

	case *algebra.PathSequence:
		return ev.sequence(p, subject, object, out)

	case *algebra.PathAlternative:
		if err := ev.eval(p.Left, subject, object, out); err != nil {
			return err
		}
		return ev.eval(p.Right, subject, object, out)

	case *algebra.PathZeroOrOne:
		if err := ev.zeroLength(subject, object, out); err != nil {
			return err
		}
		return ev.eval(p.Path, subject, object, out)

	case *algebra.PathZeroOrMore:
		return ev.closure(p.Path, subject, object, true, out)

	case *algebra.PathOneOrMore:
		return ev.closure(p.Path, subject, object, false, out)

	case *algebra.PathNegated:
		return ev.negated(p, subject, object, out)
	}
	return fmt.Errorf("memstore: unexpected path %T", path)
}

func (ev *pathEval) sequence(p *algebra.PathSequence, subject, object rdf.Term, out *pathSet) error {
	if subject == nil && object != nil {
		// Work backwards from the bound end.
		right := newPathSet()
		if err := ev.eval(p.Right, nil, object, right); err != nil {
			return err
		}
		for _, mid := range distinct(right.pairs, true) {
			left := newPathSet()
			if err := ev.eval(p.Left, nil, mid, left); err != nil {
				return err
			}
			for _, l := range left.pairs {
				for _, r := range right.pairs {
					if r.Subject == mid {
						out.add(l.Subject, r.Object)
					}
				}
			}
		}
		return nil
	}
	left := newPathSet()
	if err := ev.eval(p.Left, subject, nil, left); err != nil {
		return err
	}
	for _, mid := range distinct(left.pairs, false) {
		right := newPathSet()
		if err := ev.eval(p.Right, mid, object, right); err != nil {
			return err
		}
		for _, l := range left.pairs {
			if l.Object != mid {
				continue
			}
			for _, r := range right.pairs {
				out.add(l.Subject, r.Object)
			}
		}
	}
	return nil
}

// distinct returns the distinct objects of pairs, or their subjects if
// subjects is set.
func distinct(pairs []exec.PathMatch, subjects bool) []rdf.Term {
	var res []rdf.Term
	seen := make(map[rdf.Term]bool)
	for _, m := range pairs {
		t := m.Object
		if subjects {
			t = m.Subject
		}
		if !seen[t] {
			seen[t] = true
			res = append(res, t)
		}
	}
	return res
}

// zeroLength adds the pairs connecting a node to itself.
func (ev *pathEval) zeroLength(subject, object rdf.Term, out *pathSet) error {
	switch {
	case subject != nil && object != nil:
		if subject == object {
			out.add(subject, object)
		}
	case subject != nil:
		out.add(subject, subject)
	case object != nil:
		out.add(object, object)
	default:
		nodes, err := ev.nodes()
		if err != nil {
			return err
		}
		for _, n := range nodes {
			out.add(n, n)
		}
	}
	return nil
}

// nodes returns every subject and object in the graph.
func (ev *pathEval) nodes() ([]rdf.Term, error) {
	triples, err := ev.store.Match(ev.ctx, ev.graph, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	var res []rdf.Term
	seen := make(map[rdf.Term]bool)
	for _, t := range triples {
		for _, n := range []rdf.Term{t.Subject, t.Object} {
			if !seen[n] {
				seen[n] = true
				res = append(res, n)
			}
		}
	}
	return res, nil
}

// closure adds the pairs connected by one or more repetitions of path, or
// zero or more if reflexive is set.
func (ev *pathEval) closure(path algebra.PathExpr, subject, object rdf.Term, reflexive bool, out *pathSet) error {
	switch {
	case subject != nil:
		reached, err := ev.reachable(path, subject, false, reflexive)
		if err != nil {
			return err
		}
		for _, n := range reached {
			if object == nil || n == object {
				out.add(subject, n)
			}
		}
	case object != nil:
		reached, err := ev.reachable(path, object, true, reflexive)
		if err != nil {
			return err
		}
		for _, n := range reached {
			out.add(n, object)
		}
	default:
		nodes, err := ev.nodes()
		if err != nil {
			return err
		}
		for _, start := range nodes {
			reached, err := ev.reachable(path, start, false, reflexive)
			if err != nil {
				return err
			}
			for _, n := range reached {
				out.add(start, n)
			}
		}
	}
	return nil
}

// reachable returns the nodes reached from start by one or more steps of
// path, or by zero or more if reflexive is set. If backward is set, the
// steps are taken from object to subject.
func (ev *pathEval) reachable(path algebra.PathExpr, start rdf.Term, backward, reflexive bool) ([]rdf.Term, error) {
	var res []rdf.Term
	visited := make(map[rdf.Term]bool)
	if reflexive {
		visited[start] = true
		res = append(res, start)
	}
	frontier := []rdf.Term{start}
	for len(frontier) > 0 {
		var next []rdf.Term
		for _, n := range frontier {
			step := newPathSet()
			var err error
			if backward {
				err = ev.eval(path, nil, n, step)
			} else {
				err = ev.eval(path, n, nil, step)
			}
			if err != nil {
				return nil, err
			}
			for _, m := range step.pairs {
				t := m.Object
				if backward {
					t = m.Subject
				}
				if !visited[t] {
					visited[t] = true
					res = append(res, t)
					next = append(next, t)
				}
			}
		}
		frontier = next
	}
	return res, nil
}

// negated adds the single edges whose predicate isn't excluded. Forward and
// inverse exclusions are matched separately.
func (ev *pathEval) negated(p *algebra.PathNegated, subject, object rdf.Term, out *pathSet) error {
	excluded := func(pred rdf.Term, list []rdf.IRI) bool {
		for _, iri := range list {
			if pred == iri {
				return true
			}
		}
		return false
	}
	if len(p.Predicates) > 0 || len(p.Inverse) == 0 {
		triples, err := ev.store.Match(ev.ctx, ev.graph, subject, nil, object)
		if err != nil {
			return err
		}
		for _, t := range triples {
			if !excluded(t.Predicate, p.Predicates) {
				out.add(t.Subject, t.Object)
			}
		}
	}
	if len(p.Inverse) > 0 {
		triples, err := ev.store.Match(ev.ctx, ev.graph, object, nil, subject)
		if err != nil {
			return err
		}
		for _, t := range triples {
			if !excluded(t.Predicate, p.Inverse) {
				out.add(t.Object, t.Subject)
			}
		}
	}
	return nil
}
