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

// Package memstore holds RDF datasets in memory. A Store answers the leaf
// patterns of exec plans, so it backs the local evaluation mode and the
// standalone SPARQL endpoint.
package memstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/kasei/kineo-federation/query/parser"
	"github.com/kasei/kineo-federation/rdf"
	log "github.com/sirupsen/logrus"
)

// Options configure a Store.
type Options struct {
	// If set, the default graph is the merge of every graph, rather than only
	// the quads added without a graph name.
	UnionDefaultGraph bool
}

// Store is an in-memory set of quads. It keeps three orderings of the quads
// so that any pattern with a bound term is answered from a key range. It's
// safe for concurrent use.
type Store struct {
	opts Options
	lock sync.RWMutex
	// Protected by lock.
	indexes [numIndexes]*btree.BTree
	// Protected by lock. Maps from each graph name's key to the name.
	graphs map[string]rdf.Term
}

// An index orders the quads by a permutation of their positions.
type index int

const (
	spog index = iota
	posg
	ospg
	numIndexes
)

// Positions within an rdf.Quad, in the order each index uses them.
var orders = [numIndexes][4]int{
	spog: {0, 1, 2, 3},
	posg: {1, 2, 0, 3},
	ospg: {2, 0, 1, 3},
}

// item is one quad in one index.
type item struct {
	// The keys of the quad's terms in the index's order, each followed by a
	// zero byte. The default graph's key is empty.
	key  string
	quad rdf.Quad
}

// Less on item compares the keys lexicographically.
func (i item) Less(other btree.Item) bool {
	return i.key < other.(item).key
}

// New returns an empty Store.
func New(opts Options) *Store {
	s := &Store{opts: opts, graphs: make(map[string]rdf.Term)}
	for i := range s.indexes {
		s.indexes[i] = btree.New(16)
	}
	return s
}

func termKey(t rdf.Term) string {
	if t == nil {
		return ""
	}
	var b strings.Builder
	t.Key(&b)
	return b.String()
}

func positions(q rdf.Quad) [4]rdf.Term {
	return [4]rdf.Term{q.Subject, q.Predicate, q.Object, q.Graph}
}

// keyOf returns the key of q in idx, or a prefix of it if only the first n
// positions are used.
func keyOf(idx index, q [4]rdf.Term, n int) string {
	var b strings.Builder
	for _, pos := range orders[idx][:n] {
		b.WriteString(termKey(q[pos]))
		b.WriteByte(0)
	}
	return b.String()
}

// Add inserts quads into the store and returns how many weren't already
// present.
func (s *Store) Add(quads ...rdf.Quad) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	added := 0
	for _, q := range quads {
		pos := positions(q)
		for idx := range s.indexes {
			prev := s.indexes[idx].ReplaceOrInsert(item{key: keyOf(index(idx), pos, 4), quad: q})
			if idx == int(spog) && prev == nil {
				added++
			}
		}
		if q.Graph != nil {
			s.graphs[termKey(q.Graph)] = q.Graph
		}
	}
	metrics.quads.Add(float64(added))
	return added
}

// AddTriples inserts triples into the given graph, or the default graph if
// graph is nil.
func (s *Store) AddTriples(graph rdf.Term, triples ...rdf.Triple) int {
	quads := make([]rdf.Quad, len(triples))
	for i, t := range triples {
		quads[i] = rdf.Quad{Triple: t, Graph: graph}
	}
	return s.Add(quads...)
}

// Len returns the number of quads in the store.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.indexes[spog].Len()
}

// LoadNTriples parses an N-Triples document into the default graph.
func (s *Store) LoadNTriples(doc string) (int, error) {
	triples, err := parser.ParseNTriples(doc)
	if err != nil {
		return 0, err
	}
	return s.AddTriples(nil, triples...), nil
}

// LoadNQuads parses an N-Quads document into the store.
func (s *Store) LoadNQuads(doc string) (int, error) {
	quads, err := parser.ParseNQuads(doc)
	if err != nil {
		return 0, err
	}
	return s.Add(quads...), nil
}

// LoadFile reads an N-Triples (.nt) or N-Quads (.nq) file into the store.
// Files with other extensions are parsed as N-Quads.
func (s *Store) LoadFile(filename string) (int, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return 0, err
	}
	var n int
	if strings.EqualFold(filepath.Ext(filename), ".nt") {
		n, err = s.LoadNTriples(string(data))
	} else {
		n, err = s.LoadNQuads(string(data))
	}
	if err != nil {
		return 0, fmt.Errorf("unable to load %s: %v", filename, err)
	}
	log.WithFields(log.Fields{
		"file":  filename,
		"quads": n,
	}).Info("Loaded data")
	return n, nil
}

// chooseIndex returns the index whose key order puts the most bound
// positions of pattern first, and how many leading positions are bound.
func chooseIndex(pattern [4]rdf.Term) (index, int) {
	best, bestLen := spog, 0
	for idx := spog; idx < numIndexes; idx++ {
		n := 0
		for _, pos := range orders[idx][:3] {
			if pattern[pos] == nil {
				break
			}
			n++
		}
		if n > bestLen {
			best, bestLen = idx, n
		}
	}
	return best, bestLen
}

// scan calls fn for each quad matching the non-nil terms of pattern, in any
// graph, until fn returns false. The caller must hold lock.
func (s *Store) scan(pattern [4]rdf.Term, fn func(rdf.Quad) bool) {
	idx, n := chooseIndex(pattern)
	prefix := keyOf(idx, pattern, n)
	s.indexes[idx].AscendGreaterOrEqual(item{key: prefix}, func(i btree.Item) bool {
		it := i.(item)
		if !strings.HasPrefix(it.key, prefix) {
			return false
		}
		pos := positions(it.quad)
		for p := 0; p < 3; p++ {
			if pattern[p] != nil && pattern[p] != pos[p] {
				return true
			}
		}
		return fn(it.quad)
	})
}

// Match implements exec.Local. A nil graph is the default graph.
func (s *Store) Match(ctx context.Context, graph, subject, predicate, object rdf.Term) ([]rdf.Triple, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	var res []rdf.Triple
	var seen map[rdf.Triple]bool
	if graph == nil && s.opts.UnionDefaultGraph {
		seen = make(map[rdf.Triple]bool)
	}
	var err error
	s.scan([4]rdf.Term{subject, predicate, object}, func(q rdf.Quad) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		switch {
		case seen != nil:
			if seen[q.Triple] {
				return true
			}
			seen[q.Triple] = true
		case q.Graph != graph:
			return true
		}
		res = append(res, q.Triple)
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// NamedGraphs implements exec.Local. The names are sorted.
func (s *Store) NamedGraphs(ctx context.Context) ([]rdf.Term, error) {
	s.lock.RLock()
	res := make([]rdf.Term, 0, len(s.graphs))
	for _, g := range s.graphs {
		res = append(res, g)
	}
	s.lock.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		return rdf.Compare(res[i], res[j]) < 0
	})
	return res, nil
}

// Quads returns every quad in the store, in subject order.
func (s *Store) Quads() []rdf.Quad {
	s.lock.RLock()
	defer s.lock.RUnlock()
	res := make([]rdf.Quad, 0, s.indexes[spog].Len())
	s.indexes[spog].Ascend(func(i btree.Item) bool {
		res = append(res, i.(item).quad)
		return true
	})
	return res
}
