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

// Package exec evaluates algebra plans. Every plan node becomes an operator
// that publishes rows in ResultChunks on a channel. Leaf patterns are matched
// against a Local source, and Service nodes are sent to remote endpoints by a
// Dispatcher.
package exec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/util/parallel"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// Columns are the variables of each row in a ResultChunk, in order.
type Columns []*algebra.Variable

// IndexOf returns the index of the column with the given variable name, or -1.
func (c Columns) IndexOf(name string) int {
	for i, v := range c {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// String returns a string like "?a ?b".
func (c Columns) String() string {
	names := make([]string, len(c))
	for i, v := range c {
		names[i] = v.String()
	}
	return strings.Join(names, " ")
}

// columnsOf returns Columns for the given variable names.
func columnsOf(names ...string) Columns {
	cols := make(Columns, len(names))
	for i, n := range names {
		cols[i] = algebra.Var(n)
	}
	return cols
}

// ResultChunk is a batch of rows produced by an operator.
type ResultChunk struct {
	Columns Columns
	// The rows, one after another, each len(Columns) long. A nil value is
	// unbound. If there are no columns, each row is a single nil value.
	Values []rdf.Term
}

// NumRows returns the number of rows in the chunk.
func (r ResultChunk) NumRows() int {
	if len(r.Columns) == 0 {
		return len(r.Values)
	}
	return len(r.Values) / len(r.Columns)
}

// Row returns the values of the i-th row. The returned slice must not be
// modified.
func (r ResultChunk) Row(i int) []rdf.Term {
	w := len(r.Columns)
	return r.Values[i*w : (i+1)*w]
}

// Solution maps the bound variables of row i to their values.
func (r ResultChunk) Solution(i int) map[string]rdf.Term {
	res := make(map[string]rdf.Term, len(r.Columns))
	for c, v := range r.Row(i) {
		if v != nil {
			res[r.Columns[c].Name] = v
		}
	}
	return res
}

// ToTable returns the rows as strings, with a header row of the column names.
// Unbound values are empty strings.
func (r ResultChunk) ToTable() [][]string {
	rows := make([][]string, 0, r.NumRows()+1)
	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.String()
	}
	rows = append(rows, header)
	for i := 0; i < r.NumRows(); i++ {
		row := make([]string, len(r.Columns))
		for c, v := range r.Row(i) {
			if v != nil {
				row[c] = v.String()
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// An operator evaluates one plan node. Execute must call res.add for each
// output row; it's run by a queryOperator that buffers the rows into chunks.
type operator interface {
	columns() Columns
	execute(ctx context.Context, res results) error
}

// results collects the rows produced by an operator.
type results interface {
	// add appends a row. The row slice is retained and must not be modified
	// afterwards. It has no effect once ctx is done.
	add(ctx context.Context, row []rdf.Term)
}

// queryOperator is an operator whose output is published on a channel.
type queryOperator interface {
	columns() Columns
	// run executes the operator, sends its results on resCh, and closes
	// resCh before returning.
	run(ctx context.Context, resCh chan<- ResultChunk) error
}

// decoratedOp runs an operator, batching its rows into chunks and counting
// them.
type decoratedOp struct {
	name string
	op   operator
}

func (d *decoratedOp) columns() Columns {
	return d.op.columns()
}

func (d *decoratedOp) run(ctx context.Context, resCh chan<- ResultChunk) error {
	buf := newChunkBuffer(d.op.columns(), resCh)
	err := d.op.execute(ctx, buf)
	buf.flush(ctx)
	close(resCh)
	metrics.operatorRows.WithLabelValues(d.name).Add(float64(buf.rows))
	return err
}

// chunkSize is the maximum number of rows in each published ResultChunk.
const chunkSize = 64

// chunkBuffer implements results, sending full chunks to a channel.
type chunkBuffer struct {
	cols    Columns
	resCh   chan<- ResultChunk
	pending ResultChunk
	rows    int
}

func newChunkBuffer(cols Columns, resCh chan<- ResultChunk) *chunkBuffer {
	return &chunkBuffer{
		cols:    cols,
		resCh:   resCh,
		pending: ResultChunk{Columns: cols},
	}
}

func (b *chunkBuffer) add(ctx context.Context, row []rdf.Term) {
	if ctx.Err() != nil {
		return
	}
	if len(row) != len(b.cols) {
		panic(fmt.Sprintf("row has %d values but columns are %v", len(row), b.cols))
	}
	b.rows++
	if len(b.cols) == 0 {
		b.pending.Values = append(b.pending.Values, nil)
	} else {
		b.pending.Values = append(b.pending.Values, row...)
	}
	if b.pending.NumRows() >= chunkSize {
		b.flush(ctx)
	}
}

// flush sends any pending rows.
func (b *chunkBuffer) flush(ctx context.Context) {
	if len(b.pending.Values) == 0 {
		return
	}
	select {
	case b.resCh <- b.pending:
	case <-ctx.Done():
	}
	b.pending = ResultChunk{Columns: b.cols}
}

// Options configure an Executor.
type Options struct {
	// Matches leaf patterns that aren't inside a Service node. If nil, plans
	// with such patterns fail.
	Local Local
	// Sends Service sub-plans to remote endpoints. If nil, plans with Service
	// nodes fail.
	Client Client
	// The maximum number of Service requests in flight at once. Defaults to
	// DefaultMaxConcurrentRequests.
	MaxConcurrentRequests int
	// The maximum number of Service requests in flight to any one endpoint.
	// Defaults to DefaultMaxConcurrentRequestsPerEndpoint.
	MaxConcurrentRequestsPerEndpoint int
	// If set, each Service request is abandoned after this long.
	RequestTimeout time.Duration
}

// Executor evaluates plans. It's safe for concurrent use.
type Executor struct {
	local      Local
	dispatcher *Dispatcher
}

// New returns an Executor with the given options.
func New(opts Options) *Executor {
	e := &Executor{local: opts.Local}
	if opts.Client != nil {
		e.dispatcher = NewDispatcher(opts.Client, DispatcherOptions{
			MaxConcurrentRequests:            opts.MaxConcurrentRequests,
			MaxConcurrentRequestsPerEndpoint: opts.MaxConcurrentRequestsPerEndpoint,
			RequestTimeout:                   opts.RequestTimeout,
		})
	}
	return e
}

// Execute evaluates plan, sending its rows to resCh. It closes resCh before
// returning. Every chunk has the same Columns.
func (e *Executor) Execute(ctx context.Context, plan algebra.Plan, resCh chan<- ResultChunk) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "execute plan")
	tracing.UpdateMetric(span, metrics.executeDurationSeconds)
	defer span.Finish()
	b := e.newBuilder()
	op, err := b.build(plan, nil)
	if err != nil {
		close(resCh)
		return err
	}
	start := time.Now()
	err = op.run(ctx, resCh)
	log.WithFields(log.Fields{
		"columns":  op.columns().String(),
		"duration": time.Since(start),
		"error":    err,
	}).Debug("Executed plan")
	return err
}

// Columns returns the columns of the chunks Execute would produce for plan.
func (e *Executor) Columns(plan algebra.Plan) (Columns, error) {
	op, err := e.newBuilder().build(plan, nil)
	if err != nil {
		return nil, err
	}
	return op.columns(), nil
}

// Collect evaluates plan and returns all of its rows in a single chunk.
func (e *Executor) Collect(ctx context.Context, plan algebra.Plan) (ResultChunk, error) {
	op, err := e.newBuilder().build(plan, nil)
	if err != nil {
		return ResultChunk{}, err
	}
	all := ResultChunk{Columns: op.columns()}
	resCh := make(chan ResultChunk, 4)
	wait := parallel.Go(func() {
		for chunk := range resCh {
			all.Values = append(all.Values, chunk.Values...)
		}
	})
	err = e.Execute(ctx, plan, resCh)
	wait()
	if err != nil {
		return ResultChunk{}, err
	}
	return all, nil
}

// Ask returns true if plan has at least one solution. It stops evaluating
// plan once the first row arrives.
func (e *Executor) Ask(ctx context.Context, plan algebra.Plan) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	resCh := make(chan ResultChunk, 4)
	found := false
	wait := parallel.Go(func() {
		for chunk := range resCh {
			if !found && chunk.NumRows() > 0 {
				found = true
				cancel()
			}
		}
	})
	err := e.Execute(ctx, plan, resCh)
	wait()
	if found {
		return true, nil
	}
	return false, err
}

// Construct evaluates plan and instantiates template with each solution.
// Template triples with unbound variables, or with a literal subject or
// non-IRI predicate, are skipped. Blank nodes in the template are renamed
// apart for each solution. Duplicate triples are removed.
func (e *Executor) Construct(ctx context.Context, template []algebra.TriplePattern, plan algebra.Plan) ([]rdf.Triple, error) {
	all, err := e.Collect(ctx, plan)
	if err != nil {
		return nil, err
	}
	var triples []rdf.Triple
	seen := make(map[string]bool)
	for i := 0; i < all.NumRows(); i++ {
		solution := all.Solution(i)
		instantiate := func(n algebra.Node) rdf.Term {
			switch n := n.(type) {
			case *algebra.Variable:
				return solution[n.Name]
			case rdf.BlankNode:
				return rdf.BlankNode(fmt.Sprintf("%s_%d", n, i))
			case rdf.Term:
				return n
			}
			return nil
		}
		for _, t := range template {
			triple := rdf.Triple{
				Subject:   instantiate(t.Subject),
				Predicate: instantiate(t.Predicate),
				Object:    instantiate(t.Object),
			}
			if !validTriple(triple) {
				continue
			}
			key := triple.String()
			if !seen[key] {
				seen[key] = true
				triples = append(triples, triple)
			}
		}
	}
	return triples, nil
}

func validTriple(t rdf.Triple) bool {
	if t.Subject == nil || t.Predicate == nil || t.Object == nil {
		return false
	}
	if _, ok := t.Subject.(rdf.Literal); ok {
		return false
	}
	_, ok := t.Predicate.(rdf.IRI)
	return ok
}
