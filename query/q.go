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

// Package query is the entry point to the federating query processor. It
// parses a SPARQL query, rewrites it to run against a set of remote endpoints,
// and executes the result.
package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kasei/kineo-federation/config"
	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/exec"
	"github.com/kasei/kineo-federation/query/federation"
	"github.com/kasei/kineo-federation/query/parser"
	"github.com/kasei/kineo-federation/rdf"
	"github.com/kasei/kineo-federation/sparqlclient"
	"github.com/kasei/kineo-federation/util/parallel"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// ResultChunk is a batch of query solutions.
type ResultChunk = exec.ResultChunk

// Options configure an Engine.
type Options struct {
	// Endpoints the query's patterns are federated to. If empty, the Engine
	// runs in local mode: queries are evaluated against Local as written.
	Endpoints []string
	// Decides which endpoints can answer each pattern. Defaults to
	// federation.AlwaysAvailable.
	Oracle federation.Oracle
	// Limits on the rewrite pipeline.
	Planner federation.Options
	// Evaluates patterns outside of Service nodes. Required in local mode.
	Local exec.Local
	// Sends Service sub-plans to endpoints. Required to federate.
	Client exec.Client
	// Bounds on concurrent remote requests. See exec.Options.
	MaxConcurrentRequests            int
	MaxConcurrentRequestsPerEndpoint int
	RequestTimeout                   time.Duration
}

// OptionsFromConfig returns Options for federating over the endpoints in cfg,
// sending requests with client. The oracle probes endpoints with client
// unless cfg selects config.OracleNone. client must not be nil.
func OptionsFromConfig(cfg *config.Federation, client *sparqlclient.Client) Options {
	opts := Options{
		Endpoints: cfg.Endpoints,
		Planner: federation.Options{
			MaxPushdownPasses: cfg.Rewrite.MaxPushdownPasses,
			MaxMergePasses:    cfg.Rewrite.MaxMergePasses,
			FixedPasses:       cfg.Rewrite.FixedPasses,
		},
		Client:                           client,
		MaxConcurrentRequests:            cfg.Exec.MaxConcurrentRequests,
		MaxConcurrentRequestsPerEndpoint: cfg.Exec.MaxConcurrentRequestsPerEndpoint,
		RequestTimeout:                   time.Duration(cfg.Exec.RequestTimeout),
	}
	switch cfg.Oracle.Type {
	case config.OracleNone:
		opts.Oracle = federation.AlwaysAvailable{}
	default:
		opts.Oracle = federation.NewCachingAskOracle(client, time.Duration(cfg.Oracle.CacheTTL))
	}
	return opts
}

// Engine runs SPARQL queries. It's safe for concurrent use.
type Engine struct {
	endpoints []string
	// nil in local mode.
	planner  *federation.Planner
	executor *exec.Executor
}

// New returns an Engine with the given options.
func New(opts Options) *Engine {
	e := &Engine{
		executor: exec.New(exec.Options{
			Local:                            opts.Local,
			Client:                           opts.Client,
			MaxConcurrentRequests:            opts.MaxConcurrentRequests,
			MaxConcurrentRequestsPerEndpoint: opts.MaxConcurrentRequestsPerEndpoint,
			RequestTimeout:                   opts.RequestTimeout,
		}),
	}
	if len(opts.Endpoints) > 0 {
		oracle := opts.Oracle
		if oracle == nil {
			oracle = federation.AlwaysAvailable{}
		}
		e.endpoints = append([]string(nil), opts.Endpoints...)
		e.planner = federation.NewPlanner(oracle, opts.Planner)
	}
	return e
}

// Local returns true if the Engine evaluates queries without federating them.
func (e *Engine) Local() bool {
	return e.planner == nil
}

// Endpoints returns the endpoints queries are federated to.
func (e *Engine) Endpoints() []string {
	return append([]string(nil), e.endpoints...)
}

// Prepare parses rawQuery and, unless the Engine is in local mode, rewrites
// it for federated execution. The result can be passed to Evaluate, or
// printed to explain how the query will run.
func (e *Engine) Prepare(ctx context.Context, rawQuery string) (*algebra.Query, error) {
	parseSpan, _ := opentracing.StartSpanFromContext(ctx, "parse query")
	tracing.UpdateMetric(parseSpan, metrics.parseQueryDurationSeconds)
	query, err := parser.Parse(rawQuery)
	parseSpan.Finish()
	if err != nil {
		return nil, err
	}
	if !query.Dataset.IsEmpty() {
		log.WithFields(log.Fields{
			"default": len(query.Dataset.Default),
			"named":   len(query.Dataset.Named),
		}).Warn("Ignoring FROM clauses: queries run against each endpoint's default dataset")
	}
	if e.planner == nil {
		return query, nil
	}
	federateSpan, federateCtx := opentracing.StartSpanFromContext(ctx, "federate query")
	tracing.UpdateMetric(federateSpan, metrics.federateQueryDurationSeconds)
	federated, err := e.planner.FederateQuery(federateCtx, query, e.endpoints)
	federateSpan.Finish()
	if err != nil {
		log.WithFields(log.Fields{
			"query": rawQuery,
			"error": err,
		}).Warn("Unable to federate query")
		return nil, err
	}
	return federated, nil
}

// Query runs a SELECT query and sends its solutions to resCh. It closes
// resCh before returning.
func (e *Engine) Query(ctx context.Context, rawQuery string, resCh chan<- ResultChunk) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "query")
	span.SetTag("rawQuery", rawQuery)
	defer span.Finish()

	query, err := e.Prepare(ctx, rawQuery)
	if err != nil {
		close(resCh)
		return err
	}
	if query.Form != algebra.SelectForm {
		close(resCh)
		return fmt.Errorf("query: expected a SELECT query, got %v", query.Form)
	}
	return e.Stream(ctx, query, resCh)
}

// Stream executes a SELECT query returned by Prepare, sending its solutions
// to resCh. It closes resCh before returning.
func (e *Engine) Stream(ctx context.Context, query *algebra.Query, resCh chan<- ResultChunk) error {
	metrics.queries.WithLabelValues(query.Form.String()).Inc()
	span, ctx := opentracing.StartSpanFromContext(ctx, "execute query")
	tracing.UpdateMetric(span, metrics.executeQueryDurationSeconds)
	defer span.Finish()
	cols, err := e.executor.Columns(query.Plan)
	if err != nil {
		close(resCh)
		return err
	}
	keep := visibleColumns(cols, query.BlankVars)
	if keep == nil {
		return e.executor.Execute(ctx, query.Plan, resCh)
	}
	planCh := make(chan ResultChunk, 4)
	wait := parallel.Go(func() {
		for chunk := range planCh {
			resCh <- project(chunk, keep)
		}
		close(resCh)
	})
	err = e.executor.Execute(ctx, query.Plan, planCh)
	wait()
	return err
}

// visibleColumns returns the indexes of the columns that aren't named in
// blankVars, or nil if that's all of them.
func visibleColumns(cols exec.Columns, blankVars []string) []int {
	if len(blankVars) == 0 {
		return nil
	}
	keep := make([]int, 0, len(cols))
	for i, c := range cols {
		if j := sort.SearchStrings(blankVars, c.Name); j == len(blankVars) || blankVars[j] != c.Name {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(cols) {
		return nil
	}
	return keep
}

// project returns a copy of chunk with only the given columns.
func project(chunk ResultChunk, keep []int) ResultChunk {
	res := ResultChunk{Columns: make(exec.Columns, len(keep))}
	for i, c := range keep {
		res.Columns[i] = chunk.Columns[c]
	}
	width := max(len(keep), 1)
	res.Values = make([]rdf.Term, 0, chunk.NumRows()*width)
	for r := 0; r < chunk.NumRows(); r++ {
		row := chunk.Row(r)
		if len(keep) == 0 {
			res.Values = append(res.Values, nil)
			continue
		}
		for _, c := range keep {
			res.Values = append(res.Values, row[c])
		}
	}
	return res
}

// Result holds the complete answer to a query. Which fields are set depends
// on Form.
type Result struct {
	Form algebra.Form
	// Set for SELECT queries.
	Solutions ResultChunk
	// Set for ASK queries.
	Boolean bool
	// Set for CONSTRUCT queries.
	Triples []rdf.Triple
}

// Run parses, prepares and evaluates a query of any form.
func (e *Engine) Run(ctx context.Context, rawQuery string) (*Result, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "query")
	span.SetTag("rawQuery", rawQuery)
	defer span.Finish()

	query, err := e.Prepare(ctx, rawQuery)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, query)
}

// Evaluate executes a query returned by Prepare.
func (e *Engine) Evaluate(ctx context.Context, query *algebra.Query) (*Result, error) {
	metrics.queries.WithLabelValues(query.Form.String()).Inc()
	span, ctx := opentracing.StartSpanFromContext(ctx, "execute query")
	tracing.UpdateMetric(span, metrics.executeQueryDurationSeconds)
	defer span.Finish()

	res := &Result{Form: query.Form}
	var err error
	switch query.Form {
	case algebra.SelectForm:
		res.Solutions, err = e.executor.Collect(ctx, query.Plan)
		if keep := visibleColumns(res.Solutions.Columns, query.BlankVars); keep != nil {
			res.Solutions = project(res.Solutions, keep)
		}
	case algebra.AskForm:
		res.Boolean, err = e.executor.Ask(ctx, query.Plan)
	case algebra.ConstructForm:
		res.Triples, err = e.executor.Construct(ctx, query.Template, query.Plan)
	default:
		err = fmt.Errorf("query: unsupported query form %v", query.Form)
	}
	if err != nil {
		span.SetTag("error", true)
		return nil, err
	}
	return res, nil
}
