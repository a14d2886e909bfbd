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

// Package federation rewrites SPARQL algebra so that its leaf patterns are
// answered by remote endpoints. It inserts Service nodes for the endpoints an
// Oracle accepts, distributes joins over the resulting unions, merges joins
// that are local to one endpoint, and orders union branches so that the ones
// needing the fewest remote calls come first.
package federation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/query/rewrite"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// ErrNoEndpoints is returned when asked to federate a plan over no endpoints.
var ErrNoEndpoints = errors.New("federation: no endpoints given")

// DefaultMaxPasses is the default limit for repeated rewrite steps.
const DefaultMaxPasses = 32

// Options control how hard the Planner tries to normalize a plan.
type Options struct {
	// The maximum number of pushdown passes. Defaults to DefaultMaxPasses.
	MaxPushdownPasses int
	// The maximum number of merge passes. Defaults to DefaultMaxPasses.
	MaxMergePasses int
	// If set, run exactly 1 pushdown pass and 4 merge passes instead of
	// repeating until the plan stops changing. Plans with deep joins may be
	// left partially rewritten.
	FixedPasses bool
}

// Planner rewrites plans for federated execution. It's safe for concurrent use
// if its Oracle is.
type Planner struct {
	oracle Oracle
	opts   Options
}

// NewPlanner returns a Planner that asks the given oracle which endpoints can
// answer each leaf pattern.
func NewPlanner(oracle Oracle, opts Options) *Planner {
	if opts.MaxPushdownPasses <= 0 {
		opts.MaxPushdownPasses = DefaultMaxPasses
	}
	if opts.MaxMergePasses <= 0 {
		opts.MaxMergePasses = DefaultMaxPasses
	}
	return &Planner{oracle: oracle, opts: opts}
}

// step is one stage of the federation pipeline.
type step struct {
	name string
	// One of rule or simplify is set.
	rule     func(context.Context, []string) rewrite.Rule
	simplify bool
	// Passes to run: 1 for single-pass steps. If repeat is set, passes is a
	// limit and the step stops early once the plan stops changing.
	passes int
	repeat bool
}

func (p *Planner) steps() []step {
	pushdown := step{name: "PushdownJoins", passes: p.opts.MaxPushdownPasses, repeat: true,
		rule: func(context.Context, []string) rewrite.Rule { return PushdownJoins() }}
	merge := step{name: "MergeServiceJoins", passes: p.opts.MaxMergePasses, repeat: true,
		rule: func(context.Context, []string) rewrite.Rule { return MergeServiceJoins() }}
	if p.opts.FixedPasses {
		pushdown.passes, pushdown.repeat = 1, false
		merge.passes, merge.repeat = 4, false
	}
	return []step{
		{name: "Simplify", simplify: true},
		{name: "ServiceInsertion", passes: 1,
			rule: func(ctx context.Context, endpoints []string) rewrite.Rule {
				return ServiceInsertion(ctx, endpoints, p.oracle)
			}},
		pushdown,
		{name: "Simplify", simplify: true},
		merge,
		{name: "ReorderServiceUnions", passes: 1,
			rule: func(context.Context, []string) rewrite.Rule { return ReorderServiceUnions() }},
		{name: "Simplify", simplify: true},
	}
}

// Federate rewrites plan so that its leaf patterns are evaluated by the given
// endpoints. Nested subqueries are rewritten too. The input plan isn't
// modified.
func (p *Planner) Federate(ctx context.Context, plan algebra.Plan, endpoints []string) (algebra.Plan, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "federate")
	tracing.UpdateMetric(span, metrics.federateDurationSeconds)
	defer span.Finish()

	for _, s := range p.steps() {
		var err error
		plan, err = p.runStep(ctx, s, plan, endpoints)
		if err != nil {
			return nil, fmt.Errorf("federation step %v failed: %v", s.name, err)
		}
	}
	return plan, nil
}

// FederateQuery is like Federate but rewrites a query's plan.
func (p *Planner) FederateQuery(ctx context.Context, query *algebra.Query, endpoints []string) (*algebra.Query, error) {
	plan, err := p.Federate(ctx, query.Plan, endpoints)
	if err != nil {
		return nil, err
	}
	return query.WithPlan(plan), nil
}

func (p *Planner) runStep(ctx context.Context, s step, plan algebra.Plan, endpoints []string) (algebra.Plan, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "federate."+s.name)
	defer span.Finish()
	start := time.Now()
	if s.simplify {
		plan = rewrite.Simplify(plan)
		log.WithFields(log.Fields{
			"step":    s.name,
			"elapsed": time.Since(start),
		}).Debug("Federation step done")
		return plan, nil
	}

	rule := s.rule(ctx, endpoints)
	passes := s.passes
	converged := true
	var err error
	if s.repeat {
		plan, passes, converged, err = rewrite.Fixpoint(plan, rule, s.passes)
	} else {
		plan, err = rewrite.Repeat(plan, rule, s.passes)
	}
	if err != nil {
		return nil, err
	}
	span.SetTag("passes", passes)
	if s.repeat {
		metrics.stepPasses.WithLabelValues(s.name).Observe(float64(passes))
		if !converged {
			metrics.stepsNotConverged.WithLabelValues(s.name).Inc()
			log.WithFields(log.Fields{
				"step":   s.name,
				"passes": passes,
			}).Warn("Federation step reached its pass limit before the plan stopped changing")
		}
	}
	log.WithFields(log.Fields{
		"step":    s.name,
		"passes":  passes,
		"elapsed": time.Since(start),
	}).Debug("Federation step done")
	return plan, nil
}
