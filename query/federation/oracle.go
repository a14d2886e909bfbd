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
	"fmt"
	"time"

	"github.com/kasei/kineo-federation/query/algebra"
	"github.com/kasei/kineo-federation/util/cmp"
	"github.com/kasei/kineo-federation/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// An Oracle decides whether an endpoint can plausibly answer a sub-plan. It
// may do network I/O but has no visible side effects.
type Oracle interface {
	IsAvailable(ctx context.Context, plan algebra.Plan, endpoint string) bool
}

// AlwaysAvailable is an Oracle that accepts every endpoint for every
// sub-plan.
type AlwaysAvailable struct{}

// IsAvailable implements Oracle.
func (AlwaysAvailable) IsAvailable(context.Context, algebra.Plan, string) bool {
	return true
}

// A Prober runs a SPARQL ASK query against an endpoint. A failed probe must
// be returned as an error, not a false answer. sparqlclient.Client is a
// Prober, silent or not.
type Prober interface {
	Ask(ctx context.Context, endpoint string, query string) (bool, error)
}

// CachingAskOracle checks whether an endpoint has any triples with a
// pattern's predicate by sending it an ASK query, and remembers the answer.
// Anything other than a Triple with a bound predicate is assumed available,
// as is any endpoint whose probe fails. It's safe for concurrent use.
type CachingAskOracle struct {
	prober Prober
	// Maps from cacheKey to bool.
	verdicts *cache.Cache
	// Collapses concurrent probes with the same cacheKey.
	inflight singleflight.Group
}

// NewCachingAskOracle returns an oracle that probes endpoints with the given
// Prober. Verdicts are kept for ttl, or forever if ttl is 0.
func NewCachingAskOracle(prober Prober, ttl time.Duration) *CachingAskOracle {
	exp, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		exp, cleanup = ttl, ttl
	}
	return &CachingAskOracle{
		prober:   prober,
		verdicts: cache.New(exp, cleanup),
	}
}

func cacheKey(plan algebra.Plan, endpoint string) string {
	return endpoint + " " + cmp.GetKey(plan)
}

// IsAvailable implements Oracle.
func (o *CachingAskOracle) IsAvailable(ctx context.Context, plan algebra.Plan, endpoint string) bool {
	key := cacheKey(plan, endpoint)
	if v, found := o.verdicts.Get(key); found {
		metrics.oracleCacheHits.Inc()
		return v.(bool)
	}
	v, _, _ := o.inflight.Do(key, func() (interface{}, error) {
		// Another caller may have finished a probe between the Get above
		// and entering Do.
		if v, found := o.verdicts.Get(key); found {
			metrics.oracleCacheHits.Inc()
			return v, nil
		}
		available := o.probe(ctx, plan, endpoint)
		o.verdicts.SetDefault(key, available)
		return available, nil
	})
	return v.(bool)
}

// Len returns the number of cached verdicts.
func (o *CachingAskOracle) Len() int {
	return o.verdicts.ItemCount()
}

// probeQuery returns the ASK query to check plan's availability, or "" if
// plan shouldn't be probed.
func probeQuery(plan algebra.Plan) string {
	triple, ok := plan.(*algebra.Triple)
	if !ok {
		return ""
	}
	pred, ok := algebra.IsBound(triple.Pattern.Predicate)
	if !ok {
		return ""
	}
	return fmt.Sprintf("ASK { [] %v [] }", pred)
}

func (o *CachingAskOracle) probe(ctx context.Context, plan algebra.Plan, endpoint string) bool {
	query := probeQuery(plan)
	if query == "" {
		return true
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "oracle probe")
	span.SetTag("endpoint", endpoint)
	tracing.UpdateMetric(span, metrics.oracleProbeDurationSeconds)
	defer span.Finish()
	metrics.oracleProbes.Inc()
	available, err := o.prober.Ask(ctx, endpoint, query)
	if err != nil {
		metrics.oracleProbeFailures.Inc()
		log.WithFields(log.Fields{
			"endpoint": endpoint,
			"query":    query,
			"error":    err,
		}).Warn("Availability probe failed, assuming endpoint is available")
		return true
	}
	log.WithFields(log.Fields{
		"endpoint":  endpoint,
		"query":     query,
		"available": available,
	}).Debug("Availability probe")
	return available
}
