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
	metricsutil "github.com/kasei/kineo-federation/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type federationMetrics struct {
	federateDurationSeconds    prometheus.Summary
	stepPasses                 *prometheus.HistogramVec
	stepsNotConverged          *prometheus.CounterVec
	oracleProbes               prometheus.Counter
	oracleProbeFailures        prometheus.Counter
	oracleCacheHits            prometheus.Counter
	oracleProbeDurationSeconds prometheus.Summary
}

var metrics federationMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = federationMetrics{
		federateDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "federate_duration_seconds",
			Help:      `The time it takes to rewrite a plan for federated execution.`,
		}),
		stepPasses: mr.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "step_passes",
			Help:      `The number of rewrite passes run by each repeated step of the federation planner.`,
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 24, 32},
		}, "step"),
		stepsNotConverged: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "steps_not_converged",
			Help: `The number of times a repeated planner step hit its pass limit while
the plan was still changing.`,
		}, "step"),
		oracleProbes: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "oracle_probes",
			Help:      `The number of ASK requests the availability oracle sent to endpoints.`,
		}),
		oracleProbeFailures: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "oracle_probe_failures",
			Help: `The number of oracle ASK requests that failed. The endpoint is then
assumed to be available.`,
		}),
		oracleCacheHits: mr.NewCounter(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "oracle_cache_hits",
			Help:      `The number of availability checks answered from the oracle's cache.`,
		}),
		oracleProbeDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "federation",
			Name:      "oracle_probe_duration_seconds",
			Help:      `The time it takes an endpoint to answer an oracle ASK request.`,
		}),
	}
}
