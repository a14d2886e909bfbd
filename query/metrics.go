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

package query

import (
	metricsutil "github.com/kasei/kineo-federation/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type queryMetrics struct {
	parseQueryDurationSeconds    prometheus.Summary
	federateQueryDurationSeconds prometheus.Summary
	executeQueryDurationSeconds  prometheus.Summary
	queries                      *prometheus.CounterVec
}

var metrics queryMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = queryMetrics{
		parseQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "query",
			Name:      "parse_duration_seconds",
			Help:      `The time it takes to parse a SPARQL query into algebra.`,
		}),
		federateQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "query",
			Name:      "federate_duration_seconds",
			Help: `The time it takes to rewrite a parsed query for federated execution,
including availability probes.`,
		}),
		executeQueryDurationSeconds: mr.NewSummary(prometheus.SummaryOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "query",
			Name:      "execute_duration_seconds",
			Help:      `The time it takes to execute a prepared query.`,
		}),
		queries: mr.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsutil.Namespace,
			Subsystem: "query",
			Name:      "queries",
			Help:      `The number of queries executed, by query form.`,
		}, "form"),
	}
}
